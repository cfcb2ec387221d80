package frame

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingReader records how many bytes were pulled from the stream.
type countingReader struct {
	r    io.Reader
	read int
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.read += n
	return n, err
}

func header(magic, length uint32) []byte {
	b := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(b[0:4], magic)
	binary.BigEndian.PutUint32(b[4:8], length)
	return b
}

func TestRoundTrip(t *testing.T) {
	payloads := map[string][]byte{
		"empty":   {},
		"small":   []byte(`{"worker_id":1,"distances":[0,1,2]}`),
		"binary":  {0x00, 0xff, 0x12, 0x34, 0x56, 0x78},
		"maximum": bytes.Repeat([]byte{'x'}, MaxPayload),
	}
	for name, p := range payloads {
		t.Run(name, func(t *testing.T) {
			encoded, err := Encode(p)
			require.NoError(t, err)
			require.Len(t, encoded, HeaderSize+len(p))

			got, err := Decode(bytes.NewReader(encoded))
			require.NoError(t, err)
			assert.Equal(t, len(p), len(got))
			assert.True(t, bytes.Equal(p, got))
		})
	}
}

func TestEncodeHeaderIsBigEndian(t *testing.T) {
	encoded, err := Encode([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x12, 0x34, 0x56, 0x78, 0, 0, 0, 3}, encoded[:HeaderSize])
}

func TestWriteMatchesEncode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, []byte("hello")))
	encoded, err := Encode([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, encoded, buf.Bytes())
}

func TestEncodeOversize(t *testing.T) {
	_, err := Encode(make([]byte, MaxPayload+1))
	assert.True(t, errors.Is(err, ErrOversize))
	assert.ErrorIs(t, Write(io.Discard, make([]byte, MaxPayload+1)), ErrOversize)
}

func TestDecodeErrors(t *testing.T) {
	t.Run("short header", func(t *testing.T) {
		_, err := Decode(bytes.NewReader([]byte{0x12, 0x34, 0x56}))
		assert.ErrorIs(t, err, ErrFraming)
	})

	t.Run("empty stream", func(t *testing.T) {
		_, err := Decode(bytes.NewReader(nil))
		assert.ErrorIs(t, err, ErrFraming)
	})

	t.Run("bad magic", func(t *testing.T) {
		_, err := Decode(bytes.NewReader(append(header(0xdeadbeef, 2), 'O', 'K')))
		assert.ErrorIs(t, err, ErrFraming)
	})

	t.Run("truncated payload", func(t *testing.T) {
		_, err := Decode(bytes.NewReader(append(header(Magic, 10), 1, 2, 3)))
		assert.ErrorIs(t, err, ErrIncomplete)
	})

	t.Run("oversize rejected before payload", func(t *testing.T) {
		stream := append(header(Magic, MaxPayload+1), bytes.Repeat([]byte{'x'}, 64)...)
		r := &countingReader{r: bytes.NewReader(stream)}
		_, err := Decode(r)
		assert.ErrorIs(t, err, ErrOversize)
		assert.Equal(t, HeaderSize, r.read, "no payload byte may be consumed")
	})

	t.Run("custom bound", func(t *testing.T) {
		d := Decoder{Max: 4}
		_, err := d.Decode(bytes.NewReader(append(header(Magic, 5), 1, 2, 3, 4, 5)))
		assert.ErrorIs(t, err, ErrOversize)

		got, err := d.Decode(bytes.NewReader(append(header(Magic, 4), 1, 2, 3, 4)))
		require.NoError(t, err)
		assert.Equal(t, []byte{1, 2, 3, 4}, got)
	})
}
