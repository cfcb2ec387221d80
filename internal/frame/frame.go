// Package frame implements the length-prefixed framing shared by the result
// reporter and the aggregator.
//
// A frame is an 8-byte header followed by the payload:
//
//	+----------------+----------------+==================+
//	| magic (uint32) | length (uint32)| payload (length) |
//	+----------------+----------------+==================+
//
// Both header fields are big-endian. The magic must equal Magic and the
// length must not exceed the decoder's maximum, which is checked before any
// payload byte is read.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// Magic identifies a frame header.
	Magic uint32 = 0x12345678

	// HeaderSize is the encoded header length in bytes.
	HeaderSize = 8

	// MaxPayload is the default payload bound (1 MiB).
	MaxPayload = 1 << 20

	// Ack is the receiver's reply once a frame has been accepted.
	Ack = "OK"
)

var (
	// ErrFraming is returned for a short header or a magic mismatch.
	ErrFraming = errors.New("framing error")

	// ErrOversize is returned when a declared length exceeds the bound.
	ErrOversize = errors.New("payload too large")

	// ErrIncomplete is returned when the stream ends before the declared
	// payload length has arrived.
	ErrIncomplete = errors.New("incomplete payload")
)

// Header is the decoded fixed-size frame prefix.
type Header struct {
	Magic  uint32
	Length uint32
}

// PutHeader encodes h into the first HeaderSize bytes of b.
func PutHeader(b []byte, h Header) {
	binary.BigEndian.PutUint32(b[0:4], h.Magic)
	binary.BigEndian.PutUint32(b[4:8], h.Length)
}

// Encode returns header and payload as one buffer.
func Encode(payload []byte) ([]byte, error) {
	if len(payload) > MaxPayload {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrOversize, len(payload), MaxPayload)
	}
	buf := make([]byte, HeaderSize+len(payload))
	PutHeader(buf, Header{Magic: Magic, Length: uint32(len(payload))})
	copy(buf[HeaderSize:], payload)
	return buf, nil
}

// Write sends the header and then the payload to w.
func Write(w io.Writer, payload []byte) error {
	if len(payload) > MaxPayload {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrOversize, len(payload), MaxPayload)
	}
	var hdr [HeaderSize]byte
	PutHeader(hdr[:], Header{Magic: Magic, Length: uint32(len(payload))})
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}
	return nil
}

// Decoder reads frames bounded by Max. The zero value uses MaxPayload.
type Decoder struct {
	Max uint32
}

// Decode reads one frame from r with the default bound.
func Decode(r io.Reader) ([]byte, error) {
	return Decoder{}.Decode(r)
}

// ReadHeader reads and validates a header without touching the payload.
func (d Decoder) ReadHeader(r io.Reader) (Header, error) {
	var hdr [HeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Header{}, fmt.Errorf("%w: short header: %v", ErrFraming, err)
	}
	h := Header{
		Magic:  binary.BigEndian.Uint32(hdr[0:4]),
		Length: binary.BigEndian.Uint32(hdr[4:8]),
	}
	if h.Magic != Magic {
		return Header{}, fmt.Errorf("%w: bad magic 0x%08x", ErrFraming, h.Magic)
	}
	if h.Length > d.max() {
		return Header{}, fmt.Errorf("%w: declared %d bytes, limit %d", ErrOversize, h.Length, d.max())
	}
	return h, nil
}

// Decode reads one frame from r and returns its payload.
func (d Decoder) Decode(r io.Reader) ([]byte, error) {
	h, err := d.ReadHeader(r)
	if err != nil {
		return nil, err
	}
	payload := make([]byte, h.Length)
	if n, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("%w: got %d of %d bytes: %v", ErrIncomplete, n, h.Length, err)
	}
	return payload, nil
}

func (d Decoder) max() uint32 {
	if d.Max == 0 {
		return MaxPayload
	}
	return d.Max
}
