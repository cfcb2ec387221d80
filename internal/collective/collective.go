package collective

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var (
	// ErrCollective wraps every failure inside a collective operation.
	ErrCollective = errors.New("collective operation failed")

	// ErrClosed is returned by calls on a closed transport.
	ErrClosed = errors.New("collective transport closed")
)

// Exchanger is the transport of one rank in a fixed-size group.
type Exchanger interface {
	Rank() int
	Size() int
	// Broadcast returns the buffer held by root on every rank.
	Broadcast(buf []byte, root int) ([]byte, error)
	// AllToAll returns every rank's buffer, indexed by rank.
	AllToAll(buf []byte) ([][]byte, error)
	Close() error
}

// Channel implements the group operations used by the relaxation engine.
type Channel struct {
	ex Exchanger
}

// NewChannel wraps ex.
func NewChannel(ex Exchanger) *Channel {
	return &Channel{ex: ex}
}

// Rank returns this member's rank.
func (c *Channel) Rank() int { return c.ex.Rank() }

// Size returns the group size.
func (c *Channel) Size() int { return c.ex.Size() }

// Close releases the underlying transport.
func (c *Channel) Close() error { return c.ex.Close() }

// BroadcastFrom returns the buffer held by root on every rank.
func (c *Channel) BroadcastFrom(root int, buf []byte) ([]byte, error) {
	if root < 0 || root >= c.ex.Size() {
		return nil, fmt.Errorf("%w: root %d outside group of %d", ErrCollective, root, c.ex.Size())
	}
	out, err := c.ex.Broadcast(buf, root)
	if err != nil {
		return nil, fmt.Errorf("%w: broadcast from %d: %w", ErrCollective, root, err)
	}
	return out, nil
}

// AllReduceOr returns the logical OR of flag across the group.
func (c *Channel) AllReduceOr(flag bool) (bool, error) {
	var b byte
	if flag {
		b = 1
	}
	all, err := c.ex.AllToAll([]byte{b})
	if err != nil {
		return false, fmt.Errorf("%w: all-reduce or: %w", ErrCollective, err)
	}
	for rank, v := range all {
		if len(v) != 1 {
			return false, fmt.Errorf("%w: all-reduce or: rank %d sent %d bytes", ErrCollective, rank, len(v))
		}
		if v[0] != 0 {
			return true, nil
		}
	}
	return false, nil
}

// AllReduceMin returns the element-wise minimum of vec across the group.
// Every rank must contribute a vector of the same length.
func (c *Channel) AllReduceMin(vec []float64) ([]float64, error) {
	all, err := c.ex.AllToAll(EncodeVector(vec))
	if err != nil {
		return nil, fmt.Errorf("%w: all-reduce min: %w", ErrCollective, err)
	}
	out := make([]float64, len(vec))
	copy(out, vec)
	for rank, b := range all {
		other, err := DecodeVector(b)
		if err != nil {
			return nil, fmt.Errorf("%w: all-reduce min: rank %d: %w", ErrCollective, rank, err)
		}
		if len(other) != len(out) {
			return nil, fmt.Errorf("%w: all-reduce min: rank %d sent %d values, want %d", ErrCollective, rank, len(other), len(out))
		}
		for i, v := range other {
			out[i] = math.Min(out[i], v)
		}
	}
	return out, nil
}

// EncodeVector packs vec as big-endian IEEE-754 values.
func EncodeVector(vec []float64) []byte {
	b := make([]byte, 8*len(vec))
	for i, v := range vec {
		binary.BigEndian.PutUint64(b[8*i:], math.Float64bits(v))
	}
	return b
}

// DecodeVector is the inverse of EncodeVector.
func DecodeVector(b []byte) ([]float64, error) {
	if len(b)%8 != 0 {
		return nil, fmt.Errorf("vector encoding has %d bytes, not a multiple of 8", len(b))
	}
	vec := make([]float64, len(b)/8)
	for i := range vec {
		vec[i] = math.Float64frombits(binary.BigEndian.Uint64(b[8*i:]))
	}
	return vec, nil
}
