package cluster

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrInvalidGroup is returned for an inconsistent group configuration.
var ErrInvalidGroup = errors.New("invalid group configuration")

// GroupConfig describes this process's place in a fixed-size worker group.
type GroupConfig struct {
	// Peers maps every rank to its collective endpoint (host:port).
	// Only needed when Size > 1.
	Peers map[int]string

	// Rank identifies this process within the group, 0..Size-1.
	// Rank 0 is the coordinator and reports the result.
	Rank int

	// Size is the number of ranks and never changes during a run.
	Size int
}

// ParsePeers splits a comma-separated list of host:port addresses, the i-th
// entry belonging to rank i. Blank input yields an empty map.
func ParsePeers(s string) (map[int]string, error) {
	peers := make(map[int]string)
	if strings.TrimSpace(s) == "" {
		return peers, nil
	}
	for i, addr := range strings.Split(s, ",") {
		addr = strings.TrimSpace(addr)
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return nil, fmt.Errorf("%w: peer %d %q: %v", ErrInvalidGroup, i, addr, err)
		}
		peers[i] = addr
	}
	return peers, nil
}

// Validate checks that rank and size agree with each other and with Peers.
func (c GroupConfig) Validate() error {
	if c.Size < 1 {
		return fmt.Errorf("%w: size %d", ErrInvalidGroup, c.Size)
	}
	if c.Rank < 0 || c.Rank >= c.Size {
		return fmt.Errorf("%w: rank %d outside 0..%d", ErrInvalidGroup, c.Rank, c.Size-1)
	}
	if c.Size == 1 {
		return nil
	}
	if len(c.Peers) != c.Size {
		return fmt.Errorf("%w: %d peers for group of %d", ErrInvalidGroup, len(c.Peers), c.Size)
	}
	for r := 0; r < c.Size; r++ {
		if _, ok := c.Peers[r]; !ok {
			return fmt.Errorf("%w: no address for rank %d", ErrInvalidGroup, r)
		}
	}
	return nil
}

// IsCoordinator reports whether this rank owns the authoritative vector.
func (c GroupConfig) IsCoordinator() bool { return c.Rank == 0 }

// ListenAddr returns the address this rank should bind: all interfaces on
// the port of its own peer entry.
func (c GroupConfig) ListenAddr() (string, error) {
	addr, ok := c.Peers[c.Rank]
	if !ok {
		return "", fmt.Errorf("%w: no address for rank %d", ErrInvalidGroup, c.Rank)
	}
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidGroup, err)
	}
	return ":" + port, nil
}
