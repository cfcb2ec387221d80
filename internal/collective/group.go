package collective

import (
	"fmt"
	"sync"

	"golang.org/x/exp/slices"
)

// Group is an in-process worker group. Each rank runs in its own goroutine
// and talks through the Member returned by Member(rank).
type Group struct {
	mu         sync.Mutex
	cond       *sync.Cond
	pending    [][]byte // buffers of the round being assembled
	result     [][]byte // buffers of the last completed round
	size       int
	arrived    int
	generation uint64
	closed     bool
}

// NewGroup creates a group of size ranks.
func NewGroup(size int) *Group {
	if size < 1 {
		panic(fmt.Sprintf("collective: group size %d", size))
	}
	g := &Group{
		size:    size,
		pending: make([][]byte, size),
	}
	g.cond = sync.NewCond(&g.mu)
	return g
}

// Member returns the transport for rank.
func (g *Group) Member(rank int) *Member {
	if rank < 0 || rank >= g.size {
		panic(fmt.Sprintf("collective: rank %d outside group of %d", rank, g.size))
	}
	return &Member{group: g, rank: rank}
}

// Close aborts the group. Ranks blocked in a call, and every later call,
// fail with ErrClosed.
func (g *Group) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	g.cond.Broadcast()
}

// exchange deposits buf for rank and blocks until every rank has deposited
// its buffer for the same round.
func (g *Group) exchange(rank int, buf []byte) ([][]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil, ErrClosed
	}
	g.pending[rank] = slices.Clone(buf)
	g.arrived++
	gen := g.generation
	if g.arrived == g.size {
		g.result = g.pending
		g.pending = make([][]byte, g.size)
		g.arrived = 0
		g.generation++
		g.cond.Broadcast()
		return g.result, nil
	}
	// A rank cannot enter the next round before leaving this one, so result
	// still belongs to gen when this goroutine wakes.
	for g.generation == gen && !g.closed {
		g.cond.Wait()
	}
	if g.generation == gen {
		return nil, ErrClosed
	}
	return g.result, nil
}

// Member is one rank of a Group.
type Member struct {
	group *Group
	rank  int
}

// Rank implements Exchanger.
func (m *Member) Rank() int { return m.rank }

// Size implements Exchanger.
func (m *Member) Size() int { return m.group.size }

// Broadcast implements Exchanger.
func (m *Member) Broadcast(buf []byte, root int) ([]byte, error) {
	if root < 0 || root >= m.group.size {
		return nil, fmt.Errorf("root %d outside group of %d", root, m.group.size)
	}
	if m.rank != root {
		buf = nil
	}
	all, err := m.group.exchange(m.rank, buf)
	if err != nil {
		return nil, err
	}
	return slices.Clone(all[root]), nil
}

// AllToAll implements Exchanger.
func (m *Member) AllToAll(buf []byte) ([][]byte, error) {
	all, err := m.group.exchange(m.rank, buf)
	if err != nil {
		return nil, err
	}
	out := make([][]byte, len(all))
	for i, b := range all {
		out[i] = slices.Clone(b)
	}
	return out, nil
}

// Close is a no-op; use Group.Close to abort the whole group.
func (m *Member) Close() error { return nil }
