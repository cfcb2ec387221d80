package results

import (
	"context"
	"sync"

	"golang.org/x/exp/slices"

	"github.com/dreamware/hopgraph/internal/graph"
)

// Store collects the converged vector of every reporting worker.
// Thread-safe: one mutex guards the map and the completion signal.
type Store struct {
	mu      sync.Mutex
	data    map[int]graph.Distances
	changed chan struct{} // closed and replaced on every insert
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		data:    make(map[int]graph.Distances),
		changed: make(chan struct{}),
	}
}

// Insert stores a copy of d under workerID, replacing any earlier report.
func (s *Store) Insert(workerID int, d graph.Distances) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[workerID] = d.Clone()
	close(s.changed)
	s.changed = make(chan struct{})
}

// Get returns a copy of the vector reported by workerID.
func (s *Store) Get(workerID int) (graph.Distances, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.data[workerID]
	return d.Clone(), ok
}

// Len returns the number of distinct workers stored.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

// IsComplete reports whether at least expected distinct workers reported.
func (s *Store) IsComplete(expected int) bool {
	return s.Len() >= expected
}

// WorkerIDs returns the stored worker IDs in ascending order.
func (s *Store) WorkerIDs() []int {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Snapshot returns a point-in-time deep copy of the store.
func (s *Store) Snapshot() map[int]graph.Distances {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[int]graph.Distances, len(s.data))
	for id, d := range s.data {
		out[id] = d.Clone()
	}
	return out
}

// Wait blocks until IsComplete(expected) holds or ctx is done.
// There is no built-in timeout; pass a context without deadline to wait
// indefinitely.
func (s *Store) Wait(ctx context.Context, expected int) error {
	for {
		s.mu.Lock()
		if len(s.data) >= expected {
			s.mu.Unlock()
			return nil
		}
		changed := s.changed
		s.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
