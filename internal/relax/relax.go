// Package relax runs the distributed unit-weight shortest-path relaxation of
// one worker group to a fixed point.
//
// Every rank holds the full distance vector. Work is striped by row: rank r
// relaxes the edges of rows i with i%size == r. After each local pass the
// ranks take the element-wise minimum of their vectors, so every relaxation
// found anywhere in the group persists, then OR-reduce their change flags to
// decide whether another round is needed. The coordinator's vector is
// rebroadcast at the end of every round; after the min-reduce all ranks
// already agree, so the broadcast only pins the coordinator as the source of
// truth.
//
// The run ends after the first round in which no rank changed anything.
package relax

import (
	"errors"
	"fmt"

	"github.com/dreamware/hopgraph/internal/collective"
	"github.com/dreamware/hopgraph/internal/graph"
)

// Coordinator is the rank whose vector is authoritative.
const Coordinator = 0

// ErrInvalidStart is returned when the start node is outside the graph.
var ErrInvalidStart = errors.New("start node outside graph")

// Collective is the group capability the engine synchronizes through.
// *collective.Channel implements it.
type Collective interface {
	Rank() int
	Size() int
	BroadcastFrom(root int, buf []byte) ([]byte, error)
	AllReduceOr(flag bool) (bool, error)
	AllReduceMin(vec []float64) ([]float64, error)
}

// Engine relaxes a graph from a start node on one rank of a group.
type Engine struct {
	graph   graph.Graph
	comm    Collective
	onRound func(round int, d graph.Distances)
	start   int
}

// Option configures an Engine.
type Option func(*Engine)

// WithRoundObserver registers fn to be called with a copy of the
// synchronized vector after every round, starting with round 0 for the
// initial vector.
func WithRoundObserver(fn func(round int, d graph.Distances)) Option {
	return func(e *Engine) {
		e.onRound = fn
	}
}

// New validates the inputs; nothing is exchanged until Run.
func New(g graph.Graph, start int, comm Collective, opts ...Option) (*Engine, error) {
	if start < 0 || start >= g.N() {
		return nil, fmt.Errorf("%w: %d not in 0..%d", ErrInvalidStart, start, g.N()-1)
	}
	if comm.Size() < 1 || comm.Rank() < 0 || comm.Rank() >= comm.Size() {
		return nil, fmt.Errorf("rank %d invalid for group of %d", comm.Rank(), comm.Size())
	}
	e := &Engine{graph: g, start: start, comm: comm}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Run converges the distance vector. Every rank of the group must call Run
// on the same graph and start node; the result is identical on all ranks.
// A collective failure is returned as is and is fatal for the whole group.
func (e *Engine) Run() (graph.Distances, error) {
	d := graph.NewDistances(e.graph.N())
	if e.comm.Rank() == Coordinator {
		d[e.start] = 0
	}
	d, err := e.sync(d)
	if err != nil {
		return nil, err
	}
	e.observe(0, d)

	for round := 1; ; round++ {
		changed := e.relaxRows(d)

		merged, err := e.comm.AllReduceMin(d)
		if err != nil {
			return nil, err
		}
		again, err := e.comm.AllReduceOr(changed)
		if err != nil {
			return nil, err
		}
		d, err = e.sync(merged)
		if err != nil {
			return nil, err
		}
		e.observe(round, d)

		if !again {
			return d, nil
		}
	}
}

// relaxRows performs one pass over this rank's rows.
func (e *Engine) relaxRows(d graph.Distances) bool {
	changed := false
	n := e.graph.N()
	for i := e.comm.Rank(); i < n; i += e.comm.Size() {
		if !d.IsReachable(i) {
			continue
		}
		for j := 0; j < n; j++ {
			if e.graph.HasEdge(i, j) && d[j] > d[i]+1 {
				d[j] = d[i] + 1
				changed = true
			}
		}
	}
	return changed
}

// sync replaces d with the coordinator's vector.
func (e *Engine) sync(d []float64) (graph.Distances, error) {
	recv, err := e.comm.BroadcastFrom(Coordinator, collective.EncodeVector(d))
	if err != nil {
		return nil, err
	}
	vec, err := collective.DecodeVector(recv)
	if err != nil {
		return nil, fmt.Errorf("%w: decode coordinator vector: %w", collective.ErrCollective, err)
	}
	if len(vec) != e.graph.N() {
		return nil, fmt.Errorf("%w: coordinator sent %d values, want %d", collective.ErrCollective, len(vec), e.graph.N())
	}
	return vec, nil
}

func (e *Engine) observe(round int, d graph.Distances) {
	if e.onRound != nil {
		e.onRound(round, d.Clone())
	}
}

// Relax is New followed by Run.
func Relax(g graph.Graph, start int, comm Collective, opts ...Option) (graph.Distances, error) {
	e, err := New(g, start, comm, opts...)
	if err != nil {
		return nil, err
	}
	return e.Run()
}
