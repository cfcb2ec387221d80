package integration

import (
	"context"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/hopgraph/internal/aggregator"
	"github.com/dreamware/hopgraph/internal/collective"
	"github.com/dreamware/hopgraph/internal/graph"
	"github.com/dreamware/hopgraph/internal/relax"
	"github.com/dreamware/hopgraph/internal/report"
	"github.com/dreamware/hopgraph/internal/results"
)

// TestSystem is an aggregator plus any number of worker groups, all in
// this process.
type TestSystem struct {
	t     *testing.T
	store *results.Store
	srv   *aggregator.Server
	addr  string
}

// NewTestSystem starts an aggregator on a loopback port.
func NewTestSystem(t *testing.T) *TestSystem {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ts := &TestSystem{
		t:     t,
		store: results.NewStore(),
		addr:  l.Addr().String(),
	}
	ts.srv = aggregator.New(ts.store)
	go ts.srv.Serve(context.Background(), l)
	t.Cleanup(ts.Stop)
	return ts
}

// Stop shuts the aggregator down and waits for its handlers.
func (ts *TestSystem) Stop() {
	assert.NoError(ts.t, ts.srv.Close())
}

// RunGroup relaxes worker's fixture on the given exchangers, one goroutine
// per rank, then reports rank 0's vector. Safe to call from any goroutine.
func (ts *TestSystem) RunGroup(worker int, members []collective.Exchanger) error {
	g, err := graph.Fixture(worker)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	dists := make([]graph.Distances, len(members))
	errs := make([]error, len(members))
	for i, ex := range members {
		wg.Add(1)
		go func(i int, ex collective.Exchanger) {
			defer wg.Done()
			dists[i], errs[i] = relax.Relax(g, 0, collective.NewChannel(ex))
		}(i, ex)
	}
	wg.Wait()

	for i := range members {
		if errs[i] != nil {
			return fmt.Errorf("rank %d: %w", i, errs[i])
		}
		assert.True(ts.t, dists[0].Equal(dists[i]), "rank %d diverged: %v vs %v", i, dists[i], dists[0])
	}

	r := report.New(ts.addr, report.WithBackoff(20*time.Millisecond))
	return r.Report(context.Background(), results.Record{WorkerID: worker, Distances: dists[0]})
}

func inProcessGroup(size int) []collective.Exchanger {
	g := collective.NewGroup(size)
	members := make([]collective.Exchanger, size)
	for r := range members {
		members[r] = g.Member(r)
	}
	return members
}

func httpGroup(t *testing.T, size int) []collective.Exchanger {
	t.Helper()
	listeners := make(map[int]net.Listener)
	addresses := make(map[int]string)
	for r := 0; r < size; r++ {
		l, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		listeners[r] = l
		addresses[r] = l.Addr().String()
	}
	members := make([]collective.Exchanger, size)
	for r := 0; r < size; r++ {
		p, err := collective.NewPeer(r, addresses, listeners[r], collective.WithTimeout(30*time.Second))
		require.NoError(t, err)
		members[r] = p
	}
	t.Cleanup(func() {
		for _, m := range members {
			m.Close()
		}
	})
	return members
}

func TestTwoGroupsReportToAggregator(t *testing.T) {
	ts := NewTestSystem(t)

	peers := httpGroup(t, 2)

	var wg sync.WaitGroup
	reportErrs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		reportErrs[0] = ts.RunGroup(1, peers)
	}()
	go func() {
		defer wg.Done()
		reportErrs[1] = ts.RunGroup(2, inProcessGroup(3))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, ts.store.Wait(ctx, 2))
	wg.Wait()
	require.NoError(t, reportErrs[0])
	require.NoError(t, reportErrs[1])

	snap := ts.store.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, graph.Distances{0, 1, 2, 2, 1}, snap[1])
	d2 := snap[2]
	require.Len(t, d2, 6)
	assert.True(t, graph.Distances{0, 1, 2, 2, 1, graph.Unreachable}.Equal(d2), "got %v", d2)
	assert.False(t, d2.IsReachable(5))

	st := ts.srv.Stats()
	assert.Equal(t, int64(2), st.Stored)
	assert.Zero(t, st.Rejected)
}

func TestRepeatedReportOverwrites(t *testing.T) {
	ts := NewTestSystem(t)
	ctx := context.Background()
	r := report.New(ts.addr)

	require.NoError(t, r.Report(ctx, results.Record{WorkerID: 1, Distances: graph.Distances{0, 5}}))
	require.NoError(t, ts.RunGroup(1, inProcessGroup(1)))

	assert.Equal(t, 1, ts.store.Len())
	d, ok := ts.store.Get(1)
	require.True(t, ok)
	assert.Equal(t, graph.Distances{0, 1, 2, 2, 1}, d)
}

// TestLateAggregator starts the aggregator only after the first attempt has
// failed, so delivery succeeds on a retry.
func TestLateAggregator(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	store := results.NewStore()
	srv := aggregator.New(store)
	defer srv.Close()

	go func() {
		time.Sleep(100 * time.Millisecond)
		if l, err := net.Listen("tcp", addr); err == nil {
			srv.Serve(context.Background(), l)
		}
	}()

	r := report.New(addr, report.WithMaxAttempts(5), report.WithBackoff(100*time.Millisecond))
	err = r.Report(context.Background(), results.Record{WorkerID: 7, Distances: graph.Distances{0}})
	require.NoError(t, err)
	assert.True(t, store.IsComplete(1))
}
