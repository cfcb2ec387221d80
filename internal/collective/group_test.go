package collective

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGroupBarrier(t *testing.T) {
	const n = 6
	g := NewGroup(n)
	clocks := make(chan int, 2*n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			m := g.Member(rank)
			time.Sleep(time.Duration(rank) * 10 * time.Millisecond)
			clocks <- 0
			if _, err := m.AllToAll([]byte{byte(rank)}); err != nil {
				t.Error(err)
			}
			clocks <- 1
		}(i)
	}
	wg.Wait()
	close(clocks)

	prev := 0
	for c := range clocks {
		if prev > c {
			t.Fatalf("rank left the barrier before every rank entered")
		}
		prev = c
	}
}

func TestGroupAllToAllOrder(t *testing.T) {
	const n = 3
	g := NewGroup(n)
	results := make([][][]byte, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			out, err := g.Member(rank).AllToAll([]byte{byte('a' + rank)})
			assert.NoError(t, err)
			results[rank] = out
		}(i)
	}
	wg.Wait()
	for rank := 0; rank < n; rank++ {
		assert.Equal(t, [][]byte{{'a'}, {'b'}, {'c'}}, results[rank])
	}
}

func TestGroupResultsAreNotShared(t *testing.T) {
	g := NewGroup(2)
	var wg sync.WaitGroup
	outs := make([][][]byte, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			outs[rank], _ = g.Member(rank).AllToAll([]byte{1})
		}(i)
	}
	wg.Wait()
	outs[0][1][0] = 9
	assert.Equal(t, byte(1), outs[1][1][0])
}

func TestGroupClose(t *testing.T) {
	g := NewGroup(2)
	done := make(chan error, 1)
	go func() {
		_, err := g.Member(0).AllToAll(nil)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	g.Close()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("blocked rank was not released by Close")
	}

	_, err := g.Member(1).Broadcast(nil, 0)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestGroupPanicsOnBadRank(t *testing.T) {
	assert.Panics(t, func() { NewGroup(0) })
	assert.Panics(t, func() { NewGroup(2).Member(2) })
}
