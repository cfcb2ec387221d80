package graph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("valid matrix", func(t *testing.T) {
		g, err := New([][]int{{0, 1}, {1, 0}})
		require.NoError(t, err)
		assert.Equal(t, 2, g.N())
		assert.True(t, g.HasEdge(0, 1))
		assert.False(t, g.HasEdge(0, 0))
	})

	t.Run("non-square matrix", func(t *testing.T) {
		_, err := New([][]int{{0, 1, 0}, {1, 0, 0}})
		assert.True(t, errors.Is(err, ErrInvalidGraph))
	})

	t.Run("non binary entry", func(t *testing.T) {
		_, err := New([][]int{{0, 2}, {1, 0}})
		assert.True(t, errors.Is(err, ErrInvalidGraph))
	})

	t.Run("caller mutation does not leak", func(t *testing.T) {
		m := [][]int{{0, 1}, {1, 0}}
		g, err := New(m)
		require.NoError(t, err)
		m[0][1] = 0
		assert.True(t, g.HasEdge(0, 1))
		assert.True(t, g.HasEdge(1, 0))
		assert.Equal(t, []int{1}, g.Neighbors(0))
	})
}

func TestFromEdges(t *testing.T) {
	g, err := FromEdges(3, [][2]int{{0, 2}})
	require.NoError(t, err)
	assert.True(t, g.HasEdge(0, 2))
	assert.True(t, g.HasEdge(2, 0))
	assert.Equal(t, []int{2}, g.Neighbors(0))
	assert.Nil(t, g.Neighbors(1))

	_, err = FromEdges(3, [][2]int{{0, 3}})
	assert.ErrorIs(t, err, ErrInvalidGraph)
}

func TestDistances(t *testing.T) {
	d := NewDistances(3)
	for i := range d {
		assert.False(t, d.IsReachable(i))
	}
	d[0] = 0
	d[1] = 2
	assert.True(t, d.IsReachable(0))
	assert.Equal(t, "[0 2 INF]", d.String())

	c := d.Clone()
	c[2] = 1
	assert.False(t, d.IsReachable(2), "clone must not alias")
	assert.True(t, d.Equal(Distances{0, 2, Unreachable}))
	assert.False(t, d.Equal(c))
}

func TestHopDistances(t *testing.T) {
	tests := []struct {
		name    string
		fixture int
		start   int
		want    Distances
	}{
		{"ring from 0", 1, 0, Distances{0, 1, 2, 2, 1}},
		{"ring from 2", 1, 2, Distances{2, 1, 0, 1, 2}},
		{"isolated node", 2, 0, Distances{0, 1, 2, 2, 1, Unreachable}},
		{"start on isolated node", 2, 5, Distances{Unreachable, Unreachable, Unreachable, Unreachable, Unreachable, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := Fixture(tt.fixture)
			require.NoError(t, err)
			assert.Equal(t, tt.want, HopDistances(g, tt.start))
		})
	}
}

func TestFixtureUnknown(t *testing.T) {
	_, err := Fixture(99)
	assert.Error(t, err)
}
