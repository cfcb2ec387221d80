package graph

import (
	"errors"
	"fmt"
)

// ErrInvalidGraph is returned when an adjacency matrix is not square or
// contains entries other than 0 and 1.
var ErrInvalidGraph = errors.New("invalid graph")

// Graph is an immutable n×n 0/1 adjacency matrix.
// Safe for concurrent readers since nothing mutates it after New.
type Graph struct {
	adj [][]bool
}

// New validates matrix and returns the Graph it describes.
// The matrix is copied so later changes by the caller have no effect.
func New(matrix [][]int) (Graph, error) {
	n := len(matrix)
	adj := make([][]bool, n)
	for i, row := range matrix {
		if len(row) != n {
			return Graph{}, fmt.Errorf("%w: row %d has %d columns, want %d", ErrInvalidGraph, i, len(row), n)
		}
		adj[i] = make([]bool, n)
		for j, v := range row {
			switch v {
			case 0:
			case 1:
				adj[i][j] = true
			default:
				return Graph{}, fmt.Errorf("%w: entry (%d,%d) is %d", ErrInvalidGraph, i, j, v)
			}
		}
	}
	return Graph{adj: adj}, nil
}

// FromEdges builds an undirected graph on n nodes.
func FromEdges(n int, edges [][2]int) (Graph, error) {
	matrix := make([][]int, n)
	for i := range matrix {
		matrix[i] = make([]int, n)
	}
	for _, e := range edges {
		a, b := e[0], e[1]
		if a < 0 || a >= n || b < 0 || b >= n {
			return Graph{}, fmt.Errorf("%w: edge %d-%d outside 0..%d", ErrInvalidGraph, a, b, n-1)
		}
		matrix[a][b] = 1
		matrix[b][a] = 1
	}
	return New(matrix)
}

// N returns the number of nodes.
func (g Graph) N() int { return len(g.adj) }

// HasEdge reports whether the matrix has a 1 at (i, j).
func (g Graph) HasEdge(i, j int) bool { return g.adj[i][j] }

// Neighbors returns the targets of row i in ascending order.
func (g Graph) Neighbors(i int) []int {
	var out []int
	for j, ok := range g.adj[i] {
		if ok {
			out = append(out, j)
		}
	}
	return out
}
