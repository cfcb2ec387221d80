package graph

import "fmt"

// ring is the five node cycle 0-1-2-3-4-0.
var ring = [][2]int{{0, 1}, {1, 2}, {2, 3}, {3, 4}, {4, 0}}

// Fixture returns the test graph registered for a worker selector.
//
//	1: five node ring 0-1-2-3-4-0
//	2: the same ring plus an isolated node 5
func Fixture(id int) (Graph, error) {
	switch id {
	case 1:
		return FromEdges(5, ring)
	case 2:
		return FromEdges(6, ring)
	default:
		return Graph{}, fmt.Errorf("no fixture graph for worker %d", id)
	}
}
