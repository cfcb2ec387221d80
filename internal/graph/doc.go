// Package graph holds the immutable graph model shared by every rank of a
// worker group, the distance vector the relaxation converges, and a
// sequential reference traversal used to check distributed results.
//
// # Model
//
// A Graph is a square 0/1 adjacency matrix. Row i lists the outgoing edges
// of node i, so a symmetric matrix describes an undirected graph. Node
// indices run from 0 to N()-1 and the matrix never changes after New.
//
// Distances is an ordered vector of hop counts indexed by node. A node with
// no known path carries the Unreachable sentinel (positive infinity), which
// compares greater than every finite hop count and therefore relaxes
// naturally:
//
//	d := graph.NewDistances(g.N()) // all Unreachable
//	d[start] = 0
//	if d[j] > d[i]+1 {
//	    d[j] = d[i] + 1
//	}
//
// # Fixtures
//
// Fixture returns one of a small fixed table of graphs keyed by the worker
// selector a worker process is started with.
package graph
