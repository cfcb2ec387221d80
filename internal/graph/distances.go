package graph

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/exp/slices"
)

// Unreachable marks a node with no known path from the start node.
var Unreachable = math.Inf(1)

// Distances is a hop-count vector indexed by node.
type Distances []float64

// NewDistances returns a vector of n Unreachable entries.
func NewDistances(n int) Distances {
	d := make(Distances, n)
	for i := range d {
		d[i] = Unreachable
	}
	return d
}

// IsReachable reports whether node i has a finite distance.
func (d Distances) IsReachable(i int) bool { return !math.IsInf(d[i], 1) }

// Clone returns an independent copy. A nil vector stays nil.
func (d Distances) Clone() Distances { return slices.Clone(d) }

// Equal compares element-wise; Unreachable equals Unreachable.
func (d Distances) Equal(other Distances) bool { return slices.Equal(d, other) }

// String renders the vector as "[0 1 INF]".
func (d Distances) String() string {
	parts := make([]string, len(d))
	for i := range d {
		parts[i] = FormatHops(d[i])
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// FormatHops renders one entry, using "INF" for Unreachable.
func FormatHops(v float64) string {
	if math.IsInf(v, 1) {
		return "INF"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
