package graph

// HopDistances computes hop distances from start with a sequential
// breadth-first traversal. It is the reference the distributed relaxation
// must agree with.
func HopDistances(g Graph, start int) Distances {
	d := NewDistances(g.N())
	if start < 0 || start >= g.N() {
		return d
	}
	d[start] = 0
	queue := []int{start}
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		for _, j := range g.Neighbors(i) {
			if !d.IsReachable(j) {
				d[j] = d[i] + 1
				queue = append(queue, j)
			}
		}
	}
	return d
}
