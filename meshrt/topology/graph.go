// Package topology splits indexed triangle meshes into connected islands.
package topology

// Graph is the vertex adjacency of one indexed mesh.
type Graph struct {
	Adjacency [][]uint32
}

// BuildGraph links the three edges of every triangle. Indices outside
// [0, vertexCount) are ignored.
func BuildGraph(vertexCount int, indices []uint32) *Graph {
	g := &Graph{Adjacency: make([][]uint32, vertexCount)}
	vc := uint32(vertexCount)
	link := func(a, b uint32) {
		if a == b {
			return
		}
		g.Adjacency[a] = append(g.Adjacency[a], b)
		g.Adjacency[b] = append(g.Adjacency[b], a)
	}
	for t := 0; t+2 < len(indices); t += 3 {
		a, b, c := indices[t], indices[t+1], indices[t+2]
		if a >= vc || b >= vc || c >= vc {
			continue
		}
		link(a, b)
		link(b, c)
		link(c, a)
	}
	return g
}

// Islands labels every vertex with its island number and returns the count.
// Islands are numbered in order of their smallest vertex.
func (g *Graph) Islands() (labels []int, count int) {
	labels = make([]int, len(g.Adjacency))
	for i := range labels {
		labels[i] = -1
	}

	var stack []uint32
	for start := range g.Adjacency {
		if labels[start] >= 0 {
			continue
		}
		labels[start] = count
		stack = append(stack[:0], uint32(start))
		for len(stack) > 0 {
			v := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, n := range g.Adjacency[v] {
				if labels[n] < 0 {
					labels[n] = count
					stack = append(stack, n)
				}
			}
		}
		count++
	}
	return labels, count
}
