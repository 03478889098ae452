package topology

import (
	"github.com/gekko3d/meshparts/meshrt/core"
)

// Component is one topological island, re-indexed to a dense local range.
// Positions and normals stay in the source fragment's object space.
type Component struct {
	Positions []float32
	Normals   []float32
	Indices   []uint32
	// Remap maps a local vertex to its vertex in the source fragment.
	Remap []uint32
	// Triangles lists the source triangle numbers kept in this component.
	Triangles []int
	Bounds    core.AABB
}

func (c *Component) VertexCount() int   { return len(c.Positions) / 3 }
func (c *Component) TriangleCount() int { return len(c.Indices) / 3 }

// BuildComponents partitions a fragment into its connected islands. Islands
// without a whole triangle (isolated vertices) are omitted.
func BuildComponents(f *core.Fragment) []Component {
	if f == nil || f.Validate() != nil {
		return nil
	}
	g := BuildGraph(f.VertexCount(), f.Indices)
	labels, count := g.Islands()
	return extract(f.Positions, f.Normals, f.Indices, labels, count)
}

func extract(positions, normals []float32, indices []uint32, labels []int, count int) []Component {
	// Each vertex lives in exactly one island, so one table holds every local index.
	local := make([]uint32, len(labels))
	next := make([]uint32, count)
	remaps := make([][]uint32, count)
	for v, l := range labels {
		local[v] = next[l]
		next[l]++
		remaps[l] = append(remaps[l], uint32(v))
	}

	comps := make([]Component, count)
	for t := 0; t+2 < len(indices); t += 3 {
		a, b, c := indices[t], indices[t+1], indices[t+2]
		l := labels[a]
		if labels[b] != l || labels[c] != l {
			// straddles two islands
			continue
		}
		comps[l].Indices = append(comps[l].Indices, local[a], local[b], local[c])
		comps[l].Triangles = append(comps[l].Triangles, t/3)
	}

	hasNormals := len(normals) == len(positions)
	out := make([]Component, 0, count)
	for l := range comps {
		comp := comps[l]
		if len(comp.Indices) == 0 {
			continue
		}
		comp.Remap = remaps[l]
		comp.Positions = make([]float32, 0, len(comp.Remap)*3)
		if hasNormals {
			comp.Normals = make([]float32, 0, len(comp.Remap)*3)
		}
		for _, v := range comp.Remap {
			comp.Positions = append(comp.Positions, positions[v*3], positions[v*3+1], positions[v*3+2])
			if hasNormals {
				comp.Normals = append(comp.Normals, normals[v*3], normals[v*3+1], normals[v*3+2])
			}
		}
		comp.Bounds = core.PositionsAABB(comp.Positions)
		out = append(out, comp)
	}
	return out
}

// Whole wraps an entire fragment as a single component.
func Whole(f *core.Fragment) Component {
	remap := make([]uint32, f.VertexCount())
	for i := range remap {
		remap[i] = uint32(i)
	}
	tris := make([]int, f.TriangleCount())
	for i := range tris {
		tris[i] = i
	}
	return Component{
		Positions: append([]float32(nil), f.Positions...),
		Normals:   append([]float32(nil), f.Normals...),
		Indices:   append([]uint32(nil), f.Indices...),
		Remap:     remap,
		Triangles: tris,
		Bounds:    core.PositionsAABB(f.Positions),
	}
}
