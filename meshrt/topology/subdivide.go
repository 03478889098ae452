package topology

import (
	"sort"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/meshparts/meshrt/core"
)

// SubdivisionConfig controls the geometric fallback used when connectivity
// finds a single island.
type SubdivisionConfig struct {
	SplitX       bool    `toml:"split_x"`
	YBands       int     `toml:"y_bands"`
	LowerFrac    float32 `toml:"lower_fraction"`
	ZBands       int     `toml:"z_bands"`
	MinTriangles int     `toml:"min_triangles"`
}

func DefaultSubdivisionConfig() SubdivisionConfig {
	return SubdivisionConfig{
		SplitX:       true,
		YBands:       2,
		LowerFrac:    0.4,
		ZBands:       3,
		MinTriangles: 8,
	}
}

// Subdivide cuts one component into a grid of cells by triangle centroid:
// left/right, lower/upper, front/middle/back by default. Cells smaller than
// MinTriangles fold into the largest cell. It reports false, and returns the
// component unchanged, when fewer than two cells survive.
func Subdivide(comp Component, cfg SubdivisionConfig) ([]Component, bool) {
	if comp.TriangleCount() == 0 {
		return []Component{comp}, false
	}
	yBands := max(cfg.YBands, 1)
	zBands := max(cfg.ZBands, 1)
	xBands := 1
	if cfg.SplitX {
		xBands = 2
	}

	b := comp.Bounds
	if b.IsEmpty() {
		b = core.PositionsAABB(comp.Positions)
	}
	size := b.Size()
	center := b.Center()

	cellOf := func(c mgl32.Vec3) int {
		ix := 0
		if xBands == 2 && c.X() >= center.X() {
			ix = 1
		}
		iy := band(c.Y()-b.Min.Y(), size.Y(), yBands, cfg.LowerFrac)
		iz := band(c.Z()-b.Min.Z(), size.Z(), zBands, 0)
		return ix + xBands*(iy+yBands*iz)
	}

	vertex := func(i uint32) mgl32.Vec3 {
		return mgl32.Vec3{comp.Positions[i*3], comp.Positions[i*3+1], comp.Positions[i*3+2]}
	}

	cells := make(map[int][]int)
	for t := 0; t < comp.TriangleCount(); t++ {
		a, bb, c := comp.Indices[t*3], comp.Indices[t*3+1], comp.Indices[t*3+2]
		centroid := vertex(a).Add(vertex(bb)).Add(vertex(c)).Mul(1.0 / 3.0)
		key := cellOf(centroid)
		cells[key] = append(cells[key], t)
	}

	keys := make([]int, 0, len(cells))
	for k := range cells {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	largest := keys[0]
	for _, k := range keys {
		if len(cells[k]) > len(cells[largest]) {
			largest = k
		}
	}
	for _, k := range keys {
		if k != largest && len(cells[k]) < cfg.MinTriangles {
			cells[largest] = append(cells[largest], cells[k]...)
			delete(cells, k)
		}
	}
	if len(cells) < 2 {
		return []Component{comp}, false
	}

	out := make([]Component, 0, len(cells))
	for _, k := range keys {
		tris, ok := cells[k]
		if !ok {
			continue
		}
		sort.Ints(tris)
		out = append(out, comp.subset(tris))
	}
	return out, true
}

// band maps an offset along an axis of the given length to a band index.
// A positive firstFrac sizes the first band explicitly; the rest split evenly.
func band(offset, length float32, bands int, firstFrac float32) int {
	if bands <= 1 || length <= 0 {
		return 0
	}
	f := offset / length
	if firstFrac > 0 && firstFrac < 1 {
		if f < firstFrac {
			return 0
		}
		if bands == 2 {
			return 1
		}
		f = (f - firstFrac) / (1 - firstFrac)
		return 1 + min(int(f*float32(bands-1)), bands-2)
	}
	return min(max(int(f*float32(bands)), 0), bands-1)
}

// subset re-indexes the given local triangles into a new dense component.
func (c Component) subset(tris []int) Component {
	hasNormals := len(c.Normals) == len(c.Positions)
	local := make(map[uint32]uint32)
	var out Component
	for _, t := range tris {
		for k := 0; k < 3; k++ {
			v := c.Indices[t*3+k]
			li, ok := local[v]
			if !ok {
				li = uint32(len(out.Remap))
				local[v] = li
				out.Remap = append(out.Remap, c.Remap[v])
				out.Positions = append(out.Positions, c.Positions[v*3], c.Positions[v*3+1], c.Positions[v*3+2])
				if hasNormals {
					out.Normals = append(out.Normals, c.Normals[v*3], c.Normals[v*3+1], c.Normals[v*3+2])
				}
			}
			out.Indices = append(out.Indices, li)
		}
		out.Triangles = append(out.Triangles, c.Triangles[t])
	}
	out.Bounds = core.PositionsAABB(out.Positions)
	return out
}
