// Package geom owns the geometry of record: it flattens fragments into one
// world-baked indexed buffer and writes edited buffers back.
package geom

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/meshparts/meshrt/core"
)

// FragmentRange locates one fragment inside a UnifiedGeometry.
type FragmentRange struct {
	Fragment    core.FragmentID `json:"fragment"`
	VertexStart int             `json:"vertex_start"`
	VertexCount int             `json:"vertex_count"`
	IndexStart  int             `json:"index_start"`
	IndexCount  int             `json:"index_count"`
}

// UnifiedGeometry is a single indexed mesh in world space.
type UnifiedGeometry struct {
	Positions []float32       `json:"positions"`
	Normals   []float32       `json:"normals"`
	Indices   []uint32        `json:"indices"`
	Ranges    []FragmentRange `json:"ranges"`
}

func (g *UnifiedGeometry) VertexCount() int {
	return len(g.Positions) / 3
}

func (g *UnifiedGeometry) Bounds() core.AABB {
	return core.PositionsAABB(g.Positions)
}

// Flatten bakes every valid fragment's world transform into one buffer.
// Malformed fragments are skipped and reported to log.
func Flatten(frags []*core.Fragment, log core.Logger) *UnifiedGeometry {
	log = core.OrNop(log)
	out := &UnifiedGeometry{}

	for _, f := range frags {
		if err := f.Validate(); err != nil {
			log.Warnf("flatten: skipping fragment: %v", err)
			continue
		}

		m := f.Transform.ObjectToWorld()
		nm := core.NormalMatrix(m)
		normals := f.Normals
		if len(normals) != len(f.Positions) {
			normals = core.ComputeNormals(f.Positions, f.Indices)
		}

		base := out.VertexCount()
		r := FragmentRange{
			Fragment:    f.ID,
			VertexStart: base,
			VertexCount: f.VertexCount(),
			IndexStart:  len(out.Indices),
			IndexCount:  len(f.Indices),
		}

		for i := 0; i < f.VertexCount(); i++ {
			p := m.Mul4x1(f.Vertex(i).Vec4(1.0)).Vec3()
			out.Positions = append(out.Positions, p.X(), p.Y(), p.Z())

			n := nm.Mul3x1(mgl32.Vec3{normals[i*3], normals[i*3+1], normals[i*3+2]})
			if l := n.Len(); l > 0 {
				n = n.Mul(1 / l)
			}
			out.Normals = append(out.Normals, n.X(), n.Y(), n.Z())
		}
		for _, idx := range f.Indices {
			out.Indices = append(out.Indices, uint32(base)+idx)
		}
		out.Ranges = append(out.Ranges, r)
	}
	return out
}
