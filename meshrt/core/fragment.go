package core

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

var ErrMalformedFragment = errors.New("malformed fragment")

type FragmentID string

func NewFragmentID() FragmentID {
	return FragmentID(uuid.NewString())
}

// Fragment is one indexed triangle sub-mesh of a loaded asset. Positions and
// Normals are object space, three floats per vertex.
type Fragment struct {
	ID        FragmentID
	Name      string
	Positions []float32
	Normals   []float32
	Indices   []uint32
	Transform Transform

	// Live is the renderer-side scale applied by the gizmo mid-drag.
	Live LiveScale

	// Parent is set on fragments produced by splitting another fragment.
	Parent FragmentID
	// Subdivided marks fragments cut by geometric subdivision.
	Subdivided bool

	WorldAABB AABB
	localAABB AABB
	aabbDirty bool
}

func NewFragment(name string, positions, normals []float32, indices []uint32) *Fragment {
	f := &Fragment{
		ID:        NewFragmentID(),
		Name:      name,
		Positions: positions,
		Normals:   normals,
		Indices:   indices,
		Transform: NewTransform(),
		Live:      IdentityLiveScale(),
		aabbDirty: true,
	}
	if len(normals) != len(positions) && len(positions)%3 == 0 {
		f.Normals = ComputeNormals(positions, indices)
	}
	f.UpdateWorldAABB()
	return f
}

func (f *Fragment) VertexCount() int   { return len(f.Positions) / 3 }
func (f *Fragment) TriangleCount() int { return len(f.Indices) / 3 }

// Validate reports missing or inconsistent buffers.
func (f *Fragment) Validate() error {
	switch {
	case len(f.Positions) == 0:
		return fmt.Errorf("%w: %q has no positions", ErrMalformedFragment, f.Name)
	case len(f.Positions)%3 != 0:
		return fmt.Errorf("%w: %q position buffer length %d", ErrMalformedFragment, f.Name, len(f.Positions))
	case len(f.Indices) == 0:
		return fmt.Errorf("%w: %q has no indices", ErrMalformedFragment, f.Name)
	case len(f.Indices)%3 != 0:
		return fmt.Errorf("%w: %q index buffer length %d", ErrMalformedFragment, f.Name, len(f.Indices))
	case len(f.Normals) != 0 && len(f.Normals) != len(f.Positions):
		return fmt.Errorf("%w: %q normal buffer length %d", ErrMalformedFragment, f.Name, len(f.Normals))
	}
	vc := uint32(f.VertexCount())
	for i, idx := range f.Indices {
		if idx >= vc {
			return fmt.Errorf("%w: %q index %d out of range (%d >= %d)", ErrMalformedFragment, f.Name, i, idx, vc)
		}
	}
	return nil
}

// MarkDirty forces the next UpdateWorldAABB to rebound the vertex data.
func (f *Fragment) MarkDirty() {
	f.aabbDirty = true
}

// UpdateWorldAABB refreshes the cached bounds.
func (f *Fragment) UpdateWorldAABB() {
	if f.aabbDirty || f.localAABB == (AABB{}) {
		f.localAABB = PositionsAABB(f.Positions)
		f.aabbDirty = false
	}
	f.WorldAABB = f.localAABB.Transform(f.Transform.ObjectToWorld())
}

// RenderMatrix is what a renderer draws with: the persisted world transform
// followed by the ephemeral live scale.
func (f *Fragment) RenderMatrix() mgl32.Mat4 {
	return f.Live.Matrix().Mul4(f.Transform.ObjectToWorld())
}

// RenderAABB is the world box as currently displayed, live scale included.
func (f *Fragment) RenderAABB() AABB {
	return f.localAABB.Transform(f.RenderMatrix())
}

func (f *Fragment) Vertex(i int) mgl32.Vec3 {
	return mgl32.Vec3{f.Positions[i*3], f.Positions[i*3+1], f.Positions[i*3+2]}
}

// ComputeNormals returns area weighted vertex normals.
func ComputeNormals(positions []float32, indices []uint32) []float32 {
	normals := make([]float32, len(positions))
	vc := uint32(len(positions) / 3)
	at := func(i uint32) mgl32.Vec3 {
		return mgl32.Vec3{positions[i*3], positions[i*3+1], positions[i*3+2]}
	}
	for t := 0; t+2 < len(indices); t += 3 {
		a, b, c := indices[t], indices[t+1], indices[t+2]
		if a >= vc || b >= vc || c >= vc {
			continue
		}
		n := at(b).Sub(at(a)).Cross(at(c).Sub(at(a)))
		for _, v := range [3]uint32{a, b, c} {
			normals[v*3] += n.X()
			normals[v*3+1] += n.Y()
			normals[v*3+2] += n.Z()
		}
	}
	for i := 0; i+2 < len(normals); i += 3 {
		n := mgl32.Vec3{normals[i], normals[i+1], normals[i+2]}
		if l := n.Len(); l > 0 {
			n = n.Mul(1 / l)
		}
		normals[i], normals[i+1], normals[i+2] = n.X(), n.Y(), n.Z()
	}
	return normals
}
