// Package editor holds the interactive tools: click and box selection, and
// the scale gizmo.
package editor

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/meshparts/meshrt/bvh"
	"github.com/gekko3d/meshparts/meshrt/core"
)

type Ray struct {
	Origin    mgl32.Vec3
	Direction mgl32.Vec3
}

type HitResult struct {
	Fragment core.FragmentID
	T        float32
	Point    mgl32.Vec3
}

// View binds the scene to the active camera. It answers picking and
// projection queries for the selection controller.
type View struct {
	scene  *core.Scene
	camera core.Camera

	tree  *bvh.Tree
	frags []*core.Fragment
	dirty bool
}

func NewView(scene *core.Scene, cam core.Camera) *View {
	return &View{scene: scene, camera: cam, dirty: true}
}

func (v *View) Camera() core.Camera { return v.camera }

func (v *View) SetCamera(cam core.Camera) {
	v.camera = cam
}

// Invalidate forces the next query to rebuild the hierarchy. Call it after
// fragments were added, split, moved or baked.
func (v *View) Invalidate() {
	v.dirty = true
}

func (v *View) refresh() {
	if !v.dirty && len(v.frags) == v.scene.Len() {
		return
	}
	v.frags = v.scene.Fragments()
	boxes := make([][2]mgl32.Vec3, len(v.frags))
	for i, f := range v.frags {
		box := f.RenderAABB()
		boxes[i] = [2]mgl32.Vec3{box.Min, box.Max}
	}
	b := &bvh.Builder{}
	v.tree = b.Build(boxes)
	v.dirty = false
}

func (v *View) PickRay(x, y float32) Ray {
	o, d := v.camera.ScreenRay(x, y)
	return Ray{Origin: o, Direction: d}
}

// Pick returns the nearest fragment under pixel (x, y).
func (v *View) Pick(x, y float32) (core.FragmentID, bool) {
	hit := v.Raycast(v.PickRay(x, y))
	if hit == nil {
		return "", false
	}
	return hit.Fragment, true
}

// Raycast tests fragment boxes through the hierarchy, then triangles of the
// candidates in entry order.
func (v *View) Raycast(ray Ray) *HitResult {
	v.refresh()
	var best *HitResult
	for _, h := range v.tree.Raycast(ray.Origin, ray.Direction, math.MaxFloat32) {
		if best != nil && h.T > best.T {
			break
		}
		f := v.frags[h.Index]
		t, ok := intersectFragment(f, ray)
		if !ok || (best != nil && t >= best.T) {
			continue
		}
		best = &HitResult{Fragment: f.ID, T: t, Point: ray.Origin.Add(ray.Direction.Mul(t))}
	}
	return best
}

func intersectFragment(f *core.Fragment, ray Ray) (float32, bool) {
	o2w := f.RenderMatrix()
	w2o := o2w.Inv()
	ro := w2o.Mul4x1(ray.Origin.Vec4(1.0)).Vec3()
	rd := w2o.Mul4x1(ray.Direction.Vec4(0.0)).Vec3()

	closest := float32(math.MaxFloat32)
	found := false
	vc := uint32(f.VertexCount())
	for i := 0; i+2 < len(f.Indices); i += 3 {
		a, b, c := f.Indices[i], f.Indices[i+1], f.Indices[i+2]
		if a >= vc || b >= vc || c >= vc {
			continue
		}
		if t, ok := intersectTriangle(ro, rd, f.Vertex(int(a)), f.Vertex(int(b)), f.Vertex(int(c))); ok && t < closest {
			closest, found = t, true
		}
	}
	if !found {
		return 0, false
	}
	// distances differ between spaces under scale
	hit := o2w.Mul4x1(ro.Add(rd.Mul(closest)).Vec4(1.0)).Vec3()
	return hit.Sub(ray.Origin).Len(), true
}

// intersectTriangle is Moller-Trumbore, two sided.
func intersectTriangle(o, d, v0, v1, v2 mgl32.Vec3) (float32, bool) {
	const eps = 1e-7
	e1 := v1.Sub(v0)
	e2 := v2.Sub(v0)
	p := d.Cross(e2)
	det := e1.Dot(p)
	if det > -eps && det < eps {
		return 0, false
	}
	inv := 1 / det
	s := o.Sub(v0)
	u := s.Dot(p) * inv
	if u < 0 || u > 1 {
		return 0, false
	}
	q := s.Cross(e1)
	w := d.Dot(q) * inv
	if w < 0 || u+w > 1 {
		return 0, false
	}
	t := e2.Dot(q) * inv
	if t <= eps {
		return 0, false
	}
	return t, true
}

// Candidates lists every fragment box selection may consider.
func (v *View) Candidates() []core.FragmentID {
	frags := v.scene.Fragments()
	ids := make([]core.FragmentID, len(frags))
	for i, f := range frags {
		ids[i] = f.ID
	}
	return ids
}

// ProjectCenter projects the displayed world box center of a fragment.
func (v *View) ProjectCenter(id core.FragmentID) (float32, float32, bool) {
	f := v.scene.Fragment(id)
	if f == nil {
		return 0, 0, false
	}
	return v.camera.Project(f.RenderAABB().Center())
}
