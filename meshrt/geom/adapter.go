package geom

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/meshparts/meshrt/core"
)

var ErrEditInFlight = errors.New("geometry edit rejected: interaction in flight")

// BusyFunc reports whether a drag or box-select is in flight.
type BusyFunc func() bool

// Adapter is the only writer of fragment vertex data.
type Adapter struct {
	scene *core.Scene
	log   core.Logger
	busy  BusyFunc
}

func NewAdapter(scene *core.Scene, log core.Logger) *Adapter {
	return &Adapter{scene: scene, log: core.OrNop(log)}
}

// SetBusyFunc installs the interaction guard consulted before every write.
func (a *Adapter) SetBusyFunc(fn BusyFunc) {
	a.busy = fn
}

// Busy reports whether the interaction guard currently rejects edits.
func (a *Adapter) Busy() bool {
	return a.busy != nil && a.busy()
}

func (a *Adapter) Scene() *core.Scene {
	return a.scene
}

// Flatten flattens the given fragments, or the whole scene when ids is empty.
func (a *Adapter) Flatten(ids ...core.FragmentID) *UnifiedGeometry {
	return Flatten(a.fragments(ids), a.log)
}

func (a *Adapter) fragments(ids []core.FragmentID) []*core.Fragment {
	if len(ids) == 0 {
		return a.scene.Fragments()
	}
	var out []*core.Fragment
	for _, id := range ids {
		if f := a.scene.Fragment(id); f != nil {
			out = append(out, f)
		}
	}
	return out
}

// ApplyResult describes how an edited buffer was matched to fragments.
type ApplyResult struct {
	Written  []core.FragmentID
	Fallback bool
}

// Apply writes a world-space buffer back into the target fragments.
func (a *Adapter) Apply(buf *UnifiedGeometry, targets []core.FragmentID) (ApplyResult, error) {
	var res ApplyResult
	if a.Busy() {
		return res, ErrEditInFlight
	}
	if buf == nil || len(targets) == 0 {
		return res, nil
	}

	live := make(map[core.FragmentID]*core.Fragment, len(targets))
	var order []*core.Fragment
	for _, id := range targets {
		if f := a.scene.Fragment(id); f != nil {
			live[id] = f
			order = append(order, f)
		}
	}
	if len(order) == 0 {
		// asset reloaded underneath us
		return res, nil
	}

	// 1. exact range correspondence
	for _, r := range buf.Ranges {
		f, ok := live[r.Fragment]
		if !ok || f.VertexCount() != r.VertexCount {
			continue
		}
		writeRange(f, buf, r.VertexStart, r.VertexCount)
		res.Written = append(res.Written, f.ID)
		delete(live, r.Fragment)
	}
	if len(res.Written) > 0 {
		return res, nil
	}

	// 2. one fragment with exactly the buffer's vertex count
	n := buf.VertexCount()
	for _, f := range order {
		if f.VertexCount() == n {
			writeRange(f, buf, 0, n)
			res.Written = append(res.Written, f.ID)
			return res, nil
		}
	}

	// 3. best effort: primary fragment gets the overlapping prefix
	primary := order[0]
	count := min(n, primary.VertexCount())
	a.log.Warnf("apply: %d vertices match no target exactly, writing %d into primary fragment %q", n, count, primary.Name)
	writeRange(primary, buf, 0, count)
	res.Written = append(res.Written, primary.ID)
	res.Fallback = true
	return res, nil
}

// writeRange converts world data back to object space for one fragment.
func writeRange(f *core.Fragment, buf *UnifiedGeometry, start, count int) {
	w2o := f.Transform.WorldToObject()
	nm := core.NormalMatrix(w2o)
	hasNormals := len(buf.Normals) == len(buf.Positions)
	if len(f.Normals) != len(f.Positions) {
		f.Normals = make([]float32, len(f.Positions))
	}

	for i := 0; i < count; i++ {
		src := (start + i) * 3
		p := mgl32.Vec3{buf.Positions[src], buf.Positions[src+1], buf.Positions[src+2]}
		p = w2o.Mul4x1(p.Vec4(1.0)).Vec3()
		f.Positions[i*3], f.Positions[i*3+1], f.Positions[i*3+2] = p.X(), p.Y(), p.Z()

		if hasNormals {
			n := nm.Mul3x1(mgl32.Vec3{buf.Normals[src], buf.Normals[src+1], buf.Normals[src+2]})
			if l := n.Len(); l > 0 {
				n = n.Mul(1 / l)
			}
			f.Normals[i*3], f.Normals[i*3+1], f.Normals[i*3+2] = n.X(), n.Y(), n.Z()
		}
	}
	f.MarkDirty()
	f.UpdateWorldAABB()
}

// BakeScale folds a world-space scale about pivot into the targets' vertices.
func (a *Adapter) BakeScale(ids []core.FragmentID, pivot, ratio mgl32.Vec3) error {
	if ratio.X() == 0 || ratio.Y() == 0 || ratio.Z() == 0 {
		return fmt.Errorf("bake scale: degenerate ratio %v", ratio)
	}
	if a.Busy() {
		return ErrEditInFlight
	}
	buf := a.Flatten(ids...)
	if buf.VertexCount() == 0 {
		return nil
	}

	s := core.LiveScale{Pivot: pivot, Scale: ratio}.Matrix()
	nm := core.NormalMatrix(s)
	for i := 0; i+2 < len(buf.Positions); i += 3 {
		p := s.Mul4x1(mgl32.Vec4{buf.Positions[i], buf.Positions[i+1], buf.Positions[i+2], 1}).Vec3()
		buf.Positions[i], buf.Positions[i+1], buf.Positions[i+2] = p.X(), p.Y(), p.Z()

		n := nm.Mul3x1(mgl32.Vec3{buf.Normals[i], buf.Normals[i+1], buf.Normals[i+2]})
		if l := n.Len(); l > 0 {
			n = n.Mul(1 / l)
		}
		buf.Normals[i], buf.Normals[i+1], buf.Normals[i+2] = n.X(), n.Y(), n.Z()
	}

	if _, err := a.Apply(buf, ids); err != nil {
		return fmt.Errorf("bake scale: %w", err)
	}
	a.log.Debugf("baked scale %v about %v into %d fragments", ratio, pivot, len(buf.Ranges))
	return nil
}

// Piece is one split-off part of a fragment, in the fragment's object space.
type Piece struct {
	Positions  []float32
	Normals    []float32
	Indices    []uint32
	Subdivided bool
}

// Split replaces a fragment with one child per piece and returns the child ids.
// A missing fragment is a no-op.
func (a *Adapter) Split(id core.FragmentID, pieces []Piece) []core.FragmentID {
	src := a.scene.Fragment(id)
	if src == nil || len(pieces) == 0 {
		return nil
	}

	children := make([]*core.Fragment, 0, len(pieces))
	ids := make([]core.FragmentID, 0, len(pieces))
	for i, p := range pieces {
		c := core.NewFragment(fmt.Sprintf("%s.%d", src.Name, i), p.Positions, p.Normals, p.Indices)
		c.Transform = src.Transform
		c.Parent = src.ID
		c.Subdivided = p.Subdivided || src.Subdivided
		c.UpdateWorldAABB()
		children = append(children, c)
		ids = append(ids, c.ID)
	}
	a.scene.Replace(id, children)
	a.log.Debugf("split fragment %q into %d pieces", src.Name, len(pieces))
	return ids
}
