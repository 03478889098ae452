package editor

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gekko3d/meshparts/meshrt/core"
	"github.com/gekko3d/meshparts/meshrt/geom"
)

func box(name string, lo, hi mgl32.Vec3) *core.Fragment {
	var pos []float32
	for i := 0; i < 8; i++ {
		p := lo
		if i&1 != 0 {
			p[0] = hi[0]
		}
		if i&2 != 0 {
			p[1] = hi[1]
		}
		if i&4 != 0 {
			p[2] = hi[2]
		}
		pos = append(pos, p[0], p[1], p[2])
	}
	idx := []uint32{0, 3, 1, 0, 2, 3, 4, 5, 7, 4, 7, 6, 0, 1, 5, 0, 5, 4, 2, 6, 7, 2, 7, 3, 0, 4, 6, 0, 6, 2, 1, 3, 7, 1, 7, 5}
	return core.NewFragment(name, pos, nil, idx)
}

type fakePicker map[[2]float32]core.FragmentID

func (p fakePicker) Pick(x, y float32) (core.FragmentID, bool) {
	id, ok := p[[2]float32{x, y}]
	return id, ok
}

type fakeProjector map[core.FragmentID][2]float32

func (p fakeProjector) Candidates() []core.FragmentID {
	var ids []core.FragmentID
	for id := range p {
		ids = append(ids, id)
	}
	return ids
}

func (p fakeProjector) ProjectCenter(id core.FragmentID) (float32, float32, bool) {
	c, ok := p[id]
	return c[0], c[1], ok
}

type fakeParts map[core.FragmentID][]core.FragmentID

func (p fakeParts) PartFragments(id core.FragmentID) []core.FragmentID { return p[id] }

type recorder struct {
	on, off  []core.FragmentID
	detached int
	attached int
}

func (r *recorder) Highlight(ids []core.FragmentID, on bool) {
	if on {
		r.on = append(r.on, ids...)
	} else {
		r.off = append(r.off, ids...)
	}
}

func (r *recorder) Detach() { r.detached++ }
func (r *recorder) Attach() { r.attached++ }

func newSelection() (*SelectionController, *recorder) {
	picker := fakePicker{{10, 10}: "a", {100, 100}: "b", {150, 150}: "c"}
	proj := fakeProjector{"a": {10, 10}, "b": {100, 100}, "c": {150, 150}}
	c := NewSelectionController(DefaultSelectionConfig(), picker, proj, nil)
	rec := &recorder{}
	c.SetHighlighter(rec)
	c.SetCameraControls(rec)
	return c, rec
}

func TestClickReplacesAndEmptyClears(t *testing.T) {
	c, rec := newSelection()

	c.PointerDown(10, 10, 0)
	c.PointerUp(10, 10)
	assert.Equal(t, []core.FragmentID{"a"}, c.IDs())
	assert.Equal(t, Selected, c.State())

	c.PointerDown(100, 100, 0)
	c.PointerUp(100, 100)
	assert.Equal(t, []core.FragmentID{"b"}, c.IDs())
	assert.Equal(t, []core.FragmentID{"a", "b"}, rec.on)
	assert.Equal(t, []core.FragmentID{"a"}, rec.off)

	c.PointerDown(500, 500, 0)
	c.PointerUp(500, 500)
	assert.Empty(t, c.IDs())
	assert.Equal(t, Idle, c.State())
	assert.Equal(t, []core.FragmentID{"a", "b"}, rec.off)
}

func TestToggleModifiers(t *testing.T) {
	c, _ := newSelection()
	c.PointerDown(10, 10, 0)
	c.PointerDown(100, 100, ModCtrl)
	assert.Equal(t, []core.FragmentID{"a", "b"}, c.IDs())

	c.PointerDown(10, 10, ModMeta)
	assert.Equal(t, []core.FragmentID{"b"}, c.IDs())

	// toggling on empty space keeps the selection
	c.PointerDown(500, 500, ModCtrl)
	assert.Equal(t, []core.FragmentID{"b"}, c.IDs())
}

func TestPartModeSelectsWholePart(t *testing.T) {
	c, rec := newSelection()
	c.SetPartIndex(fakeParts{"b": {"b", "c"}, "c": {"b", "c"}})
	c.PartMode = true

	c.PointerDown(100, 100, 0)
	assert.Equal(t, 1, rec.detached)
	c.PointerUp(100, 100)
	assert.Equal(t, 1, rec.attached)
	assert.Equal(t, []core.FragmentID{"b", "c"}, c.IDs())

	// a fragment outside any part selects alone
	c.PointerDown(10, 10, 0)
	assert.Equal(t, []core.FragmentID{"a"}, c.IDs())
}

func TestBoxSelectUsesReleaseRectangle(t *testing.T) {
	c, rec := newSelection()
	c.PointerDown(150, 150, 0)

	c.PointerDown(0, 0, ModShift)
	assert.Equal(t, BoxDragging, c.State())
	assert.Equal(t, 1, rec.detached)
	c.PointerMove(5, 5)
	c.PointerMove(200, 200)
	c.PointerMove(120, 120)
	c.PointerUp(50, 50)

	assert.Equal(t, []core.FragmentID{"a"}, c.IDs())
	assert.Equal(t, Selected, c.State())
	assert.Equal(t, 1, rec.attached)
}

func TestBoxSelectReplacesSelection(t *testing.T) {
	c, _ := newSelection()
	c.PointerDown(10, 10, 0)
	c.PointerDown(90, 90, ModShift)
	c.PointerUp(160, 160)
	assert.Equal(t, []core.FragmentID{"b", "c"}, c.IDs())
}

func TestPointerUpOffCanvasReattaches(t *testing.T) {
	c, rec := newSelection()
	c.PointerDown(0, 0, ModShift)
	c.PointerMove(-300, -40)
	c.PointerUp(-300, -40)

	assert.Equal(t, 1, rec.attached)
	assert.Equal(t, Idle, c.State())
	assert.Empty(t, c.IDs())

	// stray release with nothing in flight still reattaches
	c.PointerUp(9999, 9999)
	assert.Equal(t, 2, rec.attached)
}

func TestTinyBoxKeepsSelection(t *testing.T) {
	c, _ := newSelection()
	c.PointerDown(10, 10, 0)
	c.PointerDown(300, 300, ModShift)
	c.PointerUp(301, 301)
	assert.Equal(t, []core.FragmentID{"a"}, c.IDs())
}

func TestHoverAndClear(t *testing.T) {
	c, rec := newSelection()
	c.PointerMove(10, 10)
	assert.Equal(t, Hovering, c.State())
	assert.Equal(t, core.FragmentID("a"), c.Hovered())

	c.PointerDown(10, 10, 0)
	c.PointerDown(0, 0, ModShift)
	c.Clear()
	assert.Equal(t, Idle, c.State())
	assert.Empty(t, c.IDs())
	assert.Equal(t, 1, rec.attached)
	assert.Contains(t, rec.off, core.FragmentID("a"))
}

func testCamera() core.Camera {
	return core.NewPerspectiveCamera(mgl32.Vec3{0, 0, 10}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0}, 60, 0.1, 100, 800, 600)
}

func TestViewPicksNearestFragment(t *testing.T) {
	scene := core.NewScene()
	far := box("far", mgl32.Vec3{-6, -6, -6}, mgl32.Vec3{6, 6, -5})
	near := box("near", mgl32.Vec3{-0.5, -0.5, -0.5}, mgl32.Vec3{0.5, 0.5, 0.5})
	scene.AddFragment(far)
	scene.AddFragment(near)
	v := NewView(scene, testCamera())

	id, ok := v.Pick(400, 300)
	require.True(t, ok)
	assert.Equal(t, near.ID, id)

	hit := v.Raycast(v.PickRay(400, 300))
	require.NotNil(t, hit)
	// the ray starts on the near plane
	assert.InDelta(t, 9.4, hit.T, 1e-2)

	// outside near, still over far
	id, ok = v.Pick(400+120, 300)
	require.True(t, ok)
	assert.Equal(t, far.ID, id)

	_, ok = v.Pick(2, 2)
	assert.False(t, ok)

	x, y, ok := v.ProjectCenter(near.ID)
	require.True(t, ok)
	assert.InDelta(t, 400, x, 1e-3)
	assert.InDelta(t, 300, y, 1e-3)
	assert.Len(t, v.Candidates(), 2)
}

func TestViewFollowsLiveScale(t *testing.T) {
	scene := core.NewScene()
	f := box("f", mgl32.Vec3{-0.5, -0.5, -0.5}, mgl32.Vec3{0.5, 0.5, 0.5})
	scene.AddFragment(f)
	v := NewView(scene, testCamera())

	_, ok := v.Pick(400+120, 300)
	assert.False(t, ok)

	f.Live = core.LiveScale{Scale: mgl32.Vec3{6, 1, 1}}
	v.Invalidate()
	_, ok = v.Pick(400+120, 300)
	assert.True(t, ok)
}

type gizmoFixture struct {
	scene *core.Scene
	frag  *core.Fragment
	sel   *SelectionController
	giz   *GizmoController
}

func newGizmo(t *testing.T) gizmoFixture {
	t.Helper()
	scene := core.NewScene()
	f := box("hull", mgl32.Vec3{-1, 0, -2}, mgl32.Vec3{1, 1, 2})
	scene.AddFragment(f)
	adapter := geom.NewAdapter(scene, nil)
	v := NewView(scene, testCamera())
	sel := NewSelectionController(DefaultSelectionConfig(), v, v, nil)
	giz := NewGizmoController(DefaultGizmoConfig(), adapter, sel, nil)
	adapter.SetBusyFunc(func() bool { return sel.BoxDragging() || giz.Dragging() })
	return gizmoFixture{scene: scene, frag: f, sel: sel, giz: giz}
}

func assertVec(t *testing.T, want, got mgl32.Vec3) {
	t.Helper()
	assert.True(t, want.ApproxEqualThreshold(got, 1e-4), "want %v, got %v", want, got)
}

func TestGizmoReadoutAndCommittedBaseline(t *testing.T) {
	fx := newGizmo(t)
	fx.giz.DoubleClick(fx.frag.ID, true, false)
	require.Equal(t, Attached, fx.giz.State())

	require.NoError(t, fx.giz.BeginDrag(AxisX))
	require.NoError(t, fx.giz.Drag(mgl32.Vec3{1.5, 1, 1}))

	r, ok := fx.giz.Readout()
	require.True(t, ok)
	assertVec(t, mgl32.Vec3{3, 1, 4}, r.Dimensions)
	assertVec(t, mgl32.Vec3{1.5, 1, 1}, fx.frag.Live.Scale)
	// nothing baked yet
	assertVec(t, mgl32.Vec3{2, 1, 4}, fx.frag.WorldAABB.Size())

	require.NoError(t, fx.giz.EndDrag())
	assert.True(t, fx.frag.Live.IsIdentity())
	assertVec(t, mgl32.Vec3{3, 1, 4}, fx.frag.WorldAABB.Size())
	assertVec(t, mgl32.Vec3{0, 0.5, 0}, fx.frag.WorldAABB.Center())

	st, _ := fx.giz.Current()
	assertVec(t, mgl32.Vec3{1.5, 1, 1}, st.Baseline)
	r, _ = fx.giz.Readout()
	assertVec(t, mgl32.Vec3{3, 1, 4}, r.Dimensions)
	assertVec(t, mgl32.Vec3{1.5, 1, 1}, r.Committed)
}

func TestGizmoScalesCompose(t *testing.T) {
	fx := newGizmo(t)
	fx.giz.DoubleClick(fx.frag.ID, true, false)

	require.NoError(t, fx.giz.BeginDrag(AxisUniform))
	require.NoError(t, fx.giz.Drag(mgl32.Vec3{1.5, 1.5, 1.5}))
	require.NoError(t, fx.giz.EndDrag())

	// detach and reattach: the baseline survives
	fx.giz.DoubleClick(fx.frag.ID, true, false)
	require.Equal(t, Detached, fx.giz.State())
	fx.giz.DoubleClick(fx.frag.ID, true, false)
	st, _ := fx.giz.Current()
	assertVec(t, mgl32.Vec3{1.5, 1.5, 1.5}, st.Baseline)

	require.NoError(t, fx.giz.BeginDrag(AxisUniform))
	require.NoError(t, fx.giz.Drag(mgl32.Vec3{2, 2, 2}))
	require.NoError(t, fx.giz.EndDrag())

	assertVec(t, mgl32.Vec3{6, 3, 12}, fx.frag.WorldAABB.Size())
	assertVec(t, mgl32.Vec3{3, 3, 3}, fx.giz.Committed(st.Root))
}

func TestGizmoDetachMidDragDoesNotBake(t *testing.T) {
	fx := newGizmo(t)
	fx.giz.DoubleClick(fx.frag.ID, true, false)
	require.NoError(t, fx.giz.BeginDrag(AxisZ))
	require.NoError(t, fx.giz.Drag(mgl32.Vec3{1, 1, 3}))

	fx.giz.Detach()
	assert.True(t, fx.frag.Live.IsIdentity())
	assertVec(t, mgl32.Vec3{2, 1, 4}, fx.frag.WorldAABB.Size())
	assert.False(t, fx.giz.Dragging())
	assert.ErrorIs(t, fx.giz.BeginDrag(AxisZ), ErrGizmoDetached)
}

func TestGizmoBakeRejectedDuringBoxSelect(t *testing.T) {
	fx := newGizmo(t)
	fx.giz.DoubleClick(fx.frag.ID, true, false)
	require.NoError(t, fx.giz.BeginDrag(AxisX))
	require.NoError(t, fx.giz.Drag(mgl32.Vec3{2, 1, 1}))

	fx.sel.PointerDown(0, 0, ModShift)
	err := fx.giz.EndDrag()
	assert.ErrorIs(t, err, geom.ErrEditInFlight)
	assertVec(t, mgl32.Vec3{2, 1, 4}, fx.frag.WorldAABB.Size())

	st, _ := fx.giz.Current()
	assertVec(t, mgl32.Vec3{1, 1, 1}, fx.giz.Committed(st.Root))
	assertVec(t, mgl32.Vec3{1, 1, 1}, st.Live)
}

func TestGizmoDragPointer(t *testing.T) {
	fx := newGizmo(t)
	fx.giz.DoubleClick(fx.frag.ID, true, false)
	require.NoError(t, fx.giz.BeginDrag(AxisY))
	require.NoError(t, fx.giz.DragPointer(0, -30))
	require.NoError(t, fx.giz.DragPointer(0, -20))

	r, _ := fx.giz.Readout()
	assertVec(t, mgl32.Vec3{1, 1.5, 1}, r.Live)
	assert.True(t, r.Dragging)

	require.NoError(t, fx.giz.DragPointer(-1000, 0))
	r, _ = fx.giz.Readout()
	assert.InDelta(t, DefaultGizmoConfig().MinScale, r.Live.Y(), 1e-6)
}

func TestGizmoToggleAndDoubleClickRules(t *testing.T) {
	fx := newGizmo(t)
	other := box("wing", mgl32.Vec3{3, 0, 0}, mgl32.Vec3{4, 1, 1})
	fx.scene.AddFragment(other)

	fx.giz.Toggle()
	assert.Equal(t, Detached, fx.giz.State(), "nothing selected")

	fx.sel.Replace([]core.FragmentID{fx.frag.ID})
	fx.giz.Toggle()
	assert.Equal(t, Attached, fx.giz.State())
	fx.giz.Toggle()
	assert.Equal(t, Detached, fx.giz.State())

	fx.giz.DoubleClick(fx.frag.ID, true, true)
	assert.Equal(t, Detached, fx.giz.State(), "double-click over UI is ignored")

	fx.giz.DoubleClick(fx.frag.ID, true, false)
	fx.giz.DoubleClick(other.ID, true, false)
	st, ok := fx.giz.Current()
	require.True(t, ok)
	assert.Equal(t, []core.FragmentID{other.ID}, st.Fragments)

	fx.giz.DoubleClick("", false, false)
	assert.Equal(t, Detached, fx.giz.State())
}

func TestGizmoAttachesToWholePart(t *testing.T) {
	fx := newGizmo(t)
	other := box("wing", mgl32.Vec3{1, 0, 0}, mgl32.Vec3{3, 1, 1})
	fx.scene.AddFragment(other)
	fx.giz.SetPartIndex(fakeParts{fx.frag.ID: {fx.frag.ID, other.ID}})

	fx.giz.DoubleClick(fx.frag.ID, true, false)
	st, ok := fx.giz.Current()
	require.True(t, ok)
	assert.Len(t, st.Fragments, 2)
	assertVec(t, mgl32.Vec3{4, 1, 4}, st.Size)
	assert.Equal(t, RootKey([]core.FragmentID{other.ID, fx.frag.ID}), st.Root)
}

func TestGizmoHandles(t *testing.T) {
	fx := newGizmo(t)
	assert.Empty(t, fx.giz.Handles())
	fx.giz.DoubleClick(fx.frag.ID, true, false)

	hs := fx.giz.Handles()
	require.Len(t, hs, 8)
	assert.Equal(t, HandleCube, hs[0].Type)
	assertVec(t, mgl32.Vec3{2, 1, 4}, hs[0].Scale)
	assert.Equal(t, HandleLine, hs[1].Type)
	assert.Equal(t, AxisX, hs[1].Axis)

	cam := testCamera()
	grip := hs[4]
	require.Equal(t, AxisX, grip.Axis)
	px, py, ok := cam.Project(grip.Position)
	require.True(t, ok)
	axis, hit := fx.giz.PickGrip(cam, px+2, py)
	assert.True(t, hit)
	assert.Equal(t, AxisX, axis)
}
