package editor

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/meshparts/meshrt/core"
	"github.com/gekko3d/meshparts/meshrt/geom"
)

var ErrGizmoDetached = errors.New("scale gizmo is not attached")

type Axis int

const (
	AxisUniform Axis = iota
	AxisX
	AxisY
	AxisZ
)

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	default:
		return "uniform"
	}
}

// factor expands a scalar drag factor onto the axis.
func (a Axis) factor(f float32) mgl32.Vec3 {
	switch a {
	case AxisX:
		return mgl32.Vec3{f, 1, 1}
	case AxisY:
		return mgl32.Vec3{1, f, 1}
	case AxisZ:
		return mgl32.Vec3{1, 1, f}
	default:
		return mgl32.Vec3{f, f, f}
	}
}

type GizmoState int

const (
	Detached GizmoState = iota
	Attached
)

type GizmoConfig struct {
	ToggleKey string `toml:"toggle_key"`
	// Sensitivity is the scale change per pixel of pointer drag.
	Sensitivity float32 `toml:"sensitivity"`
	MinScale    float32 `toml:"min_scale"`
	// GripRadius is the pixel distance within which a handle grip is hit.
	GripRadius float32 `toml:"grip_radius"`
}

func DefaultGizmoConfig() GizmoConfig {
	return GizmoConfig{
		ToggleKey:   "s",
		Sensitivity: 0.01,
		MinScale:    0.05,
		GripRadius:  12,
	}
}

// ScaleState is the gizmo's hold on one root (a part or a lone fragment).
type ScaleState struct {
	Root      string
	Fragments []core.FragmentID
	Pivot     mgl32.Vec3
	// Size is the world size measured when Baseline was taken.
	Size     mgl32.Vec3
	Baseline mgl32.Vec3
	Live     mgl32.Vec3

	dragging  bool
	axis      Axis
	dragStart mgl32.Vec3
	pointer   float32
}

// ScaleReadout is what the UI shows next to the handle.
type ScaleReadout struct {
	Root       string     `json:"root"`
	Live       mgl32.Vec3 `json:"live"`
	Committed  mgl32.Vec3 `json:"committed"`
	Dimensions mgl32.Vec3 `json:"dimensions"`
	Dragging   bool       `json:"dragging"`
}

// GizmoController drives a scale handle. Mid-drag the scale is only shown
// through each fragment's Live transform; releasing bakes it into the
// vertex buffers through the adapter.
type GizmoController struct {
	cfg     GizmoConfig
	adapter *geom.Adapter
	parts   PartIndex
	sel     *SelectionController
	log     core.Logger

	committed map[string]mgl32.Vec3
	state     GizmoState
	cur       *ScaleState
}

func NewGizmoController(cfg GizmoConfig, adapter *geom.Adapter, sel *SelectionController, log core.Logger) *GizmoController {
	if cfg.MinScale <= 0 {
		cfg.MinScale = DefaultGizmoConfig().MinScale
	}
	return &GizmoController{
		cfg:       cfg,
		adapter:   adapter,
		sel:       sel,
		log:       core.OrNop(log),
		committed: make(map[string]mgl32.Vec3),
	}
}

func (g *GizmoController) SetPartIndex(p PartIndex) { g.parts = p }

func (g *GizmoController) State() GizmoState { return g.state }

func (g *GizmoController) Dragging() bool { return g.cur != nil && g.cur.dragging }

// Current returns a copy of the attached state.
func (g *GizmoController) Current() (ScaleState, bool) {
	if g.cur == nil {
		return ScaleState{}, false
	}
	s := *g.cur
	s.Fragments = append([]core.FragmentID(nil), g.cur.Fragments...)
	return s, true
}

// Committed is the baked scale of a root relative to its load-time size.
func (g *GizmoController) Committed(root string) mgl32.Vec3 {
	if c, ok := g.committed[root]; ok {
		return c
	}
	return mgl32.Vec3{1, 1, 1}
}

// RootKey identifies a group of fragments independent of order.
func RootKey(ids []core.FragmentID) string {
	s := make([]string, len(ids))
	for i, id := range ids {
		s[i] = string(id)
	}
	sort.Strings(s)
	return strings.Join(s, ",")
}

// DoubleClick attaches to the part under the pointer, or detaches when the
// click lands on the attached root, on empty space or on UI.
func (g *GizmoController) DoubleClick(id core.FragmentID, hit, overUI bool) {
	if overUI {
		return
	}
	if !hit {
		g.Detach()
		return
	}
	ids := g.expand(id)
	if g.cur != nil && g.cur.Root == RootKey(ids) {
		g.Detach()
		return
	}
	g.Attach(ids)
}

// Toggle flips between detached and attached to the current selection.
func (g *GizmoController) Toggle() {
	if g.state == Attached {
		g.Detach()
		return
	}
	if g.sel == nil {
		return
	}
	if ids := g.sel.IDs(); len(ids) > 0 {
		g.Attach(ids)
	}
}

func (g *GizmoController) expand(id core.FragmentID) []core.FragmentID {
	if g.parts != nil {
		if ids := g.parts.PartFragments(id); len(ids) > 0 {
			return ids
		}
	}
	return []core.FragmentID{id}
}

// Attach grabs a root, detaching from any previous one.
func (g *GizmoController) Attach(ids []core.FragmentID) {
	g.Detach()
	var live []core.FragmentID
	for _, id := range ids {
		if g.adapter.Scene().Fragment(id) != nil {
			live = append(live, id)
		}
	}
	if len(live) == 0 {
		return
	}
	root := RootKey(live)
	base := g.Committed(root)
	box := g.bounds(live)
	g.cur = &ScaleState{
		Root:      root,
		Fragments: live,
		Pivot:     box.Center(),
		Size:      box.Size(),
		Baseline:  base,
		Live:      base,
	}
	g.state = Attached
	g.log.Debugf("gizmo attached to %d fragments, baseline %v", len(live), base)
}

// Detach drops the handle. A drag in progress is abandoned, not baked.
func (g *GizmoController) Detach() {
	if g.cur == nil {
		return
	}
	if g.cur.dragging {
		g.cur.dragging = false
		g.resetLive()
	}
	g.cur = nil
	g.state = Detached
}

func (g *GizmoController) BeginDrag(axis Axis) error {
	if g.cur == nil {
		return ErrGizmoDetached
	}
	g.cur.dragging = true
	g.cur.axis = axis
	g.cur.dragStart = g.cur.Live
	g.cur.pointer = 0
	return nil
}

// Drag sets the live scale to the drag-start scale times factor.
func (g *GizmoController) Drag(factor mgl32.Vec3) error {
	if g.cur == nil {
		return ErrGizmoDetached
	}
	if !g.cur.dragging {
		return fmt.Errorf("gizmo drag: no drag in progress")
	}
	live := mul(g.cur.dragStart, factor)
	for i := 0; i < 3; i++ {
		live[i] = max(live[i], g.cfg.MinScale)
	}
	g.cur.Live = live
	g.pushLive()
	return nil
}

// DragPointer converts pointer motion along the drag axis into a factor.
// Right and up grow the part.
func (g *GizmoController) DragPointer(dx, dy float32) error {
	if g.cur == nil {
		return ErrGizmoDetached
	}
	if !g.cur.dragging {
		return fmt.Errorf("gizmo drag: no drag in progress")
	}
	g.cur.pointer += dx - dy
	f := max(1+g.cur.pointer*g.cfg.Sensitivity, g.cfg.MinScale)
	return g.Drag(g.cur.axis.factor(f))
}

// EndDrag bakes the change since the last commit and clears the live scale.
func (g *GizmoController) EndDrag() error {
	if g.cur == nil || !g.cur.dragging {
		return nil
	}
	cur := g.cur
	cur.dragging = false

	prev := g.Committed(cur.Root)
	ratio := div(cur.Live, prev)
	g.resetLive()
	if ratio.ApproxEqual(mgl32.Vec3{1, 1, 1}) {
		cur.Live = prev
		return nil
	}

	if err := g.adapter.BakeScale(cur.Fragments, cur.Pivot, ratio); err != nil {
		cur.Live = prev
		return fmt.Errorf("gizmo: %w", err)
	}
	g.committed[cur.Root] = cur.Live

	box := g.bounds(cur.Fragments)
	cur.Size = box.Size()
	cur.Baseline = cur.Live
	g.log.Infof("gizmo baked scale %v, committed %v", ratio, cur.Live)
	return nil
}

// Readout reports the live and committed scale and the resulting size.
func (g *GizmoController) Readout() (ScaleReadout, bool) {
	if g.cur == nil {
		return ScaleReadout{}, false
	}
	return ScaleReadout{
		Root:       g.cur.Root,
		Live:       g.cur.Live,
		Committed:  g.Committed(g.cur.Root),
		Dimensions: mul(g.cur.Size, div(g.cur.Live, g.cur.Baseline)),
		Dragging:   g.cur.dragging,
	}, true
}

// Forget drops committed scales, for a newly loaded asset.
func (g *GizmoController) Forget() {
	g.Detach()
	g.committed = make(map[string]mgl32.Vec3)
}

func (g *GizmoController) pushLive() {
	rel := div(g.cur.Live, g.Committed(g.cur.Root))
	for _, id := range g.cur.Fragments {
		if f := g.adapter.Scene().Fragment(id); f != nil {
			f.Live = core.LiveScale{Pivot: g.cur.Pivot, Scale: rel}
		}
	}
}

func (g *GizmoController) resetLive() {
	for _, id := range g.cur.Fragments {
		if f := g.adapter.Scene().Fragment(id); f != nil {
			f.Live = core.IdentityLiveScale()
		}
	}
}

func (g *GizmoController) bounds(ids []core.FragmentID) core.AABB {
	box := core.EmptyAABB()
	for _, id := range ids {
		if f := g.adapter.Scene().Fragment(id); f != nil {
			f.UpdateWorldAABB()
			box = box.Union(f.WorldAABB)
		}
	}
	return box
}

func mul(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{a[0] * b[0], a[1] * b[1], a[2] * b[2]}
}

func div(a, b mgl32.Vec3) mgl32.Vec3 {
	var out mgl32.Vec3
	for i := 0; i < 3; i++ {
		if b[i] != 0 {
			out[i] = a[i] / b[i]
		} else {
			out[i] = a[i]
		}
	}
	return out
}
