package editor

import (
	"sort"

	"github.com/gekko3d/meshparts/meshrt/core"
)

type Picker interface {
	Pick(x, y float32) (core.FragmentID, bool)
}

type Projector interface {
	Candidates() []core.FragmentID
	ProjectCenter(id core.FragmentID) (x, y float32, ok bool)
}

// PartIndex resolves a fragment to every fragment of its part.
type PartIndex interface {
	PartFragments(id core.FragmentID) []core.FragmentID
}

type Highlighter interface {
	Highlight(ids []core.FragmentID, on bool)
}

// CameraControls is the host's orbit/pan controller.
type CameraControls interface {
	Detach()
	Attach()
}

type Modifiers uint8

const (
	ModShift Modifiers = 1 << iota
	ModCtrl
	ModMeta
	ModAlt
)

func (m Modifiers) Has(o Modifiers) bool { return m&o != 0 }

// Toggle is Ctrl on most platforms and Cmd on macOS.
func (m Modifiers) Toggle() bool { return m.Has(ModCtrl) || m.Has(ModMeta) }

type SelectionState int

const (
	Idle SelectionState = iota
	Hovering
	BoxDragging
	Selected
)

func (s SelectionState) String() string {
	switch s {
	case Hovering:
		return "hovering"
	case BoxDragging:
		return "box-dragging"
	case Selected:
		return "selected"
	default:
		return "idle"
	}
}

// Selection is a set of fragment ids.
type Selection map[core.FragmentID]struct{}

func (s Selection) Has(id core.FragmentID) bool {
	_, ok := s[id]
	return ok
}

// IDs returns the members sorted.
func (s Selection) IDs() []core.FragmentID {
	ids := make([]core.FragmentID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Box is a screen rectangle between two corners in any order.
type Box struct {
	X0, Y0, X1, Y1 float32
}

func (b Box) Normalized() Box {
	return Box{min(b.X0, b.X1), min(b.Y0, b.Y1), max(b.X0, b.X1), max(b.Y0, b.Y1)}
}

func (b Box) Contains(x, y float32) bool {
	n := b.Normalized()
	return x >= n.X0 && x <= n.X1 && y >= n.Y0 && y <= n.Y1
}

func (b Box) Width() float32  { n := b.Normalized(); return n.X1 - n.X0 }
func (b Box) Height() float32 { n := b.Normalized(); return n.Y1 - n.Y0 }

type SelectionConfig struct {
	// MinBoxSize is the smallest drag, in pixels, treated as a box select.
	MinBoxSize float32 `toml:"min_box_size"`
}

func DefaultSelectionConfig() SelectionConfig {
	return SelectionConfig{MinBoxSize: 4}
}

// SelectionController turns pointer input into a selection set.
type SelectionController struct {
	// PartMode makes a plain click select the whole part.
	PartMode bool

	cfg       SelectionConfig
	picker    Picker
	projector Projector
	parts     PartIndex
	light     Highlighter
	camera    CameraControls
	log       core.Logger

	state   SelectionState
	sel     Selection
	lit     Selection
	hovered core.FragmentID
	box     Box
	onEdit  func(Selection)
}

func NewSelectionController(cfg SelectionConfig, picker Picker, projector Projector, log core.Logger) *SelectionController {
	return &SelectionController{
		cfg:       cfg,
		picker:    picker,
		projector: projector,
		log:       core.OrNop(log),
		sel:       Selection{},
		lit:       Selection{},
	}
}

func (c *SelectionController) SetPartIndex(p PartIndex)            { c.parts = p }
func (c *SelectionController) SetHighlighter(h Highlighter)        { c.light = h }
func (c *SelectionController) SetCameraControls(cc CameraControls) { c.camera = cc }

// OnChange registers a callback run after every selection mutation.
func (c *SelectionController) OnChange(fn func(Selection)) { c.onEdit = fn }

func (c *SelectionController) State() SelectionState { return c.state }

func (c *SelectionController) Hovered() core.FragmentID { return c.hovered }

// Box returns the rectangle of the box drag in progress.
func (c *SelectionController) Box() (Box, bool) {
	return c.box, c.state == BoxDragging
}

func (c *SelectionController) BoxDragging() bool { return c.state == BoxDragging }

func (c *SelectionController) Selection() Selection {
	out := make(Selection, len(c.sel))
	for id := range c.sel {
		out[id] = struct{}{}
	}
	return out
}

func (c *SelectionController) IDs() []core.FragmentID { return c.sel.IDs() }

func (c *SelectionController) PointerDown(x, y float32, mods Modifiers) {
	if mods.Has(ModShift) {
		c.detachCamera()
		c.state = BoxDragging
		c.box = Box{x, y, x, y}
		return
	}

	if !mods.Toggle() && c.PartMode {
		// resolving a part can take a moment; keep the orbit controls off it
		c.detachCamera()
	}
	id, hit := c.picker.Pick(x, y)

	switch {
	case mods.Toggle():
		if hit {
			c.toggle(c.expand(id))
		}
	case !hit:
		c.replace(nil)
	default:
		c.replace(c.expand(id))
	}
}

// PointerMove tracks the drag rectangle or the hovered fragment.
func (c *SelectionController) PointerMove(x, y float32) {
	if c.state == BoxDragging {
		c.box.X1, c.box.Y1 = x, y
		return
	}
	id, hit := c.picker.Pick(x, y)
	if !hit {
		id = ""
	}
	c.hovered = id
	c.settle()
}

// PointerUp ends any interaction. The host must deliver it even when the
// pointer is released outside the canvas; the camera is reattached either way.
func (c *SelectionController) PointerUp(x, y float32) {
	defer c.attachCamera()
	if c.state != BoxDragging {
		return
	}
	c.box.X1, c.box.Y1 = x, y
	box := c.box
	c.state = Idle
	if box.Width() < c.cfg.MinBoxSize && box.Height() < c.cfg.MinBoxSize {
		c.settle()
		return
	}

	var ids []core.FragmentID
	for _, id := range c.projector.Candidates() {
		px, py, ok := c.projector.ProjectCenter(id)
		if ok && box.Contains(px, py) {
			ids = append(ids, id)
		}
	}
	c.log.Debugf("box select %v picked %d fragments", box.Normalized(), len(ids))
	c.replace(ids)
}

// Cancel aborts a box drag without touching the selection.
func (c *SelectionController) Cancel() {
	if c.state == BoxDragging {
		c.state = Idle
		c.settle()
	}
	c.attachCamera()
}

// Clear empties the selection, for tool switches.
func (c *SelectionController) Clear() {
	c.state = Idle
	c.hovered = ""
	c.replace(nil)
	c.attachCamera()
}

// Replace sets the selection outright.
func (c *SelectionController) Replace(ids []core.FragmentID) {
	c.replace(ids)
}

func (c *SelectionController) expand(id core.FragmentID) []core.FragmentID {
	if c.PartMode && c.parts != nil {
		if ids := c.parts.PartFragments(id); len(ids) > 0 {
			return ids
		}
	}
	return []core.FragmentID{id}
}

func (c *SelectionController) replace(ids []core.FragmentID) {
	c.sel = Selection{}
	for _, id := range ids {
		c.sel[id] = struct{}{}
	}
	c.changed()
}

// toggle removes the group when all of it is selected, otherwise adds it.
func (c *SelectionController) toggle(ids []core.FragmentID) {
	all := true
	for _, id := range ids {
		if !c.sel.Has(id) {
			all = false
			break
		}
	}
	for _, id := range ids {
		if all {
			delete(c.sel, id)
		} else {
			c.sel[id] = struct{}{}
		}
	}
	c.changed()
}

func (c *SelectionController) changed() {
	c.settle()
	c.syncHighlight()
	if c.onEdit != nil {
		c.onEdit(c.Selection())
	}
}

func (c *SelectionController) settle() {
	switch {
	case c.state == BoxDragging:
	case len(c.sel) > 0:
		c.state = Selected
	case c.hovered != "":
		c.state = Hovering
	default:
		c.state = Idle
	}
}

// syncHighlight sends only the difference to the highlighter.
func (c *SelectionController) syncHighlight() {
	var on, off []core.FragmentID
	for id := range c.sel {
		if !c.lit.Has(id) {
			on = append(on, id)
		}
	}
	for id := range c.lit {
		if !c.sel.Has(id) {
			off = append(off, id)
		}
	}
	c.lit = c.Selection()
	if c.light == nil {
		return
	}
	sortIDs(off)
	sortIDs(on)
	if len(off) > 0 {
		c.light.Highlight(off, false)
	}
	if len(on) > 0 {
		c.light.Highlight(on, true)
	}
}

func sortIDs(ids []core.FragmentID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

func (c *SelectionController) detachCamera() {
	if c.camera != nil {
		c.camera.Detach()
	}
}

func (c *SelectionController) attachCamera() {
	if c.camera != nil {
		c.camera.Attach()
	}
}
