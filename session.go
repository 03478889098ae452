package meshparts

import (
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/meshparts/meshrt/classify"
	"github.com/gekko3d/meshparts/meshrt/core"
	"github.com/gekko3d/meshparts/meshrt/editor"
	"github.com/gekko3d/meshparts/meshrt/geom"
	"github.com/gekko3d/meshparts/meshrt/prompt"
)

var ErrNoScene = errors.New("no scene loaded")

// Session owns one loaded asset and every interaction state built on it.
// All methods must be called from a single goroutine.
type Session struct {
	cfg    Config
	log    Logger
	prof   *Profiler
	status *StatusRing

	segmenter prompt.Segmenter

	scene    *core.Scene
	adapter  *geom.Adapter
	view     *editor.View
	detector *classify.Detector
	parts    *classify.Index
	sel      *editor.SelectionController
	gizmo    *editor.GizmoController
	tool     *prompt.Tool

	frame    image.Image
	light    editor.Highlighter
	controls editor.CameraControls
	partMode bool
	toggle   Key

	lastX, lastY float32
	onChange     func()
}

func NewSession(cfg Config, log Logger) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log = core.OrNop(log)
	seg, err := prompt.NewSegmenter(cfg.Segmenter.Prompt(), log)
	if err != nil {
		return nil, fmt.Errorf("new session: %w", err)
	}
	toggle, _ := ParseKey(cfg.Gizmo.ToggleKey)
	return &Session{
		cfg:       cfg,
		log:       log,
		prof:      NewProfiler(),
		status:    NewStatusRing(32, 5*time.Second),
		segmenter: seg,
		toggle:    toggle,
	}, nil
}

// SetSegmenter replaces the smart select strategy for later activations.
func (s *Session) SetSegmenter(seg prompt.Segmenter) {
	s.segmenter = seg
}

// Load replaces the current asset. Selection, parts, gizmo and smart select
// state start over.
func (s *Session) Load(scene *core.Scene, cam core.Camera) {
	if s.tool != nil {
		s.tool.Deactivate()
	}
	if s.gizmo != nil {
		s.gizmo.Forget()
	}

	s.scene = scene
	s.adapter = geom.NewAdapter(scene, s.log)
	s.view = editor.NewView(scene, cam)
	s.detector = classify.NewDetector(s.adapter, s.cfg.Classifier, s.cfg.Subdivision, s.log)
	s.parts = nil

	s.sel = editor.NewSelectionController(s.cfg.Selection, s.view, s.view, s.log)
	s.sel.PartMode = s.partMode
	if s.light != nil {
		s.sel.SetHighlighter(s.light)
	}
	if s.controls != nil {
		s.sel.SetCameraControls(s.controls)
	}
	s.sel.OnChange(func(editor.Selection) { s.changed() })

	s.gizmo = editor.NewGizmoController(s.cfg.Gizmo, s.adapter, s.sel, s.log)
	s.tool = prompt.NewTool(s.segmenter, s.cfg.Segmenter.MaskThreshold, s.log)

	s.adapter.SetBusyFunc(func() bool {
		return s.sel.BoxDragging() || s.gizmo.Dragging()
	})
	s.prof.SetCount("fragments", scene.Len())
	s.log.Infof("loaded scene with %d fragments", scene.Len())
	s.changed()
}

func (s *Session) Loaded() bool { return s.scene != nil }

func (s *Session) Scene() *core.Scene { return s.scene }

func (s *Session) Config() Config { return s.cfg }

// Reconfigure applies classifier, subdivision and segmenter settings at
// once. Selection and gizmo settings take effect on the next Load.
func (s *Session) Reconfigure(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	seg, err := prompt.NewSegmenter(cfg.Segmenter.Prompt(), s.log)
	if err != nil {
		return fmt.Errorf("reconfigure: %w", err)
	}
	s.cfg = cfg
	s.segmenter = seg
	s.log.SetDebug(cfg.Log.Debug)
	if s.detector != nil {
		s.detector.Thresholds = cfg.Classifier
		s.detector.Subdivision = cfg.Subdivision
	}
	if s.tool != nil && !s.tool.Active() {
		s.tool = prompt.NewTool(seg, cfg.Segmenter.MaskThreshold, s.log)
	}
	return nil
}

// OnChange registers a callback run when parts, selection or the gizmo
// changed as the result of an input.
func (s *Session) OnChange(fn func()) { s.onChange = fn }

func (s *Session) changed() {
	if s.onChange != nil {
		s.onChange()
	}
}

func (s *Session) SetHighlighter(h editor.Highlighter) {
	s.light = h
	if s.sel != nil {
		s.sel.SetHighlighter(h)
	}
}

func (s *Session) SetCameraControls(cc editor.CameraControls) {
	s.controls = cc
	if s.sel != nil {
		s.sel.SetCameraControls(cc)
	}
}

// SetPartMode makes plain clicks select whole detected parts.
func (s *Session) SetPartMode(on bool) {
	s.partMode = on
	if s.sel != nil {
		s.sel.PartMode = on
	}
	s.changed()
}

func (s *Session) Camera() core.Camera {
	if s.view == nil {
		return core.Camera{}
	}
	return s.view.Camera()
}

func (s *Session) SetCamera(cam core.Camera) error {
	if s.view == nil {
		return ErrNoScene
	}
	s.view.SetCamera(cam)
	return nil
}

// SetFrame stores the latest rendered viewport image for smart select.
func (s *Session) SetFrame(img image.Image) { s.frame = img }

func (s *Session) Frame() image.Image { return s.frame }

func (s *Session) Fragments() []*core.Fragment {
	if s.scene == nil {
		return nil
	}
	return s.scene.Fragments()
}

// Detect segments and classifies the asset. The part list replaces any
// previous one; the selection and gizmo are reset because fragments may have
// been split.
func (s *Session) Detect() (classify.DetectResult, error) {
	if s.scene == nil {
		return classify.DetectResult{}, ErrNoScene
	}
	var res classify.DetectResult
	var err error
	s.prof.Time("detect", func() {
		res, err = s.detector.Detect()
	})
	if err != nil {
		s.status.Post(StatusWarn, "part detection unavailable: %v", err)
		return classify.DetectResult{}, fmt.Errorf("detect: %w", err)
	}

	// segments name fragment ids the split may have retired
	s.DeactivateSmartSelect()
	s.parts = classify.NewIndex(res.Parts)
	s.sel.SetPartIndex(s.parts)
	s.gizmo.SetPartIndex(s.parts)
	s.gizmo.Detach()
	s.sel.Clear()
	s.view.Invalidate()

	s.prof.SetCount("fragments", s.scene.Len())
	s.prof.SetCount("parts", len(res.Parts))
	if !res.Segmented {
		s.status.Post(StatusInfo, "no parts detected")
	} else {
		s.status.Post(StatusInfo, "detected %d parts", len(res.Parts))
	}
	s.changed()
	return res, nil
}

func (s *Session) Parts() []classify.Part {
	return s.parts.Parts()
}

func (s *Session) Selection() []core.FragmentID {
	if s.sel == nil {
		return nil
	}
	return s.sel.IDs()
}

// SelectPart replaces the selection with every fragment of the named part.
func (s *Session) SelectPart(name string) error {
	if s.scene == nil {
		return ErrNoScene
	}
	p, ok := s.parts.ByName(name)
	if !ok {
		return fmt.Errorf("select part: no part named %q", name)
	}
	s.sel.Replace(p.Fragments)
	return nil
}

func (s *Session) ClearSelection() {
	if s.sel != nil {
		s.sel.Clear()
	}
}

// Pointer routes one pointer event to smart select, the gizmo or the
// selection controller.
func (s *Session) Pointer(ev PointerEvent) error {
	if s.scene == nil {
		return ErrNoScene
	}
	switch ev.Kind {
	case PointerDown:
		return s.pointerDown(ev)
	case PointerMove:
		if s.gizmo.Dragging() {
			dx, dy := ev.X-s.lastX, ev.Y-s.lastY
			s.lastX, s.lastY = ev.X, ev.Y
			err := s.gizmo.DragPointer(dx, dy)
			s.view.Invalidate()
			return err
		}
		if !s.tool.Active() {
			s.sel.PointerMove(ev.X, ev.Y)
		}
		return nil
	case PointerUp:
		return s.pointerUp(ev)
	case PointerDouble:
		if s.tool.Active() {
			return nil
		}
		id, hit := s.view.Pick(ev.X, ev.Y)
		s.gizmo.DoubleClick(id, hit, ev.OverUI)
		s.changed()
		return nil
	default:
		return fmt.Errorf("unknown pointer event %q", ev.Kind)
	}
}

func (s *Session) pointerDown(ev PointerEvent) error {
	if ev.OverUI {
		return nil
	}
	if s.tool.Active() {
		label := prompt.Include
		if ev.Button == MouseButtonRight || ev.Mods.Alt {
			label = prompt.Exclude
		}
		s.prof.BeginScope("smart_select")
		if err := s.tool.AddPoint(prompt.Point{X: ev.X, Y: ev.Y, Label: label}); err != nil {
			return err
		}
		s.changed()
		return nil
	}
	if ev.Button != MouseButtonLeft {
		return nil
	}
	if s.gizmo.State() == editor.Attached {
		if axis, ok := s.gizmo.PickGrip(s.view.Camera(), ev.X, ev.Y); ok {
			s.lastX, s.lastY = ev.X, ev.Y
			if s.controls != nil {
				s.controls.Detach()
			}
			return s.gizmo.BeginDrag(axis)
		}
	}
	s.sel.PointerDown(ev.X, ev.Y, ev.Mods.editor())
	return nil
}

func (s *Session) pointerUp(ev PointerEvent) error {
	var err error
	if s.gizmo.Dragging() {
		s.prof.Time("bake", func() {
			err = s.gizmo.EndDrag()
		})
		s.view.Invalidate()
		if err != nil {
			s.status.Post(StatusWarn, "scale not applied: %v", err)
		}
		s.changed()
	}
	// reattaches the camera whatever happened before
	s.sel.PointerUp(ev.X, ev.Y)
	return err
}

// Key handles the gizmo toggle key and escape.
func (s *Session) Key(ev KeyEvent) error {
	if s.scene == nil {
		return ErrNoScene
	}
	switch ev.Key {
	case s.toggle:
		if s.tool.Active() {
			return nil
		}
		s.gizmo.Toggle()
		s.changed()
	case KeyEscape:
		switch {
		case s.tool.Active():
			s.DeactivateSmartSelect()
		case s.sel.BoxDragging():
			s.sel.Cancel()
		case s.gizmo.State() == editor.Attached:
			s.gizmo.Detach()
		default:
			s.sel.Clear()
		}
		s.changed()
	}
	return nil
}

// ActivateSmartSelect switches pointer clicks to point prompts. The
// selection is cleared, as for any tool switch.
func (s *Session) ActivateSmartSelect() error {
	if s.scene == nil {
		return ErrNoScene
	}
	s.gizmo.Detach()
	s.sel.Clear()
	s.tool.Activate(s)
	s.changed()
	return nil
}

func (s *Session) DeactivateSmartSelect() {
	if s.tool == nil || !s.tool.Active() {
		return
	}
	s.tool.Deactivate()
	s.prof.EndScope("smart_select")
	s.changed()
}

func (s *Session) SmartSelectActive() bool { return s.tool != nil && s.tool.Active() }

// SmartSelectBusy reports a pending point-prompt request.
func (s *Session) SmartSelectBusy() bool { return s.tool != nil && s.tool.Busy() }

func (s *Session) Segments() []prompt.Segment {
	if s.tool == nil {
		return nil
	}
	return s.tool.Segments()
}

// Update runs once per frame. Finished smart select results replace the
// selection with every fragment their masks cover. A failed request posts a
// status and keeps the previous segments.
func (s *Session) Update() error {
	if s.tool == nil {
		return nil
	}
	wasBusy := s.tool.Busy()
	changed, err := s.tool.Update()
	settled := wasBusy && !s.tool.Busy()
	if settled {
		s.prof.EndScope("smart_select")
	}
	if err != nil {
		s.status.Post(StatusWarn, "smart select failed: %v", err)
	}
	if changed {
		seen := make(map[core.FragmentID]bool)
		var ids []core.FragmentID
		for _, seg := range s.tool.Segments() {
			for _, id := range seg.Fragments {
				if !seen[id] {
					seen[id] = true
					ids = append(ids, id)
				}
			}
		}
		s.sel.Replace(ids)
		s.prof.SetCount("segments", len(s.tool.Segments()))
		if len(ids) == 0 {
			s.status.Post(StatusInfo, "nothing under the selection mask")
		}
	}
	if changed || settled {
		s.changed()
	}
	return err
}

func (s *Session) Readout() (editor.ScaleReadout, bool) {
	if s.gizmo == nil {
		return editor.ScaleReadout{}, false
	}
	return s.gizmo.Readout()
}

func (s *Session) Handles() []editor.Handle {
	if s.gizmo == nil {
		return nil
	}
	return s.gizmo.Handles()
}

// Scale attaches the gizmo to the current selection and applies factor in
// one step, for scripted edits.
func (s *Session) Scale(factor mgl32.Vec3) error {
	if s.scene == nil {
		return ErrNoScene
	}
	if s.gizmo.State() != editor.Attached {
		ids := s.sel.IDs()
		if len(ids) == 0 {
			return fmt.Errorf("scale: nothing selected")
		}
		s.gizmo.Attach(ids)
	}
	if err := s.gizmo.BeginDrag(editor.AxisUniform); err != nil {
		return err
	}
	if err := s.gizmo.Drag(factor); err != nil {
		return err
	}
	var err error
	s.prof.Time("bake", func() {
		err = s.gizmo.EndDrag()
	})
	s.view.Invalidate()
	s.changed()
	return err
}

func (s *Session) Status() []StatusMessage { return s.status.Active() }

func (s *Session) Stats() Stats { return s.prof.Stats() }

func (s *Session) Profiler() *Profiler { return s.prof }

// Export writes the baked geometry and part list.
func (s *Session) Export(path string) error {
	if s.scene == nil {
		return ErrNoScene
	}
	return ExportBaked(path, s.scene, s.view.Camera(), s.Parts())
}
