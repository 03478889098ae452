package prompt

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/gekko3d/meshparts/meshrt/core"
)

// Viewport is what the tool captures from the host each time a point is
// added.
type Viewport interface {
	Camera() core.Camera
	Frame() image.Image
	Fragments() []*core.Fragment
}

type result struct {
	gen   uint64
	cam   core.Camera
	masks []Mask
	err   error
}

// Tool runs smart select. Segmentation runs on its own goroutine; every
// other method, Update included, belongs to the UI goroutine.
type Tool struct {
	seg       Segmenter
	threshold float32
	log       core.Logger

	active   bool
	view     Viewport
	points   []Point
	segments []Segment

	gen      uint64
	inflight bool
	cancel   context.CancelFunc
	results  chan result
}

func NewTool(seg Segmenter, threshold float32, log core.Logger) *Tool {
	if threshold <= 0 {
		threshold = 0.5
	}
	return &Tool{
		seg:       seg,
		threshold: threshold,
		log:       core.OrNop(log),
		results:   make(chan result, 8),
	}
}

func (t *Tool) Activate(v Viewport) {
	t.active = true
	t.view = v
}

func (t *Tool) Active() bool { return t.active }

// Busy reports whether a request for the current point list is pending.
func (t *Tool) Busy() bool { return t.inflight }

func (t *Tool) Points() []Point {
	return append([]Point(nil), t.points...)
}

func (t *Tool) Segments() []Segment {
	return append([]Segment(nil), t.segments...)
}

// AddPoint records a click and resubmits the whole point list, cancelling
// any request still running.
func (t *Tool) AddPoint(p Point) error {
	if !t.active {
		return ErrToolInactive
	}
	t.points = append(t.points, p)
	t.stop()
	t.gen++

	cam := t.view.Camera()
	req := Request{
		Frame:  t.view.Frame(),
		Width:  cam.Width,
		Height: cam.Height,
		Points: t.Points(),
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.inflight = true

	go func(gen uint64) {
		masks, err := t.seg.Segment(ctx, req)
		select {
		case t.results <- result{gen: gen, cam: cam, masks: masks, err: err}:
		case <-ctx.Done():
		}
	}(t.gen)
	return nil
}

// Deactivate cancels the pending request and forgets points and segments.
func (t *Tool) Deactivate() {
	t.stop()
	t.gen++
	t.active = false
	t.view = nil
	t.points = nil
	t.segments = nil
}

func (t *Tool) stop() {
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	t.inflight = false
}

// Update drains finished requests. It reports whether Segments changed, and
// returns the segmenter error of a failed current request; prior segments
// are kept on failure and nothing is retried.
func (t *Tool) Update() (bool, error) {
	changed := false
	var failure error
	for {
		select {
		case r := <-t.results:
			if r.gen != t.gen || !t.active {
				t.log.Debugf("smart select: dropping stale response (generation %d, current %d)", r.gen, t.gen)
				continue
			}
			t.stop()
			if r.err != nil {
				if errors.Is(r.err, context.Canceled) {
					continue
				}
				t.log.Warnf("smart select: %v", r.err)
				failure = fmt.Errorf("smart select: %w", r.err)
				continue
			}
			t.segments = Resolve(r.masks, t.view.Fragments(), r.cam, t.threshold)
			changed = true
		default:
			return changed, failure
		}
	}
}
