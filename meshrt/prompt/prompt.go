// Package prompt implements point-prompt "smart select": 2D include/exclude
// clicks become masks, and masks are mapped back onto scene fragments.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/gekko3d/meshparts/meshrt/core"
)

var ErrToolInactive = errors.New("smart select tool is not active")

type PointLabel int

const (
	Exclude PointLabel = 0
	Include PointLabel = 1
)

func (l PointLabel) String() string {
	if l == Include {
		return "include"
	}
	return "exclude"
}

// Point is a click in viewport pixels, origin top-left.
type Point struct {
	X     float32    `json:"x"`
	Y     float32    `json:"y"`
	Label PointLabel `json:"label"`
}

type Request struct {
	// Frame is the rendered viewport; segmenters that only look at points
	// accept nil.
	Frame  image.Image
	Width  int
	Height int
	Points []Point
}

// LatestInclude returns the most recent include point.
func (r Request) LatestInclude() (Point, bool) {
	for i := len(r.Points) - 1; i >= 0; i-- {
		if r.Points[i].Label == Include {
			return r.Points[i], true
		}
	}
	return Point{}, false
}

// Rect is a pixel rectangle.
type Rect struct {
	X, Y, W, H float32
}

func (r Rect) Contains(x, y float32) bool {
	return x >= r.X && x <= r.X+r.W && y >= r.Y && y <= r.Y+r.H
}

// Coverage reports how much of a viewport pixel a mask covers, in [0, 1].
type Coverage interface {
	At(x, y float32) float32
}

type Mask struct {
	Coverage   Coverage
	BBox       Rect
	Confidence float32
	Category   string
}

// Segment is a mask resolved to the fragments whose centers it covers.
type Segment struct {
	ID string
	Mask
	Fragments []core.FragmentID
}

type Segmenter interface {
	Segment(ctx context.Context, req Request) ([]Mask, error)
}

const (
	ModeHeuristic = "heuristic"
	ModeRemote    = "remote"
)

type Config struct {
	Mode          string
	Endpoint      string
	Timeout       time.Duration
	MaskThreshold float32
	MaxFrameSize  int
}

func DefaultConfig() Config {
	return Config{
		Mode:          ModeHeuristic,
		Timeout:       10 * time.Second,
		MaskThreshold: 0.5,
		MaxFrameSize:  1024,
	}
}

// NewSegmenter picks the segmentation strategy named by cfg.Mode.
func NewSegmenter(cfg Config, log core.Logger) (Segmenter, error) {
	switch cfg.Mode {
	case "", ModeHeuristic:
		return Heuristic{}, nil
	case ModeRemote:
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("remote segmenter: no endpoint configured")
		}
		return NewRemote(cfg.Endpoint, cfg.Timeout, cfg.MaxFrameSize, log), nil
	default:
		return nil, fmt.Errorf("unknown segmenter mode %q", cfg.Mode)
	}
}
