package prompt

import (
	"context"
)

// Heuristic fakes a segmentation model: a disc around the latest include
// point whose size and category are guessed from where on screen it lies.
type Heuristic struct{}

// Guess maps a normalized screen position to a part category and a radius
// as a fraction of the shorter viewport side.
func Guess(nx, ny float32) (string, float32) {
	switch {
	case nx < 0.1 || nx > 0.9:
		return "bumper", 0.1
	case ny > 0.6 && (nx < 0.35 || nx > 0.65):
		return "wheel", 0.08
	case ny < 0.3:
		return "window", 0.12
	case ny >= 0.35 && ny <= 0.65:
		return "door", 0.15
	default:
		return "body", 0.2
	}
}

func (Heuristic) Segment(ctx context.Context, req Request) ([]Mask, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, ok := req.LatestInclude()
	if !ok || req.Width <= 0 || req.Height <= 0 {
		return nil, nil
	}

	category, frac := Guess(p.X/float32(req.Width), p.Y/float32(req.Height))
	r := frac * float32(min(req.Width, req.Height))
	disc := &Disc{X: p.X, Y: p.Y, R: r}
	for _, q := range req.Points {
		if q.Label == Exclude {
			disc.Holes = append(disc.Holes, Disc{X: q.X, Y: q.Y, R: r / 2})
		}
	}

	return []Mask{{
		Coverage:   disc,
		BBox:       disc.Bounds(float32(req.Width), float32(req.Height)),
		Confidence: 0.5,
		Category:   category,
	}}, nil
}

// Disc covers a circle minus any holes.
type Disc struct {
	X, Y, R float32
	Holes   []Disc
}

func (d *Disc) inside(x, y float32) bool {
	dx, dy := x-d.X, y-d.Y
	return dx*dx+dy*dy <= d.R*d.R
}

func (d *Disc) At(x, y float32) float32 {
	if !d.inside(x, y) {
		return 0
	}
	for i := range d.Holes {
		if d.Holes[i].inside(x, y) {
			return 0
		}
	}
	return 1
}

// Bounds is the disc's box clipped to a w*h viewport.
func (d *Disc) Bounds(w, h float32) Rect {
	x0, y0 := max(d.X-d.R, 0), max(d.Y-d.R, 0)
	x1, y1 := min(d.X+d.R, w), min(d.Y+d.R, h)
	if x1 < x0 || y1 < y0 {
		return Rect{}
	}
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}
