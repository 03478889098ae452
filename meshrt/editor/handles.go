package editor

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/meshparts/meshrt/core"
)

type HandleType int

const (
	HandleLine HandleType = iota
	HandleCube
)

// Handle is one wireframe shape of the scale gizmo for the host renderer.
type Handle struct {
	Type  HandleType `json:"type"`
	Axis  Axis       `json:"axis"`
	Color [4]float32 `json:"color"`

	// For cubes Position is the center and Scale the edge lengths.
	// For lines Position is the start and LineEnd the end, in world space.
	Position mgl32.Vec3 `json:"position"`
	Scale    mgl32.Vec3 `json:"scale"`
	LineEnd  mgl32.Vec3 `json:"line_end"`
}

func NewHandleLine(axis Axis, start, end mgl32.Vec3, color [4]float32) Handle {
	return Handle{
		Type:     HandleLine,
		Axis:     axis,
		Position: start,
		LineEnd:  end,
		Color:    color,
		Scale:    mgl32.Vec3{1, 1, 1},
	}
}

func NewHandleCube(axis Axis, center, size mgl32.Vec3, color [4]float32) Handle {
	return Handle{
		Type:     HandleCube,
		Axis:     axis,
		Position: center,
		Scale:    size,
		Color:    color,
	}
}

var axisColors = map[Axis][4]float32{
	AxisUniform: {1, 1, 0, 1},
	AxisX:       {1, 0, 0, 1},
	AxisY:       {0, 1, 0, 1},
	AxisZ:       {0, 0, 1, 1},
}

// grips are the draggable cube ends of the axis lines, uniform grip last.
func (g *GizmoController) grips() []Handle {
	if g.cur == nil {
		return nil
	}
	dims := mul(g.cur.Size, div(g.cur.Live, g.cur.Baseline))
	half := dims.Mul(0.5)
	reach := max(half.X(), half.Y(), half.Z()) * 0.25
	grip := mgl32.Vec3{reach, reach, reach}.Mul(0.4)

	var out []Handle
	for i, axis := range []Axis{AxisX, AxisY, AxisZ} {
		var dir mgl32.Vec3
		dir[i] = half[i] + reach
		out = append(out, NewHandleCube(axis, g.cur.Pivot.Add(dir), grip, axisColors[axis]))
	}
	corner := g.cur.Pivot.Add(half)
	out = append(out, NewHandleCube(AxisUniform, corner, grip, axisColors[AxisUniform]))
	return out
}

// Handles describes the gizmo as drawn right now: the live bounding box,
// one line per axis and the grips.
func (g *GizmoController) Handles() []Handle {
	if g.cur == nil {
		return nil
	}
	dims := mul(g.cur.Size, div(g.cur.Live, g.cur.Baseline))
	out := []Handle{NewHandleCube(AxisUniform, g.cur.Pivot, dims, [4]float32{1, 1, 1, 0.6})}
	grips := g.grips()
	for _, h := range grips[:3] {
		out = append(out, NewHandleLine(h.Axis, g.cur.Pivot, h.Position, h.Color))
	}
	return append(out, grips...)
}

// PickGrip returns the axis of the grip nearest to pixel (x, y) within the
// configured radius.
func (g *GizmoController) PickGrip(cam core.Camera, x, y float32) (Axis, bool) {
	best, found := AxisUniform, false
	bestD := g.cfg.GripRadius * g.cfg.GripRadius
	for _, h := range g.grips() {
		px, py, ok := cam.Project(h.Position)
		if !ok {
			continue
		}
		dx, dy := px-x, py-y
		if d := dx*dx + dy*dy; d <= bestD {
			best, found, bestD = h.Axis, true, d
		}
	}
	return best, found
}
