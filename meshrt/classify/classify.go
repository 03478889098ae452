// Package classify labels mesh components as vehicle parts from their
// bounding boxes and groups them into named parts.
package classify

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/meshparts/meshrt/core"
)

type Label string

const (
	LabelWheel   Label = "wheel"
	LabelDoor    Label = "door"
	LabelHood    Label = "hood"
	LabelRoof    Label = "roof"
	LabelBumper  Label = "bumper"
	LabelWindow  Label = "window"
	LabelMirror  Label = "mirror"
	LabelSpoiler Label = "spoiler"
	LabelBody    Label = "body"
	LabelOther   Label = "other"
)

// Thresholds are the tunables of the rule table and the post-passes.
type Thresholds struct {
	WheelLateralMin     float32 `toml:"wheel_lateral_min"`
	WheelLateralMax     float32 `toml:"wheel_lateral_max"`
	WheelVerticalityMin float32 `toml:"wheel_verticality_min"`
	SpoilerVerticality  float32 `toml:"spoiler_verticality_max"`
	MirrorMaxVolume     float32 `toml:"mirror_max_volume"`
	SideOffset          float32 `toml:"side_offset"`
	WindowVerticality   float32 `toml:"window_verticality_min"`
	DoorVerticality     float32 `toml:"door_verticality_max"`

	WheelGroupSize      int     `toml:"wheel_group_size"`
	WheelCountTolerance float32 `toml:"wheel_count_tolerance"`
	MirrorTolerance     float32 `toml:"mirror_tolerance"`
	PairCountTolerance  float32 `toml:"pair_count_tolerance"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		WheelLateralMin:     0.8,
		WheelLateralMax:     1.2,
		WheelVerticalityMin: 0.8,
		SpoilerVerticality:  0.2,
		MirrorMaxVolume:     0.005,
		SideOffset:          0.7,
		WindowVerticality:   1.0,
		DoorVerticality:     0.3,
		WheelGroupSize:      4,
		WheelCountTolerance: 0.2,
		MirrorTolerance:     0.1,
		PairCountTolerance:  0.1,
	}
}

// Shape is what the rules see of a component. Center is relative to the
// asset: each axis is the offset from the asset center over its half extent,
// so the asset spans [-1, 1].
type Shape struct {
	Size           mgl32.Vec3
	Center         mgl32.Vec3
	VolumeFraction float32
	VertexCount    int
}

// NewShape measures a world box against the asset's world bounds.
func NewShape(box, asset core.AABB, vertexCount int) Shape {
	s := Shape{Size: box.Size(), VertexCount: vertexCount}
	half := asset.Size().Mul(0.5)
	off := box.Center().Sub(asset.Center())
	for i := 0; i < 3; i++ {
		if half[i] > 0 {
			s.Center[i] = off[i] / half[i]
		}
	}
	if v := asset.Volume(); v > 0 {
		s.VolumeFraction = box.Volume() / v
	}
	return s
}

// Lateral is dx/dz.
func (s Shape) Lateral() float32 {
	return ratio(s.Size.X(), s.Size.Z())
}

// Verticality is dy/max(dx, dz).
func (s Shape) Verticality() float32 {
	return ratio(s.Size.Y(), max(s.Size.X(), s.Size.Z()))
}

func ratio(a, b float32) float32 {
	if b > 0 {
		return a / b
	}
	if a > 0 {
		return math.MaxFloat32
	}
	return 0
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

// Rule is one row of the classification table.
type Rule struct {
	Label Label
	Match func(s Shape, t Thresholds) bool
}

// Rules are evaluated in order; the first match wins.
var Rules = []Rule{
	{LabelWheel, func(s Shape, t Thresholds) bool {
		l := s.Lateral()
		return l >= t.WheelLateralMin && l <= t.WheelLateralMax && s.Verticality() > t.WheelVerticalityMin
	}},
	{LabelSpoiler, func(s Shape, t Thresholds) bool {
		return s.Verticality() < t.SpoilerVerticality && s.Center.Y() > 0
	}},
	{LabelMirror, func(s Shape, t Thresholds) bool {
		return s.VolumeFraction < t.MirrorMaxVolume && abs32(s.Center.X()) > t.SideOffset
	}},
	{LabelWindow, func(s Shape, t Thresholds) bool {
		return s.Size.Y() > s.Size.X() && s.Verticality() > t.WindowVerticality
	}},
	{LabelDoor, func(s Shape, t Thresholds) bool {
		return s.Verticality() < t.DoorVerticality && abs32(s.Center.X()) > t.SideOffset
	}},
}

// Classify runs the rule table. When nothing matches it returns LabelBody
// and false: the component is unclassified and left to the post-passes.
func Classify(s Shape, t Thresholds) (Label, bool) {
	for _, r := range Rules {
		if r.Match(s, t) {
			return r.Label, true
		}
	}
	return LabelBody, false
}
