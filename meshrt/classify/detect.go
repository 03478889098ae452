package classify

import (
	"fmt"
	"sort"

	"github.com/gekko3d/meshparts/meshrt/core"
	"github.com/gekko3d/meshparts/meshrt/geom"
	"github.com/gekko3d/meshparts/meshrt/topology"
)

type DetectResult struct {
	Parts []Part
	// Segmented is false when the asset could not be cut into more than one
	// piece; Parts then holds a single body part.
	Segmented bool
}

// Detector turns the loaded scene into labeled parts. Islands inside a
// fragment are split into child fragments first so every part owns whole
// fragments; running it again on the same asset reproduces the same parts.
type Detector struct {
	Thresholds  Thresholds
	Subdivision topology.SubdivisionConfig

	adapter *geom.Adapter
	log     core.Logger
}

func NewDetector(adapter *geom.Adapter, t Thresholds, sub topology.SubdivisionConfig, log core.Logger) *Detector {
	return &Detector{
		Thresholds:  t,
		Subdivision: sub,
		adapter:     adapter,
		log:         core.OrNop(log),
	}
}

type candidate struct {
	frag    *core.Fragment
	shape   Shape
	label   Label
	matched bool
	name    string
}

func (d *Detector) Detect() (DetectResult, error) {
	if d.adapter.Busy() {
		return DetectResult{}, fmt.Errorf("detect parts: %w", geom.ErrEditInFlight)
	}
	scene := d.adapter.Scene()
	d.materialize(scene)
	scene.Commit()

	var frags []*core.Fragment
	bounds := core.EmptyAABB()
	for _, f := range scene.Fragments() {
		if f.Validate() != nil {
			continue
		}
		frags = append(frags, f)
		bounds = bounds.Union(f.WorldAABB)
	}
	if len(frags) == 0 {
		return DetectResult{}, nil
	}

	cands := make([]*candidate, len(frags))
	for i, f := range frags {
		c := &candidate{frag: f, shape: NewShape(f.WorldAABB, bounds, f.VertexCount())}
		c.label, c.matched = Classify(c.shape, d.Thresholds)
		cands[i] = c
	}

	d.groupWheels(cands)
	d.pairSides(cands)
	parts := d.assemble(cands)

	d.log.Infof("detected %d parts from %d fragments", len(parts), len(frags))
	return DetectResult{Parts: parts, Segmented: len(frags) > 1}, nil
}

// materialize splits multi-island fragments into one child per island. When
// the whole asset is a single island it falls back to grid subdivision.
func (d *Detector) materialize(scene *core.Scene) {
	islands := 0
	var lone *core.Fragment
	var loneComp topology.Component

	for _, f := range scene.Fragments() {
		if err := f.Validate(); err != nil {
			d.log.Warnf("detect parts: skipping fragment: %v", err)
			continue
		}
		if f.Subdivided {
			// cells of an earlier subdivision stay as cut
			islands++
			continue
		}
		comps := topology.BuildComponents(f)
		switch len(comps) {
		case 0:
		case 1:
			islands++
			lone, loneComp = f, comps[0]
		default:
			islands += len(comps)
			d.adapter.Split(f.ID, pieces(comps, false))
		}
	}

	if islands != 1 || lone == nil {
		return
	}
	cells, ok := topology.Subdivide(loneComp, d.Subdivision)
	if !ok {
		d.log.Infof("detect parts: %q is one island and subdivision found no cells", lone.Name)
		return
	}
	d.adapter.Split(lone.ID, pieces(cells, true))
}

func pieces(comps []topology.Component, subdivided bool) []geom.Piece {
	out := make([]geom.Piece, len(comps))
	for i, c := range comps {
		out[i] = geom.Piece{
			Positions:  c.Positions,
			Normals:    c.Normals,
			Indices:    c.Indices,
			Subdivided: subdivided,
		}
	}
	return out
}

// groupWheels looks for WheelGroupSize candidates with similar vertex counts
// among wheels and unclassified components.
func (d *Detector) groupWheels(cands []*candidate) {
	n := d.Thresholds.WheelGroupSize
	if n <= 0 {
		n = 4
	}
	var pool []*candidate
	for _, c := range cands {
		if c.label == LabelWheel || !c.matched {
			pool = append(pool, c)
		}
	}
	sort.SliceStable(pool, func(i, j int) bool {
		return pool[i].shape.VertexCount < pool[j].shape.VertexCount
	})

	var group []*candidate
	for i := range pool {
		limit := float32(pool[i].shape.VertexCount) * (1 + d.Thresholds.WheelCountTolerance)
		j := i
		for j < len(pool) && float32(pool[j].shape.VertexCount) <= limit {
			j++
		}
		if j-i >= n {
			window := append([]*candidate(nil), pool[i:j]...)
			// prefer components the rules already called wheels
			sort.SliceStable(window, func(a, b int) bool {
				return window[a].label == LabelWheel && window[b].label != LabelWheel
			})
			group = window[:n]
			break
		}
	}

	if group == nil {
		var wheels []*candidate
		for _, c := range cands {
			if c.label == LabelWheel {
				wheels = append(wheels, c)
			}
		}
		nameWheels(wheels)
		return
	}

	in := make(map[*candidate]bool, n)
	for _, c := range group {
		in[c] = true
	}
	for _, c := range pool {
		if c.label == LabelWheel && !in[c] {
			c.label, c.matched = LabelBody, false
		}
	}
	for _, c := range group {
		c.label, c.matched = LabelWheel, true
	}
	nameWheels(group)
}

// nameWheels orders wheels front-left, front-right, rear-left, rear-right.
// Front is +Z and left is -X.
func nameWheels(wheels []*candidate) {
	sort.SliceStable(wheels, func(i, j int) bool {
		return wheels[i].shape.Center.Z() > wheels[j].shape.Center.Z()
	})
	front := (len(wheels) + 1) / 2
	byX := func(s []*candidate) {
		sort.SliceStable(s, func(i, j int) bool {
			return s[i].shape.Center.X() < s[j].shape.Center.X()
		})
	}
	byX(wheels[:front])
	byX(wheels[front:])
	for i, c := range wheels {
		c.name = fmt.Sprintf("wheel_%d", i)
	}
}

// pairSides turns mirrored pairs of unclassified components into doors.
func (d *Detector) pairSides(cands []*candidate) {
	t := d.Thresholds
	var pool []*candidate
	for _, c := range cands {
		if !c.matched && abs32(c.shape.Center.X()) > t.MirrorTolerance {
			pool = append(pool, c)
		}
	}

	used := make(map[*candidate]bool)
	for i, a := range pool {
		if used[a] {
			continue
		}
		var best *candidate
		var bestErr float32
		for _, b := range pool[i+1:] {
			if used[b] {
				continue
			}
			e := abs32(a.shape.Center.X() + b.shape.Center.X())
			if e > t.MirrorTolerance || !similarCount(a.shape.VertexCount, b.shape.VertexCount, t.PairCountTolerance) {
				continue
			}
			if best == nil || e < bestErr {
				best, bestErr = b, e
			}
		}
		if best == nil {
			continue
		}
		used[a], used[best] = true, true
		a.label, a.matched = LabelDoor, true
		best.label, best.matched = LabelDoor, true
	}
}

func similarCount(a, b int, tol float32) bool {
	hi := max(a, b)
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return float32(diff) <= float32(hi)*tol
}

// assemble names the remaining labels and merges unclassified leftovers into
// one body part. Parts come back sorted by name.
func (d *Detector) assemble(cands []*candidate) []Part {
	used := make(map[string]int)
	unique := func(base string) string {
		n := used[base]
		used[base]++
		if n == 0 {
			return base
		}
		return fmt.Sprintf("%s_%d", base, n)
	}
	counters := make(map[Label]int)

	var parts []Part
	var body []*core.Fragment
	for _, c := range cands {
		if !c.matched {
			body = append(body, c.frag)
			continue
		}
		name := c.name
		switch {
		case name != "":
		case c.label == LabelDoor || c.label == LabelMirror:
			side := "right"
			if c.shape.Center.X() < 0 {
				side = "left"
			}
			name = unique(fmt.Sprintf("%s_%s", c.label, side))
		default:
			name = fmt.Sprintf("%s_%d", c.label, counters[c.label])
			counters[c.label]++
		}
		parts = append(parts, newPart(c.label, name, []*core.Fragment{c.frag}))
	}
	if len(body) > 0 {
		parts = append(parts, newPart(LabelBody, "body", body))
	}

	sort.Slice(parts, func(i, j int) bool { return parts[i].Name < parts[j].Name })
	return parts
}
