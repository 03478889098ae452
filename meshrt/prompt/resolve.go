package prompt

import (
	"github.com/google/uuid"

	"github.com/gekko3d/meshparts/meshrt/core"
)

// Resolve maps masks onto fragments. A fragment joins a segment when the
// mask covers more than threshold at the pixel its world box center projects
// to. Fragments whose center falls outside the mask are missed even if part
// of their silhouette is inside.
func Resolve(masks []Mask, frags []*core.Fragment, cam core.Camera, threshold float32) []Segment {
	type projected struct {
		id   core.FragmentID
		x, y float32
	}
	var centers []projected
	for _, f := range frags {
		x, y, ok := cam.Project(f.WorldAABB.Center())
		if !ok || x < 0 || y < 0 || x > float32(cam.Width) || y > float32(cam.Height) {
			continue
		}
		centers = append(centers, projected{f.ID, x, y})
	}

	segments := make([]Segment, 0, len(masks))
	for _, m := range masks {
		seg := Segment{ID: uuid.NewString(), Mask: m}
		if m.Coverage != nil {
			for _, c := range centers {
				if m.Coverage.At(c.x, c.y) > threshold {
					seg.Fragments = append(seg.Fragments, c.id)
				}
			}
		}
		segments = append(segments, seg)
	}
	return segments
}
