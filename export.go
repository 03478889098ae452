package meshparts

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/gekko3d/meshparts/meshrt/classify"
	"github.com/gekko3d/meshparts/meshrt/core"
)

// BakedExport is a scene document that LoadScene reads back, plus the part
// list. Positions are the baked vertex buffers; live gizmo scale is not
// persisted.
type BakedExport struct {
	SceneDef
	Parts []classify.Part `json:"parts,omitempty"`
}

func NewBakedExport(scene *core.Scene, cam core.Camera, parts []classify.Part) BakedExport {
	var out BakedExport
	for _, f := range scene.Fragments() {
		t := f.Transform
		out.Fragments = append(out.Fragments, FragmentDef{
			ID:        string(f.ID),
			Name:      f.Name,
			Positions: f.Positions,
			Normals:   f.Normals,
			Indices:   f.Indices,
			Transform: &t,
		})
	}
	view, proj := cam.View, cam.Projection
	out.Camera = &CameraDef{
		Width:      cam.Width,
		Height:     cam.Height,
		View:       &view,
		Projection: &proj,
	}
	out.Parts = parts
	return out
}

func ExportBaked(path string, scene *core.Scene, cam core.Camera, parts []classify.Part) error {
	data, err := json.MarshalIndent(NewBakedExport(scene, cam, parts), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal export: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write export file: %w", err)
	}
	return nil
}
