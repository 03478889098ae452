package meshparts

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/meshparts/meshrt/core"
	"github.com/gekko3d/meshparts/meshrt/procedural"
)

var ErrEmptyScene = errors.New("scene has no valid fragments")

// SceneDef is the JSON form of a loaded asset.
type SceneDef struct {
	Fragments []FragmentDef `json:"fragments"`
	Camera    *CameraDef    `json:"camera,omitempty"`
}

type FragmentDef struct {
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name"`
	Positions []float32       `json:"positions"`
	Normals   []float32       `json:"normals,omitempty"`
	Indices   []uint32        `json:"indices"`
	Transform *core.Transform `json:"transform,omitempty"`
}

// CameraDef is either a look-at description or raw matrices. Matrices win
// when both are present.
type CameraDef struct {
	Eye    mgl32.Vec3 `json:"eye"`
	Target mgl32.Vec3 `json:"target"`
	Up     mgl32.Vec3 `json:"up"`
	FOV    float32    `json:"fov"`
	Near   float32    `json:"near"`
	Far    float32    `json:"far"`
	Width  int        `json:"width"`
	Height int        `json:"height"`

	View       *mgl32.Mat4 `json:"view,omitempty"`
	Projection *mgl32.Mat4 `json:"projection,omitempty"`
}

func (d CameraDef) Camera() core.Camera {
	w, h := d.Width, d.Height
	if w <= 0 || h <= 0 {
		w, h = 1280, 720
	}
	if d.View != nil && d.Projection != nil {
		return core.Camera{View: *d.View, Projection: *d.Projection, Width: w, Height: h}
	}
	up := d.Up
	if up.Len() == 0 {
		up = mgl32.Vec3{0, 1, 0}
	}
	fov, near, far := d.FOV, d.Near, d.Far
	if fov <= 0 {
		fov = 60
	}
	if near <= 0 {
		near = 0.1
	}
	if far <= near {
		far = 1000
	}
	return core.NewPerspectiveCamera(d.Eye, d.Target, up, fov, near, far, w, h)
}

// FrameCamera looks at bounds from the front-right, far enough to fit it.
func FrameCamera(bounds core.AABB, width, height int) core.Camera {
	center := bounds.Center()
	radius := bounds.Size().Len() * 0.5
	if radius <= 0 {
		radius = 1
	}
	dir := mgl32.Vec3{0.6, 0.5, 1}.Normalize()
	eye := center.Add(dir.Mul(radius * 2.5))
	return CameraDef{
		Eye:    eye,
		Target: center,
		FOV:    50,
		Near:   radius * 0.05,
		Far:    radius * 20,
		Width:  width,
		Height: height,
	}.Camera()
}

// Build creates the scene. Malformed fragments are skipped with a warning.
// Without a camera definition the camera frames the scene.
func (d SceneDef) Build(log Logger) (*core.Scene, core.Camera, error) {
	log = core.OrNop(log)
	scene := core.NewScene()
	for i, fd := range d.Fragments {
		name := fd.Name
		if name == "" {
			name = fmt.Sprintf("fragment_%d", i)
		}
		f := core.NewFragment(name, fd.Positions, fd.Normals, fd.Indices)
		if fd.ID != "" {
			f.ID = core.FragmentID(fd.ID)
		}
		if fd.Transform != nil {
			f.Transform = *fd.Transform
		}
		if err := f.Validate(); err != nil {
			log.Warnf("skipping fragment: %v", err)
			continue
		}
		if scene.Fragment(f.ID) != nil {
			log.Warnf("skipping fragment %q: duplicate id %s", name, f.ID)
			continue
		}
		scene.AddFragment(f)
	}
	if scene.Len() == 0 {
		return nil, core.Camera{}, ErrEmptyScene
	}
	scene.Commit()

	var cam core.Camera
	if d.Camera != nil {
		cam = d.Camera.Camera()
	} else {
		cam = FrameCamera(scene.Bounds(), 1280, 720)
	}
	return scene, cam, nil
}

func LoadScene(data []byte, log Logger) (*core.Scene, core.Camera, error) {
	var def SceneDef
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, core.Camera{}, fmt.Errorf("decode scene: %w", err)
	}
	scene, cam, err := def.Build(log)
	if err != nil {
		return nil, core.Camera{}, fmt.Errorf("load scene: %w", err)
	}
	return scene, cam, nil
}

func LoadSceneFile(path string, log Logger) (*core.Scene, core.Camera, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, core.Camera{}, fmt.Errorf("load scene: %w", err)
	}
	scene, cam, err := LoadScene(data, log)
	if err != nil {
		return nil, core.Camera{}, fmt.Errorf("%s: %w", path, err)
	}
	return scene, cam, nil
}

// SceneFromFragments wraps already built fragments, such as the demo car.
func SceneFromFragments(frags []*core.Fragment) *core.Scene {
	scene := core.NewScene()
	for _, f := range frags {
		scene.AddFragment(f)
	}
	scene.Commit()
	return scene
}

// DemoScene builds the procedural car and a camera framing it.
func DemoScene(opts procedural.CarOptions) (*core.Scene, core.Camera, error) {
	frags, err := procedural.DemoCar(opts)
	if err != nil {
		return nil, core.Camera{}, fmt.Errorf("demo scene: %w", err)
	}
	scene := SceneFromFragments(frags)
	return scene, FrameCamera(scene.Bounds(), 1280, 720), nil
}
