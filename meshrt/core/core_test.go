package core

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unitCube returns an indexed cube spanning [0,1]^3.
func unitCube() ([]float32, []uint32) {
	pos := []float32{
		0, 0, 0, 1, 0, 0, 1, 1, 0, 0, 1, 0,
		0, 0, 1, 1, 0, 1, 1, 1, 1, 0, 1, 1,
	}
	idx := []uint32{
		0, 2, 1, 0, 3, 2,
		4, 5, 6, 4, 6, 7,
		0, 1, 5, 0, 5, 4,
		3, 7, 6, 3, 6, 2,
		0, 4, 7, 0, 7, 3,
		1, 2, 6, 1, 6, 5,
	}
	return pos, idx
}

func TestTransformComposition(t *testing.T) {
	tr := NewTransform()
	tr.Position = mgl32.Vec3{10, 20, 30}
	tr.Scale = mgl32.Vec3{2, 2, 2}
	tr.Rotation = mgl32.QuatRotate(mgl32.DegToRad(30), mgl32.Vec3{0, 1, 0})

	identity := tr.ObjectToWorld().Mul4(tr.WorldToObject())
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			want := float32(0)
			if i == j {
				want = 1
			}
			assert.InDelta(t, want, identity.At(i, j), 1e-4, "element (%d,%d)", i, j)
		}
	}
}

func TestTransformZeroValueIsIdentity(t *testing.T) {
	var tr Transform
	m := tr.ObjectToWorld()
	assert.True(t, m.ApproxEqual(mgl32.Ident4()))
}

func TestNormalMatrixNonUniformScale(t *testing.T) {
	tr := NewTransform()
	tr.Scale = mgl32.Vec3{2, 1, 1}

	n := NormalMatrix(tr.ObjectToWorld()).Mul3x1(mgl32.Vec3{1, 1, 0}).Normalize()
	// Stretching along X flattens the normal towards Y.
	assert.Greater(t, n.Y(), n.X())
}

func TestLiveScaleMatrixKeepsPivot(t *testing.T) {
	live := LiveScale{Pivot: mgl32.Vec3{1, 1, 1}, Scale: mgl32.Vec3{3, 2, 1}}
	p := live.Matrix().Mul4x1(mgl32.Vec4{1, 1, 1, 1}).Vec3()
	assert.True(t, p.ApproxEqual(mgl32.Vec3{1, 1, 1}))

	q := live.Matrix().Mul4x1(mgl32.Vec4{2, 2, 2, 1}).Vec3()
	assert.True(t, q.ApproxEqual(mgl32.Vec3{4, 3, 2}))

	assert.True(t, IdentityLiveScale().IsIdentity())
	assert.True(t, LiveScale{}.IsIdentity())
}

func TestFragmentWorldAABB(t *testing.T) {
	pos, idx := unitCube()
	f := NewFragment("cube", pos, nil, idx)
	require.Len(t, f.Normals, len(pos))

	f.Transform.Position = mgl32.Vec3{5, 0, 0}
	f.Transform.Scale = mgl32.Vec3{2, 1, 1}
	f.UpdateWorldAABB()

	assert.True(t, f.WorldAABB.Min.ApproxEqual(mgl32.Vec3{5, 0, 0}))
	assert.True(t, f.WorldAABB.Max.ApproxEqual(mgl32.Vec3{7, 1, 1}))
}

func TestSceneAddFragmentRefreshesWorldBox(t *testing.T) {
	pos, idx := unitCube()
	f := NewFragment("cube", pos, nil, idx)
	f.Transform.Position = mgl32.Vec3{3, 0, 0}

	s := NewScene()
	s.AddFragment(f)
	assert.True(t, f.WorldAABB.Min.ApproxEqual(mgl32.Vec3{3, 0, 0}))
	assert.True(t, s.Bounds().Max.ApproxEqual(mgl32.Vec3{4, 1, 1}))
}

func TestFragmentValidate(t *testing.T) {
	pos, idx := unitCube()
	assert.NoError(t, NewFragment("ok", pos, nil, idx).Validate())

	cases := map[string]*Fragment{
		"no positions":   {Name: "a", Indices: idx},
		"no indices":     {Name: "b", Positions: pos},
		"ragged":         {Name: "c", Positions: pos[:5], Indices: idx},
		"out of range":   {Name: "d", Positions: pos, Indices: []uint32{0, 1, 99}},
		"normals length": {Name: "e", Positions: pos, Normals: []float32{0, 1, 0}, Indices: idx},
	}
	for name, f := range cases {
		err := f.Validate()
		assert.True(t, errors.Is(err, ErrMalformedFragment), name)
	}
}

func TestSceneReplaceKeepsOrder(t *testing.T) {
	pos, idx := unitCube()
	s := NewScene()
	a := NewFragment("a", pos, nil, idx)
	b := NewFragment("b", pos, nil, idx)
	c := NewFragment("c", pos, nil, idx)
	s.AddFragment(a)
	s.AddFragment(b)
	s.AddFragment(c)

	b1 := NewFragment("b.0", pos, nil, idx)
	b2 := NewFragment("b.1", pos, nil, idx)
	require.True(t, s.Replace(b.ID, []*Fragment{b1, b2}))

	var names []string
	for _, f := range s.Fragments() {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"a", "b.0", "b.1", "c"}, names)
	assert.Nil(t, s.Fragment(b.ID))
	assert.Equal(t, b2, s.Fragment(b2.ID))

	s.RemoveFragment(a.ID)
	assert.Equal(t, 3, s.Len())
}

func TestCameraProjectAndRay(t *testing.T) {
	cam := NewPerspectiveCamera(mgl32.Vec3{0, 0, 10}, mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 1, 0}, 60, 0.1, 100, 800, 600)

	x, y, ok := cam.Project(mgl32.Vec3{0, 0, 0})
	require.True(t, ok)
	assert.InDelta(t, 400, x, 1e-3)
	assert.InDelta(t, 300, y, 1e-3)

	// Points above the target land in the upper half of the screen.
	_, y, ok = cam.Project(mgl32.Vec3{0, 1, 0})
	require.True(t, ok)
	assert.Less(t, y, float32(300))

	_, _, ok = cam.Project(mgl32.Vec3{0, 0, 20})
	assert.False(t, ok, "point behind the camera")

	origin, dir := cam.ScreenRay(400, 300)
	assert.InDelta(t, 0, origin.X(), 1e-3)
	assert.InDelta(t, -1, dir.Z(), 1e-3)
}
