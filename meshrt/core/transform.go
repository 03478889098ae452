package core

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Transform is a fragment's world placement.
type Transform struct {
	Position mgl32.Vec3 `json:"position"`
	Rotation mgl32.Quat `json:"rotation"`
	Scale    mgl32.Vec3 `json:"scale"`
}

func NewTransform() Transform {
	return Transform{
		Position: mgl32.Vec3{0, 0, 0},
		Rotation: mgl32.QuatIdent(),
		Scale:    mgl32.Vec3{1, 1, 1},
	}
}

// normalized fills in zero-valued fields left by JSON decoding.
func (t Transform) normalized() Transform {
	if t.Rotation.W == 0 && t.Rotation.V.Len() == 0 {
		t.Rotation = mgl32.QuatIdent()
	}
	if t.Scale == (mgl32.Vec3{}) {
		t.Scale = mgl32.Vec3{1, 1, 1}
	}
	return t
}

func (t Transform) ObjectToWorld() mgl32.Mat4 {
	t = t.normalized()
	// M = T * R * S
	translate := mgl32.Translate3D(t.Position.X(), t.Position.Y(), t.Position.Z())
	rotate := t.Rotation.Normalize().Mat4()
	scale := mgl32.Scale3D(t.Scale.X(), t.Scale.Y(), t.Scale.Z())

	return translate.Mul4(rotate).Mul4(scale)
}

func (t Transform) WorldToObject() mgl32.Mat4 {
	t = t.normalized()
	// inv(M) = inv(S) * inv(R) * inv(T)
	invScale := mgl32.Scale3D(1.0/t.Scale.X(), 1.0/t.Scale.Y(), 1.0/t.Scale.Z())
	invRotate := t.Rotation.Normalize().Conjugate().Mat4()
	invTranslate := mgl32.Translate3D(-t.Position.X(), -t.Position.Y(), -t.Position.Z())

	return invScale.Mul4(invRotate).Mul4(invTranslate)
}

// NormalMatrix is the inverse-transpose of the rotation/scale block of m.
func NormalMatrix(m mgl32.Mat4) mgl32.Mat3 {
	upper := m.Mat3()
	if upper.Det() == 0 {
		return mgl32.Ident3()
	}
	return upper.Inv().Transpose()
}

// LiveScale is the ephemeral scene-graph scale a gizmo applies while dragging.
// It is never persisted; baking folds it into the vertex buffers and resets it.
type LiveScale struct {
	Pivot mgl32.Vec3
	Scale mgl32.Vec3
}

func IdentityLiveScale() LiveScale {
	return LiveScale{Scale: mgl32.Vec3{1, 1, 1}}
}

func (l LiveScale) IsIdentity() bool {
	return l.Scale == (mgl32.Vec3{1, 1, 1}) || l.Scale == (mgl32.Vec3{})
}

// Matrix scales about Pivot in world space.
func (l LiveScale) Matrix() mgl32.Mat4 {
	if l.IsIdentity() {
		return mgl32.Ident4()
	}
	p := l.Pivot
	return mgl32.Translate3D(p.X(), p.Y(), p.Z()).
		Mul4(mgl32.Scale3D(l.Scale.X(), l.Scale.Y(), l.Scale.Z())).
		Mul4(mgl32.Translate3D(-p.X(), -p.Y(), -p.Z()))
}
