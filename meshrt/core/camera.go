package core

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Camera is the active view: matrices plus viewport size in pixels.
type Camera struct {
	View       mgl32.Mat4
	Projection mgl32.Mat4
	Width      int
	Height     int
}

func NewPerspectiveCamera(eye, target, up mgl32.Vec3, fovDeg, near, far float32, width, height int) Camera {
	aspect := float32(1)
	if height > 0 {
		aspect = float32(width) / float32(height)
	}
	return Camera{
		View:       mgl32.LookAtV(eye, target, up),
		Projection: mgl32.Perspective(mgl32.DegToRad(fovDeg), aspect, near, far),
		Width:      width,
		Height:     height,
	}
}

func (c Camera) ViewProjection() mgl32.Mat4 {
	return c.Projection.Mul4(c.View)
}

// Project maps a world point to pixel coordinates (origin top-left).
// ok is false for points behind the camera.
func (c Camera) Project(p mgl32.Vec3) (x, y float32, ok bool) {
	clip := c.ViewProjection().Mul4x1(p.Vec4(1.0))
	if clip.W() <= 1e-6 {
		return 0, 0, false
	}
	ndc := clip.Vec3().Mul(1 / clip.W())
	x = (ndc.X() + 1) * 0.5 * float32(c.Width)
	y = (1 - ndc.Y()) * 0.5 * float32(c.Height)
	return x, y, true
}

// ScreenRay returns a world-space ray through pixel (x, y).
func (c Camera) ScreenRay(x, y float32) (origin, dir mgl32.Vec3) {
	// Normalized Device Coordinates
	nx := (2.0*x)/float32(c.Width) - 1.0
	ny := 1.0 - (2.0*y)/float32(c.Height) // Flip Y for NDC

	inv := c.ViewProjection().Inv()
	near := inv.Mul4x1(mgl32.Vec4{nx, ny, -1, 1})
	far := inv.Mul4x1(mgl32.Vec4{nx, ny, 1, 1})
	n := near.Vec3().Mul(1 / near.W())
	f := far.Vec3().Mul(1 / far.W())
	return n, f.Sub(n).Normalize()
}
