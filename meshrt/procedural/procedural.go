// Package procedural builds demo assets from signed distance fields.
package procedural

import (
	"errors"
	"fmt"
	"math"

	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/gekko3d/meshparts/meshrt/core"
)

var ErrEmptyPiece = errors.New("piece tessellated to no triangles")

type CarOptions struct {
	// Resolution is the marching cubes cell size in world units.
	Resolution float64
	// Merge packs every piece into one fragment, the way an exported asset
	// often arrives.
	Merge bool
}

func DefaultCarOptions() CarOptions {
	return CarOptions{Resolution: 0.05}
}

type piece struct {
	name string
	s    sdf.SDF3
}

// Box returns a box of the given size centered at c.
func Box(size, c v3.Vec) (sdf.SDF3, error) {
	s, err := sdf.Box3D(size, 0)
	if err != nil {
		return nil, fmt.Errorf("box %v: %w", size, err)
	}
	return sdf.Transform3D(s, sdf.Translate3d(c)), nil
}

// Wheel returns a cylinder with its axis along X centered at c.
func Wheel(width, radius float64, c v3.Vec) (sdf.SDF3, error) {
	s, err := sdf.Cylinder3D(width, radius, 0)
	if err != nil {
		return nil, fmt.Errorf("wheel: %w", err)
	}
	m := sdf.Translate3d(c).Mul(sdf.RotateY(math.Pi / 2))
	return sdf.Transform3D(s, m), nil
}

// DemoCar builds a toy car: body, cabin, spoiler, two mirrors and four
// wheels. +Z is the front and +Y is up; the wheels touch y=0.
func DemoCar(opts CarOptions) ([]*core.Fragment, error) {
	if opts.Resolution <= 0 {
		opts.Resolution = DefaultCarOptions().Resolution
	}

	var pieces []piece
	add := func(name string, s sdf.SDF3, err error) error {
		if err != nil {
			return err
		}
		pieces = append(pieces, piece{name, s})
		return nil
	}

	const (
		wheelR = 0.35
		wheelW = 0.25
	)
	b, err := Box(v3.Vec{X: 1.8, Y: 0.6, Z: 4.2}, v3.Vec{X: 0, Y: 0.55, Z: 0})
	if err := add("body", b, err); err != nil {
		return nil, err
	}
	cab, err := Box(v3.Vec{X: 1.5, Y: 0.5, Z: 2.0}, v3.Vec{X: 0, Y: 1.1, Z: -0.2})
	if err := add("cabin", cab, err); err != nil {
		return nil, err
	}
	sp, err := Box(v3.Vec{X: 1.6, Y: 0.05, Z: 0.3}, v3.Vec{X: 0, Y: 1.2, Z: -1.95})
	if err := add("spoiler", sp, err); err != nil {
		return nil, err
	}
	sides := []struct {
		name string
		x    float64
	}{{"l", -1}, {"r", 1}}
	for _, side := range sides {
		m, err := Box(v3.Vec{X: 0.15, Y: 0.1, Z: 0.1}, v3.Vec{X: side.x * 0.98, Y: 0.95, Z: 0.7})
		if err := add("mirror_"+side.name, m, err); err != nil {
			return nil, err
		}
	}
	for _, axle := range []struct {
		name string
		z    float64
	}{{"f", 1.35}, {"r", -1.35}} {
		for _, side := range sides {
			w, err := Wheel(wheelW, wheelR, v3.Vec{X: side.x * (0.9 + wheelW/2), Y: wheelR, Z: axle.z})
			if err := add("wheel_"+axle.name+side.name, w, err); err != nil {
				return nil, err
			}
		}
	}

	frags := make([]*core.Fragment, 0, len(pieces))
	for _, p := range pieces {
		pos, idx := Tessellate(p.s, opts.Resolution)
		if len(idx) == 0 {
			return nil, fmt.Errorf("%s at resolution %g: %w", p.name, opts.Resolution, ErrEmptyPiece)
		}
		frags = append(frags, core.NewFragment(p.name, pos, nil, idx))
	}
	if !opts.Merge {
		return frags, nil
	}
	return []*core.Fragment{merge("car", frags)}, nil
}

// Tessellate runs marching cubes at the given cell size and welds the
// triangle soup into an indexed mesh. The cell shrinks to half the thinnest
// extent so thin shapes still get samples inside them.
func Tessellate(s sdf.SDF3, cell float64) ([]float32, []uint32) {
	bb := s.BoundingBox()
	size := bb.Size()
	longest := math.Max(size.X, math.Max(size.Y, size.Z))
	if thinnest := math.Min(size.X, math.Min(size.Y, size.Z)); thinnest > 0 {
		cell = math.Min(cell, thinnest/2)
	}
	cells := max(8, int(math.Ceil(longest/cell)))

	tris := render.ToTriangles(s, render.NewMarchingCubesUniform(cells))

	type key [3]int64
	const q = 1e5
	weld := make(map[key]uint32)
	var pos []float32
	idx := make([]uint32, 0, len(tris)*3)
	for _, t := range tris {
		var ids [3]uint32
		for j := 0; j < 3; j++ {
			v := t[j]
			k := key{int64(math.Round(v.X * q)), int64(math.Round(v.Y * q)), int64(math.Round(v.Z * q))}
			id, ok := weld[k]
			if !ok {
				id = uint32(len(pos) / 3)
				weld[k] = id
				pos = append(pos, float32(v.X), float32(v.Y), float32(v.Z))
			}
			ids[j] = id
		}
		if ids[0] == ids[1] || ids[1] == ids[2] || ids[0] == ids[2] {
			// collapsed by welding
			continue
		}
		idx = append(idx, ids[0], ids[1], ids[2])
	}
	return pos, idx
}

func merge(name string, frags []*core.Fragment) *core.Fragment {
	var pos, normals []float32
	var idx []uint32
	for _, f := range frags {
		base := uint32(len(pos) / 3)
		pos = append(pos, f.Positions...)
		normals = append(normals, f.Normals...)
		for _, i := range f.Indices {
			idx = append(idx, base+i)
		}
	}
	return core.NewFragment(name, pos, normals, idx)
}
