package bvh

import (
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
)

// Hit is a leaf whose box the ray enters at distance T.
type Hit struct {
	Index int
	T     float32
}

// Raycast returns every leaf box hit by the ray, nearest entry first.
func (t *Tree) Raycast(origin, dir mgl32.Vec3, maxDist float32) []Hit {
	if t == nil || len(t.Nodes) == 0 {
		return nil
	}

	var hits []Hit
	stack := []int32{0}
	for len(stack) > 0 {
		n := t.Nodes[stack[len(stack)-1]]
		stack = stack[:len(stack)-1]

		tMin, tMax := IntersectAABB(origin, dir, n.Min, n.Max)
		if tMin > tMax || tMax < 0 || tMin > maxDist {
			continue
		}
		if n.LeafCount > 0 {
			hits = append(hits, Hit{Index: int(n.LeafFirst), T: tMin})
			continue
		}
		if n.Left >= 0 {
			stack = append(stack, n.Left)
		}
		if n.Right >= 0 {
			stack = append(stack, n.Right)
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].T == hits[j].T {
			return hits[i].Index < hits[j].Index
		}
		return hits[i].T < hits[j].T
	})
	return hits
}

// IntersectAABB is the slab test. The ray misses when the returned tMin > tMax.
func IntersectAABB(origin, dir, minB, maxB mgl32.Vec3) (float32, float32) {
	invDir := mgl32.Vec3{1.0 / (dir.X() + 1e-8), 1.0 / (dir.Y() + 1e-8), 1.0 / (dir.Z() + 1e-8)}
	t1 := minB.Sub(origin)
	t1 = mgl32.Vec3{t1.X() * invDir.X(), t1.Y() * invDir.Y(), t1.Z() * invDir.Z()}
	t2 := maxB.Sub(origin)
	t2 = mgl32.Vec3{t2.X() * invDir.X(), t2.Y() * invDir.Y(), t2.Z() * invDir.Z()}

	tMinV := mgl32.Vec3{min(t1.X(), t2.X()), min(t1.Y(), t2.Y()), min(t1.Z(), t2.Z())}
	tMaxV := mgl32.Vec3{max(t1.X(), t2.X()), max(t1.Y(), t2.Y()), max(t1.Z(), t2.Z())}

	realMin := max(0, tMinV.X(), tMinV.Y(), tMinV.Z())
	realMax := min(math.MaxFloat32, tMaxV.X(), tMaxV.Y(), tMaxV.Z())

	return realMin, realMax
}
