package bvh

import (
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
)

// BVHNode is one node of the tree. Leaves have LeafCount > 0 and LeafFirst
// pointing at the caller's AABB index.
type BVHNode struct {
	Min       mgl32.Vec3
	Max       mgl32.Vec3
	Left      int32
	Right     int32
	LeafFirst int32
	LeafCount int32
}

type AABBItem struct {
	Min      mgl32.Vec3
	Max      mgl32.Vec3
	Centroid mgl32.Vec3
	Index    int
}

// Tree is a binary AABB hierarchy over fragment world bounds.
type Tree struct {
	Nodes []BVHNode
}

type Builder struct{}

func (b *Builder) Build(aabbs [][2]mgl32.Vec3) *Tree {
	tree := &Tree{}
	if len(aabbs) == 0 {
		return tree
	}

	items := make([]AABBItem, 0, len(aabbs))
	for i, bounds := range aabbs {
		if bounds[0].X() > bounds[1].X() {
			// empty box, nothing to hit
			continue
		}
		items = append(items, AABBItem{
			Min:      bounds[0],
			Max:      bounds[1],
			Centroid: bounds[0].Add(bounds[1]).Mul(0.5),
			Index:    i,
		})
	}
	if len(items) == 0 {
		return tree
	}

	b.recursiveBuild(items, &tree.Nodes)
	return tree
}

func (b *Builder) recursiveBuild(items []AABBItem, nodes *[]BVHNode) int32 {
	idx := int32(len(*nodes))
	*nodes = append(*nodes, BVHNode{Left: -1, Right: -1, LeafFirst: -1, LeafCount: 0})

	minB := mgl32.Vec3{float32(math.Inf(1)), float32(math.Inf(1)), float32(math.Inf(1))}
	maxB := mgl32.Vec3{float32(math.Inf(-1)), float32(math.Inf(-1)), float32(math.Inf(-1))}

	for _, it := range items {
		minB = mgl32.Vec3{min(minB.X(), it.Min.X()), min(minB.Y(), it.Min.Y()), min(minB.Z(), it.Min.Z())}
		maxB = mgl32.Vec3{max(maxB.X(), it.Max.X()), max(maxB.Y(), it.Max.Y()), max(maxB.Z(), it.Max.Z())}
	}

	(*nodes)[idx].Min = minB
	(*nodes)[idx].Max = maxB

	if len(items) == 1 {
		(*nodes)[idx].LeafFirst = int32(items[0].Index)
		(*nodes)[idx].LeafCount = 1
		return idx
	}

	// Split on the longest axis at the median centroid.
	extent := maxB.Sub(minB)
	axis := 0
	if extent.Y() > extent.X() {
		axis = 1
	}
	if extent.Z() > extent[axis] {
		axis = 2
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Centroid[axis] < items[j].Centroid[axis]
	})

	mid := len(items) / 2
	left := b.recursiveBuild(items[:mid], nodes)
	right := b.recursiveBuild(items[mid:], nodes)
	(*nodes)[idx].Left = left
	(*nodes)[idx].Right = right

	return idx
}
