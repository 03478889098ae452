package classify

import (
	"github.com/google/uuid"

	"github.com/gekko3d/meshparts/meshrt/core"
)

// Part is a named group of whole fragments.
type Part struct {
	ID          string            `json:"id"`
	Label       Label             `json:"label"`
	Name        string            `json:"name"`
	Fragments   []core.FragmentID `json:"fragments"`
	AABB        core.AABB         `json:"aabb"`
	VertexCount int               `json:"vertex_count"`
}

func newPart(label Label, name string, frags []*core.Fragment) Part {
	p := Part{
		ID:    uuid.NewString(),
		Label: label,
		Name:  name,
		AABB:  core.EmptyAABB(),
	}
	for _, f := range frags {
		p.Fragments = append(p.Fragments, f.ID)
		p.AABB = p.AABB.Union(f.WorldAABB)
		p.VertexCount += f.VertexCount()
	}
	return p
}

// Index answers which part a fragment belongs to.
type Index struct {
	parts  []Part
	byFrag map[core.FragmentID]int
}

func NewIndex(parts []Part) *Index {
	idx := &Index{parts: parts, byFrag: make(map[core.FragmentID]int)}
	for i, p := range parts {
		for _, f := range p.Fragments {
			idx.byFrag[f] = i
		}
	}
	return idx
}

func (x *Index) PartOf(id core.FragmentID) (Part, bool) {
	if x == nil {
		return Part{}, false
	}
	i, ok := x.byFrag[id]
	if !ok {
		return Part{}, false
	}
	return x.parts[i], true
}

// PartFragments returns every fragment of the part containing id, or nil.
func (x *Index) PartFragments(id core.FragmentID) []core.FragmentID {
	p, ok := x.PartOf(id)
	if !ok {
		return nil
	}
	return p.Fragments
}

func (x *Index) Parts() []Part {
	if x == nil {
		return nil
	}
	return x.parts
}

func (x *Index) ByName(name string) (Part, bool) {
	if x == nil {
		return Part{}, false
	}
	for _, p := range x.parts {
		if p.Name == name {
			return p, true
		}
	}
	return Part{}, false
}
