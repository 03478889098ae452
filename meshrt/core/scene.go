package core

// Scene is the loaded asset: an ordered fragment list indexed by id.
type Scene struct {
	fragments []*Fragment
	index     map[FragmentID]*Fragment
}

func NewScene() *Scene {
	return &Scene{
		index: make(map[FragmentID]*Fragment),
	}
}

// AddFragment appends f and refreshes its world box from the current
// transform.
func (s *Scene) AddFragment(f *Fragment) {
	f.UpdateWorldAABB()
	s.fragments = append(s.fragments, f)
	s.index[f.ID] = f
}

func (s *Scene) RemoveFragment(id FragmentID) {
	for i, f := range s.fragments {
		if f.ID == id {
			s.fragments = append(s.fragments[:i], s.fragments[i+1:]...)
			delete(s.index, id)
			return
		}
	}
}

// Replace swaps one fragment for a list of children, keeping scene order.
func (s *Scene) Replace(id FragmentID, children []*Fragment) bool {
	for i, f := range s.fragments {
		if f.ID != id {
			continue
		}
		rest := append([]*Fragment{}, s.fragments[i+1:]...)
		s.fragments = append(append(s.fragments[:i], children...), rest...)
		delete(s.index, id)
		for _, c := range children {
			c.UpdateWorldAABB()
			s.index[c.ID] = c
		}
		return true
	}
	return false
}

func (s *Scene) Fragment(id FragmentID) *Fragment {
	return s.index[id]
}

// Fragments returns the fragments in load order. The slice is a copy.
func (s *Scene) Fragments() []*Fragment {
	return append([]*Fragment(nil), s.fragments...)
}

func (s *Scene) Len() int {
	return len(s.fragments)
}

// Commit recomputes world bounds after transforms or buffers changed.
func (s *Scene) Commit() {
	for _, f := range s.fragments {
		f.UpdateWorldAABB()
	}
}

// Bounds is the union of every fragment's world box.
func (s *Scene) Bounds() AABB {
	box := EmptyAABB()
	for _, f := range s.fragments {
		box = box.Union(f.WorldAABB)
	}
	return box
}
