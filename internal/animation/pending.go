package animation

// pendingSet is an insertion-ordered set of animation ids. Re-adding an id
// keeps its original position.
type pendingSet struct {
	order []string
	index map[string]struct{}
}

func newPendingSet() *pendingSet {
	return &pendingSet{index: make(map[string]struct{})}
}

func (s *pendingSet) add(id string) {
	if _, ok := s.index[id]; ok {
		return
	}
	s.index[id] = struct{}{}
	s.order = append(s.order, id)
}

func (s *pendingSet) remove(id string) {
	if _, ok := s.index[id]; !ok {
		return
	}
	delete(s.index, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *pendingSet) has(id string) bool {
	_, ok := s.index[id]
	return ok
}

func (s *pendingSet) len() int { return len(s.order) }

// ids returns a copy in insertion order.
func (s *pendingSet) ids() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

func (s *pendingSet) clear() {
	s.order = nil
	clear(s.index)
}
