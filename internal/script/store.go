package script

// Store maps variable names to their current values. It is the only root of
// an arena generation: whatever is not reachable from it is dropped at the
// next regeneration.
type Store struct {
	heap     *heap
	bindings []*Term // creation order
}

func newStore(h *heap) *Store {
	return &Store{heap: h}
}

func (st *Store) lookup(name string) *Term {
	for _, b := range st.bindings {
		if b.text == name {
			return b
		}
	}
	return nil
}

// Get returns the value bound to name.
func (st *Store) Get(name string) (*Term, bool) {
	if b := st.lookup(name); b != nil {
		return b.value, true
	}
	return nil, false
}

// Set binds name to value, updating an existing binding in place.
func (st *Store) Set(name string, value *Term) {
	if b := st.lookup(name); b != nil {
		b.value = value
		return
	}
	st.bindings = append(st.bindings, st.heap.binding(name, value))
}

// Len returns the number of bindings.
func (st *Store) Len() int {
	return len(st.bindings)
}

// Bindings returns the binding terms, most recently created first.
func (st *Store) Bindings() []*Term {
	out := make([]*Term, len(st.bindings))
	for i, b := range st.bindings {
		out[len(out)-1-i] = b
	}
	return out
}
