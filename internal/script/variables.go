package script

// Variable is a rendered snapshot of one binding.
type Variable struct {
	Name  string
	Kind  Kind
	Value string
}

// Variables returns every binding, most recently created first.
func (s *Session) Variables() []Variable {
	bindings := s.store().Bindings()
	out := make([]Variable, 0, len(bindings))
	for _, b := range bindings {
		v := Variable{Name: b.text, Kind: b.value.Kind(), Value: s.VariableString(b.text)}
		if v.Kind == KindString {
			v.Value = InspectString(b.value)
		}
		out = append(out, v)
	}
	return out
}

// Value returns the term bound to name without resolving it.
func (s *Session) Value(name string) (*Term, bool) {
	return s.store().Get(name)
}

// VariableString returns the string form of a variable, "" when unbound.
func (s *Session) VariableString(name string) string {
	v, ok := s.store().Get(name)
	if !ok {
		return ""
	}
	str, err := s.ToString(v)
	if err != nil {
		s.log.WithError(err).Debugf("Reading variable %s", name)
	}
	return str
}

// VariableNumber returns the numeric form of a variable, 0 when unbound.
func (s *Session) VariableNumber(name string) int32 {
	v, ok := s.store().Get(name)
	if !ok {
		return 0
	}
	n, err := s.ToNumber(v)
	if err != nil {
		s.log.WithError(err).Debugf("Reading variable %s", name)
	}
	return n
}

// VariableBoolean returns the boolean form of a variable, false when unbound.
func (s *Session) VariableBoolean(name string) bool {
	v, ok := s.store().Get(name)
	if !ok {
		return false
	}
	b, err := s.ToBoolean(v)
	if err != nil {
		s.log.WithError(err).Debugf("Reading variable %s", name)
	}
	return b
}

// SetVariable binds name to value. Only scalar values may be bound.
func (s *Session) SetVariable(name string, value *Term) error {
	if !value.Kind().Scalar() {
		return ErrNotScalar
	}
	s.store().Set(name, value)
	return nil
}

// SetString binds name to a new string term.
func (s *Session) SetString(name, value string) {
	s.store().Set(name, s.NewString(value))
}

// SetBoolean binds name to a new boolean term.
func (s *Session) SetBoolean(name string, value bool) {
	s.store().Set(name, s.NewBoolean(value))
}

// SetNumber binds name to a new number term.
func (s *Session) SetNumber(name string, value int32) {
	s.store().Set(name, s.NewNumber(value))
}
