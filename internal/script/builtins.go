package script

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrNotAssignable is returned when the left side of '=' is not a name.
var ErrNotAssignable = errors.New("left side of assignment is not an identifier")

// assign binds args[0] to the resolved args[1] and returns the value.
// A call that produced no value binds the empty string.
func assign(s *Session, args []*Term) (*Term, error) {
	target := args[0]
	if target.Kind() != KindIdentifier {
		return nil, errors.Wrapf(ErrNotAssignable, "got %s", InspectString(target))
	}
	value, err := s.Resolve(args[1])
	if err != nil {
		return nil, err
	}
	if value == nil {
		value = s.NewString("")
	}
	s.store().Set(target.text, value)
	return value, nil
}

func add(s *Session, args []*Term) (*Term, error) {
	a, b, err := s.operands(args)
	if err != nil {
		return nil, err
	}
	return s.NewNumber(a + b), nil
}

func subtract(s *Session, args []*Term) (*Term, error) {
	a, b, err := s.operands(args)
	if err != nil {
		return nil, err
	}
	return s.NewNumber(a - b), nil
}

func (s *Session) operands(args []*Term) (int32, int32, error) {
	a, err := s.ToNumber(args[0])
	if err != nil {
		return 0, 0, err
	}
	b, err := s.ToNumber(args[1])
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

// info prints every argument as a string, one per line.
func info(s *Session, args []*Term) (*Term, error) {
	for _, arg := range args {
		str, err := s.ToString(arg)
		if err != nil {
			return nil, err
		}
		fmt.Fprintln(s.out, str)
	}
	return nil, nil
}

func help(s *Session, _ []*Term) (*Term, error) {
	for _, fn := range registry {
		fmt.Fprintf(s.out, "%s/%d\n", fn.Name, fn.Arity)
	}
	return nil, nil
}

func vars(s *Session, _ []*Term) (*Term, error) {
	for _, b := range s.store().Bindings() {
		Inspect(s.out, b)
		fmt.Fprintln(s.out)
	}
	return nil, nil
}
