package script

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	multierror "github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// MaxResolveDepth bounds how many identifiers a single resolution may follow.
const MaxResolveDepth = 64

// ErrReferenceCycle is wrapped by CycleError.
var ErrReferenceCycle = errors.New("reference cycle")

// CycleError is returned when resolving an identifier leads back to itself
// or follows more than MaxResolveDepth identifiers.
type CycleError struct {
	Chain []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("reference cycle: %s", strings.Join(e.Chain, " -> "))
}

func (e *CycleError) Unwrap() error {
	return ErrReferenceCycle
}

// Resolve evaluates t. Identifiers resolve to their variable's value (an
// unbound name resolves to the empty string), calls run their handler, and
// every other term resolves to itself. The result is nil when a handler
// produced no value.
func (s *Session) Resolve(t *Term) (*Term, error) {
	return s.resolve(t, nil)
}

func (s *Session) resolve(t *Term, chain []string) (*Term, error) {
	switch t.Kind() {
	case KindIdentifier:
		for _, name := range chain {
			if name == t.text {
				return nil, &CycleError{Chain: append(chain, t.text)}
			}
		}
		if len(chain) >= MaxResolveDepth {
			return nil, &CycleError{Chain: append(chain, t.text)}
		}
		return s.resolve(s.variable(t.text), append(chain, t.text))
	case KindCall:
		return s.call(t)
	}
	return t, nil
}

func (s *Session) call(t *Term) (*Term, error) {
	if t.handler == nil {
		return s.NewBoolean(false), nil
	}
	return t.handler(s, t.args)
}

// variable returns the value bound to name, or a fresh empty string.
func (s *Session) variable(name string) *Term {
	if v, ok := s.store().Get(name); ok {
		return v
	}
	return s.NewString("")
}

// ToBoolean resolves t and coerces it. Strings are false when empty or
// equal to "false" in any case; numbers are false when zero.
func (s *Session) ToBoolean(t *Term) (bool, error) {
	v, err := s.Resolve(t)
	if err != nil {
		return false, err
	}
	switch v.Kind() {
	case KindString:
		return v.text != "" && !strings.EqualFold(v.text, "false"), nil
	case KindNumber:
		return v.number != 0, nil
	case KindBoolean:
		return v.boolean, nil
	}
	return false, nil
}

// ToNumber resolves t and coerces it to a 32-bit integer.
func (s *Session) ToNumber(t *Term) (int32, error) {
	v, err := s.Resolve(t)
	if err != nil {
		return 0, err
	}
	switch v.Kind() {
	case KindString:
		return parseNumber(v.text), nil
	case KindNumber:
		return v.number, nil
	case KindBoolean:
		if v.boolean {
			return 1, nil
		}
		return 0, nil
	}
	return 0, nil
}

// ToString resolves t and renders it as a string.
func (s *Session) ToString(t *Term) (string, error) {
	v, err := s.Resolve(t)
	if err != nil {
		return "", err
	}
	switch v.Kind() {
	case KindString:
		return v.text, nil
	case KindNumber:
		return strconv.FormatInt(int64(v.number), 10), nil
	case KindBoolean:
		return strconv.FormatBool(v.boolean), nil
	}
	return "", nil
}

// parseNumber reads an integer the way strtoull(s, NULL, 0) does: leading
// blanks, an optional sign, then "0x" hex, "0" octal or decimal digits up to
// the first character that is not a digit. Overflow saturates. The result is
// truncated to 32 bits.
func parseNumber(s string) int32 {
	i := 0
	for i < len(s) && isSpace(s[i]) {
		i++
	}

	neg := false
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		neg = s[i] == '-'
		i++
	}

	base := uint64(10)
	switch {
	case i+2 < len(s) && s[i] == '0' && (s[i+1]|0x20) == 'x' && digitValue(s[i+2]) < 16:
		base = 16
		i += 2
	case i < len(s) && s[i] == '0':
		base = 8
	}

	var v uint64
	overflow := false
	for ; i < len(s); i++ {
		d := digitValue(s[i])
		if d >= base {
			break
		}
		if v > (math.MaxUint64-d)/base {
			overflow = true
			continue
		}
		v = v*base + d
	}

	switch {
	case overflow:
		v = math.MaxUint64
	case neg:
		v = -v
	}
	return int32(uint32(v))
}

func isSpace(c byte) bool {
	return c == ' ' || (c >= '\t' && c <= '\r')
}

func digitValue(c byte) uint64 {
	switch {
	case c >= '0' && c <= '9':
		return uint64(c - '0')
	case c >= 'a' && c <= 'z':
		return uint64(c-'a') + 10
	case c >= 'A' && c <= 'Z':
		return uint64(c-'A') + 10
	}
	return math.MaxUint64
}

// RunAll resolves every statement in order. A failing statement is logged
// and does not stop the ones after it; all failures are returned together.
func (s *Session) RunAll(stmts []*Term) error {
	var result *multierror.Error
	for i, stmt := range stmts {
		if _, err := s.Resolve(stmt); err != nil {
			s.log.WithError(err).Warnf("Statement %d (%s) failed", i+1, InspectString(stmt))
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
