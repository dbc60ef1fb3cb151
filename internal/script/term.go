package script

import (
	"unsafe"

	"github.com/pkg/errors"

	"bootenvtool/internal/arena"
)

// Kind identifies the variant held by a Term.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindNumber
	KindString
	KindBoolean
	KindIdentifier
	KindCall
	KindBinding
)

var kindNames = [...]string{
	KindInvalid:    "invalid",
	KindNumber:     "number",
	KindString:     "string",
	KindBoolean:    "boolean",
	KindIdentifier: "identifier",
	KindCall:       "call",
	KindBinding:    "binding",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Scalar reports whether terms of this kind can be stored in a variable and
// carried across a regeneration.
func (k Kind) Scalar() bool {
	switch k {
	case KindNumber, KindString, KindBoolean, KindIdentifier:
		return true
	}
	return false
}

// ErrNotScalar is returned when a call or binding term is duplicated.
var ErrNotScalar = errors.New("only scalar terms can be duplicated")

// Term is a node of the evaluation model. Terms are created only through a
// Session and live in the arena generation that was current at the time.
type Term struct {
	kind       Kind
	generation uint64

	number  int32
	boolean bool
	// text is the string value, the identifier name, the binding name or the
	// source name of a call.
	text string

	handler Handler
	args    []*Term
	value   *Term
}

// Kind returns the variant of t.
func (t *Term) Kind() Kind {
	if t == nil {
		return KindInvalid
	}
	return t.kind
}

// Generation returns the arena generation that allocated t.
func (t *Term) Generation() uint64 {
	return t.generation
}

// Number returns the value of a number term.
func (t *Term) Number() int32 { return t.number }

// Boolean returns the value of a boolean term.
func (t *Term) Boolean() bool { return t.boolean }

// Text returns the string value, identifier name or binding name.
func (t *Term) Text() string { return t.text }

// Args returns the parameter list of a call term.
func (t *Term) Args() []*Term { return t.args }

// Value returns the bound value of a binding term.
func (t *Term) Value() *Term { return t.value }

// Handler returns the handler of a call term, nil when the call named an
// unknown function.
func (t *Term) Handler() Handler { return t.handler }

var (
	termSize = int(unsafe.Sizeof(Term{}))
	ptrSize  = int(unsafe.Sizeof(uintptr(0)))
)

// heap places terms in one arena generation. Term nodes hold Go pointers, so
// they live in a slab sized from the arena capacity and are charged to the
// arena with Reserve; string bytes are copied into the arena itself.
type heap struct {
	arena *arena.Arena
	terms []Term
}

func newHeap(capacity int, generation uint64) *heap {
	a := arena.New(capacity, generation)
	return &heap{
		arena: a,
		// Every node reserves at least termSize bytes, so the slab never
		// grows and the node pointers stay valid.
		terms: make([]Term, 0, a.Capacity()/termSize+1),
	}
}

func (h *heap) term(k Kind) *Term {
	h.arena.Reserve(termSize)
	h.terms = append(h.terms, Term{kind: k, generation: h.arena.Generation()})
	return &h.terms[len(h.terms)-1]
}

// copyString copies s into the arena, NUL terminated.
func (h *heap) copyString(s string) string {
	b := h.arena.Allocate(len(s) + 1)
	copy(b, s)
	return unsafe.String(&b[0], len(s))
}

func (h *heap) number(v int32) *Term {
	t := h.term(KindNumber)
	t.number = v
	return t
}

func (h *heap) str(s string) *Term {
	t := h.term(KindString)
	t.text = h.copyString(s)
	return t
}

func (h *heap) boolean(v bool) *Term {
	t := h.term(KindBoolean)
	t.boolean = v
	return t
}

func (h *heap) identifier(name string) *Term {
	t := h.term(KindIdentifier)
	t.text = h.copyString(name)
	return t
}

func (h *heap) call(name string, fn *Function, args []*Term) *Term {
	t := h.term(KindCall)
	t.text = h.copyString(name)
	if fn != nil {
		t.handler = fn.Handler
	}
	if len(args) > 0 {
		h.arena.Reserve(ptrSize * len(args))
		t.args = append(make([]*Term, 0, len(args)), args...)
	}
	return t
}

func (h *heap) binding(name string, value *Term) *Term {
	t := h.term(KindBinding)
	t.text = h.copyString(name)
	t.value = value
	return t
}

// dupe deep-copies a scalar term into h.
func (h *heap) dupe(t *Term) (*Term, error) {
	switch t.Kind() {
	case KindIdentifier:
		return h.identifier(t.text), nil
	case KindString:
		return h.str(t.text), nil
	case KindNumber:
		return h.number(t.number), nil
	case KindBoolean:
		return h.boolean(t.boolean), nil
	}
	return nil, errors.Wrapf(ErrNotScalar, "cannot duplicate %s term", t.Kind())
}

// stripQuotes drops one leading and one trailing double quote.
func stripQuotes(lexeme string) string {
	if len(lexeme) > 0 && lexeme[0] == '"' {
		lexeme = lexeme[1:]
	}
	if len(lexeme) > 0 && lexeme[len(lexeme)-1] == '"' {
		lexeme = lexeme[:len(lexeme)-1]
	}
	return lexeme
}

// Reverse reverses a sequence built right to left in place and returns it.
func Reverse(terms []*Term) []*Term {
	for i, j := 0, len(terms)-1; i < j; i, j = i+1, j-1 {
		terms[i], terms[j] = terms[j], terms[i]
	}
	return terms
}
