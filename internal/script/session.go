// Package script evaluates the small scripting language used to inspect and
// edit a U-Boot environment.
//
// Terms are allocated from a fixed-size arena. There is no garbage
// collection inside a generation; instead every top-level evaluation starts
// by regenerating the arena: the values of all variables are copied into a
// fresh region and the old region is dropped. Terms must therefore not be
// kept across EvalString or EvalFile calls, except through the variables.
package script

import (
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"bootenvtool/internal/arena"
	"bootenvtool/internal/grammar"
	"bootenvtool/internal/ubootenv"
)

// Session holds the interpreter state: the current arena generation, the
// variables and the loaded environment. A Session is not safe for
// concurrent use.
type Session struct {
	capacity int
	heap     *heap
	vars     *Store
	env      *ubootenv.Env
	out      io.Writer
	log      *logrus.Entry
}

// Option configures a Session.
type Option func(*Session)

// WithOutput sets where info, help, vars and env print. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(s *Session) { s.out = w }
}

// WithLogger sets the logger used for warnings.
func WithLogger(l *logrus.Entry) Option {
	return func(s *Session) { s.log = l }
}

// WithCapacity sets the arena size of every generation.
func WithCapacity(n int) Option {
	return func(s *Session) { s.capacity = n }
}

// WithEnv replaces the environment the env built-ins operate on.
func WithEnv(e *ubootenv.Env) Option {
	return func(s *Session) { s.env = e }
}

// New creates a session. The arena is allocated on first use.
func New(opts ...Option) *Session {
	s := &Session{
		capacity: arena.DefaultCapacity,
		env:      ubootenv.New(0),
		out:      os.Stdout,
		log:      logrus.WithField("component", "script"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) current() *heap {
	if s.heap == nil {
		s.heap = newHeap(s.capacity, 0)
		s.vars = newStore(s.heap)
	}
	return s.heap
}

func (s *Session) store() *Store {
	s.current()
	return s.vars
}

// Regenerate moves the variables into a new arena generation and drops the
// old one. It must not run while any term other than the variables is still
// in use. If a value cannot be copied the session keeps its old generation.
func (s *Session) Regenerate() error {
	var generation uint64
	if s.heap != nil {
		generation = s.heap.arena.Generation() + 1
	}

	h := newHeap(s.capacity, generation)
	vars := newStore(h)
	if s.vars != nil {
		for _, b := range s.vars.bindings {
			v, err := h.dupe(b.value)
			if err != nil {
				return errors.Wrapf(err, "regenerating variable %q", b.text)
			}
			vars.Set(b.text, v)
		}
	}

	s.heap, s.vars = h, vars
	return nil
}

// Generation returns the current arena generation.
func (s *Session) Generation() uint64 {
	return s.current().arena.Generation()
}

// Metrics reports usage of the current arena generation.
func (s *Session) Metrics() arena.Metrics {
	return s.current().arena.Metrics()
}

// Env returns the environment the env built-ins operate on.
func (s *Session) Env() *ubootenv.Env {
	return s.env
}

// NewNumber allocates a number term.
func (s *Session) NewNumber(v int32) *Term {
	return s.current().number(v)
}

// NewString allocates a string term holding a copy of v.
func (s *Session) NewString(v string) *Term {
	return s.current().str(v)
}

// NewQuotedString allocates a string term from a quoted literal, dropping
// the surrounding quotes.
func (s *Session) NewQuotedString(lexeme string) *Term {
	return s.current().str(stripQuotes(lexeme))
}

// NewBoolean allocates a boolean term.
func (s *Session) NewBoolean(v bool) *Term {
	return s.current().boolean(v)
}

// NewIdentifier allocates an identifier term.
func (s *Session) NewIdentifier(name string) *Term {
	return s.current().identifier(name)
}

// NewCall allocates a call to the function registered under name for
// len(args) arguments. Unknown functions produce a call without handler,
// which resolves to false.
func (s *Session) NewCall(name string, args []*Term) *Term {
	fn := Lookup(name, len(args))
	if fn == nil {
		s.log.Debugf("No function %s accepting %d arguments", name, len(args))
	}
	return s.current().call(name, fn, args)
}

// EvalString regenerates the arena, parses src and runs its statements.
func (s *Session) EvalString(src string) error {
	return s.eval(func() (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(src)), nil
	})
}

// EvalFile regenerates the arena, parses the file at path and runs its
// statements.
func (s *Session) EvalFile(path string) error {
	return s.eval(func() (io.ReadCloser, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.Wrapf(err, "opening script")
		}
		return f, nil
	})
}

// eval runs one top-level evaluation. Nothing runs unless the whole input
// parses. Arena exhaustion aborts it and is returned as
// *arena.ExhaustedError.
func (s *Session) eval(open func() (io.ReadCloser, error)) (err error) {
	defer func() {
		if r := recover(); r != nil {
			exhausted, ok := r.(*arena.ExhaustedError)
			if !ok {
				panic(r)
			}
			err = exhausted
		}
	}()

	if err := s.Regenerate(); err != nil {
		return err
	}

	r, err := open()
	if err != nil {
		return err
	}
	defer r.Close()

	var stmts []*Term
	if err := grammar.Parse[*Term](r, builder{s}, func(t *Term) {
		stmts = append(stmts, t)
	}); err != nil {
		return err
	}
	err = s.RunAll(stmts)
	s.log.Debugf("Ran %d statements, %s", len(stmts), s.Metrics())
	return err
}

// builder adapts a Session to the parser's callbacks.
type builder struct {
	s *Session
}

func (b builder) Number(v int32) *Term                 { return b.s.NewNumber(v) }
func (b builder) QuotedString(lexeme string) *Term     { return b.s.NewQuotedString(lexeme) }
func (b builder) Boolean(v bool) *Term                 { return b.s.NewBoolean(v) }
func (b builder) Identifier(name string) *Term         { return b.s.NewIdentifier(name) }
func (b builder) Call(name string, args []*Term) *Term { return b.s.NewCall(name, args) }
