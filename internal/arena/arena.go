// Package arena implements the fixed-capacity bump region that backs every
// script term. A region is never freed piecemeal: when the interpreter is
// done with a generation it builds a new Arena and drops the old one.
package arena

import (
	"fmt"
)

// DefaultCapacity is the capacity used when New is given a non-positive size.
const DefaultCapacity = 16 * 1024

// Alignment of every block handed out by Allocate and Reserve.
const Alignment = 8

// ExhaustedError is the panic value raised when a request does not fit.
type ExhaustedError struct {
	Generation uint64
	Requested  int
	Used       int
	Capacity   int
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("program too large: arena generation %d out of space (requested %d bytes, %d of %d in use)",
		e.Generation, e.Requested, e.Used, e.Capacity)
}

// Arena is a single bump-allocated region. Not goroutine-safe.
type Arena struct {
	buf         []byte
	used        int
	generation  uint64
	allocations int
}

// New creates an Arena of the given capacity tagged with generation.
// If capacity <= 0, DefaultCapacity is used.
func New(capacity int, generation uint64) *Arena {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Arena{
		buf:        make([]byte, capacity),
		generation: generation,
	}
}

// Generation returns the generation number this region was created with.
func (a *Arena) Generation() uint64 {
	return a.generation
}

// Capacity returns the fixed size of the region in bytes.
func (a *Arena) Capacity() int {
	return len(a.buf)
}

// Used returns the cursor position.
func (a *Arena) Used() int {
	return a.used
}

// Allocate returns a zeroed block of n bytes from the region. The cursor is
// advanced to the next aligned offset. Panics with *ExhaustedError when the
// region cannot hold n more bytes.
func (a *Arena) Allocate(n int) []byte {
	start := a.bump(n)
	b := a.buf[start : start+n : start+n]
	clear(b)
	return b
}

// Reserve charges n bytes against the region without handing the bytes out.
// Callers use it for storage that must live in Go-managed memory (anything
// holding pointers) but still counts against the fixed capacity.
func (a *Arena) Reserve(n int) {
	a.bump(n)
}

func (a *Arena) bump(n int) int {
	if n < 0 {
		n = 0
	}
	if a.used+n > len(a.buf) {
		panic(&ExhaustedError{
			Generation: a.generation,
			Requested:  n,
			Used:       a.used,
			Capacity:   len(a.buf),
		})
	}
	start := a.used
	a.used = align(a.used + n)
	if a.used > len(a.buf) {
		a.used = len(a.buf)
	}
	a.allocations++
	return start
}

// align rounds off up to the next multiple of Alignment.
func align(off int) int {
	return (off + Alignment - 1) &^ (Alignment - 1)
}
