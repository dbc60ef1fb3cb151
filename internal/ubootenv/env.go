// Package ubootenv reads and writes U-Boot environment blocks.
//
// A block is laid out as a little-endian CRC32 of the data area, an optional
// flags byte (redundant environments only), then NUL-terminated
// "name=value" entries ended by an empty entry. The rest of the block is
// zero padding and is covered by the CRC.
package ubootenv

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrBadCRC is returned by Read when the stored checksum does not match.
	ErrBadCRC = errors.New("environment CRC mismatch")
	// ErrTooSmall is returned for blocks that cannot hold a header.
	ErrTooSmall = errors.New("environment block too small")
	// ErrNoSpace is returned when the variables no longer fit in the block.
	ErrNoSpace = errors.New("environment block full")
	// ErrInvalidName is returned by Set for empty names or names holding '='.
	ErrInvalidName = errors.New("invalid environment variable name")
	// ErrMalformed is returned by Read for entries without '='.
	ErrMalformed = errors.New("malformed environment entry")
)

// Var is a single name/value pair.
type Var struct {
	Name  string
	Value string
}

// Env is the in-memory form of an environment block.
type Env struct {
	// Size is the full block size in bytes, header included. Zero disables
	// capacity checks in Set.
	Size int
	// Redundant selects the layout with a flags byte after the CRC.
	Redundant bool
	// Flags is the redundant-environment generation flag, preserved across
	// Read and Write.
	Flags byte

	vars []Var
}

// New returns an empty environment for a block of size bytes.
func New(size int) *Env {
	return &Env{Size: size}
}

func (e *Env) headerSize() int {
	if e.Redundant {
		return 5
	}
	return 4
}

// Read replaces the variables with the ones stored in buf.
func (e *Env) Read(buf []byte) error {
	hdr := e.headerSize()
	if len(buf) <= hdr {
		return errors.Wrapf(ErrTooSmall, "%d bytes", len(buf))
	}

	stored := binary.LittleEndian.Uint32(buf[0:4])
	data := buf[hdr:]
	if sum := crc32.ChecksumIEEE(data); sum != stored {
		return errors.Wrapf(ErrBadCRC, "calculated 0x%08X, expected 0x%08X", sum, stored)
	}

	var vars []Var
	for len(data) > 0 && data[0] != 0 {
		end := bytes.IndexByte(data, 0)
		if end < 0 {
			end = len(data)
		}
		entry := string(data[:end])
		name, value, ok := strings.Cut(entry, "=")
		if !ok || name == "" {
			return errors.Wrapf(ErrMalformed, "%q", entry)
		}
		vars = append(vars, Var{Name: name, Value: value})
		if end == len(data) {
			break
		}
		data = data[end+1:]
	}

	if e.Redundant {
		e.Flags = buf[4]
	}
	e.vars = vars
	return nil
}

// Write serializes the variables into buf, which must be the full block.
func (e *Env) Write(buf []byte) error {
	hdr := e.headerSize()
	if len(buf) <= hdr {
		return errors.Wrapf(ErrTooSmall, "%d bytes", len(buf))
	}

	data := buf[hdr:]
	if need := e.dataLen(); need > len(data) {
		return errors.Wrapf(ErrNoSpace, "need %d bytes, have %d", need, len(data))
	}

	clear(data)
	off := 0
	for _, v := range e.vars {
		off += copy(data[off:], v.Name)
		data[off] = '='
		off++
		off += copy(data[off:], v.Value)
		off++ // NUL
	}

	binary.LittleEndian.PutUint32(buf[0:4], crc32.ChecksumIEEE(data))
	if e.Redundant {
		buf[4] = e.Flags
	}
	return nil
}

// dataLen is the number of data bytes needed, final empty entry included.
func (e *Env) dataLen() int {
	n := 1
	for _, v := range e.vars {
		n += len(v.Name) + 1 + len(v.Value) + 1
	}
	return n
}

// Get returns the value of name.
func (e *Env) Get(name string) (string, bool) {
	if i := e.index(name); i >= 0 {
		return e.vars[i].Value, true
	}
	return "", false
}

// Set assigns value to name. An empty value removes the variable.
func (e *Env) Set(name, value string) error {
	if name == "" || strings.ContainsAny(name, "=\x00") || strings.ContainsRune(value, 0) {
		return errors.Wrapf(ErrInvalidName, "%q", name)
	}

	i := e.index(name)
	if value == "" {
		if i >= 0 {
			e.vars = append(e.vars[:i], e.vars[i+1:]...)
		}
		return nil
	}

	old := e.vars
	if i >= 0 {
		e.vars = append([]Var(nil), e.vars...)
		e.vars[i].Value = value
	} else {
		e.vars = append(e.vars[:len(e.vars):len(e.vars)], Var{Name: name, Value: value})
	}

	if e.Size > 0 && e.dataLen() > e.Size-e.headerSize() {
		e.vars = old
		return errors.Wrapf(ErrNoSpace, "setting %q", name)
	}
	return nil
}

// Vars returns the variables in block order.
func (e *Env) Vars() []Var {
	return append([]Var(nil), e.vars...)
}

// Len returns the number of variables.
func (e *Env) Len() int {
	return len(e.vars)
}

// Reset drops every variable.
func (e *Env) Reset() {
	e.vars = nil
}

func (e *Env) index(name string) int {
	for i, v := range e.vars {
		if v.Name == name {
			return i
		}
	}
	return -1
}
