package script

import (
	"reflect"
)

// Handler implements a built-in function. It receives the unresolved
// argument terms and resolves what it needs. A nil result means the call
// produced no value.
type Handler func(s *Session, args []*Term) (*Term, error)

// Function describes one entry of the registry.
type Function struct {
	Name string
	// Arity is the minimum number of arguments. Calls may pass more; the
	// extra arguments reach the handler, which is free to ignore them.
	Arity   int
	Handler Handler
}

// registry is filled in init because the help handler reads it.
var registry []Function

func init() {
	registry = []Function{
		{Name: "=", Arity: 2, Handler: assign},
		{Name: "+", Arity: 2, Handler: add},
		{Name: "-", Arity: 2, Handler: subtract},
		{Name: "info", Arity: 0, Handler: info},
		{Name: "help", Arity: 0, Handler: help},
		{Name: "vars", Arity: 0, Handler: vars},
		{Name: "env", Arity: 0, Handler: env},
		{Name: "loadenv", Arity: 0, Handler: loadEnv},
		{Name: "setenv", Arity: 2, Handler: setEnv},
		{Name: "getenv", Arity: 1, Handler: getEnv},
		{Name: "saveenv", Arity: 0, Handler: saveEnv},
	}
}

// Functions returns a copy of the registry in declaration order.
func Functions() []Function {
	return append([]Function(nil), registry...)
}

// Lookup returns the first function named name that accepts arity
// arguments, or nil.
func Lookup(name string, arity int) *Function {
	for i := range registry {
		if registry[i].Name == name && registry[i].Arity <= arity {
			return &registry[i]
		}
	}
	return nil
}

// Describe finds the registry entry of a handler.
func Describe(h Handler) *Function {
	if h == nil {
		return nil
	}
	ptr := reflect.ValueOf(h).Pointer()
	for i := range registry {
		if reflect.ValueOf(registry[i].Handler).Pointer() == ptr {
			return &registry[i]
		}
	}
	return nil
}
