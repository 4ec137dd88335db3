package vm

import "sort"

// Environment is the flat global variable table. Every Knight variable is
// global: there is no shadowing and no scope. Entries are created or
// overwritten by = and never removed.
//
// An Environment is not safe for concurrent use; it belongs to the single
// thread of control running the interpreter.
type Environment struct {
	vars map[string]Value
}

// NewEnvironment creates an empty environment.
func NewEnvironment() *Environment {
	return &Environment{vars: make(map[string]Value)}
}

// Get returns the value last assigned to name.
func (e *Environment) Get(name string) (Value, bool) {
	v, ok := e.vars[name]
	return v, ok
}

// Set binds name to v, replacing any previous binding.
func (e *Environment) Set(name string, v Value) {
	e.vars[name] = v
}

// Len returns the number of bound names.
func (e *Environment) Len() int {
	return len(e.vars)
}

// Names returns the bound names in sorted order.
func (e *Environment) Names() []string {
	names := make([]string, 0, len(e.vars))
	for name := range e.vars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
