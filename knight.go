// Package knight runs Knight programs.
//
// A program is one expression built from literals, global variables and
// function applications. Run parses and evaluates source on a fresh
// interpreter wired to the process's standard streams; New returns an
// interpreter that keeps its globals across runs.
//
//	v, err := knight.Run(`; = x 5 : OUTPUT * x x`)
//
// The value model, builtin functions and evaluator live in package vm;
// the parser lives in package compiler.
package knight

import (
	"github.com/chazu/knight/compiler"
	"github.com/chazu/knight/vm"
)

// New returns an interpreter with the Knight parser installed.
func New(opts ...vm.Option) *vm.Interpreter {
	return vm.NewInterpreter(append([]vm.Option{vm.WithParser(compiler.Parse)}, opts...)...)
}

// Run parses source and evaluates it on a new interpreter. A QUIT inside
// the program is returned as a *vm.ExitError.
func Run(source string, opts ...vm.Option) (vm.Value, error) {
	return New(opts...).Run(source)
}

// ToText returns the text form of a value returned by Run.
func ToText(v vm.Value) string {
	s, ok := vm.LiteralText(v)
	if !ok {
		return vm.Dump(v)
	}
	return s
}
