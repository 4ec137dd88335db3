package vm

import (
	"sort"
)

// ---------------------------------------------------------------------------
// Builtin function registry
// ---------------------------------------------------------------------------

// NativeFunc implements a builtin. Args are passed unevaluated: each
// primitive decides which operands to run, in what order and how often.
type NativeFunc func(in *Interpreter, args []Value) (Value, error)

// Function is a registry entry: an opcode with a fixed arity.
type Function struct {
	Name    byte   // opcode character: 'W', '+', '`', ...
	Keyword string // descriptive spelling of a keyword opcode, e.g. "WHILE"
	Arity   int
	Summary string // one-line description, shown by the language server
	Impl    NativeFunc
}

// IsKeyword reports whether the opcode is an uppercase letter. The parser
// absorbs the uppercase letters and underscores that follow a keyword.
func (f *Function) IsKeyword() bool {
	return f.Name >= 'A' && f.Name <= 'Z'
}

// Registry maps opcodes to functions.
type Registry struct {
	funcs map[byte]*Function
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[byte]*Function)}
}

// Register adds fn, replacing any function with the same opcode.
func (r *Registry) Register(fn *Function) {
	r.funcs[fn.Name] = fn
}

// Lookup returns the function for an opcode, or nil.
func (r *Registry) Lookup(name byte) *Function {
	return r.funcs[name]
}

// All returns every registered function ordered by opcode.
func (r *Registry) All() []*Function {
	fns := make([]*Function, 0, len(r.funcs))
	for _, fn := range r.funcs {
		fns = append(fns, fn)
	}
	sort.Slice(fns, func(i, j int) bool { return fns[i].Name < fns[j].Name })
	return fns
}

// Builtins is the standard Knight function table.
var Builtins = NewRegistry()

func init() {
	registerControlPrimitives(Builtins)
	registerArithmeticPrimitives(Builtins)
	registerComparisonPrimitives(Builtins)
	registerStringPrimitives(Builtins)
	registerIOPrimitives(Builtins)
}

// Call builds an operation on a builtin, for constructing programs without
// the parser.
func Call(name byte, args ...Value) (*Operation, error) {
	fn := Builtins.Lookup(name)
	if fn == nil {
		return nil, &RuntimeError{Kind: InvalidOperand, Msg: "unknown function " + string(name)}
	}
	return NewOperation(fn, args)
}

// MustCall is like Call but panics on error.
func MustCall(name byte, args ...Value) *Operation {
	op, err := Call(name, args...)
	if err != nil {
		panic(err)
	}
	return op
}
