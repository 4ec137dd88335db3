package vm

import (
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Value: one type for runtime values and syntax nodes
// ---------------------------------------------------------------------------

// Value is a Knight value. The parser produces Values directly: literals
// evaluate to themselves, while Identifier and *Operation are unevaluated
// syntax that an Interpreter runs on demand.
//
// The set of implementations is closed: Integer, Text, Boolean, Null,
// Identifier and *Operation.
type Value interface {
	// TypeName returns the variant tag used by DUMP and in error messages.
	TypeName() string

	isValue()
}

// Integer is a signed 64-bit whole number. Arithmetic wraps on overflow.
type Integer int64

// Text is an immutable string.
type Text string

// Boolean is TRUE or FALSE.
type Boolean bool

// Null is the unit value.
type Null struct{}

// Identifier names a global variable.
type Identifier string

// Operation is an unevaluated function application. len(Args) always equals
// Fn.Arity; construct one with NewOperation.
type Operation struct {
	Fn   *Function
	Args []Value
}

func (Integer) TypeName() string    { return "Number" }
func (Text) TypeName() string       { return "String" }
func (Boolean) TypeName() string    { return "Boolean" }
func (Null) TypeName() string       { return "Null" }
func (Identifier) TypeName() string { return "Identifier" }
func (*Operation) TypeName() string { return "Function" }

func (Integer) isValue()    {}
func (Text) isValue()       {}
func (Boolean) isValue()    {}
func (Null) isValue()       {}
func (Identifier) isValue() {}
func (*Operation) isValue() {}

// NewOperation builds an application of fn, rejecting the wrong number of
// operands.
func NewOperation(fn *Function, args []Value) (*Operation, error) {
	if fn == nil {
		return nil, &RuntimeError{Kind: InvalidOperand, Msg: "nil function"}
	}
	if len(args) != fn.Arity {
		return nil, &RuntimeError{
			Kind: InvalidOperand,
			Op:   fn.Name,
			Msg:  "expected " + strconv.Itoa(fn.Arity) + " operands, got " + strconv.Itoa(len(args)),
		}
	}
	return &Operation{Fn: fn, Args: args}, nil
}

// IsLiteral reports whether v evaluates to itself.
func IsLiteral(v Value) bool {
	switch v.(type) {
	case Integer, Text, Boolean, Null:
		return true
	}
	return false
}

// Equal implements ?. Values are equal only when they are the same variant
// with the same payload; operations are equal only to the same parsed node.
func Equal(a, b Value) bool {
	return a == b
}

// ---------------------------------------------------------------------------
// Literal conversions
// ---------------------------------------------------------------------------

// String returns the decimal form of i.
func (i Integer) String() string { return strconv.FormatInt(int64(i), 10) }

// String returns "true" or "false".
func (b Boolean) String() string {
	if b {
		return "true"
	}
	return "false"
}

// String returns "null".
func (Null) String() string { return "null" }

// LiteralText returns the to-text form of a literal. The second result is
// false for Identifier and *Operation, which must be evaluated first.
func LiteralText(v Value) (string, bool) {
	switch v := v.(type) {
	case Integer:
		return v.String(), true
	case Text:
		return string(v), true
	case Boolean:
		return v.String(), true
	case Null:
		return "null", true
	}
	return "", false
}

// LiteralNumber returns the to-number form of a literal.
func LiteralNumber(v Value) (int64, bool) {
	switch v := v.(type) {
	case Integer:
		return int64(v), true
	case Text:
		return ParseNumber(string(v)), true
	case Boolean:
		if v {
			return 1, true
		}
		return 0, true
	case Null:
		return 0, true
	}
	return 0, false
}

// LiteralBoolean returns the to-boolean form of a literal.
func LiteralBoolean(v Value) (bool, bool) {
	switch v := v.(type) {
	case Integer:
		return v != 0, true
	case Text:
		return v != "", true
	case Boolean:
		return bool(v), true
	case Null:
		return false, true
	}
	return false, false
}

// ParseNumber converts text to a number: leading whitespace is skipped, one
// optional sign is accepted, then the longest run of decimal digits is read.
// No digits yields 0. Values outside the int64 range wrap.
func ParseNumber(s string) int64 {
	s = strings.TrimLeft(s, " \t\n\r\v\f")
	negative := false
	if s != "" && (s[0] == '-' || s[0] == '+') {
		negative = s[0] == '-'
		s = s[1:]
	}

	var n int64
	for i := 0; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		n = n*10 + int64(s[i]-'0')
	}
	if negative {
		n = -n
	}
	return n
}
