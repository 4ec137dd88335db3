package vm

import (
	"fmt"
	"math"
	"strings"
)

// ---------------------------------------------------------------------------
// Arithmetic primitives
//
// The evaluated left operand picks the rule. Integers combine with the right
// operand's number form. + and * also accept Text on the left: + appends the
// right operand's text form, * repeats the text (a negative count is 0).
// Any other left operand is an InvalidOperand error.
// ---------------------------------------------------------------------------

func registerArithmeticPrimitives(r *Registry) {
	r.Register(&Function{Name: '+', Arity: 2, Impl: primAdd,
		Summary: "Adds numbers or concatenates text."})
	r.Register(&Function{Name: '-', Arity: 2, Impl: primSub,
		Summary: "Subtracts numbers."})
	r.Register(&Function{Name: '*', Arity: 2, Impl: primMul,
		Summary: "Multiplies numbers or repeats text."})
	r.Register(&Function{Name: '/', Arity: 2, Impl: primDiv,
		Summary: "Divides numbers, truncating toward zero."})
	r.Register(&Function{Name: '%', Arity: 2, Impl: primMod,
		Summary: "Remainder of truncated division."})
	r.Register(&Function{Name: '^', Arity: 2, Impl: primPow,
		Summary: "Raises a number to a power."})
}

func primAdd(in *Interpreter, args []Value) (Value, error) {
	lhs, err := in.Eval(args[0])
	if err != nil {
		return nil, err
	}
	switch l := lhs.(type) {
	case Integer:
		r, err := in.ToNumber(args[1])
		if err != nil {
			return nil, err
		}
		return l + Integer(r), nil
	case Text:
		r, err := in.ToText(args[1])
		if err != nil {
			return nil, err
		}
		return l + Text(r), nil
	}
	return nil, invalidOperand('+', lhs)
}

func primMul(in *Interpreter, args []Value) (Value, error) {
	lhs, err := in.Eval(args[0])
	if err != nil {
		return nil, err
	}
	switch l := lhs.(type) {
	case Integer:
		r, err := in.ToNumber(args[1])
		if err != nil {
			return nil, err
		}
		return l * Integer(r), nil
	case Text:
		count, err := in.ToNumber(args[1])
		if err != nil {
			return nil, err
		}
		if count <= 0 || l == "" {
			return Text(""), nil
		}
		if count > int64(math.MaxInt/len(l)) {
			return nil, &RuntimeError{
				Kind: InvalidOperand,
				Op:   '*',
				Msg:  fmt.Sprintf("repeat count %d is too large", count),
			}
		}
		return Text(strings.Repeat(string(l), int(count))), nil
	}
	return nil, invalidOperand('*', lhs)
}

// integerOperands evaluates an Integer left operand and the right operand's
// number form.
func integerOperands(in *Interpreter, op byte, args []Value) (int64, int64, error) {
	lhs, err := in.Eval(args[0])
	if err != nil {
		return 0, 0, err
	}
	l, ok := lhs.(Integer)
	if !ok {
		return 0, 0, invalidOperand(op, lhs)
	}
	r, err := in.ToNumber(args[1])
	if err != nil {
		return 0, 0, err
	}
	return int64(l), r, nil
}

func primSub(in *Interpreter, args []Value) (Value, error) {
	l, r, err := integerOperands(in, '-', args)
	if err != nil {
		return nil, err
	}
	return Integer(l - r), nil
}

func primDiv(in *Interpreter, args []Value) (Value, error) {
	l, r, err := integerOperands(in, '/', args)
	if err != nil {
		return nil, err
	}
	if r == 0 {
		return nil, &RuntimeError{Kind: DivisionByZero, Op: '/'}
	}
	return Integer(l / r), nil
}

func primMod(in *Interpreter, args []Value) (Value, error) {
	l, r, err := integerOperands(in, '%', args)
	if err != nil {
		return nil, err
	}
	if r == 0 {
		return nil, &RuntimeError{Kind: DivisionByZero, Op: '%'}
	}
	return Integer(l % r), nil
}

func primPow(in *Interpreter, args []Value) (Value, error) {
	base, exp, err := integerOperands(in, '^', args)
	if err != nil {
		return nil, err
	}
	return Integer(Power(base, exp)), nil
}

// Power computes base**exp with wrapping multiplication. A negative exponent
// yields 0 unless the base is 1 or -1.
func Power(base, exp int64) int64 {
	switch {
	case base == 1:
		return 1
	case base == -1:
		if exp&1 == 1 {
			return -1
		}
		return 1
	case exp == 0:
		return 1
	case exp < 0:
		return 0
	}

	result := int64(1)
	for exp > 0 {
		if exp&1 == 1 {
			result *= base
		}
		base *= base
		exp >>= 1
	}
	return result
}
