package vm

import "strings"

// ---------------------------------------------------------------------------
// Comparison and logic primitives
// ---------------------------------------------------------------------------

func registerComparisonPrimitives(r *Registry) {
	r.Register(&Function{Name: '<', Arity: 2, Impl: primLess,
		Summary: "Less than, using the left operand's type to compare."})
	r.Register(&Function{Name: '>', Arity: 2, Impl: primGreater,
		Summary: "Greater than, using the left operand's type to compare."})
	r.Register(&Function{Name: '?', Arity: 2, Impl: primEquals,
		Summary: "True if both operands are the same type with the same value."})
	r.Register(&Function{Name: '!', Arity: 1, Impl: primNot,
		Summary: "Logical negation."})
}

// compareOperands orders the two operands by the evaluated left operand's
// type: numbers numerically, text by bytes, booleans with false < true.
// The right operand is coerced to that type.
func compareOperands(in *Interpreter, op byte, args []Value) (int, error) {
	lhs, err := in.Eval(args[0])
	if err != nil {
		return 0, err
	}
	switch l := lhs.(type) {
	case Integer:
		r, err := in.ToNumber(args[1])
		if err != nil {
			return 0, err
		}
		switch {
		case int64(l) < r:
			return -1, nil
		case int64(l) > r:
			return 1, nil
		}
		return 0, nil
	case Text:
		r, err := in.ToText(args[1])
		if err != nil {
			return 0, err
		}
		return strings.Compare(string(l), r), nil
	case Boolean:
		r, err := in.ToBoolean(args[1])
		if err != nil {
			return 0, err
		}
		return boolRank(bool(l)) - boolRank(r), nil
	}
	return 0, invalidOperand(op, lhs)
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

func primLess(in *Interpreter, args []Value) (Value, error) {
	c, err := compareOperands(in, '<', args)
	if err != nil {
		return nil, err
	}
	return Boolean(c < 0), nil
}

func primGreater(in *Interpreter, args []Value) (Value, error) {
	c, err := compareOperands(in, '>', args)
	if err != nil {
		return nil, err
	}
	return Boolean(c > 0), nil
}

func primEquals(in *Interpreter, args []Value) (Value, error) {
	lhs, err := in.Eval(args[0])
	if err != nil {
		return nil, err
	}
	rhs, err := in.Eval(args[1])
	if err != nil {
		return nil, err
	}
	return Boolean(Equal(lhs, rhs)), nil
}

func primNot(in *Interpreter, args []Value) (Value, error) {
	b, err := in.ToBoolean(args[0])
	if err != nil {
		return nil, err
	}
	return Boolean(!b), nil
}
