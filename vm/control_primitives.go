package vm

// ---------------------------------------------------------------------------
// Control primitives: evaluation order, assignment, loops
// ---------------------------------------------------------------------------

func registerControlPrimitives(r *Registry) {
	r.Register(&Function{Name: 'B', Keyword: "BLOCK", Arity: 1, Impl: primBlock,
		Summary: "Returns its operand unevaluated."})
	r.Register(&Function{Name: 'C', Keyword: "CALL", Arity: 1, Impl: primCall,
		Summary: "Runs its operand, then runs the result again."})
	r.Register(&Function{Name: 'E', Keyword: "EVAL", Arity: 1, Impl: primEval,
		Summary: "Converts its operand to text and runs it as a program."})
	r.Register(&Function{Name: 'Q', Keyword: "QUIT", Arity: 1, Impl: primQuit,
		Summary: "Exits the process with its operand as the status."})
	r.Register(&Function{Name: '&', Arity: 2, Impl: primAnd,
		Summary: "Returns the left operand if it is falsey, otherwise runs and returns the right."})
	r.Register(&Function{Name: '|', Arity: 2, Impl: primOr,
		Summary: "Returns the left operand if it is truthy, otherwise runs and returns the right."})
	r.Register(&Function{Name: ';', Arity: 2, Impl: primThen,
		Summary: "Runs the left operand, then runs and returns the right."})
	r.Register(&Function{Name: '=', Arity: 2, Impl: primAssign,
		Summary: "Assigns the value of the right operand to the variable on the left."})
	r.Register(&Function{Name: 'W', Keyword: "WHILE", Arity: 2, Impl: primWhile,
		Summary: "Runs the body while the condition is truthy; returns the last body value or NULL."})
	r.Register(&Function{Name: 'I', Keyword: "IF", Arity: 3, Impl: primIf,
		Summary: "Runs and returns the second operand if the condition is truthy, else the third."})
}

func primBlock(_ *Interpreter, args []Value) (Value, error) {
	return args[0], nil
}

func primCall(in *Interpreter, args []Value) (Value, error) {
	v, err := in.Eval(args[0])
	if err != nil {
		return nil, err
	}
	return in.Eval(v)
}

func primEval(in *Interpreter, args []Value) (Value, error) {
	source, err := in.ToText(args[0])
	if err != nil {
		return nil, err
	}
	return in.Run(source)
}

func primQuit(in *Interpreter, args []Value) (Value, error) {
	code, err := in.ToNumber(args[0])
	if err != nil {
		return nil, err
	}
	if err := in.Flush(); err != nil {
		return nil, &RuntimeError{Kind: IOFailure, Op: 'Q', Err: err}
	}
	return nil, &ExitError{Code: int(code)}
}

func primAnd(in *Interpreter, args []Value) (Value, error) {
	lhs, err := in.Eval(args[0])
	if err != nil {
		return nil, err
	}
	ok, err := evaluatedBoolean(lhs)
	if err != nil || !ok {
		return lhs, err
	}
	return in.Eval(args[1])
}

func primOr(in *Interpreter, args []Value) (Value, error) {
	lhs, err := in.Eval(args[0])
	if err != nil {
		return nil, err
	}
	ok, err := evaluatedBoolean(lhs)
	if err != nil || ok {
		return lhs, err
	}
	return in.Eval(args[1])
}

func primThen(in *Interpreter, args []Value) (Value, error) {
	if _, err := in.Eval(args[0]); err != nil {
		return nil, err
	}
	return in.Eval(args[1])
}

// primAssign binds a variable. A left operand that is not an identifier is
// run and converted to text, and that text is used as the name; it runs
// before the right operand.
func primAssign(in *Interpreter, args []Value) (Value, error) {
	var name string
	if ident, ok := args[0].(Identifier); ok {
		name = string(ident)
	} else {
		var err error
		if name, err = in.ToText(args[0]); err != nil {
			return nil, err
		}
	}

	v, err := in.Eval(args[1])
	if err != nil {
		return nil, err
	}
	in.Globals.Set(name, v)
	return v, nil
}

func primWhile(in *Interpreter, args []Value) (Value, error) {
	var last Value = Null{}
	for {
		ok, err := in.ToBoolean(args[0])
		if err != nil {
			return nil, err
		}
		if !ok {
			return last, nil
		}
		if last, err = in.Eval(args[1]); err != nil {
			return nil, err
		}
	}
}

func primIf(in *Interpreter, args []Value) (Value, error) {
	ok, err := in.ToBoolean(args[0])
	if err != nil {
		return nil, err
	}
	if ok {
		return in.Eval(args[1])
	}
	return in.Eval(args[2])
}
