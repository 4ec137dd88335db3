package vm

// ---------------------------------------------------------------------------
// Text primitives
//
// Knight text is ASCII, so lengths and indices count bytes. Ranges are
// clamped: a negative start or length counts as 0, and a range running past
// the end stops at the end.
// ---------------------------------------------------------------------------

func registerStringPrimitives(r *Registry) {
	r.Register(&Function{Name: 'L', Keyword: "LENGTH", Arity: 1, Impl: primLength,
		Summary: "Length of the operand's text form."})
	r.Register(&Function{Name: 'G', Keyword: "GET", Arity: 3, Impl: primGet,
		Summary: "Substring of text from a start index with a length."})
	r.Register(&Function{Name: 'S', Keyword: "SUBSTITUTE", Arity: 4, Impl: primSubstitute,
		Summary: "Text with the range [start, start+length) replaced by the fourth operand."})
}

func primLength(in *Interpreter, args []Value) (Value, error) {
	s, err := in.ToText(args[0])
	if err != nil {
		return nil, err
	}
	return Integer(len(s)), nil
}

// textRange evaluates the text, start and length operands in order.
func textRange(in *Interpreter, args []Value) (string, int, int, error) {
	s, err := in.ToText(args[0])
	if err != nil {
		return "", 0, 0, err
	}
	start, err := in.ToNumber(args[1])
	if err != nil {
		return "", 0, 0, err
	}
	length, err := in.ToNumber(args[2])
	if err != nil {
		return "", 0, 0, err
	}
	lo, hi := ClampRange(len(s), start, length)
	return s, lo, hi, nil
}

// ClampRange converts a start and length into byte offsets within a string
// of size n.
func ClampRange(n int, start, length int64) (int, int) {
	if start < 0 {
		start = 0
	}
	if length < 0 {
		length = 0
	}
	size := int64(n)
	if start > size {
		start = size
	}
	end := start + length
	if end > size || end < start {
		end = size
	}
	return int(start), int(end)
}

func primGet(in *Interpreter, args []Value) (Value, error) {
	s, lo, hi, err := textRange(in, args)
	if err != nil {
		return nil, err
	}
	return Text(s[lo:hi]), nil
}

func primSubstitute(in *Interpreter, args []Value) (Value, error) {
	s, lo, hi, err := textRange(in, args)
	if err != nil {
		return nil, err
	}
	repl, err := in.ToText(args[3])
	if err != nil {
		return nil, err
	}
	return Text(s[:lo] + repl + s[hi:]), nil
}
