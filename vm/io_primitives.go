package vm

import "strings"

// ---------------------------------------------------------------------------
// I/O primitives: prompt, output, dump, random, shell
// ---------------------------------------------------------------------------

func registerIOPrimitives(r *Registry) {
	r.Register(&Function{Name: 'P', Keyword: "PROMPT", Arity: 0, Impl: primPrompt,
		Summary: "Reads a line from input, newline included; NULL at end of input."})
	r.Register(&Function{Name: 'R', Keyword: "RANDOM", Arity: 0, Impl: primRandom,
		Summary: "A random number between 0 and 4294967295."})
	r.Register(&Function{Name: '`', Arity: 1, Impl: primSystem,
		Summary: "Runs a shell command and returns its standard output."})
	r.Register(&Function{Name: 'D', Keyword: "DUMP", Arity: 1, Impl: primDump,
		Summary: "Writes the debug form of its operand and returns the value."})
	r.Register(&Function{Name: 'O', Keyword: "OUTPUT", Arity: 1, Impl: primOutput,
		Summary: "Writes its operand and a newline; a trailing \\ suppresses the newline."})
}

func primPrompt(in *Interpreter, _ []Value) (Value, error) {
	return in.readLine()
}

func primRandom(in *Interpreter, _ []Value) (Value, error) {
	return Integer(in.rand.Uint32()), nil
}

func primSystem(in *Interpreter, args []Value) (Value, error) {
	command, err := in.ToText(args[0])
	if err != nil {
		return nil, err
	}
	if err := in.Flush(); err != nil {
		return nil, &RuntimeError{Kind: IOFailure, Op: '`', Err: err}
	}
	out, err := in.shell(command)
	if err != nil {
		return nil, err
	}
	return Text(out), nil
}

func primDump(in *Interpreter, args []Value) (Value, error) {
	v, err := in.Eval(args[0])
	if err != nil {
		return nil, err
	}
	if err := in.write('D', Dump(v)); err != nil {
		return nil, err
	}
	return v, nil
}

func primOutput(in *Interpreter, args []Value) (Value, error) {
	v, err := in.Eval(args[0])
	if err != nil {
		return nil, err
	}
	s, err := evaluatedText(v)
	if err != nil {
		return nil, err
	}
	if stripped, ok := strings.CutSuffix(s, `\`); ok {
		err = in.write('O', stripped)
	} else {
		err = in.write('O', s+"\n")
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}
