package vm

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"os/exec"
	"strings"
)

// ---------------------------------------------------------------------------
// Interpreter: evaluation of Values against one global Environment
// ---------------------------------------------------------------------------

// ParseFunc turns source text into a single root Value.
type ParseFunc func(source string) (Value, error)

// ShellFunc runs a command for ` and returns its captured standard output.
type ShellFunc func(command string) (string, error)

// Interpreter evaluates Knight programs. All runs on one Interpreter,
// including the nested runs started by EVAL, share its Globals.
//
// An Interpreter is single-threaded; callers that share one across
// goroutines must serialize access.
type Interpreter struct {
	Globals *Environment

	parse  ParseFunc
	stdin  *bufio.Reader
	stdout io.Writer
	shell  ShellFunc
	rand   *rand.Rand
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithParser installs the parser used by Run and EVAL.
func WithParser(fn ParseFunc) Option {
	return func(in *Interpreter) { in.parse = fn }
}

// WithStdin sets the stream PROMPT reads from.
func WithStdin(r io.Reader) Option {
	return func(in *Interpreter) {
		if br, ok := r.(*bufio.Reader); ok {
			in.stdin = br
			return
		}
		in.stdin = bufio.NewReader(r)
	}
}

// WithStdout sets the stream OUTPUT and DUMP write to.
func WithStdout(w io.Writer) Option {
	return func(in *Interpreter) { in.stdout = w }
}

// WithShell sets the command runner used by `.
func WithShell(fn ShellFunc) Option {
	return func(in *Interpreter) { in.shell = fn }
}

// WithSeed makes RANDOM deterministic.
func WithSeed(seed uint64) Option {
	return func(in *Interpreter) { in.rand = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) }
}

// WithGlobals shares an existing environment, for example one restored from
// an image.
func WithGlobals(env *Environment) Option {
	return func(in *Interpreter) { in.Globals = env }
}

// NewInterpreter creates an interpreter wired to the process's standard
// streams and /bin/sh. Without WithParser, Run and EVAL fail.
func NewInterpreter(opts ...Option) *Interpreter {
	in := &Interpreter{
		Globals: NewEnvironment(),
		stdin:   bufio.NewReader(os.Stdin),
		stdout:  os.Stdout,
		shell:   SystemShell("/bin/sh"),
		rand:    rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// UseParser replaces the parser, mirroring WithParser after construction.
func (in *Interpreter) UseParser(fn ParseFunc) {
	in.parse = fn
}

// Parse parses source with the installed parser.
func (in *Interpreter) Parse(source string) (Value, error) {
	if in.parse == nil {
		return nil, errors.New("vm: no parser installed")
	}
	return in.parse(source)
}

// Run parses source and evaluates the resulting expression. A parse
// failure means nothing runs.
func (in *Interpreter) Run(source string) (Value, error) {
	prog, err := in.Parse(source)
	if err != nil {
		return nil, err
	}
	return in.Eval(prog)
}

// Eval runs v once. Literals return themselves, identifiers return their
// binding without running it, and operations call their primitive with the
// unevaluated operands. Evaluating the same operation twice re-runs it.
func (in *Interpreter) Eval(v Value) (Value, error) {
	switch v := v.(type) {
	case Integer, Text, Boolean, Null:
		return v, nil
	case Identifier:
		val, ok := in.Globals.Get(string(v))
		if !ok {
			return nil, &RuntimeError{Kind: UnknownIdentifier, Msg: string(v)}
		}
		return val, nil
	case *Operation:
		return v.Fn.Impl(in, v.Args)
	case nil:
		return nil, errors.New("vm: cannot evaluate nil value")
	}
	return nil, fmt.Errorf("vm: cannot evaluate %T", v)
}

// ---------------------------------------------------------------------------
// Coercions: evaluate non-literals once, then convert
// ---------------------------------------------------------------------------

// ToText converts v to text, evaluating it once if it is not a literal.
func (in *Interpreter) ToText(v Value) (string, error) {
	if s, ok := LiteralText(v); ok {
		return s, nil
	}
	v, err := in.convertible(v, "text")
	if err != nil {
		return "", err
	}
	s, _ := LiteralText(v)
	return s, nil
}

// ToNumber converts v to a number, evaluating it once if needed.
func (in *Interpreter) ToNumber(v Value) (int64, error) {
	if n, ok := LiteralNumber(v); ok {
		return n, nil
	}
	v, err := in.convertible(v, "number")
	if err != nil {
		return 0, err
	}
	n, _ := LiteralNumber(v)
	return n, nil
}

// ToBoolean converts v to a boolean, evaluating it once if needed.
func (in *Interpreter) ToBoolean(v Value) (bool, error) {
	if b, ok := LiteralBoolean(v); ok {
		return b, nil
	}
	v, err := in.convertible(v, "boolean")
	if err != nil {
		return false, err
	}
	b, _ := LiteralBoolean(v)
	return b, nil
}

// convertible evaluates v and checks that the result is a literal. A block
// evaluates to its unevaluated body, which has no conversion.
func (in *Interpreter) convertible(v Value, to string) (Value, error) {
	v, err := in.Eval(v)
	if err != nil {
		return nil, err
	}
	switch v.(type) {
	case Integer, Text, Boolean, Null:
		return v, nil
	}
	return nil, conversionError(v, to)
}

// evaluatedText converts a value that has already been evaluated.
func evaluatedText(v Value) (string, error) {
	if s, ok := LiteralText(v); ok {
		return s, nil
	}
	return "", conversionError(v, "text")
}

// evaluatedBoolean converts a value that has already been evaluated.
func evaluatedBoolean(v Value) (bool, error) {
	if b, ok := LiteralBoolean(v); ok {
		return b, nil
	}
	return false, conversionError(v, "boolean")
}

func conversionError(v Value, to string) error {
	return &RuntimeError{
		Kind: InvalidOperand,
		Msg:  fmt.Sprintf("cannot convert %s to %s", v.TypeName(), to),
	}
}

// ---------------------------------------------------------------------------
// Host I/O
// ---------------------------------------------------------------------------

func (in *Interpreter) write(op byte, s string) error {
	if _, err := io.WriteString(in.stdout, s); err != nil {
		return &RuntimeError{Kind: IOFailure, Op: op, Err: err}
	}
	return nil
}

// Flush flushes buffered output, if the output stream buffers.
func (in *Interpreter) Flush() error {
	if f, ok := in.stdout.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

func (in *Interpreter) readLine() (Value, error) {
	if err := in.Flush(); err != nil {
		return nil, &RuntimeError{Kind: IOFailure, Op: 'P', Err: err}
	}
	line, err := in.stdin.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, &RuntimeError{Kind: IOFailure, Op: 'P', Err: err}
	}
	if line == "" && err != nil {
		return Null{}, nil
	}
	return Text(line), nil
}

// SystemShell returns a ShellFunc that runs commands with `shell -c`.
// Standard error is passed through to the process's stderr.
func SystemShell(shell string) ShellFunc {
	return func(command string) (string, error) {
		cmd := exec.Command(shell, "-c", command)
		var out bytes.Buffer
		cmd.Stdout = &out
		cmd.Stderr = os.Stderr
		if err := cmd.Run(); err != nil {
			return "", &RuntimeError{Kind: CommandFailed, Op: '`', Msg: command, Err: err}
		}
		return out.String(), nil
	}
}

// NoShell refuses every command.
func NoShell(command string) (string, error) {
	return "", &RuntimeError{
		Kind: CommandFailed,
		Op:   '`',
		Msg:  fmt.Sprintf("shell commands are disabled: %s", strings.TrimSpace(command)),
	}
}
