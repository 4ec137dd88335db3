package vm

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Runtime errors
// ---------------------------------------------------------------------------

// ErrorKind classifies a RuntimeError.
type ErrorKind int

const (
	// UnknownIdentifier: a variable was read before any assignment.
	UnknownIdentifier ErrorKind = iota + 1
	// DivisionByZero: / or % with a zero divisor.
	DivisionByZero
	// InvalidOperand: an operator received a type it has no rule for,
	// such as comparing NULL.
	InvalidOperand
	// CommandFailed: a ` command could not start or exited non-zero.
	CommandFailed
	// IOFailure: reading input or writing output failed.
	IOFailure
)

var errorKindNames = map[ErrorKind]string{
	UnknownIdentifier: "unknown identifier",
	DivisionByZero:    "division by zero",
	InvalidOperand:    "invalid operand",
	CommandFailed:     "command failed",
	IOFailure:         "i/o failure",
}

func (k ErrorKind) String() string {
	if name, ok := errorKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// RuntimeError is a failure while evaluating a well-formed program. The
// first one raised aborts the whole run.
type RuntimeError struct {
	Kind ErrorKind
	Op   byte   // opcode that raised it, 0 if none
	Msg  string // detail
	Err  error  // underlying cause, if any
}

func (e *RuntimeError) Error() string {
	msg := e.Kind.String()
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Op != 0 {
		return fmt.Sprintf("runtime error in %c: %s", e.Op, msg)
	}
	return "runtime error: " + msg
}

func (e *RuntimeError) Unwrap() error { return e.Err }

// IsRuntimeError reports whether err is a RuntimeError of the given kind.
// A zero kind matches any RuntimeError.
func IsRuntimeError(err error, kind ErrorKind) bool {
	var rt *RuntimeError
	if !errors.As(err, &rt) {
		return false
	}
	return kind == 0 || rt.Kind == kind
}

func invalidOperand(op byte, v Value) error {
	return &RuntimeError{
		Kind: InvalidOperand,
		Op:   op,
		Msg:  fmt.Sprintf("cannot use %s here", v.TypeName()),
	}
}

// ---------------------------------------------------------------------------
// Exit requests
// ---------------------------------------------------------------------------

// ExitError carries a QUIT request to the outermost caller. It is not a
// failure: no primitive inspects errors, so it passes through every nested
// run untouched. The CLI exits the process with Code; the server reports it.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// ExitCode returns the QUIT status carried by err, if any.
func ExitCode(err error) (int, bool) {
	var exit *ExitError
	if errors.As(err, &exit) {
		return exit.Code, true
	}
	return 0, false
}
