package compiler

import (
	"errors"
	"fmt"
)

// ParseError reports malformed source. Nothing in a program runs when
// parsing fails.
//
// A failure inside an operand is wrapped by a ParseError for the enclosing
// function ("missing argument 2 for +"), so Err may hold another
// *ParseError; Root returns the innermost one.
type ParseError struct {
	Pos Position
	Msg string

	// Incomplete is set when the source ended before the expression did,
	// so more input could complete it.
	Incomplete bool

	Err error
}

// Error reports the position where parsing stopped, followed by the
// chain of enclosing functions.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at %s: %s", e.Root().Pos, e.detail())
}

func (e *ParseError) detail() string {
	if e.Err == nil {
		return e.Msg
	}
	var inner *ParseError
	if errors.As(e.Err, &inner) {
		return e.Msg + ": " + inner.detail()
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error { return e.Err }

// Root returns the innermost ParseError of the chain, which carries the
// position where parsing actually stopped.
func (e *ParseError) Root() *ParseError {
	root := e
	for {
		var next *ParseError
		if root.Err == nil || !errors.As(root.Err, &next) {
			return root
		}
		root = next
	}
}

// IsParseError reports whether err is, or wraps, a ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// IsIncomplete reports whether err is a ParseError caused by running out of
// input, such as an unterminated string or a missing final operand.
func IsIncomplete(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe) && pe.Incomplete
}
