// Package vm implements the Knight evaluator.
//
// This package contains:
//   - the Value variants, which double as parsed syntax nodes
//   - the global Environment
//   - the builtin function registry and its primitives
//   - the evaluator and its type coercions
//   - the globals image codec
//
// Parsing lives in the compiler package; an Interpreter is handed a parse
// function with WithParser so that EVAL can re-enter it.
package vm
