package compiler

import (
	"fmt"
	"strconv"

	"github.com/chazu/knight/vm"
)

// ---------------------------------------------------------------------------
// Parser: single-character-dispatch recursive descent
// ---------------------------------------------------------------------------

// Parser turns Knight source into a vm.Value. The first character of each
// token selects the production, so the parser never backtracks; a function
// token is followed by exactly as many expressions as its arity.
type Parser struct {
	lexer *Lexer
	reg   *vm.Registry
}

// NewParser creates a parser over input. Function tokens are resolved
// against reg, or vm.Builtins when reg is nil.
func NewParser(input string, reg *vm.Registry) *Parser {
	if reg == nil {
		reg = vm.Builtins
	}
	return &Parser{lexer: NewLexer(input), reg: reg}
}

// Parse parses the first expression of source with the builtin functions.
// Anything after that expression is ignored.
func Parse(source string) (vm.Value, error) {
	return NewParser(source, nil).ParseValue()
}

// ParseValue parses the next expression. Source that is empty apart from
// whitespace and comments yields a ParseError that is not Incomplete.
func (p *Parser) ParseValue() (vm.Value, error) {
	return p.parseValue(false)
}

// parseValue parses one expression; operand is set while parsing the
// arguments of a function, where running out of input means the source is
// incomplete.
func (p *Parser) parseValue(operand bool) (vm.Value, error) {
	tok := p.lexer.NextToken()

	switch tok.Type {
	case TokenEOF:
		return nil, &ParseError{Pos: tok.Pos, Msg: "nothing to parse", Incomplete: operand}

	case TokenInteger:
		n, err := strconv.ParseInt(tok.Literal, 10, 64)
		if err != nil {
			return nil, &ParseError{Pos: tok.Pos, Msg: "integer literal out of range"}
		}
		return vm.Integer(n), nil

	case TokenString:
		return vm.Text(tok.Literal), nil

	case TokenUnterminated:
		return nil, &ParseError{
			Pos:        tok.Pos,
			Msg:        fmt.Sprintf("unterminated quote %c", tok.Literal[0]),
			Incomplete: true,
		}

	case TokenTrue:
		return vm.Boolean(true), nil

	case TokenFalse:
		return vm.Boolean(false), nil

	case TokenNull:
		return vm.Null{}, nil

	case TokenIdentifier:
		return vm.Identifier(tok.Literal), nil

	case TokenFunction:
		return p.parseOperation(tok)
	}

	return nil, &ParseError{Pos: tok.Pos, Msg: fmt.Sprintf("unknown token start %q", tok.Literal)}
}

func (p *Parser) parseOperation(tok Token) (vm.Value, error) {
	fn := p.reg.Lookup(tok.Opcode())
	if fn == nil {
		return nil, &ParseError{Pos: tok.Pos, Msg: fmt.Sprintf("unknown function %q", tok.Literal)}
	}

	args := make([]vm.Value, fn.Arity)
	for i := range args {
		arg, err := p.parseValue(true)
		if err != nil {
			return nil, &ParseError{
				Pos:        tok.Pos,
				Msg:        fmt.Sprintf("missing argument %d for %s", i+1, tok.Literal),
				Incomplete: IsIncomplete(err),
				Err:        err,
			}
		}
		args[i] = arg
	}

	op, err := vm.NewOperation(fn, args)
	if err != nil {
		return nil, err
	}
	return op, nil
}

// Position returns where the parser will resume.
func (p *Parser) Position() Position {
	return p.lexer.Position()
}

// Rest reports whether anything other than whitespace and comments follows
// the parsed expressions.
func (p *Parser) Rest() bool {
	p.lexer.skipInsignificant()
	return !p.lexer.atEOF()
}
