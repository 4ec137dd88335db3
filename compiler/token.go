package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Token types for the Knight lexer
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError
	TokenUnterminated // quote without its closing partner

	// Literals
	TokenInteger    // 42
	TokenString     // 'hi', "hi"
	TokenTrue       // T, TRUE
	TokenFalse      // F, FALSE
	TokenNull       // N, NULL
	TokenIdentifier // foo, _bar9

	// Functions
	TokenFunction // W, WHILE, +, `
)

var tokenNames = map[TokenType]string{
	TokenEOF:          "EOF",
	TokenError:        "ERROR",
	TokenUnterminated: "UNTERMINATED",
	TokenInteger:      "INTEGER",
	TokenString:       "STRING",
	TokenTrue:         "TRUE",
	TokenFalse:        "FALSE",
	TokenNull:         "NULL",
	TokenIdentifier:   "IDENTIFIER",
	TokenFunction:     "FUNCTION",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}

// Position represents a source location.
type Position struct {
	Offset int // byte offset
	Line   int // 1-based line number
	Column int // 1-based column number
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Token is a lexical token.
type Token struct {
	Type    TokenType
	Literal string // source text; string tokens hold the unquoted body
	Pos     Position
}

// Opcode returns the registry key of a function token: its first byte.
func (t Token) Opcode() byte {
	if t.Type != TokenFunction || t.Literal == "" {
		return 0
	}
	return t.Literal[0]
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q) at %s", t.Type, t.Literal, t.Pos)
}
