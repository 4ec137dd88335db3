package compiler

// ---------------------------------------------------------------------------
// Lexer: on-demand tokenizer over Knight source
// ---------------------------------------------------------------------------

// Lexer tokenizes Knight source. Knight source is ASCII, so the lexer works
// on bytes. Tokens are produced one at a time as the parser asks for them.
type Lexer struct {
	input string
	pos   int // offset of the next unread byte
	line  int // current line (1-based)
	col   int // current column (1-based)
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input, line: 1, col: 1}
}

func (l *Lexer) atEOF() bool {
	return l.pos >= len(l.input)
}

func (l *Lexer) peek() byte {
	if l.atEOF() {
		return 0
	}
	return l.input[l.pos]
}

// advance consumes one byte, tracking line and column.
func (l *Lexer) advance() {
	if l.atEOF() {
		return
	}
	if l.input[l.pos] == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	l.pos++
}

// advanceWhile consumes bytes while pred holds.
func (l *Lexer) advanceWhile(pred func(byte) bool) {
	for !l.atEOF() && pred(l.input[l.pos]) {
		l.advance()
	}
}

func (l *Lexer) position() Position {
	return Position{Offset: l.pos, Line: l.line, Column: l.col}
}

// Position returns the location of the next unread byte.
func (l *Lexer) Position() Position {
	return l.position()
}

// skipInsignificant consumes whitespace, brackets, colons and comments
// until none remain.
func (l *Lexer) skipInsignificant() {
	for !l.atEOF() {
		switch ch := l.peek(); {
		case isSpace(ch) || isIgnoredPunct(ch):
			l.advance()
		case ch == '#':
			l.advanceWhile(func(c byte) bool { return c != '\n' })
		default:
			return
		}
	}
}

// NextToken returns the next token.
func (l *Lexer) NextToken() Token {
	l.skipInsignificant()

	pos := l.position()
	if l.atEOF() {
		return Token{Type: TokenEOF, Pos: pos}
	}

	start := l.pos
	ch := l.peek()
	switch {
	case isDigit(ch):
		l.advanceWhile(isDigit)
		return Token{Type: TokenInteger, Literal: l.input[start:l.pos], Pos: pos}

	case ch == '\'' || ch == '"':
		l.advance()
		bodyStart := l.pos
		l.advanceWhile(func(c byte) bool { return c != ch })
		if l.atEOF() {
			return Token{Type: TokenUnterminated, Literal: l.input[start:l.pos], Pos: pos}
		}
		body := l.input[bodyStart:l.pos]
		l.advance()
		return Token{Type: TokenString, Literal: body, Pos: pos}

	case isLower(ch) || ch == '_':
		l.advanceWhile(isIdentChar)
		return Token{Type: TokenIdentifier, Literal: l.input[start:l.pos], Pos: pos}

	case isUpper(ch):
		l.advanceWhile(isKeywordChar)
		word := l.input[start:l.pos]
		switch ch {
		case 'T':
			return Token{Type: TokenTrue, Literal: word, Pos: pos}
		case 'F':
			return Token{Type: TokenFalse, Literal: word, Pos: pos}
		case 'N':
			return Token{Type: TokenNull, Literal: word, Pos: pos}
		}
		return Token{Type: TokenFunction, Literal: word, Pos: pos}

	case isSymbol(ch):
		l.advance()
		return Token{Type: TokenFunction, Literal: string(ch), Pos: pos}
	}

	l.advance()
	return Token{Type: TokenError, Literal: l.input[start:l.pos], Pos: pos}
}

// ---------------------------------------------------------------------------
// Character classes
// ---------------------------------------------------------------------------

func isSpace(ch byte) bool {
	switch ch {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}

func isIgnoredPunct(ch byte) bool {
	switch ch {
	case '(', ')', '[', ']', '{', '}', ':':
		return true
	}
	return false
}

func isDigit(ch byte) bool { return ch >= '0' && ch <= '9' }
func isLower(ch byte) bool { return ch >= 'a' && ch <= 'z' }
func isUpper(ch byte) bool { return ch >= 'A' && ch <= 'Z' }

func isIdentChar(ch byte) bool {
	return isLower(ch) || isDigit(ch) || ch == '_'
}

func isKeywordChar(ch byte) bool {
	return isUpper(ch) || ch == '_'
}

// isSymbol reports whether ch can start a symbol function token: any
// printable ASCII character that no other rule claims.
func isSymbol(ch byte) bool {
	return ch > ' ' && ch < 0x7f &&
		!isDigit(ch) && !isLower(ch) && !isUpper(ch) && ch != '_' &&
		ch != '\'' && ch != '"' && ch != '#' && !isIgnoredPunct(ch)
}
