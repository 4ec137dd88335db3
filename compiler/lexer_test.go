package compiler

import "testing"

func TestLexerTokens(t *testing.T) {
	input := "; = foo_1 WHILE 12 'a b' \"c\" TRUE F NULL + `"
	want := []struct {
		typ TokenType
		lit string
	}{
		{TokenFunction, ";"},
		{TokenFunction, "="},
		{TokenIdentifier, "foo_1"},
		{TokenFunction, "WHILE"},
		{TokenInteger, "12"},
		{TokenString, "a b"},
		{TokenString, "c"},
		{TokenTrue, "TRUE"},
		{TokenFalse, "F"},
		{TokenNull, "NULL"},
		{TokenFunction, "+"},
		{TokenFunction, "`"},
		{TokenEOF, ""},
	}

	l := NewLexer(input)
	for i, w := range want {
		tok := l.NextToken()
		if tok.Type != w.typ || tok.Literal != w.lit {
			t.Fatalf("token %d = %s, want %s(%q)", i, tok, w.typ, w.lit)
		}
	}
}

func TestLexerSkipsInsignificant(t *testing.T) {
	input := "  (  [ { : } ] )  # comment ; here\n\t# another\n  x # trailing"
	l := NewLexer(input)
	tok := l.NextToken()
	if tok.Type != TokenIdentifier || tok.Literal != "x" {
		t.Fatalf("first token = %s, want identifier x", tok)
	}
	if tok.Pos.Line != 3 || tok.Pos.Column != 3 {
		t.Errorf("x at %s, want 3:3", tok.Pos)
	}
	if tok := l.NextToken(); tok.Type != TokenEOF {
		t.Errorf("after comment got %s, want EOF", tok)
	}
}

func TestLexerKeywordAbsorption(t *testing.T) {
	tests := []struct {
		input string
		lit   string
		rest  TokenType
	}{
		{"OUTPUT_NOW x", "OUTPUT_NOW", TokenIdentifier},
		{"Ox", "O", TokenIdentifier},
		{"O1", "O", TokenInteger},
		{"LENGTH\"a\"", "LENGTH", TokenString},
	}
	for _, tt := range tests {
		l := NewLexer(tt.input)
		tok := l.NextToken()
		if tok.Type != TokenFunction || tok.Literal != tt.lit || tok.Opcode() != tt.lit[0] {
			t.Errorf("%q: first token %s, want function %q", tt.input, tok, tt.lit)
		}
		if next := l.NextToken(); next.Type != tt.rest {
			t.Errorf("%q: second token %s, want %s", tt.input, next, tt.rest)
		}
	}
}

func TestLexerSymbolsAreSingleCharacters(t *testing.T) {
	l := NewLexer("++")
	for i := 0; i < 2; i++ {
		if tok := l.NextToken(); tok.Type != TokenFunction || tok.Literal != "+" {
			t.Fatalf("token %d = %s, want +", i, tok)
		}
	}
}

func TestLexerIdentifiers(t *testing.T) {
	// Identifiers stop at uppercase letters.
	l := NewLexer("abcDEF")
	if tok := l.NextToken(); tok.Literal != "abc" {
		t.Errorf("got %s, want abc", tok)
	}
	if tok := l.NextToken(); tok.Type != TokenFunction || tok.Literal != "DEF" {
		t.Errorf("got %s, want function DEF", tok)
	}
}

func TestLexerStrings(t *testing.T) {
	l := NewLexer("'say \"hi\"'\"it's\"'multi\nline'")
	for _, want := range []string{`say "hi"`, "it's", "multi\nline"} {
		tok := l.NextToken()
		if tok.Type != TokenString || tok.Literal != want {
			t.Errorf("got %s, want string %q", tok, want)
		}
	}

	l = NewLexer("'open")
	if tok := l.NextToken(); tok.Type != TokenUnterminated {
		t.Errorf("got %s, want unterminated", tok)
	}
}

func TestLexerPositions(t *testing.T) {
	l := NewLexer("+ 1\n  2")
	want := []Position{{0, 1, 1}, {2, 1, 3}, {6, 2, 3}}
	for _, w := range want {
		if tok := l.NextToken(); tok.Pos != w {
			t.Errorf("%s at %+v, want %+v", tok, tok.Pos, w)
		}
	}
}

func TestLexerIllegal(t *testing.T) {
	for _, input := range []string{"\x01", "\x7f", "\xc3\xa9"} {
		if tok := NewLexer(input).NextToken(); tok.Type != TokenError {
			t.Errorf("%q lexed as %s, want error", input, tok)
		}
	}
}
