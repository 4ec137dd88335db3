package server

import (
	"strings"
	"testing"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/chazu/knight/compiler"
	"github.com/chazu/knight/vm"
)

// ---------------------------------------------------------------------------
// LSP text extraction helpers
// ---------------------------------------------------------------------------

func TestExtractPrefix(t *testing.T) {
	tests := []struct {
		name string
		text string
		line protocol.UInteger
		char protocol.UInteger
		want string
	}{
		{"simple word", "= count 10", 0, 7, "count"},
		{"start of text", "WHI", 0, 3, "WHI"},
		{"empty line", "", 0, 0, ""},
		{"multi line", "; = a 1\n: OUT", 1, 5, "OUT"},
		{"after symbol", "+count", 0, 6, "count"},
		{"cursor at beginning", "hello", 0, 0, ""},
		{"line beyond document", "single line", 5, 0, ""},
		{"column beyond line", "abc", 0, 40, "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos := protocol.Position{Line: tt.line, Character: tt.char}
			if got := extractPrefix(tt.text, pos); got != tt.want {
				t.Errorf("extractPrefix(%q, %d:%d) = %q, want %q", tt.text, tt.line, tt.char, got, tt.want)
			}
		})
	}
}

func TestExtractWord(t *testing.T) {
	tests := []struct {
		name string
		text string
		char protocol.UInteger
		want string
	}{
		{"middle of identifier", "= count 10", 4, "count"},
		{"end of identifier", "= count 10", 7, "count"},
		{"keyword", "WHILE x", 2, "WHILE"},
		{"symbol", "+ 1 2", 0, "+"},
		{"backtick", "` 'ls'", 0, "`"},
		{"ignored bracket", "(x)", 0, ""},
		{"space", "a  b", 2, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos := protocol.Position{Line: 0, Character: tt.char}
			if got := extractWord(tt.text, pos); got != tt.want {
				t.Errorf("extractWord(%q, %d) = %q, want %q", tt.text, tt.char, got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Diagnostics
// ---------------------------------------------------------------------------

func TestDiagnose_Clean(t *testing.T) {
	if d := diagnose("; = a 1\n: OUTPUT a\n"); len(d) != 0 {
		t.Errorf("diagnostics = %+v, want none", d)
	}
}

func TestDiagnose_ParseError(t *testing.T) {
	d := diagnose("; = a 1\n: + a ~")
	if len(d) != 1 {
		t.Fatalf("diagnostics = %+v, want one", d)
	}
	if *d[0].Severity != protocol.DiagnosticSeverityError {
		t.Errorf("severity = %v", *d[0].Severity)
	}
	if d[0].Source == nil || *d[0].Source != lspName {
		t.Errorf("source = %v", d[0].Source)
	}
	if !strings.Contains(d[0].Message, "unknown function") {
		t.Errorf("message = %q", d[0].Message)
	}
	// The diagnostic points at the '~' on the second line.
	start := d[0].Range.Start
	if start.Line != 1 || start.Character != 6 {
		t.Errorf("range start = %d:%d, want 1:6", start.Line, start.Character)
	}
}

func TestDiagnose_Unterminated(t *testing.T) {
	d := diagnose("OUTPUT 'never closed")
	if len(d) != 1 || *d[0].Severity != protocol.DiagnosticSeverityError {
		t.Fatalf("diagnostics = %+v", d)
	}
}

func TestDiagnose_TrailingExpression(t *testing.T) {
	d := diagnose("OUTPUT 1\nOUTPUT 2")
	if len(d) != 1 {
		t.Fatalf("diagnostics = %+v, want one", d)
	}
	if *d[0].Severity != protocol.DiagnosticSeverityWarning {
		t.Errorf("severity = %v, want warning", *d[0].Severity)
	}
}

func TestPointRange(t *testing.T) {
	r := pointRange(compiler.Position{Line: 3, Column: 5})
	if r.Start.Line != 2 || r.Start.Character != 4 || r.End.Character != 5 {
		t.Errorf("pointRange = %+v", r)
	}
	zero := pointRange(compiler.Position{})
	if zero.Start.Line != 0 || zero.Start.Character != 0 {
		t.Errorf("pointRange of zero position = %+v", zero)
	}
}

// ---------------------------------------------------------------------------
// Hover
// ---------------------------------------------------------------------------

func TestLookupWord(t *testing.T) {
	tests := []struct {
		word string
		name byte
	}{
		{"W", 'W'},
		{"WHILE", 'W'},
		{"WHAT_EVER", 'W'},
		{"+", '+'},
		{"`", '`'},
		{"Wx", 0},
		{"++", 0},
		{"x", 0},
		{"TRUE", 0},
		{"", 0},
	}
	for _, tt := range tests {
		fn := lookupWord(tt.word, vm.Builtins)
		switch {
		case tt.name == 0 && fn != nil:
			t.Errorf("lookupWord(%q) = %c, want nil", tt.word, fn.Name)
		case tt.name != 0 && (fn == nil || fn.Name != tt.name):
			t.Errorf("lookupWord(%q) = %v, want %c", tt.word, fn, tt.name)
		}
	}
}

func TestSignature(t *testing.T) {
	if got := signature(vm.Builtins.Lookup('I')); got != "IF arg1 arg2 arg3" {
		t.Errorf("signature(I) = %q", got)
	}
	if got := signature(vm.Builtins.Lookup('+')); got != "+ arg1 arg2" {
		t.Errorf("signature(+) = %q", got)
	}
	if got := signature(vm.Builtins.Lookup('P')); got != "PROMPT" {
		t.Errorf("signature(P) = %q", got)
	}
}

func TestHover(t *testing.T) {
	tests := []struct {
		word string
		want string
	}{
		{"OUTPUT", "**OUTPUT arg1**"},
		{"%", "Remainder"},
		{"TRUE", "boolean true"},
		{"FALSE", "boolean false"},
		{"NULL", "null value"},
		{"count", "global variable `count`"},
		{"_tmp", "global variable `_tmp`"},
	}
	for _, tt := range tests {
		h := hover(tt.word, vm.Builtins)
		if h == nil {
			t.Errorf("hover(%q) = nil", tt.word)
			continue
		}
		content := h.Contents.(protocol.MarkupContent)
		if !strings.Contains(content.Value, tt.want) {
			t.Errorf("hover(%q) = %q, want it to contain %q", tt.word, content.Value, tt.want)
		}
	}

	if h := hover("123", vm.Builtins); h != nil {
		t.Errorf("hover(123) = %+v, want nil", h)
	}
}

// ---------------------------------------------------------------------------
// Completion
// ---------------------------------------------------------------------------

func labels(items []protocol.CompletionItem) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.Label
	}
	return out
}

func TestComplete_Keywords(t *testing.T) {
	got := labels(complete("", "O", vm.Builtins))
	if len(got) != 1 || got[0] != "OUTPUT" {
		t.Errorf("complete(O) = %v", got)
	}

	got = labels(complete("", "N", vm.Builtins))
	if len(got) != 1 || got[0] != "NULL" {
		t.Errorf("complete(N) = %v", got)
	}
}

func TestComplete_DocumentIdentifiers(t *testing.T) {
	text := "; = counter 0\n; = count_max 10\n: WHILE < counter count_max = counter + counter 1"
	got := labels(complete(text, "cou", vm.Builtins))
	want := []string{"count_max", "counter"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("complete(cou) = %v, want %v", got, want)
	}

	// The word being typed is not offered back.
	got = labels(complete(text, "counter", vm.Builtins))
	if len(got) != 0 {
		t.Errorf("complete(counter) = %v, want none", got)
	}
}

func TestDocumentIdentifiers(t *testing.T) {
	got := documentIdentifiers("; = b 'a' : OUTPUT + a b # c is a comment")
	if strings.Join(got, ",") != "a,b" {
		t.Errorf("documentIdentifiers = %v", got)
	}
}
