package server

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/knight/compiler"
	"github.com/chazu/knight/vm"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "knight-lsp"

var lspLog = commonlog.GetLogger("knight.lsp")

// LspServer provides editor features for Knight source: parse diagnostics,
// hover help for functions and completion. It never runs the program.
type LspServer struct {
	mu   sync.Mutex
	docs map[string]string // URI → full document content

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a new LSP server.
func NewLSP() *LspServer {
	s := &LspServer{
		docs:    make(map[string]string),
		version: "0.1.0",
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	lspLog.Info("initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{}
	capabilities.HoverProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	protocol.SetTraceValue(protocol.TraceValueOff)
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	text := params.TextDocument.Text

	s.mu.Lock()
	s.docs[string(uri)] = text
	s.mu.Unlock()

	s.publishDiagnostics(ctx, uri, text)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.mu.Lock()
			s.docs[string(uri)] = whole.Text
			s.mu.Unlock()

			s.publishDiagnostics(ctx, uri, whole.Text)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	// Clear diagnostics for the closed document
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

func (s *LspServer) document(uri protocol.DocumentUri) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.docs[string(uri)]
	return text, ok
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}

	prefix := extractPrefix(text, params.Position)
	if prefix == "" {
		return nil, nil
	}
	return complete(text, prefix, vm.Builtins), nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}

	word := extractWord(text, params.Position)
	if word == "" {
		return nil, nil
	}
	return hover(word, vm.Builtins), nil
}

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	diagnostics := diagnose(text)
	lspLog.Debug("diagnostics", "uri", string(uri), "count", len(diagnostics))

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

// ---------------------------------------------------------------------------
// Source analysis
// ---------------------------------------------------------------------------

// diagnose parses text and reports where parsing stopped. A document with
// more than one top-level expression gets a warning, since only the first
// one runs.
func diagnose(text string) []protocol.Diagnostic {
	diagnostics := []protocol.Diagnostic{}
	source := lspName

	p := compiler.NewParser(text, nil)
	if _, err := p.ParseValue(); err != nil {
		var pe *compiler.ParseError
		if !errors.As(err, &pe) {
			return diagnostics
		}
		severity := protocol.DiagnosticSeverityError
		diagnostics = append(diagnostics, protocol.Diagnostic{
			Range:    pointRange(pe.Root().Pos),
			Severity: &severity,
			Source:   &source,
			Message:  err.Error(),
		})
		return diagnostics
	}

	if p.Rest() {
		severity := protocol.DiagnosticSeverityWarning
		diagnostics = append(diagnostics, protocol.Diagnostic{
			Range:    pointRange(p.Position()),
			Severity: &severity,
			Source:   &source,
			Message:  "only the first expression runs; the rest of the file is ignored",
		})
	}
	return diagnostics
}

// pointRange converts a 1-based source position to a one-character LSP range.
func pointRange(pos compiler.Position) protocol.Range {
	line := protocol.UInteger(max(pos.Line-1, 0))
	col := protocol.UInteger(max(pos.Column-1, 0))
	return protocol.Range{
		Start: protocol.Position{Line: line, Character: col},
		End:   protocol.Position{Line: line, Character: col + 1},
	}
}

// lookupWord resolves the function a word names: a keyword spelling such as
// WHILE or W, or a single symbol character.
func lookupWord(word string, reg *vm.Registry) *vm.Function {
	if word == "" {
		return nil
	}
	fn := reg.Lookup(word[0])
	if fn == nil {
		return nil
	}
	if fn.IsKeyword() {
		if strings.Trim(word, "ABCDEFGHIJKLMNOPQRSTUVWXYZ_") != "" {
			return nil
		}
	} else if len(word) != 1 {
		return nil
	}
	return fn
}

func signature(fn *vm.Function) string {
	name := string(fn.Name)
	if fn.Keyword != "" {
		name = fn.Keyword
	}
	var b strings.Builder
	b.WriteString(name)
	for i := 0; i < fn.Arity; i++ {
		fmt.Fprintf(&b, " arg%d", i+1)
	}
	return b.String()
}

func hover(word string, reg *vm.Registry) *protocol.Hover {
	var value string
	switch fn := lookupWord(word, reg); {
	case fn != nil:
		value = fmt.Sprintf("**%s**\n\n`%s`\n\n%s", signature(fn), string(fn.Name), fn.Summary)
	case word[0] == 'T':
		value = "**TRUE**: the boolean true"
	case word[0] == 'F':
		value = "**FALSE**: the boolean false"
	case word[0] == 'N':
		value = "**NULL**: the null value"
	case word[0] == '_' || (word[0] >= 'a' && word[0] <= 'z'):
		value = fmt.Sprintf("global variable `%s`", word)
	default:
		return nil
	}
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: value,
		},
	}
}

// documentIdentifiers returns the distinct identifiers in text, sorted.
func documentIdentifiers(text string) []string {
	seen := make(map[string]bool)
	l := compiler.NewLexer(text)
	for {
		tok := l.NextToken()
		if tok.Type == compiler.TokenEOF || tok.Type == compiler.TokenUnterminated {
			break
		}
		if tok.Type == compiler.TokenIdentifier {
			seen[tok.Literal] = true
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func complete(text, prefix string, reg *vm.Registry) []protocol.CompletionItem {
	var items []protocol.CompletionItem
	add := func(label, detail string, kind protocol.CompletionItemKind) {
		items = append(items, protocol.CompletionItem{
			Label:      label,
			Kind:       &kind,
			Detail:     &detail,
			InsertText: &label,
		})
	}

	if prefix[0] >= 'A' && prefix[0] <= 'Z' {
		for _, fn := range reg.All() {
			if fn.Keyword != "" && strings.HasPrefix(fn.Keyword, prefix) {
				add(fn.Keyword, fn.Summary, protocol.CompletionItemKindFunction)
			}
		}
		for _, lit := range []string{"FALSE", "NULL", "TRUE"} {
			if strings.HasPrefix(lit, prefix) {
				add(lit, "literal", protocol.CompletionItemKindConstant)
			}
		}
		return items
	}

	for _, name := range documentIdentifiers(text) {
		if name != prefix && strings.HasPrefix(name, prefix) {
			add(name, "global", protocol.CompletionItemKindVariable)
		}
	}
	return items
}

// --- Text extraction helpers ---

func isWordChar(ch byte) bool {
	return ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch >= '0' && ch <= '9' || ch == '_'
}

// lineAt returns the line the position is on and the clamped column.
func lineAt(text string, pos protocol.Position) (string, int, bool) {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return "", 0, false
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}
	return line, col, true
}

// extractPrefix returns the word fragment before the cursor for completion.
func extractPrefix(text string, pos protocol.Position) string {
	line, col, ok := lineAt(text, pos)
	if !ok {
		return ""
	}

	// Walk backwards from cursor to find the start of the word
	start := col
	for start > 0 && isWordChar(line[start-1]) {
		start--
	}
	return line[start:col]
}

// extractWord returns the word under the cursor. A symbol character is a
// word by itself.
func extractWord(text string, pos protocol.Position) string {
	line, col, ok := lineAt(text, pos)
	if !ok {
		return ""
	}

	if col < len(line) && !isWordChar(line[col]) {
		if ch := line[col]; ch > ' ' && ch < 0x7f && !strings.ContainsRune("()[]{}:'\"#", rune(ch)) {
			return string(ch)
		}
	}

	start := col
	for start > 0 && isWordChar(line[start-1]) {
		start--
	}
	end := col
	for end < len(line) && isWordChar(line[end]) {
		end++
	}
	return line[start:end]
}

func boolPtr(b bool) *bool {
	return &b
}
