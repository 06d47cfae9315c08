// Package server implements the esdc language server: compile diagnostics,
// schema-driven completion and hover documentation for state scripts over
// LSP stdio.
package server

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/ezstate/esdc/esd"
	"github.com/ezstate/esdc/schema"
	"github.com/ezstate/esdc/script"
	"github.com/ezstate/esdc/symtab"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "esdc-lsp"

// Builtin names the expression language defines outside any schema.
var builtinDocs = map[string]string{
	"MACHINE_ARGS":        "indexed argument of the running state machine",
	"MACHINE_CALL_STATUS": "result of the most recent submachine call",
	"ONGOING":             "set while the state's ongoing commands run",
	"CALL_STATE_MACHINE":  "invoke another state machine by index",
}

// LspServer serves editor features for state scripts. The schema and symbol
// table are fixed at startup and read concurrently by handlers; only the
// open-document map is guarded.
type LspServer struct {
	schema *schema.Schema
	consts *symtab.Table

	mu   sync.Mutex
	docs map[string]string // URI → full document content

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a language server compiling against the given schema and
// base symbol table. The table may be nil.
func NewLSP(sch *schema.Schema, consts *symtab.Table) *LspServer {
	s := &LspServer{
		schema:  sch,
		consts:  consts,
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
	commonlog.NewInfoMessage(0, "esdc LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{
		TriggerCharacters: []string{"."},
	}

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
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
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
			text := whole.Text
			s.mu.Unlock()

			s.publishDiagnostics(ctx, uri, text)
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

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	uri := params.TextDocument.URI
	pos := params.Position

	s.mu.Lock()
	text, ok := s.docs[string(uri)]
	s.mu.Unlock()

	if !ok {
		return nil, nil
	}

	prefix := extractPrefix(text, pos)
	if prefix == "" {
		return nil, nil
	}

	return s.complete(prefix), nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	uri := params.TextDocument.URI
	pos := params.Position

	s.mu.Lock()
	text, ok := s.docs[string(uri)]
	s.mu.Unlock()

	if !ok {
		return nil, nil
	}

	word := extractWord(text, pos)
	if word == "" {
		return nil, nil
	}

	return s.hover(word), nil
}

// complete gathers schema names, builtins and keywords matching a prefix.
func (s *LspServer) complete(prefix string) []protocol.CompletionItem {
	var items []protocol.CompletionItem
	lowerPrefix := strings.ToLower(prefix)
	matches := func(name string) bool {
		return strings.HasPrefix(strings.ToLower(name), lowerPrefix)
	}

	for name, id := range s.schema.Commands {
		if matches(name) {
			detail := fmt.Sprintf("command (bank %d, id %d)", id.Bank, id.ID)
			items = append(items, completionItem(name, protocol.CompletionItemKindFunction, detail))
		}
	}

	for name, id := range s.schema.Tests {
		if matches(name) {
			detail := fmt.Sprintf("test (id %d)", id)
			items = append(items, completionItem(name, protocol.CompletionItemKindFunction, detail))
		}
	}

	for name := range builtinDocs {
		if matches(name) {
			items = append(items, completionItem(name, protocol.CompletionItemKindConstant, "builtin"))
		}
	}

	if s.consts != nil {
		for _, module := range s.consts.Modules() {
			if matches(module) {
				detail := fmt.Sprintf("constants (%d members)", len(s.consts.Members(module)))
				items = append(items, completionItem(module, protocol.CompletionItemKindModule, detail))
			}
		}
	}

	keywords := []string{
		"use", "machine", "state", "test", "enter", "exit", "ongoing",
		"previous_states", "if", "else", "return", "and", "or", "not",
		"true", "false",
	}
	for _, name := range keywords {
		if matches(name) {
			items = append(items, completionItem(name, protocol.CompletionItemKindKeyword, "keyword"))
		}
	}

	sort.Slice(items, func(i, j int) bool { return items[i].Label < items[j].Label })

	// Limit results
	const maxItems = 100
	if len(items) > maxItems {
		items = items[:maxItems]
	}

	return items
}

func completionItem(name string, kind protocol.CompletionItemKind, detail string) protocol.CompletionItem {
	nameCopy := name
	detailCopy := detail
	kindCopy := kind
	return protocol.CompletionItem{
		Label:      nameCopy,
		Kind:       &kindCopy,
		Detail:     &detailCopy,
		InsertText: &nameCopy,
	}
}

// hover describes the schema entry, builtin or constants module under the
// cursor. Encoded fallback names resolve like any other.
func (s *LspServer) hover(word string) *protocol.Hover {
	var b strings.Builder

	if doc, ok := builtinDocs[word]; ok {
		fmt.Fprintf(&b, "**%s**\n\n%s", word, doc)
		return markdownHover(b.String())
	}

	if id, ok := s.schema.LookupCommand(word); ok {
		fmt.Fprintf(&b, "**%s**\n\ncommand — bank %d, id %d", word, id.Bank, id.ID)
		return markdownHover(b.String())
	}

	if id, ok := s.schema.LookupTest(word); ok {
		fmt.Fprintf(&b, "**%s**\n\ntest function — id %d", word, id)
		return markdownHover(b.String())
	}

	if s.consts != nil {
		if members := s.consts.Members(word); len(members) > 0 {
			fmt.Fprintf(&b, "**%s**\n\nConstants module with %d members:\n", word, len(members))
			for _, member := range members {
				fmt.Fprintf(&b, "- %s\n", member)
			}
			return markdownHover(b.String())
		}
	}

	return nil
}

func markdownHover(value string) *protocol.Hover {
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: value,
		},
	}
}

// --- Diagnostics ---

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	diagnostics := []protocol.Diagnostic{}
	if err := s.check(string(uri), text); err != nil {
		severity := protocol.DiagnosticSeverityError
		source := lspName
		diagnostics = append(diagnostics, protocol.Diagnostic{
			Range:    errorRange(err),
			Severity: &severity,
			Source:   &source,
			Message:  err.Error(),
		})
	}

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

// check parses and compiles one document against the server's schema.
func (s *LspServer) check(uri, text string) error {
	prog, err := script.Parse(uri, text)
	if err != nil {
		return err
	}
	tab, err := esd.LoadUses(s.consts, documentDir(uri), prog)
	if err != nil {
		return err
	}
	_, err = esd.Compile(prog, s.schema, tab)
	return err
}

// errorRange places a compile error on its source line; errors without a
// position land on the first line.
func errorRange(err error) protocol.Range {
	var cerr *esd.Error
	if !errors.As(err, &cerr) {
		return protocol.Range{
			Start: protocol.Position{Line: 0, Character: 0},
			End:   protocol.Position{Line: 0, Character: 0},
		}
	}
	line := uint32(0)
	if cerr.Pos.Line > 0 {
		line = uint32(cerr.Pos.Line - 1)
	}
	col := uint32(0)
	if cerr.Pos.Column > 0 {
		col = uint32(cerr.Pos.Column - 1)
	}
	return protocol.Range{
		Start: protocol.Position{Line: line, Character: col},
		End:   protocol.Position{Line: line, Character: col},
	}
}

// documentDir returns the directory a document's use declarations resolve
// against. Non-file URIs fall back to the working directory.
func documentDir(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != "file" || u.Path == "" {
		return "."
	}
	return filepath.Dir(u.Path)
}

// --- Text extraction helpers ---

// extractPrefix returns the word fragment before the cursor for completion.
func extractPrefix(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	// Walk backwards from cursor to find the start of the identifier
	start := col
	for start > 0 {
		ch := rune(line[start-1])
		if unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_' {
			start--
		} else {
			break
		}
	}

	if start == col {
		return ""
	}

	return line[start:col]
}

// extractWord returns the full identifier under the cursor.
func extractWord(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	// Find start
	start := col
	for start > 0 {
		ch := rune(line[start-1])
		if unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_' {
			start--
		} else {
			break
		}
	}

	// Find end
	end := col
	for end < len(line) {
		ch := rune(line[end])
		if unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_' {
			end++
		} else {
			break
		}
	}

	if start == end {
		return ""
	}

	return line[start:end]
}

func boolPtr(b bool) *bool {
	return &b
}
