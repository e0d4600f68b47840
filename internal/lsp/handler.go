// Package lsp adapts the formula compiler/optimizer pipeline to the
// Language Server Protocol, in the same tliron/glsp style the teacher used
// for its contract-language server: one handler struct guarding per-document
// state behind a mutex, LSP capability advertisement in Initialize, and
// diagnostics pushed via ctx.Notify rather than returned from a request.
//
// A document here is a single formula (one expression, no statements), so
// there is no symbol table to build across files — every distinct
// identifier the formula references is treated as an implicitly bound
// variable, and diagnostics report syntax errors and unresolved/mis-arity
// function calls.
package lsp

import (
	"fmt"
	"log"
	"net/url"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"exprfold/grammar"
	"exprfold/internal/ast"
	"exprfold/internal/compile"
	"exprfold/internal/opt"
)

// document is the parsed/compiled snapshot kept for one open file.
type document struct {
	content string
	expr    ast.Expr
	varDecl []string
}

// ExprHandler implements the LSP server handlers for the formula language.
type ExprHandler struct {
	mu   sync.RWMutex
	docs map[string]*document
}

// NewExprHandler creates and returns a new ExprHandler instance.
func NewExprHandler() *ExprHandler {
	return &ExprHandler{
		docs: make(map[string]*document),
	}
}

// Initialize responds to the LSP client's initialize request and advertises
// the server's capabilities.
func (h *ExprHandler) Initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	log.Println("LSP Initialize called")

	return &protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync: &protocol.TextDocumentSyncOptions{
				OpenClose: ptrBool(true),
				Change:    ptrSyncKind(protocol.TextDocumentSyncKindFull),
			},
			CompletionProvider: &protocol.CompletionOptions{
				ResolveProvider: ptrBool(false),
			},
			SemanticTokensProvider: &protocol.SemanticTokensOptions{
				Legend: protocol.SemanticTokensLegend{
					TokenTypes:     SemanticTokenTypes,
					TokenModifiers: SemanticTokenModifiers,
				},
				Full: ptrBool(true),
			},
		},
	}, nil
}

// Initialized is called after the client completes initialization.
func (h *ExprHandler) Initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	log.Println("formula LSP initialized")
	return nil
}

// Shutdown handles the LSP shutdown request.
func (h *ExprHandler) Shutdown(ctx *glsp.Context) error {
	log.Println("formula LSP shutdown")
	return nil
}

// TextDocumentDidOpen handles file open notifications from the editor.
func (h *ExprHandler) TextDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	log.Printf("opened document: %s\n", uri)
	h.refresh(ctx, uri, params.TextDocument.Text)
	return nil
}

// TextDocumentDidClose handles file close notifications from the editor.
func (h *ExprHandler) TextDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI
	log.Printf("closed document: %s\n", uri)

	path, err := uriToPath(uri)
	if err != nil {
		return fmt.Errorf("failed to convert URI %s: %w", uri, err)
	}

	h.mu.Lock()
	delete(h.docs, path)
	h.mu.Unlock()
	return nil
}

// TextDocumentDidChange handles file change notifications from the editor.
func (h *ExprHandler) TextDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI
	log.Printf("changed document: %s\n", uri)

	if len(params.ContentChanges) == 0 {
		return nil
	}
	// Full sync: the last change event carries the whole new text.
	change, ok := params.ContentChanges[len(params.ContentChanges)-1].(protocol.TextDocumentContentChangeEvent)
	if !ok {
		return nil
	}
	h.refresh(ctx, uri, change.Text)
	return nil
}

// TextDocumentCompletion handles completion requests. Built-in function
// names are the only static completions a bare formula editor can offer
// without broader project context.
func (h *ExprHandler) TextDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (interface{}, error) {
	items := make([]protocol.CompletionItem, 0, len(builtinCompletionNames))
	kind := protocol.CompletionItemKindFunction
	for _, name := range builtinCompletionNames {
		n := name
		items = append(items, protocol.CompletionItem{Label: n, Kind: &kind})
	}
	return &protocol.CompletionList{IsIncomplete: false, Items: items}, nil
}

// TextDocumentSemanticTokensFull handles semantic token requests for the
// entire document.
func (h *ExprHandler) TextDocumentSemanticTokensFull(ctx *glsp.Context, params *protocol.SemanticTokensParams) (*protocol.SemanticTokens, error) {
	uri := params.TextDocument.URI
	path, err := uriToPath(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to convert URI %s: %w", uri, err)
	}

	h.mu.RLock()
	doc, ok := h.docs[path]
	h.mu.RUnlock()
	if !ok || doc.expr == nil {
		return &protocol.SemanticTokens{Data: nil}, nil
	}

	tokens := collectSemanticTokens(doc.expr)
	return &protocol.SemanticTokens{Data: encodeSemanticTokens(tokens)}, nil
}

// refresh reparses/recompiles text and republishes diagnostics for uri.
func (h *ExprHandler) refresh(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	path, err := uriToPath(uri)
	if err != nil {
		log.Printf("failed to convert URI %s: %v\n", uri, err)
		return
	}

	parsed, parseErr := grammar.ParseString(path, text)
	if parseErr != nil {
		h.mu.Lock()
		h.docs[path] = &document{content: text}
		h.mu.Unlock()
		sendDiagnosticNotification(ctx, uri, ConvertParseError(parseErr))
		return
	}

	expr := parsed.ToAST()
	varNames := freeVariables(expr)
	result, diags := compile.Compile(expr, varNames, nil)

	h.mu.Lock()
	h.docs[path] = &document{content: text, expr: expr, varDecl: varNames}
	h.mu.Unlock()

	published := ConvertCompilerDiagnostics(diags)
	if diags.OK() && result != nil {
		optimized := opt.Optimize(&opt.Data{Program: result.Program, VarNames: result.VarNames, Callbacks: result.Callbacks})
		if before, after := len(result.Program.Instrs), len(optimized.Program.Instrs); after < before {
			published = append(published, OptimizationHint(before, after))
		}
	}
	sendDiagnosticNotification(ctx, uri, published)
}

// freeVariables returns every distinct identifier name referenced by expr,
// in first-occurrence order, standing in for the variable declarations a
// fuller tool would read from project configuration.
func freeVariables(expr ast.Expr) []string {
	seen := make(map[string]bool)
	var names []string
	var walk func(e ast.Expr)
	walk = func(e ast.Expr) {
		switch n := e.(type) {
		case *ast.IdentExpr:
			if !seen[n.Name] {
				seen[n.Name] = true
				names = append(names, n.Name)
			}
		case *ast.ParenExpr:
			walk(n.Value)
		case *ast.UnaryExpr:
			walk(n.Value)
		case *ast.BinaryExpr:
			walk(n.Left)
			walk(n.Right)
		case *ast.CallExpr:
			for _, a := range n.Args {
				walk(a)
			}
		}
	}
	walk(expr)
	return names
}

// uriToPath converts a file:// URI to a platform-local file path.
func uriToPath(rawURI string) (string, error) {
	u, err := url.Parse(rawURI)
	if err != nil {
		return "", fmt.Errorf("invalid URI %s: %w", rawURI, err)
	}

	path := u.Path
	if runtime.GOOS == "windows" && strings.HasPrefix(path, "/") && len(path) > 3 && path[2] == ':' {
		path = path[1:]
	}
	return filepath.FromSlash(path), nil
}

func sendDiagnosticNotification(ctx *glsp.Context, uri protocol.URI, diagnostics []protocol.Diagnostic) {
	if ctx == nil {
		return
	}
	ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, &protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

func ptrBool(b bool) *bool {
	return &b
}

func ptrSyncKind(k protocol.TextDocumentSyncKind) *protocol.TextDocumentSyncKind {
	return &k
}
