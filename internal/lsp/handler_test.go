package lsp_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"exprfold/internal/lsp"
)

// openDocument feeds src through TextDocumentDidOpen with a nil glsp
// context — ExprHandler's diagnostic push is a no-op against a nil
// context, so this primes the handler's internal document state without
// needing a live client connection.
func openDocument(t *testing.T, handler *lsp.ExprHandler, uri, src string) {
	t.Helper()
	err := handler.TextDocumentDidOpen(nil, &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: uri, Text: src},
	})
	require.NoError(t, err)
}

func TestTextDocumentSemanticTokensFull(t *testing.T) {
	handler := lsp.NewExprHandler()
	uri := "file:///formula.expr"
	openDocument(t, handler, uri, "sin(x) + 3*y^2")

	tokens, err := handler.TextDocumentSemanticTokensFull(nil, &protocol.SemanticTokensParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: uri},
	})
	require.NoError(t, err)
	require.NotNil(t, tokens)
	require.NotEmpty(t, tokens.Data)

	decoded, err := decodeSemanticTokens(tokens.Data)
	require.NoError(t, err)
	require.NotEmpty(t, decoded)

	tokenTypes := make(map[string]int)
	for _, tok := range decoded {
		tokenTypes[tok.Type]++
	}

	require.Greater(t, tokenTypes["function"], 0, "sin(x) should produce a function token")
	require.Greater(t, tokenTypes["variable"], 0, "x and y should produce variable tokens")
	require.Greater(t, tokenTypes["number"], 0, "3 and 2 should produce number tokens")

	t.Logf("generated %d semantic tokens with types: %v", len(decoded), tokenTypes)
}

func TestTextDocumentSemanticTokensFullUnopenedDocument(t *testing.T) {
	handler := lsp.NewExprHandler()
	tokens, err := handler.TextDocumentSemanticTokensFull(nil, &protocol.SemanticTokensParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: "file:///never-opened.expr"},
	})
	require.NoError(t, err)
	require.NotNil(t, tokens)
	require.Empty(t, tokens.Data)
}

func TestTextDocumentCompletionListsBuiltins(t *testing.T) {
	handler := lsp.NewExprHandler()
	result, err := handler.TextDocumentCompletion(nil, &protocol.CompletionParams{})
	require.NoError(t, err)
	list, ok := result.(*protocol.CompletionList)
	require.True(t, ok)
	require.NotEmpty(t, list.Items)

	found := false
	for _, item := range list.Items {
		if item.Label == "sin" {
			found = true
		}
	}
	require.True(t, found, "completion list should include the sin built-in")
}

type DecodedToken struct {
	Index  int
	Line   uint32
	Char   uint32
	Length uint32
	Type   string
}

func decodeSemanticTokens(raw []uint32) ([]DecodedToken, error) {
	var (
		decoded []DecodedToken
		line    uint32
		char    uint32
	)

	for i := 0; i < len(raw); i += 5 {
		deltaLine := raw[i]
		deltaStart := raw[i+1]
		length := raw[i+2]
		tokenTypeIdx := raw[i+3]

		if deltaLine == 0 {
			char += deltaStart
		} else {
			line += deltaLine
			char = deltaStart
		}

		decoded = append(decoded, DecodedToken{
			Index:  i / 5,
			Line:   line,
			Char:   char,
			Length: length,
			Type:   lsp.SemanticTokenTypes[tokenTypeIdx],
		})
	}

	return decoded, nil
}
