package lsp

import (
	"sort"

	"exprfold/internal/ast"
	"exprfold/internal/builtins"
)

// SemanticTokenTypes is the LSP token-type legend this server advertises,
// trimmed to what a single-expression formula actually contains: no
// namespaces, structs or statements to tag, unlike the teacher's
// contract-language server.
var SemanticTokenTypes = []string{
	"function",
	"variable",
	"number",
}

// SemanticTokenModifiers flags a function token as resolving to a built-in
// rather than a host-registered callback.
var SemanticTokenModifiers = []string{
	"defaultLibrary",
}

// builtinCompletionNames is builtins.Names() sorted once for deterministic
// completion-list ordering.
var builtinCompletionNames = sortedBuiltinNames()

func sortedBuiltinNames() []string {
	names := builtins.Names()
	sort.Strings(names)
	return names
}

// SemanticToken is a single LSP semantic token entry ready for delta
// encoding: Line and StartChar are 0-based, TokenType indexes
// SemanticTokenTypes, and TokenModifiers is a bitmask over
// SemanticTokenModifiers.
type SemanticToken struct {
	Line           uint32
	StartChar      uint32
	Length         uint32
	TokenType      int
	TokenModifiers int
}

// collectSemanticTokens walks expr and returns one token per literal,
// identifier and call-site name, in source order.
func collectSemanticTokens(expr ast.Expr) []SemanticToken {
	var tokens []SemanticToken

	var walk func(e ast.Expr)
	walk = func(e ast.Expr) {
		switch n := e.(type) {
		case nil:
			return
		case *ast.LiteralExpr:
			tokens = append(tokens, makeToken(n.Pos, len(n.String()), "number", 0))
		case *ast.IdentExpr:
			tokens = append(tokens, makeToken(n.Pos, len(n.Name), "variable", 0))
		case *ast.ParenExpr:
			walk(n.Value)
		case *ast.UnaryExpr:
			walk(n.Value)
		case *ast.BinaryExpr:
			walk(n.Left)
			walk(n.Right)
		case *ast.CallExpr:
			mods := 0
			if _, ok := builtins.Lookup(n.Callee); ok {
				mods = 1 << indexOf("defaultLibrary", SemanticTokenModifiers)
			}
			tokens = append(tokens, makeToken(n.Pos, len(n.Callee), "function", mods))
			for _, a := range n.Args {
				walk(a)
			}
		case *ast.BadExpr:
			return
		}
	}
	walk(expr)

	sort.SliceStable(tokens, func(i, j int) bool {
		if tokens[i].Line != tokens[j].Line {
			return tokens[i].Line < tokens[j].Line
		}
		return tokens[i].StartChar < tokens[j].StartChar
	})
	return tokens
}

// encodeSemanticTokens applies the LSP wire format's delta-line/delta-start
// compression to an already source-ordered token list.
func encodeSemanticTokens(tokens []SemanticToken) []uint32 {
	var data []uint32
	var prevLine, prevStart uint32

	for _, token := range tokens {
		deltaLine := token.Line - prevLine
		var deltaStart uint32
		if deltaLine == 0 {
			deltaStart = token.StartChar - prevStart
		} else {
			deltaStart = token.StartChar
		}

		data = append(data, deltaLine, deltaStart, token.Length, uint32(token.TokenType), uint32(token.TokenModifiers))

		prevLine = token.Line
		prevStart = token.StartChar
	}
	return data
}

func makeToken(pos ast.Position, length int, tokenType string, modifiers int) SemanticToken {
	return SemanticToken{
		Line:           zeroBased(pos.Line),
		StartChar:      zeroBased(pos.Column),
		Length:         uint32(length),
		TokenType:      indexOf(tokenType, SemanticTokenTypes),
		TokenModifiers: modifiers,
	}
}

// indexOf returns the index of target in list, or -1 if not found.
func indexOf(target string, list []string) int {
	for i, v := range list {
		if v == target {
			return i
		}
	}
	return -1
}
