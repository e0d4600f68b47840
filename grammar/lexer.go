package grammar

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// ExprLexer tokenizes a single arithmetic/logical expression: numbers,
// identifiers (variables and function names), the operator set fparser
// supports, and parens/commas for calls and grouping.
var ExprLexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		{"Whitespace", `[ \t\r\n]+`, nil},
		{"Ident", `[a-zA-Z_][a-zA-Z0-9_]*`, nil},
		{"Number", `[0-9]+(\.[0-9]+)?([eE][-+]?[0-9]+)?|\.[0-9]+([eE][-+]?[0-9]+)?`, nil},
		{"Operator", `(\|\||&&|==|!=|<=|>=|[-+*/%^<>!])`, nil},
		{"Punctuation", `[(),]`, nil},
	},
})
