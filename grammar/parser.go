package grammar

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/fatih/color"
)

var exprParser = participle.MustBuild[Expr](
	participle.Lexer(ExprLexer),
	participle.Elide("Whitespace"),
	participle.UseLookahead(3),
)

// ParseString parses a formula string into an expression tree.
func ParseString(filename, source string) (*Expr, error) {
	expr, err := exprParser.ParseString(filename, source)
	if err != nil {
		reportParseError(source, err)
		return nil, err
	}
	return expr, nil
}

// reportParseError prints a friendly caret-style parse error message, in the
// same register the teacher used for its contract-language parser errors.
func reportParseError(src string, err error) {
	pe, ok := err.(participle.Error)
	if !ok {
		color.Red("Unexpected error: %s", err)
		return
	}

	pos := pe.Position()
	lines := strings.Split(src, "\n")
	if pos.Line <= 0 || pos.Line > len(lines) {
		color.Red("Syntax error at unknown location: %s", err)
		return
	}

	line := lines[pos.Line-1]
	caret := strings.Repeat(" ", pos.Column-1) + "^"

	color.Red("syntax error in %s at line %d, column %d:", pos.Filename, pos.Line, pos.Column)
	fmt.Println(line)
	color.HiRed(caret)
	fmt.Printf("-> %s\n", pe.Message())
}
