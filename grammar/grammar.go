// Package grammar parses a single formula into an internal/ast expression
// tree, using a participle stateful lexer and a struct-tagged EBNF grammar,
// in the same style the teacher language used for its contract grammar —
// trimmed down to arithmetic/logical expressions only (no statements, no
// declarations: a formula is one expression).
//
// Precedence (low to high), matching fparser's own grammar:
//
//	or  ->  and  ->  not  ->  comparison  ->  additive  ->
//	multiplicative  ->  unary  ->  power  ->  primary
package grammar

import (
	"strconv"

	"github.com/alecthomas/participle/v2/lexer"

	"exprfold/internal/ast"
)

// Expr is the top-level production.
type Expr struct {
	Or *OrExpr `@@`
}

type OrExpr struct {
	Left  *AndExpr   `@@`
	Rest  []*OrRest  `@@*`
}

type OrRest struct {
	Op    string   `@"||"`
	Right *AndExpr `@@`
}

type AndExpr struct {
	Left *NotExpr   `@@`
	Rest []*AndRest `@@*`
}

type AndRest struct {
	Op    string   `@"&&"`
	Right *NotExpr `@@`
}

type NotExpr struct {
	Bang  bool        `@"!"?`
	Value *CompExpr   `@@`
}

type CompExpr struct {
	Left  *AddExpr  `@@`
	Rest  *CompRest `@@?`
}

type CompRest struct {
	Op    string   `@("=="|"!="|"<="|">="|"<"|">")`
	Right *AddExpr `@@`
}

type AddExpr struct {
	Left *MulExpr   `@@`
	Rest []*AddRest `@@*`
}

type AddRest struct {
	Op    string   `@("+"|"-")`
	Right *MulExpr `@@`
}

type MulExpr struct {
	Left *UnaryExpr `@@`
	Rest []*MulRest `@@*`
}

type MulRest struct {
	Op    string     `@("*"|"/"|"%")`
	Right *UnaryExpr `@@`
}

// UnaryExpr binds a leading "-" tighter than add/mul but looser than "^",
// matching fparser's "-x^2 == -(x^2)" convention.
type UnaryExpr struct {
	Neg   bool      `@"-"?`
	Value *PowExpr  `@@`
}

type PowExpr struct {
	Base *Primary   `@@`
	Exp  *UnaryExpr `( "^" @@ )?`
}

type Primary struct {
	Pos    lexer.Position
	EndPos lexer.Position
	Number *string   `  @Number`
	Call   *CallNode `| @@`
	Ident  *string   `| @Ident`
	Paren  *Expr     `| "(" @@ ")"`
}

type CallNode struct {
	Pos    lexer.Position
	EndPos lexer.Position
	Name   string  `@Ident "("`
	Args   []*Expr `[ @@ { "," @@ } ] ")"`
}

// toPos converts a participle lexer position into the ast package's
// lexer-agnostic Position, so downstream tooling (diagnostics, semantic
// tokens) never needs to import participle.
func toPos(p lexer.Position) ast.Position {
	return ast.Position{Filename: p.Filename, Offset: p.Offset, Line: p.Line, Column: p.Column}
}

// ToAST folds the flat precedence-climbing grammar into a left-associative
// ast.Expr tree.
func (e *Expr) ToAST() ast.Expr {
	return e.Or.ToAST()
}

func (o *OrExpr) ToAST() ast.Expr {
	expr := o.Left.ToAST()
	for _, r := range o.Rest {
		expr = &ast.BinaryExpr{Op: "||", Left: expr, Right: r.Right.ToAST()}
	}
	return expr
}

func (a *AndExpr) ToAST() ast.Expr {
	expr := a.Left.ToAST()
	for _, r := range a.Rest {
		expr = &ast.BinaryExpr{Op: "&&", Left: expr, Right: r.Right.ToAST()}
	}
	return expr
}

func (n *NotExpr) ToAST() ast.Expr {
	v := n.Value.ToAST()
	if n.Bang {
		return &ast.UnaryExpr{Op: "!", Value: v}
	}
	return v
}

func (c *CompExpr) ToAST() ast.Expr {
	left := c.Left.ToAST()
	if c.Rest == nil {
		return left
	}
	return &ast.BinaryExpr{Op: c.Rest.Op, Left: left, Right: c.Rest.Right.ToAST()}
}

func (a *AddExpr) ToAST() ast.Expr {
	expr := a.Left.ToAST()
	for _, r := range a.Rest {
		expr = &ast.BinaryExpr{Op: r.Op, Left: expr, Right: r.Right.ToAST()}
	}
	return expr
}

func (m *MulExpr) ToAST() ast.Expr {
	expr := m.Left.ToAST()
	for _, r := range m.Rest {
		expr = &ast.BinaryExpr{Op: r.Op, Left: expr, Right: r.Right.ToAST()}
	}
	return expr
}

func (u *UnaryExpr) ToAST() ast.Expr {
	v := u.Value.ToAST()
	if u.Neg {
		return &ast.UnaryExpr{Op: "-", Value: v}
	}
	return v
}

func (p *PowExpr) ToAST() ast.Expr {
	base := p.Base.ToAST()
	if p.Exp == nil {
		return base
	}
	return &ast.BinaryExpr{Op: "^", Left: base, Right: p.Exp.ToAST()}
}

func (p *Primary) ToAST() ast.Expr {
	switch {
	case p.Number != nil:
		return &ast.LiteralExpr{Pos: toPos(p.Pos), EndPos: toPos(p.EndPos), Value: parseFloat(*p.Number), Text: *p.Number}
	case p.Call != nil:
		return p.Call.ToAST()
	case p.Ident != nil:
		return &ast.IdentExpr{Pos: toPos(p.Pos), EndPos: toPos(p.EndPos), Name: *p.Ident}
	case p.Paren != nil:
		return &ast.ParenExpr{Pos: toPos(p.Pos), EndPos: toPos(p.EndPos), Value: p.Paren.ToAST()}
	}
	return &ast.BadExpr{Pos: toPos(p.Pos), EndPos: toPos(p.EndPos), Message: "empty primary"}
}

func (c *CallNode) ToAST() ast.Expr {
	args := make([]ast.Expr, len(c.Args))
	for i, a := range c.Args {
		args[i] = a.ToAST()
	}
	return &ast.CallExpr{Pos: toPos(c.Pos), EndPos: toPos(c.EndPos), Callee: c.Name, Args: args}
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
