package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBinaryExprString(t *testing.T) {
	e := &BinaryExpr{
		Op:   "+",
		Left: &IdentExpr{Name: "x"},
		Right: &BinaryExpr{
			Op:    "*",
			Left:  &LiteralExpr{Value: 3, Text: "3"},
			Right: &IdentExpr{Name: "y"},
		},
	}
	assert.Equal(t, "(x + (3 * y))", e.String())
}

func TestCallExprString(t *testing.T) {
	e := &CallExpr{
		Callee: "if",
		Args: []Expr{
			&BinaryExpr{Op: "<", Left: &IdentExpr{Name: "x"}, Right: &LiteralExpr{Value: 0, Text: "0"}},
			&UnaryExpr{Op: "-", Value: &IdentExpr{Name: "x"}},
			&IdentExpr{Name: "x"},
		},
	}
	assert.Equal(t, "if((x < 0), (-x), x)", e.String())
}

func TestParenExprString(t *testing.T) {
	e := &ParenExpr{Value: &BinaryExpr{Op: "+", Left: &IdentExpr{Name: "x"}, Right: &LiteralExpr{Value: 1, Text: "1"}}}
	assert.Equal(t, "((x + 1))", e.String())
}

func TestLiteralExprStringNoText(t *testing.T) {
	e := &LiteralExpr{Value: 0.5}
	assert.Equal(t, "0.5", e.String())
}
