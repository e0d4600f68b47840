package ast

import (
	"fmt"
	"strconv"
)

func (b *BadExpr) String() string {
	return fmt.Sprintf("BadExpr: %s", b.Message)
}

func (b *BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", b.Left.String(), b.Op, b.Right.String())
}

func (u *UnaryExpr) String() string {
	return fmt.Sprintf("(%s%s)", u.Op, u.Value.String())
}

func (c *CallExpr) String() string {
	s := c.Callee + "("
	for i, a := range c.Args {
		if i > 0 {
			s += ", "
		}
		s += a.String()
	}
	return s + ")"
}

func (l *LiteralExpr) String() string {
	if l.Text != "" {
		return l.Text
	}
	return strconv.FormatFloat(l.Value, 'g', -1, 64)
}

func (i *IdentExpr) String() string {
	return i.Name
}

func (p *ParenExpr) String() string {
	return "(" + p.Value.String() + ")"
}
