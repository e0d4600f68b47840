// Package opt is the symbolic optimizer: the core of this module. It lifts
// already-compiled bytecode into an algebraic expression tree, performs
// constant folding, range-based simplification, algebraic regrouping,
// pattern-driven rewrites, integer-exponent decomposition, and finally
// lowers the tree back to bytecode with common-subexpression deduplication.
package opt

import "fmt"

// Opcode is the closed tag vocabulary a Node or a bytecode unit carries.
// It mirrors fparser.hh's OPCODE enum: transcendental/arithmetic ops,
// comparison/logic ops, leaves, calls, and the low-level "sugar" shapes
// that only ever appear in bytecode, never in a canonical tree (I1).
type Opcode int

const (
	OpAbs Opcode = iota
	OpAcos
	OpAcosh
	OpAsin
	OpAsinh
	OpAtan
	OpAtan2
	OpAtanh
	OpCeil
	OpCos
	OpCosh
	OpCot
	OpCsc
	OpEval
	OpExp
	OpExp2
	OpFloor
	OpIf
	OpInt
	OpLog
	OpLog10
	OpLog2
	OpMax
	OpMin
	OpPow
	OpSec
	OpSin
	OpSinh
	OpSqrt
	OpTan
	OpTanh

	// These do not need any ordering.
	OpImmed
	OpJump
	OpNeg
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpEqual
	OpNEqual
	OpLess
	OpLessOrEq
	OpGreater
	OpGreaterOrEq
	OpNot
	OpAnd
	OpOr
	OpNotNot // protects the double-not sequence from optimization

	OpDeg
	OpRad

	OpFCall
	OpPCall
	OpRPow

	OpVar // denotes a variable in the tree; in bytecode, loads variable Var into a slot
	OpFetch
	OpPopNMov

	OpDup
	OpInv
	OpSqr
	OpRDiv
	OpRSub
	OpRSqrt

	OpNop
	opVarBegin // sentinel: end of the opcode list; variables are encoded as OpVar with an index, not as opcodes at/above this
)

var opcodeNames = [...]string{
	OpAbs: "Abs", OpAcos: "Acos", OpAcosh: "Acosh", OpAsin: "Asin", OpAsinh: "Asinh",
	OpAtan: "Atan", OpAtan2: "Atan2", OpAtanh: "Atanh", OpCeil: "Ceil", OpCos: "Cos",
	OpCosh: "Cosh", OpCot: "Cot", OpCsc: "Csc", OpEval: "Eval", OpExp: "Exp", OpExp2: "Exp2",
	OpFloor: "Floor", OpIf: "If", OpInt: "Int", OpLog: "Log", OpLog10: "Log10", OpLog2: "Log2",
	OpMax: "Max", OpMin: "Min", OpPow: "Pow", OpSec: "Sec", OpSin: "Sin", OpSinh: "Sinh",
	OpSqrt: "Sqrt", OpTan: "Tan", OpTanh: "Tanh",
	OpImmed: "Immed", OpJump: "Jump", OpNeg: "Neg", OpAdd: "Add", OpSub: "Sub", OpMul: "Mul",
	OpDiv: "Div", OpMod: "Mod", OpEqual: "Equal", OpNEqual: "NEqual", OpLess: "Less",
	OpLessOrEq: "LessOrEq", OpGreater: "Greater", OpGreaterOrEq: "GreaterOrEq", OpNot: "Not",
	OpAnd: "And", OpOr: "Or", OpNotNot: "NotNot",
	OpDeg: "Deg", OpRad: "Rad",
	OpFCall: "FCall", OpPCall: "PCall", OpRPow: "RPow",
	OpVar: "Var", OpFetch: "Fetch", OpPopNMov: "PopNMov",
	OpDup: "Dup", OpInv: "Inv", OpSqr: "Sqr", OpRDiv: "RDiv", OpRSub: "RSub", OpRSqrt: "RSqrt",
	OpNop: "Nop",
}

func (o Opcode) String() string {
	if int(o) >= 0 && int(o) < len(opcodeNames) && opcodeNames[o] != "" {
		return opcodeNames[o]
	}
	return fmt.Sprintf("Opcode(%d)", int(o))
}

// IsCommutative reports whether children of a node with this opcode are
// subject to canonical ordering (invariant I2).
func (o Opcode) IsCommutative() bool {
	switch o {
	case OpAdd, OpMul, OpMin, OpMax, OpAnd, OpOr, OpEqual, OpNEqual:
		return true
	default:
		return false
	}
}

// IsComparison reports whether o is one of the four ordered comparisons
// subject to the swap-and-flip canonicalization of invariant I3.
func (o Opcode) IsComparison() bool {
	switch o {
	case OpLess, OpLessOrEq, OpGreater, OpGreaterOrEq:
		return true
	default:
		return false
	}
}

// flipped returns the comparison opcode obtained by swapping operands.
func (o Opcode) flipped() Opcode {
	switch o {
	case OpLess:
		return OpGreater
	case OpGreater:
		return OpLess
	case OpLessOrEq:
		return OpGreaterOrEq
	case OpGreaterOrEq:
		return OpLessOrEq
	default:
		return o
	}
}

// negated returns the comparison opcode obtained by logical negation
// (used by Not-of-comparison folding).
func (o Opcode) negated() (Opcode, bool) {
	switch o {
	case OpEqual:
		return OpNEqual, true
	case OpNEqual:
		return OpEqual, true
	case OpLess:
		return OpGreaterOrEq, true
	case OpLessOrEq:
		return OpGreater, true
	case OpGreater:
		return OpLessOrEq, true
	case OpGreaterOrEq:
		return OpLess, true
	default:
		return o, false
	}
}

// isSugar reports whether o is one of the low-level shapes invariant I1
// forbids in a canonical tree (they only ever appear in emitted bytecode).
// Exp stays canonical: the grammar tables match it directly, the way the
// original's rule tables carry cExp patterns.
func (o Opcode) isSugar() bool {
	switch o {
	case OpDiv, OpSub, OpNeg, OpRSub, OpRDiv, OpSqr, OpExp2, OpSqrt, OpRSqrt,
		OpCot, OpSec, OpCsc, OpLog10, OpRPow, OpDeg, OpRad:
		return true
	default:
		return false
	}
}
