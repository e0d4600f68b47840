package opt

import "math"

// pendingIf tracks one open conditional while the lifter replays the
// emitter's three-step If sequence (jump-if-zero, then-branch ending in a
// result-slot Fetch, jump, else-branch ending in the second Fetch).
type pendingIf struct {
	cond     NodeID
	then     NodeID
	haveThen bool
}

// LiftProgram is the inverse of Emit/Recreate (spec.md §2 step 1): it reads
// a raw, just-compiled Program — allowed to use the "sugar" opcodes
// (Sub, Div, Neg, Inv, Sqr, Sqrt, RSqrt, RPow, Cot, Sec, Csc, Log10, Exp2,
// Deg, Rad) a compiler emits because they're cheap to execute directly —
// and lifts it into the canonical, sugar-free Tree the optimizer operates
// on (invariant I1), rewriting each sugar opcode into the Add/Mul/Pow shape
// it's defined in terms of. Shared slots (an instruction's Args reference
// an earlier Dst) naturally become shared tree nodes. The emitter's
// three-step If sequence (OpJump/OpFetch) is folded back into a single If
// node, so an already-optimized program lifts to the same canonical tree
// its source did.
func LiftProgram(raw *Program) *Tree {
	t := NewTree()
	nodeOf := make(map[int]NodeID, len(raw.Instrs))
	var pend []pendingIf

	for _, ins := range raw.Instrs {
		args := make([]NodeID, len(ins.Args))
		for i, a := range ins.Args {
			args[i] = nodeOf[a]
		}

		var id NodeID
		switch ins.Op {
		case OpJump:
			// A conditional jump opens an If; the unconditional one between
			// the branches carries no value. Targets need no replay — the
			// Fetch pattern below recovers the structure.
			if len(ins.Args) == 1 {
				pend = append(pend, pendingIf{cond: args[0]})
			}
			continue
		case OpFetch:
			if len(pend) == 0 {
				id = args[0] // plain slot alias
				nodeOf[ins.Dst] = id
				continue
			}
			top := &pend[len(pend)-1]
			if !top.haveThen {
				top.then, top.haveThen = args[0], true
				nodeOf[ins.Dst] = args[0]
				continue
			}
			id = t.NewOp(OpIf, top.cond, top.then, args[0])
			pend = pend[:len(pend)-1]
			nodeOf[ins.Dst] = id
			continue
		case OpImmed:
			id = t.NewImmed(ins.Imm)
		case OpVar:
			id = t.NewVar(ins.Var)
		case OpNeg:
			id = t.liftNeg(args[0])
		case OpSub:
			negB := t.liftNeg(args[1])
			id = t.NewOp(OpAdd, args[0], negB)
		case OpRSub:
			negA := t.liftNeg(args[0])
			id = t.NewOp(OpAdd, args[1], negA)
		case OpInv:
			id = t.liftInv(args[0])
		case OpDiv:
			invB := t.liftInv(args[1])
			id = t.NewOp(OpMul, args[0], invB)
		case OpRDiv:
			invA := t.liftInv(args[0])
			id = t.NewOp(OpMul, args[1], invA)
		case OpSqr:
			id = t.liftPowImmed(args[0], 2)
		case OpSqrt:
			id = t.liftPowImmed(args[0], 0.5)
		case OpRSqrt:
			id = t.liftPowImmed(args[0], -0.5)
		case OpRPow:
			id = t.NewOp(OpPow, args[1], args[0])
		case OpCot:
			id = t.liftReciprocalOf(OpTan, args[0])
		case OpSec:
			id = t.liftReciprocalOf(OpCos, args[0])
		case OpCsc:
			id = t.liftReciprocalOf(OpSin, args[0])
		case OpLog10:
			id = t.liftScaled(OpLog, args[0], 1/math.Log(10))
		case OpExp2:
			two := t.NewImmed(2)
			id = t.NewOp(OpPow, two, args[0])
		case OpDeg:
			id = t.liftScaledAfter(args[0], 180/math.Pi)
		case OpRad:
			id = t.liftScaledAfter(args[0], math.Pi/180)
		default:
			id = t.NewOp(ins.Op, args...)
			if ins.Op == OpFCall || ins.Op == OpPCall {
				nn := t.nodes[id]
				nn.PKind, nn.Index = PayloadCallee, ins.Callee
			}
		}
		nodeOf[ins.Dst] = id
	}

	t.Root = nodeOf[raw.RootSlot]
	return t
}

func (t *Tree) liftNeg(x NodeID) NodeID {
	negOne := t.NewImmed(-1)
	return t.NewOp(OpMul, negOne, x)
}

func (t *Tree) liftInv(x NodeID) NodeID {
	negOne := t.NewImmed(-1)
	return t.NewOp(OpPow, x, negOne)
}

func (t *Tree) liftPowImmed(base NodeID, exp float64) NodeID {
	e := t.NewImmed(exp)
	return t.NewOp(OpPow, base, e)
}

func (t *Tree) liftReciprocalOf(op Opcode, x NodeID) NodeID {
	inner := t.NewOp(op, x)
	return t.liftInv(inner)
}

// liftScaled builds k * op(x) (Log10(x) = log(x) / log(10)).
func (t *Tree) liftScaled(op Opcode, x NodeID, k float64) NodeID {
	inner := t.NewOp(op, x)
	kID := t.NewImmed(k)
	return t.NewOp(OpMul, inner, kID)
}

// liftScaledAfter builds x * k (Deg/Rad conversion factors).
func (t *Tree) liftScaledAfter(x NodeID, k float64) NodeID {
	kID := t.NewImmed(k)
	return t.NewOp(OpMul, x, kID)
}
