package opt

import "math"

// ConstantFold applies the per-opcode local simplifications of
// fpoptimizer_constantfolding.cc to the node at id: folding immediate
// operands, eliminating identities, and collapsing a handful of structural
// redundancies range analysis or opcode inspection can prove safe. Every
// rewrite here preserves the value of the subexpression the node denotes,
// so mutating it in place is sound even when several parents share it —
// each sharer wants the same rewrite.
//
// Any mutation may make a further fold possible (e.g. Mul collapsing to a
// single child whose own opcode now also folds), so this loops to a fixed
// point for this node alone; it never recurses into children, which are
// assumed already folded by the bottom-up construction order.
func (t *Tree) ConstantFold(id NodeID) {
	for t.foldOnce(id) {
		t.nodes[id].OptimizedBy = nil
	}
}

func (t *Tree) foldOnce(id NodeID) bool {
	n := t.nodes[id]
	switch n.Opcode {
	case OpAdd:
		return t.foldAdd(id)
	case OpMul:
		return t.foldMul(id)
	case OpAnd:
		return t.foldAnd(id)
	case OpOr:
		return t.foldOr(id)
	case OpNot:
		return t.foldNot(id)
	case OpNotNot:
		return t.foldNotNot(id)
	case OpIf:
		return t.foldIf(id)
	case OpMin:
		return t.foldMinMax(id, true)
	case OpMax:
		return t.foldMinMax(id, false)
	case OpEqual, OpNEqual, OpLess, OpLessOrEq, OpGreater, OpGreaterOrEq:
		return t.foldComparison(id)
	case OpAbs:
		return t.foldAbs(id)
	case OpNeg:
		return t.foldNeg(id)
	case OpPow:
		return t.foldPow(id)
	case OpMod:
		return t.foldMod(id)
	case OpAtan2:
		return t.foldAtan2(id)
	case OpSin, OpCos, OpTan, OpSinh, OpCosh, OpTanh, OpAsin, OpAcos, OpAtan,
		OpAsinh, OpAcosh, OpAtanh, OpSqrt, OpExp, OpExp2, OpLog, OpLog2,
		OpLog10, OpCeil, OpFloor, OpInt, OpCot, OpSec, OpCsc, OpDeg, OpRad:
		return t.foldUnaryElementary(id)
	default:
		return false
	}
}

func setImmed(n *Node, v float64) {
	n.Opcode = OpImmed
	n.PKind = PayloadImmed
	n.Num = v
	n.Children = nil
	n.OptimizedBy = nil
}

func badImmed(v float64) bool { return math.IsNaN(v) || math.IsInf(v, 0) }

func (t *Tree) childImmed(n *Node, i int) (float64, bool) {
	c := t.nodes[n.Children[i]]
	if c.Opcode != OpImmed {
		return 0, false
	}
	return c.Num, true
}

func (t *Tree) allImmed(n *Node) ([]float64, bool) {
	vals := make([]float64, len(n.Children))
	for i, c := range n.Children {
		cn := t.nodes[c]
		if cn.Opcode != OpImmed {
			return nil, false
		}
		vals[i] = cn.Num
	}
	return vals, true
}

func (t *Tree) becomeImmed(id NodeID, v float64) bool {
	setImmed(t.nodes[id], v)
	return true
}

// assimilate inlines children sharing n's own opcode, keeping variadic
// nodes flat: Add(Add(a,b), c) becomes Add(a, b, c). The inlined child
// itself is left untouched (it may still be shared by another parent).
func (t *Tree) assimilate(id NodeID) bool {
	n := t.nodes[id]
	nested := false
	for _, c := range n.Children {
		if t.nodes[c].Opcode == n.Opcode {
			nested = true
			break
		}
	}
	if !nested {
		return false
	}
	flat := make([]NodeID, 0, len(n.Children)+2)
	for _, c := range n.Children {
		cn := t.nodes[c]
		if cn.Opcode == n.Opcode {
			for _, gc := range cn.Children {
				flat = append(flat, gc)
			}
			continue
		}
		flat = append(flat, c)
	}
	n.Children = flat
	return true
}

// foldAdd: drop Immed 0 addends, fold all-Immed sums, collapse to the
// surviving child when only one remains.
func (t *Tree) foldAdd(id NodeID) bool {
	if t.assimilate(id) {
		return true
	}
	n := t.nodes[id]
	if vals, ok := t.allImmed(n); ok {
		sum := 0.0
		for _, v := range vals {
			sum += v
		}
		if !badImmed(sum) {
			return t.becomeImmed(id, sum)
		}
	}
	changed := false
	kept := n.Children[:0:0]
	for _, c := range n.Children {
		cn := t.nodes[c]
		if cn.Opcode == OpImmed && cn.Num == 0 {
			changed = true
			continue
		}
		kept = append(kept, c)
	}
	if changed {
		if len(kept) == 0 {
			setImmed(n, 0)
			return true
		}
		n.Children = kept
		if len(kept) == 1 {
			t.Become(id, kept[0])
		}
		return true
	}
	if len(n.Children) == 1 {
		t.Become(id, n.Children[0])
		return true
	}
	return false
}

// foldMul: drop Immed 1 factors, zero-absorb, fold all-Immed products,
// collapse singletons.
func (t *Tree) foldMul(id NodeID) bool {
	if t.assimilate(id) {
		return true
	}
	n := t.nodes[id]
	if vals, ok := t.allImmed(n); ok {
		prod := 1.0
		for _, v := range vals {
			prod *= v
		}
		if !badImmed(prod) {
			return t.becomeImmed(id, prod)
		}
	}
	for _, c := range n.Children {
		cn := t.nodes[c]
		if cn.Opcode == OpImmed && cn.Num == 0 {
			setImmed(n, 0)
			return true
		}
	}
	changed := false
	kept := n.Children[:0:0]
	for _, c := range n.Children {
		cn := t.nodes[c]
		if cn.Opcode == OpImmed && cn.Num == 1 {
			changed = true
			continue
		}
		kept = append(kept, c)
	}
	if changed {
		if len(kept) == 0 {
			setImmed(n, 1)
			return true
		}
		n.Children = kept
		if len(kept) == 1 {
			t.Become(id, kept[0])
		}
		return true
	}
	if len(n.Children) == 1 {
		t.Become(id, n.Children[0])
		return true
	}
	return false
}

// foldAnd drops always-true (nonzero Immed) operands and short-circuits to
// false on any Immed zero operand. An And left with no operands is true
// (the identity element for conjunction).
func (t *Tree) foldAnd(id NodeID) bool {
	if t.assimilate(id) {
		return true
	}
	if t.RegroupLogic(id, true) {
		return true
	}
	n := t.nodes[id]
	for _, c := range n.Children {
		if cn := t.nodes[c]; cn.Opcode == OpImmed && cn.Num == 0 {
			setImmed(n, 0)
			return true
		}
	}
	changed := false
	kept := n.Children[:0:0]
	for _, c := range n.Children {
		if cn := t.nodes[c]; cn.Opcode == OpImmed && cn.Num != 0 {
			changed = true
			continue
		}
		kept = append(kept, c)
	}
	if !changed {
		if len(n.Children) == 1 {
			return t.wrapNotNot(id, n.Children[0])
		}
		return false
	}
	n.Children = kept
	switch len(kept) {
	case 0:
		setImmed(n, 1)
	case 1:
		t.wrapNotNot(id, kept[0])
	}
	return true
}

// foldOr drops always-false operands and short-circuits to true on any
// nonzero Immed. An Or left with no operands is false — this module's
// resolution of the upstream identity-element ambiguity for an empty
// disjunction (DESIGN.md).
func (t *Tree) foldOr(id NodeID) bool {
	if t.assimilate(id) {
		return true
	}
	if t.RegroupLogic(id, false) {
		return true
	}
	n := t.nodes[id]
	for _, c := range n.Children {
		if cn := t.nodes[c]; cn.Opcode == OpImmed && cn.Num != 0 {
			setImmed(n, 1)
			return true
		}
	}
	changed := false
	kept := n.Children[:0:0]
	for _, c := range n.Children {
		if cn := t.nodes[c]; cn.Opcode == OpImmed && cn.Num == 0 {
			changed = true
			continue
		}
		kept = append(kept, c)
	}
	if !changed {
		if len(n.Children) == 1 {
			return t.wrapNotNot(id, n.Children[0])
		}
		return false
	}
	n.Children = kept
	switch len(kept) {
	case 0:
		setImmed(n, 0)
	case 1:
		t.wrapNotNot(id, kept[0])
	}
	return true
}

// wrapNotNot replaces id's contents with NotNot(child) unless child is
// already known boolean-valued, in which case it becomes child outright.
func (t *Tree) wrapNotNot(id, child NodeID) bool {
	if isBooleanOpcode(t.nodes[child].Opcode) {
		t.Become(id, child)
		return true
	}
	n := t.nodes[id]
	n.Opcode = OpNotNot
	n.PKind = PayloadNone
	n.Children = []NodeID{child}
	return true
}

func isBooleanOpcode(o Opcode) bool {
	switch o {
	case OpAnd, OpOr, OpNot, OpNotNot, OpEqual, OpNEqual, OpLess, OpLessOrEq, OpGreater, OpGreaterOrEq:
		return true
	default:
		return false
	}
}

func (t *Tree) foldNot(id NodeID) bool {
	n := t.nodes[id]
	child := n.Children[0]
	cn := t.nodes[child]
	if cn.Opcode == OpImmed {
		v := 0.0
		if cn.Num == 0 {
			v = 1
		}
		return t.becomeImmed(id, v)
	}
	if neg, ok := cn.Opcode.negated(); ok {
		n.Opcode = neg
		n.Children = append([]NodeID(nil), cn.Children...)
		return true
	}
	if cn.Opcode == OpNot {
		n.Opcode = OpNotNot
		n.Children = append([]NodeID(nil), cn.Children...)
		return true
	}
	return false
}

func (t *Tree) foldNotNot(id NodeID) bool {
	n := t.nodes[id]
	child := n.Children[0]
	cn := t.nodes[child]
	if cn.Opcode == OpImmed {
		v := 0.0
		if cn.Num != 0 {
			v = 1
		}
		return t.becomeImmed(id, v)
	}
	if isBooleanOpcode(cn.Opcode) {
		t.Become(id, child)
		return true
	}
	return false
}

func (t *Tree) foldIf(id NodeID) bool {
	n := t.nodes[id]
	cond := t.nodes[n.Children[0]]
	if cond.Opcode == OpImmed {
		if cond.Num != 0 {
			t.Become(id, n.Children[1])
		} else {
			t.Become(id, n.Children[2])
		}
		return true
	}
	if t.IsIdenticalTo(n.Children[1], n.Children[2]) {
		t.Become(id, n.Children[1])
		return true
	}
	condID, thenB, elseB := n.Children[0], n.Children[1], n.Children[2]
	switch cond.Opcode {
	case OpNot:
		// if(!c, a, b) -> if(c, b, a)
		inner := cond.Children[0]
		n.Children[0] = inner
		n.Children[1], n.Children[2] = elseB, thenB
		t.MarkIncomplete(id)
		return true
	case OpNotNot:
		// the condition slot is already a logical context
		t.SetChild(id, 0, cond.Children[0])
		return true
	}
	if cr := t.EvalRange(condID); (cr.HasMin && cr.Min > 0) || (cr.HasMax && cr.Max < 0) {
		// condition provably nonzero for every assignment
		t.Become(id, thenB)
		return true
	}
	if y, ok := t.negativeTestSubject(condID); ok {
		asAbs := func() bool {
			n.Opcode, n.Children = OpAbs, []NodeID{y}
			t.MarkIncomplete(id)
			return true
		}
		if neg, ok := t.negatedFactorOf(thenB); ok && t.IsIdenticalTo(neg, y) && t.IsIdenticalTo(elseB, y) {
			return asAbs()
		}
		if neg, ok := t.negatedFactorOf(elseB); ok && t.IsIdenticalTo(neg, y) && t.IsIdenticalTo(thenB, y) {
			return asAbs()
		}
	}
	return false
}

// negativeTestSubject recognizes a condition structurally equivalent to
// "y < 0" (spec.md scenario S4's if(x<0, -x, x) -> Abs(x)), regardless of
// which side invariant I3's canonical ordering left the zero on.
func (t *Tree) negativeTestSubject(cond NodeID) (NodeID, bool) {
	n := t.nodes[cond]
	switch n.Opcode {
	case OpLess:
		if v, ok := t.childImmed(n, 1); ok && v == 0 {
			return n.Children[0], true
		}
	case OpGreater:
		if v, ok := t.childImmed(n, 0); ok && v == 0 {
			return n.Children[1], true
		}
	}
	return noneID, false
}

// negatedFactorOf reports whether id is the canonical Mul(y, -1) shape
// that "-y" lifts to (spec.md §2 step 1), returning y.
func (t *Tree) negatedFactorOf(id NodeID) (NodeID, bool) {
	n := t.nodes[id]
	if n.Opcode != OpMul || len(n.Children) != 2 {
		return noneID, false
	}
	a, b := n.Children[0], n.Children[1]
	if v, ok := t.childImmed(n, 0); ok && v == -1 {
		return b, true
	}
	if v, ok := t.childImmed(n, 1); ok && v == -1 {
		return a, true
	}
	return noneID, false
}

func (t *Tree) foldMinMax(id NodeID, isMin bool) bool {
	if t.assimilate(id) {
		return true
	}
	n := t.nodes[id]
	if vals, ok := t.allImmed(n); ok {
		best := vals[0]
		for _, v := range vals[1:] {
			if (isMin && v < best) || (!isMin && v > best) {
				best = v
			}
		}
		return t.becomeImmed(id, best)
	}
	if len(n.Children) == 1 {
		t.Become(id, n.Children[0])
		return true
	}
	for i := 0; i < len(n.Children); i++ {
		for j := i + 1; j < len(n.Children); j++ {
			if t.IsIdenticalTo(n.Children[i], n.Children[j]) {
				n.Children = append(n.Children[:j], n.Children[j+1:]...)
				return true
			}
		}
	}
	// Range domination: under Min an operand provably >= some sibling never
	// supplies the result; under Max, one provably <= a sibling.
	for i := 0; i < len(n.Children); i++ {
		ri := t.EvalRange(n.Children[i])
		for j := 0; j < len(n.Children); j++ {
			if i == j {
				continue
			}
			rj := t.EvalRange(n.Children[j])
			dominated := isMin && ri.HasMin && rj.HasMax && ri.Min >= rj.Max ||
				!isMin && ri.HasMax && rj.HasMin && ri.Max <= rj.Min
			if dominated {
				n.Children = append(n.Children[:i], n.Children[i+1:]...)
				return true
			}
		}
	}
	return false
}

func (t *Tree) foldComparison(id NodeID) bool {
	n := t.nodes[id]
	a, okA := t.childImmed(n, 0)
	b, okB := t.childImmed(n, 1)
	if okA && okB {
		var r bool
		switch n.Opcode {
		case OpEqual:
			r = a == b
		case OpNEqual:
			r = a != b
		case OpLess:
			r = a < b
		case OpLessOrEq:
			r = a <= b
		case OpGreater:
			r = a > b
		case OpGreaterOrEq:
			r = a >= b
		}
		v := 0.0
		if r {
			v = 1
		}
		return t.becomeImmed(id, v)
	}
	if t.IsIdenticalTo(n.Children[0], n.Children[1]) {
		switch n.Opcode {
		case OpEqual, OpLessOrEq, OpGreaterOrEq:
			return t.becomeImmed(id, 1)
		case OpNEqual, OpLess, OpGreater:
			return t.becomeImmed(id, 0)
		}
	}
	// Disjoint operand ranges decide the comparison without evaluating it.
	ra, rb := t.EvalRange(n.Children[0]), t.EvalRange(n.Children[1])
	if ra.HasMax && rb.HasMin && ra.Max < rb.Min {
		switch n.Opcode {
		case OpLess, OpLessOrEq, OpNEqual:
			return t.becomeImmed(id, 1)
		case OpGreater, OpGreaterOrEq, OpEqual:
			return t.becomeImmed(id, 0)
		}
	}
	if ra.HasMin && rb.HasMax && ra.Min > rb.Max {
		switch n.Opcode {
		case OpGreater, OpGreaterOrEq, OpNEqual:
			return t.becomeImmed(id, 1)
		case OpLess, OpLessOrEq, OpEqual:
			return t.becomeImmed(id, 0)
		}
	}
	if ra.HasMax && rb.HasMin && ra.Max <= rb.Min {
		switch n.Opcode {
		case OpLessOrEq:
			return t.becomeImmed(id, 1)
		case OpGreater:
			return t.becomeImmed(id, 0)
		}
	}
	if ra.HasMin && rb.HasMax && ra.Min >= rb.Max {
		switch n.Opcode {
		case OpGreaterOrEq:
			return t.becomeImmed(id, 1)
		case OpLess:
			return t.becomeImmed(id, 0)
		}
	}
	return false
}

func (t *Tree) foldAbs(id NodeID) bool {
	n := t.nodes[id]
	child := n.Children[0]
	cn := t.nodes[child]
	if cn.Opcode == OpImmed {
		return t.becomeImmed(id, math.Abs(cn.Num))
	}
	if cn.Opcode == OpAbs {
		t.Become(id, child)
		return true
	}
	if cn.Opcode == OpNeg {
		t.SetChild(id, 0, cn.Children[0])
		return true
	}
	r := t.EvalRange(child)
	if r.HasMin && r.Min >= 0 {
		t.Become(id, child)
		return true
	}
	if r.HasMax && r.Max <= 0 {
		negOne := t.NewImmed(-1)
		n.Opcode = OpMul
		n.Children = []NodeID{negOne, child}
		t.MarkIncomplete(id)
		return true
	}
	// |a*b| = |a|*|b|: factors with a provable sign move out of the Abs.
	if cn.Opcode == OpMul {
		var outside, inside []NodeID
		for _, f := range cn.Children {
			fr := t.EvalRange(f)
			fn := t.nodes[f]
			switch {
			case fn.Opcode == OpImmed:
				outside = append(outside, t.NewImmed(math.Abs(fn.Num)))
			case fr.HasMin && fr.Min >= 0:
				outside = append(outside, f)
			case fr.HasMax && fr.Max <= 0:
				negOne := t.NewImmed(-1)
				neg := t.NewOp(OpMul, negOne, f)
				outside = append(outside, neg)
			default:
				inside = append(inside, f)
			}
		}
		if len(outside) > 0 && len(outside)+len(inside) == len(cn.Children) {
			if len(inside) > 0 {
				rest := combineProduct(t, inside)
				abs := t.NewOp(OpAbs, rest)
				outside = append(outside, abs)
			}
			prod := combineProduct(t, outside)
			t.Become(id, prod)
			return true
		}
	}
	return false
}

func (t *Tree) foldNeg(id NodeID) bool {
	n := t.nodes[id]
	child := n.Children[0]
	cn := t.nodes[child]
	if cn.Opcode == OpImmed {
		return t.becomeImmed(id, -cn.Num)
	}
	if cn.Opcode == OpNeg {
		t.Become(id, cn.Children[0])
		return true
	}
	return false
}

// foldPow handles the identities fpoptimizer_constantfolding.cc special-cases
// for Pow: immediate evaluation, exponent 0/1, base 1, and collapsing a
// nested power (x^a)^b into x^(a*b) — wrapping the base in Abs when a is
// an even integer and a*b is not, since x^a is then non-negative for every
// x while x^(a*b) need not be (DESIGN.md).
func (t *Tree) foldPow(id NodeID) bool {
	n := t.nodes[id]
	base, exp := n.Children[0], n.Children[1]
	bn, en := t.nodes[base], t.nodes[exp]
	if bn.Opcode == OpImmed && en.Opcode == OpImmed {
		v := math.Pow(bn.Num, en.Num)
		if !badImmed(v) {
			return t.becomeImmed(id, v)
		}
	}
	if en.Opcode == OpImmed && en.Num == 1 {
		t.Become(id, base)
		return true
	}
	if en.Opcode == OpImmed && en.Num == 0 {
		return t.becomeImmed(id, 1)
	}
	if bn.Opcode == OpImmed && bn.Num == 1 {
		return t.becomeImmed(id, 1)
	}
	// c^(k*x) -> (c^k)^x when c^k stays finite and nonzero, so a constant
	// factor in the exponent migrates into the base.
	if bn.Opcode == OpImmed && en.Opcode == OpMul {
		for i, f := range en.Children {
			fn := t.nodes[f]
			if fn.Opcode != OpImmed {
				continue
			}
			merged := math.Pow(bn.Num, fn.Num)
			if badImmed(merged) || merged == 0 {
				break
			}
			rest := make([]NodeID, 0, len(en.Children)-1)
			for j, g := range en.Children {
				if j != i {
					rest = append(rest, g)
				}
			}
			newBase := t.NewImmed(merged)
			newExp := combineProduct(t, rest)
			t.SetChildren(id, []NodeID{newBase, newExp})
			return true
		}
	}
	if bn.Opcode == OpPow && en.Opcode == OpImmed {
		innerBase, innerExp := bn.Children[0], bn.Children[1]
		ien := t.nodes[innerExp]
		if ien.Opcode == OpImmed {
			combined := ien.Num * en.Num
			newBase := innerBase
			aEven := isInteger(ien.Num) && int64(ien.Num)%2 == 0
			abEven := isInteger(combined) && int64(combined)%2 == 0
			if aEven && !abEven {
				newBase = t.NewOp(OpAbs, innerBase)
			}
			newExp := t.NewImmed(combined)
			t.SetChildren(id, []NodeID{newBase, newExp})
			return true
		}
	}
	return false
}

func (t *Tree) foldMod(id NodeID) bool {
	n := t.nodes[id]
	a, okA := t.childImmed(n, 0)
	b, okB := t.childImmed(n, 1)
	if okA && okB && b != 0 {
		v := math.Mod(a, b)
		if !badImmed(v) {
			return t.becomeImmed(id, v)
		}
	}
	if okB && (b == 1 || b == -1) {
		return t.becomeImmed(id, 0)
	}
	return false
}

// foldAtan2 covers full-immediate evaluation plus the one symbolic case
// spec.md calls out explicitly: atan2(0, x) is +π whenever x is *provably*
// negative, not merely when x looks negative at a sampled point — requiring
// both HasMax and Max < 0 on x's range, rather than treating a missing
// upper bound as "probably negative" the way a looser reading would.
func (t *Tree) foldAtan2(id NodeID) bool {
	n := t.nodes[id]
	y, okY := t.childImmed(n, 0)
	x, okX := t.childImmed(n, 1)
	if okY && okX {
		v := math.Atan2(y, x)
		if !badImmed(v) {
			return t.becomeImmed(id, v)
		}
	}
	if okY && y == 0 {
		xr := t.EvalRange(n.Children[1])
		if xr.HasMax && xr.Max < 0 {
			return t.becomeImmed(id, math.Pi)
		}
	}
	// atan2(y, x) = atan(y/x) on the right half-plane.
	if xr := t.EvalRange(n.Children[1]); xr.HasMin && xr.Min > 0 {
		yID, xID := n.Children[0], n.Children[1]
		negOne := t.NewImmed(-1)
		inv := t.NewOp(OpPow, xID, negOne)
		quot := t.NewOp(OpMul, yID, inv)
		n.Opcode = OpAtan
		n.Children = []NodeID{quot}
		t.MarkIncomplete(id)
		return true
	}
	return false
}

var unaryElementary = map[Opcode]func(float64) float64{
	OpSin: math.Sin, OpCos: math.Cos, OpTan: math.Tan,
	OpSinh: math.Sinh, OpCosh: math.Cosh, OpTanh: math.Tanh,
	OpAsin: math.Asin, OpAcos: math.Acos, OpAtan: math.Atan,
	OpAsinh: math.Asinh, OpAcosh: math.Acosh, OpAtanh: math.Atanh,
	OpSqrt: math.Sqrt, OpExp: math.Exp, OpExp2: math.Exp2,
	OpLog: math.Log, OpLog2: math.Log2, OpLog10: math.Log10,
	OpCeil: math.Ceil, OpFloor: math.Floor, OpInt: math.Round,
	OpCot: func(v float64) float64 { return 1 / math.Tan(v) },
	OpSec: func(v float64) float64 { return 1 / math.Cos(v) },
	OpCsc: func(v float64) float64 { return 1 / math.Sin(v) },
	OpDeg: func(v float64) float64 { return v * (180 / math.Pi) },
	OpRad: func(v float64) float64 { return v * (math.Pi / 180) },
}

func (t *Tree) foldUnaryElementary(id NodeID) bool {
	n := t.nodes[id]
	child := t.nodes[n.Children[0]]
	if child.Opcode != OpImmed {
		return false
	}
	f, ok := unaryElementary[n.Opcode]
	if !ok {
		return false
	}
	v := f(child.Num)
	if badImmed(v) {
		return false
	}
	return t.becomeImmed(id, v)
}
