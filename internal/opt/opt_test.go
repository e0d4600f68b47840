package opt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildXMinusX builds the tree for "x - x" the way compile.Compile's naive
// lowering would: two independently allocated Var(0) leaves subtracted,
// which LiftProgram turns into Add(x, Mul(-1, x)).
func buildXMinusX(t *Tree) NodeID {
	x1 := t.NewVar(0)
	x2 := t.NewVar(0)
	negOne := t.NewImmed(-1)
	negX2 := t.NewOp(OpMul, negOne, x2)
	sum := t.NewOp(OpAdd, x1, negX2)
	return sum
}

func runProgram(tt *testing.T, prog *Program, vars []float64) float64 {
	tt.Helper()
	regs := make([]float64, len(prog.Instrs))
	for _, ins := range prog.Instrs {
		arg := func(j int) float64 { return regs[ins.Args[j]] }
		switch ins.Op {
		case OpImmed:
			regs[ins.Dst] = ins.Imm
		case OpVar:
			regs[ins.Dst] = vars[ins.Var]
		case OpAdd:
			sum := 0.0
			for j := range ins.Args {
				sum += arg(j)
			}
			regs[ins.Dst] = sum
		case OpMul:
			prod := 1.0
			for j := range ins.Args {
				prod *= arg(j)
			}
			regs[ins.Dst] = prod
		case OpSub:
			regs[ins.Dst] = arg(0) - arg(1)
		case OpNeg:
			regs[ins.Dst] = -arg(0)
		case OpPow:
			regs[ins.Dst] = intPow(arg(0), arg(1))
		default:
			tt.Fatalf("runProgram: unhandled opcode %s", ins.Op)
		}
	}
	return regs[prog.RootSlot]
}

func intPow(a, b float64) float64 {
	r := 1.0
	for ; b > 0; b-- {
		r *= a
	}
	return r
}

func TestCollectAddendsCancelsXMinusX(t *testing.T) {
	tree := NewTree()
	tree.Root = buildXMinusX(tree)
	tree.Rehash(tree.Root, true)

	changed := tree.CollectAddends(tree.Root)
	require.True(t, changed, "x + (-1)*x should collapse via CollectAddends")

	n := tree.Node(tree.Root)
	assert.Equal(t, OpImmed, n.Opcode)
	assert.Equal(t, 0.0, n.Num)
}

func TestCollectFactorsCombinesRepeatedMul(t *testing.T) {
	tree := NewTree()
	x1 := tree.NewVar(0)
	x2 := tree.NewVar(0)
	x3 := tree.NewVar(0)
	prod := tree.NewOp(OpMul, x1, x2, x3)
	tree.Root = prod

	tree.CollectFactors(tree.Root)
	n := tree.Node(tree.Root)
	assert.Equal(t, OpPow, n.Opcode, "x*x*x should regroup into x^3")
}

func TestCanonicalOrderingIsStableAcrossConstruction(t *testing.T) {
	// a + b and b + a must hash and order identically (invariant I2).
	t1 := NewTree()
	a1 := t1.NewVar(0)
	b1 := t1.NewVar(1)
	sum1 := t1.NewOp(OpAdd, a1, b1)

	t2 := NewTree()
	b2 := t2.NewVar(1)
	a2 := t2.NewVar(0)
	sum2 := t2.NewOp(OpAdd, b2, a2)

	n1 := t1.Node(sum1)
	n2 := t2.Node(sum2)
	assert.Equal(t, n1.Hash, n2.Hash)
	assert.Equal(t, t1.Node(n1.Children[0]).Index, t2.Node(n2.Children[0]).Index)
	assert.Equal(t, t1.Node(n1.Children[1]).Index, t2.Node(n2.Children[1]).Index)
}

func TestIsIdenticalToDistinctNodeIDs(t *testing.T) {
	tree := NewTree()
	x1 := tree.NewVar(5)
	x2 := tree.NewVar(5)
	assert.NotEqual(t, x1, x2, "two separately allocated leaves get distinct NodeIDs")
	assert.True(t, tree.IsIdenticalTo(x1, x2))
}

func TestApplyGrammarLogExpCancel(t *testing.T) {
	tree := NewTree()
	x := tree.NewVar(0)
	expX := tree.NewOp(OpExp, x)
	logExpX := tree.NewOp(OpLog, expX)
	tree.Root = logExpX

	rewrote := ApplyGrammar(tree, IntermediateGrammar, tree.Root)
	require.True(t, rewrote)
	assert.Equal(t, OpVar, tree.Node(tree.Root).Opcode)
}

func TestApplyGrammarMulSelfToPow(t *testing.T) {
	tree := NewTree()
	x1 := tree.NewVar(0)
	x2 := tree.NewVar(0)
	mul := tree.NewOp(OpMul, x1, x2)
	tree.Root = mul

	rewrote := ApplyGrammar(tree, IntermediateGrammar, tree.Root)
	require.True(t, rewrote)
	n := tree.Node(tree.Root)
	assert.Equal(t, OpPow, n.Opcode)
	assert.Equal(t, 2.0, tree.Node(n.Children[1]).Num)
}

func TestCheckInvariantsCleanTree(t *testing.T) {
	tree := NewTree()
	a := tree.NewVar(0)
	b := tree.NewVar(1)
	sum := tree.NewOp(OpAdd, a, b)
	tree.Root = sum

	problems := CheckInvariants(tree, tree.Root)
	assert.Empty(t, problems)
}

func TestBuildPowiChainWithinBudget(t *testing.T) {
	tree := NewTree()
	base := tree.NewVar(0)
	chain, ok := tree.BuildPowiChain(base, 5)
	require.True(t, ok)
	tree.Root = chain

	prog := Emit(tree, tree.Root, 1)
	got := runProgram(t, prog, []float64{2})
	assert.Equal(t, 32.0, got)
}

func TestLiftAndEmitRoundTrip(t *testing.T) {
	// x - x emitted naively (Sub sugar), then lifted, regrouped, and
	// re-emitted should produce a single Immed 0 instruction.
	raw := &Program{
		Instrs: []Instr{
			{Op: OpVar, Dst: 0, Var: 0},
			{Op: OpVar, Dst: 1, Var: 0},
			{Op: OpSub, Dst: 2, Args: []int{0, 1}},
		},
		RootSlot: 2,
		NumVars:  1,
	}
	data := Optimize(&Data{Program: raw, VarNames: []string{"x"}})
	require.LessOrEqual(t, len(data.Program.Instrs), 2)
	got := runProgram(t, data.Program, []float64{3.14})
	assert.InDelta(t, 0.0, got, 1e-9)
}

func TestOptimizePreservesPowExpression(t *testing.T) {
	// pow(x, 3) should still evaluate correctly after the full pipeline,
	// regardless of whether it gets rewritten into a powi chain.
	raw := &Program{
		Instrs: []Instr{
			{Op: OpVar, Dst: 0, Var: 0},
			{Op: OpImmed, Dst: 1, Imm: 3},
			{Op: OpPow, Dst: 2, Args: []int{0, 1}},
		},
		RootSlot: 2,
		NumVars:  1,
	}
	data := Optimize(&Data{Program: raw, VarNames: []string{"x"}})
	got := runProgram(t, data.Program, []float64{2})
	assert.InDelta(t, 8.0, got, 1e-9)
}

// S6: (a+b)*c + (a+b)*d should regroup into (a+b)*(c+d) via the shared
// non-immediate factor (a+b), the half of Add regrouping CollectAddends
// itself doesn't cover.
func TestCollectCommonFactorsSharedNonImmediateFactor(t *testing.T) {
	tree := NewTree()
	a := tree.NewVar(0)
	b := tree.NewVar(1)
	c := tree.NewVar(2)
	d := tree.NewVar(3)

	aPlusB1 := tree.NewOp(OpAdd, a, b)
	aPlusB2 := tree.NewOp(OpAdd, a, b)
	term1 := tree.NewOp(OpMul, aPlusB1, c)
	term2 := tree.NewOp(OpMul, aPlusB2, d)

	sum := tree.NewOpRaw(OpAdd, term1, term2)
	tree.Root = sum
	tree.Rehash(tree.Root, false)

	changed := tree.CollectCommonFactors(tree.Root)
	require.True(t, changed, "(a+b)*c + (a+b)*d should regroup via a shared factor")

	n := tree.Node(tree.Root)
	require.Equal(t, OpMul, n.Opcode)
	require.Len(t, n.Children, 2)

	// One child is the shared factor (a+b), the other the summed remainder
	// (c+d); both are Adds of two Vars, distinguished by variable index.
	varSets := make([]map[int]bool, 0, 2)
	for _, ci := range n.Children {
		cn := tree.Node(ci)
		require.Equal(t, OpAdd, cn.Opcode)
		require.Len(t, cn.Children, 2)
		set := make(map[int]bool)
		for _, gi := range cn.Children {
			gn := tree.Node(gi)
			require.Equal(t, OpVar, gn.Opcode)
			set[gn.Index] = true
		}
		varSets = append(varSets, set)
	}
	assert.Contains(t, varSets, map[int]bool{0: true, 1: true}, "expected the (a+b) factor")
	assert.Contains(t, varSets, map[int]bool{2: true, 3: true}, "expected the summed remainder c+d")
}

func TestRegroupLogicCombinesComparisonBitmasks(t *testing.T) {
	// Less(x,y) And LessOrEq(x,y) -> Less(x,y): intersecting {<} and {<,=}
	// over the shared operand pair leaves only {<}.
	tree := NewTree()
	x := tree.NewVar(0)
	y := tree.NewVar(1)
	x2 := tree.NewVar(0)
	y2 := tree.NewVar(1)
	less := tree.NewOp(OpLess, x, y)
	lessOrEq := tree.NewOp(OpLessOrEq, x2, y2)
	and := tree.NewOpRaw(OpAnd, less, lessOrEq)
	tree.Root = and
	tree.Rehash(tree.Root, false)

	changed := tree.RegroupLogic(tree.Root, true)
	require.True(t, changed)
	n := tree.Node(tree.Root)
	assert.Equal(t, OpLess, n.Opcode)
}

func TestRegroupLogicUnionIsAlwaysTrue(t *testing.T) {
	// Less(x,y) Or GreaterOrEq(x,y) -> the full {<,=,>} lattice, i.e. always
	// true, since every pair of reals stands in exactly one of <, =, >.
	tree := NewTree()
	x := tree.NewVar(0)
	y := tree.NewVar(1)
	x2 := tree.NewVar(0)
	y2 := tree.NewVar(1)
	less := tree.NewOp(OpLess, x, y)
	greaterOrEq := tree.NewOp(OpGreaterOrEq, x2, y2)
	or := tree.NewOpRaw(OpOr, less, greaterOrEq)
	tree.Root = or
	tree.Rehash(tree.Root, false)

	changed := tree.RegroupLogic(tree.Root, false)
	require.True(t, changed)
	n := tree.Node(tree.Root)
	assert.Equal(t, OpImmed, n.Opcode)
	assert.Equal(t, 1.0, n.Num)
}

// Two physically distinct but structurally identical subtrees share one
// emission: CSE is keyed on the structural hash, not node identity.
func TestEmitDeduplicatesStructurallyEqualSubtrees(t *testing.T) {
	// sin(x) + cos(sin(x)), with the two sin(x) nodes allocated separately.
	tree := NewTree()
	x1 := tree.NewVar(0)
	x2 := tree.NewVar(0)
	sin1 := tree.NewOp(OpSin, x1)
	sin2 := tree.NewOp(OpSin, x2)
	cos := tree.NewOp(OpCos, sin2)
	tree.Root = tree.NewOp(OpAdd, sin1, cos)

	counts := FindTreeCounts(tree, tree.Root)
	e := counts.lookup(tree, sin1)
	require.NotNil(t, e)
	assert.Equal(t, 2, e.count, "both sin(x) occurrences should land in one equivalence class")

	prog := Emit(tree, tree.Root, 1)
	sins := 0
	for _, ins := range prog.Instrs {
		if ins.Op == OpSin {
			sins++
		}
	}
	assert.Equal(t, 1, sins, "structurally identical sin(x) should emit once")
}

// If lowers to the three-step conditional sequence: jump-if-zero over the
// then-branch, then-branch, unconditional jump over the else-branch.
func TestEmitIfEmitsJumpSequence(t *testing.T) {
	tree := NewTree()
	x := tree.NewVar(0)
	y := tree.NewVar(1)
	cond := tree.NewOp(OpLess, x, y)
	sin := tree.NewOp(OpSin, x)
	cosY := tree.NewOp(OpCos, y)
	ifNode := tree.NewOpRaw(OpIf, cond, sin, cosY)
	tree.Root = ifNode

	prog := Emit(tree, tree.Root, 2)

	var jumps, fetches, ifs int
	for _, ins := range prog.Instrs {
		switch ins.Op {
		case OpJump:
			jumps++
			assert.GreaterOrEqual(t, ins.Target, 0)
			assert.LessOrEqual(t, ins.Target, len(prog.Instrs))
		case OpFetch:
			fetches++
		case OpIf:
			ifs++
		}
	}
	assert.Equal(t, 2, jumps, "one conditional and one unconditional jump")
	assert.Equal(t, 2, fetches, "each branch writes the result slot")
	assert.Zero(t, ifs, "the eager If select should not survive emission")
}

func TestAssimilateFlattensNestedVariadic(t *testing.T) {
	// (a+b)+c constructs as a nested Add and folds into one flat Add.
	tree := NewTree()
	a := tree.NewVar(0)
	b := tree.NewVar(1)
	c := tree.NewVar(2)
	inner := tree.NewOp(OpAdd, a, b)
	outer := tree.NewOp(OpAdd, inner, c)
	tree.Root = outer

	n := tree.Node(tree.Root)
	require.Equal(t, OpAdd, n.Opcode)
	assert.Len(t, n.Children, 3)
}

func TestFoldIfStripsNotFromCondition(t *testing.T) {
	tree := NewTree()
	x := tree.NewVar(0)
	a := tree.NewVar(1)
	b := tree.NewVar(2)
	notX := tree.NewOp(OpNot, x)
	ifNode := tree.NewOp(OpIf, notX, a, b)
	tree.Root = ifNode

	n := tree.Node(tree.Root)
	require.Equal(t, OpIf, n.Opcode)
	assert.Equal(t, OpVar, tree.Node(n.Children[0]).Opcode, "Not should be stripped off the condition")
	assert.Equal(t, 2, tree.Node(n.Children[1]).Index, "branches should have swapped")
	assert.Equal(t, 1, tree.Node(n.Children[2]).Index)
}

func TestFoldComparisonDisjointRanges(t *testing.T) {
	// cosh(x) >= 1 everywhere, so cosh(x) > 0.5 is always true and
	// cosh(x) < 0.5 always false.
	tree := NewTree()
	x := tree.NewVar(0)
	cosh := tree.NewOp(OpCosh, x)
	half := tree.NewImmed(0.5)
	gt := tree.NewOp(OpGreater, cosh, half)
	tree.Root = gt

	n := tree.Node(tree.Root)
	require.Equal(t, OpImmed, n.Opcode)
	assert.Equal(t, 1.0, n.Num)
}

func TestFoldAbsOfSignedProduct(t *testing.T) {
	// |(-3)*x| = 3*|x|: the immediate factor's sign is known, so it moves
	// outside the Abs.
	tree := NewTree()
	x := tree.NewVar(0)
	negThree := tree.NewImmed(-3)
	prod := tree.NewOp(OpMul, negThree, x)
	abs := tree.NewOp(OpAbs, prod)
	tree.Root = abs

	n := tree.Node(tree.Root)
	require.Equal(t, OpMul, n.Opcode)
	require.Len(t, n.Children, 2)
	var sawCoeff, sawAbs bool
	for _, ci := range n.Children {
		cn := tree.Node(ci)
		switch cn.Opcode {
		case OpImmed:
			assert.Equal(t, 3.0, cn.Num)
			sawCoeff = true
		case OpAbs:
			assert.Equal(t, OpVar, tree.Node(cn.Children[0]).Opcode)
			sawAbs = true
		}
	}
	assert.True(t, sawCoeff)
	assert.True(t, sawAbs)
}

func TestFoldPowMergesConstantExponentFactor(t *testing.T) {
	// 2^(3*x) -> 8^x.
	tree := NewTree()
	x := tree.NewVar(0)
	three := tree.NewImmed(3)
	exp := tree.NewOp(OpMul, three, x)
	two := tree.NewImmed(2)
	pow := tree.NewOp(OpPow, two, exp)
	tree.Root = pow

	n := tree.Node(tree.Root)
	require.Equal(t, OpPow, n.Opcode)
	base := tree.Node(n.Children[0])
	require.Equal(t, OpImmed, base.Opcode)
	assert.Equal(t, 8.0, base.Num)
	assert.Equal(t, OpVar, tree.Node(n.Children[1]).Opcode)
}

func TestFoldAtan2OnPositiveHalfPlane(t *testing.T) {
	// atan2(y, cosh(x)) -> atan(y * cosh(x)^-1), since cosh is never <= 0.
	tree := NewTree()
	y := tree.NewVar(0)
	x := tree.NewVar(1)
	cosh := tree.NewOp(OpCosh, x)
	at2 := tree.NewOp(OpAtan2, y, cosh)
	tree.Root = at2

	n := tree.Node(tree.Root)
	assert.Equal(t, OpAtan, n.Opcode)
	require.Len(t, n.Children, 1)
	assert.Equal(t, OpMul, tree.Node(n.Children[0]).Opcode)
}

func TestCollectFactorsGroupsByExponent(t *testing.T) {
	// x^0.5 * y^0.5 -> (x*y)^0.5.
	tree := NewTree()
	x := tree.NewVar(0)
	y := tree.NewVar(1)
	half1 := tree.NewImmed(0.5)
	half2 := tree.NewImmed(0.5)
	px := tree.NewOp(OpPow, x, half1)
	py := tree.NewOp(OpPow, y, half2)
	mul := tree.NewOpRaw(OpMul, px, py)
	tree.Root = mul
	tree.Rehash(tree.Root, false)

	changed := tree.CollectFactors(tree.Root)
	require.True(t, changed)
	n := tree.Node(tree.Root)
	require.Equal(t, OpPow, n.Opcode)
	assert.Equal(t, OpMul, tree.Node(n.Children[0]).Opcode)
	assert.Equal(t, 0.5, tree.Node(n.Children[1]).Num)
}

func TestApplyGrammarPythagoreanInsideWiderSum(t *testing.T) {
	// sin(x)^2 + cos(x)^2 + z -> 1 + z via the rest-holder.
	tree := NewTree()
	x := tree.NewVar(0)
	z := tree.NewVar(1)
	two1 := tree.NewImmed(2)
	two2 := tree.NewImmed(2)
	sin := tree.NewOp(OpSin, x)
	cos := tree.NewOp(OpCos, x)
	sin2 := tree.NewOp(OpPow, sin, two1)
	cos2 := tree.NewOp(OpPow, cos, two2)
	sum := tree.NewOp(OpAdd, sin2, cos2, z)
	tree.Root = sum

	rewrote := ApplyGrammar(tree, IntermediateGrammar, tree.Root)
	require.True(t, rewrote)

	n := tree.Node(tree.Root)
	require.Equal(t, OpAdd, n.Opcode)
	require.Len(t, n.Children, 2)
	var sawOne, sawZ bool
	for _, ci := range n.Children {
		cn := tree.Node(ci)
		if cn.Opcode == OpImmed && cn.Num == 1 {
			sawOne = true
		}
		if cn.Opcode == OpVar && cn.Index == 1 {
			sawZ = true
		}
	}
	assert.True(t, sawOne)
	assert.True(t, sawZ)
}

func TestRecreateNegativeIntegerExponent(t *testing.T) {
	// x^-2 recreates as Inv(x*x): no Pow opcode, no exponent immediate.
	tree := NewTree()
	x := tree.NewVar(0)
	negTwo := tree.NewImmed(-2)
	pow := tree.NewOp(OpPow, x, negTwo)
	tree.Root = pow

	rec := tree.Recreate(tree.Root)
	n := tree.Node(rec)
	require.Equal(t, OpInv, n.Opcode)
	assert.Equal(t, OpMul, tree.Node(n.Children[0]).Opcode)
}

func TestRecreateQuarterPowerAsSqrtChain(t *testing.T) {
	tree := NewTree()
	x := tree.NewVar(0)
	quarter := tree.NewImmed(0.25)
	pow := tree.NewOp(OpPow, x, quarter)
	tree.Root = pow

	rec := tree.Recreate(tree.Root)
	n := tree.Node(rec)
	require.Equal(t, OpSqrt, n.Opcode)
	assert.Equal(t, OpSqrt, tree.Node(n.Children[0]).Opcode)
}

func TestRegroupLogicCollapsesNotPair(t *testing.T) {
	// x And !x -> 0.
	tree := NewTree()
	x := tree.NewVar(0)
	x2 := tree.NewVar(0)
	notX := tree.NewOp(OpNot, x2)
	and := tree.NewOpRaw(OpAnd, x, notX)
	tree.Root = and
	tree.Rehash(tree.Root, false)

	changed := tree.RegroupLogic(tree.Root, true)
	require.True(t, changed)
	n := tree.Node(tree.Root)
	assert.Equal(t, OpImmed, n.Opcode)
	assert.Equal(t, 0.0, n.Num)
}
