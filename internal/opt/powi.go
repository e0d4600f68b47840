package opt

// This file assembles short multiplication/addition chains for small
// positive integer exponents and coefficients, the same addition-chain
// technique fpoptimizer's AssembleSequence uses for both cPow-with-integer-
// exponent and multiply-by-small-integer-constant: a binary square-and-
// multiply (or double-and-add) walk over the exponent/coefficient's bits,
// each producing one more tree node. Budgets bound how far either is
// allowed to grow before falling back to a plain Pow/Mul-by-immediate node.
const (
	MaxPowiBytecodeLength = 15
	MaxMuliBytecodeLength = 3
)

// bitsOf returns n's bits, most significant first. n must be positive.
func bitsOf(n int64) []int {
	var bits []int
	started := false
	for i := 63; i >= 0; i-- {
		bit := int((n >> uint(i)) & 1)
		if bit == 1 {
			started = true
		}
		if started {
			bits = append(bits, bit)
		}
	}
	return bits
}

func chainCost(bits []int) int {
	steps := 0
	for _, bit := range bits[1:] {
		steps++
		if bit == 1 {
			steps++
		}
	}
	return steps
}

// BuildPowiChain builds base^exp (exp a positive integer) as a tree of Mul
// nodes via square-and-multiply, returning a fresh owned handle. It
// declines (ok == false, no tree mutation) if the chain would need more
// than MaxPowiBytecodeLength steps or exp isn't a positive integer — the
// caller should fall back to a plain Pow node in that case.
func (t *Tree) BuildPowiChain(base NodeID, exp int64) (NodeID, bool) {
	if exp <= 0 {
		return noneID, false
	}
	bits := bitsOf(exp)
	if chainCost(bits) > MaxPowiBytecodeLength {
		return noneID, false
	}
	// NewOpRaw keeps the chain's shape: the folder would assimilate a Mul
	// child into its Mul parent and flatten the shared squarings away.
	result := base
	for _, bit := range bits[1:] {
		squared := t.NewOpRaw(OpMul, result, result)
		result = squared
		if bit == 1 {
			withBase := t.NewOpRaw(OpMul, result, base)
			result = withBase
		}
	}
	return result, true
}

// BuildMuliChain builds n*operand (n a positive integer) as a tree of Add
// nodes via double-and-add. Its budget (MaxMuliBytecodeLength) is much
// tighter than powi's: this only ever beats a single Mul-by-immediate
// instruction for very small n.
func (t *Tree) BuildMuliChain(operand NodeID, n int64) (NodeID, bool) {
	if n <= 0 {
		return noneID, false
	}
	bits := bitsOf(n)
	if chainCost(bits) > MaxMuliBytecodeLength {
		return noneID, false
	}
	result := operand
	for _, bit := range bits[1:] {
		doubled := t.NewOpRaw(OpAdd, result, result)
		result = doubled
		if bit == 1 {
			withOperand := t.NewOpRaw(OpAdd, result, operand)
			result = withOperand
		}
	}
	return result, true
}
