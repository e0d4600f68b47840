package opt

// RecreateInversionsAndNegations is the last step before bytecode emission
// (spec.md §4.6, grounded on fpoptimizer_codetree_to_bytecode.cc's routine
// of the same name): the canonical tree never contains Sub, Div, Neg or Inv
// (I1 forbids them), since Add/Mul with negative coefficients or negative
// exponents represent subtraction and division uniformly. Bytecode
// execution is cheaper with the dedicated opcodes, so this walk reinstates
// them in a freshly built copy, leaving the canonical tree untouched.
func (t *Tree) RecreateInversionsAndNegations(id NodeID) NodeID {
	return t.Recreate(id)
}

// Recreate returns a freshly built subtree equivalent to id but with
// negative Add coefficients and negative Mul/Pow exponents rewritten as
// Sub/Neg and Div/Inv.
func (t *Tree) Recreate(id NodeID) NodeID {
	n := t.nodes[id]
	switch n.Opcode {
	case OpImmed:
		return t.NewImmed(n.Num)
	case OpVar:
		return t.NewVar(n.Index)
	case OpAdd:
		return t.recreateAdd(n)
	case OpMul:
		return t.recreateMul(n)
	case OpPow:
		return t.recreatePow(n)
	default:
		children := make([]NodeID, len(n.Children))
		for i, c := range n.Children {
			children[i] = t.Recreate(c)
		}
		id2 := t.NewOpRaw(n.Opcode, children...)
		cp := t.nodes[id2]
		cp.PKind, cp.Num, cp.Index = n.PKind, n.Num, n.Index
		return id2
	}
}

// extractSignedFactors reads (without allocating) whether c is a product
// carrying a single immediate coefficient, returning that coefficient's
// sign and magnitude separately from the rest of c's factors (which are
// returned as-is, still belonging to the original tree — the caller must
// recreate each before using it).
func (t *Tree) extractSignedFactors(c NodeID) (sign, magnitude float64, rest []NodeID) {
	cn := t.nodes[c]
	if cn.Opcode != OpMul {
		return 1, 1, []NodeID{c}
	}
	for i, ch := range cn.Children {
		if chn := t.nodes[ch]; chn.Opcode == OpImmed {
			others := make([]NodeID, 0, len(cn.Children)-1)
			others = append(others, cn.Children[:i]...)
			others = append(others, cn.Children[i+1:]...)
			if chn.Num < 0 {
				return -1, -chn.Num, others
			}
			return 1, chn.Num, others
		}
	}
	return 1, 1, []NodeID{c}
}

// combineSum and combineProduct build canonical (folded, sorted) variadic
// nodes; the folder's own rewrites use them. The raw variants below build
// the same shapes without folding — the recreate stage deliberately emits
// sugar and partially-shared chains the folder would dissolve again.
func combineSum(t *Tree, terms []NodeID) NodeID {
	return combine(t, OpAdd, 0, terms, (*Tree).NewOp)
}

func combineProduct(t *Tree, terms []NodeID) NodeID {
	return combine(t, OpMul, 1, terms, (*Tree).NewOp)
}

func combineSumRaw(t *Tree, terms []NodeID) NodeID {
	return combine(t, OpAdd, 0, terms, (*Tree).NewOpRaw)
}

func combineProductRaw(t *Tree, terms []NodeID) NodeID {
	return combine(t, OpMul, 1, terms, (*Tree).NewOpRaw)
}

func combine(t *Tree, op Opcode, identity float64, terms []NodeID, build func(*Tree, Opcode, ...NodeID) NodeID) NodeID {
	switch len(terms) {
	case 0:
		return t.NewImmed(identity)
	case 1:
		return terms[0]
	default:
		return build(t, op, terms...)
	}
}

func (t *Tree) recreateAdd(n *Node) NodeID {
	var posTerms, negTerms []NodeID
	for _, c := range n.Children {
		cn := t.nodes[c]
		if cn.Opcode == OpImmed {
			if cn.Num < 0 {
				negTerms = append(negTerms, t.NewImmed(-cn.Num))
			} else if cn.Num > 0 {
				posTerms = append(posTerms, t.NewImmed(cn.Num))
			}
			continue
		}
		sign, mag, rest := t.extractSignedFactors(c)
		recreated := make([]NodeID, len(rest))
		for i, r := range rest {
			recreated[i] = t.Recreate(r)
		}
		term := combineProductRaw(t, recreated)
		var final NodeID
		if mag == 1 {
			final = term
		} else {
			magID := t.NewImmed(mag)
			final = t.NewOpRaw(OpMul, magID, term)
		}
		if sign < 0 {
			negTerms = append(negTerms, final)
		} else {
			posTerms = append(posTerms, final)
		}
	}

	posNode := combineSumRaw(t, posTerms)
	if len(negTerms) == 0 {
		return posNode
	}
	negNode := combineSumRaw(t, negTerms)
	if len(posTerms) == 0 {
		return t.NewOpRaw(OpNeg, negNode)
	}
	return t.NewOpRaw(OpSub, posNode, negNode)
}

// recreateMul is AssembleSequence's cMul case (spec.md §4.7): an integer-
// immediate coefficient is worth expanding into a double-and-add chain
// (powi.go's BuildMuliChain) when that chain fits MaxMuliBytecodeLength,
// since a couple of Add instructions can beat a general multiply-by-
// constant. Any coefficient that isn't a small positive integer, or whose
// chain would overrun the budget, falls back to a plain Mul-by-immediate.
func (t *Tree) recreateMul(n *Node) NodeID {
	var num, den []NodeID
	coeff, hasCoeff := 1.0, false
	for _, c := range n.Children {
		cn := t.nodes[c]
		if cn.Opcode == OpPow {
			if en := t.nodes[cn.Children[1]]; en.Opcode == OpImmed && en.Num < 0 {
				mag := -en.Num
				var term NodeID
				if chain, ok := t.recreateSqrtChain(cn.Children[0], mag); ok {
					term = chain
				} else {
					recBase := t.Recreate(cn.Children[0])
					var chain NodeID
					var chained bool
					if mag != 1 && isInteger(mag) {
						chain, chained = t.BuildPowiChain(recBase, int64(mag))
					}
					switch {
					case mag == 1:
						term = recBase
					case chained:
						term = chain
					default:
						magID := t.NewImmed(mag)
						term = t.NewOpRaw(OpPow, recBase, magID)
					}
				}
				den = append(den, term)
				continue
			}
		}
		if cn.Opcode == OpImmed && !hasCoeff {
			coeff, hasCoeff = cn.Num, true
			continue
		}
		num = append(num, t.Recreate(c))
	}

	rest := combineProductRaw(t, num)
	var numNode NodeID
	if !hasCoeff {
		numNode = rest
	} else {
		var chain NodeID
		var ok bool
		if len(num) > 0 && isInteger(coeff) && coeff > 0 {
			chain, ok = t.BuildMuliChain(rest, int64(coeff))
		}
		if ok {
			numNode = chain
		} else {
			coeffID := t.NewImmed(coeff)
			if len(num) == 0 {
				numNode = coeffID
			} else {
				numNode = t.NewOpRaw(OpMul, coeffID, rest)
			}
		}
	}

	if len(den) == 0 {
		return numNode
	}
	denNode := combineProductRaw(t, den)
	if len(num) == 0 && !hasCoeff {
		return t.NewOpRaw(OpInv, denNode)
	}
	return t.NewOpRaw(OpDiv, numNode, denNode)
}

// recreatePow is AssembleSequence's cPow case: a positive integer exponent
// is worth expanding into a square-and-multiply chain (powi.go) when that
// chain fits MaxPowiBytecodeLength, since a handful of Mul instructions is
// cheaper to execute than a general pow() call. Half-power exponents become
// Sqrt/RSqrt chains and negative integers an Inv over the positive chain,
// both of which drop the exponent immediate from the emitted program.
// Anything else (fractional, or too large an exponent) stays a plain Pow.
func (t *Tree) recreatePow(n *Node) NodeID {
	expNode := t.nodes[n.Children[1]]
	if expNode.Opcode == OpImmed {
		if id, ok := t.recreateSqrtChain(n.Children[0], expNode.Num); ok {
			return id
		}
	}
	if expNode.Opcode == OpImmed && isInteger(expNode.Num) && expNode.Num > 0 {
		recBase := t.Recreate(n.Children[0])
		if chain, ok := t.BuildPowiChain(recBase, int64(expNode.Num)); ok {
			return chain
		}
		recExp := t.Recreate(n.Children[1])
		return t.NewOpRaw(OpPow, recBase, recExp)
	}
	if expNode.Opcode == OpImmed && isInteger(expNode.Num) && expNode.Num < 0 {
		mag := -expNode.Num
		recBase := t.Recreate(n.Children[0])
		inner := recBase
		ok := mag == 1
		if !ok {
			inner, ok = t.BuildPowiChain(recBase, int64(mag))
		}
		if ok {
			result := t.NewOpRaw(OpInv, inner)
			return result
		}
		recExp := t.Recreate(n.Children[1])
		return t.NewOpRaw(OpPow, recBase, recExp)
	}

	recBase := t.Recreate(n.Children[0])
	recExp := t.Recreate(n.Children[1])
	return t.NewOpRaw(OpPow, recBase, recExp)
}

// recreateSqrtChain turns x^(±1/2) and x^(±1/4) into Sqrt/RSqrt shapes,
// which execute without the exponent immediate a general Pow carries.
func (t *Tree) recreateSqrtChain(base NodeID, exp float64) (NodeID, bool) {
	var outer Opcode
	switch exp {
	case 0.5, 0.25:
		outer = OpSqrt
	case -0.5, -0.25:
		outer = OpRSqrt
	default:
		return noneID, false
	}
	inner := t.Recreate(base)
	if exp == 0.25 || exp == -0.25 {
		wrapped := t.NewOpRaw(OpSqrt, inner)
		inner = wrapped
	}
	result := t.NewOpRaw(outer, inner)
	return result, true
}
