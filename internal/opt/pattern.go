package opt

// Pattern is the matching half of the grammar engine (spec.md §4.5),
// modeled on fpoptimizer_grammar.hh's ParamSpec hierarchy: a small
// expression-shaped language of its own, built from NumConstant,
// ParamHolder and SubFunction nodes, matched against a Tree's actual nodes.
//
// Scope note: the original's Selected match mode (match a permutation with
// an exact child count) is subsumed here by AnyOrder without a RestHolder;
// AnyOrder with a RestHolder is the original's "match k of n children,
// bind the rest" mode.
type Pattern interface {
	match(t *Tree, id NodeID, binds map[int]NodeID) bool
}

// NumConstant matches an Immed leaf carrying exactly Value.
type NumConstant struct {
	Value float64
}

func (p NumConstant) match(t *Tree, id NodeID, _ map[int]NodeID) bool {
	n := t.nodes[id]
	return n.Opcode == OpImmed && n.Num == p.Value
}

// ConstraintFn further restricts what a ParamHolder is allowed to bind to
// (fpoptimizer_grammar.hh's per-param constraint bitmask, expressed as code
// instead of a bitmask since there's no packed-binary grammar file to
// decode here).
type ConstraintFn func(t *Tree, id NodeID) bool

// IsConst matches only an Immed leaf.
func IsConst(t *Tree, id NodeID) bool { return t.nodes[id].Opcode == OpImmed }

// IsNotConst matches anything but an Immed leaf.
func IsNotConst(t *Tree, id NodeID) bool { return t.nodes[id].Opcode != OpImmed }

// IsIntegerConst matches an Immed leaf holding an integral value.
func IsIntegerConst(t *Tree, id NodeID) bool {
	n := t.nodes[id]
	return n.Opcode == OpImmed && isInteger(n.Num)
}

// ParamHolder binds whatever it matches under Index; a second occurrence
// of the same Index within one rule must match an identical subtree
// (back-reference, as in `x - x` patterns).
type ParamHolder struct {
	Index      int
	Constraint ConstraintFn
}

func (p ParamHolder) match(t *Tree, id NodeID, binds map[int]NodeID) bool {
	if existing, ok := binds[p.Index]; ok {
		return t.IsIdenticalTo(existing, id)
	}
	if p.Constraint != nil && !p.Constraint(t, id) {
		return false
	}
	binds[p.Index] = id
	return true
}

// AnyParam matches any single node without binding it.
type AnyParam struct{}

func (AnyParam) match(t *Tree, id NodeID, binds map[int]NodeID) bool { return true }

// ParamMatchType selects how a SubFunction's Params line up against the
// candidate node's children.
type ParamMatchType int

const (
	// Positional requires Params[i] to match Children[i] exactly, in order.
	Positional ParamMatchType = iota
	// AnyOrder allows any permutation — used for commutative opcodes, where
	// canonical sort order (I2) need not match the pattern's declared order.
	AnyOrder
)

// SubFunction matches an interior node: its opcode and, depending on
// MatchType, either the exact positional child sequence or some
// permutation of it. A nonzero RestHolder (meaningful with AnyOrder only)
// relaxes the exact-count requirement: the pattern children must each
// match some distinct tree child, and the tree children left over bind to
// the RestHolder index as a synthesized node of the same opcode.
type SubFunction struct {
	Opcode     Opcode
	Params     []Pattern
	MatchType  ParamMatchType
	RestHolder int
}

func (p SubFunction) match(t *Tree, id NodeID, binds map[int]NodeID) bool {
	n := t.nodes[id]
	if n.Opcode != p.Opcode {
		return false
	}
	if p.RestHolder != 0 {
		if p.MatchType != AnyOrder || len(n.Children) < len(p.Params) {
			return false
		}
		used, ok := matchSubset(t, p.Params, n.Children, binds)
		if !ok {
			return false
		}
		rest := make([]NodeID, 0, len(n.Children)-len(p.Params))
		for ci, u := range used {
			if !u {
				rest = append(rest, n.Children[ci])
			}
		}
		binds[p.RestHolder] = t.synthesizeRest(p.Opcode, rest)
		return true
	}
	if len(n.Children) != len(p.Params) {
		return false
	}
	switch p.MatchType {
	case Positional:
		for i, sub := range p.Params {
			if !sub.match(t, n.Children[i], binds) {
				return false
			}
		}
		return true
	default: // AnyOrder
		_, ok := matchSubset(t, p.Params, n.Children, binds)
		return ok
	}
}

// synthesizeRest builds the node a RestHolder binds: the single leftover
// child itself, or a fresh variadic node of op over all of them (which may
// constant-fold, e.g. an empty Add becomes the immediate 0).
func (t *Tree) synthesizeRest(op Opcode, rest []NodeID) NodeID {
	if len(rest) == 1 {
		return rest[0]
	}
	return t.NewOp(op, rest...)
}

// matchSubset finds some injective assignment of params to children under
// which every param matches, backtracking on failure; it reports which
// children were consumed. Binds made during an abandoned branch are rolled
// back so later attempts start clean.
func matchSubset(t *Tree, params []Pattern, children []NodeID, binds map[int]NodeID) ([]bool, bool) {
	used := make([]bool, len(children))
	var try func(pi int) bool
	try = func(pi int) bool {
		if pi == len(params) {
			return true
		}
		for ci, child := range children {
			if used[ci] {
				continue
			}
			snapshot := make(map[int]NodeID, len(binds))
			for k, v := range binds {
				snapshot[k] = v
			}
			if params[pi].match(t, child, binds) {
				used[ci] = true
				if try(pi + 1) {
					return true
				}
				used[ci] = false
			}
			for k := range binds {
				delete(binds, k)
			}
			for k, v := range snapshot {
				binds[k] = v
			}
		}
		return false
	}
	ok := try(0)
	return used, ok
}
