package opt

// Emission lowers a (by this point, Recreate'd) tree into linear, register-
// addressed instructions a vm.Program can run directly: every instruction
// reads its operands by slot number and writes its result to a destination
// slot, so a subexpression is computed once and fanned out by slot
// reference. Common subexpressions are found the way the original's
// FindTreeCounts/TreeCountType does it (fpoptimizer_codetree_to_bytecode.cc):
// occurrences are counted in a multimap keyed by the 128-bit structural
// hash, with every hash hit verified by a structural compare (P5), so two
// physically distinct but structurally identical subtrees share one
// emission. If lowers to the original's three-step conditional sequence —
// condition, a conditional jump over the then-branch, an unconditional
// jump over the else-branch — with placeholder jump targets patched after
// each branch is emitted.

// treeCountEntry is one structural equivalence class of subtrees: how often
// it occurs under the root, a representative node, and — during emission —
// the slot its value lives in (-1 until emitted, reset when the slot was
// assigned inside a conditional branch and is no longer live).
type treeCountEntry struct {
	node  NodeID
	count int
	slot  int
}

// TreeCounts maps a structural hash to the equivalence classes sharing it
// (normally one; hash collisions get their own entry each).
type TreeCounts map[Hash128][]*treeCountEntry

// lookup finds id's equivalence class, resolving hash collisions by
// structural compare.
func (tc TreeCounts) lookup(t *Tree, id NodeID) *treeCountEntry {
	for _, e := range tc[t.nodes[id].Hash] {
		if t.IsIdenticalTo(e.node, id) {
			return e
		}
	}
	return nil
}

// FindTreeCounts walks the tree rooted at root, counting structurally
// identical subtrees. The first occurrence of a structure descends into
// its children; later occurrences (physically shared or merely equal) only
// bump the count, since their children are already accounted for.
func FindTreeCounts(t *Tree, root NodeID) TreeCounts {
	counts := make(TreeCounts)
	var walk func(id NodeID)
	walk = func(id NodeID) {
		e := counts.lookup(t, id)
		if e != nil {
			e.count++
			return
		}
		h := t.nodes[id].Hash
		counts[h] = append(counts[h], &treeCountEntry{node: id, count: 1, slot: -1})
		for _, c := range t.nodes[id].Children {
			walk(c)
		}
	}
	walk(root)
	return counts
}

// refreshHashes computes hashes for raw-built nodes (Depth 0) bottom-up,
// without folding or reordering: the recreated tree's shapes are final,
// the hash only has to agree for structurally equal subtrees. A node with
// a valid depth already has valid hashes below it.
func (t *Tree) refreshHashes(id NodeID) {
	n := t.nodes[id]
	if n.Depth != 0 {
		return
	}
	for _, c := range n.Children {
		t.refreshHashes(c)
	}
	t.recalcHashNoRecursion(id)
}

// Instr is one emitted operation: compute Op over Args (each a slot index
// produced by an earlier instruction) and store the result in Dst. OpJump
// transfers control instead: unconditionally with no Args, or when the
// slot Args[0] holds zero, to the absolute instruction index Target.
type Instr struct {
	Op     Opcode
	Dst    int
	Args   []int
	Imm    float64 // valid when Op == OpImmed
	Var    int     // valid when Op == OpVar
	Callee int     // valid when Op == OpFCall or OpPCall
	Target int     // valid when Op == OpJump
}

// Program is the flat, CSE-deduplicated form a tree compiles down to.
type Program struct {
	Instrs   []Instr
	RootSlot int
	NumVars  int
}

// emitter carries the mutable emission state: the instruction buffer and
// an undo log of CSE slot assignments, so slots assigned inside a
// conditional branch can be retired when the branch closes (the branch may
// not execute, so its slots hold garbage afterwards).
type emitter struct {
	t       *Tree
	counts  TreeCounts
	instrs  []Instr
	slotLog []*treeCountEntry
}

// Emit lowers the subtree rooted at root into a Program. root is expected
// to already have passed through RecreateInversionsAndNegations; Emit
// itself performs no algebraic rewriting, only linearization and CSE.
func Emit(t *Tree, root NodeID, numVars int) *Program {
	t.refreshHashes(root)
	em := &emitter{t: t, counts: FindTreeCounts(t, root)}
	rootSlot := em.walk(root)
	return &Program{Instrs: em.instrs, RootSlot: rootSlot, NumVars: numVars}
}

func (em *emitter) walk(id NodeID) int {
	e := em.counts.lookup(em.t, id)
	if e.slot >= 0 {
		return e.slot
	}
	n := em.t.nodes[id]

	var slot int
	if n.Opcode == OpIf {
		slot = em.emitIf(n)
	} else {
		args := make([]int, len(n.Children))
		for i, c := range n.Children {
			args[i] = em.walk(c)
		}
		slot = len(em.instrs)
		instr := Instr{Op: n.Opcode, Dst: slot, Args: args}
		switch n.PKind {
		case PayloadImmed:
			instr.Imm = n.Num
		case PayloadVar:
			instr.Var = n.Index
		case PayloadCallee:
			instr.Callee = n.Index
		}
		em.instrs = append(em.instrs, instr)
	}

	if e.count > 1 {
		e.slot = slot
		em.slotLog = append(em.slotLog, e)
	}
	return slot
}

// emitIf produces the three-step conditional sequence: a jump-if-zero over
// the then-branch, the then-branch writing the If's result slot, an
// unconditional jump over the else-branch, and the else-branch writing the
// same result slot. Jump targets are placeholders patched after each
// branch. Slots assigned while emitting a branch are rolled back when it
// closes — a skipped branch leaves its slots unwritten, so nothing after
// the If may reuse them.
func (em *emitter) emitIf(n *Node) int {
	condSlot := em.walk(n.Children[0])

	jumpToElse := len(em.instrs)
	em.instrs = append(em.instrs, Instr{Op: OpJump, Dst: jumpToElse, Args: []int{condSlot}})

	mark := len(em.slotLog)
	thenSlot := em.walk(n.Children[1])
	result := len(em.instrs)
	em.instrs = append(em.instrs, Instr{Op: OpFetch, Dst: result, Args: []int{thenSlot}})
	em.rollback(mark)

	jumpToEnd := len(em.instrs)
	em.instrs = append(em.instrs, Instr{Op: OpJump, Dst: jumpToEnd})
	em.instrs[jumpToElse].Target = len(em.instrs)

	elseSlot := em.walk(n.Children[2])
	em.instrs = append(em.instrs, Instr{Op: OpFetch, Dst: result, Args: []int{elseSlot}})
	em.rollback(mark)
	em.instrs[jumpToEnd].Target = len(em.instrs)

	return result
}

// rollback retires every CSE slot assigned since mark.
func (em *emitter) rollback(mark int) {
	for _, e := range em.slotLog[mark:] {
		e.slot = -1
	}
	em.slotLog = em.slotLog[:mark]
}
