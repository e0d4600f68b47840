package opt

// NodeID addresses a Node within a Tree's arena. The arena variant from the
// design notes is used instead of a native shared-pointer type: it flattens
// lifetimes, supports structural hashing into a map for CSE, and replaces
// the "incompletely hashed" sentinel's bookkeeping with a single integer
// field (Depth == 0) per node instead of a pointer chase.
type NodeID int32

// noneID is the invalid/absent node reference.
const noneID NodeID = -1

// PayloadKind selects which union field a Node's payload occupies,
// mirroring CodeTreeData's Value/Var/Funcno union but as an explicit tag
// instead of bit-packed memory (the union exists in the original only for
// memory density, per spec.md's design notes).
type PayloadKind uint8

const (
	PayloadNone PayloadKind = iota
	PayloadImmed
	PayloadVar
	PayloadCallee
)

// Node is one entity of the algebraic expression tree (spec.md §3).
type Node struct {
	Opcode   Opcode
	PKind    PayloadKind
	Num      float64 // valid when PKind == PayloadImmed
	Index    int     // variable index (PayloadVar) or callee index (PayloadCallee)
	Children []NodeID

	Hash  Hash128
	Depth int // 1 + max(child depth); 0 is the "incompletely hashed" sentinel (I4)

	// OptimizedBy names (by pointer identity) the last grammar this node was
	// declared fixed-point against; cleared on any mutation (§4.5).
	OptimizedBy *Grammar
}

// Tree owns an arena of nodes and a root reference. Subtrees can be shared
// across parents (the lifter maps one bytecode slot to one node however
// many instructions read it, and the powi/regroup passes deliberately fan
// a node out under several parents). The original guards such sharing with
// reference-counted copy-on-write; here every in-place rewrite is a
// semantics-preserving transformation of the subexpression the node
// denotes, so every parent sharing it wants the rewrite — the arena makes
// sharing explicit at the index level and needs no ownership bookkeeping.
// Nothing is freed mid-pass; abandoned nodes simply stay unreferenced in
// the arena until the whole Tree is dropped.
type Tree struct {
	nodes []*Node
	Root  NodeID
}

// NewTree creates an empty arena tree.
func NewTree() *Tree {
	return &Tree{Root: noneID}
}

// Node exposes the node at id to callers outside the package (read-only use
// is expected; mutation should go through Tree's mutator methods).
func (t *Tree) Node(id NodeID) *Node { return t.nodes[id] }

// NumNodes returns the arena's live size (an upper bound on distinct nodes;
// unreferenced ids are not compacted).
func (t *Tree) NumNodes() int { return len(t.nodes) }

func (t *Tree) alloc(n *Node) NodeID {
	t.nodes = append(t.nodes, n)
	return NodeID(len(t.nodes) - 1)
}

// NewImmed allocates a literal leaf.
func (t *Tree) NewImmed(v float64) NodeID {
	id := t.alloc(&Node{Opcode: OpImmed, PKind: PayloadImmed, Num: v})
	t.rehashLeaf(id)
	return id
}

// NewVar allocates a variable-reference leaf.
func (t *Tree) NewVar(index int) NodeID {
	id := t.alloc(&Node{Opcode: OpVar, PKind: PayloadVar, Index: index})
	t.rehashLeaf(id)
	return id
}

// NewOp allocates an interior node with the given opcode and children,
// then rehashes (folding + sorting).
func (t *Tree) NewOp(op Opcode, children ...NodeID) NodeID {
	id := t.alloc(&Node{Opcode: op, Children: children})
	t.Rehash(id, true)
	return id
}

// NewOpRaw is like NewOp but skips the fold/rehash pass — used by the
// recreate stage and the powi/muli chain builders, which need full control
// over when folding is allowed to run.
func (t *Tree) NewOpRaw(op Opcode, children ...NodeID) NodeID {
	return t.alloc(&Node{Opcode: op, Children: children, Depth: 0})
}

// SetChild replaces child i of parent with newChild.
func (t *Tree) SetChild(parent NodeID, i int, newChild NodeID) {
	t.nodes[parent].Children[i] = newChild
	t.MarkIncomplete(parent)
}

// SetChildren replaces parent's whole child list.
func (t *Tree) SetChildren(parent NodeID, children []NodeID) {
	t.nodes[parent].Children = children
	t.MarkIncomplete(parent)
}

// AddChild appends a new child to parent's child list.
func (t *Tree) AddChild(parent NodeID, child NodeID) {
	p := t.nodes[parent]
	p.Children = append(p.Children, child)
	t.MarkIncomplete(parent)
}

// Become replaces parent's entire node contents with a copy of other's,
// short of other's own identity (CodeTree::Become).
func (t *Tree) Become(parent, other NodeID) {
	src := t.nodes[other]
	p := t.nodes[parent]
	p.Opcode = src.Opcode
	p.PKind = src.PKind
	p.Num = src.Num
	p.Index = src.Index
	p.Children = append([]NodeID(nil), src.Children...)
	p.OptimizedBy = nil
	t.MarkIncomplete(parent)
}

// MarkIncomplete flags n as incompletely hashed (I4); Rehash or
// FixIncompleteHashes must run before any structural query touches it.
func (t *Tree) MarkIncomplete(id NodeID) {
	n := t.nodes[id]
	n.Depth = 0
	n.OptimizedBy = nil
}

// IsIdenticalTo performs a hash-then-structural-compare identity test
// (spec.md P5): hash equality is necessary but not sufficient.
func (t *Tree) IsIdenticalTo(a, b NodeID) bool {
	if a == b {
		return true
	}
	na, nb := t.nodes[a], t.nodes[b]
	if na.Hash != nb.Hash {
		return false
	}
	return t.deepEqual(a, b)
}

func (t *Tree) deepEqual(a, b NodeID) bool {
	na, nb := t.nodes[a], t.nodes[b]
	if na.Opcode != nb.Opcode || na.PKind != nb.PKind {
		return false
	}
	switch na.PKind {
	case PayloadImmed:
		if na.Num != nb.Num {
			return false
		}
	case PayloadVar, PayloadCallee:
		if na.Index != nb.Index {
			return false
		}
	}
	if len(na.Children) != len(nb.Children) {
		return false
	}
	for i := range na.Children {
		if !t.deepEqual(na.Children[i], nb.Children[i]) {
			return false
		}
	}
	return true
}

// Clone makes an independent deep copy of the subtree rooted at id within
// the same arena, for when a subtree must be duplicated rather than
// shared; no pass in this package calls it.
func (t *Tree) Clone(id NodeID) NodeID {
	n := t.nodes[id]
	children := make([]NodeID, len(n.Children))
	for i, c := range n.Children {
		children[i] = t.Clone(c)
	}
	clone := &Node{Opcode: n.Opcode, PKind: n.PKind, Num: n.Num, Index: n.Index, Children: children}
	id2 := t.alloc(clone)
	t.rehashLeafOrInterior(id2)
	return id2
}

func (t *Tree) rehashLeafOrInterior(id NodeID) {
	if len(t.nodes[id].Children) == 0 {
		t.rehashLeaf(id)
		return
	}
	t.Rehash(id, true)
}
