package opt

import (
	"math"
	"math/bits"
	"sort"
)

// Hash128 is the 128-bit structural hash every node carries (spec.md §4.1),
// represented as the original's fphash_t is: two independent 64-bit lanes,
// so a collision in one lane doesn't imply a collision in the whole value.
type Hash128 struct {
	H1, H2 uint64
}

const (
	mixConst1 = 0x3A83A83A83A83A0
	mixConst2 = 0x1131462E270012B
)

// opcodeSeed starts a node's hash from its opcode tag, exactly as
// fpoptimizer_hash.hh seeds NewHash before folding in payload/children.
func opcodeSeed(op Opcode) Hash128 {
	o := uint64(op)
	return Hash128{H1: o * mixConst1, H2: o * mixConst2}
}

// avalanche produces a deterministic 32-bit scramble of a 64-bit pattern.
// A real CRC32 table is unnecessary here: the original uses CRC32 purely
// as an avalanching scramble, not for its error-detection property, so any
// fixed deterministic bit-mixer satisfies the hashing contract (P5).
func avalanche(v uint64) uint32 {
	v ^= v >> 33
	v *= 0xff51afd7ed558ccd
	v ^= v >> 33
	v *= 0xc4ceb9fe1a85ec53
	v ^= v >> 33
	return uint32(v) ^ uint32(v>>32)
}

func mixFloat(h Hash128, v float64) Hash128 {
	crc := avalanche(math.Float64bits(v))
	h.H1 ^= uint64(crc) | (uint64(crc) << 32)
	h.H2 += ((^uint64(crc)) * 3) ^ 1234567
	return h
}

func mixUint(h Hash128, v uint64, salt uint64) Hash128 {
	h.H1 ^= bits.RotateLeft64(v, 24)
	h.H2 += (v * salt) ^ 2345678
	return h
}

func mixChild(h Hash128, c Hash128) Hash128 {
	h.H1 = bits.RotateLeft64(h.H1^c.H1, 1) + c.H2
	h.H2 = bits.RotateLeft64(h.H2^c.H2, 7) ^ c.H1
	return h
}

// leafHash computes the hash contribution of a node's own opcode+payload,
// with no children mixed in yet (the no-params cases of
// Recalculate_Hash_NoRecursion).
func leafHash(n *Node) Hash128 {
	h := opcodeSeed(n.Opcode)
	switch n.PKind {
	case PayloadImmed:
		if n.Num != 0.0 {
			h = mixFloat(h, n.Num)
		}
	case PayloadVar:
		h = mixUint(h, uint64(n.Index), 5)
	case PayloadCallee:
		h = mixUint(h, uint64(n.Index), 7)
	}
	return h
}

// rehashLeaf computes the hash of a freshly allocated leaf (Immed or Var).
func (t *Tree) rehashLeaf(id NodeID) {
	n := t.nodes[id]
	n.Hash = leafHash(n)
	n.Depth = 1
}

// less orders nodes by (depth desc, hash asc) — the ParamComparer of
// invariant I2.
func (t *Tree) less(a, b NodeID) bool {
	na, nb := t.nodes[a], t.nodes[b]
	if na.Depth != nb.Depth {
		return na.Depth > nb.Depth
	}
	if na.Hash.H1 != nb.Hash.H1 {
		return na.Hash.H1 < nb.Hash.H1
	}
	return na.Hash.H2 < nb.Hash.H2
}

// sortChildren applies invariants I2/I3: commutative ops get their children
// sorted; the four ordered comparisons get their operands put in canonical
// order, flipping the opcode if a swap was needed.
func (t *Tree) sortChildren(id NodeID) {
	n := t.nodes[id]
	switch {
	case n.Opcode.IsCommutative():
		sort.SliceStable(n.Children, func(i, j int) bool {
			return t.less(n.Children[i], n.Children[j])
		})
	case n.Opcode.IsComparison():
		if len(n.Children) == 2 && t.less(n.Children[1], n.Children[0]) {
			n.Children[0], n.Children[1] = n.Children[1], n.Children[0]
			n.Opcode = n.Opcode.flipped()
		}
	}
}

// recalcHashNoRecursion recomputes id's hash from its opcode, payload, and
// its children's *already valid* hashes — the non-recursive half of Rehash.
func (t *Tree) recalcHashNoRecursion(id NodeID) {
	n := t.nodes[id]
	h := leafHash(n)
	depth := 1
	for _, c := range n.Children {
		cn := t.nodes[c]
		h = mixChild(h, cn.Hash)
		if cn.Depth+1 > depth {
			depth = cn.Depth + 1
		}
	}
	n.Hash = h
	n.Depth = depth
}

// Rehash is the single chokepoint every mutation path must pass through to
// preserve I1-I4: optionally constant-fold, then canonicalize child order,
// then recompute the hash.
func (t *Tree) Rehash(id NodeID, constantFolding bool) {
	if constantFolding {
		t.ConstantFold(id)
	}
	t.sortChildren(id)
	t.recalcHashNoRecursion(id)
}

// FixIncompleteHashes re-hashes, bottom-up, id and every incompletely
// hashed node reachable from it through incompletely hashed nodes. It
// stops at the first node whose hash is still valid, so a stale node below
// a valid one is not reached, and it marks no parents.
func (t *Tree) FixIncompleteHashes(id NodeID) {
	n := t.nodes[id]
	if n.Depth != 0 {
		return
	}
	for _, c := range n.Children {
		t.FixIncompleteHashes(c)
	}
	t.Rehash(id, true)
}
