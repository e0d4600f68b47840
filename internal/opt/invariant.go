package opt

import "fmt"

// CheckInvariants walks the DAG reachable from root and reports every
// violation of I1-I4 it finds, for use from tests and debug tooling — it
// never panics or mutates, mirroring the original's DumpParam/DumpParams
// debug dumpers in spirit rather than the original's C++ assert() calls.
func CheckInvariants(t *Tree, root NodeID) []string {
	var problems []string
	visited := make(map[NodeID]bool)
	var walk func(id NodeID)
	walk = func(id NodeID) {
		if visited[id] {
			return
		}
		visited[id] = true
		n := t.nodes[id]

		if n.Opcode.isSugar() {
			problems = append(problems, fmt.Sprintf("I1: node %d has sugar opcode %s", id, n.Opcode))
		}
		if n.Depth == 0 {
			problems = append(problems, fmt.Sprintf("I4: node %d has an incomplete hash", id))
		}
		if n.Opcode.IsCommutative() {
			for i := 1; i < len(n.Children); i++ {
				if t.less(n.Children[i], n.Children[i-1]) {
					problems = append(problems, fmt.Sprintf("I2: node %d's children are not in canonical order", id))
					break
				}
			}
		}
		if n.Opcode.IsComparison() && len(n.Children) == 2 {
			if t.less(n.Children[1], n.Children[0]) {
				problems = append(problems, fmt.Sprintf("I3: node %d's comparison operands are not canonicalized", id))
			}
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	if root != noneID {
		walk(root)
	}
	return problems
}

// DumpParam renders a single node (opcode and payload, no children) for
// debug output.
func DumpParam(t *Tree, id NodeID) string {
	n := t.nodes[id]
	switch n.PKind {
	case PayloadImmed:
		return fmt.Sprintf("%g", n.Num)
	case PayloadVar:
		return fmt.Sprintf("Var%d", n.Index)
	case PayloadCallee:
		return fmt.Sprintf("%s#%d", n.Opcode, n.Index)
	default:
		return n.Opcode.String()
	}
}

// DumpParams renders id's full subtree as an s-expression-like string.
func DumpParams(t *Tree, id NodeID) string {
	n := t.nodes[id]
	if len(n.Children) == 0 {
		return DumpParam(t, id)
	}
	s := "(" + n.Opcode.String()
	for _, c := range n.Children {
		s += " " + DumpParams(t, c)
	}
	return s + ")"
}
