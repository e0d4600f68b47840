package opt

// Optimize is the top-level entry point (spec.md §6): lift raw bytecode
// into a canonical tree, run the three ordered grammars to a fixed point,
// regroup additive/multiplicative siblings, recreate the sugar shapes
// bytecode execution prefers, and re-emit. The Pipeline of named
// OptimizationPass stages here is repurposed from the teacher compiler's
// ir-package idiom of chaining named passes, rather than a literal port of the original's
// Optimize()/ApplyGrammar() control flow.

// Callback describes one user-registered cFCall/cPCall target: a function
// supplied by the embedder rather than a built-in, referenced from the
// tree by index (spec.md's supplemented cFCall/cPCall support, §4.1).
type Callback struct {
	Name  string
	Arity int
}

// Data is the snapshot Optimize consumes and returns: a compiled program,
// the variable names it was compiled against (for diagnostics and re-
// compilation), and the callback table any OpFCall/OpPCall indexes into.
type Data struct {
	Program   *Program
	VarNames  []string
	Callbacks []Callback
}

// OptimizationPass is one named stage of the pipeline; Optimize runs each
// in sequence over the lifted tree.
type OptimizationPass struct {
	Name string
	Run  func(t *Tree)
}

// Pipeline lists the passes Optimize runs, in order.
var Pipeline = []OptimizationPass{
	{Name: "grammars", Run: func(t *Tree) { runGrammarsToFixpoint(t, t.Root) }},
	{Name: "regroup", Run: func(t *Tree) { regroupToFixpoint(t, t.Root) }},
	{Name: "grammars-final", Run: func(t *Tree) { runGrammarsToFixpoint(t, t.Root) }},
}

// Optimize lifts data.Program, runs the pipeline, and re-emits.
func Optimize(data *Data) *Data {
	t := LiftProgram(data.Program)
	for _, pass := range Pipeline {
		pass.Run(t)
	}
	recreated := t.RecreateInversionsAndNegations(t.Root)
	out := Emit(t, recreated, data.Program.NumVars)
	return &Data{Program: out, VarNames: data.VarNames, Callbacks: data.Callbacks}
}

// runGrammarsToFixpoint walks the DAG bottom-up (each node visited once per
// pipeline pass; sharing across parents is respected via the visited set)
// applying every grammar to each node until none of them match anymore.
// A node is stamped with the grammar it was declared fixed-point against
// (OptimizedBy); any mutation clears the stamp, so an unchanged node
// short-circuits its revisit on later passes.
func runGrammarsToFixpoint(t *Tree, root NodeID) {
	visited := make(map[NodeID]bool)
	var walk func(id NodeID)
	walk = func(id NodeID) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, c := range t.nodes[id].Children {
			walk(c)
		}
		for _, g := range AllGrammars {
			if t.nodes[id].OptimizedBy == g {
				continue
			}
			for ApplyGrammar(t, g, id) {
				for _, c := range t.nodes[id].Children {
					walk(c)
				}
			}
			t.nodes[id].OptimizedBy = g
		}
	}
	walk(root)
}

// regroupToFixpoint applies CollectAddends/CollectFactors bottom-up; each
// can itself produce new Add/Mul nodes (the rebuilt coeff*term products),
// so it loops per node until a pass makes no further change.
func regroupToFixpoint(t *Tree, root NodeID) {
	visited := make(map[NodeID]bool)
	var walk func(id NodeID)
	walk = func(id NodeID) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, c := range t.nodes[id].Children {
			walk(c)
		}
		for {
			n := t.nodes[id]
			var changed bool
			switch n.Opcode {
			case OpAdd:
				changed = t.CollectAddends(id)
				if !changed {
					changed = t.CollectCommonFactors(id)
				}
			case OpMul:
				changed = t.CollectFactors(id)
			}
			if !changed {
				break
			}
			t.Rehash(id, true)
			for _, c := range t.nodes[id].Children {
				walk(c)
			}
		}
	}
	walk(root)
}
