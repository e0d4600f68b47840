// Package compile is the "source-text parser that builds the initial
// bytecode and immediate table" spec.md §1 names as an external
// collaborator: it walks an internal/ast expression tree, binds variable
// names to positional slots, resolves calls against internal/builtins (or
// a caller-supplied callback table), and emits a naive, unoptimized
// opt.Program — one instruction per AST node, no sharing, no algebraic
// rewriting. internal/opt.Optimize is what turns this into something
// worth running.
package compile

import (
	"exprfold/internal/ast"
	"exprfold/internal/builtins"
	"exprfold/internal/errors"
	"exprfold/internal/opt"
)

// Callback describes a user-registered function a formula may call by
// name, resolved when the name is not one of internal/builtins' table
// (spec.md §6, "a list of user callback descriptors").
type Callback struct {
	Name  string
	Arity int // -1 means variadic (min 1), matching builtins.Function.Arity
}

// Diagnostics collects every error and warning compile.Compile produced.
// Errors being non-empty means the returned *Result is not safe to run.
type Diagnostics struct {
	Errors   []errors.CompilerError
	Warnings []errors.CompilerError
}

func (d Diagnostics) OK() bool { return len(d.Errors) == 0 }

// Result is the compiled snapshot: a naive bytecode program, the variable
// names it was bound against (positionally), and the callback table any
// OpFCall/OpPCall in the program indexes into.
type Result struct {
	Program   *opt.Program
	VarNames  []string
	Callbacks []opt.Callback
}

type compiler struct {
	varIndex     map[string]int
	varNames     []string
	varUsed      []bool
	callbacks    map[string]Callback
	calleeOrder  map[string]int
	instrs       []opt.Instr
	diags        Diagnostics
}

// Compile binds expr's free variables against varNames by position and
// lowers it into an opt.Program. callbacks registers additional callable
// names beyond internal/builtins' table (e.g. host-supplied functions);
// a name present in both builtins and callbacks resolves to the builtin,
// since the builtins table is consulted first: such a callback is never
// called and no diagnostic is reported. CallbackArityConflict fires only
// for a callback name registered more than once with conflicting arity.
func Compile(expr ast.Expr, varNames []string, callbacks []Callback) (*Result, Diagnostics) {
	c := &compiler{
		varIndex:    make(map[string]int, len(varNames)),
		varNames:    varNames,
		varUsed:     make([]bool, len(varNames)),
		callbacks:   make(map[string]Callback, len(callbacks)),
		calleeOrder: make(map[string]int, len(callbacks)),
	}
	for i, name := range varNames {
		c.varIndex[name] = i
	}
	for _, cb := range callbacks {
		if prev, ok := c.callbacks[cb.Name]; ok && prev.Arity != cb.Arity {
			c.diags.Errors = append(c.diags.Errors, errors.CallbackArityConflict(cb.Name, prev.Arity, cb.Arity))
			continue
		}
		if _, ok := c.callbacks[cb.Name]; !ok {
			c.calleeOrder[cb.Name] = len(c.calleeOrder)
		}
		c.callbacks[cb.Name] = cb
	}

	root := c.compileExpr(expr)

	for i, name := range varNames {
		if !c.varUsed[i] {
			c.diags.Warnings = append(c.diags.Warnings, errors.UnusedVariable(name, ast.Position{}))
		}
	}

	if !c.diags.OK() {
		return nil, c.diags
	}

	cbTable := make([]opt.Callback, len(c.calleeOrder))
	for name, idx := range c.calleeOrder {
		cbTable[idx] = opt.Callback{Name: name, Arity: c.callbacks[name].Arity}
	}

	return &Result{
		Program:   &opt.Program{Instrs: c.instrs, RootSlot: root, NumVars: len(varNames)},
		VarNames:  varNames,
		Callbacks: cbTable,
	}, c.diags
}

// emit appends an instruction and returns its destination slot.
func (c *compiler) emit(op opt.Opcode, args ...int) int {
	dst := len(c.instrs)
	c.instrs = append(c.instrs, opt.Instr{Op: op, Dst: dst, Args: args})
	return dst
}

func (c *compiler) emitImmed(v float64) int {
	dst := len(c.instrs)
	c.instrs = append(c.instrs, opt.Instr{Op: opt.OpImmed, Dst: dst, Imm: v})
	return dst
}

func (c *compiler) emitVar(index int) int {
	dst := len(c.instrs)
	c.instrs = append(c.instrs, opt.Instr{Op: opt.OpVar, Dst: dst, Var: index})
	return dst
}

func (c *compiler) emitCall(op opt.Opcode, callee int, args ...int) int {
	dst := len(c.instrs)
	c.instrs = append(c.instrs, opt.Instr{Op: op, Dst: dst, Args: args, Callee: callee})
	return dst
}

func (c *compiler) errAt(err errors.CompilerError) int {
	c.diags.Errors = append(c.diags.Errors, err)
	return c.emitImmed(0) // placeholder slot so the caller can keep walking for more diagnostics
}

func (c *compiler) compileExpr(e ast.Expr) int {
	switch n := e.(type) {
	case *ast.LiteralExpr:
		return c.emitImmed(n.Value)
	case *ast.IdentExpr:
		idx, ok := c.varIndex[n.Name]
		if !ok {
			return c.errAt(errors.UndefinedVariable(n.Name, n.Pos, c.varNames))
		}
		c.varUsed[idx] = true
		return c.emitVar(idx)
	case *ast.ParenExpr:
		return c.compileExpr(n.Value)
	case *ast.UnaryExpr:
		return c.compileUnary(n)
	case *ast.BinaryExpr:
		return c.compileBinary(n)
	case *ast.CallExpr:
		return c.compileCall(n)
	case *ast.BadExpr:
		return c.errAt(errors.NewSemanticError(errors.ErrorSyntax, n.Message, n.Pos).Build())
	default:
		return c.errAt(errors.NewSemanticError(errors.ErrorSyntax, "unrecognized expression node", ast.Position{}).Build())
	}
}

func (c *compiler) compileUnary(n *ast.UnaryExpr) int {
	v := c.compileExpr(n.Value)
	switch n.Op {
	case "-":
		return c.emit(opt.OpNeg, v)
	case "!":
		return c.emit(opt.OpNot, v)
	default:
		return c.errAt(errors.NewSemanticError(errors.ErrorSyntax, "unknown unary operator '"+n.Op+"'", n.Pos).Build())
	}
}

var binaryOpcode = map[string]opt.Opcode{
	"+": opt.OpAdd, "-": opt.OpSub, "*": opt.OpMul, "/": opt.OpDiv, "%": opt.OpMod, "^": opt.OpPow,
	"<": opt.OpLess, "<=": opt.OpLessOrEq, ">": opt.OpGreater, ">=": opt.OpGreaterOrEq,
	"==": opt.OpEqual, "!=": opt.OpNEqual, "&&": opt.OpAnd, "||": opt.OpOr,
}

func (c *compiler) compileBinary(n *ast.BinaryExpr) int {
	op, ok := binaryOpcode[n.Op]
	if !ok {
		return c.errAt(errors.NewSemanticError(errors.ErrorSyntax, "unknown binary operator '"+n.Op+"'", n.Pos).Build())
	}
	l := c.compileExpr(n.Left)
	r := c.compileExpr(n.Right)
	return c.emit(op, l, r)
}

func (c *compiler) compileCall(n *ast.CallExpr) int {
	if n.Callee == "eval" {
		return c.errAt(errors.ReservedFunction(n.Callee, n.Pos))
	}

	if fn, ok := builtins.Lookup(n.Callee); ok {
		if fn.Arity >= 0 && len(n.Args) != fn.Arity {
			return c.errAt(errors.ArityMismatch(n.Callee, fn.Arity, len(n.Args), n.Pos))
		}
		if fn.Arity < 0 && len(n.Args) < 1 {
			return c.errAt(errors.ArityMismatch(n.Callee, 1, len(n.Args), n.Pos))
		}
		args := c.compileArgs(n.Args)
		return c.emit(fn.Opcode, args...)
	}

	if cb, ok := c.callbacks[n.Callee]; ok {
		if cb.Arity >= 0 && len(n.Args) != cb.Arity {
			return c.errAt(errors.ArityMismatch(n.Callee, cb.Arity, len(n.Args), n.Pos))
		}
		args := c.compileArgs(n.Args)
		return c.emitCall(opt.OpFCall, c.calleeIndex(n.Callee), args...)
	}

	return c.errAt(errors.UndefinedFunction(n.Callee, n.Pos, builtins.Names()))
}

func (c *compiler) compileArgs(args []ast.Expr) []int {
	slots := make([]int, len(args))
	for i, a := range args {
		slots[i] = c.compileExpr(a)
	}
	return slots
}

// calleeIndex returns a stable index for a callback name, ordered by first
// registration (the order Compile received callbacks in) so it matches
// Result.Callbacks' slot order regardless of map iteration order.
func (c *compiler) calleeIndex(name string) int {
	if i, ok := c.calleeOrder[name]; ok {
		return i
	}
	return -1
}
