// Package vm is the "bytecode evaluator" spec.md §1 treats as an external
// collaborator: it executes an opt.Program — the register-addressed form
// internal/opt both lifts from and lowers back to — against a positional
// slice of variable values. Every instruction reads its operands by slot
// and writes its result to its Dst slot; spec.md §6's Dup becomes, in this
// register encoding, simply reading the same slot more than once, while
// Fetch (slot copy) and Jump (If's conditional skip) are retained as real
// opcodes. The root expression's value is whatever ended up in
// Program.RootSlot.
package vm

import (
	"fmt"
	"math"

	"exprfold/internal/ast"
	"exprfold/internal/errors"
	"exprfold/internal/opt"
)

// Callback is a host-supplied function a program's OpFCall/OpPCall
// instructions may invoke, indexed positionally exactly as the Callback
// table compile.Compile produced alongside the program.
type Callback func(args []float64) float64

// Error is a structured runtime diagnostic (spec.md §7's two failure
// modes plus the slot/callback-table shape mismatches particular to this
// port), rendered through the same CompilerError machinery parse/compile
// errors use.
type Error struct {
	errors.CompilerError
}

func (e *Error) Error() string { return e.Message }

func runtimeErr(code, msg string) *Error {
	return &Error{errors.NewSemanticError(code, msg, ast.Position{}).Build()}
}

// Run evaluates prog against vars (bound positionally, prog.NumVars wide)
// and callbacks (indexed by the OpFCall/OpPCall Callee field). Besides one
// register slice sized to the instruction count, it allocates only the
// argument slice passed to each callback call (and an Error on failure).
// Control flow is a straight-line walk except for OpJump, which the
// emitter uses for If's conditional-skip sequence: with an argument it
// jumps to Target when that slot holds zero, without one unconditionally —
// so an untaken branch (and any callback inside it) is never evaluated.
func Run(prog *opt.Program, vars []float64, callbacks []Callback) (float64, error) {
	if len(vars) != prog.NumVars {
		return 0, runtimeErr(errors.ErrorVariableCountMismatch,
			fmt.Sprintf("program expects %d variable(s), got %d", prog.NumVars, len(vars)))
	}

	regs := make([]float64, len(prog.Instrs))
	for pc := 0; pc < len(prog.Instrs); pc++ {
		ins := prog.Instrs[pc]
		if ins.Op == opt.OpJump {
			if ins.Target < 0 || ins.Target > len(prog.Instrs) {
				return 0, runtimeErr(errors.ErrorUnsupportedOpcode, "jump target out of range")
			}
			if len(ins.Args) == 0 || regs[ins.Args[0]] == 0 {
				pc = ins.Target - 1
			}
			continue
		}
		v, err := step(ins, regs, vars, callbacks)
		if err != nil {
			return 0, err
		}
		regs[ins.Dst] = v
	}
	if prog.RootSlot < 0 || prog.RootSlot >= len(regs) {
		return 0, runtimeErr(errors.ErrorUnsupportedOpcode, "program root slot out of range")
	}
	return regs[prog.RootSlot], nil
}

func step(ins opt.Instr, regs, vars []float64, callbacks []Callback) (float64, error) {
	arg := func(i int) float64 { return regs[ins.Args[i]] }

	switch ins.Op {
	case opt.OpImmed:
		return ins.Imm, nil
	case opt.OpVar:
		if ins.Var < 0 || ins.Var >= len(vars) {
			return 0, runtimeErr(errors.ErrorVariableCountMismatch, "variable index out of range")
		}
		return vars[ins.Var], nil

	case opt.OpAdd:
		sum := 0.0
		for i := range ins.Args {
			sum += arg(i)
		}
		return sum, nil
	case opt.OpMul:
		prod := 1.0
		for i := range ins.Args {
			prod *= arg(i)
		}
		return prod, nil
	case opt.OpSub:
		return arg(0) - arg(1), nil
	case opt.OpRSub:
		return arg(1) - arg(0), nil
	case opt.OpDiv:
		return arg(0) / arg(1), nil
	case opt.OpRDiv:
		return arg(1) / arg(0), nil
	case opt.OpMod:
		return math.Mod(arg(0), arg(1)), nil
	case opt.OpNeg:
		return -arg(0), nil
	case opt.OpInv:
		return 1 / arg(0), nil
	case opt.OpSqr:
		return arg(0) * arg(0), nil
	case opt.OpPow:
		return math.Pow(arg(0), arg(1)), nil
	case opt.OpRPow:
		return math.Pow(arg(1), arg(0)), nil
	case opt.OpSqrt:
		return math.Sqrt(arg(0)), nil
	case opt.OpRSqrt:
		return 1 / math.Sqrt(arg(0)), nil
	case opt.OpExp:
		return math.Exp(arg(0)), nil
	case opt.OpExp2:
		return math.Exp2(arg(0)), nil
	case opt.OpLog:
		return math.Log(arg(0)), nil
	case opt.OpLog2:
		return math.Log2(arg(0)), nil
	case opt.OpLog10:
		return math.Log10(arg(0)), nil

	case opt.OpAbs:
		return math.Abs(arg(0)), nil
	case opt.OpCeil:
		return math.Ceil(arg(0)), nil
	case opt.OpFloor:
		return math.Floor(arg(0)), nil
	case opt.OpInt:
		return math.Round(arg(0)), nil
	case opt.OpMin:
		m := arg(0)
		for i := 1; i < len(ins.Args); i++ {
			if v := arg(i); v < m {
				m = v
			}
		}
		return m, nil
	case opt.OpMax:
		m := arg(0)
		for i := 1; i < len(ins.Args); i++ {
			if v := arg(i); v > m {
				m = v
			}
		}
		return m, nil

	case opt.OpSin:
		return math.Sin(arg(0)), nil
	case opt.OpCos:
		return math.Cos(arg(0)), nil
	case opt.OpTan:
		return math.Tan(arg(0)), nil
	case opt.OpCot:
		return 1 / math.Tan(arg(0)), nil
	case opt.OpSec:
		return 1 / math.Cos(arg(0)), nil
	case opt.OpCsc:
		return 1 / math.Sin(arg(0)), nil
	case opt.OpAsin:
		return math.Asin(arg(0)), nil
	case opt.OpAcos:
		return math.Acos(arg(0)), nil
	case opt.OpAtan:
		return math.Atan(arg(0)), nil
	case opt.OpAtan2:
		return math.Atan2(arg(0), arg(1)), nil
	case opt.OpSinh:
		return math.Sinh(arg(0)), nil
	case opt.OpCosh:
		return math.Cosh(arg(0)), nil
	case opt.OpTanh:
		return math.Tanh(arg(0)), nil
	case opt.OpAsinh:
		return math.Asinh(arg(0)), nil
	case opt.OpAcosh:
		return math.Acosh(arg(0)), nil
	case opt.OpAtanh:
		return math.Atanh(arg(0)), nil
	case opt.OpDeg:
		return arg(0) * 180 / math.Pi, nil
	case opt.OpRad:
		return arg(0) * math.Pi / 180, nil

	case opt.OpEqual:
		return boolf(arg(0) == arg(1)), nil
	case opt.OpNEqual:
		return boolf(arg(0) != arg(1)), nil
	case opt.OpLess:
		return boolf(arg(0) < arg(1)), nil
	case opt.OpLessOrEq:
		return boolf(arg(0) <= arg(1)), nil
	case opt.OpGreater:
		return boolf(arg(0) > arg(1)), nil
	case opt.OpGreaterOrEq:
		return boolf(arg(0) >= arg(1)), nil
	case opt.OpNot:
		return boolf(arg(0) == 0), nil
	case opt.OpNotNot:
		return boolf(arg(0) != 0), nil
	case opt.OpAnd:
		for i := range ins.Args {
			if arg(i) == 0 {
				return 0, nil
			}
		}
		return 1, nil
	case opt.OpOr:
		for i := range ins.Args {
			if arg(i) != 0 {
				return 1, nil
			}
		}
		return 0, nil

	case opt.OpIf:
		// Naive (pre-optimization) programs encode If as an eager select;
		// the optimizer's emitter lowers it to the OpJump sequence instead.
		if arg(0) != 0 {
			return arg(1), nil
		}
		return arg(2), nil
	case opt.OpFetch:
		return arg(0), nil

	case opt.OpFCall, opt.OpPCall:
		if ins.Callee < 0 || ins.Callee >= len(callbacks) || callbacks[ins.Callee] == nil {
			return 0, runtimeErr(errors.ErrorUnboundCallback, fmt.Sprintf("callback index %d has no entry", ins.Callee))
		}
		args := make([]float64, len(ins.Args))
		for i := range ins.Args {
			args[i] = arg(i)
		}
		return callbacks[ins.Callee](args), nil

	default:
		return 0, runtimeErr(errors.ErrorUnsupportedOpcode, fmt.Sprintf("vm: unsupported opcode %s", ins.Op))
	}
}

func boolf(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
