// Package builtins carries the table of built-in function names fparser.hh
// ships (alphabetically, with fixed arity), mapping each to the opcode the
// compiler should emit for a call with that name.
package builtins

import "exprfold/internal/opt"

// Function describes a built-in callable recognized by the compiler.
type Function struct {
	Name   string
	Opcode opt.Opcode
	Arity  int // -1 means variadic (min 1)
}

// Table is keyed by lower-case function name, mirroring fparser.hh's
// alphabetically sorted FuncDefinition array.
var Table = map[string]Function{
	"abs":   {"abs", opt.OpAbs, 1},
	"acos":  {"acos", opt.OpAcos, 1},
	"acosh": {"acosh", opt.OpAcosh, 1},
	"asin":  {"asin", opt.OpAsin, 1},
	"asinh": {"asinh", opt.OpAsinh, 1},
	"atan":  {"atan", opt.OpAtan, 1},
	"atan2": {"atan2", opt.OpAtan2, 2},
	"atanh": {"atanh", opt.OpAtanh, 1},
	"ceil":  {"ceil", opt.OpCeil, 1},
	"cos":   {"cos", opt.OpCos, 1},
	"cosh":  {"cosh", opt.OpCosh, 1},
	"cot":   {"cot", opt.OpCot, 1},
	"csc":   {"csc", opt.OpCsc, 1},
	"deg":   {"deg", opt.OpDeg, 1},
	"exp":   {"exp", opt.OpExp, 1},
	"exp2":  {"exp2", opt.OpExp2, 1},
	"floor": {"floor", opt.OpFloor, 1},
	"if":    {"if", opt.OpIf, 3},
	"int":   {"int", opt.OpInt, 1},
	"log":   {"log", opt.OpLog, 1},
	"log10": {"log10", opt.OpLog10, 1},
	"log2":  {"log2", opt.OpLog2, 1},
	"max":   {"max", opt.OpMax, -1},
	"min":   {"min", opt.OpMin, -1},
	"mod":   {"mod", opt.OpMod, 2},
	"pow":   {"pow", opt.OpPow, 2},
	"rad":   {"rad", opt.OpRad, 1},
	"sec":   {"sec", opt.OpSec, 1},
	"sin":   {"sin", opt.OpSin, 1},
	"sinh":  {"sinh", opt.OpSinh, 1},
	"sqrt":  {"sqrt", opt.OpSqrt, 1},
	"tan":   {"tan", opt.OpTan, 1},
	"tanh":  {"tanh", opt.OpTanh, 1},
}

// Lookup returns the built-in function definition for name, if any.
func Lookup(name string) (Function, bool) {
	f, ok := Table[name]
	return f, ok
}

// Names returns every built-in function name, for "did you mean" suggestions
// when a call resolves to neither a built-in nor a registered callback.
func Names() []string {
	names := make([]string, 0, len(Table))
	for name := range Table {
		names = append(names, name)
	}
	return names
}
