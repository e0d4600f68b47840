package vm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exprfold/internal/opt"
	"exprfold/internal/vm"
)

func program(instrs []opt.Instr, root, numVars int) *opt.Program {
	return &opt.Program{Instrs: instrs, RootSlot: root, NumVars: numVars}
}

func TestRunArithmetic(t *testing.T) {
	// (x + 1) * 2
	prog := program([]opt.Instr{
		{Op: opt.OpVar, Dst: 0, Var: 0},
		{Op: opt.OpImmed, Dst: 1, Imm: 1},
		{Op: opt.OpAdd, Dst: 2, Args: []int{0, 1}},
		{Op: opt.OpImmed, Dst: 3, Imm: 2},
		{Op: opt.OpMul, Dst: 4, Args: []int{2, 3}},
	}, 4, 1)

	got, err := vm.Run(prog, []float64{3}, nil)
	require.NoError(t, err)
	assert.InDelta(t, 8.0, got, 1e-9)
}

func TestRunIfSelectsCorrectBranch(t *testing.T) {
	// if(x < 0, -x, x)
	prog := program([]opt.Instr{
		{Op: opt.OpVar, Dst: 0, Var: 0},
		{Op: opt.OpImmed, Dst: 1, Imm: 0},
		{Op: opt.OpLess, Dst: 2, Args: []int{0, 1}},
		{Op: opt.OpNeg, Dst: 3, Args: []int{0}},
		{Op: opt.OpIf, Dst: 4, Args: []int{2, 3, 0}},
	}, 4, 1)

	got, err := vm.Run(prog, []float64{-5}, nil)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, got, 1e-9)

	got, err = vm.Run(prog, []float64{5}, nil)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, got, 1e-9)
}

func TestRunVariableCountMismatch(t *testing.T) {
	prog := program([]opt.Instr{{Op: opt.OpVar, Dst: 0, Var: 0}}, 0, 1)
	_, err := vm.Run(prog, []float64{1, 2}, nil)
	require.Error(t, err)
	var vmErr *vm.Error
	require.ErrorAs(t, err, &vmErr)
	assert.Equal(t, "E0600", vmErr.Code)
}

func TestRunCallbackInvocation(t *testing.T) {
	// score(x, y)
	prog := program([]opt.Instr{
		{Op: opt.OpVar, Dst: 0, Var: 0},
		{Op: opt.OpVar, Dst: 1, Var: 1},
		{Op: opt.OpFCall, Dst: 2, Args: []int{0, 1}, Callee: 0},
	}, 2, 2)

	got, err := vm.Run(prog, []float64{3, 4}, []vm.Callback{
		func(args []float64) float64 { return args[0] + args[1] },
	})
	require.NoError(t, err)
	assert.InDelta(t, 7.0, got, 1e-9)
}

func TestRunUnboundCallback(t *testing.T) {
	prog := program([]opt.Instr{
		{Op: opt.OpImmed, Dst: 0, Imm: 1},
		{Op: opt.OpFCall, Dst: 1, Args: []int{0}, Callee: 2},
	}, 1, 0)

	_, err := vm.Run(prog, nil, nil)
	require.Error(t, err)
	var vmErr *vm.Error
	require.ErrorAs(t, err, &vmErr)
	assert.Equal(t, "E0601", vmErr.Code)
}

func TestRunUnsupportedOpcode(t *testing.T) {
	prog := program([]opt.Instr{
		{Op: opt.OpDup, Dst: 0},
	}, 0, 0)

	_, err := vm.Run(prog, nil, nil)
	require.Error(t, err)
	var vmErr *vm.Error
	require.ErrorAs(t, err, &vmErr)
	assert.Equal(t, "E0602", vmErr.Code)
}

func TestRunTrigAndTranscendental(t *testing.T) {
	prog := program([]opt.Instr{
		{Op: opt.OpImmed, Dst: 0, Imm: 0},
		{Op: opt.OpSin, Dst: 1, Args: []int{0}},
	}, 1, 0)

	got, err := vm.Run(prog, nil, nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, got, 1e-9)
}
