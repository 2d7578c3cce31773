package bytecode

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/mpc/pkg/ir"
)

func intType() ir.ValueType { return ir.ValueType{Kind: ir.Integer, Visibility: ir.Secret} }

func load(id ir.NodeID) *ir.Node {
	return &ir.Node{ID: id, Op: ir.Load, Type: intType()}
}

func bin(id ir.NodeID, op ir.OpKind, a, b ir.NodeID) *ir.Node {
	return &ir.Node{ID: id, Op: op, Type: intType(), Operands: []ir.NodeID{a, b}}
}

func TestLowerAddressIsIndex(t *testing.T) {
	prog := &ir.Program{
		Nodes: []*ir.Node{
			load(0),
			load(1),
			bin(2, ir.Addition, 0, 1),
		},
		Inputs:  map[string]ir.NodeID{"a": 0, "b": 1},
		Outputs: map[string]ir.NodeID{"out": 2},
	}
	out, err := Lower(prog)
	require.NoError(t, err)
	require.Len(t, out.Ops, 3)
	for i, op := range out.Ops {
		require.Equal(t, Address(i), op.Addr)
	}
	require.Equal(t, Address(0), out.Inputs["a"])
	require.Equal(t, Address(1), out.Inputs["b"])
	require.Equal(t, Address(2), out.Outputs["out"])
}

func TestLowerDeduplicatesLiterals(t *testing.T) {
	lit := &ir.Literal{Tag: 1, Bytes: []byte{0x2a}}
	prog := &ir.Program{
		Nodes: []*ir.Node{
			{ID: 0, Op: ir.LiteralRef, Type: intType(), Literal: lit},
			{ID: 1, Op: ir.LiteralRef, Type: intType(), Literal: lit},
			bin(2, ir.Addition, 0, 1),
		},
		Outputs: map[string]ir.NodeID{"out": 2},
	}
	out, err := Lower(prog)
	require.NoError(t, err)
	// Both literal refs dedupe to the same address, so the addition's
	// operands are equal and only one LiteralRef op is ever emitted.
	require.Len(t, out.Ops, 2)
	require.Equal(t, out.Ops[1].Operands[0], out.Ops[1].Operands[1])
}

func TestLowerDeduplicatesLoads(t *testing.T) {
	prog := &ir.Program{
		Nodes: []*ir.Node{
			load(0),
			bin(1, ir.Addition, 0, 0),
		},
		Inputs:  map[string]ir.NodeID{"a": 0},
		Outputs: map[string]ir.NodeID{"out": 1},
	}
	out, err := Lower(prog)
	require.NoError(t, err)
	require.Len(t, out.Ops, 2)
	require.Equal(t, out.Ops[1].Operands[0], out.Ops[1].Operands[1])
}

func TestLowerInlinesCall(t *testing.T) {
	// callee(p0, p1) = p0 + p1
	callee := &ir.Program{
		Nodes: []*ir.Node{
			{ID: 0, Op: ir.Param, Type: intType(), ParamIndex: 0},
			{ID: 1, Op: ir.Param, Type: intType(), ParamIndex: 1},
			bin(2, ir.Addition, 0, 1),
		},
	}
	prog := &ir.Program{
		Nodes: []*ir.Node{
			load(0),
			load(1),
			{ID: 2, Op: ir.Call, Type: intType(), Operands: []ir.NodeID{0, 1}, Callee: callee},
		},
		Inputs:  map[string]ir.NodeID{"a": 0, "b": 1},
		Outputs: map[string]ir.NodeID{"out": 2},
	}
	out, err := Lower(prog)
	require.NoError(t, err)
	// Two loads plus one inlined addition; the Call node itself emits nothing.
	require.Len(t, out.Ops, 3)
	require.Equal(t, ir.Addition, out.Ops[2].Kind)
	require.Equal(t, []Address{0, 1}, out.Ops[2].Operands)
	require.Equal(t, Address(2), out.Outputs["out"])
}

func TestLowerRejectsHigherOrderFunctions(t *testing.T) {
	prog := &ir.Program{
		Nodes: []*ir.Node{
			{ID: 0, Op: ir.FunctionValue, Type: intType()},
		},
	}
	_, err := Lower(prog)
	require.ErrorIs(t, err, ErrUnsupportedIR)
}

func TestLowerReportsUnresolvedOutput(t *testing.T) {
	prog := &ir.Program{
		Nodes:   []*ir.Node{load(0)},
		Outputs: map[string]ir.NodeID{"out": 99},
	}
	_, err := Lower(prog)
	require.ErrorIs(t, err, ErrBytecodeElementNotCreated)
}
