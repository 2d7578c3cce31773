// Package bytecode defines the flat, addressable program form C3 produces
// from an ir.Program, and the Lower pass that performs the translation.
package bytecode

import "github.com/luxfi/mpc/pkg/ir"

// Address is a memory address: bytecode operations reference their operands
// exclusively by address, never by ir.NodeID, which lets C6 use a plain
// slice as the VM's memory.
type Address int

// OpKind mirrors ir.OpKind, minus the IR-only Call/Param/FunctionValue
// kinds, which Lower fully resolves away.
type OpKind = ir.OpKind

// Operation is one flattened instruction.
type Operation struct {
	Addr      Address
	Result    ir.ValueType
	Kind      OpKind
	Operands  []Address
	SourceRef int
	Literal   *ir.Literal
}

// Program is the output of C3: a linear, topologically sorted instruction
// sequence with explicit memory addresses, ready for C4 to lower further
// into a protocol graph.
type Program struct {
	Ops     []Operation
	Inputs  map[string]Address
	Outputs map[string]Address
}

// OperandTypes resolves the ValueType of each of op's operands by looking
// them up in prog's already-emitted instructions (valid because Ops is
// topologically sorted: every operand's producing instruction appears
// earlier in the slice).
func (prog *Program) OperandTypes(op Operation) []ir.ValueType {
	types := make([]ir.ValueType, len(op.Operands))
	for i, addr := range op.Operands {
		types[i] = prog.Ops[addr].Result
	}
	return types
}
