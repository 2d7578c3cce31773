// Package ir defines the mid-level intermediate representation this module
// accepts as input: a directed acyclic graph of typed operations, produced
// by a language front-end that lives outside this repository.
// pkg/bytecode's Lower function flattens an ir.Program into addressable
// bytecode; that lowering is the first stage of the compilation pipeline.
package ir

import "github.com/luxfi/mpc/pkg/party"

// Visibility distinguishes a secret-shared value from a publicly known one.
type Visibility int

const (
	Secret Visibility = iota
	Public
)

// Kind names the scalar shape of a value; the bytecode→protocol dispatch in
// pkg/compile is keyed on (Kind, Visibility) tuples of an operation's
// operands.
type Kind int

const (
	Integer Kind = iota
	Unsigned
	Boolean
)

// ValueType is the full type of a node's result: its shape plus whether it
// is secret-shared or public.
type ValueType struct {
	Kind       Kind
	Visibility Visibility
}

// OpKind enumerates every node kind the IR can express. The IR and the
// bytecode share this vocabulary; only the addressing scheme differs
// between them.
type OpKind int

const (
	Load OpKind = iota
	LiteralRef
	Not
	Reveal
	PublicKeyDerive
	Addition
	Subtraction
	Multiplication
	Division
	Modulo
	Power
	LeftShift
	RightShift
	TruncPr
	Equals
	LessThan
	PublicOutputEquality
	InnerProduct
	EcdsaSign
	EddsaSign
	IfElse
	New
	Get
	Random
	// Call is not itself a bytecode kind: pkg/bytecode.Lower inlines it away
	// by substituting the callee body's Param references with the caller's
	// already-resolved operand addresses.
	Call
	// Param is a placeholder inside a function body, standing for the
	// i-th argument at the call site; only legal inside a Callee.
	Param
	// FunctionValue marks a node that produces a function as a first-class
	// value (as opposed to Call's immediate, statically-known callee).
	// Lowering rejects any program containing one; closure-lowering
	// semantics are unresolved upstream.
	FunctionValue
)

// NodeID indexes a node within a single Program.
type NodeID int

// Node is one operation in the DAG.
type Node struct {
	ID       NodeID
	Op       OpKind
	Type     ValueType
	Operands []NodeID
	// SourceRef indexes into an out-of-band source map for diagnostics; the
	// core only threads it through, never interprets it.
	SourceRef int

	// Literal is populated for LiteralRef nodes: the constant's encoded
	// little-endian bytes plus its modulus tag, exactly as pkg/field.Encoded
	// carries it across a process boundary.
	Literal *Literal

	// Callee is populated for Call nodes: the function body to inline,
	// addressed relative to its own Param nodes.
	Callee *Program

	// ParamIndex is populated for Param nodes: which positional argument of
	// the enclosing Call this placeholder stands for.
	ParamIndex int
}

// Literal is a constant value embedded directly in the program.
type Literal struct {
	Tag   uint8 // field.Tag, duplicated here to avoid an import cycle with pkg/field
	Bytes []byte
}

// Program is a topologically sorted operation DAG: every node's Operands
// reference only nodes already seen earlier in Nodes (or nodes in an
// enclosing Callee's own Nodes, for Param references). This ordering
// invariant is what makes the C3 lowering a single linear pass.
type Program struct {
	Nodes []*Node

	// Inputs maps an input name to the node producing its value, and
	// records which party binding supplies it.
	Inputs map[string]NodeID
	// Outputs maps an output name to the node whose value is exposed under
	// it, and which parties are authorized recipients.
	Outputs map[string]NodeID
	// PartyBindings maps an input or output name to the party that
	// supplies it (for inputs) or may receive it (for outputs).
	PartyBindings map[string]party.ID
}

// NodeByID returns the node with the given ID, or nil if not found.
func (p *Program) NodeByID(id NodeID) *Node {
	for _, n := range p.Nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}
