package bytecode

import (
	"errors"
	"fmt"

	"github.com/luxfi/mpc/pkg/ir"
)

// Errors returned by Lower.
var (
	// ErrBytecodeElementNotCreated means an operand reference could not be
	// resolved — the IR was not well topologically sorted.
	ErrBytecodeElementNotCreated = errors.New("bytecode: operand referenced before it was created")
	// ErrUnsupportedIR is returned for IR the lowering pass knows it cannot
	// handle: currently, any program containing a first-class function
	// value. Rejecting is deliberate — closure-lowering semantics are
	// unresolved upstream, and guessing at them here would bake in the
	// wrong answer.
	ErrUnsupportedIR = errors.New("bytecode: higher-order function lowering is not supported")
)

// scope maps an ir.NodeID, in the current inlining context, to the bytecode
// Address already assigned to it.
type scope struct {
	parent   *scope
	bindings map[ir.NodeID]Address
	// params holds the caller-provided addresses for a Callee's Param nodes,
	// only set inside a Call's inlined scope.
	params []Address
}

func newScope(parent *scope) *scope {
	return &scope{parent: parent, bindings: make(map[ir.NodeID]Address)}
}

func (s *scope) lookup(id ir.NodeID) (Address, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if a, ok := cur.bindings[id]; ok {
			return a, true
		}
	}
	return 0, false
}

// Lower flattens prog into a topologically addressed Program, inlining Call
// nodes and deduplicating LiteralRef/Load references encountered through
// different inlining paths (so the same literal or input is never emitted
// twice at different addresses).
func Lower(prog *ir.Program) (*Program, error) {
	if err := rejectHigherOrder(prog); err != nil {
		return nil, err
	}

	l := &lowering{
		out:        &Program{Inputs: map[string]Address{}, Outputs: map[string]Address{}},
		literalMemo: map[string]Address{},
		loadMemo:    map[ir.NodeID]Address{},
	}
	root := newScope(nil)
	for _, n := range prog.Nodes {
		if _, err := l.lowerNode(n, root); err != nil {
			return nil, err
		}
	}
	for name, id := range prog.Inputs {
		addr, ok := root.lookup(id)
		if !ok {
			return nil, fmt.Errorf("%w: input %q", ErrBytecodeElementNotCreated, name)
		}
		l.out.Inputs[name] = addr
	}
	for name, id := range prog.Outputs {
		addr, ok := root.lookup(id)
		if !ok {
			return nil, fmt.Errorf("%w: output %q", ErrBytecodeElementNotCreated, name)
		}
		l.out.Outputs[name] = addr
	}
	return l.out, nil
}

func rejectHigherOrder(prog *ir.Program) error {
	for _, n := range prog.Nodes {
		if n.Op == ir.FunctionValue {
			return ErrUnsupportedIR
		}
		if n.Callee != nil {
			if err := rejectHigherOrder(n.Callee); err != nil {
				return err
			}
		}
	}
	return nil
}

type lowering struct {
	out         *Program
	literalMemo map[string]Address // key: tag+bytes
	loadMemo    map[ir.NodeID]Address
}

func (l *lowering) emit(op Operation) Address {
	op.Addr = Address(len(l.out.Ops))
	l.out.Ops = append(l.out.Ops, op)
	return op.Addr
}

// lowerNode lowers a single node (and, transitively, a Call's inlined
// callee) within the given scope, returning the bytecode address it was
// assigned (or was already assigned to, if deduplicated).
func (l *lowering) lowerNode(n *ir.Node, sc *scope) (Address, error) {
	if addr, ok := sc.lookup(n.ID); ok {
		return addr, nil
	}

	switch n.Op {
	case ir.Param:
		if n.ParamIndex < 0 || n.ParamIndex >= len(sc.params) {
			return 0, fmt.Errorf("%w: param index %d out of range", ErrBytecodeElementNotCreated, n.ParamIndex)
		}
		addr := sc.params[n.ParamIndex]
		sc.bindings[n.ID] = addr
		return addr, nil

	case ir.Call:
		if n.Callee == nil {
			return 0, fmt.Errorf("%w: call node missing callee", ErrBytecodeElementNotCreated)
		}
		operandAddrs, err := l.resolveOperands(n, sc)
		if err != nil {
			return 0, err
		}
		calleeScope := newScope(nil)
		calleeScope.params = operandAddrs
		var last Address
		for _, calleeNode := range n.Callee.Nodes {
			last, err = l.lowerNode(calleeNode, calleeScope)
			if err != nil {
				return 0, err
			}
		}
		sc.bindings[n.ID] = last
		return last, nil

	case ir.LiteralRef:
		key := literalKey(n.Literal)
		if addr, ok := l.literalMemo[key]; ok {
			sc.bindings[n.ID] = addr
			return addr, nil
		}
		addr := l.emit(Operation{Result: n.Type, Kind: ir.LiteralRef, SourceRef: n.SourceRef, Literal: n.Literal})
		l.literalMemo[key] = addr
		sc.bindings[n.ID] = addr
		return addr, nil

	case ir.Load:
		if addr, ok := l.loadMemo[n.ID]; ok {
			sc.bindings[n.ID] = addr
			return addr, nil
		}
		addr := l.emit(Operation{Result: n.Type, Kind: ir.Load, SourceRef: n.SourceRef})
		l.loadMemo[n.ID] = addr
		sc.bindings[n.ID] = addr
		return addr, nil

	default:
		operandAddrs, err := l.resolveOperands(n, sc)
		if err != nil {
			return 0, err
		}
		addr := l.emit(Operation{Result: n.Type, Kind: n.Op, Operands: operandAddrs, SourceRef: n.SourceRef})
		sc.bindings[n.ID] = addr
		return addr, nil
	}
}

func (l *lowering) resolveOperands(n *ir.Node, sc *scope) ([]Address, error) {
	addrs := make([]Address, len(n.Operands))
	for i, opID := range n.Operands {
		addr, ok := sc.lookup(opID)
		if !ok {
			return nil, fmt.Errorf("%w: node %d operand %d", ErrBytecodeElementNotCreated, n.ID, opID)
		}
		addrs[i] = addr
	}
	return addrs, nil
}

func literalKey(lit *ir.Literal) string {
	if lit == nil {
		return ""
	}
	return fmt.Sprintf("%d:%x", lit.Tag, lit.Bytes)
}
