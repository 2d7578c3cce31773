package compile

import (
	"errors"
	"fmt"

	"github.com/luxfi/mpc/pkg/bytecode"
	"github.com/luxfi/mpc/pkg/ir"
)

// ErrOperationNotSupported is returned when an operation's operand-type
// tuple matches no row of the dispatch table.
var ErrOperationNotSupported = errors.New("compile: operation not supported for this operand-type combination")

// Compile lowers a bytecode program into a protocol program, selecting one
// concrete protocol variant per operation by its operand-type tuple and
// accumulating each protocol's declared preprocessing cost.
func Compile(prog *bytecode.Program) (*Program, error) {
	out := &Program{
		Protocols: make([]Protocol, len(prog.Ops)),
		Inputs:    prog.Inputs,
		Outputs:   prog.Outputs,
	}
	for addr, op := range prog.Ops {
		operandTypes := prog.OperandTypes(op)
		proto, err := selectProtocol(prog, bytecode.Address(addr), op, operandTypes)
		if err != nil {
			return nil, err
		}
		out.Protocols[addr] = proto
	}
	return out, nil
}

func isSecret(t ir.ValueType) bool { return t.Visibility == ir.Secret }

func anySecret(types []ir.ValueType) bool {
	for _, t := range types {
		if isSecret(t) {
			return true
		}
	}
	return false
}

func allPublic(types []ir.ValueType) bool { return !anySecret(types) }

// selectProtocol implements the operand-type-directed dispatch table.
// Where both operands are shared over potentially different concrete share
// representations, the caller (the VM's routing state machine) is
// responsible for adapting them to a common type; this pass only records
// which protocol variant applies.
func selectProtocol(prog *bytecode.Program, addr bytecode.Address, op bytecode.Operation, types []ir.ValueType) (Protocol, error) {
	base := Protocol{
		Addr:         addr,
		Operands:     op.Operands,
		Result:       op.Result,
		Requirements: Requirements{},
	}

	switch op.Kind {
	case ir.Load, ir.LiteralRef:
		base.Kind = KindNew
		base.Line = Local
		base.Literal = op.Literal
		return base, nil

	case ir.New:
		base.Kind = KindNew
		base.Line = Local
		return base, nil

	case ir.Get:
		base.Kind = KindGet
		base.Line = Local
		return base, nil

	case ir.Random:
		// Random consumes one preprocessed share from the RandomInteger/
		// RandomBoolean pool rather than running a fresh RAN round inline:
		// the pools exist precisely so that producing one at protocol time
		// is a pop, not a round (protocols/random is the producer side,
		// driven by the preprocessing scheduler, not by the VM).
		base.Kind = KindRandom
		base.Line = Local
		if op.Result.Kind == ir.Boolean {
			base.Requirements[RandomBoolean] = 1
		} else {
			base.Requirements[RandomInteger] = 1
		}
		return base, nil

	case ir.Not:
		base.Kind = KindNot
		base.Line = Local
		return base, nil

	case ir.Reveal:
		base.Kind = KindReveal
		base.Line = Online
		return base, nil

	case ir.PublicKeyDerive:
		base.Kind = KindPublicKeyDerive
		base.Line = Local
		// The derived key is read out of an aux tuple, so one is consumed
		// even though no round runs.
		base.Requirements[EcdsaAuxInfo] = 1
		return base, nil

	case ir.Addition:
		// "any matching" — addition is a local linear combination whether
		// operands are public, secret, or mixed.
		base.Kind = KindAdditionLocal
		base.Line = Local
		return base, nil

	case ir.Subtraction:
		// Same shape as Addition (a local linear combination regardless of
		// which operands are shared), but the VM needs to know the operand
		// order is significant to flip the right sign.
		base.Kind = KindSubtractionLocal
		base.Line = Local
		return base, nil

	case ir.Multiplication:
		switch {
		case allPublic(types):
			base.Kind = KindMultiplicationPublic
			base.Line = Local
		case anySecret(types) && hasPublicOperand(types):
			base.Kind = KindMultiplicationSharePublic
			base.Line = Local
		default:
			// MULT-SHARES extracts its masking randomness inline from the
			// cluster (double sharing + hyper-invertible matrix), so it
			// consumes no preprocessing.
			base.Kind = KindMultiplicationShares
			base.Line = Online
		}
		return base, nil

	case ir.Division:
		return selectDivisionOrModulo(base, types, false)

	case ir.Modulo:
		return selectDivisionOrModulo(base, types, true)

	case ir.Equals:
		if allPublic(types) {
			base.Kind = KindEqualsPublic
			base.Line = Local
			return base, nil
		}
		base.Kind = KindEqualsSecret
		base.Line = Online
		base.Requirements[PrivateOutputEqualityElement] = 1
		return base, nil

	case ir.PublicOutputEquality:
		base.Kind = KindPublicOutputEquality
		base.Line = Online
		base.Requirements[PublicOutputEqualityElement] = 1
		return base, nil

	case ir.IfElse:
		switch {
		case len(types) > 0 && !isSecret(types[0]):
			// condition operand is conventionally types[0]
			base.Kind = KindIfElsePublicCond
			base.Line = Local
		case len(types) >= 3 && !isSecret(types[1]) && !isSecret(types[2]):
			base.Kind = KindIfElsePublicBranches
			base.Line = Local
		default:
			// Reduces to one preprocessing-free MultiplicationShares
			// invocation (cond*(a-b)+b).
			base.Kind = KindIfElseOnline
			base.Line = Online
		}
		return base, nil

	case ir.LessThan:
		base.Kind = KindLessThan
		base.Line = Online
		base.Requirements[Compare] = 1
		return base, nil

	case ir.TruncPr:
		base.Kind = KindTruncPr
		base.Line = Online
		base.Requirements[TruncPrElement] = 1
		return base, nil

	case ir.Power:
		if len(op.Operands) != 2 {
			return Protocol{}, fmt.Errorf("%w: power needs exactly two operands (base, exponent), got %d", ErrOperationNotSupported, len(op.Operands))
		}
		// The exponent must be a compile-time literal so the
		// square-and-multiply schedule is fixed before the first round runs.
		if _, ok := literalUint64(prog.Ops[op.Operands[1]]); !ok {
			return Protocol{}, fmt.Errorf("%w: power's exponent operand must be a compile-time literal", ErrOperationNotSupported)
		}
		base.Kind = KindPower
		base.Line = Online
		return base, nil

	case ir.LeftShift:
		base.Kind = KindLeftShift
		base.Line = Local
		return base, nil

	case ir.RightShift:
		// A secret right-shifted by a public constant is the same
		// mask-reveal-shift construction as TruncPr, so it consumes the
		// same preprocessing element rather than inventing a dedicated one.
		base.Kind = KindRightShift
		base.Line = Online
		base.Requirements[TruncPrElement] = 1
		return base, nil

	case ir.InnerProduct:
		if len(op.Operands) == 0 || len(op.Operands)%2 != 0 {
			return Protocol{}, fmt.Errorf("%w: inner product needs an even, non-empty operand list (interleaved a_i, b_i pairs), got %d", ErrOperationNotSupported, len(op.Operands))
		}
		base.Kind = KindInnerProduct
		base.Line = Online
		return base, nil

	case ir.EcdsaSign:
		base.Kind = KindEcdsaSign
		base.Line = Online
		base.Requirements[EcdsaAuxInfo] = 1
		return base, nil

	case ir.EddsaSign:
		base.Kind = KindEddsaSign
		base.Line = Online
		base.Requirements[EcdsaAuxInfo] = 1
		return base, nil
	}

	return Protocol{}, fmt.Errorf("%w: bytecode kind %v at address %d", ErrOperationNotSupported, op.Kind, addr)
}

// literalUint64 decodes a bytecode Literal's little-endian bytes into a
// uint64, for the compile-time-only constant (Power's exponent) that C4
// itself needs to reason about rather than merely pass through to C6. Literals wider than 8 bytes
// are rejected rather than silently truncated.
func literalUint64(op bytecode.Operation) (uint64, bool) {
	if op.Literal == nil || len(op.Literal.Bytes) > 8 {
		return 0, false
	}
	var v uint64
	for i := len(op.Literal.Bytes) - 1; i >= 0; i-- {
		v = v<<8 | uint64(op.Literal.Bytes[i])
	}
	return v, true
}

func hasPublicOperand(types []ir.ValueType) bool {
	for _, t := range types {
		if !isSecret(t) {
			return true
		}
	}
	return false
}

// selectDivisionOrModulo implements the Division row and its mirrored
// Modulo row.
func selectDivisionOrModulo(base Protocol, types []ir.ValueType, modulo bool) (Protocol, error) {
	if len(types) != 2 {
		return Protocol{}, fmt.Errorf("%w: division/modulo needs exactly two operands, got %d", ErrOperationNotSupported, len(types))
	}
	dividend, divisor := types[0], types[1]

	switch {
	case !isSecret(dividend) && !isSecret(divisor):
		if modulo {
			base.Kind = KindModuloIntegerPublic
		} else {
			base.Kind = KindDivisionIntegerPublic
		}
		base.Line = Local
		return base, nil

	case isSecret(dividend) && !isSecret(divisor):
		if modulo {
			base.Kind = KindModuloSecretDividendPublicDivisor
		} else {
			base.Kind = KindDivisionIntegerSecretDividendPublicDivisor
		}
		base.Line = Online
		base.Requirements[Modulo] = 1
		return base, nil

	default: // secret divisor, dividend public or secret
		if modulo {
			base.Kind = KindModuloSecretDivisor
		} else {
			base.Kind = KindDivisionIntegerSecretDivisor
		}
		base.Line = Online
		base.Requirements[DivisionIntegerSecret] = 1
		return base, nil
	}
}
