// Package compile implements C4: selecting a concrete MPC protocol variant
// for every bytecode operation, based on its operand types, and
// accumulating the resulting program's preprocessing requirements.
package compile

import (
	"github.com/luxfi/mpc/pkg/bytecode"
	"github.com/luxfi/mpc/pkg/ir"
)

// Line is the execution line of a protocol: Local work needs no messages,
// Online work takes at least one round.
type Line int

const (
	Local Line = iota
	Online
)

// ElementKind names one kind of preprocessing share bundle a protocol can
// declare it needs.
type ElementKind int

const (
	Compare ElementKind = iota
	DivisionIntegerSecret
	Modulo
	Trunc // alias for Modulo2m
	TruncPrElement
	PublicOutputEqualityElement
	PrivateOutputEqualityElement
	RandomInteger
	RandomBoolean
	EcdsaAuxInfo
)

func (k ElementKind) String() string {
	switch k {
	case Compare:
		return "compare"
	case DivisionIntegerSecret:
		return "division-integer-secret"
	case Modulo:
		return "modulo"
	case Trunc:
		return "trunc"
	case TruncPrElement:
		return "trunc-pr"
	case PublicOutputEqualityElement:
		return "public-output-equality"
	case PrivateOutputEqualityElement:
		return "private-output-equality"
	case RandomInteger:
		return "random-integer"
	case RandomBoolean:
		return "random-boolean"
	case EcdsaAuxInfo:
		return "ecdsa-aux-info"
	default:
		return "unknown-element"
	}
}

// Requirements maps an element kind to how many bundles of it a single
// protocol invocation consumes.
type Requirements map[ElementKind]int

// Add merges other into r in place, summing per-kind counts.
func (r Requirements) Add(other Requirements) {
	for k, n := range other {
		r[k] += n
	}
}

// Kind names a concrete protocol variant, one row of the operand-type
// dispatch table (plus the structural operations every program needs:
// New/Get/Random/Not/reveal/signature derivation).
type Kind int

const (
	KindAdditionLocal Kind = iota
	KindSubtractionLocal
	KindMultiplicationPublic
	KindMultiplicationSharePublic
	KindMultiplicationShares
	KindDivisionIntegerPublic
	KindDivisionIntegerSecretDividendPublicDivisor
	KindDivisionIntegerSecretDivisor
	KindModuloIntegerPublic
	KindModuloSecretDividendPublicDivisor
	KindModuloSecretDivisor
	KindEqualsPublic
	KindEqualsSecret
	KindPublicOutputEquality
	KindIfElsePublicCond
	KindIfElsePublicBranches
	KindIfElseOnline
	KindReveal
	KindTruncPr
	KindLessThan
	KindNot
	KindPublicKeyDerive
	KindEcdsaSign
	KindEddsaSign
	KindInnerProduct
	KindPower
	KindLeftShift
	KindRightShift
	KindNew
	KindGet
	KindRandom
)

// Protocol is one entry of the compiled protocol program: the concrete
// variant selected for a bytecode operation, its operands, and its declared
// preprocessing cost.
type Protocol struct {
	Addr         bytecode.Address
	Kind         Kind
	Operands     []bytecode.Address
	Result       ir.ValueType
	Line         Line
	Requirements Requirements
	// Literal is carried over from a LiteralRef bytecode operation
	// unchanged; nil for every other kind, including the KindNew placeholder
	// an ordinary Load operation (an uncomputed input) compiles to.
	Literal *ir.Literal
}

// Program is the output of C4: an ordered protocol graph plus the
// input/output address bindings carried over from the bytecode program.
type Program struct {
	Protocols []Protocol // ordered by Addr, matching bytecode execution order
	Inputs    map[string]bytecode.Address
	Outputs   map[string]bytecode.Address
}

// ProtocolAt returns the protocol at the given address, or (Protocol{}, false).
func (p *Program) ProtocolAt(addr bytecode.Address) (Protocol, bool) {
	if int(addr) < 0 || int(addr) >= len(p.Protocols) {
		return Protocol{}, false
	}
	return p.Protocols[addr], true
}

// TotalRequirements sums every protocol's declared cost, the input to the
// program auditor and the VM's preprocessing reservation.
func (p *Program) TotalRequirements() Requirements {
	total := Requirements{}
	for _, proto := range p.Protocols {
		total.Add(proto.Requirements)
	}
	return total
}
