// Package preprocessing defines the per-party share bundles the protocol
// state machines in protocols/* consume one-per-invocation, and the Bundle
// that holds a party's local stock of them for one compute session. The
// contract is pop-one-per-invocation, fail fatally if exhausted: an
// exhausted pool means the program was scheduled against preprocessing it
// never had, which no amount of local retrying can fix.
package preprocessing

import (
	"errors"
	"sync"

	"github.com/luxfi/mpc/pkg/compile"
	"github.com/luxfi/mpc/pkg/field"
)

// ErrExhausted is returned when a protocol needs a preprocessing bundle of
// a kind the local stock has none left of. This is fatal to the compute
// session (the program was mis-scheduled against the available
// preprocessing), never recovered locally.
var ErrExhausted = errors.New("preprocessing: no bundle of the requested kind remains")

// SignedBits is the bit width k of the signed integers the comparison and
// truncation protocols operate over: values must lie in
// [-2^(k-1), 2^(k-1)). It is a protocol parameter, not a property of the
// field — the field must merely be wide enough that a masked value never
// wraps (see MaskBits).
const SignedBits = 32

// MaskSecurityBits is the statistical-hiding parameter: a masked opening
// reveals the value plus a (SignedBits+MaskSecurityBits)-bit random mask,
// hiding the value up to a 2^-MaskSecurityBits statistical distance.
const MaskSecurityBits = 30

// MaskBits is the bit length of the random masks CompareTuple and
// TruncPrTuple carry. MaskBits+1 must be below the field's bit length so
// that value + 2^(SignedBits-1) + mask never wraps the modulus — that
// non-wrapping is what makes the opened value correctable by integer
// arithmetic over the mask's bits.
const MaskBits = SignedBits + MaskSecurityBits

// CompareTuple backs the Compare element kind (LessThan): bitwise shares
// of a MaskBits-bit random mask r, least significant bit first. The
// comparison protocol derives the low/high mask parts it needs from the
// bits, and the bounded bit length is what keeps the masked opening inside
// the no-wrap range where the bitwise correction applies.
type CompareTuple[F field.Prime] struct {
	RBits []field.Element[F]
}

// DivisionTuple backs DivisionIntegerSecret (secret-divisor division and
// its mirrored Modulo): a random value r double-shared at degree t (R) and
// degree 2t (RTwoT), plus a degree-t share of 1/r. Multiplying a degree-t
// share of the secret divisor by RTwoT locally yields a degree-2t share of
// (divisor * r), openable directly with no extra multiplication round —
// the standard Bar-Ilan/Beaver division trick.
type DivisionTuple[F field.Prime] struct {
	R     field.Element[F]
	RTwoT field.Element[F]
	RInv  field.Element[F]
}

// ModuloTuple backs the plain Modulo element kind used by
// secret-dividend/public-divisor division and modulo.
type ModuloTuple[F field.Prime] struct {
	R       field.Element[F]
	RModulo field.Element[F]
}

// TruncPrTuple backs TruncPr and RightShift: the same shape as
// CompareTuple — bitwise shares of a MaskBits-bit random mask, LSB first —
// because the probabilistic truncation derives its low and high mask parts
// from the bits for whatever shift amount the call site uses.
type TruncPrTuple[F field.Prime] struct {
	RBits []field.Element[F]
}

// OutputEqualityTuple backs PublicOutputEquality and the secret-operand
// EqualsSecret path (PrivateOutputEquality): a shared random value used to
// blind the difference before opening it to compare against zero.
type OutputEqualityTuple[F field.Prime] struct {
	R field.Element[F]
}

// RandomIntegerShare and RandomBooleanShare back Random: pre-generated
// shared randomness, so that producing one at protocol time is a pop, not
// a fresh distributed-generation round.
type RandomIntegerShare[F field.Prime] struct {
	Share field.Element[F]
}
type RandomBooleanShare[F field.Prime] struct {
	Share field.Element[F] // 0 or 1
}

// EcdsaAuxInfo backs the EcdsaSign, EddsaSign and PublicKeyDerive elements:
// one signing invocation's worth of auxiliary material, produced ahead of
// time by the ECDSA-AUX-INFO sub-protocol (protocols/ecdsaaux). Every field
// is raw bytes — 32-byte big-endian secp256k1 scalars and 33-byte
// compressed points — because this package is deliberately curve-agnostic;
// protocols/ecdsasign parses and consumes them.
type EcdsaAuxInfo struct {
	// KeyShare is this party's Shamir share of the signing key x.
	KeyShare []byte
	// PublicKey is the compressed public key x*G, the same at every party.
	PublicKey []byte
	// NonceShare is this party's share of the one-time nonce k.
	NonceShare []byte
	// NonceInvShare is this party's share of k^-1.
	NonceInvShare []byte
	// NonceInvKeyShare is this party's share of k^-1 * x.
	NonceInvKeyShare []byte
	// NoncePoint is the compressed nonce point k*G, the same at every party.
	NoncePoint []byte
}

// Bundle holds one party's local stock of every preprocessing kind for a
// single compute session. Pop methods are safe for concurrent use (the VM
// may run several protocols from the same program preprocessing-adjacent
// in principle, even though it schedules them one at a time today).
type Bundle[F field.Prime] struct {
	mu sync.Mutex

	compare    []CompareTuple[F]
	division   []DivisionTuple[F]
	modulo     []ModuloTuple[F]
	truncPr    []TruncPrTuple[F]
	outputEq   []OutputEqualityTuple[F]
	randomInt  []RandomIntegerShare[F]
	randomBool []RandomBooleanShare[F]
	ecdsaAux   []EcdsaAuxInfo
}

// NewBundle returns an empty bundle ready to be filled by Add* methods
// (typically by the driver, after fetching shares from pkg/offsets).
func NewBundle[F field.Prime]() *Bundle[F] { return &Bundle[F]{} }

func (b *Bundle[F]) AddCompare(cs ...CompareTuple[F])   { b.compare = append(b.compare, cs...) }
func (b *Bundle[F]) AddDivision(ds ...DivisionTuple[F]) { b.division = append(b.division, ds...) }
func (b *Bundle[F]) AddModulo(ms ...ModuloTuple[F])     { b.modulo = append(b.modulo, ms...) }
func (b *Bundle[F]) AddTruncPr(ts ...TruncPrTuple[F])   { b.truncPr = append(b.truncPr, ts...) }
func (b *Bundle[F]) AddOutputEquality(os ...OutputEqualityTuple[F]) {
	b.outputEq = append(b.outputEq, os...)
}
func (b *Bundle[F]) AddRandomIntegers(rs ...RandomIntegerShare[F]) {
	b.randomInt = append(b.randomInt, rs...)
}
func (b *Bundle[F]) AddRandomBooleans(rs ...RandomBooleanShare[F]) {
	b.randomBool = append(b.randomBool, rs...)
}
func (b *Bundle[F]) AddEcdsaAux(es ...EcdsaAuxInfo) { b.ecdsaAux = append(b.ecdsaAux, es...) }

func (b *Bundle[F]) PopCompare() (CompareTuple[F], error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.compare) == 0 {
		return CompareTuple[F]{}, ErrExhausted
	}
	c := b.compare[0]
	b.compare = b.compare[1:]
	return c, nil
}

func (b *Bundle[F]) PopDivision() (DivisionTuple[F], error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.division) == 0 {
		return DivisionTuple[F]{}, ErrExhausted
	}
	d := b.division[0]
	b.division = b.division[1:]
	return d, nil
}

func (b *Bundle[F]) PopModulo() (ModuloTuple[F], error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.modulo) == 0 {
		return ModuloTuple[F]{}, ErrExhausted
	}
	m := b.modulo[0]
	b.modulo = b.modulo[1:]
	return m, nil
}

func (b *Bundle[F]) PopTruncPr() (TruncPrTuple[F], error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.truncPr) == 0 {
		return TruncPrTuple[F]{}, ErrExhausted
	}
	t := b.truncPr[0]
	b.truncPr = b.truncPr[1:]
	return t, nil
}

func (b *Bundle[F]) PopOutputEquality() (OutputEqualityTuple[F], error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.outputEq) == 0 {
		return OutputEqualityTuple[F]{}, ErrExhausted
	}
	o := b.outputEq[0]
	b.outputEq = b.outputEq[1:]
	return o, nil
}

func (b *Bundle[F]) PopRandomInteger() (RandomIntegerShare[F], error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.randomInt) == 0 {
		return RandomIntegerShare[F]{}, ErrExhausted
	}
	r := b.randomInt[0]
	b.randomInt = b.randomInt[1:]
	return r, nil
}

func (b *Bundle[F]) PopRandomBoolean() (RandomBooleanShare[F], error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.randomBool) == 0 {
		return RandomBooleanShare[F]{}, ErrExhausted
	}
	r := b.randomBool[0]
	b.randomBool = b.randomBool[1:]
	return r, nil
}

func (b *Bundle[F]) PopEcdsaAux() (EcdsaAuxInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.ecdsaAux) == 0 {
		return EcdsaAuxInfo{}, ErrExhausted
	}
	e := b.ecdsaAux[0]
	b.ecdsaAux = b.ecdsaAux[1:]
	return e, nil
}

// Remaining reports how many bundles of each kind are left, for the VM to
// pre-flight-check a program's compile.Requirements before running it.
func (b *Bundle[F]) Remaining() compile.Requirements {
	b.mu.Lock()
	defer b.mu.Unlock()
	return compile.Requirements{
		compile.Compare:                      len(b.compare),
		compile.DivisionIntegerSecret:        len(b.division),
		compile.Modulo:                       len(b.modulo),
		compile.TruncPrElement:               len(b.truncPr),
		compile.PublicOutputEqualityElement:  len(b.outputEq),
		compile.PrivateOutputEqualityElement: len(b.outputEq),
		compile.RandomInteger:                len(b.randomInt),
		compile.RandomBoolean:                len(b.randomBool),
		compile.EcdsaAuxInfo:                 len(b.ecdsaAux),
	}
}
