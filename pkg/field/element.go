package field

import (
	"crypto/rand"
	"io"
	"math/big"

	"github.com/cronokirby/saferith"
	"github.com/fxamacker/cbor/v2"
)

// Element is a value modulo the prime named by F, held internally in
// Montgomery form. Two Elements of different type parameters cannot be
// added, compared, or otherwise mixed: the Go type checker enforces the
// invariant that the modulus is part of an element's identity.
type Element[F Prime] struct {
	v *saferith.Nat // value * R mod M
}

func paramsOfElement[F Prime](_ Element[F]) *params { return paramsOf[F]() }

// Zero returns the additive identity.
func Zero[F Prime]() Element[F] {
	return Element[F]{v: new(saferith.Nat).SetUint64(0)}
}

// toMontgomery lifts a normal-form value into Montgomery form: x*R mod M.
func toMontgomery[F Prime](normal *saferith.Nat) Element[F] {
	p := paramsOf[F]()
	v := new(saferith.Nat).ModMul(normal, p.r, p.modulus)
	return Element[F]{v: v}
}

// Normal lowers e out of Montgomery form: returns e.v * R^-1 mod M. This is
// the one place a comparison or display has to pay a reduction — the
// intended trade-off: multiplication stays cheap, and the rare conversion
// is where a representation bug would show up.
func (e Element[F]) Normal() *saferith.Nat {
	p := paramsOf[F]()
	return new(saferith.Nat).ModMul(e.v, p.rInv, p.modulus)
}

// FromUint64 builds a typed element from a small unsigned literal.
func FromUint64[F Prime](x uint64) Element[F] {
	return toMontgomery[F](new(saferith.Nat).SetUint64(x))
}

// FromBigInt builds a typed element from an arbitrary non-negative integer,
// reducing it modulo M. It fails with ErrOverflow if x is negative or does
// not fit in the element's declared byte width at all.
func FromBigInt[F Prime](x *big.Int) (Element[F], error) {
	p := paramsOf[F]()
	if x.Sign() < 0 || x.BitLen() > 8*p.byteLen {
		var zero Element[F]
		return zero, ErrOverflow
	}
	n := new(saferith.Nat).SetBytes(x.Bytes())
	reduced := new(saferith.Nat).Mod(n, p.modulus)
	return toMontgomery[F](reduced), nil
}

// Random samples an element uniformly in [0, M).
func Random[F Prime](r io.Reader) Element[F] {
	if r == nil {
		r = rand.Reader
	}
	p := paramsOf[F]()
	buf := make([]byte, p.byteLen+8) // oversample to bias-reduce the final Mod
	if _, err := io.ReadFull(r, buf); err != nil {
		panic(err) // crypto/rand failing is unrecoverable
	}
	n := new(saferith.Nat).SetBytes(buf)
	reduced := new(saferith.Nat).Mod(n, p.modulus)
	return toMontgomery[F](reduced)
}

// Add returns e + other.
func (e Element[F]) Add(other Element[F]) Element[F] {
	p := paramsOfElement(e)
	return Element[F]{v: new(saferith.Nat).ModAdd(e.v, other.v, p.modulus)}
}

// Sub returns e - other.
func (e Element[F]) Sub(other Element[F]) Element[F] {
	p := paramsOfElement(e)
	return Element[F]{v: new(saferith.Nat).ModSub(e.v, other.v, p.modulus)}
}

// Mul returns e * other. Both operands stay in Montgomery form throughout:
// (aR)(bR) = abR^2, so the product is scaled back down by R^-1 to land on
// abR, the Montgomery form of a*b.
func (e Element[F]) Mul(other Element[F]) Element[F] {
	p := paramsOfElement(e)
	raw := new(saferith.Nat).ModMul(e.v, other.v, p.modulus)
	return Element[F]{v: new(saferith.Nat).ModMul(raw, p.rInv, p.modulus)}
}

// Inverse returns the multiplicative inverse of e. Returns ErrDivByZero if e is zero.
func (e Element[F]) Inverse() (Element[F], error) {
	p := paramsOfElement(e)
	if e.Normal().Eq(new(saferith.Nat).SetUint64(0)) == 1 {
		var zero Element[F]
		return zero, ErrDivByZero
	}
	// inv(aR) must equal a^-1 * R so that re-entering Mul keeps the scaling
	// consistent: compute a^-1 in normal form then lift it back up.
	normalInv := new(saferith.Nat).ModInverse(e.Normal(), p.modulus)
	return toMontgomery[F](normalInv), nil
}

// Div returns e / other. Returns ErrDivByZero if other is zero.
func (e Element[F]) Div(other Element[F]) (Element[F], error) {
	inv, err := other.Inverse()
	if err != nil {
		return Element[F]{}, err
	}
	return e.Mul(inv), nil
}

// Pow returns e raised to the (public, non-negative) exponent n.
func (e Element[F]) Pow(n uint64) Element[F] {
	p := paramsOfElement(e)
	normal := e.Normal()
	exp := new(saferith.Nat).SetUint64(n)
	result := new(saferith.Nat).Exp(normal, exp, p.modulus)
	return toMontgomery[F](result)
}

// Lsh returns e shifted left by n bits, reduced modulo M.
func (e Element[F]) Lsh(n uint) Element[F] {
	p := paramsOfElement(e)
	shifted := new(big.Int).Lsh(e.Normal().Big(), n)
	reduced := new(saferith.Nat).SetBytes(shifted.Bytes())
	reduced = new(saferith.Nat).Mod(reduced, p.modulus)
	return toMontgomery[F](reduced)
}

// Rsh returns e shifted right by n bits. Since e's normal form is already
// less than M, no reduction is necessary after shifting down.
func (e Element[F]) Rsh(n uint) Element[F] {
	shifted := new(big.Int).Rsh(e.Normal().Big(), n)
	return toMontgomery[F](new(saferith.Nat).SetBytes(shifted.Bytes()))
}

// Cmp compares the normal-form values of e and other: -1, 0 or 1.
func (e Element[F]) Cmp(other Element[F]) int {
	return e.Normal().Big().Cmp(other.Normal().Big())
}

// Equal reports whether e and other hold the same value.
func (e Element[F]) Equal(other Element[F]) bool {
	return e.Cmp(other) == 0
}

// IsZero reports whether e is the additive identity.
func (e Element[F]) IsZero() bool {
	return e.Normal().Big().Sign() == 0
}

// Abs returns the modular absolute value: e if e <= M/2, otherwise M - e.
// This treats the top half of the field as representing negative integers,
// the signed-integer convention used throughout.
func (e Element[F]) Abs() Element[F] {
	p := paramsOfElement(e)
	half := new(big.Int).Rsh(p.modulus.Nat().Big(), 1)
	normal := e.Normal().Big()
	if normal.Cmp(half) <= 0 {
		return e
	}
	neg := new(big.Int).Sub(p.modulus.Nat().Big(), normal)
	return toMontgomery[F](new(saferith.Nat).SetBytes(neg.Bytes()))
}

// IsPositive reports whether e, read as a signed integer via Abs's
// convention, is in the "positive" (lower) half of the field. Zero is
// considered positive.
func (e Element[F]) IsPositive() bool {
	p := paramsOfElement(e)
	half := new(big.Int).Rsh(p.modulus.Nat().Big(), 1)
	return e.Normal().Big().Cmp(half) <= 0
}

// Signed returns e's value as a signed integer, under the same top-half-is-
// negative convention Abs and IsPositive use: values in the upper half of
// the field read back as M - e, negated.
func (e Element[F]) Signed() *big.Int {
	p := paramsOfElement(e)
	half := new(big.Int).Rsh(p.modulus.Nat().Big(), 1)
	normal := e.Normal().Big()
	if normal.Cmp(half) <= 0 {
		return normal
	}
	return new(big.Int).Sub(normal, p.modulus.Nat().Big())
}

// FromSignedBigInt builds a typed element from a (possibly negative) signed
// integer, reducing it into the field the way Signed's convention expects:
// a negative x becomes M - (|x| mod M).
func FromSignedBigInt[F Prime](x *big.Int) Element[F] {
	p := paramsOf[F]()
	reduced := new(big.Int).Mod(x, p.modulus.Nat().Big())
	return toMontgomery[F](new(saferith.Nat).SetBytes(reduced.Bytes()))
}

// IntDivMod returns the floor-division quotient and remainder of e by other,
// read as signed integers per the Signed convention: e == quotient*other +
// remainder, with remainder's sign matching other's (floor division, unlike
// math/big's Euclidean DivMod). This is the bytecode Division/Modulo operators' arithmetic,
// distinct from the modular-inverse-based Div, which IntDivMod does not
// use at all. Returns ErrDivByZero if other is zero.
func (e Element[F]) IntDivMod(other Element[F]) (quotient, remainder Element[F], err error) {
	if other.IsZero() {
		return Element[F]{}, Element[F]{}, ErrDivByZero
	}
	a, b := e.Signed(), other.Signed()
	q, r := new(big.Int), new(big.Int)
	q.DivMod(a, b, r) // Euclidean: 0 <= r < |b|, matches floor division for b > 0
	if b.Sign() < 0 && r.Sign() != 0 {
		// math/big's DivMod is Euclidean (remainder always non-negative);
		// floor division with a negative divisor instead wants a remainder
		// with divisor's sign, one quotient step further down.
		q.Sub(q, big.NewInt(1))
		r.Add(r, b)
	}
	return FromSignedBigInt[F](q), FromSignedBigInt[F](r), nil
}

// Tag returns the runtime modulus tag for F.
func (e Element[F]) Tag() Tag {
	var f F
	return f.Tag()
}

// MarshalCBOR implements cbor.Marshaler so Element can be carried directly
// in protocol message content without every protocol reaching for Encode
// itself: it always crosses the wire in its untyped Encoded form, never as
// raw Montgomery-form bytes.
func (e Element[F]) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(Encode(e))
}

// UnmarshalCBOR implements cbor.Unmarshaler, the inverse of MarshalCBOR.
func (e *Element[F]) UnmarshalCBOR(data []byte) error {
	var enc Encoded
	if err := cbor.Unmarshal(data, &enc); err != nil {
		return err
	}
	decoded, err := Decode[F](enc)
	if err != nil {
		return err
	}
	*e = decoded
	return nil
}
