package vm

import (
	"github.com/luxfi/mpc/pkg/field"
	"github.com/luxfi/mpc/pkg/ir"
	"github.com/luxfi/mpc/pkg/shamir"
)

// decodeLiteral converts an ir.Literal (which duplicates its modulus tag as
// a bare uint8 to avoid pkg/ir depending on pkg/field) into a typed
// element, failing if the literal's tag does not name F's modulus.
func decodeLiteral[F field.Prime](lit *ir.Literal) (field.Element[F], error) {
	return field.Decode[F](field.Encoded{Tag: field.Tag(lit.Tag), Bytes: lit.Bytes})
}

// shamirAddShares adds two shares of the same party's abscissa.
func shamirAddShares[F field.Prime](a, b shamir.Share[F]) shamir.Share[F] {
	return shamir.Share[F]{X: a.X, Y: a.Y.Add(b.Y)}
}

// shamirAddPublic adds a public constant to a share (every party adds it
// locally, since a constant is itself a degree-0 "sharing").
func shamirAddPublic[F field.Prime](s shamir.Share[F], pub field.Element[F]) shamir.Share[F] {
	return shamir.Share[F]{X: s.X, Y: s.Y.Add(pub)}
}

// shamirSubShares subtracts two shares of the same party's abscissa.
func shamirSubShares[F field.Prime](a, b shamir.Share[F]) shamir.Share[F] {
	return shamir.Share[F]{X: a.X, Y: a.Y.Sub(b.Y)}
}

// shamirSubPublicFromShare computes s - pub, locally.
func shamirSubPublicFromShare[F field.Prime](s shamir.Share[F], pub field.Element[F]) shamir.Share[F] {
	return shamir.Share[F]{X: s.X, Y: s.Y.Sub(pub)}
}

// shamirSubShareFromPublic computes pub - s, locally: every party negates
// its share of s and adds the public constant, the same linear combination
// shamirAddPublic uses with the share's sign flipped.
func shamirSubShareFromPublic[F field.Prime](pub field.Element[F], s shamir.Share[F]) shamir.Share[F] {
	return shamir.Share[F]{X: s.X, Y: pub.Sub(s.Y)}
}

// shareScaled multiplies a share by a public scalar, locally.
func shareScaled[F field.Prime](s Value[F], scalar field.Element[F]) shamir.Share[F] {
	return shamir.Share[F]{X: s.Share.X, Y: s.Share.Y.Mul(scalar)}
}

func shamirShareWith[F field.Prime](x, y field.Element[F]) shamir.Share[F] {
	return shamir.Share[F]{X: x, Y: y}
}

func shamirShiftShare[F field.Prime](s shamir.Share[F], by field.Element[F]) shamir.Share[F] {
	return shamir.Share[F]{X: s.X, Y: s.Y.Lsh(uintFromElement(by))}
}

func uintFromElement[F field.Prime](e field.Element[F]) uint {
	return uint(e.Normal().Big().Uint64())
}

// messageBytes returns the byte form of a public value handed to a signing
// protocol: an opaque byte value (an upstream PublicKeyDerive result, say)
// passes through as-is, a field element signs over its encoded bytes.
func messageBytes[F field.Prime](v Value[F]) []byte {
	if v.Bytes != nil {
		return v.Bytes
	}
	return field.Encode[F](v.Public).Bytes
}

func boolElement[F field.Prime](b bool) field.Element[F] {
	if b {
		return field.FromUint64[F](1)
	}
	return field.Zero[F]()
}

// asShare extracts a Value's Share, treating a public value as a trivial
// (unshared) degree-0 share so mixed public/secret operand helpers can
// share one code path.
func asShare[F field.Prime](v Value[F]) shamir.Share[F] {
	if v.IsSecret() {
		return v.Share
	}
	return shamir.Share[F]{Y: v.Public}
}
