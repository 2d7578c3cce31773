package vm

import (
	"fmt"

	"github.com/luxfi/mpc/internal/round"
	"github.com/luxfi/mpc/pkg/compile"
	"github.com/luxfi/mpc/pkg/field"
	"github.com/luxfi/mpc/pkg/ir"
	"github.com/luxfi/mpc/pkg/party"
	"github.com/luxfi/mpc/pkg/shamir"
	"github.com/luxfi/mpc/protocols/compare"
	"github.com/luxfi/mpc/protocols/division"
	"github.com/luxfi/mpc/protocols/ecdsasign"
	"github.com/luxfi/mpc/protocols/equality"
	"github.com/luxfi/mpc/protocols/ifelse"
	"github.com/luxfi/mpc/protocols/innerproduct"
	"github.com/luxfi/mpc/protocols/mult"
	"github.com/luxfi/mpc/protocols/power"
	"github.com/luxfi/mpc/protocols/reveal"
	"github.com/luxfi/mpc/protocols/truncpr"
)

// runLocal computes a Local-line protocol's result directly, with no
// messages exchanged.
func (v *VM[F]) runLocal(proto compile.Protocol) (Value[F], error) {
	switch proto.Kind {
	case compile.KindNew:
		if proto.Literal != nil {
			lit, err := decodeLiteral[F](proto.Literal)
			if err != nil {
				return Value[F]{}, err
			}
			return PublicValue[F](lit), nil
		}
		// An ordinary Load with no literal is an input placeholder: its
		// value was already installed into memory by New(), before the
		// program started running.
		return v.operand(proto.Addr), nil

	case compile.KindGet:
		return v.operand(proto.Operands[0]), nil

	case compile.KindAdditionLocal:
		return v.localAdd(proto)

	case compile.KindSubtractionLocal:
		return v.localSub(proto)

	case compile.KindMultiplicationPublic:
		a, b := v.operand(proto.Operands[0]), v.operand(proto.Operands[1])
		return PublicValue[F](a.Public.Mul(b.Public)), nil

	case compile.KindMultiplicationSharePublic:
		a, b := v.operand(proto.Operands[0]), v.operand(proto.Operands[1])
		share, pub := a, b
		if a.IsSecret() {
			pub = b
		} else {
			share, pub = b, a
		}
		return SecretValue[F](shareScaled(share, pub.Public)), nil

	case compile.KindDivisionIntegerPublic:
		a, b := v.operand(proto.Operands[0]), v.operand(proto.Operands[1])
		q, _, err := a.Public.IntDivMod(b.Public)
		if err != nil {
			return Value[F]{}, err
		}
		return PublicValue[F](q), nil

	case compile.KindModuloIntegerPublic:
		a, b := v.operand(proto.Operands[0]), v.operand(proto.Operands[1])
		_, r, err := a.Public.IntDivMod(b.Public)
		if err != nil {
			return Value[F]{}, err
		}
		return PublicValue[F](r), nil

	case compile.KindEqualsPublic:
		a, b := v.operand(proto.Operands[0]), v.operand(proto.Operands[1])
		return PublicValue[F](boolElement[F](a.Public.Cmp(b.Public) == 0)), nil

	case compile.KindNot:
		a := v.operand(proto.Operands[0])
		if a.IsSecret() {
			// Not on a boolean share is the linear map 1 - x: a public
			// constant minus a share is local, the same as shamirAddPublic
			// with a negated share, so no protocol round is needed.
			one := field.FromUint64[F](1)
			return SecretValue[F](shamir.Share[F]{X: a.Share.X, Y: one.Sub(a.Share.Y)}), nil
		}
		return PublicValue[F](boolElement[F](a.Public.IsZero())), nil

	case compile.KindLeftShift:
		a, b := v.operand(proto.Operands[0]), v.operand(proto.Operands[1])
		if a.IsSecret() {
			return SecretValue[F](shamirShiftShare(a.Share, b.Public)), nil
		}
		return PublicValue[F](a.Public.Lsh(uintFromElement(b.Public))), nil

	case compile.KindRandom:
		x := party.Abscissa[F](v.cluster, v.self)
		if proto.Result.Kind == ir.Boolean {
			share, err := v.bundle.PopRandomBoolean()
			if err != nil {
				return Value[F]{}, err
			}
			return SecretValue[F](shamir.Share[F]{X: x, Y: share.Share}), nil
		}
		share, err := v.bundle.PopRandomInteger()
		if err != nil {
			return Value[F]{}, err
		}
		return SecretValue[F](shamir.Share[F]{X: x, Y: share.Share}), nil

	case compile.KindPublicKeyDerive:
		// The derived public key travels in every party's aux tuple; deriving
		// it is a pop plus a copy, no interpolation-in-the-exponent round.
		aux, err := v.bundle.PopEcdsaAux()
		if err != nil {
			return Value[F]{}, err
		}
		return BytesValue[F](append([]byte(nil), aux.PublicKey...)), nil

	case compile.KindIfElsePublicCond:
		cond, ifTrue, ifFalse := v.operand(proto.Operands[0]), v.operand(proto.Operands[1]), v.operand(proto.Operands[2])
		if !cond.Public.IsZero() {
			return ifTrue, nil
		}
		return ifFalse, nil

	case compile.KindIfElsePublicBranches:
		// Both branches public, condition secret: compute
		// cond*(a-b)+b over cond's share locally (linear in cond).
		cond, ifTrue, ifFalse := v.operand(proto.Operands[0]), v.operand(proto.Operands[1]), v.operand(proto.Operands[2])
		diff := ifTrue.Public.Sub(ifFalse.Public)
		scaled := cond.Share.Y.Mul(diff)
		return SecretValue[F](shamirShareWith(cond.Share.X, scaled.Add(ifFalse.Public))), nil

	default:
		return Value[F]{}, fmt.Errorf("%w: local kind %d", ErrOperationNotWired, proto.Kind)
	}
}

func (v *VM[F]) localAdd(proto compile.Protocol) (Value[F], error) {
	a, b := v.operand(proto.Operands[0]), v.operand(proto.Operands[1])
	switch {
	case !a.IsSecret() && !b.IsSecret():
		return PublicValue[F](a.Public.Add(b.Public)), nil
	case a.IsSecret() && b.IsSecret():
		return SecretValue[F](shamirAddShares(a.Share, b.Share)), nil
	case a.IsSecret():
		return SecretValue[F](shamirAddPublic(a.Share, b.Public)), nil
	default:
		return SecretValue[F](shamirAddPublic(b.Share, a.Public)), nil
	}
}

// localSub computes a - b, a local linear combination in every operand
// visibility combination, the same way localAdd is but order-sensitive.
func (v *VM[F]) localSub(proto compile.Protocol) (Value[F], error) {
	a, b := v.operand(proto.Operands[0]), v.operand(proto.Operands[1])
	switch {
	case !a.IsSecret() && !b.IsSecret():
		return PublicValue[F](a.Public.Sub(b.Public)), nil
	case a.IsSecret() && b.IsSecret():
		return SecretValue[F](shamirSubShares(a.Share, b.Share)), nil
	case a.IsSecret():
		return SecretValue[F](shamirSubPublicFromShare(a.Share, b.Public)), nil
	default:
		return SecretValue[F](shamirSubShareFromPublic(a.Public, b.Share)), nil
	}
}

// startOnline starts the Online protocol at proto's address, consuming
// whatever preprocessing it needs, and returns the Messages yield carrying
// its first round's broadcast content to every other party.
func (v *VM[F]) startOnline(proto compile.Protocol) (VmYield, error) {
	sessionID := []byte(fmt.Sprintf("%s/%d", v.computeID, proto.Addr))
	var sess round.Session[F]
	var err error

	switch proto.Kind {
	case compile.KindMultiplicationShares:
		a, b := v.operand(proto.Operands[0]), v.operand(proto.Operands[1])
		sess, err = mult.Start[F](v.cluster, v.self, v.threshold, sessionID, a.Share, b.Share)

	case compile.KindLessThan:
		x := v.operand(proto.Operands[0])
		sess, err = compare.Start[F](v.cluster, v.self, v.threshold, sessionID, x.Share, v.bundle)

	case compile.KindDivisionIntegerSecretDivisor:
		a, b := v.operand(proto.Operands[0]), v.operand(proto.Operands[1])
		sess, err = division.Start[F](v.cluster, v.self, v.threshold, sessionID, division.OpDivision, asShare(a), b.Share, v.bundle)

	case compile.KindModuloSecretDivisor:
		a, b := v.operand(proto.Operands[0]), v.operand(proto.Operands[1])
		sess, err = division.StartModulo[F](v.cluster, v.self, v.threshold, sessionID, asShare(a), b.Share, v.bundle)

	case compile.KindDivisionIntegerSecretDividendPublicDivisor:
		a, b := v.operand(proto.Operands[0]), v.operand(proto.Operands[1])
		sess, err = division.StartPublicDivisor[F](v.cluster, v.self, v.threshold, sessionID, division.PublicDivisorOpDivision, a.Share, b.Public, v.bundle)

	case compile.KindModuloSecretDividendPublicDivisor:
		a, b := v.operand(proto.Operands[0]), v.operand(proto.Operands[1])
		sess, err = division.StartPublicDivisor[F](v.cluster, v.self, v.threshold, sessionID, division.PublicDivisorOpModulo, a.Share, b.Public, v.bundle)

	case compile.KindTruncPr, compile.KindRightShift:
		x, m := v.operand(proto.Operands[0]), v.operand(proto.Operands[1])
		sess, err = truncpr.Start[F](v.cluster, v.self, v.threshold, sessionID, x.Share, uintFromElement(m.Public), v.bundle)

	case compile.KindEqualsSecret, compile.KindPublicOutputEquality:
		a, b := v.operand(proto.Operands[0]), v.operand(proto.Operands[1])
		sess, err = equality.Start[F](v.cluster, v.self, v.threshold, sessionID, asShare(a), asShare(b), v.bundle)

	case compile.KindIfElseOnline:
		cond, ifTrue, ifFalse := v.operand(proto.Operands[0]), v.operand(proto.Operands[1]), v.operand(proto.Operands[2])
		sess, err = ifelse.Start[F](v.cluster, v.self, v.threshold, sessionID, cond.Share, asShare(ifTrue), asShare(ifFalse))

	case compile.KindReveal:
		x := v.operand(proto.Operands[0])
		sess, err = reveal.Start[F](v.cluster, v.self, v.threshold, sessionID, reveal.ModeAll, "", x.Share)

	case compile.KindPower:
		base, exp := v.operand(proto.Operands[0]), v.operand(proto.Operands[1])
		sess, err = power.Start[F](v.cluster, v.self, v.threshold, sessionID, asShare(base), uint64(uintFromElement(exp.Public)))

	case compile.KindInnerProduct:
		pairs := make([]innerproduct.Pair[F], len(proto.Operands)/2)
		for i := range pairs {
			a := v.operand(proto.Operands[2*i])
			b := v.operand(proto.Operands[2*i+1])
			pairs[i] = innerproduct.Pair[F]{A: asShare(a), B: asShare(b)}
		}
		sess, err = innerproduct.Start[F](v.cluster, v.self, v.threshold, sessionID, pairs)

	case compile.KindEcdsaSign:
		msg := v.operand(proto.Operands[len(proto.Operands)-1])
		if msg.IsSecret() {
			return VmYield{}, fmt.Errorf("vm: address %d: message to sign must be public", proto.Addr)
		}
		sess, err = ecdsasign.StartSign[F](v.cluster, v.self, v.threshold, sessionID, messageBytes(msg), v.bundle)

	case compile.KindEddsaSign:
		msg := v.operand(proto.Operands[len(proto.Operands)-1])
		if msg.IsSecret() {
			return VmYield{}, fmt.Errorf("vm: address %d: message to sign must be public", proto.Addr)
		}
		sess, err = ecdsasign.StartSchnorr[F](v.cluster, v.self, v.threshold, sessionID, messageBytes(msg), v.bundle)

	default:
		return VmYield{}, fmt.Errorf("%w: online kind %d", ErrOperationNotWired, proto.Kind)
	}
	if err != nil {
		return VmYield{}, fmt.Errorf("vm: starting protocol at address %d: %w", proto.Addr, err)
	}
	// A session that is already terminal (a zero-round protocol such as
	// power with exponent 0) stores its result immediately; anything else is
	// armed as the first in-flight round.
	return v.afterFinalize(proto.Addr, sess)
}
