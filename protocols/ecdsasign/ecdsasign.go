// Package ecdsasign implements the signing protocols behind the EcdsaSign,
// EddsaSign and PublicKeyDerive bytecode operations, over secp256k1. Each
// invocation consumes one EcdsaAuxInfo tuple produced ahead of time by
// ECDSA-AUX-INFO (protocols/ecdsaaux): the tuple carries this party's
// shares of the signing key x, the one-time nonce k, k^-1 and k^-1*x, plus
// the public points x*G and k*G. With the nonce material precomputed, both
// signing protocols collapse to a single broadcast of signature shares —
// every non-linear step was paid for during preprocessing.
package ecdsasign

import (
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/luxfi/mpc/internal/round"
	"github.com/luxfi/mpc/pkg/field"
	"github.com/luxfi/mpc/pkg/party"
	"github.com/luxfi/mpc/pkg/preprocessing"
)

const protocolID = "ecdsa-sign"

// Signature is a completed ECDSA signature in compact (r, s) form.
type Signature struct {
	R [32]byte
	S [32]byte
}

// Bytes returns the 64-byte r||s serialization.
func (sig Signature) Bytes() []byte {
	out := make([]byte, 64)
	copy(out[:32], sig.R[:])
	copy(out[32:], sig.S[:])
	return out
}

// StartSign begins an ECDSA signing run over digest, consuming one
// EcdsaAuxInfo from bundle. With r = (k*G).x and per-party shares of k^-1
// and k^-1*x in hand, each party's signature share is the local linear
// combination s_i = [k^-1]_i * m + r * [k^-1 * x]_i, a degree-t sharing of
// s = k^-1 (m + r*x); one broadcast and an interpolation at zero finish
// the signature.
func StartSign[F field.Prime](cluster party.IDSlice, self party.ID, threshold int, sessionID []byte, digest []byte, bundle *preprocessing.Bundle[F]) (round.Session[F], error) {
	helper, err := round.NewSession[F](round.Info{
		ProtocolID:       protocolID,
		Cluster:          cluster,
		SelfID:           self,
		Threshold:        threshold,
		FinalRoundNumber: 1,
	}, sessionID)
	if err != nil {
		return nil, fmt.Errorf("ecdsasign.StartSign: %w", err)
	}
	aux, err := bundle.PopEcdsaAux()
	if err != nil {
		return nil, fmt.Errorf("ecdsasign.StartSign: %w", err)
	}

	kInv, err := scalarFromBytes(aux.NonceInvShare)
	if err != nil {
		return nil, fmt.Errorf("ecdsasign.StartSign: nonce inverse share: %w", err)
	}
	kInvX, err := scalarFromBytes(aux.NonceInvKeyShare)
	if err != nil {
		return nil, fmt.Errorf("ecdsasign.StartSign: nonce inverse key share: %w", err)
	}
	pub, err := secp256k1.ParsePubKey(aux.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("ecdsasign.StartSign: public key: %w", err)
	}
	noncePoint, err := secp256k1.ParsePubKey(aux.NoncePoint)
	if err != nil {
		return nil, fmt.Errorf("ecdsasign.StartSign: nonce point: %w", err)
	}

	// r = (k*G).x mod n. A zero r means the preprocessing ceremony produced
	// a degenerate nonce; that tuple is unusable.
	var nonceJ secp256k1.JacobianPoint
	noncePoint.AsJacobian(&nonceJ)
	nonceJ.ToAffine()
	var r secp256k1.ModNScalar
	r.SetBytes(nonceJ.X.Bytes())
	if r.IsZero() {
		return nil, fmt.Errorf("ecdsasign.StartSign: degenerate nonce point in aux tuple")
	}

	m := new(secp256k1.ModNScalar)
	m.SetByteSlice(digest)

	sigShare := new(secp256k1.ModNScalar).Set(kInv)
	sigShare.Mul(m)
	rTerm := new(secp256k1.ModNScalar).Set(kInvX)
	rTerm.Mul(&r)
	sigShare.Add(rTerm)

	return &signRound1[F]{
		Helper:   helper,
		digest:   append([]byte(nil), digest...),
		pub:      pub,
		r:        &r,
		sigShare: sigShare,
	}, nil
}

// signContent carries one party's signature share.
type signContent struct {
	round.NormalBroadcastContent
	Share []byte
}

func (signContent) RoundNumber() round.Number { return 1 }

type signRound1[F field.Prime] struct {
	*round.Helper[F]
	digest   []byte
	pub      *secp256k1.PublicKey
	r        *secp256k1.ModNScalar
	sigShare *secp256k1.ModNScalar
	shares   map[party.ID]*secp256k1.ModNScalar
}

func (r *signRound1[F]) MessageContent() round.Content     { return nil }
func (r *signRound1[F]) VerifyMessage(round.Message) error { return nil }
func (r *signRound1[F]) StoreMessage(round.Message) error  { return nil }

func (r *signRound1[F]) BroadcastContent() round.BroadcastContent {
	return &signContent{Share: scalarBytes(r.sigShare)}
}

func (r *signRound1[F]) StoreBroadcastMessage(msg round.Message) error {
	content, ok := msg.Content.(*signContent)
	if !ok {
		return round.ErrInvalidContent
	}
	share, err := scalarFromBytes(content.Share)
	if err != nil {
		return err
	}
	if r.shares == nil {
		r.shares = map[party.ID]*secp256k1.ModNScalar{}
	}
	r.shares[msg.From] = share
	return nil
}

func (r *signRound1[F]) Finalize(chan<- *round.Message) (round.Session[F], error) {
	s, err := interpolateScalarAtZero(r.shares, r.PartyIDs())
	if err != nil {
		return nil, fmt.Errorf("ecdsasign: combining signature shares: %w", err)
	}
	if s.IsZero() {
		return nil, fmt.Errorf("ecdsasign: combined signature share is zero")
	}
	// Canonicalize to low-s so the signature matches what standard
	// verifiers accept.
	if s.IsOverHalfOrder() {
		s.Negate()
	}
	if !ecdsa.NewSignature(r.r, s).Verify(r.digest, r.pub) {
		return nil, fmt.Errorf("ecdsasign: combined signature failed verification; a party contributed a corrupt share")
	}
	var sig Signature
	rB := r.r.Bytes()
	sB := s.Bytes()
	copy(sig.R[:], rB[:])
	copy(sig.S[:], sB[:])
	return &round.Output[F]{Result: sig}, nil
}

var _ round.BroadcastRound[field.Safe64] = (*signRound1[field.Safe64])(nil)
