package ecdsasign

import (
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/luxfi/mpc/internal/round"
	"github.com/luxfi/mpc/pkg/field"
	"github.com/luxfi/mpc/pkg/hash"
	"github.com/luxfi/mpc/pkg/party"
	"github.com/luxfi/mpc/pkg/preprocessing"
)

const schnorrProtocolID = "schnorr-sign"

// SchnorrSignature is a completed Schnorr signature: the compressed nonce
// point R followed by the response scalar s. It verifies against the
// equation s*G == R + e*P with e the domain-separated challenge below.
type SchnorrSignature struct {
	R [33]byte
	S [32]byte
}

// Bytes returns the 65-byte R||s serialization.
func (sig SchnorrSignature) Bytes() []byte {
	out := make([]byte, 65)
	copy(out[:33], sig.R[:])
	copy(out[33:], sig.S[:])
	return out
}

// schnorrChallenge derives the challenge scalar e = H(R, P, m), domain
// separated the same way every other digest in this module is.
func schnorrChallenge(noncePoint, pub, msg []byte) *secp256k1.ModNScalar {
	h := hash.New([]byte(schnorrProtocolID))
	_ = h.WriteAny(&hash.BytesWithDomain{TheDomain: "NoncePoint", Bytes: noncePoint})
	_ = h.WriteAny(&hash.BytesWithDomain{TheDomain: "PublicKey", Bytes: pub})
	_ = h.WriteAny(&hash.BytesWithDomain{TheDomain: "Message", Bytes: msg})
	e := new(secp256k1.ModNScalar)
	e.SetByteSlice(h.Sum())
	return e
}

// StartSchnorr begins a Schnorr signing run over msg, consuming one
// EcdsaAuxInfo from bundle. Schnorr's response is linear in both the nonce
// and the key — s = k + e*x — so each party's share s_i = [k]_i + e*[x]_i
// is local, and one broadcast plus an interpolation at zero completes the
// signature. No inverse material from the tuple is touched.
func StartSchnorr[F field.Prime](cluster party.IDSlice, self party.ID, threshold int, sessionID []byte, msg []byte, bundle *preprocessing.Bundle[F]) (round.Session[F], error) {
	helper, err := round.NewSession[F](round.Info{
		ProtocolID:       schnorrProtocolID,
		Cluster:          cluster,
		SelfID:           self,
		Threshold:        threshold,
		FinalRoundNumber: 1,
	}, sessionID)
	if err != nil {
		return nil, fmt.Errorf("ecdsasign.StartSchnorr: %w", err)
	}
	aux, err := bundle.PopEcdsaAux()
	if err != nil {
		return nil, fmt.Errorf("ecdsasign.StartSchnorr: %w", err)
	}

	kShare, err := scalarFromBytes(aux.NonceShare)
	if err != nil {
		return nil, fmt.Errorf("ecdsasign.StartSchnorr: nonce share: %w", err)
	}
	xShare, err := scalarFromBytes(aux.KeyShare)
	if err != nil {
		return nil, fmt.Errorf("ecdsasign.StartSchnorr: key share: %w", err)
	}
	pub, err := secp256k1.ParsePubKey(aux.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("ecdsasign.StartSchnorr: public key: %w", err)
	}
	noncePoint, err := secp256k1.ParsePubKey(aux.NoncePoint)
	if err != nil {
		return nil, fmt.Errorf("ecdsasign.StartSchnorr: nonce point: %w", err)
	}

	e := schnorrChallenge(aux.NoncePoint, aux.PublicKey, msg)
	sigShare := new(secp256k1.ModNScalar).Set(xShare)
	sigShare.Mul(e)
	sigShare.Add(kShare)

	return &schnorrRound1[F]{
		Helper:     helper,
		msg:        append([]byte(nil), msg...),
		pub:        pub,
		noncePoint: noncePoint,
		e:          e,
		sigShare:   sigShare,
	}, nil
}

type schnorrContent struct {
	round.NormalBroadcastContent
	Share []byte
}

func (schnorrContent) RoundNumber() round.Number { return 1 }

type schnorrRound1[F field.Prime] struct {
	*round.Helper[F]
	msg        []byte
	pub        *secp256k1.PublicKey
	noncePoint *secp256k1.PublicKey
	e          *secp256k1.ModNScalar
	sigShare   *secp256k1.ModNScalar
	shares     map[party.ID]*secp256k1.ModNScalar
}

func (r *schnorrRound1[F]) MessageContent() round.Content     { return nil }
func (r *schnorrRound1[F]) VerifyMessage(round.Message) error { return nil }
func (r *schnorrRound1[F]) StoreMessage(round.Message) error  { return nil }

func (r *schnorrRound1[F]) BroadcastContent() round.BroadcastContent {
	return &schnorrContent{Share: scalarBytes(r.sigShare)}
}

func (r *schnorrRound1[F]) StoreBroadcastMessage(msg round.Message) error {
	content, ok := msg.Content.(*schnorrContent)
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

func (r *schnorrRound1[F]) Finalize(chan<- *round.Message) (round.Session[F], error) {
	s, err := interpolateScalarAtZero(r.shares, r.PartyIDs())
	if err != nil {
		return nil, fmt.Errorf("ecdsasign: combining schnorr shares: %w", err)
	}
	if !verifySchnorr(s, r.e, r.noncePoint, r.pub) {
		return nil, fmt.Errorf("ecdsasign: combined schnorr signature failed verification; a party contributed a corrupt share")
	}
	var sig SchnorrSignature
	copy(sig.R[:], r.noncePoint.SerializeCompressed())
	sB := s.Bytes()
	copy(sig.S[:], sB[:])
	return &round.Output[F]{Result: sig}, nil
}

// verifySchnorr checks s*G == R + e*P in Jacobian coordinates.
func verifySchnorr(s, e *secp256k1.ModNScalar, noncePoint, pub *secp256k1.PublicKey) bool {
	var sG secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(s, &sG)
	sG.ToAffine()

	var rJ, pJ, eP, sum secp256k1.JacobianPoint
	noncePoint.AsJacobian(&rJ)
	pub.AsJacobian(&pJ)
	secp256k1.ScalarMultNonConst(e, &pJ, &eP)
	secp256k1.AddNonConst(&rJ, &eP, &sum)
	sum.ToAffine()

	return sG.X.Equals(&sum.X) && sG.Y.Equals(&sum.Y)
}

var _ round.BroadcastRound[field.Safe64] = (*schnorrRound1[field.Safe64])(nil)
