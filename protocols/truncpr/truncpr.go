// Package truncpr implements TRUNC-PR: probabilistic truncation of a
// secret value by a public power of two. The value is shifted into the
// non-negative range and masked with the bounded random value a
// TruncPrTuple carries in bit-shared form — bounded so the sum never wraps
// the modulus — then the masked sum is revealed and every party locally
// combines its low bits with its own share of the mask's low part and a
// multiplication by the precomputed inverse of 2^m. The carry between the
// mask's low bits and the opened low bits is deliberately not corrected:
// the result is floor(x/2^m) or floor(x/2^m)+1, the standard
// probabilistic-truncation trade that saves the bitwise comparison the
// exact protocol (protocols/compare) pays for.
package truncpr

import (
	"fmt"

	"github.com/luxfi/mpc/internal/round"
	"github.com/luxfi/mpc/pkg/field"
	"github.com/luxfi/mpc/pkg/party"
	"github.com/luxfi/mpc/pkg/preprocessing"
	"github.com/luxfi/mpc/pkg/shamir"
)

const protocolID = "trunc-pr"

// Start begins a TRUNC-PR run truncating x by m bits, consuming one
// TruncPrTuple from bundle. x must represent a signed integer in
// [-2^(k-1), 2^(k-1)) for k = preprocessing.SignedBits, and m must be
// below k.
func Start[F field.Prime](cluster party.IDSlice, self party.ID, threshold int, sessionID []byte, x shamir.Share[F], m uint, bundle *preprocessing.Bundle[F]) (round.Session[F], error) {
	if m == 0 || m >= preprocessing.SignedBits {
		return nil, fmt.Errorf("truncpr.Start: shift amount %d outside (0, %d)", m, preprocessing.SignedBits)
	}
	helper, err := round.NewSession[F](round.Info{
		ProtocolID:       protocolID,
		Cluster:          cluster,
		SelfID:           self,
		Threshold:        threshold,
		FinalRoundNumber: 1,
	}, sessionID)
	if err != nil {
		return nil, fmt.Errorf("truncpr.Start: %w", err)
	}
	tuple, err := bundle.PopTruncPr()
	if err != nil {
		return nil, fmt.Errorf("truncpr.Start: %w", err)
	}
	if len(tuple.RBits) != preprocessing.MaskBits {
		return nil, fmt.Errorf("truncpr: mask carries %d bit shares, need %d", len(tuple.RBits), preprocessing.MaskBits)
	}

	// Split the mask at the shift amount: rLow covers the bits the shift
	// discards, rHigh the rest.
	rLow := field.Zero[F]()
	for i := uint(0); i < m; i++ {
		rLow = rLow.Add(tuple.RBits[i].Lsh(i))
	}
	rHigh := field.Zero[F]()
	for i := m; i < preprocessing.MaskBits; i++ {
		rHigh = rHigh.Add(tuple.RBits[i].Lsh(i - m))
	}

	half := field.FromUint64[F](1).Lsh(uint(preprocessing.SignedBits - 1))
	masked := x.Y.Add(half).Add(rHigh.Lsh(m)).Add(rLow)

	return &round1[F]{
		Helper: helper,
		m:      m,
		x:      x,
		rLow:   rLow,
		masked: masked,
		opened: map[party.ID]shamir.Share[F]{},
	}, nil
}

type openContent[F field.Prime] struct {
	round.NormalBroadcastContent
	Masked field.Element[F]
}

func (openContent[F]) RoundNumber() round.Number { return 1 }

type round1[F field.Prime] struct {
	*round.Helper[F]
	m      uint
	x      shamir.Share[F]
	rLow   field.Element[F] // share of the mask's low m bits combined
	masked field.Element[F]
	opened map[party.ID]shamir.Share[F]
}

func (r *round1[F]) MessageContent() round.Content     { return nil }
func (r *round1[F]) VerifyMessage(round.Message) error { return nil }
func (r *round1[F]) StoreMessage(round.Message) error  { return nil }

func (r *round1[F]) BroadcastContent() round.BroadcastContent {
	return &openContent[F]{Masked: r.masked}
}

func (r *round1[F]) StoreBroadcastMessage(msg round.Message) error {
	content, ok := msg.Content.(*openContent[F])
	if !ok {
		return round.ErrInvalidContent
	}
	x := party.Abscissa[F](r.PartyIDs(), msg.From)
	r.opened[msg.From] = shamir.Share[F]{X: x, Y: content.Masked}
	return nil
}

func (r *round1[F]) Finalize(chan<- *round.Message) (round.Session[F], error) {
	opened, err := shamir.Recover[F](r.opened, r.PartyIDs())
	if err != nil {
		return nil, fmt.Errorf("truncpr: opening masked value failed: %w", err)
	}
	// The opened value's low m bits are (x's low bits + mask's low bits)
	// mod 2^m; subtracting the mask's low share leaves x's low bits, up to
	// one uncorrected 2^m carry. Dividing the difference out of x by the
	// field inverse of 2^m is then exact.
	cPrime := opened.Normal().Big().Uint64() & (1<<r.m - 1)
	cPrimeElem := field.FromUint64[F](cPrime)

	pow2m := field.FromUint64[F](1).Lsh(r.m)
	inv2m, err := pow2m.Inverse()
	if err != nil {
		return nil, fmt.Errorf("truncpr: inverting 2^%d: %w", r.m, err)
	}
	result := r.x.Y.Sub(cPrimeElem).Add(r.rLow).Mul(inv2m)
	x := party.Abscissa[F](r.PartyIDs(), r.SelfID())
	return &round.Output[F]{Result: shamir.Share[F]{X: x, Y: result}}, nil
}

var _ round.BroadcastRound[field.Safe64] = (*round1[field.Safe64])(nil)
