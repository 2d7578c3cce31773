// Package mult implements MULT-SHARES, the protocol behind
// MultiplicationShares. Each party multiplies its shares locally — raising
// the sharing degree from t to 2t — then the cluster reduces back to
// degree t: round 1 extracts a fresh random value r double-shared at
// degree t and degree 2t (every party deals a contribution, the
// hyper-invertible matrix recombines them), and round 2 is a REVEAL of the
// degree-2t value a*b + r, after which each party's product share is the
// opened value minus its degree-t share of r. No preprocessing is
// consumed; the randomness is extracted inline from the cluster itself.
package mult

import (
	"crypto/rand"
	"fmt"

	"github.com/luxfi/mpc/internal/round"
	"github.com/luxfi/mpc/pkg/field"
	"github.com/luxfi/mpc/pkg/party"
	"github.com/luxfi/mpc/pkg/shamir"
)

const protocolID = "mult-shares"

// Start begins a MULT-SHARES run multiplying the local shares of a and b.
func Start[F field.Prime](cluster party.IDSlice, self party.ID, threshold int, sessionID []byte, a, b shamir.Share[F]) (round.Session[F], error) {
	helper, err := round.NewSession[F](round.Info{
		ProtocolID:       protocolID,
		Cluster:          cluster,
		SelfID:           self,
		Threshold:        threshold,
		FinalRoundNumber: 2,
	}, sessionID)
	if err != nil {
		return nil, fmt.Errorf("mult.Start: %w", err)
	}

	// Deal this party's contribution s to the double sharing: the same
	// secret under an independent degree-t and degree-2t polynomial.
	contribution := field.Random[F](rand.Reader)
	dealT, err := shamir.Deal[F](rand.Reader, contribution, shamir.DegreeT.Resolve(threshold), cluster)
	if err != nil {
		return nil, fmt.Errorf("mult.Start: dealing degree-t contribution: %w", err)
	}
	dealTwoT, err := shamir.Deal[F](rand.Reader, contribution, shamir.DegreeTwoT.Resolve(threshold), cluster)
	if err != nil {
		return nil, fmt.Errorf("mult.Start: dealing degree-2t contribution: %w", err)
	}

	return &round1[F]{
		Helper:   helper,
		product:  a.Y.Mul(b.Y),
		dealT:    dealT,
		dealTwoT: dealTwoT,
		recvT:    map[party.ID]field.Element[F]{},
		recvTwoT: map[party.ID]field.Element[F]{},
	}, nil
}

// dealContent carries the sender's double-sharing contribution FOR the
// receiving party: its share of the contribution at degree t and at degree
// 2t. A different pair per recipient, so the round is unicast.
type dealContent[F field.Prime] struct {
	T    field.Element[F]
	TwoT field.Element[F]
}

func (dealContent[F]) RoundNumber() round.Number { return 1 }

type round1[F field.Prime] struct {
	*round.Helper[F]
	product  field.Element[F] // local a_i * b_i, a degree-2t share of a*b
	dealT    map[party.ID]shamir.Share[F]
	dealTwoT map[party.ID]shamir.Share[F]
	recvT    map[party.ID]field.Element[F]
	recvTwoT map[party.ID]field.Element[F]
}

func (r *round1[F]) MessageContent() round.Content     { return &dealContent[F]{} }
func (r *round1[F]) VerifyMessage(round.Message) error { return nil }

func (r *round1[F]) UnicastContent(to party.ID) round.Content {
	return &dealContent[F]{T: r.dealT[to].Y, TwoT: r.dealTwoT[to].Y}
}

func (r *round1[F]) StoreMessage(msg round.Message) error {
	content, ok := msg.Content.(*dealContent[F])
	if !ok {
		return round.ErrInvalidContent
	}
	r.recvT[msg.From] = content.T
	r.recvTwoT[msg.From] = content.TwoT
	return nil
}

// Finalize recombines the received contribution shares through the
// hyper-invertible matrix, yielding this party's degree-t and degree-2t
// shares of one fresh random r, and opens the masked product in round 2.
func (r *round1[F]) Finalize(chan<- *round.Message) (round.Session[F], error) {
	sorted := r.PartyIDs()
	inT := make([]field.Element[F], len(sorted))
	inTwoT := make([]field.Element[F], len(sorted))
	for i, id := range sorted {
		yT, okT := r.recvT[id]
		yTwoT, okTwoT := r.recvTwoT[id]
		if !okT || !okTwoT {
			return nil, fmt.Errorf("mult: missing double-sharing contribution from %s", id)
		}
		inT[i] = yT
		inTwoT[i] = yTwoT
	}
	him := shamir.NewHyperInvertibleMatrix[F](len(sorted), r.Threshold())
	maskT := him.Apply(inT)[0]
	maskTwoT := him.Apply(inTwoT)[0]

	return &round2[F]{
		round1: r,
		maskT:  maskT,
		masked: r.product.Add(maskTwoT),
		opened: map[party.ID]shamir.Share[F]{},
	}, nil
}

// openContent carries one party's degree-2t share of a*b + r.
type openContent[F field.Prime] struct {
	round.NormalBroadcastContent
	Masked field.Element[F]
}

func (openContent[F]) RoundNumber() round.Number { return 2 }

type round2[F field.Prime] struct {
	*round1[F]
	maskT  field.Element[F] // degree-t share of r
	masked field.Element[F] // degree-2t share of a*b + r
	opened map[party.ID]shamir.Share[F]
}

func (r *round2[F]) MessageContent() round.Content     { return nil }
func (r *round2[F]) VerifyMessage(round.Message) error { return nil }
func (r *round2[F]) StoreMessage(round.Message) error  { return nil }

func (r *round2[F]) Number() round.Number { return 2 }

func (r *round2[F]) BroadcastContent() round.BroadcastContent {
	return &openContent[F]{Masked: r.masked}
}

func (r *round2[F]) StoreBroadcastMessage(msg round.Message) error {
	content, ok := msg.Content.(*openContent[F])
	if !ok {
		return round.ErrInvalidContent
	}
	x := party.Abscissa[F](r.PartyIDs(), msg.From)
	r.opened[msg.From] = shamir.Share[F]{X: x, Y: content.Masked}
	return nil
}

func (r *round2[F]) Finalize(chan<- *round.Message) (round.Session[F], error) {
	// a*b + r is degree 2t, so opening needs 2t+1 shares; all n are used.
	d, err := shamir.Recover[F](r.opened, r.PartyIDs())
	if err != nil {
		return nil, fmt.Errorf("mult: opening masked product failed: %w", err)
	}
	// The opened value is public, so every party subtracts its degree-t
	// mask share from it, leaving a degree-t sharing of a*b.
	x := party.Abscissa[F](r.PartyIDs(), r.SelfID())
	return &round.Output[F]{Result: shamir.Share[F]{X: x, Y: d.Sub(r.maskT)}}, nil
}

var (
	_ round.UnicastRound[field.Safe64]   = (*round1[field.Safe64])(nil)
	_ round.BroadcastRound[field.Safe64] = (*round2[field.Safe64])(nil)
)
