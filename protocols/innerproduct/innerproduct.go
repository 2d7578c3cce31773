// Package innerproduct implements the InnerProduct bytecode operation:
// given two equal-length vectors of shares a and b, compute sum(a_i * b_i)
// in two rounds regardless of vector length. Each party sums its local
// pairwise products — one degree-2t share of the whole inner product — so
// the same double-sharing-and-REVEAL reduction MULT-SHARES uses applies
// once to the sum, not once per pair: round 1 extracts one fresh random r
// double-shared at degree t and 2t via the hyper-invertible matrix, round
// 2 opens sum + r and every party subtracts its degree-t mask share. No
// preprocessing is consumed.
//
// Bytecode convention: InnerProduct's operand list is read as interleaved
// pairs (a_0, b_0, a_1, b_1, ...); compile.go validates the list has even
// length before reaching this package.
package innerproduct

import (
	"crypto/rand"
	"fmt"

	"github.com/luxfi/mpc/internal/round"
	"github.com/luxfi/mpc/pkg/field"
	"github.com/luxfi/mpc/pkg/party"
	"github.com/luxfi/mpc/pkg/shamir"
)

const protocolID = "inner-product"

// Pair is one (a_i, b_i) term of the inner product.
type Pair[F field.Prime] struct {
	A, B shamir.Share[F]
}

// Start begins an InnerProduct run over pairs.
func Start[F field.Prime](cluster party.IDSlice, self party.ID, threshold int, sessionID []byte, pairs []Pair[F]) (round.Session[F], error) {
	if len(pairs) == 0 {
		return nil, fmt.Errorf("innerproduct.Start: empty vector")
	}
	helper, err := round.NewSession[F](round.Info{
		ProtocolID:       protocolID,
		Cluster:          cluster,
		SelfID:           self,
		Threshold:        threshold,
		FinalRoundNumber: 2,
	}, sessionID)
	if err != nil {
		return nil, fmt.Errorf("innerproduct.Start: %w", err)
	}

	sum := field.Zero[F]()
	for _, p := range pairs {
		sum = sum.Add(p.A.Y.Mul(p.B.Y))
	}

	contribution := field.Random[F](rand.Reader)
	dealT, err := shamir.Deal[F](rand.Reader, contribution, shamir.DegreeT.Resolve(threshold), cluster)
	if err != nil {
		return nil, fmt.Errorf("innerproduct.Start: dealing degree-t contribution: %w", err)
	}
	dealTwoT, err := shamir.Deal[F](rand.Reader, contribution, shamir.DegreeTwoT.Resolve(threshold), cluster)
	if err != nil {
		return nil, fmt.Errorf("innerproduct.Start: dealing degree-2t contribution: %w", err)
	}

	return &round1[F]{
		Helper:   helper,
		sum:      sum,
		dealT:    dealT,
		dealTwoT: dealTwoT,
		recvT:    map[party.ID]field.Element[F]{},
		recvTwoT: map[party.ID]field.Element[F]{},
	}, nil
}

// dealContent carries the sender's double-sharing contribution for the
// receiving party, a different pair per recipient.
type dealContent[F field.Prime] struct {
	T    field.Element[F]
	TwoT field.Element[F]
}

func (dealContent[F]) RoundNumber() round.Number { return 1 }

type round1[F field.Prime] struct {
	*round.Helper[F]
	sum      field.Element[F] // local sum of a_i * b_i, degree 2t
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

func (r *round1[F]) Finalize(chan<- *round.Message) (round.Session[F], error) {
	sorted := r.PartyIDs()
	inT := make([]field.Element[F], len(sorted))
	inTwoT := make([]field.Element[F], len(sorted))
	for i, id := range sorted {
		yT, okT := r.recvT[id]
		yTwoT, okTwoT := r.recvTwoT[id]
		if !okT || !okTwoT {
			return nil, fmt.Errorf("innerproduct: missing double-sharing contribution from %s", id)
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
		masked: r.sum.Add(maskTwoT),
		opened: map[party.ID]shamir.Share[F]{},
	}, nil
}

type openContent[F field.Prime] struct {
	round.NormalBroadcastContent
	Masked field.Element[F]
}

func (openContent[F]) RoundNumber() round.Number { return 2 }

type round2[F field.Prime] struct {
	*round1[F]
	maskT  field.Element[F]
	masked field.Element[F]
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
	d, err := shamir.Recover[F](r.opened, r.PartyIDs())
	if err != nil {
		return nil, fmt.Errorf("innerproduct: opening masked sum failed: %w", err)
	}
	x := party.Abscissa[F](r.PartyIDs(), r.SelfID())
	return &round.Output[F]{Result: shamir.Share[F]{X: x, Y: d.Sub(r.maskT)}}, nil
}

var (
	_ round.UnicastRound[field.Safe64]   = (*round1[field.Safe64])(nil)
	_ round.BroadcastRound[field.Safe64] = (*round2[field.Safe64])(nil)
)
