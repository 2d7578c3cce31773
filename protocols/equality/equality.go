// Package equality implements EqualsSecret and PublicOutputEquality: mask
// the difference of the two operands with a precomputed random value and
// open it, so equality collapses to a public zero-check. EqualsPublic
// needs no protocol (it is decided locally by the VM on two already-public
// values) and has no Start function here.
package equality

import (
	"fmt"

	"github.com/luxfi/mpc/internal/round"
	"github.com/luxfi/mpc/pkg/field"
	"github.com/luxfi/mpc/pkg/party"
	"github.com/luxfi/mpc/pkg/preprocessing"
	"github.com/luxfi/mpc/pkg/shamir"
)

const protocolID = "output-equality"

// Start begins an equality check between two shares, consuming one
// OutputEqualityTuple from bundle. Used for both EqualsSecret
// (PrivateOutputEquality element) and PublicOutputEquality
// (PublicOutputEquality element) — the element kind consumed is the
// caller's responsibility to account for in compile.Requirements; the
// protocol mechanics are identical.
func Start[F field.Prime](cluster party.IDSlice, self party.ID, threshold int, sessionID []byte, lhs, rhs shamir.Share[F], bundle *preprocessing.Bundle[F]) (round.Session[F], error) {
	helper, err := round.NewSession[F](round.Info{
		ProtocolID:       protocolID,
		Cluster:          cluster,
		SelfID:           self,
		Threshold:        threshold,
		FinalRoundNumber: 1,
	}, sessionID)
	if err != nil {
		return nil, fmt.Errorf("equality.Start: %w", err)
	}
	tuple, err := bundle.PopOutputEquality()
	if err != nil {
		return nil, fmt.Errorf("equality.Start: %w", err)
	}
	diff := lhs.Y.Sub(rhs.Y)
	return &round1[F]{
		Helper: helper,
		masked: diff.Mul(tuple.R),
	}, nil
}

type openContent[F field.Prime] struct {
	round.NormalBroadcastContent
	Masked field.Element[F]
}

func (openContent[F]) RoundNumber() round.Number { return 1 }

type round1[F field.Prime] struct {
	*round.Helper[F]
	masked   field.Element[F]
	received map[party.ID]shamir.Share[F]
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
	if r.received == nil {
		r.received = map[party.ID]shamir.Share[F]{}
	}
	x := party.Abscissa[F](r.PartyIDs(), msg.From)
	r.received[msg.From] = shamir.Share[F]{X: x, Y: content.Masked}
	return nil
}

func (r *round1[F]) Finalize(chan<- *round.Message) (round.Session[F], error) {
	opened, err := shamir.Recover[F](r.received, r.PartyIDs())
	if err != nil {
		return nil, fmt.Errorf("equality: opening masked difference failed: %w", err)
	}
	// The mask is itself a shared nonzero random value, so masked*(lhs-rhs)
	// is zero iff lhs == rhs, independent of the mask's actual value.
	return &round.Output[F]{Result: opened.IsZero()}, nil
}

var _ round.BroadcastRound[field.Safe64] = (*round1[field.Safe64])(nil)
