// Package division implements the secret-divisor branches of Division and
// its mirrored Modulo, each consuming one DivisionIntegerSecret element,
// using the standard Bar-Ilan/Beaver double-sharing trick: mask the
// divisor with a precomputed double-shared random value, open the masked
// product directly (no multiplication round needed since the mask is
// already double-shared), then multiply the dividend by the divisor's
// precomputed inverse share and the public masked value's inverse.
package division

import (
	"fmt"

	"github.com/luxfi/mpc/internal/round"
	"github.com/luxfi/mpc/pkg/field"
	"github.com/luxfi/mpc/pkg/party"
	"github.com/luxfi/mpc/pkg/preprocessing"
	"github.com/luxfi/mpc/pkg/shamir"
)

const protocolID = "division-secret-divisor"

// Op distinguishes the two bytecode operations this protocol backs; the
// only difference is whether the VM keeps the quotient or its remainder
// (computed as dividend - quotient*divisor, left to the caller).
type Op int

const (
	OpDivision Op = iota
	OpModulo
)

// Start begins a secret-divisor division (or, for Modulo, the same
// quotient computation the VM then reduces locally) of shared dividend by
// shared divisor, consuming one DivisionTuple from bundle.
//
// This computes the exact field quotient dividend*divisor^-1, not a signed
// floor division: unlike the public-divisor family (which can reveal a
// masked dividend and floor-divide it as a plain integer), masking a secret
// divisor only lets this construction open divisor*r, never the divisor
// itself, so there is no point at which an integer (non-field) division can
// run. Callers that need floor semantics with a non-exact secret divisor
// need a bit-decomposition-based construction this package does not
// implement; see DESIGN.md's open-questions notes.
func Start[F field.Prime](cluster party.IDSlice, self party.ID, threshold int, sessionID []byte, op Op, dividend, divisor shamir.Share[F], bundle *preprocessing.Bundle[F]) (round.Session[F], error) {
	helper, err := round.NewSession[F](round.Info{
		ProtocolID:       protocolID,
		Cluster:          cluster,
		SelfID:           self,
		Threshold:        threshold,
		FinalRoundNumber: 1,
	}, sessionID)
	if err != nil {
		return nil, fmt.Errorf("division.Start: %w", err)
	}
	tuple, err := bundle.PopDivision()
	if err != nil {
		return nil, fmt.Errorf("division.Start: %w", err)
	}
	return &round1[F]{
		Helper:     helper,
		op:         op,
		dividend:   dividend,
		maskedProd: divisor.Y.Mul(tuple.RTwoT),
		mask:       tuple.R,
	}, nil
}

type openContent[F field.Prime] struct {
	round.NormalBroadcastContent
	MaskedProduct field.Element[F]
}

func (openContent[F]) RoundNumber() round.Number { return 1 }

type round1[F field.Prime] struct {
	*round.Helper[F]
	op         Op
	dividend   shamir.Share[F]
	maskedProd field.Element[F] // degree-2t share of divisor * r
	mask       field.Element[F] // degree-t share of r itself
	received   map[party.ID]shamir.Share[F]
}

func (r *round1[F]) MessageContent() round.Content     { return nil }
func (r *round1[F]) VerifyMessage(round.Message) error { return nil }
func (r *round1[F]) StoreMessage(round.Message) error  { return nil }

func (r *round1[F]) BroadcastContent() round.BroadcastContent {
	return &openContent[F]{MaskedProduct: r.maskedProd}
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
	r.received[msg.From] = shamir.Share[F]{X: x, Y: content.MaskedProduct}
	return nil
}

func (r *round1[F]) Finalize(chan<- *round.Message) (round.Session[F], error) {
	maskedDivisor, err := shamir.Recover[F](r.received, r.PartyIDs())
	if err != nil {
		return nil, fmt.Errorf("division: opening masked divisor failed: %w", err)
	}
	maskedInv, err := maskedDivisor.Inverse()
	if err != nil {
		return nil, fmt.Errorf("division: divisor is zero: %w", err)
	}
	// dividend * divisor^-1 == dividend * mask * (divisor*mask)^-1.
	quotientShare := r.dividend.Y.Mul(r.mask).Mul(maskedInv)
	x := party.Abscissa[F](r.PartyIDs(), r.SelfID())
	return &round.Output[F]{Result: shamir.Share[F]{X: x, Y: quotientShare}}, nil
}

var _ round.BroadcastRound[field.Safe64] = (*round1[field.Safe64])(nil)
