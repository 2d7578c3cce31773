// Division/Modulo with a secret dividend and a public divisor: mask the
// dividend with a
// preprocessed random multiple of the divisor so the opened value's exact
// quotient by the (public) divisor is the masked quotient plus the mask's
// own quotient, then subtract the mask's quotient share locally. This
// avoids needing a divisor-specific preprocessing element: the mask is
// drawn independently of which public divisor a given call uses.
package division

import (
	"fmt"

	"github.com/luxfi/mpc/internal/round"
	"github.com/luxfi/mpc/pkg/field"
	"github.com/luxfi/mpc/pkg/party"
	"github.com/luxfi/mpc/pkg/preprocessing"
	"github.com/luxfi/mpc/pkg/shamir"
)

const publicDivisorProtocolID = "division-public-divisor"

// PublicDivisorOp distinguishes Division from Modulo the same way Op does
// for the secret-divisor family.
type PublicDivisorOp int

const (
	PublicDivisorOpDivision PublicDivisorOp = iota
	PublicDivisorOpModulo
)

// StartPublicDivisor begins a secret-dividend/public-divisor Division or
// Modulo, consuming one ModuloTuple from bundle. The tuple's R is a shared
// random mask drawn independently of the divisor; masking with R*divisor
// (a local scalar multiplication, divisor being public) keeps the
// construction generic across every call site sharing the same
// preprocessing pool, at the cost of one extra local multiply per party.
func StartPublicDivisor[F field.Prime](cluster party.IDSlice, self party.ID, threshold int, sessionID []byte, op PublicDivisorOp, dividend shamir.Share[F], divisor field.Element[F], bundle *preprocessing.Bundle[F]) (round.Session[F], error) {
	helper, err := round.NewSession[F](round.Info{
		ProtocolID:       publicDivisorProtocolID,
		Cluster:          cluster,
		SelfID:           self,
		Threshold:        threshold,
		FinalRoundNumber: 1,
	}, sessionID)
	if err != nil {
		return nil, fmt.Errorf("division.StartPublicDivisor: %w", err)
	}
	tuple, err := bundle.PopModulo()
	if err != nil {
		return nil, fmt.Errorf("division.StartPublicDivisor: %w", err)
	}
	return &publicDivisorRound1[F]{
		Helper:   helper,
		op:       op,
		dividend: dividend,
		divisor:  divisor,
		rShare:   tuple.R,
		masked:   dividend.Y.Add(tuple.R.Mul(divisor)),
	}, nil
}

type publicDivisorOpenContent[F field.Prime] struct {
	round.NormalBroadcastContent
	Masked field.Element[F]
}

func (publicDivisorOpenContent[F]) RoundNumber() round.Number { return 1 }

type publicDivisorRound1[F field.Prime] struct {
	*round.Helper[F]
	op       PublicDivisorOp
	dividend shamir.Share[F]
	divisor  field.Element[F]
	rShare   field.Element[F] // this party's share of the mask r (not r*divisor)
	masked   field.Element[F] // degree-t share of dividend + r*divisor
	received map[party.ID]shamir.Share[F]
}

func (r *publicDivisorRound1[F]) MessageContent() round.Content     { return nil }
func (r *publicDivisorRound1[F]) VerifyMessage(round.Message) error { return nil }
func (r *publicDivisorRound1[F]) StoreMessage(round.Message) error  { return nil }

func (r *publicDivisorRound1[F]) BroadcastContent() round.BroadcastContent {
	return &publicDivisorOpenContent[F]{Masked: r.masked}
}

func (r *publicDivisorRound1[F]) StoreBroadcastMessage(msg round.Message) error {
	content, ok := msg.Content.(*publicDivisorOpenContent[F])
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

func (r *publicDivisorRound1[F]) Finalize(chan<- *round.Message) (round.Session[F], error) {
	opened, err := shamir.Recover[F](r.received, r.PartyIDs())
	if err != nil {
		return nil, fmt.Errorf("division: opening masked dividend failed: %w", err)
	}
	maskedQuotient, _, err := opened.IntDivMod(r.divisor)
	if err != nil {
		return nil, fmt.Errorf("division: public divisor is zero: %w", err)
	}
	// maskedQuotient = floor((dividend + r*divisor)/divisor) = floor(dividend/divisor) + r,
	// for nonnegative dividend/r; quotient_share = maskedQuotient (a public
	// constant, same at every party) - rShare.
	x := party.Abscissa[F](r.PartyIDs(), r.SelfID())
	quotientShare := shamir.Share[F]{X: x, Y: maskedQuotient.Sub(r.rShare)}
	if r.op == PublicDivisorOpDivision {
		return &round.Output[F]{Result: quotientShare}, nil
	}
	remainder := r.dividend.Y.Sub(quotientShare.Y.Mul(r.divisor))
	return &round.Output[F]{Result: shamir.Share[F]{X: x, Y: remainder}}, nil
}

var _ round.BroadcastRound[field.Safe64] = (*publicDivisorRound1[field.Safe64])(nil)
