// MODULO-WITH-SECRET-DIVISOR: runs DIVISION to get a shared
// quotient, then one MULT of divisor*quotient, then a local subtraction
// dividend - divisor*quotient to recover the remainder. This file composes
// the two online sub-protocols the way protocols/ifelse composes a single
// one, generalized to a two-stage wrapper.
package division

import (
	"fmt"

	"github.com/luxfi/mpc/internal/round"
	"github.com/luxfi/mpc/pkg/field"
	"github.com/luxfi/mpc/pkg/party"
	"github.com/luxfi/mpc/pkg/preprocessing"
	"github.com/luxfi/mpc/pkg/shamir"
	"github.com/luxfi/mpc/protocols/mult"
)

// StartModulo begins a MODULO-WITH-SECRET-DIVISOR run, consuming one
// DivisionIntegerSecret element up front (via Start/OpModulo); the chained
// divisor*quotient MULT needs no preprocessing of its own.
func StartModulo[F field.Prime](cluster party.IDSlice, self party.ID, threshold int, sessionID []byte, dividend, divisor shamir.Share[F], bundle *preprocessing.Bundle[F]) (round.Session[F], error) {
	inner, err := Start[F](cluster, self, threshold, sessionID, OpModulo, dividend, divisor, bundle)
	if err != nil {
		return nil, fmt.Errorf("division.StartModulo: %w", err)
	}
	return &moduloWrapper[F]{
		Forward:   round.Forward[F]{Inner: inner},
		stage:     stageDivision,
		cluster:   cluster,
		self:      self,
		threshold: threshold,
		sessionID: sessionID,
		dividend:  dividend,
		divisor:   divisor,
	}, nil
}

type moduloStage int

const (
	stageDivision moduloStage = iota
	stageMultiply
)

// moduloWrapper drives DIVISION to completion, then starts a MULT of
// divisor*quotient, then locally subtracts the product from the dividend.
type moduloWrapper[F field.Prime] struct {
	round.Forward[F]
	stage     moduloStage
	cluster   party.IDSlice
	self      party.ID
	threshold int
	sessionID []byte
	dividend  shamir.Share[F]
	divisor   shamir.Share[F]
}

func (w *moduloWrapper[F]) ProtocolID() string { return "modulo/" + w.Inner.ProtocolID() }

func (w *moduloWrapper[F]) Finalize(out chan<- *round.Message) (round.Session[F], error) {
	next, err := w.Inner.Finalize(out)
	if err != nil {
		return nil, err
	}
	innerOutput, ok := next.(*round.Output[F])
	if !ok {
		w.Inner = next
		return w, nil
	}

	switch w.stage {
	case stageDivision:
		quotient, ok := innerOutput.Result.(shamir.Share[F])
		if !ok {
			return nil, fmt.Errorf("division: unexpected quotient result type %T", innerOutput.Result)
		}
		multSessionID := append(append([]byte{}, w.sessionID...), byte(stageMultiply))
		multSess, err := mult.Start[F](w.cluster, w.self, w.threshold, multSessionID, w.divisor, quotient)
		if err != nil {
			return nil, fmt.Errorf("division: starting divisor*quotient mult: %w", err)
		}
		w.stage = stageMultiply
		w.Inner = multSess
		return w, nil

	case stageMultiply:
		product, ok := innerOutput.Result.(shamir.Share[F])
		if !ok {
			return nil, fmt.Errorf("division: unexpected product result type %T", innerOutput.Result)
		}
		remainder := w.dividend.Y.Sub(product.Y)
		return &round.Output[F]{Result: shamir.Share[F]{X: w.dividend.X, Y: remainder}}, nil

	default:
		return nil, fmt.Errorf("division: unknown modulo wrapper stage %d", w.stage)
	}
}

var _ round.BroadcastRound[field.Safe64] = (*moduloWrapper[field.Safe64])(nil)
var _ round.UnicastRound[field.Safe64] = (*moduloWrapper[field.Safe64])(nil)
