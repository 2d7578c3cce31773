// Package ifelse implements the online IfElse case: secret condition, at
// least one secret branch. The public-cond and public-branches cases need
// no protocol (the VM decides them locally) and have no Start function
// here.
//
// The construction is the standard oblivious select: result = cond*(a-b)+b,
// computed as one MultiplicationShares invocation (cond is boolean, so
// cond*(a-b) selects a when cond=1, 0 when cond=0) plus a local addition.
// This package only threads the inputs through mult.Start and back; it
// keeps no state of its own beyond what mult.Start already tracks.
package ifelse

import (
	"fmt"

	"github.com/luxfi/mpc/internal/round"
	"github.com/luxfi/mpc/pkg/field"
	"github.com/luxfi/mpc/pkg/party"
	"github.com/luxfi/mpc/pkg/shamir"
	"github.com/luxfi/mpc/protocols/mult"
)

// Start begins an IF-ELSE run selecting ifTrue when cond's represented
// value is 1, ifFalse otherwise.
func Start[F field.Prime](cluster party.IDSlice, self party.ID, threshold int, sessionID []byte, cond, ifTrue, ifFalse shamir.Share[F]) (round.Session[F], error) {
	diff := shamir.Share[F]{X: ifTrue.X, Y: ifTrue.Y.Sub(ifFalse.Y)}
	inner, err := mult.Start[F](cluster, self, threshold, sessionID, cond, diff)
	if err != nil {
		return nil, fmt.Errorf("ifelse.Start: %w", err)
	}
	return &wrapper[F]{Forward: round.Forward[F]{Inner: inner}, base: ifFalse}, nil
}

// wrapper adapts mult's Output (a share of cond*(a-b)) into IfElse's
// Output (a share of cond*(a-b)+b) once the inner protocol finalizes.
type wrapper[F field.Prime] struct {
	round.Forward[F]
	base shamir.Share[F]
}

func (w *wrapper[F]) ProtocolID() string { return "ifelse/" + w.Inner.ProtocolID() }

func (w *wrapper[F]) Finalize(out chan<- *round.Message) (round.Session[F], error) {
	next, err := w.Inner.Finalize(out)
	if err != nil {
		return nil, err
	}
	innerOutput, ok := next.(*round.Output[F])
	if !ok {
		// Inner protocol needs another round; keep wrapping it.
		w.Inner = next
		return w, nil
	}
	selected, ok := innerOutput.Result.(shamir.Share[F])
	if !ok {
		return nil, fmt.Errorf("ifelse: unexpected inner result type %T", innerOutput.Result)
	}
	result := shamir.Share[F]{X: selected.X, Y: selected.Y.Add(w.base.Y)}
	return &round.Output[F]{Result: result}, nil
}

var _ round.BroadcastRound[field.Safe64] = (*wrapper[field.Safe64])(nil)
var _ round.UnicastRound[field.Safe64] = (*wrapper[field.Safe64])(nil)
