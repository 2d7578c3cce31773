// Package power implements the Power bytecode operation by square-and-
// multiply: base^exponent is computed as a fixed sequence of squarings and
// accumulator multiplies, each one MULT-SHARES invocation, chained the way
// protocols/division/modulo.go chains DIVISION into MULT. The exponent must
// be known publicly at protocol-start time (compile.go only selects this
// protocol when the exponent operand is a literal), so the schedule of
// squarings and multiplies is fixed before the first round runs; only the
// bases themselves may be secret-shared.
package power

import (
	"fmt"
	"math/bits"

	"github.com/luxfi/mpc/internal/round"
	"github.com/luxfi/mpc/pkg/field"
	"github.com/luxfi/mpc/pkg/party"
	"github.com/luxfi/mpc/pkg/shamir"
	"github.com/luxfi/mpc/protocols/mult"
)

// step is one entry of the square-and-multiply schedule.
type step int

const (
	stepSquare step = iota // acc = acc * acc
	stepAccum              // acc = acc * cur (cur is the base)
)

// schedule returns the sequence of steps computing base^exponent via
// left-to-right square-and-multiply over the exponent's bits, MSB first
// (skipping the implicit leading 1 bit, which seeds acc = base).
func schedule(exponent uint64) []step {
	if exponent == 0 {
		return nil
	}
	n := bits.Len64(exponent)
	steps := make([]step, 0, 2*n)
	for i := n - 2; i >= 0; i-- {
		steps = append(steps, stepSquare)
		if exponent&(1<<uint(i)) != 0 {
			steps = append(steps, stepAccum)
		}
	}
	return steps
}

// Start begins a Power run computing base^exponent. exponent == 0 yields a
// share of 1 with no rounds at all (handled as an immediate Output,
// matching how a zero-round protocol finalizes in round.Session's
// "already-Output" convention).
func Start[F field.Prime](cluster party.IDSlice, self party.ID, threshold int, sessionID []byte, base shamir.Share[F], exponent uint64) (round.Session[F], error) {
	if exponent == 0 {
		x := party.Abscissa[F](cluster, self)
		return &round.Output[F]{Result: shamir.Share[F]{X: x, Y: field.FromUint64[F](1)}}, nil
	}
	steps := schedule(exponent)
	w := &wrapper[F]{
		cluster: cluster, self: self, threshold: threshold, sessionID: sessionID,
		steps: steps, pos: 0, acc: base, cur: base,
	}
	return w.startStep()
}

// wrapper drives one MULT per schedule step, threading the running
// accumulator (acc, the eventual result) and the base (cur) through each
// round the way moduloWrapper threads its quotient.
type wrapper[F field.Prime] struct {
	round.Forward[F]
	cluster   party.IDSlice
	self      party.ID
	threshold int
	sessionID []byte
	steps     []step
	pos       int
	acc, cur  shamir.Share[F]
}

func (w *wrapper[F]) startStep() (round.Session[F], error) {
	if w.pos >= len(w.steps) {
		return &round.Output[F]{Result: w.acc}, nil
	}
	multSessionID := append(append([]byte{}, w.sessionID...), byte(w.pos), byte(w.pos>>8))
	var a, b shamir.Share[F]
	switch w.steps[w.pos] {
	case stepSquare:
		a, b = w.acc, w.acc
	case stepAccum:
		a, b = w.acc, w.cur
	default:
		return nil, fmt.Errorf("power: unknown schedule step %d", w.steps[w.pos])
	}
	sess, err := mult.Start[F](w.cluster, w.self, w.threshold, multSessionID, a, b)
	if err != nil {
		return nil, fmt.Errorf("power: starting step %d: %w", w.pos, err)
	}
	w.Inner = sess
	return w, nil
}

func (w *wrapper[F]) ProtocolID() string { return "power/" + w.Inner.ProtocolID() }

func (w *wrapper[F]) Finalize(out chan<- *round.Message) (round.Session[F], error) {
	next, err := w.Inner.Finalize(out)
	if err != nil {
		return nil, err
	}
	innerOutput, ok := next.(*round.Output[F])
	if !ok {
		w.Inner = next
		return w, nil
	}
	result, ok := innerOutput.Result.(shamir.Share[F])
	if !ok {
		return nil, fmt.Errorf("power: unexpected step result type %T", innerOutput.Result)
	}
	switch w.steps[w.pos] {
	case stepSquare:
		w.acc = result
	case stepAccum:
		w.acc = result
	}
	w.pos++
	return w.startStep()
}

var _ round.BroadcastRound[field.Safe64] = (*wrapper[field.Safe64])(nil)
var _ round.UnicastRound[field.Safe64] = (*wrapper[field.Safe64])(nil)
