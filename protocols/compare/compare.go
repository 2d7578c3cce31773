// Package compare implements LESS-THAN-ZERO: given a share of x, produce a
// share of 1 if the represented signed integer is negative, 0 otherwise.
//
// The construction is the standard truncation-based sign extraction over
// k = preprocessing.SignedBits bit values. Round 1 opens
// x + 2^(k-1) + mask, where the mask is the bounded random value a
// CompareTuple carries in bit-shared form — bounded so the sum never wraps
// the modulus and the opened value relates to x by plain integer
// arithmetic. The low bits of the opened value then determine x mod
// 2^(k-1) up to one carry, and that carry is exactly whether the public
// low bits are less than the mask's low bits: a bitwise less-than between
// a public value and shared bits, evaluated as a chain of MULT-SHARES
// invocations over the tuple's bit shares (the tree-of-MULTs shape
// BIT-LESS-THAN calls for, run as a sequential prefix product). With
// x mod 2^(k-1) in hand, the sign is (x - x mod 2^(k-1)) / 2^(k-1), which
// is 0 for non-negative x and -1 for negative x; the result is its
// negation.
package compare

import (
	"fmt"

	"github.com/luxfi/mpc/internal/round"
	"github.com/luxfi/mpc/pkg/field"
	"github.com/luxfi/mpc/pkg/party"
	"github.com/luxfi/mpc/pkg/preprocessing"
	"github.com/luxfi/mpc/pkg/shamir"
	"github.com/luxfi/mpc/protocols/mult"
)

const protocolID = "less-than-zero"

// lowBits is the m of the x mod 2^m step: the sign lives one bit above the
// low k-1 bits.
const lowBits = preprocessing.SignedBits - 1

// Start begins a LESS-THAN-ZERO run deciding the sign of x's represented
// value, consuming one CompareTuple from bundle. x must represent a signed
// integer in [-2^(k-1), 2^(k-1)) for k = preprocessing.SignedBits.
func Start[F field.Prime](cluster party.IDSlice, self party.ID, threshold int, sessionID []byte, x shamir.Share[F], bundle *preprocessing.Bundle[F]) (round.Session[F], error) {
	helper, err := round.NewSession[F](round.Info{
		ProtocolID:       protocolID,
		Cluster:          cluster,
		SelfID:           self,
		Threshold:        threshold,
		FinalRoundNumber: 2,
	}, sessionID)
	if err != nil {
		return nil, fmt.Errorf("compare.Start: %w", err)
	}
	tuple, err := bundle.PopCompare()
	if err != nil {
		return nil, fmt.Errorf("compare.Start: %w", err)
	}
	if len(tuple.RBits) != preprocessing.MaskBits {
		return nil, fmt.Errorf("compare: mask carries %d bit shares, need %d", len(tuple.RBits), preprocessing.MaskBits)
	}

	// Low and high mask parts, derived linearly from the bit shares:
	// rLow = sum_{i<m} 2^i b_i, rHigh = sum_{i>=m} 2^(i-m) b_i.
	rLow := field.Zero[F]()
	for i := 0; i < lowBits; i++ {
		rLow = rLow.Add(tuple.RBits[i].Lsh(uint(i)))
	}
	rHigh := field.Zero[F]()
	for i := lowBits; i < preprocessing.MaskBits; i++ {
		rHigh = rHigh.Add(tuple.RBits[i].Lsh(uint(i - lowBits)))
	}

	// masked = x + 2^(k-1) + 2^m*rHigh + rLow; the shift into the
	// non-negative range and the bounded mask widths keep the integer sum
	// below the modulus, so the opening wraps nothing.
	half := field.FromUint64[F](1).Lsh(uint(preprocessing.SignedBits - 1))
	masked := x.Y.Add(half).Add(rHigh.Lsh(uint(lowBits))).Add(rLow)

	return &round1[F]{
		Helper:    helper,
		cluster:   cluster,
		self:      self,
		threshold: threshold,
		sessionID: sessionID,
		x:         x,
		lowMask:   rLow,
		bits:      tuple.RBits[:lowBits],
		masked:    masked,
		opened:    map[party.ID]shamir.Share[F]{},
	}, nil
}

// openContent carries one party's share of the masked, shifted value.
type openContent[F field.Prime] struct {
	round.NormalBroadcastContent
	Masked field.Element[F]
}

func (openContent[F]) RoundNumber() round.Number { return 1 }

type round1[F field.Prime] struct {
	*round.Helper[F]
	cluster   party.IDSlice
	self      party.ID
	threshold int
	sessionID []byte
	x         shamir.Share[F]
	lowMask   field.Element[F]   // share of the mask's low m bits combined
	bits      []field.Element[F] // shares of those same bits, for the carry
	masked    field.Element[F]
	opened    map[party.ID]shamir.Share[F]
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
	c, err := shamir.Recover[F](r.opened, r.PartyIDs())
	if err != nil {
		return nil, fmt.Errorf("compare: opening masked value failed: %w", err)
	}
	cPrime := c.Normal().Big().Uint64() & (1<<uint(lowBits) - 1)

	chain := &bitLT[F]{
		cluster:   r.cluster,
		self:      r.self,
		threshold: r.threshold,
		sessionID: r.sessionID,
		x:         r.x,
		lowMask:   r.lowMask,
		bits:      r.bits,
		cPrime:    cPrime,
		idx:       lowBits - 1,
		phase:     phaseAccumulate,
		pIsOne:    true,
		acc:       field.Zero[F](),
	}
	return chain.startStep()
}

type bitLTPhase int

const (
	phaseAccumulate bitLTPhase = iota // acc += p * w_i
	phasePrefix                       // p *= eq_i
)

type pendingOp int

const (
	pendingNone pendingOp = iota
	pendingAccumulate
	pendingPrefix
)

// bitLT evaluates the carry u = [cPrime < r_low] over the mask's bit
// shares, scanning from the most significant bit down: p tracks the
// running "all higher bits equal" indicator, and acc accumulates the
// positions where the mask's bit exceeds the public bit while everything
// above agrees. Each secret*secret product is one chained MULT-SHARES
// invocation; steps whose factors are public stay local.
type bitLT[F field.Prime] struct {
	round.Forward[F]
	cluster   party.IDSlice
	self      party.ID
	threshold int
	sessionID []byte

	x       shamir.Share[F]
	lowMask field.Element[F]
	bits    []field.Element[F]
	cPrime  uint64

	idx     int
	phase   bitLTPhase
	pIsOne  bool
	p       field.Element[F]
	acc     field.Element[F]
	pending pendingOp
	step    int
}

func (w *bitLT[F]) publicBit(i int) bool { return w.cPrime&(1<<uint(i)) != 0 }

// eqShare returns this party's share of [a_i == b_i]: b_i when the public
// bit is 1, 1 - b_i when it is 0. Both are linear in the bit share.
func (w *bitLT[F]) eqShare(i int) field.Element[F] {
	if w.publicBit(i) {
		return w.bits[i]
	}
	return field.FromUint64[F](1).Sub(w.bits[i])
}

func (w *bitLT[F]) selfShare(y field.Element[F]) shamir.Share[F] {
	return shamir.Share[F]{X: party.Abscissa[F](w.cluster, w.self), Y: y}
}

// startStep advances the scan, running every local step inline and
// returning as soon as a MULT is in flight (or the scan is done).
func (w *bitLT[F]) startStep() (round.Session[F], error) {
	for w.idx >= 0 {
		switch w.phase {
		case phaseAccumulate:
			if w.publicBit(w.idx) {
				// w_i = b_i * (1 - a_i) vanishes for a set public bit.
				w.phase = phasePrefix
				continue
			}
			if w.pIsOne {
				w.acc = w.acc.Add(w.bits[w.idx])
				w.phase = phasePrefix
				continue
			}
			sess, err := w.startMult(w.p, w.bits[w.idx])
			if err != nil {
				return nil, err
			}
			w.pending = pendingAccumulate
			w.phase = phasePrefix
			w.Inner = sess
			return w, nil

		case phasePrefix:
			if w.idx == 0 {
				// The prefix below the last bit is never read.
				w.idx--
				continue
			}
			eq := w.eqShare(w.idx)
			if w.pIsOne {
				w.p = eq
				w.pIsOne = false
				w.idx--
				w.phase = phaseAccumulate
				continue
			}
			sess, err := w.startMult(w.p, eq)
			if err != nil {
				return nil, err
			}
			w.pending = pendingPrefix
			w.idx--
			w.phase = phaseAccumulate
			w.Inner = sess
			return w, nil
		}
	}
	return w.finish()
}

func (w *bitLT[F]) startMult(a, b field.Element[F]) (round.Session[F], error) {
	stepID := append(append([]byte{}, w.sessionID...), byte(w.step), byte(w.step>>8))
	w.step++
	sess, err := mult.Start[F](w.cluster, w.self, w.threshold, stepID, w.selfShare(a), w.selfShare(b))
	if err != nil {
		return nil, fmt.Errorf("compare: starting bit-less-than step %d: %w", w.step-1, err)
	}
	return sess, nil
}

func (w *bitLT[F]) ProtocolID() string { return "less-than-zero/" + w.Inner.ProtocolID() }

func (w *bitLT[F]) Finalize(out chan<- *round.Message) (round.Session[F], error) {
	next, err := w.Inner.Finalize(out)
	if err != nil {
		return nil, err
	}
	innerOutput, ok := next.(*round.Output[F])
	if !ok {
		w.Inner = next
		return w, nil
	}
	product, ok := innerOutput.Result.(shamir.Share[F])
	if !ok {
		return nil, fmt.Errorf("compare: unexpected bit-less-than result type %T", innerOutput.Result)
	}
	switch w.pending {
	case pendingAccumulate:
		w.acc = w.acc.Add(product.Y)
	case pendingPrefix:
		w.p = product.Y
	default:
		return nil, fmt.Errorf("compare: bit-less-than finalize with no product pending")
	}
	w.pending = pendingNone
	return w.startStep()
}

// finish assembles the result once the carry u = acc is known:
// x mod 2^m = cPrime - r_low + 2^m*u, and the sign is
// (x - x mod 2^m) / 2^m, which the negation turns into the 0/1
// less-than-zero indicator.
func (w *bitLT[F]) finish() (round.Session[F], error) {
	pow2m := field.FromUint64[F](1).Lsh(uint(lowBits))
	cPrimeElem := field.FromUint64[F](w.cPrime)

	xModM := cPrimeElem.Sub(w.lowMask).Add(w.acc.Mul(pow2m))
	inv2m, err := pow2m.Inverse()
	if err != nil {
		return nil, fmt.Errorf("compare: inverting 2^%d: %w", lowBits, err)
	}
	sign := w.x.Y.Sub(xModM).Mul(inv2m)
	ltz := field.Zero[F]().Sub(sign)
	return &round.Output[F]{Result: w.selfShare(ltz)}, nil
}

var (
	_ round.BroadcastRound[field.Safe64] = (*round1[field.Safe64])(nil)
	_ round.BroadcastRound[field.Safe64] = (*bitLT[field.Safe64])(nil)
	_ round.UnicastRound[field.Safe64]   = (*bitLT[field.Safe64])(nil)
)
