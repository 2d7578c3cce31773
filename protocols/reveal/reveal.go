// Package reveal implements REVEAL, the protocol backing bytecode's Reveal
// operation: every party broadcasts its share and reconstructs in the
// clear. Two modes: All (every party learns the result) and Nth (only one
// designated party learns it, the rest send but do not need to open).
//
// Built on internal/round's Helper/BroadcastMessage scaffolding, the same
// single-round shape as the other mask-and-open protocols.
package reveal

import (
	"fmt"

	"github.com/luxfi/mpc/internal/round"
	"github.com/luxfi/mpc/pkg/field"
	"github.com/luxfi/mpc/pkg/party"
	"github.com/luxfi/mpc/pkg/shamir"
)

const protocolID = "reveal"

// Mode selects who learns the revealed value.
type Mode int

const (
	ModeAll Mode = iota
	ModeNth
)

// Start begins a REVEAL run opening share, the caller's local share of the
// value; mode selects who learns the result and recipient names the
// learning party under ModeNth.
func Start[F field.Prime](cluster party.IDSlice, self party.ID, threshold int, sessionID []byte, mode Mode, recipient party.ID, share shamir.Share[F]) (round.Session[F], error) {
	helper, err := round.NewSession[F](round.Info{
		ProtocolID:       protocolID,
		Cluster:          cluster,
		SelfID:           self,
		Threshold:        threshold,
		FinalRoundNumber: 1,
	}, sessionID)
	if err != nil {
		return nil, fmt.Errorf("reveal.Start: %w", err)
	}
	if mode == ModeNth && !cluster.Contains(recipient) {
		return nil, fmt.Errorf("reveal.Start: recipient %s is not a cluster member", recipient)
	}
	return &round1[F]{
		Helper:    helper,
		mode:      mode,
		recipient: recipient,
		own:       share,
		received:  map[party.ID]shamir.Share[F]{self: share},
	}, nil
}

// shareContent carries one party's share of the secret being revealed.
type shareContent[F field.Prime] struct {
	round.NormalBroadcastContent
	Share shamir.Share[F]
}

func (shareContent[F]) RoundNumber() round.Number { return 1 }

type round1[F field.Prime] struct {
	*round.Helper[F]
	mode      Mode
	recipient party.ID
	own       shamir.Share[F]
	received  map[party.ID]shamir.Share[F]
}

func (r *round1[F]) MessageContent() round.Content { return nil }

func (r *round1[F]) VerifyMessage(round.Message) error { return nil }

func (r *round1[F]) StoreMessage(round.Message) error { return nil }

func (r *round1[F]) BroadcastContent() round.BroadcastContent {
	return &shareContent[F]{Share: r.own}
}

func (r *round1[F]) StoreBroadcastMessage(msg round.Message) error {
	content, ok := msg.Content.(*shareContent[F])
	if !ok {
		return round.ErrInvalidContent
	}
	r.received[msg.From] = content.Share
	return nil
}

func (r *round1[F]) Finalize(out chan<- *round.Message) (round.Session[F], error) {
	if r.mode == ModeAll || r.SelfID() == r.recipient {
		secret, err := shamir.Recover[F](r.received, r.PartyIDs())
		if err != nil {
			return nil, fmt.Errorf("reveal: recovery failed: %w", err)
		}
		return &round.Output[F]{Result: secret}, nil
	}
	return &round.Output[F]{Result: nil}, nil
}

var _ round.BroadcastRound[field.Safe64] = (*round1[field.Safe64])(nil)
