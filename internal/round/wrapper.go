package round

import (
	"github.com/luxfi/mpc/pkg/field"
	"github.com/luxfi/mpc/pkg/hash"
	"github.com/luxfi/mpc/pkg/party"
)

// Forward is embedded by composite protocols that drive an inner
// sub-session through their own Finalize (IF-ELSE over MULT, power's
// square-and-multiply chain, modulo's DIVISION-then-MULT pipeline): every
// Session method is delegated to Inner, and the broadcast/unicast surfaces
// pass through only when Inner actually carries them, so the driver can
// ask a wrapper which kind of round is in flight without knowing what it
// wraps. Embedders implement Finalize themselves — that is where the
// composition lives.
type Forward[F field.Prime] struct {
	Inner Session[F]
}

func (f *Forward[F]) Number() Number               { return f.Inner.Number() }
func (f *Forward[F]) FinalRoundNumber() Number     { return f.Inner.FinalRoundNumber() }
func (f *Forward[F]) SelfID() party.ID             { return f.Inner.SelfID() }
func (f *Forward[F]) PartyIDs() party.IDSlice      { return f.Inner.PartyIDs() }
func (f *Forward[F]) OtherPartyIDs() party.IDSlice { return f.Inner.OtherPartyIDs() }
func (f *Forward[F]) N() int                       { return f.Inner.N() }
func (f *Forward[F]) Threshold() int               { return f.Inner.Threshold() }
func (f *Forward[F]) SSID() []byte                 { return f.Inner.SSID() }
func (f *Forward[F]) ProtocolID() string           { return f.Inner.ProtocolID() }
func (f *Forward[F]) Hash() *hash.Hash             { return f.Inner.Hash() }

func (f *Forward[F]) MessageContent() Content       { return f.Inner.MessageContent() }
func (f *Forward[F]) VerifyMessage(m Message) error { return f.Inner.VerifyMessage(m) }
func (f *Forward[F]) StoreMessage(m Message) error  { return f.Inner.StoreMessage(m) }

// BroadcastContent returns nil when the wrapped round is not a broadcast
// round; drivers treat a nil content as "try the unicast surface".
func (f *Forward[F]) BroadcastContent() BroadcastContent {
	if br, ok := f.Inner.(BroadcastRound[F]); ok {
		return br.BroadcastContent()
	}
	return nil
}

func (f *Forward[F]) StoreBroadcastMessage(m Message) error {
	if br, ok := f.Inner.(BroadcastRound[F]); ok {
		return br.StoreBroadcastMessage(m)
	}
	return ErrInvalidContent
}

// UnicastContent returns nil when the wrapped round is not a unicast round.
func (f *Forward[F]) UnicastContent(to party.ID) Content {
	if ur, ok := f.Inner.(UnicastRound[F]); ok {
		return ur.UnicastContent(to)
	}
	return nil
}
