// Wire encoding for messages crossing the network boundary between VM
// instances: content is marshalled to cbor bytes for transport and
// unmarshalled back into a template obtained from the receiving session
// itself, since only the session in flight at a given address knows the
// concrete Go type its current round expects.
package vm

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/luxfi/mpc/internal/round"
	"github.com/luxfi/mpc/pkg/bytecode"
	"github.com/luxfi/mpc/pkg/party"
)

// WireMessage is an OutboundMessage with its Content already serialized,
// the form a driver actually puts on the network.
type WireMessage struct {
	From      party.ID
	To        party.ID
	Broadcast bool
	Addr      bytecode.Address
	Data      []byte
}

// EncodeMessage serializes an OutboundMessage's content for transport.
func EncodeMessage(msg OutboundMessage) (WireMessage, error) {
	data, err := cbor.Marshal(msg.Content)
	if err != nil {
		return WireMessage{}, fmt.Errorf("vm: encoding message at address %d: %w", msg.Addr, err)
	}
	return WireMessage{From: msg.From, To: msg.To, Broadcast: msg.Broadcast, Addr: msg.Addr, Data: data}, nil
}

// DecodeMessage deserializes a WireMessage into a PartyMessage, asking the
// currently active protocol at wire.Addr for the content template to
// unmarshal into.
func (v *VM[F]) DecodeMessage(wire WireMessage) (PartyMessage, error) {
	if v.active == nil || v.active.addr != wire.Addr {
		return PartyMessage{}, fmt.Errorf("vm: wire message for address %d but no matching protocol in flight", wire.Addr)
	}
	var content round.Content
	if wire.Broadcast {
		br, ok := v.active.session.(round.BroadcastRound[F])
		if !ok {
			return PartyMessage{}, fmt.Errorf("vm: broadcast wire message at address %d but the round in flight is unicast", wire.Addr)
		}
		content = br.BroadcastContent()
		if content == nil {
			return PartyMessage{}, fmt.Errorf("vm: broadcast wire message at address %d but the round in flight is unicast", wire.Addr)
		}
	} else {
		content = v.active.session.MessageContent()
		if content == nil {
			return PartyMessage{}, fmt.Errorf("vm: unicast wire message at address %d but the round in flight expects none", wire.Addr)
		}
	}
	if err := cbor.Unmarshal(wire.Data, content); err != nil {
		return PartyMessage{}, fmt.Errorf("vm: decoding message at address %d: %w", wire.Addr, err)
	}
	return PartyMessage{From: wire.From, Addr: wire.Addr, Broadcast: wire.Broadcast, Content: content}, nil
}
