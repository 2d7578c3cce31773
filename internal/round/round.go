// Package round provides the generic scaffolding every protocol state
// machine in protocols/* is built from: a Session interface describing one
// round's lifecycle (verify, store, finalize into the next round), a Helper
// embedding the bookkeeping common to every round of a given protocol run,
// and the two terminal pseudo-rounds (Abort, Output) a Finalize can produce.
//
// The scaffolding is generic over a field.Prime type parameter so the
// same scaffold serves every supported modulus.
package round

import (
	"errors"

	"github.com/luxfi/mpc/pkg/field"
	"github.com/luxfi/mpc/pkg/hash"
	"github.com/luxfi/mpc/pkg/party"
)

// Number identifies a round within a single protocol execution. Round 0 is
// reserved for out-of-band abort notifications (Abort reports it).
type Number int

// Content is carried by a Message: every round-specific payload type
// implements it by reporting which round it belongs to.
type Content interface {
	RoundNumber() Number
}

// BroadcastContent is Content that must be reliably broadcast (every party
// must see the same value, not just the sender's direct claim).
type BroadcastContent interface {
	Content
	broadcastMarker()
}

// NormalBroadcastContent is embedded by concrete content types to mark them
// as broadcast content without requiring them to reimplement the marker
// method. Embedders still must implement RoundNumber() themselves.
type NormalBroadcastContent struct{}

func (NormalBroadcastContent) broadcastMarker() {}

// Message is one routed protocol message: either unicast (To set, Broadcast
// false), addressed to every other party (To empty, Broadcast false), or a
// reliable broadcast (To empty, Broadcast true).
type Message struct {
	From      party.ID
	To        party.ID
	Content   Content
	Broadcast bool
}

// ErrInvalidContent is returned by StoreMessage/StoreBroadcastMessage when a
// message's Content is not the type the round expects.
var ErrInvalidContent = errors.New("round: unexpected message content type")

// Session is one round of a running protocol instance. A round's Finalize
// either returns the next round, a terminal *Abort, or a terminal *Output.
type Session[F field.Prime] interface {
	Number() Number
	FinalRoundNumber() Number
	SelfID() party.ID
	PartyIDs() party.IDSlice
	OtherPartyIDs() party.IDSlice
	N() int
	Threshold() int
	SSID() []byte
	ProtocolID() string
	Hash() *hash.Hash

	// MessageContent returns a freshly-constructed zero value of the
	// content type this round expects for ordinary (non-broadcast)
	// messages, for unmarshalling into. nil means this round expects no
	// ordinary messages.
	MessageContent() Content
	VerifyMessage(msg Message) error
	StoreMessage(msg Message) error

	// Finalize is called once every expected message for this round has
	// been stored. It returns the next round to advance to.
	Finalize(out chan<- *Message) (Session[F], error)
}

// BroadcastRound is a Session whose round also requires a reliably
// broadcast message from every party.
type BroadcastRound[F field.Prime] interface {
	Session[F]
	BroadcastContent() BroadcastContent
	StoreBroadcastMessage(msg Message) error
}

// UnicastRound is a Session whose round sends a distinct message to each
// party instead of one shared broadcast — the shape RAN-style dealing
// needs, where party j must learn its own share of every other party's
// contribution and nobody else's. Inbound messages go through the plain
// StoreMessage path.
type UnicastRound[F field.Prime] interface {
	Session[F]
	UnicastContent(to party.ID) Content
}

// Info carries the fixed parameters of a protocol run: which parties are
// involved, who "self" is, and the reconstruction threshold.
type Info struct {
	ProtocolID       string
	Cluster          party.IDSlice
	SelfID           party.ID
	Threshold        int
	FinalRoundNumber Number
}

// Helper holds the bookkeeping every concrete round embeds by pointer
// (*round1 embeds *Helper, *round2 embeds *round1, and so on).
type Helper[F field.Prime] struct {
	info Info
	ssid []byte
	h    *hash.Hash
	n    Number
}

// NewSession derives the session ID (SSID) from the protocol ID, cluster,
// and caller-supplied sessionID, and returns a Helper initialized at round 1.
func NewSession[F field.Prime](info Info, sessionID []byte) (*Helper[F], error) {
	if info.Threshold < 1 || info.Threshold >= len(info.Cluster) {
		return nil, errors.New("round: threshold must satisfy 1 <= t < n")
	}
	if !info.Cluster.Contains(info.SelfID) {
		return nil, errors.New("round: selfID is not a cluster member")
	}
	h := hash.New()
	_ = h.WriteAny(&hash.BytesWithDomain{TheDomain: "ProtocolID", Bytes: []byte(info.ProtocolID)})
	for _, id := range info.Cluster.Sorted() {
		_ = h.WriteAny(&hash.BytesWithDomain{TheDomain: "PartyID", Bytes: []byte(id)})
	}
	_ = h.WriteAny(&hash.BytesWithDomain{TheDomain: "SessionID", Bytes: sessionID})
	ssid := h.Sum()
	return &Helper[F]{info: info, ssid: ssid, h: h, n: 1}, nil
}

func (h *Helper[F]) Number() Number           { return h.n }
func (h *Helper[F]) FinalRoundNumber() Number { return h.info.FinalRoundNumber }
func (h *Helper[F]) SelfID() party.ID         { return h.info.SelfID }
func (h *Helper[F]) PartyIDs() party.IDSlice  { return h.info.Cluster.Sorted() }
func (h *Helper[F]) OtherPartyIDs() party.IDSlice {
	return h.info.Cluster.Sorted().Other(h.info.SelfID)
}
func (h *Helper[F]) N() int             { return len(h.info.Cluster) }
func (h *Helper[F]) Threshold() int     { return h.info.Threshold }
func (h *Helper[F]) SSID() []byte       { return h.ssid }
func (h *Helper[F]) ProtocolID() string { return h.info.ProtocolID }
func (h *Helper[F]) Hash() *hash.Hash   { return h.h.Clone() }

// AdvanceTo returns a new Helper positioned at round number n, sharing the
// same session identity. Concrete roundN.Finalize methods use this to build
// the *round.Helper embedded in roundN+1.
func (h *Helper[F]) AdvanceTo(n Number) *Helper[F] {
	return &Helper[F]{info: h.info, ssid: h.ssid, h: h.h, n: n}
}

// BroadcastMessage appends a reliable-broadcast message addressed to every
// other party onto out.
func (h *Helper[F]) BroadcastMessage(out chan<- *Message, content BroadcastContent) error {
	out <- &Message{From: h.SelfID(), Content: content, Broadcast: true}
	return nil
}

// SendMessage appends a unicast message to a specific party. If to is empty,
// the message is addressed to every other party (still non-broadcast:
// each recipient gets the sender's direct claim, unverified against peers).
func (h *Helper[F]) SendMessage(out chan<- *Message, content Content, to party.ID) error {
	out <- &Message{From: h.SelfID(), To: to, Content: content}
	return nil
}

// Abort is a terminal Session produced by Finalize when the round detects an
// unrecoverable protocol-level error.
type Abort[F field.Prime] struct {
	Err      error
	Culprits []party.ID
}

func (a *Abort[F]) Number() Number                                      { return 0 }
func (a *Abort[F]) FinalRoundNumber() Number                             { return 0 }
func (a *Abort[F]) SelfID() party.ID                                     { return "" }
func (a *Abort[F]) PartyIDs() party.IDSlice                              { return nil }
func (a *Abort[F]) OtherPartyIDs() party.IDSlice                         { return nil }
func (a *Abort[F]) N() int                                               { return 0 }
func (a *Abort[F]) Threshold() int                                       { return 0 }
func (a *Abort[F]) SSID() []byte                                         { return nil }
func (a *Abort[F]) ProtocolID() string                                   { return "" }
func (a *Abort[F]) Hash() *hash.Hash                                     { return hash.New() }
func (a *Abort[F]) MessageContent() Content                              { return nil }
func (a *Abort[F]) VerifyMessage(Message) error                          { return nil }
func (a *Abort[F]) StoreMessage(Message) error                           { return nil }
func (a *Abort[F]) Finalize(chan<- *Message) (Session[F], error)         { return a, nil }

// Output is the terminal Session produced by the protocol's last round.
type Output[F field.Prime] struct {
	Result interface{}
}

func (o *Output[F]) Number() Number                              { return -1 }
func (o *Output[F]) FinalRoundNumber() Number                     { return -1 }
func (o *Output[F]) SelfID() party.ID                             { return "" }
func (o *Output[F]) PartyIDs() party.IDSlice                      { return nil }
func (o *Output[F]) OtherPartyIDs() party.IDSlice                 { return nil }
func (o *Output[F]) N() int                                       { return 0 }
func (o *Output[F]) Threshold() int                               { return 0 }
func (o *Output[F]) SSID() []byte                                 { return nil }
func (o *Output[F]) ProtocolID() string                           { return "" }
func (o *Output[F]) Hash() *hash.Hash                             { return hash.New() }
func (o *Output[F]) MessageContent() Content                      { return nil }
func (o *Output[F]) VerifyMessage(Message) error                  { return nil }
func (o *Output[F]) StoreMessage(Message) error                  { return nil }
func (o *Output[F]) Finalize(chan<- *Message) (Session[F], error) { return o, nil }
