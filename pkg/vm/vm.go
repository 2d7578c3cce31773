// Package vm implements the execution VM: a single-threaded cooperative
// driver of one compute session on one party, running a compile.Program to
// completion over address-indexed memory — an ordered program of
// protocols, each consuming preprocessing and storing its result at a
// bytecode address.
package vm

import (
	"errors"
	"fmt"

	"github.com/luxfi/mpc/internal/round"
	"github.com/luxfi/mpc/pkg/bytecode"
	"github.com/luxfi/mpc/pkg/compile"
	"github.com/luxfi/mpc/pkg/field"
	"github.com/luxfi/mpc/pkg/ir"
	"github.com/luxfi/mpc/pkg/party"
	"github.com/luxfi/mpc/pkg/preprocessing"
	"github.com/luxfi/mpc/pkg/shamir"
	"github.com/luxfi/mpc/protocols/ecdsasign"
)

// ErrOperationNotWired is the safety net behind the dispatch switches:
// every compile.Kind is wired, so hitting it means compile emitted a Kind
// the dispatch tables below do not know, a bug rather than a user error.
var ErrOperationNotWired = errors.New("vm: protocol kind not wired in this build")

// ErrPreprocessingExhausted mirrors preprocessing.ErrExhausted at the VM
// boundary: a missing preprocessing share is fatal to the session.
var ErrPreprocessingExhausted = preprocessing.ErrExhausted

// PartyMessage is one inbound message delivered to proceed, tagged with the
// bytecode instruction (address) it belongs to so the VM can route it to
// the right in-flight protocol even if message delivery is out of order
// across instructions. Broadcast mirrors the sender's OutboundMessage flag:
// composite protocols switch between broadcast and unicast rounds
// mid-instance, so the receiver cannot infer the store path from its own
// state alone.
type PartyMessage struct {
	From      party.ID
	Addr      bytecode.Address
	Broadcast bool
	Content   round.Content
}

// VmYield is the result of initialize or proceed.
type VmYield struct {
	// Messages, if non-nil, must be shipped by the driver; the VM then
	// expects proceed to be called once replies arrive.
	Messages []OutboundMessage
	// Result is set once every protocol has completed.
	Result *Result
	// Empty means nothing to do yet (waiting on messages already sent).
	Empty bool
}

// OutboundMessage is one message the driver must ship, tagged with the
// bytecode instruction it belongs to.
type OutboundMessage struct {
	From      party.ID
	To        party.ID // empty means "every other party"
	Broadcast bool
	Addr      bytecode.Address
	Content   round.Content
}

// Result is the VM's terminal yield: output values, converted from
// Montgomery form to their encoded boundary form, plus basic metrics.
type Result struct {
	Outputs map[string]field.Encoded
	Metrics Metrics
}

// Metrics records simple counters a driver can log or export.
type Metrics struct {
	ProtocolsRun  int
	MessagesSent  int
	OnlineRounds  int
}

// VM drives one protocol program for one party.
type VM[F field.Prime] struct {
	computeID string
	cluster   party.IDSlice
	self      party.ID
	threshold int
	prog      *compile.Program
	bundle    *preprocessing.Bundle[F]

	mem []Value[F]
	pc  int

	active  *activeProtocol[F]
	outputs map[string]bytecode.Address
	metrics Metrics
}

type activeProtocol[F field.Prime] struct {
	addr     bytecode.Address
	session  round.Session[F]
	received map[party.ID]bool
}

// New constructs a VM. inputs maps each input name (as declared in the
// bytecode program contract) to this party's local value for it.
func New[F field.Prime](computeID string, cluster party.IDSlice, self party.ID, threshold int, prog *compile.Program, bundle *preprocessing.Bundle[F], inputs map[string]Value[F]) (*VM[F], error) {
	v := &VM[F]{
		computeID: computeID,
		cluster:   cluster,
		self:      self,
		threshold: threshold,
		prog:      prog,
		bundle:    bundle,
		mem:       make([]Value[F], len(prog.Protocols)),
		outputs:   prog.Outputs,
	}
	for name, addr := range prog.Inputs {
		val, ok := inputs[name]
		if !ok {
			return nil, fmt.Errorf("vm: missing local value for input %q", name)
		}
		v.mem[addr] = val
	}
	return v, nil
}

// Initialize returns the first VmYield, running every Local protocol until
// the first Online one blocks on messages, or the program completes.
func (v *VM[F]) Initialize() (VmYield, error) {
	return v.advance()
}

// Proceed feeds one inbound message and returns the resulting VmYield.
func (v *VM[F]) Proceed(msg PartyMessage) (VmYield, error) {
	if v.active == nil || v.active.addr != msg.Addr {
		return VmYield{}, fmt.Errorf("vm: message for address %d but no matching protocol in flight", msg.Addr)
	}
	sess := v.active.session
	var err error
	if msg.Broadcast {
		br, ok := sess.(round.BroadcastRound[F])
		if !ok {
			return VmYield{}, fmt.Errorf("vm: broadcast message at address %d but the round in flight is unicast", msg.Addr)
		}
		err = br.StoreBroadcastMessage(round.Message{From: msg.From, Content: msg.Content, Broadcast: true})
	} else {
		err = sess.StoreMessage(round.Message{From: msg.From, To: v.self, Content: msg.Content})
	}
	if err != nil {
		return VmYield{}, fmt.Errorf("vm: storing message at address %d: %w", msg.Addr, err)
	}
	v.active.received[msg.From] = true
	if len(v.active.received) < v.cluster.Len() {
		return VmYield{Empty: true}, nil
	}
	next, err := sess.Finalize(nil)
	if err != nil {
		return VmYield{}, fmt.Errorf("vm: finalizing protocol at address %d: %w", v.active.addr, err)
	}
	return v.afterFinalize(v.active.addr, next)
}

// afterFinalize routes a Finalize result: an Output stores its value and
// moves the program counter on, an Abort kills the session, and anything
// else is a further round of the same protocol instance, armed and its
// messages emitted without ever re-entering startOnline (re-starting would
// construct a fresh session and double-consume preprocessing).
func (v *VM[F]) afterFinalize(addr bytecode.Address, next round.Session[F]) (VmYield, error) {
	switch s := next.(type) {
	case *round.Output[F]:
		val, err := v.coerceResult(addr, s.Result)
		if err != nil {
			return VmYield{}, err
		}
		v.mem[addr] = val
		v.active = nil
		v.pc = int(addr) + 1
		v.metrics.ProtocolsRun++
		return v.advance()
	case *round.Abort[F]:
		return VmYield{}, fmt.Errorf("vm: protocol at address %d aborted: %w", addr, s.Err)
	}
	return v.armRound(addr, next)
}

// armRound makes sess the in-flight round at addr, delivers the local
// party's own message to itself (the way round.Helper.BroadcastMessage
// addresses every party including the sender), and returns the Messages
// yield carrying the round's traffic to every other party.
func (v *VM[F]) armRound(addr bytecode.Address, sess round.Session[F]) (VmYield, error) {
	v.active = &activeProtocol[F]{addr: addr, session: sess, received: map[party.ID]bool{}}
	v.metrics.OnlineRounds++

	// Composite protocols carry both round surfaces and report which one is
	// live by returning nil from the other, so the decision is made on the
	// content, not on the static type alone.
	msgs := make([]OutboundMessage, 0, v.cluster.Len()-1)
	var content round.BroadcastContent
	br, isBroadcast := sess.(round.BroadcastRound[F])
	if isBroadcast {
		content = br.BroadcastContent()
	}
	if content != nil {
		if err := br.StoreBroadcastMessage(round.Message{From: v.self, Content: content, Broadcast: true}); err != nil {
			return VmYield{}, fmt.Errorf("vm: storing own message at address %d: %w", addr, err)
		}
		for _, to := range v.cluster {
			if to == v.self {
				continue
			}
			msgs = append(msgs, OutboundMessage{From: v.self, To: to, Broadcast: true, Addr: addr, Content: content})
		}
	} else if ur, ok := sess.(round.UnicastRound[F]); ok && ur.UnicastContent(v.self) != nil {
		if err := sess.StoreMessage(round.Message{From: v.self, To: v.self, Content: ur.UnicastContent(v.self)}); err != nil {
			return VmYield{}, fmt.Errorf("vm: storing own message at address %d: %w", addr, err)
		}
		for _, to := range v.cluster {
			if to == v.self {
				continue
			}
			msgs = append(msgs, OutboundMessage{From: v.self, To: to, Addr: addr, Content: ur.UnicastContent(to)})
		}
	} else {
		return VmYield{}, fmt.Errorf("vm: protocol at address %d emits neither broadcast nor unicast content", addr)
	}
	v.active.received[v.self] = true
	v.metrics.MessagesSent += len(msgs)
	return VmYield{Messages: msgs}, nil
}

func (v *VM[F]) coerceResult(addr bytecode.Address, result interface{}) (Value[F], error) {
	switch r := result.(type) {
	case shamir.Share[F]:
		return SecretValue[F](r), nil
	case field.Element[F]:
		return PublicValue[F](r), nil
	case bool:
		y := field.FromUint64[F](0)
		if r {
			y = field.FromUint64[F](1)
		}
		if v.prog.Protocols[addr].Result.Visibility == ir.Secret {
			x := party.Abscissa[F](v.cluster, v.self)
			return SecretValue[F](shamir.Share[F]{X: x, Y: y}), nil
		}
		return PublicValue[F](y), nil
	case ecdsasign.Signature:
		return BytesValue[F](r.Bytes()), nil
	case ecdsasign.SchnorrSignature:
		return BytesValue[F](r.Bytes()), nil
	case preprocessing.EcdsaAuxInfo:
		return Value[F]{}, nil // consumed directly by the signing backend, not stored in memory
	default:
		return Value[F]{}, fmt.Errorf("vm: address %d produced unexpected result type %T", addr, result)
	}
}

// advance runs every Local protocol starting at pc, stopping at the first
// Online protocol (which it starts and reports as a Messages yield) or at
// the end of the program (reported as Result).
func (v *VM[F]) advance() (VmYield, error) {
	for v.pc < len(v.prog.Protocols) {
		proto := v.prog.Protocols[v.pc]
		if proto.Line == compile.Local {
			val, err := v.runLocal(proto)
			if err != nil {
				return VmYield{}, fmt.Errorf("vm: address %d: %w", proto.Addr, err)
			}
			v.mem[proto.Addr] = val
			v.pc++
			v.metrics.ProtocolsRun++
			continue
		}
		return v.startOnline(proto)
	}
	return v.finish()
}

func (v *VM[F]) finish() (VmYield, error) {
	outputs := make(map[string]field.Encoded, len(v.outputs))
	for name, addr := range v.outputs {
		val := v.mem[addr]
		if val.IsSecret() {
			return VmYield{}, fmt.Errorf("vm: output %q is still secret-shared at program end; REVEAL was not compiled for it", name)
		}
		if val.Bytes != nil {
			outputs[name] = field.Encoded{Tag: field.TagOpaque, Bytes: val.Bytes}
			continue
		}
		outputs[name] = field.Encode[F](val.Public)
	}
	return VmYield{Result: &Result{Outputs: outputs, Metrics: v.metrics}}, nil
}

func (v *VM[F]) operand(addr bytecode.Address) Value[F] { return v.mem[addr] }
