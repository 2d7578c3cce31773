// Package ecdsaaux implements ECDSA-AUX-INFO, the preprocessing
// sub-protocol producing the EcdsaAuxInfo tuples the signing protocols in
// protocols/ecdsasign consume (key, nonce, nonce-inverse and product
// shares plus the public points). Generation runs on a background worker
// shuttling results to the outer VM through a channel, so the VM sees the
// same Session surface as every other protocol.
//
// Grounded on protocols/lss/dealer.go's mutex-guarded state plus
// runJVSSProtocol's goroutine + channel background-generation pattern. The
// produce function is caller-supplied: a single-process deployment passes
// a trusted-dealer closure over ecdsasign.DealAux, a real one passes the
// distributed ceremony's local step.
package ecdsaaux

import (
	"fmt"
	"sync"

	"github.com/luxfi/mpc/internal/round"
	"github.com/luxfi/mpc/pkg/field"
	"github.com/luxfi/mpc/pkg/party"
	"github.com/luxfi/mpc/pkg/preprocessing"
)

const protocolID = "ecdsa-aux-info"

// Generator runs the background auxiliary-info production for one cluster,
// mirroring BootstrapDealer's long-lived, mutex-guarded session state: a
// single Generator can be reused across many compute sessions, handing out
// one EcdsaAuxInfo per completed background round.
type Generator struct {
	mu      sync.Mutex
	cluster party.IDSlice
	self    party.ID
	ready   chan preprocessing.EcdsaAuxInfo
	stop    chan struct{}
}

// NewGenerator starts a background goroutine producing EcdsaAuxInfo tuples,
// following runJVSSProtocol's own goroutine-per-dealer lifecycle.
func NewGenerator(cluster party.IDSlice, self party.ID, produce func() (preprocessing.EcdsaAuxInfo, error)) *Generator {
	g := &Generator{
		cluster: cluster,
		self:    self,
		ready:   make(chan preprocessing.EcdsaAuxInfo, 8),
		stop:    make(chan struct{}),
	}
	go g.run(produce)
	return g
}

func (g *Generator) run(produce func() (preprocessing.EcdsaAuxInfo, error)) {
	for {
		select {
		case <-g.stop:
			close(g.ready)
			return
		default:
		}
		info, err := produce()
		if err != nil {
			continue
		}
		select {
		case g.ready <- info:
		case <-g.stop:
			close(g.ready)
			return
		}
	}
}

// Stop halts background production. Safe to call once.
func (g *Generator) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	select {
	case <-g.stop:
	default:
		close(g.stop)
	}
}

// Start begins a single ECDSA-AUX-INFO session that waits for the next
// background-produced tuple and wraps it as a one-round protocol result,
// so the VM can drive it through the same Session lifecycle as every
// other protocol rather than special-casing background generation.
func Start[F field.Prime](cluster party.IDSlice, self party.ID, threshold int, sessionID []byte, gen *Generator) (round.Session[F], error) {
	helper, err := round.NewSession[F](round.Info{
		ProtocolID:       protocolID,
		Cluster:          cluster,
		SelfID:           self,
		Threshold:        threshold,
		FinalRoundNumber: 1,
	}, sessionID)
	if err != nil {
		return nil, fmt.Errorf("ecdsaaux.Start: %w", err)
	}
	return &round1[F]{Helper: helper, gen: gen}, nil
}

type round1[F field.Prime] struct {
	*round.Helper[F]
	gen *Generator
}

func (r *round1[F]) MessageContent() round.Content     { return nil }
func (r *round1[F]) VerifyMessage(round.Message) error { return nil }
func (r *round1[F]) StoreMessage(round.Message) error  { return nil }

func (r *round1[F]) Finalize(chan<- *round.Message) (round.Session[F], error) {
	info, ok := <-r.gen.ready
	if !ok {
		return nil, fmt.Errorf("ecdsaaux: generator stopped before producing a tuple")
	}
	return &round.Output[F]{Result: info}, nil
}

var _ round.Session[field.Safe64] = (*round1[field.Safe64])(nil)
