package main

import (
	"crypto/rand"
	"fmt"

	"github.com/luxfi/mpc/pkg/bytecode"
	"github.com/luxfi/mpc/pkg/compile"
	"github.com/luxfi/mpc/pkg/config"
	"github.com/luxfi/mpc/pkg/field"
	"github.com/luxfi/mpc/pkg/ir"
	"github.com/luxfi/mpc/pkg/party"
	"github.com/luxfi/mpc/pkg/preprocessing"
	"github.com/luxfi/mpc/pkg/shamir"
	"github.com/luxfi/mpc/pkg/vm"
)

// demoProgram builds "out = reveal(a + b)" directly as an ir.Program: two
// secret inputs, a local addition, and a reveal. This is the pipeline's own
// smoke test, run end to end (ir -> bytecode -> compile -> vm) by the
// simulate and bench subcommands, since the front end that produces
// ir.Program lives outside this repository.
func demoProgram() *ir.Program {
	a := &ir.Node{ID: 0, Op: ir.Load, Type: ir.ValueType{Kind: ir.Integer, Visibility: ir.Secret}}
	b := &ir.Node{ID: 1, Op: ir.Load, Type: ir.ValueType{Kind: ir.Integer, Visibility: ir.Secret}}
	sum := &ir.Node{ID: 2, Op: ir.Addition, Type: ir.ValueType{Kind: ir.Integer, Visibility: ir.Secret}, Operands: []ir.NodeID{0, 1}}
	out := &ir.Node{ID: 3, Op: ir.Reveal, Type: ir.ValueType{Kind: ir.Integer, Visibility: ir.Public}, Operands: []ir.NodeID{2}}
	return &ir.Program{
		Nodes:   []*ir.Node{a, b, sum, out},
		Inputs:  map[string]ir.NodeID{"a": 0, "b": 1},
		Outputs: map[string]ir.NodeID{"out": 3},
	}
}

// compileDemoProgram runs C3 (Lower) and C4 (Compile) over demoProgram,
// the two stages a driver performs once per distinct program shape.
func compileDemoProgram() (*compile.Program, error) {
	lowered, err := bytecode.Lower(demoProgram())
	if err != nil {
		return nil, fmt.Errorf("mpcd: lowering demo program: %w", err)
	}
	compiled, err := compile.Compile(lowered)
	if err != nil {
		return nil, fmt.Errorf("mpcd: compiling demo program: %w", err)
	}
	return compiled, nil
}

// runDemoOnce deals fresh random inputs for a and b, then drives one VM per
// cluster member to completion in-process, routing every message through
// the cbor wire codec the way a real transport would. It returns the
// revealed sum and the per-party VM metrics of the party that ran last.
func runDemoOnce(cluster party.IDSlice, threshold int) (uint64, vm.Metrics, error) {
	prog, err := compileDemoProgram()
	if err != nil {
		return 0, vm.Metrics{}, err
	}

	aVal := randUint64()
	bVal := randUint64()
	sharesA, err := shamir.Deal[field.Safe64](rand.Reader, field.FromUint64[field.Safe64](aVal), threshold, cluster)
	if err != nil {
		return 0, vm.Metrics{}, fmt.Errorf("mpcd: dealing a: %w", err)
	}
	sharesB, err := shamir.Deal[field.Safe64](rand.Reader, field.FromUint64[field.Safe64](bVal), threshold, cluster)
	if err != nil {
		return 0, vm.Metrics{}, fmt.Errorf("mpcd: dealing b: %w", err)
	}

	vms := map[party.ID]*vm.VM[field.Safe64]{}
	for _, id := range cluster {
		bundle := preprocessing.NewBundle[field.Safe64]()
		inputs := map[string]vm.Value[field.Safe64]{
			"a": vm.SecretValue[field.Safe64](sharesA[id]),
			"b": vm.SecretValue[field.Safe64](sharesB[id]),
		}
		theVM, err := vm.New[field.Safe64]("mpcd-demo", cluster, id, threshold, prog, bundle, inputs)
		if err != nil {
			return 0, vm.Metrics{}, fmt.Errorf("mpcd: constructing VM for %s: %w", id, err)
		}
		vms[id] = theVM
	}

	results, err := driveToCompletion(cluster, vms)
	if err != nil {
		return 0, vm.Metrics{}, err
	}

	var metrics vm.Metrics
	var sum uint64
	for _, id := range cluster {
		out, err := field.Decode[field.Safe64](results[id].Outputs["out"])
		if err != nil {
			return 0, vm.Metrics{}, fmt.Errorf("mpcd: decoding output: %w", err)
		}
		sum = out.Normal().Big().Uint64()
		metrics = results[id].Metrics
	}
	return sum, metrics, nil
}

// driveToCompletion pumps every party's VM in lockstep, the way a real
// driver would as it relays messages between network peers, except every
// peer is a local goroutine-free VM instance in this process.
func driveToCompletion(cluster party.IDSlice, vms map[party.ID]*vm.VM[field.Safe64]) (map[party.ID]*vm.Result, error) {
	pending := map[party.ID][]vm.OutboundMessage{}
	results := map[party.ID]*vm.Result{}

	for _, id := range cluster {
		yield, err := vms[id].Initialize()
		if err != nil {
			return nil, err
		}
		if yield.Result != nil {
			results[id] = yield.Result
		} else {
			pending[id] = append(pending[id], yield.Messages...)
		}
	}

	for len(results) < len(cluster) {
		outbox := pending
		pending = map[party.ID][]vm.OutboundMessage{}
		for _, msgs := range outbox {
			for _, m := range msgs {
				wire, err := vm.EncodeMessage(m)
				if err != nil {
					return nil, err
				}
				partyMsg, err := vms[m.To].DecodeMessage(wire)
				if err != nil {
					return nil, err
				}
				yield, err := vms[m.To].Proceed(partyMsg)
				if err != nil {
					return nil, err
				}
				if yield.Result != nil {
					results[m.To] = yield.Result
				} else {
					pending[m.To] = append(pending[m.To], yield.Messages...)
				}
			}
		}
	}
	return results, nil
}

func randUint64() uint64 {
	var b [8]byte
	_, _ = rand.Read(b[:])
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v % 1000
}

func loadCluster() (*config.Cluster, error) {
	c, err := config.Load(clusterFile)
	if err != nil {
		return nil, err
	}
	if c.Prime != field.TagSafe64.String() {
		return nil, fmt.Errorf("mpcd: this build's demo commands only support prime %q, cluster configures %q", field.TagSafe64, c.Prime)
	}
	return c, nil
}
