package vm

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/mpc/pkg/bytecode"
	"github.com/luxfi/mpc/pkg/compile"
	"github.com/luxfi/mpc/pkg/field"
	"github.com/luxfi/mpc/pkg/ir"
	"github.com/luxfi/mpc/pkg/party"
	"github.com/luxfi/mpc/pkg/preprocessing"
	"github.com/luxfi/mpc/pkg/shamir"
)

func testCluster(n int) party.IDSlice {
	ids := make(party.IDSlice, n)
	for i := range ids {
		ids[i] = party.ID(rune('A' + i))
	}
	return ids.Sorted()
}

func secretType() ir.ValueType { return ir.ValueType{Kind: ir.Integer, Visibility: ir.Secret} }
func publicType() ir.ValueType { return ir.ValueType{Kind: ir.Integer, Visibility: ir.Public} }

// additionProgram builds "out = a + b" directly as a compile.Program,
// bypassing ir/bytecode lowering since this test only exercises the VM.
func additionProgram() *compile.Program {
	return &compile.Program{
		Protocols: []compile.Protocol{
			{Addr: 0, Kind: compile.KindNew, Result: secretType(), Line: compile.Local},
			{Addr: 1, Kind: compile.KindNew, Result: secretType(), Line: compile.Local},
			{Addr: 2, Kind: compile.KindAdditionLocal, Operands: []bytecode.Address{0, 1}, Result: secretType(), Line: compile.Local},
			{Addr: 3, Kind: compile.KindReveal, Operands: []bytecode.Address{2}, Result: publicType(), Line: compile.Online, Requirements: compile.Requirements{}},
		},
		Inputs:  map[string]bytecode.Address{"a": 0, "b": 1},
		Outputs: map[string]bytecode.Address{"out": 3},
	}
}

// runToCompletion drives every party's VM in lockstep until the program completes,
// simulating the surrounding driver/transport the real system would supply.
func runToCompletion(t *testing.T, cluster party.IDSlice, vms map[party.ID]*VM[field.Safe64]) map[party.ID]*Result {
	t.Helper()
	pending := map[party.ID][]OutboundMessage{}
	results := map[party.ID]*Result{}

	for _, id := range cluster {
		yield, err := vms[id].Initialize()
		require.NoError(t, err)
		if yield.Result != nil {
			results[id] = yield.Result
		} else {
			pending[id] = append(pending[id], yield.Messages...)
		}
	}

	for len(results) < len(cluster) {
		outbox := pending
		pending = map[party.ID][]OutboundMessage{}
		progressed := false
		for from, msgs := range outbox {
			for _, m := range msgs {
				progressed = true
				to := m.To
				yield, err := vms[to].Proceed(PartyMessage{From: from, Addr: m.Addr, Broadcast: m.Broadcast, Content: m.Content})
				require.NoError(t, err)
				if yield.Result != nil {
					results[to] = yield.Result
				} else {
					pending[to] = append(pending[to], yield.Messages...)
				}
			}
		}
		require.True(t, progressed || len(results) == len(cluster), "deadlocked before every party finished")
	}
	return results
}

func TestVMRunsAdditionAndReveals(t *testing.T) {
	cluster := testCluster(3)
	threshold := 1
	prog := additionProgram()

	a := field.FromUint64[field.Safe64](3)
	b := field.FromUint64[field.Safe64](4)
	sharesA, err := shamir.Deal[field.Safe64](rand.Reader, a, threshold, cluster)
	require.NoError(t, err)
	sharesB, err := shamir.Deal[field.Safe64](rand.Reader, b, threshold, cluster)
	require.NoError(t, err)

	vms := map[party.ID]*VM[field.Safe64]{}
	for _, id := range cluster {
		bundle := preprocessing.NewBundle[field.Safe64]()
		inputs := map[string]Value[field.Safe64]{
			"a": SecretValue[field.Safe64](sharesA[id]),
			"b": SecretValue[field.Safe64](sharesB[id]),
		}
		theVM, err := New[field.Safe64]("test-session", cluster, id, threshold, prog, bundle, inputs)
		require.NoError(t, err)
		vms[id] = theVM
	}

	results := runToCompletion(t, cluster, vms)
	for _, id := range cluster {
		out, err := field.Decode[field.Safe64](results[id].Outputs["out"])
		require.NoError(t, err)
		require.True(t, out.Equal(field.FromUint64[field.Safe64](7)))
	}
}
