package vm

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/mpc/pkg/field"
	"github.com/luxfi/mpc/pkg/party"
	"github.com/luxfi/mpc/pkg/preprocessing"
	"github.com/luxfi/mpc/pkg/shamir"
)

// runToCompletionOverWire is runToCompletion from vm_test.go, but every
// message is round-tripped through EncodeMessage/DecodeMessage first, the
// way a real network transport would carry it between parties.
func runToCompletionOverWire(t *testing.T, cluster party.IDSlice, vms map[party.ID]*VM[field.Safe64]) map[party.ID]*Result {
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
		for _, msgs := range outbox {
			for _, m := range msgs {
				progressed = true
				to := m.To
				wire, err := EncodeMessage(m)
				require.NoError(t, err)
				partyMsg, err := vms[to].DecodeMessage(wire)
				require.NoError(t, err)
				yield, err := vms[to].Proceed(partyMsg)
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

func TestVMRunsAdditionAndRevealsOverWireCodec(t *testing.T) {
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
		theVM, err := New[field.Safe64]("wire-test-session", cluster, id, threshold, prog, bundle, inputs)
		require.NoError(t, err)
		vms[id] = theVM
	}

	results := runToCompletionOverWire(t, cluster, vms)
	for _, id := range cluster {
		out, err := field.Decode[field.Safe64](results[id].Outputs["out"])
		require.NoError(t, err)
		require.True(t, out.Equal(field.FromUint64[field.Safe64](7)))
	}
}
