package equality

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/mpc/internal/round"
	"github.com/luxfi/mpc/pkg/field"
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

// dealOutputEqualityTuple deals a fixed nonzero mask: the masked difference
// degree-doubles (diff.Mul(tuple.R)), so a zero mask would make Finalize's
// zero-check trivially true regardless of lhs/rhs, defeating the test.
func dealOutputEqualityTuple(t *testing.T, cluster party.IDSlice, threshold int) map[party.ID]preprocessing.OutputEqualityTuple[field.Safe64] {
	r := field.FromUint64[field.Safe64](3)
	sharesR, err := shamir.Deal[field.Safe64](rand.Reader, r, threshold, cluster)
	require.NoError(t, err)
	out := make(map[party.ID]preprocessing.OutputEqualityTuple[field.Safe64], len(cluster))
	for _, id := range cluster {
		out[id] = preprocessing.OutputEqualityTuple[field.Safe64]{R: sharesR[id].Y}
	}
	return out
}

func runEquality(t *testing.T, cluster party.IDSlice, threshold int, lhs, rhs field.Element[field.Safe64]) bool {
	t.Helper()
	sharesLhs, err := shamir.Deal[field.Safe64](rand.Reader, lhs, threshold, cluster)
	require.NoError(t, err)
	sharesRhs, err := shamir.Deal[field.Safe64](rand.Reader, rhs, threshold, cluster)
	require.NoError(t, err)
	tuples := dealOutputEqualityTuple(t, cluster, threshold)

	sessions := map[party.ID]round.BroadcastRound[field.Safe64]{}
	for _, id := range cluster {
		bundle := preprocessing.NewBundle[field.Safe64]()
		bundle.AddOutputEquality(tuples[id])
		sess, err := Start[field.Safe64](cluster, id, threshold, []byte("equality-session"), sharesLhs[id], sharesRhs[id], bundle)
		require.NoError(t, err)
		sessions[id] = sess.(round.BroadcastRound[field.Safe64])
	}

	for _, from := range cluster {
		content := sessions[from].BroadcastContent()
		for _, to := range cluster {
			require.NoError(t, sessions[to].StoreBroadcastMessage(round.Message{From: from, Content: content, Broadcast: true}))
		}
	}

	var result bool
	for _, id := range cluster {
		next, err := sessions[id].Finalize(nil)
		require.NoError(t, err)
		out, ok := next.(*round.Output[field.Safe64])
		require.True(t, ok)
		b, ok := out.Result.(bool)
		require.True(t, ok)
		result = b
	}
	return result
}

func TestEqualitySucceedsOnEqualValues(t *testing.T) {
	v := field.FromUint64[field.Safe64](11)
	equal := runEquality(t, testCluster(3), 1, v, v)
	require.True(t, equal)
}

func TestEqualityFailsOnDifferentValues(t *testing.T) {
	equal := runEquality(t, testCluster(3), 1, field.FromUint64[field.Safe64](11), field.FromUint64[field.Safe64](12))
	require.False(t, equal)
}
