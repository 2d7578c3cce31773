package division

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

func dealModuloTuple(t *testing.T, cluster party.IDSlice, threshold int) map[party.ID]preprocessing.ModuloTuple[field.Safe64] {
	r := field.FromUint64[field.Safe64](13)
	sharesR, err := shamir.Deal[field.Safe64](rand.Reader, r, threshold, cluster)
	require.NoError(t, err)
	out := make(map[party.ID]preprocessing.ModuloTuple[field.Safe64], len(cluster))
	for _, id := range cluster {
		out[id] = preprocessing.ModuloTuple[field.Safe64]{R: sharesR[id].Y}
	}
	return out
}

func TestPublicDivisorDivisionRecoversQuotient(t *testing.T) {
	cluster := testCluster(3)
	threshold := 1
	dividend := field.FromUint64[field.Safe64](17)
	divisor := field.FromUint64[field.Safe64](5)

	sharesDividend, err := shamir.Deal[field.Safe64](rand.Reader, dividend, threshold, cluster)
	require.NoError(t, err)
	tuples := dealModuloTuple(t, cluster, threshold)

	sessions := map[party.ID]round.BroadcastRound[field.Safe64]{}
	for _, id := range cluster {
		bundle := preprocessing.NewBundle[field.Safe64]()
		bundle.AddModulo(tuples[id])
		sess, err := StartPublicDivisor[field.Safe64](cluster, id, threshold, []byte("div-session"), PublicDivisorOpDivision, sharesDividend[id], divisor, bundle)
		require.NoError(t, err)
		sessions[id] = sess.(round.BroadcastRound[field.Safe64])
	}

	for _, from := range cluster {
		content := sessions[from].BroadcastContent()
		for _, to := range cluster {
			require.NoError(t, sessions[to].StoreBroadcastMessage(round.Message{From: from, Content: content, Broadcast: true}))
		}
	}

	results := map[party.ID]shamir.Share[field.Safe64]{}
	for _, id := range cluster {
		next, err := sessions[id].Finalize(nil)
		require.NoError(t, err)
		out, ok := next.(*round.Output[field.Safe64])
		require.True(t, ok)
		share, ok := out.Result.(shamir.Share[field.Safe64])
		require.True(t, ok)
		results[id] = share
	}

	quotient, err := shamir.Recover[field.Safe64](results, cluster)
	require.NoError(t, err)
	require.True(t, quotient.Equal(field.FromUint64[field.Safe64](3)))
}

func TestPublicDivisorModuloRecoversRemainder(t *testing.T) {
	cluster := testCluster(3)
	threshold := 1
	dividend := field.FromUint64[field.Safe64](17)
	divisor := field.FromUint64[field.Safe64](5)

	sharesDividend, err := shamir.Deal[field.Safe64](rand.Reader, dividend, threshold, cluster)
	require.NoError(t, err)
	tuples := dealModuloTuple(t, cluster, threshold)

	sessions := map[party.ID]round.BroadcastRound[field.Safe64]{}
	for _, id := range cluster {
		bundle := preprocessing.NewBundle[field.Safe64]()
		bundle.AddModulo(tuples[id])
		sess, err := StartPublicDivisor[field.Safe64](cluster, id, threshold, []byte("mod-session"), PublicDivisorOpModulo, sharesDividend[id], divisor, bundle)
		require.NoError(t, err)
		sessions[id] = sess.(round.BroadcastRound[field.Safe64])
	}

	for _, from := range cluster {
		content := sessions[from].BroadcastContent()
		for _, to := range cluster {
			require.NoError(t, sessions[to].StoreBroadcastMessage(round.Message{From: from, Content: content, Broadcast: true}))
		}
	}

	results := map[party.ID]shamir.Share[field.Safe64]{}
	for _, id := range cluster {
		next, err := sessions[id].Finalize(nil)
		require.NoError(t, err)
		out, ok := next.(*round.Output[field.Safe64])
		require.True(t, ok)
		share, ok := out.Result.(shamir.Share[field.Safe64])
		require.True(t, ok)
		results[id] = share
	}

	remainder, err := shamir.Recover[field.Safe64](results, cluster)
	require.NoError(t, err)
	require.True(t, remainder.Equal(field.FromUint64[field.Safe64](2)))
}
