package random

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/mpc/internal/round"
	"github.com/luxfi/mpc/pkg/field"
	"github.com/luxfi/mpc/pkg/party"
	"github.com/luxfi/mpc/pkg/shamir"
)

func testCluster(n int) party.IDSlice {
	ids := make(party.IDSlice, n)
	for i := range ids {
		ids[i] = party.ID(rune('A' + i))
	}
	return ids.Sorted()
}

// runRan drives one RAN round across the cluster: every party's recipient-
// specific share is delivered (including its own to itself), then every
// session finalizes into its result share.
func runRan(t *testing.T, cluster party.IDSlice, sessions map[party.ID]round.UnicastRound[field.Safe64]) map[party.ID]shamir.Share[field.Safe64] {
	t.Helper()
	for _, from := range cluster {
		for _, to := range cluster {
			content := sessions[from].UnicastContent(to)
			require.NoError(t, sessions[to].StoreMessage(round.Message{From: from, To: to, Content: content}))
		}
	}
	shares := map[party.ID]shamir.Share[field.Safe64]{}
	for _, id := range cluster {
		next, err := sessions[id].Finalize(nil)
		require.NoError(t, err)
		out, ok := next.(*round.Output[field.Safe64])
		require.True(t, ok)
		share, ok := out.Result.(shamir.Share[field.Safe64])
		require.True(t, ok)
		shares[id] = share
	}
	return shares
}

func startAll(t *testing.T, cluster party.IDSlice, threshold int, kind Kind) map[party.ID]round.UnicastRound[field.Safe64] {
	t.Helper()
	sessions := map[party.ID]round.UnicastRound[field.Safe64]{}
	for _, id := range cluster {
		sess, err := Start[field.Safe64](cluster, id, threshold, []byte("session"), kind)
		require.NoError(t, err)
		sessions[id] = sess.(round.UnicastRound[field.Safe64])
	}
	return sessions
}

func TestRanIntegerSharesAreConsistent(t *testing.T) {
	cluster := testCluster(4)
	threshold := 1
	sessions := startAll(t, cluster, threshold, KindInteger)
	shares := runRan(t, cluster, sessions)

	// Every t+1 subset must reconstruct the same value: the shares describe
	// one degree-t polynomial, whatever random value it hides.
	full, err := shamir.Recover[field.Safe64](shares, cluster)
	require.NoError(t, err)

	subset := map[party.ID]shamir.Share[field.Safe64]{
		cluster[1]: shares[cluster[1]],
		cluster[3]: shares[cluster[3]],
	}
	fromSubset, err := shamir.Recover[field.Safe64](subset, cluster)
	require.NoError(t, err)
	require.True(t, full.Equal(fromSubset))
}

func TestRanZeroRecoversZeroAtDegreeTwoT(t *testing.T) {
	cluster := testCluster(3)
	threshold := 1
	sessions := startAll(t, cluster, threshold, KindZero)
	shares := runRan(t, cluster, sessions)

	// Degree 2t = 2 with n = 3: all three shares are exactly enough.
	value, err := shamir.Recover[field.Safe64](shares, cluster)
	require.NoError(t, err)
	require.True(t, value.IsZero())
}

func TestRanBitSumStaysInContributionRange(t *testing.T) {
	cluster := testCluster(3)
	threshold := 1
	sessions := startAll(t, cluster, threshold, KindBit)
	shares := runRan(t, cluster, sessions)

	value, err := shamir.Recover[field.Safe64](shares, cluster)
	require.NoError(t, err)
	require.LessOrEqual(t, value.Normal().Big().Uint64(), uint64(len(cluster)))
}

func TestStartRejectsBadThreshold(t *testing.T) {
	cluster := testCluster(3)
	_, err := Start[field.Safe64](cluster, cluster[0], 3, []byte("session"), KindInteger)
	require.Error(t, err)
}
