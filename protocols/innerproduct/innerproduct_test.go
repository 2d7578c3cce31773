package innerproduct

import (
	"crypto/rand"
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

func TestInnerProductReconstructsSumOfProducts(t *testing.T) {
	cluster := testCluster(3)
	threshold := 1

	// (2, 3, 4) . (5, 6, 7) = 10 + 18 + 28 = 56
	as := []uint64{2, 3, 4}
	bs := []uint64{5, 6, 7}
	sharesA := make([]map[party.ID]shamir.Share[field.Safe64], len(as))
	sharesB := make([]map[party.ID]shamir.Share[field.Safe64], len(bs))
	for i := range as {
		var err error
		sharesA[i], err = shamir.Deal[field.Safe64](rand.Reader, field.FromUint64[field.Safe64](as[i]), threshold, cluster)
		require.NoError(t, err)
		sharesB[i], err = shamir.Deal[field.Safe64](rand.Reader, field.FromUint64[field.Safe64](bs[i]), threshold, cluster)
		require.NoError(t, err)
	}

	sessions := map[party.ID]round.Session[field.Safe64]{}
	for _, id := range cluster {
		pairs := make([]Pair[field.Safe64], len(as))
		for i := range as {
			pairs[i] = Pair[field.Safe64]{A: sharesA[i][id], B: sharesB[i][id]}
		}
		sess, err := Start[field.Safe64](cluster, id, threshold, []byte("session"), pairs)
		require.NoError(t, err)
		sessions[id] = sess
	}

	results, err := round.DriveLockstep[field.Safe64](cluster, sessions)
	require.NoError(t, err)

	resultShares := map[party.ID]shamir.Share[field.Safe64]{}
	for _, id := range cluster {
		share, ok := results[id].(shamir.Share[field.Safe64])
		require.True(t, ok)
		resultShares[id] = share
	}
	total, err := shamir.Recover[field.Safe64](resultShares, cluster)
	require.NoError(t, err)
	require.True(t, total.Equal(field.FromUint64[field.Safe64](56)))
}

func TestInnerProductRejectsEmptyVector(t *testing.T) {
	cluster := testCluster(3)
	_, err := Start[field.Safe64](cluster, cluster[0], 1, []byte("session"), nil)
	require.Error(t, err)
}
