package power

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

func TestScheduleLength(t *testing.T) {
	cases := map[uint64]int{0: 0, 1: 0, 2: 1, 3: 2, 5: 3, 7: 4, 8: 3}
	for exponent, want := range cases {
		require.Len(t, schedule(exponent), want, "exponent %d", exponent)
	}
}

func TestStartZeroExponentYieldsOne(t *testing.T) {
	cluster := testCluster(3)
	threshold := 1
	base := field.FromUint64[field.Safe64](7)
	sharesBase, err := shamir.Deal[field.Safe64](rand.Reader, base, threshold, cluster)
	require.NoError(t, err)

	results := map[party.ID]shamir.Share[field.Safe64]{}
	for _, id := range cluster {
		sess, err := Start[field.Safe64](cluster, id, threshold, []byte("power0"), sharesBase[id], 0)
		require.NoError(t, err)
		out, ok := sess.(*round.Output[field.Safe64])
		require.True(t, ok)
		results[id] = out.Result.(shamir.Share[field.Safe64])
	}
	one, err := shamir.Recover[field.Safe64](results, cluster)
	require.NoError(t, err)
	require.True(t, one.Equal(field.FromUint64[field.Safe64](1)))
}

func TestPowerReconstructsExpectedValue(t *testing.T) {
	for _, tc := range []struct {
		base, exponent, want uint64
	}{
		{3, 1, 3},
		{3, 2, 9},
		{3, 5, 243},
		{2, 7, 128},
	} {
		cluster := testCluster(3)
		threshold := 1
		base := field.FromUint64[field.Safe64](tc.base)
		sharesBase, err := shamir.Deal[field.Safe64](rand.Reader, base, threshold, cluster)
		require.NoError(t, err)

		sessions := map[party.ID]round.Session[field.Safe64]{}
		for _, id := range cluster {
			sess, err := Start[field.Safe64](cluster, id, threshold, []byte("power"), sharesBase[id], tc.exponent)
			require.NoError(t, err)
			sessions[id] = sess
		}

		var result field.Element[field.Safe64]
		if tc.exponent == 1 {
			// A one-bit exponent has an empty schedule: every session is
			// terminal at construction time.
			results := make(map[party.ID]shamir.Share[field.Safe64], len(cluster))
			for _, id := range cluster {
				out := sessions[id].(*round.Output[field.Safe64])
				results[id] = out.Result.(shamir.Share[field.Safe64])
			}
			result, err = shamir.Recover[field.Safe64](results, cluster)
			require.NoError(t, err)
		} else {
			raw, err := round.DriveLockstep[field.Safe64](cluster, sessions)
			require.NoError(t, err)
			results := make(map[party.ID]shamir.Share[field.Safe64], len(cluster))
			for _, id := range cluster {
				share, ok := raw[id].(shamir.Share[field.Safe64])
				require.True(t, ok)
				results[id] = share
			}
			result, err = shamir.Recover[field.Safe64](results, cluster)
			require.NoError(t, err)
		}
		require.True(t, result.Equal(field.FromUint64[field.Safe64](tc.want)), "base=%d exponent=%d", tc.base, tc.exponent)
	}
}
