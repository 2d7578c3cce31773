package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/luxfi/mpc/internal/round"
	"github.com/luxfi/mpc/pkg/compile"
	"github.com/luxfi/mpc/pkg/field"
	"github.com/luxfi/mpc/pkg/offsets"
	"github.com/luxfi/mpc/pkg/party"
	"github.com/luxfi/mpc/pkg/preprocessing"
	"github.com/luxfi/mpc/pkg/shamir"
	"github.com/luxfi/mpc/protocols/random"
)

// produceBatch runs count RAN rounds of the given kind across every party
// in-process and stocks each party's bundle with the resulting share, the
// way a deployed preprocessing producer fills the RandomInteger and
// RandomBoolean pools ahead of demand. Returns how many elements were
// produced per party.
func produceBatch(cluster party.IDSlice, threshold int, kind random.Kind, count int, bundles map[party.ID]*preprocessing.Bundle[field.Safe64]) (int, error) {
	for i := 0; i < count; i++ {
		sessionID := []byte(fmt.Sprintf("mpcd-preprocess/%d/%d", kind, i))
		sessions := map[party.ID]round.Session[field.Safe64]{}
		for _, id := range cluster {
			sess, err := random.Start[field.Safe64](cluster, id, threshold, sessionID, kind)
			if err != nil {
				return 0, fmt.Errorf("mpcd: starting RAN for %s: %w", id, err)
			}
			sessions[id] = sess
		}
		results, err := round.DriveLockstep[field.Safe64](cluster, sessions)
		if err != nil {
			return 0, fmt.Errorf("mpcd: driving RAN batch %d: %w", i, err)
		}
		for _, id := range cluster {
			share, ok := results[id].(shamir.Share[field.Safe64])
			if !ok {
				return 0, fmt.Errorf("mpcd: RAN for %s produced unexpected result type %T", id, results[id])
			}
			if kind == random.KindBit {
				bundles[id].AddRandomBooleans(preprocessing.RandomBooleanShare[field.Safe64]{Share: share.Y})
			} else {
				bundles[id].AddRandomIntegers(preprocessing.RandomIntegerShare[field.Safe64]{Share: share.Y})
			}
		}
	}
	return count, nil
}

// runPreprocess is the producer side of the RandomInteger/RandomBoolean
// pools: it fills every party's bundle via produceBatch, then advances the
// offset manager's latest counter the way a deployed producer's completion
// callback would. The filled bundles are discarded at exit — this command
// exists to exercise and demonstrate the production path, not to persist
// batches (batch storage belongs to the storage collaborator, not to this
// module).
func runPreprocess(cmd *cobra.Command, args []string) error {
	c, err := loadCluster()
	if err != nil {
		return err
	}
	cluster := c.PartyIDs()
	threshold := c.Threshold()

	bundles := map[party.ID]*preprocessing.Bundle[field.Safe64]{}
	for _, id := range cluster {
		bundles[id] = preprocessing.NewBundle[field.Safe64]()
	}

	mgr := offsets.NewManager(offsets.NewMemoryStore(), nil)
	rootKey := clusterRootKey(c)

	for _, target := range []struct {
		kind    random.Kind
		element compile.ElementKind
	}{
		{random.KindInteger, compile.RandomInteger},
		{random.KindBit, compile.RandomBoolean},
	} {
		produced, err := produceBatch(cluster, threshold, target.kind, preprocessBatch, bundles)
		if err != nil {
			return err
		}
		counters, err := mgr.Offsets(target.element)
		if err != nil {
			return fmt.Errorf("mpcd: reading offsets for %s: %w", target.element, err)
		}
		if err := mgr.AdvanceLatest(target.element, int64(produced), counters.NextBatchID); err != nil {
			return fmt.Errorf("mpcd: advancing latest for %s: %w", target.element, err)
		}
		counters, err = mgr.Offsets(target.element)
		if err != nil {
			return fmt.Errorf("mpcd: reading offsets for %s: %w", target.element, err)
		}
		tag := offsets.BatchTag(rootKey, target.element, counters.NextBatchID)
		fmt.Fprintf(cmd.OutOrStdout(), "%-16s produced=%d latest=%d next_batch=%x\n",
			target.element, produced, counters.Latest, tag)
	}
	return nil
}
