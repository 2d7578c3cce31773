package main

import (
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"github.com/luxfi/mpc/pkg/compile"
	"github.com/luxfi/mpc/pkg/config"
	"github.com/luxfi/mpc/pkg/hash"
	"github.com/luxfi/mpc/pkg/offsets"
)

// memStore is a minimal in-process offsets.Store, sufficient for this
// command to report a freshly targeted cluster's counters; a durable
// deployment swaps in a transactional backing store.
type memStore struct {
	mu       sync.Mutex
	counters map[compile.ElementKind]offsets.Counters
}

func newMemStore() *memStore {
	return &memStore{counters: map[compile.ElementKind]offsets.Counters{}}
}

func (s *memStore) WithTx(fn func(get func(compile.ElementKind) offsets.Counters, set func(compile.ElementKind, offsets.Counters)) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	get := func(k compile.ElementKind) offsets.Counters { return s.counters[k] }
	set := func(k compile.ElementKind, c offsets.Counters) { s.counters[k] = c }
	return fn(get, set)
}

var allElements = []compile.ElementKind{
	compile.Compare,
	compile.DivisionIntegerSecret,
	compile.Modulo,
	compile.TruncPrElement,
	compile.PublicOutputEqualityElement,
	compile.PrivateOutputEqualityElement,
	compile.RandomInteger,
	compile.RandomBoolean,
	compile.EcdsaAuxInfo,
}

// clusterRootKey derives the shared key every party uses for batch-tag
// derivation, from material every member already holds: the sorted member
// identities of the cluster file.
func clusterRootKey(c *config.Cluster) []byte {
	h := hash.New([]byte("cluster-root-key"))
	for _, id := range c.PartyIDs().Sorted() {
		_ = h.WriteAny(&hash.BytesWithDomain{TheDomain: "PartyID", Bytes: []byte(id)})
	}
	return h.Sum()
}

func runOffsets(cmd *cobra.Command, args []string) error {
	cluster, err := loadCluster()
	if err != nil {
		return err
	}
	rootKey := clusterRootKey(cluster)
	mgr := offsets.NewManager(newMemStore(), nil)
	for _, kind := range allElements {
		c, err := mgr.Offsets(kind)
		if err != nil {
			return fmt.Errorf("mpcd: querying %s: %w", kind, err)
		}
		tag := offsets.BatchTag(rootKey, kind, c.NextBatchID)
		fmt.Fprintf(cmd.OutOrStdout(), "%-28s target=%d latest=%d committed=%d next_batch=%s\n",
			kind, c.Target, c.Latest, c.Committed, hex.EncodeToString(tag))
	}
	return nil
}
