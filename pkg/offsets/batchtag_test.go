package offsets

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/mpc/pkg/compile"
)

func TestBatchTagIsDeterministicPerKey(t *testing.T) {
	key := []byte("cluster-root-key")
	a := BatchTag(key, compile.Compare, 7)
	b := BatchTag(key, compile.Compare, 7)
	require.Equal(t, a, b)
	require.Len(t, a, BatchTagLen)
}

func TestBatchTagSeparatesElementsAndBatches(t *testing.T) {
	key := []byte("cluster-root-key")
	base := BatchTag(key, compile.Compare, 7)
	require.NotEqual(t, base, BatchTag(key, compile.Modulo, 7), "same batch id, different element")
	require.NotEqual(t, base, BatchTag(key, compile.Compare, 8), "same element, different batch id")
	require.NotEqual(t, base, BatchTag([]byte("other-cluster"), compile.Compare, 7), "different root key")
}
