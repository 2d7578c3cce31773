package offsets

import (
	"crypto/sha256"
	"encoding/binary"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/luxfi/mpc/pkg/compile"
)

// BatchTagLen is the length of a batch tag in bytes.
const BatchTagLen = 16

// BatchTag derives the identifier under which the preprocessing producer
// publishes batch batchID of the given element kind: an HKDF expansion of
// the cluster's shared root key, with the element kind in the info string
// so two kinds can never collide on a tag even when their batch counters
// align. Every party holding the same root key derives the same tag
// without communication, which is what lets the CleanupUsedElements
// broadcast name a batch by tag rather than by a per-node storage path.
func BatchTag(rootKey []byte, element compile.ElementKind, batchID uint64) []byte {
	info := make([]byte, 0, len(element.String())+9)
	info = append(info, element.String()...)
	info = append(info, '/')
	info = binary.LittleEndian.AppendUint64(info, batchID)
	r := hkdf.New(sha256.New, rootKey, []byte("mpc/preprocessing/batch"), info)
	out := make([]byte, BatchTagLen)
	if _, err := io.ReadFull(r, out); err != nil {
		// hkdf only errors once its output space is exhausted, unreachable
		// at this length.
		panic(err)
	}
	return out
}
