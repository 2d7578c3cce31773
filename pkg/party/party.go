// Package party defines the identity types shared by every protocol in the
// cluster: opaque, totally ordered party identifiers and the deterministic
// abscissa each one maps to in a Shamir sharing.
package party

import (
	"sort"

	"github.com/luxfi/mpc/pkg/field"
)

// ID is an opaque, comparable identifier for a cluster member. It is
// intentionally a plain string so it can be used as a map key and derived
// directly from a user-facing name or public key fingerprint.
type ID string

// IDSlice is a sortable, de-duplicatable collection of party IDs. Every
// protocol in this module treats the cluster as the sorted form of an
// IDSlice: sorting first makes the abscissa assignment below deterministic
// across every party that computes it independently.
type IDSlice []ID

func (p IDSlice) Len() int           { return len(p) }
func (p IDSlice) Less(i, j int) bool { return p[i] < p[j] }
func (p IDSlice) Swap(i, j int)      { p[i], p[j] = p[j], p[i] }

// Sorted returns a sorted copy of the slice.
func (p IDSlice) Sorted() IDSlice {
	out := make(IDSlice, len(p))
	copy(out, p)
	sort.Sort(out)
	return out
}

// Contains reports whether id is present in the slice.
func (p IDSlice) Contains(id ID) bool {
	for _, other := range p {
		if other == id {
			return true
		}
	}
	return false
}

// Other returns every ID in the slice except self.
func (p IDSlice) Other(self ID) IDSlice {
	out := make(IDSlice, 0, len(p))
	for _, id := range p {
		if id != self {
			out = append(out, id)
		}
	}
	return out
}

// Abscissa returns the x-coordinate this party is assigned in a Shamir
// sharing over the given field, derived deterministically from the party's
// 1-indexed position in the sorted cluster. Every party that holds the same
// cluster list computes the same abscissa for id without communication.
func Abscissa[F field.Prime](cluster IDSlice, id ID) field.Element[F] {
	sorted := cluster.Sorted()
	for i, member := range sorted {
		if member == id {
			return field.FromUint64[F](uint64(i + 1))
		}
	}
	var zero field.Element[F]
	return zero
}
