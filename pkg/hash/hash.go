// Package hash provides the domain-separated hashing used to derive session
// IDs and broadcast-verification digests throughout the protocol state
// machines, backed by BLAKE3.
package hash

import (
	"encoding/binary"

	"github.com/zeebo/blake3"
)

// Hash is an incremental, domain-separated hash state. Every Write call is
// tagged by a domain string so that e.g. hashing the bytes of a party ID
// can never collide with hashing the bytes of a message payload.
type Hash struct {
	h *blake3.Hasher
}

// New returns a fresh Hash, optionally initialized with extra context (e.g.
// a protocol ID) written as the "Init" domain.
func New(context ...[]byte) *Hash {
	h := blake3.New()
	hh := &Hash{h: h}
	for _, c := range context {
		_ = hh.WriteAny(&BytesWithDomain{TheDomain: "Init", Bytes: c})
	}
	return hh
}

// Domain is implemented by anything that can be hashed into a Hash under an
// explicit domain tag.
type Domain interface {
	WriteDomain(h *Hash) error
}

// BytesWithDomain hashes Bytes under the domain tag TheDomain.
type BytesWithDomain struct {
	TheDomain string
	Bytes     []byte
}

func (b *BytesWithDomain) WriteDomain(h *Hash) error {
	return h.write(b.TheDomain, b.Bytes)
}

// WriteAny hashes a Domain value into h.
func (h *Hash) WriteAny(d Domain) error {
	return d.WriteDomain(h)
}

func (h *Hash) write(domain string, data []byte) error {
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(domain)))
	if _, err := h.h.Write(lenBuf[:]); err != nil {
		return err
	}
	if _, err := h.h.Write([]byte(domain)); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(data)))
	if _, err := h.h.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := h.h.Write(data)
	return err
}

// Sum finalizes h and returns a 32-byte digest, without consuming h: further
// writes followed by further Sum calls keep extending the same state, the
// incremental-hash-then-Sum shape broadcast verification relies on.
func (h *Hash) Sum() []byte {
	digest := h.h.Clone().Digest()
	out := make([]byte, 32)
	_, _ = digest.Read(out)
	return out
}

// Clone returns an independent copy of h's current state.
func (h *Hash) Clone() *Hash {
	return &Hash{h: h.h.Clone()}
}
