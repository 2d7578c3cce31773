// Package field implements typed modular arithmetic over a fixed catalogue of
// primes, in Montgomery form, with an explicit bridge to an untyped
// byte-plus-tag encoding for use at process boundaries.
//
// Every supported modulus has its own Go type (Safe64, Sophie64, ...), so the
// modulus lives in the type system rather than in a runtime field: two
// elements of different moduli cannot be added without a compile error.
package field

import (
	"encoding/hex"
	"fmt"

	"github.com/cronokirby/saferith"
)

// Tag identifies one of the nine supported moduli at runtime, for contexts
// (wire messages, preprocessing batches) where the modulus cannot be carried
// in the type system.
type Tag uint8

const (
	TagSafe64 Tag = iota
	TagSophie64
	TagSemi64
	TagSafe128
	TagSophie128
	TagSemi128
	TagSafe256
	TagSophie256
	TagSemi256

	// TagOpaque marks an Encoded value whose bytes are not a field element
	// at all — a signature or a compressed curve point leaving the VM as an
	// output. It is deliberately not in the registry: Decode of an opaque
	// value fails with ErrModuloMismatch for every element type.
	TagOpaque Tag = 0xFF
)

func (t Tag) String() string {
	switch t {
	case TagSafe64:
		return "Safe64"
	case TagSophie64:
		return "Sophie64"
	case TagSemi64:
		return "Semi64"
	case TagSafe128:
		return "Safe128"
	case TagSophie128:
		return "Sophie128"
	case TagSemi128:
		return "Semi128"
	case TagSafe256:
		return "Safe256"
	case TagSophie256:
		return "Sophie256"
	case TagSemi256:
		return "Semi256"
	case TagOpaque:
		return "Opaque"
	default:
		return fmt.Sprintf("Tag(%d)", uint8(t))
	}
}

// ErrUnknownTag is returned by ParseTag for a name not in the catalogue.
var ErrUnknownTag = fmt.Errorf("field: unrecognized modulus tag name")

// ParseTag is the inverse of Tag.String, for config files that name a
// modulus by its catalogue name rather than its numeric tag.
func ParseTag(name string) (Tag, error) {
	for _, t := range []Tag{TagSafe64, TagSophie64, TagSemi64, TagSafe128, TagSophie128, TagSemi128, TagSafe256, TagSophie256, TagSemi256} {
		if t.String() == name {
			return t, nil
		}
	}
	return 0, ErrUnknownTag
}

// Prime is implemented by one marker type per supported modulus. It is the
// type parameter every Element is generic over, and the only way new
// arithmetic types can be added to the catalogue.
type Prime interface {
	Tag() Tag
}

// params holds the precomputed data backing a Prime: the modulus itself, the
// Montgomery radix R = 2^k mod M (k the storage width, rounded to a byte
// boundary), and its modular inverse, plus whether the modulus is a safe
// prime (p such that (p-1)/2 is also prime).
type params struct {
	modulus  *saferith.Modulus
	r        *saferith.Nat // R mod M
	rInv     *saferith.Nat // R^-1 mod M
	byteLen  int
	safe     bool
	sophie   bool
}

// registry is populated once at init() for every marker type's Tag. It backs
// both the generic Element[F] arithmetic and the encoded<->typed dispatch.
var registry = map[Tag]*params{}

func register(tag Tag, hexModulus string, safe, sophie bool) {
	m := mustModulus(hexModulus)
	byteLen := (m.BitLen() + 7) / 8
	r, rInv := montgomeryConstants(m, byteLen)
	registry[tag] = &params{
		modulus: m,
		r:       r,
		rInv:    rInv,
		byteLen: byteLen,
		safe:    safe,
		sophie:  sophie,
	}
}

func mustModulus(hexDigits string) *saferith.Modulus {
	raw, err := hex.DecodeString(hexDigits)
	if err != nil {
		panic(fmt.Sprintf("field: invalid modulus literal %q: %v", hexDigits, err))
	}
	n := new(saferith.Nat).SetBytes(raw)
	return saferith.ModulusFromNat(n)
}

// montgomeryConstants computes R = 2^(8*byteLen) mod M and its inverse mod M.
func montgomeryConstants(m *saferith.Modulus, byteLen int) (r, rInv *saferith.Nat) {
	shift := new(saferith.Nat).SetUint64(uint64(8 * byteLen))
	// R = 2^(8*byteLen) mod M, computed as a modular exponentiation of 2.
	two := new(saferith.Nat).SetUint64(2)
	r = new(saferith.Nat).Exp(two, shift, m)
	rInv = new(saferith.Nat).ModInverse(r, m)
	return r, rInv
}

func paramsFor(tag Tag) *params {
	p, ok := registry[tag]
	if !ok {
		panic(fmt.Sprintf("field: unregistered tag %s", tag))
	}
	return p
}

func paramsOf[F Prime]() *params {
	var f F
	return paramsFor(f.Tag())
}

func init() {
	// The concrete literals below are representative 64/128/256-bit moduli
	// of the three supported shapes: safe prime, Sophie Germain prime, or a
	// plain "semi" prime with no special structure. The catalogue is fixed;
	// adding a modulus means adding a marker type, a Tag, and a register
	// call here.
	register(TagSafe64, "FFFFFFFFFFFFFFC5", true, false)   // 2^64 - 59, safe-prime shaped
	register(TagSophie64, "FFFFFFFFFFFFFF87", false, true) // 2^64 - 121
	register(TagSemi64, "FFFFFFFFFFFFFFFB", false, false)  // 2^64 - 5
	register(TagSafe128, "FFFFFFFFFFFFFFFFFFFFFFFFFFFFFF61", true, false)
	register(TagSophie128, "FFFFFFFFFFFFFFFFFFFFFFFFFFFFFF2F", false, true)
	register(TagSemi128, "FFFFFFFFFFFFFFFFFFFFFFFFFFFFFF9D", false, false)
	register(TagSafe256, "FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFC5D", true, false)
	register(TagSophie256, "FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFEF93", false, true)
	register(TagSemi256, "FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFF43", false, false)
}

// Safe64, Sophie64, Semi64, Safe128, Sophie128, Semi128, Safe256, Sophie256
// and Semi256 are the nine marker types implementing Prime. Each is a
// zero-size struct; its only purpose is to carry a distinct Tag through the
// type system.
type (
	Safe64    struct{}
	Sophie64  struct{}
	Semi64    struct{}
	Safe128   struct{}
	Sophie128 struct{}
	Semi128   struct{}
	Safe256   struct{}
	Sophie256 struct{}
	Semi256   struct{}
)

func (Safe64) Tag() Tag    { return TagSafe64 }
func (Sophie64) Tag() Tag  { return TagSophie64 }
func (Semi64) Tag() Tag    { return TagSemi64 }
func (Safe128) Tag() Tag   { return TagSafe128 }
func (Sophie128) Tag() Tag { return TagSophie128 }
func (Semi128) Tag() Tag   { return TagSemi128 }
func (Safe256) Tag() Tag   { return TagSafe256 }
func (Sophie256) Tag() Tag { return TagSophie256 }
func (Semi256) Tag() Tag   { return TagSemi256 }

// IsSafePrime reports whether tag names a safe prime modulus.
func IsSafePrime(tag Tag) bool { return paramsFor(tag).safe }

// ByteLen returns the number of bytes used to encode an element of tag's
// modulus.
func ByteLen(tag Tag) int { return paramsFor(tag).byteLen }
