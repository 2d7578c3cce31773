package vm

import (
	"github.com/luxfi/mpc/pkg/field"
	"github.com/luxfi/mpc/pkg/ir"
	"github.com/luxfi/mpc/pkg/shamir"
)

// Value is one memory cell: a public field element, the local party's share
// of a secret one (matching ir.Visibility), or an opaque public byte string
// (a signature or a derived public key, which have no field representation).
type Value[F field.Prime] struct {
	Public     field.Element[F]
	Share      shamir.Share[F]
	Bytes      []byte
	Visibility ir.Visibility
}

func PublicValue[F field.Prime](v field.Element[F]) Value[F] {
	return Value[F]{Public: v, Visibility: ir.Public}
}

// BytesValue wraps an opaque public byte string (always public: signatures
// and derived keys are outputs of a completed protocol, never shares).
func BytesValue[F field.Prime](b []byte) Value[F] {
	return Value[F]{Bytes: b, Visibility: ir.Public}
}

func SecretValue[F field.Prime](s shamir.Share[F]) Value[F] {
	return Value[F]{Share: s, Visibility: ir.Secret}
}

func (v Value[F]) IsSecret() bool { return v.Visibility == ir.Secret }
