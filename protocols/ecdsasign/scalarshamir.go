package ecdsasign

import (
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/luxfi/mpc/pkg/party"
)

// The signing protocols work over secp256k1's scalar order, not over one of
// pkg/field's moduli: a signature only verifies if every linear combination
// happens mod the curve order. This file carries the minimal Shamir algebra
// over secp256k1.ModNScalar that signing needs — dealing (for the aux
// dealer) and Lagrange interpolation at zero (for combining signature
// shares). The abscissa convention matches party.Abscissa: the party's
// 1-indexed position in the sorted cluster.

// scalarAbscissa returns id's abscissa in the sorted cluster as a curve
// scalar, or an error if id is not a member.
func scalarAbscissa(cluster party.IDSlice, id party.ID) (*secp256k1.ModNScalar, error) {
	sorted := cluster.Sorted()
	for i, member := range sorted {
		if member == id {
			s := new(secp256k1.ModNScalar)
			s.SetInt(uint32(i + 1))
			return s, nil
		}
	}
	return nil, fmt.Errorf("ecdsasign: party %s not in cluster", id)
}

// evalScalarPoly evaluates the polynomial with the given coefficients
// (constant term first) at x, by Horner's rule.
func evalScalarPoly(coeffs []*secp256k1.ModNScalar, x *secp256k1.ModNScalar) *secp256k1.ModNScalar {
	acc := new(secp256k1.ModNScalar)
	for i := len(coeffs) - 1; i >= 0; i-- {
		acc.Mul(x)
		acc.Add(coeffs[i])
	}
	return acc
}

// dealScalar shares secret across the cluster at the given degree, returning
// one scalar share per party. randomScalar supplies the non-constant
// coefficients; it is a parameter so tests can fix them.
func dealScalar(secret *secp256k1.ModNScalar, degree int, cluster party.IDSlice, randomScalar func() (*secp256k1.ModNScalar, error)) (map[party.ID]*secp256k1.ModNScalar, error) {
	coeffs := make([]*secp256k1.ModNScalar, degree+1)
	coeffs[0] = new(secp256k1.ModNScalar).Set(secret)
	for i := 1; i <= degree; i++ {
		c, err := randomScalar()
		if err != nil {
			return nil, err
		}
		coeffs[i] = c
	}
	out := make(map[party.ID]*secp256k1.ModNScalar, len(cluster))
	for _, id := range cluster {
		x, err := scalarAbscissa(cluster, id)
		if err != nil {
			return nil, err
		}
		out[id] = evalScalarPoly(coeffs, x)
	}
	return out, nil
}

// interpolateScalarAtZero recovers the secret from the given scalar shares
// by Lagrange interpolation at zero.
func interpolateScalarAtZero(shares map[party.ID]*secp256k1.ModNScalar, cluster party.IDSlice) (*secp256k1.ModNScalar, error) {
	type point struct {
		x, y *secp256k1.ModNScalar
	}
	points := make([]point, 0, len(shares))
	for id, y := range shares {
		x, err := scalarAbscissa(cluster, id)
		if err != nil {
			return nil, err
		}
		points = append(points, point{x: x, y: y})
	}

	total := new(secp256k1.ModNScalar)
	for j, pj := range points {
		num := new(secp256k1.ModNScalar)
		num.SetInt(1)
		den := new(secp256k1.ModNScalar)
		den.SetInt(1)
		for l, pl := range points {
			if l == j {
				continue
			}
			num.Mul(pl.x)
			diff := new(secp256k1.ModNScalar).Set(pl.x)
			negXj := new(secp256k1.ModNScalar).Set(pj.x)
			negXj.Negate()
			diff.Add(negXj)
			den.Mul(diff)
		}
		if den.IsZero() {
			return nil, fmt.Errorf("ecdsasign: duplicate abscissa in interpolation")
		}
		den.InverseNonConst()
		coeff := num.Mul(den)
		term := new(secp256k1.ModNScalar).Set(pj.y)
		term.Mul(coeff)
		total.Add(term)
	}
	return total, nil
}

// scalarFromBytes parses a 32-byte big-endian scalar share, rejecting
// malformed lengths rather than silently zero-padding.
func scalarFromBytes(b []byte) (*secp256k1.ModNScalar, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("ecdsasign: scalar must be 32 bytes, got %d", len(b))
	}
	s := new(secp256k1.ModNScalar)
	s.SetByteSlice(b)
	return s, nil
}

func scalarBytes(s *secp256k1.ModNScalar) []byte {
	b := s.Bytes()
	return b[:]
}
