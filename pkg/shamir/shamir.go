// Package shamir implements Shamir secret sharing over the typed prime
// fields in pkg/field: share generation at degree T or 2T, Lagrange
// reconstruction (at the original or arbitrary abscissas), Gao-style robust
// reconstruction tolerant of corrupted shares, and the hyper-invertible
// matrix used to extract fresh randomness from a vector of shares.
package shamir

import (
	"errors"
	"fmt"
	"io"

	"github.com/luxfi/mpc/pkg/field"
	"github.com/luxfi/mpc/pkg/party"
)

// Degree selects which polynomial degree a sharing is generated at: T for
// ordinary secrets, TwoT for the degree-2t zero-sharings multiplication
// consumes.
type Degree int

const (
	DegreeT   Degree = 1
	DegreeTwoT Degree = 2
)

// Resolve returns the numeric polynomial degree for a given t and Degree kind.
func (d Degree) Resolve(t int) int {
	return int(d) * t
}

// Share is one party's point on the sharing polynomial.
type Share[F field.Prime] struct {
	X field.Element[F]
	Y field.Element[F]
}

// Errors returned by this package.
var (
	ErrTooHighDegree    = errors.New("shamir: degree t is not smaller than the party count")
	ErrPartyNotFound    = errors.New("shamir: share supplied for party not in the ordered list")
	ErrInterpolationError = errors.New("shamir: unsolvable interpolation system")
	ErrNotEnoughShares  = errors.New("shamir: not enough shares to reconstruct")
	ErrTooManyErrors    = errors.New("shamir: robust reconstruction failed, too many corrupted shares")
)

// Deal splits secret into shares of the given degree for every party in
// parties, using rng for the random higher-order coefficients. Degree must
// be strictly less than len(parties), or ErrTooHighDegree is returned.
func Deal[F field.Prime](rng io.Reader, secret field.Element[F], degree int, parties party.IDSlice) (map[party.ID]Share[F], error) {
	if degree >= len(parties) {
		return nil, ErrTooHighDegree
	}
	poly := randomPolynomial[F](rng, degree, secret)
	shares := make(map[party.ID]Share[F], len(parties))
	for _, id := range parties.Sorted() {
		x := party.Abscissa[F](parties, id)
		shares[id] = Share[F]{X: x, Y: poly.Evaluate(x)}
	}
	return shares, nil
}

func randomPolynomial[F field.Prime](rng io.Reader, degree int, constant field.Element[F]) *Polynomial[F] {
	coeffs := make([]field.Element[F], degree+1)
	coeffs[0] = constant
	for i := 1; i <= degree; i++ {
		coeffs[i] = field.Random[F](rng)
	}
	return &Polynomial[F]{Coeffs: coeffs}
}

// Lagrange computes, for the given subset of a fixed cluster, the
// coefficient each party's share must be multiplied by so that summing
// coeff_i * y_i interpolates the polynomial at x=0 (i.e. recovers the
// secret). Abscissas are derived from each party's position in the full,
// sorted cluster, not the subset, so every caller agrees on them no matter
// which subset of shares it holds.
func Lagrange[F field.Prime](cluster, subset party.IDSlice) (map[party.ID]field.Element[F], error) {
	return explicitLagrangeAt[F](cluster, subset, field.Zero[F]())
}

// ExplicitLagrange computes interpolation coefficients for evaluating the
// polynomial through subset's abscissas at an arbitrary point x, rather than
// only at the secret's location (x=0).
func ExplicitLagrange[F field.Prime](cluster, subset party.IDSlice, at field.Element[F]) (map[party.ID]field.Element[F], error) {
	return explicitLagrangeAt[F](cluster, subset, at)
}

func explicitLagrangeAt[F field.Prime](cluster, subset party.IDSlice, at field.Element[F]) (map[party.ID]field.Element[F], error) {
	sorted := subset.Sorted()
	xs := make(map[party.ID]field.Element[F], len(sorted))
	for _, id := range sorted {
		if !cluster.Contains(id) {
			return nil, ErrPartyNotFound
		}
		xs[id] = party.Abscissa[F](cluster, id)
	}
	coeffs := make(map[party.ID]field.Element[F], len(sorted))
	for _, i := range sorted {
		xi := xs[i]
		num := field.FromUint64[F](1)
		den := field.FromUint64[F](1)
		for _, j := range sorted {
			if j == i {
				continue
			}
			xj := xs[j]
			num = num.Mul(at.Sub(xj))
			den = den.Mul(xi.Sub(xj))
		}
		denInv, err := den.Inverse()
		if err != nil {
			return nil, fmt.Errorf("%w: duplicate abscissa", ErrInterpolationError)
		}
		coeffs[i] = num.Mul(denInv)
	}
	return coeffs, nil
}

// Recover reconstructs the secret from a set of shares via plain Lagrange
// interpolation at x=0, trusting every share supplied. The caller is
// responsible for only calling this with at least degree+1 honest shares;
// use RobustRecover when corruption must be tolerated.
func Recover[F field.Prime](shares map[party.ID]Share[F], cluster party.IDSlice) (field.Element[F], error) {
	ids := make(party.IDSlice, 0, len(shares))
	for id := range shares {
		ids = append(ids, id)
	}
	coeffs, err := Lagrange[F](cluster, ids)
	if err != nil {
		return field.Element[F]{}, err
	}
	sum := field.Zero[F]()
	for _, id := range ids {
		sum = sum.Add(coeffs[id].Mul(shares[id].Y))
	}
	return sum, nil
}
