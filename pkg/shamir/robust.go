package shamir

import (
	"github.com/luxfi/mpc/pkg/field"
	"github.com/luxfi/mpc/pkg/party"
)

// RobustRecover reconstructs a degree-t secret from shares collected from
// cluster, tolerating up to t arbitrary (maliciously corrupted) shares
// provided n = len(shares) >= 3t+1. It implements Gao's error-correcting
// decoder for Reed-Solomon codes: interpolate the (possibly-corrupted)
// points, run the extended Euclidean algorithm against the "all points are
// roots" polynomial, and recover the original low-degree polynomial once an
// error locator of the expected degree is found.
func RobustRecover[F field.Prime](shares map[party.ID]Share[F], cluster party.IDSlice, t int) (field.Element[F], error) {
	n := len(shares)
	if n < 3*t+1 {
		return field.Element[F]{}, ErrNotEnoughShares
	}

	ids := make(party.IDSlice, 0, n)
	for id := range shares {
		ids = append(ids, id)
	}
	ids = ids.Sorted()

	// g0(x) = prod (x - x_i)
	g0 := &Polynomial[F]{Coeffs: []field.Element[F]{field.FromUint64[F](1)}}
	for _, id := range ids {
		xi := shares[id].X
		root := &Polynomial[F]{Coeffs: []field.Element[F]{
			field.Zero[F]().Sub(xi),
			field.FromUint64[F](1),
		}}
		g0 = g0.Mul(root)
	}

	// g1 = interpolating polynomial through every (possibly corrupted) point.
	g1, err := interpolate(shares, ids)
	if err != nil {
		return field.Element[F]{}, err
	}

	// Extended Euclidean algorithm on (g0, g1), stopping once the remainder
	// degree drops below (n+t+1)/2, i.e. (n+k)/2 for the k = t+1 message
	// coefficients: at that point r = f*v for the true message polynomial f
	// (degree <= t) and an error-locator-derived v.
	threshold := (n + t + 2) / 2

	r0, r1 := g0, g1
	v0 := &Polynomial[F]{Coeffs: []field.Element[F]{field.Zero[F]()}}
	v1 := &Polynomial[F]{Coeffs: []field.Element[F]{field.FromUint64[F](1)}}

	for r1.Degree() >= threshold {
		q, r, err := r0.DivMod(r1)
		if err != nil {
			return field.Element[F]{}, ErrTooManyErrors
		}
		r0, r1 = r1, r
		v0, v1 = v1, v0.Sub(q.Mul(v1))
		if r1.Degree() < 0 {
			return field.Element[F]{}, ErrTooManyErrors
		}
	}

	f, rem, err := r1.DivMod(v1)
	if err != nil {
		return field.Element[F]{}, ErrTooManyErrors
	}
	if rem.Degree() >= 0 || f.Degree() > t {
		return field.Element[F]{}, ErrTooManyErrors
	}

	return f.Evaluate(field.Zero[F]()), nil
}

func interpolate[F field.Prime](shares map[party.ID]Share[F], ids party.IDSlice) (*Polynomial[F], error) {
	// Lagrange interpolation expressed as an explicit polynomial via the
	// standard basis expansion: sum_i y_i * L_i(x), where each L_i(x) is
	// built up as a polynomial (not just evaluated at one point).
	result := &Polynomial[F]{Coeffs: []field.Element[F]{field.Zero[F]()}}
	for _, i := range ids {
		xi, yi := shares[i].X, shares[i].Y
		basis := &Polynomial[F]{Coeffs: []field.Element[F]{field.FromUint64[F](1)}}
		denom := field.FromUint64[F](1)
		for _, j := range ids {
			if j == i {
				continue
			}
			xj := shares[j].X
			term := &Polynomial[F]{Coeffs: []field.Element[F]{
				field.Zero[F]().Sub(xj),
				field.FromUint64[F](1),
			}}
			basis = basis.Mul(term)
			denom = denom.Mul(xi.Sub(xj))
		}
		denomInv, err := denom.Inverse()
		if err != nil {
			return nil, ErrInterpolationError
		}
		scale := yi.Mul(denomInv)
		scaled := make([]field.Element[F], len(basis.Coeffs))
		for k, c := range basis.Coeffs {
			scaled[k] = c.Mul(scale)
		}
		result = result.Add(&Polynomial[F]{Coeffs: scaled})
	}
	return result, nil
}
