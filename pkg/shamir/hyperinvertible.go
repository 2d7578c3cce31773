package shamir

import "github.com/luxfi/mpc/pkg/field"

// HyperInvertibleMatrix is a Vandermonde-derived (n-t) x n matrix with the
// property that every (n-t)x(n-t) submatrix is invertible. Multiplying a
// vector of n shares (one per party) by this matrix produces n-t fresh
// shares such that any t of the n inputs reveal nothing about any output —
// the randomness-extraction primitive RAN and RAN-ZERO are built on.
type HyperInvertibleMatrix[F field.Prime] struct {
	rows [][]field.Element[F] // (n-t) x n
	n, t int
}

// NewHyperInvertibleMatrix builds the matrix for n parties tolerating t
// corruptions. Row r, column c is computed as the Lagrange basis
// coefficient of evaluation point (n+r+1) relative to nodes 1..n, which is the
// standard Vandermonde-based construction: each output column is the
// polynomial interpolating the input vector, evaluated beyond the input
// abscissas.
func NewHyperInvertibleMatrix[F field.Prime](n, t int) *HyperInvertibleMatrix[F] {
	outputs := n - t
	rows := make([][]field.Element[F], outputs)
	xs := make([]field.Element[F], n)
	for i := 0; i < n; i++ {
		xs[i] = field.FromUint64[F](uint64(i + 1))
	}
	for r := 0; r < outputs; r++ {
		at := field.FromUint64[F](uint64(n + r + 1))
		row := make([]field.Element[F], n)
		for c := 0; c < n; c++ {
			num := field.FromUint64[F](1)
			den := field.FromUint64[F](1)
			for k := 0; k < n; k++ {
				if k == c {
					continue
				}
				num = num.Mul(at.Sub(xs[k]))
				den = den.Mul(xs[c].Sub(xs[k]))
			}
			denInv, err := den.Inverse()
			if err != nil {
				panic("shamir: degenerate hyper-invertible matrix construction")
			}
			row[c] = num.Mul(denInv)
		}
		rows[r] = row
	}
	return &HyperInvertibleMatrix[F]{rows: rows, n: n, t: t}
}

// Apply multiplies the matrix by inputs (length n), returning n-t outputs.
func (m *HyperInvertibleMatrix[F]) Apply(inputs []field.Element[F]) []field.Element[F] {
	if len(inputs) != m.n {
		panic("shamir: hyper-invertible matrix input length mismatch")
	}
	out := make([]field.Element[F], len(m.rows))
	for r, row := range m.rows {
		sum := field.Zero[F]()
		for c, coeff := range row {
			sum = sum.Add(coeff.Mul(inputs[c]))
		}
		out[r] = sum
	}
	return out
}

// OutputCount returns n - t, the number of fresh shares a single application produces.
func (m *HyperInvertibleMatrix[F]) OutputCount() int { return len(m.rows) }
