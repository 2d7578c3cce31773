package shamir

import "github.com/luxfi/mpc/pkg/field"

// Polynomial is a dense univariate polynomial over F, coefficients ordered
// from the constant term up (Coeffs[i] is the coefficient of x^i). It backs
// both secret sharing itself and the polynomial arithmetic used by robust
// (error-correcting) reconstruction.
type Polynomial[F field.Prime] struct {
	Coeffs []field.Element[F]
}

// NewPolynomial builds a degree-t polynomial with the given constant term
// and uniformly random higher coefficients.
func NewPolynomial[F field.Prime](t int, constant field.Element[F]) *Polynomial[F] {
	coeffs := make([]field.Element[F], t+1)
	coeffs[0] = constant
	for i := 1; i <= t; i++ {
		coeffs[i] = field.Random[F](nil)
	}
	return &Polynomial[F]{Coeffs: coeffs}
}

// Degree returns the polynomial's degree, after trimming trailing zero
// coefficients. The zero polynomial has degree -1.
func (p *Polynomial[F]) Degree() int {
	for i := len(p.Coeffs) - 1; i >= 0; i-- {
		if !p.Coeffs[i].IsZero() {
			return i
		}
	}
	return -1
}

// Evaluate computes p(x) via Horner's method.
func (p *Polynomial[F]) Evaluate(x field.Element[F]) field.Element[F] {
	if len(p.Coeffs) == 0 {
		return field.Zero[F]()
	}
	acc := p.Coeffs[len(p.Coeffs)-1]
	for i := len(p.Coeffs) - 2; i >= 0; i-- {
		acc = acc.Mul(x).Add(p.Coeffs[i])
	}
	return acc
}

func trim[F field.Prime](c []field.Element[F]) []field.Element[F] {
	n := len(c)
	for n > 0 && c[n-1].IsZero() {
		n--
	}
	return c[:n]
}

// Add returns p + q.
func (p *Polynomial[F]) Add(q *Polynomial[F]) *Polynomial[F] {
	n := len(p.Coeffs)
	if len(q.Coeffs) > n {
		n = len(q.Coeffs)
	}
	out := make([]field.Element[F], n)
	for i := 0; i < n; i++ {
		out[i] = field.Zero[F]()
		if i < len(p.Coeffs) {
			out[i] = out[i].Add(p.Coeffs[i])
		}
		if i < len(q.Coeffs) {
			out[i] = out[i].Add(q.Coeffs[i])
		}
	}
	return &Polynomial[F]{Coeffs: trim(out)}
}

// Sub returns p - q.
func (p *Polynomial[F]) Sub(q *Polynomial[F]) *Polynomial[F] {
	n := len(p.Coeffs)
	if len(q.Coeffs) > n {
		n = len(q.Coeffs)
	}
	out := make([]field.Element[F], n)
	for i := 0; i < n; i++ {
		out[i] = field.Zero[F]()
		if i < len(p.Coeffs) {
			out[i] = out[i].Add(p.Coeffs[i])
		}
		if i < len(q.Coeffs) {
			out[i] = out[i].Sub(q.Coeffs[i])
		}
	}
	return &Polynomial[F]{Coeffs: trim(out)}
}

// Mul returns p * q by plain convolution.
func (p *Polynomial[F]) Mul(q *Polynomial[F]) *Polynomial[F] {
	if len(p.Coeffs) == 0 || len(q.Coeffs) == 0 {
		return &Polynomial[F]{}
	}
	out := make([]field.Element[F], len(p.Coeffs)+len(q.Coeffs)-1)
	for i := range out {
		out[i] = field.Zero[F]()
	}
	for i, a := range p.Coeffs {
		if a.IsZero() {
			continue
		}
		for j, b := range q.Coeffs {
			out[i+j] = out[i+j].Add(a.Mul(b))
		}
	}
	return &Polynomial[F]{Coeffs: trim(out)}
}

// DivMod performs polynomial long division: p = divisor*quotient + remainder, with
// deg(remainder) < deg(divisor). Returns ErrDivByZero if divisor is the zero
// polynomial.
func (p *Polynomial[F]) DivMod(divisor *Polynomial[F]) (quotient, remainder *Polynomial[F], err error) {
	dDeg := divisor.Degree()
	if dDeg < 0 {
		return nil, nil, field.ErrDivByZero
	}
	leadInv, err := divisor.Coeffs[dDeg].Inverse()
	if err != nil {
		return nil, nil, err
	}

	rem := make([]field.Element[F], len(p.Coeffs))
	copy(rem, p.Coeffs)
	remPoly := &Polynomial[F]{Coeffs: trim(rem)}

	var quotCoeffs []field.Element[F]
	for remPoly.Degree() >= dDeg {
		shift := remPoly.Degree() - dDeg
		coeff := remPoly.Coeffs[remPoly.Degree()].Mul(leadInv)
		for len(quotCoeffs) <= shift {
			quotCoeffs = append(quotCoeffs, field.Zero[F]())
		}
		quotCoeffs[shift] = coeff

		// subtract coeff * x^shift * divisor from remainder
		termCoeffs := make([]field.Element[F], shift+dDeg+1)
		for i := range termCoeffs {
			termCoeffs[i] = field.Zero[F]()
		}
		for i, c := range divisor.Coeffs {
			termCoeffs[shift+i] = c.Mul(coeff)
		}
		term := &Polynomial[F]{Coeffs: trim(termCoeffs)}
		remPoly = remPoly.Sub(term)
	}
	if quotCoeffs == nil {
		quotCoeffs = []field.Element[F]{field.Zero[F]()}
	}
	return &Polynomial[F]{Coeffs: trim(quotCoeffs)}, remPoly, nil
}
