package cte

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// maxCondition bounds the condition number of the design matrix. Above it
// the coefficients are dominated by rounding.
const maxCondition = 1e12

// quadratic holds c0 + c1*x + c2*x^2.
type quadratic [3]float64

func (q quadratic) eval(x float64) float64 {
	return q[0] + x*(q[1]+x*q[2])
}

// fitQuadratic solves the least-squares fit of y over x with a QR
// factorisation of the Vandermonde matrix.
func fitQuadratic(xs, ys []float64) (quadratic, error) {
	n := len(xs)
	if n < 3 || len(ys) != n {
		return quadratic{}, fmt.Errorf("%w: %d points", ErrDegenerateFit, n)
	}

	a := mat.NewDense(n, 3, nil)
	for i, x := range xs {
		a.Set(i, 0, 1)
		a.Set(i, 1, x)
		a.Set(i, 2, x*x)
	}
	b := mat.NewVecDense(n, append([]float64(nil), ys...))

	var qr mat.QR
	qr.Factorize(a)
	if c := qr.Cond(); math.IsInf(c, 1) || math.IsNaN(c) || c > maxCondition {
		return quadratic{}, fmt.Errorf("%w: condition %g", ErrDegenerateFit, c)
	}

	var coef mat.VecDense
	if err := qr.SolveVecTo(&coef, false, b); err != nil {
		var cond mat.Condition
		if errors.As(err, &cond) {
			return quadratic{}, fmt.Errorf("%w: %v", ErrDegenerateFit, err)
		}
		return quadratic{}, err
	}

	q := quadratic{coef.AtVec(0), coef.AtVec(1), coef.AtVec(2)}
	for _, c := range q {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return quadratic{}, fmt.Errorf("%w: non-finite coefficient", ErrDegenerateFit)
		}
	}
	return q, nil
}
