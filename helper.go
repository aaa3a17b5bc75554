package senseapp

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Identity returns an identity matrix of the provided size.
func Identity(n int) *mat.DiagDense {
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = 1
	}
	return mat.NewDiagDense(n, vals)
}

// IsNil returns whether the provided matrix only has zero values
func IsNil(m mat.Matrix) bool {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if m.At(i, j) != 0 {
				return false
			}
		}
	}
	return true
}

// AsSymDense attempts return a SymDense from the provided Dense.
// Entries are compared within tol since products such as M*Mᵀ and the Riccati
// iterates are only symmetric up to rounding; the upper triangle is kept.
func AsSymDense(m *mat.Dense, tol float64) (*mat.SymDense, error) {
	r, c := m.Dims()
	if r != c {
		return nil, errors.New("matrix must be square")
	}
	sym := mat.NewSymDense(r, nil)
	for i := 0; i < r; i++ {
		for j := i; j < c; j++ {
			a, b := m.At(i, j), m.At(j, i)
			if math.Abs(a-b) > tol*math.Max(1, math.Max(math.Abs(a), math.Abs(b))) {
				return nil, fmt.Errorf("matrix is not symmetric at (%d,%d)", i, j)
			}
			sym.SetSym(i, j, (a+b)/2)
		}
	}
	return sym, nil
}

// OuterSelf returns M*Mᵀ, with M the n×n matrix read row-major from vals.
func OuterSelf(vals []float64, n int) (*mat.SymDense, error) {
	if len(vals) != n*n {
		return nil, fmt.Errorf("%w: %d values cannot form a %dx%d matrix", ErrDimension, len(vals), n, n)
	}
	M := mat.NewDense(n, n, append([]float64(nil), vals...))
	Q := mat.NewSymDense(n, nil)
	Q.SymOuterK(1, M)
	return Q, nil
}

// allFinite returns whether every entry of m is a finite number.
func allFinite(m mat.Matrix) bool {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if v := m.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}
