package senseapp

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

// Discretize returns the zero-order-hold equivalent of the continuous system
// ss sampled every Δt. A and B are read from the exponential of the augmented
// matrix [[A, B], [0, 0]]·Δt; C and D are unchanged.
func Discretize(ss *StateSpace, Δt float64) (*StateSpace, error) {
	if !(Δt > 0) || math.IsInf(Δt, 0) {
		return nil, fmt.Errorf("%w: sample interval Δt=%f", ErrMalformedInput, Δt)
	}
	if err := checkMatDims(ss.A, ss.B, "A", "B", rows2rows); err != nil {
		return nil, err
	}
	n, m := ss.Dims()

	// Populate M
	M := mat.NewDense(n+m, n+m, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			M.Set(i, j, ss.A.At(i, j)*Δt)
		}
		for j := 0; j < m; j++ {
			M.Set(i, n+j, ss.B.At(i, j)*Δt)
		}
	}

	// Compute exponential
	var expM mat.Dense
	expM.Exp(M)

	return &StateSpace{
		A: mat.DenseCopyOf(expM.Slice(0, n, 0, n)),
		B: mat.DenseCopyOf(expM.Slice(0, n, n, n+m)),
		C: mat.DenseCopyOf(ss.C),
		D: mat.DenseCopyOf(ss.D),
	}, nil
}

// CheckNyquist returns ErrNyquist if the fastest mode of the continuous
// matrix A cannot be sampled every Δt without aliasing.
func CheckNyquist(A mat.Matrix, Δt float64) error {
	var λ mat.Eigen
	if ok := λ.Factorize(A, mat.EigenNone); !ok {
		return fmt.Errorf("%w: eigendecomposition of the continuous dynamics failed", ErrMalformedInput)
	}
	λmax := 0.0
	for _, v := range λ.Values(nil) {
		if a := cmplx.Abs(v); a > λmax {
			λmax = a
		}
	}
	if 2*λmax*Δt >= math.Pi {
		return fmt.Errorf("%w with Δt=%f (fastest mode %f rad/h)", ErrNyquist, Δt, λmax)
	}
	return nil
}
