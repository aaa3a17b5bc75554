package senseapp

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

// unitCircleTolerance absorbs the rounding of eigenvalues that lie on the
// unit circle, such as those of an undamped oscillator.
const unitCircleTolerance = 1e-10

// IsSchurStable returns false iff some eigenvalue of the discrete state
// matrix A has a magnitude strictly greater than one. Eigenvalues on the unit
// circle are accepted. A failed eigendecomposition is reported as unstable.
func IsSchurStable(A mat.Matrix) bool {
	ρ, ok := spectralRadius(A)
	return ok && ρ <= 1+unitCircleTolerance
}

// spectralRadius returns the largest eigenvalue magnitude of A, and false if
// A is not finite or cannot be factorized.
func spectralRadius(A mat.Matrix) (float64, bool) {
	if !allFinite(A) {
		return 0, false
	}
	var λ mat.Eigen
	if ok := λ.Factorize(A, mat.EigenNone); !ok {
		return 0, false
	}
	ρ := 0.0
	for _, v := range λ.Values(nil) {
		ρ = math.Max(ρ, cmplx.Abs(v))
	}
	return ρ, true
}
