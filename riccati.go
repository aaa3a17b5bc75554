package senseapp

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	darePrecision     = 1e-10
	dareMaxIterations = 100
)

// RiccatiResult is the outcome of SolveDARE: either the stabilizing solution
// P, or the reason no solution was found.
type RiccatiResult struct {
	P          *mat.SymDense
	Reason     string
	Iterations int
}

// Solved returns whether P holds a solution.
func (r RiccatiResult) Solved() bool {
	return r.P != nil && r.Reason == ""
}

func (r RiccatiResult) String() string {
	if r.Solved() {
		return fmt.Sprintf("solved in %d iterations: P=%v", r.Iterations, mat.Formatted(r.P, mat.Prefix("  ")))
	}
	return fmt.Sprintf("failed after %d iterations: %s", r.Iterations, r.Reason)
}

func failed(k int, format string, args ...interface{}) RiccatiResult {
	return RiccatiResult{Reason: fmt.Sprintf(format, args...), Iterations: k}
}

// SolveDARE solves the filtering Riccati equation
//
//	P = A·P·Aᵀ − A·P·Cᵀ·(C·P·Cᵀ + R)⁻¹·C·P·Aᵀ + Q
//
// for a single output, using the structure-preserving doubling algorithm on
// the dual control problem (Aᵀ, Cᵀ): with A₀ = Aᵀ, G₀ = Cᵀ·R⁻¹·C and H₀ = Q,
// each step sets W = I + G·H and
//
//	A ← A·W⁻¹·A,  G ← G + A·W⁻¹·G·Aᵀ,  H ← H + Aᵀ·H·W⁻¹·A
//
// and H converges quadratically to P. A fixed point that leaves A − L·C with
// an eigenvalue on or outside the unit circle, as happens when Q does not
// excite the undamped modes, is not the stabilizing solution and is reported
// as a failure.
func SolveDARE(A, C mat.Matrix, Q mat.Symmetric, R float64) RiccatiResult {
	n, c := A.Dims()
	if n != c {
		return failed(0, "A must be square, is %dx%d", n, c)
	}
	if err := checkMatDims(C, A, "C", "A", cols2rows); err != nil {
		return failed(0, "%s", err)
	}
	if err := checkMatDims(Q, A, "Q", "A", rowsAndcols); err != nil {
		return failed(0, "%s", err)
	}
	if r, _ := C.Dims(); r != 1 {
		return failed(0, "C must have a single row, has %d", r)
	}
	if !(R > 0) || math.IsInf(R, 0) {
		return failed(0, "measurement variance R=%g is not positive", R)
	}
	if !allFinite(A) || !allFinite(Q) {
		return failed(0, "non-finite A or Q")
	}

	Ak := mat.DenseCopyOf(A.T())
	Gk := mat.NewDense(n, n, nil)
	Gk.Mul(C.T(), C)
	Gk.Scale(1/R, Gk)
	Hk := mat.DenseCopyOf(Q)

	I := Identity(n)
	var W, WinvA, WinvG, tmp, nextA, nextG, nextH mat.Dense
	for k := 1; k <= dareMaxIterations; k++ {
		W.Mul(Gk, Hk)
		W.Add(&W, I)
		if err := solve(&WinvA, &W, Ak); err != nil {
			return failed(k, "I+G·H is singular: %s", err)
		}
		if err := solve(&WinvG, &W, Gk); err != nil {
			return failed(k, "I+G·H is singular: %s", err)
		}

		nextA.Mul(Ak, &WinvA)

		tmp.Mul(Ak, &WinvG)
		nextG.Mul(&tmp, Ak.T())
		nextG.Add(Gk, &nextG)

		tmp.Mul(Hk, &WinvA)
		nextH.Mul(Ak.T(), &tmp)
		nextH.Add(Hk, &nextH)

		if !allFinite(&nextH) || !allFinite(&nextA) || !allFinite(&nextG) {
			return failed(k, "iterates diverged")
		}

		tmp.Sub(&nextH, Hk)
		δ := mat.Norm(&tmp, 2)
		scale := math.Max(1, mat.Norm(&nextH, 2))

		Ak.Copy(&nextA)
		Gk.Copy(&nextG)
		Hk.Copy(&nextH)

		if δ <= darePrecision*scale {
			P, err := AsSymDense(Hk, 1e-6)
			if err != nil {
				return failed(k, "solution lost symmetry: %s", err)
			}
			if !stabilizes(A, C, P, R) {
				return failed(k, "no stabilizing solution")
			}
			return RiccatiResult{P: P, Iterations: k}
		}
	}
	return failed(dareMaxIterations, "no convergence within %d iterations", dareMaxIterations)
}

// stabilizes returns whether the gain of P puts every eigenvalue of A − L·C
// strictly inside the unit circle.
func stabilizes(A, C mat.Matrix, P mat.Symmetric, R float64) bool {
	L, err := SteadyStateGain(A, C, P, R)
	if err != nil {
		return false
	}
	var Acl mat.Dense
	Acl.Mul(L, C)
	Acl.Sub(A, &Acl)
	ρ, ok := spectralRadius(&Acl)
	return ok && ρ < 1-unitCircleTolerance
}

// solve tolerates ill-conditioning reported by mat and only fails on singular systems.
func solve(dst *mat.Dense, a, b mat.Matrix) error {
	err := dst.Solve(a, b)
	var cond mat.Condition
	if errors.As(err, &cond) && !math.IsInf(float64(cond), 0) && allFinite(dst) {
		return nil
	}
	return err
}

// SteadyStateGain returns the steady-state Kalman gain L = A·P·Cᵀ / (C·P·Cᵀ + R)
// for a single output.
func SteadyStateGain(A, C mat.Matrix, P mat.Symmetric, R float64) (*mat.VecDense, error) {
	if err := checkMatDims(A, P, "A", "P", cols2rows); err != nil {
		return nil, err
	}
	if err := checkMatDims(C, P, "C", "P", cols2rows); err != nil {
		return nil, err
	}
	n, _ := A.Dims()
	var PCt mat.Dense
	PCt.Mul(P, C.T())
	var CPCt mat.Dense
	CPCt.Mul(C, &PCt)
	den := CPCt.At(0, 0) + R
	if den == 0 || math.IsNaN(den) || math.IsInf(den, 0) {
		return nil, fmt.Errorf("%w: innovation variance C·P·Cᵀ+R=%g", ErrDegenerate, den)
	}
	L := mat.NewVecDense(n, nil)
	L.MulVec(A, PCt.ColView(0))
	L.ScaleVec(1/den, L)
	return L, nil
}
