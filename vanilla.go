package senseapp

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// NewVanilla returns a new Vanilla KF in predictor form: each Update consumes
// the sample y[k] and returns the prediction of the state at k+1.
// Parameters:
// - x0: initial state
// - Covar0: initial prediction covariance
// - A: state transition matrix
// - C: measurement row
// - Q: process noise covariance
// - R: measurement noise variance
func NewVanilla(x0 *mat.VecDense, Covar0 mat.Symmetric, A, C mat.Matrix, Q mat.Symmetric, R float64) (*Vanilla, error) {
	// Let's check the dimensions of everything here to fail ASAP.
	if err := checkMatDims(x0, Covar0, "x0", "Covar0", rows2cols); err != nil {
		return nil, err
	}
	if err := checkMatDims(A, Covar0, "A", "Covar0", rowsAndcols); err != nil {
		return nil, err
	}
	if err := checkMatDims(C, x0, "C", "x0", cols2rows); err != nil {
		return nil, err
	}
	if err := checkMatDims(Q, Covar0, "Q", "Covar0", rowsAndcols); err != nil {
		return nil, err
	}
	if r, _ := C.Dims(); r != 1 {
		return nil, fmt.Errorf("%w: %d outputs, expected one", ErrDimension, r)
	}
	if !(R > 0) || math.IsInf(R, 0) {
		return nil, fmt.Errorf("%w: measurement variance R=%g", ErrInfeasible, R)
	}
	n := x0.Len()
	c := mat.NewVecDense(n, mat.Row(nil, 0, C))
	est0 := VanillaEstimate{
		state:     mat.VecDenseCopyOf(x0),
		meas:      mat.Dot(c, x0),
		covar:     mat.NewSymDense(n, nil),
		predCovar: mat.NewSymDense(n, nil),
		gain:      mat.NewVecDense(n, nil),
	}
	est0.predCovar.CopySym(Covar0)
	return &Vanilla{A: A, C: C, Q: Q, R: R, c: c, prevEst: est0}, nil
}

// Vanilla defines a vanilla kalman filter over a scalar measurement. Use NewVanilla to initialize.
type Vanilla struct {
	A, C    mat.Matrix
	Q       mat.Symmetric
	R       float64
	c       *mat.VecDense
	prevEst VanillaEstimate
	step    int
}

func (kf *Vanilla) String() string {
	return fmt.Sprintf("A=%v\nC=%v\nQ=%v\nR=%g", mat.Formatted(kf.A, mat.Prefix("  ")), mat.Formatted(kf.C, mat.Prefix("  ")), mat.Formatted(kf.Q, mat.Prefix("  ")), kf.R)
}

// Step returns the number of samples consumed.
func (kf *Vanilla) Step() int {
	return kf.step
}

// Update consumes a sample. A zero sample is a missing reading: the
// measurement update is skipped and the state is only propagated.
func (kf *Vanilla) Update(y float64) (*VanillaEstimate, error) {
	x, PMinus, c := kf.prevEst.state, kf.prevEst.predCovar, kf.c
	n := x.Len()
	yHat := mat.Dot(c, x)
	S := mat.Inner(c, PMinus, c) + kf.R

	// Measurement update
	K := mat.NewVecDense(n, nil)
	xPlus := mat.VecDenseCopyOf(x)
	PPlus := mat.NewSymDense(n, nil)
	PPlus.CopySym(PMinus)
	innov := 0.0
	if y != 0 {
		if S == 0 || math.IsNaN(S) || math.IsInf(S, 0) {
			return nil, fmt.Errorf("%w: innovation variance %g at step %d", ErrDegenerate, S, kf.step)
		}
		K.MulVec(PMinus, c)
		K.ScaleVec(1/S, K)
		innov = y - yHat
		xPlus.AddScaledVec(xPlus, innov, K)

		// Joseph form: (I−KC)P(I−KC)ᵀ + K·R·Kᵀ
		var IKC, tmp, joseph, KRK mat.Dense
		IKC.Outer(-1, K, c)
		IKC.Add(&IKC, Identity(n))
		tmp.Mul(&IKC, PMinus)
		joseph.Mul(&tmp, IKC.T())
		KRK.Outer(kf.R, K, K)
		joseph.Add(&joseph, &KRK)
		sym, err := AsSymDense(&joseph, 1e-9)
		if err != nil {
			return nil, err
		}
		PPlus = sym
	}

	// Prediction step.
	var xNext, AK mat.VecDense
	xNext.MulVec(kf.A, xPlus)
	AK.MulVec(kf.A, K)
	var AP, APAt mat.Dense
	AP.Mul(kf.A, PPlus)
	APAt.Mul(&AP, kf.A.T())
	APAt.Add(&APAt, kf.Q)
	PNext, err := AsSymDense(&APAt, 1e-9)
	if err != nil {
		return nil, err
	}
	if !allFinite(PNext) {
		return nil, fmt.Errorf("%w: non-finite covariance at step %d", ErrDegenerate, kf.step)
	}

	est := VanillaEstimate{
		state:      &xNext,
		meas:       yHat,
		innovation: innov,
		innovVar:   S,
		covar:      PPlus,
		predCovar:  PNext,
		gain:       &AK,
	}
	kf.prevEst = est
	kf.step++
	return &est, nil
}

// VanillaEstimate is the output of each update of the Vanilla KF.
// It implements the Estimate interface.
type VanillaEstimate struct {
	state                      *mat.VecDense
	meas, innovation, innovVar float64
	covar, predCovar           *mat.SymDense
	gain                       *mat.VecDense
}

// IsWithinNσ returns whether the innovation is within the N*σ bounds of its predicted variance.
func (e VanillaEstimate) IsWithinNσ(N float64) bool {
	return math.Abs(e.innovation) <= N*math.Sqrt(e.innovVar)
}

// State implements the Estimate interface.
func (e VanillaEstimate) State() *mat.VecDense {
	return e.state
}

// Measurement implements the Estimate interface.
func (e VanillaEstimate) Measurement() float64 {
	return e.meas
}

// Innovation implements the Estimate interface.
func (e VanillaEstimate) Innovation() float64 {
	return e.innovation
}

// Covariance implements the Estimate interface.
func (e VanillaEstimate) Covariance() mat.Symmetric {
	return e.covar
}

// PredCovariance implements the Estimate interface.
func (e VanillaEstimate) PredCovariance() mat.Symmetric {
	return e.predCovar
}

// Gain returns the predictor-form gain A·K used for this step.
func (e VanillaEstimate) Gain() *mat.VecDense {
	return e.gain
}

func (e VanillaEstimate) String() string {
	state := mat.Formatted(e.State().T(), mat.Prefix("  "))
	covar := mat.Formatted(e.Covariance(), mat.Prefix("  "))
	gain := mat.Formatted(e.Gain().T(), mat.Prefix("  "))
	predp := mat.Formatted(e.PredCovariance(), mat.Prefix("  "))
	return fmt.Sprintf("{\ns=%v\ny=%g\nP=%v\nL=%v\nP-=%v\ni=%g\n}", state, e.meas, covar, gain, predp, e.innovation)
}
