package senseapp

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Estimate is returned from Update() in a covariance-propagating KF.
type Estimate interface {
	IsWithinNσ(N float64) bool     // IsWithinNσ returns whether the innovation is within the N*σ bounds.
	State() *mat.VecDense          // Returns \hat{x}_{k+1}^{-}
	Measurement() float64          // Returns C*\hat{x}_{k}^{-}
	Innovation() float64           // Returns y_{k} - C*\hat{x}_{k}^{-}
	Covariance() mat.Symmetric     // Return P_{k}^{+}
	PredCovariance() mat.Symmetric // Return P_{k+1}^{-}
	String() string                // Must implement the stringer interface.
}

// Vanilla returns the time-varying filter of the candidate [M..., R]. When
// Covar0 is nil the filter starts from the steady-state covariance, so that
// its gain stays at the steady-state gain until a reading is missing.
func (kf *SteadyStateKalman) Vanilla(params []float64, Covar0 mat.Symmetric) (*Vanilla, error) {
	if len(params) != kf.ParamLen() {
		return nil, fmt.Errorf("%w: %d parameters, expected %d", ErrDimension, len(params), kf.ParamLen())
	}
	n := kf.cfg.StateDim()
	Q, err := OuterSelf(params[:n*n], n)
	if err != nil {
		return nil, err
	}
	R := params[n*n]
	if Covar0 == nil {
		res := SolveDARE(kf.A, kf.C, Q, R)
		if !res.Solved() {
			return nil, fmt.Errorf("%w: Riccati equation %s", ErrInfeasible, res)
		}
		Covar0 = res.P
	}
	return NewVanilla(kf.x0, Covar0, kf.A, kf.C, Q, R)
}

// EstimateCovariance runs the tuned Kalman filter over (t, y) from its
// steady-state covariance and returns one estimate per sample, the last one
// predicting past the end of the series.
func EstimateCovariance(cfg Config, t, y, params []float64) ([]*VanillaEstimate, error) {
	if cfg.Variant != KalmanVariant {
		return nil, fmt.Errorf("%w: covariance is only tracked by the Kalman filter, not the %s", ErrConfig, cfg.Variant)
	}
	s, err := NewSeries(t, y)
	if err != nil {
		return nil, err
	}
	f, err := NewFilter(cfg, s)
	if err != nil {
		return nil, err
	}
	kf, err := f.(*SteadyStateKalman).Vanilla(params, nil)
	if err != nil {
		return nil, err
	}
	ests := make([]*VanillaEstimate, len(y))
	for k, yk := range y {
		if ests[k], err = kf.Update(yk); err != nil {
			return nil, err
		}
	}
	return ests, nil
}
