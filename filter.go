package senseapp

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Filter runs a family of candidate filters over one series.
type Filter interface {
	Variant() Variant
	// ParamLen is the length of the candidate vectors Simulate accepts.
	ParamLen() int
	// Simulate builds the filter described by params and runs it over the
	// series. Candidates that must not be simulated return an error wrapping
	// ErrInfeasible.
	Simulate(params []float64) (*Trajectory, error)
	String() string
}

// NewFilter returns the filter family of cfg bound to the series s.
func NewFilter(cfg Config, s *Series) (Filter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	Δt := s.Dt()
	plant := ContinuousHarmonic(cfg.Order, cfg.Omega, cfg.Zeta)
	if err := CheckNyquist(plant.A, Δt); err != nil {
		return nil, err
	}
	n := cfg.StateDim()
	x0 := mat.NewVecDense(n, nil)
	if cfg.SeedBiasWithMean {
		x0.SetVec(n-1, s.Mean())
	} else {
		x0.SetVec(n-1, cfg.BiasSeed)
	}

	switch cfg.Variant {
	case ObserverVariant:
		// The autonomous transition only depends on the plant.
		auto, err := Discretize(plant, Δt)
		if err != nil {
			return nil, err
		}
		return &Observer{cfg: cfg, Δt: Δt, y: s.Y, x0: x0, Aauto: auto.A}, nil
	case KalmanVariant:
		disc, err := Discretize(plant, Δt)
		if err != nil {
			return nil, err
		}
		return &SteadyStateKalman{cfg: cfg, y: s.Y, x0: x0, A: disc.A, C: disc.C}, nil
	default:
		return nil, fmt.Errorf("%w: unknown variant %s", ErrConfig, cfg.Variant)
	}
}

// Observer is a harmonic observer whose gain L folds into the continuous
// dynamics before discretization.
type Observer struct {
	cfg   Config
	Δt    float64
	y     []float64
	x0    *mat.VecDense
	Aauto *mat.Dense
}

// Variant implements the Filter interface.
func (o *Observer) Variant() Variant { return ObserverVariant }

// ParamLen implements the Filter interface.
func (o *Observer) ParamLen() int { return o.cfg.StateDim() }

func (o *Observer) String() string {
	return fmt.Sprintf("observer{order=%d Δt=%g x0=%v}", o.cfg.Order, o.Δt, mat.Formatted(o.x0.T()))
}

// Model returns the discrete observer for the gain L.
func (o *Observer) Model(L []float64) (*StateSpace, error) {
	if len(L) != o.ParamLen() {
		return nil, fmt.Errorf("%w: gain of length %d for %d states", ErrDimension, len(L), o.ParamLen())
	}
	cont, err := ContinuousObserver(o.cfg.Order, o.cfg.Omega, o.cfg.Zeta, mat.NewVecDense(len(L), append([]float64(nil), L...)))
	if err != nil {
		return nil, err
	}
	return Discretize(cont, o.Δt)
}

// Simulate implements the Filter interface.
func (o *Observer) Simulate(L []float64) (*Trajectory, error) {
	disc, err := o.Model(L)
	if err != nil {
		return nil, err
	}
	if !IsSchurStable(disc.A) {
		return nil, fmt.Errorf("%w: unstable closed-loop dynamics", ErrInfeasible)
	}
	return SimulateInput(disc.A, disc.B, disc.C, o.Aauto, o.x0, o.y)
}

// SteadyStateKalman is the harmonic plant tracked with the constant Kalman
// gain of a (Q, R) pair. The plant is discretized once.
type SteadyStateKalman struct {
	cfg  Config
	y    []float64
	x0   *mat.VecDense
	A, C *mat.Dense
}

// Variant implements the Filter interface.
func (kf *SteadyStateKalman) Variant() Variant { return KalmanVariant }

// ParamLen implements the Filter interface.
func (kf *SteadyStateKalman) ParamLen() int { return kf.cfg.ParamLen() }

func (kf *SteadyStateKalman) String() string {
	return fmt.Sprintf("SSKF{order=%d\nA=%v\nC=%v}", kf.cfg.Order, mat.Formatted(kf.A, mat.Prefix("  ")), mat.Formatted(kf.C, mat.Prefix("  ")))
}

// Gain returns the steady-state gain for the candidate [M..., R], with Q = M·Mᵀ.
func (kf *SteadyStateKalman) Gain(params []float64) (*mat.VecDense, error) {
	if len(params) != kf.ParamLen() {
		return nil, fmt.Errorf("%w: %d parameters, expected %d", ErrDimension, len(params), kf.ParamLen())
	}
	n := kf.cfg.StateDim()
	Q, err := OuterSelf(params[:n*n], n)
	if err != nil {
		return nil, err
	}
	if IsNil(Q) {
		return nil, fmt.Errorf("%w: zero process noise", ErrInfeasible)
	}
	R := params[n*n]
	res := SolveDARE(kf.A, kf.C, Q, R)
	if !res.Solved() {
		return nil, fmt.Errorf("%w: Riccati equation %s", ErrInfeasible, res)
	}
	L, err := SteadyStateGain(kf.A, kf.C, res.P, R)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInfeasible, err)
	}
	return L, nil
}

// Simulate implements the Filter interface.
func (kf *SteadyStateKalman) Simulate(params []float64) (*Trajectory, error) {
	L, err := kf.Gain(params)
	if err != nil {
		return nil, err
	}
	var LC, Acl mat.Dense
	LC.Mul(L, kf.C)
	Acl.Sub(kf.A, &LC)
	if !IsSchurStable(&Acl) {
		return nil, fmt.Errorf("%w: unstable closed-loop dynamics", ErrInfeasible)
	}
	return SimulateFeedback(kf.A, kf.C, L, kf.x0, kf.y)
}
