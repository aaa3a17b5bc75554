package senseapp

import (
	"context"
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// OptimizeFilter validates the series (t, y) and returns the best parameter
// vector found for the filter family of cfg: the gain (length 2·order+1) for
// the observer, or the flattened M followed by R (length (2·order+1)²+1) for
// the Kalman filter.
func OptimizeFilter(ctx context.Context, cfg Config, t, y []float64, rng *rand.Rand) ([]float64, error) {
	s, err := NewSeries(t, y)
	if err != nil {
		return nil, err
	}
	opt, err := NewOptimizer(cfg, rng)
	if err != nil {
		return nil, err
	}
	res, err := opt.Optimize(ctx, s)
	if err != nil {
		return nil, err
	}
	return res.Params, nil
}

// SimulateDynamics runs the filter described by params over (t, y) and
// returns the (2·order+2)×N matrix of the state trajectory stacked above the
// filtered output. Unlike the optimizer it fails on infeasible parameters.
func SimulateDynamics(cfg Config, t, y, params []float64) (*mat.Dense, error) {
	s, err := NewSeries(t, y)
	if err != nil {
		return nil, err
	}
	f, err := NewFilter(cfg, s)
	if err != nil {
		return nil, err
	}
	if len(params) != f.ParamLen() {
		return nil, fmt.Errorf("%w: %d parameters for %s, expected %d", ErrDimension, len(params), cfg.Variant, f.ParamLen())
	}
	traj, err := f.Simulate(params)
	if err != nil {
		return nil, err
	}
	return traj.Stacked(), nil
}
