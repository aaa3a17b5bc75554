package senseapp

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// MonteCarloRuns stores the outcome of tuning a filter on independent noisy
// realizations of the same synthetic recording.
type MonteCarloRuns struct {
	runs, days int
	Runs       []MonteCarloRun
}

// MonteCarloRun stores the results of an MC run.
type MonteCarloRun struct {
	Result *Result
	// Drift is the estimated daily phase drift in hours.
	Drift []float64
}

// column gathers the drift of day across all runs.
func (mc MonteCarloRuns) column(day int) []float64 {
	vals := make([]float64, len(mc.Runs))
	for r, run := range mc.Runs {
		vals[r] = run.Drift[day]
	}
	return vals
}

// Mean returns the mean estimated drift of the given day.
func (mc MonteCarloRuns) Mean(day int) float64 {
	return stat.Mean(mc.column(day), nil)
}

// StdDev returns the standard deviation of the estimated drift of the given day.
func (mc MonteCarloRuns) StdDev(day int) float64 {
	return stat.StdDev(mc.column(day), nil)
}

// Costs returns the final cost of each run.
func (mc MonteCarloRuns) Costs() []float64 {
	costs := make([]float64, len(mc.Runs))
	for r, run := range mc.Runs {
		costs[r] = run.Result.Cost
	}
	return costs
}

// AsCSV is used as a CSV serializer: one line per day with the drift of each
// run followed by the mean and standard deviation.
func (mc MonteCarloRuns) AsCSV() string {
	lines := make([]string, mc.days+1)
	hdr := []string{"day"}
	for rNo := 0; rNo < mc.runs; rNo++ {
		hdr = append(hdr, fmt.Sprintf("drift-%d", rNo))
	}
	lines[0] = strings.Join(append(hdr, "drift-mean", "drift-stddev"), ",")
	for d := 0; d < mc.days; d++ {
		vals := []string{fmt.Sprintf("%d", d)}
		for _, run := range mc.Runs {
			vals = append(vals, fmt.Sprintf("%f", run.Drift[d]))
		}
		vals = append(vals, fmt.Sprintf("%f", mc.Mean(d)), fmt.Sprintf("%f", mc.StdDev(d)))
		lines[d+1] = strings.Join(vals, ",")
	}
	return strings.Join(lines, "\n")
}

// NewMonteCarloRuns tunes the filter of cfg on samples realizations of sig,
// each with AWGN of standard deviation σ, and estimates the daily phase drift
// from the first oscillator of every tuned filter. Run r draws all of its
// randomness from a PCG seeded with (seed, r).
func NewMonteCarloRuns(ctx context.Context, samples int, cfg Config, sig Synthetic, σ float64, seed uint64) (*MonteCarloRuns, error) {
	if samples < 1 {
		return nil, fmt.Errorf("%w: %d Monte Carlo samples", ErrConfig, samples)
	}
	runs := make([]MonteCarloRun, samples)
	for sample := range runs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rng := rand.New(rand.NewPCG(seed, uint64(sample)))
		t, y, err := sig.Generate(NewAWGN(σ, rng), rng)
		if err != nil {
			return nil, err
		}
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
			return nil, fmt.Errorf("run %d: %w", sample, err)
		}
		out, err := SimulateDynamics(cfg, t, y, res.Params)
		if err != nil {
			return nil, fmt.Errorf("run %d: %w", sample, err)
		}
		phase, err := EstimateAverageDailyPhase(mat.Row(nil, 0, out), mat.Row(nil, 1, out), sig.Days, 0, sig.PointsPerDay(), cfg.Omega)
		if err != nil {
			return nil, err
		}
		runs[sample] = MonteCarloRun{Result: res, Drift: mat.Row(nil, 0, phase)}
	}
	return &MonteCarloRuns{samples, sig.Days, runs}, nil
}
