package senseapp

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
)

// Log verbosity levels.
const (
	logRun        = 0
	logGeneration = 1
	logCandidate  = 2
)

// GenerationStats summarizes the population after a generation; generation 0
// is the initial population.
type GenerationStats struct {
	Generation   int
	Best         float64
	MeanFeasible float64 // NaN when no member is feasible
	Infeasible   int
	Size         int // members kept after selection
}

// Result is the outcome of an optimization.
type Result struct {
	// Params of the lowest-cost member: the gain for the observer, the
	// flattened M followed by R for the Kalman filter.
	Params  []float64
	Cost    float64
	History []GenerationStats
	// Truncated is set when the context or the time budget stopped the
	// search before the last generation.
	Truncated bool
}

// Feasible returns whether the returned parameters passed the stability gate.
func (r *Result) Feasible() bool {
	return r.Cost < InfeasibleCost
}

// Optimizer is a (μ+λ) evolutionary search over filter parameters.
type Optimizer struct {
	cfg Config
	rng *rand.Rand
}

// NewOptimizer returns an optimizer drawing all its randomness from rng.
func NewOptimizer(cfg Config, rng *rand.Rand) (*Optimizer, error) {
	if rng == nil {
		return nil, errors.New("senseapp: a random source is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Optimizer{cfg: cfg, rng: rng}, nil
}

// evaluator scores candidates against the spectrum of the raw series. It is
// shared read-only by concurrent evaluations.
type evaluator struct {
	cfg      Config
	filter   Filter
	original *Spectrum
	Δt       float64
	log      logr.Logger
}

// cost returns the spectral cost of the candidate, or InfeasibleCost.
func (e *evaluator) cost(params []float64) (float64, error) {
	traj, err := e.filter.Simulate(params)
	if errors.Is(err, ErrInfeasible) {
		e.log.V(logCandidate).Info("candidate rejected", "reason", err.Error())
		return InfeasibleCost, nil
	}
	if err != nil {
		return 0, err
	}
	for _, v := range traj.YHat {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			e.log.V(logCandidate).Info("candidate rejected", "reason", "non-finite output")
			return InfeasibleCost, nil
		}
	}
	J, err := SpectralCost(e.original, traj.YHat, e.Δt, e.cfg.SpectrumBins, e.cfg.CostOrder, e.cfg.ReferenceFreq)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(J) || math.IsInf(J, 0) || J > InfeasibleCost {
		return InfeasibleCost, nil
	}
	return J, nil
}

// evaluate sets the cost of every member, in parallel.
func (o *Optimizer) evaluate(ctx context.Context, e *evaluator, members []Member) error {
	workers := o.cfg.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range members {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			J, err := e.cost(members[i].Params)
			if err != nil {
				return err
			}
			members[i].Cost = J
			return nil
		})
	}
	return g.Wait()
}

// Optimize searches for the filter parameters that minimize the spectral cost
// over s. The initial population is always fully evaluated; a cancelled
// context or an exhausted time budget afterwards ends the search early with
// the best member so far and Truncated set.
func (o *Optimizer) Optimize(ctx context.Context, s *Series) (*Result, error) {
	cfg := o.cfg
	log := logr.FromContextOrDiscard(ctx).WithValues("filter", cfg.Name)

	filter, err := NewFilter(cfg, s)
	if err != nil {
		return nil, err
	}
	original, err := ComputeSpectrum(s.Y, s.Dt(), cfg.SpectrumBins)
	if err != nil {
		return nil, err
	}
	if _, _, err := HarmonicBins(original.F, cfg.CostOrder, cfg.ReferenceFreq); err != nil {
		return nil, err
	}
	rec, err := NewRecombiner(cfg.Mu, cfg.Rho, o.rng)
	if err != nil {
		return nil, err
	}
	e := &evaluator{cfg: cfg, filter: filter, original: original, Δt: s.Dt(), log: log}

	start := time.Now()
	log.V(logRun).Info("optimization started", "variant", cfg.Variant.String(), "samples", s.Len(), "missing", s.Missing(), "mu", cfg.Mu, "lambda", cfg.Lambda, "generations", cfg.Generations)

	pop := initialPopulation(cfg, o.rng)
	if err := o.evaluate(ctx, e, pop.Members); err != nil {
		return nil, fmt.Errorf("evaluating the initial population: %w", err)
	}
	res := &Result{History: []GenerationStats{pop.stats(0)}}

	search := ctx
	if cfg.TimeBudget > 0 {
		var cancel context.CancelFunc
		search, cancel = context.WithDeadline(ctx, start.Add(cfg.TimeBudget))
		defer cancel()
	}

	for gen := 1; gen <= cfg.Generations; gen++ {
		if search.Err() != nil {
			res.Truncated = true
			break
		}
		offspring, err := rec.Offspring(pop, cfg.Lambda)
		if err != nil {
			return nil, err
		}
		if err := o.evaluate(search, e, offspring); err != nil {
			if search.Err() != nil {
				res.Truncated = true
				break
			}
			return nil, fmt.Errorf("generation %d: %w", gen, err)
		}
		pop.Select(offspring, cfg.Mu)
		st := pop.stats(gen)
		res.History = append(res.History, st)
		log.V(logGeneration).Info("generation", "generation", gen, "best", st.Best, "meanFeasible", st.MeanFeasible, "infeasible", st.Infeasible)
	}

	best := pop.Best()
	res.Params = append([]float64(nil), best.Params...)
	res.Cost = best.Cost
	log.V(logRun).Info("optimization finished", "cost", res.Cost, "feasible", res.Feasible(), "truncated", res.Truncated, "elapsed", time.Since(start).String())
	return res, nil
}

func (p *Population) stats(gen int) GenerationStats {
	st := GenerationStats{Generation: gen, Best: math.Inf(1), MeanFeasible: math.NaN(), Size: p.Len()}
	var feasible []float64
	for _, J := range p.Costs() {
		st.Best = math.Min(st.Best, J)
		if J < InfeasibleCost {
			feasible = append(feasible, J)
		} else {
			st.Infeasible++
		}
	}
	if len(feasible) > 0 {
		st.MeanFeasible = stat.Mean(feasible, nil)
	}
	return st
}
