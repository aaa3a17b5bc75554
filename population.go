package senseapp

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/combin"
	"gonum.org/v1/gonum/stat/distuv"
)

// logScale maps a draw x of the range [lo, hi) to a signed power of ten so
// that uniform draws cover several decades: above the midpoint (beyond the
// dead zone) x becomes 10^(x−mid+lb), below it −10^(mid−x+lb), and within
// the dead zone exactly zero.
func logScale(x, lb, lo, hi, dead float64) float64 {
	mid := (lo + hi) / 2
	switch {
	case x > mid+dead:
		return math.Pow(10, x-mid+lb)
	case x < mid-dead:
		return -math.Pow(10, mid-x+lb)
	default:
		return 0
	}
}

// Member is a candidate parameter vector and its cost.
type Member struct {
	Params []float64
	Cost   float64
}

// Population is the ordered set of candidates of a (μ+λ) search.
type Population struct {
	Members []Member
}

// initialPopulation draws μ candidates from the configured bounds.
func initialPopulation(cfg Config, rng *rand.Rand) *Population {
	n := cfg.StateDim()
	pop := &Population{Members: make([]Member, cfg.Mu)}
	switch cfg.Variant {
	case KalmanVariant:
		b := cfg.Covariance
		u := distuv.Uniform{Min: b.QLEnd, Max: b.QREnd, Src: rng}
		r := distuv.Uniform{Min: b.RLB, Max: b.RUB, Src: rng}
		for i := range pop.Members {
			p := make([]float64, n*n+1)
			for j := 0; j < n*n; j++ {
				p[j] = logScale(u.Rand(), b.QLB, b.QLEnd, b.QREnd, b.DeadZone)
			}
			p[n*n] = r.Rand()
			pop.Members[i].Params = p
		}
	default:
		b := cfg.Gain
		u := distuv.Uniform{Min: b.LStart, Max: b.REnd, Src: rng}
		for i := range pop.Members {
			p := make([]float64, n)
			for j := range p {
				p[j] = logScale(u.Rand(), b.LB, b.LStart, b.REnd, b.DeadZone)
			}
			pop.Members[i].Params = p
		}
	}
	return pop
}

// Len returns the number of members.
func (p *Population) Len() int {
	return len(p.Members)
}

// Best returns the lowest-cost member; the first one wins ties.
func (p *Population) Best() Member {
	best := p.Members[0]
	for _, m := range p.Members[1:] {
		if m.Cost < best.Cost {
			best = m
		}
	}
	return best
}

// Costs returns a copy of the member costs.
func (p *Population) Costs() []float64 {
	c := make([]float64, len(p.Members))
	for i, m := range p.Members {
		c[i] = m.Cost
	}
	return c
}

// Recombiner draws offspring by averaging parents. Every combination of ρ
// parent indices is enumerated once; each generation uses a fresh random
// permutation of them, so no combination is drawn twice per generation.
type Recombiner struct {
	combinations [][]int
	rng          *rand.Rand
}

// NewRecombiner enumerates the ρ-combinations of μ parents.
func NewRecombiner(mu, rho int, rng *rand.Rand) (*Recombiner, error) {
	if rho < 1 || mu < rho {
		return nil, fmt.Errorf("%w: cannot combine %d of %d parents", ErrConfig, rho, mu)
	}
	return &Recombiner{combinations: combin.Combinations(mu, rho), rng: rng}, nil
}

// Offspring returns λ children of the population, each the arithmetic mean of
// the parents of one combination.
func (r *Recombiner) Offspring(p *Population, lambda int) ([]Member, error) {
	if lambda > len(r.combinations) {
		return nil, fmt.Errorf("%w: %d offspring requested from %d combinations", ErrConfig, lambda, len(r.combinations))
	}
	perm := r.rng.Perm(len(r.combinations))
	children := make([]Member, lambda)
	for j := range children {
		parents := r.combinations[perm[j]]
		child := make([]float64, len(p.Members[parents[0]].Params))
		for _, idx := range parents {
			floats.Add(child, p.Members[idx].Params)
		}
		floats.Scale(1/float64(len(parents)), child)
		children[j] = Member{Params: child}
	}
	return children, nil
}

// Select appends the offspring and keeps the mu lowest-cost members of the
// combined pool. The sort is stable so that parents precede offspring of
// equal cost.
func (p *Population) Select(offspring []Member, mu int) {
	pool := append(p.Members, offspring...)
	costs := make([]float64, len(pool))
	for i, m := range pool {
		costs[i] = m.Cost
	}
	inds := make([]int, len(pool))
	floats.ArgsortStable(costs, inds)
	kept := make([]Member, min(mu, len(pool)))
	for i := range kept {
		kept[i] = pool[inds[i]]
	}
	p.Members = kept
}
