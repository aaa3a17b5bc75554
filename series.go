package senseapp

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// spacingTolerance is the relative deviation from the first interval
// accepted for the sample times.
const spacingTolerance = 1e-6

// Series is a uniformly sampled sequence of readings, time in hours. A zero
// reading marks a missing sample.
type Series struct {
	T, Y []float64
}

// NewSeries validates and wraps the provided sequences. It fails if they
// differ in length, hold fewer than two samples or non-finite values, or if
// the times are not strictly increasing with a uniform spacing.
func NewSeries(t, y []float64) (*Series, error) {
	if len(t) != len(y) {
		return nil, fmt.Errorf("%w: %d times for %d readings", ErrMalformedInput, len(t), len(y))
	}
	if len(t) < 2 {
		return nil, fmt.Errorf("%w: at least two samples are required, got %d", ErrMalformedInput, len(t))
	}
	dt := t[1] - t[0]
	if !(dt > 0) || math.IsInf(dt, 0) {
		return nil, fmt.Errorf("%w: sample interval t[1]-t[0]=%g", ErrMalformedInput, dt)
	}
	for i := range t {
		if math.IsNaN(t[i]) || math.IsInf(t[i], 0) || math.IsNaN(y[i]) || math.IsInf(y[i], 0) {
			return nil, fmt.Errorf("%w: non-finite sample at index %d", ErrMalformedInput, i)
		}
		if i == 0 {
			continue
		}
		if d := t[i] - t[i-1]; math.Abs(d-dt) > spacingTolerance*dt {
			return nil, fmt.Errorf("%w: non-uniform spacing at index %d (%g, expected %g)", ErrMalformedInput, i, d, dt)
		}
	}
	return &Series{T: t, Y: y}, nil
}

// Len returns the number of samples.
func (s *Series) Len() int {
	return len(s.Y)
}

// Dt returns the sample interval.
func (s *Series) Dt() float64 {
	return s.T[1] - s.T[0]
}

// Mean returns the mean reading, missing samples included.
func (s *Series) Mean() float64 {
	return stat.Mean(s.Y, nil)
}

// Missing returns the number of missing (zero) readings.
func (s *Series) Missing() (n int) {
	for _, v := range s.Y {
		if v == 0 {
			n++
		}
	}
	return
}
