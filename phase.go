package senseapp

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// floorMod returns a modulo b with the sign of b.
func floorMod(a, b float64) float64 {
	r := math.Mod(a, b)
	if r != 0 && (r < 0) != (b < 0) {
		r += b
	}
	return r
}

// InstantaneousPhase returns θ = mod(−atan2(x2, ω·x1) + π/2, 2π) − π for
// each sample of the oscillator pair (x1, x2).
func InstantaneousPhase(x1, x2 []float64, ω float64) []float64 {
	θ := make([]float64, len(x1))
	for i := range θ {
		θ[i] = floorMod(-math.Atan2(x2[i], ω*x1[i])+math.Pi/2, 2*math.Pi) - math.Pi
	}
	return θ
}

// Unwrap removes the 2π jumps of the phase sequence p: every step larger
// than π in magnitude is replaced by its 2π complement, and the corrections
// accumulate along the sequence.
func Unwrap(p []float64) []float64 {
	if len(p) == 0 {
		return nil
	}
	corr := make([]float64, len(p))
	for i := 1; i < len(p); i++ {
		d := p[i] - p[i-1]
		if math.Abs(d) < math.Pi {
			continue
		}
		dd := floorMod(d+math.Pi, 2*math.Pi) - math.Pi
		if dd == -math.Pi && d > 0 {
			dd = math.Pi
		}
		corr[i] = dd - d
	}
	floats.CumSum(corr, corr)
	return floats.AddTo(corr, p, corr)
}

// wrapHours maps an offset in hours into [−12, 12).
func wrapHours(h float64) float64 {
	w := floorMod(12+h, 24) - 12
	if w >= 12 {
		w -= 24
	}
	return w
}

// DailyPhaseDrift returns, for each of the days windows of pointsPerDay
// samples, the mean unwrapped phase lag behind the first window converted to
// hours and wrapped into [−12, 12).
func DailyPhaseDrift(θ []float64, days, pointsPerDay int, ω float64) []float64 {
	ref := Unwrap(θ[:pointsPerDay])
	drift := make([]float64, days)
	diff := make([]float64, pointsPerDay)
	for i := range drift {
		day := Unwrap(θ[i*pointsPerDay : (i+1)*pointsPerDay])
		floats.SubTo(diff, ref, day)
		drift[i] = wrapHours(stat.Mean(diff, nil) / ω)
	}
	return drift
}

// EstimateAverageDailyPhase reconstructs the phase of the oscillator pair
// (x1, x2), each holding numDays days of pointsPerDay samples, skips the
// first numDaysOffset days, and returns a 2×(numDays−numDaysOffset) matrix:
// the daily phase drift in hours relative to the first kept day, and the
// indices that sort it in ascending order.
func EstimateAverageDailyPhase(x1, x2 []float64, numDays, numDaysOffset, pointsPerDay int, ω float64) (*mat.Dense, error) {
	switch {
	case numDays < 1 || pointsPerDay < 1:
		return nil, fmt.Errorf("%w: %d days of %d points", ErrMalformedInput, numDays, pointsPerDay)
	case numDaysOffset < 0 || numDaysOffset >= numDays:
		return nil, fmt.Errorf("%w: day offset %d out of [0, %d)", ErrMalformedInput, numDaysOffset, numDays)
	case len(x1) != numDays*pointsPerDay || len(x2) != len(x1):
		return nil, fmt.Errorf("%w: %d and %d samples for %d days of %d points", ErrMalformedInput, len(x1), len(x2), numDays, pointsPerDay)
	case !(ω > 0) || math.IsInf(ω, 0):
		return nil, fmt.Errorf("%w: ω=%g", ErrMalformedInput, ω)
	}
	start := numDaysOffset * pointsPerDay
	days := numDays - numDaysOffset
	θ := InstantaneousPhase(x1[start:], x2[start:], ω)
	drift := DailyPhaseDrift(θ, days, pointsPerDay, ω)

	sorted := append([]float64(nil), drift...)
	inds := make([]int, days)
	floats.ArgsortStable(sorted, inds)

	out := mat.NewDense(2, days, nil)
	out.SetRow(0, drift)
	for i, idx := range inds {
		out.Set(1, i, float64(idx))
	}
	return out, nil
}
