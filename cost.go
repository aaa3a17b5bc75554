package senseapp

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/integrate"
)

// InfeasibleCost is assigned to candidates whose dynamics are unstable or
// whose steady-state gain cannot be computed.
const InfeasibleCost = math.MaxInt32

// nearestBin returns the index of the frequency closest to target; the lowest
// index wins ties.
func nearestBin(f []float64, target float64) int {
	best := 0
	for i := range f {
		if math.Abs(f[i]-target) < math.Abs(f[best]-target) {
			best = i
		}
	}
	return best
}

// trapz integrates v over unit spacing. Fewer than two points integrate to 0.
func trapz(v []float64) float64 {
	if len(v) < 2 {
		return 0
	}
	x := make([]float64, len(v))
	for i := range x {
		x[i] = float64(i)
	}
	return integrate.Trapezoidal(x, v)
}

// band returns the squared difference a-b (or a² when b is nil) over [lo, hi)
// clamped to the spectrum.
func band(a, b []float64, lo, hi int) []float64 {
	lo = max(0, min(lo, len(a)))
	hi = max(0, min(hi, len(a)))
	if lo >= hi {
		return nil
	}
	sq := make([]float64, hi-lo)
	for i := lo; i < hi; i++ {
		d := a[i]
		if b != nil {
			d -= b[i]
		}
		sq[i-lo] = d * d
	}
	return sq
}

// HarmonicBins returns the bins nearest to the first harmonics multiples of
// the circadian frequency and the half-bandwidth NN, the bin distance between
// the fundamental and referenceFreq.
func HarmonicBins(f []float64, harmonics int, referenceFreq float64) (idx []int, NN int, err error) {
	if harmonics < 1 {
		return nil, 0, fmt.Errorf("%w: cost needs at least one harmonic, got %d", ErrConfig, harmonics)
	}
	idx = make([]int, harmonics)
	for k := range idx {
		idx[k] = nearestBin(f, float64(k+1)/24)
	}
	NN = idx[0] - nearestBin(f, referenceFreq)
	if NN <= 0 {
		return nil, 0, fmt.Errorf("%w: series too short to resolve the circadian band (fundamental bin %d, reference bin %d)", ErrMalformedInput, idx[0], idx[0]-NN)
	}
	return idx, NN, nil
}

// ComputeCost scores a filtered spectrum against the spectrum of the raw
// signal. Within a band of ±NN bins around DC and each harmonic the squared
// difference is integrated; outside these bands, up to the end of the
// spectrum, the squared filtered magnitude itself is integrated.
func ComputeCost(original, filtered, f []float64, harmonics int, referenceFreq float64) (float64, error) {
	if len(original) != len(filtered) || len(original) != len(f) {
		return 0, fmt.Errorf("%w: spectra of length %d and %d over %d frequencies", ErrDimension, len(original), len(filtered), len(f))
	}
	idx, NN, err := HarmonicBins(f, harmonics, referenceFreq)
	if err != nil {
		return 0, err
	}

	// DC band and the gap up to the fundamental.
	Jharmo := trapz(band(filtered, original, 0, NN))
	Jnoise := trapz(band(filtered, nil, NN, idx[0]-NN))

	for k, n := range idx {
		Jharmo += trapz(band(filtered, original, n-NN, n+NN))
		if k < len(idx)-1 {
			Jnoise += trapz(band(filtered, nil, n+NN, idx[k+1]-NN))
		}
	}
	Jnoise += trapz(band(filtered, nil, idx[len(idx)-1]+NN, len(filtered)))
	return Jharmo + Jnoise, nil
}

// SpectralCost computes the spectrum of yHat with the same bin convention as
// original and scores it.
func SpectralCost(original *Spectrum, yHat []float64, Δt float64, bins BinConvention, harmonics int, referenceFreq float64) (float64, error) {
	filtered, err := ComputeSpectrum(yHat, Δt, bins)
	if err != nil {
		return 0, err
	}
	return ComputeCost(original.P, filtered.P, original.F, harmonics, referenceFreq)
}
