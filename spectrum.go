package senseapp

import (
	"fmt"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// BinConvention selects how many bins a single-sided spectrum keeps.
type BinConvention uint8

const (
	// HalfBins keeps the first ⌊N/2⌋ bins.
	HalfBins BinConvention = iota + 1
	// HalfBinsPlusOne keeps the first ⌊N/2⌋+1 bins, up to Nyquist for even N.
	HalfBinsPlusOne
)

func (b BinConvention) String() string {
	switch b {
	case HalfBins:
		return "half"
	case HalfBinsPlusOne:
		return "half+1"
	default:
		return fmt.Sprintf("BinConvention(%d)", uint8(b))
	}
}

// Spectrum is a single-sided amplitude spectrum P over the frequency axis F,
// in cycles per time unit of the sample interval. Both have the same length.
type Spectrum struct {
	P, F []float64
}

// Len returns the number of bins.
func (s *Spectrum) Len() int {
	return len(s.P)
}

// ComputeSpectrum returns the single-sided amplitude spectrum of y sampled
// every Δt: |DFT(y)|/N folded onto the non-negative frequencies, with every
// bin but the first and the last doubled.
func ComputeSpectrum(y []float64, Δt float64, bins BinConvention) (*Spectrum, error) {
	N := len(y)
	if N < 2 {
		return nil, fmt.Errorf("%w: spectrum needs at least 2 samples, got %d", ErrMalformedInput, N)
	}
	if !(Δt > 0) {
		return nil, fmt.Errorf("%w: sample interval Δt=%f", ErrMalformedInput, Δt)
	}
	var size int
	switch bins {
	case HalfBins:
		size = N / 2
	case HalfBinsPlusOne:
		size = N/2 + 1
	default:
		return nil, fmt.Errorf("%w: unknown bin convention %s", ErrConfig, bins)
	}

	// Coefficients holds the N/2+1 non-negative frequency terms of a real sequence.
	coeffs := fourier.NewFFT(N).Coefficients(nil, y)
	P := make([]float64, size)
	F := make([]float64, size)
	for k := 0; k < size; k++ {
		P[k] = cmplx.Abs(coeffs[k]) / float64(N)
		F[k] = float64(k) / (float64(N) * Δt)
	}
	for k := 1; k < size-1; k++ {
		P[k] *= 2
	}
	return &Spectrum{P: P, F: F}, nil
}
