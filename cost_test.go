package senseapp

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// freqAxis returns the axis of a HalfBins spectrum of N hourly samples.
func freqAxis(N int) []float64 {
	f := make([]float64, N/2)
	for k := range f {
		f[k] = float64(k) / float64(N)
	}
	return f
}

func TestHarmonicBins(t *testing.T) {
	idx, NN, err := HarmonicBins(freqAxis(240), 3, 0.0289)
	require.NoError(t, err)
	assert.Equal(t, []int{10, 20, 30}, idx)
	assert.Equal(t, 3, NN)

	_, _, err = HarmonicBins(freqAxis(24), 1, 0.0289)
	assert.True(t, errors.Is(err, ErrMalformedInput), "a single day cannot resolve the band: %v", err)
	_, _, err = HarmonicBins(freqAxis(240), 0, 0.0289)
	assert.True(t, errors.Is(err, ErrConfig))
}

func TestCostZeroOnIdentity(t *testing.T) {
	f := freqAxis(240)
	S := make([]float64, len(f))
	// Energy only inside [0, 3) and [7, 13).
	for _, k := range []int{0, 1, 2, 7, 8, 9, 10, 11, 12} {
		S[k] = float64(k + 1)
	}
	J, err := ComputeCost(S, S, f, 1, 0.0289)
	require.NoError(t, err)
	assert.Equal(t, 0.0, J)
}

func TestCostBands(t *testing.T) {
	f := freqAxis(240)
	S := make([]float64, len(f))
	S[10] = 2

	// Out of band energy is penalized on its own.
	filtered := append([]float64(nil), S...)
	filtered[50] = 1
	J, err := ComputeCost(S, filtered, f, 1, 0.0289)
	require.NoError(t, err)
	assert.InDelta(t, 1, J, 1e-15)

	// In band error is penalized as a squared difference.
	filtered = append([]float64(nil), S...)
	filtered[10] = 2.5
	J, err = ComputeCost(S, filtered, f, 1, 0.0289)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, J, 1e-15)

	// Energy in the gap between DC and the fundamental band.
	filtered = append([]float64(nil), S...)
	filtered[5] = 3
	J, err = ComputeCost(S, filtered, f, 1, 0.0289)
	require.NoError(t, err)
	assert.InDelta(t, 9, J, 1e-15)

	// A second harmonic inside its own band only counts when scored.
	filtered = append([]float64(nil), S...)
	filtered[20] = 1
	J1, err := ComputeCost(S, filtered, f, 1, 0.0289)
	require.NoError(t, err)
	J2, err := ComputeCost(S, filtered, f, 2, 0.0289)
	require.NoError(t, err)
	assert.InDelta(t, 1, J1, 1e-15)
	assert.InDelta(t, 1, J2, 1e-15)
	filtered[20] = 0
	S2 := append([]float64(nil), S...)
	S2[20] = 1
	J2, err = ComputeCost(S2, filtered, f, 2, 0.0289)
	require.NoError(t, err)
	assert.InDelta(t, 1, J2, 1e-15)
	J1, err = ComputeCost(S2, filtered, f, 1, 0.0289)
	require.NoError(t, err)
	assert.Equal(t, 0.0, J1)
}

func TestCostNonNegative(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	f := freqAxis(480)
	for i := 0; i < 50; i++ {
		a := make([]float64, len(f))
		b := make([]float64, len(f))
		for k := range a {
			a[k] = rng.Float64()
			b[k] = rng.Float64()
		}
		J, err := ComputeCost(a, b, f, 1+i%3, 0.0289)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, J, 0.0)
	}
}

func TestCostDimensions(t *testing.T) {
	f := freqAxis(240)
	_, err := ComputeCost(make([]float64, 3), make([]float64, 120), f, 1, 0.0289)
	assert.True(t, errors.Is(err, ErrDimension))
}
