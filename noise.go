package senseapp

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// Noise allows to handle the measurement noise of a synthetic series.
type Noise interface {
	Measurement(k int) float64 // Returns the measurement noise at sample k
	Variance() float64
	String() string
}

// Noiseless implements the Noise interface.
type Noiseless struct{}

// Measurement implements the Noise interface.
func (Noiseless) Measurement(int) float64 { return 0 }

// Variance implements the Noise interface.
func (Noiseless) Variance() float64 { return 0 }

func (Noiseless) String() string { return "Noiseless" }

// BatchNoise replays recorded noise samples.
type BatchNoise struct {
	measurement []float64
}

// NewBatchNoise returns a BatchNoise replaying samples.
func NewBatchNoise(samples []float64) *BatchNoise {
	return &BatchNoise{append([]float64(nil), samples...)}
}

// Measurement implements the Noise interface.
func (n BatchNoise) Measurement(k int) float64 {
	if k >= len(n.measurement) {
		panic(fmt.Errorf("no measurement noise defined at sample k=%d", k))
	}
	return n.measurement[k]
}

// Variance implements the Noise interface.
func (n BatchNoise) Variance() float64 { return 0 }

func (n BatchNoise) String() string {
	return fmt.Sprintf("BatchNoise{%d samples}", len(n.measurement))
}

// AWGN implements the Noise interface and generates an additive white Gaussian noise.
type AWGN struct {
	σ           float64
	measurement distuv.Normal
}

// NewAWGN creates new AWGN noise of standard deviation σ drawn from rng.
func NewAWGN(σ float64, rng *rand.Rand) *AWGN {
	if σ < 0 || math.IsNaN(σ) {
		panic("standard deviation must be non-negative")
	}
	return &AWGN{σ, distuv.Normal{Mu: 0, Sigma: σ, Src: rng}}
}

// Measurement implements the Noise interface.
func (n AWGN) Measurement(int) float64 {
	if n.σ == 0 {
		return 0
	}
	return n.measurement.Rand()
}

// Variance implements the Noise interface.
func (n AWGN) Variance() float64 { return n.σ * n.σ }

func (n AWGN) String() string {
	return fmt.Sprintf("AWGN{σ=%g}", n.σ)
}

// Synthetic describes a circadian recording: a sum of harmonics of the 24h
// rhythm around a constant mean, sampled every Δt hours over Days days.
// Each day's waveform is delayed by the matching entry of Shifts (hours);
// missing samples are recorded as 0.
type Synthetic struct {
	Mean       float64
	Amplitudes []float64 // one per harmonic, starting with the fundamental
	Δt         float64
	Days       int
	Shifts     []float64 // nil for no shift
	Missing    float64   // probability that a sample is missing
}

// PointsPerDay returns the number of samples in a day.
func (s Synthetic) PointsPerDay() int {
	return int(math.Round(24 / s.Δt))
}

func (s Synthetic) validate() error {
	switch {
	case !(s.Δt > 0) || math.IsInf(s.Δt, 0):
		return fmt.Errorf("%w: Δt=%g", ErrMalformedInput, s.Δt)
	case math.Abs(24/s.Δt-float64(s.PointsPerDay())) > 1e-9:
		return fmt.Errorf("%w: Δt=%g does not divide a day", ErrMalformedInput, s.Δt)
	case s.Days < 1:
		return fmt.Errorf("%w: %d days", ErrMalformedInput, s.Days)
	case s.Shifts != nil && len(s.Shifts) != s.Days:
		return fmt.Errorf("%w: %d shifts for %d days", ErrMalformedInput, len(s.Shifts), s.Days)
	case s.Missing < 0 || s.Missing >= 1:
		return fmt.Errorf("%w: missing rate %g out of [0, 1)", ErrMalformedInput, s.Missing)
	}
	return nil
}

// Generate samples the recording, adding noise. rng only drives the missing
// samples and may be nil when Missing is 0.
func (s Synthetic) Generate(noise Noise, rng *rand.Rand) (t, y []float64, err error) {
	if err := s.validate(); err != nil {
		return nil, nil, err
	}
	if s.Missing > 0 && rng == nil {
		return nil, nil, fmt.Errorf("%w: missing samples need a random source", ErrMalformedInput)
	}
	drop := distuv.Bernoulli{P: s.Missing, Src: rng}
	ppd := s.PointsPerDay()
	t = make([]float64, s.Days*ppd)
	y = make([]float64, len(t))
	for k := range t {
		t[k] = float64(k) * s.Δt
		shift := 0.0
		if s.Shifts != nil {
			shift = s.Shifts[k/ppd]
		}
		y[k] = s.Mean + noise.Measurement(k)
		for h, a := range s.Amplitudes {
			y[k] += a * math.Cos(float64(h+1)*CircadianOmega*(t[k]-shift))
		}
		if s.Missing > 0 && drop.Rand() == 1 {
			y[k] = 0
		}
	}
	return t, y, nil
}
