package senseapp

import (
	"errors"
	"math"
	"strings"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// circadianSeries returns days of samples every Δt hours of mean + amp·cos(ωt).
func circadianSeries(days int, Δt, mean, amp float64) (t, y []float64) {
	N := int(float64(days) * 24 / Δt)
	t = make([]float64, N)
	y = make([]float64, N)
	for i := range t {
		t[i] = float64(i) * Δt
		y[i] = mean + amp*math.Cos(CircadianOmega*t[i])
	}
	return
}

func TestImplementsFilter(t *testing.T) {
	implements := func(Filter) {}
	implements(new(Observer))
	implements(new(SteadyStateKalman))
}

func TestNewFilter(t *testing.T) {
	ts, ys := circadianSeries(10, 1, 10, 2)
	s, err := NewSeries(ts, ys)
	if err != nil {
		t.Fatal(err)
	}

	f, err := NewFilter(ObserverPreset(), s)
	if err != nil {
		t.Fatal(err)
	}
	obs := f.(*Observer)
	if obs.Variant() != ObserverVariant || obs.ParamLen() != 7 {
		t.Fatalf("unexpected observer %s", obs)
	}
	if obs.x0.AtVec(6) != 70 {
		t.Fatalf("observer bias seed %f", obs.x0.AtVec(6))
	}

	f, err = NewFilter(KalmanPreset(), s)
	if err != nil {
		t.Fatal(err)
	}
	kf := f.(*SteadyStateKalman)
	if kf.Variant() != KalmanVariant || kf.ParamLen() != 10 {
		t.Fatalf("unexpected Kalman filter %s", kf)
	}
	if math.Abs(kf.x0.AtVec(2)-10) > 1e-12 {
		t.Fatalf("Kalman bias seed %f, expected the mean", kf.x0.AtVec(2))
	}

	// Three harmonics cannot be resolved every five hours.
	ts, ys = circadianSeries(10, 5, 10, 2)
	s, _ = NewSeries(ts, ys)
	if _, err := NewFilter(ObserverPreset(), s); !errors.Is(err, ErrNyquist) {
		t.Fatalf("expected ErrNyquist, got %v", err)
	}
	bad := ObserverPreset()
	bad.Mu = 0
	if _, err := NewFilter(bad, s); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}

func TestObserverSimulate(t *testing.T) {
	ts, ys := circadianSeries(2, 1, 10, 2)
	s, _ := NewSeries(ts, ys)
	cfg := ObserverPreset()
	cfg.Order = 1
	f, err := NewFilter(cfg, s)
	if err != nil {
		t.Fatal(err)
	}
	traj, err := f.Simulate([]float64{0.02, 0.03, 0.004})
	if err != nil {
		t.Fatal(err)
	}
	if traj.Len() != len(ys) {
		t.Fatalf("trajectory of %d samples", traj.Len())
	}
	if _, err := f.Simulate([]float64{0, 0, -1}); !errors.Is(err, ErrInfeasible) {
		t.Fatalf("unstable gain: %v", err)
	}
	if _, err := f.Simulate([]float64{0, 0}); !errors.Is(err, ErrDimension) {
		t.Fatalf("short gain: %v", err)
	}

	// The model matches a direct construction.
	model, err := f.(*Observer).Model([]float64{0.02, 0.03, 0.004})
	if err != nil {
		t.Fatal(err)
	}
	cont, _ := ContinuousObserver(1, CircadianOmega, 1, mat.NewVecDense(3, []float64{0.02, 0.03, 0.004}))
	exp, _ := Discretize(cont, 1)
	if !mat.Equal(model.A, exp.A) || !mat.Equal(model.B, exp.B) {
		t.Fatal("observer model differs from its discretized continuous form")
	}
}

func TestKalmanSimulate(t *testing.T) {
	ts, ys := circadianSeries(2, 1, 10, 2)
	s, _ := NewSeries(ts, ys)
	f, err := NewFilter(KalmanPreset(), s)
	if err != nil {
		t.Fatal(err)
	}
	params := []float64{0.1, 0, 0, 0, 0.1, 0, 0, 0, 0.1, 1}
	traj, err := f.Simulate(params)
	if err != nil {
		t.Fatal(err)
	}
	if r, _ := traj.X.Dims(); r != 3 {
		t.Fatalf("state dimension %d", r)
	}
	L, err := f.(*SteadyStateKalman).Gain(params)
	if err != nil {
		t.Fatal(err)
	}
	if L.Len() != 3 {
		t.Fatalf("gain of length %d", L.Len())
	}

	if _, err := f.(*SteadyStateKalman).Gain(append(make([]float64, 9), 1)); !errors.Is(err, ErrInfeasible) || !strings.Contains(err.Error(), "zero process noise") {
		t.Fatalf("zero Q: %v", err)
	}

	params[9] = 0
	if _, err := f.Simulate(params); !errors.Is(err, ErrInfeasible) {
		t.Fatalf("zero R: %v", err)
	}
	if _, err := f.Simulate(params[:9]); !errors.Is(err, ErrDimension) {
		t.Fatalf("missing R: %v", err)
	}
}
