package senseapp

import (
	"errors"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestImplementsEst(t *testing.T) {
	implements := func(Estimate) {}
	implements(VanillaEstimate{})
}

func TestEstimateCovariance(t *testing.T) {
	ts, ys := circadianSeries(5, 1, 10, 2)
	ys[30], ys[31] = 0, 0
	cfg := KalmanPreset()
	params := []float64{0.1, 0, 0, 0, 0.1, 0, 0, 0, 0.1, 1}

	ests, err := EstimateCovariance(cfg, ts, ys, params)
	if err != nil {
		t.Fatal(err)
	}
	out, err := SimulateDynamics(cfg, ts, ys, params)
	if err != nil {
		t.Fatal(err)
	}
	if len(ests) != len(ys) {
		t.Fatalf("%d estimates", len(ests))
	}
	// Started from the steady state, the filter tracks the constant-gain
	// trajectory until the first missing reading inflates the covariance.
	for k := 0; k < 32; k++ {
		if !mat.EqualApprox(ests[k].State(), out.Slice(0, 3, k+1, k+2), 1e-9) {
			t.Fatalf("sample %d: %v != %v", k+1, mat.Formatted(ests[k].State().T()), mat.Formatted(out.Slice(0, 3, k+1, k+2).T()))
		}
	}
	ss := ests[10].PredCovariance().At(0, 0)
	if !(ests[30].PredCovariance().At(0, 0) > ss) || !(ests[31].PredCovariance().At(0, 0) > ests[30].PredCovariance().At(0, 0)) {
		t.Fatal("uncertainty must grow across missing readings")
	}

	if _, err := EstimateCovariance(ObserverPreset(), ts, ys, params); !errors.Is(err, ErrConfig) {
		t.Fatalf("the observer has no covariance: %v", err)
	}
	params[9] = 0
	if _, err := EstimateCovariance(cfg, ts, ys, params); !errors.Is(err, ErrInfeasible) {
		t.Fatalf("zero measurement variance: %v", err)
	}
	if _, err := EstimateCovariance(cfg, ts, ys, params[:4]); !errors.Is(err, ErrDimension) {
		t.Fatalf("short parameters: %v", err)
	}
}
