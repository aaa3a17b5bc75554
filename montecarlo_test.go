package senseapp

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestMonteCarloRuns(t *testing.T) {
	cfg := KalmanPreset()
	cfg.Mu, cfg.Lambda, cfg.Generations = 10, 5, 2
	sig := Synthetic{Mean: 10, Amplitudes: []float64{2}, Δt: 1, Days: 5}

	mc, err := NewMonteCarloRuns(context.Background(), 3, cfg, sig, 0.2, 11)
	if err != nil {
		t.Fatal(err)
	}
	if len(mc.Runs) != 3 {
		t.Fatalf("%d runs", len(mc.Runs))
	}
	for r, run := range mc.Runs {
		if !run.Result.Feasible() || len(run.Drift) != sig.Days {
			t.Fatalf("run %d: cost %f with %d days of drift", r, run.Result.Cost, len(run.Drift))
		}
		for d, h := range run.Drift {
			if h < -12 || h >= 12 {
				t.Fatalf("run %d day %d: drift %f out of range", r, d, h)
			}
		}
	}
	// Drift is relative to the first day.
	if mc.Mean(0) != 0 || mc.StdDev(0) != 0 {
		t.Fatalf("first day drift %f±%f", mc.Mean(0), mc.StdDev(0))
	}
	if len(mc.Costs()) != 3 {
		t.Fatal("one cost per run expected")
	}

	lines := strings.Split(mc.AsCSV(), "\n")
	if len(lines) != sig.Days+1 {
		t.Fatalf("%d CSV lines", len(lines))
	}
	if lines[0] != "day,drift-0,drift-1,drift-2,drift-mean,drift-stddev" {
		t.Fatalf("header %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "0,0.000000,0.000000,0.000000,0.000000,0.000000") {
		t.Fatalf("first day %q", lines[1])
	}
}

func TestMonteCarloRunsFailures(t *testing.T) {
	cfg := KalmanPreset()
	sig := Synthetic{Mean: 10, Amplitudes: []float64{2}, Δt: 1, Days: 5}
	if _, err := NewMonteCarloRuns(context.Background(), 0, cfg, sig, 0.2, 1); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected a configuration error, got %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewMonteCarloRuns(ctx, 2, cfg, sig, 0.2, 1); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	sig.Days = 0
	if _, err := NewMonteCarloRuns(context.Background(), 2, cfg, sig, 0.2, 1); !errors.Is(err, ErrMalformedInput) {
		t.Fatalf("expected malformed input, got %v", err)
	}
}
