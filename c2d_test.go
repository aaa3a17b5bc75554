package senseapp

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestDiscretizeDoubleIntegrator(t *testing.T) {
	ss := &StateSpace{
		A: mat.NewDense(2, 2, []float64{0, 1, 0, 0}),
		B: mat.NewDense(2, 1, []float64{0, 1}),
		C: mat.NewDense(1, 2, []float64{1, 0}),
		D: mat.NewDense(1, 1, nil),
	}
	d, err := Discretize(ss, 0.1)
	if err != nil {
		t.Fatal(err)
	}
	Fexp := mat.NewDense(2, 2, []float64{1, 0.1, 0, 1})
	Gexp := mat.NewDense(2, 1, []float64{0.005, 0.1})
	if !mat.EqualApprox(d.A, Fexp, 1e-12) {
		t.Fatalf("A incorrectly computed:\n%v", mat.Formatted(d.A))
	}
	if !mat.EqualApprox(d.B, Gexp, 1e-12) {
		t.Fatalf("B incorrectly computed:\n%v", mat.Formatted(d.B))
	}
	if !mat.Equal(d.C, ss.C) || !mat.Equal(d.D, ss.D) {
		t.Fatal("C and D must be unchanged by discretization")
	}
}

func TestDiscretizeHarmonic(t *testing.T) {
	Δt := 1.0
	ω := CircadianOmega
	d, err := Discretize(ContinuousHarmonic(1, ω, 1), Δt)
	if err != nil {
		t.Fatal(err)
	}
	c, s := math.Cos(ω*Δt), math.Sin(ω*Δt)
	exp := mat.NewDense(3, 3, []float64{
		c, s / ω, 0,
		-ω * s, c, 0,
		0, 0, 1,
	})
	if !mat.EqualApprox(d.A, exp, 1e-10) {
		t.Fatalf("harmonic block incorrect:\n%v", mat.Formatted(d.A))
	}
	if !IsNil(d.B) {
		t.Fatal("autonomous model must have a nil B")
	}
}

func TestDiscretizeDeterministic(t *testing.T) {
	L := mat.NewVecDense(7, []float64{0.01, -0.002, 0.003, 0, 1e-4, 2e-3, 0.02})
	ss, err := ContinuousObserver(3, CircadianOmega, 1, L)
	if err != nil {
		t.Fatal(err)
	}
	d1, err := Discretize(ss, 1.0/60)
	if err != nil {
		t.Fatal(err)
	}
	d2, err := Discretize(ss, 1.0/60)
	if err != nil {
		t.Fatal(err)
	}
	for _, pair := range [][2]*mat.Dense{{d1.A, d2.A}, {d1.B, d2.B}, {d1.C, d2.C}, {d1.D, d2.D}} {
		if !mat.Equal(pair[0], pair[1]) {
			t.Fatal("discretization is not deterministic")
		}
	}
}

func TestDiscretizeErrors(t *testing.T) {
	ss := ContinuousHarmonic(1, CircadianOmega, 1)
	for _, Δt := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		if _, err := Discretize(ss, Δt); !errors.Is(err, ErrMalformedInput) {
			t.Fatalf("Δt=%f: expected ErrMalformedInput, got %v", Δt, err)
		}
	}
	bad := &StateSpace{A: mat.NewDense(3, 3, nil), B: mat.NewDense(2, 1, nil), C: mat.NewDense(1, 3, nil), D: mat.NewDense(1, 1, nil)}
	if _, err := Discretize(bad, 1); !errors.Is(err, ErrDimension) {
		t.Fatalf("expected ErrDimension, got %v", err)
	}
}

func TestCheckNyquist(t *testing.T) {
	Ac := ContinuousHarmonic(3, CircadianOmega, 1).A
	if err := CheckNyquist(Ac, 1); err != nil {
		t.Fatalf("hourly sampling of the third harmonic should be fine: %s", err)
	}
	if err := CheckNyquist(Ac, 5); !errors.Is(err, ErrNyquist) {
		t.Fatalf("expected ErrNyquist, got %v", err)
	}
}

func TestContinuousObserver(t *testing.T) {
	L := mat.NewVecDense(3, []float64{0.1, 0.2, 0.3})
	ss, err := ContinuousObserver(1, CircadianOmega, 1, L)
	if err != nil {
		t.Fatal(err)
	}
	plant := ContinuousHarmonic(1, CircadianOmega, 1)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			exp := plant.A.At(i, j) - L.AtVec(i)*plant.C.At(0, j)
			if math.Abs(ss.A.At(i, j)-exp) > 1e-15 {
				t.Fatalf("A(%d,%d)=%f expected %f", i, j, ss.A.At(i, j), exp)
			}
		}
		if ss.B.At(i, 0) != L.AtVec(i) {
			t.Fatal("B must equal L")
		}
	}
	if _, err := ContinuousObserver(1, CircadianOmega, 1, mat.NewVecDense(4, nil)); !errors.Is(err, ErrDimension) {
		t.Fatalf("expected ErrDimension, got %v", err)
	}
}

func TestContinuousHarmonicOutput(t *testing.T) {
	ss := ContinuousHarmonic(2, CircadianOmega, 1)
	exp := []float64{0, 2 / CircadianOmega, 0, 2 / (2 * CircadianOmega), 1}
	for j, v := range exp {
		if math.Abs(ss.C.At(0, j)-v) > 1e-15 {
			t.Fatalf("C(0,%d)=%f expected %f", j, ss.C.At(0, j), v)
		}
	}
	if n, m := ss.Dims(); n != 5 || m != 1 {
		t.Fatalf("unexpected dims %dx%d", n, m)
	}
}
