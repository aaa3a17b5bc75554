package senseapp

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// CircadianOmega is the angular frequency of a 24h rhythm, in rad/h.
const CircadianOmega = 2 * math.Pi / 24

// StateDim returns the state dimension of a bank of order oscillators plus the bias state.
func StateDim(order int) int {
	return 2*order + 1
}

// StateSpace holds the matrices of a single-output LTI system, either
// continuous (ẋ = Ax + Bu) or discrete (x⁺ = Ax + Bu), with y = Cx + Du.
type StateSpace struct {
	A, B, C, D *mat.Dense
}

// Dims returns the number of states and the number of inputs.
func (ss *StateSpace) Dims() (states, inputs int) {
	states, _ = ss.A.Dims()
	_, inputs = ss.B.Dims()
	return
}

func (ss *StateSpace) String() string {
	return fmt.Sprintf("A=%v\nB=%v\nC=%v\nD=%v", mat.Formatted(ss.A, mat.Prefix("  ")), mat.Formatted(ss.B, mat.Prefix("  ")), mat.Formatted(ss.C, mat.Prefix("  ")), mat.Formatted(ss.D, mat.Prefix("  ")))
}

// ContinuousHarmonic returns the open-loop oscillator bank: for k = 1..order a
// block [[0, 1], [-(kω)², 0]] on the diagonal of A, and a last state that
// integrates nothing and models the signal's bias. The output reads the
// second state of each block weighted by 2ζ/(kω), plus the bias with unit
// weight. B and D are zero.
func ContinuousHarmonic(order int, ω, ζ float64) *StateSpace {
	n := StateDim(order)
	Ac := mat.NewDense(n, n, nil)
	Cc := mat.NewDense(1, n, nil)
	for k := 1; k <= order; k++ {
		i := 2 * (k - 1)
		kω := float64(k) * ω
		Ac.Set(i, i+1, 1)
		Ac.Set(i+1, i, -kω*kω)
		Cc.Set(0, i+1, 2*ζ/kω)
	}
	Cc.Set(0, n-1, 1)
	return &StateSpace{A: Ac, B: mat.NewDense(n, 1, nil), C: Cc, D: mat.NewDense(1, 1, nil)}
}

// ContinuousObserver returns the observer in plant-input form: the gain L is
// folded into the dynamics as Ac − L·Cc and drives the state as the input
// matrix, so that ẋ = (Ac − L·Cc)x + L·y.
func ContinuousObserver(order int, ω, ζ float64, L mat.Vector) (*StateSpace, error) {
	plant := ContinuousHarmonic(order, ω, ζ)
	if err := checkMatDims(plant.A, L, "Ac", "L", rows2rows); err != nil {
		return nil, err
	}
	n, _ := plant.A.Dims()
	var LC mat.Dense
	LC.Mul(L, plant.C)
	A := mat.NewDense(n, n, nil)
	A.Sub(plant.A, &LC)
	return &StateSpace{A: A, B: mat.DenseCopyOf(L), C: plant.C, D: plant.D}, nil
}
