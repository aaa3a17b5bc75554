package senseapp

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Trajectory is the state estimate at every sample, one column per sample,
// and the corresponding filtered output.
type Trajectory struct {
	X    *mat.Dense
	YHat []float64
}

// Len returns the number of samples.
func (t *Trajectory) Len() int {
	_, c := t.X.Dims()
	return c
}

// State returns the state estimate at sample j.
func (t *Trajectory) State(j int) *mat.VecDense {
	return mat.VecDenseCopyOf(t.X.ColView(j))
}

// Stacked returns the trajectory with the filtered output appended as a last row.
func (t *Trajectory) Stacked() *mat.Dense {
	n, N := t.X.Dims()
	out := mat.NewDense(n+1, N, nil)
	out.Slice(0, n, 0, N).(*mat.Dense).Copy(t.X)
	out.SetRow(n, t.YHat)
	return out
}

// SimulateInput propagates the plant-input form x[j] = A·x[j-1] + B·y[j-1]
// from x0. A zero sample is a missing reading: the step instead applies the
// autonomous transition x[j] = Aauto·x[j-1].
func SimulateInput(A, B, C, Aauto mat.Matrix, x0 *mat.VecDense, y []float64) (*Trajectory, error) {
	if err := checkSimDims(A, C, x0, y); err != nil {
		return nil, err
	}
	if err := checkMatDims(A, B, "A", "B", rows2rows); err != nil {
		return nil, err
	}
	if err := checkMatDims(A, Aauto, "A", "Aauto", rowsAndcols); err != nil {
		return nil, err
	}
	if _, c := B.Dims(); c != 1 {
		return nil, fmt.Errorf("%w: B must have a single column, has %d", ErrDimension, c)
	}
	n, _ := A.Dims()
	b := mat.NewVecDense(n, mat.Col(nil, 0, B))
	return propagate(x0, y, C, func(x, prev *mat.VecDense, u float64) {
		if u == 0 {
			x.MulVec(Aauto, prev)
			return
		}
		x.MulVec(A, prev)
		x.AddScaledVec(x, u, b)
	}), nil
}

// SimulateFeedback propagates the error-feedback form
// x[j] = (A − L·C)·x[j-1] + L·y[j-1] from x0. On a missing (zero) sample the
// correction is skipped and x[j] = A·x[j-1].
func SimulateFeedback(A, C mat.Matrix, L, x0 *mat.VecDense, y []float64) (*Trajectory, error) {
	if err := checkSimDims(A, C, x0, y); err != nil {
		return nil, err
	}
	if err := checkMatDims(A, L, "A", "L", rows2rows); err != nil {
		return nil, err
	}
	n, _ := A.Dims()
	var LC mat.Dense
	LC.Mul(L, C)
	Acl := mat.NewDense(n, n, nil)
	Acl.Sub(A, &LC)
	return propagate(x0, y, C, func(x, prev *mat.VecDense, u float64) {
		if u == 0 {
			x.MulVec(A, prev)
			return
		}
		x.MulVec(Acl, prev)
		x.AddScaledVec(x, u, L)
	}), nil
}

func checkSimDims(A, C mat.Matrix, x0 *mat.VecDense, y []float64) error {
	if len(y) == 0 {
		return fmt.Errorf("%w: empty sample sequence", ErrMalformedInput)
	}
	if r, c := A.Dims(); r != c {
		return fmt.Errorf("%w: A must be square, is %dx%d", ErrDimension, r, c)
	}
	if err := checkMatDims(A, x0, "A", "x0", cols2rows); err != nil {
		return err
	}
	if err := checkMatDims(C, A, "C", "A", cols2rows); err != nil {
		return err
	}
	if r, _ := C.Dims(); r != 1 {
		return fmt.Errorf("%w: C must have a single row, has %d", ErrDimension, r)
	}
	return nil
}

// propagate runs step over the sequence and reads the output through C.
func propagate(x0 *mat.VecDense, y []float64, C mat.Matrix, step func(x, prev *mat.VecDense, u float64)) *Trajectory {
	n := x0.Len()
	N := len(y)
	X := mat.NewDense(n, N, nil)
	prev := mat.VecDenseCopyOf(x0)
	X.SetCol(0, prev.RawVector().Data)
	x := mat.NewVecDense(n, nil)
	for j := 1; j < N; j++ {
		step(x, prev, y[j-1])
		X.SetCol(j, x.RawVector().Data)
		prev, x = x, prev
	}
	var yHat mat.Dense
	yHat.Mul(C, X)
	return &Trajectory{X: X, YHat: mat.Row(nil, 0, &yHat)}
}
