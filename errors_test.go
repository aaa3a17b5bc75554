package senseapp

import (
	"errors"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestCheckDims(t *testing.T) {
	i22 := Identity(2)
	i33 := Identity(3)
	methods := []DimensionAgreement{rows2cols, cols2rows, cols2cols, rows2rows, rowsAndcols}
	for _, meth := range methods {
		if err := checkMatDims(i22, i22, "i22", "i22", meth); err != nil {
			t.Fatalf("method %+v fails: %s", meth, err)
		}
		err := checkMatDims(i22, i33, "i22", "i33", meth)
		if err == nil {
			t.Fatalf("method %+v does not error when using i22 and i33 ", meth)
		}
		if !errors.Is(err, ErrDimension) {
			t.Fatalf("method %+v returned %v instead of ErrDimension", meth, err)
		}
	}
	if err := checkMatDims(mat.NewDense(1, 3, nil), mat.NewVecDense(3, nil), "C", "x", cols2rows); err != nil {
		t.Fatalf("C(1x3) x(3x1) should agree: %s", err)
	}
}
