package senseapp

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrMalformedInput is returned when the time series cannot be filtered as given.
	ErrMalformedInput = errors.New("senseapp: malformed input")
	// ErrDimension is returned when matrices or vectors do not agree in size.
	ErrDimension = errors.New("senseapp: dimension mismatch")
	// ErrConfig is returned by Config.Validate.
	ErrConfig = errors.New("senseapp: invalid configuration")
	// ErrNyquist is returned when the sample interval cannot resolve the highest harmonic.
	ErrNyquist = errors.New("senseapp: Nyquist sampling criterion not fulfilled")
	// ErrDegenerate is returned when a computation hits a zero or non-finite denominator.
	ErrDegenerate = errors.New("senseapp: numerically degenerate")
	// ErrInfeasible marks a candidate that must not be simulated. It is
	// absorbed by the optimizer as InfeasibleCost.
	ErrInfeasible = errors.New("senseapp: infeasible candidate")
)

// DimensionAgreement defines how two matrices' dimensions should agree.
type DimensionAgreement uint8

const (
	dimErrMsg                    = "dimensions must agree: "
	rows2cols DimensionAgreement = iota + 1
	cols2rows
	cols2cols
	rows2rows
	rowsAndcols
)

// checkMatDims checks the matrix dimensions match provided a DimensionAgreement. Returns an error if not.
func checkMatDims(m1, m2 mat.Matrix, name1, name2 string, method DimensionAgreement) error {
	r1, c1 := m1.Dims()
	r2, c2 := m2.Dims()
	switch method {
	case rows2cols:
		if r1 != c2 {
			return fmt.Errorf("%w: %s%s(%dx...) %s(...x%d)", ErrDimension, dimErrMsg, name1, r1, name2, c2)
		}
	case cols2rows:
		if c1 != r2 {
			return fmt.Errorf("%w: %s%s(...x%d) %s(%dx...)", ErrDimension, dimErrMsg, name1, c1, name2, r2)
		}
	case cols2cols:
		if c1 != c2 {
			return fmt.Errorf("%w: %s%s(...x%d) %s(...x%d)", ErrDimension, dimErrMsg, name1, c1, name2, c2)
		}
	case rows2rows:
		if r1 != r2 {
			return fmt.Errorf("%w: %s%s(%dx...) %s(%dx...)", ErrDimension, dimErrMsg, name1, r1, name2, r2)
		}
	case rowsAndcols:
		if c1 != c2 || r1 != r2 {
			return fmt.Errorf("%w: %s%s(%dx%d) %s(%dx%d)", ErrDimension, dimErrMsg, name1, r1, c1, name2, r2, c2)
		}
	}
	return nil
}
