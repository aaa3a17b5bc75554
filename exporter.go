package senseapp

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gonum.org/v1/gonum/mat"
)

// Exporter defines an export interface.
type Exporter interface {
	Write(key float64, values mat.Vector) error
	Close() error
}

// CSVExporter writes one record per Write: the key followed by the values.
type CSVExporter struct {
	w    *csv.Writer
	hdlr io.WriteCloser
	cols int
}

// NewCSVExporter creates dir/filename and writes the header: keyName followed by headers.
func NewCSVExporter(keyName string, headers []string, dir, filename string) (*CSVExporter, error) {
	f, err := os.Create(filepath.Join(dir, filename))
	if err != nil {
		return nil, err
	}
	e, err := newCSVExporter(keyName, headers, f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return e, nil
}

func newCSVExporter(keyName string, headers []string, hdlr io.WriteCloser) (*CSVExporter, error) {
	e := &CSVExporter{w: csv.NewWriter(hdlr), hdlr: hdlr, cols: len(headers)}
	if err := e.WriteRawLn(fmt.Sprintf("# Creation date (UTC): %s", time.Now().UTC())); err != nil {
		return nil, err
	}
	if err := e.w.Write(append([]string{keyName}, headers...)); err != nil {
		return nil, err
	}
	return e, nil
}

// Write writes a record.
func (e *CSVExporter) Write(key float64, values mat.Vector) error {
	if values.Len() != e.cols {
		return fmt.Errorf("%w: %d values for %d columns", ErrDimension, values.Len(), e.cols)
	}
	rec := make([]string, e.cols+1)
	rec[0] = strconv.FormatFloat(key, 'g', -1, 64)
	for i := 0; i < e.cols; i++ {
		rec[i+1] = strconv.FormatFloat(values.AtVec(i), 'g', -1, 64)
	}
	return e.w.Write(rec)
}

// WriteRawLn writes a raw line, such as a comment, after the pending records.
func (e *CSVExporter) WriteRawLn(s string) error {
	e.w.Flush()
	if err := e.w.Error(); err != nil {
		return err
	}
	_, err := io.WriteString(e.hdlr, s+"\n")
	return err
}

// Close flushes the records and closes the file.
func (e *CSVExporter) Close() error {
	if err := e.WriteRawLn(fmt.Sprintf("# Closing date (UTC): %s", time.Now().UTC())); err != nil {
		e.hdlr.Close()
		return err
	}
	return e.hdlr.Close()
}

// TrajectoryHeaders names the rows returned by SimulateDynamics.
func TrajectoryHeaders(order int) []string {
	hdr := make([]string, 0, StateDim(order)+1)
	for k := 1; k <= order; k++ {
		hdr = append(hdr, fmt.Sprintf("osc%d", k), fmt.Sprintf("osc%d-rate", k))
	}
	return append(hdr, "bias", "filtered")
}

// ExportTrajectory writes one record per sample, keyed by the sample time.
func ExportTrajectory(e Exporter, t []float64, out *mat.Dense) error {
	_, N := out.Dims()
	if len(t) != N {
		return fmt.Errorf("%w: %d times for %d samples", ErrDimension, len(t), N)
	}
	for j := range t {
		if err := e.Write(t[j], out.ColView(j)); err != nil {
			return err
		}
	}
	return nil
}

// PhaseHeaders names the rows returned by EstimateAverageDailyPhase.
var PhaseHeaders = []string{"drift", "order"}

// ExportPhase writes one record per day of the phase estimate, keyed by day.
func ExportPhase(e Exporter, phase *mat.Dense) error {
	_, days := phase.Dims()
	for d := 0; d < days; d++ {
		if err := e.Write(float64(d), phase.ColView(d)); err != nil {
			return err
		}
	}
	return nil
}

// EstimateHeaders names the columns written by ExportEstimates: every state
// followed by the state plus and minus two standard deviations, then the
// innovation.
func EstimateHeaders(order int) []string {
	states := TrajectoryHeaders(order)
	states = states[:len(states)-1]
	hdr := make([]string, 0, 3*len(states)+1)
	for _, s := range states {
		hdr = append(hdr, s, s+"+2sigma", s+"-2sigma")
	}
	return append(hdr, "innovation")
}

// ExportEstimates writes one record per estimate, keyed by the time it predicts.
func ExportEstimates(e Exporter, t []float64, ests []*VanillaEstimate) error {
	if len(t) != len(ests) {
		return fmt.Errorf("%w: %d times for %d estimates", ErrDimension, len(t), len(ests))
	}
	for k, est := range ests {
		n := est.State().Len()
		vals := mat.NewVecDense(3*n+1, nil)
		for i := 0; i < n; i++ {
			x := est.State().AtVec(i)
			twoσ := 2 * math.Sqrt(est.PredCovariance().At(i, i))
			vals.SetVec(3*i, x)
			vals.SetVec(3*i+1, x+twoσ)
			vals.SetVec(3*i+2, x-twoσ)
		}
		vals.SetVec(3*n, est.Innovation())
		if err := e.Write(t[k], vals); err != nil {
			return err
		}
	}
	return nil
}
