// Package preprocess implements column-wise centering and scaling of data
// matrices. Parameters are fitted on a reference (training) set and applied
// verbatim to new data, so validation folds never see their own statistics.
package preprocess

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Mode selects the column transformation.
type Mode int

const (
	// None leaves the data untouched.
	None Mode = iota
	// MeanCenter subtracts the column mean.
	MeanCenter
	// Autoscale subtracts the column mean and divides by the sample
	// standard deviation (N-1 denominator).
	Autoscale
)

var (
	ErrEmptyData = errors.New("preprocess: empty data matrix")
	ErrMode      = errors.New("preprocess: unknown preprocessing mode")
	ErrDimension = errors.New("preprocess: column count mismatch")
)

// minScale guards the autoscale division. Columns whose standard deviation
// falls below it are treated as constant and only centered.
const minScale = 1e-12

// Params holds fitted per-column statistics.
type Params struct {
	Mode  Mode
	Mean  []float64
	Scale []float64
}

// Fit computes per-column statistics of X under the given mode and returns
// them together with the transformed copy of X. Constant columns under
// Autoscale fall back to centering only (scale 1) instead of producing NaN.
func Fit(X mat.Matrix, mode Mode) (*Params, *mat.Dense, error) {
	n, m := X.Dims()
	if n == 0 || m == 0 {
		return nil, nil, ErrEmptyData
	}
	if mode != None && mode != MeanCenter && mode != Autoscale {
		return nil, nil, fmt.Errorf("%w: %d", ErrMode, mode)
	}

	p := &Params{
		Mode:  mode,
		Mean:  make([]float64, m),
		Scale: make([]float64, m),
	}
	col := make([]float64, n)
	for j := 0; j < m; j++ {
		mat.Col(col, j, X)
		p.Scale[j] = 1
		switch mode {
		case MeanCenter:
			p.Mean[j] = stat.Mean(col, nil)
		case Autoscale:
			mu, sd := stat.MeanStdDev(col, nil)
			p.Mean[j] = mu
			if sd > minScale && !math.IsNaN(sd) {
				p.Scale[j] = sd
			}
		}
	}

	out, err := p.Apply(X)
	if err != nil {
		return nil, nil, err
	}
	return p, out, nil
}

// Apply transforms X with previously fitted statistics. It never refits.
func (p *Params) Apply(X mat.Matrix) (*mat.Dense, error) {
	n, m := X.Dims()
	if n == 0 || m == 0 {
		return nil, ErrEmptyData
	}
	if m != len(p.Mean) {
		return nil, fmt.Errorf("%w: data has %d columns, parameters have %d", ErrDimension, m, len(p.Mean))
	}

	out := mat.NewDense(n, m, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < m; j++ {
			out.Set(i, j, (X.At(i, j)-p.Mean[j])/p.Scale[j])
		}
	}
	return out, nil
}
