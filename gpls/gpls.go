// Package gpls implements group-wise partial least squares regression.
//
// Each latent variable is constrained to a single predefined variable group
// ("state"): at every extraction round one kernel-PLS candidate is built per
// group and the candidate whose score covaries most with the current residual
// response wins. Only the response is deflated; scores stay referenced to the
// original regressor matrix through an accumulated Dayal-MacGregor correction.
package gpls

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/n0madic/go-groupwise-pls/kpls"
)

var (
	// ErrDimension signals a matrix shape mismatch or a group index
	// outside the variable range.
	ErrDimension = errors.New("gpls: dimension mismatch")
	// ErrValue signals an out-of-domain scalar argument.
	ErrValue = errors.New("gpls: invalid argument value")
)

const eps = 1e-12

// Model is a fitted group-wise PLS decomposition. All matrices have one
// column per extracted component; they are nil when NComponents is zero.
type Model struct {
	NVars int // predictor columns (M)
	NResp int // response columns (O)

	// NComponents is the achieved component count. It may be lower than
	// requested when every group degenerates in a round.
	NComponents int

	Weights   *mat.Dense // W, M x A, unit-norm group-restricted weights
	Loadings  *mat.Dense // P, M x A
	YLoadings *mat.Dense // Q, O x A
	Rotations *mat.Dense // R, M x A, deflation-corrected weights (B before each update)
	Scores    *mat.Dense // T, N x A, referenced to the training regressors

	// Bel records, per component, the index into States of the winning group.
	Bel    []int
	States [][]int
}

// ValidateStates checks that a variable grouping is usable against m columns:
// at least one group, no empty group, every index in [0, m).
func ValidateStates(states [][]int, m int) error {
	if len(states) == 0 {
		return fmt.Errorf("%w: empty variable grouping", ErrValue)
	}
	for g, group := range states {
		if len(group) == 0 {
			return fmt.Errorf("%w: group %d is empty", ErrValue, g)
		}
		for _, idx := range group {
			if idx < 0 || idx >= m {
				return fmt.Errorf("%w: group %d references column %d of %d", ErrDimension, g, idx, m)
			}
		}
	}
	return nil
}

// Fit extracts up to maxComponents group-wise latent variables from the
// preprocessed regressors X (N x M) and responses Y (N x O). A round in which
// no group yields a finite candidate with positive covariance truncates the
// sequence early; the achieved count is reported in Model.NComponents.
func Fit(X, Y mat.Matrix, states [][]int, maxComponents int) (*Model, error) {
	n, m := X.Dims()
	yn, o := Y.Dims()
	if n == 0 || m == 0 || o == 0 {
		return nil, fmt.Errorf("%w: empty input matrix", ErrDimension)
	}
	if yn != n {
		return nil, fmt.Errorf("%w: X has %d rows, Y has %d", ErrDimension, n, yn)
	}
	if maxComponents < 0 {
		return nil, fmt.Errorf("%w: negative component count %d", ErrValue, maxComponents)
	}
	if err := ValidateStates(states, m); err != nil {
		return nil, err
	}

	Xd := mat.DenseCopyOf(X)
	Yres := mat.DenseCopyOf(Y)

	// X is never deflated, so its cross-product is computed once.
	xmap := mat.NewDense(m, m, nil)
	xmap.Mul(Xd.T(), Xd)

	B := identity(m)
	ymap := mat.NewDense(m, o, nil)

	var (
		ws, ps, rs []*mat.VecDense
		qs, ts     []*mat.VecDense
		bel        []int
	)

	for j := 0; j < maxComponents; j++ {
		// The cross-covariance tracks the deflated response.
		ymap.Mul(Xd.T(), Yres)

		bestGroup := -1
		bestCrit := 0.0
		var bestComp kpls.Component
		var bestR, bestT *mat.VecDense

		for g, group := range states {
			comp, ok := kpls.ExtractComponent(kpls.MaskCross(xmap, group), kpls.MaskRows(ymap, group))
			if !ok {
				continue
			}
			r := mat.NewVecDense(m, nil)
			r.MulVec(B, comp.Weight)
			t := mat.NewVecDense(n, nil)
			t.MulVec(Xd, r)
			crit := scoreCovariance(t, Yres)
			if crit > bestCrit {
				bestGroup, bestCrit = g, crit
				bestComp, bestR, bestT = comp, r, t
			}
		}
		if bestGroup < 0 || bestCrit <= 0 {
			break
		}

		ws = append(ws, bestComp.Weight)
		ps = append(ps, bestComp.Loading)
		qs = append(qs, bestComp.YLoading)
		rs = append(rs, bestR)
		ts = append(ts, bestT)
		bel = append(bel, bestGroup)

		deflateResponse(Yres, bestT)

		// B <- B (I - w p'), so the next rotation projects against the
		// original, undeflated X.
		wp := mat.NewDense(m, m, nil)
		wp.Outer(1, bestComp.Weight, bestComp.Loading)
		upd := identity(m)
		upd.Sub(upd, wp)
		nb := mat.NewDense(m, m, nil)
		nb.Mul(B, upd)
		B = nb
	}

	mdl := &Model{
		NVars:       m,
		NResp:       o,
		NComponents: len(bel),
		Bel:         bel,
		States:      states,
	}
	if len(bel) > 0 {
		mdl.Weights = stackColumns(ws)
		mdl.Loadings = stackColumns(ps)
		mdl.YLoadings = stackColumns(qs)
		mdl.Rotations = stackColumns(rs)
		mdl.Scores = stackColumns(ts)
	}
	return mdl, nil
}

// Coefficients assembles the M x O regression matrix beta = R Q' over the
// given 1-based component indices. Index 0 is permitted and contributes
// nothing (the zero model predicting the preprocessed mean); indices beyond
// the achieved component count are rejected.
func (mdl *Model) Coefficients(lvs []int) (*mat.Dense, error) {
	beta := mat.NewDense(mdl.NVars, mdl.NResp, nil)
	for _, a := range lvs {
		if a < 0 || a > mdl.NComponents {
			return nil, fmt.Errorf("%w: component index %d outside achieved range [0, %d]", ErrValue, a, mdl.NComponents)
		}
		if a == 0 {
			continue
		}
		j := a - 1
		var contrib mat.Dense
		contrib.Outer(1, mdl.Rotations.ColView(j), mdl.YLoadings.ColView(j))
		beta.Add(beta, &contrib)
	}
	return beta, nil
}

// CoefficientsUpTo is shorthand for Coefficients over components 1..a.
func (mdl *Model) CoefficientsUpTo(a int) (*mat.Dense, error) {
	if a < 0 || a > mdl.NComponents {
		return nil, fmt.Errorf("%w: component count %d outside achieved range [0, %d]", ErrValue, a, mdl.NComponents)
	}
	lvs := make([]int, a)
	for i := range lvs {
		lvs[i] = i + 1
	}
	return mdl.Coefficients(lvs)
}

// Predict applies the coefficient matrix for the given component subset to
// new preprocessed regressors.
func (mdl *Model) Predict(X mat.Matrix, lvs []int) (*mat.Dense, error) {
	n, m := X.Dims()
	if m != mdl.NVars {
		return nil, fmt.Errorf("%w: data has %d columns, model has %d", ErrDimension, m, mdl.NVars)
	}
	beta, err := mdl.Coefficients(lvs)
	if err != nil {
		return nil, err
	}
	pred := mat.NewDense(n, mdl.NResp, nil)
	pred.Mul(X, beta)
	return pred, nil
}

// deflateResponse removes the part of Y explained by the score t:
// Y <- Y - t (Y't / t't)'.
func deflateResponse(Y *mat.Dense, t *mat.VecDense) {
	n, o := Y.Dims()
	tt := mat.Dot(t, t)
	if tt <= eps {
		return
	}
	d := mat.NewVecDense(o, nil)
	d.MulVec(Y.T(), t)
	d.ScaleVec(1/tt, d)
	outer := mat.NewDense(n, o, nil)
	outer.Outer(1, t, d)
	Y.Sub(Y, outer)
}

// scoreCovariance is the group-selection criterion: the sum over response
// columns of the squared covariance between the autoscaled score and the
// column. A constant score carries no information and scores zero.
func scoreCovariance(t *mat.VecDense, Y *mat.Dense) float64 {
	n, o := Y.Dims()
	raw := make([]float64, n)
	for i := 0; i < n; i++ {
		raw[i] = t.AtVec(i)
	}
	mu, sd := stat.MeanStdDev(raw, nil)
	if sd <= eps || math.IsNaN(sd) {
		return 0
	}
	total := 0.0
	for j := 0; j < o; j++ {
		dot := 0.0
		for i := 0; i < n; i++ {
			dot += (raw[i] - mu) / sd * Y.At(i, j)
		}
		if math.IsNaN(dot) || math.IsInf(dot, 0) {
			return 0
		}
		total += dot * dot
	}
	return total
}

func identity(m int) *mat.Dense {
	d := mat.NewDense(m, m, nil)
	for i := 0; i < m; i++ {
		d.Set(i, i, 1)
	}
	return d
}

func stackColumns(cols []*mat.VecDense) *mat.Dense {
	rows := cols[0].Len()
	out := mat.NewDense(rows, len(cols), nil)
	for j, c := range cols {
		out.SetCol(j, rawCopy(c))
	}
	return out
}

func rawCopy(v *mat.VecDense) []float64 {
	out := make([]float64, v.Len())
	for i := range out {
		out[i] = v.AtVec(i)
	}
	return out
}
