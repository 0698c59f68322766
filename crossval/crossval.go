// Package crossval implements block cross-validation for group-wise PLS
// models: single-level grid sweeps over latent-variable counts (and gamma for
// the single-response variant) and double cross-validation producing an
// unbiased generalization-error estimate.
package crossval

import (
	"fmt"
	"math"
	"strconv"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/n0madic/go-groupwise-pls/gpls"
	"github.com/n0madic/go-groupwise-pls/gpls1"
	"github.com/n0madic/go-groupwise-pls/preprocess"
)

// Config carries the per-call configuration surface of the harnesses.
// The zero value is not usable; start from DefaultConfig.
type Config struct {
	// LVs is the grid of latent-variable counts to evaluate. Zero is a
	// valid entry and means predicting the preprocessed mean.
	LVs []int
	// Gammas is the shrinkage grid, consulted only by the single-response
	// harnesses. Entries must lie in [0,1].
	Gammas []float64
	// Blocks is the fold count k, constrained to 2 < k <= N.
	Blocks int
	// PrepX and PrepY are the preprocessing modes fitted per training
	// fold and applied to the corresponding held-out block.
	PrepX, PrepY preprocess.Mode
	// Alpha blends prediction error against sparsity in the double
	// cross-validation selection: 1 selects purely on error, 0 purely on
	// the non-zero coefficient count.
	Alpha float64
	// MapKind and MapComponents configure the association map built per
	// training fold for the single-response variant.
	MapKind       gpls1.MapKind
	MapComponents int
	// Seed makes fold assignment reproducible; 0 draws a random stream.
	Seed int64
	// Workers bounds the number of folds processed concurrently.
	// Values below 2 keep the sweep sequential.
	Workers int
	// Plotter, when non-nil, receives diagnostic vectors after the sweep.
	Plotter Plotter
}

// DefaultConfig returns the conventional configuration for n observations:
// latent variables 0..10, no shrinkage, 10 blocks (or n when smaller),
// autoscaling on both sides and selection purely on prediction error.
func DefaultConfig(n int) Config {
	lvs := make([]int, 11)
	for i := range lvs {
		lvs[i] = i
	}
	blocks := 10
	if blocks > n {
		blocks = n
	}
	return Config{
		LVs:           lvs,
		Gammas:        []float64{0},
		Blocks:        blocks,
		PrepX:         preprocess.Autoscale,
		PrepY:         preprocess.Autoscale,
		Alpha:         1,
		MapKind:       gpls1.MapCorr,
		MapComponents: 10,
	}
}

func (cfg *Config) validate(n int) error {
	if cfg.Blocks <= 2 || cfg.Blocks > n {
		return fmt.Errorf("%w: block count %d must satisfy 2 < k <= %d", gpls.ErrValue, cfg.Blocks, n)
	}
	if len(cfg.LVs) == 0 {
		return fmt.Errorf("%w: empty latent-variable grid", gpls.ErrValue)
	}
	for _, a := range cfg.LVs {
		if a < 0 {
			return fmt.Errorf("%w: negative latent-variable count %d", gpls.ErrValue, a)
		}
	}
	for _, g := range cfg.Gammas {
		if g < 0 || g > 1 || math.IsNaN(g) {
			return fmt.Errorf("%w: gamma %v outside [0,1]", gpls.ErrValue, g)
		}
	}
	if cfg.Alpha < 0 || cfg.Alpha > 1 || math.IsNaN(cfg.Alpha) {
		return fmt.Errorf("%w: alpha %v outside [0,1]", gpls.ErrValue, cfg.Alpha)
	}
	return nil
}

func maxLV(lvs []int) int {
	max := 0
	for _, a := range lvs {
		if a > max {
			max = a
		}
	}
	return max
}

// Result is the outcome of a multi-response sweep.
type Result struct {
	LVs []int
	// Cumpress[i] is the PRESS at LVs[i], summed over folds and response
	// columns.
	Cumpress []float64
	// Press holds the per-response PRESS, one row per grid point.
	Press *mat.Dense
	// Nze[i] is the non-zero coefficient count at LVs[i], averaged over
	// folds.
	Nze []float64
}

type gpls2Fold struct {
	press *mat.Dense // len(LVs) x O
	nze   []float64
}

// GPLS2 runs single-level block cross-validation of a multi-response
// group-wise PLS model over the latent-variable grid in cfg. Preprocessing is
// fitted on each training fold only; the model is fitted once per fold at the
// grid maximum and evaluated at every grid point.
func GPLS2(X, Y mat.Matrix, states [][]int, cfg Config) (*Result, error) {
	n, m := X.Dims()
	yn, o := Y.Dims()
	if yn != n {
		return nil, fmt.Errorf("%w: X has %d rows, Y has %d", gpls.ErrDimension, n, yn)
	}
	if err := cfg.validate(n); err != nil {
		return nil, err
	}
	if err := gpls.ValidateStates(states, m); err != nil {
		return nil, err
	}

	Xd := mat.DenseCopyOf(X)
	Yd := mat.DenseCopyOf(Y)
	blocks := partition(n, cfg.Blocks, newRand(cfg.Seed))

	folds := make([]*gpls2Fold, len(blocks))
	err := forEachFold(len(blocks), cfg.Workers, func(i int) error {
		f, err := runGPLS2Fold(Xd, Yd, states, cfg, blocks[i])
		folds[i] = f
		return err
	})
	if err != nil {
		return nil, err
	}

	res := &Result{
		LVs:      append([]int(nil), cfg.LVs...),
		Cumpress: make([]float64, len(cfg.LVs)),
		Press:    mat.NewDense(len(cfg.LVs), o, nil),
		Nze:      make([]float64, len(cfg.LVs)),
	}
	for _, f := range folds {
		res.Press.Add(res.Press, f.press)
		for i := range res.Nze {
			res.Nze[i] += f.nze[i]
		}
	}
	for i := range cfg.LVs {
		for j := 0; j < o; j++ {
			res.Cumpress[i] += res.Press.At(i, j)
		}
		res.Nze[i] /= float64(len(folds))
	}

	if cfg.Plotter != nil {
		labels := make([]string, len(cfg.LVs))
		for i, a := range cfg.LVs {
			labels[i] = strconv.Itoa(a)
		}
		if err := cfg.Plotter.Bars(res.Cumpress, labels, "PRESS"); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func runGPLS2Fold(Xd, Yd *mat.Dense, states [][]int, cfg Config, test []int) (*gpls2Fold, error) {
	n, _ := Xd.Dims()
	_, o := Yd.Dims()
	train := complement(n, test)

	ppx, Xtr, err := preprocess.Fit(gatherRows(Xd, train), cfg.PrepX)
	if err != nil {
		return nil, err
	}
	ppy, Ytr, err := preprocess.Fit(gatherRows(Yd, train), cfg.PrepY)
	if err != nil {
		return nil, err
	}
	Xte, err := ppx.Apply(gatherRows(Xd, test))
	if err != nil {
		return nil, err
	}
	Yte, err := ppy.Apply(gatherRows(Yd, test))
	if err != nil {
		return nil, err
	}

	var mdl *gpls.Model
	if a := maxLV(cfg.LVs); a > 0 {
		if mdl, err = gpls.Fit(Xtr, Ytr, states, a); err != nil {
			return nil, err
		}
	}

	out := &gpls2Fold{
		press: mat.NewDense(len(cfg.LVs), o, nil),
		nze:   make([]float64, len(cfg.LVs)),
	}
	for i, a := range cfg.LVs {
		resid := mat.DenseCopyOf(Yte)
		if a > 0 {
			// A fold may achieve fewer components than requested;
			// the best available subset stands in.
			if a > mdl.NComponents {
				a = mdl.NComponents
			}
			beta, err := mdl.CoefficientsUpTo(a)
			if err != nil {
				return nil, err
			}
			var pred mat.Dense
			pred.Mul(Xte, beta)
			resid.Sub(resid, &pred)
			out.nze[i] = float64(countNonzero(beta))
		}
		for j := 0; j < o; j++ {
			ss := 0.0
			rn, _ := resid.Dims()
			for r := 0; r < rn; r++ {
				v := resid.At(r, j)
				ss += v * v
			}
			out.press.Set(i, j, ss)
		}
	}
	return out, nil
}

// Result1 is the outcome of a single-response sweep over the joint
// latent-variable and gamma grid.
type Result1 struct {
	LVs    []int
	Gammas []float64
	// Cumpress has one row per latent-variable count and one column per
	// gamma, summed over folds.
	Cumpress *mat.Dense
	// Nze is shaped like Cumpress, averaged over folds.
	Nze *mat.Dense
}

type gpls1Fold struct {
	press *mat.Dense
	nze   *mat.Dense
}

// GPLS1 runs single-level block cross-validation of the single-response
// variant over the joint grid of latent-variable counts and gamma values. The
// association map is rebuilt from each fold's preprocessed training data.
func GPLS1(X mat.Matrix, y mat.Vector, states [][]int, cfg Config) (*Result1, error) {
	n, m := X.Dims()
	if y.Len() != n {
		return nil, fmt.Errorf("%w: X has %d rows, y has %d", gpls.ErrDimension, n, y.Len())
	}
	if err := cfg.validate(n); err != nil {
		return nil, err
	}
	if len(cfg.Gammas) == 0 {
		return nil, fmt.Errorf("%w: empty gamma grid", gpls.ErrValue)
	}
	if err := gpls.ValidateStates(states, m); err != nil {
		return nil, err
	}

	Xd := mat.DenseCopyOf(X)
	Yd := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		Yd.Set(i, 0, y.AtVec(i))
	}
	blocks := partition(n, cfg.Blocks, newRand(cfg.Seed))

	folds := make([]*gpls1Fold, len(blocks))
	err := forEachFold(len(blocks), cfg.Workers, func(i int) error {
		f, err := runGPLS1Fold(Xd, Yd, states, cfg, blocks[i])
		folds[i] = f
		return err
	})
	if err != nil {
		return nil, err
	}

	res := &Result1{
		LVs:      append([]int(nil), cfg.LVs...),
		Gammas:   append([]float64(nil), cfg.Gammas...),
		Cumpress: mat.NewDense(len(cfg.LVs), len(cfg.Gammas), nil),
		Nze:      mat.NewDense(len(cfg.LVs), len(cfg.Gammas), nil),
	}
	for _, f := range folds {
		res.Cumpress.Add(res.Cumpress, f.press)
		res.Nze.Add(res.Nze, f.nze)
	}
	res.Nze.Scale(1/float64(len(folds)), res.Nze)

	if cfg.Plotter != nil {
		labels := make([]string, len(cfg.LVs))
		for i, a := range cfg.LVs {
			labels[i] = strconv.Itoa(a)
		}
		col := make([]float64, len(cfg.LVs))
		mat.Col(col, 0, res.Cumpress)
		if err := cfg.Plotter.Bars(col, labels, "PRESS"); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func runGPLS1Fold(Xd, Yd *mat.Dense, states [][]int, cfg Config, test []int) (*gpls1Fold, error) {
	n, _ := Xd.Dims()
	train := complement(n, test)

	ppx, Xtr, err := preprocess.Fit(gatherRows(Xd, train), cfg.PrepX)
	if err != nil {
		return nil, err
	}
	ppy, Ytr, err := preprocess.Fit(gatherRows(Yd, train), cfg.PrepY)
	if err != nil {
		return nil, err
	}
	Xte, err := ppx.Apply(gatherRows(Xd, test))
	if err != nil {
		return nil, err
	}
	Yte, err := ppy.Apply(gatherRows(Yd, test))
	if err != nil {
		return nil, err
	}

	ytr := Ytr.ColView(0)
	var assoc *mat.Dense
	if needsMap(cfg.Gammas) {
		mapComp := cfg.MapComponents
		if mapComp < 1 {
			mapComp = 1
		}
		if assoc, err = gpls1.BuildMap(Xtr, ytr, cfg.MapKind, mapComp); err != nil {
			return nil, err
		}
	}

	out := &gpls1Fold{
		press: mat.NewDense(len(cfg.LVs), len(cfg.Gammas), nil),
		nze:   mat.NewDense(len(cfg.LVs), len(cfg.Gammas), nil),
	}
	amax := maxLV(cfg.LVs)
	for gi, gamma := range cfg.Gammas {
		var mdl *gpls.Model
		if amax > 0 {
			if mdl, err = gpls1.Fit(Xtr, ytr, states, amax, gamma, assoc); err != nil {
				return nil, err
			}
		}
		for ai, a := range cfg.LVs {
			resid := mat.DenseCopyOf(Yte)
			if a > 0 {
				if a > mdl.NComponents {
					a = mdl.NComponents
				}
				beta, err := mdl.CoefficientsUpTo(a)
				if err != nil {
					return nil, err
				}
				var pred mat.Dense
				pred.Mul(Xte, beta)
				resid.Sub(resid, &pred)
				out.nze.Set(ai, gi, float64(countNonzero(beta)))
			}
			ss := 0.0
			rn, _ := resid.Dims()
			for r := 0; r < rn; r++ {
				v := resid.At(r, 0)
				ss += v * v
			}
			out.press.Set(ai, gi, ss)
		}
	}
	return out, nil
}

func needsMap(gammas []float64) bool {
	for _, g := range gammas {
		if g > 0 {
			return true
		}
	}
	return false
}

func countNonzero(beta *mat.Dense) int {
	r, c := beta.Dims()
	count := 0
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if beta.At(i, j) != 0 {
				count++
			}
		}
	}
	return count
}

// forEachFold runs fn over fold indices, concurrently when workers > 1. Each
// fold writes only its own slot, so the reduction order never matters.
func forEachFold(nFolds, workers int, fn func(i int) error) error {
	if workers < 2 {
		for i := 0; i < nFolds; i++ {
			if err := fn(i); err != nil {
				return err
			}
		}
		return nil
	}

	errs := make([]error, nFolds)
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i := 0; i < nFolds; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			errs[i] = fn(i)
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
