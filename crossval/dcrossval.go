package crossval

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/n0madic/go-groupwise-pls/gpls"
	"github.com/n0madic/go-groupwise-pls/gpls1"
	"github.com/n0madic/go-groupwise-pls/preprocess"
)

// DoubleResult aggregates a double cross-validation run.
type DoubleResult struct {
	// Q2 is 1 - PRESS/PRESS0, the cross-validated determination
	// coefficient against predicting the preprocessed mean. It can be
	// negative and is deliberately not clamped.
	Q2     float64
	Press  float64
	Press0 float64
	// SelectedLVs holds the inner-loop choice per outer fold.
	SelectedLVs []int
	// SelectedGammas holds the inner-loop gamma choice per outer fold;
	// nil for the multi-response harness.
	SelectedGammas []float64
	// ObsPress[i] is observation i's squared prediction error, summed
	// over response columns, from the fold that held it out.
	ObsPress []float64
}

type doubleFold struct {
	lv     int
	gamma  float64
	press  float64
	press0 float64
	test   []int
	obs    []float64
}

// DoubleGPLS2 estimates the generalization error of a multi-response
// group-wise PLS model by double cross-validation: for each outer block the
// inner harness picks the latent-variable count minimizing the alpha-blended
// error/sparsity criterion on the remaining data, the model is refitted with
// that count and scored on the held-out block.
func DoubleGPLS2(X, Y mat.Matrix, states [][]int, cfg Config) (*DoubleResult, error) {
	n, m := X.Dims()
	yn, _ := Y.Dims()
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

	folds := make([]*doubleFold, len(blocks))
	err := forEachFold(len(blocks), cfg.Workers, func(i int) error {
		f, err := runDoubleFold(Xd, Yd, states, cfg, blocks[i], int64(i), false)
		folds[i] = f
		return err
	})
	if err != nil {
		return nil, err
	}
	return reduceDouble(folds, n, cfg, false)
}

// DoubleGPLS1 is the single-response double cross-validation: the inner
// harness sweeps the joint latent-variable and gamma grid and both choices
// are reported per outer fold.
func DoubleGPLS1(X mat.Matrix, y mat.Vector, states [][]int, cfg Config) (*DoubleResult, error) {
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

	folds := make([]*doubleFold, len(blocks))
	err := forEachFold(len(blocks), cfg.Workers, func(i int) error {
		f, err := runDoubleFold(Xd, Yd, states, cfg, blocks[i], int64(i), true)
		folds[i] = f
		return err
	})
	if err != nil {
		return nil, err
	}
	return reduceDouble(folds, n, cfg, true)
}

func runDoubleFold(Xd, Yd *mat.Dense, states [][]int, cfg Config, test []int, foldID int64, single bool) (*doubleFold, error) {
	n, _ := Xd.Dims()
	_, o := Yd.Dims()
	train := complement(n, test)
	Xtrain := gatherRows(Xd, train)
	Ytrain := gatherRows(Yd, train)

	inner := cfg
	inner.Plotter = nil
	inner.Workers = 0 // the outer loop owns the parallelism
	if inner.Seed != 0 {
		inner.Seed = cfg.Seed + foldID + 1
	}
	if inner.Blocks > len(train) {
		inner.Blocks = len(train)
	}
	if inner.Blocks <= 2 {
		return nil, fmt.Errorf("%w: outer training fold of %d observations cannot be inner-validated", gpls.ErrValue, len(train))
	}

	var bestLV int
	bestGamma := 0.0
	if single {
		res, err := GPLS1(Xtrain, Ytrain.ColView(0), states, inner)
		if err != nil {
			return nil, err
		}
		li, gi := selectGrid2D(res.Cumpress, res.Nze, cfg.Alpha)
		bestLV, bestGamma = cfg.LVs[li], cfg.Gammas[gi]
	} else {
		res, err := GPLS2(Xtrain, Ytrain, states, inner)
		if err != nil {
			return nil, err
		}
		bestLV = cfg.LVs[selectGrid1D(res.Cumpress, res.Nze, cfg.Alpha)]
	}

	ppx, Xtr, err := preprocess.Fit(Xtrain, cfg.PrepX)
	if err != nil {
		return nil, err
	}
	ppy, Ytr, err := preprocess.Fit(Ytrain, cfg.PrepY)
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

	resid := mat.DenseCopyOf(Yte)
	if bestLV > 0 {
		var mdl *gpls.Model
		if single {
			var assoc *mat.Dense
			if bestGamma > 0 {
				mapComp := cfg.MapComponents
				if mapComp < 1 {
					mapComp = 1
				}
				if assoc, err = gpls1.BuildMap(Xtr, Ytr.ColView(0), cfg.MapKind, mapComp); err != nil {
					return nil, err
				}
			}
			mdl, err = gpls1.Fit(Xtr, Ytr.ColView(0), states, bestLV, bestGamma, assoc)
		} else {
			mdl, err = gpls.Fit(Xtr, Ytr, states, bestLV)
		}
		if err != nil {
			return nil, err
		}
		a := bestLV
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
	}

	out := &doubleFold{
		lv:    bestLV,
		gamma: bestGamma,
		test:  test,
		obs:   make([]float64, len(test)),
	}
	for r := range test {
		for j := 0; j < o; j++ {
			v := resid.At(r, j)
			out.obs[r] += v * v
			out.press += v * v
			y0 := Yte.At(r, j)
			out.press0 += y0 * y0
		}
	}
	return out, nil
}

func reduceDouble(folds []*doubleFold, n int, cfg Config, single bool) (*DoubleResult, error) {
	res := &DoubleResult{
		SelectedLVs: make([]int, len(folds)),
		ObsPress:    make([]float64, n),
	}
	if single {
		res.SelectedGammas = make([]float64, len(folds))
	}
	for i, f := range folds {
		res.SelectedLVs[i] = f.lv
		if single {
			res.SelectedGammas[i] = f.gamma
		}
		res.Press += f.press
		res.Press0 += f.press0
		for r, idx := range f.test {
			res.ObsPress[idx] = f.obs[r]
		}
	}
	if res.Press0 > 0 {
		res.Q2 = 1 - res.Press/res.Press0
	}

	if cfg.Plotter != nil {
		x := make([]float64, n)
		for i := range x {
			x[i] = float64(i)
		}
		if err := cfg.Plotter.Scatter(x, res.ObsPress, "Observation", "Squared prediction error"); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// selectGrid1D picks the grid index minimizing
// alpha*press/max(press) + (1-alpha)*nze/max(nze).
// A zero maximum makes its term vanish for every candidate (the 0/0 case:
// equally good candidates contribute nothing). Ties resolve to the earliest
// grid entry, i.e. the smallest latent-variable count.
func selectGrid1D(press, nze []float64, alpha float64) int {
	maxP, maxZ := 0.0, 0.0
	for i := range press {
		if press[i] > maxP {
			maxP = press[i]
		}
		if nze[i] > maxZ {
			maxZ = nze[i]
		}
	}
	best, bestCrit := 0, 0.0
	for i := range press {
		crit := 0.0
		if maxP > 0 {
			crit += alpha * press[i] / maxP
		}
		if maxZ > 0 {
			crit += (1 - alpha) * nze[i] / maxZ
		}
		if i == 0 || crit < bestCrit {
			best, bestCrit = i, crit
		}
	}
	return best
}

// selectGrid2D applies the same criterion over the joint grid, scanning
// latent-variable counts first so ties resolve to fewer components, then to
// smaller gamma.
func selectGrid2D(press, nze *mat.Dense, alpha float64) (int, int) {
	r, c := press.Dims()
	maxP, maxZ := 0.0, 0.0
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if press.At(i, j) > maxP {
				maxP = press.At(i, j)
			}
			if nze.At(i, j) > maxZ {
				maxZ = nze.At(i, j)
			}
		}
	}
	bi, bj, bestCrit := 0, 0, 0.0
	first := true
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			crit := 0.0
			if maxP > 0 {
				crit += alpha * press.At(i, j) / maxP
			}
			if maxZ > 0 {
				crit += (1 - alpha) * nze.At(i, j) / maxZ
			}
			if first || crit < bestCrit {
				bi, bj, bestCrit = i, j, crit
				first = false
			}
		}
	}
	return bi, bj
}
