// Package gpls1 implements the single-response group-wise PLS variant.
//
// It follows the same group-constrained extraction as package gpls but adds a
// shrinkage parameter gamma that blends each group's full candidate with a
// reduced candidate built only from the variables an association map relates
// to the current residual response. gamma = 0 is the pure group-wise fit,
// gamma = 1 the fully shrunk one.
package gpls1

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/n0madic/go-groupwise-pls/gpls"
	"github.com/n0madic/go-groupwise-pls/kpls"
)

const eps = 1e-12

// Fit extracts up to maxComponents latent variables from the preprocessed
// regressors X (N x M) and the single response y (length N). assoc is an
// M x M association map from BuildMap; it may be nil when gamma is zero.
// The returned model is a regular gpls.Model and predicts through it.
func Fit(X mat.Matrix, y mat.Vector, states [][]int, maxComponents int, gamma float64, assoc *mat.Dense) (*gpls.Model, error) {
	n, m := X.Dims()
	if y.Len() != n {
		return nil, fmt.Errorf("%w: X has %d rows, y has %d", gpls.ErrDimension, n, y.Len())
	}
	if maxComponents < 0 {
		return nil, fmt.Errorf("%w: negative component count %d", gpls.ErrValue, maxComponents)
	}
	if gamma < 0 || gamma > 1 || math.IsNaN(gamma) {
		return nil, fmt.Errorf("%w: gamma %v outside [0,1]", gpls.ErrValue, gamma)
	}
	if gamma > 0 {
		if assoc == nil {
			return nil, fmt.Errorf("%w: gamma %v requires an association map", gpls.ErrValue, gamma)
		}
		ar, ac := assoc.Dims()
		if ar != m || ac != m {
			return nil, fmt.Errorf("%w: association map is %dx%d, want %dx%d", gpls.ErrDimension, ar, ac, m, m)
		}
	}
	if err := gpls.ValidateStates(states, m); err != nil {
		return nil, err
	}

	Xd := mat.DenseCopyOf(X)
	yres := mat.NewVecDense(n, nil)
	yres.CopyVec(y)

	xmap := mat.NewDense(m, m, nil)
	xmap.Mul(Xd.T(), Xd)

	B := identity(m)
	ymap := mat.NewDense(m, 1, nil)

	var (
		ws, ps, rs, ts []*mat.VecDense
		qs             []float64
		bel            []int
	)

	for j := 0; j < maxComponents; j++ {
		ymap.Mul(Xd.T(), yres)

		bestGroup := -1
		bestCrit := 0.0
		var bw, bp, br, bt *mat.VecDense
		var bq float64

		for g, group := range states {
			w, p, q, t, crit, ok := groupCandidate(Xd, xmap, ymap, yres, B, group, gamma, assoc)
			if ok && crit > bestCrit {
				bestGroup, bestCrit = g, crit
				bw, bp, bt = w, p, t
				bq = q
				br = mat.NewVecDense(m, nil)
				br.MulVec(B, w)
			}
		}
		if bestGroup < 0 || bestCrit <= 0 {
			break
		}

		ws = append(ws, bw)
		ps = append(ps, bp)
		qs = append(qs, bq)
		rs = append(rs, br)
		ts = append(ts, bt)
		bel = append(bel, bestGroup)

		// Deflate the response only.
		tt := mat.Dot(bt, bt)
		if tt > eps {
			d := mat.Dot(yres, bt) / tt
			yres.AddScaledVec(yres, -d, bt)
		}

		wp := mat.NewDense(m, m, nil)
		wp.Outer(1, bw, bp)
		upd := identity(m)
		upd.Sub(upd, wp)
		nb := mat.NewDense(m, m, nil)
		nb.Mul(B, upd)
		B = nb
	}

	mdl := &gpls.Model{
		NVars:       m,
		NResp:       1,
		NComponents: len(bel),
		Bel:         bel,
		States:      states,
	}
	if len(bel) > 0 {
		mdl.Weights = stackColumns(ws)
		mdl.Loadings = stackColumns(ps)
		mdl.Rotations = stackColumns(rs)
		mdl.Scores = stackColumns(ts)
		mdl.YLoadings = mat.NewDense(1, len(qs), qs)
	}
	return mdl, nil
}

// groupCandidate builds one group's candidate component. With gamma > 0 the
// full-group weight is interpolated with a weight restricted to the
// map-selected variables, and the criterion is interpolated the same way.
func groupCandidate(Xd, xmap, ymap *mat.Dense, yres *mat.VecDense, B *mat.Dense, group []int, gamma float64, assoc *mat.Dense) (w, p *mat.VecDense, q float64, t *mat.VecDense, crit float64, ok bool) {
	m, _ := xmap.Dims()
	n, _ := Xd.Dims()

	gx := kpls.MaskCross(xmap, group)
	full, okFull := kpls.ExtractComponent(gx, kpls.MaskRows(ymap, group))
	if !okFull {
		return nil, nil, 0, nil, 0, false
	}
	tFull := projectScore(Xd, B, full.Weight, n, m)
	critFull := scoreCovariance(tFull, yres)

	if gamma == 0 {
		return full.Weight, full.Loading, full.YLoading.AtVec(0), tFull, critFull, true
	}

	critSel := 0.0
	wSel := (*mat.VecDense)(nil)
	if sel := selectVariables(group, assoc, ymap); len(sel) > 0 {
		if reduced, okSel := kpls.ExtractComponent(kpls.MaskCross(xmap, sel), kpls.MaskRows(ymap, sel)); okSel {
			wSel = reduced.Weight
			critSel = scoreCovariance(projectScore(Xd, B, wSel, n, m), yres)
		}
	}
	if wSel == nil {
		// The shrunk candidate degenerated; only the full part remains,
		// attenuated by its blend weight.
		if gamma == 1 {
			return nil, nil, 0, nil, 0, false
		}
		wSel = mat.NewVecDense(m, nil)
	}

	w = mat.NewVecDense(m, nil)
	w.AddScaledVec(w, 1-gamma, full.Weight)
	w.AddScaledVec(w, gamma, wSel)
	nrm := mat.Norm(w, 2)
	if nrm <= eps {
		return nil, nil, 0, nil, 0, false
	}
	w.ScaleVec(1/nrm, w)

	// Recompute loadings for the blended direction inside the full group.
	xw := mat.NewVecDense(m, nil)
	xw.MulVec(gx, w)
	tt := mat.Dot(w, xw)
	if tt <= eps {
		return nil, nil, 0, nil, 0, false
	}
	p = mat.NewVecDense(m, nil)
	p.ScaleVec(1/tt, xw)
	q = 0.0
	for _, i := range group {
		q += ymap.At(i, 0) * w.AtVec(i)
	}
	q /= tt

	t = projectScore(Xd, B, w, n, m)
	crit = (1-gamma)*critFull + gamma*critSel
	return w, p, q, t, crit, true
}

// selectVariables picks the subset of a group the association map relates to
// the current residual response: variables whose map-propagated covariance
// reaches the group mean. Falls back to the single strongest variable, or to
// the whole group when the map is silent.
func selectVariables(group []int, assoc, ymap *mat.Dense) []int {
	rel := make([]float64, len(group))
	total := 0.0
	m, _ := ymap.Dims()
	for k, i := range group {
		v := 0.0
		for c := 0; c < m; c++ {
			v += assoc.At(i, c) * ymap.At(c, 0)
		}
		rel[k] = math.Abs(v)
		total += rel[k]
	}
	if total <= eps {
		return group
	}
	mean := total / float64(len(group))
	var sel []int
	for k, i := range group {
		if rel[k] >= mean {
			sel = append(sel, i)
		}
	}
	if len(sel) == 0 {
		best := 0
		for k := range rel {
			if rel[k] > rel[best] {
				best = k
			}
		}
		sel = []int{group[best]}
	}
	return sel
}

func projectScore(Xd, B *mat.Dense, w *mat.VecDense, n, m int) *mat.VecDense {
	r := mat.NewVecDense(m, nil)
	r.MulVec(B, w)
	t := mat.NewVecDense(n, nil)
	t.MulVec(Xd, r)
	return t
}

func scoreCovariance(t, y *mat.VecDense) float64 {
	n := t.Len()
	raw := make([]float64, n)
	for i := 0; i < n; i++ {
		raw[i] = t.AtVec(i)
	}
	mu, sd := stat.MeanStdDev(raw, nil)
	if sd <= eps || math.IsNaN(sd) {
		return 0
	}
	dot := 0.0
	for i := 0; i < n; i++ {
		dot += (raw[i] - mu) / sd * y.AtVec(i)
	}
	if math.IsNaN(dot) || math.IsInf(dot, 0) {
		return 0
	}
	return dot * dot
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
		data := make([]float64, rows)
		for i := range data {
			data[i] = c.AtVec(i)
		}
		out.SetCol(j, data)
	}
	return out
}
