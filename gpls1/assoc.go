package gpls1

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/n0madic/go-groupwise-pls/gpls"
)

// MapKind enumerates the supported association map constructions.
type MapKind int

const (
	// MapCov is the plain cross-product X'X.
	MapCov MapKind = iota
	// MapCorr is the variable correlation matrix.
	MapCorr
	// MapModel is the correlation matrix of a rank-limited PLS
	// reconstruction of X, capturing only model-explained association.
	MapModel
	// MapOutcome is the correlation matrix weighted by each variable
	// pair's association with the outcome.
	MapOutcome
)

// BuildMap constructs an M x M association map from the regressors X and the
// response y. ncomp is only consulted for MapModel, where it bounds the rank
// of the reconstruction.
func BuildMap(X mat.Matrix, y mat.Vector, kind MapKind, ncomp int) (*mat.Dense, error) {
	n, m := X.Dims()
	if y.Len() != n {
		return nil, fmt.Errorf("%w: X has %d rows, y has %d", gpls.ErrDimension, n, y.Len())
	}

	switch kind {
	case MapCov:
		out := mat.NewDense(m, m, nil)
		Xd := mat.DenseCopyOf(X)
		out.Mul(Xd.T(), Xd)
		return out, nil

	case MapCorr:
		return correlationMap(X), nil

	case MapModel:
		if ncomp < 1 {
			return nil, fmt.Errorf("%w: model map needs at least one component, got %d", gpls.ErrValue, ncomp)
		}
		yd := mat.NewDense(n, 1, nil)
		for i := 0; i < n; i++ {
			yd.Set(i, 0, y.AtVec(i))
		}
		all := make([]int, m)
		for i := range all {
			all[i] = i
		}
		mdl, err := gpls.Fit(X, yd, [][]int{all}, ncomp)
		if err != nil {
			return nil, err
		}
		if mdl.NComponents == 0 {
			return mat.NewDense(m, m, nil), nil
		}
		// Rank-limited reconstruction Xhat = T P'; its correlation
		// structure is the association the model actually explains.
		xhat := mat.NewDense(n, m, nil)
		xhat.Mul(mdl.Scores, mdl.Loadings.T())
		return correlationMap(xhat), nil

	case MapOutcome:
		corr := correlationMap(X)
		ry := make([]float64, m)
		yv := colData(y)
		col := make([]float64, n)
		for j := 0; j < m; j++ {
			mat.Col(col, j, X)
			ry[j] = corrOrZero(col, yv)
		}
		for i := 0; i < m; i++ {
			for j := 0; j < m; j++ {
				corr.Set(i, j, corr.At(i, j)*abs(ry[i])*abs(ry[j]))
			}
		}
		return corr, nil
	}
	return nil, fmt.Errorf("%w: unsupported association map kind %d", gpls.ErrValue, kind)
}

func correlationMap(X mat.Matrix) *mat.Dense {
	n, m := X.Dims()
	cols := make([][]float64, m)
	for j := 0; j < m; j++ {
		cols[j] = make([]float64, n)
		mat.Col(cols[j], j, X)
	}
	out := mat.NewDense(m, m, nil)
	for i := 0; i < m; i++ {
		out.Set(i, i, 1)
		for j := i + 1; j < m; j++ {
			r := corrOrZero(cols[i], cols[j])
			out.Set(i, j, r)
			out.Set(j, i, r)
		}
	}
	return out
}

// corrOrZero is stat.Correlation with constant columns mapped to zero
// association instead of NaN.
func corrOrZero(a, b []float64) float64 {
	_, sa := stat.MeanStdDev(a, nil)
	_, sb := stat.MeanStdDev(b, nil)
	if sa <= eps || sb <= eps {
		return 0
	}
	return stat.Correlation(a, b, nil)
}

func colData(v mat.Vector) []float64 {
	out := make([]float64, v.Len())
	for i := range out {
		out[i] = v.AtVec(i)
	}
	return out
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
