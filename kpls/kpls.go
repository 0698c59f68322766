// Package kpls extracts single kernel-PLS components from cross-product
// matrices. It operates purely on X'X and X'Y, never on the raw data, which
// lets callers mask rows and columns to restrict a component to a variable
// group.
package kpls

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// eps is the zero-energy threshold below which a candidate component is
// considered degenerate.
const eps = 1e-12

// Component is one extracted latent-variable direction.
type Component struct {
	Weight   *mat.VecDense // w, unit norm, length M
	Loading  *mat.VecDense // p, length M
	YLoading *mat.VecDense // q, length O
}

// ExtractComponent computes one kernel-PLS component from the cross-product
// matrix xmap (M x M, = X'X possibly masked) and the cross-covariance matrix
// ymap (M x O, = X'Y possibly masked).
//
// For a single response the weight is the normalized cross-covariance
// column; for multiple responses it is ymap applied to the dominant
// eigenvector of ymap'ymap. The boolean result is false when the inputs are
// non-finite, rank deficient or carry no covariance energy; such candidates
// are skipped by the fitter, never reported as errors.
func ExtractComponent(xmap, ymap *mat.Dense) (Component, bool) {
	m, _ := xmap.Dims()
	mr, o := ymap.Dims()
	if m != mr || !AllFinite(xmap) || !AllFinite(ymap) {
		return Component{}, false
	}

	w := mat.NewVecDense(m, nil)
	if o == 1 {
		w.CopyVec(ymap.ColView(0))
	} else {
		// Dominant eigenvector of the O x O matrix ymap'ymap, mapped
		// back through ymap.
		s := mat.NewSymDense(o, nil)
		for i := 0; i < o; i++ {
			for j := i; j < o; j++ {
				v := 0.0
				for k := 0; k < m; k++ {
					v += ymap.At(k, i) * ymap.At(k, j)
				}
				s.SetSym(i, j, v)
			}
		}
		var eig mat.EigenSym
		if !eig.Factorize(s, true) {
			return Component{}, false
		}
		vals := eig.Values(nil)
		var vecs mat.Dense
		eig.VectorsTo(&vecs)
		// Eigenvalues are in ascending order.
		best := o - 1
		if vals[best] <= eps {
			return Component{}, false
		}
		w.MulVec(ymap, vecs.ColView(best))
	}

	nrm := mat.Norm(w, 2)
	if nrm <= eps || math.IsNaN(nrm) || math.IsInf(nrm, 0) {
		return Component{}, false
	}
	w.ScaleVec(1/nrm, w)

	// tt = w' X'X w is the score energy under the original data.
	xw := mat.NewVecDense(m, nil)
	xw.MulVec(xmap, w)
	tt := mat.Dot(w, xw)
	if tt <= eps || math.IsNaN(tt) || math.IsInf(tt, 0) {
		return Component{}, false
	}

	p := mat.NewVecDense(m, nil)
	p.ScaleVec(1/tt, xw)

	q := mat.NewVecDense(o, nil)
	q.MulVec(ymap.T(), w)
	q.ScaleVec(1/tt, q)

	return Component{Weight: w, Loading: p, YLoading: q}, true
}

// MaskCross returns a copy of the square cross-product matrix with every row
// and column outside idx zeroed.
func MaskCross(xmap *mat.Dense, idx []int) *mat.Dense {
	m, _ := xmap.Dims()
	out := mat.NewDense(m, m, nil)
	for _, i := range idx {
		for _, j := range idx {
			out.Set(i, j, xmap.At(i, j))
		}
	}
	return out
}

// MaskRows returns a copy of the cross-covariance matrix with every row
// outside idx zeroed.
func MaskRows(ymap *mat.Dense, idx []int) *mat.Dense {
	m, o := ymap.Dims()
	out := mat.NewDense(m, o, nil)
	for _, i := range idx {
		for j := 0; j < o; j++ {
			out.Set(i, j, ymap.At(i, j))
		}
	}
	return out
}

// AllFinite reports whether every entry of m is finite.
func AllFinite(m mat.Matrix) bool {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := m.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}
