// Package leverage computes principal-component leverages, the per-variable
// and per-observation contributions to a truncated PCA subspace. The vectors
// it returns are meant for diagnostic plotting by external collaborators.
package leverage

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/n0madic/go-groupwise-pls/preprocess"
)

var ErrComponents = errors.New("leverage: invalid component count")

// Variables returns, for each column of X, the sum of its squared loadings
// over the first ncomp principal components. X is preprocessed with the given
// mode before decomposition.
func Variables(X mat.Matrix, ncomp int, mode preprocess.Mode) ([]float64, error) {
	_, v, err := decompose(X, ncomp, mode)
	if err != nil {
		return nil, err
	}
	m, _ := v.Dims()
	out := make([]float64, m)
	for i := 0; i < m; i++ {
		for a := 0; a < ncomp; a++ {
			l := v.At(i, a)
			out[i] += l * l
		}
	}
	return out, nil
}

// Observations returns, for each row of X, the sum of its squared entries in
// the normalized score space of the first ncomp principal components. This is
// the diagonal of the hat matrix T(T'T)^-1 T'.
func Observations(X mat.Matrix, ncomp int, mode preprocess.Mode) ([]float64, error) {
	u, _, err := decompose(X, ncomp, mode)
	if err != nil {
		return nil, err
	}
	n, _ := u.Dims()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		for a := 0; a < ncomp; a++ {
			s := u.At(i, a)
			out[i] += s * s
		}
	}
	return out, nil
}

func decompose(X mat.Matrix, ncomp int, mode preprocess.Mode) (u, v *mat.Dense, err error) {
	n, m := X.Dims()
	rank := n
	if m < rank {
		rank = m
	}
	if ncomp < 1 || ncomp > rank {
		return nil, nil, fmt.Errorf("%w: %d components for a %dx%d matrix", ErrComponents, ncomp, n, m)
	}
	_, Xcs, err := preprocess.Fit(X, mode)
	if err != nil {
		return nil, nil, err
	}
	var svd mat.SVD
	if !svd.Factorize(Xcs, mat.SVDThin) {
		return nil, nil, errors.New("leverage: SVD failed to converge")
	}
	u = &mat.Dense{}
	v = &mat.Dense{}
	svd.UTo(u)
	svd.VTo(v)
	return u, v, nil
}
