package leverage

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/n0madic/go-groupwise-pls/preprocess"
)

func randomData(n, m int, seed int64) *mat.Dense {
	rng := rand.New(rand.NewSource(seed))
	X := mat.NewDense(n, m, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < m; j++ {
			X.Set(i, j, rng.NormFloat64())
		}
	}
	return X
}

func TestVariableLeveragesSumToComponentCount(t *testing.T) {
	X := randomData(20, 6, 1)
	const ncomp = 2

	lev, err := Variables(X, ncomp, preprocess.Autoscale)
	if err != nil {
		t.Fatalf("Variables failed: %v", err)
	}
	if len(lev) != 6 {
		t.Fatalf("got %d leverages, want 6", len(lev))
	}
	sum := 0.0
	for i, v := range lev {
		if v < 0 || v > 1+1e-10 {
			t.Errorf("leverage[%d] = %v outside [0,1]", i, v)
		}
		sum += v
	}
	// Loading columns are orthonormal, so the squared entries of each
	// component sum to one.
	if math.Abs(sum-ncomp) > 1e-8 {
		t.Errorf("leverages sum to %v, want %v", sum, float64(ncomp))
	}
}

func TestObservationLeverages(t *testing.T) {
	X := randomData(15, 4, 2)
	const ncomp = 3

	lev, err := Observations(X, ncomp, preprocess.MeanCenter)
	if err != nil {
		t.Fatalf("Observations failed: %v", err)
	}
	if len(lev) != 15 {
		t.Fatalf("got %d leverages, want 15", len(lev))
	}
	sum := 0.0
	for i, v := range lev {
		if v < 0 || v > 1+1e-10 {
			t.Errorf("leverage[%d] = %v outside [0,1]", i, v)
		}
		sum += v
	}
	if math.Abs(sum-ncomp) > 1e-8 {
		t.Errorf("leverages sum to %v, want %v", sum, float64(ncomp))
	}
}

func TestComponentCountValidation(t *testing.T) {
	X := randomData(10, 5, 3)

	if _, err := Variables(X, 0, preprocess.Autoscale); !errors.Is(err, ErrComponents) {
		t.Errorf("ncomp=0: got %v, want ErrComponents", err)
	}
	if _, err := Variables(X, 6, preprocess.Autoscale); !errors.Is(err, ErrComponents) {
		t.Errorf("ncomp beyond rank: got %v, want ErrComponents", err)
	}
}
