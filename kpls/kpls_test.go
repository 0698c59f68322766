package kpls

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func randomData(n, m int, seed int64) *mat.Dense {
	rng := rand.New(rand.NewSource(seed))
	data := make([]float64, n*m)
	for i := range data {
		data[i] = rng.NormFloat64()
	}
	return mat.NewDense(n, m, data)
}

func crossProducts(X, Y *mat.Dense) (xmap, ymap *mat.Dense) {
	_, m := X.Dims()
	_, o := Y.Dims()
	xmap = mat.NewDense(m, m, nil)
	xmap.Mul(X.T(), X)
	ymap = mat.NewDense(m, o, nil)
	ymap.Mul(X.T(), Y)
	return xmap, ymap
}

func TestSingleResponseWeightIsNormalizedCrossCovariance(t *testing.T) {
	X := randomData(30, 5, 1)
	Y := randomData(30, 1, 2)
	xmap, ymap := crossProducts(X, Y)

	comp, ok := ExtractComponent(xmap, ymap)
	if !ok {
		t.Fatal("extraction unexpectedly degenerate")
	}

	nrm := mat.Norm(ymap.ColView(0), 2)
	for i := 0; i < 5; i++ {
		want := ymap.At(i, 0) / nrm
		if math.Abs(comp.Weight.AtVec(i)-want) > 1e-10 {
			t.Errorf("Weight[%d] = %v, want %v", i, comp.Weight.AtVec(i), want)
		}
	}
	if math.Abs(mat.Norm(comp.Weight, 2)-1) > 1e-10 {
		t.Errorf("weight norm = %v, want 1", mat.Norm(comp.Weight, 2))
	}
}

func TestLoadingFormulas(t *testing.T) {
	X := randomData(25, 4, 3)
	Y := randomData(25, 2, 4)
	xmap, ymap := crossProducts(X, Y)

	comp, ok := ExtractComponent(xmap, ymap)
	if !ok {
		t.Fatal("extraction unexpectedly degenerate")
	}

	// p = X'X w / (w' X'X w), q = Y'X w / (w' X'X w).
	xw := mat.NewVecDense(4, nil)
	xw.MulVec(xmap, comp.Weight)
	tt := mat.Dot(comp.Weight, xw)
	for i := 0; i < 4; i++ {
		if math.Abs(comp.Loading.AtVec(i)-xw.AtVec(i)/tt) > 1e-10 {
			t.Errorf("Loading[%d] mismatch", i)
		}
	}
	q := mat.NewVecDense(2, nil)
	q.MulVec(ymap.T(), comp.Weight)
	for j := 0; j < 2; j++ {
		if math.Abs(comp.YLoading.AtVec(j)-q.AtVec(j)/tt) > 1e-10 {
			t.Errorf("YLoading[%d] mismatch", j)
		}
	}
}

func TestDegenerateInputsAreSkippedNotFatal(t *testing.T) {
	zero := mat.NewDense(3, 3, nil)
	zeroY := mat.NewDense(3, 1, nil)
	if _, ok := ExtractComponent(zero, zeroY); ok {
		t.Error("rank-0 inputs must not yield a component")
	}

	bad := mat.NewDense(3, 3, nil)
	bad.Set(1, 1, math.NaN())
	y := mat.NewDense(3, 1, []float64{1, 2, 3})
	if _, ok := ExtractComponent(bad, y); ok {
		t.Error("non-finite cross-product must not yield a component")
	}

	inf := mat.NewDense(3, 1, []float64{1, math.Inf(1), 0})
	ident := mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	if _, ok := ExtractComponent(ident, inf); ok {
		t.Error("non-finite cross-covariance must not yield a component")
	}
}

func TestMaskingRestrictsSupport(t *testing.T) {
	X := randomData(40, 6, 5)
	Y := randomData(40, 1, 6)
	xmap, ymap := crossProducts(X, Y)
	group := []int{1, 3, 4}

	gx := MaskCross(xmap, group)
	gy := MaskRows(ymap, group)

	in := map[int]bool{1: true, 3: true, 4: true}
	for i := 0; i < 6; i++ {
		for j := 0; j < 6; j++ {
			if !in[i] || !in[j] {
				if gx.At(i, j) != 0 {
					t.Fatalf("masked cross-product leaks at (%d,%d)", i, j)
				}
			} else if gx.At(i, j) != xmap.At(i, j) {
				t.Fatalf("masked cross-product altered at (%d,%d)", i, j)
			}
		}
		if !in[i] && gy.At(i, 0) != 0 {
			t.Fatalf("masked cross-covariance leaks at row %d", i)
		}
	}

	comp, ok := ExtractComponent(gx, gy)
	if !ok {
		t.Fatal("masked extraction unexpectedly degenerate")
	}
	for i := 0; i < 6; i++ {
		if !in[i] && comp.Weight.AtVec(i) != 0 {
			t.Errorf("weight has support outside the group at %d", i)
		}
	}
}
