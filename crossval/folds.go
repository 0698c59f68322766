package crossval

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// newRand mirrors the seeding convention of the model constructors: seed 0
// draws a random stream, anything else is reproducible.
func newRand(seed int64) *rand.Rand {
	if seed == 0 {
		return rand.New(rand.NewSource(rand.Int63()))
	}
	return rand.New(rand.NewSource(seed))
}

// partition shuffles 0..n-1 and splits the permutation into k contiguous
// blocks of floor(n/k) observations, the last block absorbing the remainder.
// Every observation lands in exactly one block.
func partition(n, k int, rng *rand.Rand) [][]int {
	perm := rng.Perm(n)
	size := n / k
	blocks := make([][]int, k)
	for i := 0; i < k; i++ {
		lo := i * size
		hi := lo + size
		if i == k-1 {
			hi = n
		}
		blocks[i] = perm[lo:hi]
	}
	return blocks
}

// complement returns all indices of 0..n-1 not present in block, in order.
func complement(n int, block []int) []int {
	held := make([]bool, n)
	for _, i := range block {
		held[i] = true
	}
	out := make([]int, 0, n-len(block))
	for i := 0; i < n; i++ {
		if !held[i] {
			out = append(out, i)
		}
	}
	return out
}

// gatherRows copies the selected rows of X into a new matrix.
func gatherRows(X *mat.Dense, idx []int) *mat.Dense {
	_, m := X.Dims()
	out := mat.NewDense(len(idx), m, nil)
	for r, i := range idx {
		for j := 0; j < m; j++ {
			out.Set(r, j, X.At(i, j))
		}
	}
	return out
}
