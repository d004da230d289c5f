// Package combin provides the binomial coefficients behind the board encoding.
//
// The table is built once per geometry with Pascal's rule and is read-only
// afterwards, so a *Table is safe for concurrent use.
package combin

import (
	"fmt"
	"math/bits"
)

// Table holds C(n, k) for 0 <= k <= MaxK and 0 <= n <= MaxN.
type Table struct {
	maxK, maxN int
	rows       [][]uint64 // rows[k][n] = C(n, k)
}

// New builds the table for k in 0..maxK and n in 0..maxN.
func New(maxK, maxN int) (*Table, error) {
	if maxK < 1 || maxN < 0 {
		return nil, fmt.Errorf("combin: invalid table bounds k<=%d n<=%d", maxK, maxN)
	}

	t := &Table{maxK: maxK, maxN: maxN, rows: make([][]uint64, maxK+1)}
	for k := range t.rows {
		t.rows[k] = make([]uint64, maxN+1)
	}

	// C(n, 0) = 1
	for n := 0; n <= maxN; n++ {
		t.rows[0][n] = 1
	}

	// C(n, k) = C(n-1, k-1) + C(n-1, k)
	for k := 1; k <= maxK; k++ {
		for n := 1; n <= maxN; n++ {
			sum, carry := bits.Add64(t.rows[k-1][n-1], t.rows[k][n-1], 0)
			if carry != 0 {
				return nil, fmt.Errorf("combin: C(%d, %d) overflows uint64", n, k)
			}
			t.rows[k][n] = sum
		}
	}

	return t, nil
}

// MaxK returns the largest k served from the table.
func (t *Table) MaxK() int { return t.maxK }

// MaxN returns the largest n served from the table.
func (t *Table) MaxN() int { return t.maxN }

// Binom returns n choose k, and 0 when n < k.
// Arguments outside the table fall back to the multiplicative formula.
func (t *Table) Binom(k, n int) uint64 {
	if k < 0 || n < k {
		return 0
	}
	if k <= t.maxK && n <= t.maxN {
		return t.rows[k][n]
	}
	return Slow(k, n)
}

// MaxInv returns the largest n such that Binom(k, n) <= x, together with
// Binom(k, n). The search never returns n beyond the table's MaxN.
func (t *Table) MaxInv(k int, x uint64) (int, uint64) {
	if k <= 0 || k > t.maxK {
		panic(fmt.Sprintf("combin: MaxInv undefined for k=%d", k))
	}

	// Binom(k, k-1) = 0 <= x always holds, so lo is a valid answer.
	lo, hi := k-1, t.maxN
	for lo < hi {
		mid := lo + (hi-lo+1)/2
		if t.rows[k][mid] <= x {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo, t.Binom(k, lo)
}

// Slow computes n choose k with the multiplicative formula.
// It panics when the result does not fit in a uint64.
func Slow(k, n int) uint64 {
	if k < 0 || n < k {
		return 0
	}
	if k > n-k {
		k = n - k
	}

	// After step i, c = C(n-k+i, i), which divides exactly.
	c := uint64(1)
	for i := 1; i <= k; i++ {
		hi, lo := bits.Mul64(c, uint64(n-k+i))
		if hi != 0 {
			panic(fmt.Sprintf("combin: C(%d, %d) overflows uint64", n, k))
		}
		c = lo / uint64(i)
	}
	return c
}
