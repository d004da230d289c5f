package awari

import (
	"errors"
	"fmt"
	"iter"
	"math/bits"
)

// ErrCodeRange is returned when decoding a code outside [0, NBoards).
var ErrCodeRange = errors.New("board code out of range")

// rawMin is the rank of the first board with n seeds when no class is skipped.
func (g *Geometry) rawMin(n int) uint64 {
	return g.binom.Binom(g.FPits, n+g.FPits-1)
}

// ClassSize returns the number of boards holding exactly n seeds.
func (g *Geometry) ClassSize(n int) uint64 {
	return g.binom.Binom(g.FPits-1, n+g.FPits-1)
}

// EncMin returns the smallest code of seed class n.
func (g *Geometry) EncMin(n int) uint64 {
	m := g.rawMin(n)
	if n >= g.Seeds {
		m -= g.gap
	}
	return m
}

// ClassOf returns the seed class a valid code belongs to.
func (g *Geometry) ClassOf(code uint64) int {
	for n := 0; n <= g.Seeds; n++ {
		if g.Skipped(n) {
			continue
		}
		if code < g.EncMin(n)+g.ClassSize(n) {
			return n
		}
	}
	return -1
}

// rank maps the pit vector onto the combinatorial number system: with c_i
// the prefix sums of the pits, the set {c_i + i} is strictly increasing and
// ranks as the sum of C(c_i + i, i + 1).
func (g *Geometry) rank(b Board) uint64 {
	var code uint64
	c := 0
	for i := 0; i < g.FPits; i++ {
		c += int(b.pits[i])
		code += g.binom.Binom(i+1, c+i)
	}
	return code
}

// Encode returns the dense code of a board. Codes increase strictly within
// a seed class and classes occupy consecutive ranges in increasing order.
// The unreachable class Seeds-1 owns no codes; encoding such a board panics.
func (g *Geometry) Encode(b Board) uint64 {
	n := b.Total()
	if n > g.Seeds || g.Skipped(n) || b.Len() != g.FPits {
		Violation("encode", b, 0, "board of %d seeds has no code in %v", n, g)
	}

	code := g.rank(b)
	if n == g.Seeds {
		code -= g.gap
	}
	return code
}

// Decode is the exact inverse of Encode.
func (g *Geometry) Decode(code uint64) (Board, error) {
	if code >= g.NBoards {
		return Board{}, fmt.Errorf("%w: %d >= %d", ErrCodeRange, code, g.NBoards)
	}
	if code >= g.EncMin(g.Seeds) {
		code += g.gap
	}

	// Peel the set elements off from the largest one down.
	var set [MaxFPits]int
	for i := g.FPits - 1; i >= 0; i-- {
		s, c := g.binom.MaxInv(i+1, code)
		code -= c
		set[i] = s
	}

	b := g.Empty()
	prev := -1
	for i := 0; i < g.FPits; i++ {
		b.pits[i] = uint8(set[i] - prev - 1)
		prev = set[i]
	}
	return b, nil
}

// MustDecode is like Decode but treats an out of range code as a bug.
func (g *Geometry) MustDecode(code uint64) Board {
	b, err := g.Decode(code)
	if err != nil {
		Violation("decode", Board{}, code, "%v", err)
	}
	return b
}

// compositions walks every board with n seeds in increasing code order.
//
// A board is a stars-and-bars word of n+FPits-1 symbols holding FPits-1
// bars; bit j of the mask is set when symbol j is a bar. Stepping to the next
// larger mask of equal popcount visits the bar sets in colex order, which is
// exactly the order of rank.
func (g *Geometry) compositions(n int, yield func(Board) bool) {
	width := n + g.FPits - 1
	bars := g.FPits - 1
	limit := uint64(1) << width
	mask := uint64(1)<<bars - 1

	for mask < limit {
		b := g.Empty()
		m, prev := mask, -1
		for i := 0; i < bars; i++ {
			p := bits.TrailingZeros64(m)
			b.pits[i] = uint8(p - prev - 1)
			prev = p
			m &= m - 1
		}
		b.pits[bars] = uint8(width - prev - 1)

		if !yield(b) {
			return
		}

		// Next bit pattern with the same population count.
		low := mask & -mask
		ripple := mask + low
		mask = (((ripple ^ mask) >> 2) / low) | ripple
	}
}

// IterAll yields every board of seed class n in increasing code order,
// including shapes the analysis skips.
func (g *Geometry) IterAll(n int) iter.Seq[Board] {
	return func(yield func(Board) bool) {
		if n < 0 || n > g.Seeds {
			return
		}
		g.compositions(n, yield)
	}
}

// IterConfig yields the boards of seed class n that take part in the
// analysis, in increasing code order. Boards whose opponent pits are all
// occupied are skipped, and so is the whole unreachable class Seeds-1.
func (g *Geometry) IterConfig(n int) iter.Seq[Board] {
	return func(yield func(Board) bool) {
		if n < 0 || n > g.Seeds || g.Skipped(n) {
			return
		}
		code := g.EncMin(n)
		g.compositions(n, func(b Board) bool {
			if c := g.Encode(b); c != code {
				Violation("iter_config", b, c, "enumerator expected code %d", code)
			}
			code++
			if !b.Reachable() {
				return true
			}
			return yield(b)
		})
	}
}
