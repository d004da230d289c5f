// Package explore finds every board reachable from a starting position.
package explore

import (
	"math/bits"

	"github.com/yourusername/awari/pkg/awari"
)

// Set is a bitset over board codes.
type Set struct {
	words []uint64
	n     uint64
}

// NewSet returns an empty set over codes [0, n).
func NewSet(n uint64) *Set {
	return &Set{words: make([]uint64, (n+63)/64), n: n}
}

// Has reports whether code is in the set.
func (s *Set) Has(code uint64) bool {
	return code < s.n && s.words[code/64]&(1<<(code%64)) != 0
}

// Add inserts code and reports whether it was new.
func (s *Set) Add(code uint64) bool {
	w, bit := code/64, uint64(1)<<(code%64)
	if s.words[w]&bit != 0 {
		return false
	}
	s.words[w] |= bit
	return true
}

// Len returns the number of codes in the set.
func (s *Set) Len() uint64 {
	var c int
	for _, w := range s.words {
		c += bits.OnesCount64(w)
	}
	return uint64(c)
}

// Result describes the boards reachable from a start position.
type Result struct {
	Seen     *Set
	PerClass []uint64 // reachable boards by seed class
}

// Reachable walks the move graph from start with an explicit stack and
// marks every board some sequence of moves leads to. The start itself is
// only included when a move leads back to it.
func Reachable(g *awari.Geometry, start awari.Board) Result {
	res := Result{Seen: NewSet(g.NBoards), PerClass: make([]uint64, g.Seeds+1)}
	stack := []awari.Board{start}
	for len(stack) > 0 {
		u := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, m := range u.Successors() {
			if res.Seen.Add(g.Encode(m.Board)) {
				res.PerClass[m.Board.Total()]++
				stack = append(stack, m.Board)
			}
		}
	}
	return res
}
