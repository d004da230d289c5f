// Package awari implements the board, the dense board encoding and the move
// generator of the awari variant solved by package retro.
//
// Every component is parameterised by a Geometry, the immutable description of
// the board size and seed count fixed for a whole analysis run.
package awari

import (
	"errors"
	"fmt"

	"github.com/yourusername/awari/internal/combin"
)

const (
	// MaxFPits is the largest supported number of pits on the whole board.
	MaxFPits = 32
	// MaxSeeds is the largest seed count whose scores fit in an int8.
	MaxSeeds = 127
	// maxMaskBits bounds n+FPits-1, the width of the enumerator bit mask.
	maxMaskBits = 63
)

// ErrGeometry is returned for board sizes the solver cannot represent.
var ErrGeometry = errors.New("unsupported geometry")

// Geometry holds the configuration inputs of one analysis run:
// pits per side, starting seeds per pit and everything derived from them.
type Geometry struct {
	Pits       int    // Pits per side (PITS)
	StartSeeds int    // Seeds per pit at the start (START_SEEDS)
	FPits      int    // Pits on the whole board, 2*Pits (FPITS)
	Seeds      int    // Total seeds, FPits*StartSeeds (SEEDS)
	NBoards    uint64 // Number of addressable board codes (NBOARDS)

	binom *combin.Table
	gap   uint64 // Size of the skipped Seeds-1 class
}

// NewGeometry validates the configuration and precomputes the binomial table.
func NewGeometry(pits, startSeeds int) (*Geometry, error) {
	if pits < 1 || startSeeds < 1 {
		return nil, fmt.Errorf("%w: pits=%d start seeds=%d", ErrGeometry, pits, startSeeds)
	}

	fpits := 2 * pits
	seeds := fpits * startSeeds
	switch {
	case fpits > MaxFPits:
		return nil, fmt.Errorf("%w: %d pits exceed the maximum of %d", ErrGeometry, fpits, MaxFPits)
	case seeds > MaxSeeds:
		return nil, fmt.Errorf("%w: %d seeds exceed the maximum of %d", ErrGeometry, seeds, MaxSeeds)
	case seeds+fpits-1 > maxMaskBits:
		return nil, fmt.Errorf("%w: %d seeds on %d pits overflow the enumerator mask", ErrGeometry, seeds, fpits)
	}

	tbl, err := combin.New(fpits, seeds+fpits)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeometry, err)
	}

	g := &Geometry{
		Pits:       pits,
		StartSeeds: startSeeds,
		FPits:      fpits,
		Seeds:      seeds,
		binom:      tbl,
	}
	g.gap = g.ClassSize(seeds - 1)
	g.NBoards = g.rawMin(seeds+1) - g.gap

	return g, nil
}

// MustGeometry is like NewGeometry but panics on error. For tests and constants.
func MustGeometry(pits, startSeeds int) *Geometry {
	g, err := NewGeometry(pits, startSeeds)
	if err != nil {
		panic(err)
	}
	return g
}

// Binom exposes the geometry's binomial table: n choose k.
func (g *Geometry) Binom(k, n int) uint64 {
	return g.binom.Binom(k, n)
}

// Skipped reports whether seed class n is absent from the table.
// Captures take at least two seeds, so Seeds-1 seeds never occur in play.
func (g *Geometry) Skipped(n int) bool {
	return n == g.Seeds-1
}

// String describes the geometry, e.g. "4x4 (32 seeds, 8 pits)".
func (g *Geometry) String() string {
	return fmt.Sprintf("%dx%d (%d seeds, %d pits)", g.Pits, g.StartSeeds, g.Seeds, g.FPits)
}
