// Package stats summarises move statistics of random boards and the value
// distribution of a finished table.
package stats

import (
	"fmt"
	"math/rand"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/yourusername/awari/internal/explore"
	"github.com/yourusername/awari/pkg/awari"
	"github.com/yourusername/awari/pkg/retro"
)

// RandomBoard draws a board of class n uniformly among all its boards.
func RandomBoard(g *awari.Geometry, rng *rand.Rand, n int) awari.Board {
	code := g.EncMin(n) + uint64(rng.Int63n(int64(g.ClassSize(n))))
	return g.MustDecode(code)
}

// MoveStats are averages over random full boards.
type MoveStats struct {
	Samples int
	// MeanGain is the average number of seeds taken per valid move.
	MeanGain float64
	// MeanMoves is the average number of valid moves per board.
	MeanMoves float64
	// MeanCaptures is the average number of capturing moves per board.
	MeanCaptures float64
}

// Sample draws count boards holding every seed and averages their moves.
func Sample(g *awari.Geometry, rng *rand.Rand, count int) (MoveStats, error) {
	if count < 1 {
		return MoveStats{}, fmt.Errorf("need at least one sample, got %d", count)
	}
	moves := make([]float64, count)
	captures := make([]float64, count)
	var gains []float64
	for i := range count {
		b := RandomBoard(g, rng, g.Seeds)
		for _, m := range b.Successors() {
			moves[i]++
			if m.Reward > 0 {
				captures[i]++
			}
			gains = append(gains, float64(m.Reward))
		}
	}

	ms := MoveStats{
		Samples:      count,
		MeanMoves:    stat.Mean(moves, nil),
		MeanCaptures: stat.Mean(captures, nil),
	}
	if len(gains) > 0 {
		ms.MeanGain = floats.Sum(gains) / float64(len(gains))
	}
	return ms, nil
}

// ClassScores is the value distribution of one seed class.
type ClassScores struct {
	Seeds  int
	Boards int
	Mean   float64
	StdDev float64
	// Histogram counts boards per value, from -Seeds to +Seeds.
	Histogram []float64
}

// Count returns the number of boards of value v.
func (c ClassScores) Count(v int) float64 {
	i := v + c.Seeds
	if i < 0 || i >= len(c.Histogram) {
		return 0
	}
	return c.Histogram[i]
}

// Scores computes per-class value statistics of every analysed class. With
// a non-nil reach, only boards in it are counted.
func Scores(t *retro.Table, reach *explore.Set) ([]ClassScores, error) {
	g := t.Geometry()
	var out []ClassScores
	for n := 0; n <= g.Seeds; n++ {
		if g.Skipped(n) || !t.Finished(n) {
			continue
		}
		var values []float64
		for b := range g.IterConfig(n) {
			code := g.Encode(b)
			if reach != nil && !reach.Has(code) {
				continue
			}
			v, err := t.Value(code)
			if err != nil {
				return nil, fmt.Errorf("class %d: %w", n, err)
			}
			values = append(values, float64(v))
		}
		out = append(out, summarise(n, values))
	}
	return out, nil
}

func summarise(n int, values []float64) ClassScores {
	cs := ClassScores{Seeds: n, Boards: len(values), Histogram: make([]float64, 2*n+1)}
	if len(values) == 0 {
		return cs
	}
	cs.Mean, cs.StdDev = stat.MeanStdDev(values, nil)
	if len(values) == 1 {
		cs.StdDev = 0
	}

	// Bin edges sit halfway between consecutive values.
	dividers := make([]float64, 2*n+2)
	floats.Span(dividers, -float64(n)-0.5, float64(n)+0.5)
	slices.Sort(values)
	stat.Histogram(cs.Histogram, dividers, values, nil)
	return cs
}
