package stats

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/awari/internal/explore"
	"github.com/yourusername/awari/pkg/awari"
	"github.com/yourusername/awari/pkg/retro"
	"github.com/yourusername/awari/pkg/storage"
)

func TestRandomBoard(t *testing.T) {
	g := awari.MustGeometry(4, 4)
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 1000; i++ {
		n := rng.Intn(g.Seeds + 1)
		if g.Skipped(n) {
			continue
		}
		assert.Equal(t, n, RandomBoard(g, rng, n).Total())
	}
}

func TestSample(t *testing.T) {
	g := awari.MustGeometry(4, 4)
	ms, err := Sample(g, rand.New(rand.NewSource(2)), 2000)
	require.NoError(t, err)

	assert.Equal(t, 2000, ms.Samples)
	assert.Greater(t, ms.MeanMoves, 0.0)
	assert.LessOrEqual(t, ms.MeanMoves, 4.0)
	assert.LessOrEqual(t, ms.MeanCaptures, ms.MeanMoves)
	assert.GreaterOrEqual(t, ms.MeanGain, 0.0)

	_, err = Sample(g, rand.New(rand.NewSource(2)), 0)
	assert.Error(t, err)
}

func TestSummarise(t *testing.T) {
	cs := summarise(2, []float64{2, -2, 0, 2})
	assert.Equal(t, 4, cs.Boards)
	assert.InDelta(t, 0.5, cs.Mean, 1e-12)
	assert.Equal(t, []float64{1, 0, 1, 0, 2}, cs.Histogram)
	assert.Equal(t, 2.0, cs.Count(2))
	assert.Equal(t, 0.0, cs.Count(5))

	one := summarise(1, []float64{1})
	assert.Equal(t, 0.0, one.StdDev)

	empty := summarise(3, nil)
	assert.Zero(t, empty.Boards)
}

func TestScores(t *testing.T) {
	g := awari.MustGeometry(2, 2)
	s, err := retro.NewSolver(g, storage.NewRAM[retro.State](g.NBoards), retro.Options{})
	require.NoError(t, err)
	table, err := s.Run(context.Background())
	require.NoError(t, err)

	all, err := Scores(table, nil)
	require.NoError(t, err)
	require.Len(t, all, 8, "classes 0 to 8 without 7")

	var boards int
	for _, cs := range all {
		var sum float64
		for _, c := range cs.Histogram {
			sum += c
		}
		assert.Equal(t, float64(cs.Boards), sum)
		boards += cs.Boards
	}

	reach := explore.Reachable(g, g.Start())
	some, err := Scores(table, reach.Seen)
	require.NoError(t, err)
	var reached int
	for _, cs := range some {
		reached += cs.Boards
	}
	assert.Equal(t, int(reach.Seen.Len()), reached)
	assert.LessOrEqual(t, reached, boards)
}
