package api

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPoolBasic(t *testing.T) {
	pool := NewWorkerPool(PoolConfig{MaxLookups: 2, MaxEvals: 1})

	require.NoError(t, pool.AcquireLookup(context.Background()))
	stats := pool.Stats()
	assert.Equal(t, int64(1), stats.Lookups.Active)
	assert.Equal(t, 2, stats.Lookups.Max)

	pool.ReleaseLookup()
	stats = pool.Stats()
	assert.Equal(t, int64(0), stats.Lookups.Active)
	assert.Equal(t, int64(1), stats.Lookups.Total)
	assert.Equal(t, int64(0), stats.Evals.Total)
}

func TestWorkerPoolDefaults(t *testing.T) {
	pool := NewWorkerPool(PoolConfig{})
	stats := pool.Stats()
	assert.Equal(t, DefaultPoolConfig().MaxLookups, stats.Lookups.Max)
	assert.Equal(t, DefaultPoolConfig().MaxEvals, stats.Evals.Max)
}

func TestWorkerPoolTryAcquire(t *testing.T) {
	pool := NewWorkerPool(PoolConfig{MaxLookups: 1, MaxEvals: 2})

	assert.True(t, pool.TryAcquireEval())
	assert.True(t, pool.TryAcquireEval())
	assert.False(t, pool.TryAcquireEval(), "third evaluation slot should not exist")

	// The tiers are independent.
	assert.True(t, pool.TryAcquireLookup())
	assert.False(t, pool.TryAcquireLookup())

	pool.ReleaseEval()
	assert.True(t, pool.TryAcquireEval())
}

func TestWorkerPoolContextCancellation(t *testing.T) {
	pool := NewWorkerPool(PoolConfig{MaxLookups: 1, MaxEvals: 1})
	require.NoError(t, pool.AcquireEval(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := pool.AcquireEval(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int64(0), pool.Stats().Evals.Queued)

	pool.ReleaseEval()
	require.NoError(t, pool.AcquireEval(context.Background()))
}

func TestWorkerPoolConcurrency(t *testing.T) {
	const limit = 3
	pool := NewWorkerPool(PoolConfig{MaxLookups: limit, MaxEvals: 1})

	var (
		mu      sync.Mutex
		current int
		peak    int
		wg      sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := pool.AcquireLookup(context.Background()); err != nil {
				t.Error(err)
				return
			}
			defer pool.ReleaseLookup()

			mu.Lock()
			current++
			peak = max(peak, current)
			mu.Unlock()

			time.Sleep(5 * time.Millisecond)

			mu.Lock()
			current--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak, limit)
	assert.Equal(t, int64(20), pool.Stats().Lookups.Total)
}
