package api

import (
	"context"
	"sync/atomic"
)

// WorkerPool bounds the number of requests touching the table at once.
// Lookups read a single state; evaluations read one state per move and are
// limited separately so a burst of them cannot starve plain lookups.
type WorkerPool struct {
	lookups tier
	evals   tier
}

// PoolConfig configures the worker pool.
type PoolConfig struct {
	MaxLookups int // Max concurrent value lookups (default: 64)
	MaxEvals   int // Max concurrent evaluations (default: 8)
}

// DefaultPoolConfig returns a PoolConfig with sensible defaults.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxLookups: 64,
		MaxEvals:   8,
	}
}

// NewWorkerPool creates a new worker pool with the given configuration.
func NewWorkerPool(config PoolConfig) *WorkerPool {
	def := DefaultPoolConfig()
	if config.MaxLookups <= 0 {
		config.MaxLookups = def.MaxLookups
	}
	if config.MaxEvals <= 0 {
		config.MaxEvals = def.MaxEvals
	}
	return &WorkerPool{
		lookups: newTier(config.MaxLookups),
		evals:   newTier(config.MaxEvals),
	}
}

// AcquireLookup waits for a lookup slot. It fails with the context's error
// if ctx is done first.
func (p *WorkerPool) AcquireLookup(ctx context.Context) error { return p.lookups.acquire(ctx) }

// ReleaseLookup returns a lookup slot.
func (p *WorkerPool) ReleaseLookup() { p.lookups.release() }

// TryAcquireLookup takes a lookup slot without blocking and reports
// whether it got one.
func (p *WorkerPool) TryAcquireLookup() bool { return p.lookups.tryAcquire() }

// AcquireEval waits for an evaluation slot.
func (p *WorkerPool) AcquireEval(ctx context.Context) error { return p.evals.acquire(ctx) }

// ReleaseEval returns an evaluation slot.
func (p *WorkerPool) ReleaseEval() { p.evals.release() }

// TryAcquireEval takes an evaluation slot without blocking and reports
// whether it got one.
func (p *WorkerPool) TryAcquireEval() bool { return p.evals.tryAcquire() }

// TierStats is a snapshot of one class of slots.
type TierStats struct {
	Active int64 `json:"active"`
	Queued int64 `json:"queued"`
	Total  int64 `json:"total"`
	Max    int   `json:"max"`
}

// PoolStats is a snapshot of the whole pool.
type PoolStats struct {
	Lookups TierStats `json:"lookups"`
	Evals   TierStats `json:"evals"`
}

// Stats returns current pool statistics.
func (p *WorkerPool) Stats() PoolStats {
	return PoolStats{Lookups: p.lookups.stats(), Evals: p.evals.stats()}
}

type tier struct {
	sem    chan struct{}
	queued atomic.Int64
	active atomic.Int64
	total  atomic.Int64
}

func newTier(n int) tier { return tier{sem: make(chan struct{}, n)} }

func (t *tier) acquire(ctx context.Context) error {
	t.queued.Add(1)
	defer t.queued.Add(-1)

	select {
	case t.sem <- struct{}{}:
		t.active.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *tier) tryAcquire() bool {
	select {
	case t.sem <- struct{}{}:
		t.active.Add(1)
		return true
	default:
		return false
	}
}

func (t *tier) release() {
	t.active.Add(-1)
	t.total.Add(1)
	<-t.sem
}

func (t *tier) stats() TierStats {
	return TierStats{
		Active: t.active.Load(),
		Queued: t.queued.Load(),
		Total:  t.total.Load(),
		Max:    cap(t.sem),
	}
}
