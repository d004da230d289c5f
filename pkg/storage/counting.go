package storage

import "sync/atomic"

// Counting wraps a backend and counts every access to it.
type Counting[S any] struct {
	Backend[S]
	obs    Observer
	loads  atomic.Uint64
	stores atomic.Uint64
}

// NewCounting wraps b. A nil observer only counts.
func NewCounting[S any](b Backend[S], obs Observer) *Counting[S] {
	if obs == nil {
		obs = NopObserver{}
	}
	return &Counting[S]{Backend: b, obs: obs}
}

func (c *Counting[S]) Load(code uint64) (S, error) {
	c.loads.Add(1)
	c.obs.ObserveAccess(false)
	return c.Backend.Load(code)
}

func (c *Counting[S]) Store(code uint64, s S) error {
	c.stores.Add(1)
	c.obs.ObserveAccess(true)
	return c.Backend.Store(code, s)
}

// Loads returns the number of Load calls so far.
func (c *Counting[S]) Loads() uint64 { return c.loads.Load() }

// Stores returns the number of Store calls so far.
func (c *Counting[S]) Stores() uint64 { return c.stores.Load() }

// Accesses returns loads plus stores.
func (c *Counting[S]) Accesses() uint64 { return c.Loads() + c.Stores() }
