package storage

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// CacheConfig sizes the block cache of the Hybrid and Badger backends.
type CacheConfig struct {
	BlockShift int // Each block holds 1<<BlockShift records
	MaxBlocks  int // Blocks kept in memory at once
	Recency    int // Most recently used blocks that are never evicted
	Observer   Observer
	Logger     zerolog.Logger
}

// DefaultCacheConfig returns 64Ki-record blocks, 16 of them cached and the
// last 4 used protected from eviction.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		BlockShift: 16,
		MaxBlocks:  16,
		Recency:    4,
		Observer:   NopObserver{},
		Logger:     zerolog.Nop(),
	}
}

func (c CacheConfig) validate() error {
	if c.BlockShift < 0 || c.BlockShift > 30 {
		return fmt.Errorf("block shift %d outside 0..30", c.BlockShift)
	}
	if c.MaxBlocks < 1 {
		return fmt.Errorf("cache needs at least one block, got %d", c.MaxBlocks)
	}
	if c.Recency < 0 {
		return fmt.Errorf("negative recency %d", c.Recency)
	}
	return nil
}

// pager moves whole encoded blocks between memory and the backing medium.
// Reading a block that was never written yields zero bytes.
type pager interface {
	readBlock(idx uint64, buf []byte) error
	writeBlock(idx uint64, buf []byte) error
	sync() error
	close() error
}

type block[S any] struct {
	states []S
	dirty  bool
	used   uint64
}

// blockCache keeps a bounded set of decoded blocks in memory and writes
// dirty ones back when they are evicted or flushed.
type blockCache[S any] struct {
	mu     sync.Mutex
	pager  pager
	codec  Codec[S]
	cfg    CacheConfig
	n      uint64
	blocks map[uint64]*block[S]
	recent []uint64 // ring of the last used block indices
	next   int
	tick   uint64
	buf    []byte
	closed bool
}

func newBlockCache[S any](p pager, n uint64, codec Codec[S], cfg CacheConfig) (*blockCache[S], error) {
	if err := checkCodec(codec); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Observer == nil {
		cfg.Observer = NopObserver{}
	}
	c := &blockCache[S]{
		pager:  p,
		codec:  codec,
		cfg:    cfg,
		n:      n,
		blocks: make(map[uint64]*block[S], cfg.MaxBlocks),
		recent: make([]uint64, 0, cfg.Recency),
		buf:    make([]byte, (1<<cfg.BlockShift)*codec.Size()),
	}
	return c, nil
}

// span returns the number of records in block idx; the last block may be short.
func (c *blockCache[S]) span(idx uint64) int {
	start := idx << c.cfg.BlockShift
	return int(min(c.n-start, uint64(1)<<c.cfg.BlockShift))
}

func (c *blockCache[S]) touch(idx uint64) {
	c.tick++
	c.blocks[idx].used = c.tick
	if cap(c.recent) == 0 {
		return
	}
	if len(c.recent) < cap(c.recent) {
		c.recent = append(c.recent, idx)
		return
	}
	c.recent[c.next] = idx
	c.next = (c.next + 1) % len(c.recent)
}

func (c *blockCache[S]) isRecent(idx uint64) bool {
	for _, r := range c.recent {
		if r == idx {
			return true
		}
	}
	return false
}

// victim picks the least recently used block outside the recency ring, or
// the least recently used one if every cached block is in it.
func (c *blockCache[S]) victim() uint64 {
	var best, fallback uint64
	var bestUsed, fallbackUsed uint64 = ^uint64(0), ^uint64(0)
	for idx, b := range c.blocks {
		if b.used < fallbackUsed || (b.used == fallbackUsed && idx < fallback) {
			fallback, fallbackUsed = idx, b.used
		}
		if c.isRecent(idx) {
			continue
		}
		if b.used < bestUsed || (b.used == bestUsed && idx < best) {
			best, bestUsed = idx, b.used
		}
	}
	if bestUsed == ^uint64(0) {
		return fallback
	}
	return best
}

func (c *blockCache[S]) writeBack(idx uint64, b *block[S]) error {
	size := c.codec.Size()
	buf := c.buf[:len(b.states)*size]
	for i, s := range b.states {
		c.codec.Encode(buf[i*size:(i+1)*size], s)
	}
	if err := c.pager.writeBlock(idx, buf); err != nil {
		return fmt.Errorf("failed to write back block %d: %w", idx, err)
	}
	b.dirty = false
	c.cfg.Observer.ObserveCache(CacheWriteBack)
	return nil
}

// ensure makes block idx resident and returns it.
func (c *blockCache[S]) ensure(idx uint64) (*block[S], error) {
	if b, ok := c.blocks[idx]; ok {
		c.cfg.Observer.ObserveCache(CacheHit)
		c.touch(idx)
		return b, nil
	}
	c.cfg.Observer.ObserveCache(CacheMiss)

	if len(c.blocks) >= c.cfg.MaxBlocks {
		v := c.victim()
		if vb := c.blocks[v]; vb.dirty {
			if err := c.writeBack(v, vb); err != nil {
				return nil, err
			}
		}
		delete(c.blocks, v)
		c.cfg.Observer.ObserveCache(CacheEvict)
		c.cfg.Logger.Trace().Uint64("block", v).Msg("evicted block")
	}

	size := c.codec.Size()
	count := c.span(idx)
	buf := c.buf[:count*size]
	if err := c.pager.readBlock(idx, buf); err != nil {
		return nil, fmt.Errorf("failed to read block %d: %w", idx, err)
	}
	b := &block[S]{states: make([]S, count)}
	for i := range b.states {
		s, err := c.codec.Decode(buf[i*size : (i+1)*size])
		if err != nil {
			return nil, fmt.Errorf("failed to decode record %d: %w", idx<<c.cfg.BlockShift+uint64(i), err)
		}
		b.states[i] = s
	}
	c.blocks[idx] = b
	c.touch(idx)
	c.cfg.Logger.Trace().Uint64("block", idx).Msg("loaded block")
	return b, nil
}

func (c *blockCache[S]) load(code uint64) (S, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero S
	if c.closed {
		return zero, ErrClosed
	}
	if err := checkRange(code, c.n); err != nil {
		return zero, err
	}
	b, err := c.ensure(code >> c.cfg.BlockShift)
	if err != nil {
		return zero, err
	}
	return b.states[code&(1<<c.cfg.BlockShift-1)], nil
}

func (c *blockCache[S]) store(code uint64, s S) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if err := checkRange(code, c.n); err != nil {
		return err
	}
	b, err := c.ensure(code >> c.cfg.BlockShift)
	if err != nil {
		return err
	}
	b.states[code&(1<<c.cfg.BlockShift-1)] = s
	b.dirty = true
	return nil
}

func (c *blockCache[S]) flushLocked() error {
	for idx, b := range c.blocks {
		if !b.dirty {
			continue
		}
		if err := c.writeBack(idx, b); err != nil {
			return err
		}
	}
	return c.pager.sync()
}

func (c *blockCache[S]) flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	return c.flushLocked()
}

func (c *blockCache[S]) close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	err := c.flushLocked()
	if cerr := c.pager.close(); err == nil {
		err = cerr
	}
	c.blocks = nil
	return err
}

// resident returns the number of blocks in memory.
func (c *blockCache[S]) resident() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.blocks)
}
