package storage

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rec struct {
	V int8
	N uint8
}

type recCodec struct{}

func (recCodec) Size() int { return 2 }

func (recCodec) Encode(dst []byte, r rec) {
	dst[0] = byte(r.V)
	dst[1] = r.N
}

func (recCodec) Decode(src []byte) (rec, error) {
	return rec{V: int8(src[0]), N: src[1]}, nil
}

type countingObserver struct {
	loads, stores int
	events        map[CacheEvent]int
}

func (o *countingObserver) ObserveAccess(store bool) {
	if store {
		o.stores++
	} else {
		o.loads++
	}
}

func (o *countingObserver) ObserveCache(e CacheEvent) {
	if o.events == nil {
		o.events = make(map[CacheEvent]int)
	}
	o.events[e]++
}

func smallCache() CacheConfig {
	cfg := DefaultCacheConfig()
	cfg.BlockShift = 4
	cfg.MaxBlocks = 3
	cfg.Recency = 1
	return cfg
}

type factory func(t *testing.T, n uint64) Backend[rec]

func factories() map[string]factory {
	return map[string]factory{
		"ram": func(t *testing.T, n uint64) Backend[rec] {
			return NewRAM[rec](n)
		},
		"disk": func(t *testing.T, n uint64) Backend[rec] {
			d, err := CreateDisk[rec](filepath.Join(t.TempDir(), "table"), n, recCodec{})
			require.NoError(t, err)
			return d
		},
		"mmap": func(t *testing.T, n uint64) Backend[rec] {
			m, err := CreateMMap[rec](filepath.Join(t.TempDir(), "table"), n, recCodec{})
			require.NoError(t, err)
			return m
		},
		"hybrid": func(t *testing.T, n uint64) Backend[rec] {
			h, err := CreateHybrid[rec](filepath.Join(t.TempDir(), "table"), n, recCodec{}, smallCache())
			require.NoError(t, err)
			return h
		},
		"badger": func(t *testing.T, n uint64) Backend[rec] {
			b, err := OpenBadger[rec](BadgerConfig{InMemory: true, Cache: smallCache()}, n, recCodec{})
			require.NoError(t, err)
			return b
		},
		"counting": func(t *testing.T, n uint64) Backend[rec] {
			return NewCounting[rec](NewRAM[rec](n), nil)
		},
	}
}

func TestBackendConformance(t *testing.T) {
	const n = 1000

	for name, create := range factories() {
		t.Run(name, func(t *testing.T) {
			b := create(t, n)
			assert.Equal(t, uint64(n), b.Len())

			// Fresh tables read as zero records.
			for _, code := range []uint64{0, 17, n - 1} {
				r, err := b.Load(code)
				require.NoError(t, err)
				assert.Equal(t, rec{}, r)
			}

			// Random writes, shadowed in a map, across many blocks.
			rng := rand.New(rand.NewSource(1))
			shadow := make(map[uint64]rec)
			for i := 0; i < 5000; i++ {
				code := uint64(rng.Intn(n))
				r := rec{V: int8(rng.Intn(255) - 127), N: uint8(rng.Intn(128))}
				require.NoError(t, b.Store(code, r))
				shadow[code] = r
			}
			for code := uint64(0); code < n; code++ {
				r, err := b.Load(code)
				require.NoError(t, err)
				assert.Equal(t, shadow[code], r, "code %d", code)
			}

			_, err := b.Load(n)
			assert.ErrorIs(t, err, ErrOutOfRange)
			assert.ErrorIs(t, b.Store(n, rec{}), ErrOutOfRange)

			require.NoError(t, b.Flush())
			require.NoError(t, b.Close())
			require.NoError(t, b.Close(), "second close")

			_, err = b.Load(0)
			assert.ErrorIs(t, err, ErrClosed)
			assert.ErrorIs(t, b.Store(0, rec{}), ErrClosed)
		})
	}
}

// TestFileLayout checks that every file backed table writes record code at
// offset code*Size, so each one can be reopened by the others.
func TestFileLayout(t *testing.T) {
	const n = 100
	creators := map[string]func(path string) (Backend[rec], error){
		"disk": func(path string) (Backend[rec], error) { return CreateDisk[rec](path, n, recCodec{}) },
		"mmap": func(path string) (Backend[rec], error) { return CreateMMap[rec](path, n, recCodec{}) },
		"hybrid": func(path string) (Backend[rec], error) {
			return CreateHybrid[rec](path, n, recCodec{}, smallCache())
		},
	}

	for name, create := range creators {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "table")
			b, err := create(path)
			require.NoError(t, err)
			for code := uint64(0); code < n; code++ {
				require.NoError(t, b.Store(code, rec{V: int8(code), N: uint8(code % 7)}))
			}
			require.NoError(t, b.Close())

			raw, err := os.ReadFile(path)
			require.NoError(t, err)
			require.Len(t, raw, 2*n)
			assert.Equal(t, byte(42), raw[2*42])
			assert.Equal(t, byte(42%7), raw[2*42+1])

			m, err := OpenMMap[rec](path, recCodec{}, true)
			require.NoError(t, err)
			defer m.Close()
			assert.Equal(t, uint64(n), m.Len())
			r, err := m.Load(99)
			require.NoError(t, err)
			assert.Equal(t, rec{V: 99, N: 99 % 7}, r)
			assert.ErrorIs(t, m.Store(0, rec{}), ErrReadOnly)

			d, err := OpenDisk[rec](path, recCodec{}, true)
			require.NoError(t, err)
			defer d.Close()
			r, err = d.Load(10)
			require.NoError(t, err)
			assert.Equal(t, rec{V: 10, N: 3}, r)
			assert.ErrorIs(t, d.Store(0, rec{}), ErrReadOnly)
		})
	}
}

func TestOpenRejectsTornFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table")
	require.NoError(t, os.WriteFile(path, []byte{1, 2, 3}, 0o644))

	_, err := OpenDisk[rec](path, recCodec{}, true)
	assert.Error(t, err)
	_, err = OpenMMap[rec](path, recCodec{}, true)
	assert.Error(t, err)
}

func TestHybridBoundsResidentBlocks(t *testing.T) {
	obs := &countingObserver{}
	cfg := smallCache()
	cfg.Observer = obs

	h, err := CreateHybrid[rec](filepath.Join(t.TempDir(), "table"), 200, recCodec{}, cfg)
	require.NoError(t, err)
	defer h.Close()

	for code := uint64(0); code < 200; code++ {
		require.NoError(t, h.Store(code, rec{V: 1}))
		assert.LessOrEqual(t, h.Resident(), cfg.MaxBlocks)
	}

	// 200 records in 16-record blocks is 13 blocks; 3 stay cached.
	assert.Equal(t, 13, obs.events[CacheMiss])
	assert.Equal(t, 10, obs.events[CacheEvict])
	assert.Equal(t, 10, obs.events[CacheWriteBack])
	assert.Equal(t, 200-13, obs.events[CacheHit])

	// Evicted blocks come back from the file intact.
	for code := uint64(0); code < 200; code++ {
		r, err := h.Load(code)
		require.NoError(t, err)
		require.Equal(t, rec{V: 1}, r)
	}
}

func TestHybridKeepsRecentBlocks(t *testing.T) {
	obs := &countingObserver{}
	cfg := smallCache()
	cfg.MaxBlocks = 2
	cfg.Recency = 1
	cfg.Observer = obs

	h, err := CreateHybrid[rec](filepath.Join(t.TempDir(), "table"), 64, recCodec{}, cfg)
	require.NoError(t, err)
	defer h.Close()

	_, err = h.Load(0) // block 0
	require.NoError(t, err)
	_, err = h.Load(16) // block 1
	require.NoError(t, err)
	_, err = h.Load(0) // block 0 again, now the most recent
	require.NoError(t, err)
	_, err = h.Load(32) // block 2 evicts block 1
	require.NoError(t, err)
	_, err = h.Load(1) // still cached
	require.NoError(t, err)

	assert.Equal(t, 3, obs.events[CacheMiss])
	assert.Equal(t, 2, obs.events[CacheHit])
}

func TestBadgerPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	cfg := BadgerConfig{Path: dir, Cache: smallCache()}

	b, err := OpenBadger[rec](cfg, 100, recCodec{})
	require.NoError(t, err)
	for code := uint64(0); code < 100; code++ {
		require.NoError(t, b.Store(code, rec{V: int8(-int(code % 50)), N: 1}))
	}
	require.NoError(t, b.Close())

	b, err = OpenBadger[rec](cfg, 100, recCodec{})
	require.NoError(t, err)
	defer b.Close()
	r, err := b.Load(77)
	require.NoError(t, err)
	assert.Equal(t, rec{V: -27, N: 1}, r)
}

func TestCountingCounts(t *testing.T) {
	obs := &countingObserver{}
	c := NewCounting[rec](NewRAM[rec](10), obs)
	for i := uint64(0); i < 10; i++ {
		require.NoError(t, c.Store(i, rec{V: 1}))
		_, err := c.Load(i)
		require.NoError(t, err)
		_, err = c.Load(i)
		require.NoError(t, err)
	}
	assert.Equal(t, uint64(20), c.Loads())
	assert.Equal(t, uint64(10), c.Stores())
	assert.Equal(t, uint64(30), c.Accesses())
	assert.Equal(t, 20, obs.loads)
	assert.Equal(t, 10, obs.stores)
}

func TestCopy(t *testing.T) {
	src := NewRAM[rec](50)
	for i := uint64(0); i < 50; i++ {
		require.NoError(t, src.Store(i, rec{V: int8(i)}))
	}
	dst, err := CreateDisk[rec](filepath.Join(t.TempDir(), "copy"), 50, recCodec{})
	require.NoError(t, err)
	defer dst.Close()

	require.NoError(t, Copy[rec](dst, src))
	r, err := dst.Load(49)
	require.NoError(t, err)
	assert.Equal(t, rec{V: 49}, r)

	assert.Error(t, Copy[rec](NewRAM[rec](3), src))
}

func TestCreate(t *testing.T) {
	for _, k := range Kinds {
		t.Run(string(k), func(t *testing.T) {
			opts := Options{Kind: k, Cache: smallCache()}
			if k != KindRAM {
				opts.Path = filepath.Join(t.TempDir(), "table")
			}
			b, err := Create[rec](opts, 40, recCodec{})
			require.NoError(t, err)
			require.NoError(t, b.Store(39, rec{V: 5}))
			r, err := b.Load(39)
			require.NoError(t, err)
			assert.Equal(t, rec{V: 5}, r)
			require.NoError(t, b.Close())
		})
	}

	_, err := Create[rec](Options{Kind: KindDisk}, 10, recCodec{})
	assert.Error(t, err)

	_, err = ParseKind("tape")
	assert.Error(t, err)
	k, err := ParseKind("hybrid")
	require.NoError(t, err)
	assert.Equal(t, KindHybrid, k)
}

func TestOpen(t *testing.T) {
	for _, k := range []Kind{KindMMap, KindHybrid, KindDisk, KindBadger} {
		t.Run(string(k), func(t *testing.T) {
			opts := Options{Kind: k, Path: filepath.Join(t.TempDir(), "table"), Cache: smallCache()}
			b, err := Create[rec](opts, 40, recCodec{})
			require.NoError(t, err)
			require.NoError(t, b.Store(17, rec{V: -3, N: 2}))
			require.NoError(t, b.Close())

			ro, err := Open[rec](opts, 40, recCodec{}, true)
			require.NoError(t, err)
			defer ro.Close()
			assert.Equal(t, uint64(40), ro.Len())
			r, err := ro.Load(17)
			require.NoError(t, err)
			assert.Equal(t, rec{V: -3, N: 2}, r)
			assert.ErrorIs(t, ro.Store(17, rec{}), ErrReadOnly)
		})
	}

	_, err := Open[rec](Options{Kind: KindRAM, Path: "x"}, 10, recCodec{}, true)
	assert.ErrorContains(t, err, "not persisted")

	_, err = Open[rec](Options{Kind: KindDisk}, 10, recCodec{}, true)
	assert.Error(t, err)
}

type failingPager struct{}

var errDevice = errors.New("device gone")

func (failingPager) readBlock(uint64, []byte) error  { return errDevice }
func (failingPager) writeBlock(uint64, []byte) error { return errDevice }
func (failingPager) sync() error                     { return nil }
func (failingPager) close() error                    { return nil }

func TestCacheSurfacesIOErrors(t *testing.T) {
	c, err := newBlockCache[rec](failingPager{}, 10, recCodec{}, smallCache())
	require.NoError(t, err)
	_, err = c.load(3)
	assert.ErrorIs(t, err, errDevice)
	assert.ErrorIs(t, c.store(3, rec{}), errDevice)
}

func TestCacheConfigValidate(t *testing.T) {
	tests := []struct {
		cfg   CacheConfig
		valid bool
	}{
		{DefaultCacheConfig(), true},
		{CacheConfig{BlockShift: 0, MaxBlocks: 1}, true},
		{CacheConfig{BlockShift: 31, MaxBlocks: 1}, false},
		{CacheConfig{BlockShift: 4, MaxBlocks: 0}, false},
		{CacheConfig{BlockShift: 4, MaxBlocks: 2, Recency: -1}, false},
	}
	for i, tt := range tests {
		err := tt.cfg.validate()
		assert.Equal(t, tt.valid, err == nil, fmt.Sprintf("case %d: %v", i, err))
	}
}
