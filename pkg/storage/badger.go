package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
)

// BadgerConfig configures a Badger backed table.
type BadgerConfig struct {
	// Path is the database directory; ignored when InMemory is set.
	Path       string
	InMemory   bool
	SyncWrites bool
	Cache      CacheConfig
}

// Badger caches blocks like Hybrid but keeps them as values of an embedded
// badger database, one key per block.
type Badger[S any] struct {
	*blockCache[S]
	db       *badger.DB
	readOnly bool
}

// badgerLogger routes badger's own messages through zerolog.
type badgerLogger struct {
	log zerolog.Logger
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.log.Error().Msg(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.log.Warn().Msg(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.log.Debug().Msg(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	l.log.Trace().Msg(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

type badgerPager struct {
	db       *badger.DB
	inMemory bool
}

func blockKey(idx uint64) []byte {
	key := make([]byte, 4+8)
	copy(key, "blk/")
	binary.BigEndian.PutUint64(key[4:], idx)
	return key
}

func (p *badgerPager) readBlock(idx uint64, buf []byte) error {
	return p.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(blockKey(idx))
		if errors.Is(err, badger.ErrKeyNotFound) {
			clear(buf)
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) != len(buf) {
				return fmt.Errorf("block %d holds %d bytes, expected %d", idx, len(val), len(buf))
			}
			copy(buf, val)
			return nil
		})
	})
}

func (p *badgerPager) writeBlock(idx uint64, buf []byte) error {
	val := make([]byte, len(buf))
	copy(val, buf)
	return p.db.Update(func(txn *badger.Txn) error {
		return txn.Set(blockKey(idx), val)
	})
}

func (p *badgerPager) sync() error {
	if p.inMemory {
		return nil
	}
	return p.db.Sync()
}

func (p *badgerPager) close() error { return p.db.Close() }

// OpenBadger opens (or creates) a Badger table of n records. Blocks that
// were never written read as zero records.
func OpenBadger[S any](cfg BadgerConfig, n uint64, codec Codec[S]) (*Badger[S], error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for a persistent badger table")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(badgerLogger{log: cfg.Cache.Logger.With().Str("component", "badger").Logger()})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	c, err := newBlockCache(&badgerPager{db: db, inMemory: cfg.InMemory}, n, codec, cfg.Cache)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Badger[S]{blockCache: c, db: db}, nil
}

func (b *Badger[S]) Load(code uint64) (S, error) { return b.load(code) }

func (b *Badger[S]) Store(code uint64, s S) error {
	if b.readOnly {
		return ErrReadOnly
	}
	return b.store(code, s)
}

func (b *Badger[S]) Flush() error { return b.flush() }
func (b *Badger[S]) Close() error { return b.close() }
func (b *Badger[S]) Len() uint64  { return b.n }
