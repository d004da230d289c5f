// Package storage holds the per-board state tables of the analysis.
//
// Every backend maps a dense board code in [0, Len()) onto one fixed size
// record. Values are handed out as copies, so nothing a backend returns
// refers to its memory after the call.
package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfRange is returned for a code at or past Len().
	ErrOutOfRange = errors.New("code out of range")
	// ErrClosed is returned by any use of a closed backend.
	ErrClosed = errors.New("storage closed")
	// ErrReadOnly is returned by Store on a backend opened for reading.
	ErrReadOnly = errors.New("storage is read-only")

	errNoMMap = errors.New("memory mapped tables need a unix system")
)

// maxRecord bounds Codec.Size so that record buffers fit on the stack.
const maxRecord = 16

// Codec converts a state to and from its fixed size on-disk record.
// A record of zero bytes must decode without error.
type Codec[S any] interface {
	Size() int
	Encode(dst []byte, s S)
	Decode(src []byte) (S, error)
}

// Backend is an indexed table of states.
type Backend[S any] interface {
	// Load returns a copy of the state stored under code.
	Load(code uint64) (S, error)
	// Store replaces the state stored under code.
	Store(code uint64, s S) error
	// Flush writes any buffered state to the underlying medium.
	Flush() error
	// Close flushes and releases the backend. Closing twice is a no-op.
	Close() error
	// Len returns the number of records.
	Len() uint64
}

// CacheEvent is a block cache occurrence reported to an Observer.
type CacheEvent int

const (
	CacheHit CacheEvent = iota
	CacheMiss
	CacheEvict
	CacheWriteBack
)

func (e CacheEvent) String() string {
	switch e {
	case CacheHit:
		return "hit"
	case CacheMiss:
		return "miss"
	case CacheEvict:
		return "evict"
	case CacheWriteBack:
		return "write_back"
	}
	return fmt.Sprintf("CacheEvent(%d)", int(e))
}

// Observer receives access statistics. Implementations must be safe for
// concurrent use.
type Observer interface {
	ObserveAccess(store bool)
	ObserveCache(e CacheEvent)
}

// NopObserver discards every observation.
type NopObserver struct{}

func (NopObserver) ObserveAccess(bool)      {}
func (NopObserver) ObserveCache(CacheEvent) {}

func checkRange(code, n uint64) error {
	if code >= n {
		return fmt.Errorf("%w: %d >= %d", ErrOutOfRange, code, n)
	}
	return nil
}

func checkCodec[S any](c Codec[S]) error {
	if c.Size() <= 0 || c.Size() > maxRecord {
		return fmt.Errorf("record size %d outside 1..%d", c.Size(), maxRecord)
	}
	return nil
}

// Copy stores every record of src into dst. Both must have the same length.
func Copy[S any](dst, src Backend[S]) error {
	if dst.Len() != src.Len() {
		return fmt.Errorf("copy between tables of %d and %d records", dst.Len(), src.Len())
	}
	for code := uint64(0); code < src.Len(); code++ {
		s, err := src.Load(code)
		if err != nil {
			return fmt.Errorf("failed to load record %d: %w", code, err)
		}
		if err := dst.Store(code, s); err != nil {
			return fmt.Errorf("failed to store record %d: %w", code, err)
		}
	}
	return dst.Flush()
}
