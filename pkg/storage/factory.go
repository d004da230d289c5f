package storage

import (
	"errors"
	"fmt"
)

// Kind names a backend implementation.
type Kind string

const (
	KindRAM    Kind = "ram"
	KindMMap   Kind = "mmap"
	KindHybrid Kind = "hybrid"
	KindDisk   Kind = "disk"
	KindBadger Kind = "badger"
)

// Kinds lists every backend in the order they are documented.
var Kinds = []Kind{KindRAM, KindMMap, KindHybrid, KindDisk, KindBadger}

// ParseKind validates a backend name.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown storage backend %q (want one of %v)", s, Kinds)
}

// Options selects and configures a fresh backend.
type Options struct {
	Kind Kind
	// Path is the table file, or the database directory for KindBadger.
	// KindRAM ignores it.
	Path       string
	SyncWrites bool
	Cache      CacheConfig
}

// Create builds an empty table of n records.
func Create[S any](opts Options, n uint64, codec Codec[S]) (Backend[S], error) {
	if opts.Kind != KindRAM && opts.Kind != KindBadger && opts.Path == "" {
		return nil, fmt.Errorf("%s backend needs a path", opts.Kind)
	}
	switch opts.Kind {
	case KindRAM:
		return NewRAM[S](n), nil
	case KindMMap:
		return wrap[S](CreateMMap(opts.Path, n, codec))
	case KindHybrid:
		return wrap[S](CreateHybrid(opts.Path, n, codec, opts.Cache))
	case KindDisk:
		return wrap[S](CreateDisk(opts.Path, n, codec))
	case KindBadger:
		return wrap[S](OpenBadger(BadgerConfig{
			Path:       opts.Path,
			InMemory:   opts.Path == "",
			SyncWrites: opts.SyncWrites,
			Cache:      opts.Cache,
		}, n, codec))
	}
	return nil, fmt.Errorf("unknown storage backend %q", opts.Kind)
}

// Open reopens a table an earlier run left at opts.Path. Flat files are
// mapped when the platform allows it; n is only needed by KindBadger, whose
// database does not record its length.
func Open[S any](opts Options, n uint64, codec Codec[S], readOnly bool) (Backend[S], error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("%s backend needs a path", opts.Kind)
	}
	switch opts.Kind {
	case KindRAM:
		return nil, fmt.Errorf("ram tables are not persisted; solve with --out or a file backend")
	case KindMMap, KindHybrid:
		m, err := OpenMMap(opts.Path, codec, readOnly)
		if errors.Is(err, errNoMMap) {
			return wrap[S](OpenDisk(opts.Path, codec, readOnly))
		}
		return wrap[S](m, err)
	case KindDisk:
		return wrap[S](OpenDisk(opts.Path, codec, readOnly))
	case KindBadger:
		b, err := OpenBadger(BadgerConfig{Path: opts.Path, SyncWrites: opts.SyncWrites, Cache: opts.Cache}, n, codec)
		if err != nil {
			return nil, err
		}
		b.readOnly = readOnly
		return b, nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", opts.Kind)
}

// wrap keeps a failed constructor's typed nil out of the interface.
func wrap[S any, B Backend[S]](b B, err error) (Backend[S], error) {
	if err != nil {
		return nil, err
	}
	return b, nil
}
