package storage

import (
	"fmt"
	"io"
	"os"
)

// Hybrid keeps a bounded number of blocks in memory over a backing file
// laid out like Disk, so a flushed Hybrid file opens as a Disk or MMap table.
type Hybrid[S any] struct {
	*blockCache[S]
}

type filePager struct {
	f    *os.File
	size int // record size
	bits int // block shift
}

func (p *filePager) offset(idx uint64) int64 {
	return int64(idx<<p.bits) * int64(p.size)
}

func (p *filePager) readBlock(idx uint64, buf []byte) error {
	n, err := p.f.ReadAt(buf, p.offset(idx))
	if err == io.EOF && n == len(buf) {
		err = nil
	}
	return err
}

func (p *filePager) writeBlock(idx uint64, buf []byte) error {
	_, err := p.f.WriteAt(buf, p.offset(idx))
	return err
}

func (p *filePager) sync() error  { return p.f.Sync() }
func (p *filePager) close() error { return p.f.Close() }

// CreateHybrid creates (or truncates) the backing file at path for n records.
func CreateHybrid[S any](path string, n uint64, codec Codec[S], cfg CacheConfig) (*Hybrid[S], error) {
	if err := checkCodec(codec); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create table file: %w", err)
	}
	if err := f.Truncate(int64(n) * int64(codec.Size())); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to size table file: %w", err)
	}
	c, err := newBlockCache(&filePager{f: f, size: codec.Size(), bits: cfg.BlockShift}, n, codec, cfg)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &Hybrid[S]{c}, nil
}

func (h *Hybrid[S]) Load(code uint64) (S, error)  { return h.load(code) }
func (h *Hybrid[S]) Store(code uint64, s S) error { return h.store(code, s) }
func (h *Hybrid[S]) Flush() error                 { return h.flush() }
func (h *Hybrid[S]) Close() error                 { return h.close() }
func (h *Hybrid[S]) Len() uint64                  { return h.n }

// Resident returns the number of blocks currently cached.
func (h *Hybrid[S]) Resident() int { return h.resident() }
