package storage

import (
	"fmt"
	"os"
)

// Disk reads and writes every record straight from its file, at offset
// code*Size. Nothing is cached.
type Disk[S any] struct {
	f        *os.File
	codec    Codec[S]
	n        uint64
	readOnly bool
	closed   bool
}

// CreateDisk creates (or truncates) the file at path for n records.
func CreateDisk[S any](path string, n uint64, codec Codec[S]) (*Disk[S], error) {
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
	return &Disk[S]{f: f, codec: codec, n: n}, nil
}

// OpenDisk opens an existing table file. Its length is taken from the file size.
func OpenDisk[S any](path string, codec Codec[S], readOnly bool) (*Disk[S], error) {
	if err := checkCodec(codec); err != nil {
		return nil, err
	}
	flag := os.O_RDWR
	if readOnly {
		flag = os.O_RDONLY
	}
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open table file: %w", err)
	}
	n, err := recordCount(f, codec.Size())
	if err != nil {
		f.Close()
		return nil, err
	}
	return &Disk[S]{f: f, codec: codec, n: n, readOnly: readOnly}, nil
}

func recordCount(f *os.File, size int) (uint64, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed to stat table file: %w", err)
	}
	if info.Size()%int64(size) != 0 {
		return 0, fmt.Errorf("table file of %d bytes is not a whole number of %d byte records", info.Size(), size)
	}
	return uint64(info.Size()) / uint64(size), nil
}

func (d *Disk[S]) Load(code uint64) (S, error) {
	var zero S
	if d.closed {
		return zero, ErrClosed
	}
	if err := checkRange(code, d.n); err != nil {
		return zero, err
	}
	var buf [maxRecord]byte
	rec := buf[:d.codec.Size()]
	if _, err := d.f.ReadAt(rec, int64(code)*int64(len(rec))); err != nil {
		return zero, fmt.Errorf("failed to read record %d: %w", code, err)
	}
	return d.codec.Decode(rec)
}

func (d *Disk[S]) Store(code uint64, s S) error {
	if d.closed {
		return ErrClosed
	}
	if d.readOnly {
		return ErrReadOnly
	}
	if err := checkRange(code, d.n); err != nil {
		return err
	}
	var buf [maxRecord]byte
	rec := buf[:d.codec.Size()]
	d.codec.Encode(rec, s)
	if _, err := d.f.WriteAt(rec, int64(code)*int64(len(rec))); err != nil {
		return fmt.Errorf("failed to write record %d: %w", code, err)
	}
	return nil
}

func (d *Disk[S]) Flush() error {
	if d.closed {
		return ErrClosed
	}
	if d.readOnly {
		return nil
	}
	return d.f.Sync()
}

func (d *Disk[S]) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	var err error
	if !d.readOnly {
		err = d.f.Sync()
	}
	if cerr := d.f.Close(); err == nil {
		err = cerr
	}
	return err
}

func (d *Disk[S]) Len() uint64 { return d.n }
