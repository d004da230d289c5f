//go:build unix

package storage

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// MMap serves the table from a shared memory mapping of its file.
// The mapping lives from Create/Open until Close; Load copies the record
// out, so no state ever points into it.
type MMap[S any] struct {
	mu       sync.RWMutex
	f        *os.File
	data     []byte
	codec    Codec[S]
	n        uint64
	readOnly bool
}

// CreateMMap creates (or truncates) the file at path for n records and maps it.
func CreateMMap[S any](path string, n uint64, codec Codec[S]) (*MMap[S], error) {
	if err := checkCodec(codec); err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("cannot map an empty table")
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create table file: %w", err)
	}
	if err := f.Truncate(int64(n) * int64(codec.Size())); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to size table file: %w", err)
	}
	return mapFile(f, n, codec, false)
}

// OpenMMap maps an existing table file.
func OpenMMap[S any](path string, codec Codec[S], readOnly bool) (*MMap[S], error) {
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
	if err == nil && n == 0 {
		err = fmt.Errorf("cannot map an empty table")
	}
	if err != nil {
		f.Close()
		return nil, err
	}
	return mapFile(f, n, codec, readOnly)
}

func mapFile[S any](f *os.File, n uint64, codec Codec[S], readOnly bool) (*MMap[S], error) {
	prot := unix.PROT_READ | unix.PROT_WRITE
	if readOnly {
		prot = unix.PROT_READ
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(n)*codec.Size(), prot, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to map table file: %w", err)
	}
	return &MMap[S]{f: f, data: data, codec: codec, n: n, readOnly: readOnly}, nil
}

func (m *MMap[S]) record(code uint64) []byte {
	size := uint64(m.codec.Size())
	return m.data[code*size : (code+1)*size]
}

func (m *MMap[S]) Load(code uint64) (S, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var zero S
	if m.data == nil {
		return zero, ErrClosed
	}
	if err := checkRange(code, m.n); err != nil {
		return zero, err
	}
	return m.codec.Decode(m.record(code))
}

func (m *MMap[S]) Store(code uint64, s S) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.data == nil {
		return ErrClosed
	}
	if m.readOnly {
		return ErrReadOnly
	}
	if err := checkRange(code, m.n); err != nil {
		return err
	}
	m.codec.Encode(m.record(code), s)
	return nil
}

func (m *MMap[S]) Flush() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.data == nil {
		return ErrClosed
	}
	if m.readOnly {
		return nil
	}
	if err := unix.Msync(m.data, unix.MS_SYNC); err != nil {
		return fmt.Errorf("failed to sync mapping: %w", err)
	}
	return nil
}

// Close syncs and unmaps the table and closes its file.
func (m *MMap[S]) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.data == nil {
		return nil
	}
	var err error
	if !m.readOnly {
		if serr := unix.Msync(m.data, unix.MS_SYNC); serr != nil {
			err = fmt.Errorf("failed to sync mapping: %w", serr)
		}
	}
	if uerr := unix.Munmap(m.data); uerr != nil && err == nil {
		err = fmt.Errorf("failed to unmap table: %w", uerr)
	}
	m.data = nil
	if cerr := m.f.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

func (m *MMap[S]) Len() uint64 { return m.n }
