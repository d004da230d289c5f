//go:build !unix

package storage

// MMap is unavailable on this platform.
type MMap[S any] struct{ Disk[S] }

func CreateMMap[S any](path string, n uint64, codec Codec[S]) (*MMap[S], error) {
	return nil, errNoMMap
}

func OpenMMap[S any](path string, codec Codec[S], readOnly bool) (*MMap[S], error) {
	return nil, errNoMMap
}
