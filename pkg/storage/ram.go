package storage

// RAM keeps the whole table in memory.
type RAM[S any] struct {
	states []S
	closed bool
}

// NewRAM allocates a table of n zero states.
func NewRAM[S any](n uint64) *RAM[S] {
	return &RAM[S]{states: make([]S, n)}
}

func (r *RAM[S]) Load(code uint64) (S, error) {
	var zero S
	if r.closed {
		return zero, ErrClosed
	}
	if err := checkRange(code, r.Len()); err != nil {
		return zero, err
	}
	return r.states[code], nil
}

func (r *RAM[S]) Store(code uint64, s S) error {
	if r.closed {
		return ErrClosed
	}
	if err := checkRange(code, r.Len()); err != nil {
		return err
	}
	r.states[code] = s
	return nil
}

func (r *RAM[S]) Flush() error {
	if r.closed {
		return ErrClosed
	}
	return nil
}

func (r *RAM[S]) Close() error {
	r.closed = true
	r.states = nil
	return nil
}

func (r *RAM[S]) Len() uint64 { return uint64(len(r.states)) }
