package retro

import (
	"fmt"

	"github.com/yourusername/awari/pkg/awari"
	"github.com/yourusername/awari/pkg/storage"
)

// Table answers value queries on an analysed geometry. Once its run has
// finished a table is read-only; it is safe for concurrent lookups when
// its backend is.
type Table struct {
	g        *awari.Geometry
	backend  storage.Backend[State]
	finished int
}

// OpenTable wraps a backend holding an analysis of g, such as a table file
// written by an earlier run. Runs stopped early by MaxSeeds leave the higher
// classes unfinished; those are found by reading the table.
func OpenTable(g *awari.Geometry, backend storage.Backend[State]) (*Table, error) {
	if backend.Len() != g.NBoards {
		return nil, fmt.Errorf("table holds %d records, geometry %v needs %d", backend.Len(), g, g.NBoards)
	}
	finished, err := finishedClasses(g, backend)
	if err != nil {
		return nil, err
	}
	return &Table{g: g, backend: backend, finished: finished}, nil
}

// finishedClasses returns the largest n such that every analysed board of
// the classes up to n is stable. Classes are solved in increasing order, so
// the scan stops in the first class holding an unstable state.
func finishedClasses(g *awari.Geometry, backend storage.Backend[State]) (int, error) {
	for n := 0; n <= g.Seeds; n++ {
		if g.Skipped(n) {
			continue
		}
		for b := range g.IterConfig(n) {
			st, err := backend.Load(g.Encode(b))
			if err != nil {
				return 0, fmt.Errorf("failed to scan class %d: %w", n, err)
			}
			if !st.IsStable() {
				return n - 1, nil
			}
		}
	}
	return g.Seeds, nil
}

// Geometry returns the geometry the table was built for.
func (t *Table) Geometry() *awari.Geometry { return t.g }

// Backend returns the storage the table reads from.
func (t *Table) Backend() storage.Backend[State] { return t.backend }

// Finished reports whether seed class n has been analysed.
func (t *Table) Finished(n int) bool { return n >= 0 && n <= t.finished }

// MaxSeeds returns the largest analysed class.
func (t *Table) MaxSeeds() int { return t.finished }

// Close releases the backend.
func (t *Table) Close() error { return t.backend.Close() }

// Value returns the stored value of code for the player to move.
func (t *Table) Value(code uint64) (int8, error) {
	b, err := t.g.Decode(code)
	if err != nil {
		return 0, err
	}
	return t.lookup(b, code)
}

// BoardValue returns the stored value of b. It fails with ErrNotInTable
// for boards without a state; Evaluate handles those too.
func (t *Table) BoardValue(b awari.Board) (int8, error) {
	if !t.inTable(b) {
		return 0, fmt.Errorf("%w: %v", ErrNotInTable, b)
	}
	return t.lookup(b, t.g.Encode(b))
}

func (t *Table) inTable(b awari.Board) bool {
	n := b.Total()
	return b.Len() == t.g.FPits && n <= t.g.Seeds && !t.g.Skipped(n) && b.Reachable()
}

func (t *Table) lookup(b awari.Board, code uint64) (int8, error) {
	if n := b.Total(); !t.Finished(n) {
		return 0, fmt.Errorf("%w: class %d of board %v", ErrUnfinished, n, b)
	}
	if !b.Reachable() {
		return 0, fmt.Errorf("%w: %v", ErrNotInTable, b)
	}
	st, err := t.backend.Load(code)
	if err != nil {
		return 0, fmt.Errorf("failed to load state %d: %w", code, err)
	}
	if !st.IsStable() {
		return 0, fmt.Errorf("state %d of board %v is not final: %v", code, b, st)
	}
	return st.Value(), nil
}

// Move is one valid move of an evaluated board.
type Move struct {
	Pit       int         `json:"pit"`
	Reward    int         `json:"reward"`
	Successor awari.Board `json:"-"`
	// Value is the outcome of the move for the player making it.
	Value int  `json:"value"`
	Best  bool `json:"best"`
}

// Evaluation is the value of a board together with its moves.
type Evaluation struct {
	Board   awari.Board `json:"-"`
	InTable bool        `json:"in_table"`
	Code    uint64      `json:"code,omitempty"`
	Value   int         `json:"value"`
	Moves   []Move      `json:"moves"`
}

// BestMoves returns the pits of the moves achieving the value.
func (e Evaluation) BestMoves() []int {
	var out []int
	for _, m := range e.Moves {
		if m.Best {
			out = append(out, m.Pit)
		}
	}
	return out
}

// Evaluate values b and each of its moves, looking one move ahead for
// boards the table has no state for, such as the starting position.
func (t *Table) Evaluate(b awari.Board) (Evaluation, error) {
	if b.Len() != t.g.FPits || b.Total() > t.g.Seeds {
		return Evaluation{}, fmt.Errorf("board %v does not fit geometry %v", b, t.g)
	}
	ev := Evaluation{Board: b, InTable: t.inTable(b)}

	best := -b.Total()
	for _, s := range b.Successors() {
		v, err := t.BoardValue(s.Board)
		if err != nil {
			return Evaluation{}, fmt.Errorf("move %d: %w", s.Pit, err)
		}
		m := Move{Pit: s.Pit, Reward: s.Reward, Successor: s.Board, Value: s.Reward - int(v)}
		best = max(best, m.Value)
		ev.Moves = append(ev.Moves, m)
	}
	ev.Value = best

	if ev.InTable {
		ev.Code = t.g.Encode(b)
		v, err := t.lookup(b, ev.Code)
		if err != nil {
			return Evaluation{}, err
		}
		if int(v) != ev.Value {
			return Evaluation{}, fmt.Errorf("stored value %d of %v disagrees with its moves (%d)", v, b, ev.Value)
		}
	}
	for i := range ev.Moves {
		ev.Moves[i].Best = ev.Moves[i].Value == ev.Value
	}
	return ev, nil
}

// BestMoves returns the pits of b that achieve its value.
func (t *Table) BestMoves(b awari.Board) ([]int, error) {
	ev, err := t.Evaluate(b)
	if err != nil {
		return nil, err
	}
	return ev.BestMoves(), nil
}
