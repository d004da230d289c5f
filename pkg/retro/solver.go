package retro

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/yourusername/awari/pkg/awari"
	"github.com/yourusername/awari/pkg/storage"
)

var (
	// ErrUnfinished is returned when querying a class the run has not reached.
	ErrUnfinished = errors.New("seed class not analysed yet")
	// ErrNotInTable is returned for boards the table carries no state for:
	// the unreachable class and boards whose opponent pits are all occupied.
	ErrNotInTable = errors.New("board is not part of the table")
)

// cancelEvery is the number of sweep steps between context checks.
const cancelEvery = 1 << 12

// Options tunes a Solver. The zero value is usable.
type Options struct {
	Logger   zerolog.Logger
	Reporter Reporter
	// RunID tags logs and progress events; a random one is drawn when zero.
	RunID uuid.UUID
	// MaxSeeds stops the run after this class; 0 analyses every class.
	MaxSeeds int
}

type frame struct {
	board awari.Board
	up    int8
}

// Solver runs the retrograde analysis of one geometry into a table.
// It is single threaded; the backend must not be used by anyone else
// while Run is in progress.
type Solver struct {
	g     *awari.Geometry
	table storage.Backend[State]
	opts  Options
	log   zerolog.Logger

	// parity holds while every value of class n has the parity of n, which
	// lets the sweep skip every other saturation level.
	parity bool
	stack  []frame
	steps  uint64

	stabilized uint64 // boards made final in the current class
}

// NewSolver prepares a run of g over table, which must have one record per code.
func NewSolver(g *awari.Geometry, table storage.Backend[State], opts Options) (*Solver, error) {
	if table.Len() != g.NBoards {
		return nil, fmt.Errorf("table holds %d records, geometry %v needs %d", table.Len(), g, g.NBoards)
	}
	if opts.MaxSeeds <= 0 || opts.MaxSeeds > g.Seeds {
		opts.MaxSeeds = g.Seeds
	}
	if opts.Reporter == nil {
		opts.Reporter = NopReporter{}
	}
	if opts.RunID == uuid.Nil {
		opts.RunID = uuid.New()
	}
	return &Solver{
		g:      g,
		table:  table,
		opts:   opts,
		log:    opts.Logger.With().Str("run", opts.RunID.String()).Logger(),
		parity: true,
	}, nil
}

// RunID returns the identifier of this run.
func (s *Solver) RunID() uuid.UUID { return s.opts.RunID }

// Run analyses every seed class up to MaxSeeds in increasing order and
// returns the finished table. A class is either completed or the run fails;
// on error the table contents are not meaningful.
func (s *Solver) Run(ctx context.Context) (*Table, error) {
	start := time.Now()
	sum := Summary{RunID: s.opts.RunID, Geometry: s.g.String()}
	s.log.Info().Str("geometry", s.g.String()).Uint64("codes", s.g.NBoards).Int("max_seeds", s.opts.MaxSeeds).Msg("starting analysis")

	// The empty board is a draw.
	if err := s.table.Store(s.g.Encode(s.g.Empty()), Stable(0)); err != nil {
		return nil, fmt.Errorf("failed to seed empty board: %w", err)
	}
	sum.Classes, sum.Boards = 1, 1

	for n := 1; n <= s.opts.MaxSeeds; n++ {
		if s.g.Skipped(n) {
			continue
		}
		cs, err := s.solveClass(ctx, n)
		if err != nil {
			return nil, fmt.Errorf("class %d: %w", n, err)
		}
		sum.Classes++
		sum.Boards += cs.Boards
		sum.Forced += cs.Forced
		s.opts.Reporter.ClassDone(cs)
	}

	if err := s.table.Flush(); err != nil {
		return nil, fmt.Errorf("failed to flush table: %w", err)
	}
	sum.ParityBroken = !s.parity
	sum.Duration = time.Since(start)
	s.log.Info().Int("classes", sum.Classes).Uint64("boards", sum.Boards).Uint64("forced", sum.Forced).
		Bool("parity_broken", sum.ParityBroken).Dur("took", sum.Duration).Msg("analysis finished")
	s.opts.Reporter.Finished(sum)

	return &Table{g: s.g, backend: s.table, finished: s.opts.MaxSeeds}, nil
}

func (s *Solver) solveClass(ctx context.Context, n int) (ClassSummary, error) {
	start := time.Now()
	cs := ClassSummary{RunID: s.opts.RunID, Seeds: n}
	s.stabilized = 0

	boards, err := s.initClass(ctx, n)
	if err != nil {
		return cs, err
	}
	cs.Boards = boards
	s.log.Debug().Int("seeds", n).Uint64("boards", boards).Bool("parity", s.parity).Msg("class initialised")
	s.opts.Reporter.ClassStarted(s.opts.RunID, n, boards)

	stride := 1
	if s.parity {
		stride = 2
	}
	for lvl := n; lvl >= 0; lvl -= stride {
		before := s.stabilized
		if err := s.sweep(ctx, n, int8(lvl)); err != nil {
			return cs, err
		}
		cs.Levels++
		s.log.Trace().Int("seeds", n).Int("level", lvl).Uint64("stabilized", s.stabilized-before).Msg("level done")
		s.opts.Reporter.LevelDone(s.opts.RunID, n, lvl, s.stabilized-before)
	}

	if err := s.closeClass(n, &cs); err != nil {
		return cs, err
	}
	if err := s.table.Flush(); err != nil {
		return cs, fmt.Errorf("failed to flush table: %w", err)
	}
	if cs.Forced > 0 && n%2 == 1 && s.parity {
		s.parity = false
		s.log.Info().Int("seeds", n).Uint64("forced", cs.Forced).Msg("odd class drawn by exhaustion, sweeping every level from now on")
	}

	cs.Duration = time.Since(start)
	s.log.Info().Int("seeds", n).Uint64("boards", cs.Boards).Uint64("wins", cs.Wins).Uint64("losses", cs.Losses).
		Uint64("draws", cs.Draws).Uint64("forced", cs.Forced).Dur("took", cs.Duration).Msg("class done")
	return cs, nil
}

func (s *Solver) cancelled(ctx context.Context) error {
	s.steps++
	if s.steps%cancelEvery == 0 {
		return ctx.Err()
	}
	return nil
}

func (s *Solver) load(code uint64) (State, error) {
	st, err := s.table.Load(code)
	if err != nil {
		return st, fmt.Errorf("failed to load state %d: %w", code, err)
	}
	return st, nil
}

func (s *Solver) store(code uint64, st State) error {
	if err := s.table.Store(code, st); err != nil {
		return fmt.Errorf("failed to store state %d: %w", code, err)
	}
	return nil
}

// initClass sets the starting bound of every board of class n: captures are
// resolved against the finished smaller classes, capture-free moves are
// counted as open dependencies.
func (s *Solver) initClass(ctx context.Context, n int) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var boards uint64
	for b := range s.g.IterConfig(n) {
		if err := s.cancelled(ctx); err != nil {
			return boards, err
		}
		bound, deps := -n, 0
		for _, m := range b.Successors() {
			if m.Reward == 0 {
				deps++
				continue
			}
			code := s.g.Encode(m.Board)
			st, err := s.load(code)
			if err != nil {
				return boards, err
			}
			if !st.IsStable() {
				awari.Violation("init", m.Board, code, "successor of a smaller class is %v", st)
			}
			bound = max(bound, m.Reward-int(st.Value()))
		}
		if err := s.store(s.g.Encode(b), Unstable(int8(bound), uint8(deps))); err != nil {
			return boards, err
		}
		boards++
	}
	return boards, nil
}

// sweep stabilizes every board of class n whose bound reached sat or whose
// moves are all resolved, and propagates each new value backward.
func (s *Solver) sweep(ctx context.Context, n int, sat int8) error {
	for b := range s.g.IterConfig(n) {
		if err := s.cancelled(ctx); err != nil {
			return err
		}
		code := s.g.Encode(b)
		st, err := s.load(code)
		if err != nil {
			return err
		}
		if !st.TryStabilize(sat) {
			continue
		}
		if err := s.store(code, st); err != nil {
			return err
		}
		s.stabilized++
		if err := s.propagate(b, st.Value(), sat); err != nil {
			return err
		}
	}
	return nil
}

// propagate pushes the final value x of b to its capture-free predecessors,
// and on through every board that becomes final on the way.
func (s *Solver) propagate(b awari.Board, x, sat int8) error {
	s.stack = s.stack[:0]
	for _, p := range b.Predecessors() {
		s.stack = append(s.stack, frame{board: p, up: x})
	}

	for len(s.stack) > 0 {
		f := s.stack[len(s.stack)-1]
		s.stack = s.stack[:len(s.stack)-1]

		code := s.g.Encode(f.board)
		st, err := s.load(code)
		if err != nil {
			return err
		}
		if st.IsStable() {
			// Consistency check only.
			st.Update(f.up, sat)
			continue
		}
		v, done := st.Update(f.up, sat)
		if err := s.store(code, st); err != nil {
			return err
		}
		if !done {
			continue
		}
		if v > sat || v < -sat {
			awari.Violation("propagate", f.board, code, "value %d outside saturation range %d", v, sat)
		}
		s.stabilized++
		for _, p := range f.board.Predecessors() {
			s.stack = append(s.stack, frame{board: p, up: v})
		}
	}
	return nil
}

// closeClass declares every board still open a draw: the remaining moves
// only cycle through other open boards, none of which can force a gain.
func (s *Solver) closeClass(n int, cs *ClassSummary) error {
	for b := range s.g.IterConfig(n) {
		code := s.g.Encode(b)
		st, err := s.load(code)
		if err != nil {
			return err
		}
		if !st.IsStable() {
			if st.Value() > 0 {
				awari.Violation("close", b, code, "open board with positive bound %v", st)
			}
			st = Stable(0)
			if err := s.store(code, st); err != nil {
				return err
			}
			cs.Forced++
		}
		switch v := st.Value(); {
		case v > 0:
			cs.Wins++
		case v < 0:
			cs.Losses++
		default:
			cs.Draws++
		}
	}
	return nil
}
