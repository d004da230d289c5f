// Package retro computes the game value of every awari board by retrograde
// analysis, one seed class at a time, and answers queries on the result.
package retro

import (
	"fmt"

	"github.com/yourusername/awari/pkg/awari"
)

// State is the analysis value attached to one board code.
//
// A stable state holds the proven value of the board for the player to
// move. An unstable state holds a lower bound on that value and the number
// of capture-free moves whose successor is not final yet.
type State struct {
	value  int8
	deps   uint8
	stable bool
}

// Stable returns a final state of value v.
func Stable(v int8) State { return State{value: v, stable: true} }

// Unstable returns a pending state with lower bound bound and deps open moves.
func Unstable(bound int8, deps uint8) State { return State{value: bound, deps: deps} }

// IsStable reports whether the value is final.
func (s State) IsStable() bool { return s.stable }

// Value returns the final value or the current bound.
func (s State) Value() int8 { return s.value }

// Deps returns the number of open moves of an unstable state.
func (s State) Deps() uint8 { return s.deps }

func (s State) String() string {
	if s.stable {
		return fmt.Sprintf("Stable(%d)", s.value)
	}
	return fmt.Sprintf("Unstable(%d, %d)", s.value, s.deps)
}

// Update records that a capture-free move leads to a board whose final value
// is up, i.e. -up for the player to move here. sat is the current
// saturation ceiling. It returns the final value when the state becomes
// stable as a result.
func (s *State) Update(up, sat int8) (int8, bool) {
	cand := -up
	if s.stable {
		if s.value < cand {
			awari.Violation("update", awari.Board{}, 0, "stable value %d below move value %d", s.value, cand)
		}
		return 0, false
	}

	switch {
	case s.deps == 0:
		awari.Violation("update", awari.Board{}, 0, "dependency counter underflow on %v", *s)
	case s.deps == 1:
		*s = Stable(max(s.value, cand))
	case s.value == sat || cand == sat:
		*s = Stable(sat)
	default:
		s.deps--
		s.value = max(s.value, cand)
		return 0, false
	}
	return s.value, true
}

// TryStabilize freezes the state when its bound reached sat or no move is
// left open. It reports whether the state changed.
func (s *State) TryStabilize(sat int8) bool {
	if s.stable || (s.value != sat && s.deps != 0) {
		return false
	}
	*s = Stable(s.value)
	return true
}
