package retro

import (
	"time"

	"github.com/google/uuid"
)

// ClassSummary describes one finished seed class.
type ClassSummary struct {
	RunID    uuid.UUID     `json:"run_id"`
	Seeds    int           `json:"seeds"`
	Boards   uint64        `json:"boards"`
	Levels   int           `json:"levels"`
	Forced   uint64        `json:"forced"`
	Wins     uint64        `json:"wins"`
	Losses   uint64        `json:"losses"`
	Draws    uint64        `json:"draws"`
	Duration time.Duration `json:"duration"`
}

// Summary describes a whole run.
type Summary struct {
	RunID        uuid.UUID     `json:"run_id"`
	Geometry     string        `json:"geometry"`
	Classes      int           `json:"classes"`
	Boards       uint64        `json:"boards"`
	Forced       uint64        `json:"forced"`
	ParityBroken bool          `json:"parity_broken"`
	Duration     time.Duration `json:"duration"`
}

// Reporter follows the progress of a run. Calls come from the goroutine
// running the solver.
type Reporter interface {
	ClassStarted(id uuid.UUID, seeds int, boards uint64)
	LevelDone(id uuid.UUID, seeds, level int, stabilized uint64)
	ClassDone(ClassSummary)
	Finished(Summary)
}

// NopReporter ignores every event.
type NopReporter struct{}

func (NopReporter) ClassStarted(uuid.UUID, int, uint64)   {}
func (NopReporter) LevelDone(uuid.UUID, int, int, uint64) {}
func (NopReporter) ClassDone(ClassSummary)                {}
func (NopReporter) Finished(Summary)                      {}

// Reporters fans every event out to each of its members.
type Reporters []Reporter

func (rs Reporters) ClassStarted(id uuid.UUID, seeds int, boards uint64) {
	for _, r := range rs {
		r.ClassStarted(id, seeds, boards)
	}
}

func (rs Reporters) LevelDone(id uuid.UUID, seeds, level int, stabilized uint64) {
	for _, r := range rs {
		r.LevelDone(id, seeds, level, stabilized)
	}
}

func (rs Reporters) ClassDone(c ClassSummary) {
	for _, r := range rs {
		r.ClassDone(c)
	}
}

func (rs Reporters) Finished(s Summary) {
	for _, r := range rs {
		r.Finished(s)
	}
}
