package api

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/yourusername/awari/pkg/retro"
)

// Progress event types.
const (
	EventClassStarted = "class_started"
	EventLevelDone    = "level_done"
	EventClassDone    = "class_done"
	EventFinished     = "finished"
)

// Event is one solver progress notification as sent to clients.
type Event struct {
	Type       string              `json:"type"`
	RunID      uuid.UUID           `json:"run_id"`
	Seeds      int                 `json:"seeds,omitempty"`
	Level      int                 `json:"level,omitempty"`
	Boards     uint64              `json:"boards,omitempty"`
	Stabilized uint64              `json:"stabilized,omitempty"`
	Class      *retro.ClassSummary `json:"class,omitempty"`
	Summary    *retro.Summary      `json:"summary,omitempty"`
	Time       time.Time           `json:"time"`
}

// Hub fans solver progress out to subscribers. It implements retro.Reporter
// so it can be handed to the solver directly. Slow subscribers lose events
// rather than stall the solver.
type Hub struct {
	mu      sync.Mutex
	subs    map[chan Event]struct{}
	history []Event // class_done and finished events of the current run
	runID   uuid.UUID
	dropped uint64
	log     zerolog.Logger
	now     func() time.Time
}

var _ retro.Reporter = (*Hub)(nil)

// NewHub creates an empty hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		subs: make(map[chan Event]struct{}),
		log:  log.With().Str("component", "hub").Logger(),
		now:  time.Now,
	}
}

// Subscribe registers a subscriber with room for buf pending events. The
// returned function unsubscribes and closes the channel; it may be called
// more than once.
func (h *Hub) Subscribe(buf int) (<-chan Event, func()) {
	_, ch, cancel := h.subscribe(buf, false)
	return ch, cancel
}

// SubscribeWithSnapshot is Subscribe plus the Snapshot taken at the moment
// of registration: every event is either in the snapshot or on the channel,
// never both.
func (h *Hub) SubscribeWithSnapshot(buf int) ([]Event, <-chan Event, func()) {
	return h.subscribe(buf, true)
}

func (h *Hub) subscribe(buf int, snapshot bool) ([]Event, <-chan Event, func()) {
	ch := make(chan Event, buf)
	var snap []Event
	h.mu.Lock()
	if snapshot {
		snap = append([]Event(nil), h.history...)
	}
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return snap, ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Snapshot returns the finished classes of the current run, oldest first,
// followed by the finished event once the run is over.
func (h *Hub) Snapshot() []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Event(nil), h.history...)
}

// RunID returns the run the hub last heard from.
func (h *Hub) RunID() uuid.UUID {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.runID
}

// Dropped returns the number of events lost to full subscriber buffers.
func (h *Hub) Dropped() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}

func (h *Hub) publish(ev Event) {
	ev.Time = h.now()

	h.mu.Lock()
	defer h.mu.Unlock()
	if ev.RunID != h.runID {
		h.runID = ev.RunID
		h.history = nil
	}
	if ev.Type == EventClassDone || ev.Type == EventFinished {
		h.history = append(h.history, ev)
	}
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
			h.dropped++
			h.log.Debug().Str("event", ev.Type).Msg("subscriber too slow, event dropped")
		}
	}
}

func (h *Hub) ClassStarted(id uuid.UUID, seeds int, boards uint64) {
	h.publish(Event{Type: EventClassStarted, RunID: id, Seeds: seeds, Boards: boards})
}

func (h *Hub) LevelDone(id uuid.UUID, seeds, level int, stabilized uint64) {
	h.publish(Event{Type: EventLevelDone, RunID: id, Seeds: seeds, Level: level, Stabilized: stabilized})
}

func (h *Hub) ClassDone(c retro.ClassSummary) {
	h.publish(Event{Type: EventClassDone, RunID: c.RunID, Seeds: c.Seeds, Boards: c.Boards, Class: &c})
}

func (h *Hub) Finished(s retro.Summary) {
	h.publish(Event{Type: EventFinished, RunID: s.RunID, Boards: s.Boards, Summary: &s})
}
