package shelter

import (
	"sync"
	"time"

	"voxelshelter.ai/internal/shelter/geom"
)

// Event is one notable step of a build, recorded for replay and debugging.
type Event struct {
	Time   time.Time `json:"time"`
	Agent  string    `json:"agent"`
	Kind   string    `json:"kind"`
	Phase  string    `json:"phase,omitempty"`
	Pos    *geom.Pos `json:"pos,omitempty"`
	OK     bool      `json:"ok"`
	Detail string    `json:"detail,omitempty"`
}

const (
	EventPhase    = "PHASE"
	EventPlace    = "PLACE"
	EventMine     = "MINE"
	EventPillar   = "PILLAR"
	EventWatchdog = "WATCHDOG"
	EventResult   = "RESULT"
)

type EventSink interface {
	Emit(ev Event)
}

type NopSink struct{}

func (NopSink) Emit(Event) {}

// Recorder keeps events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Count returns how many events match kind and, when non-empty, phase.
func (r *Recorder) Count(kind, phase string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Kind == kind && (phase == "" || ev.Phase == phase) {
			n++
		}
	}
	return n
}
