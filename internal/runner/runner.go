// Package runner owns build sessions: at most one per agent, each running a
// shelter or burrow build on its own goroutine.
package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"voxelshelter.ai/internal/persistence/statedb"
	"voxelshelter.ai/internal/shelter"
	"voxelshelter.ai/internal/shelter/buildstate"
	"voxelshelter.ai/internal/shelter/geom"
	"voxelshelter.ai/internal/shelter/terrain"
)

var (
	ErrBusy      = errors.New("agent already has an active build")
	ErrNoSession = errors.New("no active build")
	ErrPaused    = errors.New("build paused")
	ErrCancelled = errors.New("build cancelled")
	ErrBadKind   = errors.New("unknown build kind")
)

type Kind string

const (
	KindHovel  Kind = "hovel"
	KindBurrow Kind = "burrow"
)

func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindHovel, KindBurrow:
		return Kind(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrBadKind, s)
}

type Request struct {
	Kind    Kind
	Shelter shelter.Request
}

// Body is the agent a session drives.
type Body interface {
	shelter.Agent
	shelter.Controls
}

// Observer receives session output. Calls come from the session goroutine.
type Observer interface {
	Status(s *Session, msg string)
	Event(s *Session, ev shelter.Event)
	Finished(s *Session, res shelter.Result)
}

type HistoryRecorder interface {
	RecordBuild(rec statedb.BuildRecord)
}

type Deps struct {
	World     shelter.World
	Clock     shelter.Clock
	Bag       buildstate.Bag
	Emergency *shelter.EmergencyRegistry
	Config    shelter.Config
	Logger    *log.Logger

	// Events returns the persistent sink for a session; nil disables the log.
	Events  func(sessionID string) shelter.EventSink
	History HistoryRecorder
}

type Manager struct {
	deps Deps
	log  *log.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	wg       sync.WaitGroup
}

func NewManager(d Deps) *Manager {
	if d.Logger == nil {
		d.Logger = log.New(io.Discard, "", 0)
	}
	if d.Bag == nil {
		d.Bag = buildstate.NewMemBag()
	}
	if d.Emergency == nil {
		d.Emergency = shelter.NewEmergencyRegistry()
	}
	return &Manager{deps: d, log: d.Logger, sessions: map[string]*Session{}}
}

// Start launches a build for body. It fails with ErrBusy while the agent has
// an unfinished session.
func (m *Manager) Start(parent context.Context, body Body, req Request, obs Observer) (*Session, error) {
	if _, err := ParseKind(string(req.Kind)); err != nil {
		return nil, err
	}
	agentID := body.ID()

	m.mu.Lock()
	if cur, ok := m.sessions[agentID]; ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: session %s", ErrBusy, cur.ID)
	}
	ctx, cancel := context.WithCancelCause(parent)
	s := &Session{
		ID:      uuid.NewString(),
		AgentID: agentID,
		Kind:    req.Kind,
		Started: time.Now().UTC(),
		ctx:     ctx,
		cancel:  cancel,
		obs:     obs,
		done:    make(chan struct{}),
	}
	m.sessions[agentID] = s
	m.wg.Add(1)
	m.mu.Unlock()

	m.log.Printf("SESSION_START id=%s agent=%s kind=%s resume=%v", s.ID, agentID, req.Kind, req.Shelter.Resume)
	go func() {
		defer m.wg.Done()
		m.run(s, body, req)
	}()
	return s, nil
}

func (m *Manager) run(s *Session, body Body, req Request) {
	env := shelter.Env{
		World:     m.deps.World,
		Agent:     body,
		Controls:  body,
		Clock:     m.deps.Clock,
		Tasks:     s,
		Messages:  s,
		Bag:       m.deps.Bag,
		Events:    m.sinkFor(s),
		Logger:    m.log,
		Config:    m.deps.Config,
		Emergency: m.deps.Emergency,
	}

	var res shelter.Result
	switch req.Kind {
	case KindBurrow:
		res = shelter.BuildBurrow(s.ctx, env)
	default:
		res = shelter.BuildShelter(s.ctx, env, req.Shelter)
	}
	s.cancel(nil)

	m.mu.Lock()
	if m.sessions[s.AgentID] == s {
		delete(m.sessions, s.AgentID)
	}
	m.mu.Unlock()

	s.finish(res)
	m.log.Printf("SESSION_END id=%s agent=%s kind=%s success=%v manual_resume=%v msg=%q",
		s.ID, s.AgentID, s.Kind, res.Success, s.ManualResume(), res.Message)
	if m.deps.History != nil {
		counters, _ := json.Marshal(res.Counters)
		m.deps.History.RecordBuild(statedb.BuildRecord{
			SessionID:  s.ID,
			Agent:      s.AgentID,
			Kind:       string(s.Kind),
			StartedAt:  s.Started,
			FinishedAt: time.Now().UTC(),
			Success:    res.Success,
			Resumed:    res.Resumed,
			Message:    res.Message,
			Counters:   counters,
		})
	}
	if s.obs != nil {
		s.obs.Finished(s, res)
	}
}

func (m *Manager) sinkFor(s *Session) shelter.EventSink {
	var sinks []shelter.EventSink
	if m.deps.Events != nil {
		if sink := m.deps.Events(s.ID); sink != nil {
			sinks = append(sinks, sink)
		}
	}
	if s.obs != nil {
		sinks = append(sinks, observerSink{s})
	}
	switch len(sinks) {
	case 0:
		return shelter.NopSink{}
	case 1:
		return sinks[0]
	}
	return fanout(sinks)
}

// Plan resolves the hovel plan a BUILD with req would use and counts the
// blueprint cells still missing. Nothing is built.
func (m *Manager) Plan(body Body, req shelter.Request) (geom.BuildPlan, int, error) {
	plan, err := shelter.Plan(shelter.Env{
		World:     m.deps.World,
		Agent:     body,
		Controls:  body,
		Clock:     m.deps.Clock,
		Bag:       m.deps.Bag,
		Logger:    m.log,
		Config:    m.deps.Config,
		Emergency: m.deps.Emergency,
	}, req)
	if err != nil {
		return plan, 0, err
	}
	cells := plan.Blueprint().All()
	return plan, terrain.NewQueries(m.deps.World, 0).CountMissing(cells), nil
}

// Active returns the agent's unfinished session.
func (m *Manager) Active(agentID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[agentID]
	return s, ok
}

func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Pause stops the agent's build at its next checkpoint; persisted progress is kept.
func (m *Manager) Pause(agentID, reason string) error {
	s, ok := m.Active(agentID)
	if !ok {
		return ErrNoSession
	}
	var pe *shelter.PauseError
	if errors.As(context.Cause(s.ctx), &pe) {
		return ErrPaused
	}
	if reason == "" {
		reason = "requested by operator"
	}
	m.log.Printf("SESSION_PAUSE id=%s agent=%s reason=%q", s.ID, agentID, reason)
	s.cancel(&shelter.PauseError{Reason: reason})
	return nil
}

func (m *Manager) Cancel(agentID string) error {
	s, ok := m.Active(agentID)
	if !ok {
		return ErrNoSession
	}
	m.log.Printf("SESSION_CANCEL id=%s agent=%s", s.ID, agentID)
	s.cancel(ErrCancelled)
	return nil
}

// SetAscent toggles ascent mode, which suspends the in-wall watchdog.
func (m *Manager) SetAscent(agentID string, on bool) error {
	s, ok := m.Active(agentID)
	if !ok {
		return ErrNoSession
	}
	s.ascent.Store(on)
	return nil
}

// Shutdown cancels every session and waits for them to finish or ctx to end.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	for _, s := range m.sessions {
		s.cancel(ErrCancelled)
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type observerSink struct{ s *Session }

func (o observerSink) Emit(ev shelter.Event) { o.s.obs.Event(o.s, ev) }

type fanout []shelter.EventSink

func (f fanout) Emit(ev shelter.Event) {
	for _, s := range f {
		s.Emit(ev)
	}
}
