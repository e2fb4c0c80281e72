package runner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"voxelshelter.ai/internal/shelter"
)

// Session is one build invocation. It is the build's TaskControl and Messenger.
type Session struct {
	ID      string
	AgentID string
	Kind    Kind
	Started time.Time

	ctx    context.Context
	cancel context.CancelCauseFunc
	obs    Observer

	ascent atomic.Bool
	manual atomic.Bool

	mu          sync.Mutex
	pauseReason string
	messages    []string
	result      shelter.Result
	done        chan struct{}
}

func (s *Session) RequestPause(reason string) {
	s.mu.Lock()
	s.pauseReason = reason
	s.mu.Unlock()
}

func (s *Session) FlagManualResume() { s.manual.Store(true) }

func (s *Session) AscentMode() bool { return s.ascent.Load() }

func (s *Session) Say(msg string) {
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
	if s.obs != nil {
		s.obs.Status(s, msg)
	}
}

// ManualResume reports whether a watchdog asked for an operator to resume.
func (s *Session) ManualResume() bool { return s.manual.Load() }

// PauseReason is the reason of a watchdog or operator pause, empty otherwise.
func (s *Session) PauseReason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pauseReason != "" {
		return s.pauseReason
	}
	var pe *shelter.PauseError
	if errors.As(context.Cause(s.ctx), &pe) {
		return pe.Reason
	}
	return ""
}

func (s *Session) Messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.messages...)
}

func (s *Session) Done() <-chan struct{} { return s.done }

// Result is valid once Done is closed.
func (s *Session) Result() shelter.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Wait blocks until the session finishes or ctx ends.
func (s *Session) Wait(ctx context.Context) (shelter.Result, error) {
	select {
	case <-s.done:
		return s.Result(), nil
	case <-ctx.Done():
		return shelter.Result{}, ctx.Err()
	}
}

func (s *Session) finish(res shelter.Result) {
	s.mu.Lock()
	s.result = res
	s.mu.Unlock()
	close(s.done)
}
