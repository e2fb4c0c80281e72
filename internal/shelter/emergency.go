package shelter

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"voxelshelter.ai/internal/shelter/geom"
	"voxelshelter.ai/internal/shelter/terrain"
)

// EmergencyState is the per-agent memory of the watchdogs. It outlives single
// build invocations.
type EmergencyState struct {
	mu          sync.Mutex
	inWallSince time.Time
	lastDeep    time.Time
	lastInWall  time.Time
	lastSafe    geom.Pos
	hasSafe     bool
}

// LastSafe returns the most recent position recorded as safe.
func (s *EmergencyState) LastSafe() (geom.Pos, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSafe, s.hasSafe
}

func (s *EmergencyState) setSafe(p geom.Pos) {
	s.mu.Lock()
	s.lastSafe, s.hasSafe = p, true
	s.mu.Unlock()
}

// EmergencyRegistry maps agent IDs to their watchdog state.
type EmergencyRegistry struct {
	mu sync.Mutex
	m  map[string]*EmergencyState
}

func NewEmergencyRegistry() *EmergencyRegistry {
	return &EmergencyRegistry{m: map[string]*EmergencyState{}}
}

func (r *EmergencyRegistry) For(agentID string) *EmergencyState {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.m[agentID]
	if s == nil {
		s = &EmergencyState{}
		r.m[agentID] = s
	}
	return s
}

type WatchOutcome int

const (
	WatchNone WatchOutcome = iota
	WatchSnapped
	WatchPaused
)

// Watchdogs detects the agent being trapped deep underground or inside solid
// blocks and reacts by pausing the task or snapping to a safe cell.
type Watchdogs struct {
	World    World
	Agent    Agent
	Controls Controls
	Clock    Clock
	Tasks    TaskControl
	Messages Messenger
	Events   EventSink
	Logger   *log.Logger
	Config   Config
	State    *EmergencyState

	// Plan is the site being built, if any.
	Plan    geom.BuildPlan
	HasPlan bool

	// Reason describes the last pause.
	Reason string
}

func (b *builder) watchdogs() *Watchdogs {
	return &Watchdogs{
		World:    b.env.World,
		Agent:    b.env.Agent,
		Controls: b.env.Controls,
		Clock:    b.env.Clock,
		Tasks:    b.env.Tasks,
		Messages: b.env.Messages,
		Events:   b.env.Events,
		Logger:   b.log,
		Config:   b.cfg,
		State:    b.em,
		Plan:     b.plan,
		HasPlan:  b.hasPlan,
	}
}

// RecordSafe remembers the current position when the agent stands on it safely.
func (w *Watchdogs) RecordSafe() {
	if !w.Agent.OnGround() || w.Agent.InsideWall() {
		return
	}
	p := w.Agent.BlockPos()
	if _, ok := terrain.FindSafeNear(w.World, p, 0); ok {
		w.State.setSafe(p)
	}
}

// CheckDeep pauses the task when the agent is far below both the build site
// and the local surface with no sky anywhere nearby. A position inside the
// footprint no lower than two cells under the floor is never deep.
func (w *Watchdogs) CheckDeep() WatchOutcome {
	if !w.HasPlan {
		return WatchNone
	}
	p := w.Agent.BlockPos()
	if w.Plan.InFootprint(p) && p.Y >= w.Plan.Center.Y-2 {
		return WatchNone
	}
	belowSite := w.Plan.Center.Y - p.Y
	belowSurface := terrain.DepthBelowSurface(w.World, p)
	if belowSite <= w.Config.DeepBelowSite || belowSurface <= w.Config.DeepBelowSurface {
		return WatchNone
	}
	if terrain.SkyNearby(w.World, p, w.Config.SkyProbeRadius, w.Config.SkyProbeStep) {
		return WatchNone
	}
	now := w.Clock.Now()
	w.State.mu.Lock()
	if !w.State.lastDeep.IsZero() && now.Sub(w.State.lastDeep) < w.Config.DeepCooldown {
		w.State.mu.Unlock()
		return WatchNone
	}
	w.State.lastDeep = now
	w.State.mu.Unlock()

	w.Reason = fmt.Sprintf("stuck deep underground at %s (%d below site, %d below surface)", p, belowSite, belowSurface)
	w.Tasks.FlagManualResume()
	w.Tasks.RequestPause(w.Reason)
	w.Messages.Say("Emergency: " + w.Reason + ". Pausing until resumed.")
	w.Logger.Printf("WATCHDOG_DEEP agent=%s pos=%s below_site=%d below_surface=%d", w.Agent.ID(), p, belowSite, belowSurface)
	w.emit(p, false, "deep")
	return WatchPaused
}

// CheckInWall snaps the agent to a safe cell once it has been obstructed for
// longer than the persistence window.
func (w *Watchdogs) CheckInWall(ctx context.Context) WatchOutcome {
	if ctx.Err() != nil || w.Tasks.AscentMode() {
		return WatchNone
	}
	now := w.Clock.Now()
	last := w.Agent.LastObstructed()
	stuck := w.Agent.InsideWall() || (!last.IsZero() && now.Sub(last) <= w.Config.ObstructWindow)

	s := w.State
	s.mu.Lock()
	if !stuck {
		s.inWallSince = time.Time{}
		s.mu.Unlock()
		return WatchNone
	}
	if s.inWallSince.IsZero() {
		s.inWallSince = now
		s.mu.Unlock()
		return WatchNone
	}
	if now.Sub(s.inWallSince) < w.Config.InWallPersist {
		s.mu.Unlock()
		return WatchNone
	}
	if !s.lastInWall.IsZero() && now.Sub(s.lastInWall) < w.Config.InWallCooldown {
		s.mu.Unlock()
		return WatchNone
	}
	s.lastInWall = now
	s.inWallSince = time.Time{}
	lastSafe, hasSafe := s.lastSafe, s.hasSafe
	s.mu.Unlock()

	p := w.Agent.BlockPos()
	dest, ok := terrain.FindSafeNear(w.World, p, w.Config.SafeSearchRadius)
	if !ok && hasSafe {
		dest, ok = terrain.FindSafeNear(w.World, lastSafe, w.Config.SafeSearchRadius)
	}
	if !ok && w.HasPlan {
		dest, ok = terrain.FindSafeNear(w.World, w.Plan.Center.Up(1), w.Config.CenterSafeRadius)
	}
	if !ok {
		w.Reason = fmt.Sprintf("trapped inside blocks at %s with no safe cell nearby", p)
		w.Tasks.RequestPause(w.Reason)
		w.Messages.Say("Emergency: " + w.Reason + ".")
		w.Logger.Printf("WATCHDOG_INWALL agent=%s pos=%s safe=none", w.Agent.ID(), p)
		w.emit(p, false, "in_wall")
		return WatchPaused
	}
	w.Controls.Snap(dest)
	w.State.setSafe(dest)
	w.Logger.Printf("WATCHDOG_INWALL agent=%s pos=%s snap=%s", w.Agent.ID(), p, dest)
	w.emit(dest, true, "in_wall")
	return WatchSnapped
}

func (w *Watchdogs) emit(p geom.Pos, ok bool, detail string) {
	if w.Events == nil {
		return
	}
	w.Events.Emit(Event{
		Time:   w.Clock.Now(),
		Agent:  w.Agent.ID(),
		Kind:   EventWatchdog,
		Pos:    &p,
		OK:     ok,
		Detail: detail,
	})
}
