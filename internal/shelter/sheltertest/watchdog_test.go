package sheltertest

import (
	"context"
	"testing"

	"voxelshelter.ai/internal/shelter"
	"voxelshelter.ai/internal/shelter/geom"
)

func (h *Harness) watchdogs(plan *geom.BuildPlan) *shelter.Watchdogs {
	wd := &shelter.Watchdogs{
		World:    h.W,
		Agent:    h.Agent,
		Controls: h.Controls,
		Clock:    h.W.Clock(),
		Tasks:    h.Tasks,
		Messages: h.Messages,
		Events:   h.Events,
		Logger:   h.Logger,
		Config:   h.Config,
		State:    h.Emergency.For(h.Agent.ID()),
	}
	if plan != nil {
		wd.Plan, wd.HasPlan = *plan, true
	}
	return wd
}

func (h *Harness) stepTicks(n int) {
	for i := 0; i < n; i++ {
		h.W.StepOnce()
	}
}

func TestInWallSnapsAfterPersisting(t *testing.T) {
	stuck := geom.P(5, 60, 5)
	h := NewHarness(t, Options{Spawn: &stuck})
	wd := h.watchdogs(nil)
	ctx := context.Background()

	if !h.Agent.InsideWall() {
		t.Fatalf("agent should start inside stone")
	}
	if got := wd.CheckInWall(ctx); got != shelter.WatchNone {
		t.Fatalf("first check got %v want none", got)
	}
	h.stepTicks(10) // 500ms, below the persistence window
	if got := wd.CheckInWall(ctx); got != shelter.WatchNone {
		t.Fatalf("early check got %v want none", got)
	}
	h.stepTicks(10)
	if got := wd.CheckInWall(ctx); got != shelter.WatchSnapped {
		t.Fatalf("persisted check got %v want snapped", got)
	}
	if got := h.Agent.BlockPos(); got != geom.P(5, 65, 5) {
		t.Fatalf("snapped to %s want 5,65,5", got)
	}
	if safe, ok := wd.State.LastSafe(); !ok || safe != geom.P(5, 65, 5) {
		t.Fatalf("last safe got %s %v", safe, ok)
	}

	// Stuck again inside the cooldown: no second snap.
	h.Agent.Snap(stuck)
	wd.CheckInWall(ctx)
	h.stepTicks(20)
	if got := wd.CheckInWall(ctx); got != shelter.WatchNone {
		t.Fatalf("cooldown check got %v want none", got)
	}
	if h.Tasks.PauseCount() != 0 {
		t.Fatalf("in-wall snap must not pause")
	}
}

func TestInWallIgnoredInAscentMode(t *testing.T) {
	stuck := geom.P(5, 60, 5)
	h := NewHarness(t, Options{Spawn: &stuck})
	h.Tasks.Ascent = true
	wd := h.watchdogs(nil)
	wd.CheckInWall(context.Background())
	h.stepTicks(40)
	if got := wd.CheckInWall(context.Background()); got != shelter.WatchNone {
		t.Fatalf("got %v want none in ascent mode", got)
	}
}

func TestInWallPausesWithoutSafeCell(t *testing.T) {
	stuck := geom.P(5, 40, 5)
	h := NewHarness(t, Options{Spawn: &stuck})
	wd := h.watchdogs(nil)
	wd.CheckInWall(context.Background())
	h.stepTicks(20)
	if got := wd.CheckInWall(context.Background()); got != shelter.WatchPaused {
		t.Fatalf("got %v want paused", got)
	}
	if h.Tasks.PauseCount() != 1 {
		t.Fatalf("pauses got %d want 1", h.Tasks.PauseCount())
	}
}

func TestDeepWatchdogFootprintExemption(t *testing.T) {
	p := geom.P(0, 62, 0)
	h := NewHarness(t, Options{Spawn: &p})
	plan := smallPlan()
	wd := h.watchdogs(&plan)
	if got := wd.CheckDeep(); got != shelter.WatchNone {
		t.Fatalf("got %v want none inside the footprint", got)
	}
}

func TestDeepWatchdogFiresOncePerCooldown(t *testing.T) {
	p := geom.P(20, 40, 20)
	h := NewHarness(t, Options{Spawn: &p})
	h.Fill([]geom.Pos{p, p.Up(1)}, "AIR")
	plan := smallPlan()
	wd := h.watchdogs(&plan)
	if got := wd.CheckDeep(); got != shelter.WatchPaused {
		t.Fatalf("first got %v want paused", got)
	}
	if got := wd.CheckDeep(); got != shelter.WatchNone {
		t.Fatalf("second got %v want none", got)
	}
	h.stepTicks(1200) // 60s
	if got := wd.CheckDeep(); got != shelter.WatchPaused {
		t.Fatalf("after cooldown got %v want paused", got)
	}
	if h.Tasks.PauseCount() != 2 || h.Tasks.ManualResume != 2 {
		t.Fatalf("pauses %d manual %d want 2 and 2", h.Tasks.PauseCount(), h.Tasks.ManualResume)
	}
}
