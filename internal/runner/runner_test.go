package runner

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"voxelshelter.ai/internal/persistence/statedb"
	"voxelshelter.ai/internal/shelter"
	"voxelshelter.ai/internal/shelter/buildstate"
	"voxelshelter.ai/internal/shelter/geom"
	"voxelshelter.ai/internal/sim/catalogs"
	"voxelshelter.ai/internal/sim/voxel"
)

type recorder struct {
	mu       sync.Mutex
	status   []string
	events   int
	finished []shelter.Result
	history  []statedb.BuildRecord
}

func (r *recorder) Status(_ *Session, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = append(r.status, msg)
}

func (r *recorder) Event(*Session, shelter.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events++
}

func (r *recorder) Finished(_ *Session, res shelter.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, res)
}

func (r *recorder) RecordBuild(rec statedb.BuildRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = append(r.history, rec)
}

// gatedClock blocks every Sleep until the gate opens or the build is stopped.
type gatedClock struct {
	shelter.Clock
	gate    chan struct{}
	hit     chan struct{}
	hitOnce sync.Once
}

func (c *gatedClock) Sleep(ctx context.Context, d time.Duration) error {
	c.hitOnce.Do(func() { close(c.hit) })
	select {
	case <-c.gate:
	case <-ctx.Done():
		return ctx.Err()
	}
	return c.Clock.Sleep(ctx, d)
}

type fixture struct {
	w    *voxel.World
	body *voxel.Handle
	bag  *buildstate.MemBag
	rec  *recorder
	m    *Manager
}

func newFixture(t *testing.T, inv map[string]int, clock func(w *voxel.World) shelter.Clock) *fixture {
	t.Helper()
	w, err := voxel.New(voxel.DefaultConfig(), catalogs.MustDefault())
	if err != nil {
		t.Fatalf("voxel.New: %v", err)
	}
	spawn := geom.P(0, 65, 0)
	id := w.Join(voxel.JoinSpec{Name: "builder", Spawn: &spawn, Inventory: inv})
	f := &fixture{w: w, body: w.Handle(id), bag: buildstate.NewMemBag(), rec: &recorder{}}
	var c shelter.Clock = w.Clock()
	if clock != nil {
		c = clock(w)
	}
	f.m = NewManager(Deps{
		World:   w,
		Clock:   c,
		Bag:     f.bag,
		Config:  shelter.DefaultConfig(),
		History: f.rec,
	})
	return f
}

func smallHovel() Request {
	return Request{Kind: KindHovel, Shelter: shelter.Request{Radius: 2, WallHeight: 3, Door: "south"}}
}

func waitResult(t *testing.T, s *Session) shelter.Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	res, err := s.Wait(ctx)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	return res
}

func TestSessionRunsToCompletion(t *testing.T) {
	f := newFixture(t, map[string]int{"DIRT": 200, "TORCH": 4}, nil)
	s, err := f.m.Start(context.Background(), f.body, smallHovel(), f.rec)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if s.ID == "" {
		t.Fatalf("expected a session id")
	}
	res := waitResult(t, s)
	if !res.Success || res.Message != "Hovel complete!" {
		t.Fatalf("result: got %+v", res)
	}
	if _, ok := f.m.Active(f.body.ID()); ok {
		t.Fatalf("session still active after finish")
	}

	f.rec.mu.Lock()
	defer f.rec.mu.Unlock()
	if len(f.rec.finished) != 1 || f.rec.events == 0 {
		t.Fatalf("observer: finished=%d events=%d", len(f.rec.finished), f.rec.events)
	}
	if n := len(f.rec.status); n == 0 || f.rec.status[n-1] != "Hovel complete!" {
		t.Fatalf("status: got %v", f.rec.status)
	}
	if len(f.rec.history) != 1 || f.rec.history[0].SessionID != s.ID || !f.rec.history[0].Success {
		t.Fatalf("history: got %+v", f.rec.history)
	}
	if len(f.rec.history[0].Counters) == 0 {
		t.Fatalf("history counters missing")
	}
}

func gated(gc **gatedClock) func(w *voxel.World) shelter.Clock {
	return func(w *voxel.World) shelter.Clock {
		*gc = &gatedClock{Clock: w.Clock(), gate: make(chan struct{}), hit: make(chan struct{})}
		return *gc
	}
}

func TestBusyAndOperatorPause(t *testing.T) {
	var gc *gatedClock
	f := newFixture(t, map[string]int{"DIRT": 200, "TORCH": 4}, gated(&gc))
	s, err := f.m.Start(context.Background(), f.body, smallHovel(), nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-gc.hit

	if _, err := f.m.Start(context.Background(), f.body, smallHovel(), nil); !errors.Is(err, ErrBusy) {
		t.Fatalf("second Start: got %v want ErrBusy", err)
	}
	if err := f.m.Pause(f.body.ID(), "operator"); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	res := waitResult(t, s)
	if res.Success || res.Message != "Hovel paused: operator" {
		t.Fatalf("result: got %+v", res)
	}
	if s.PauseReason() != "operator" {
		t.Fatalf("pause reason: got %q", s.PauseReason())
	}
	st := buildstate.NewStore(f.bag, buildstate.KindHovel, f.body.ID(), nil)
	if _, ok := st.Signature(); !ok {
		t.Fatalf("paused build dropped its state")
	}
	if err := f.m.Pause(f.body.ID(), ""); !errors.Is(err, ErrNoSession) {
		t.Fatalf("Pause after finish: got %v want ErrNoSession", err)
	}
}

func TestCancel(t *testing.T) {
	var gc *gatedClock
	f := newFixture(t, map[string]int{"DIRT": 200}, gated(&gc))
	s, err := f.m.Start(context.Background(), f.body, smallHovel(), nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-gc.hit
	if err := f.m.SetAscent(f.body.ID(), true); err != nil || !s.AscentMode() {
		t.Fatalf("SetAscent: err=%v ascent=%v", err, s.AscentMode())
	}
	if err := f.m.Cancel(f.body.ID()); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if res := waitResult(t, s); res.Message != "Hovel cancelled." {
		t.Fatalf("result: got %q want Hovel cancelled.", res.Message)
	}
}

func TestBurrowSessionNeedsTorches(t *testing.T) {
	f := newFixture(t, nil, nil)
	s, err := f.m.Start(context.Background(), f.body, Request{Kind: KindBurrow}, f.rec)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	res := waitResult(t, s)
	if res.Success || !strings.Contains(res.Message, "torches") {
		t.Fatalf("result: got %+v", res)
	}
}

func TestStartRejectsUnknownKind(t *testing.T) {
	f := newFixture(t, nil, nil)
	if _, err := f.m.Start(context.Background(), f.body, Request{Kind: "castle"}, nil); !errors.Is(err, ErrBadKind) {
		t.Fatalf("Start: got %v want ErrBadKind", err)
	}
	if err := f.m.SetAscent("nobody", true); !errors.Is(err, ErrNoSession) {
		t.Fatalf("SetAscent: got %v want ErrNoSession", err)
	}
}

func TestShutdownCancelsSessions(t *testing.T) {
	var gc *gatedClock
	f := newFixture(t, map[string]int{"DIRT": 200}, gated(&gc))
	s, err := f.m.Start(context.Background(), f.body, smallHovel(), nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-gc.hit
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := f.m.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	select {
	case <-s.Done():
	default:
		t.Fatalf("session not finished after shutdown")
	}
}

func TestPlanPreviewsWithoutBuilding(t *testing.T) {
	f := newFixture(t, map[string]int{"DIRT": 10}, nil)
	plan, missing, err := f.m.Plan(f.body, shelter.Request{Radius: 9, Door: "west"})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if plan.Radius != 5 || plan.Door != geom.West || plan.Center != geom.P(0, 64, 0) {
		t.Fatalf("plan: got %+v", plan)
	}
	// The lowest wall ring sits in the solid floor layer of the flat world.
	cells := len(plan.Blueprint().All())
	if want := cells - 8*plan.Radius; missing != want {
		t.Fatalf("missing: got %d want %d of %d", missing, want, cells)
	}
	if f.body.CountItems("DIRT") != 10 {
		t.Fatalf("plan consumed material")
	}
}
