// Package sheltertest drives shelter builds against the in-memory voxel world.
package sheltertest

import (
	"context"
	"io"
	"log"
	"sync"
	"testing"

	"voxelshelter.ai/internal/shelter"
	"voxelshelter.ai/internal/shelter/buildstate"
	"voxelshelter.ai/internal/shelter/geom"
	"voxelshelter.ai/internal/sim/catalogs"
	"voxelshelter.ai/internal/sim/voxel"
)

// Harness is a black-box helper: one flat world, one agent, recording fakes
// for every collaborator of a build. The world is never run; primitives step
// it themselves, so builds are deterministic.
type Harness struct {
	T        *testing.T
	W        *voxel.World
	Agent    *voxel.Handle
	Controls *Controls
	Bag      *buildstate.MemBag
	Events   *shelter.Recorder
	Tasks    *Tasks
	Messages *Messages

	Emergency *shelter.EmergencyRegistry
	Config    shelter.Config
	Logger    *log.Logger
}

// Options tune NewHarness. Zero values give a flat world and an agent at
// 0,65,0 facing north with an empty inventory.
type Options struct {
	Spawn     *geom.Pos
	Facing    geom.Direction
	Inventory map[string]int
	Config    *shelter.Config
	Verbose   bool
}

func NewHarness(t *testing.T, opts Options) *Harness {
	t.Helper()
	w, err := voxel.New(voxel.DefaultConfig(), catalogs.MustDefault())
	if err != nil {
		t.Fatalf("voxel.New: %v", err)
	}
	spawn := geom.P(0, 65, 0)
	if opts.Spawn != nil {
		spawn = *opts.Spawn
	}
	id := w.Join(voxel.JoinSpec{Name: "builder", Spawn: &spawn, Facing: opts.Facing, Inventory: opts.Inventory})
	agent := w.Handle(id)

	cfg := shelter.DefaultConfig()
	if opts.Config != nil {
		cfg = *opts.Config
	}
	var out io.Writer = io.Discard
	if opts.Verbose {
		out = testWriter{t}
	}
	return &Harness{
		T:         t,
		W:         w,
		Agent:     agent,
		Controls:  &Controls{Handle: agent},
		Bag:       buildstate.NewMemBag(),
		Events:    &shelter.Recorder{},
		Tasks:     &Tasks{},
		Messages:  &Messages{},
		Emergency: shelter.NewEmergencyRegistry(),
		Config:    cfg,
		Logger:    log.New(out, "[shelter] ", 0),
	}
}

// Env assembles the build environment.
func (h *Harness) Env() shelter.Env {
	return shelter.Env{
		World:     h.W,
		Agent:     h.Agent,
		Controls:  h.Controls,
		Clock:     h.W.Clock(),
		Tasks:     h.Tasks,
		Messages:  h.Messages,
		Bag:       h.Bag,
		Events:    h.Events,
		Logger:    h.Logger,
		Config:    h.Config,
		Emergency: h.Emergency,
	}
}

// Fill sets every cell to id.
func (h *Harness) Fill(cells []geom.Pos, id string) {
	h.T.Helper()
	for _, c := range cells {
		if err := h.W.SetBlock(c, id); err != nil {
			h.T.Fatalf("SetBlock %s: %v", c, err)
		}
	}
}

// Missing counts cells that still need a block.
func (h *Harness) Missing(cells []geom.Pos) int {
	n := 0
	for _, c := range cells {
		b := h.W.BlockAt(c)
		if b.Fluid || !b.Solid || b.Replaceable {
			n++
		}
	}
	return n
}

// Call is one recorded primitive call.
type Call struct {
	Pos      geom.Pos
	Eye      geom.Vec3
	Material int
	OK       bool
}

// Controls wraps the agent handle and records every mine and place call.
type Controls struct {
	*voxel.Handle

	mu     sync.Mutex
	mines  []Call
	places []Call

	// OnPlace runs after each place call.
	OnPlace func(c Call)
}

func (c *Controls) Mine(ctx context.Context, p geom.Pos) <-chan bool {
	c.mu.Lock()
	c.mines = append(c.mines, Call{Pos: p, Eye: c.Handle.EyePosition()})
	c.mu.Unlock()
	return c.Handle.Mine(ctx, p)
}

func (c *Controls) Place(ctx context.Context, p geom.Pos, face geom.Direction, items []string) bool {
	call := Call{Pos: p, Eye: c.Handle.EyePosition(), Material: c.Handle.CountItems(items...)}
	call.OK = c.Handle.Place(ctx, p, face, items)
	c.mu.Lock()
	c.places = append(c.places, call)
	hook := c.OnPlace
	c.mu.Unlock()
	if hook != nil {
		hook(call)
	}
	return call.OK
}

func (c *Controls) Mines() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Call(nil), c.mines...)
}

func (c *Controls) Places() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Call(nil), c.places...)
}

// Reset forgets recorded calls.
func (c *Controls) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mines, c.places = nil, nil
}

// Tasks records pause requests.
type Tasks struct {
	mu           sync.Mutex
	Pauses       []string
	ManualResume int
	Ascent       bool
}

func (t *Tasks) RequestPause(reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Pauses = append(t.Pauses, reason)
}

func (t *Tasks) FlagManualResume() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ManualResume++
}

func (t *Tasks) AscentMode() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.Ascent
}

func (t *Tasks) PauseCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.Pauses)
}

// Messages records status lines.
type Messages struct {
	mu    sync.Mutex
	lines []string
}

func (m *Messages) Say(msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines = append(m.lines, msg)
}

func (m *Messages) Lines() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.lines...)
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}
