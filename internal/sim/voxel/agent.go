package voxel

import (
	"fmt"
	"math"
	"time"

	"voxelshelter.ai/internal/shelter/geom"
)

const (
	agentHalfWidth = 0.3
	agentHeight    = 1.8
	eyeHeight      = 1.62
)

type agent struct {
	id       string
	name     string
	pos      geom.Vec3 // feet, column centered
	vel      geom.Vec3
	onGround bool
	sneaking bool
	facing   geom.Direction
	fall     float64
	health   int
	inv      map[string]int

	lastObstruct uint64 // tick+1 of the latest obstruction damage, 0 if none

	path      []geom.Pos
	walkTicks int
}

type JoinSpec struct {
	Name      string
	Spawn     *geom.Pos // feet cell; nil spawns on the surface at 0,0
	Facing    geom.Direction
	Inventory map[string]int
}

// Join adds an agent and returns its id.
func (w *World) Join(spec JoinSpec) string {
	if w.running.Load() {
		var id string
		w.do(func() { id = w.joinLocked(spec) })
		return id
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.joinLocked(spec)
}

func (w *World) joinLocked(spec JoinSpec) string {
	w.nextID++
	id := fmt.Sprintf("A%d", w.nextID)
	spawn := geom.P(0, 0, 0)
	if spec.Spawn != nil {
		spawn = *spec.Spawn
	} else {
		c, lx, lz := w.chunkFor(0, 0)
		spawn.Y = int(c.topMotion[lx+lz*16]) + 1
	}
	a := &agent{
		id:     id,
		name:   spec.Name,
		facing: spec.Facing,
		health: 20,
		inv:    map[string]int{},
	}
	for k, v := range spec.Inventory {
		if v > 0 {
			a.inv[k] = v
		}
	}
	a.pos = feetCenter(spawn)
	a.onGround = w.supportedLocked(a)
	w.agents[id] = a
	w.order = append(w.order, id)
	return id
}

func (w *World) Leave(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.agents[id]; !ok {
		return
	}
	delete(w.agents, id)
	for i, v := range w.order {
		if v == id {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
	kept := w.mines[:0]
	for _, m := range w.mines {
		if m.agent == id {
			m.finish(false)
			continue
		}
		kept = append(kept, m)
	}
	w.mines = kept
}

func feetCenter(p geom.Pos) geom.Vec3 {
	return geom.Vec3{X: float64(p.X) + 0.5, Y: float64(p.Y), Z: float64(p.Z) + 0.5}
}

func (a *agent) blockPos() geom.Pos {
	// Feet resting on a block top sit exactly on an integer.
	return geom.Vec3{X: a.pos.X, Y: a.pos.Y + 1e-6, Z: a.pos.Z}.Block()
}

func (a *agent) eye() geom.Vec3 { return geom.Vec3{X: a.pos.X, Y: a.pos.Y + eyeHeight, Z: a.pos.Z} }

// overlaps reports whether the agent's box intersects cell p.
func (a *agent) overlaps(p geom.Pos) bool {
	if float64(p.X+1) <= a.pos.X-agentHalfWidth || float64(p.X) >= a.pos.X+agentHalfWidth {
		return false
	}
	if float64(p.Z+1) <= a.pos.Z-agentHalfWidth || float64(p.Z) >= a.pos.Z+agentHalfWidth {
		return false
	}
	return float64(p.Y+1) > a.pos.Y+1e-6 && float64(p.Y) < a.pos.Y+agentHeight-1e-6
}

func (w *World) insideWallLocked(a *agent) bool {
	feet := a.blockPos()
	head := geom.Vec3{X: a.pos.X, Y: a.pos.Y + eyeHeight, Z: a.pos.Z}.Block()
	return w.blockLocked(feet).Solid || w.blockLocked(head).Solid
}

func (w *World) supportedLocked(a *agent) bool {
	if math.Abs(a.pos.Y-math.Round(a.pos.Y)) > 1e-6 {
		return false
	}
	below := geom.P(a.blockPos().X, int(math.Round(a.pos.Y))-1, a.blockPos().Z)
	return w.blockLocked(below).Solid
}

func (w *World) timeAt(tick uint64) time.Time {
	return w.epoch.Add(time.Duration(tick) * w.cfg.TickDuration)
}

// Handle binds an agent id to the world. It implements the agent-facing
// capabilities the builder consumes.
type Handle struct {
	w  *World
	id string
}

func (w *World) Handle(id string) *Handle { return &Handle{w: w, id: id} }

func (h *Handle) World() *World { return h.w }

func (h *Handle) ID() string { return h.id }

func (h *Handle) with(fn func(a *agent)) bool {
	h.w.mu.Lock()
	defer h.w.mu.Unlock()
	a := h.w.agents[h.id]
	if a == nil {
		return false
	}
	fn(a)
	return true
}

func (h *Handle) Position() geom.Vec3 {
	var v geom.Vec3
	h.with(func(a *agent) { v = a.pos })
	return v
}

func (h *Handle) EyePosition() geom.Vec3 {
	var v geom.Vec3
	h.with(func(a *agent) { v = a.eye() })
	return v
}

func (h *Handle) BlockPos() geom.Pos {
	var p geom.Pos
	h.with(func(a *agent) { p = a.blockPos() })
	return p
}

func (h *Handle) Velocity() geom.Vec3 {
	var v geom.Vec3
	h.with(func(a *agent) { v = a.vel })
	return v
}

func (h *Handle) OnGround() bool {
	var ok bool
	h.with(func(a *agent) { ok = a.onGround })
	return ok
}

func (h *Handle) Sneaking() bool {
	var ok bool
	h.with(func(a *agent) { ok = a.sneaking })
	return ok
}

func (h *Handle) Facing() geom.Direction {
	d := geom.North
	h.with(func(a *agent) { d = a.facing })
	return d
}

func (h *Handle) InsideWall() bool {
	var ok bool
	h.with(func(a *agent) { ok = h.w.insideWallLocked(a) })
	return ok
}

// LastObstructed is the time of the latest suffocation damage, zero if none.
func (h *Handle) LastObstructed() time.Time {
	var t time.Time
	h.with(func(a *agent) {
		if a.lastObstruct > 0 {
			t = h.w.timeAt(a.lastObstruct - 1)
		}
	})
	return t
}

func (h *Handle) FallDistance() float64 {
	var f float64
	h.with(func(a *agent) { f = a.fall })
	return f
}

func (h *Handle) Health() int {
	var n int
	h.with(func(a *agent) { n = a.health })
	return n
}

func (h *Handle) CountItems(ids ...string) int {
	n := 0
	h.with(func(a *agent) {
		for _, id := range ids {
			n += a.inv[id]
		}
	})
	return n
}

func (h *Handle) Give(item string, n int) {
	h.with(func(a *agent) {
		a.inv[item] += n
		if a.inv[item] <= 0 {
			delete(a.inv, item)
		}
	})
}

func (h *Handle) Inventory() map[string]int {
	out := map[string]int{}
	h.with(func(a *agent) {
		for k, v := range a.inv {
			out[k] = v
		}
	})
	return out
}
