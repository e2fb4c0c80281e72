package voxel

import (
	"context"

	"voxelshelter.ai/internal/shelter/geom"
)

const (
	stepRadius    = 6
	stepBudget    = 1024
	moveRadius    = 64
	moveBudget    = 65536
	walkStallTick = 8
)

// Mine starts breaking the block at p. The returned channel yields once.
func (h *Handle) Mine(ctx context.Context, p geom.Pos) <-chan bool {
	resp := make(chan bool, 1)
	w := h.w
	w.mu.Lock()
	defer w.mu.Unlock()
	a := w.agents[h.id]
	id := w.blockIDLocked(p)
	info := w.defs[id]
	switch {
	case a == nil, info.view.Protected, info.view.Fluid:
		resp <- false
		close(resp)
		return resp
	case id == 0:
		resp <- true
		close(resp)
		return resp
	case a.eye().DistSq(p.Center()) > w.cfg.Reach*w.cfg.Reach:
		resp <- false
		close(resp)
		return resp
	}
	for _, m := range w.mines {
		if m.agent == h.id {
			// one dig at a time; the new target replaces the old
			m.finish(false)
		}
	}
	kept := w.mines[:0]
	for _, m := range w.mines {
		if !m.done {
			kept = append(kept, m)
		}
	}
	ticks := info.hardness
	if ticks <= 0 {
		ticks = 1
	}
	w.mines = append(kept, &mineJob{agent: h.id, pos: p, block: id, remaining: ticks, resp: resp})
	return resp
}

// Place puts the first available item of items at p. It requires reach, a
// replaceable target, a solid neighbor and no overlap with any agent.
func (h *Handle) Place(ctx context.Context, p geom.Pos, face geom.Direction, items []string) bool {
	w := h.w
	w.mu.Lock()
	defer w.mu.Unlock()
	a := w.agents[h.id]
	if a == nil || ctx.Err() != nil {
		return false
	}
	if p.Y < 0 || p.Y >= w.cfg.Height {
		return false
	}
	if a.eye().DistSq(p.Center()) > w.cfg.Reach*w.cfg.Reach {
		return false
	}
	cur := w.defs[w.blockIDLocked(p)].view
	if !cur.Air() && !cur.Replaceable {
		return false
	}
	for _, other := range w.agents {
		if other.overlaps(p) {
			return false
		}
	}
	supported := false
	for _, d := range []geom.Direction{geom.Down, geom.North, geom.East, geom.South, geom.West, geom.Up} {
		if w.blockLocked(p.Offset(d, 1)).Solid {
			supported = true
			break
		}
	}
	if !supported {
		return false
	}
	for _, item := range items {
		if a.inv[item] <= 0 {
			continue
		}
		def, ok := w.cats.Items.Defs[item]
		if !ok || def.PlaceAs == "" {
			continue
		}
		bdef := w.cats.Blocks.Defs[def.PlaceAs]
		if !bdef.Solid && !w.blockLocked(p.Down(1)).Solid {
			// torches and doors need a floor
			return false
		}
		a.inv[item]--
		if a.inv[item] == 0 {
			delete(a.inv, item)
		}
		w.setBlockLocked(p, w.cats.Blocks.Index[def.PlaceAs])
		return true
	}
	return false
}

// Step walks to a nearby cell.
func (h *Handle) Step(ctx context.Context, dest geom.Pos) bool {
	return h.walk(ctx, dest, stepRadius, stepBudget)
}

// MoveTo walks to a cell anywhere within the pathing radius.
func (h *Handle) MoveTo(ctx context.Context, dest geom.Pos) bool {
	return h.walk(ctx, dest, moveRadius, moveBudget)
}

func (h *Handle) walk(ctx context.Context, dest geom.Pos, radius, budget int) bool {
	w := h.w
	w.mu.Lock()
	a := w.agents[h.id]
	if a == nil {
		w.mu.Unlock()
		return false
	}
	start := a.blockPos()
	path, ok := w.findPathLocked(start, dest, radius, budget)
	if !ok {
		w.mu.Unlock()
		return false
	}
	a.path = path
	a.walkTicks = 0
	w.mu.Unlock()

	lastLeft, stalled := len(path), 0
	for {
		left, at, grounded := 0, geom.Pos{}, false
		if !h.with(func(a *agent) { left, at, grounded = len(a.path), a.blockPos(), a.onGround }) {
			return false
		}
		if left == 0 && grounded {
			return at == dest
		}
		if left == lastLeft {
			stalled++
		} else {
			lastLeft, stalled = left, 0
		}
		if stalled > walkStallTick*w.cfg.WalkTicksPerCell {
			h.Halt()
			return false
		}
		if err := w.waitTicks(ctx, 1); err != nil {
			h.Halt()
			return false
		}
	}
}

func (h *Handle) FaceTowards(p geom.Pos) {
	h.with(func(a *agent) {
		cur := a.blockPos()
		if d, ok := geom.DominantDirection(p.X-cur.X, p.Z-cur.Z); ok {
			a.facing = d
		}
	})
}

func (h *Handle) Jump() bool {
	ok := false
	h.with(func(a *agent) {
		if !a.onGround {
			return
		}
		a.path = nil
		a.vel.Y = h.w.cfg.JumpVelocity
		a.onGround = false
		ok = true
	})
	return ok
}

func (h *Handle) Halt() {
	h.with(func(a *agent) {
		a.path = nil
		a.walkTicks = 0
		a.vel.X, a.vel.Z = 0, 0
	})
}

func (h *Handle) SetSneaking(on bool) { h.with(func(a *agent) { a.sneaking = on }) }

// Snap teleports the agent's feet to p with no velocity or fall distance.
func (h *Handle) Snap(p geom.Pos) {
	h.with(func(a *agent) {
		a.path = nil
		a.pos = feetCenter(p)
		a.vel = geom.Vec3{}
		a.fall = 0
		a.onGround = h.w.supportedLocked(a)
	})
}
