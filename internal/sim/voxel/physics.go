package voxel

import (
	"math"

	"voxelshelter.ai/internal/shelter/geom"
)

type mineJob struct {
	agent     string
	pos       geom.Pos
	block     uint16
	remaining int
	resp      chan bool
	done      bool
}

func (m *mineJob) finish(ok bool) {
	if m.done {
		return
	}
	m.done = true
	m.resp <- ok
	close(m.resp)
}

// StepOnce advances the world by one tick.
func (w *World) StepOnce() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stepLocked()
}

func (w *World) stepLocked() {
	w.tick++
	for _, id := range w.order {
		a := w.agents[id]
		w.walkLocked(a)
		w.gravityLocked(a)
		if w.insideWallLocked(a) && w.tick%uint64(w.cfg.InWallDamageTicks) == 0 {
			a.lastObstruct = w.tick + 1
			if a.health > 1 {
				a.health--
			}
		}
	}
	w.mineLocked()
}

func (w *World) walkLocked(a *agent) {
	if len(a.path) == 0 {
		return
	}
	a.walkTicks++
	if a.walkTicks < w.cfg.WalkTicksPerCell {
		return
	}
	a.walkTicks = 0
	next := a.path[0]
	cur := a.blockPos()
	if !a.onGround || !w.standableLocked(next) || !w.canTraverseLocked(cur, next) {
		a.path = nil
		return
	}
	a.path = a.path[1:]
	if d, ok := geom.DominantDirection(next.X-cur.X, next.Z-cur.Z); ok {
		a.facing = d
	}
	a.pos = feetCenter(next)
	a.vel = geom.Vec3{}
	a.fall = 0
	a.onGround = true
}

func (w *World) gravityLocked(a *agent) {
	if a.onGround && a.vel.Y <= 0 {
		if w.supportedLocked(a) {
			return
		}
		a.onGround = false
	}
	oldY := a.pos.Y
	newY := oldY + a.vel.Y
	col := a.blockPos()
	if a.vel.Y > 0 {
		// ceiling
		for cy := int(math.Floor(oldY+agentHeight-1e-6)) + 1; cy <= int(math.Floor(newY+agentHeight-1e-6)); cy++ {
			if w.blockLocked(col.WithY(cy)).Solid {
				newY = float64(cy) - agentHeight
				a.vel.Y = 0
				break
			}
		}
	} else {
		// floor: highest solid cell whose top lies in [newY, oldY]
		for top := int(math.Floor(oldY + 1e-6)); float64(top) >= newY-1e-9; top-- {
			if w.blockLocked(col.WithY(top - 1)).Solid {
				a.fall += oldY - float64(top)
				if a.fall > 3 && a.health > 1 {
					a.health -= int(a.fall - 3)
					if a.health < 1 {
						a.health = 1
					}
				}
				a.pos.Y = float64(top)
				a.vel.Y = 0
				a.fall = 0
				a.onGround = true
				return
			}
		}
	}
	if newY < oldY {
		a.fall += oldY - newY
	}
	a.pos.Y = newY
	a.vel.Y = (a.vel.Y - w.cfg.Gravity) * w.cfg.Drag
	if newY < -64 {
		// fell out of the world; park at the bottom
		a.pos.Y = 1
		a.vel.Y = 0
	}
}

func (w *World) mineLocked() {
	if len(w.mines) == 0 {
		return
	}
	kept := w.mines[:0]
	for _, m := range w.mines {
		a := w.agents[m.agent]
		cur := w.blockIDLocked(m.pos)
		switch {
		case a == nil:
			m.finish(false)
		case cur != m.block:
			// changed underneath the job
			m.finish(!w.defs[cur].view.Solid)
		case a.eye().DistSq(m.pos.Center()) > w.cfg.Reach*w.cfg.Reach:
			m.finish(false)
		default:
			m.remaining--
			if m.remaining > 0 {
				kept = append(kept, m)
				continue
			}
			drop := w.defs[cur].drops
			w.setBlockLocked(m.pos, 0)
			if drop != "" {
				a.inv[drop]++
			}
			m.finish(true)
		}
	}
	w.mines = kept
}
