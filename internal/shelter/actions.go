package shelter

import (
	"context"
	"math"
	"sort"
	"time"

	"voxelshelter.ai/internal/shelter/geom"
)

func (b *builder) inReach(p geom.Pos) bool {
	return b.env.Agent.EyePosition().DistSq(p.Center()) <= b.cfg.Reach*b.cfg.Reach
}

// occupied reports whether the agent's body overlaps cell p.
func (b *builder) occupied(p geom.Pos) bool {
	pos := b.env.Agent.Position()
	col := pos.Block()
	if p.X != col.X || p.Z != col.Z {
		return false
	}
	lo := int(math.Floor(pos.Y + 1e-6))
	hi := int(math.Floor(pos.Y + 1.8 - 1e-6))
	return p.Y >= lo && p.Y <= hi
}

func (b *builder) sleep(ctx context.Context, d time.Duration) bool {
	return b.env.Clock.Sleep(ctx, d) == nil
}

// waitFor polls cond until it holds or timeout elapses.
func (b *builder) waitFor(ctx context.Context, timeout time.Duration, cond func() bool) bool {
	deadline := b.env.Clock.Now().Add(timeout)
	for {
		if cond() {
			return true
		}
		if ctx.Err() != nil || b.env.Clock.Now().After(deadline) {
			return false
		}
		if !b.sleep(ctx, b.cfg.PollInterval) {
			return false
		}
	}
}

func (b *builder) hasMaterial() bool {
	return b.env.Agent.CountItems(b.cfg.BuildBlocks...) > 0
}

// supportFace picks the face of a solid neighbor to place against.
func (b *builder) supportFace(p geom.Pos) geom.Direction {
	for _, d := range []geom.Direction{geom.Down, geom.North, geom.East, geom.South, geom.West, geom.Up} {
		if b.env.World.BlockAt(p.Offset(d, 1)).Solid {
			return d
		}
	}
	return geom.Down
}

// placeBlock fills p with building material. A cell that is already solid
// counts as done without any call.
func (b *builder) placeBlock(ctx context.Context, p geom.Pos) bool {
	if !b.q.Missing(p) {
		return true
	}
	return b.placeItem(ctx, p, b.cfg.BuildBlocks)
}

func (b *builder) placeItem(ctx context.Context, p geom.Pos, items []string) bool {
	if b.halted(ctx) {
		return false
	}
	if !b.inReach(p) {
		b.c.ReachFailures++
		return false
	}
	if b.env.Agent.CountItems(items...) == 0 {
		b.c.NoMaterial++
		return false
	}
	b.c.Attempted++
	b.env.Controls.FaceTowards(p)
	ok := b.env.Controls.Place(ctx, p, b.supportFace(p), items)
	if ok {
		b.c.Placed++
	}
	b.emit(EventPlace, &p, ok, "")
	b.sleep(ctx, b.cfg.PlaceDelay)
	return ok
}

// mine clears p. Passable cells succeed without a call; fluids, doors, block
// entities and protected blocks are never mined.
func (b *builder) mine(ctx context.Context, p geom.Pos) bool {
	blk := b.env.World.BlockAt(p)
	if blk.Fluid {
		return false
	}
	if !blk.Solid {
		return true
	}
	if blk.Protected || blk.Door || blk.Entity {
		return false
	}
	if !b.inReach(p) {
		b.c.ReachFailures++
		return false
	}
	for attempt := 0; attempt < b.cfg.MineRetries; attempt++ {
		if b.halted(ctx) {
			return false
		}
		if attempt > 0 && !b.inReach(p) {
			b.c.ReachFailures++
			return false
		}
		b.env.Controls.FaceTowards(p)
		if b.awaitMine(ctx, p, b.env.Controls.Mine(ctx, p)) {
			b.c.Mined++
			b.emit(EventMine, &p, true, blk.ID)
			return true
		}
	}
	b.c.MineFailures++
	b.emit(EventMine, &p, false, blk.ID)
	return false
}

func (b *builder) awaitMine(ctx context.Context, p geom.Pos, fut <-chan bool) bool {
	deadline := b.env.Clock.Now().Add(b.cfg.MineTimeout)
	for {
		select {
		case ok := <-fut:
			return ok && !b.env.World.BlockAt(p).Solid
		default:
		}
		if b.env.Clock.Now().After(deadline) {
			b.log.Printf("MINE_TIMEOUT agent=%s pos=%s", b.env.Agent.ID(), p)
			return false
		}
		if !b.sleep(ctx, b.cfg.PollInterval) {
			return false
		}
	}
}

// placeReachable places every missing in-reach target, lowest first, then
// nearest first. It stops early when material runs out.
func (b *builder) placeReachable(ctx context.Context, targets []geom.Pos) int {
	eye := b.env.Agent.EyePosition()
	type cand struct {
		p geom.Pos
		d float64
	}
	var cands []cand
	for _, p := range targets {
		if !b.q.Missing(p) || !b.inReach(p) || b.occupied(p) {
			continue
		}
		cands = append(cands, cand{p: p, d: eye.DistSq(p.Center())})
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].p.Y != cands[j].p.Y {
			return cands[i].p.Y < cands[j].p.Y
		}
		return cands[i].d < cands[j].d
	})
	n := 0
	for _, c := range cands {
		if b.halted(ctx) {
			break
		}
		if !b.q.Missing(c.p) {
			continue
		}
		if !b.hasMaterial() {
			b.c.NoMaterial++
			break
		}
		if b.placeItem(ctx, c.p, b.cfg.BuildBlocks) {
			n++
		}
	}
	return n
}

// stance holds the agent still and crouched for precise placement.
type stance struct {
	b         *builder
	prevSneak bool
}

func (b *builder) stabilize() stance {
	s := stance{b: b, prevSneak: b.env.Agent.Sneaking()}
	b.env.Controls.Halt()
	b.env.Controls.SetSneaking(true)
	return s
}

func (s stance) release() { s.b.env.Controls.SetSneaking(s.prevSneak) }
