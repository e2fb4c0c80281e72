package shelter

import (
	"context"

	"voxelshelter.ai/internal/shelter/buildstate"
	"voxelshelter.ai/internal/shelter/geom"
)

// pillar is the scaffold column under the agent, bottom-up.
type pillar struct {
	base   geom.Pos
	blocks []geom.Pos
}

// top is the standing cell above the highest remaining block.
func (pl *pillar) top() geom.Pos {
	if n := len(pl.blocks); n > 0 {
		return pl.blocks[n-1].Up(1)
	}
	return pl.base
}

// record describes the blocks still standing, from the lowest one up.
func (pl *pillar) record() buildstate.RoofPillar {
	if len(pl.blocks) == 0 {
		return buildstate.RoofPillar{Base: pl.base, TopY: pl.base.Y}
	}
	return buildstate.RoofPillar{Base: pl.blocks[0], TopY: pl.top().Y}
}

// climbStep raises the agent one cell: jump, place a block into the cell the
// feet just left, land on it. protect vetoes mining the head clearance cell.
func (b *builder) climbStep(ctx context.Context, pl *pillar, protect func(geom.Pos) bool) bool {
	if b.halted(ctx) {
		return false
	}
	if !b.hasMaterial() {
		b.c.NoMaterial++
		return false
	}
	ag, ctl := b.env.Agent, b.env.Controls
	ctl.Halt()
	if !b.waitFor(ctx, b.cfg.GroundTimeout, ag.OnGround) {
		return false
	}
	start := ag.BlockPos()
	clear := start.Up(2)
	if b.env.World.BlockAt(clear).Solid {
		if protect != nil && protect(clear) {
			return false
		}
		if !b.mine(ctx, clear) {
			return false
		}
	}
	y0 := ag.Position().Y
	if !ctl.Jump() {
		return false
	}
	apex := b.waitFor(ctx, b.cfg.ApexTimeout, func() bool {
		return ag.Position().Y-y0 >= b.cfg.ApexMinGain && ag.Velocity().Y <= b.cfg.ApexMaxVelocity
	})
	if !apex || !b.placeBlock(ctx, start) {
		b.waitFor(ctx, b.cfg.LandTimeout, ag.OnGround)
		b.emit(EventPillar, &start, false, "up")
		return false
	}
	pl.blocks = append(pl.blocks, start)
	b.c.PillarBlocks++
	b.emit(EventPillar, &start, true, "up")
	return b.waitFor(ctx, b.cfg.LandTimeout, func() bool {
		return ag.OnGround() && ag.BlockPos().Y >= start.Y+1
	})
}

// teardown removes the pillar from the top. The block under the feet goes
// first; when it is missing or will not break, the other reachable pillar
// blocks are tried from the highest down. After every removal the agent may
// place reachable blueprint cells.
func (b *builder) teardown(ctx context.Context, pl *pillar, opportunistic []geom.Pos) bool {
	ag := b.env.Agent
	for len(pl.blocks) > 0 {
		if ctx.Err() != nil {
			return false
		}
		feet := ag.BlockPos()
		under := feet.Down(1)
		order := teardownOrder(pl.blocks, under, b.inReach)
		if len(order) == 0 {
			b.log.Printf("PILLAR_STRANDED agent=%s base=%s left=%d", ag.ID(), pl.base, len(pl.blocks))
			return false
		}
		removed := false
		for _, target := range order {
			if !b.mine(ctx, target) {
				if ctx.Err() != nil {
					return false
				}
				b.emit(EventPillar, &target, false, "down")
				continue
			}
			pl.remove(target)
			b.c.PillarRemoved++
			b.emit(EventPillar, &target, true, "down")
			if target == under {
				b.waitFor(ctx, b.cfg.LandTimeout, func() bool {
					return ag.OnGround() && ag.BlockPos().Y < feet.Y
				})
			}
			removed = true
			break
		}
		if !removed {
			b.log.Printf("PILLAR_STUCK agent=%s base=%s left=%d", ag.ID(), pl.base, len(pl.blocks))
			return false
		}
		if len(opportunistic) > 0 {
			b.placeReachable(ctx, opportunistic)
		}
	}
	return true
}

// teardownOrder lists the blocks to try: under first when it belongs to the
// pillar, then every other reachable block from the top down.
func teardownOrder(blocks []geom.Pos, under geom.Pos, reach func(geom.Pos) bool) []geom.Pos {
	var out []geom.Pos
	for _, c := range blocks {
		if c == under {
			out = append(out, c)
			break
		}
	}
	for i := len(blocks) - 1; i >= 0; i-- {
		if c := blocks[i]; c != under && reach(c) {
			out = append(out, c)
		}
	}
	return out
}

func (pl *pillar) remove(c geom.Pos) {
	for i, p := range pl.blocks {
		if p == c {
			pl.blocks = append(pl.blocks[:i], pl.blocks[i+1:]...)
			return
		}
	}
}
