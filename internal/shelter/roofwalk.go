package shelter

import (
	"context"

	"voxelshelter.ai/internal/shelter/buildstate"
	"voxelshelter.ai/internal/shelter/geom"
)

// roofWalk climbs a pillar beside the wall, steps onto the roof edge and
// places the roof from on top, walking footholds it places itself. Sides are
// tried starting opposite the door. It reports whether the roof is complete.
func (b *builder) roofWalk(ctx context.Context) bool {
	roof := b.bp.Roof
	if b.q.CountMissing(roof) == 0 {
		return true
	}
	b.exitThroughDoor(ctx)
	d := b.plan.Door
	for _, side := range []geom.Direction{d.Opposite(), d.Clockwise(), d.Clockwise().Opposite(), d} {
		if b.halted(ctx) {
			return false
		}
		if b.roofWalkFrom(ctx, side) {
			break
		}
	}
	return b.q.CountMissing(roof) == 0
}

// roofWalkFrom reports whether the agent got onto the roof from side.
func (b *builder) roofWalkFrom(ctx context.Context, side geom.Direction) bool {
	ag, ctl := b.env.Agent, b.env.Controls
	base := b.plan.Center.Offset(side, b.plan.Radius+1).WithY(b.plan.StandY())
	if !b.q.Standable(base) {
		b.clearStandColumn(ctx, base)
		b.placeBlock(ctx, base.Down(1))
	}
	if !b.q.Standable(base) || !b.goTo(ctx, base) {
		b.log.Printf("ROOF_SIDE_SKIP agent=%s side=%s base=%s", ag.ID(), side, base)
		return false
	}
	guard := b.stabilize()
	defer guard.release()

	pl := &pillar{base: base}
	target := b.plan.RoofY() + 1
	for steps := 0; steps <= b.plan.WallHeight+1 && ag.BlockPos().Y < target; steps++ {
		if !b.climbStep(ctx, pl, b.isBlueprint) {
			break
		}
		b.checkpoint(ctx)
	}
	top := base.WithY(target)
	edge := b.plan.Center.Offset(side, b.plan.Radius).WithY(b.plan.RoofY())
	entry := edge.Up(1)
	if ag.BlockPos() != top || !b.placeBlock(ctx, edge) || !ctl.Step(ctx, entry) || ag.BlockPos() != entry {
		b.log.Printf("ROOF_ENTRY_FAIL agent=%s side=%s at=%s", ag.ID(), side, ag.BlockPos())
		b.finishPillar(ctx, pl)
		return false
	}
	b.log.Printf("ROOF_ENTER agent=%s side=%s entry=%s", ag.ID(), side, entry)

	var route []geom.Pos
	if b.cfg.RoofRoute == "serpentine" {
		route = b.plan.SerpentineRoute(edge)
	} else {
		route = b.plan.RingRoute(edge, b.cfg.RoofRings)
	}
	targets := b.bp.All()
	for _, cell := range route {
		if b.halted(ctx) {
			break
		}
		b.checkpoint(ctx)
		b.placeReachable(ctx, targets)
		stand := cell.Up(1)
		if ag.BlockPos() == stand {
			continue
		}
		if b.q.Missing(cell) && !b.placeBlock(ctx, cell) {
			continue
		}
		ctl.Step(ctx, stand)
	}
	b.placePasses(ctx, targets)

	// Back to the pillar top for the descent.
	if ctx.Err() == nil && ag.BlockPos() != entry {
		ctl.Step(ctx, entry)
	}
	if ctx.Err() == nil && ag.BlockPos() == entry {
		ctl.Step(ctx, top)
	}
	b.finishPillar(ctx, pl)
	return true
}

// finishPillar tears the pillar down when the agent stands on it and records
// whatever is left as pending.
func (b *builder) finishPillar(ctx context.Context, pl *pillar) {
	if len(pl.blocks) == 0 {
		return
	}
	if b.env.Agent.BlockPos() == pl.top() {
		b.teardown(ctx, pl, b.bp.All())
	}
	if len(pl.blocks) > 0 {
		b.recordPending(pl.record())
	}
}

func (b *builder) recordPending(p buildstate.RoofPillar) {
	for i, q := range b.pending {
		if q.Base.X == p.Base.X && q.Base.Z == p.Base.Z {
			b.pending[i] = p
			b.savePending()
			return
		}
	}
	b.log.Printf("PILLAR_PENDING agent=%s base=%s top=%d", b.env.Agent.ID(), p.Base, p.TopY)
	b.pending = append(b.pending, p)
	b.savePending()
}

func (b *builder) savePending() {
	if err := b.store.SetPendingPillars(b.pending); err != nil {
		b.log.Printf("STATE_WRITE_ERR agent=%s key=pendingPillars err=%v", b.env.Agent.ID(), err)
	}
}

// sweepPending removes recorded leftover pillars from the ground, top down.
// Pillars that cannot be fully removed stay recorded with their new top.
func (b *builder) sweepPending(ctx context.Context) {
	if len(b.pending) == 0 {
		return
	}
	var left []buildstate.RoofPillar
	for _, p := range b.pending {
		if b.halted(ctx) {
			left = append(left, p)
			continue
		}
		if rest, ok := b.sweepPillar(ctx, p); !ok {
			left = append(left, rest)
		}
	}
	b.pending = left
	b.savePending()
}

func (b *builder) sweepPillar(ctx context.Context, p buildstate.RoofPillar) (buildstate.RoofPillar, bool) {
	blocks := p.Blocks()
	solid := 0
	for _, c := range blocks {
		if b.env.World.BlockAt(c).Solid {
			solid++
		}
	}
	if solid == 0 {
		return p, true
	}
	out := p.Base.Offset(b.outwardOf(p.Base), 1)
	if stand, ok := b.q.NearbyStandable(out, 2); ok && stand.WithY(0) != p.Base.WithY(0) {
		b.goTo(ctx, stand)
	}
	for i := len(blocks) - 1; i >= 0; i-- {
		c := blocks[i]
		if !b.env.World.BlockAt(c).Solid {
			continue
		}
		if !b.mine(ctx, c) {
			b.log.Printf("PILLAR_SWEEP_PARTIAL agent=%s base=%s top=%d", b.env.Agent.ID(), p.Base, c.Y+1)
			return buildstate.RoofPillar{Base: p.Base, TopY: c.Y + 1}, false
		}
		b.c.PillarRemoved++
		b.emit(EventPillar, &c, true, "sweep")
	}
	return p, true
}

// outwardOf is the horizontal direction pointing away from the plan center.
func (b *builder) outwardOf(p geom.Pos) geom.Direction {
	if d, ok := geom.DominantDirection(p.X-b.plan.Center.X, p.Z-b.plan.Center.Z); ok {
		return d
	}
	return b.plan.Door
}
