package shelter

import (
	"context"

	"voxelshelter.ai/internal/shelter/geom"
)

// openDoorway clears both gap cells and the standing cells in front of the
// door on either side, then hangs a door when one is carried.
func (b *builder) openDoorway(ctx context.Context) bool {
	p := b.plan
	gap := p.DoorCells()
	out, in := p.OutsideFront(), p.InsideFront()
	work := []geom.Pos{gap[0], gap[1], out, out.Up(1), in, in.Up(1)}
	if b.countPassBlocked(work) > 0 || (b.carries(b.cfg.Door) && b.env.World.BlockAt(gap[0]).Air()) {
		if !b.inReach(gap[0]) {
			b.approachDoor(ctx)
		}
	}
	for _, c := range work {
		if b.halted(ctx) {
			return false
		}
		blk := b.env.World.BlockAt(c)
		if !blk.Solid || blk.Door || blk.Entity {
			continue
		}
		if !b.mine(ctx, c) {
			b.log.Printf("DOORWAY_BLOCKED agent=%s pos=%s block=%s", b.env.Agent.ID(), c, blk.ID)
		}
	}
	if b.carries(b.cfg.Door) && b.env.World.BlockAt(gap[0]).Air() && !b.occupied(gap[0]) && !b.occupied(gap[1]) {
		b.placeItem(ctx, gap[0], []string{b.cfg.Door})
	}
	return b.countPassBlocked(gap[:]) == 0
}

// countPassBlocked counts cells an agent could not walk through.
func (b *builder) countPassBlocked(cells []geom.Pos) int {
	n := 0
	for _, c := range cells {
		blk := b.env.World.BlockAt(c)
		if blk.Solid && !blk.Door {
			n++
		}
	}
	return n
}

func (b *builder) carries(item string) bool {
	return b.env.Agent.CountItems(item) > 0
}

// approachDoor walks to whichever side of the doorway is reachable, inside first.
func (b *builder) approachDoor(ctx context.Context) bool {
	for _, c := range []geom.Pos{b.plan.InsideFront(), b.plan.OutsideFront()} {
		stand, ok := b.q.NearbyStandable(c, 1)
		if ok && b.goTo(ctx, stand) {
			return true
		}
	}
	return false
}

// exitThroughDoor walks an agent standing inside out through the doorway.
func (b *builder) exitThroughDoor(ctx context.Context) bool {
	if !b.plan.Inside(b.env.Agent.BlockPos()) {
		return true
	}
	if !b.goTo(ctx, b.plan.InsideFront()) {
		return false
	}
	return b.goTo(ctx, b.plan.OutsideFront())
}

// lightInterior places torches at two opposite inner corners on the floor.
func (b *builder) lightInterior(ctx context.Context) int {
	if !b.carries(b.cfg.Torch) {
		return 0
	}
	p := b.plan
	in := p.Radius - 1
	spots := []geom.Pos{
		geom.P(p.Center.X+in, p.StandY(), p.Center.Z+in),
		geom.P(p.Center.X-in, p.StandY(), p.Center.Z-in),
	}
	n := 0
	for _, s := range spots {
		if b.halted(ctx) || !b.carries(b.cfg.Torch) {
			break
		}
		blk := b.env.World.BlockAt(s)
		if !blk.Air() || !b.env.World.BlockAt(s.Down(1)).Solid {
			continue
		}
		if !b.inReach(s) {
			stand, ok := b.q.NearbyStandable(p.Center.Up(1), 1)
			if !ok || !b.goTo(ctx, stand) {
				continue
			}
		}
		if b.occupied(s) {
			continue
		}
		if b.placeItem(ctx, s, []string{b.cfg.Torch}) {
			n++
		}
	}
	return n
}
