package shelter

import (
	"context"

	"voxelshelter.ai/internal/mathx"
	"voxelshelter.ai/internal/shelter/geom"
)

// ringScanAhead bounds how far past a blocked stride the router looks.
const ringScanAhead = 6

// routeRing walks the ground ring around the footprint toward dest, in the
// shorter rotational direction, hopping several ring cells at a time. It
// reports whether the agent ended up on dest.
func (b *builder) routeRing(ctx context.Context, dest geom.Pos) bool {
	ring := b.plan.GroundRing(b.cfg.RingOffset)
	n := len(ring)
	from := geom.NearestIndex(ring, b.env.Agent.BlockPos())
	to := geom.NearestIndex(ring, dest)
	if from < 0 || to < 0 {
		return false
	}
	dir, remaining := 1, (to-from+n)%n
	if remaining > n/2 {
		dir, remaining = -1, n-remaining
	}
	maxHops := mathx.MinInt(b.cfg.RingMaxHops, mathx.MaxInt(8, remaining+4))
	stride := b.cfg.RingStride
	idx := from
	b.log.Printf("RING_ROUTE agent=%s from=%d to=%d dir=%d cells=%d", b.env.Agent.ID(), from, to, dir, remaining)

	for hop := 0; hop < maxHops && remaining > 0; hop++ {
		if b.halted(ctx) {
			return false
		}
		b.checkpoint(ctx)
		moved := 0
		limit := mathx.MinInt(remaining, stride+ringScanAhead)
		for k := mathx.MinInt(stride, remaining); k <= limit && moved == 0; k++ {
			if b.ringHop(ctx, ring[mathx.Mod(idx+dir*k, n)]) {
				moved = k
			}
		}
		if moved == 0 {
			if stride == 1 {
				b.log.Printf("RING_STUCK agent=%s idx=%d", b.env.Agent.ID(), idx)
				return false
			}
			stride = mathx.MaxInt(1, stride/2)
			continue
		}
		idx = mathx.Mod(idx+dir*moved, n)
		remaining -= moved
		stride = b.cfg.RingStride
	}
	if remaining > 0 {
		return false
	}
	return b.moveWaypoint(ctx, dest)
}

func (b *builder) ringHop(ctx context.Context, cell geom.Pos) bool {
	wp, ok := b.ringStand(ctx, cell)
	if !ok {
		return false
	}
	return b.moveWaypoint(ctx, wp)
}

// ringStand resolves a ring cell to a standable waypoint outside the walls.
func (b *builder) ringStand(ctx context.Context, cell geom.Pos) (geom.Pos, bool) {
	if !b.q.Standable(cell) {
		b.clearStandColumn(ctx, cell)
	}
	if b.q.Standable(cell) {
		return cell, true
	}
	p, ok := b.q.NearbyStandable(cell, 2)
	if !ok || !b.plan.Outside(p) {
		return geom.Pos{}, false
	}
	return p, true
}

// clearStandColumn mines what obstructs a stand cell: the column up to three
// above it and the shoulder cells beside the body.
func (b *builder) clearStandColumn(ctx context.Context, stand geom.Pos) {
	try := func(p geom.Pos) {
		if b.isBlueprint(p) || b.plan.InFootprint(p) || !b.inReach(p) {
			return
		}
		if b.env.World.BlockAt(p).Solid {
			b.mine(ctx, p)
		}
	}
	for dy := 0; dy <= 3; dy++ {
		try(stand.Up(dy))
	}
	for _, d := range geom.Horizontal {
		try(stand.Offset(d, 1).Up(1))
		try(stand.Offset(d, 1).Up(2))
	}
}

func (b *builder) moveWaypoint(ctx context.Context, wp geom.Pos) bool {
	ag, ctl := b.env.Agent, b.env.Controls
	if ag.BlockPos() == wp {
		return true
	}
	if ctl.Step(ctx, wp) && ag.BlockPos() == wp {
		return true
	}
	if b.halted(ctx) {
		return false
	}
	return ctl.MoveTo(ctx, wp) && ag.BlockPos() == wp
}

// recoveryWalk shakes the agent loose after repeated movement failures: walk to
// the next ring corner ahead, then a few cells past it.
func (b *builder) recoveryWalk(ctx context.Context) bool {
	ring := b.plan.GroundRing(b.cfg.RingOffset)
	n := len(ring)
	idx := geom.NearestIndex(ring, b.env.Agent.BlockPos())
	if idx < 0 {
		return false
	}
	rr := mathx.MaxInt(2, b.plan.Radius+b.cfg.RingOffset)
	corner := -1
	for k := 1; k <= n; k++ {
		c := ring[(idx+k)%n]
		if mathx.AbsInt(c.X-b.plan.Center.X) == rr && mathx.AbsInt(c.Z-b.plan.Center.Z) == rr {
			corner = (idx + k) % n
			break
		}
	}
	if corner < 0 {
		return false
	}
	b.log.Printf("RECOVERY_WALK agent=%s corner=%s", b.env.Agent.ID(), ring[corner])
	b.ringHop(ctx, ring[corner])
	ok := 0
	for k := 1; k <= 4 && ok < 2; k++ {
		if b.halted(ctx) {
			break
		}
		if b.ringHop(ctx, ring[(corner+k)%n]) {
			ok++
		}
	}
	return ok > 0
}
