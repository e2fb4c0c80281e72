package shelter

import (
	"context"
	"math"

	"voxelshelter.ai/internal/mathx"
	"voxelshelter.ai/internal/shelter/geom"
)

// placeFromStations visits the station seeds in order and places every
// target reachable from each, climbing a scaffold pillar where higher
// targets are out of reach.
func (b *builder) placeFromStations(ctx context.Context, targets []geom.Pos) {
	for _, seed := range b.plan.StationSeeds(b.cfg.StationStandoff) {
		if b.halted(ctx) || b.q.CountMissing(targets) == 0 {
			return
		}
		b.checkpoint(ctx)
		if b.halted(ctx) {
			return
		}
		stand, ok := b.q.NearbyStandable(seed, b.cfg.StandSearchRadius)
		if !ok {
			b.log.Printf("STATION_NO_STAND agent=%s seed=%s", b.env.Agent.ID(), seed)
			continue
		}
		if !b.worthVisiting(stand, targets) {
			continue
		}
		if !b.goTo(ctx, stand) {
			b.log.Printf("STATION_UNREACHABLE agent=%s stand=%s", b.env.Agent.ID(), stand)
			continue
		}
		b.workStation(ctx, stand, targets)
	}
}

// worthVisiting reports whether any missing target lies within reach of the
// stand column, from the ground or from a pillar.
func (b *builder) worthVisiting(stand geom.Pos, targets []geom.Pos) bool {
	r := b.cfg.Reach
	for _, t := range targets {
		if !b.q.Missing(t) {
			continue
		}
		dx := float64(t.X - stand.X)
		dz := float64(t.Z - stand.Z)
		if dx*dx+dz*dz <= r*r {
			return true
		}
	}
	return false
}

func (b *builder) workStation(ctx context.Context, stand geom.Pos, targets []geom.Pos) {
	guard := b.stabilize()
	defer guard.release()

	b.placePasses(ctx, targets)
	if b.halted(ctx) || !b.needsVantage(targets) {
		return
	}
	if b.baseUsed(stand) {
		b.log.Printf("SCAFFOLD_BASE_USED agent=%s base=%s", b.env.Agent.ID(), stand)
		return
	}
	b.markBase(stand)

	pl := &pillar{base: stand}
	maxFeet := b.plan.RoofY() + 1
	if b.plan.InFootprint(stand) {
		maxFeet = b.plan.RoofY() - 2
	}
	for steps := 0; steps < b.cfg.MaxPillarSteps; steps++ {
		if b.env.Agent.BlockPos().Y >= maxFeet || !b.needsVantage(targets) {
			break
		}
		if !b.climbStep(ctx, pl, b.isBlueprint) {
			break
		}
		b.checkpoint(ctx)
		b.placePasses(ctx, targets)
	}
	if !b.teardown(ctx, pl, targets) && len(pl.blocks) > 0 {
		b.recordPending(pl.record())
	}
	b.placePasses(ctx, targets)
}

// placePasses repeats placeReachable so cells that gain support get placed.
func (b *builder) placePasses(ctx context.Context, targets []geom.Pos) {
	for pass := 0; pass < b.cfg.StationPasses; pass++ {
		if b.halted(ctx) || b.placeReachable(ctx, targets) == 0 {
			return
		}
	}
}

// needsVantage reports whether a missing target is above the current reach
// but within horizontal reach, so climbing would help.
func (b *builder) needsVantage(targets []geom.Pos) bool {
	eye := b.env.Agent.EyePosition()
	r := b.cfg.Reach
	for _, t := range targets {
		if !b.q.Missing(t) || b.inReach(t) {
			continue
		}
		c := t.Center()
		dx, dz := c.X-eye.X, c.Z-eye.Z
		if dx*dx+dz*dz <= r*r && c.Y > eye.Y-1 {
			return true
		}
	}
	return false
}

func (b *builder) baseUsed(p geom.Pos) bool {
	for _, u := range b.used {
		if u.X == p.X && u.Z == p.Z {
			return true
		}
	}
	return false
}

func (b *builder) markBase(p geom.Pos) {
	b.used = append(b.used, p.WithY(0))
	if err := b.store.SetUsedBases(b.used); err != nil {
		b.log.Printf("STATE_WRITE_ERR agent=%s key=usedBases err=%v", b.env.Agent.ID(), err)
	}
}

func (b *builder) resetBases() {
	b.used = nil
	if err := b.store.SetUsedBases(nil); err != nil {
		b.log.Printf("STATE_WRITE_ERR agent=%s key=usedBases err=%v", b.env.Agent.ID(), err)
	}
}

// goTo moves the agent onto dest, going around the footprint when both ends
// are outside it and the straight line crosses it.
func (b *builder) goTo(ctx context.Context, dest geom.Pos) bool {
	ag, ctl := b.env.Agent, b.env.Controls
	cur := ag.BlockPos()
	if cur == dest {
		return true
	}
	ok := false
	if cur.DistSqXZ(dest) <= 4 && mathx.AbsInt(cur.Y-dest.Y) <= 1 {
		ok = ctl.Step(ctx, dest) && ag.BlockPos() == dest
	}
	if !ok && b.hasPlan && b.crossesFootprint(cur, dest) {
		b.routeRing(ctx, dest)
		ok = ag.BlockPos() == dest
	}
	if !ok && !b.halted(ctx) {
		ok = ctl.MoveTo(ctx, dest) && ag.BlockPos() == dest
	}
	if ok {
		b.moveFails = 0
		return true
	}
	b.moveFails++
	if b.moveFails >= 2 && b.hasPlan && !b.halted(ctx) {
		b.moveFails = 0
		b.recoveryWalk(ctx)
		return ctl.MoveTo(ctx, dest) && ag.BlockPos() == dest
	}
	return false
}

// crossesFootprint reports whether a and c are both outside the walls and
// the segment between their columns passes over the footprint.
func (b *builder) crossesFootprint(a, c geom.Pos) bool {
	if !b.plan.Outside(a) || !b.plan.Outside(c) {
		return false
	}
	ax, az := float64(a.X)+0.5, float64(a.Z)+0.5
	cx, cz := float64(c.X)+0.5, float64(c.Z)+0.5
	dx, dz := cx-ax, cz-az
	n := int(2*(math.Abs(dx)+math.Abs(dz))) + 1
	for i := 0; i <= n; i++ {
		t := float64(i) / float64(n)
		p := geom.Vec3{X: ax + dx*t, Z: az + dz*t}.Block()
		if b.plan.InFootprint(p) {
			return true
		}
	}
	return false
}
