package shelter

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"voxelshelter.ai/internal/mathx"
	"voxelshelter.ai/internal/shelter/geom"
	"voxelshelter.ai/internal/shelter/terrain"
)

var (
	errUnderground = errors.New("underground with no reachable surface")
	errNoMaterial  = errors.New("no building material")
)

// surfaceOpeningRadius bounds the search for a sky-lit cell when underground.
const surfaceOpeningRadius = 8

// resolvePlan derives the plan from the request and the agent's position, or
// from the stored anchor when a resume is requested.
func (b *builder) resolvePlan(req Request) (geom.BuildPlan, error) {
	radius := req.Radius
	if radius == 0 {
		radius = b.cfg.DefaultRadius
	}
	radius = mathx.ClampInt(radius, b.cfg.MinRadius, b.cfg.MaxRadius)
	height := req.WallHeight
	if height == 0 {
		height = b.cfg.DefaultWallHeight
	}
	door := b.env.Agent.Facing()
	if strings.TrimSpace(req.Door) != "" {
		d, err := geom.ParseDirection(req.Door)
		if err != nil {
			return geom.BuildPlan{}, err
		}
		door = d
	}
	if !door.IsHorizontal() {
		door = geom.South
	}
	plan := geom.BuildPlan{Radius: radius, WallHeight: height, Door: door}
	if req.Resume {
		if c, d, ok := b.store.Anchor(); ok {
			plan.Center = c
			if strings.TrimSpace(req.Door) == "" {
				plan.Door = d
			}
			return plan, plan.Validate()
		}
	}
	origin := b.env.Agent.BlockPos()
	plan.Center = origin.WithY(b.q.FloorY(origin))
	return plan, plan.Validate()
}

func (b *builder) replanAt(feet geom.Pos) {
	p := b.plan
	p.Center = feet.WithY(b.q.FloorY(feet))
	b.setPlan(p)
}

// prepareSite gets the agent out of water, out from underground and onto an
// open footprint. The plan center follows the agent when it moves.
func (b *builder) prepareSite(ctx context.Context) error {
	ag, ctl := b.env.Agent, b.env.Controls
	feet := ag.BlockPos()
	if b.env.World.BlockAt(feet).Fluid || b.env.World.BlockAt(feet.Up(1)).Fluid {
		if dry, ok := terrain.FindDryStand(b.env.World, feet, b.cfg.WaterEscapeRadius); ok && ctl.MoveTo(ctx, dry) {
			b.log.Printf("SITE_LEFT_WATER agent=%s from=%s to=%s", ag.ID(), feet, dry)
			b.replanAt(ag.BlockPos())
		}
	}

	feet = ag.BlockPos()
	if b.underground(feet, 3) {
		if open, ok := b.findSurfaceOpening(feet); ok && ctl.MoveTo(ctx, open) {
			b.log.Printf("SITE_SURFACED agent=%s from=%s to=%s", ag.ID(), feet, open)
			b.replanAt(ag.BlockPos())
		}
		if b.underground(ag.BlockPos(), 2) {
			return errUnderground
		}
	}

	ratio := terrain.OpenRatio(b.env.World, b.plan)
	if ratio >= b.cfg.OpenRatio {
		return nil
	}
	c, ok := terrain.FindOpenFootprint(b.env.World, b.plan, b.cfg.RelocateRadius, b.cfg.OpenRatio)
	if !ok {
		b.log.Printf("SITE_CLOSED agent=%s center=%s open=%.2f", ag.ID(), b.plan.Center, ratio)
		return nil
	}
	if !ctl.MoveTo(ctx, c.Up(1)) {
		return nil
	}
	b.log.Printf("SITE_RELOCATED agent=%s from=%s to=%s open=%.2f", ag.ID(), b.plan.Center, c, ratio)
	b.say("Moving to a more open spot at %s.", c.Up(1))
	p := b.plan
	p.Center = c
	b.setPlan(p)
	return nil
}

func (b *builder) underground(p geom.Pos, margin int) bool {
	return !terrain.SkyVisible(b.env.World, p.Up(1)) && terrain.DepthBelowSurface(b.env.World, p) > margin
}

func (b *builder) findSurfaceOpening(from geom.Pos) (geom.Pos, bool) {
	return b.nearest(from, surfaceOpeningRadius, func(p geom.Pos) bool {
		return b.q.Standable(p) && terrain.SkyVisible(b.env.World, p.Up(1))
	})
}

func (b *builder) nearest(from geom.Pos, radius int, ok func(geom.Pos) bool) (geom.Pos, bool) {
	best, bestD, found := geom.Pos{}, 0, false
	for dx := -radius; dx <= radius; dx++ {
		for dz := -radius; dz <= radius; dz++ {
			for dy := -radius; dy <= radius; dy++ {
				p := from.Add(dx, dy, dz)
				d := from.DistSq(p)
				if found && d >= bestD {
					continue
				}
				if ok(p) {
					best, bestD, found = p, d, true
				}
			}
		}
	}
	return best, found
}

// levelSite clears the interior headroom and the exterior walk ring and fills
// missing floor support under the footprint and one cell around it.
func (b *builder) levelSite(ctx context.Context) {
	p := b.plan
	var clear, fill []geom.Pos
	for dx := -p.Radius - 1; dx <= p.Radius+1; dx++ {
		for dz := -p.Radius - 1; dz <= p.Radius+1; dz++ {
			col := geom.P(p.Center.X+dx, p.FloorY(), p.Center.Z+dz)
			if b.q.Missing(col) {
				fill = append(fill, col)
			}
			top := p.TopWallY()
			if !p.Inside(col) {
				if p.InFootprint(col) {
					continue
				}
				top = p.StandY() + 1
			}
			for y := p.StandY(); y <= top; y++ {
				c := col.WithY(y)
				blk := b.env.World.BlockAt(c)
				if blk.Solid && !blk.Door && !blk.Entity && !blk.Protected {
					clear = append(clear, c)
				}
			}
		}
	}
	if len(clear) == 0 && len(fill) == 0 {
		return
	}
	b.log.Printf("LEVEL agent=%s clear=%d fill=%d", b.env.Agent.ID(), len(clear), len(fill))
	// Highest first so nothing is left overhanging.
	sort.SliceStable(clear, func(i, j int) bool { return clear[i].Y > clear[j].Y })

	for _, seed := range p.StationSeeds(b.cfg.StationStandoff) {
		if b.halted(ctx) {
			return
		}
		if b.countSolid(clear) == 0 && b.q.CountMissing(fill) == 0 {
			return
		}
		b.checkpoint(ctx)
		stand, ok := b.q.NearbyStandable(seed, b.cfg.StandSearchRadius)
		if !ok || !b.goTo(ctx, stand) {
			continue
		}
		for _, c := range clear {
			if b.halted(ctx) {
				return
			}
			if b.env.World.BlockAt(c).Solid && b.inReach(c) && !b.occupied(c) {
				b.mine(ctx, c)
			}
		}
		b.placePasses(ctx, fill)
	}
}

func (b *builder) countSolid(cells []geom.Pos) int {
	n := 0
	for _, c := range cells {
		if b.env.World.BlockAt(c).Solid {
			n++
		}
	}
	return n
}

// ensureStock gathers ground blocks until the carried material covers what
// the blueprint still needs. It fails only when nothing could be gathered.
func (b *builder) ensureStock(ctx context.Context) error {
	need := b.q.CountMissing(b.bp.All())
	have := b.env.Agent.CountItems(b.cfg.BuildBlocks...)
	if have >= need {
		return nil
	}
	b.log.Printf("STOCK agent=%s have=%d need=%d estimate=%d", b.env.Agent.ID(), have, need, b.plan.EstimatedNeed())
	b.say("Gathering blocks (have %d, need %d).", have, need)
	b.gather(ctx, need)
	if b.env.Agent.CountItems(b.cfg.BuildBlocks...) == 0 {
		return fmt.Errorf("%w: have 0, need %d", errNoMaterial, need)
	}
	return nil
}

// gather mines the top ground block of columns on rings outside the
// footprint until want blocks are carried.
func (b *builder) gather(ctx context.Context, want int) {
	ag := b.env.Agent
	var cands []geom.Pos
	for rr := b.plan.Radius + 3; rr <= mathx.MaxInt(b.cfg.GatherRadius, b.plan.Radius+3); rr++ {
		for _, c := range geom.Ring(b.plan.Center, rr, 0) {
			top := b.env.World.SurfaceY(c.X, c.Z) - 1
			cell := c.WithY(top)
			blk := b.env.World.BlockAt(cell)
			if !blk.Solid || blk.Protected || blk.Door || blk.Entity {
				continue
			}
			if mathx.AbsInt(top-b.plan.FloorY()) > 2 {
				continue
			}
			cands = append(cands, cell)
		}
	}
	from := ag.BlockPos()
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].DistSq(from) < cands[j].DistSq(from) })

	misses := 0
	for _, c := range cands {
		if b.halted(ctx) || ag.CountItems(b.cfg.BuildBlocks...) >= want || misses > 8 {
			return
		}
		if !b.env.World.BlockAt(c).Solid {
			continue
		}
		if !b.inReach(c) || ag.BlockPos().Down(1) == c {
			stand, ok := b.gatherStand(c)
			if !ok || !b.goTo(ctx, stand) {
				misses++
				continue
			}
		}
		if b.mine(ctx, c) {
			misses = 0
		} else {
			misses++
		}
	}
}

// gatherStand is a standable cell next to the column of c, toward the site.
func (b *builder) gatherStand(c geom.Pos) (geom.Pos, bool) {
	d, ok := geom.DominantDirection(b.plan.Center.X-c.X, b.plan.Center.Z-c.Z)
	if !ok {
		d = b.plan.Door
	}
	seed := c.Offset(d, 1).Up(1)
	if b.q.Standable(seed) {
		return seed, true
	}
	for _, alt := range geom.Horizontal {
		p := c.Offset(alt, 1).Up(1)
		if b.q.Standable(p) {
			return p, true
		}
	}
	return geom.Pos{}, false
}
