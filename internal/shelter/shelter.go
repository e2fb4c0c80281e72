package shelter

import (
	"context"
	"errors"
	"fmt"

	"voxelshelter.ai/internal/shelter/buildstate"
	"voxelshelter.ai/internal/shelter/geom"
)

// Request describes a shelter build. Zero values select defaults.
type Request struct {
	Radius     int    `json:"radius,omitempty"`
	WallHeight int    `json:"wall_height,omitempty"`
	Door       string `json:"door,omitempty"`
	// Resume reuses the stored plan anchor even if the agent has moved.
	Resume bool `json:"resume,omitempty"`
}

// Hovel phases record the last completed step.
const (
	hovelStart buildstate.Phase = iota
	hovelLeveled
	hovelWalls
	hovelRoof
	hovelPatched
	hovelDoorway
)

var hovelPhaseNames = map[buildstate.Phase]string{
	hovelStart:   "start",
	hovelLeveled: "level",
	hovelWalls:   "walls",
	hovelRoof:    "roof",
	hovelPatched: "patch",
	hovelDoorway: "doorway",
}

// sweepRadius bounds how far from the new site stale pillars are swept.
const sweepRadius = 16

// BuildShelter builds a walled, roofed hovel with a doorway around the agent.
// Progress is persisted per phase; a later call with the same plan resumes
// where this one stopped.
func BuildShelter(ctx context.Context, env Env, req Request) Result {
	env = env.withDefaults()
	b := newBuilder(env, buildstate.KindHovel)
	b.deepWatch = true
	ag := env.Agent

	plan, err := b.resolvePlan(req)
	if err != nil {
		return Result{Success: false, Message: fmt.Sprintf("Bad shelter request: %v", err)}
	}
	b.setPlan(plan)
	if b.q.CountMissing(b.bp.All()) == 0 {
		return b.finishHovel(false)
	}

	mem, resumed := b.store.RestoreIfCompatible(plan)
	if !resumed {
		if err := b.prepareSite(ctx); err != nil {
			if errors.Is(err, errUnderground) {
				msg := "I can't build a surface shelter while underground; I couldn't reach the surface."
				b.say("%s", msg)
				return Result{Success: false, Message: msg}
			}
			return Result{Success: false, Message: err.Error()}
		}
		mem, resumed = b.restoreAfterSite(ctx)
	}
	if err := b.begin(resumed); err != nil {
		return Result{Success: false, Message: fmt.Sprintf("Could not save build state: %v", err)}
	}
	phase := hovelStart
	if resumed {
		phase = mem.Phase
		b.used = mem.UsedBases
		b.pending = mem.Pending
		b.say("Resuming hovel at %s after %s.", b.plan.Center, hovelPhaseNames[phase])
	} else {
		b.say("Building a hovel at %s (radius %d, door %s).", b.plan.Center, b.plan.Radius, b.plan.Door)
	}
	b.log.Printf("HOVEL agent=%s center=%s radius=%d height=%d door=%s phase=%d resumed=%v",
		ag.ID(), b.plan.Center, b.plan.Radius, b.plan.WallHeight, b.plan.Door, phase, resumed)

	if ag.CountItems(b.cfg.BuildBlocks...) == 0 {
		if err := b.ensureStock(ctx); err != nil {
			return b.noMaterial(err)
		}
	}

	steps := []struct {
		done buildstate.Phase
		run  func(context.Context)
	}{
		{hovelLeveled, b.levelSite},
		{hovelWalls, func(ctx context.Context) {
			b.restock(ctx)
			b.placeFromStations(ctx, b.bp.Walls)
		}},
		{hovelRoof, func(ctx context.Context) {
			b.sweepPending(ctx)
			b.restock(ctx)
			b.placeFromStations(ctx, b.bp.All())
			if !b.halted(ctx) && b.q.CountMissing(b.bp.Roof) > 0 {
				b.roofWalk(ctx)
			}
		}},
		{hovelPatched, func(ctx context.Context) {
			b.restock(ctx)
			b.placeFromStations(ctx, b.bp.All())
			if !b.halted(ctx) && b.q.CountMissing(b.bp.Roof) > 0 {
				b.roofWalk(ctx)
			}
			b.sweepPending(ctx)
		}},
		{hovelDoorway, func(ctx context.Context) {
			b.openDoorway(ctx)
			b.lightInterior(ctx)
		}},
	}
	for _, st := range steps {
		if st.done <= phase {
			continue
		}
		b.enterPhase(hovelPhaseNames[st.done])
		b.checkpoint(ctx)
		if b.halted(ctx) {
			return b.stopped(ctx, "Hovel")
		}
		st.run(ctx)
		if b.halted(ctx) {
			return b.stopped(ctx, "Hovel")
		}
		phase = st.done
		b.advance(phase)
	}
	return b.finishHovel(resumed)
}

// begin starts a fresh state or keeps the restored one, and saves the anchor.
func (b *builder) begin(resumed bool) error {
	if !resumed {
		if err := b.store.Clear(); err != nil {
			return err
		}
		if err := b.store.Begin(b.plan); err != nil {
			return err
		}
	}
	return b.store.SaveAnchor(b.plan.Center, b.plan.Door)
}

func (b *builder) advance(p buildstate.Phase) {
	if err := b.store.SetPhase(p); err != nil {
		b.log.Printf("STATE_WRITE_ERR agent=%s key=phase err=%v", b.env.Agent.ID(), err)
	}
	b.resetBases()
}

// restock tops up material between phases. A shortfall is not fatal here.
func (b *builder) restock(ctx context.Context) {
	if err := b.ensureStock(ctx); err != nil {
		b.log.Printf("STOCK_SHORT agent=%s err=%v", b.env.Agent.ID(), err)
	}
}

// restoreAfterSite retries the restore for the plan site preparation settled
// on. The stored state is discarded only when that plan does not match either.
func (b *builder) restoreAfterSite(ctx context.Context) (buildstate.Memory, bool) {
	if m, ok := b.store.RestoreIfCompatible(b.plan); ok {
		return m, true
	}
	b.discardStale(ctx)
	return buildstate.Memory{}, false
}

// discardStale sweeps pillars left by a stored state for another plan, when
// they are close, before the state is dropped.
func (b *builder) discardStale(ctx context.Context) {
	if _, ok := b.store.Signature(); !ok {
		return
	}
	stale := b.store.PendingPillars()
	here := b.env.Agent.BlockPos()
	for _, p := range stale {
		if p.Base.DistSqXZ(here) > sweepRadius*sweepRadius {
			b.log.Printf("PILLAR_ABANDONED agent=%s base=%s top=%d", b.env.Agent.ID(), p.Base, p.TopY)
			continue
		}
		b.sweepPillar(ctx, p)
	}
	if err := b.store.Clear(); err != nil {
		b.log.Printf("STATE_WRITE_ERR agent=%s op=clear err=%v", b.env.Agent.ID(), err)
	}
}

func (b *builder) noMaterial(err error) Result {
	need := b.q.CountMissing(b.bp.All())
	msg := fmt.Sprintf("Not enough building blocks (have 0, need %d).", need)
	b.log.Printf("NO_MATERIAL agent=%s err=%v", b.env.Agent.ID(), err)
	b.say("%s", msg)
	b.emit(EventResult, nil, false, msg)
	return Result{Success: false, Message: msg, Counters: b.c}
}

// finishHovel reports the outcome. A complete hovel clears its state; an
// incomplete one rewinds to after leveling so the next call patches it.
func (b *builder) finishHovel(resumed bool) Result {
	b.phase = "done"
	missing := b.q.CountMissing(b.bp.All())
	c := b.c
	b.log.Printf("HOVEL_DONE agent=%s missing=%d attempted=%d placed=%d reach_fail=%d no_material=%d mined=%d pillar=%d/%d",
		b.env.Agent.ID(), missing, c.Attempted, c.Placed, c.ReachFailures, c.NoMaterial, c.Mined, c.PillarBlocks, c.PillarRemoved)
	if missing == 0 {
		if err := b.store.Clear(); err != nil {
			b.log.Printf("STATE_WRITE_ERR agent=%s op=clear err=%v", b.env.Agent.ID(), err)
		}
		msg := "Hovel complete!"
		b.say("%s", msg)
		b.emit(EventResult, nil, true, msg)
		return Result{Success: true, Message: msg, Counters: c, Resumed: resumed}
	}
	if err := b.store.SetPhase(hovelLeveled); err != nil {
		b.log.Printf("STATE_WRITE_ERR agent=%s key=phase err=%v", b.env.Agent.ID(), err)
	}
	msg := fmt.Sprintf("Hovel mostly complete (%d blocks missing).", missing)
	b.say("%s", msg)
	b.emit(EventResult, nil, false, msg)
	return Result{Success: false, Message: msg, Counters: c, Resumed: resumed}
}

// Plan returns the plan BuildShelter would use for req without acting.
func Plan(env Env, req Request) (geom.BuildPlan, error) {
	env = env.withDefaults()
	b := newBuilder(env, buildstate.KindHovel)
	return b.resolvePlan(req)
}
