package shelter

import (
	"context"
	"errors"
	"fmt"

	"voxelshelter.ai/internal/mathx"
	"voxelshelter.ai/internal/shelter/buildstate"
	"voxelshelter.ai/internal/shelter/geom"
)

// Burrow phases are the next step to run.
const (
	burrowDescent1 buildstate.Phase = iota
	burrowThroat
	burrowDescent2
	burrowHollow
	burrowDone
)

var burrowPhaseNames = map[buildstate.Phase]string{
	burrowDescent1: "descent1",
	burrowThroat:   "throat",
	burrowDescent2: "descent2",
	burrowHollow:   "hollow",
}

const (
	keyBurrowEntry = "burrow.entry"
	keyBurrowDir   = "burrow.dir"
)

var (
	errFluidAhead = errors.New("fluid ahead")
	errDigBlocked = errors.New("could not dig")
	errNoSupport  = errors.New("no support block")
	errStepFailed = errors.New("could not step")
	errStopped    = errors.New("stopped")
)

// BuildBurrow digs a stairway down from the agent's position, a short
// tunnel, a second stairway and a lit chamber at the bottom.
func BuildBurrow(ctx context.Context, env Env) Result {
	env = env.withDefaults()
	b := newBuilder(env, buildstate.KindBurrow)
	ag := env.Agent
	st := b.store

	phase := st.Phase()
	entry, err := st.GetPos(keyBurrowEntry)
	hasEntry := err == nil
	dir := ag.Facing()
	if s, ok := st.GetString(keyBurrowDir); ok {
		if d, err := geom.ParseDirection(s); err == nil {
			dir = d
		}
	}
	if !dir.IsHorizontal() {
		dir = geom.South
	}
	if !hasEntry && phase != burrowDescent1 {
		b.log.Printf("BURROW_STATE_RESET agent=%s phase=%d reason=no_entry", ag.ID(), phase)
		phase = burrowDescent1
	}

	if phase == burrowDescent1 {
		if n := ag.CountItems(b.cfg.Torch); n < b.cfg.MinTorches {
			msg := fmt.Sprintf("Burrow needs at least %d torches; provide some and rerun.", b.cfg.MinTorches)
			b.say("%s", msg)
			return Result{Success: false, Message: msg}
		}
		if !hasEntry {
			entry = ag.BlockPos()
			if err := st.PutPos(keyBurrowEntry, entry); err != nil {
				return Result{Success: false, Message: fmt.Sprintf("Could not save burrow state: %v", err)}
			}
			if err := st.PutString(keyBurrowDir, dir.String()); err != nil {
				return Result{Success: false, Message: fmt.Sprintf("Could not save burrow state: %v", err)}
			}
		}
	}
	b.log.Printf("BURROW agent=%s entry=%s dir=%s phase=%d", ag.ID(), entry, dir, phase)

	d1, d2 := b.cfg.BurrowDescent1, b.cfg.BurrowDescent2
	for phase < burrowDone {
		b.enterPhase(burrowPhaseNames[phase])
		var err error
		switch phase {
		case burrowDescent1:
			err = b.descend(ctx, dir, entry.Y-d1)
		case burrowThroat:
			err = b.digThroat(ctx, entry, dir, d1+b.cfg.BurrowThroat)
		case burrowDescent2:
			err = b.descend(ctx, dir, entry.Y-d1-d2)
		case burrowHollow:
			err = b.hollow(ctx, entry)
		}
		if err != nil {
			if b.halted(ctx) || errors.Is(err, errStopped) {
				return b.stopped(ctx, "Burrow")
			}
			msg := fmt.Sprintf("Burrow paused: %s failed: %v", burrowPhaseNames[phase], err)
			b.log.Printf("BURROW_FAIL agent=%s phase=%d err=%v", ag.ID(), phase, err)
			b.say("%s", msg)
			b.emit(EventResult, nil, false, msg)
			return Result{Success: false, Message: msg, Counters: b.c}
		}
		phase++
		if err := st.SetPhase(phase); err != nil {
			b.log.Printf("STATE_WRITE_ERR agent=%s key=phase err=%v", ag.ID(), err)
		}
	}
	if err := st.Clear(); err != nil {
		b.log.Printf("STATE_WRITE_ERR agent=%s op=clear err=%v", ag.ID(), err)
	}
	msg := "Burrow complete."
	b.say("%s", msg)
	b.emit(EventResult, nil, true, msg)
	return Result{Success: true, Message: msg, Counters: b.c}
}

func (b *builder) descend(ctx context.Context, dir geom.Direction, untilY int) error {
	for b.env.Agent.BlockPos().Y > untilY {
		if err := b.burrowTick(ctx); err != nil {
			return err
		}
		if err := b.stairStep(ctx, dir); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) digThroat(ctx context.Context, entry geom.Pos, dir geom.Direction, until int) error {
	dx, _, dz := dir.Vec()
	progress := func() int {
		f := b.env.Agent.BlockPos()
		return (f.X-entry.X)*dx + (f.Z-entry.Z)*dz
	}
	for progress() < until {
		if err := b.burrowTick(ctx); err != nil {
			return err
		}
		f := b.env.Agent.BlockPos()
		if err := b.digStep(ctx, f.Offset(dir, 1)); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) burrowTick(ctx context.Context) error {
	b.checkpoint(ctx)
	if b.halted(ctx) {
		return errStopped
	}
	return nil
}

// stairStep digs one stair down in dir and steps onto it.
func (b *builder) stairStep(ctx context.Context, dir geom.Direction) error {
	f := b.env.Agent.BlockPos()
	ahead := f.Offset(dir, 1)
	if err := b.digOpen(ctx, ahead.Up(1)); err != nil {
		return err
	}
	return b.digStep(ctx, ahead.Down(1))
}

// digStep opens a two-tall passage with its feet at n and moves onto it.
func (b *builder) digStep(ctx context.Context, n geom.Pos) error {
	for _, c := range []geom.Pos{n.Up(1), n} {
		if err := b.digOpen(ctx, c); err != nil {
			return err
		}
	}
	if b.q.Missing(n.Down(1)) && !b.placeBlock(ctx, n.Down(1)) {
		return fmt.Errorf("%w at %s", errNoSupport, n.Down(1))
	}
	if !b.env.Controls.Step(ctx, n) || b.env.Agent.BlockPos() != n {
		if b.halted(ctx) {
			return errStopped
		}
		return fmt.Errorf("%w to %s", errStepFailed, n)
	}
	return nil
}

func (b *builder) digOpen(ctx context.Context, c geom.Pos) error {
	if b.fluidNear(c) {
		return fmt.Errorf("%w at %s", errFluidAhead, c)
	}
	if !b.mine(ctx, c) {
		if b.halted(ctx) {
			return errStopped
		}
		return fmt.Errorf("%w %s", errDigBlocked, c)
	}
	return nil
}

// fluidNear reports fluid in c or any face neighbor except below.
func (b *builder) fluidNear(c geom.Pos) bool {
	if b.env.World.BlockAt(c).Fluid || b.env.World.BlockAt(c.Up(1)).Fluid {
		return true
	}
	for _, d := range geom.Horizontal {
		if b.env.World.BlockAt(c.Offset(d, 1)).Fluid {
			return true
		}
	}
	return false
}

// hollow clears the chamber around the agent, keeping the stair treads that
// lead back up, lights the corners and clears headroom along the stairs.
func (b *builder) hollow(ctx context.Context, entry geom.Pos) error {
	c := b.env.Agent.BlockPos()
	up, ok := geom.DominantDirection(entry.X-c.X, entry.Z-c.Z)
	if !ok {
		up = b.env.Agent.Facing().Opposite()
	}
	keep := b.stairSpine(c, up)

	r, h := b.cfg.ChamberRadius, b.cfg.ChamberHeight
	for dy := h - 1; dy >= 0; dy-- {
		for dx := -r; dx <= r; dx++ {
			for dz := -r; dz <= r; dz++ {
				if b.halted(ctx) {
					return errStopped
				}
				p := c.Add(dx, dy, dz)
				if keep[p] || !b.env.World.BlockAt(p).Solid || b.fluidNear(p) || !b.inReach(p) {
					continue
				}
				b.mine(ctx, p)
			}
		}
	}

	for _, p := range []geom.Pos{c.Add(r, 0, r), c.Add(-r, 0, -r), c.Add(r, 0, -r), c.Add(-r, 0, r)} {
		if b.halted(ctx) {
			return errStopped
		}
		if !b.carries(b.cfg.Torch) {
			break
		}
		if b.env.World.BlockAt(p).Air() && b.env.World.BlockAt(p.Down(1)).Solid {
			b.placeItem(ctx, p, []string{b.cfg.Torch})
		}
	}

	cur := c
	for i := 0; i < b.cfg.StairSmooth; i++ {
		head := cur.Up(2)
		if b.env.World.BlockAt(head).Solid && b.inReach(head) && !b.fluidNear(head) {
			b.mine(ctx, head)
		}
		cur = cur.Offset(up, 1).Up(1)
	}
	b.log.Printf("BURROW_HOLLOW agent=%s center=%s up=%s kept=%d", b.env.Agent.ID(), c, up, len(keep))
	return nil
}

// stairSpine returns the treads of the stairway climbing from chamber center c
// in direction up. The last stair lands on the tunnel floor.
func (b *builder) stairSpine(c geom.Pos, up geom.Direction) map[geom.Pos]bool {
	keep := make(map[geom.Pos]bool, b.cfg.StairSpine)
	for i := 1; i <= b.cfg.StairSpine; i++ {
		rise := mathx.MinInt(i, b.cfg.BurrowDescent2) - 1
		keep[c.Offset(up, i).Up(rise)] = true
	}
	return keep
}
