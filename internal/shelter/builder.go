package shelter

import (
	"context"
	"errors"
	"fmt"
	"log"

	"voxelshelter.ai/internal/shelter/buildstate"
	"voxelshelter.ai/internal/shelter/geom"
	"voxelshelter.ai/internal/shelter/terrain"
)

// builder holds the explicit references and scratch state of one invocation.
type builder struct {
	env   Env
	cfg   Config
	log   *log.Logger
	q     *terrain.Queries
	store *buildstate.Store
	em    *EmergencyState

	plan    geom.BuildPlan
	bp      geom.Blueprint
	inPlan  map[geom.Pos]bool
	hasPlan bool

	c       Counters
	phase   string
	used    []geom.Pos
	pending []buildstate.RoofPillar

	paused      bool
	pauseReason string
	moveFails   int
	// deepWatch enables the deep-underground watchdog; burrows dig down on purpose.
	deepWatch bool
}

func newBuilder(env Env, kind buildstate.Kind) *builder {
	return &builder{
		env:   env,
		cfg:   env.Config,
		log:   env.Logger,
		q:     terrain.NewQueries(env.World, 0),
		store: buildstate.NewStore(env.Bag, kind, env.Agent.ID(), env.Logger),
		em:    env.Emergency.For(env.Agent.ID()),
	}
}

func (b *builder) setPlan(p geom.BuildPlan) {
	b.plan = p
	b.bp = p.Blueprint()
	b.inPlan = make(map[geom.Pos]bool, len(b.bp.Walls)+len(b.bp.Roof))
	for _, c := range b.bp.All() {
		b.inPlan[c] = true
	}
	b.hasPlan = true
}

func (b *builder) isBlueprint(p geom.Pos) bool { return b.inPlan[p] }

func (b *builder) halted(ctx context.Context) bool {
	return b.paused || ctx.Err() != nil
}

func (b *builder) pause(reason string) {
	b.paused = true
	b.pauseReason = reason
}

func (b *builder) emit(kind string, p *geom.Pos, ok bool, detail string) {
	b.env.Events.Emit(Event{
		Time:   b.env.Clock.Now(),
		Agent:  b.env.Agent.ID(),
		Kind:   kind,
		Phase:  b.phase,
		Pos:    p,
		OK:     ok,
		Detail: detail,
	})
}

func (b *builder) say(format string, args ...any) {
	b.env.Messages.Say(fmt.Sprintf(format, args...))
}

func (b *builder) enterPhase(name string) {
	b.phase = name
	b.log.Printf("PHASE agent=%s phase=%s", b.env.Agent.ID(), name)
	b.emit(EventPhase, nil, true, name)
}

// checkpoint runs the watchdogs and records the last safe position.
func (b *builder) checkpoint(ctx context.Context) {
	if ctx.Err() != nil || b.paused {
		return
	}
	wd := b.watchdogs()
	wd.RecordSafe()
	if b.deepWatch && wd.CheckDeep() == WatchPaused {
		b.pause(wd.Reason)
		return
	}
	if wd.CheckInWall(ctx) == WatchPaused {
		b.pause(wd.Reason)
	}
}

// stopped reports why the build stopped early.
func (b *builder) stopped(ctx context.Context, what string) Result {
	var pe *PauseError
	if !b.paused && errors.As(context.Cause(ctx), &pe) {
		b.pause(pe.Reason)
	}
	msg := fmt.Sprintf("%s cancelled.", what)
	if b.paused {
		msg = fmt.Sprintf("%s paused: %s", what, b.pauseReason)
	}
	b.log.Printf("STOPPED agent=%s phase=%s paused=%v err=%v", b.env.Agent.ID(), b.phase, b.paused, ctx.Err())
	b.emit(EventResult, nil, false, msg)
	return Result{Success: false, Message: msg, Counters: b.c}
}
