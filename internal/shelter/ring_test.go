package shelter

import (
	"context"
	"testing"

	"voxelshelter.ai/internal/shelter/geom"
)

func walledPlan() geom.BuildPlan {
	return geom.BuildPlan{Center: geom.P(0, 64, 0), Radius: 2, WallHeight: 3, Door: geom.South}
}

func TestGoToRoutesAroundFootprint(t *testing.T) {
	plan := walledPlan()
	b, w, h := newTestBuilder(t, geom.P(4, 65, 0), nil, plan)
	fill(t, w, plan.Blueprint().All(), "COBBLESTONE")

	dest := geom.P(-4, 65, 0)
	if !b.crossesFootprint(h.BlockPos(), dest) {
		t.Fatalf("east to west should cross the footprint")
	}
	if !b.goTo(context.Background(), dest) {
		t.Fatalf("goTo failed, agent at %s", h.BlockPos())
	}
	if got := h.BlockPos(); got != dest {
		t.Fatalf("agent got %s want %s", got, dest)
	}
}

func TestCrossesFootprint(t *testing.T) {
	b, _, _ := newTestBuilder(t, geom.P(0, 65, 0), nil, walledPlan())
	cases := []struct {
		a, c geom.Pos
		want bool
	}{
		{geom.P(4, 65, 0), geom.P(-4, 65, 0), true},
		{geom.P(4, 65, -4), geom.P(4, 65, 4), false},
		{geom.P(4, 65, 4), geom.P(-4, 65, -4), true},
		{geom.P(0, 65, 0), geom.P(-4, 65, 0), false}, // starts inside
	}
	for _, tc := range cases {
		if got := b.crossesFootprint(tc.a, tc.c); got != tc.want {
			t.Fatalf("crosses(%s, %s) got %v want %v", tc.a, tc.c, got, tc.want)
		}
	}
}

func TestRecoveryWalkPassesNextCorner(t *testing.T) {
	b, _, h := newTestBuilder(t, geom.P(4, 65, 0), nil, walledPlan())
	if !b.recoveryWalk(context.Background()) {
		t.Fatalf("recovery walk failed at %s", h.BlockPos())
	}
	if got, want := h.BlockPos(), geom.P(2, 65, 4); got != want {
		t.Fatalf("agent got %s want %s", got, want)
	}
}

func TestRingStandClearsObstruction(t *testing.T) {
	b, w, _ := newTestBuilder(t, geom.P(4, 65, 0), nil, walledPlan())
	cell := geom.P(4, 65, 1)
	fill(t, w, []geom.Pos{cell, cell.Up(1)}, "DIRT")
	got, ok := b.ringStand(context.Background(), cell)
	if !ok || got != cell {
		t.Fatalf("ringStand got %s %v want %s", got, ok, cell)
	}
	if b.c.Mined != 2 {
		t.Fatalf("mined got %d want 2", b.c.Mined)
	}
}
