package shelter

import (
	"context"
	"testing"
	"time"

	"voxelshelter.ai/internal/shelter/geom"
	"voxelshelter.ai/internal/sim/voxel"
)

func TestTeardownFallsBackWhenUnderFeetHolds(t *testing.T) {
	plan := geom.BuildPlan{Center: geom.P(0, 64, 0), Radius: 2, WallHeight: 3, Door: geom.South}
	b, w, h := newTestBuilder(t, geom.P(0, 65, -6), map[string]int{"DIRT": 20}, plan)
	ctx := context.Background()

	pl := &pillar{base: geom.P(0, 65, -6)}
	for i := 0; i < 3; i++ {
		if !b.climbStep(ctx, pl, nil) {
			t.Fatalf("climb step %d failed, pillar %v", i, pl.blocks)
		}
	}
	under := h.BlockPos().Down(1)
	if under != geom.P(0, 67, -6) {
		t.Fatalf("under feet got %s want 0,67,-6", under)
	}
	fill(t, w, []geom.Pos{under}, "BEDROCK")

	if b.teardown(ctx, pl, nil) {
		t.Fatalf("teardown reported success with an unbreakable block under the feet")
	}
	if b.c.PillarRemoved != 2 {
		t.Fatalf("removed got %d want 2", b.c.PillarRemoved)
	}
	for _, c := range []geom.Pos{geom.P(0, 65, -6), geom.P(0, 66, -6)} {
		if w.BlockAt(c).Solid {
			t.Fatalf("reachable pillar block %s left standing", c)
		}
	}
	if len(pl.blocks) != 1 || pl.blocks[0] != under {
		t.Fatalf("left got %v want [%s]", pl.blocks, under)
	}
	rec := pl.record()
	if rec.Base != under || rec.TopY != 68 {
		t.Fatalf("record got %+v want base %s top 68", rec, under)
	}
}

func TestPillarTopFollowsHighestBlock(t *testing.T) {
	pl := &pillar{base: geom.P(3, 65, 3), blocks: []geom.Pos{geom.P(3, 65, 3), geom.P(3, 66, 3), geom.P(3, 67, 3)}}
	pl.remove(geom.P(3, 66, 3))
	if got := pl.top(); got != geom.P(3, 68, 3) {
		t.Fatalf("top got %s want 3,68,3", got)
	}
	pl.remove(geom.P(3, 67, 3))
	if rec := pl.record(); rec.Base != geom.P(3, 65, 3) || rec.TopY != 66 {
		t.Fatalf("record got %+v", rec)
	}
}

func TestTeardownOrderPrefersUnderFeet(t *testing.T) {
	blocks := []geom.Pos{geom.P(0, 65, 0), geom.P(0, 66, 0), geom.P(0, 67, 0)}
	all := func(geom.Pos) bool { return true }
	got := teardownOrder(blocks, geom.P(0, 66, 0), all)
	want := []geom.Pos{geom.P(0, 66, 0), geom.P(0, 67, 0), geom.P(0, 65, 0)}
	if len(got) != len(want) {
		t.Fatalf("order got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order got %v want %v", got, want)
		}
	}
	none := func(geom.Pos) bool { return false }
	if got := teardownOrder(blocks, geom.P(0, 70, 0), none); len(got) != 0 {
		t.Fatalf("unreachable pillar got %v want none", got)
	}
}

// silentMiner never reports a mined block.
type silentMiner struct {
	*voxel.Handle
	calls int
}

func (s *silentMiner) Mine(ctx context.Context, p geom.Pos) <-chan bool {
	s.calls++
	return make(chan bool)
}

func TestMineGivesUpAfterRetriedTimeouts(t *testing.T) {
	plan := geom.BuildPlan{Center: geom.P(0, 64, 0), Radius: 2, WallHeight: 3, Door: geom.South}
	b, w, h := newTestBuilder(t, geom.P(0, 65, 0), nil, plan)
	miner := &silentMiner{Handle: h}
	b.env.Controls = miner

	target := geom.P(1, 64, 0)
	start := w.Clock().Now()
	if b.mine(context.Background(), target) {
		t.Fatalf("mine reported success without the block breaking")
	}
	elapsed := w.Clock().Now().Sub(start)

	if miner.calls != b.cfg.MineRetries {
		t.Fatalf("attempts got %d want %d", miner.calls, b.cfg.MineRetries)
	}
	if b.c.MineFailures != 1 || b.c.Mined != 0 {
		t.Fatalf("counters got %+v want one failure", b.c)
	}
	budget := time.Duration(b.cfg.MineRetries) * b.cfg.MineTimeout
	if elapsed < budget || elapsed > budget+time.Second {
		t.Fatalf("elapsed got %s want just over %s", elapsed, budget)
	}
	if !w.BlockAt(target).Solid {
		t.Fatalf("target %s broke", target)
	}
}
