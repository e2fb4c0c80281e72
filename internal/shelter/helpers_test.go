package shelter

import (
	"testing"

	"voxelshelter.ai/internal/shelter/buildstate"
	"voxelshelter.ai/internal/shelter/geom"
	"voxelshelter.ai/internal/sim/catalogs"
	"voxelshelter.ai/internal/sim/voxel"
)

func newTestBuilder(t *testing.T, spawn geom.Pos, inv map[string]int, plan geom.BuildPlan) (*builder, *voxel.World, *voxel.Handle) {
	t.Helper()
	w, err := voxel.New(voxel.DefaultConfig(), catalogs.MustDefault())
	if err != nil {
		t.Fatalf("voxel.New: %v", err)
	}
	id := w.Join(voxel.JoinSpec{Name: "t", Spawn: &spawn, Facing: geom.South, Inventory: inv})
	h := w.Handle(id)
	env := Env{
		World:    w,
		Agent:    h,
		Controls: h,
		Clock:    w.Clock(),
	}.withDefaults()
	b := newBuilder(env, buildstate.KindHovel)
	b.setPlan(plan)
	return b, w, h
}

func fill(t *testing.T, w *voxel.World, cells []geom.Pos, id string) {
	t.Helper()
	for _, c := range cells {
		if err := w.SetBlock(c, id); err != nil {
			t.Fatalf("SetBlock %s: %v", c, err)
		}
	}
}
