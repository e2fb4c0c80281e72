package buildstate

import (
	"testing"

	"voxelshelter.ai/internal/shelter/geom"
)

func plan() geom.BuildPlan {
	return geom.BuildPlan{Center: geom.P(5, 64, -7), Radius: 3, WallHeight: 5, Door: geom.East}
}

func TestRestoreRoundTrip(t *testing.T) {
	bag := NewMemBag()
	s := NewStore(bag, KindHovel, "agent-1", nil)
	if _, ok := s.RestoreIfCompatible(plan()); ok {
		t.Fatalf("empty bag restored")
	}
	if err := s.Begin(plan()); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	_ = s.SetPhase(3)
	_ = s.SetUsedBases([]geom.Pos{geom.P(1, 0, 2), geom.P(-4, 0, 9)})
	_ = s.SetPendingPillars([]RoofPillar{{Base: geom.P(9, 65, -7), TopY: 70}})

	mem, ok := NewStore(bag, KindHovel, "agent-1", nil).RestoreIfCompatible(plan())
	if !ok {
		t.Fatalf("compatible state not restored")
	}
	if mem.Phase != 3 {
		t.Fatalf("phase got %d want 3", mem.Phase)
	}
	if len(mem.UsedBases) != 2 || mem.UsedBases[1] != geom.P(-4, 0, 9) {
		t.Fatalf("used bases got %v", mem.UsedBases)
	}
	if len(mem.Pending) != 1 || mem.Pending[0].TopY != 70 || mem.Pending[0].Height() != 5 {
		t.Fatalf("pending got %+v", mem.Pending)
	}
}

func TestResumeGatingPerField(t *testing.T) {
	mutations := map[string]func(p *geom.BuildPlan){
		"center.x": func(p *geom.BuildPlan) { p.Center.X++ },
		"center.y": func(p *geom.BuildPlan) { p.Center.Y-- },
		"center.z": func(p *geom.BuildPlan) { p.Center.Z += 2 },
		"radius":   func(p *geom.BuildPlan) { p.Radius = 4 },
		"height":   func(p *geom.BuildPlan) { p.WallHeight = 4 },
		"door":     func(p *geom.BuildPlan) { p.Door = geom.West },
	}
	for name, mutate := range mutations {
		bag := NewMemBag()
		s := NewStore(bag, KindHovel, "a", nil)
		_ = s.Begin(plan())
		_ = s.SetPhase(2)
		other := plan()
		mutate(&other)
		if _, ok := s.RestoreIfCompatible(other); ok {
			t.Fatalf("%s: mismatched plan restored", name)
		}
		if _, ok := s.RestoreIfCompatible(plan()); !ok {
			t.Fatalf("%s: original plan no longer restores", name)
		}
	}
}

func TestDoorSideCaseInsensitive(t *testing.T) {
	bag := NewMemBag()
	s := NewStore(bag, KindHovel, "a", nil)
	_ = s.Begin(plan())
	_ = bag.Put(s.Prefix()+"build.doorSide", "EAST")
	if _, ok := s.RestoreIfCompatible(plan()); !ok {
		t.Fatalf("upper-case door side should match")
	}
}

func TestVersionMismatchDoesNotRestore(t *testing.T) {
	bag := NewMemBag()
	s := NewStore(bag, KindHovel, "a", nil)
	_ = s.Begin(plan())
	_ = s.PutInt("version", Version+1)
	if _, ok := s.RestoreIfCompatible(plan()); ok {
		t.Fatalf("foreign version restored")
	}
}

func TestMalformedEntriesSkipped(t *testing.T) {
	bag := NewMemBag()
	s := NewStore(bag, KindHovel, "a", nil)
	_ = s.Begin(plan())
	_ = s.PutString("scaffold.usedBasesXZ", "1,2;bogus;3;4,x;5,6")
	_ = s.PutString("roof.pendingPillars", "1,2,3,9;1,2,3;a,b,c,d;4,5,6,5;7,8,9,12")
	mem, ok := s.RestoreIfCompatible(plan())
	if !ok {
		t.Fatalf("restore failed")
	}
	if len(mem.UsedBases) != 2 || mem.UsedBases[0] != geom.P(1, 0, 2) || mem.UsedBases[1] != geom.P(5, 0, 6) {
		t.Fatalf("used bases got %v", mem.UsedBases)
	}
	if len(mem.Pending) != 2 || mem.Pending[1].Base != geom.P(7, 8, 9) {
		t.Fatalf("pending got %+v", mem.Pending)
	}
}

func TestMalformedSignatureIsIncompatible(t *testing.T) {
	bag := NewMemBag()
	s := NewStore(bag, KindHovel, "a", nil)
	_ = s.Begin(plan())
	_ = s.PutString("build.radius", "three")
	if _, ok := s.RestoreIfCompatible(plan()); ok {
		t.Fatalf("malformed radius restored")
	}
}

func TestClearOnlyOwnNamespace(t *testing.T) {
	bag := NewMemBag()
	a := NewStore(bag, KindHovel, "a", nil)
	b := NewStore(bag, KindHovel, "b", nil)
	burrow := NewStore(bag, KindBurrow, "a", nil)
	_ = a.Begin(plan())
	_ = b.Begin(plan())
	_ = burrow.SetPhase(2)
	if err := a.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if keys, _ := bag.Keys(a.Prefix()); len(keys) != 0 {
		t.Fatalf("keys left after clear: %v", keys)
	}
	if _, ok := b.Signature(); !ok {
		t.Fatalf("other agent's state removed")
	}
	if burrow.Phase() != 2 {
		t.Fatalf("burrow namespace touched")
	}
}

func TestAnchor(t *testing.T) {
	s := NewStore(NewMemBag(), KindHovel, "a", nil)
	if _, _, ok := s.Anchor(); ok {
		t.Fatalf("anchor present in empty store")
	}
	_ = s.SaveAnchor(geom.P(1, 2, 3), geom.North)
	c, d, ok := s.Anchor()
	if !ok || c != geom.P(1, 2, 3) || d != geom.North {
		t.Fatalf("anchor got %v %v %v", c, d, ok)
	}
}

func TestEmptyListsDeleteKeys(t *testing.T) {
	bag := NewMemBag()
	s := NewStore(bag, KindHovel, "a", nil)
	_ = s.SetUsedBases([]geom.Pos{geom.P(1, 0, 1)})
	_ = s.SetUsedBases(nil)
	if bag.Len() != 0 {
		t.Fatalf("expected key removal, have %d keys", bag.Len())
	}
}
