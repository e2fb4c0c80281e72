package geom

import (
	"testing"

	"voxelshelter.ai/internal/mathx"
)

func adjacentXZ(a, b Pos) bool {
	return mathx.AbsInt(a.X-b.X)+mathx.AbsInt(a.Z-b.Z) == 1
}

func TestRingIsClosedLoop(t *testing.T) {
	for r := 1; r <= 7; r++ {
		ring := Ring(P(3, 5, -2), r, 5)
		if len(ring) != 8*r {
			t.Fatalf("r=%d len got %d want %d", r, len(ring), 8*r)
		}
		seen := map[Pos]bool{}
		for i, c := range ring {
			if seen[c] {
				t.Fatalf("r=%d duplicate %v", r, c)
			}
			seen[c] = true
			next := ring[(i+1)%len(ring)]
			if !adjacentXZ(c, next) {
				t.Fatalf("r=%d entries %v and %v not adjacent", r, c, next)
			}
			if mathx.MaxInt(mathx.AbsInt(c.X-3), mathx.AbsInt(c.Z+2)) != r {
				t.Fatalf("r=%d cell %v off ring", r, c)
			}
		}
	}
}

func TestRingStartsOnEastEdge(t *testing.T) {
	ring := Ring(P(0, 0, 0), 2, 0)
	if ring[0] != P(2, 0, -2) || ring[4] != P(2, 0, 2) || ring[5] != P(1, 0, 2) {
		t.Fatalf("unexpected order: %v", ring[:6])
	}
}

func TestRingZeroRadius(t *testing.T) {
	ring := Ring(P(1, 2, 3), 0, 9)
	if len(ring) != 1 || ring[0] != P(1, 9, 3) {
		t.Fatalf("got %v", ring)
	}
}

func TestSerpentineCoversRoofOnce(t *testing.T) {
	p := BuildPlan{Center: P(0, 60, 0), Radius: 3, WallHeight: 4, Door: North}
	route := p.SerpentineRoute(P(1, 0, 1))
	roof := map[Pos]bool{}
	for _, c := range p.RoofCells() {
		roof[c] = true
	}
	if len(route) != len(roof) {
		t.Fatalf("len got %d want %d", len(route), len(roof))
	}
	seen := map[Pos]bool{}
	for _, c := range route {
		if !roof[c] || seen[c] {
			t.Fatalf("bad route cell %v", c)
		}
		seen[c] = true
	}
	if route[0] != P(1, 64, 1) {
		t.Fatalf("route starts at %v", route[0])
	}
}

func TestRingRouteInward(t *testing.T) {
	p := BuildPlan{Center: P(0, 60, 0), Radius: 2, WallHeight: 3, Door: South}
	route := p.RingRoute(P(0, 0, -3), 0)
	if len(route) != 25 {
		t.Fatalf("full ring route len got %d want 25", len(route))
	}
	if route[0] != P(0, 63, -2) {
		t.Fatalf("route starts at %v", route[0])
	}
	if route[len(route)-1] != P(0, 63, 0) {
		t.Fatalf("route ends at %v", route[len(route)-1])
	}
	bounded := p.RingRoute(P(0, 0, -3), 1)
	if len(bounded) != 16 {
		t.Fatalf("bounded route len got %d want 16", len(bounded))
	}
}

func TestStationSeeds(t *testing.T) {
	p := BuildPlan{Center: P(0, 64, 0), Radius: 2, WallHeight: 3, Door: South}
	seeds := p.StationSeeds(2)
	if seeds[0] != P(0, 65, 0) {
		t.Fatalf("first seed %v", seeds[0])
	}
	if len(seeds) != 17 {
		t.Fatalf("seed count got %d want 17", len(seeds))
	}
	outer := p.OuterSeeds(2)
	if outer[0] != P(4, 65, 4) {
		t.Fatalf("first outer seed %v", outer[0])
	}
	small := BuildPlan{Center: P(0, 64, 0), Radius: 1, WallHeight: 3, Door: South}
	if got := len(small.StationSeeds(2)); got != 9 {
		t.Fatalf("radius 1 seeds got %d want 9", got)
	}
}

func TestNearestIndex(t *testing.T) {
	ring := Ring(P(0, 0, 0), 3, 0)
	i := NearestIndex(ring, P(10, 0, 0))
	if ring[i] != P(3, 0, 0) {
		t.Fatalf("nearest got %v", ring[i])
	}
	if NearestIndex(nil, P(0, 0, 0)) != -1 {
		t.Fatalf("empty ring should give -1")
	}
}
