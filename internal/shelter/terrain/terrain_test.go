package terrain

import (
	"testing"

	"voxelshelter.ai/internal/shelter/geom"
)

var (
	stone = Block{ID: "STONE", Solid: true}
	water = Block{ID: "WATER", Fluid: true, Replaceable: true}
	tuft  = Block{ID: "TALL_GRASS", Replaceable: true}
)

type grid struct {
	blocks map[geom.Pos]Block
	rev    uint64
}

func newGrid() *grid { return &grid{blocks: map[geom.Pos]Block{}} }

func (g *grid) set(p geom.Pos, b Block) {
	g.blocks[p] = b
	g.rev++
}

func (g *grid) floor(y, radius int) {
	for x := -radius; x <= radius; x++ {
		for z := -radius; z <= radius; z++ {
			g.set(geom.P(x, y, z), stone)
		}
	}
}

func (g *grid) BlockAt(p geom.Pos) Block { return g.blocks[p] }

func (g *grid) SkyLight(p geom.Pos) int {
	for y := p.Y; y < 128; y++ {
		if g.blocks[p.WithY(y)].Solid {
			return 0
		}
	}
	return 15
}

func (g *grid) SurfaceY(x, z int) int {
	for y := 127; y >= 0; y-- {
		b := g.blocks[geom.P(x, y, z)]
		if b.Solid || b.Fluid {
			return y + 1
		}
	}
	return 0
}

func (g *grid) Revision() uint64 { return g.rev }

func TestIsStandable(t *testing.T) {
	g := newGrid()
	g.floor(10, 3)
	if !IsStandable(g, geom.P(0, 11, 0)) {
		t.Fatalf("expected standable on floor")
	}
	if IsStandable(g, geom.P(0, 12, 0)) {
		t.Fatalf("floating cell should not be standable")
	}
	g.set(geom.P(1, 12, 0), stone)
	if IsStandable(g, geom.P(1, 11, 0)) {
		t.Fatalf("blocked head should not be standable")
	}
	g.set(geom.P(2, 11, 0), water)
	if IsStandable(g, geom.P(2, 11, 0)) {
		t.Fatalf("fluid at feet should not be standable")
	}
	g.set(geom.P(-1, 11, 0), tuft)
	if !IsStandable(g, geom.P(-1, 11, 0)) {
		t.Fatalf("grass tuft should not block standing")
	}
}

func TestDetectFloorY(t *testing.T) {
	g := newGrid()
	g.floor(10, 1)
	if got := DetectFloorY(g, geom.P(0, 13, 0)); got != 10 {
		t.Fatalf("floor got %d want 10", got)
	}
	g.set(geom.P(0, 11, 0), water)
	g.set(geom.P(0, 12, 0), water)
	if got := DetectFloorY(g, geom.P(0, 12, 0)); got != 10 {
		t.Fatalf("floor under water got %d want 10", got)
	}
	if got := DetectFloorY(g, geom.P(0, 30, 0)); got != 29 {
		t.Fatalf("fallback got %d want 29", got)
	}
}

func TestMissing(t *testing.T) {
	if !Missing(Block{}) || !Missing(tuft) || !Missing(water) {
		t.Fatalf("air, tufts and fluids count as missing")
	}
	if Missing(stone) {
		t.Fatalf("stone is not missing")
	}
}

func TestFindNearbyStandable(t *testing.T) {
	g := newGrid()
	g.floor(10, 4)
	p, ok := FindNearbyStandable(g, geom.P(0, 11, 0), 4)
	if !ok || p != geom.P(0, 11, 0) {
		t.Fatalf("got %v,%v want seed itself", p, ok)
	}
	p, ok = FindNearbyStandable(g, geom.P(0, 14, 0), 4)
	if !ok || p != geom.P(0, 11, 0) {
		t.Fatalf("got %v,%v want straight below", p, ok)
	}
	if _, ok := FindNearbyStandable(g, geom.P(0, 40, 0), 4); ok {
		t.Fatalf("expected no standable cell in open air")
	}
}

func TestFindSafeNearAvoidsWater(t *testing.T) {
	g := newGrid()
	g.floor(10, 4)
	g.set(geom.P(1, 11, 0), water)
	p, ok := FindSafeNear(g, geom.P(0, 11, 0), 3)
	if !ok {
		t.Fatalf("expected a safe cell")
	}
	if p == geom.P(0, 11, 0) {
		t.Fatalf("cell next to water should not be safe")
	}
}

func TestSkyNearby(t *testing.T) {
	g := newGrid()
	g.floor(10, 20)
	for x := -20; x <= 20; x++ {
		for z := -20; z <= 20; z++ {
			g.set(geom.P(x, 30, z), stone)
		}
	}
	if SkyNearby(g, geom.P(0, 11, 0), 12, 2) {
		t.Fatalf("ceiling should hide the sky")
	}
	g.set(geom.P(6, 30, 6), Block{})
	if !SkyNearby(g, geom.P(0, 11, 0), 12, 2) {
		t.Fatalf("opening at 6,6 should be found")
	}
	if got := DepthBelowSurface(g, geom.P(0, 11, 0)); got != 20 {
		t.Fatalf("depth got %d want 20", got)
	}
}

func TestOpenRatioAndRelocation(t *testing.T) {
	g := newGrid()
	g.floor(10, 16)
	plan := geom.BuildPlan{Center: geom.P(0, 10, 0), Radius: 2, WallHeight: 3, Door: geom.South}
	if got := OpenRatio(g, plan); got != 1 {
		t.Fatalf("open ratio got %v want 1", got)
	}
	for x := -3; x <= 3; x++ {
		for z := -3; z <= 3; z++ {
			g.set(geom.P(x, 12, z), stone)
		}
	}
	if got := OpenRatio(g, plan); got != 0 {
		t.Fatalf("covered ratio got %v want 0", got)
	}
	c, ok := FindOpenFootprint(g, plan, 12, 0.75)
	if !ok {
		t.Fatalf("expected an open footprint nearby")
	}
	moved := plan
	moved.Center = c
	if OpenRatio(g, moved) < 0.75 {
		t.Fatalf("relocated footprint %v not open enough", c)
	}
}

func TestQueriesCacheTracksRevision(t *testing.T) {
	g := newGrid()
	g.floor(10, 2)
	q := NewQueries(g, 16)
	p := geom.P(0, 11, 0)
	if !q.Standable(p) || !q.Standable(p) {
		t.Fatalf("expected standable")
	}
	if q.Hits() != 1 {
		t.Fatalf("hits got %d want 1", q.Hits())
	}
	g.set(p.Up(1), stone)
	if q.Standable(p) {
		t.Fatalf("stale cache entry used after world change")
	}
	if got := q.CountMissing([]geom.Pos{p, p.Up(1), p.Down(1)}); got != 1 {
		t.Fatalf("missing got %d want 1", got)
	}
}
