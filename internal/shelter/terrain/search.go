package terrain

import (
	"sort"
	"sync"

	"voxelshelter.ai/internal/mathx"
	"voxelshelter.ai/internal/shelter/geom"
)

type candidate struct {
	p    geom.Pos
	d    int
	absY int
}

var offsetCache sync.Map // int -> []geom.Pos

// offsets returns every offset of the cube of the given radius ordered by
// distance, then by vertical distance, then by x, y, z. The order is fixed so
// searches are deterministic.
func offsets(radius int) []geom.Pos {
	if v, ok := offsetCache.Load(radius); ok {
		return v.([]geom.Pos)
	}
	out := make([]candidate, 0, (2*radius+1)*(2*radius+1)*(2*radius+1))
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			for dz := -radius; dz <= radius; dz++ {
				o := geom.P(dx, dy, dz)
				out = append(out, candidate{p: o, d: dx*dx + dy*dy + dz*dz, absY: mathx.AbsInt(dy)})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.d != b.d {
			return a.d < b.d
		}
		if a.absY != b.absY {
			return a.absY < b.absY
		}
		if a.p.X != b.p.X {
			return a.p.X < b.p.X
		}
		if a.p.Y != b.p.Y {
			return a.p.Y < b.p.Y
		}
		return a.p.Z < b.p.Z
	})
	res := make([]geom.Pos, len(out))
	for i, c := range out {
		res[i] = c.p
	}
	offsetCache.Store(radius, res)
	return res
}

// FindNearbyStandable returns the standable cell nearest seed within radius.
func FindNearbyStandable(r Reader, seed geom.Pos, radius int) (geom.Pos, bool) {
	return findNear(seed, radius, func(p geom.Pos) bool { return IsStandable(r, p) })
}

// FindSafeNear is FindNearbyStandable with a stricter test: no fluid next to
// the feet or above the head.
func FindSafeNear(r Reader, seed geom.Pos, radius int) (geom.Pos, bool) {
	return findNear(seed, radius, func(p geom.Pos) bool { return isSafe(r, p) })
}

func isSafe(r Reader, p geom.Pos) bool {
	if !IsStandable(r, p) {
		return false
	}
	if r.BlockAt(p.Up(2)).Fluid {
		return false
	}
	for _, d := range geom.Horizontal {
		if r.BlockAt(p.Offset(d, 1)).Fluid {
			return false
		}
	}
	return true
}

func findNear(seed geom.Pos, radius int, ok func(geom.Pos) bool) (geom.Pos, bool) {
	if radius < 0 {
		return geom.Pos{}, false
	}
	for _, o := range offsets(radius) {
		p := seed.Add(o.X, o.Y, o.Z)
		if ok(p) {
			return p, true
		}
	}
	return geom.Pos{}, false
}

// FindDryStand returns the nearest standable cell whose feet are not in fluid,
// searching outward in the horizontal plane within radius and up to 3 cells
// vertically.
func FindDryStand(r Reader, from geom.Pos, radius int) (geom.Pos, bool) {
	best, bestD, found := geom.Pos{}, 0, false
	for dx := -radius; dx <= radius; dx++ {
		for dz := -radius; dz <= radius; dz++ {
			for dy := -3; dy <= 3; dy++ {
				p := from.Add(dx, dy, dz)
				if !isSafe(r, p) {
					continue
				}
				d := dx*dx + dz*dz + dy*dy
				if !found || d < bestD {
					best, bestD, found = p, d, true
				}
			}
		}
	}
	return best, found
}

// OpenRatio is the fraction of footprint columns whose standing and head cells
// are free and see the sky.
func OpenRatio(r Reader, plan geom.BuildPlan) float64 {
	total, open := 0, 0
	y := plan.StandY()
	for dx := -plan.Radius; dx <= plan.Radius; dx++ {
		for dz := -plan.Radius; dz <= plan.Radius; dz++ {
			total++
			p := geom.P(plan.Center.X+dx, y, plan.Center.Z+dz)
			if r.BlockAt(p).Solid || r.BlockAt(p.Up(1)).Solid {
				continue
			}
			if r.SkyLight(p) <= 0 {
				continue
			}
			open++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(open) / float64(total)
}

// FindOpenFootprint searches columns around plan.Center (step 2, growing
// square rings) for a center whose footprint has at least minRatio open
// columns. Floor elevation is re-detected per candidate from the surface.
func FindOpenFootprint(r Reader, plan geom.BuildPlan, searchRadius int, minRatio float64) (geom.Pos, bool) {
	for ring := 2; ring <= searchRadius; ring += 2 {
		for _, c := range geom.Ring(plan.Center, ring, plan.Center.Y) {
			if mathx.AbsInt(c.X-plan.Center.X)%2 != 0 || mathx.AbsInt(c.Z-plan.Center.Z)%2 != 0 {
				continue
			}
			top := r.SurfaceY(c.X, c.Z)
			floor := DetectFloorY(r, c.WithY(top))
			cand := plan
			cand.Center = c.WithY(floor)
			if !IsStandable(r, cand.Center.Up(1)) {
				continue
			}
			if OpenRatio(r, cand) >= minRatio {
				return cand.Center, true
			}
		}
	}
	return geom.Pos{}, false
}
