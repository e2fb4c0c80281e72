package geom

import "voxelshelter.ai/internal/mathx"

// Ring returns the closed square loop of cells at the given ring radius around
// center, at elevation y. Order: east edge north to south, south edge east to
// west, west edge south to north, then the north edge west to east. Consecutive
// entries are 4-adjacent and the last entry is adjacent to the first.
func Ring(center Pos, ringRadius, y int) []Pos {
	r := ringRadius
	if r <= 0 {
		return []Pos{{X: center.X, Y: y, Z: center.Z}}
	}
	out := make([]Pos, 0, 8*r)
	seen := make(map[Pos]bool, 8*r)
	add := func(dx, dz int) {
		p := Pos{X: center.X + dx, Y: y, Z: center.Z + dz}
		if seen[p] {
			return
		}
		seen[p] = true
		out = append(out, p)
	}
	for dz := -r; dz <= r; dz++ {
		add(r, dz)
	}
	for dx := r - 1; dx >= -r; dx-- {
		add(dx, r)
	}
	for dz := r - 1; dz >= -r; dz-- {
		add(-r, dz)
	}
	for dx := -r + 1; dx <= r-1; dx++ {
		add(dx, -r)
	}
	return out
}

// GroundRing is the standing ring at offset cells outside the walls.
func (p BuildPlan) GroundRing(offset int) []Pos {
	return Ring(p.Center, mathx.MaxInt(2, p.Radius+offset), p.StandY())
}

// RoofRing is a ring of roof cells; ring 0 is the center cell.
func (p BuildPlan) RoofRing(ringRadius int) []Pos {
	return Ring(p.Center, ringRadius, p.RoofY())
}

// NearestIndex returns the index of the ring entry closest to p in the XZ plane.
// Ties go to the lowest index. It returns -1 for an empty ring.
func NearestIndex(ring []Pos, p Pos) int {
	best, bestD := -1, 0
	for i, c := range ring {
		d := c.DistSqXZ(p)
		if best < 0 || d < bestD {
			best, bestD = i, d
		}
	}
	return best
}

// OuterSeeds returns the corners and edge midpoints of the ring standoff cells
// outside the walls, at standing height.
func (p BuildPlan) OuterSeeds(standoff int) []Pos {
	r := p.Radius + standoff
	y := p.StandY()
	c := p.Center
	return dedupe([]Pos{
		{X: c.X + r, Y: y, Z: c.Z + r},
		{X: c.X + r, Y: y, Z: c.Z - r},
		{X: c.X - r, Y: y, Z: c.Z + r},
		{X: c.X - r, Y: y, Z: c.Z - r},
		{X: c.X + r, Y: y, Z: c.Z},
		{X: c.X - r, Y: y, Z: c.Z},
		{X: c.X, Y: y, Z: c.Z + r},
		{X: c.X, Y: y, Z: c.Z - r},
	})
}

// StationSeeds returns every station seed: the interior center, the interior
// corners and edge midpoints, then the outer seeds.
func (p BuildPlan) StationSeeds(standoff int) []Pos {
	y := p.StandY()
	c := p.Center
	in := mathx.MaxInt(0, p.Radius-1)
	seeds := []Pos{
		{X: c.X, Y: y, Z: c.Z},
		{X: c.X + in, Y: y, Z: c.Z + in},
		{X: c.X + in, Y: y, Z: c.Z - in},
		{X: c.X - in, Y: y, Z: c.Z + in},
		{X: c.X - in, Y: y, Z: c.Z - in},
		{X: c.X + in, Y: y, Z: c.Z},
		{X: c.X - in, Y: y, Z: c.Z},
		{X: c.X, Y: y, Z: c.Z + in},
		{X: c.X, Y: y, Z: c.Z - in},
	}
	return dedupe(append(seeds, p.OuterSeeds(standoff)...))
}

// SerpentineRoute walks the roof rows alternating direction. The route starts at
// the cell nearest start, runs forward to the end, then covers the skipped prefix
// backwards.
func (p BuildPlan) SerpentineRoute(start Pos) []Pos {
	r := p.Radius
	y := p.RoofY()
	rows := make([]Pos, 0, (2*r+1)*(2*r+1))
	for i, dz := 0, -r; dz <= r; i, dz = i+1, dz+1 {
		if i%2 == 0 {
			for dx := -r; dx <= r; dx++ {
				rows = append(rows, Pos{X: p.Center.X + dx, Y: y, Z: p.Center.Z + dz})
			}
		} else {
			for dx := r; dx >= -r; dx-- {
				rows = append(rows, Pos{X: p.Center.X + dx, Y: y, Z: p.Center.Z + dz})
			}
		}
	}
	idx := NearestIndex(rows, start)
	out := make([]Pos, 0, len(rows))
	out = append(out, rows[idx:]...)
	for i := idx - 1; i >= 0; i-- {
		out = append(out, rows[i])
	}
	return out
}

// RingRoute walks roof rings from the outermost inward, at most maxRings rings.
// Each ring is rotated to start near the previous position.
func (p BuildPlan) RingRoute(start Pos, maxRings int) []Pos {
	if maxRings <= 0 {
		maxRings = p.Radius + 1
	}
	out := make([]Pos, 0, (2*p.Radius+1)*(2*p.Radius+1))
	cur := start
	for k := 0; k < maxRings; k++ {
		rr := p.Radius - k
		if rr < 0 {
			break
		}
		ring := p.RoofRing(rr)
		idx := NearestIndex(ring, cur)
		for i := 0; i < len(ring); i++ {
			out = append(out, ring[(idx+i)%len(ring)])
		}
		cur = out[len(out)-1]
	}
	return out
}

func dedupe(in []Pos) []Pos {
	seen := make(map[Pos]bool, len(in))
	out := in[:0]
	for _, p := range in {
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
