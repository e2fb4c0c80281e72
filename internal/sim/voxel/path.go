package voxel

import (
	"voxelshelter.ai/internal/mathx"
	"voxelshelter.ai/internal/shelter/geom"
)

const maxDrop = 3

func (w *World) standableLocked(p geom.Pos) bool {
	feet, head := w.blockLocked(p), w.blockLocked(p.Up(1))
	if feet.Fluid || head.Fluid || feet.Solid || head.Solid {
		return false
	}
	below := w.blockLocked(p.Down(1))
	return below.Solid && !below.Fluid
}

// canTraverseLocked checks a single walking move between adjacent columns.
func (w *World) canTraverseLocked(from, to geom.Pos) bool {
	if mathx.AbsInt(from.X-to.X)+mathx.AbsInt(from.Z-to.Z) != 1 {
		return false
	}
	dy := to.Y - from.Y
	switch {
	case dy == 1:
		return !w.blockLocked(from.Up(2)).Solid
	case dy == 0:
		return true
	case dy < 0 && dy >= -maxDrop:
		for y := to.Y + 2; y <= from.Y+1; y++ {
			if w.blockLocked(to.WithY(y)).Solid {
				return false
			}
		}
		return true
	}
	return false
}

// findPathLocked is a breadth-first search over standable cells with a fixed
// neighbor order, bounded by horizontal radius around start and a node budget.
// The returned path excludes start.
func (w *World) findPathLocked(start, goal geom.Pos, radius, budget int) ([]geom.Pos, bool) {
	if start == goal {
		return nil, true
	}
	if !w.standableLocked(goal) {
		return nil, false
	}
	dirs := []geom.Pos{{X: 1}, {X: -1}, {Z: 1}, {Z: -1}}

	prev := make(map[geom.Pos]geom.Pos, 256)
	prev[start] = start
	queue := make([]geom.Pos, 0, 256)
	queue = append(queue, start)

	inBounds := func(p geom.Pos) bool {
		return mathx.AbsInt(p.X-start.X) <= radius && mathx.AbsInt(p.Z-start.Z) <= radius
	}

	for head := 0; head < len(queue); head++ {
		cur := queue[head]
		if cur == goal {
			return unwind(prev, start, goal), true
		}
		if len(prev) > budget {
			break
		}
		for _, d := range dirs {
			for dy := 1; dy >= -maxDrop; dy-- {
				np := geom.P(cur.X+d.X, cur.Y+dy, cur.Z+d.Z)
				if _, seen := prev[np]; seen {
					continue
				}
				if !inBounds(np) || !w.standableLocked(np) || !w.canTraverseLocked(cur, np) {
					continue
				}
				prev[np] = cur
				queue = append(queue, np)
				break
			}
		}
	}
	return nil, false
}

func unwind(prev map[geom.Pos]geom.Pos, start, goal geom.Pos) []geom.Pos {
	var rev []geom.Pos
	for p := goal; p != start; p = prev[p] {
		rev = append(rev, p)
	}
	out := make([]geom.Pos, len(rev))
	for i := range rev {
		out[i] = rev[len(rev)-1-i]
	}
	return out
}
