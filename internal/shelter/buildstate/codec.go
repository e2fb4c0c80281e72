package buildstate

import (
	"fmt"
	"strconv"
	"strings"

	"voxelshelter.ai/internal/shelter/geom"
)

// RoofPillar is a scaffold column left standing outside the footprint.
// TopY is the standing elevation on top of the column.
type RoofPillar struct {
	Base geom.Pos `json:"base"`
	TopY int      `json:"top_y"`
}

// Height is the number of blocks in the column.
func (p RoofPillar) Height() int { return p.TopY - p.Base.Y }

// Blocks lists the column from the base upwards.
func (p RoofPillar) Blocks() []geom.Pos {
	out := make([]geom.Pos, 0, p.Height())
	for y := p.Base.Y; y < p.TopY; y++ {
		out = append(out, p.Base.WithY(y))
	}
	return out
}

const listSep = ";"

func encodeColumns(cols []geom.Pos) string {
	parts := make([]string, 0, len(cols))
	for _, c := range cols {
		parts = append(parts, fmt.Sprintf("%d,%d", c.X, c.Z))
	}
	return strings.Join(parts, listSep)
}

// decodeColumns skips malformed entries.
func decodeColumns(s string) []geom.Pos {
	var out []geom.Pos
	for _, part := range strings.Split(s, listSep) {
		xz := strings.Split(strings.TrimSpace(part), ",")
		if len(xz) != 2 {
			continue
		}
		x, err1 := strconv.Atoi(strings.TrimSpace(xz[0]))
		z, err2 := strconv.Atoi(strings.TrimSpace(xz[1]))
		if err1 != nil || err2 != nil {
			continue
		}
		out = append(out, geom.P(x, 0, z))
	}
	return out
}

func encodePillars(ps []RoofPillar) string {
	parts := make([]string, 0, len(ps))
	for _, p := range ps {
		parts = append(parts, fmt.Sprintf("%d,%d,%d,%d", p.Base.X, p.Base.Y, p.Base.Z, p.TopY))
	}
	return strings.Join(parts, listSep)
}

func decodePillars(s string) []RoofPillar {
	var out []RoofPillar
	for _, part := range strings.Split(s, listSep) {
		f := strings.Split(strings.TrimSpace(part), ",")
		if len(f) != 4 {
			continue
		}
		var v [4]int
		ok := true
		for i := range f {
			n, err := strconv.Atoi(strings.TrimSpace(f[i]))
			if err != nil {
				ok = false
				break
			}
			v[i] = n
		}
		if !ok || v[3] <= v[1] {
			continue
		}
		out = append(out, RoofPillar{Base: geom.P(v[0], v[1], v[2]), TopY: v[3]})
	}
	return out
}
