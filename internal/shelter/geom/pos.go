package geom

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Pos is an integer block cell.
type Pos struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

func P(x, y, z int) Pos { return Pos{X: x, Y: y, Z: z} }

func (p Pos) Add(dx, dy, dz int) Pos { return Pos{X: p.X + dx, Y: p.Y + dy, Z: p.Z + dz} }

func (p Pos) Up(n int) Pos   { return Pos{X: p.X, Y: p.Y + n, Z: p.Z} }
func (p Pos) Down(n int) Pos { return Pos{X: p.X, Y: p.Y - n, Z: p.Z} }

// Offset moves n cells along d.
func (p Pos) Offset(d Direction, n int) Pos {
	dx, dy, dz := d.Vec()
	return Pos{X: p.X + dx*n, Y: p.Y + dy*n, Z: p.Z + dz*n}
}

func (p Pos) WithY(y int) Pos { return Pos{X: p.X, Y: y, Z: p.Z} }

func (p Pos) DistSq(q Pos) int {
	dx, dy, dz := p.X-q.X, p.Y-q.Y, p.Z-q.Z
	return dx*dx + dy*dy + dz*dz
}

func (p Pos) DistSqXZ(q Pos) int {
	dx, dz := p.X-q.X, p.Z-q.Z
	return dx*dx + dz*dz
}

// Center is the middle of the cell.
func (p Pos) Center() Vec3 {
	return Vec3{X: float64(p.X) + 0.5, Y: float64(p.Y) + 0.5, Z: float64(p.Z) + 0.5}
}

func (p Pos) String() string { return fmt.Sprintf("%d,%d,%d", p.X, p.Y, p.Z) }

// ParsePos parses the "x,y,z" form produced by String.
func ParsePos(s string) (Pos, error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 3 {
		return Pos{}, fmt.Errorf("bad pos %q", s)
	}
	var v [3]int
	for i, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return Pos{}, fmt.Errorf("bad pos %q: %w", s, err)
		}
		v[i] = n
	}
	return Pos{X: v[0], Y: v[1], Z: v[2]}, nil
}

// Vec3 is a continuous position.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z} }

func (v Vec3) DistSq(o Vec3) float64 {
	dx, dy, dz := v.X-o.X, v.Y-o.Y, v.Z-o.Z
	return dx*dx + dy*dy + dz*dz
}

// Block returns the cell containing v.
func (v Vec3) Block() Pos {
	return Pos{X: int(math.Floor(v.X)), Y: int(math.Floor(v.Y)), Z: int(math.Floor(v.Z))}
}
