package geom

import (
	"errors"
	"fmt"

	"voxelshelter.ai/internal/mathx"
)

// BuildPlan fixes the footprint of one shelter. Center is the floor layer cell
// under the middle of the interior.
type BuildPlan struct {
	Center     Pos       `json:"center"`
	Radius     int       `json:"radius"`
	WallHeight int       `json:"wall_height"`
	Door       Direction `json:"door"`
}

func (p BuildPlan) Validate() error {
	if p.Radius < 1 {
		return fmt.Errorf("radius %d: must be >= 1", p.Radius)
	}
	if p.WallHeight < 3 {
		return fmt.Errorf("wall height %d: must be >= 3", p.WallHeight)
	}
	if !p.Door.IsHorizontal() {
		return errors.New("door side must be horizontal")
	}
	return nil
}

func (p BuildPlan) FloorY() int { return p.Center.Y }
func (p BuildPlan) StandY() int { return p.Center.Y + 1 }
func (p BuildPlan) RoofY() int  { return p.Center.Y + p.WallHeight }

// TopWallY is the highest wall layer.
func (p BuildPlan) TopWallY() int { return p.Center.Y + p.WallHeight - 1 }

// DoorCells returns the lower and upper doorway gap cells.
func (p BuildPlan) DoorCells() [2]Pos {
	base := p.Center.Offset(p.Door, p.Radius)
	return [2]Pos{base.Up(1), base.Up(2)}
}

func (p BuildPlan) IsDoorGap(c Pos) bool {
	d := p.DoorCells()
	return c == d[0] || c == d[1]
}

// InFootprint reports whether the column lies within the square, walls included.
func (p BuildPlan) InFootprint(c Pos) bool {
	return mathx.AbsInt(c.X-p.Center.X) <= p.Radius && mathx.AbsInt(c.Z-p.Center.Z) <= p.Radius
}

// Inside reports whether the column is strictly inside the walls.
func (p BuildPlan) Inside(c Pos) bool {
	return mathx.AbsInt(c.X-p.Center.X) < p.Radius && mathx.AbsInt(c.Z-p.Center.Z) < p.Radius
}

// Outside reports whether the column is strictly outside the walls.
func (p BuildPlan) Outside(c Pos) bool {
	return mathx.AbsInt(c.X-p.Center.X) > p.Radius || mathx.AbsInt(c.Z-p.Center.Z) > p.Radius
}

// OnWallRing reports whether the column is on the wall ring.
func (p BuildPlan) OnWallRing(c Pos) bool { return p.InFootprint(c) && !p.Inside(c) }

// OutsideFront is the standing cell just outside the doorway.
func (p BuildPlan) OutsideFront() Pos {
	return p.Center.Offset(p.Door, p.Radius+1).WithY(p.StandY())
}

// InsideFront is the standing cell just inside the doorway.
func (p BuildPlan) InsideFront() Pos {
	return p.Center.Offset(p.Door, mathx.MaxInt(1, p.Radius-1)).WithY(p.StandY())
}

// Blueprint is the derived cell list of a plan. It is regenerated on demand.
type Blueprint struct {
	Walls []Pos
	Roof  []Pos
}

func (b Blueprint) All() []Pos {
	out := make([]Pos, 0, len(b.Walls)+len(b.Roof))
	out = append(out, b.Walls...)
	return append(out, b.Roof...)
}

// Blueprint enumerates wall layers bottom-up, then the roof layer.
func (p BuildPlan) Blueprint() Blueprint {
	return Blueprint{Walls: p.WallCells(), Roof: p.RoofCells()}
}

func (p BuildPlan) WallCells() []Pos {
	r := p.Radius
	out := make([]Pos, 0, 8*r*p.WallHeight)
	for y := p.FloorY(); y <= p.TopWallY(); y++ {
		for dx := -r; dx <= r; dx++ {
			for dz := -r; dz <= r; dz++ {
				if mathx.AbsInt(dx) != r && mathx.AbsInt(dz) != r {
					continue
				}
				c := Pos{X: p.Center.X + dx, Y: y, Z: p.Center.Z + dz}
				if p.IsDoorGap(c) {
					continue
				}
				out = append(out, c)
			}
		}
	}
	return out
}

func (p BuildPlan) RoofCells() []Pos {
	r := p.Radius
	y := p.RoofY()
	out := make([]Pos, 0, (2*r+1)*(2*r+1))
	for dx := -r; dx <= r; dx++ {
		for dz := -r; dz <= r; dz++ {
			out = append(out, Pos{X: p.Center.X + dx, Y: y, Z: p.Center.Z + dz})
		}
	}
	return out
}

// EstimatedNeed is a coarse material estimate for a full build.
func (p BuildPlan) EstimatedNeed() int {
	side := 2*p.Radius + 1
	return side*side + 8*p.Radius*p.WallHeight
}
