package geom

import (
	"fmt"
	"strings"
)

type Direction int

const (
	North Direction = iota // -Z
	East                   // +X
	South                  // +Z
	West                   // -X
	Up
	Down
)

// Horizontal lists the four compass directions in a fixed order.
var Horizontal = [4]Direction{North, East, South, West}

func (d Direction) Vec() (dx, dy, dz int) {
	switch d {
	case North:
		return 0, 0, -1
	case East:
		return 1, 0, 0
	case South:
		return 0, 0, 1
	case West:
		return -1, 0, 0
	case Up:
		return 0, 1, 0
	case Down:
		return 0, -1, 0
	}
	return 0, 0, 0
}

func (d Direction) IsHorizontal() bool { return d >= North && d <= West }

func (d Direction) Opposite() Direction {
	switch d {
	case North:
		return South
	case South:
		return North
	case East:
		return West
	case West:
		return East
	case Up:
		return Down
	case Down:
		return Up
	}
	return d
}

// Clockwise rotates a horizontal direction a quarter turn.
func (d Direction) Clockwise() Direction {
	if !d.IsHorizontal() {
		return d
	}
	return Horizontal[(int(d)+1)%4]
}

func (d Direction) String() string {
	switch d {
	case North:
		return "north"
	case East:
		return "east"
	case South:
		return "south"
	case West:
		return "west"
	case Up:
		return "up"
	case Down:
		return "down"
	}
	return fmt.Sprintf("direction(%d)", int(d))
}

// ParseDirection accepts compass names case-insensitively.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "north", "n":
		return North, nil
	case "east", "e":
		return East, nil
	case "south", "s":
		return South, nil
	case "west", "w":
		return West, nil
	}
	return North, fmt.Errorf("unknown direction %q", s)
}

// DominantDirection returns the horizontal direction of the larger axis of (dx,dz).
// Ties go to the X axis. ok is false for a zero vector.
func DominantDirection(dx, dz int) (d Direction, ok bool) {
	if dx == 0 && dz == 0 {
		return North, false
	}
	ax, az := dx, dz
	if ax < 0 {
		ax = -ax
	}
	if az < 0 {
		az = -az
	}
	if ax >= az {
		if dx > 0 {
			return East, true
		}
		return West, true
	}
	if dz > 0 {
		return South, true
	}
	return North, true
}
