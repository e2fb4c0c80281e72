// Package terrain answers side-effect free questions about the voxel grid:
// where an agent can stand, where the floor is and whether a spot sees the sky.
package terrain

import "voxelshelter.ai/internal/shelter/geom"

// Block is the subset of a block's properties the builder cares about.
type Block struct {
	ID          string
	Solid       bool // has a collision shape
	Fluid       bool
	Replaceable bool // air, grass tufts, snow layers
	Door        bool
	Entity      bool // chests and other block entities
	Protected   bool // cannot be mined
}

func (b Block) Air() bool { return b.ID == "" || b.ID == "AIR" }

// Reader is a read-only view of the world.
type Reader interface {
	BlockAt(p geom.Pos) Block
	// SkyLight is 0 for cells without a view of the sky.
	SkyLight(p geom.Pos) int
	// SurfaceY is the first cell above the highest motion-blocking block of a column.
	SurfaceY(x, z int) int
	// Revision changes whenever any block changes.
	Revision() uint64
}

// IsStandable reports whether an agent can stand with its feet at p.
func IsStandable(r Reader, p geom.Pos) bool {
	feet := r.BlockAt(p)
	head := r.BlockAt(p.Up(1))
	if feet.Fluid || head.Fluid {
		return false
	}
	if feet.Solid || head.Solid {
		return false
	}
	below := r.BlockAt(p.Down(1))
	return below.Solid && !below.Fluid
}

// FloorScanDepth bounds DetectFloorY.
const FloorScanDepth = 6

// DetectFloorY scans down from p for the first solid, fluid-free layer.
// When none is found within FloorScanDepth cells it returns p.Y-1.
func DetectFloorY(r Reader, p geom.Pos) int {
	for y := p.Y; y >= p.Y-FloorScanDepth; y-- {
		b := r.BlockAt(p.WithY(y))
		if b.Fluid {
			continue
		}
		if b.Solid {
			return y
		}
	}
	return p.Y - 1
}

// Missing reports whether a blueprint cell still needs a block.
func Missing(b Block) bool {
	if b.Fluid {
		return true
	}
	return !b.Solid || b.Replaceable
}

// SkyVisible reports whether the cell has any sky light.
func SkyVisible(r Reader, p geom.Pos) bool { return r.SkyLight(p) > 0 }

// SkyNearby probes a square of the given radius around p at the given step for
// any sky-lit cell one above the probe elevation.
func SkyNearby(r Reader, p geom.Pos, radius, step int) bool {
	if step <= 0 {
		step = 1
	}
	for dx := -radius; dx <= radius; dx += step {
		for dz := -radius; dz <= radius; dz += step {
			if r.SkyLight(p.Add(dx, 1, dz)) > 0 {
				return true
			}
		}
	}
	return false
}

// DepthBelowSurface is how many cells p is below the column surface.
func DepthBelowSurface(r Reader, p geom.Pos) int {
	return r.SurfaceY(p.X, p.Z) - p.Y
}
