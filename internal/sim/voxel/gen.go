package voxel

import "voxelshelter.ai/internal/mathx"

// surfaceAt returns the top solid layer of a column.
func (w *World) surfaceAt(x, z int) int {
	if w.cfg.Terrain != "rolling" {
		return w.cfg.SurfaceY
	}
	// Bilinear blend of a coarse 8-cell lattice keeps slopes walkable.
	const cell = 8
	gx, gz := mathx.FloorDiv(x, cell), mathx.FloorDiv(z, cell)
	fx := float64(mathx.Mod(x, cell)) / cell
	fz := float64(mathx.Mod(z, cell)) / cell
	h := func(ix, iz int) float64 {
		return float64(mathx.Hash2(w.cfg.Seed, ix, iz)%5) - 2
	}
	top := h(gx, gz)*(1-fx)*(1-fz) + h(gx+1, gz)*fx*(1-fz) + h(gx, gz+1)*(1-fx)*fz + h(gx+1, gz+1)*fx*fz
	return w.cfg.SurfaceY + int(top+2.5) - 2
}

func (w *World) generate(c *chunk) {
	bedrock := w.cats.Blocks.Index["BEDROCK"]
	stone := w.cats.Blocks.Index["STONE"]
	dirt := w.cats.Blocks.Index["DIRT"]
	grass := w.cats.Blocks.Index["GRASS"]
	for lx := 0; lx < 16; lx++ {
		for lz := 0; lz < 16; lz++ {
			x, z := c.CX*16+lx, c.CZ*16+lz
			top := mathx.MinInt(w.surfaceAt(x, z), c.height-1)
			for y := 0; y <= top; y++ {
				var b uint16
				switch {
				case y == 0:
					b = bedrock
				case y == top:
					b = grass
				case y >= top-3:
					b = dirt
				default:
					b = stone
				}
				c.set(lx, y, lz, b)
			}
			c.rescan(lx, lz, top, w.isOpaque, w.isMotionBlocking)
		}
	}
}
