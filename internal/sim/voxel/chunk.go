package voxel

type chunkKey struct {
	CX int
	CZ int
}

// chunk is a 16x16 column stack. Blocks are indexed x fastest, then z, then y.
type chunk struct {
	CX, CZ int
	height int
	Blocks []uint16

	// per column: highest opaque cell and highest motion-blocking cell, -1 if none
	topOpaque []int16
	topMotion []int16
}

func newChunk(cx, cz, height int) *chunk {
	c := &chunk{
		CX:        cx,
		CZ:        cz,
		height:    height,
		Blocks:    make([]uint16, 16*16*height),
		topOpaque: make([]int16, 16*16),
		topMotion: make([]int16, 16*16),
	}
	for i := range c.topOpaque {
		c.topOpaque[i] = -1
		c.topMotion[i] = -1
	}
	return c
}

func (c *chunk) index(x, y, z int) int { return x + z*16 + y*256 }

func (c *chunk) get(x, y, z int) uint16 { return c.Blocks[c.index(x, y, z)] }

func (c *chunk) set(x, y, z int, b uint16) bool {
	i := c.index(x, y, z)
	if c.Blocks[i] == b {
		return false
	}
	c.Blocks[i] = b
	return true
}

// rescan recomputes both column caches of (x,z) from the given elevation down.
func (c *chunk) rescan(x, z, from int, opaque, motion func(uint16) bool) {
	col := x + z*16
	c.topOpaque[col] = -1
	c.topMotion[col] = -1
	for y := from; y >= 0; y-- {
		b := c.get(x, y, z)
		if c.topMotion[col] < 0 && motion(b) {
			c.topMotion[col] = int16(y)
		}
		if c.topOpaque[col] < 0 && opaque(b) {
			c.topOpaque[col] = int16(y)
		}
		if c.topMotion[col] >= 0 && c.topOpaque[col] >= 0 {
			return
		}
	}
}
