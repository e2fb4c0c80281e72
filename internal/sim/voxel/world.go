// Package voxel is a small deterministic block world with gravity, timed
// mining and walking agents. Tests drive it with StepOnce; the daemon runs it
// with Run.
package voxel

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"voxelshelter.ai/internal/mathx"
	"voxelshelter.ai/internal/shelter/geom"
	"voxelshelter.ai/internal/shelter/terrain"
	"voxelshelter.ai/internal/sim/catalogs"
)

type World struct {
	cfg  Config
	cats *catalogs.Catalogs

	mu     sync.Mutex
	chunks map[chunkKey]*chunk
	defs   []blockInfo
	tick   uint64
	rev    uint64
	agents map[string]*agent
	order  []string
	mines  []*mineJob
	nextID int

	epoch   time.Time
	running atomic.Bool
	inbox   chan request
}

type blockInfo struct {
	view     terrain.Block
	opaque   bool
	leaves   bool
	hardness int
	drops    string
}

func New(cfg Config, cats *catalogs.Catalogs) (*World, error) {
	if cats == nil {
		return nil, fmt.Errorf("voxel: nil catalogs")
	}
	if err := cats.RequireBlocks("BEDROCK", "STONE", "DIRT", "GRASS"); err != nil {
		return nil, fmt.Errorf("voxel: %w", err)
	}
	cfg = cfg.withDefaults()
	w := &World{
		cfg:    cfg,
		cats:   cats,
		chunks: map[chunkKey]*chunk{},
		agents: map[string]*agent{},
		epoch:  time.Unix(0, 0).UTC(),
		inbox:  make(chan request, 64),
	}
	w.defs = make([]blockInfo, len(cats.Blocks.Palette))
	for i, id := range cats.Blocks.Palette {
		d := cats.Blocks.Defs[id]
		w.defs[i] = blockInfo{
			view: terrain.Block{
				ID:          d.ID,
				Solid:       d.Solid,
				Fluid:       d.Fluid,
				Replaceable: d.Replaceable,
				Door:        d.Door,
				Entity:      d.Entity,
				Protected:   !d.Breakable && id != "AIR",
			},
			opaque:   d.Opaque,
			leaves:   d.Leaves,
			hardness: d.HardnessTicks,
			drops:    d.DropsItem,
		}
	}
	return w, nil
}

func (w *World) Config() Config { return w.cfg }

func (w *World) isOpaque(b uint16) bool { return w.defs[b].opaque }

func (w *World) isMotionBlocking(b uint16) bool {
	d := w.defs[b]
	return (d.view.Solid || d.view.Fluid) && !d.leaves
}

func (w *World) chunkFor(x, z int) (*chunk, int, int) {
	cx, cz := mathx.FloorDiv(x, 16), mathx.FloorDiv(z, 16)
	k := chunkKey{CX: cx, CZ: cz}
	c := w.chunks[k]
	if c == nil {
		c = newChunk(cx, cz, w.cfg.Height)
		w.generate(c)
		w.chunks[k] = c
	}
	return c, mathx.Mod(x, 16), mathx.Mod(z, 16)
}

func (w *World) blockIDLocked(p geom.Pos) uint16 {
	if p.Y < 0 {
		return w.cats.Blocks.Index["BEDROCK"]
	}
	if p.Y >= w.cfg.Height {
		return 0
	}
	c, lx, lz := w.chunkFor(p.X, p.Z)
	return c.get(lx, p.Y, lz)
}

func (w *World) blockLocked(p geom.Pos) terrain.Block { return w.defs[w.blockIDLocked(p)].view }

func (w *World) setBlockLocked(p geom.Pos, b uint16) {
	if p.Y < 0 || p.Y >= w.cfg.Height {
		return
	}
	c, lx, lz := w.chunkFor(p.X, p.Z)
	if !c.set(lx, p.Y, lz, b) {
		return
	}
	w.rev++
	col := lx + lz*16
	y := int16(p.Y)
	if y >= c.topOpaque[col] || y >= c.topMotion[col] {
		from := p.Y
		if int(c.topOpaque[col]) > from {
			from = int(c.topOpaque[col])
		}
		if int(c.topMotion[col]) > from {
			from = int(c.topMotion[col])
		}
		c.rescan(lx, lz, from, w.isOpaque, w.isMotionBlocking)
	}
}

// BlockAt implements terrain.Reader.
func (w *World) BlockAt(p geom.Pos) terrain.Block {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.blockLocked(p)
}

func (w *World) SkyLight(p geom.Pos) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.skyLightLocked(p)
}

func (w *World) skyLightLocked(p geom.Pos) int {
	if p.Y >= w.cfg.Height {
		return 15
	}
	if p.Y < 0 {
		return 0
	}
	c, lx, lz := w.chunkFor(p.X, p.Z)
	if p.Y > int(c.topOpaque[lx+lz*16]) {
		return 15
	}
	return 0
}

func (w *World) SurfaceY(x, z int) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	c, lx, lz := w.chunkFor(x, z)
	return int(c.topMotion[lx+lz*16]) + 1
}

func (w *World) Revision() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rev
}

// Tick is the number of completed steps.
func (w *World) Tick() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tick
}

// SetBlock places a block by id without any agent involvement.
func (w *World) SetBlock(p geom.Pos, id string) error {
	idx, ok := w.cats.Blocks.Index[id]
	if !ok {
		return fmt.Errorf("unknown block %q", id)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.setBlockLocked(p, idx)
	return nil
}

// Fill sets every cell of the inclusive box spanned by a and b.
func (w *World) Fill(a, b geom.Pos, id string) error {
	idx, ok := w.cats.Blocks.Index[id]
	if !ok {
		return fmt.Errorf("unknown block %q", id)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for x := mathx.MinInt(a.X, b.X); x <= mathx.MaxInt(a.X, b.X); x++ {
		for y := mathx.MinInt(a.Y, b.Y); y <= mathx.MaxInt(a.Y, b.Y); y++ {
			for z := mathx.MinInt(a.Z, b.Z); z <= mathx.MaxInt(a.Z, b.Z); z++ {
				w.setBlockLocked(geom.P(x, y, z), idx)
			}
		}
	}
	return nil
}

// Agents returns agent ids in join order.
func (w *World) Agents() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.order...)
}
