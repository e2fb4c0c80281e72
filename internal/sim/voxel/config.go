package voxel

import "time"

type Config struct {
	Seed    int64
	Height  int    // cells, Y range [0,Height)
	Terrain string // "flat" or "rolling"
	// SurfaceY is the top solid layer of flat terrain and the mean of rolling terrain.
	SurfaceY int

	TickDuration time.Duration

	Gravity      float64
	Drag         float64
	JumpVelocity float64
	// WalkTicksPerCell is how many ticks a walking agent spends per cell.
	WalkTicksPerCell int
	Reach            float64

	// InWallDamageTicks is the interval of suffocation damage while embedded.
	InWallDamageTicks int
}

func DefaultConfig() Config {
	return Config{
		Seed:              1,
		Height:            256,
		Terrain:           "flat",
		SurfaceY:          64,
		TickDuration:      50 * time.Millisecond,
		Gravity:           0.08,
		Drag:              0.98,
		JumpVelocity:      0.42,
		WalkTicksPerCell:  4,
		Reach:             4.5,
		InWallDamageTicks: 10,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Height <= 0 {
		c.Height = d.Height
	}
	if c.Terrain == "" {
		c.Terrain = d.Terrain
	}
	if c.SurfaceY <= 0 {
		c.SurfaceY = d.SurfaceY
	}
	if c.TickDuration <= 0 {
		c.TickDuration = d.TickDuration
	}
	if c.Gravity <= 0 {
		c.Gravity = d.Gravity
	}
	if c.Drag <= 0 {
		c.Drag = d.Drag
	}
	if c.JumpVelocity <= 0 {
		c.JumpVelocity = d.JumpVelocity
	}
	if c.WalkTicksPerCell <= 0 {
		c.WalkTicksPerCell = d.WalkTicksPerCell
	}
	if c.Reach <= 0 {
		c.Reach = d.Reach
	}
	if c.InWallDamageTicks <= 0 {
		c.InWallDamageTicks = d.InWallDamageTicks
	}
	return c
}
