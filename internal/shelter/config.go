package shelter

import "time"

type Config struct {
	Reach        float64
	MineTimeout  time.Duration
	MineRetries  int
	PlaceDelay   time.Duration
	PollInterval time.Duration

	GroundTimeout   time.Duration
	ApexTimeout     time.Duration
	LandTimeout     time.Duration
	ApexMinGain     float64
	ApexMaxVelocity float64
	MaxPillarSteps  int

	StationStandoff   int
	StationPasses     int
	StandSearchRadius int

	RingOffset  int
	RingStride  int
	RingMaxHops int

	RoofRings int
	// RoofRoute is "rings" or "serpentine".
	RoofRoute string

	DeepBelowSite    int
	DeepBelowSurface int
	SkyProbeRadius   int
	SkyProbeStep     int
	DeepCooldown     time.Duration
	InWallPersist    time.Duration
	InWallCooldown   time.Duration
	ObstructWindow   time.Duration
	SafeSearchRadius int
	CenterSafeRadius int

	MinRadius         int
	MaxRadius         int
	DefaultRadius     int
	DefaultWallHeight int
	OpenRatio         float64
	RelocateRadius    int
	WaterEscapeRadius int
	GatherRadius      int

	BurrowDescent1 int
	BurrowThroat   int
	BurrowDescent2 int
	ChamberRadius  int
	ChamberHeight  int
	StairSpine     int
	StairSmooth    int
	MinTorches     int

	BuildBlocks []string
	Torch       string
	Door        string
}

func DefaultConfig() Config {
	return Config{
		Reach:        4.5,
		MineTimeout:  3 * time.Second,
		MineRetries:  2,
		PlaceDelay:   20 * time.Millisecond,
		PollInterval: 50 * time.Millisecond,

		GroundTimeout:   600 * time.Millisecond,
		ApexTimeout:     1200 * time.Millisecond,
		LandTimeout:     1200 * time.Millisecond,
		ApexMinGain:     1.0,
		ApexMaxVelocity: 0.1,
		MaxPillarSteps:  8,

		StationStandoff:   2,
		StationPasses:     4,
		StandSearchRadius: 4,

		RingOffset:  2,
		RingStride:  4,
		RingMaxHops: 24,

		RoofRings: 3,
		RoofRoute: "rings",

		DeepBelowSite:    4,
		DeepBelowSurface: 10,
		SkyProbeRadius:   12,
		SkyProbeStep:     2,
		DeepCooldown:     60 * time.Second,
		InWallPersist:    900 * time.Millisecond,
		InWallCooldown:   45 * time.Second,
		ObstructWindow:   time.Second,
		SafeSearchRadius: 6,
		CenterSafeRadius: 8,

		MinRadius:         2,
		MaxRadius:         5,
		DefaultRadius:     3,
		DefaultWallHeight: 5,
		OpenRatio:         0.75,
		RelocateRadius:    12,
		WaterEscapeRadius: 10,
		GatherRadius:      7,

		BurrowDescent1: 5,
		BurrowThroat:   4,
		BurrowDescent2: 3,
		ChamberRadius:  3,
		ChamberHeight:  3,
		StairSpine:     5,
		StairSmooth:    6,
		MinTorches:     2,

		BuildBlocks: []string{
			"DIRT", "COBBLESTONE", "SANDSTONE", "ANDESITE", "GRANITE", "DIORITE",
			"OAK_PLANKS", "SPRUCE_PLANKS",
		},
		Torch: "TORCH",
		Door:  "OAK_DOOR",
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	setF := func(v *float64, dv float64) {
		if *v <= 0 {
			*v = dv
		}
	}
	setI := func(v *int, dv int) {
		if *v <= 0 {
			*v = dv
		}
	}
	setD := func(v *time.Duration, dv time.Duration) {
		if *v <= 0 {
			*v = dv
		}
	}
	setF(&c.Reach, d.Reach)
	setD(&c.MineTimeout, d.MineTimeout)
	setI(&c.MineRetries, d.MineRetries)
	setD(&c.PlaceDelay, d.PlaceDelay)
	setD(&c.PollInterval, d.PollInterval)
	setD(&c.GroundTimeout, d.GroundTimeout)
	setD(&c.ApexTimeout, d.ApexTimeout)
	setD(&c.LandTimeout, d.LandTimeout)
	setF(&c.ApexMinGain, d.ApexMinGain)
	setF(&c.ApexMaxVelocity, d.ApexMaxVelocity)
	setI(&c.MaxPillarSteps, d.MaxPillarSteps)
	setI(&c.StationStandoff, d.StationStandoff)
	setI(&c.StationPasses, d.StationPasses)
	setI(&c.StandSearchRadius, d.StandSearchRadius)
	setI(&c.RingOffset, d.RingOffset)
	setI(&c.RingStride, d.RingStride)
	setI(&c.RingMaxHops, d.RingMaxHops)
	setI(&c.RoofRings, d.RoofRings)
	if c.RoofRoute == "" {
		c.RoofRoute = d.RoofRoute
	}
	setI(&c.DeepBelowSite, d.DeepBelowSite)
	setI(&c.DeepBelowSurface, d.DeepBelowSurface)
	setI(&c.SkyProbeRadius, d.SkyProbeRadius)
	setI(&c.SkyProbeStep, d.SkyProbeStep)
	setD(&c.DeepCooldown, d.DeepCooldown)
	setD(&c.InWallPersist, d.InWallPersist)
	setD(&c.InWallCooldown, d.InWallCooldown)
	setD(&c.ObstructWindow, d.ObstructWindow)
	setI(&c.SafeSearchRadius, d.SafeSearchRadius)
	setI(&c.CenterSafeRadius, d.CenterSafeRadius)
	setI(&c.MinRadius, d.MinRadius)
	setI(&c.MaxRadius, d.MaxRadius)
	setI(&c.DefaultRadius, d.DefaultRadius)
	setI(&c.DefaultWallHeight, d.DefaultWallHeight)
	setF(&c.OpenRatio, d.OpenRatio)
	setI(&c.RelocateRadius, d.RelocateRadius)
	setI(&c.WaterEscapeRadius, d.WaterEscapeRadius)
	setI(&c.GatherRadius, d.GatherRadius)
	setI(&c.BurrowDescent1, d.BurrowDescent1)
	setI(&c.BurrowThroat, d.BurrowThroat)
	setI(&c.BurrowDescent2, d.BurrowDescent2)
	setI(&c.ChamberRadius, d.ChamberRadius)
	setI(&c.ChamberHeight, d.ChamberHeight)
	setI(&c.StairSpine, d.StairSpine)
	setI(&c.StairSmooth, d.StairSmooth)
	setI(&c.MinTorches, d.MinTorches)
	if len(c.BuildBlocks) == 0 {
		c.BuildBlocks = d.BuildBlocks
	}
	if c.Torch == "" {
		c.Torch = d.Torch
	}
	if c.Door == "" {
		c.Door = d.Door
	}
	return c
}
