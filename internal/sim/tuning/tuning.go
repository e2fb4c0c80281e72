package tuning

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"voxelshelter.ai/internal/shelter"
	"voxelshelter.ai/internal/sim/voxel"
)

// Tuning is the YAML view of every knob the daemon applies. Durations are milliseconds.
type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version" json:"protocol_version"`

	Sim      Sim      `yaml:"sim" json:"sim"`
	Build    Build    `yaml:"build" json:"build"`
	Watchdog Watchdog `yaml:"watchdog" json:"watchdog"`
	Burrow   Burrow   `yaml:"burrow" json:"burrow"`
	Items    Items    `yaml:"items" json:"items"`
}

type Sim struct {
	Seed              int64   `yaml:"seed" json:"seed"`
	Height            int     `yaml:"height" json:"height"`
	Terrain           string  `yaml:"terrain" json:"terrain"`
	SurfaceY          int     `yaml:"surface_y" json:"surface_y"`
	TickDurationMs    int     `yaml:"tick_duration_ms" json:"tick_duration_ms"`
	Gravity           float64 `yaml:"gravity" json:"gravity"`
	Drag              float64 `yaml:"drag" json:"drag"`
	JumpVelocity      float64 `yaml:"jump_velocity" json:"jump_velocity"`
	WalkTicksPerCell  int     `yaml:"walk_ticks_per_cell" json:"walk_ticks_per_cell"`
	InWallDamageTicks int     `yaml:"in_wall_damage_ticks" json:"in_wall_damage_ticks"`
}

type Build struct {
	Reach         float64 `yaml:"reach" json:"reach"`
	MineTimeoutMs int     `yaml:"mine_timeout_ms" json:"mine_timeout_ms"`
	MineRetries   int     `yaml:"mine_retries" json:"mine_retries"`
	PlaceDelayMs  int     `yaml:"place_delay_ms" json:"place_delay_ms"`
	PollMs        int     `yaml:"poll_ms" json:"poll_ms"`

	GroundTimeoutMs int     `yaml:"ground_timeout_ms" json:"ground_timeout_ms"`
	ApexTimeoutMs   int     `yaml:"apex_timeout_ms" json:"apex_timeout_ms"`
	LandTimeoutMs   int     `yaml:"land_timeout_ms" json:"land_timeout_ms"`
	ApexMinGain     float64 `yaml:"apex_min_gain" json:"apex_min_gain"`
	ApexMaxVelocity float64 `yaml:"apex_max_velocity" json:"apex_max_velocity"`
	MaxPillarSteps  int     `yaml:"max_pillar_steps" json:"max_pillar_steps"`

	StationStandoff   int `yaml:"station_standoff" json:"station_standoff"`
	StationPasses     int `yaml:"station_passes" json:"station_passes"`
	StandSearchRadius int `yaml:"stand_search_radius" json:"stand_search_radius"`

	RingOffset  int `yaml:"ring_offset" json:"ring_offset"`
	RingStride  int `yaml:"ring_stride" json:"ring_stride"`
	RingMaxHops int `yaml:"ring_max_hops" json:"ring_max_hops"`

	RoofRings int    `yaml:"roof_rings" json:"roof_rings"`
	RoofRoute string `yaml:"roof_route" json:"roof_route"`

	MinRadius         int     `yaml:"min_radius" json:"min_radius"`
	MaxRadius         int     `yaml:"max_radius" json:"max_radius"`
	DefaultRadius     int     `yaml:"default_radius" json:"default_radius"`
	DefaultWallHeight int     `yaml:"default_wall_height" json:"default_wall_height"`
	OpenRatio         float64 `yaml:"open_ratio" json:"open_ratio"`
	RelocateRadius    int     `yaml:"relocate_radius" json:"relocate_radius"`
	WaterEscapeRadius int     `yaml:"water_escape_radius" json:"water_escape_radius"`
	GatherRadius      int     `yaml:"gather_radius" json:"gather_radius"`
}

type Watchdog struct {
	DeepBelowSite    int `yaml:"deep_below_site" json:"deep_below_site"`
	DeepBelowSurface int `yaml:"deep_below_surface" json:"deep_below_surface"`
	SkyProbeRadius   int `yaml:"sky_probe_radius" json:"sky_probe_radius"`
	SkyProbeStep     int `yaml:"sky_probe_step" json:"sky_probe_step"`
	DeepCooldownMs   int `yaml:"deep_cooldown_ms" json:"deep_cooldown_ms"`
	InWallPersistMs  int `yaml:"in_wall_persist_ms" json:"in_wall_persist_ms"`
	InWallCooldownMs int `yaml:"in_wall_cooldown_ms" json:"in_wall_cooldown_ms"`
	ObstructWindowMs int `yaml:"obstruct_window_ms" json:"obstruct_window_ms"`
	SafeSearchRadius int `yaml:"safe_search_radius" json:"safe_search_radius"`
	CenterSafeRadius int `yaml:"center_safe_radius" json:"center_safe_radius"`
}

type Burrow struct {
	Descent1      int `yaml:"descent1" json:"descent1"`
	Throat        int `yaml:"throat" json:"throat"`
	Descent2      int `yaml:"descent2" json:"descent2"`
	ChamberRadius int `yaml:"chamber_radius" json:"chamber_radius"`
	ChamberHeight int `yaml:"chamber_height" json:"chamber_height"`
	StairSpine    int `yaml:"stair_spine" json:"stair_spine"`
	StairSmooth   int `yaml:"stair_smooth" json:"stair_smooth"`
	MinTorches    int `yaml:"min_torches" json:"min_torches"`
}

type Items struct {
	BuildBlocks []string `yaml:"build_blocks" json:"build_blocks"`
	Torch       string   `yaml:"torch" json:"torch"`
	Door        string   `yaml:"door" json:"door"`
}

// Defaults mirrors shelter.DefaultConfig and voxel.DefaultConfig.
func Defaults() Tuning {
	c := shelter.DefaultConfig()
	v := voxel.DefaultConfig()
	return Tuning{
		ProtocolVersion: "1.0",
		Sim: Sim{
			Seed:              v.Seed,
			Height:            v.Height,
			Terrain:           v.Terrain,
			SurfaceY:          v.SurfaceY,
			TickDurationMs:    ms(v.TickDuration),
			Gravity:           v.Gravity,
			Drag:              v.Drag,
			JumpVelocity:      v.JumpVelocity,
			WalkTicksPerCell:  v.WalkTicksPerCell,
			InWallDamageTicks: v.InWallDamageTicks,
		},
		Build: Build{
			Reach:             c.Reach,
			MineTimeoutMs:     ms(c.MineTimeout),
			MineRetries:       c.MineRetries,
			PlaceDelayMs:      ms(c.PlaceDelay),
			PollMs:            ms(c.PollInterval),
			GroundTimeoutMs:   ms(c.GroundTimeout),
			ApexTimeoutMs:     ms(c.ApexTimeout),
			LandTimeoutMs:     ms(c.LandTimeout),
			ApexMinGain:       c.ApexMinGain,
			ApexMaxVelocity:   c.ApexMaxVelocity,
			MaxPillarSteps:    c.MaxPillarSteps,
			StationStandoff:   c.StationStandoff,
			StationPasses:     c.StationPasses,
			StandSearchRadius: c.StandSearchRadius,
			RingOffset:        c.RingOffset,
			RingStride:        c.RingStride,
			RingMaxHops:       c.RingMaxHops,
			RoofRings:         c.RoofRings,
			RoofRoute:         c.RoofRoute,
			MinRadius:         c.MinRadius,
			MaxRadius:         c.MaxRadius,
			DefaultRadius:     c.DefaultRadius,
			DefaultWallHeight: c.DefaultWallHeight,
			OpenRatio:         c.OpenRatio,
			RelocateRadius:    c.RelocateRadius,
			WaterEscapeRadius: c.WaterEscapeRadius,
			GatherRadius:      c.GatherRadius,
		},
		Watchdog: Watchdog{
			DeepBelowSite:    c.DeepBelowSite,
			DeepBelowSurface: c.DeepBelowSurface,
			SkyProbeRadius:   c.SkyProbeRadius,
			SkyProbeStep:     c.SkyProbeStep,
			DeepCooldownMs:   ms(c.DeepCooldown),
			InWallPersistMs:  ms(c.InWallPersist),
			InWallCooldownMs: ms(c.InWallCooldown),
			ObstructWindowMs: ms(c.ObstructWindow),
			SafeSearchRadius: c.SafeSearchRadius,
			CenterSafeRadius: c.CenterSafeRadius,
		},
		Burrow: Burrow{
			Descent1:      c.BurrowDescent1,
			Throat:        c.BurrowThroat,
			Descent2:      c.BurrowDescent2,
			ChamberRadius: c.ChamberRadius,
			ChamberHeight: c.ChamberHeight,
			StairSpine:    c.StairSpine,
			StairSmooth:   c.StairSmooth,
			MinTorches:    c.MinTorches,
		},
		Items: Items{
			BuildBlocks: append([]string(nil), c.BuildBlocks...),
			Torch:       c.Torch,
			Door:        c.Door,
		},
	}
}

// Load reads a tuning file over Defaults; absent keys keep their default.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	b := t.Build
	if b.MinRadius > b.MaxRadius {
		return fmt.Errorf("build.min_radius %d > build.max_radius %d", b.MinRadius, b.MaxRadius)
	}
	if b.DefaultRadius < b.MinRadius || b.DefaultRadius > b.MaxRadius {
		return fmt.Errorf("build.default_radius %d outside [%d,%d]", b.DefaultRadius, b.MinRadius, b.MaxRadius)
	}
	switch b.RoofRoute {
	case "", "rings", "serpentine":
	default:
		return fmt.Errorf("build.roof_route %q: want rings or serpentine", b.RoofRoute)
	}
	switch t.Sim.Terrain {
	case "", "flat", "rolling":
	default:
		return fmt.Errorf("sim.terrain %q: want flat or rolling", t.Sim.Terrain)
	}
	if b.OpenRatio < 0 || b.OpenRatio > 1 {
		return fmt.Errorf("build.open_ratio %v outside [0,1]", b.OpenRatio)
	}
	return nil
}

func (t Tuning) ShelterConfig() shelter.Config {
	b, w, br, it := t.Build, t.Watchdog, t.Burrow, t.Items
	return shelter.Config{
		Reach:        b.Reach,
		MineTimeout:  dur(b.MineTimeoutMs),
		MineRetries:  b.MineRetries,
		PlaceDelay:   dur(b.PlaceDelayMs),
		PollInterval: dur(b.PollMs),

		GroundTimeout:   dur(b.GroundTimeoutMs),
		ApexTimeout:     dur(b.ApexTimeoutMs),
		LandTimeout:     dur(b.LandTimeoutMs),
		ApexMinGain:     b.ApexMinGain,
		ApexMaxVelocity: b.ApexMaxVelocity,
		MaxPillarSteps:  b.MaxPillarSteps,

		StationStandoff:   b.StationStandoff,
		StationPasses:     b.StationPasses,
		StandSearchRadius: b.StandSearchRadius,

		RingOffset:  b.RingOffset,
		RingStride:  b.RingStride,
		RingMaxHops: b.RingMaxHops,

		RoofRings: b.RoofRings,
		RoofRoute: b.RoofRoute,

		DeepBelowSite:    w.DeepBelowSite,
		DeepBelowSurface: w.DeepBelowSurface,
		SkyProbeRadius:   w.SkyProbeRadius,
		SkyProbeStep:     w.SkyProbeStep,
		DeepCooldown:     dur(w.DeepCooldownMs),
		InWallPersist:    dur(w.InWallPersistMs),
		InWallCooldown:   dur(w.InWallCooldownMs),
		ObstructWindow:   dur(w.ObstructWindowMs),
		SafeSearchRadius: w.SafeSearchRadius,
		CenterSafeRadius: w.CenterSafeRadius,

		MinRadius:         b.MinRadius,
		MaxRadius:         b.MaxRadius,
		DefaultRadius:     b.DefaultRadius,
		DefaultWallHeight: b.DefaultWallHeight,
		OpenRatio:         b.OpenRatio,
		RelocateRadius:    b.RelocateRadius,
		WaterEscapeRadius: b.WaterEscapeRadius,
		GatherRadius:      b.GatherRadius,

		BurrowDescent1: br.Descent1,
		BurrowThroat:   br.Throat,
		BurrowDescent2: br.Descent2,
		ChamberRadius:  br.ChamberRadius,
		ChamberHeight:  br.ChamberHeight,
		StairSpine:     br.StairSpine,
		StairSmooth:    br.StairSmooth,
		MinTorches:     br.MinTorches,

		BuildBlocks: append([]string(nil), it.BuildBlocks...),
		Torch:       it.Torch,
		Door:        it.Door,
	}
}

func (t Tuning) VoxelConfig() voxel.Config {
	s := t.Sim
	return voxel.Config{
		Seed:              s.Seed,
		Height:            s.Height,
		Terrain:           s.Terrain,
		SurfaceY:          s.SurfaceY,
		TickDuration:      dur(s.TickDurationMs),
		Gravity:           s.Gravity,
		Drag:              s.Drag,
		JumpVelocity:      s.JumpVelocity,
		WalkTicksPerCell:  s.WalkTicksPerCell,
		Reach:             t.Build.Reach,
		InWallDamageTicks: s.InWallDamageTicks,
	}
}

func ms(d time.Duration) int   { return int(d / time.Millisecond) }
func dur(ms int) time.Duration { return time.Duration(ms) * time.Millisecond }
