package tuning

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"voxelshelter.ai/internal/shelter"
	"voxelshelter.ai/internal/sim/voxel"
)

func writeTuning(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestDefaultsRoundTripConfigs(t *testing.T) {
	d := Defaults()
	got := d.ShelterConfig()
	want := shelter.DefaultConfig()
	if got.Reach != want.Reach || got.MineTimeout != want.MineTimeout || got.DeepCooldown != want.DeepCooldown {
		t.Fatalf("shelter config mismatch: got %+v want %+v", got, want)
	}
	if got.InWallPersist != 900*time.Millisecond {
		t.Fatalf("in-wall persist: got %v want 900ms", got.InWallPersist)
	}
	if len(got.BuildBlocks) != len(want.BuildBlocks) || got.Torch != want.Torch || got.Door != want.Door {
		t.Fatalf("items mismatch: got %v/%s/%s", got.BuildBlocks, got.Torch, got.Door)
	}
	v := d.VoxelConfig()
	if v.TickDuration != voxel.DefaultConfig().TickDuration || v.Terrain != "flat" {
		t.Fatalf("voxel config mismatch: got %+v", v)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeTuning(t, `
build:
  default_radius: 4
  roof_route: serpentine
watchdog:
  deep_cooldown_ms: 30000
sim:
  terrain: rolling
  seed: 7
items:
  build_blocks: [COBBLESTONE]
`)
	tu, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg := tu.ShelterConfig()
	if cfg.DefaultRadius != 4 || cfg.RoofRoute != "serpentine" {
		t.Fatalf("build overrides: got radius=%d route=%s", cfg.DefaultRadius, cfg.RoofRoute)
	}
	if cfg.DeepCooldown != 30*time.Second {
		t.Fatalf("deep cooldown: got %v want 30s", cfg.DeepCooldown)
	}
	if cfg.Reach != 4.5 || cfg.MaxRadius != 5 {
		t.Fatalf("untouched keys lost defaults: reach=%v max=%d", cfg.Reach, cfg.MaxRadius)
	}
	if len(cfg.BuildBlocks) != 1 || cfg.BuildBlocks[0] != "COBBLESTONE" {
		t.Fatalf("build blocks: got %v", cfg.BuildBlocks)
	}
	if v := tu.VoxelConfig(); v.Terrain != "rolling" || v.Seed != 7 {
		t.Fatalf("sim overrides: got %+v", v)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"radius order", "build:\n  min_radius: 6\n", "min_radius"},
		{"default radius", "build:\n  default_radius: 9\n", "default_radius"},
		{"roof route", "build:\n  roof_route: spiral\n", "roof_route"},
		{"terrain", "sim:\n  terrain: caves\n", "sim.terrain"},
		{"syntax", "build: [\n", "tuning.yaml"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeTuning(t, tc.body))
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
