package catalogs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultCatalogs(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	if c.Blocks.Palette[0] != "AIR" || c.Blocks.Index["AIR"] != 0 {
		t.Fatalf("AIR must be palette id 0")
	}
	stone := c.Blocks.Defs["STONE"]
	if !stone.Solid || !stone.Breakable || stone.DropsItem != "COBBLESTONE" {
		t.Fatalf("unexpected STONE def %+v", stone)
	}
	if c.Blocks.Defs["BEDROCK"].Breakable {
		t.Fatalf("bedrock must not be breakable")
	}
	build := c.ItemsOfKind("BUILD")
	if len(build) == 0 || build[0] != "ANDESITE" {
		t.Fatalf("build items got %v", build)
	}
}

func TestLoadRejectsMissingAir(t *testing.T) {
	dir := t.TempDir()
	_ = os.WriteFile(filepath.Join(dir, "blocks.json"), []byte(`[{"id":"STONE","solid":true}]`), 0o644)
	_ = os.WriteFile(filepath.Join(dir, "items.json"), []byte(`[]`), 0o644)
	if _, err := Load(dir); err == nil {
		t.Fatalf("expected missing AIR error")
	}
}

func TestLoadRejectsUnknownPlaceAs(t *testing.T) {
	dir := t.TempDir()
	_ = os.WriteFile(filepath.Join(dir, "blocks.json"), []byte(`[{"id":"AIR"}]`), 0o644)
	_ = os.WriteFile(filepath.Join(dir, "items.json"), []byte(`[{"id":"DIRT","kind":"BUILD","place_as":"DIRT"}]`), 0o644)
	if _, err := Load(dir); err == nil {
		t.Fatalf("expected unknown block error")
	}
}

func TestCheckInventoryAndRequire(t *testing.T) {
	c := MustDefault()
	if err := c.CheckInventory(map[string]int{"DIRT": 64, "TORCH": 2}); err != nil {
		t.Fatalf("CheckInventory: %v", err)
	}
	if err := c.CheckInventory(map[string]int{"DIAMOND": 1}); err == nil {
		t.Fatalf("expected unknown item error")
	}
	if err := c.CheckInventory(map[string]int{"DIRT": -1}); err == nil {
		t.Fatalf("expected negative count error")
	}
	if err := c.RequireBlocks("AIR", "STONE"); err != nil {
		t.Fatalf("RequireBlocks: %v", err)
	}
	if err := c.RequireBlocks("LAVA_LAMP"); err == nil {
		t.Fatalf("expected missing block error")
	}
	if d := c.Digest(); len(d) != 64 || d != MustDefault().Digest() {
		t.Fatalf("digest not stable: %q", d)
	}
}
