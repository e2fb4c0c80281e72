package catalogs

import (
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

//go:embed defaults/*.json
var defaultsFS embed.FS

type Catalogs struct {
	Blocks BlockCatalog
	Items  ItemCatalog
}

type BlockCatalog struct {
	Palette    []string
	Index      map[string]uint16
	Defs       map[string]BlockDef
	DefsDigest string
}

type BlockDef struct {
	ID            string `json:"id"`
	Solid         bool   `json:"solid"`
	Opaque        bool   `json:"opaque"`
	Fluid         bool   `json:"fluid"`
	Replaceable   bool   `json:"replaceable"`
	Breakable     bool   `json:"breakable"`
	HardnessTicks int    `json:"hardness_ticks"`
	DropsItem     string `json:"drops_item,omitempty"`
	Door          bool   `json:"door"`
	Entity        bool   `json:"entity"`
	Leaves        bool   `json:"leaves"`
}

type ItemCatalog struct {
	Defs       map[string]ItemDef
	DefsDigest string
}

type ItemDef struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"` // "BUILD","MATERIAL","LIGHT","DOOR","CONTAINER"
	PlaceAs string `json:"place_as,omitempty"`
}

// Default returns the embedded catalogs.
func Default() (*Catalogs, error) {
	blocks, err := defaultsFS.ReadFile("defaults/blocks.json")
	if err != nil {
		return nil, err
	}
	items, err := defaultsFS.ReadFile("defaults/items.json")
	if err != nil {
		return nil, err
	}
	return parse(blocks, items)
}

// MustDefault is Default for tests and command wiring.
func MustDefault() *Catalogs {
	c, err := Default()
	if err != nil {
		panic(err)
	}
	return c
}

// Load reads blocks.json and items.json from configDir.
func Load(configDir string) (*Catalogs, error) {
	blocks, err := os.ReadFile(filepath.Join(configDir, "blocks.json"))
	if err != nil {
		return nil, err
	}
	items, err := os.ReadFile(filepath.Join(configDir, "items.json"))
	if err != nil {
		return nil, err
	}
	return parse(blocks, items)
}

func parse(blocksRaw, itemsRaw []byte) (*Catalogs, error) {
	var c Catalogs
	if err := parseBlocks(blocksRaw, &c.Blocks); err != nil {
		return nil, err
	}
	if err := parseItems(itemsRaw, &c.Items); err != nil {
		return nil, err
	}
	for id, it := range c.Items.Defs {
		if it.PlaceAs == "" {
			continue
		}
		if _, ok := c.Blocks.Defs[it.PlaceAs]; !ok {
			return nil, fmt.Errorf("items.json: %s places unknown block %s", id, it.PlaceAs)
		}
	}
	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func parseBlocks(raw []byte, out *BlockCatalog) error {
	out.DefsDigest = sha256Hex(raw)

	var defs []BlockDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("blocks.json: %w", err)
	}
	out.Defs = map[string]BlockDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("blocks.json: empty id")
		}
		out.Defs[d.ID] = d
	}

	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	// AIR is palette id 0 so zeroed chunk storage is empty space.
	if _, ok := out.Defs["AIR"]; !ok {
		return fmt.Errorf("blocks.json: missing AIR")
	}
	ids = append([]string{"AIR"}, filterOut(ids, "AIR")...)

	out.Palette = ids
	out.Index = make(map[string]uint16, len(ids))
	for i, id := range ids {
		out.Index[id] = uint16(i)
	}
	return nil
}

func parseItems(raw []byte, out *ItemCatalog) error {
	out.DefsDigest = sha256Hex(raw)

	var defs []ItemDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("items.json: %w", err)
	}
	out.Defs = map[string]ItemDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("items.json: empty id")
		}
		out.Defs[d.ID] = d
	}
	return nil
}

func filterOut(in []string, drop string) []string {
	out := in[:0]
	for _, s := range in {
		if s != drop {
			out = append(out, s)
		}
	}
	return out
}

// Digest identifies the block and item definitions together.
func (c *Catalogs) Digest() string {
	return sha256Hex([]byte(c.Blocks.DefsDigest + ":" + c.Items.DefsDigest))
}

// RequireBlocks fails when any id is missing from the block catalog.
func (c *Catalogs) RequireBlocks(ids ...string) error {
	for _, id := range ids {
		if _, ok := c.Blocks.Defs[id]; !ok {
			return fmt.Errorf("blocks.json: missing %s", id)
		}
	}
	return nil
}

// CheckInventory rejects unknown items and negative counts.
func (c *Catalogs) CheckInventory(inv map[string]int) error {
	ids := make([]string, 0, len(inv))
	for id := range inv {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if _, ok := c.Items.Defs[id]; !ok {
			return fmt.Errorf("unknown item %s", id)
		}
		if inv[id] < 0 {
			return fmt.Errorf("item %s: negative count %d", id, inv[id])
		}
	}
	return nil
}

// ItemsOfKind lists item ids of a kind in sorted order.
func (c *Catalogs) ItemsOfKind(kind string) []string {
	var out []string
	for id, it := range c.Items.Defs {
		if it.Kind == kind {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
