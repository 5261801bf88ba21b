package catalogs

import (
	"os"
	"path/filepath"
	"testing"

	"voxelbyte/internal/sim/voxel"
)

func TestParseVoxels(t *testing.T) {
	cat, err := Parse([]byte(`[
	  {"id":5,"name":"sand","color":"#e0d090","solid":true,"destructible":true,"affected_by_gravity":true},
	  {"id":4,"name":"water","color":"#2040c0","solid":false}
	]`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(cat.Defs) != 2 || cat.Defs[0].ID != 4 {
		t.Fatalf("defs not sorted by id: %+v", cat.Defs)
	}
	if cat.Digest == "" {
		t.Fatalf("missing digest")
	}
	reg := cat.Registry()
	if reg.Get(5).Name != "sand" || !reg.Get(5).AffectedByGravity {
		t.Fatalf("sand not applied: %+v", reg.Get(5))
	}
	if reg.Solid(4) {
		t.Fatalf("water should not be solid")
	}
	if reg.Get(voxel.Grass).Name != "grass" {
		t.Fatalf("built-in grass lost")
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	bad := []string{
		`[{"id":4,"name":"a","color":"#000000"},{"id":4,"name":"b","color":"#000000"}]`,
		`[{"id":0,"name":"air","color":"#ffffff","solid":true}]`,
		`[{"id":7,"name":"x","color":"nope"}]`,
		`[{"id":300,"name":"x","color":"#000000"}]`,
		`[{"id":8,"name":"","color":"#000000"}]`,
		`{`,
	}
	for _, raw := range bad {
		if _, err := Parse([]byte(raw)); err == nil {
			t.Fatalf("expected error for %s", raw)
		}
	}
}

func TestLoadMissingFileUsesBuiltins(t *testing.T) {
	cat, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cat.Registry() != voxel.Default() {
		t.Fatalf("empty catalog should reuse the default registry")
	}
}

func TestLoadFromDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "voxels.json"), []byte(`[{"id":6,"name":"log","color":"#6b4f2a","solid":true,"flammable":true}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	cat, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cat.Registry().Get(6); got.Name != "log" || !got.Flammable {
		t.Fatalf("log=%+v", got)
	}
}

func TestRepoCatalogParses(t *testing.T) {
	cat, err := Load(filepath.Join("..", "..", "..", "configs"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cat.Defs) == 0 {
		t.Fatalf("configs/voxels.json is empty")
	}
	reg := cat.Registry()
	if reg.Solid(0) {
		t.Fatalf("air is solid")
	}
	if reg.Get(4).Name != "sand" {
		t.Fatalf("id 4 name=%q", reg.Get(4).Name)
	}
}
