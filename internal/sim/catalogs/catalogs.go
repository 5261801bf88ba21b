package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/lucasb-eyer/go-colorful"

	"voxelbyte/internal/sim/voxel"
)

type VoxelCatalog struct {
	Defs   []voxel.Def
	Digest string
}

type VoxelDef struct {
	ID                int    `json:"id"`
	Name              string `json:"name"`
	Color             string `json:"color"`
	Solid             bool   `json:"solid"`
	Destructible      bool   `json:"destructible"`
	Interactable      bool   `json:"interactable,omitempty"`
	Flammable         bool   `json:"flammable,omitempty"`
	AffectedByGravity bool   `json:"affected_by_gravity,omitempty"`
}

// Load reads <configDir>/voxels.json. A missing file yields an empty catalog
// so the built-in registry is used unchanged.
func Load(configDir string) (*VoxelCatalog, error) {
	path := filepath.Join(configDir, "voxels.json")
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &VoxelCatalog{}, nil
		}
		return nil, err
	}
	return Parse(raw)
}

func Parse(raw []byte) (*VoxelCatalog, error) {
	var defs []VoxelDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return nil, fmt.Errorf("voxels.json: %w", err)
	}

	seen := map[int]struct{}{}
	out := make([]voxel.Def, 0, len(defs))
	for _, d := range defs {
		if d.ID < 0 || d.ID >= voxel.Count {
			return nil, fmt.Errorf("voxels.json: id %d out of range", d.ID)
		}
		if d.Name == "" {
			return nil, fmt.Errorf("voxels.json: empty name for id %d", d.ID)
		}
		if _, ok := seen[d.ID]; ok {
			return nil, fmt.Errorf("voxels.json: duplicate id %d", d.ID)
		}
		seen[d.ID] = struct{}{}
		if d.ID == int(voxel.Air) && d.Solid {
			return nil, fmt.Errorf("voxels.json: id 0 must not be solid")
		}
		c, err := colorful.Hex(d.Color)
		if err != nil {
			return nil, fmt.Errorf("voxels.json: id %d color %q: %w", d.ID, d.Color, err)
		}
		out = append(out, voxel.Def{
			ID: voxel.ID(d.ID),
			Data: voxel.Data{
				Name:              d.Name,
				Color:             c,
				Solid:             d.Solid,
				Destructible:      d.Destructible,
				Interactable:      d.Interactable,
				Flammable:         d.Flammable,
				AffectedByGravity: d.AffectedByGravity,
			},
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return &VoxelCatalog{Defs: out, Digest: sha256Hex(raw)}, nil
}

// Registry builds a registry with the catalog applied on top of the built-ins.
func (c *VoxelCatalog) Registry() *voxel.Registry {
	if c == nil || len(c.Defs) == 0 {
		return voxel.Default()
	}
	return voxel.NewRegistry(c.Defs...)
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
