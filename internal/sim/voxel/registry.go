package voxel

import (
	"sync"

	"github.com/lucasb-eyer/go-colorful"
)

// ID indexes the 256-entry registry. 0 is air.
type ID = uint8

const (
	Air   ID = 0
	Grass ID = 1
	Dirt  ID = 2
	Stone ID = 3

	Count = 256
)

type Data struct {
	Name              string
	Color             colorful.Color
	Solid             bool
	Destructible      bool
	Interactable      bool
	Flammable         bool
	AffectedByGravity bool
}

// RGB32 returns the color components as float32 for vertex emission.
func (d Data) RGB32() (r, g, b float32) {
	return float32(d.Color.R), float32(d.Color.G), float32(d.Color.B)
}

// Def overrides one registry slot.
type Def struct {
	ID   ID
	Data Data
}

// Undefined is what every unregistered id resolves to. It is deliberately
// loud (magenta, solid) so a missing registration shows up on screen.
var Undefined = Data{
	Name:         "undefined",
	Color:        colorful.Color{R: 1, G: 0, B: 1},
	Solid:        true,
	Destructible: true,
}

var builtin = []Def{
	{ID: Air, Data: Data{Name: "air", Color: colorful.Color{R: 1, G: 1, B: 1}}},
	{ID: Grass, Data: Data{Name: "grass", Color: colorful.Color{R: 0, G: 0.43, B: 0}, Solid: true, Destructible: true}},
	{ID: Dirt, Data: Data{Name: "dirt", Color: colorful.Color{R: 0.30, G: 0.15, B: 0}, Solid: true, Destructible: true}},
	{ID: Stone, Data: Data{Name: "stone", Color: colorful.Color{R: 0.36, G: 0.36, B: 0.36}, Solid: true, Destructible: true}},
}

type Registry struct {
	entries [Count]Data
}

// NewRegistry builds the built-in table and applies overrides in order.
func NewRegistry(overrides ...Def) *Registry {
	r := &Registry{}
	for i := range r.entries {
		r.entries[i] = Undefined
	}
	for _, d := range builtin {
		r.entries[d.ID] = d.Data
	}
	for _, d := range overrides {
		r.entries[d.ID] = d.Data
	}
	return r
}

func (r *Registry) Get(id ID) Data { return r.entries[id] }

func (r *Registry) Solid(id ID) bool { return r.entries[id].Solid }

type PaletteEntry struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
	Solid bool   `json:"solid"`
}

// Palette lists the registered (non-placeholder) entries.
func (r *Registry) Palette() []PaletteEntry {
	out := make([]PaletteEntry, 0, 8)
	for i, d := range r.entries {
		if d == Undefined {
			continue
		}
		out = append(out, PaletteEntry{ID: i, Name: d.Name, Color: d.Color.Hex(), Solid: d.Solid})
	}
	return out
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the process-wide static table, built on first use.
// Engines call it once before starting workers.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultReg = NewRegistry()
	})
	return defaultReg
}

// Get reads the static table.
func Get(id ID) Data { return Default().Get(id) }
