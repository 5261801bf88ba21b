package voxel

import (
	"sync"
	"testing"

	"github.com/lucasb-eyer/go-colorful"
)

func TestBuiltinEntries(t *testing.T) {
	r := NewRegistry()
	if r.Get(Air).Solid {
		t.Fatalf("air must not be solid")
	}
	if got := r.Get(Grass).Name; got != "grass" {
		t.Fatalf("id 1 name=%q want grass", got)
	}
	if !r.Get(Stone).Solid {
		t.Fatalf("stone must be solid")
	}
}

func TestUnregisteredIsPlaceholder(t *testing.T) {
	r := NewRegistry()
	for _, id := range []ID{4, 100, 255} {
		d := r.Get(id)
		if d.Name != "undefined" || !d.Solid {
			t.Fatalf("id %d: got %+v want undefined placeholder", id, d)
		}
		if d.Color != (colorful.Color{R: 1, G: 0, B: 1}) {
			t.Fatalf("id %d color=%v want magenta", id, d.Color)
		}
	}
}

func TestOverrides(t *testing.T) {
	r := NewRegistry(Def{ID: 9, Data: Data{Name: "sand", Solid: true}})
	if r.Get(9).Name != "sand" {
		t.Fatalf("override not applied")
	}
	if Default().Get(9).Name != "undefined" {
		t.Fatalf("override leaked into default registry")
	}
	p := r.Palette()
	if len(p) != 5 || p[4].Name != "sand" {
		t.Fatalf("palette=%+v", p)
	}
}

func TestDefaultConcurrentFirstAccess(t *testing.T) {
	var wg sync.WaitGroup
	regs := make([]*Registry, 8)
	for i := range regs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			regs[i] = Default()
		}(i)
	}
	wg.Wait()
	for i := 1; i < len(regs); i++ {
		if regs[i] != regs[0] {
			t.Fatalf("Default built more than once")
		}
	}
	if Get(Dirt).Name != "dirt" {
		t.Fatalf("Get(Dirt)=%q", Get(Dirt).Name)
	}
}
