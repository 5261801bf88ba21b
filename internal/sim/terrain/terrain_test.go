package terrain

import "testing"

func TestSimplexRangeAndDeterminism(t *testing.T) {
	a := NewSimplex(DefaultSeed, DefaultFrequency)
	b := NewSimplex(DefaultSeed, DefaultFrequency)
	for x := -300; x < 300; x += 7 {
		for z := -300; z < 300; z += 11 {
			h := a.Sample(x, z)
			if h < -1 || h > 1 {
				t.Fatalf("Sample(%d,%d)=%v out of [-1,1]", x, z, h)
			}
			if h2 := b.Sample(x, z); h2 != h {
				t.Fatalf("Sample(%d,%d) not deterministic: %v vs %v", x, z, h, h2)
			}
		}
	}
}

func TestFlatAndFunc(t *testing.T) {
	if got := Flat(0.25).Sample(10, -10); got != 0.25 {
		t.Fatalf("Flat=%v want 0.25", got)
	}
	f := Func(func(x, z int) float64 { return float64(x - z) })
	if got := f.Sample(3, 1); got != 2 {
		t.Fatalf("Func=%v want 2", got)
	}
}

func TestNewSimplexDefaultsFrequency(t *testing.T) {
	s := NewSimplex(1, 0)
	if s.freq != DefaultFrequency {
		t.Fatalf("freq=%v want %v", s.freq, DefaultFrequency)
	}
}
