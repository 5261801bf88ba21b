package terrain

import "github.com/ojrac/opensimplex-go"

const (
	DefaultSeed      int64 = 6
	DefaultFrequency       = 0.01
)

// HeightSampler returns a height in [-1, 1] for a world column.
// Implementations must be safe for concurrent use.
type HeightSampler interface {
	Sample(x, z int) float64
}

// Func adapts a plain function to HeightSampler.
type Func func(x, z int) float64

func (f Func) Sample(x, z int) float64 { return f(x, z) }

// Flat returns h everywhere.
func Flat(h float64) HeightSampler {
	return Func(func(int, int) float64 { return h })
}

type Simplex struct {
	noise opensimplex.Noise
	freq  float64
}

func NewSimplex(seed int64, frequency float64) *Simplex {
	if frequency <= 0 {
		frequency = DefaultFrequency
	}
	return &Simplex{noise: opensimplex.New(seed), freq: frequency}
}

func (s *Simplex) Sample(x, z int) float64 {
	return clamp(s.noise.Eval2(float64(x)*s.freq, float64(z)*s.freq))
}

func clamp(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}
