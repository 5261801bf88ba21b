package mesh

import (
	"fmt"
	"strings"
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	"voxelbyte/internal/sim/chunk"
	"voxelbyte/internal/sim/voxel"
)

const S = chunk.Size

type ColorMode int

const (
	// ColorPerFace colors each quad with the voxel that exposes it.
	// Faces only merge when id and facing match.
	ColorPerFace ColorMode = iota
	// ColorLegacy merges by solidity alone and paints every quad with
	// the color of Mesher.LegacyID.
	ColorLegacy
)

func (m ColorMode) String() string {
	switch m {
	case ColorPerFace:
		return "per_face"
	case ColorLegacy:
		return "legacy"
	default:
		return fmt.Sprintf("ColorMode(%d)", int(m))
	}
}

func ParseColorMode(s string) (ColorMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "per_face", "perface":
		return ColorPerFace, nil
	case "legacy":
		return ColorLegacy, nil
	default:
		return 0, fmt.Errorf("unknown color mode %q", s)
	}
}

type Mesher struct {
	Registry *voxel.Registry
	Color    ColorMode
	LegacyID voxel.ID
}

func NewMesher(reg *voxel.Registry, mode ColorMode) *Mesher {
	if reg == nil {
		reg = voxel.Default()
	}
	return &Mesher{Registry: reg, Color: mode, LegacyID: voxel.Grass}
}

var defaultMesher = sync.OnceValue(func() *Mesher {
	return NewMesher(voxel.Default(), ColorPerFace)
})

// Build meshes c with the default registry in ColorPerFace mode.
func Build(c *chunk.Chunk) *VoxelMesh {
	return defaultMesher().Build(c)
}

// mask cell: 0 = no face. Otherwise +(id+1) for a face owned by the voxel
// on the low side of the slice and -(id+1) for one owned by the high side.
// Legacy mode stores 1 for every face.
type mask [S * S]int16

var maskPool = sync.Pool{New: func() any { return new(mask) }}

// Build runs greedy meshing over the three axes. Voxels outside the chunk
// count as air, so boundary faces are always emitted.
func (m *Mesher) Build(c *chunk.Chunk) *VoxelMesh {
	reg := m.Registry
	if reg == nil {
		reg = voxel.Default()
	}
	out := &VoxelMesh{}

	mk := maskPool.Get().(*mask)
	defer maskPool.Put(mk)

	var lr, lg, lb float32
	if m.Color == ColorLegacy {
		lr, lg, lb = reg.Get(m.LegacyID).RGB32()
	}

	for d := 0; d < 3; d++ {
		u := (d + 1) % 3
		v := (d + 2) % 3
		var x, q [3]int
		q[d] = 1

		for x[d] = -1; x[d] < S; {
			n := 0
			for x[v] = 0; x[v] < S; x[v]++ {
				for x[u] = 0; x[u] < S; x[u]++ {
					var a, b voxel.ID
					var sa, sb bool
					if x[d] >= 0 {
						a = c.At(x[0], x[1], x[2])
						sa = reg.Solid(a)
					}
					if x[d] < S-1 {
						b = c.At(x[0]+q[0], x[1]+q[1], x[2]+q[2])
						sb = reg.Solid(b)
					}
					mk[n] = m.cell(a, b, sa, sb)
					n++
				}
			}

			x[d]++

			n = 0
			for j := 0; j < S; j++ {
				for i := 0; i < S; {
					cur := mk[n]
					if cur == 0 {
						i++
						n++
						continue
					}

					w := 1
					for i+w < S && mk[n+w] == cur {
						w++
					}

					h := 1
				grow:
					for ; j+h < S; h++ {
						for k := 0; k < w; k++ {
							if mk[n+k+h*S] != cur {
								break grow
							}
						}
					}

					x[u] = i
					x[v] = j
					var du, dv mgl32.Vec3
					du[u] = float32(w)
					dv[v] = float32(h)
					p := mgl32.Vec3{float32(x[0]), float32(x[1]), float32(x[2])}

					r, g, b := lr, lg, lb
					if m.Color == ColorPerFace {
						r, g, b = reg.Get(cellID(cur)).RGB32()
					}
					out.addQuad(p, du, dv, r, g, b)

					for l := 0; l < h; l++ {
						for k := 0; k < w; k++ {
							mk[n+k+l*S] = 0
						}
					}
					i += w
					n += w
				}
			}
		}
	}
	return out
}

func (m *Mesher) cell(a, b voxel.ID, sa, sb bool) int16 {
	if sa == sb {
		return 0
	}
	if m.Color == ColorLegacy {
		return 1
	}
	if sa {
		return int16(a) + 1
	}
	return -(int16(b) + 1)
}

func cellID(c int16) voxel.ID {
	if c < 0 {
		c = -c
	}
	return voxel.ID(c - 1)
}
