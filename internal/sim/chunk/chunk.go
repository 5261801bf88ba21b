package chunk

import (
	"fmt"
	"sync/atomic"

	"voxelbyte/internal/sim/terrain"
	"voxelbyte/internal/sim/voxel"
)

type Chunk struct {
	id     ID
	origin Pos

	generated atomic.Bool
	voxels    []voxel.ID // len = Size^3, all air until generated
}

func New(id ID, origin Pos) *Chunk {
	return &Chunk{
		id:     id,
		origin: origin,
		voxels: make([]voxel.ID, volume),
	}
}

// NewAt builds the chunk for grid (x, z) with its derived id and origin.
func NewAt(x, z int32) *Chunk {
	return New(PackID(x, z), OriginFor(x, z))
}

func (c *Chunk) ID() ID          { return c.id }
func (c *Chunk) Origin() Pos     { return c.origin }
func (c *Chunk) Generated() bool { return c.generated.Load() }

func (c *Chunk) SetVoxel(p Pos, id voxel.ID) error {
	if !p.inBounds() {
		return fmt.Errorf("%w: %+v", ErrOutOfRange, p)
	}
	c.voxels[index(p.X, p.Y, p.Z)] = id
	return nil
}

func (c *Chunk) GetVoxel(p Pos) (voxel.ID, error) {
	if !p.inBounds() {
		return voxel.Air, fmt.Errorf("%w: %+v", ErrOutOfRange, p)
	}
	return c.voxels[index(p.X, p.Y, p.Z)], nil
}

// At is the unchecked accessor used inside loops that are already bounded.
func (c *Chunk) At(x, y, z int) voxel.ID {
	return c.voxels[index(x, y, z)]
}

// Voxels returns a copy of the raw grid in x*S*S + y*S + z order.
func (c *Chunk) Voxels() []voxel.ID {
	out := make([]voxel.ID, len(c.voxels))
	copy(out, c.voxels)
	return out
}

// Fill sets every voxel to id. Test and tooling helper.
func (c *Chunk) Fill(id voxel.ID) {
	for i := range c.voxels {
		c.voxels[i] = id
	}
}

// Generate fills the chunk from a heightmap once. Later calls are no-ops.
// It must only be called by the goroutine that owns the chunk's content.
func (c *Chunk) Generate(h terrain.HeightSampler) {
	if !c.generated.CompareAndSwap(false, true) {
		return
	}
	for x := 0; x < Size; x++ {
		for z := 0; z < Size; z++ {
			height := h.Sample(c.origin.X+x, c.origin.Z+z)
			// (h+1)*32 maps [-1,1] onto [0,64).
			top := (height + 1) * 32
			for y := 0; y < Size; y++ {
				id := voxel.Air
				if top > float64(y) {
					id = voxel.Grass
				}
				c.voxels[index(x, y, z)] = id
			}
		}
	}
}

// Solid reports whether the voxel at local (x, y, z) is solid in reg. Unchecked.
func (c *Chunk) Solid(reg *voxel.Registry, x, y, z int) bool {
	return reg.Solid(c.voxels[index(x, y, z)])
}
