package chunk

import (
	"errors"
	"fmt"
)

// Size is the edge length of a cubic chunk.
const Size = 64

const volume = Size * Size * Size

var ErrOutOfRange = errors.New("voxel position out of range")

// ID packs a chunk grid coordinate: high 32 bits x, low 32 bits z.
type ID int64

func PackID(x, z int32) ID {
	return ID(int64(x)<<32 | int64(uint32(z)))
}

func (id ID) Unpack() (x, z int32) {
	return int32(id >> 32), int32(uint32(id))
}

func (id ID) String() string {
	x, z := id.Unpack()
	return fmt.Sprintf("%d(%d,%d)", int64(id), x, z)
}

// Pos is an integer position, either chunk-local or world-space.
type Pos struct {
	X, Y, Z int
}

func (p Pos) inBounds() bool {
	return p.X >= 0 && p.X < Size && p.Y >= 0 && p.Y < Size && p.Z >= 0 && p.Z < Size
}

// OriginFor returns the world-space origin of the chunk at grid (x, z).
func OriginFor(x, z int32) Pos {
	return Pos{X: int(x) * Size, Y: 0, Z: int(z) * Size}
}

func index(x, y, z int) int {
	return x*Size*Size + y*Size + z
}
