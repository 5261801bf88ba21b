package meshproto

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"

	"voxelbyte/internal/sim/chunk"
	"voxelbyte/internal/sim/encoding"
	"voxelbyte/internal/sim/mesh"
)

func NewChunkMesh(id chunk.ID, origin chunk.Pos, m *mesh.VoxelMesh) ChunkMeshMsg {
	cx, cz := id.Unpack()
	msg := ChunkMeshMsg{
		Type:            TypeChunkMesh,
		ProtocolVersion: Version,
		ChunkID:         int64(id),
		CX:              cx,
		CZ:              cz,
		Origin:          [3]int{origin.X, origin.Y, origin.Z},
		Encoding:        EncodingMesh,
	}
	if m == nil {
		return msg
	}
	msg.VertexCount = m.VertexCount()
	msg.IndexCount = len(m.Indices)

	vb := make([]byte, 4*len(m.Vertices))
	for i, f := range m.Vertices {
		binary.LittleEndian.PutUint32(vb[4*i:], math.Float32bits(f))
	}
	ib := make([]byte, 4*len(m.Indices))
	for i, v := range m.Indices {
		binary.LittleEndian.PutUint32(ib[4*i:], v)
	}
	msg.Vertices = base64.StdEncoding.EncodeToString(vb)
	msg.Indices = base64.StdEncoding.EncodeToString(ib)
	return msg
}

// Mesh decodes the vertex and index buffers and checks them against the
// declared counts.
func (m ChunkMeshMsg) Mesh() (*mesh.VoxelMesh, error) {
	if m.Encoding != EncodingMesh {
		return nil, fmt.Errorf("unsupported mesh encoding %q", m.Encoding)
	}
	vb, err := base64.StdEncoding.DecodeString(m.Vertices)
	if err != nil {
		return nil, fmt.Errorf("vertices: %w", err)
	}
	ib, err := base64.StdEncoding.DecodeString(m.Indices)
	if err != nil {
		return nil, fmt.Errorf("indices: %w", err)
	}
	if len(vb) != 4*mesh.Stride*m.VertexCount {
		return nil, fmt.Errorf("vertices: %d bytes for %d vertices", len(vb), m.VertexCount)
	}
	if len(ib) != 4*m.IndexCount {
		return nil, fmt.Errorf("indices: %d bytes for %d indices", len(ib), m.IndexCount)
	}
	out := &mesh.VoxelMesh{
		Vertices: make([]float32, len(vb)/4),
		Indices:  make([]uint32, len(ib)/4),
	}
	for i := range out.Vertices {
		out.Vertices[i] = math.Float32frombits(binary.LittleEndian.Uint32(vb[4*i:]))
	}
	for i := range out.Indices {
		out.Indices[i] = binary.LittleEndian.Uint32(ib[4*i:])
	}
	return out, nil
}

func NewChunkVoxels(c *chunk.Chunk) ChunkVoxelsMsg {
	cx, cz := c.ID().Unpack()
	return ChunkVoxelsMsg{
		Type:            TypeChunkVoxels,
		ProtocolVersion: Version,
		ChunkID:         int64(c.ID()),
		CX:              cx,
		CZ:              cz,
		Size:            chunk.Size,
		Encoding:        EncodingVoxels,
		Data:            encoding.EncodeRLE(c.Voxels()),
	}
}

// Voxels decodes the RLE payload into a full grid.
func (m ChunkVoxelsMsg) Voxels() ([]uint8, error) {
	if m.Encoding != EncodingVoxels {
		return nil, fmt.Errorf("unsupported voxel encoding %q", m.Encoding)
	}
	n := m.Size * m.Size * m.Size
	out, err := encoding.DecodeRLE(m.Data, n)
	if err != nil {
		return nil, err
	}
	if len(out) != n {
		return nil, fmt.Errorf("voxels: got %d ids want %d", len(out), n)
	}
	return out, nil
}
