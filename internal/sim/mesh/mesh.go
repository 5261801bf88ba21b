package mesh

import "github.com/go-gl/mathgl/mgl32"

// Stride is the number of float32 values per vertex: x y z r g b.
const Stride = 6

// VoxelMesh holds interleaved vertices and triangle indices for one chunk.
// Positions are chunk-local.
type VoxelMesh struct {
	Vertices []float32
	Indices  []uint32
}

func (m *VoxelMesh) AddVertex(p mgl32.Vec3, r, g, b float32) {
	m.Vertices = append(m.Vertices, p[0], p[1], p[2], r, g, b)
}

func (m *VoxelMesh) AddIndex(i ...uint32) {
	m.Indices = append(m.Indices, i...)
}

// addQuad appends the corners p, p+du, p+dv, p+du+dv and the two
// triangles (0,1,2) (1,2,3) relative to the current vertex count.
func (m *VoxelMesh) addQuad(p, du, dv mgl32.Vec3, r, g, b float32) {
	base := uint32(m.VertexCount())
	m.AddVertex(p, r, g, b)
	m.AddVertex(p.Add(du), r, g, b)
	m.AddVertex(p.Add(dv), r, g, b)
	m.AddVertex(p.Add(du).Add(dv), r, g, b)
	m.AddIndex(base, base+1, base+2, base+1, base+2, base+3)
}

func (m *VoxelMesh) VertexCount() int   { return len(m.Vertices) / Stride }
func (m *VoxelMesh) TriangleCount() int { return len(m.Indices) / 3 }
func (m *VoxelMesh) Quads() int         { return len(m.Indices) / 6 }

func (m *VoxelMesh) Empty() bool { return len(m.Indices) == 0 }

// Position returns the position of vertex i.
func (m *VoxelMesh) Position(i int) mgl32.Vec3 {
	o := i * Stride
	return mgl32.Vec3{m.Vertices[o], m.Vertices[o+1], m.Vertices[o+2]}
}

// Color returns the color of vertex i.
func (m *VoxelMesh) Color(i int) mgl32.Vec3 {
	o := i*Stride + 3
	return mgl32.Vec3{m.Vertices[o], m.Vertices[o+1], m.Vertices[o+2]}
}
