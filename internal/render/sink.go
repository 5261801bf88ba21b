package render

import (
	"sort"
	"sync"

	"voxelbyte/internal/sim/chunk"
	"voxelbyte/internal/sim/mesh"
)

// Sink receives finished chunk meshes. BufferMesh is called from the
// engine loop goroutine only.
type Sink interface {
	BufferMesh(id chunk.ID, origin chunk.Pos, m *mesh.VoxelMesh)
}

type SinkFunc func(id chunk.ID, origin chunk.Pos, m *mesh.VoxelMesh)

func (f SinkFunc) BufferMesh(id chunk.ID, origin chunk.Pos, m *mesh.VoxelMesh) { f(id, origin, m) }

type Entry struct {
	ID     chunk.ID
	Origin chunk.Pos
	Mesh   *mesh.VoxelMesh
}

// Buffers is the renderer-side table of buffered meshes, one per chunk id.
type Buffers struct {
	mu      sync.Mutex
	entries map[chunk.ID]Entry

	vertices int
	indices  int
}

func NewBuffers() *Buffers {
	return &Buffers{entries: map[chunk.ID]Entry{}}
}

// BufferMesh stores m unless id already has a buffer.
func (b *Buffers) BufferMesh(id chunk.ID, origin chunk.Pos, m *mesh.VoxelMesh) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.entries[id]; ok {
		return
	}
	b.entries[id] = Entry{ID: id, Origin: origin, Mesh: m}
	if m != nil {
		b.vertices += m.VertexCount()
		b.indices += len(m.Indices)
	}
}

// Delete drops the buffer for id. Unknown ids are ignored.
func (b *Buffers) Delete(id chunk.ID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[id]
	if !ok {
		return false
	}
	delete(b.entries, id)
	if e.Mesh != nil {
		b.vertices -= e.Mesh.VertexCount()
		b.indices -= len(e.Mesh.Indices)
	}
	return true
}

// Free releases every buffer.
func (b *Buffers) Free() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = map[chunk.ID]Entry{}
	b.vertices, b.indices = 0, 0
}

func (b *Buffers) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

func (b *Buffers) Get(id chunk.ID) (Entry, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[id]
	return e, ok
}

// Totals returns the summed vertex and index counts of all buffers.
func (b *Buffers) Totals() (vertices, indices int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.vertices, b.indices
}

// Each calls fn for every buffer in ascending id order. fn must not call
// back into b.
func (b *Buffers) Each(fn func(Entry)) {
	b.mu.Lock()
	list := make([]Entry, 0, len(b.entries))
	for _, e := range b.entries {
		list = append(list, e)
	}
	b.mu.Unlock()
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	for _, e := range list {
		fn(e)
	}
}

// Multi fans each mesh out to every sink in order.
type Multi []Sink

func (m Multi) BufferMesh(id chunk.ID, origin chunk.Pos, vm *mesh.VoxelMesh) {
	for _, s := range m {
		if s != nil {
			s.BufferMesh(id, origin, vm)
		}
	}
}
