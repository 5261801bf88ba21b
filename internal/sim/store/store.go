package store

import (
	"sort"
	"sync"

	"voxelbyte/internal/sim/chunk"
)

// ChunkStore maps chunk ids to chunks. Entries are never replaced or removed.
type ChunkStore struct {
	mu     sync.Mutex
	chunks map[chunk.ID]*chunk.Chunk
}

func New() *ChunkStore {
	return &ChunkStore{chunks: map[chunk.ID]*chunk.Chunk{}}
}

// Insert adds c unless its id is already present. It reports whether c was stored.
func (s *ChunkStore) Insert(c *chunk.Chunk) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.chunks[c.ID()]; ok {
		return false
	}
	s.chunks[c.ID()] = c
	return true
}

func (s *ChunkStore) Get(id chunk.ID) *chunk.Chunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chunks[id]
}

func (s *ChunkStore) Has(id chunk.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.chunks[id]
	return ok
}

func (s *ChunkStore) Lookup(id chunk.ID) (chunk.Pos, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chunks[id]
	if !ok {
		return chunk.Pos{}, false
	}
	return c.Origin(), true
}

// Origin returns the chunk origin, or the zero position for unknown ids.
func (s *ChunkStore) Origin(id chunk.ID) chunk.Pos {
	p, _ := s.Lookup(id)
	return p
}

func (s *ChunkStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chunks)
}

func (s *ChunkStore) Keys() []chunk.ID {
	s.mu.Lock()
	out := make([]chunk.ID, 0, len(s.chunks))
	for id := range s.chunks {
		out = append(out, id)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
