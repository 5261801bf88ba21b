package queue

import (
	"sync"

	"voxelbyte/internal/sim/chunk"
	"voxelbyte/internal/sim/mesh"
)

// Work is a FIFO of chunk ids waiting to be generated and meshed.
type Work struct {
	mu     sync.Mutex
	items  []chunk.ID
	notify chan struct{}
}

func NewWork() *Work {
	return &Work{notify: make(chan struct{}, 1)}
}

func (q *Work) Push(id chunk.ID) {
	q.mu.Lock()
	q.items = append(q.items, id)
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// TryPop removes the oldest id without blocking.
func (q *Work) TryPop() (chunk.ID, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return 0, false
	}
	id := q.items[0]
	q.items[0] = 0
	q.items = q.items[1:]
	if len(q.items) > 0 {
		// wake the next parked worker too
		select {
		case q.notify <- struct{}{}:
		default:
		}
	}
	return id, true
}

func (q *Work) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Notify fires at least once after each Push. It is a hint; receivers must
// still TryPop.
func (q *Work) Notify() <-chan struct{} { return q.notify }

type Result struct {
	ID   chunk.ID
	Mesh *mesh.VoxelMesh
}

// Results is a FIFO of finished meshes.
type Results struct {
	mu    sync.Mutex
	items []Result
}

func NewResults() *Results { return &Results{} }

func (q *Results) Push(r Result) {
	q.mu.Lock()
	q.items = append(q.items, r)
	q.mu.Unlock()
}

// Drain removes and returns everything queued, oldest first.
func (q *Results) Drain() []Result {
	q.mu.Lock()
	out := q.items
	q.items = nil
	q.mu.Unlock()
	return out
}

func (q *Results) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
