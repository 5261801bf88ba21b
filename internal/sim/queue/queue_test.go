package queue

import (
	"testing"

	"voxelbyte/internal/sim/chunk"
	"voxelbyte/internal/sim/mesh"
)

func TestWorkFIFO(t *testing.T) {
	q := NewWork()
	if _, ok := q.TryPop(); ok {
		t.Fatalf("pop from empty queue succeeded")
	}
	for i := int32(0); i < 5; i++ {
		q.Push(chunk.PackID(i, -i))
	}
	if q.Len() != 5 {
		t.Fatalf("len=%d want 5", q.Len())
	}
	for i := int32(0); i < 5; i++ {
		id, ok := q.TryPop()
		if !ok || id != chunk.PackID(i, -i) {
			t.Fatalf("pop %d = %v,%v", i, id, ok)
		}
	}
	if q.Len() != 0 {
		t.Fatalf("len=%d want 0", q.Len())
	}
}

func TestWorkNotify(t *testing.T) {
	q := NewWork()
	q.Push(1)
	q.Push(2)
	select {
	case <-q.Notify():
	default:
		t.Fatalf("no notification after push")
	}
	q.TryPop()
	// one item left, so the pop re-arms the signal
	select {
	case <-q.Notify():
	default:
		t.Fatalf("no notification with items remaining")
	}
}

func TestResultsDrain(t *testing.T) {
	q := NewResults()
	if len(q.Drain()) != 0 {
		t.Fatalf("drain of empty queue returned items")
	}
	m := &mesh.VoxelMesh{}
	q.Push(Result{ID: 1, Mesh: m})
	q.Push(Result{ID: 2, Mesh: m})
	got := q.Drain()
	if len(got) != 2 || got[0].ID != 1 || got[1].ID != 2 {
		t.Fatalf("drain=%v", got)
	}
	if q.Len() != 0 {
		t.Fatalf("len=%d want 0 after drain", q.Len())
	}
}
