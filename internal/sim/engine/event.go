package engine

import (
	"time"

	"voxelbyte/internal/sim/queue"
)

// MeshEvent describes one finished chunk mesh for telemetry.
type MeshEvent struct {
	ChunkID    int64  `json:"chunk_id"`
	CX         int32  `json:"cx"`
	CZ         int32  `json:"cz"`
	Origin     [3]int `json:"origin"`
	Vertices   int    `json:"vertices"`
	Indices    int    `json:"indices"`
	Quads      int    `json:"quads"`
	DurationUS int64  `json:"duration_us"`
	MeshedAt   string `json:"meshed_at"`
}

type MeshObserver interface {
	ObserveMesh(ev MeshEvent)
}

type ObserverFunc func(ev MeshEvent)

func (f ObserverFunc) ObserveMesh(ev MeshEvent) { f(ev) }

func (e *Engine) meshEvent(r queue.Result, elapsed time.Duration) MeshEvent {
	cx, cz := r.ID.Unpack()
	o := e.store.Origin(r.ID)
	ev := MeshEvent{
		ChunkID:    int64(r.ID),
		CX:         cx,
		CZ:         cz,
		Origin:     [3]int{o.X, o.Y, o.Z},
		DurationUS: elapsed.Microseconds(),
		MeshedAt:   time.Now().UTC().Format(time.RFC3339Nano),
	}
	if r.Mesh != nil {
		ev.Vertices = r.Mesh.VertexCount()
		ev.Indices = len(r.Mesh.Indices)
		ev.Quads = r.Mesh.Quads()
	}
	return ev
}
