package streaming

import (
	"io"
	"log"

	"github.com/go-gl/mathgl/mgl32"

	"voxelbyte/internal/render"
	"voxelbyte/internal/sim/chunk"
	"voxelbyte/internal/sim/mathx"
	"voxelbyte/internal/sim/queue"
	"voxelbyte/internal/sim/store"
)

const (
	DefaultRadius          = 4
	DefaultRefreshInterval = 1.5 // seconds
)

// Clock reports seconds since an arbitrary fixed start.
type Clock interface {
	Elapsed() float64
}

type Config struct {
	Radius          int
	RefreshInterval float64
}

// Controller decides which chunks should exist around the viewer and hands
// finished meshes to the sink. All methods run on the engine loop goroutine.
type Controller struct {
	cfg     Config
	store   *store.ChunkStore
	work    *queue.Work
	results *queue.Results
	sink    render.Sink
	clock   Clock
	logger  *log.Logger

	lastRefresh float64
	buffered    uint64
	queued      uint64
}

func New(cfg Config, s *store.ChunkStore, work *queue.Work, results *queue.Results, sink render.Sink, clock Clock, logger *log.Logger) *Controller {
	if cfg.Radius <= 0 {
		cfg.Radius = DefaultRadius
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = DefaultRefreshInterval
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if sink == nil {
		sink = render.Multi(nil)
	}
	return &Controller{cfg: cfg, store: s, work: work, results: results, sink: sink, clock: clock, logger: logger}
}

func (c *Controller) Radius() int { return c.cfg.Radius }

// CenterOf returns the chunk grid cell containing the viewer.
func CenterOf(viewer mgl32.Vec3) (cx, cz int) {
	return mathx.FloorDivF(viewer.X(), chunk.Size), mathx.FloorDivF(viewer.Z(), chunk.Size)
}

// UpdateChunks creates and enqueues every missing chunk within the radius
// and returns how many were enqueued.
func (c *Controller) UpdateChunks(viewer mgl32.Vec3) int {
	cx, cz := CenterOf(viewer)
	r := c.cfg.Radius
	n := 0
	for dx := -r; dx < r; dx++ {
		for dz := -r; dz < r; dz++ {
			if !mathx.Within(dx, dz, r) {
				continue
			}
			x, z := int32(cx+dx), int32(cz+dz)
			id := chunk.PackID(x, z)
			if c.store.Has(id) {
				continue
			}
			ch := chunk.New(id, chunk.OriginFor(x, z))
			if !c.store.Insert(ch) {
				continue
			}
			c.work.Push(id)
			n++
			c.logger.Printf("chunk queued id=%d cx=%d cz=%d origin=(%d,%d)", id, x, z, ch.Origin().X, ch.Origin().Z)
		}
	}
	c.queued += uint64(n)
	return n
}

// Reupdate runs UpdateChunks at most once per refresh interval of clock time.
func (c *Controller) Reupdate(viewer mgl32.Vec3) bool {
	now := c.clock.Elapsed()
	if now-c.lastRefresh < c.cfg.RefreshInterval {
		return false
	}
	c.UpdateChunks(viewer)
	c.lastRefresh = c.clock.Elapsed()
	return true
}

// BufferMeshes hands every finished mesh to the sink and returns the count.
func (c *Controller) BufferMeshes() int {
	done := c.results.Drain()
	for _, r := range done {
		c.sink.BufferMesh(r.ID, c.store.Origin(r.ID), r.Mesh)
	}
	c.buffered += uint64(len(done))
	return len(done)
}

// Tick is one main-loop step.
func (c *Controller) Tick(viewer mgl32.Vec3) {
	c.BufferMeshes()
	c.Reupdate(viewer)
}

// Counters returns the totals of chunks queued and meshes buffered.
func (c *Controller) Counters() (queued, buffered uint64) {
	return c.queued, c.buffered
}
