package engine

import (
	"context"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"voxelbyte/internal/render"
	"voxelbyte/internal/sim/mesh"
	"voxelbyte/internal/sim/queue"
	"voxelbyte/internal/sim/store"
	"voxelbyte/internal/sim/streaming"
	"voxelbyte/internal/sim/terrain"
	"voxelbyte/internal/sim/voxel"
	"voxelbyte/internal/sim/worker"
)

type Config struct {
	TickRateHz      int
	Radius          int
	RefreshInterval float64 // seconds
	Workers         int
	IdlePoll        time.Duration

	ViewerStart mgl32.Vec3
	// ViewerSpeed moves the viewer along +X in units per clock second until a
	// client sets a position. 0 keeps it still.
	ViewerSpeed float32
}

// Deps are the collaborators an Engine is built from. Nil fields get defaults.
type Deps struct {
	Registry *voxel.Registry
	Sampler  terrain.HeightSampler
	Mesher   *mesh.Mesher
	Sink     render.Sink
	Clock    Clock
	Logger   *log.Logger

	// Store and Viewer let callers share the chunk table and the viewer
	// channel with transports built before the engine.
	Store  *store.ChunkStore
	Viewer chan mgl32.Vec3

	// Observers see every finished mesh. They run on worker goroutines and
	// must not block.
	Observers []MeshObserver
}

type Metrics struct {
	Tick           uint64     `json:"tick"`
	Chunks         int        `json:"chunks"`
	Pending        int        `json:"pending"`
	Queued         uint64     `json:"queued"`
	Buffered       uint64     `json:"buffered"`
	Workers        int        `json:"workers"`
	WorkersRunning int        `json:"workers_running"`
	Processed      uint64     `json:"processed"`
	IdlePolls      uint64     `json:"idle_polls"`
	Refreshes      uint64     `json:"refreshes"`
	Viewer         [3]float32 `json:"viewer"`
}

// Engine owns every piece of streaming state. The Run goroutine is the only
// writer of controller and viewer state; other goroutines talk to it through
// channels or read Metrics.
type Engine struct {
	cfg Config

	registry *voxel.Registry
	store    *store.ChunkStore
	work     *queue.Work
	results  *queue.Results
	pool     *worker.Pool
	ctrl     *streaming.Controller
	clock    Clock
	logger   *log.Logger

	viewerIn chan mgl32.Vec3
	stop     chan struct{}
	stopOnce sync.Once

	viewer      mgl32.Vec3
	viewerFixed bool
	lastStep    float64

	started   atomic.Bool
	tick      atomic.Uint64
	queued    atomic.Uint64
	buffered  atomic.Uint64
	refreshes atomic.Uint64

	viewerMu   sync.Mutex
	viewerSnap mgl32.Vec3
}

func New(cfg Config, deps Deps) *Engine {
	if cfg.TickRateHz <= 0 {
		cfg.TickRateHz = 60
	}
	if deps.Logger == nil {
		deps.Logger = log.New(io.Discard, "", 0)
	}
	if deps.Registry == nil {
		deps.Registry = voxel.Default()
	}
	if deps.Sampler == nil {
		deps.Sampler = terrain.NewSimplex(terrain.DefaultSeed, terrain.DefaultFrequency)
	}
	if deps.Mesher == nil {
		deps.Mesher = mesh.NewMesher(deps.Registry, mesh.ColorPerFace)
	}
	if deps.Clock == nil {
		deps.Clock = NewMonotonicClock()
	}
	if deps.Store == nil {
		deps.Store = store.New()
	}
	if deps.Viewer == nil {
		deps.Viewer = make(chan mgl32.Vec3, 64)
	}

	e := &Engine{
		cfg:        cfg,
		registry:   deps.Registry,
		store:      deps.Store,
		work:       queue.NewWork(),
		results:    queue.NewResults(),
		clock:      deps.Clock,
		logger:     deps.Logger,
		viewerIn:   deps.Viewer,
		stop:       make(chan struct{}),
		viewer:     cfg.ViewerStart,
		viewerSnap: cfg.ViewerStart,
	}
	observers := deps.Observers
	e.pool = worker.New(worker.Config{
		Workers:  cfg.Workers,
		IdlePoll: cfg.IdlePoll,
		OnMeshed: func(r queue.Result, elapsed time.Duration) {
			ev := e.meshEvent(r, elapsed)
			e.logger.Printf("chunk meshed id=%d vtx=%d idx=%d took=%s", ev.ChunkID, ev.Vertices, ev.Indices, elapsed)
			for _, o := range observers {
				o.ObserveMesh(ev)
			}
		},
	}, e.store, e.work, e.results, deps.Sampler, deps.Mesher, deps.Logger)
	e.ctrl = streaming.New(streaming.Config{
		Radius:          cfg.Radius,
		RefreshInterval: cfg.RefreshInterval,
	}, e.store, e.work, e.results, deps.Sink, deps.Clock, deps.Logger)
	return e
}

func (e *Engine) Store() *store.ChunkStore          { return e.store }
func (e *Engine) Registry() *voxel.Registry         { return e.registry }
func (e *Engine) Controller() *streaming.Controller { return e.ctrl }
func (e *Engine) Workers() int                      { return e.pool.Workers() }
func (e *Engine) Radius() int                       { return e.ctrl.Radius() }

// Viewer accepts new viewer positions. Sends never block the loop; callers
// should drop on a full channel.
func (e *Engine) Viewer() chan<- mgl32.Vec3 { return e.viewerIn }

func (e *Engine) ViewerPos() mgl32.Vec3 {
	e.viewerMu.Lock()
	defer e.viewerMu.Unlock()
	return e.viewerSnap
}

// Start warms the registry, starts the workers and queues the chunks around
// the start position. Run calls it; tests may call it and drive Step by hand.
func (e *Engine) Start() {
	if !e.started.CompareAndSwap(false, true) {
		return
	}
	// Build the static table before any worker can race on first use.
	voxel.Default()
	e.logger.Printf("engine start workers=%d radius=%d viewer=(%.1f,%.1f,%.1f)",
		e.pool.Workers(), e.ctrl.Radius(), e.viewer.X(), e.viewer.Y(), e.viewer.Z())
	e.pool.Start()
	n := e.ctrl.UpdateChunks(e.viewer)
	e.queued.Add(uint64(n))
	e.lastStep = e.clock.Elapsed()
}

// Step runs one loop iteration: apply the newest viewer position, buffer
// finished meshes and refresh the window when the throttle allows.
func (e *Engine) Step() {
drain:
	for {
		select {
		case p := <-e.viewerIn:
			e.viewer = p
			e.viewerFixed = true
		default:
			break drain
		}
	}

	now := e.clock.Elapsed()
	if !e.viewerFixed && e.cfg.ViewerSpeed != 0 {
		e.viewer[0] += e.cfg.ViewerSpeed * float32(now-e.lastStep)
	}
	e.lastStep = now

	buffered := e.ctrl.BufferMeshes()
	q0, _ := e.ctrl.Counters()
	if e.ctrl.Reupdate(e.viewer) {
		e.refreshes.Add(1)
	}
	q1, _ := e.ctrl.Counters()

	e.buffered.Add(uint64(buffered))
	e.queued.Add(q1 - q0)
	e.tick.Add(1)

	e.viewerMu.Lock()
	e.viewerSnap = e.viewer
	e.viewerMu.Unlock()
}

// Run ticks at TickRateHz until ctx is done or Stop is called. Workers are
// joined before it returns.
func (e *Engine) Run(ctx context.Context) error {
	e.Start()
	defer e.shutdown()

	interval := time.Second / time.Duration(e.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.stop:
			return nil
		case <-ticker.C:
			e.Step()
		}
	}
}

func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stop) })
}

// Shutdown joins the workers. For engines driven by Step instead of Run.
func (e *Engine) Shutdown() { e.shutdown() }

func (e *Engine) shutdown() {
	e.pool.Shutdown()
	st := e.pool.Stats()
	e.logger.Printf("engine stopped processed=%d pending=%d", st.Processed, e.work.Len())
}

func (e *Engine) Metrics() Metrics {
	st := e.pool.Stats()
	v := e.ViewerPos()
	return Metrics{
		Tick:           e.tick.Load(),
		Chunks:         e.store.Len(),
		Pending:        e.work.Len(),
		Queued:         e.queued.Load(),
		Buffered:       e.buffered.Load(),
		Workers:        st.Workers,
		WorkersRunning: st.Running,
		Processed:      st.Processed,
		IdlePolls:      st.IdlePolls,
		Refreshes:      e.refreshes.Load(),
		Viewer:         [3]float32{v[0], v[1], v[2]},
	}
}
