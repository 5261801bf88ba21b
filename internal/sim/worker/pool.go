package worker

import (
	"io"
	"log"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"voxelbyte/internal/sim/chunk"
	"voxelbyte/internal/sim/mesh"
	"voxelbyte/internal/sim/queue"
	"voxelbyte/internal/sim/store"
	"voxelbyte/internal/sim/terrain"
)

const DefaultIdlePoll = 50 * time.Millisecond

type Config struct {
	Workers  int           // <=0 means runtime.NumCPU()
	IdlePoll time.Duration // park timeout when the queue is empty

	// OnMeshed runs on the worker goroutine after each result is queued.
	OnMeshed func(r queue.Result, elapsed time.Duration)
}

type Stats struct {
	Workers   int
	Running   int
	Processed uint64
	IdlePolls uint64
	Missing   uint64
}

type Pool struct {
	cfg     Config
	store   *store.ChunkStore
	work    *queue.Work
	results *queue.Results
	sampler terrain.HeightSampler
	mesher  *mesh.Mesher
	logger  *log.Logger

	n int

	started  atomic.Bool
	shutdown atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	running   atomic.Int32
	processed atomic.Uint64
	idlePolls atomic.Uint64
	missing   atomic.Uint64
}

func Count(n int) int {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	if n < 1 {
		n = 1
	}
	return n
}

func New(cfg Config, s *store.ChunkStore, work *queue.Work, results *queue.Results, sampler terrain.HeightSampler, mesher *mesh.Mesher, logger *log.Logger) *Pool {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if cfg.IdlePoll <= 0 {
		cfg.IdlePoll = DefaultIdlePoll
	}
	if mesher == nil {
		mesher = mesh.NewMesher(nil, mesh.ColorPerFace)
	}
	return &Pool{
		cfg:     cfg,
		store:   s,
		work:    work,
		results: results,
		sampler: sampler,
		mesher:  mesher,
		logger:  logger,
		n:       Count(cfg.Workers),
		stop:    make(chan struct{}),
	}
}

func (p *Pool) Workers() int { return p.n }

// Start spawns the workers. Calling it twice is a no-op.
func (p *Pool) Start() {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	p.logger.Printf("worker pool start workers=%d", p.n)
	for i := 0; i < p.n; i++ {
		p.wg.Add(1)
		p.running.Add(1)
		go p.loop(i)
	}
}

// Shutdown signals every worker and waits for them to exit. A worker finishes
// the chunk it holds first; ids still queued stay in the work queue.
func (p *Pool) Shutdown() {
	p.shutdown.Store(true)
	p.stopOnce.Do(func() { close(p.stop) })
	p.wg.Wait()
}

func (p *Pool) Stats() Stats {
	return Stats{
		Workers:   p.n,
		Running:   int(p.running.Load()),
		Processed: p.processed.Load(),
		IdlePolls: p.idlePolls.Load(),
		Missing:   p.missing.Load(),
	}
}

func (p *Pool) loop(idx int) {
	defer p.wg.Done()
	defer p.running.Add(-1)

	idle := time.NewTimer(p.cfg.IdlePoll)
	defer idle.Stop()

	for !p.shutdown.Load() {
		id, ok := p.work.TryPop()
		if !ok {
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(p.cfg.IdlePoll)
			select {
			case <-p.stop:
				return
			case <-p.work.Notify():
			case <-idle.C:
				p.idlePolls.Add(1)
			}
			continue
		}
		p.process(idx, id)
	}
}

func (p *Pool) process(idx int, id chunk.ID) {
	c := p.store.Get(id)
	if c == nil {
		// Only ids inserted before enqueue reach the queue.
		p.missing.Add(1)
		p.logger.Printf("worker=%d chunk missing id=%d", idx, id)
		return
	}
	start := time.Now()
	c.Generate(p.sampler)
	m := p.mesher.Build(c)
	r := queue.Result{ID: id, Mesh: m}
	p.results.Push(r)
	p.processed.Add(1)
	if p.cfg.OnMeshed != nil {
		p.cfg.OnMeshed(r, time.Since(start))
	}
}
