package log

import (
	"path/filepath"
	"sync"
	"sync/atomic"

	"voxelbyte/internal/sim/engine"
)

// MeshLine is one record of the mesh event log.
type MeshLine struct {
	RunID string `json:"run_id"`
	engine.MeshEvent
}

// MeshLogger writes one compressed JSONL line per finished mesh. ObserveMesh
// only enqueues; a single goroutine owns the file.
type MeshLogger struct {
	runID string
	w     *JSONLZstdWriter

	mu     sync.RWMutex // guards ch against send-after-close
	ch     chan MeshLine
	closed bool
	wg     sync.WaitGroup
	once   sync.Once

	written atomic.Uint64
	dropped atomic.Uint64
	errors  atomic.Uint64
}

type MeshLoggerStats struct {
	Written       uint64 `json:"written"`
	Dropped       uint64 `json:"dropped"`
	Errors        uint64 `json:"errors"`
	QueueDepth    int    `json:"queue_depth"`
	QueueCapacity int    `json:"queue_capacity"`
}

// NewMeshLogger writes to <runDir>/meshes/meshes-YYYY-MM-DD-HH.jsonl.zst.
func NewMeshLogger(runDir, runID string, queue int) *MeshLogger {
	if queue <= 0 {
		queue = 4096
	}
	l := &MeshLogger{
		runID: runID,
		w:     NewJSONLZstdWriter(filepath.Join(runDir, "meshes"), "meshes"),
		ch:    make(chan MeshLine, queue),
	}
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.loop()
	}()
	return l
}

func (l *MeshLogger) ObserveMesh(ev engine.MeshEvent) {
	if l == nil {
		return
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return
	}
	select {
	case l.ch <- MeshLine{RunID: l.runID, MeshEvent: ev}:
	default:
		l.dropped.Add(1)
	}
}

func (l *MeshLogger) loop() {
	for line := range l.ch {
		if err := l.w.Write(line); err != nil {
			l.errors.Add(1)
			continue
		}
		l.written.Add(1)
		if len(l.ch) == 0 {
			_ = l.w.Flush()
		}
	}
}

func (l *MeshLogger) Stats() MeshLoggerStats {
	return MeshLoggerStats{
		Written:       l.written.Load(),
		Dropped:       l.dropped.Load(),
		Errors:        l.errors.Load(),
		QueueDepth:    len(l.ch),
		QueueCapacity: cap(l.ch),
	}
}

// Close drains the queue and closes the file.
func (l *MeshLogger) Close() error {
	var err error
	l.once.Do(func() {
		l.mu.Lock()
		l.closed = true
		close(l.ch)
		l.mu.Unlock()
		l.wg.Wait()
		err = l.w.Close()
	})
	return err
}
