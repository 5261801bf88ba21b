package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"voxelbyte/internal/sim/engine"
)

// SQLiteIndex is a queryable read-model of meshing runs. Writes are queued
// and applied by one goroutine in batched transactions; the mesh event log
// stays the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	mu     sync.RWMutex // guards ch against send-after-close
	ch     chan engine.MeshEvent
	closed bool
	wg     sync.WaitGroup
	once   sync.Once

	runID       string
	commitEvery int

	dropped atomic.Uint64
	written atomic.Uint64
	failed  atomic.Uint64
}

type Options struct {
	Queue       int
	CommitEvery int
	// CommitMaxWait bounds how long a row may sit in an open transaction.
	CommitMaxWait time.Duration
}

type Stats struct {
	Written       uint64 `json:"written"`
	Dropped       uint64 `json:"dropped"`
	Failed        uint64 `json:"failed"`
	QueueDepth    int    `json:"queue_depth"`
	QueueCapacity int    `json:"queue_capacity"`
}

// RunInfo is written once per process start.
type RunInfo struct {
	RunID     string
	Seed      int64
	Radius    int
	Workers   int
	ColorMode string
	Palette   string // catalog digest, empty for built-ins
	Tuning    any
}

func OpenSQLite(path, runID string, opt Options) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if runID == "" {
		return nil, fmt.Errorf("empty run id")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	if opt.Queue <= 0 {
		opt.Queue = 4096
	}
	if opt.CommitEvery <= 0 {
		opt.CommitEvery = 256
	}
	if opt.CommitMaxWait <= 0 {
		opt.CommitMaxWait = 2 * time.Second
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db:          db,
		ch:          make(chan engine.MeshEvent, opt.Queue),
		runID:       runID,
		commitEvery: opt.CommitEvery,
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop(opt.CommitMaxWait)
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	// NORMAL is a decent durability/perf tradeoff for a secondary index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			seed INTEGER NOT NULL,
			radius INTEGER NOT NULL,
			workers INTEGER NOT NULL,
			color_mode TEXT NOT NULL,
			palette_digest TEXT NOT NULL,
			tuning_digest TEXT NOT NULL,
			tuning_json TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS chunks (
			run_id TEXT NOT NULL REFERENCES runs(run_id),
			chunk_id INTEGER NOT NULL,
			cx INTEGER NOT NULL,
			cz INTEGER NOT NULL,
			origin_x INTEGER NOT NULL,
			origin_z INTEGER NOT NULL,
			vertices INTEGER NOT NULL,
			indices INTEGER NOT NULL,
			quads INTEGER NOT NULL,
			duration_us INTEGER NOT NULL,
			meshed_at TEXT NOT NULL,
			PRIMARY KEY (run_id, chunk_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_pos ON chunks(cx, cz);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// StartRun records the run header synchronously. Call it before the first
// ObserveMesh; chunk rows reference it.
func (s *SQLiteIndex) StartRun(info RunInfo) error {
	if s == nil {
		return nil
	}
	b, err := json.Marshal(info.Tuning)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(b)
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO runs(run_id,started_at,seed,radius,workers,color_mode,palette_digest,tuning_digest,tuning_json) VALUES(?,?,?,?,?,?,?,?,?)`,
		s.runID, now, info.Seed, info.Radius, info.Workers, info.ColorMode, info.Palette, hex.EncodeToString(sum[:]), string(b),
	); err != nil {
		return err
	}
	return tx.Commit()
}

// ObserveMesh queues a chunk row. It drops the row when the writer is behind.
func (s *SQLiteIndex) ObserveMesh(ev engine.MeshEvent) {
	if s == nil {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- ev:
	default:
		s.dropped.Add(1)
	}
}

func (s *SQLiteIndex) Stats() Stats {
	return Stats{
		Written:       s.written.Load(),
		Dropped:       s.dropped.Load(),
		Failed:        s.failed.Load(),
		QueueDepth:    len(s.ch),
		QueueCapacity: cap(s.ch),
	}
}

// ChunkCount returns how many chunk rows the run has.
func (s *SQLiteIndex) ChunkCount(runID string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM chunks WHERE run_id = ?`, runID).Scan(&n)
	return n, err
}

type RunSummary struct {
	RunID     string
	StartedAt string
	Chunks    int
	Quads     int64
	AvgUS     float64
}

// Runs lists every recorded run, newest first.
func (s *SQLiteIndex) Runs() ([]RunSummary, error) {
	rows, err := s.db.Query(`
		SELECT r.run_id, r.started_at, COUNT(c.chunk_id), COALESCE(SUM(c.quads), 0), COALESCE(AVG(c.duration_us), 0)
		FROM runs r LEFT JOIN chunks c ON c.run_id = r.run_id
		GROUP BY r.run_id
		ORDER BY r.started_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.RunID, &r.StartedAt, &r.Chunks, &r.Quads, &r.AvgUS); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) loop(maxWait time.Duration) {
	ctx := context.Background()
	insertChunk, err := s.db.Prepare(`INSERT OR REPLACE INTO chunks(run_id,chunk_id,cx,cz,origin_x,origin_z,vertices,indices,quads,duration_us,meshed_at) VALUES(?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		// Without the statement nothing can be written; keep draining so
		// producers never block.
		for range s.ch {
			s.failed.Add(1)
		}
		return
	}
	defer insertChunk.Close()

	var (
		tx      *sql.Tx
		pending int
	)
	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			// If we can't start a tx, we can't do much; sleep a bit.
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		pending = 0
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.failed.Add(uint64(pending))
		} else {
			s.written.Add(uint64(pending))
		}
		tx = nil
		pending = 0
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		s.failed.Add(uint64(pending))
		tx = nil
		pending = 0
	}

	ticker := time.NewTicker(maxWait)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-s.ch:
			if !ok {
				commit()
				return
			}
			begin()
			if tx == nil {
				s.failed.Add(1)
				continue
			}
			if _, err := tx.Stmt(insertChunk).Exec(
				s.runID,
				ev.ChunkID,
				ev.CX, ev.CZ,
				ev.Origin[0], ev.Origin[2],
				ev.Vertices,
				ev.Indices,
				ev.Quads,
				ev.DurationUS,
				ev.MeshedAt,
			); err != nil {
				s.failed.Add(1)
				rollback()
				continue
			}
			pending++
			if pending >= s.commitEvery {
				commit()
			}
		case <-ticker.C:
			commit()
		}
	}
}
