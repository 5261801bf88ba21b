package indexdb

import (
	"path/filepath"
	"testing"
	"time"

	"voxelbyte/internal/sim/engine"
)

func TestSQLiteIndex_RecordsChunks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	s, err := OpenSQLite(path, "run-a", Options{CommitEvery: 3})
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := s.StartRun(RunInfo{RunID: "run-a", Seed: 6, Radius: 4, Workers: 2, ColorMode: "per_face", Tuning: map[string]int{"chunk_radius": 4}}); err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	for i := 0; i < 10; i++ {
		s.ObserveMesh(engine.MeshEvent{ChunkID: int64(i), CX: int32(i), Quads: 6, Vertices: 24, Indices: 36, DurationUS: 100, MeshedAt: time.Now().UTC().Format(time.RFC3339Nano)})
	}
	// duplicate chunk ids overwrite rather than add
	s.ObserveMesh(engine.MeshEvent{ChunkID: 3, Quads: 6})
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := OpenSQLite(path, "run-b", Options{})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	n, err := s2.ChunkCount("run-a")
	if err != nil {
		t.Fatalf("ChunkCount: %v", err)
	}
	if n != 10 {
		t.Fatalf("chunks=%d want 10", n)
	}
	runs, err := s2.Runs()
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != "run-a" || runs[0].Chunks != 10 || runs[0].Quads != 60 {
		t.Fatalf("runs=%+v", runs)
	}
	if st := s.Stats(); st.Written != 11 || st.Dropped != 0 {
		t.Fatalf("stats=%+v", st)
	}
}

func TestSQLiteIndex_PeriodicCommit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	s, err := OpenSQLite(path, "run-c", Options{CommitEvery: 1000, CommitMaxWait: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer s.Close()
	if err := s.StartRun(RunInfo{RunID: "run-c"}); err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	s.ObserveMesh(engine.MeshEvent{ChunkID: 1})
	deadline := time.Now().Add(10 * time.Second)
	for s.Stats().Written != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("row not committed by the max-wait ticker: %+v", s.Stats())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan engine.MeshEvent, 1)}
	s.ObserveMesh(engine.MeshEvent{ChunkID: 1})
	s.ObserveMesh(engine.MeshEvent{ChunkID: 2})

	st := s.Stats()
	if st.Dropped != 1 {
		t.Fatalf("Dropped=%d want=1", st.Dropped)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestOpenSQLiteRejectsEmpty(t *testing.T) {
	if _, err := OpenSQLite("", "r", Options{}); err == nil {
		t.Fatalf("expected error for empty path")
	}
	if _, err := OpenSQLite(filepath.Join(t.TempDir(), "x.db"), "", Options{}); err == nil {
		t.Fatalf("expected error for empty run id")
	}
}
