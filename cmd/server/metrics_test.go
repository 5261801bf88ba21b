package main

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"voxelbyte/internal/render"
	"voxelbyte/internal/sim/engine"
	"voxelbyte/internal/sim/terrain"
	"voxelbyte/internal/sim/tuning"
)

func TestMetricsHandler(t *testing.T) {
	bufs := render.NewBuffers()
	eng := engine.New(engine.Config{
		Radius:      1,
		Workers:     1,
		IdlePoll:    2 * time.Millisecond,
		ViewerStart: mgl32.Vec3{10, 20, 30},
	}, engine.Deps{
		Sampler: terrain.Flat(0),
		Sink:    bufs,
		Clock:   &engine.ManualClock{},
	})

	h := metricsHandler(metricsSources{Engine: eng, Buffers: bufs})
	rr := httptest.NewRecorder()
	h(rr, httptest.NewRequest("GET", "/metrics", nil))

	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("content-type=%q", ct)
	}
	body := rr.Body.String()
	for _, want := range []string{
		"voxelbyte_engine_tick 0\n",
		"voxelbyte_chunks 0\n",
		`voxelbyte_workers{state="configured"} 1`,
		`voxelbyte_viewer_position{axis="y"} 20.000`,
		"voxelbyte_buffered_meshes 0\n",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q:\n%s", want, body)
		}
	}
	if strings.Contains(body, "voxelbyte_telemetry_total") {
		t.Fatalf("telemetry metrics emitted without sinks")
	}
}

func TestApplyFlags(t *testing.T) {
	d := tuning.Defaults()

	tune := tuning.Defaults()
	applyFlags(&tune, 0, -1, 0, "")
	if tune.Seed != d.Seed || tune.Workers != d.Workers || tune.ChunkRadius != d.ChunkRadius || tune.ColorMode != d.ColorMode {
		t.Fatalf("zero flags changed tuning: %+v", tune)
	}

	applyFlags(&tune, 42, 0, 7, " legacy ")
	if tune.Seed != 42 || tune.Workers != 0 || tune.ChunkRadius != 7 || tune.ColorMode != "legacy" {
		t.Fatalf("overrides not applied: %+v", tune)
	}
}

func TestEngineConfigFromTuning(t *testing.T) {
	tune := tuning.Defaults()
	tune.ViewerStart = []float64{1, 2, 3}
	tune.WorkerIdlePollMs = 25
	cfg := engineConfig(tune)
	if cfg.ViewerStart != (mgl32.Vec3{1, 2, 3}) {
		t.Fatalf("viewer start=%v", cfg.ViewerStart)
	}
	if cfg.IdlePoll != 25*time.Millisecond {
		t.Fatalf("idle poll=%v", cfg.IdlePoll)
	}
	if cfg.Radius != tune.ChunkRadius || cfg.RefreshInterval != tune.RefreshIntervalS {
		t.Fatalf("cfg=%+v", cfg)
	}
}

func TestIsLoopbackRemote(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1:1234": true,
		"[::1]:80":       true,
		"10.0.0.2:5555":  false,
		"garbage":        false,
	}
	for in, want := range cases {
		if got := isLoopbackRemote(in); got != want {
			t.Fatalf("isLoopbackRemote(%q)=%v want %v", in, got, want)
		}
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("VB_TEST_BOOL", "false")
	t.Setenv("VB_TEST_INT", "17")
	t.Setenv("VB_TEST_BAD", "nope")
	if envBool("VB_TEST_BOOL", true) {
		t.Fatalf("envBool ignored value")
	}
	if !envBool("VB_TEST_BAD", true) || !envBool("VB_TEST_UNSET", true) {
		t.Fatalf("envBool default not used")
	}
	if envInt("VB_TEST_INT", 1) != 17 || envInt("VB_TEST_BAD", 3) != 3 {
		t.Fatalf("envInt")
	}
}

func TestOpenRuntimeIndexBackends(t *testing.T) {
	dir := t.TempDir()
	tune := tuning.Defaults()

	idx, err := openRuntimeIndex(dir, "run-a", true, tune)
	if err != nil || idx != nil {
		t.Fatalf("disabled: idx=%v err=%v", idx, err)
	}

	t.Setenv("VC_INDEX_BACKEND", "none")
	if idx, err := openRuntimeIndex(dir, "run-a", false, tune); err != nil || idx != nil {
		t.Fatalf("none: idx=%v err=%v", idx, err)
	}

	t.Setenv("VC_INDEX_BACKEND", "d1")
	if _, err := openRuntimeIndex(dir, "run-a", false, tune); err == nil {
		t.Fatalf("expected error for unsupported backend")
	}

	t.Setenv("VC_INDEX_BACKEND", "")
	idx, err = openRuntimeIndex(dir, "run-a", false, tune)
	if err != nil || idx == nil {
		t.Fatalf("sqlite: idx=%v err=%v", idx, err)
	}
	if err := idx.StartRun(runInfo("run-a", tune, nil)); err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	_ = idx.Close()
}
