package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"

	"voxelbyte/internal/meshproto"
	persistlog "voxelbyte/internal/persistence/log"
	"voxelbyte/internal/render"
	"voxelbyte/internal/sim/catalogs"
	"voxelbyte/internal/sim/chunk"
	"voxelbyte/internal/sim/engine"
	"voxelbyte/internal/sim/mesh"
	"voxelbyte/internal/sim/store"
	"voxelbyte/internal/sim/terrain"
	"voxelbyte/internal/sim/tuning"
	"voxelbyte/internal/sim/voxel"
	"voxelbyte/internal/transport/meshws"
)

func main() {
	var (
		addr        = flag.String("addr", ":8080", "http listen address")
		configDir   = flag.String("configs", "./configs", "config directory")
		tuningPath  = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		dataDir     = flag.String("data", "./data", "runtime data directory")
		seed        = flag.Int64("seed", 0, "terrain seed (0: use tuning)")
		workers     = flag.Int("workers", -1, "worker goroutines (-1: use tuning, 0: one per CPU)")
		radius      = flag.Int("radius", 0, "chunk streaming radius (0: use tuning)")
		colorMode   = flag.String("color_mode", "", "per_face | legacy (empty: use tuning)")
		disableDB   = flag.Bool("disable_db", false, "disable the sqlite mesh index")
		disableLog  = flag.Bool("disable_log", false, "disable the compressed mesh event log")
		allowRemote = flag.Bool("allow_remote", false, "accept renderer connections from non-loopback addresses")
		voxels      = flag.Bool("voxels", true, "allow clients to request CHUNK_VOXELS dumps")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		logger.Fatalf("load tuning: %v", err)
	}
	applyFlags(&tune, *seed, *workers, *radius, *colorMode)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}
	reg := cats.Registry()

	mode, err := mesh.ParseColorMode(tune.ColorMode)
	if err != nil {
		logger.Fatalf("color mode: %v", err)
	}
	mesher := &mesh.Mesher{Registry: reg, Color: mode, LegacyID: voxel.ID(tune.LegacyColorID)}

	runID := uuid.NewString()
	runDir := filepath.Join(*dataDir, "runs", runID)
	logger.Printf("run id=%s dir=%s", runID, runDir)

	var observers []engine.MeshObserver
	var meshLog *persistlog.MeshLogger
	if !*disableLog {
		meshLog = persistlog.NewMeshLogger(runDir, runID, tune.Telemetry.LogQueue)
		defer meshLog.Close()
		observers = append(observers, meshLog)
	}

	idx, err := openRuntimeIndex(*dataDir, runID, *disableDB, tune)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.StartRun(runInfo(runID, tune, cats)); err != nil {
			logger.Printf("index backend: start run: %v", err)
		}
		observers = append(observers, idx)
	}

	st := store.New()
	viewer := make(chan mgl32.Vec3, 64)
	buffers := render.NewBuffers()

	var eng *engine.Engine
	meshSrv, err := meshws.NewServer(meshws.Config{
		AllowRemote: *allowRemote,
		Voxels:      *voxels,
	}, st, viewer, func() meshproto.BootstrapResponse {
		return meshproto.BootstrapResponse{
			ChunkSize:   chunk.Size,
			ChunkRadius: eng.Radius(),
			Workers:     eng.Workers(),
			Seed:        tune.Seed,
			ColorMode:   mode.String(),
			Palette:     reg.Palette(),
		}
	}, logger)
	if err != nil {
		logger.Fatalf("mesh ws: %v", err)
	}

	eng = engine.New(engineConfig(tune), engine.Deps{
		Registry:  reg,
		Sampler:   terrain.NewSimplex(tune.Seed, tune.NoiseFrequency),
		Mesher:    mesher,
		Sink:      render.Multi{buffers, meshSrv},
		Logger:    logger,
		Store:     st,
		Viewer:    viewer,
		Observers: observers,
	})
	logger.Printf("cpu cores workers=%d radius=%d color_mode=%s seed=%d", eng.Workers(), eng.Radius(), mode, tune.Seed)

	ctx, cancel := signalContext()
	defer cancel()

	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		if err := eng.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("engine stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", metricsHandler(metricsSources{
		Engine:  eng,
		Buffers: buffers,
		Stream:  meshSrv,
		Log:     meshLog,
		Index:   idx,
	}))

	enableAdminHTTP := envBool("VC_ENABLE_ADMIN_HTTP", true)
	enablePprofHTTP := envBool("VC_ENABLE_PPROF_HTTP", false)
	if enableAdminHTTP {
		mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			resp := struct {
				RunID   string         `json:"run_id"`
				Metrics engine.Metrics `json:"metrics"`
			}{
				RunID:   runID,
				Metrics: eng.Metrics(),
			}
			_ = json.NewEncoder(rw).Encode(resp)
		})
	} else {
		logger.Printf("admin endpoints disabled (VC_ENABLE_ADMIN_HTTP=false)")
	}
	if enablePprofHTTP {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	} else {
		logger.Printf("pprof endpoints disabled (VC_ENABLE_PPROF_HTTP=false)")
	}
	mux.HandleFunc("/v1/bootstrap", meshSrv.BootstrapHandler())
	mux.HandleFunc("/v1/mesh/ws", meshSrv.WSHandler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
	cancel()
	<-engineDone
}

func applyFlags(t *tuning.Tuning, seed int64, workers, radius int, colorMode string) {
	if seed != 0 {
		t.Seed = seed
	}
	if workers >= 0 {
		t.Workers = workers
	}
	if radius > 0 {
		t.ChunkRadius = radius
	}
	if s := strings.TrimSpace(colorMode); s != "" {
		t.ColorMode = s
	}
}

func engineConfig(t tuning.Tuning) engine.Config {
	var start mgl32.Vec3
	for i := 0; i < 3 && i < len(t.ViewerStart); i++ {
		start[i] = float32(t.ViewerStart[i])
	}
	return engine.Config{
		TickRateHz:      t.TickRateHz,
		Radius:          t.ChunkRadius,
		RefreshInterval: t.RefreshIntervalS,
		Workers:         t.Workers,
		IdlePoll:        t.IdlePoll(),
		ViewerStart:     start,
		ViewerSpeed:     float32(t.ViewerSpeed),
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
