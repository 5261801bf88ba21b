package main

import (
	"fmt"
	"net/http"

	"voxelbyte/internal/persistence/indexdb"
	persistlog "voxelbyte/internal/persistence/log"
	"voxelbyte/internal/render"
	"voxelbyte/internal/sim/engine"
	"voxelbyte/internal/transport/meshws"
)

type metricsSources struct {
	Engine  *engine.Engine
	Buffers *render.Buffers
	Stream  *meshws.Server
	Log     *persistlog.MeshLogger // optional
	Index   *indexdb.SQLiteIndex   // optional
}

func metricsHandler(src metricsSources) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		m := src.Engine.Metrics()

		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP voxelbyte_engine_tick Engine loop iterations.\n")
		fmt.Fprintf(rw, "# TYPE voxelbyte_engine_tick counter\n")
		fmt.Fprintf(rw, "voxelbyte_engine_tick %d\n", m.Tick)

		fmt.Fprintf(rw, "# HELP voxelbyte_chunks Chunks known to the store.\n")
		fmt.Fprintf(rw, "# TYPE voxelbyte_chunks gauge\n")
		fmt.Fprintf(rw, "voxelbyte_chunks %d\n", m.Chunks)

		fmt.Fprintf(rw, "# HELP voxelbyte_work_queue_depth Chunk ids waiting for a worker.\n")
		fmt.Fprintf(rw, "# TYPE voxelbyte_work_queue_depth gauge\n")
		fmt.Fprintf(rw, "voxelbyte_work_queue_depth %d\n", m.Pending)

		fmt.Fprintf(rw, "# HELP voxelbyte_chunks_total Chunk lifecycle counters.\n")
		fmt.Fprintf(rw, "# TYPE voxelbyte_chunks_total counter\n")
		fmt.Fprintf(rw, "voxelbyte_chunks_total{stage=%q} %d\n", "queued", m.Queued)
		fmt.Fprintf(rw, "voxelbyte_chunks_total{stage=%q} %d\n", "meshed", m.Processed)
		fmt.Fprintf(rw, "voxelbyte_chunks_total{stage=%q} %d\n", "buffered", m.Buffered)

		fmt.Fprintf(rw, "# HELP voxelbyte_workers Worker goroutines.\n")
		fmt.Fprintf(rw, "# TYPE voxelbyte_workers gauge\n")
		fmt.Fprintf(rw, "voxelbyte_workers{state=%q} %d\n", "configured", m.Workers)
		fmt.Fprintf(rw, "voxelbyte_workers{state=%q} %d\n", "running", m.WorkersRunning)

		fmt.Fprintf(rw, "# HELP voxelbyte_worker_idle_polls_total Idle poll wakeups across workers.\n")
		fmt.Fprintf(rw, "# TYPE voxelbyte_worker_idle_polls_total counter\n")
		fmt.Fprintf(rw, "voxelbyte_worker_idle_polls_total %d\n", m.IdlePolls)

		fmt.Fprintf(rw, "# HELP voxelbyte_refreshes_total Throttled window refreshes.\n")
		fmt.Fprintf(rw, "# TYPE voxelbyte_refreshes_total counter\n")
		fmt.Fprintf(rw, "voxelbyte_refreshes_total %d\n", m.Refreshes)

		fmt.Fprintf(rw, "# HELP voxelbyte_viewer_position Current viewer position.\n")
		fmt.Fprintf(rw, "# TYPE voxelbyte_viewer_position gauge\n")
		fmt.Fprintf(rw, "voxelbyte_viewer_position{axis=%q} %.3f\n", "x", m.Viewer[0])
		fmt.Fprintf(rw, "voxelbyte_viewer_position{axis=%q} %.3f\n", "y", m.Viewer[1])
		fmt.Fprintf(rw, "voxelbyte_viewer_position{axis=%q} %.3f\n", "z", m.Viewer[2])

		if src.Buffers != nil {
			v, i := src.Buffers.Totals()
			fmt.Fprintf(rw, "# HELP voxelbyte_buffered_meshes Meshes held in the buffer table.\n")
			fmt.Fprintf(rw, "# TYPE voxelbyte_buffered_meshes gauge\n")
			fmt.Fprintf(rw, "voxelbyte_buffered_meshes %d\n", src.Buffers.Len())
			fmt.Fprintf(rw, "# HELP voxelbyte_buffered_elements Vertices and indices held in the buffer table.\n")
			fmt.Fprintf(rw, "# TYPE voxelbyte_buffered_elements gauge\n")
			fmt.Fprintf(rw, "voxelbyte_buffered_elements{kind=%q} %d\n", "vertices", v)
			fmt.Fprintf(rw, "voxelbyte_buffered_elements{kind=%q} %d\n", "indices", i)
		}

		if src.Stream != nil {
			fmt.Fprintf(rw, "# HELP voxelbyte_stream_sessions Connected renderer sessions.\n")
			fmt.Fprintf(rw, "# TYPE voxelbyte_stream_sessions gauge\n")
			fmt.Fprintf(rw, "voxelbyte_stream_sessions %d\n", src.Stream.Sessions())
			fmt.Fprintf(rw, "# HELP voxelbyte_stream_kicked_total Sessions dropped for falling behind.\n")
			fmt.Fprintf(rw, "# TYPE voxelbyte_stream_kicked_total counter\n")
			fmt.Fprintf(rw, "voxelbyte_stream_kicked_total %d\n", src.Stream.Kicked())
		}

		if src.Log != nil {
			s := src.Log.Stats()
			writeSinkMetrics(rw, "log", s.Written, s.Dropped, s.Errors, s.QueueDepth, s.QueueCapacity)
		}
		if src.Index != nil {
			s := src.Index.Stats()
			writeSinkMetrics(rw, "index", s.Written, s.Dropped, s.Failed, s.QueueDepth, s.QueueCapacity)
		}
	}
}

func writeSinkMetrics(rw http.ResponseWriter, sink string, written, dropped, failed uint64, depth, capacity int) {
	fmt.Fprintf(rw, "# HELP voxelbyte_telemetry_total Telemetry rows by outcome.\n")
	fmt.Fprintf(rw, "# TYPE voxelbyte_telemetry_total counter\n")
	fmt.Fprintf(rw, "voxelbyte_telemetry_total{sink=%q,outcome=%q} %d\n", sink, "written", written)
	fmt.Fprintf(rw, "voxelbyte_telemetry_total{sink=%q,outcome=%q} %d\n", sink, "dropped", dropped)
	fmt.Fprintf(rw, "voxelbyte_telemetry_total{sink=%q,outcome=%q} %d\n", sink, "failed", failed)
	fmt.Fprintf(rw, "# HELP voxelbyte_telemetry_queue Telemetry queue depth and capacity.\n")
	fmt.Fprintf(rw, "# TYPE voxelbyte_telemetry_queue gauge\n")
	fmt.Fprintf(rw, "voxelbyte_telemetry_queue{sink=%q,kind=%q} %d\n", sink, "depth", depth)
	fmt.Fprintf(rw, "voxelbyte_telemetry_queue{sink=%q,kind=%q} %d\n", sink, "capacity", capacity)
}
