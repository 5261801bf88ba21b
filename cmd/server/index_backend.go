package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"voxelbyte/internal/persistence/indexdb"
	"voxelbyte/internal/sim/catalogs"
	"voxelbyte/internal/sim/tuning"
)

func openRuntimeIndex(dataDir, runID string, disableDB bool, tune tuning.Tuning) (*indexdb.SQLiteIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("VC_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		dbPath := filepath.Join(dataDir, "index", "meshes.sqlite")
		return indexdb.OpenSQLite(dbPath, runID, indexdb.Options{
			Queue:         tune.Telemetry.IndexQueue,
			CommitEvery:   tune.Telemetry.IndexBatch,
			CommitMaxWait: time.Duration(envInt("VC_INDEX_COMMIT_MS", 2000)) * time.Millisecond,
		})
	default:
		return nil, fmt.Errorf("unsupported VC_INDEX_BACKEND: %s", backend)
	}
}

func runInfo(runID string, tune tuning.Tuning, cats *catalogs.VoxelCatalog) indexdb.RunInfo {
	info := indexdb.RunInfo{
		RunID:     runID,
		Seed:      tune.Seed,
		Radius:    tune.ChunkRadius,
		Workers:   tune.Workers,
		ColorMode: tune.ColorMode,
		Tuning:    tune,
	}
	if cats != nil {
		info.Palette = cats.Digest
	}
	return info
}
