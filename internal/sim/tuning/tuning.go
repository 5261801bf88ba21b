package tuning

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz       int     `yaml:"tick_rate_hz"`
	ChunkRadius      int     `yaml:"chunk_radius"`
	RefreshIntervalS float64 `yaml:"refresh_interval_s"`
	Workers          int     `yaml:"workers"`
	WorkerIdlePollMs int     `yaml:"worker_idle_poll_ms"`

	Seed           int64   `yaml:"seed"`
	NoiseFrequency float64 `yaml:"noise_frequency"`

	ViewerStart []float64 `yaml:"viewer_start"`
	ViewerSpeed float64   `yaml:"viewer_speed"`

	ColorMode     string `yaml:"color_mode"`
	LegacyColorID int    `yaml:"legacy_color_id"`

	Telemetry Telemetry `yaml:"telemetry"`
}

type Telemetry struct {
	LogQueue   int `yaml:"log_queue"`
	IndexQueue int `yaml:"index_queue"`
	// Index rows are flushed in batches of this size.
	IndexBatch int `yaml:"index_batch"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion:  "1.0",
		TickRateHz:       60,
		ChunkRadius:      4,
		RefreshIntervalS: 1.5,
		Workers:          0,
		WorkerIdlePollMs: 50,
		Seed:             6,
		NoiseFrequency:   0.01,
		ViewerStart:      []float64{800, 100, 950},
		ColorMode:        "per_face",
		LegacyColorID:    1,
		Telemetry: Telemetry{
			LogQueue:   4096,
			IndexQueue: 4096,
			IndexBatch: 256,
		},
	}
}

// Load reads path and fills zero fields from Defaults. A missing file yields
// Defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return t, nil
	}
	if err != nil {
		return t, err
	}
	return Parse(raw)
}

func Parse(raw []byte) (Tuning, error) {
	var t Tuning
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return Defaults(), fmt.Errorf("tuning.yaml: %w", err)
	}
	t.applyDefaults()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t *Tuning) applyDefaults() {
	d := Defaults()
	if t.ProtocolVersion == "" {
		t.ProtocolVersion = d.ProtocolVersion
	}
	if t.TickRateHz == 0 {
		t.TickRateHz = d.TickRateHz
	}
	if t.ChunkRadius == 0 {
		t.ChunkRadius = d.ChunkRadius
	}
	if t.RefreshIntervalS == 0 {
		t.RefreshIntervalS = d.RefreshIntervalS
	}
	if t.WorkerIdlePollMs == 0 {
		t.WorkerIdlePollMs = d.WorkerIdlePollMs
	}
	if t.Seed == 0 {
		t.Seed = d.Seed
	}
	if t.NoiseFrequency == 0 {
		t.NoiseFrequency = d.NoiseFrequency
	}
	if len(t.ViewerStart) == 0 {
		t.ViewerStart = d.ViewerStart
	}
	if t.ColorMode == "" {
		t.ColorMode = d.ColorMode
	}
	if t.LegacyColorID == 0 {
		t.LegacyColorID = d.LegacyColorID
	}
	if t.Telemetry.LogQueue == 0 {
		t.Telemetry.LogQueue = d.Telemetry.LogQueue
	}
	if t.Telemetry.IndexQueue == 0 {
		t.Telemetry.IndexQueue = d.Telemetry.IndexQueue
	}
	if t.Telemetry.IndexBatch == 0 {
		t.Telemetry.IndexBatch = d.Telemetry.IndexBatch
	}
}

func (t Tuning) Validate() error {
	switch {
	case t.TickRateHz < 0:
		return fmt.Errorf("tick_rate_hz must be > 0, got %d", t.TickRateHz)
	case t.ChunkRadius < 0:
		return fmt.Errorf("chunk_radius must be > 0, got %d", t.ChunkRadius)
	case t.RefreshIntervalS < 0:
		return fmt.Errorf("refresh_interval_s must be > 0, got %v", t.RefreshIntervalS)
	case t.Workers < 0:
		return fmt.Errorf("workers must be >= 0, got %d", t.Workers)
	case len(t.ViewerStart) != 3:
		return fmt.Errorf("viewer_start must have 3 components, got %d", len(t.ViewerStart))
	case t.LegacyColorID < 0 || t.LegacyColorID > 255:
		return fmt.Errorf("legacy_color_id out of range: %d", t.LegacyColorID)
	}
	return nil
}

func (t Tuning) IdlePoll() time.Duration {
	return time.Duration(t.WorkerIdlePollMs) * time.Millisecond
}
