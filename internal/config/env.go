package config

import (
	"os"
	"time"
)

// Environment variables override file values. They cover the knobs useful
// in containers; per-queue settings stay in the file.
const (
	EnvDataDir        = "QUILL_DATA_DIR"
	EnvLogLevel       = "QUILL_LOG_LEVEL"
	EnvLogFormat      = "QUILL_LOG_FORMAT"
	EnvStorageBackend = "QUILL_STORAGE_BACKEND"
	EnvStorageFsync   = "QUILL_STORAGE_FSYNC"
	EnvSweepInterval  = "QUILL_SWEEP_INTERVAL"
)

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvDataDir); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv(EnvStorageBackend); v != "" {
		cfg.Storage.Backend = v
	}
	if v := os.Getenv(EnvStorageFsync); v != "" {
		cfg.Storage.Fsync = v
	}
	if v := os.Getenv(EnvSweepInterval); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Defaults.SweepInterval = Duration(d)
		}
	}
}
