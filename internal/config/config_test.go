package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "quill.yaml", `
dataDir: /var/lib/quill
log:
  level: debug
defaults:
  visibilityTimeout: 45s
queues:
  - name: orders
    policy: fifo
    deduplicationScope: messageGroup
    contentBasedDeduplication: true
  - name: jobs
    policy: priority
    priorityLevels: [1, 5, 10]
    defaultPriority: 5
  - name: reminders
    policy: delayed
    defaultDelay: 10s
    maxDelay: 1h
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DataDir != "/var/lib/quill" {
		t.Fatalf("dataDir = %q", cfg.DataDir)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Fatalf("log defaults not merged: %+v", cfg.Log)
	}
	if cfg.Defaults.VisibilityTimeout.Std() != 45*time.Second {
		t.Fatalf("visibilityTimeout = %v", cfg.Defaults.VisibilityTimeout.Std())
	}
	if len(cfg.Queues) != 3 {
		t.Fatalf("want 3 queues, got %d", len(cfg.Queues))
	}
	jobs := cfg.Queue("jobs")
	if jobs == nil || jobs.DefaultPriority != 5 || len(jobs.PriorityLevels) != 3 {
		t.Fatalf("jobs queue wrong: %+v", jobs)
	}
	if cfg.Queue("reminders").MaxDelay.Std() != time.Hour {
		t.Fatalf("maxDelay not parsed")
	}
	if cfg.Queue("missing") != nil {
		t.Fatalf("unknown queue resolved")
	}
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "quill.json", `{
  "dataDir": "/tmp/q",
  "queues": [{"name": "orders", "policy": "fifo"}]
}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DataDir != "/tmp/q" || len(cfg.Queues) != 1 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.Backend != "pebble" || cfg.Defaults.SweepInterval.Std() != time.Second {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvDataDir, "/env/dir")
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvStorageBackend, "memory")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DataDir != "/env/dir" || cfg.Log.Level != "error" || cfg.Storage.Backend != "memory" {
		t.Fatalf("env not applied: %+v", cfg)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"bad queue name", "queues:\n  - name: \"bad name!\"\n    policy: fifo\n"},
		{"duplicate queue", "queues:\n  - name: a\n    policy: fifo\n  - name: a\n    policy: fifo\n"},
		{"unknown policy", "queues:\n  - name: a\n    policy: lifo\n"},
		{"bad dedup scope", "queues:\n  - name: a\n    policy: fifo\n    deduplicationScope: global\n"},
		{"bad backend", "storage:\n  backend: postgres\n"},
		{"bad duration", "defaults:\n  visibilityTimeout: soon\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeFile(t, "bad.yaml", tc.yaml)
			if _, err := Load(path); err == nil {
				t.Fatalf("want error for %s", tc.name)
			}
		})
	}
}
