// Package config loads engine configuration from YAML or JSON files plus
// environment overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// queueNameRe bounds queue names to filesystem- and metrics-safe tokens.
var queueNameRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,79}$`)

// Duration is a time.Duration that unmarshals from strings like "30s".
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	return d.parse(s)
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	return d.parse(s)
}

func (d *Duration) parse(s string) error {
	if s == "" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config is the root configuration document.
type Config struct {
	// DataDir is where the pebble backend stores its database.
	DataDir string `yaml:"dataDir" json:"dataDir"`

	Log      LogConfig     `yaml:"log" json:"log"`
	Storage  StorageConfig `yaml:"storage" json:"storage"`
	Defaults QueueDefaults `yaml:"defaults" json:"defaults"`
	Queues   []QueueConfig `yaml:"queues" json:"queues"`
}

type LogConfig struct {
	// Level is debug, info, warn, or error. Default info.
	Level string `yaml:"level" json:"level"`
	// Format is json or text. Default json.
	Format string `yaml:"format" json:"format"`
}

type StorageConfig struct {
	// Backend is pebble or memory. Default pebble.
	Backend string `yaml:"backend" json:"backend"`
	// Fsync is always, interval, or never. Default interval.
	Fsync string `yaml:"fsync" json:"fsync"`
	// FsyncInterval is the group-commit window for fsync=interval.
	FsyncInterval Duration `yaml:"fsyncInterval" json:"fsyncInterval"`
}

// QueueDefaults applies to queues that do not set their own values.
type QueueDefaults struct {
	VisibilityTimeout Duration `yaml:"visibilityTimeout" json:"visibilityTimeout"`
	SweepInterval     Duration `yaml:"sweepInterval" json:"sweepInterval"`
	MaxReceiveCount   int      `yaml:"maxReceiveCount" json:"maxReceiveCount"`
	EventBuffer       int      `yaml:"eventBuffer" json:"eventBuffer"`
}

// QueueConfig declares one queue.
type QueueConfig struct {
	Name   string `yaml:"name" json:"name"`
	Policy string `yaml:"policy" json:"policy"`

	VisibilityTimeout Duration `yaml:"visibilityTimeout" json:"visibilityTimeout"`
	SweepInterval     Duration `yaml:"sweepInterval" json:"sweepInterval"`
	MaxReceiveCount   int      `yaml:"maxReceiveCount" json:"maxReceiveCount"`
	EventBuffer       int      `yaml:"eventBuffer" json:"eventBuffer"`

	// FIFO
	DeduplicationScope        string `yaml:"deduplicationScope" json:"deduplicationScope"`
	ContentBasedDeduplication bool   `yaml:"contentBasedDeduplication" json:"contentBasedDeduplication"`

	// Priority
	PriorityLevels  []int `yaml:"priorityLevels" json:"priorityLevels"`
	DefaultPriority int   `yaml:"defaultPriority" json:"defaultPriority"`

	// Delayed
	DefaultDelay Duration `yaml:"defaultDelay" json:"defaultDelay"`
	MaxDelay     Duration `yaml:"maxDelay" json:"maxDelay"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DataDir: "data",
		Log:     LogConfig{Level: "info", Format: "json"},
		Storage: StorageConfig{Backend: "pebble", Fsync: "interval"},
		Defaults: QueueDefaults{
			VisibilityTimeout: Duration(30 * time.Second),
			SweepInterval:     Duration(time.Second),
		},
	}
}

// Load reads a config file, merges it over the defaults, applies QUILL_*
// environment overrides, and validates the result. An empty path loads
// defaults plus environment only.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".json":
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the document for contradictions before anything starts.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "", "pebble", "memory":
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.Storage.Backend)
	}
	switch c.Storage.Fsync {
	case "", "always", "interval", "never":
	default:
		return fmt.Errorf("config: unknown fsync mode %q", c.Storage.Fsync)
	}
	switch c.Log.Format {
	case "", "json", "text":
	default:
		return fmt.Errorf("config: unknown log format %q", c.Log.Format)
	}

	seen := make(map[string]struct{}, len(c.Queues))
	for i := range c.Queues {
		qc := &c.Queues[i]
		if !queueNameRe.MatchString(qc.Name) {
			return fmt.Errorf("config: invalid queue name %q", qc.Name)
		}
		if _, dup := seen[qc.Name]; dup {
			return fmt.Errorf("config: duplicate queue %q", qc.Name)
		}
		seen[qc.Name] = struct{}{}
		switch qc.Policy {
		case "fifo", "priority", "delayed":
		default:
			return fmt.Errorf("config: queue %q: unknown policy %q", qc.Name, qc.Policy)
		}
		switch qc.DeduplicationScope {
		case "", "queue", "messageGroup":
		default:
			return fmt.Errorf("config: queue %q: unknown deduplicationScope %q", qc.Name, qc.DeduplicationScope)
		}
	}
	return nil
}

// Queue returns the declaration for name, or nil.
func (c *Config) Queue(name string) *QueueConfig {
	for i := range c.Queues {
		if c.Queues[i].Name == name {
			return &c.Queues[i]
		}
	}
	return nil
}
