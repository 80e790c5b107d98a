// Package config loads the YAML application configuration and the .env
// file carrying downstream LLM provider API keys.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration, loaded from config.yaml
// (with $VAR references expanded from the environment) and with
// VDOCS_DATA_DIR, when set, overriding data_dir.
type Config struct {
	DataDir    string           `yaml:"data_dir"`
	Server     ServerConfig     `yaml:"server"`
	Runner     RunnerConfig     `yaml:"runner"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Watcher    WatcherConfig    `yaml:"watcher"`
	Jobs       JobsConfig       `yaml:"jobs"`
	Versioning VersioningConfig `yaml:"versioning"`
	Sharing    SharingConfig    `yaml:"sharing"`
}

// ServerConfig controls the streaming socket adapter.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// RunnerConfig holds Runner settings. QueueCapacity is not read by the
// runners, whose event bridge buffer is fixed at 16 events.
type RunnerConfig struct {
	QueueCapacity int `yaml:"queue_capacity"`
}

// SchedulerConfig controls periodic GC sweeps.
type SchedulerConfig struct {
	BlobGCSchedule string `yaml:"blob_gc_schedule"` // cron expression
	JobGCSchedule  string `yaml:"job_gc_schedule"`
	JobGCOlderThan string `yaml:"job_gc_older_than"` // duration string, e.g. "168h"
}

// WatcherConfig holds video-directory watcher settings. The daemon does
// not read Enabled (it always starts one watcher per user directory), and
// watcher.New fixes the debounce at 2s regardless of DebounceInterval.
type WatcherConfig struct {
	Enabled          bool   `yaml:"enabled"`
	DebounceInterval string `yaml:"debounce_interval"`
}

// JobsConfig controls the Job Registry's SQLite backing store.
type JobsConfig struct {
	DBPath string `yaml:"db_path"`
}

// VersioningConfig controls default GC retention for compiled-output versions.
type VersioningConfig struct {
	CompilationKeepCount int `yaml:"compilation_keep_count"`
}

// SharingConfig controls the Share Token Resolver's reverse index. Leaving
// NatsURL empty keeps the daemon on its single-process in-memory index;
// setting it fans the index out across daemon replicas via JetStream KV
// (internal/sharetoken.NatsIndex).
type SharingConfig struct {
	NatsURL    string `yaml:"nats_url"`
	NatsBucket string `yaml:"nats_bucket"`
}

// Load reads and parses a YAML config file, applying defaults for any
// unset field. It also loads a .env file from the current working directory
// (if present) via godotenv
// so that downstream LLM provider API keys are available in the process
// environment without ever being logged.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// Absence of .env is not fatal; downstream stages may rely on
		// already-exported environment variables instead.
		fmt.Fprintf(os.Stderr, "note: no .env file loaded: %v\n", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if envDir := os.Getenv("VDOCS_DATA_DIR"); envDir != "" {
		cfg.DataDir = envDir
	}

	return &cfg, nil
}

// FromDataDir builds a Config carrying only defaults, rooted at dataDir,
// for callers (the CLI) that operate without a config.yaml on disk.
func FromDataDir(dataDir string) *Config {
	cfg := &Config{DataDir: dataDir}
	applyDefaults(cfg)
	cfg.DataDir = dataDir
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.DataDir == "" {
		cfg.DataDir = "./data"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8085"
	}
	if cfg.Runner.QueueCapacity <= 0 {
		cfg.Runner.QueueCapacity = 64
	}
	if cfg.Scheduler.BlobGCSchedule == "" {
		cfg.Scheduler.BlobGCSchedule = "0 3 * * *"
	}
	if cfg.Scheduler.JobGCSchedule == "" {
		cfg.Scheduler.JobGCSchedule = "0 4 * * *"
	}
	if cfg.Scheduler.JobGCOlderThan == "" {
		cfg.Scheduler.JobGCOlderThan = "168h"
	}
	if cfg.Watcher.DebounceInterval == "" {
		cfg.Watcher.DebounceInterval = "2s"
	}
	if cfg.Jobs.DBPath == "" {
		cfg.Jobs.DBPath = "./data/jobs.db"
	}
	if cfg.Versioning.CompilationKeepCount <= 0 {
		cfg.Versioning.CompilationKeepCount = 10
	}
	if cfg.Sharing.NatsBucket == "" {
		cfg.Sharing.NatsBucket = "vdocs_shares"
	}
}

// JobGCOlderThanDuration parses JobGCOlderThan, falling back to 7 days on error.
func (c *Config) JobGCOlderThanDuration() time.Duration {
	if parsed, err := time.ParseDuration(c.Scheduler.JobGCOlderThan); err == nil {
		return parsed
	}
	return 7 * 24 * time.Hour
}

// WatcherDebounce parses Watcher.DebounceInterval, falling back to 2s on error.
func (c *Config) WatcherDebounce() time.Duration {
	if d, err := time.ParseDuration(c.Watcher.DebounceInterval); err == nil {
		return d
	}
	return 2 * time.Second
}

// Init writes a fresh config.yaml with commented example values.
func Init(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", path)
	}
	example := `# vdocs configuration
data_dir: ./data

server:
  addr: ":8085"

runner:
  queue_capacity: 64

scheduler:
  blob_gc_schedule: "0 3 * * *"
  job_gc_schedule: "0 4 * * *"
  job_gc_older_than: "168h"

watcher:
  enabled: true
  debounce_interval: "2s"

jobs:
  db_path: ./data/jobs.db

versioning:
  compilation_keep_count: 10

sharing:
  nats_url: ""
  nats_bucket: vdocs_shares
`
	return os.WriteFile(path, []byte(example), 0o644)
}
