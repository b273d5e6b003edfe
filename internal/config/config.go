// Package config loads the core's configuration: defaults, overridden
// by an optional YAML file, overridden by command-line flags. spec.md
// §6 limits what the core itself reads from configuration (bind
// address, port, storage directory) — everything else here is an
// ambient concern SPEC_FULL.md adds so the bundled binary is operable.
//
// The teacher has no reusable config-loading code of its own (its only
// loader, kernel/mesh_config.go, read from js.Global() and is WASM-only),
// so this package is built fresh, using gopkg.in/yaml.v3 (sourced from
// the retrieval pack's yaninyzwitty-hyperpb-go, which uses it for its
// own fixture config) plus the standard flag package, the combination
// idiomatic small Go services in the pack reach for in place of a
// heavier framework like viper.
package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nmxmxh/kvstored/internal/pool"
)

// Config is the full set of knobs the bundled binary exposes. Only
// BindAddr, Port, and StorageDir are part of spec.md's external
// interface; the rest are ambient/domain-stack additions.
type Config struct {
	BindAddr   string `yaml:"bind_addr"`
	Port       int    `yaml:"port"`
	StorageDir string `yaml:"storage_dir"`

	PipelineCap       int           `yaml:"pipeline_cap"`
	SocketBufferBytes int           `yaml:"socket_buffer_bytes"`
	ReadTimeout       time.Duration `yaml:"read_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	MaxConnections    int           `yaml:"max_connections"`
	AdmissionPerSec   float64       `yaml:"admission_per_sec"`

	PoolInitialBytes int64 `yaml:"pool_initial_bytes"`
	PoolEmptySlabCap int   `yaml:"pool_empty_slab_cap"`
	StatsEnabled     bool  `yaml:"stats_enabled"`

	MetricsEnabled bool   `yaml:"metrics_enabled"`
	MetricsAddr    string `yaml:"metrics_addr"`

	LogLevel      string `yaml:"log_level"`
	LogProduction bool   `yaml:"log_production"`
}

// DefaultPort is spec.md §6's chosen default, picked to coexist with a
// canonical Redis instance on 6379.
const DefaultPort = 6380

// Default returns the configuration used when no file or flags override
// it.
func Default() Config {
	return Config{
		BindAddr:          "0.0.0.0",
		Port:              DefaultPort,
		StorageDir:        "./data",
		PipelineCap:       100,
		SocketBufferBytes: 256 << 10,
		ReadTimeout:       0,
		WriteTimeout:      0,
		MaxConnections:    10000,
		AdmissionPerSec:   0, // 0 disables admission throttling
		PoolInitialBytes:  pool.DefaultInitialPoolSize(),
		PoolEmptySlabCap:  pool.DefaultEmptySlabCap,
		StatsEnabled:      true,
		MetricsEnabled:    false,
		MetricsAddr:       ":9121",
		LogLevel:          "info",
		LogProduction:     false,
	}
}

// LoadFile merges a YAML file's fields over cfg, leaving fields absent
// from the file untouched.
func LoadFile(cfg Config, path string) (Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// BindFlags registers cfg's fields on fs, each defaulting to cfg's
// current value so flags layer on top of defaults-then-YAML-file,
// matching spec.md §6's precedence: defaults < file < flags.
func BindFlags(fs *flag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.BindAddr, "bind", cfg.BindAddr, "address to bind")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "port to listen on")
	fs.StringVar(&cfg.StorageDir, "storage-dir", cfg.StorageDir, "persistent storage directory")
	fs.IntVar(&cfg.PipelineCap, "pipeline-cap", cfg.PipelineCap, "per-connection pipeline queue bound")
	fs.IntVar(&cfg.MaxConnections, "max-connections", cfg.MaxConnections, "listener-level connection cap")
	fs.BoolVar(&cfg.StatsEnabled, "stats", cfg.StatsEnabled, "enable pool/buffer-pool statistics")
	fs.BoolVar(&cfg.MetricsEnabled, "metrics", cfg.MetricsEnabled, "enable the Prometheus metrics endpoint")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "address for the Prometheus metrics endpoint")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug|info|warn|error")
	fs.BoolVar(&cfg.LogProduction, "log-production", cfg.LogProduction, "use JSON structured logging")
}
