// Package config loads server settings from defaults, an optional YAML file,
// the environment and command-line overrides, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override: TRACKY_STORE_BACKEND sets
// store.backend.
const EnvPrefix = "TRACKY"

// Config is the resolved server configuration.
type Config struct {
	Data    DataConfig
	Store   StoreConfig
	Views   ViewsConfig
	Events  EventsConfig
	Actor   string
	Log     LogConfig
	Metrics MetricsConfig
	Watch   WatchConfig

	// File is the config file that was read, empty when none was found.
	File string
}

// DataConfig locates the JSON-lines data file.
type DataConfig struct {
	File string
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Backend     string
	SQLitePath  string
	PostgresDSN string
}

// ViewsConfig tunes derived views.
type ViewsConfig struct {
	VelocityDays int
	SprintDays   int
}

// EventsConfig bounds the per-project event log.
type EventsConfig struct {
	Retention int
	PageSize  int
}

// LogConfig controls the logger. An empty File logs to stderr.
type LogConfig struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// MetricsConfig controls the Prometheus endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr string
}

// WatchConfig controls the data file watcher.
type WatchConfig struct {
	Enabled  bool
	Debounce time.Duration
}

// Defaults for every key.
var defaults = map[string]any{
	"data.file":           "tasks.json",
	"store.backend":       "jsonl",
	"store.sqlite_path":   "tracky.db",
	"store.postgres_dsn":  "",
	"views.velocity_days": 7,
	"views.sprint_days":   14,
	"events.retention":    200,
	"events.page_size":    50,
	"actor":               "system",
	"log.level":           "info",
	"log.file":            "",
	"log.max_size_mb":     10,
	"log.max_backups":     3,
	"log.max_age_days":    28,
	"metrics.addr":        "",
	"watch.enabled":       true,
	"watch.debounce":      "250ms",
}

// userConfigDir is a package-level var for testability.
var userConfigDir = os.UserConfigDir

// Load resolves the configuration. path names an explicit config file; when
// empty, ./tracky.yaml and then <user config dir>/tracky/config.yaml are
// tried. overrides (typically changed CLI flags) win over everything else.
//
// Relative file paths in the result are resolved against the working
// directory.
func Load(path string, overrides map[string]any) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	// The original server read its data file location from TASK_FILE_PATH.
	_ = v.BindEnv("data.file", EnvPrefix+"_DATA_FILE", "TASK_FILE_PATH")

	file, err := locateConfigFile(path)
	if err != nil {
		return nil, err
	}
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", file, err)
		}
	}

	for key, value := range overrides {
		v.Set(key, value)
	}

	cfg := &Config{
		Data: DataConfig{File: v.GetString("data.file")},
		Store: StoreConfig{
			Backend:     strings.ToLower(v.GetString("store.backend")),
			SQLitePath:  v.GetString("store.sqlite_path"),
			PostgresDSN: v.GetString("store.postgres_dsn"),
		},
		Views: ViewsConfig{
			VelocityDays: v.GetInt("views.velocity_days"),
			SprintDays:   v.GetInt("views.sprint_days"),
		},
		Events: EventsConfig{
			Retention: v.GetInt("events.retention"),
			PageSize:  v.GetInt("events.page_size"),
		},
		Actor: v.GetString("actor"),
		Log: LogConfig{
			Level:      strings.ToLower(v.GetString("log.level")),
			File:       v.GetString("log.file"),
			MaxSizeMB:  v.GetInt("log.max_size_mb"),
			MaxBackups: v.GetInt("log.max_backups"),
			MaxAgeDays: v.GetInt("log.max_age_days"),
		},
		Metrics: MetricsConfig{Addr: v.GetString("metrics.addr")},
		Watch: WatchConfig{
			Enabled:  v.GetBool("watch.enabled"),
			Debounce: v.GetDuration("watch.debounce"),
		},
		File: file,
	}

	if err := cfg.resolvePaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// locateConfigFile returns the config file to read, or "" when none exists.
// An explicit path must exist.
func locateConfigFile(path string) (string, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("config file: %w", err)
		}
		return path, nil
	}

	candidates := []string{"tracky.yaml"}
	if dir, err := userConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, "tracky", "config.yaml"))
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("config file %s: %w", c, err)
		}
	}
	return "", nil
}

func (c *Config) resolvePaths() error {
	for _, p := range []*string{&c.Data.File, &c.Store.SQLitePath, &c.Log.File} {
		if *p == "" || filepath.IsAbs(*p) {
			continue
		}
		abs, err := filepath.Abs(*p)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", *p, err)
		}
		*p = abs
	}
	return nil
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "jsonl", "sqlite", "postgres", "memory":
	default:
		return fmt.Errorf("invalid store.backend %q: must be one of: jsonl, sqlite, postgres, memory", c.Store.Backend)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log.level %q: must be one of: debug, info, warn, error", c.Log.Level)
	}
	if c.Views.VelocityDays <= 0 {
		return fmt.Errorf("views.velocity_days must be positive, got %d", c.Views.VelocityDays)
	}
	if c.Views.SprintDays <= 0 {
		return fmt.Errorf("views.sprint_days must be positive, got %d", c.Views.SprintDays)
	}
	if c.Events.PageSize <= 0 {
		return fmt.Errorf("events.page_size must be positive, got %d", c.Events.PageSize)
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative, got %s", c.Watch.Debounce)
	}
	return nil
}
