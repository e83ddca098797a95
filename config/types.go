package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
)

// Defaults applied by SetDefaults.
const (
	DefaultVersion        = "1.0"
	DefaultDebounce       = "3s"
	DefaultRescanInterval = "5m"
	DefaultRestartBackoff = "2s"
	DefaultWorkers        = 4
	DefaultQueryTimeout   = "2m"
	DefaultShutdownGrace  = "5s"
	DefaultPython         = "bin/python"
	DefaultDu             = "du"
)

// DefaultExclude hides dot-directories such as .conda_envs_dir_test.
var DefaultExclude = []string{".*"}

// WatchConfig configures change detection.
type WatchConfig struct {
	Debounce       string `yaml:"debounce,omitempty" toml:"debounce,omitempty" jsonschema:"description=Window collecting changes before a refresh, measured from the first change (default: 3s)"`
	RescanInterval string `yaml:"rescan_interval,omitempty" toml:"rescan_interval,omitempty" jsonschema:"description=Interval of the periodic full cheap-check pass; 0 disables it (default: 5m)"`
	RestartBackoff string `yaml:"restart_backoff,omitempty" toml:"restart_backoff,omitempty" jsonschema:"description=Delay before restarting a failed watch stream (default: 2s)"`
}

// RefreshConfig configures the refresh worker pool.
type RefreshConfig struct {
	Workers       int    `yaml:"workers,omitempty" toml:"workers,omitempty" jsonschema:"description=Maximum external queries running at once (default: 4),minimum=1"`
	QueryTimeout  string `yaml:"query_timeout,omitempty" toml:"query_timeout,omitempty" jsonschema:"description=Timeout of one external query (default: 2m)"`
	ShutdownGrace string `yaml:"shutdown_grace,omitempty" toml:"shutdown_grace,omitempty" jsonschema:"description=How long in-flight queries may finish after shutdown starts (default: 5s)"`
}

// QueriesConfig names the external programs behind the expensive fields.
type QueriesConfig struct {
	Python string `yaml:"python,omitempty" toml:"python,omitempty" jsonschema:"description=Interpreter path relative to an environment root (default: bin/python)"`
	Du     string `yaml:"du,omitempty" toml:"du,omitempty" jsonschema:"description=Disk usage program (default: du)"`
}

// SnapshotConfig configures the persisted registry snapshot.
type SnapshotConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty" toml:"enabled,omitempty" jsonschema:"description=Persist the registry between runs (default: true)"`
	Path    string `yaml:"path,omitempty" toml:"path,omitempty" jsonschema:"description=Snapshot file (default: <state dir>/snapshot.yml)"`
}

// DaemonConfig configures the background daemon (envwatchd).
type DaemonConfig struct {
	Socket  string `yaml:"socket,omitempty" toml:"socket,omitempty" jsonschema:"description=Unix socket the daemon listens on"`
	Pidfile string `yaml:"pidfile,omitempty" toml:"pidfile,omitempty" jsonschema:"description=PID file of the running daemon"`
}

// Config represents the envwatch.yml configuration
type Config struct {
	Version  string         `yaml:"version" toml:"version" jsonschema:"description=Configuration version (e.g. 1.0)"`
	Root     string         `yaml:"root,omitempty" toml:"root,omitempty" jsonschema:"description=Directory whose subdirectories are environments"`
	Exclude  []string       `yaml:"exclude,omitempty" toml:"exclude,omitempty" jsonschema:"description=Patterns of environment names to ignore (default: ['.*'])"`
	Watch    WatchConfig    `yaml:"watch,omitempty" toml:"watch,omitempty" jsonschema:"description=Change detection settings"`
	Refresh  RefreshConfig  `yaml:"refresh,omitempty" toml:"refresh,omitempty" jsonschema:"description=Refresh worker pool settings"`
	Queries  QueriesConfig  `yaml:"queries,omitempty" toml:"queries,omitempty" jsonschema:"description=External query programs"`
	Snapshot SnapshotConfig `yaml:"snapshot,omitempty" toml:"snapshot,omitempty" jsonschema:"description=Registry snapshot persistence"`
	Daemon   DaemonConfig   `yaml:"daemon,omitempty" toml:"daemon,omitempty" jsonschema:"description=Daemon settings"`

	// Extensions captures all other top-level keys for extensibility.
	Extensions map[string]interface{} `yaml:",inline" toml:"-" jsonschema:"-"`
}

// SetDefaults sets default values for configuration
func (c *Config) SetDefaults() {
	if c.Version == "" {
		c.Version = DefaultVersion
	}
	if c.Exclude == nil {
		c.Exclude = append([]string(nil), DefaultExclude...)
	}
	if c.Watch.Debounce == "" {
		c.Watch.Debounce = DefaultDebounce
	}
	if c.Watch.RescanInterval == "" {
		c.Watch.RescanInterval = DefaultRescanInterval
	}
	if c.Watch.RestartBackoff == "" {
		c.Watch.RestartBackoff = DefaultRestartBackoff
	}
	if c.Refresh.Workers == 0 {
		c.Refresh.Workers = DefaultWorkers
	}
	if c.Refresh.QueryTimeout == "" {
		c.Refresh.QueryTimeout = DefaultQueryTimeout
	}
	if c.Refresh.ShutdownGrace == "" {
		c.Refresh.ShutdownGrace = DefaultShutdownGrace
	}
	if c.Queries.Python == "" {
		c.Queries.Python = DefaultPython
	}
	if c.Queries.Du == "" {
		c.Queries.Du = DefaultDu
	}
	if c.Snapshot.Enabled == nil {
		enabled := true
		c.Snapshot.Enabled = &enabled
	}
}

// Default returns a configuration with every default applied.
func Default() *Config {
	c := &Config{}
	c.SetDefaults()
	return c
}

// SnapshotEnabled reports whether the registry snapshot is persisted.
func (c *Config) SnapshotEnabled() bool {
	return c.Snapshot.Enabled == nil || *c.Snapshot.Enabled
}

// DebounceDuration returns the parsed debounce window.
func (w WatchConfig) DebounceDuration() time.Duration {
	return parseDuration(w.Debounce, DefaultDebounce)
}

// RescanDuration returns the parsed rescan interval. Zero disables rescans.
func (w WatchConfig) RescanDuration() time.Duration {
	return parseDuration(w.RescanInterval, DefaultRescanInterval)
}

// RestartBackoffDuration returns the parsed restart backoff.
func (w WatchConfig) RestartBackoffDuration() time.Duration {
	return parseDuration(w.RestartBackoff, DefaultRestartBackoff)
}

// QueryTimeoutDuration returns the parsed query timeout.
func (r RefreshConfig) QueryTimeoutDuration() time.Duration {
	return parseDuration(r.QueryTimeout, DefaultQueryTimeout)
}

// ShutdownGraceDuration returns the parsed shutdown grace.
func (r RefreshConfig) ShutdownGraceDuration() time.Duration {
	return parseDuration(r.ShutdownGrace, DefaultShutdownGrace)
}

// parseDuration falls back to def for empty or unparsable values. Validate
// rejects unparsable values before they reach here.
func parseDuration(value, def string) time.Duration {
	if value == "" {
		value = def
	}
	if value == "0" {
		return 0
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		d, _ = time.ParseDuration(def)
	}
	return d
}

// UnmarshalExtension decodes a specific extension's configuration from the
// loaded envwatch.yml into the provided target struct. The target must be a
// pointer. A missing key leaves the target untouched.
//
// Example:
//
//	var logCfg logging.Config
//	err := cfg.UnmarshalExtension("logging", &logCfg)
func (c *Config) UnmarshalExtension(key string, target interface{}) error {
	extensionConfig, ok := c.Extensions[key]
	if !ok {
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "yaml",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(extensionConfig); err != nil {
		return fmt.Errorf("failed to decode extension config for '%s': %w", key, err)
	}

	return nil
}
