// Package config loads lifedeck configuration from defaults, an optional
// config file (YAML, TOML or JSON), LIFEDECK_* environment variables and
// command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. LIFEDECK_SYNC_DEBOUNCE.
const EnvPrefix = "LIFEDECK"

// Config is the resolved configuration.
type Config struct {
	// DataDir holds the database, the session file and the locks.
	DataDir string `mapstructure:"data_dir"`
	// DBPath defaults to <DataDir>/lifedeck.db.
	DBPath string `mapstructure:"db_path"`

	Remote    RemoteConfig    `mapstructure:"remote"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Log       LogConfig       `mapstructure:"log"`
	Daemon    DaemonConfig    `mapstructure:"daemon"`
}

// RemoteConfig configures the backend client.
type RemoteConfig struct {
	// URL of the backend. Empty disables sync.
	URL         string        `mapstructure:"url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Attempts    int           `mapstructure:"attempts"`
	BaseBackoff time.Duration `mapstructure:"base_backoff"`
	MaxBackoff  time.Duration `mapstructure:"max_backoff"`
}

// SyncConfig configures the sync engine.
type SyncConfig struct {
	Debounce    time.Duration `mapstructure:"debounce"`
	Concurrency int           `mapstructure:"concurrency"`
	// FlushOnExit pushes pending changes when a CLI command exits instead
	// of leaving them for the next run or the daemon.
	FlushOnExit bool `mapstructure:"flush_on_exit"`
}

// DashboardConfig configures the daemon's WebSocket status feed.
type DashboardConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `mapstructure:"level"`
	// Format is text or json.
	Format string `mapstructure:"format"`
	// File, when set, receives logs with rotation instead of stderr.
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// DaemonConfig configures the long-running daemon.
type DaemonConfig struct {
	// ReloadDebounce batches database file changes made by other
	// processes before the store is reloaded.
	ReloadDebounce time.Duration `mapstructure:"reload_debounce"`
	// ShutdownTimeout bounds the final flush.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DefaultDataDir returns ~/.lifedeck, or .lifedeck when the home
// directory is unknown.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".lifedeck"
	}
	return filepath.Join(home, ".lifedeck")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", DefaultDataDir())
	v.SetDefault("db_path", "")

	v.SetDefault("remote.url", "")
	v.SetDefault("remote.timeout", 15*time.Second)
	v.SetDefault("remote.attempts", 3)
	v.SetDefault("remote.base_backoff", 500*time.Millisecond)
	v.SetDefault("remote.max_backoff", 8*time.Second)

	v.SetDefault("sync.debounce", 10*time.Second)
	v.SetDefault("sync.concurrency", 4)
	v.SetDefault("sync.flush_on_exit", true)

	v.SetDefault("dashboard.enabled", true)
	v.SetDefault("dashboard.addr", "127.0.0.1:7420")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
	v.SetDefault("log.compress", false)

	v.SetDefault("daemon.reload_debounce", 250*time.Millisecond)
	v.SetDefault("daemon.shutdown_timeout", 20*time.Second)
}

// FlagKeys maps command-line flag names to config keys for BindFlags.
var FlagKeys = map[string]string{
	"data-dir":  "data_dir",
	"db":        "db_path",
	"remote":    "remote.url",
	"log-level": "log.level",
	"log-file":  "log.file",
	"debounce":  "sync.debounce",
	"dashboard": "dashboard.addr",
}

// Loader builds a Config. It keeps the underlying viper instance so the
// daemon can watch the config file.
type Loader struct {
	v    *viper.Viper
	file string
}

// NewLoader returns a loader reading file, or searching for config.{yaml,
// toml,json} in the data directory and the current directory when file is
// empty.
func NewLoader(file string) *Loader {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &Loader{v: v, file: file}
}

// BindFlags binds the flags in fs that have a config key.
func (l *Loader) BindFlags(fs *pflag.FlagSet) error {
	var errs []error
	fs.VisitAll(func(f *pflag.Flag) {
		key := FlagKeys[f.Name]
		if key == "" {
			return
		}
		if err := l.v.BindPFlag(key, f); err != nil {
			errs = append(errs, fmt.Errorf("bind flag %s: %w", f.Name, err))
		}
	})
	return errors.Join(errs...)
}

// Load reads the config file (if any) and decodes the configuration.
func (l *Loader) Load() (*Config, error) {
	if l.file != "" {
		l.v.SetConfigFile(l.file)
	} else {
		l.v.SetConfigName("config")
		l.v.AddConfigPath(expandHome(l.v.GetString("data_dir")))
		l.v.AddConfigPath(".")
	}
	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if l.file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	return l.decode()
}

// File returns the config file in use, or "" when none was found.
func (l *Loader) File() string {
	return l.v.ConfigFileUsed()
}

// Viper exposes the underlying instance.
func (l *Loader) Viper() *viper.Viper { return l.v }

func (l *Loader) decode() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.expand()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Watch calls fn with the new configuration whenever the config file
// changes. Invalid edits are reported to onErr and otherwise ignored.
func (l *Loader) Watch(fn func(*Config), onErr func(error)) {
	if l.v.ConfigFileUsed() == "" {
		return
	}
	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := l.decode()
		if err != nil {
			if onErr != nil {
				onErr(err)
			}
			return
		}
		fn(cfg)
	})
	l.v.WatchConfig()
}

func (c *Config) expand() {
	c.DataDir = expandHome(c.DataDir)
	if c.DBPath == "" {
		c.DBPath = filepath.Join(c.DataDir, "lifedeck.db")
	}
	c.DBPath = expandHome(c.DBPath)
	c.Log.File = expandHome(c.Log.File)
	c.Remote.URL = strings.TrimRight(strings.TrimSpace(c.Remote.URL), "/")
	c.Log.Level = strings.ToLower(c.Log.Level)
	c.Log.Format = strings.ToLower(c.Log.Format)
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log.level %q (want debug, info, warn or error)", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log.format %q (want text or json)", c.Log.Format)
	}
	if c.Remote.URL != "" && !strings.HasPrefix(c.Remote.URL, "http://") && !strings.HasPrefix(c.Remote.URL, "https://") {
		return fmt.Errorf("invalid remote.url %q: must start with http:// or https://", c.Remote.URL)
	}
	if c.Sync.Debounce < 0 || c.Remote.Timeout < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	if c.Remote.Attempts < 0 || c.Sync.Concurrency < 0 {
		return fmt.Errorf("counts must not be negative")
	}
	return nil
}

// SessionPath is where the current login is stored.
func (c *Config) SessionPath() string { return filepath.Join(c.DataDir, "session.json") }

// SyncLockPath is the lock file held by the process that owns syncing.
func (c *Config) SyncLockPath() string { return filepath.Join(c.DataDir, "sync.lock") }
