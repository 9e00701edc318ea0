// Package config loads dafny-mcp.toml.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// FileName is the name looked up from the working directory upwards.
const FileName = "dafny-mcp.toml"

// Config is the full configuration of the server and the trace tool.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Gutter  GutterConfig  `toml:"gutter"`
	Log     LogConfig     `toml:"log"`
	Metrics MetricsConfig `toml:"metrics"`

	// Path is the file the configuration was read from, empty for defaults.
	Path string `toml:"-"`
}

type ServerConfig struct {
	Command       string   `toml:"command"`
	Args          []string `toml:"args"`
	NotifyTimeout Duration `toml:"notify_timeout"`
}

type GutterConfig struct {
	AutoSync bool     `toml:"auto_sync"`
	Debounce Duration `toml:"debounce"`
	Cache    bool     `toml:"cache"`
	CacheDir string   `toml:"cache_dir"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type MetricsConfig struct {
	Addr string `toml:"addr"`
}

// Duration decodes TOML strings such as "10s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the configuration used when no file is found.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Command:       "dafny",
			Args:          []string{"server"},
			NotifyTimeout: Duration{10 * time.Second},
		},
		Gutter: GutterConfig{
			AutoSync: true,
			Debounce: Duration{200 * time.Millisecond},
			Cache:    true,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Find walks up from startDir looking for FileName.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Load reads path on top of the defaults. An empty path searches upwards from
// the working directory and falls back to the defaults when nothing is found.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		found, ok, err := Find(".")
		if err != nil {
			return cfg, err
		}
		if !ok {
			return cfg, nil
		}
		path = found
	}
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	cfg.Path = path
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks values that would only fail later at runtime.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Server.Command) == "" {
		return errors.New("[server].command is empty")
	}
	if c.Server.NotifyTimeout.Duration <= 0 {
		return errors.New("[server].notify_timeout must be positive")
	}
	if c.Gutter.Debounce.Duration < 0 {
		return errors.New("[gutter].debounce must not be negative")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// CacheDir returns the gutter cache directory, defaulting under XDG_CACHE_HOME.
func (c Config) CacheDir() (string, error) {
	if c.Gutter.CacheDir != "" {
		return c.Gutter.CacheDir, nil
	}
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".cache")
	}
	return filepath.Join(base, "dafny-mcp"), nil
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", name)
}

// NewLogger builds the stderr logger used by both binaries. Stdout is
// reserved for the protocol stream.
func NewLogger(level string) (*slog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), nil
}
