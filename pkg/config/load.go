package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"gitlab.com/tinyland/lab/glucose-pulse/pkg/cgm"
)

// AppName names the config, cache, and runtime directories.
const AppName = "glucose-pulse"

// Format is a config file syntax.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// configFileNames are tried in order inside each config directory.
var configFileNames = []string{"config.toml", "config.yaml", "config.yml"}

// FormatForPath picks the syntax from the file extension. Unknown
// extensions are read as TOML.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatTOML
	}
}

// Load reads configuration from the standard config path.
// Search order:
//  1. $XDG_CONFIG_HOME/glucose-pulse/config.{toml,yaml,yml}
//  2. ~/.config/glucose-pulse/config.{toml,yaml,yml}
//
// If no file exists, returns DefaultConfig() with environment overrides.
func Load() (*Config, error) {
	if p := FindConfigFile(); p != "" {
		return LoadFromFile(p)
	}
	cfg := DefaultConfig()
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FindConfigFile returns the first existing config file on the search path,
// or "".
func FindConfigFile() string {
	for _, p := range configSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// LoadFromFile reads configuration from a specific file path. A .env file
// in the same directory is loaded into the process environment first;
// variables already set win.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		return nil, err
	}

	if err := LoadDotEnv(filepath.Dir(path)); err != nil {
		return nil, err
	}

	cfg, err := LoadFromReader(bytes.NewReader(data), FormatForPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.path = path
	return cfg, nil
}

// LoadFromReader reads configuration from an io.Reader in the given format.
func LoadFromReader(r io.Reader, format Format) (*Config, error) {
	cfg := DefaultConfig()
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	default:
		md, err := toml.NewDecoder(r).Decode(cfg)
		if err != nil {
			return nil, fmt.Errorf("decode toml: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("decode toml: unknown key %q", undecoded[0].String())
		}
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads dir/.env if present. Variables already in the
// environment are not overwritten.
func LoadDotEnv(dir string) error {
	p := filepath.Join(dir, ".env")
	if _, err := os.Stat(p); err != nil {
		return nil
	}
	if err := godotenv.Load(p); err != nil {
		return fmt.Errorf("load %s: %w", p, err)
	}
	return nil
}

// DefaultConfig returns the default configuration with sensible defaults.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	cacheDir := filepath.Join(xdgCacheHome(home), AppName)

	return &Config{
		General: GeneralConfig{
			LogLevel:      "info",
			CacheDir:      cacheDir,
			LogFile:       filepath.Join(cacheDir, "daemon.log"),
			LogMaxSizeMB:  5,
			LogMaxBackups: 3,
		},
		Glucose: GlucoseConfig{
			Label:                "🩸{sgv}{direction}",
			Tooltip:              "({sgv_delta}) {delta_time_in_minutes} min",
			Secret:               "",
			SecretEnvName:        "",
			UnknownDirectionIcon: cgm.DefaultUnknownIcon,
			Units:                string(cgm.UnitsMgDL),
			PollInterval:         Duration{1 * time.Minute},
			RequestTimeout:       Duration{10 * time.Second},
			StaleAfter:           Duration{15 * time.Minute},
			EntriesCount:         2,
		},
		Daemon: DaemonConfig{
			WatchConfig: true,
		},
	}
}

// applyEnvOverrides copies GLUCOSE_PULSE_* variables over file values.
func applyEnvOverrides(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("environment overrides: %w", err)
	}
	return nil
}

// configSearchPaths returns the ordered list of config file paths to try.
func configSearchPaths() []string {
	home, _ := os.UserHomeDir()
	var dirs []string

	xdg := xdgConfigHome(home)
	dirs = append(dirs, filepath.Join(xdg, AppName))

	// If XDG_CONFIG_HOME was explicitly set, also try the fallback default.
	defaultXDG := filepath.Join(home, ".config")
	if xdg != defaultXDG {
		dirs = append(dirs, filepath.Join(defaultXDG, AppName))
	}

	var paths []string
	for _, d := range dirs {
		for _, name := range configFileNames {
			paths = append(paths, filepath.Join(d, name))
		}
	}
	return paths
}

// DefaultConfigPath is where `glucose-pulse` writes or expects a TOML config
// when none exists yet.
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(xdgConfigHome(home), AppName, "config.toml")
}

// RuntimeDir returns $XDG_RUNTIME_DIR/glucose-pulse, or the cache dir when
// no runtime dir is available.
func (c *Config) RuntimeDir() string {
	if v := os.Getenv("XDG_RUNTIME_DIR"); v != "" {
		return filepath.Join(v, AppName)
	}
	return c.General.CacheDir
}

// SocketPath returns the configured IPC socket or the runtime default.
func (c *Config) SocketPath() string {
	if c.Daemon.SocketPath != "" {
		return c.Daemon.SocketPath
	}
	return filepath.Join(c.RuntimeDir(), "daemon.sock")
}

// PIDPath returns the daemon PID file location.
func (c *Config) PIDPath() string {
	return filepath.Join(c.RuntimeDir(), "daemon.pid")
}

// HealthPath returns the daemon health file location.
func (c *Config) HealthPath() string {
	return filepath.Join(c.General.CacheDir, "health.json")
}

// StateTTL returns how long cached state is served to one-shot commands.
func (c *Config) StateTTL() time.Duration {
	if c.Daemon.StateTTL.Duration > 0 {
		return c.Daemon.StateTTL.Duration
	}
	return 2 * c.Glucose.StaleAfter.Duration
}

// xdgConfigHome returns XDG_CONFIG_HOME or ~/.config as fallback.
func xdgConfigHome(home string) string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v
	}
	return filepath.Join(home, ".config")
}

// xdgCacheHome returns XDG_CACHE_HOME or ~/.cache as fallback.
func xdgCacheHome(home string) string {
	if v := os.Getenv("XDG_CACHE_HOME"); v != "" {
		return v
	}
	return filepath.Join(home, ".cache")
}
