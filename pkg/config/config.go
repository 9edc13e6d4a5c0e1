package config

import (
	"github.com/samber/lo"

	"gitlab.com/tinyland/lab/glucose-pulse/pkg/actions"
	"gitlab.com/tinyland/lab/glucose-pulse/pkg/cgm"
)

// Config is the full glucose-pulse configuration.
type Config struct {
	General GeneralConfig `toml:"general" yaml:"general"`
	Glucose GlucoseConfig `toml:"glucose" yaml:"glucose"`
	Daemon  DaemonConfig  `toml:"daemon" yaml:"daemon"`

	// path is the file this config was read from, empty for defaults.
	path string
}

// Path returns the file the config was loaded from, or "" when no file
// was found.
func (c *Config) Path() string {
	return c.path
}

// GeneralConfig holds process-wide settings.
type GeneralConfig struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `toml:"log_level" yaml:"log_level" env:"GLUCOSE_PULSE_LOG_LEVEL"`

	// CacheDir holds the state cache, PID file, and health file.
	CacheDir string `toml:"cache_dir" yaml:"cache_dir"`

	// LogFile is the daemon's rotating log. Empty disables file logging.
	LogFile string `toml:"log_file" yaml:"log_file"`

	// LogMaxSizeMB and LogMaxBackups bound log rotation.
	LogMaxSizeMB  int `toml:"log_max_size_mb" yaml:"log_max_size_mb"`
	LogMaxBackups int `toml:"log_max_backups" yaml:"log_max_backups"`
}

// GlucoseConfig is the widget section. Key names and defaults match the yasb
// glucose_monitor widget so existing configs carry over.
type GlucoseConfig struct {
	Label   string `toml:"label" yaml:"label"`
	Tooltip string `toml:"tooltip" yaml:"tooltip"`

	// Host is the Nightscout base URL.
	Host string `toml:"host" yaml:"host" env:"GLUCOSE_PULSE_HOST"`

	// Secret is the API secret, or "env" to read it from SecretEnvName.
	Secret        string `toml:"secret" yaml:"secret" env:"GLUCOSE_PULSE_SECRET"`
	SecretEnvName string `toml:"secret_env_name" yaml:"secret_env_name"`

	// DirectionIcons maps trend keys (flat, single_up, ...) to glyphs. Keys
	// not given keep their defaults.
	DirectionIcons       map[string]string `toml:"direction_icons" yaml:"direction_icons"`
	UnknownDirectionIcon string            `toml:"unknown_direction_icon" yaml:"unknown_direction_icon"`

	Units string `toml:"sgv_measurement_units" yaml:"sgv_measurement_units" env:"GLUCOSE_PULSE_UNITS"`

	// Callbacks maps on_left/on_middle/on_right to action names.
	Callbacks map[string]string `toml:"callbacks" yaml:"callbacks"`

	PollInterval     Duration `toml:"poll_interval" yaml:"poll_interval"`
	RequestTimeout   Duration `toml:"request_timeout" yaml:"request_timeout"`
	StaleAfter       Duration `toml:"stale_after" yaml:"stale_after"`
	StaleLabelSuffix string   `toml:"stale_label_suffix" yaml:"stale_label_suffix"`
	EntriesCount     int      `toml:"entries_count" yaml:"entries_count"`

	// QuerySecret also sends the hashed secret as a query parameter for
	// servers that ignore the api-secret header.
	QuerySecret bool `toml:"query_secret" yaml:"query_secret"`
}

// Icons returns the direction icons layered over the defaults.
func (g GlucoseConfig) Icons() map[string]string {
	return lo.Assign(cgm.DefaultDirectionIcons(), g.DirectionIcons)
}

// ResolvedCallbacks returns the callbacks layered over the defaults.
func (g GlucoseConfig) ResolvedCallbacks() map[string]string {
	return lo.Assign(actions.DefaultCallbacks(), g.Callbacks)
}

// DaemonConfig configures the background poller.
type DaemonConfig struct {
	// SocketPath is the IPC unix socket. Empty uses the runtime dir.
	SocketPath string `toml:"socket_path" yaml:"socket_path"`

	// WatchConfig rebuilds the widget when the config file changes.
	WatchConfig bool `toml:"watch_config" yaml:"watch_config"`

	// StateTTL bounds how long one-shot commands trust the cached state.
	// Zero uses twice stale_after.
	StateTTL Duration `toml:"state_ttl" yaml:"state_ttl"`
}
