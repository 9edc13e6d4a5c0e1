package docs

import (
	"fmt"
	"strings"
)

// ConfigRef holds the full configuration reference documentation.
type ConfigRef struct {
	// Sections groups config fields by TOML table.
	Sections []ConfigSection
}

// ConfigSection documents a single TOML table (e.g., [glucose]).
type ConfigSection struct {
	// Name is the TOML table name (e.g., "general").
	Name string

	// Description summarizes what this section configures.
	Description string

	// Fields lists the config keys in this section.
	Fields []ConfigField
}

// ConfigField documents a single config key.
type ConfigField struct {
	// Name is the TOML key name.
	Name string

	// Type is the TOML type (e.g., "string", "bool", "duration").
	Type string

	// Default is the default value as a string.
	Default string

	// Description explains what this field controls.
	Description string

	// Required indicates whether this field must be set.
	Required bool

	// Env names the environment variable that overrides the key, if any.
	Env string

	// Example is a TOML snippet showing usage.
	Example string
}

// GenerateConfigRef builds the configuration reference.
func GenerateConfigRef() *ConfigRef {
	return &ConfigRef{
		Sections: []ConfigSection{
			dcGeneralSection(),
			dcGlucoseSection(),
			dcDirectionIconsSection(),
			dcCallbacksSection(),
			dcDaemonSection(),
		},
	}
}

// ConfigMarkdown renders the configuration reference as Markdown.
func ConfigMarkdown() string {
	return dcRenderConfigMarkdown(GenerateConfigRef())
}

// dcRenderConfigMarkdown renders a ConfigRef as a Markdown document with TOML examples.
func dcRenderConfigMarkdown(ref *ConfigRef) string {
	var b strings.Builder

	b.WriteString("# Configuration Reference\n\n")
	b.WriteString("glucose-pulse reads TOML (`config.toml`) or YAML (`config.yaml`, `config.yml`).\n\n")
	b.WriteString("Config file location: `$XDG_CONFIG_HOME/glucose-pulse/config.toml`\n\n")
	b.WriteString("A `.env` file next to the config file is loaded first; variables already set in the environment win.\n\n")

	for _, s := range ref.Sections {
		b.WriteString(fmt.Sprintf("## `[%s]`\n\n", s.Name))
		b.WriteString(s.Description + "\n\n")

		b.WriteString("| Key | Type | Default | Required | Env | Description |\n")
		b.WriteString("|-----|------|---------|----------|-----|-------------|\n")
		for _, f := range s.Fields {
			req := "No"
			if f.Required {
				req = "Yes"
			}
			def := f.Default
			if def == "" {
				def = "-"
			}
			envName := "-"
			if f.Env != "" {
				envName = "`" + f.Env + "`"
			}
			b.WriteString(fmt.Sprintf("| `%s` | %s | `%s` | %s | %s | %s |\n",
				f.Name, f.Type, def, req, envName, f.Description))
		}
		b.WriteString("\n")

		b.WriteString("**Example:**\n\n")
		b.WriteString("```toml\n")
		b.WriteString(fmt.Sprintf("[%s]\n", s.Name))
		for _, f := range s.Fields {
			if f.Example != "" {
				b.WriteString(f.Example + "\n")
			}
		}
		b.WriteString("```\n\n")
	}

	return b.String()
}

func dcGeneralSection() ConfigSection {
	return ConfigSection{
		Name:        "general",
		Description: "Process-wide settings shared by the daemon and one-shot commands.",
		Fields: []ConfigField{
			{
				Name:        "log_level",
				Type:        "string",
				Default:     "info",
				Description: "Logging verbosity: debug, info, warn, error",
				Env:         "GLUCOSE_PULSE_LOG_LEVEL",
				Example:     `log_level = "info"`,
			},
			{
				Name:        "cache_dir",
				Type:        "string",
				Default:     "$XDG_CACHE_HOME/glucose-pulse",
				Description: "Directory for the state cache and the health file",
				Example:     `cache_dir = "/tmp/glucose-pulse"`,
			},
			{
				Name:        "log_file",
				Type:        "string",
				Default:     "$XDG_CACHE_HOME/glucose-pulse/daemon.log",
				Description: "Rotating daemon log; empty logs to stderr only",
				Example:     `log_file = ""`,
			},
			{
				Name:        "log_max_size_mb",
				Type:        "int",
				Default:     "5",
				Description: "Rotate the daemon log after this many megabytes",
				Example:     `log_max_size_mb = 5`,
			},
			{
				Name:        "log_max_backups",
				Type:        "int",
				Default:     "3",
				Description: "Rotated log files to keep",
				Example:     `log_max_backups = 3`,
			},
		},
	}
}

func dcGlucoseSection() ConfigSection {
	return ConfigSection{
		Name:        "glucose",
		Description: "The Nightscout widget. Keys and defaults match the yasb glucose_monitor widget.",
		Fields: []ConfigField{
			{
				Name:        "label",
				Type:        "string",
				Default:     "🩸{sgv}{direction}",
				Description: "Label template; see the token reference",
				Example:     `label = "🩸{sgv}{direction}"`,
			},
			{
				Name:        "tooltip",
				Type:        "string",
				Default:     "({sgv_delta}) {delta_time_in_minutes} min",
				Description: "Tooltip template",
				Example:     `tooltip = "({sgv_delta_signed}) {delta_time_in_minutes} min ago"`,
			},
			{
				Name:        "host",
				Type:        "string",
				Description: "Nightscout base URL (http or https); also opened by open_cgm",
				Required:    true,
				Env:         "GLUCOSE_PULSE_HOST",
				Example:     `host = "https://my-cgm.example.com"`,
			},
			{
				Name:        "secret",
				Type:        "string",
				Description: "API secret, or \"env\" to read it from secret_env_name. Sent SHA-1 hashed",
				Env:         "GLUCOSE_PULSE_SECRET",
				Example:     `secret = "env"`,
			},
			{
				Name:        "secret_env_name",
				Type:        "string",
				Description: "Variable holding the secret when secret = \"env\"",
				Example:     `secret_env_name = "NIGHTSCOUT_API_SECRET"`,
			},
			{
				Name:        "sgv_measurement_units",
				Type:        "string",
				Default:     "mg/dl",
				Description: "Display units: mg/dl or mmol/l",
				Env:         "GLUCOSE_PULSE_UNITS",
				Example:     `sgv_measurement_units = "mmol/l"`,
			},
			{
				Name:        "unknown_direction_icon",
				Type:        "string",
				Default:     "?",
				Description: "Glyph for trends the server could not compute",
				Example:     `unknown_direction_icon = "?"`,
			},
			{
				Name:        "poll_interval",
				Type:        "duration",
				Default:     "1m",
				Description: "Time between polls; a poll still in flight skips the tick",
				Example:     `poll_interval = "1m"`,
			},
			{
				Name:        "request_timeout",
				Type:        "duration",
				Default:     "10s",
				Description: "Deadline for one HTTP request",
				Example:     `request_timeout = "10s"`,
			},
			{
				Name:        "stale_after",
				Type:        "duration",
				Default:     "15m",
				Description: "Age after which a reading is marked stale",
				Example:     `stale_after = "15m"`,
			},
			{
				Name:        "stale_label_suffix",
				Type:        "string",
				Description: "Appended to the label while stale",
				Example:     `stale_label_suffix = " ⌛"`,
			},
			{
				Name:        "entries_count",
				Type:        "int",
				Default:     "2",
				Description: "Entries requested per poll; the second one backs the delta",
				Example:     `entries_count = 2`,
			},
			{
				Name:        "query_secret",
				Type:        "bool",
				Default:     "false",
				Description: "Also send the hashed secret as a secret query parameter",
				Example:     `query_secret = false`,
			},
		},
	}
}

func dcDirectionIconsSection() ConfigSection {
	return ConfigSection{
		Name:        "glucose.direction_icons",
		Description: "Trend glyphs. Keys left out keep their defaults.",
		Fields: []ConfigField{
			{Name: "double_up", Type: "string", Default: "⬆️⬆️", Description: "Rising fast", Example: `double_up = "⇈"`},
			{Name: "single_up", Type: "string", Default: "⬆️", Description: "Rising", Example: `single_up = "↑"`},
			{Name: "forty_five_up", Type: "string", Default: "↗️", Description: "Rising slowly", Example: `forty_five_up = "↗"`},
			{Name: "flat", Type: "string", Default: "➡️", Description: "Steady", Example: `flat = "→"`},
			{Name: "forty_five_down", Type: "string", Default: "↘️", Description: "Falling slowly", Example: `forty_five_down = "↘"`},
			{Name: "single_down", Type: "string", Default: "⬇️", Description: "Falling", Example: `single_down = "↓"`},
			{Name: "double_down", Type: "string", Default: "⬇️⬇️", Description: "Falling fast", Example: `double_down = "⇊"`},
		},
	}
}

func dcCallbacksSection() ConfigSection {
	return ConfigSection{
		Name:        "glucose.callbacks",
		Description: "Mouse button actions: open_cgm, refresh, do_nothing. Unknown names are logged and ignored.",
		Fields: []ConfigField{
			{Name: "on_left", Type: "string", Default: "open_cgm", Description: "Left click", Example: `on_left = "open_cgm"`},
			{Name: "on_middle", Type: "string", Default: "do_nothing", Description: "Middle click", Example: `on_middle = "refresh"`},
			{Name: "on_right", Type: "string", Default: "do_nothing", Description: "Right click", Example: `on_right = "do_nothing"`},
		},
	}
}

func dcDaemonSection() ConfigSection {
	return ConfigSection{
		Name:        "daemon",
		Description: "Background poller.",
		Fields: []ConfigField{
			{
				Name:        "socket_path",
				Type:        "string",
				Default:     "$XDG_RUNTIME_DIR/glucose-pulse/daemon.sock",
				Description: "IPC Unix socket",
				Example:     `socket_path = "/run/user/1000/glucose-pulse.sock"`,
			},
			{
				Name:        "watch_config",
				Type:        "bool",
				Default:     "true",
				Description: "Rebuild the widget when the config file changes",
				Example:     `watch_config = true`,
			},
			{
				Name:        "state_ttl",
				Type:        "duration",
				Default:     "2 × stale_after",
				Description: "How long one-shot commands trust the cached state",
				Example:     `state_ttl = "30m"`,
			},
		},
	}
}
