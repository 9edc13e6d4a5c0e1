// Package config loads glucose-pulse configuration from TOML or YAML files,
// a sibling .env file, and GLUCOSE_PULSE_* environment overrides.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// Duration is a config interval. It is written as a Go duration string
// ("90s", "15m") or as a bare number of seconds, which is how Nightscout
// tooling usually spells poll intervals.
type Duration struct {
	time.Duration
}

func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	var d time.Duration
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		d = time.Duration(secs * float64(time.Second))
	} else if d, err = time.ParseDuration(s); err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q not allowed", s)
	}
	return d, nil
}

// UnmarshalText serves env overrides and quoted TOML values.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := parseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// UnmarshalTOML also accepts unquoted numbers.
func (d *Duration) UnmarshalTOML(v interface{}) error {
	s, err := cast.ToStringE(v)
	if err != nil {
		return fmt.Errorf("duration must be a string or number, got %T", v)
	}
	return d.UnmarshalText([]byte(s))
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a string like \"5m\" or seconds", node.Line)
	}
	return d.UnmarshalText([]byte(node.Value))
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}
