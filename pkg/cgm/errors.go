// Package cgm holds the domain types shared by the glucose-pulse collectors,
// renderers, and widget: readings, trend directions, measurement units, the
// API secret variant, and the typed errors surfaced to status-bar hosts.
package cgm

import (
	"fmt"
	"strings"
)

// ConfigError reports a configuration problem detected while building a
// widget. It is fatal: the widget does not start.
type ConfigError struct {
	// Field is the config key at fault (e.g. "sgv_measurement_units").
	Field string
	// Reason is a human-readable explanation.
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "config: " + e.Reason
	}
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// FetchError reports a failed poll of the CGM API. It is recoverable: the
// previous reading stays displayed and the next tick retries.
type FetchError struct {
	// Op names the failed step ("request", "status", "decode", "parse").
	Op string
	// StatusCode is the HTTP status when Op is "status", else 0.
	StatusCode int
	// Err is the underlying cause, if any.
	Err error
}

func (e *FetchError) Error() string {
	var b strings.Builder
	b.WriteString("fetch ")
	b.WriteString(e.Op)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": HTTP %d", e.StatusCode)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
