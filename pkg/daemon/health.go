package daemon

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gitlab.com/tinyland/lab/glucose-pulse/pkg/cache"
	"gitlab.com/tinyland/lab/glucose-pulse/pkg/collectors"
)

// HealthStatus is the daemon's self-report. It is written to the health
// file after every poll and returned by HEALTH.
type HealthStatus struct {
	PID        int                          `json:"pid"`
	Version    string                       `json:"version,omitempty"`
	StartedAt  time.Time                    `json:"started_at"`
	UpdatedAt  time.Time                    `json:"updated_at"`
	Uptime     string                       `json:"uptime"`
	ConfigPath string                       `json:"config_path,omitempty"`
	Healthy    bool                         `json:"healthy"`
	Stale      bool                         `json:"stale"`
	Class      string                       `json:"class"`
	LastError  string                       `json:"last_error,omitempty"`
	Reloads    int                          `json:"reloads"`
	Collectors []collectors.CollectorStatus `json:"collectors"`

	// StateCache counts this daemon's reads of the state cache.
	StateCache cache.CacheStats `json:"state_cache"`
}

// formatUptime renders the span between start and now in whole seconds.
func formatUptime(start, now time.Time) string {
	if start.IsZero() || now.Before(start) {
		return "0s"
	}
	return now.Sub(start).Truncate(time.Second).String()
}

func WriteHealthFile(path string, status *HealthStatus) error {
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal health status: %w", err)
	}
	if err := writeFileAtomic(path, append(data, '\n')); err != nil {
		return fmt.Errorf("write health file: %w", err)
	}
	return nil
}

func ReadHealthFile(path string) (*HealthStatus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read health file: %w", err)
	}
	var status HealthStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("parse health file: %w", err)
	}
	return &status, nil
}
