package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/samber/lo"

	"gitlab.com/tinyland/lab/glucose-pulse/pkg/actions"
	"gitlab.com/tinyland/lab/glucose-pulse/pkg/cgm"
	"gitlab.com/tinyland/lab/glucose-pulse/pkg/collectors/nightscout"
)

// minPollInterval keeps a typo like "1ms" from hammering the server.
const minPollInterval = 5 * time.Second

var logLevels = []string{"debug", "info", "warn", "error"}

// Validate reports every problem in the config at once. Each wrapped error is
// a *cgm.ConfigError. The secret is resolved through os.LookupEnv to catch a
// missing variable early; its value is discarded.
func (c *Config) Validate() error {
	return c.validate(os.LookupEnv)
}

func (c *Config) validate(lookup func(string) (string, bool)) error {
	var result *multierror.Error
	add := func(field, reason string, args ...interface{}) {
		result = multierror.Append(result, &cgm.ConfigError{Field: field, Reason: fmt.Sprintf(reason, args...)})
	}

	if !lo.Contains(logLevels, strings.ToLower(c.General.LogLevel)) {
		add("general.log_level", "%q is not one of %s", c.General.LogLevel, strings.Join(logLevels, ", "))
	}

	g := c.Glucose
	if _, err := cgm.ParseUnits(g.Units); err != nil {
		result = multierror.Append(result, err)
	}
	if _, err := nightscout.ParseHost(g.Host); err != nil {
		result = multierror.Append(result, err)
	}
	if _, err := cgm.ParseSecret(g.Secret, g.SecretEnvName).Resolve(lookup); err != nil {
		result = multierror.Append(result, err)
	}

	for _, key := range lo.Keys(g.DirectionIcons) {
		if _, ok := cgm.DirectionForKey(key); !ok {
			add("direction_icons", "unknown direction %q", key)
		}
	}

	events := lo.Map(actions.Buttons, func(b actions.Button, _ int) string { return b.Event() })
	for _, key := range lo.Keys(g.Callbacks) {
		if !lo.Contains(events, key) {
			add("callbacks", "unknown event %q (want %s)", key, strings.Join(events, ", "))
		}
	}

	if g.PollInterval.Duration < minPollInterval {
		add("poll_interval", "must be at least %s", minPollInterval)
	}
	if g.RequestTimeout.Duration <= 0 {
		add("request_timeout", "must be positive")
	}
	if g.StaleAfter.Duration < 0 {
		add("stale_after", "must not be negative")
	}
	if g.EntriesCount < 1 || g.EntriesCount > 100 {
		add("entries_count", "must be between 1 and 100, got %d", g.EntriesCount)
	}

	if c.General.CacheDir == "" {
		add("general.cache_dir", "required")
	}

	return result.ErrorOrNil()
}
