package widget

import (
	"time"

	"gitlab.com/tinyland/lab/glucose-pulse/pkg/cgm"
	"gitlab.com/tinyland/lab/glucose-pulse/pkg/config"
)

// Settings is the widget configuration after defaults have been merged. It
// is immutable once passed to New; reconfiguration builds a new Widget.
type Settings struct {
	Label   string
	Tooltip string
	Host    string
	Secret  cgm.Secret

	// Icons maps direction config keys to glyphs.
	Icons       map[string]string
	UnknownIcon string

	Units string

	// Callbacks maps on_left/on_middle/on_right to action names.
	Callbacks map[string]string

	PollInterval     time.Duration
	RequestTimeout   time.Duration
	StaleAfter       time.Duration
	StaleLabelSuffix string
	EntriesCount     int
	QuerySecret      bool
}

// SettingsFromConfig merges the [glucose] section over the defaults.
func SettingsFromConfig(g config.GlucoseConfig) Settings {
	return Settings{
		Label:            g.Label,
		Tooltip:          g.Tooltip,
		Host:             g.Host,
		Secret:           cgm.ParseSecret(g.Secret, g.SecretEnvName),
		Icons:            g.Icons(),
		UnknownIcon:      g.UnknownDirectionIcon,
		Units:            g.Units,
		Callbacks:        g.ResolvedCallbacks(),
		PollInterval:     g.PollInterval.Duration,
		RequestTimeout:   g.RequestTimeout.Duration,
		StaleAfter:       g.StaleAfter.Duration,
		StaleLabelSuffix: g.StaleLabelSuffix,
		EntriesCount:     g.EntriesCount,
		QuerySecret:      g.QuerySecret,
	}
}
