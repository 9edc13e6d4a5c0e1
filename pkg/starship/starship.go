package starship

import (
	"time"

	"github.com/muesli/termenv"
)

// Config controls what the starship module prints.
type Config struct {
	CacheDir string        // daemon state cache
	MaxWidth int           // max visible width (default 40)
	MaxAge   time.Duration // ignore cached state older than this; 0 trusts the cache TTL

	// StaleAfter re-evaluates staleness against the reading's own timestamp,
	// since the cached state may be older than the prompt.
	StaleAfter time.Duration

	ShowAge   bool // append "Nm" since the reading
	ShowError bool // append a marker when the last poll failed

	// Profile selects the color mode; termenv.Ascii disables color.
	Profile termenv.Profile

	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// Segment represents a single piece of the status line.
type Segment struct {
	Icon  string        // emoji or nerd font icon, may be empty
	Text  string        // the actual content
	Color termenv.Color // nil for the terminal default
}

// ssDefaultMaxWidth is the default maximum visible width for the starship
// output line.
const ssDefaultMaxWidth = 40

// Render reads the daemon's cached glucose state and produces a single-line
// starship module string. Returns an empty string if no state is available
// (starship hides empty modules).
func Render(cfg Config) string {
	maxWidth := cfg.MaxWidth
	if maxWidth <= 0 {
		maxWidth = ssDefaultMaxWidth
	}
	now := time.Now()
	if cfg.Now != nil {
		now = cfg.Now()
	}

	st, ok := ssReadState(cfg.CacheDir, cfg.MaxAge)
	if !ok {
		return ""
	}

	var segments []*Segment
	if seg := ssGlucoseSegment(st, now, cfg.StaleAfter); seg != nil {
		segments = append(segments, seg)
	}
	if cfg.ShowAge {
		if seg := ssAgeSegment(st, now); seg != nil {
			segments = append(segments, seg)
		}
	}
	if cfg.ShowError {
		if seg := ssErrorSegment(st); seg != nil {
			segments = append(segments, seg)
		}
	}

	return ssFormatLine(segments, maxWidth, cfg.Profile)
}
