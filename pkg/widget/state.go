package widget

import (
	"time"

	"gitlab.com/tinyland/lab/glucose-pulse/pkg/cgm"
	"gitlab.com/tinyland/lab/glucose-pulse/pkg/format"
)

// Status classes, usable as CSS classes by waybar-style hosts.
const (
	ClassLoading = "loading"
	ClassOK      = "ok"
	ClassStale   = "stale"
	ClassError   = "error"
)

// RenderedState is what a host displays. It is replaced wholesale on every
// change and never mutated after publication.
type RenderedState struct {
	// Label and Tooltip may contain <span> markup; use the Plain variants
	// for hosts that cannot render it.
	Label   string `json:"label"`
	Tooltip string `json:"tooltip"`

	ElapsedMinutes int          `json:"elapsed_minutes"`
	Stale          bool         `json:"stale"`
	LastError      string       `json:"last_error,omitempty"`
	Reading        *cgm.Reading `json:"reading,omitempty"`
	Class          string       `json:"class"`
	Units          cgm.Units    `json:"units"`
	RenderedAt     time.Time    `json:"rendered_at"`
}

// PlainLabel returns the label without markup.
func (s RenderedState) PlainLabel() string {
	return format.StripMarkup(s.Label)
}

// PlainTooltip returns the tooltip without markup.
func (s RenderedState) PlainTooltip() string {
	return format.StripMarkup(s.Tooltip)
}

// HasReading reports whether a reading has ever been fetched.
func (s RenderedState) HasReading() bool {
	return s.Reading != nil
}
