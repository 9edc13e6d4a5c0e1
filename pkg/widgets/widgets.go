// Package widgets provides the concrete widget implementations for the
// glucose-pulse terminal bar. Each widget implements the app.Widget
// interface and receives data via the Elm-architecture Update loop.
package widgets

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// Common colors for widget styling.
const (
	// ColorOK is used for a fresh reading.
	ColorOK = "#10B981"

	// ColorStale is used once the reading is older than stale_after.
	ColorStale = "#F59E0B"

	// ColorDim is used for de-emphasized text such as the tooltip and the
	// loading placeholder.
	ColorDim = "#9CA3AF"

	// ColorError is used for error message text.
	ColorError = "#EF4444"
)

// fitCell truncates s to width terminal cells, marking the cut with "…",
// and pads it with spaces to exactly width. ANSI styling is preserved.
func fitCell(s string, width int) string {
	if width <= 0 {
		return ""
	}
	s = ansi.Truncate(s, width, "…")
	if pad := width - ansi.StringWidth(s); pad > 0 {
		s += strings.Repeat(" ", pad)
	}
	return s
}
