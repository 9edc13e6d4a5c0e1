package starship

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
)

// ssColorize wraps text in the given color for profile. A nil color or the
// Ascii profile returns text unmodified.
func ssColorize(text string, color termenv.Color, profile termenv.Profile) string {
	if color == nil {
		return text
	}
	return profile.String(text).Foreground(profile.Convert(color)).String()
}

// ssSeparator is the dim separator placed between segments.
func ssSeparator(profile termenv.Profile) string {
	return profile.String("│").Faint().String()
}

// ssVisibleWidth returns the cell width of s with escape sequences removed.
// Emoji count as two cells.
func ssVisibleWidth(s string) int {
	return ansi.StringWidth(s)
}

// ssStripAnsi removes ANSI escape sequences from s.
func ssStripAnsi(s string) string {
	return ansi.Strip(s)
}

// ssFormatLine joins the given segments with a dim separator, applies
// colors, and drops rightmost segments if the total visible width exceeds
// maxWidth. A first segment that alone is too wide is truncated with an
// ellipsis rather than dropped. Returns an empty string if segments is
// empty.
func ssFormatLine(segments []*Segment, maxWidth int, profile termenv.Profile) string {
	if len(segments) == 0 {
		return ""
	}

	if maxWidth <= 0 {
		maxWidth = ssDefaultMaxWidth
	}

	type rendered struct {
		text         string
		visibleWidth int
	}

	parts := make([]rendered, 0, len(segments))
	for _, seg := range segments {
		full := seg.Text
		if seg.Icon != "" {
			full = seg.Icon + " " + seg.Text
		}
		colored := ssColorize(full, seg.Color, profile)
		parts = append(parts, rendered{
			text:         colored,
			visibleWidth: ssVisibleWidth(colored),
		})
	}

	// " │ " between segments.
	const sepWidth = 3

	var included []rendered
	totalVisible := 0
	for i, p := range parts {
		needed := p.visibleWidth
		if i > 0 {
			needed += sepWidth
		}
		if totalVisible+needed > maxWidth {
			if i == 0 {
				p.text = ansi.Truncate(p.text, maxWidth, "…")
				included = append(included, p)
			}
			break
		}
		included = append(included, p)
		totalVisible += needed
	}

	var b strings.Builder
	sep := " " + ssSeparator(profile) + " "
	for i, p := range included {
		if i > 0 {
			b.WriteString(sep)
		}
		b.WriteString(p.text)
	}
	return b.String()
}
