package starship

import (
	"fmt"
	"strings"
	"time"

	"github.com/muesli/termenv"

	"gitlab.com/tinyland/lab/glucose-pulse/pkg/widget"
)

// Colors per status class.
var (
	ssColorOK      termenv.Color = termenv.ANSIGreen
	ssColorStale   termenv.Color = termenv.ANSIYellow
	ssColorError   termenv.Color = termenv.ANSIRed
	ssColorLoading termenv.Color = termenv.ANSIBrightBlack
)

// ssGlucoseSegment renders the widget label without markup, colored by
// status. The label template already carries its own icon.
// Example: "🩸123→"
func ssGlucoseSegment(st widget.RenderedState, now time.Time, staleAfter time.Duration) *Segment {
	text := strings.TrimSpace(st.PlainLabel())
	if text == "" {
		return nil
	}

	class := st.Class
	if st.Reading != nil && st.Reading.IsStale(now, staleAfter) {
		class = widget.ClassStale
	}

	return &Segment{
		Text:  text,
		Color: ssClassColor(class),
	}
}

// ssAgeSegment shows minutes since the reading, recomputed at prompt time.
// Example: "4m"
func ssAgeSegment(st widget.RenderedState, now time.Time) *Segment {
	if st.Reading == nil {
		return nil
	}
	return &Segment{
		Text:  fmt.Sprintf("%dm", st.Reading.ElapsedMinutes(now)),
		Color: ssColorLoading,
	}
}

// ssErrorSegment flags a failed last poll.
func ssErrorSegment(st widget.RenderedState) *Segment {
	if st.LastError == "" {
		return nil
	}
	return &Segment{
		Icon:  "⚠",
		Text:  "offline",
		Color: ssColorError,
	}
}

// ssClassColor maps a status class to its segment color.
func ssClassColor(class string) termenv.Color {
	switch class {
	case widget.ClassOK:
		return ssColorOK
	case widget.ClassStale:
		return ssColorStale
	case widget.ClassError:
		return ssColorError
	default:
		return ssColorLoading
	}
}
