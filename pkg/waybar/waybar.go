// Package waybar emits the glucose state in the JSON format read by waybar
// custom modules (return-type = "json"). Label markup is passed through so
// pango renders <span> icons.
package waybar

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"gitlab.com/tinyland/lab/glucose-pulse/pkg/widget"
)

// Output is one waybar update.
type Output struct {
	Text    string `json:"text"`
	Tooltip string `json:"tooltip"`
	Class   string `json:"class"`
	// Alt is the direction key ("flat", "single_up", ...) so format-icons
	// can be keyed on the trend, or the class when there is no reading.
	Alt string `json:"alt"`
}

// FromState converts a rendered state. When staleAfter is positive the
// stale class is re-evaluated against now, because cached state may be
// older than the caller.
func FromState(st widget.RenderedState, now time.Time, staleAfter time.Duration) Output {
	out := Output{
		Text:    st.Label,
		Tooltip: st.Tooltip,
		Class:   st.Class,
		Alt:     st.Class,
	}
	if st.Reading != nil {
		out.Alt = st.Reading.Direction.String()
		if st.Reading.IsStale(now, staleAfter) {
			out.Class = widget.ClassStale
		}
	}
	if out.Class == "" {
		out.Class = widget.ClassLoading
	}
	return out
}

// Placeholder is printed when no state is available at all.
func Placeholder(text string) Output {
	return Output{Text: text, Class: widget.ClassLoading, Alt: widget.ClassLoading}
}

// Encode writes out as a single JSON line. HTML escaping is disabled so
// markup stays readable.
func Encode(w io.Writer, out Output) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(out)
}

// Writer streams outputs, suppressing consecutive duplicates. It is safe
// for concurrent use, so it can be fed from a widget change callback.
type Writer struct {
	mu   sync.Mutex
	w    io.Writer
	last []byte
}

// NewWriter returns a Writer on w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write emits out unless it equals the previous output. It reports whether
// a line was written.
func (sw *Writer) Write(out Output) (bool, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, out); err != nil {
		return false, err
	}

	sw.mu.Lock()
	defer sw.mu.Unlock()
	if bytes.Equal(buf.Bytes(), sw.last) {
		return false, nil
	}
	if _, err := sw.w.Write(buf.Bytes()); err != nil {
		return false, err
	}
	sw.last = buf.Bytes()
	return true, nil
}

// Source returns the latest state, or false when none is available yet.
type Source func(ctx context.Context) (widget.RenderedState, bool)

// Watch polls src every interval and writes each changed output until ctx
// is cancelled. The first poll happens immediately.
func Watch(ctx context.Context, src Source, interval time.Duration, staleAfter time.Duration, sw *Writer) error {
	if interval <= 0 {
		interval = time.Second
	}
	emit := func() error {
		st, ok := src(ctx)
		if !ok {
			return nil
		}
		_, err := sw.Write(FromState(st, time.Now(), staleAfter))
		return err
	}

	if err := emit(); err != nil {
		return err
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := emit(); err != nil {
				return err
			}
		}
	}
}
