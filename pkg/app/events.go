// Package app is the bubbletea terminal bar for glucose-pulse. It defines
// the event types, the root model, the widget interface and focus
// navigation, and maps mouse clicks inside widget zones to click actions.
package app

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"gitlab.com/tinyland/lab/glucose-pulse/pkg/actions"
)

// DataUpdateEvent carries new data from a fetch back into the bubbletea
// update loop. Receivers type-assert Data based on Source.
type DataUpdateEvent struct {
	Source    string      // fetch source, e.g. "glucose"
	Data      interface{} // Type-asserted by the receiver
	Err       error       // Non-nil if the fetch failed
	Timestamp time.Time
}

// TickEvent is sent periodically by the refresh ticker.
type TickEvent struct {
	Time time.Time
}

// ClickEvent reports the outcome of a click forwarded to the backend.
type ClickEvent struct {
	WidgetID string
	Button   actions.Button
	Action   actions.Action
	Err      error
}

// RefreshEvent asks the model to read the backend now instead of waiting
// for the next tick.
type RefreshEvent struct{}

// TickCmd schedules the next TickEvent.
func TickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return TickEvent{Time: t} })
}

// DataFetchCmd runs fetch off the update loop and reports the result as a
// DataUpdateEvent. Data is dropped when fetch fails.
func DataFetchCmd(source string, fetch func() (interface{}, error)) tea.Cmd {
	return func() tea.Msg {
		ev := DataUpdateEvent{Source: source, Timestamp: time.Now()}
		if data, err := fetch(); err != nil {
			ev.Err = err
		} else {
			ev.Data = data
		}
		return ev
	}
}
