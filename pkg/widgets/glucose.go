package widgets

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"gitlab.com/tinyland/lab/glucose-pulse/pkg/actions"
	"gitlab.com/tinyland/lab/glucose-pulse/pkg/app"
	"gitlab.com/tinyland/lab/glucose-pulse/pkg/widget"
)

// GlucoseID is the widget ID and the DataUpdateEvent source it listens to.
const GlucoseID = "glucose"

// clickTimeout bounds one click forwarded to the backend.
const clickTimeout = 10 * time.Second

// GlucoseWidget shows the glucose label on the bar, and the tooltip lines
// when expanded. Clicks go to the backend, which runs the configured
// action.
type GlucoseWidget struct {
	backend app.Backend

	state    widget.RenderedState
	hasState bool
	err      error // backend unreachable
	last     actions.Action

	spinner  spinner.Model
	spinning bool
}

// NewGlucoseWidget returns a widget that clicks through backend.
func NewGlucoseWidget(backend app.Backend) *GlucoseWidget {
	return &GlucoseWidget{
		backend: backend,
		spinner: spinner.New(
			spinner.WithSpinner(spinner.MiniDot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDim))),
		),
	}
}

// ID returns the unique identifier for this widget.
func (w *GlucoseWidget) ID() string {
	return GlucoseID
}

// Title returns the human-readable display name.
func (w *GlucoseWidget) Title() string {
	return "Glucose"
}

// MinSize returns the minimum width and height this widget requires.
func (w *GlucoseWidget) MinSize() (int, int) {
	return 8, 1
}

// State returns the last state received.
func (w *GlucoseWidget) State() (widget.RenderedState, bool) {
	return w.state, w.hasState
}

// LastAction returns the action the last click ran.
func (w *GlucoseWidget) LastAction() actions.Action {
	return w.last
}

// Init starts the loading spinner.
func (w *GlucoseWidget) Init() tea.Cmd {
	w.spinning = true
	return w.spinner.Tick
}

func (w *GlucoseWidget) loading() bool {
	return !w.hasState || w.state.Class == widget.ClassLoading
}

// Update handles fetch results, click results and spinner ticks.
func (w *GlucoseWidget) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case app.DataUpdateEvent:
		if msg.Source != GlucoseID {
			return nil
		}
		if msg.Err != nil {
			w.err = msg.Err
			return nil
		}
		if st, ok := msg.Data.(widget.RenderedState); ok {
			w.state = st
			w.hasState = true
			w.err = nil
		}
		if w.loading() && !w.spinning {
			w.spinning = true
			return w.spinner.Tick
		}

	case app.ClickEvent:
		if msg.WidgetID != GlucoseID {
			return nil
		}
		w.last = msg.Action
		w.err = msg.Err

	case spinner.TickMsg:
		if !w.loading() {
			w.spinning = false
			return nil
		}
		var cmd tea.Cmd
		w.spinner, cmd = w.spinner.Update(msg)
		return cmd
	}
	return nil
}

// HandleKey processes a key event when this widget has focus: "r" polls
// now, "o" acts like a left click.
func (w *GlucoseWidget) HandleKey(key tea.KeyMsg) tea.Cmd {
	switch key.String() {
	case "r":
		return w.refreshCmd()
	case "o":
		return w.HandleClick(actions.ButtonLeft)
	}
	return nil
}

// HandleClick forwards a click to the backend.
func (w *GlucoseWidget) HandleClick(b actions.Button) tea.Cmd {
	if w.backend == nil {
		return nil
	}
	backend := w.backend
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), clickTimeout)
		defer cancel()
		a, err := backend.Click(ctx, b)
		return app.ClickEvent{WidgetID: GlucoseID, Button: b, Action: a, Err: err}
	}
}

func (w *GlucoseWidget) refreshCmd() tea.Cmd {
	if w.backend == nil {
		return nil
	}
	backend := w.backend
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), clickTimeout)
		defer cancel()
		if err := backend.Refresh(ctx); err != nil {
			return app.ClickEvent{WidgetID: GlucoseID, Action: actions.Refresh, Err: err}
		}
		return app.RefreshEvent{}
	}
}

// View renders the label on the first line. With more height it adds the
// tooltip lines and the backend or poll error.
func (w *GlucoseWidget) View(width, height int) string {
	if width <= 0 || height <= 0 {
		return ""
	}

	label := strings.TrimSpace(w.state.PlainLabel())
	if label == "" {
		label = "--"
	}
	label = glClassStyle(w.state.Class).Render(label)
	if w.loading() {
		label = w.spinner.View() + " " + label
	}

	errText := w.state.LastError
	if w.err != nil {
		errText = w.err.Error()
	}

	lines := []string{label}
	if height > 1 {
		dim := lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDim))
		for _, l := range strings.Split(w.state.PlainTooltip(), "\n") {
			if l = strings.TrimSpace(l); l != "" {
				lines = append(lines, dim.Render(l))
			}
		}
		if errText != "" {
			lines = append(lines, lipgloss.NewStyle().Foreground(lipgloss.Color(ColorError)).Render(errText))
		}
	} else if errText != "" {
		lines[0] += " " + lipgloss.NewStyle().Foreground(lipgloss.Color(ColorError)).Render("!")
	}

	if len(lines) > height {
		lines = lines[:height]
	}
	for i, l := range lines {
		lines[i] = fitCell(l, width)
	}
	return strings.Join(lines, "\n")
}

// glClassStyle colors the label by status class.
func glClassStyle(class string) lipgloss.Style {
	s := lipgloss.NewStyle()
	switch class {
	case widget.ClassOK:
		return s.Foreground(lipgloss.Color(ColorOK))
	case widget.ClassStale:
		return s.Foreground(lipgloss.Color(ColorStale))
	case widget.ClassError:
		return s.Foreground(lipgloss.Color(ColorError))
	}
	return s.Foreground(lipgloss.Color(ColorDim))
}
