package app

import (
	"context"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	zone "github.com/lrstanley/bubblezone"

	"gitlab.com/tinyland/lab/glucose-pulse/pkg/actions"
)

// Widget is a bar cell.
type Widget interface {
	ID() string
	Title() string
	Update(msg tea.Msg) tea.Cmd
	View(width, height int) string
	MinSize() (int, int)
	HandleKey(key tea.KeyMsg) tea.Cmd
}

// Initializer is implemented by widgets that start their own commands,
// such as a spinner.
type Initializer interface {
	Init() tea.Cmd
}

// Clickable is implemented by widgets that react to mouse clicks inside
// their zone.
type Clickable interface {
	HandleClick(b actions.Button) tea.Cmd
}

// Config controls the bar.
type Config struct {
	// RefreshInterval is how often the backend is read. The backend polls
	// the CGM API on its own schedule; this only bounds display latency.
	RefreshInterval time.Duration

	// FetchTimeout bounds one backend read.
	FetchTimeout time.Duration

	// Source names the DataUpdateEvents produced by backend reads.
	Source string
}

// DefaultConfig returns the bar defaults.
func DefaultConfig() Config {
	return Config{
		RefreshInterval: 2 * time.Second,
		FetchTimeout:    5 * time.Second,
		Source:          "glucose",
	}
}

const separator = " │ "

// AppModel is the root bubbletea model.
type AppModel struct {
	cfg     Config
	backend Backend
	zones   *zone.Manager

	widgets        map[string]Widget
	widgetOrder    []string
	focusedWidget  string
	expandedWidget string

	data map[string]interface{}

	width, height int
	layoutDirty   bool
	showHelp      bool
	quitting      bool
}

// NewAppModel builds a model over widgets, in display order. backend may be
// nil, in which case nothing is fetched.
func NewAppModel(cfg Config, backend Backend, widgets ...Widget) AppModel {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = DefaultConfig().RefreshInterval
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultConfig().FetchTimeout
	}
	if cfg.Source == "" {
		cfg.Source = DefaultConfig().Source
	}

	m := AppModel{
		cfg:         cfg,
		backend:     backend,
		zones:       zone.New(),
		widgets:     make(map[string]Widget, len(widgets)),
		data:        make(map[string]interface{}),
		layoutDirty: true,
	}
	for _, w := range widgets {
		if _, dup := m.widgets[w.ID()]; dup {
			continue
		}
		m.widgets[w.ID()] = w
		m.widgetOrder = append(m.widgetOrder, w.ID())
	}
	if len(m.widgetOrder) > 0 {
		m.focusedWidget = m.widgetOrder[0]
	}
	return m
}

// Close stops the zone manager.
func (m AppModel) Close() {
	m.zones.Close()
}

// Init starts the refresh ticker, the first fetch, and widget commands.
func (m AppModel) Init() tea.Cmd {
	cmds := []tea.Cmd{TickCmd(m.cfg.RefreshInterval), m.fetchCmd()}
	for _, id := range m.widgetOrder {
		if in, ok := m.widgets[id].(Initializer); ok {
			cmds = append(cmds, in.Init())
		}
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layoutDirty = true
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m, m.handleMouse(msg)

	case TickEvent:
		return m, tea.Batch(m.fetchCmd(), TickCmd(m.cfg.RefreshInterval))

	case RefreshEvent:
		return m, m.fetchCmd()

	case DataUpdateEvent:
		if msg.Err == nil {
			m.data[msg.Source] = msg.Data
		}
		return m, m.broadcast(msg)

	case ClickEvent:
		cmd := m.broadcast(msg)
		if msg.Err == nil && msg.Action == actions.Refresh {
			cmd = tea.Batch(cmd, m.fetchCmd())
		}
		return m, cmd
	}

	return m, m.broadcast(msg)
}

func (m AppModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case "?":
		m.showHelp = !m.showHelp
		m.layoutDirty = true
		return m, nil
	case "tab":
		m.CycleFocusForward()
		return m, nil
	case "shift+tab":
		m.CycleFocusBackward()
		return m, nil
	case "enter":
		m.ToggleExpand()
		m.layoutDirty = true
		return m, nil
	case "esc":
		if m.expandedWidget != "" {
			m.expandedWidget = ""
			m.layoutDirty = true
		}
		return m, nil
	}

	if w, ok := m.widgets[m.focusedWidget]; ok {
		return m, w.HandleKey(msg)
	}
	return m, nil
}

// handleMouse dispatches a button press to the widget whose zone contains
// it. Releases, motion and wheel events are ignored.
func (m *AppModel) handleMouse(msg tea.MouseMsg) tea.Cmd {
	if msg.Action != tea.MouseActionPress {
		return nil
	}
	button, ok := mouseButton(msg.Button)
	if !ok {
		return nil
	}
	for _, id := range m.widgetOrder {
		if !m.zones.Get(id).InBounds(msg) {
			continue
		}
		m.FocusWidget(id)
		if c, ok := m.widgets[id].(Clickable); ok {
			return c.HandleClick(button)
		}
		return nil
	}
	return nil
}

func mouseButton(b tea.MouseButton) (actions.Button, bool) {
	switch b {
	case tea.MouseButtonLeft:
		return actions.ButtonLeft, true
	case tea.MouseButtonMiddle:
		return actions.ButtonMiddle, true
	case tea.MouseButtonRight:
		return actions.ButtonRight, true
	}
	return 0, false
}

func (m AppModel) broadcast(msg tea.Msg) tea.Cmd {
	var cmds []tea.Cmd
	for _, id := range m.widgetOrder {
		if cmd := m.widgets[id].Update(msg); cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	return tea.Batch(cmds...)
}

func (m AppModel) fetchCmd() tea.Cmd {
	if m.backend == nil {
		return nil
	}
	backend, timeout := m.backend, m.cfg.FetchTimeout
	return DataFetchCmd(m.cfg.Source, func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return backend.State(ctx)
	})
}

// View implements tea.Model. Widgets share one line; an expanded widget
// takes the whole window.
func (m AppModel) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	var body string
	if w, ok := m.widgets[m.expandedWidget]; ok {
		height := m.height
		if m.showHelp {
			height--
		}
		body = m.zones.Mark(w.ID(), w.View(m.width, height))
	} else {
		body = m.barLine()
	}

	if m.showHelp {
		body = lipgloss.JoinVertical(lipgloss.Left, body, helpLine())
	}
	return m.zones.Scan(body)
}

// barLine splits the width evenly between widgets.
func (m AppModel) barLine() string {
	n := len(m.widgetOrder)
	if n == 0 {
		return ""
	}
	cell := (m.width - (n-1)*lipgloss.Width(separator)) / n
	if cell < 1 {
		cell = 1
	}

	parts := make([]string, 0, n)
	for _, id := range m.widgetOrder {
		parts = append(parts, m.zones.Mark(id, m.widgets[id].View(cell, 1)))
	}
	return strings.Join(parts, separator)
}

func helpLine() string {
	return lipgloss.NewStyle().Faint(true).Render(
		"click: left/middle/right • r refresh • enter details • tab focus • q quit")
}

// Width returns the last known terminal width.
func (m AppModel) Width() int { return m.width }

// Height returns the last known terminal height.
func (m AppModel) Height() int { return m.height }

// LayoutDirty reports whether the view geometry changed since the last
// resize was handled.
func (m AppModel) LayoutDirty() bool { return m.layoutDirty }

// FocusedWidgetID returns the focused widget, or "".
func (m AppModel) FocusedWidgetID() string { return m.focusedWidget }

// ExpandedWidgetID returns the expanded widget, or "".
func (m AppModel) ExpandedWidgetID() string { return m.expandedWidget }

// Quitting reports whether q or ctrl+c was pressed.
func (m AppModel) Quitting() bool { return m.quitting }

// HelpVisible reports whether the help line is shown.
func (m AppModel) HelpVisible() bool { return m.showHelp }

// DataStore returns the last successful fetch per source.
func (m AppModel) DataStore() map[string]interface{} { return m.data }

// Zones exposes the click zone manager.
func (m AppModel) Zones() *zone.Manager { return m.zones }
