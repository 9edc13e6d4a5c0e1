package app

import "github.com/samber/lo"

// CycleFocusForward moves focus one cell to the right, wrapping.
func (m *AppModel) CycleFocusForward() { m.cycleFocus(1) }

// CycleFocusBackward moves focus one cell to the left, wrapping.
func (m *AppModel) CycleFocusBackward() { m.cycleFocus(-1) }

func (m *AppModel) cycleFocus(step int) {
	n := len(m.widgetOrder)
	if n == 0 {
		return
	}
	idx := lo.IndexOf(m.widgetOrder, m.focusedWidget)
	if idx < 0 {
		idx = 0
	}
	m.focusedWidget = m.widgetOrder[(idx+step+n)%n]
}

// FocusWidget focuses id if it is one of the bar's cells.
func (m *AppModel) FocusWidget(id string) {
	if _, ok := m.widgets[id]; ok {
		m.focusedWidget = id
	}
}

// ToggleExpand opens the focused cell full screen, or closes it if it is
// already open.
func (m *AppModel) ToggleExpand() {
	switch m.focusedWidget {
	case "":
	case m.expandedWidget:
		m.expandedWidget = ""
	default:
		m.expandedWidget = m.focusedWidget
	}
}
