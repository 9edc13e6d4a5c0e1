// Package actions maps mouse buttons to a closed set of named widget actions.
// Config files name actions by string; names are resolved once into Action
// values, and anything unrecognised becomes a logged no-op.
package actions

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/samber/lo"
)

// Button is a mouse button a host reports clicks for.
type Button int

const (
	ButtonLeft Button = iota
	ButtonMiddle
	ButtonRight
)

// Buttons lists every supported button.
var Buttons = []Button{ButtonLeft, ButtonMiddle, ButtonRight}

func (b Button) String() string {
	switch b {
	case ButtonLeft:
		return "left"
	case ButtonMiddle:
		return "middle"
	case ButtonRight:
		return "right"
	}
	return fmt.Sprintf("button(%d)", int(b))
}

// Event returns the callbacks config key for b ("on_left").
func (b Button) Event() string {
	return "on_" + b.String()
}

// ParseButton accepts "left", "middle", "right" (any case), the on_*
// event names, or X11 button numbers 1-3 as i3blocks reports them.
func ParseButton(s string) (Button, error) {
	name := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "on_")
	switch name {
	case "1":
		return ButtonLeft, nil
	case "2":
		return ButtonMiddle, nil
	case "3":
		return ButtonRight, nil
	}
	for _, b := range Buttons {
		if b.String() == name {
			return b, nil
		}
	}
	return 0, fmt.Errorf("unknown mouse button %q (want left, middle or right)", s)
}

// Action is a named widget behaviour.
type Action string

const (
	// OpenCGM opens the CGM host in the default browser.
	OpenCGM Action = "open_cgm"
	// DoNothing ignores the click.
	DoNothing Action = "do_nothing"
	// Refresh polls the CGM API immediately.
	Refresh Action = "refresh"
)

var known = []Action{OpenCGM, DoNothing, Refresh}

// Known returns every supported action name, sorted.
func Known() []string {
	names := lo.Map(known, func(a Action, _ int) string { return string(a) })
	sort.Strings(names)
	return names
}

// Parse resolves a config action name.
func Parse(name string) (Action, bool) {
	a := Action(strings.TrimSpace(name))
	return a, lo.Contains(known, a)
}

// DefaultCallbacks is the stock button binding.
func DefaultCallbacks() map[string]string {
	return map[string]string{
		ButtonLeft.Event():   string(OpenCGM),
		ButtonMiddle.Event(): string(DoNothing),
		ButtonRight.Event():  string(DoNothing),
	}
}

// Binding is the resolved action for one button.
type Binding struct {
	// Name is the configured action name, verbatim.
	Name string
	// Action is valid only when Known is true.
	Action Action
	Known  bool
}

// Bindings resolves per-button actions from an on_* keyed map layered over
// DefaultCallbacks.
func Bindings(callbacks map[string]string) map[Button]Binding {
	merged := lo.Assign(DefaultCallbacks(), callbacks)
	out := make(map[Button]Binding, len(Buttons))
	for _, b := range Buttons {
		name := merged[b.Event()]
		a, ok := Parse(name)
		out[b] = Binding{Name: name, Action: a, Known: ok}
	}
	return out
}

// Handler performs an action.
type Handler func(ctx context.Context) error

// Dispatcher routes clicks to registered action handlers.
type Dispatcher struct {
	logger   *slog.Logger
	bindings map[Button]Binding

	mu       sync.RWMutex
	handlers map[Action]Handler
}

// NewDispatcher builds a dispatcher for the given callbacks config. Unknown
// action names are reported once here and ignored at click time.
func NewDispatcher(callbacks map[string]string, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		logger:   logger,
		bindings: Bindings(callbacks),
		handlers: map[Action]Handler{
			DoNothing: func(context.Context) error { return nil },
		},
	}
	for _, b := range Buttons {
		if bind := d.bindings[b]; !bind.Known {
			logger.Warn("unknown callback action, clicks will be ignored",
				"event", b.Event(), "action", bind.Name, "known", Known())
		}
	}
	return d
}

// Register installs the handler for a.
func (d *Dispatcher) Register(a Action, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[a] = h
}

// Binding returns the resolved binding for b.
func (d *Dispatcher) Binding(b Button) Binding {
	return d.bindings[b]
}

// Dispatch runs the action bound to b. It returns the action that ran, or
// false when the binding is unknown or has no handler. Handler errors are
// returned to the caller; they never panic the widget.
func (d *Dispatcher) Dispatch(ctx context.Context, b Button) (Action, bool, error) {
	bind, ok := d.bindings[b]
	if !ok || !bind.Known {
		d.logger.Warn("click ignored: unknown action", "button", b.String(), "action", bind.Name)
		return "", false, nil
	}

	d.mu.RLock()
	h, ok := d.handlers[bind.Action]
	d.mu.RUnlock()
	if !ok {
		d.logger.Warn("click ignored: action has no handler", "button", b.String(), "action", bind.Action)
		return bind.Action, false, nil
	}

	d.logger.Debug("dispatching click", "button", b.String(), "action", bind.Action)
	if err := h(ctx); err != nil {
		return bind.Action, true, fmt.Errorf("action %s: %w", bind.Action, err)
	}
	return bind.Action, true, nil
}
