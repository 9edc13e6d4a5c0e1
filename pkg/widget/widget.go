// Package widget is the glucose monitor widget: it owns the resolved
// configuration, the latest reading, and the rendered label/tooltip pair, and
// routes mouse clicks to actions. Hosts (daemon, terminal bar, one-shot
// commands) drive it through Poll or Apply and read Current.
package widget

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"gitlab.com/tinyland/lab/glucose-pulse/pkg/actions"
	"gitlab.com/tinyland/lab/glucose-pulse/pkg/cgm"
	"gitlab.com/tinyland/lab/glucose-pulse/pkg/collectors"
	"gitlab.com/tinyland/lab/glucose-pulse/pkg/collectors/nightscout"
	"gitlab.com/tinyland/lab/glucose-pulse/pkg/format"
	"gitlab.com/tinyland/lab/glucose-pulse/pkg/platform"
)

// Option customises a Widget.
type Option func(*Widget)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(w *Widget) { w.logger = l }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(w *Widget) { w.now = now }
}

// WithClient replaces the HTTP client talking to Nightscout.
func WithClient(c nightscout.EntriesClient) Option {
	return func(w *Widget) { w.client = c }
}

// WithLookupEnv replaces os.LookupEnv for secret resolution.
func WithLookupEnv(lookup func(string) (string, bool)) Option {
	return func(w *Widget) { w.lookup = lookup }
}

// WithOpener replaces the browser launcher used by open_cgm.
func WithOpener(open func(ctx context.Context, url string) error) Option {
	return func(w *Widget) { w.opener = open }
}

// WithRefresher replaces what the refresh action does. The daemon uses this
// to poke its collector runner; by default the widget polls inline.
func WithRefresher(refresh func(ctx context.Context) error) Option {
	return func(w *Widget) { w.refresher = refresh }
}

// WithOnChange registers a callback that receives every new state. It runs
// on the goroutine that caused the change and must not block.
func WithOnChange(fn func(RenderedState)) Option {
	return func(w *Widget) { w.onChange = fn }
}

// Widget is safe for concurrent use.
type Widget struct {
	settings Settings
	units    cgm.Units
	icons    cgm.IconSet
	label    *format.Template
	tooltip  *format.Template
	host     string

	client     nightscout.EntriesClient
	collector  *nightscout.Collector
	dispatcher *actions.Dispatcher

	logger    *slog.Logger
	now       func() time.Time
	lookup    func(string) (string, bool)
	opener    func(ctx context.Context, url string) error
	refresher func(ctx context.Context) error
	onChange  func(RenderedState)

	state atomic.Pointer[RenderedState]

	mu      sync.Mutex
	reading *cgm.Reading
	lastErr error

	notifyMu sync.Mutex
}

// New validates settings and builds a widget. Configuration problems are
// returned as *cgm.ConfigError. The secret is resolved here, once.
func New(s Settings, opts ...Option) (*Widget, error) {
	w := &Widget{
		settings: s,
		logger:   slog.Default(),
		now:      time.Now,
		opener:   platform.OpenURL,
	}
	for _, opt := range opts {
		opt(w)
	}

	units, err := cgm.ParseUnits(s.Units)
	if err != nil {
		return nil, err
	}
	w.units = units

	base, err := nightscout.ParseHost(s.Host)
	if err != nil {
		return nil, err
	}
	w.host = base.String()

	secret := s.Secret
	if secret == nil {
		secret = cgm.LiteralSecret("")
	}
	plain, err := secret.Resolve(w.lookup)
	if err != nil {
		return nil, err
	}

	w.icons = cgm.NewIconSet(s.Icons, s.UnknownIcon)
	w.label = format.Compile(s.Label)
	w.tooltip = format.Compile(s.Tooltip)
	for _, t := range []*format.Template{w.label, w.tooltip} {
		if unknown := t.Unknown(); len(unknown) > 0 {
			w.logger.Warn("unknown placeholders are shown verbatim",
				"template", t.Source(), "unknown", unknown, "known", format.Tokens())
		}
	}

	if w.client == nil {
		w.client, err = nightscout.NewHTTPClient(nightscout.ClientOptions{
			Host:        s.Host,
			Secret:      plain,
			Timeout:     s.RequestTimeout,
			QuerySecret: s.QuerySecret,
			UserAgent:   "glucose-pulse",
		})
		if err != nil {
			return nil, err
		}
	}
	w.collector = nightscout.New(nightscout.Config{
		Interval: s.PollInterval,
		Timeout:  s.RequestTimeout,
		Count:    s.EntriesCount,
	}, w.client)

	w.dispatcher = actions.NewDispatcher(s.Callbacks, w.logger)
	w.dispatcher.Register(actions.OpenCGM, func(ctx context.Context) error {
		return w.opener(ctx, w.host)
	})
	w.dispatcher.Register(actions.Refresh, w.refresh)

	w.logger.Debug("glucose widget ready",
		"host", w.host, "units", w.units, "secret", secret.Describe(),
		"poll_interval", s.PollInterval)

	initial := w.Render(nil, w.now())
	w.state.Store(&initial)
	return w, nil
}

// Settings returns the settings the widget was built from.
func (w *Widget) Settings() Settings {
	return w.settings
}

// Host returns the normalised Nightscout URL opened by open_cgm.
func (w *Widget) Host() string {
	return w.host
}

// Collector exposes the Nightscout collector so a collectors.Runner can
// drive polling.
func (w *Widget) Collector() *nightscout.Collector {
	return w.collector
}

// Current returns the latest rendered state.
func (w *Widget) Current() RenderedState {
	return *w.state.Load()
}

// Reading returns the latest successfully fetched reading.
func (w *Widget) Reading() (cgm.Reading, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.reading == nil {
		return cgm.Reading{}, false
	}
	return *w.reading, true
}

// Seed shows a reading obtained elsewhere (the state cache, or the previous
// widget before a reload) until the first poll completes.
func (w *Widget) Seed(r cgm.Reading) {
	w.collector.Seed(r)
	w.mu.Lock()
	w.reading = &r
	w.mu.Unlock()
	w.publish()
}

// Poll fetches a reading now and applies the result. A poll already in
// flight makes this return collectors.ErrBusy without touching the state.
func (w *Widget) Poll(ctx context.Context) (cgm.Reading, error) {
	r, err := w.collector.Fetch(ctx)
	if errors.Is(err, collectors.ErrBusy) {
		return cgm.Reading{}, err
	}
	w.Apply(r, err)
	if err != nil {
		return cgm.Reading{}, err
	}
	return *r, nil
}

// HandleUpdate applies a result delivered by a collectors.Runner. Updates
// from other collectors are ignored.
func (w *Widget) HandleUpdate(u collectors.Update) {
	if u.Source != w.collector.Name() {
		return
	}
	r, _ := u.Data.(*cgm.Reading)
	if u.Error == nil && r == nil {
		w.logger.Warn("glucose update without a reading", "data", u.Data)
		return
	}
	w.Apply(r, u.Error)
}

// Apply installs a poll result. On success the reading is replaced
// wholesale; on failure the previous reading stays and the error is recorded
// in LastError. A reading older than the one already shown is dropped, so
// results that arrive out of order cannot move the display backwards.
func (w *Widget) Apply(r *cgm.Reading, err error) {
	if errors.Is(err, collectors.ErrBusy) {
		return
	}
	w.mu.Lock()
	if err == nil && r != nil && w.reading != nil && r.Timestamp.Before(w.reading.Timestamp) {
		shown := w.reading.Timestamp
		w.mu.Unlock()
		w.logger.Debug("dropping out-of-order glucose reading", "reading_time", r.Timestamp, "shown_time", shown)
		return
	}
	if err != nil {
		w.lastErr = err
	} else if r != nil {
		cp := *r
		w.reading = &cp
		w.lastErr = nil
	}
	w.mu.Unlock()

	if err != nil {
		w.logger.Warn("glucose poll failed, keeping previous reading", "error", err)
	} else if r != nil {
		w.logger.Debug("glucose reading", "sgv", r.SGV, "direction", r.Direction, "delta", r.Delta)
	}
	w.publish()
}

// Tick re-renders with the current time so elapsed minutes and the stale
// flag advance between polls. It returns the new state.
func (w *Widget) Tick() RenderedState {
	return w.publish()
}

// Render produces the state for reading at now. A nil reading renders the
// placeholder state shown before the first successful poll.
func (w *Widget) Render(reading *cgm.Reading, now time.Time) RenderedState {
	v := format.Values{
		Units: w.units,
		Icons: w.icons,
		Now:   now,
	}
	st := RenderedState{
		Class:      ClassLoading,
		Units:      w.units,
		RenderedAt: now,
	}
	if reading != nil {
		cp := *reading
		v.Reading = cp
		v.HasReading = true
		v.Stale = cp.IsStale(now, w.settings.StaleAfter)
		st.Reading = &cp
		st.ElapsedMinutes = cp.ElapsedMinutes(now)
		st.Stale = v.Stale
		st.Class = ClassOK
		if st.Stale {
			st.Class = ClassStale
		}
	}

	st.Label = w.label.Render(v)
	if st.Stale {
		st.Label += w.settings.StaleLabelSuffix
	}
	st.Tooltip = w.tooltip.Render(v)
	return st
}

// OnClick runs the action bound to button. Unknown actions are logged and
// ignored; action failures are logged and returned.
func (w *Widget) OnClick(ctx context.Context, button actions.Button) (actions.Action, error) {
	a, ran, err := w.dispatcher.Dispatch(ctx, button)
	if err != nil {
		w.logger.Warn("click action failed", "button", button.String(), "action", a, "error", err)
		return a, err
	}
	if !ran {
		return "", nil
	}
	return a, nil
}

// Binding returns the resolved action for button.
func (w *Widget) Binding(button actions.Button) actions.Binding {
	return w.dispatcher.Binding(button)
}

func (w *Widget) refresh(ctx context.Context) error {
	if w.refresher != nil {
		return w.refresher(ctx)
	}
	_, err := w.Poll(ctx)
	if errors.Is(err, collectors.ErrBusy) {
		return nil
	}
	return err
}

// publish renders the current reading and error, stores the state, and
// notifies the change callback. Rendering and storing happen under mu so the
// stored state always matches the latest reading; the callback always
// receives the latest stored state.
func (w *Widget) publish() RenderedState {
	w.mu.Lock()
	st := w.Render(w.reading, w.now())
	if w.lastErr != nil {
		st.LastError = w.lastErr.Error()
		if st.Class != ClassStale {
			st.Class = ClassError
		}
	}
	w.state.Store(&st)
	w.mu.Unlock()

	if w.onChange != nil {
		w.notifyMu.Lock()
		w.onChange(w.Current())
		w.notifyMu.Unlock()
	}
	return st
}
