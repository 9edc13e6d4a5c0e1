package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"gitlab.com/tinyland/lab/glucose-pulse/pkg/actions"
	"gitlab.com/tinyland/lab/glucose-pulse/pkg/cache"
	"gitlab.com/tinyland/lab/glucose-pulse/pkg/collectors"
	"gitlab.com/tinyland/lab/glucose-pulse/pkg/collectors/nightscout"
	"gitlab.com/tinyland/lab/glucose-pulse/pkg/config"
	"gitlab.com/tinyland/lab/glucose-pulse/pkg/widget"
)

const (
	// tickInterval re-renders between polls so elapsed minutes and the
	// stale flag in the cached state keep moving.
	tickInterval = 30 * time.Second

	// clickTimeout bounds an action triggered over IPC.
	clickTimeout = 10 * time.Second
)

// Options configures a Daemon.
type Options struct {
	Config  *config.Config
	Logger  *slog.Logger
	Version string

	// WidgetOptions are applied to every widget the daemon builds, after the
	// daemon's own options.
	WidgetOptions []widget.Option
}

// Daemon is the long-running glucose poller.
type Daemon struct {
	opts      Options
	logger    *slog.Logger
	store     *cache.Store
	startedAt time.Time
	updates   chan collectors.Update

	mu       sync.RWMutex
	cfg      *config.Config
	widget   *widget.Widget
	registry *collectors.Registry
	runner   *collectors.Runner
	reloads  int

	quit     chan struct{}
	quitOnce sync.Once
}

// New validates the config and builds the initial widget.
func New(opts Options) (*Daemon, error) {
	if opts.Config == nil {
		return nil, errors.New("daemon: config is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := cache.NewStore(cache.StoreConfig{
		Dir:        cfg.General.CacheDir,
		DefaultTTL: cfg.StateTTL(),
	})
	if err != nil {
		return nil, err
	}

	d := &Daemon{
		opts:      opts,
		logger:    opts.Logger,
		store:     store,
		startedAt: time.Now(),
		updates:   make(chan collectors.Update, collectors.DefaultUpdateBufferSize),
		cfg:       cfg,
		registry:  collectors.NewRegistry(),
		quit:      make(chan struct{}),
	}

	w, err := d.buildWidget(cfg)
	if err != nil {
		return nil, err
	}
	d.widget = w
	return d, nil
}

// Widget returns the widget currently in service.
func (d *Daemon) Widget() *widget.Widget {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.widget
}

// Config returns the config currently in service.
func (d *Daemon) Config() *config.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

// Store returns the state cache the daemon writes to.
func (d *Daemon) Store() *cache.Store {
	return d.store
}

// Run holds the PID file, polls, serves IPC, and watches the config file
// until ctx is cancelled or a QUIT command arrives.
func (d *Daemon) Run(ctx context.Context) error {
	cfg := d.Config()
	pidPath := cfg.PIDPath()
	if err := AcquirePID(pidPath); err != nil {
		return err
	}
	defer func() {
		if err := ReleasePID(pidPath); err != nil {
			d.logger.Warn("release pid file", "error", err)
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	d.seedFromCache()
	d.startRunner(ctx)
	defer d.stopRunner()

	ipc := NewIPCServer(cfg.SocketPath(), d)
	if err := ipc.Start(); err != nil {
		return err
	}
	defer ipc.Stop()

	var changes <-chan struct{}
	if cfg.Daemon.WatchConfig && cfg.Path() != "" {
		cw, err := NewConfigWatcher(cfg.Path(), d.logger)
		if err != nil {
			d.logger.Warn("config hot-reload disabled", "error", err)
		} else {
			go cw.Run(ctx)
			changes = cw.Changes()
		}
	}

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	d.logger.Info("daemon started",
		"pid", os.Getpid(),
		"socket", cfg.SocketPath(),
		"config", cfg.Path(),
		"poll_interval", cfg.Glucose.PollInterval.Duration)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("daemon stopping", "reason", ctx.Err())
			return nil
		case <-d.quit:
			d.logger.Info("daemon stopping", "reason", "quit command")
			return nil
		case u := <-d.updates:
			d.Widget().HandleUpdate(u)
			d.writeHealth()
		case <-ticker.C:
			d.Widget().Tick()
		case <-changes:
			_ = d.Reload(ctx)
		}
	}
}

// Stop asks Run to return. It is safe to call more than once.
func (d *Daemon) Stop() {
	d.quitOnce.Do(func() { close(d.quit) })
}

// Reload rereads the config file and swaps in a new widget. If the new
// config is invalid the current widget keeps running.
func (d *Daemon) Reload(ctx context.Context) error {
	path := d.Config().Path()
	if path == "" {
		return errors.New("no config file to reload")
	}

	cfg, err := config.LoadFromFile(path)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		d.logger.Error("config reload failed, keeping current widget", "config", path, "error", err)
		return err
	}

	w, err := d.buildWidget(cfg)
	if err != nil {
		d.logger.Error("config reload failed, keeping current widget", "config", path, "error", err)
		return err
	}
	if r, ok := d.Widget().Reading(); ok {
		w.Seed(r)
	}

	d.stopRunner()
	d.mu.Lock()
	d.cfg = cfg
	d.widget = w
	d.reloads++
	d.mu.Unlock()
	d.startRunner(ctx)

	d.logger.Info("config reloaded", "config", path)
	return nil
}

// Health assembles the current health report.
func (d *Daemon) Health() *HealthStatus {
	d.mu.RLock()
	cfg, w, reloads, reg := d.cfg, d.widget, d.reloads, d.registry
	d.mu.RUnlock()

	st := w.Current()
	now := time.Now()
	return &HealthStatus{
		PID:        os.Getpid(),
		Version:    d.opts.Version,
		StartedAt:  d.startedAt,
		UpdatedAt:  now,
		Uptime:     formatUptime(d.startedAt, now),
		ConfigPath: cfg.Path(),
		Healthy:    reg.Healthy(),
		Stale:      st.Stale,
		Class:      st.Class,
		LastError:  st.LastError,
		Reloads:    reloads,
		Collectors: reg.AllStatus(),
		StateCache: d.store.Stats(),
	}
}

// HandleCommand implements IPCHandler.
func (d *Daemon) HandleCommand(cmd string, args map[string]string) (string, error) {
	switch cmd {
	case CmdStatus:
		return toJSON(d.Widget().Current())

	case CmdClick:
		b, err := actions.ParseButton(args["button"])
		if err != nil {
			return "", err
		}
		ctx, cancel := context.WithTimeout(context.Background(), clickTimeout)
		defer cancel()
		a, err := d.Widget().OnClick(ctx, b)
		if err != nil {
			return "", err
		}
		return toJSON(map[string]string{"button": b.String(), "action": string(a)})

	case CmdRefresh:
		if err := d.refresh(context.Background()); err != nil {
			return "", err
		}
		return toJSON(map[string]bool{"refreshing": true})

	case CmdHealth:
		return toJSON(d.Health())

	case CmdQuit:
		d.Stop()
		return toJSON(map[string]bool{"stopping": true})
	}
	return "", fmt.Errorf("unknown command %q", cmd)
}

func (d *Daemon) buildWidget(cfg *config.Config) (*widget.Widget, error) {
	opts := []widget.Option{
		widget.WithLogger(d.logger.With("component", "widget")),
		widget.WithRefresher(d.refresh),
		widget.WithOnChange(d.persist),
	}
	opts = append(opts, d.opts.WidgetOptions...)
	return widget.New(widget.SettingsFromConfig(cfg.Glucose), opts...)
}

// refresh asks the runner for an immediate poll, or polls inline when no
// runner is active.
func (d *Daemon) refresh(ctx context.Context) error {
	d.mu.RLock()
	runner, w := d.runner, d.widget
	d.mu.RUnlock()

	if runner != nil && runner.Trigger(nightscout.Name) {
		return nil
	}
	_, err := w.Poll(ctx)
	if errors.Is(err, collectors.ErrBusy) {
		return nil
	}
	return err
}

// persist is the widget change callback: it publishes the state to the
// cache for one-shot readers.
func (d *Daemon) persist(st widget.RenderedState) {
	ttl := d.Config().StateTTL()
	if err := widget.SaveState(d.store, st, ttl); err != nil {
		d.logger.Warn("write state cache", "error", err)
	}
}

func (d *Daemon) seedFromCache() {
	st, age, ok := widget.LoadState(d.store)
	if !ok || st.Reading == nil {
		return
	}
	d.logger.Debug("seeding from cached state", "age", age, "sgv", st.Reading.SGV)
	d.Widget().Seed(*st.Reading)
}

func (d *Daemon) startRunner(ctx context.Context) {
	w := d.Widget()
	reg := collectors.NewRegistry()
	if err := reg.Register(w.Collector()); err != nil {
		d.logger.Error("register collector", "error", err)
		return
	}
	runner := collectors.NewRunner(reg, d.updates)
	_ = runner.Start(ctx)

	d.mu.Lock()
	d.registry = reg
	d.runner = runner
	d.mu.Unlock()
}

func (d *Daemon) stopRunner() {
	d.mu.Lock()
	runner := d.runner
	d.runner = nil
	d.mu.Unlock()
	if runner != nil {
		runner.Stop()
	}
}

func (d *Daemon) writeHealth() {
	if err := WriteHealthFile(d.Config().HealthPath(), d.Health()); err != nil {
		d.logger.Warn("write health file", "error", err)
	}
}

func toJSON(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
