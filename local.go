package main

import (
	"context"
	"log/slog"

	"gitlab.com/tinyland/lab/glucose-pulse/pkg/cache"
	"gitlab.com/tinyland/lab/glucose-pulse/pkg/cgm"
	"gitlab.com/tinyland/lab/glucose-pulse/pkg/collectors"
	"gitlab.com/tinyland/lab/glucose-pulse/pkg/collectors/nightscout"
	"gitlab.com/tinyland/lab/glucose-pulse/pkg/config"
	"gitlab.com/tinyland/lab/glucose-pulse/pkg/daemon"
	"gitlab.com/tinyland/lab/glucose-pulse/pkg/widget"
)

// Where a state came from, for --verbose output and tests.
const (
	sourceDaemon = "daemon"
	sourceCache  = "cache"
	sourcePoll   = "poll"
)

// daemonClient returns a client for the running daemon, if there is one.
func daemonClient(cfg *config.Config) (*daemon.IPCClient, bool) {
	if _, ok := daemon.RunningPID(cfg.PIDPath()); !ok {
		return nil, false
	}
	return daemon.NewIPCClient(cfg.SocketPath()), true
}

// readCachedState returns the state last written to the cache, unless it
// has expired.
func readCachedState(cfg *config.Config) (widget.RenderedState, bool) {
	store, err := cache.NewStore(cache.StoreConfig{
		Dir:        cfg.General.CacheDir,
		DefaultTTL: cfg.StateTTL(),
	})
	if err != nil {
		return widget.RenderedState{}, false
	}
	st, _, ok := widget.LoadState(store)
	return st, ok
}

// rerenderCached renders a cached reading with the current config and clock,
// so elapsed minutes and staleness reflect now rather than the write time.
// States the config cannot render are returned as stored.
func rerenderCached(cfg *config.Config, logger *slog.Logger, st widget.RenderedState) widget.RenderedState {
	if st.Reading == nil {
		return st
	}
	w, err := newLocalWidget(cfg, logger)
	if err != nil {
		logger.Debug("cached state shown as stored", "error", err)
		return st
	}
	w.Seed(*st.Reading)
	return w.Current()
}

// newLocalWidget builds a widget in this process for when no daemon runs.
func newLocalWidget(cfg *config.Config, logger *slog.Logger, opts ...widget.Option) (*widget.Widget, error) {
	base := []widget.Option{widget.WithLogger(logger)}
	return widget.New(widget.SettingsFromConfig(cfg.Glucose), append(base, opts...)...)
}

// currentState asks the running daemon, or else polls Nightscout once from
// this process. A cached reading seeds the local widget, so a failed poll
// still shows it (with the error) and the delta has a baseline. A failed
// poll returns the widget's state together with the error.
func currentState(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...widget.Option) (widget.RenderedState, string, error) {
	if client, ok := daemonClient(cfg); ok {
		var st widget.RenderedState
		err := client.Call(daemon.CmdStatus, &st)
		if err == nil {
			return st, sourceDaemon, nil
		}
		logger.Debug("daemon status failed, polling locally", "error", err)
	}

	w, err := newLocalWidget(cfg, logger, opts...)
	if err != nil {
		return widget.RenderedState{}, "", err
	}
	if cached, ok := readCachedState(cfg); ok && cached.Reading != nil {
		w.Seed(*cached.Reading)
	}
	return pollOnce(ctx, w)
}

// pollOnce runs the widget's collector through a registry and runner, the
// same path the daemon uses, and applies the result.
func pollOnce(ctx context.Context, w *widget.Widget) (widget.RenderedState, string, error) {
	reg := collectors.NewRegistry()
	if err := reg.Register(w.Collector()); err != nil {
		return w.Current(), sourcePoll, err
	}
	data, err := collectors.NewRunner(reg, nil).RunOnce(ctx, nightscout.Name)
	r, _ := data.(*cgm.Reading)
	w.Apply(r, err)
	return w.Current(), sourcePoll, err
}

// localPoller drives a widget from a collectors.Runner, the way the daemon
// does, for interactive commands started without a daemon.
type localPoller struct {
	runner *collectors.Runner
	cancel context.CancelFunc
	done   chan struct{}
}

func startLocalPoller(ctx context.Context, w *widget.Widget) (*localPoller, error) {
	reg := collectors.NewRegistry()
	if err := reg.Register(w.Collector()); err != nil {
		return nil, err
	}
	updates := make(chan collectors.Update, collectors.DefaultUpdateBufferSize)
	runner := collectors.NewRunner(reg, updates)

	ctx, cancel := context.WithCancel(ctx)
	if err := runner.Start(ctx); err != nil {
		cancel()
		return nil, err
	}

	p := &localPoller{runner: runner, cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(p.done)
		for {
			select {
			case <-ctx.Done():
				return
			case u := <-updates:
				w.HandleUpdate(u)
			}
		}
	}()
	return p, nil
}

// Stop halts polling and waits for the update loop to exit.
func (p *localPoller) Stop() {
	p.runner.Stop()
	p.cancel()
	<-p.done
}
