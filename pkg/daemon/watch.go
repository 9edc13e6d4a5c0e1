package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce coalesces the burst of events an editor produces on save.
const reloadDebounce = 250 * time.Millisecond

// ConfigWatcher signals when a config file changes. It watches the parent
// directory because editors commonly save by writing a temp file and renaming
// it over the original, which drops a watch placed on the file itself.
type ConfigWatcher struct {
	path    string
	watcher *fsnotify.Watcher
	logger  *slog.Logger
	changes chan struct{}
}

// NewConfigWatcher starts watching path. Call Run to deliver events.
func NewConfigWatcher(path string, logger *slog.Logger) (*ConfigWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	return &ConfigWatcher{
		path:    abs,
		watcher: w,
		logger:  logger,
		changes: make(chan struct{}, 1),
	}, nil
}

// Changes receives one value per debounced burst of writes to the file.
func (cw *ConfigWatcher) Changes() <-chan struct{} {
	return cw.changes
}

// Run forwards events until ctx is cancelled, then closes the watcher.
func (cw *ConfigWatcher) Run(ctx context.Context) {
	defer cw.watcher.Close()

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case ev, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if !cw.relevant(ev) {
				continue
			}
			cw.logger.Debug("config file event", "op", ev.Op.String(), "file", ev.Name)
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
			} else {
				timer.Reset(reloadDebounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			select {
			case cw.changes <- struct{}{}:
			default:
			}

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.logger.Warn("config watcher error", "error", err)
		}
	}
}

func (cw *ConfigWatcher) relevant(ev fsnotify.Event) bool {
	if filepath.Clean(ev.Name) != cw.path {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename)
}
