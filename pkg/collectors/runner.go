package collectors

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// DefaultUpdateBufferSize is the recommended capacity of the updates channel
// handed to NewRunner.
const DefaultUpdateBufferSize = 16

// fallbackInterval is used for collectors that report a non-positive interval.
const fallbackInterval = time.Minute

// Runner drives every registered collector on its own ticker. Each collector
// gets one goroutine and runs synchronously inside it, so a slow collection
// delays that collector's next tick instead of overlapping with it.
type Runner struct {
	registry *Registry
	updates  chan<- Update

	mu       sync.Mutex
	triggers map[string]chan struct{}
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewRunner creates a runner that publishes results to updates.
func NewRunner(registry *Registry, updates chan<- Update) *Runner {
	return &Runner{
		registry: registry,
		updates:  updates,
		triggers: make(map[string]chan struct{}),
	}
}

// Start launches one goroutine per registered collector. Each collector runs
// immediately and then on every tick of its interval until ctx is cancelled
// or Stop is called.
func (r *Runner) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()

	for _, name := range r.registry.List() {
		c, ok := r.registry.Get(name)
		if !ok {
			continue
		}
		trigger := make(chan struct{}, 1)
		r.mu.Lock()
		r.triggers[name] = trigger
		r.mu.Unlock()

		r.wg.Add(1)
		go r.loop(ctx, c, trigger)
	}
	return nil
}

// Stop cancels all collector goroutines and waits for them to exit. It is
// safe to call more than once.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() {
		r.mu.Lock()
		cancel := r.cancel
		r.mu.Unlock()
		if cancel != nil {
			cancel()
		}
	})
	r.wg.Wait()
}

// Trigger asks the named collector's goroutine to run as soon as it is idle.
// Requests made while one is already pending are coalesced. It reports
// whether the collector is being driven by this runner.
func (r *Runner) Trigger(name string) bool {
	r.mu.Lock()
	trigger, ok := r.triggers[name]
	r.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case trigger <- struct{}{}:
	default:
	}
	return true
}

// RunOnce runs the named collector synchronously, records its status, and
// returns the result without publishing it to the updates channel.
func (r *Runner) RunOnce(ctx context.Context, name string) (interface{}, error) {
	c, ok := r.registry.Get(name)
	if !ok {
		return nil, fmt.Errorf("collector %q not registered", name)
	}
	return r.execute(ctx, c)
}

// loop is the per-collector goroutine.
func (r *Runner) loop(ctx context.Context, c Collector, trigger <-chan struct{}) {
	defer r.wg.Done()

	interval := c.Interval()
	if interval <= 0 {
		interval = fallbackInterval
	}

	r.collect(ctx, c)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.collect(ctx, c)
		case <-trigger:
			r.collect(ctx, c)
		}
	}
}

// collect runs one cycle and publishes the result. Busy collectors are
// skipped silently.
func (r *Runner) collect(ctx context.Context, c Collector) {
	if ctx.Err() != nil {
		return
	}
	data, err := r.execute(ctx, c)
	if errors.Is(err, ErrBusy) {
		return
	}
	if ctx.Err() != nil {
		return
	}

	u := Update{
		Source:    c.Name(),
		Data:      data,
		Timestamp: time.Now(),
		Error:     err,
	}
	select {
	case r.updates <- u:
	case <-ctx.Done():
	}
}

// execute calls Collect and records the outcome in the registry.
func (r *Runner) execute(ctx context.Context, c Collector) (interface{}, error) {
	start := time.Now()
	data, err := c.Collect(ctx)
	latency := time.Since(start)

	r.registry.updateStatus(c.Name(), func(s *CollectorStatus) {
		if errors.Is(err, ErrBusy) {
			s.SkipCount++
			return
		}
		s.RunCount++
		s.LastRun = start
		s.LastLatency = latency
		if err != nil {
			s.ErrorCount++
			s.Healthy = false
			s.LastError = err
			s.LastErrMsg = err.Error()
			return
		}
		s.Healthy = true
		s.LastError = nil
		s.LastErrMsg = ""
	})
	return data, err
}
