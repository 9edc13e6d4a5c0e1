// Package collectors defines the interfaces, registry, and runner for
// glucose-pulse data collectors. A collector (today the Nightscout CGM
// fetcher) implements the Collector interface and is driven by a Runner that
// fans results into a single updates channel consumed by the daemon or the
// terminal bar.
package collectors

import (
	"context"
	"errors"
	"time"
)

// ErrBusy is returned by collectors that refuse to start a collection while
// a previous one is still in flight. The runner treats it as a skipped tick
// rather than a failure.
var ErrBusy = errors.New("collection already in progress")

// Collector is the interface all data sources implement. Implementations live
// in sub-packages (e.g., pkg/collectors/nightscout) and are registered with
// the Registry at startup.
type Collector interface {
	// Name returns a unique identifier for this collector (e.g., "glucose").
	Name() string

	// Collect performs one collection cycle and returns the data. The returned
	// value is opaque here; consumers type-assert based on the collector name.
	Collect(ctx context.Context) (interface{}, error)

	// Interval returns how often this collector should run. The runner uses
	// this to configure a per-collector ticker.
	Interval() time.Duration

	// Healthy returns whether the collector is functioning. A collector that
	// has never run or whose last run succeeded is considered healthy.
	Healthy() bool
}

// CollectorStatus tracks the runtime state of a single collector. The runner
// updates this after every collection cycle.
type CollectorStatus struct {
	Name        string        `json:"name"`
	Healthy     bool          `json:"healthy"`
	LastRun     time.Time     `json:"last_run"`
	LastError   error         `json:"-"`
	LastErrMsg  string        `json:"last_error,omitempty"`
	RunCount    int64         `json:"run_count"`
	ErrorCount  int64         `json:"error_count"`
	SkipCount   int64         `json:"skip_count"`
	LastLatency time.Duration `json:"last_latency"`
}

// Update carries the result of a single collection cycle from a collector
// goroutine to the consumer.
type Update struct {
	Source    string
	Data      interface{}
	Timestamp time.Time
	Error     error
}
