// Package nightscout provides a collector that polls a Nightscout-compatible
// CGM server for the latest sensor glucose value. It maps the entries API
// response into a cgm.Reading, computing the trend delta against the previous
// reading.
package nightscout

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"gitlab.com/tinyland/lab/glucose-pulse/pkg/cgm"
	"gitlab.com/tinyland/lab/glucose-pulse/pkg/collectors"
)

// Name is the collector identifier used in the registry, health file, and
// IPC output.
const Name = "glucose"

// Default configuration values.
const (
	DefaultInterval = time.Minute
	DefaultTimeout  = 10 * time.Second
	DefaultCount    = 2
)

// Config holds the configuration for the Nightscout collector.
type Config struct {
	// Interval is how often collection runs. Zero uses DefaultInterval.
	Interval time.Duration

	// Timeout bounds a single poll. Zero uses DefaultTimeout.
	Timeout time.Duration

	// Count is how many entries to request. Two lets the delta be computed
	// on the very first poll. Zero uses DefaultCount.
	Count int
}

// Collector polls the Nightscout entries API.
type Collector struct {
	client   EntriesClient
	interval time.Duration
	timeout  time.Duration
	count    int

	inFlight atomic.Bool

	mu      sync.Mutex
	healthy bool
	last    *cgm.Reading
}

// New creates a Nightscout collector. The caller provides the EntriesClient;
// in production this is an *HTTPClient.
func New(cfg Config, client EntriesClient) *Collector {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	count := cfg.Count
	if count <= 0 {
		count = DefaultCount
	}
	return &Collector{
		client:   client,
		interval: interval,
		timeout:  timeout,
		count:    count,
		healthy:  true, // healthy until first failure
	}
}

// Name returns the collector identifier.
func (c *Collector) Name() string {
	return Name
}

// Interval returns how often this collector should run.
func (c *Collector) Interval() time.Duration {
	return c.interval
}

// Healthy returns whether the last collection succeeded.
func (c *Collector) Healthy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.healthy
}

// Seed installs a reading as the delta baseline, used when a widget is
// rebuilt after a config reload.
func (c *Collector) Seed(r cgm.Reading) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = &r
}

// Collect implements collectors.Collector. The data is a *cgm.Reading.
func (c *Collector) Collect(ctx context.Context) (interface{}, error) {
	r, err := c.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Fetch performs one poll. A call made while another is still running returns
// collectors.ErrBusy immediately. On failure the stored reading is left
// untouched.
func (c *Collector) Fetch(ctx context.Context) (*cgm.Reading, error) {
	if !c.inFlight.CompareAndSwap(false, true) {
		return nil, collectors.ErrBusy
	}
	defer c.inFlight.Store(false)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	entries, err := c.client.Entries(ctx, c.count)
	if err != nil {
		c.setHealthy(false)
		var fe *cgm.FetchError
		if !errors.As(err, &fe) {
			err = &cgm.FetchError{Op: "request", Err: err}
		}
		return nil, err
	}
	if len(entries) == 0 {
		c.setHealthy(false)
		return nil, &cgm.FetchError{Op: "decode", Err: errors.New("empty entries array")}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Date.After(entries[j].Date)
	})

	c.mu.Lock()
	defer c.mu.Unlock()

	current := entries[0]
	reading := current.Reading(computeDelta(current, entries[1:], c.last))
	c.last = &reading
	c.healthy = true

	out := reading
	return &out, nil
}

// computeDelta picks the trend baseline: the previously stored reading when
// it is older than current, the stored delta when the server has not
// produced a new value yet, the server-computed delta, the next entry in the
// response, or zero.
func computeDelta(current Entry, older []Entry, prev *cgm.Reading) float64 {
	if prev != nil {
		switch {
		case prev.Timestamp.Before(current.Date):
			return current.SGV - prev.SGV
		case prev.Timestamp.Equal(current.Date):
			return prev.Delta
		}
	}
	if current.HasDelta {
		return current.Delta
	}
	for _, e := range older {
		if e.Date.Before(current.Date) {
			return current.SGV - e.SGV
		}
	}
	return 0
}

func (c *Collector) setHealthy(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.healthy = v
}
