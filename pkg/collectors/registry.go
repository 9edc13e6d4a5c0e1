package collectors

import (
	"fmt"
	"sort"
	"sync"

	"github.com/samber/lo"
)

type registered struct {
	collector Collector
	status    CollectorStatus
}

// Registry holds the collectors a Runner drives, keyed by name, together
// with the outcome of their most recent cycle.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*registered
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*registered)}
}

// Register adds c. Names must be unique.
func (r *Registry) Register(c Collector) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := c.Name()
	if _, dup := r.entries[name]; dup {
		return fmt.Errorf("collector %q already registered", name)
	}
	r.entries[name] = &registered{
		collector: c,
		status:    CollectorStatus{Name: name, Healthy: true},
	}
	return nil
}

func (r *Registry) Get(name string) (Collector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	return e.collector, true
}

// List returns the registered names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	names := lo.Keys(r.entries)
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

func (r *Registry) Status(name string) (CollectorStatus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return CollectorStatus{}, false
	}
	return e.status, true
}

// AllStatus returns a snapshot of every status, sorted by name.
func (r *Registry) AllStatus() []CollectorStatus {
	r.mu.RLock()
	out := lo.MapToSlice(r.entries, func(_ string, e *registered) CollectorStatus {
		return e.status
	})
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Healthy is false once any collector's last real run failed.
func (r *Registry) Healthy() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.EveryBy(lo.Values(r.entries), func(e *registered) bool {
		return e.status.Healthy
	})
}

func (r *Registry) updateStatus(name string, fn func(s *CollectorStatus)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[name]; ok {
		fn(&e.status)
	}
}
