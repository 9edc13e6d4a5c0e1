package widget

import (
	"time"

	"gitlab.com/tinyland/lab/glucose-pulse/pkg/cache"
)

// StateKey is the cache key holding the daemon's latest RenderedState.
const StateKey = "glucose.state"

// SaveState writes st to the cache for one-shot readers.
func SaveState(store *cache.Store, st RenderedState, ttl time.Duration) error {
	return cache.PutTypedWithTTL(store, StateKey, st, ttl)
}

// LoadState returns the cached state and its age.
func LoadState(store *cache.Store) (RenderedState, time.Duration, bool) {
	return cache.GetTypedWithAge[RenderedState](store, StateKey)
}
