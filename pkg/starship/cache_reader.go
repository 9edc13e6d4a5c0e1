// Package starship generates a single-line formatted string for use as a
// starship custom module. It reads the daemon's cached glucose state and
// never talks to the network, so prompts stay fast.
package starship

import (
	"time"

	"gitlab.com/tinyland/lab/glucose-pulse/pkg/cache"
	"gitlab.com/tinyland/lab/glucose-pulse/pkg/widget"
)

// ssReadState loads the cached widget state from cacheDir. It reports false
// when the cache is missing, expired, unreadable, or older than maxAge.
func ssReadState(cacheDir string, maxAge time.Duration) (widget.RenderedState, bool) {
	if cacheDir == "" {
		return widget.RenderedState{}, false
	}
	store, err := cache.NewStore(cache.StoreConfig{Dir: cacheDir})
	if err != nil {
		return widget.RenderedState{}, false
	}
	st, age, ok := widget.LoadState(store)
	if !ok {
		return widget.RenderedState{}, false
	}
	if maxAge > 0 && age > maxAge {
		return widget.RenderedState{}, false
	}
	return st, true
}
