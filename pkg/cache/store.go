// Package cache is the on-disk state store shared between the glucose-pulse
// daemon, which writes the latest rendered state, and one-shot commands
// (starship, waybar, status), which read it. Every read goes to disk so a
// reader process always sees the daemon's most recent write.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// entrySuffix names entry files inside the cache directory.
const entrySuffix = ".entry.json"

// StoreConfig holds configuration for a cache Store.
type StoreConfig struct {
	// Dir is the directory path where cache files are stored.
	Dir string

	// DefaultTTL is the default time-to-live for cache entries. A value of 0
	// means entries never expire by TTL.
	DefaultTTL time.Duration
}

// CacheStats holds hit/miss counters for this process.
type CacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

// Entry is a stored value with its bookkeeping.
type Entry struct {
	Key     string          `json:"key"`
	Created time.Time       `json:"created"`
	TTL     time.Duration   `json:"ttl_ns"` // 0 = no TTL
	Data    json.RawMessage `json:"data"`
}

// Age returns how long ago the entry was written.
func (e Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.Created)
}

// Expired reports whether the entry's TTL has passed at now.
func (e Entry) Expired(now time.Time) bool {
	return e.TTL > 0 && now.Sub(e.Created) > e.TTL
}

// Store is a disk-backed key-value cache with TTL-based expiry. Each entry is
// one JSON file written atomically via temp-file-then-rename, so concurrent
// readers in other processes never observe a partial write. Values must be
// valid JSON.
type Store struct {
	cfg StoreConfig
	now func() time.Time

	mu     sync.Mutex // serialises writers within this process
	hits   int64
	misses int64
}

// NewStore creates a new cache Store. The cache directory is created with
// 0755 permissions if it does not exist.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Dir == "" {
		return nil, errors.New("cache: directory is required")
	}
	if cfg.DefaultTTL < 0 {
		cfg.DefaultTTL = 0
	}
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("cache: create directory %s: %w", cfg.Dir, err)
	}
	return &Store{cfg: cfg, now: time.Now}, nil
}

// Dir returns the cache directory.
func (s *Store) Dir() string {
	return s.cfg.Dir
}

// GetEntry returns the entry for key. Missing, unreadable, and expired
// entries report false; expired ones are removed.
func (s *Store) GetEntry(key string) (Entry, bool) {
	e, err := s.readEntry(s.entryPath(key))
	if err != nil || e.Key != key {
		s.count(false)
		return Entry{}, false
	}
	if e.Expired(s.now()) {
		_ = os.Remove(s.entryPath(key))
		s.count(false)
		return Entry{}, false
	}
	s.count(true)
	return e, true
}

// Get retrieves the raw JSON for key. Returns (nil, false) if the key is
// missing or expired.
func (s *Store) Get(key string) ([]byte, bool) {
	e, ok := s.GetEntry(key)
	if !ok {
		return nil, false
	}
	return e.Data, true
}

// Put stores value under key with the store's default TTL.
func (s *Store) Put(key string, value []byte) error {
	return s.PutWithTTL(key, value, s.cfg.DefaultTTL)
}

// PutWithTTL stores value under key with a custom TTL. A TTL of 0 means the
// entry never expires.
func (s *Store) PutWithTTL(key string, value []byte, ttl time.Duration) error {
	if !json.Valid(value) {
		return fmt.Errorf("cache: value for %q is not valid JSON", key)
	}
	if ttl < 0 {
		ttl = 0
	}
	data, err := json.Marshal(Entry{
		Key:     key,
		Created: s.now(),
		TTL:     ttl,
		Data:    value,
	})
	if err != nil {
		return fmt.Errorf("cache: marshal entry for %q: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := atomicWrite(s.entryPath(key), data, s.cfg.Dir); err != nil {
		return fmt.Errorf("cache: write %q: %w", key, err)
	}
	return nil
}

// Stats returns a snapshot of this process's hit/miss counters.
func (s *Store) Stats() CacheStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return CacheStats{Hits: s.hits, Misses: s.misses}
}

// --- internal helpers ---

func (s *Store) entryPath(key string) string {
	return filepath.Join(s.cfg.Dir, entryFileName(key))
}

// entryFileName keeps a readable prefix of key for people poking around the
// cache directory; the hash suffix makes the name unique and path-safe.
func entryFileName(key string) string {
	slug := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		}
		return '-'
	}, key)
	slug = strings.Trim(slug, ".-")
	if len(slug) > 32 {
		slug = slug[:32]
	}
	sum := sha256.Sum256([]byte(key))
	name := hex.EncodeToString(sum[:6])
	if slug != "" {
		name = slug + "-" + name
	}
	return name + entrySuffix
}

func (s *Store) readEntry(path string) (Entry, error) {
	var e Entry
	data, err := os.ReadFile(path)
	if err != nil {
		return e, err
	}
	if err := json.Unmarshal(data, &e); err != nil {
		return e, err
	}
	return e, nil
}

func (s *Store) count(hit bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if hit {
		s.hits++
	} else {
		s.misses++
	}
}

// atomicWrite writes data to path via a temporary file and rename.
func atomicWrite(path string, data []byte, tmpDir string) error {
	tmp, err := os.CreateTemp(tmpDir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}

	success = true
	return nil
}
