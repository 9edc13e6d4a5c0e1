package cache

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func newTestStore(t *testing.T, opts ...func(*StoreConfig)) *Store {
	t.Helper()
	cfg := StoreConfig{
		Dir:        t.TempDir(),
		DefaultTTL: time.Hour,
	}
	for _, o := range opts {
		o(&cfg)
	}
	s, err := NewStore(cfg)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

// fakeClock lets tests move time without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func withClock(s *Store) *fakeClock {
	c := &fakeClock{now: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}
	s.now = c.Now
	return c
}

// --- Basic Put/Get ---

func TestPutGetRoundTrip(t *testing.T) {
	s := newTestStore(t)

	data := []byte(`{"name":"test","count":42}`)
	if err := s.Put("mykey", data); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok := s.Get("mykey")
	if !ok {
		t.Fatal("expected hit")
	}
	if string(got) != string(data) {
		t.Errorf("round-trip mismatch: got %q, want %q", got, data)
	}
}

func TestPutRejectsNonJSON(t *testing.T) {
	s := newTestStore(t)
	if err := s.Put("bad", []byte("not json")); err == nil {
		t.Error("expected error for non-JSON value")
	}
}

func TestGetMissingKeyReturnsFalse(t *testing.T) {
	s := newTestStore(t)

	if _, ok := s.Get("nonexistent"); ok {
		t.Error("expected miss for nonexistent key")
	}
}

func TestNewStoreRequiresDir(t *testing.T) {
	if _, err := NewStore(StoreConfig{}); err == nil {
		t.Error("expected error for empty Dir")
	}
}

func TestNewStoreCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "cache")
	s, err := NewStore(StoreConfig{Dir: dir})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("cache dir not created: %v", err)
	}
	if s.Dir() != dir {
		t.Errorf("Dir() = %q", s.Dir())
	}
}

// --- TTL ---

func TestGetReturnsFalseForExpiredEntry(t *testing.T) {
	s := newTestStore(t, func(cfg *StoreConfig) {
		cfg.DefaultTTL = time.Minute
	})
	clock := withClock(s)

	if err := s.Put("expiring", []byte(`"data"`)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	clock.Advance(59 * time.Second)
	if _, ok := s.Get("expiring"); !ok {
		t.Fatal("expected hit before TTL")
	}

	clock.Advance(2 * time.Second)
	if _, ok := s.Get("expiring"); ok {
		t.Error("expected miss for expired entry")
	}
	if _, err := os.Stat(s.entryPath("expiring")); !os.IsNotExist(err) {
		t.Error("expired entry file should be removed on read")
	}
}

func TestPutWithTTLRespectsCustomTTL(t *testing.T) {
	s := newTestStore(t)
	clock := withClock(s)

	if err := s.PutWithTTL("short", []byte(`1`), time.Second); err != nil {
		t.Fatalf("PutWithTTL: %v", err)
	}
	if _, ok := s.Get("short"); !ok {
		t.Fatal("expected hit before TTL expires")
	}
	clock.Advance(2 * time.Second)
	if _, ok := s.Get("short"); ok {
		t.Error("expected miss after custom TTL expires")
	}
}

func TestZeroTTLNeverExpires(t *testing.T) {
	s := newTestStore(t, func(cfg *StoreConfig) {
		cfg.DefaultTTL = 0
	})
	clock := withClock(s)

	if err := s.Put("forever", []byte(`"immortal"`)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	clock.Advance(24 * 365 * time.Hour)

	got, ok := s.Get("forever")
	if !ok {
		t.Fatal("expected hit for zero-TTL entry")
	}
	if string(got) != `"immortal"` {
		t.Errorf("got %q", got)
	}
}

// --- Cross-process visibility ---

func TestSecondStoreSeesWrites(t *testing.T) {
	dir := t.TempDir()
	writer, _ := NewStore(StoreConfig{Dir: dir, DefaultTTL: time.Hour})
	reader, _ := NewStore(StoreConfig{Dir: dir, DefaultTTL: time.Hour})

	_ = writer.Put("state", []byte(`{"v":1}`))
	if got, ok := reader.Get("state"); !ok || string(got) != `{"v":1}` {
		t.Fatalf("reader Get = %q, %v", got, ok)
	}
	_ = writer.Put("state", []byte(`{"v":2}`))
	if got, _ := reader.Get("state"); string(got) != `{"v":2}` {
		t.Errorf("reader saw stale value %q", got)
	}
}

func TestAtomicWriteLeavesNoTempFiles(t *testing.T) {
	s := newTestStore(t)
	if err := s.Put("atomic", []byte(`{"complete":"yes"}`)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	entries, err := os.ReadDir(s.Dir())
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
	if len(entries) != 1 {
		t.Errorf("want exactly one entry file, got %d", len(entries))
	}
}

func TestCorruptEntryIsMiss(t *testing.T) {
	s := newTestStore(t)
	if err := os.WriteFile(s.entryPath("broken"), []byte("{"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.Get("broken"); ok {
		t.Error("corrupt entry should be a miss")
	}
}

// --- Stats ---

func TestStatsHitMissCounting(t *testing.T) {
	s := newTestStore(t)
	_ = s.Put("x", []byte(`1`))
	s.Get("x")
	s.Get("x")
	s.Get("y")

	st := s.Stats()
	if st.Hits != 2 || st.Misses != 1 {
		t.Errorf("Stats = %+v, want 2 hits 1 miss", st)
	}
}

// --- Typed Access ---

func TestTypedRoundTripWithStruct(t *testing.T) {
	s := newTestStore(t)

	type Reading struct {
		SGV   float64 `json:"sgv"`
		Trend string  `json:"trend"`
	}
	original := Reading{SGV: 123, Trend: "flat"}

	if err := PutTypedWithTTL(s, "reading", original, time.Hour); err != nil {
		t.Fatalf("PutTypedWithTTL: %v", err)
	}
	got, _, ok := GetTypedWithAge[Reading](s, "reading")
	if !ok {
		t.Fatal("expected hit")
	}
	if got != original {
		t.Errorf("typed round-trip mismatch: got %+v, want %+v", got, original)
	}
}

func TestTypedWrongShapeReturnsFalse(t *testing.T) {
	s := newTestStore(t)
	_ = s.Put("num", []byte(`42`))

	if _, _, ok := GetTypedWithAge[struct{ A string }](s, "num"); ok {
		t.Error("expected false when JSON does not fit the type")
	}
}

func TestPutTypedWithNonSerializableReturnsError(t *testing.T) {
	s := newTestStore(t)
	if err := PutTypedWithTTL(s, "nan", math.NaN(), time.Hour); err == nil {
		t.Error("expected error for NaN")
	}
}

func TestGetTypedWithAge(t *testing.T) {
	s := newTestStore(t)
	clock := withClock(s)

	_ = PutTypedWithTTL(s, "aged", "v", time.Hour)
	clock.Advance(90 * time.Second)

	v, age, ok := GetTypedWithAge[string](s, "aged")
	if !ok || v != "v" {
		t.Fatalf("GetTypedWithAge = %q, %v", v, ok)
	}
	if age != 90*time.Second {
		t.Errorf("age = %v, want 90s", age)
	}
}

// --- Concurrency ---

func TestConcurrentAccess(t *testing.T) {
	s := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				key := fmt.Sprintf("k%d", j%3)
				_ = s.Put(key, []byte(fmt.Sprintf(`{"w":%d,"j":%d}`, n, j)))
				s.Get(key)
			}
		}(i)
	}
	wg.Wait()

	for j := 0; j < 3; j++ {
		if _, ok := s.Get(fmt.Sprintf("k%d", j)); !ok {
			t.Errorf("k%d missing after concurrent writes", j)
		}
	}
}

// --- File names ---

func TestEntryFileName(t *testing.T) {
	name := entryFileName("glucose.state")
	if !strings.HasPrefix(name, "glucose.state-") || !strings.HasSuffix(name, entrySuffix) {
		t.Errorf("entryFileName(glucose.state) = %q", name)
	}
	if entryFileName("glucose.state") != name {
		t.Error("file name not deterministic")
	}
	if entryFileName("Glucose.State") == name {
		t.Error("keys differing only in case must not collide")
	}
}

func TestEntryFileNameIsPathSafe(t *testing.T) {
	keys := []string{
		"key with spaces",
		"key/with/slashes",
		"../../../etc/passwd",
		"",
		strings.Repeat("x", 10000),
	}

	seen := make(map[string]string)
	for _, key := range keys {
		name := entryFileName(key)
		if strings.ContainsAny(name, `/\ `) || strings.HasPrefix(name, ".") {
			t.Errorf("file name for %q is not path-safe: %q", key, name)
		}
		if len(name) > 64 {
			t.Errorf("file name for %d-byte key is %d bytes long", len(key), len(name))
		}
		if prev, dup := seen[name]; dup {
			t.Errorf("collision: %q and %q both map to %q", prev, key, name)
		}
		seen[name] = key
	}
}
