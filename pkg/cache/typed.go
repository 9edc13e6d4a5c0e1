package cache

import (
	"encoding/json"
	"fmt"
	"time"
)

// GetTypedWithAge deserializes a cached JSON value into T and reports how
// old the entry is, so readers can tell a fresh daemon write from one left
// by a dead daemon. A missing or expired key, or data that does not fit T,
// reports false.
func GetTypedWithAge[T any](s *Store, key string) (T, time.Duration, bool) {
	var zero T
	e, ok := s.GetEntry(key)
	if !ok {
		return zero, 0, false
	}
	var v T
	if err := json.Unmarshal(e.Data, &v); err != nil {
		return zero, 0, false
	}
	return v, e.Age(s.now()), true
}

// PutTypedWithTTL serializes value as JSON and stores it with a custom TTL.
func PutTypedWithTTL[T any](s *Store, key string, value T, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: marshal typed value for %q: %w", key, err)
	}
	return s.PutWithTTL(key, data, ttl)
}
