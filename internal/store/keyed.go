// Package store provides in-memory per-identity state for the session layer.
package store

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	updatedAt time.Time
	expiresAt time.Time // zero means no expiry
}

// Keyed is a generic keyed record store with last-write timestamps and
// optional per-entry expiry. Expired entries are only removed by Sweep;
// there is no background timer. All methods are safe for concurrent use.
type Keyed[V any] struct {
	mu      sync.RWMutex
	entries map[string]entry[V]
	now     func() time.Time
}

// NewKeyed creates an empty store.
func NewKeyed[V any]() *Keyed[V] {
	return &Keyed[V]{
		entries: make(map[string]entry[V]),
		now:     time.Now,
	}
}

// Get returns the value for key, if present.
func (s *Keyed[V]) Get(key string) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	return e.value, ok
}

// LastUpdated returns the last-write instant for key, if present.
func (s *Keyed[V]) LastUpdated(key string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	return e.updatedAt, ok
}

// Set stores value under key with no expiry, refreshing the write timestamp.
func (s *Keyed[V]) Set(key string, value V) {
	s.SetExpiring(key, value, time.Time{})
}

// SetExpiring stores value under key, overwriting any prior entry. A zero
// expiresAt means the entry never expires.
func (s *Keyed[V]) SetExpiring(key string, value V, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = entry[V]{
		value:     value,
		updatedAt: s.now(),
		expiresAt: expiresAt,
	}
}

// Update applies fn to the current value for key under the write lock. fn
// receives the value (zero if absent) and whether it was present; it returns
// the new value and whether to keep the entry. A kept entry retains its
// expiry and gets a fresh write timestamp.
func (s *Keyed[V]) Update(key string, fn func(value V, ok bool) (V, bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	next, keep := fn(e.value, ok)
	if !keep {
		delete(s.entries, key)
		return
	}
	s.entries[key] = entry[V]{
		value:     next,
		updatedAt: s.now(),
		expiresAt: e.expiresAt,
	}
}

// Delete removes the entry for key, if any.
func (s *Keyed[V]) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
}

// Sweep removes every entry whose expiry is at or before now and returns the
// number removed. Entries without an expiry are never swept.
func (s *Keyed[V]) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, e := range s.entries {
		if !e.expiresAt.IsZero() && !e.expiresAt.After(now) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of live entries, including not-yet-swept ones.
func (s *Keyed[V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}
