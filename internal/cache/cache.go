// Package cache provides a bounded in-memory TTL cache shared by the
// acquisition pipelines.
package cache

import (
	"sync"
	"time"

	"github.com/jmhodges/clock"
)

// DefaultMaxEntries is the cap on live entries. The bound is what makes the
// lazy expiry strategy acceptable: memory is limited even if nothing is read.
const DefaultMaxEntries = 200

type entry struct {
	value      interface{}
	insertedAt time.Time
	expiresAt  time.Time
}

// Store is a key/value cache with per-entry TTL and insertion-order eviction.
//
// Expiry is lazy: an expired entry is removed when it is next read, there is
// no background sweep. When the store is full, Set evicts exactly one entry,
// the one inserted earliest. This is FIFO eviction, not LRU: reading an entry
// does not refresh its position. A key removed by expiry and inserted again
// counts as a fresh insertion and goes to the back of the order.
type Store struct {
	clk clock.Clock

	mu      sync.Mutex
	max     int
	entries map[string]entry
	order   []string // keys in insertion order, oldest first
}

// New creates a Store holding at most maxEntries live entries.
func New(maxEntries int) *Store {
	return NewWithClock(maxEntries, clock.New())
}

// NewWithClock creates a Store with an injected clock. Tests use a fake clock
// to exercise expiry without sleeping.
func NewWithClock(maxEntries int, clk clock.Clock) *Store {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Store{
		clk:     clk,
		max:     maxEntries,
		entries: make(map[string]entry, maxEntries),
		order:   make([]string, 0, maxEntries),
	}
}

// Get returns the value for key, or (nil, false) if the key is unknown or its
// TTL has elapsed. An expired entry is removed as a side effect of the read.
func (s *Store) Get(key string) (interface{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if s.clk.Now().After(e.expiresAt) {
		s.removeLocked(key)
		return nil, false
	}
	return e.value, true
}

// Set stores value under key with the given TTL. If the store is full and key
// is not already present, the oldest-inserted entry is evicted first.
func (s *Store) Set(key string, value interface{}, ttl time.Duration) {
	now := s.clk.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.entries[key]; ok {
		// Overwrite in place; the key keeps its original insertion slot.
		existing.value = value
		existing.expiresAt = now.Add(ttl)
		s.entries[key] = existing
		return
	}

	if len(s.entries) >= s.max {
		s.evictOldest()
	}

	s.entries[key] = entry{
		value:      value,
		insertedAt: now,
		expiresAt:  now.Add(ttl),
	}
	s.order = append(s.order, key)
}

// Len returns the number of live entries, counting entries whose TTL has
// elapsed but which have not been read yet.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// evictOldest removes the earliest-inserted live entry. The order list and
// the entry map are kept in lockstep, so the front slot is always live.
// Caller must hold s.mu.
func (s *Store) evictOldest() {
	if len(s.order) == 0 {
		return
	}
	key := s.order[0]
	s.order = s.order[1:]
	delete(s.entries, key)
}

// removeLocked deletes an entry and its order slot. Dropping the slot here is
// what keeps eviction honest: a key that expires and comes back is a new
// insertion, not the oldest one. Caller must hold s.mu.
func (s *Store) removeLocked(key string) {
	delete(s.entries, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}
