// Package cache provides an in-memory TTL cache for search results and
// other derived data that is expensive to recompute.
package cache

import (
	"strings"
	"sync"
	"time"
)

// DefaultTTL is used when Set is called with a non-positive TTL.
const DefaultTTL = 5 * time.Minute

// Cache is a string-keyed cache with per-entry expiry.
type Cache[V any] interface {
	// Get returns the value for key, or false if absent or expired.
	Get(key string) (V, bool)
	// Set stores value under key. A non-positive ttl uses the cache default.
	Set(key string, value V, ttl time.Duration)
	// Clear removes entries whose key contains pattern. An empty pattern
	// removes everything.
	Clear(pattern string)
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Memory is a Cache backed by a mutex-guarded map. Expired entries are
// evicted lazily on read.
type Memory[V any] struct {
	mu         sync.RWMutex
	entries    map[string]entry[V]
	defaultTTL time.Duration
	now        func() time.Time
}

// Option configures a Memory cache.
type Option[V any] func(*Memory[V])

// WithClock overrides the time source. Used by tests.
func WithClock[V any](now func() time.Time) Option[V] {
	return func(m *Memory[V]) {
		m.now = now
	}
}

// NewMemory creates a Memory cache. A non-positive defaultTTL falls back
// to DefaultTTL.
func NewMemory[V any](defaultTTL time.Duration, opts ...Option[V]) *Memory[V] {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	m := &Memory[V]{
		entries:    make(map[string]entry[V]),
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns the cached value for key. Expired entries are removed and
// reported as absent.
func (m *Memory[V]) Get(key string) (V, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}
	if m.now().After(e.expiresAt) {
		m.mu.Lock()
		// Re-check under the write lock; another goroutine may have
		// replaced the entry since we released the read lock.
		if cur, ok := m.entries[key]; ok && m.now().After(cur.expiresAt) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return zero, false
	}
	return e.value, true
}

// Set stores value under key until now+ttl.
func (m *Memory[V]) Set(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = m.defaultTTL
	}
	m.mu.Lock()
	m.entries[key] = entry[V]{value: value, expiresAt: m.now().Add(ttl)}
	m.mu.Unlock()
}

// Clear removes entries whose key contains pattern, or all entries when
// pattern is empty.
func (m *Memory[V]) Clear(pattern string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if pattern == "" {
		m.entries = make(map[string]entry[V])
		return
	}
	for key := range m.entries {
		if strings.Contains(key, pattern) {
			delete(m.entries, key)
		}
	}
}

// Len returns the number of stored entries, including any not yet evicted.
func (m *Memory[V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
