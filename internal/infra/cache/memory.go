package cache

import (
	"context"
	"sync"
	"time"
)

// memoryStore is the volatile in-process fallback. It honors TTL both lazily
// on read and actively through a janitor, so expiry behaves the same as the
// backing store's.
type memoryStore struct {
	mu      sync.Mutex
	entries map[string]memEntry
}

type memEntry struct {
	value     []byte
	counter   int64
	isCounter bool
	expiresAt time.Time // zero means no expiry
}

func newMemoryStore() *memoryStore {
	return &memoryStore{entries: make(map[string]memEntry)}
}

func (m *memoryStore) set(key string, value []byte, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := memEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	m.entries[key] = e
}

func (m *memoryStore) get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(key)
	if !ok {
		return nil, false
	}
	return append([]byte(nil), e.value...), true
}

func (m *memoryStore) delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
}

func (m *memoryStore) incr(key string, ttl time.Duration) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(key)
	if !ok {
		e = memEntry{isCounter: true}
		if ttl > 0 {
			e.expiresAt = time.Now().Add(ttl)
		}
	}
	e.counter++
	m.entries[key] = e
	return e.counter
}

// live returns the entry if present and not expired, dropping it otherwise.
// Caller must hold mu.
func (m *memoryStore) live(key string) (memEntry, bool) {
	e, ok := m.entries[key]
	if !ok {
		return memEntry{}, false
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		delete(m.entries, key)
		return memEntry{}, false
	}
	return e, true
}

// janitor actively evicts expired entries until ctx is done.
func (m *memoryStore) janitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			m.mu.Lock()
			for k, e := range m.entries {
				if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
					delete(m.entries, k)
				}
			}
			m.mu.Unlock()
		}
	}
}
