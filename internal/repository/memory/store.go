package memory

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// ttlMap is a mutex-guarded map whose entries expire lazily on read
// and are swept on write once the map grows past sweepAt.
type ttlMap[V any] struct {
	mu      sync.Mutex
	items   map[string]entry[V]
	now     func() time.Time
	sweepAt int
}

const minSweepAt = 1024

func newTTLMap[V any]() *ttlMap[V] {
	return &ttlMap[V]{
		items:   make(map[string]entry[V]),
		now:     time.Now,
		sweepAt: minSweepAt,
	}
}

func (m *ttlMap[V]) get(key string) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	if !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		delete(m.items, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

func (m *ttlMap[V]) set(key string, value V, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var exp time.Time
	if ttl > 0 {
		exp = m.now().Add(ttl)
	}
	m.items[key] = entry[V]{value: value, expiresAt: exp}

	if len(m.items) >= m.sweepAt {
		m.sweepLocked()
	}
}

func (m *ttlMap[V]) delete(key string) {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
}

func (m *ttlMap[V]) sweepLocked() {
	now := m.now()
	for k, e := range m.items {
		if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
			delete(m.items, k)
		}
	}
	m.sweepAt = max(minSweepAt, len(m.items)*2)
}
