package cache

import (
	"strings"
	"sync"
	"time"
)

// memoryStore is a map-backed store. With maxSize > 0 it keeps keys in
// insertion order and evicts the head once the ceiling is exceeded;
// overwriting a key renews its position, so the head always holds the oldest
// CreatedAt.
type memoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
	order   []string
	maxSize int
	onEvict func(key string)
}

func newMemoryStore(maxSize int, onEvict func(key string)) *memoryStore {
	return &memoryStore{
		entries: make(map[string]Entry),
		maxSize: maxSize,
		onEvict: onEvict,
	}
}

func (m *memoryStore) get(key string) (Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[key]
	return entry, ok
}

func (m *memoryStore) set(entry Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, exists := m.entries[entry.Key]
	m.entries[entry.Key] = entry

	if m.maxSize <= 0 {
		return
	}

	if exists {
		m.removeFromOrder(entry.Key)
	}
	m.order = append(m.order, entry.Key)

	for len(m.entries) > m.maxSize && len(m.order) > 0 {
		oldest := m.order[0]
		m.order = m.order[1:]
		delete(m.entries, oldest)
		if m.onEvict != nil {
			m.onEvict(oldest)
		}
	}
}

func (m *memoryStore) delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[key]; !ok {
		return
	}
	delete(m.entries, key)
	if m.maxSize > 0 {
		m.removeFromOrder(key)
	}
}

func (m *memoryStore) clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]Entry)
	m.order = nil
}

func (m *memoryStore) size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// sweep removes expired entries and returns how many were dropped.
func (m *memoryStore) sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, entry := range m.entries {
		if entry.Expired(now) {
			delete(m.entries, key)
			if m.maxSize > 0 {
				m.removeFromOrder(key)
			}
			removed++
		}
	}
	return removed
}

// deletePrefix removes every key starting with prefix and returns the count.
func (m *memoryStore) deletePrefix(prefix string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			delete(m.entries, key)
			m.removeFromOrder(key)
			removed++
		}
	}
	return removed
}

// removeFromOrder drops one occurrence of key. Callers hold the lock.
func (m *memoryStore) removeFromOrder(key string) {
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			return
		}
	}
}
