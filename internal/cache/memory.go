package cache

import (
	"container/list"
	"sync"
	"time"
)

// Memory is an in-process Store guarded by a single mutex
type Memory struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration

	// order holds *memoryEntry from oldest to newest insertion
	order   *list.List
	entries map[string]*list.Element

	hits   int64
	misses int64

	now func() time.Time
}

type memoryEntry struct {
	key        string
	value      string
	insertedAt time.Time
}

// NewMemory creates a Memory store. A capacity of zero or less stores nothing.
func NewMemory(capacity int, ttl time.Duration) *Memory {
	return &Memory{
		capacity: capacity,
		ttl:      ttl,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
		now:      time.Now,
	}
}

// Get returns the cached value if present and not expired
func (m *Memory) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.entries[key]
	if !ok {
		m.misses++
		return "", false, nil
	}

	entry := el.Value.(*memoryEntry)
	if expired(entry.insertedAt, m.now(), m.ttl) {
		m.remove(el)
		m.misses++
		return "", false, nil
	}

	m.hits++
	return entry.value, true, nil
}

// Insert stores value under key
func (m *Memory) Insert(key, value string) error {
	if m.capacity <= 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()

	if el, ok := m.entries[key]; ok {
		entry := el.Value.(*memoryEntry)
		entry.value = value
		entry.insertedAt = now
		m.order.MoveToBack(el)
		return nil
	}

	m.purgeExpired(now)
	for m.order.Len() >= m.capacity {
		m.remove(m.order.Front())
	}

	m.entries[key] = m.order.PushBack(&memoryEntry{
		key:        key,
		value:      value,
		insertedAt: now,
	})
	return nil
}

// Clear removes all entries
func (m *Memory) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.order.Init()
	m.entries = make(map[string]*list.Element)
	return nil
}

// ClearExpired drops expired entries and reports how many were removed
func (m *Memory) ClearExpired() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	before := m.order.Len()
	m.purgeExpired(m.now())
	return int64(before - m.order.Len()), nil
}

// Len returns the number of live entries
func (m *Memory) Len() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.purgeExpired(m.now())
	return m.order.Len(), nil
}

// IsEmpty reports whether the cache holds no live entries
func (m *Memory) IsEmpty() (bool, error) {
	n, err := m.Len()
	return n == 0, err
}

// Stats returns size and hit counters
func (m *Memory) Stats() (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.purgeExpired(m.now())
	return Stats{
		Backend:  "memory",
		Entries:  m.order.Len(),
		Capacity: m.capacity,
		TTL:      m.ttl,
		Hits:     m.hits,
		Misses:   m.misses,
	}, nil
}

// Close is a no-op for the in-memory store
func (m *Memory) Close() error {
	return nil
}

// purgeExpired drops expired entries. Insertion times increase from front to
// back, so it stops at the first live entry.
func (m *Memory) purgeExpired(now time.Time) {
	if m.ttl <= 0 {
		return
	}
	for el := m.order.Front(); el != nil; el = m.order.Front() {
		if !expired(el.Value.(*memoryEntry).insertedAt, now, m.ttl) {
			return
		}
		m.remove(el)
	}
}

func (m *Memory) remove(el *list.Element) {
	entry := m.order.Remove(el).(*memoryEntry)
	delete(m.entries, entry.key)
}
