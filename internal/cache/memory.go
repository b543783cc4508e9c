package cache

import (
	"container/list"
	"context"
	"strings"
	"sync"
	"time"
)

type memoryEntry struct {
	key       string
	value     string
	expiresAt time.Time // zero means no expiry
}

// Memory is the local tier: a mutex-guarded map with a maximum item count,
// FIFO eviction (oldest-inserted key dropped first) and a periodic sweep of
// expired entries.
type Memory struct {
	mu       sync.Mutex
	entries  map[string]*list.Element
	order    *list.List // front = oldest inserted
	maxItems int

	done chan struct{}
	once sync.Once
}

func NewMemory(maxItems int, sweepInterval time.Duration) *Memory {
	if maxItems <= 0 {
		maxItems = 5000
	}
	if sweepInterval <= 0 {
		sweepInterval = 30 * time.Second
	}
	m := &Memory{
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		maxItems: maxItems,
		done:     make(chan struct{}),
	}
	go m.sweep(sweepInterval)
	return m
}

func (m *Memory) Get(_ context.Context, key string) (string, time.Duration, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	elem, ok := m.entries[key]
	if !ok {
		return "", 0, false, nil
	}
	entry := elem.Value.(*memoryEntry)
	if entry.expiresAt.IsZero() {
		return entry.value, 0, true, nil
	}
	remaining := time.Until(entry.expiresAt)
	if remaining <= 0 {
		m.removeLocked(elem)
		return "", 0, false, nil
	}
	return entry.value, remaining, true, nil
}

func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if elem, ok := m.entries[key]; ok {
		entry := elem.Value.(*memoryEntry)
		entry.value = value
		entry.expiresAt = expiresAt
		return nil
	}

	if m.order.Len() >= m.maxItems {
		if oldest := m.order.Front(); oldest != nil {
			m.removeLocked(oldest)
		}
	}

	elem := m.order.PushBack(&memoryEntry{key: key, value: value, expiresAt: expiresAt})
	m.entries[key] = elem
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if elem, ok := m.entries[key]; ok {
		m.removeLocked(elem)
	}
	return nil
}

func (m *Memory) Clear(_ context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for elem := m.order.Front(); elem != nil; {
		next := elem.Next()
		entry := elem.Value.(*memoryEntry)
		if prefix == "" || strings.HasPrefix(entry.key, prefix) {
			m.removeLocked(elem)
		}
		elem = next
	}
	return nil
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}

// Close stops the sweep goroutine.
func (m *Memory) Close() {
	m.once.Do(func() { close(m.done) })
}

func (m *Memory) removeLocked(elem *list.Element) {
	entry := elem.Value.(*memoryEntry)
	m.order.Remove(elem)
	delete(m.entries, entry.key)
}

func (m *Memory) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			now := time.Now()
			m.mu.Lock()
			for elem := m.order.Front(); elem != nil; {
				next := elem.Next()
				entry := elem.Value.(*memoryEntry)
				if !entry.expiresAt.IsZero() && !now.Before(entry.expiresAt) {
					m.removeLocked(elem)
				}
				elem = next
			}
			m.mu.Unlock()
		}
	}
}
