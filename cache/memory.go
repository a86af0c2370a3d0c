package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Memory is a process-local TTL cache. It exists so the invalidation policy
// has a real backend in tests and single-node deployments; swapping in a
// shared backend only means implementing Cache.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]entry
}

type entry struct {
	value     []byte
	expiresAt time.Time
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]entry)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok || time.Now().After(e.expiresAt) {
		return nil, false
	}
	return e.value, true
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	m.mu.Lock()
	m.entries[key] = entry{value: value, expiresAt: time.Now().Add(ttl)}
	m.mu.Unlock()
}

func (m *Memory) Clear(_ context.Context, pattern string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		for key := range m.entries {
			if strings.HasPrefix(key, prefix) {
				delete(m.entries, key)
			}
		}
		return
	}
	delete(m.entries, pattern)
}
