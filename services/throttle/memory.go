package throttle

import (
	"context"
	"sync"
)

// MemoryStore keeps state in process. Suitable for a single node.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]State
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]State)}
}

func (m *MemoryStore) Get(_ context.Context, key string) (State, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.entries[key]
	return st, ok, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, st State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = st
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}
