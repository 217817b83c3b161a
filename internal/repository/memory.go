package repository

import (
	"context"
	"sync"
)

// MemoryStore keeps prefill text for the lifetime of the process. It is used
// when no table is configured.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]string)}
}

func (m *MemoryStore) GetPrefill(_ context.Context, clientID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[clientID], nil
}

func (m *MemoryStore) SavePrefill(_ context.Context, clientID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[clientID] = text
	return nil
}

func (m *MemoryStore) ClearPrefill(_ context.Context, clientID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, clientID)
	return nil
}
