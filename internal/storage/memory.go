package storage

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryArea keeps values in a map. Used for tests and for contexts that
// only need ephemeral state.
type MemoryArea struct {
	mu     sync.RWMutex
	values map[string]json.RawMessage
}

func NewMemoryArea() *MemoryArea {
	return &MemoryArea{values: make(map[string]json.RawMessage)}
}

func (m *MemoryArea) Get(_ context.Context, key string) (json.RawMessage, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryArea) Set(_ context.Context, key string, value json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = append(json.RawMessage(nil), value...)
	return nil
}

func (m *MemoryArea) GetAll(context.Context) (map[string]json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]json.RawMessage, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out, nil
}

func (m *MemoryArea) Close() error { return nil }
