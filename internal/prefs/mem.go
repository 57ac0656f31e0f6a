package prefs

import (
	"sync"
)

// MemStore is an in-memory Store for tests.
type MemStore struct {
	mu   sync.Mutex
	data map[string]map[string]string

	// Puts counts successful PutStrings calls.
	Puts int

	// GetError and PutError, if set, are returned by the matching method.
	GetError error
	PutError error
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{data: make(map[string]map[string]string)}
}

// GetString returns the stored value or def.
func (m *MemStore) GetString(ns, key, def string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetError != nil {
		return def, m.GetError
	}
	if v, ok := m.data[ns][key]; ok {
		return v, nil
	}
	return def, nil
}

// PutStrings stores every pair.
func (m *MemStore) PutStrings(ns string, kv map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PutError != nil {
		return m.PutError
	}
	if m.data[ns] == nil {
		m.data[ns] = make(map[string]string)
	}
	for k, v := range kv {
		m.data[ns][k] = v
	}
	m.Puts++
	return nil
}

// Snapshot returns a deep copy of the namespace.
func (m *MemStore) Snapshot(ns string) map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.data[ns]))
	for k, v := range m.data[ns] {
		out[k] = v
	}
	return out
}

// Close is a no-op.
func (m *MemStore) Close() error { return nil }
