package tokenstore

import (
	"maps"
	"sync"
)

// Values is the durable key/value document.
type Values map[string]string

// Backend is durable key/value storage for the token document.
// Save replaces the whole document atomically.
type Backend interface {
	// Load returns the stored document; a missing document yields empty Values.
	Load() (Values, error)
	// Save replaces the stored document.
	Save(Values) error
	// Delete removes the document. Deleting a missing document is not an error.
	Delete() error
}

// MemoryBackend keeps the document in memory. Useful for tests and embedding.
type MemoryBackend struct {
	mu   sync.Mutex
	vals Values
}

// NewMemoryBackend returns a MemoryBackend seeded with optional initial values.
func NewMemoryBackend(initial ...Values) *MemoryBackend {
	m := &MemoryBackend{vals: Values{}}
	for _, v := range initial {
		maps.Copy(m.vals, v)
	}
	return m
}

func (m *MemoryBackend) Load() (Values, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.vals), nil
}

func (m *MemoryBackend) Save(v Values) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vals = maps.Clone(v)
	return nil
}

func (m *MemoryBackend) Delete() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vals = Values{}
	return nil
}
