// Package storage provides durable key-value slots that hold the serialized
// account collection between runs.
package storage

import (
	"context"
	"errors"
	"sync"
)

// ErrEmptyKey is returned when a slot operation is called without a key.
var ErrEmptyKey = errors.New("storage: empty slot key")

// Slot is a named string key-value store supplied by the host.
// Get reports ok=false when nothing has been stored under key yet.
type Slot interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
}

// MemorySlot keeps values in process memory.
type MemorySlot struct {
	mu     sync.Mutex
	values map[string]string
}

// NewMemorySlot returns an empty MemorySlot.
func NewMemorySlot() *MemorySlot {
	return &MemorySlot{values: make(map[string]string)}
}

func (m *MemorySlot) Get(_ context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, ErrEmptyKey
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemorySlot) Set(_ context.Context, key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values == nil {
		m.values = make(map[string]string)
	}
	m.values[key] = value
	return nil
}
