package slots

import (
	"context"
	"maps"
	"sync"
)

// Memory is an in-process Mapping.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Memory struct {
	mu     sync.Mutex
	values map[string]string
	sets   int
}

var _ Mapping = (*Memory)(nil)

// NewMemory creates an empty mapping.
func NewMemory() *Memory {
	return &Memory{values: map[string]string{}}
}

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[key], nil
}

func (m *Memory) Set(_ context.Context, values map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	maps.Copy(m.values, values)
	m.sets++
	return nil
}

// Snapshot returns a copy of every stored pair.
func (m *Memory) Snapshot() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.values)
}

// SetCalls returns how many times Set was called.
func (m *Memory) SetCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sets
}
