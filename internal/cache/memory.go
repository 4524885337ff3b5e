package cache

import (
	"context"
	"sync"

	"pilot/internal/types"
)

// Memory is an in-process backend. Zero value is not usable; call
// NewMemory.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]types.Instruction
}

// NewMemory creates an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]types.Instruction)}
}

// Get returns the instruction for key, or ErrMiss.
func (m *Memory) Get(_ context.Context, key string) (types.Instruction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	in, ok := m.entries[key]
	if !ok {
		return types.Instruction{}, ErrMiss
	}
	return in, nil
}

// Put stores the instruction under key, last-write-wins.
func (m *Memory) Put(_ context.Context, key string, in types.Instruction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = in
	return nil
}

// Invalidate removes key; missing keys are a no-op.
func (m *Memory) Invalidate(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// Clear drops every entry.
func (m *Memory) Clear(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.entries)
	m.entries = make(map[string]types.Instruction)
	return n, nil
}

// Count reports the number of entries.
func (m *Memory) Count(_ context.Context) (int, error) {
	return m.Len(), nil
}

// Len reports the number of entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Close is a no-op for the in-process backend.
func (m *Memory) Close() error { return nil }
