package store

import (
	"context"
	"sync"

	"collabtext/internal/crdt"
)

// Memory is an in-process Store used in tests and as a stand-in when no
// backend is configured.
type Memory struct {
	mu    sync.RWMutex
	snaps map[string][]crdt.Char
}

func NewMemory() *Memory {
	return &Memory{snaps: make(map[string][]crdt.Char)}
}

func (m *Memory) SaveSnapshot(_ context.Context, docID string, chars []crdt.Char) error {
	cp := make([]crdt.Char, len(chars))
	copy(cp, chars)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[docID] = cp
	return nil
}

func (m *Memory) LoadSnapshot(_ context.Context, docID string) ([]crdt.Char, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	chars, ok := m.snaps[docID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := make([]crdt.Char, len(chars))
	copy(cp, chars)
	return cp, nil
}

func (m *Memory) Close() error { return nil }
