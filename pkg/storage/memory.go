package storage

import (
	"context"
	"sync"
)

// Memory is an in-process Slot, used in tests and when no database is configured.
type Memory struct {
	mu    sync.Mutex
	slots map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{slots: make(map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, name string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.slots[name]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *Memory) Put(_ context.Context, name string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.slots == nil {
		m.slots = make(map[string][]byte)
	}
	m.slots[name] = append([]byte(nil), value...)
	return nil
}
