package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Memory is an in-process Store. Records are deep-copied on the way in and
// out so callers never share state with the store.
type Memory struct {
	mu      sync.RWMutex
	records map[string][]byte
	now     func() time.Time
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{records: make(map[string][]byte), now: time.Now}
}

func (m *Memory) Create(_ context.Context, r *Record) (string, error) {
	stamp(r, m.now().UTC())
	data, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	m.records[r.ID] = data
	m.mu.Unlock()
	return r.ID, nil
}

func (m *Memory) Get(_ context.Context, id string) (*Record, error) {
	m.mu.RLock()
	data, ok := m.records[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (m *Memory) Update(_ context.Context, r *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[r.ID]; !ok {
		return ErrNotFound
	}
	r.UpdatedAt = m.now().UTC()
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	m.records[r.ID] = data
	return nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.records, id)
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored records.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func (m *Memory) Close() error { return nil }
