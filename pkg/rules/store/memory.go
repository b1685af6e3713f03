package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryBackend implements Backend using an in-memory map.
// All data is lost when the process exits.
type MemoryBackend struct {
	records map[string]*Record
	mu      sync.RWMutex
	closed  bool
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{records: make(map[string]*Record)}
}

// Save persists the rule for a point.
func (m *MemoryBackend) Save(ctx context.Context, rec *Record) error {
	if err := validate(rec); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	stored := *rec
	stored.Rule = rec.Rule.Clone()
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = time.Now()
	}
	m.records[rec.Point] = &stored
	return nil
}

// Load returns the record for a point, or nil.
func (m *MemoryBackend) Load(ctx context.Context, point string) (*Record, error) {
	if point == "" {
		return nil, fmt.Errorf("point cannot be empty")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	rec, ok := m.records[point]
	if !ok {
		return nil, nil
	}
	return copyRecord(rec), nil
}

// List returns all records ordered by point name.
func (m *MemoryBackend) List(ctx context.Context) ([]*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	out := make([]*Record, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, copyRecord(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Point < out[j].Point })
	return out, nil
}

// Delete removes the record for a point.
func (m *MemoryBackend) Delete(ctx context.Context, point string) error {
	if point == "" {
		return fmt.Errorf("point cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	delete(m.records, point)
	return nil
}

// Ping reports an error once the backend is closed.
func (m *MemoryBackend) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return ErrClosed
	}
	return nil
}

// Close marks the backend closed.
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

// Size returns the number of stored records.
func (m *MemoryBackend) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func copyRecord(rec *Record) *Record {
	out := *rec
	out.Rule = rec.Rule.Clone()
	return &out
}
