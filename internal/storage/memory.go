package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryRegistry is an in-process LeafRegistry.
type MemoryRegistry struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{records: make(map[string]Record)}
}

func (m *MemoryRegistry) Register(ctx context.Context, rec Record) error {
	rec = normalize(rec)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.Name] = clone(rec)
	return nil
}

func (m *MemoryRegistry) Lookup(ctx context.Context, leafID string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if rec, ok := m.records[NameFor(leafID)]; ok {
		return clone(rec), nil
	}
	return Record{}, fmt.Errorf("leaf %q: %w", leafID, ErrNotFound)
}

func (m *MemoryRegistry) GetByName(ctx context.Context, name string) (Record, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[name]
	if !ok {
		return Record{}, false, nil
	}
	return clone(rec), true, nil
}

func (m *MemoryRegistry) LookupByPerspective(ctx context.Context, perspectiveID int) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Record{}
	for _, rec := range m.records {
		if rec.PerspectiveID == perspectiveID {
			out = append(out, clone(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryRegistry) ReplacePerspective(ctx context.Context, perspectiveID int, recs []Record) error {
	next := make([]Record, 0, len(recs))
	for _, rec := range recs {
		rec = normalize(rec)
		if rec.PerspectiveID != perspectiveID {
			return fmt.Errorf("record %s belongs to perspective %d, not %d", rec.Name, rec.PerspectiveID, perspectiveID)
		}
		next = append(next, clone(rec))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for name, rec := range m.records {
		if rec.PerspectiveID == perspectiveID {
			delete(m.records, name)
		}
	}
	for _, rec := range next {
		m.records[rec.Name] = rec
	}
	return nil
}

func (m *MemoryRegistry) Close() error { return nil }

func clone(rec Record) Record {
	if rec.Payload != nil {
		rec.Payload = append([]byte(nil), rec.Payload...)
	}
	return rec
}
