package record

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps records for the life of the process.
type MemoryStore struct {
	mu   sync.RWMutex
	byID map[string]*MatchRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]*MatchRecord)}
}

func (m *MemoryStore) Save(ctx context.Context, rec *MatchRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec == nil {
		return ErrDuplicateRecord
	}
	ensureID(rec)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byID[rec.ID]; exists {
		return ErrDuplicateRecord
	}
	cp := clone(rec)
	m.byID[rec.ID] = cp
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*MatchRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(rec), nil
}

func (m *MemoryStore) Recent(ctx context.Context, limit int) ([]*MatchRecord, error) {
	m.mu.RLock()
	items := make([]*MatchRecord, 0, len(m.byID))
	for _, rec := range m.byID {
		items = append(items, clone(rec))
	}
	m.mu.RUnlock()

	// EndedAt desc, then ID for a stable order
	sort.Slice(items, func(i, j int) bool {
		if !items[i].EndedAt.Equal(items[j].EndedAt) {
			return items[i].EndedAt.After(items[j].EndedAt)
		}
		return items[i].ID > items[j].ID
	})
	if limit = clampLimit(limit); len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (m *MemoryStore) Stats(ctx context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var s Stats
	for _, rec := range m.byID {
		s.add(rec.Result)
	}
	return s, nil
}

func (m *MemoryStore) Close() error { return nil }

func clone(rec *MatchRecord) *MatchRecord {
	cp := *rec
	cp.MovesUCI = append([]string(nil), rec.MovesUCI...)
	cp.MovesSAN = append([]string(nil), rec.MovesSAN...)
	return &cp
}
