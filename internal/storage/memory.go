package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps records in process memory. It backs tests and
// deployments without a configured database.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[string][]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string][]Record)}
}

func (s *MemoryStore) Insert(_ context.Context, table string, rec Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.Fields == nil {
		rec.Fields = make(map[string]any)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[table] = append(s.tables[table], rec)
	return nil
}

func (s *MemoryStore) Query(_ context.Context, table string, f Filter) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	for _, rec := range s.tables[table] {
		if !f.matches(rec) {
			continue
		}
		out = append(out, rec)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
