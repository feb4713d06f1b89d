package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore is a simple in-process memo store for local/dev use.
type InMemoryStore struct {
	mu    sync.RWMutex
	memos map[string][]Memo
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{memos: make(map[string][]Memo)}
}

func (s *InMemoryStore) Save(_ context.Context, memo Memo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if memo.ID == "" {
		memo.ID = uuid.NewString()
	}
	if memo.CreatedAt.IsZero() {
		memo.CreatedAt = time.Now().UTC()
	}
	s.memos[memo.UserID] = append(s.memos[memo.UserID], memo)
	return nil
}

func (s *InMemoryStore) Recent(_ context.Context, userID string, limit int) ([]Memo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	arr := s.memos[userID]
	if len(arr) == 0 {
		return nil, nil
	}
	if limit <= 0 || limit > len(arr) {
		limit = len(arr)
	}
	out := make([]Memo, 0, limit)
	for i := len(arr) - limit; i < len(arr); i++ {
		out = append(out, arr[i])
	}
	return out, nil
}

func (s *InMemoryStore) Relevant(_ context.Context, userID, query string, limit int) ([]Memo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return rankByOverlap(s.memos[userID], query, limit), nil
}

func (s *InMemoryStore) Close() error { return nil }
