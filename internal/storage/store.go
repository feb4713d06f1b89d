package storage

import (
	"context"
	"strings"
	"time"
)

// Logical tables used by the counseling service.
const (
	TableSupportRequests = "support_requests"
	TableTranscripts     = "transcripts"
	TableEvaluations     = "evaluations"
)

// Record is one append-only archive row. Fields carries the
// table-specific payload; records are never mutated after insert —
// state changes are recorded as superseding rows.
type Record struct {
	ID        string         `json:"id"`
	ChatID    string         `json:"chat_id"`
	Fields    map[string]any `json:"fields"`
	CreatedAt time.Time      `json:"created_at"`
}

// Filter selects records on query. Zero values match everything.
type Filter struct {
	ChatID string
	Equals map[string]any
	Limit  int
}

// Store is the persistence collaborator: append-only insert plus
// filtered query. The orchestration core depends on nothing else.
type Store interface {
	Insert(ctx context.Context, table string, rec Record) error
	Query(ctx context.Context, table string, f Filter) ([]Record, error)
	Close() error
}

// Config selects the backing driver.
type Config struct {
	DatabaseURL     string
	SupabaseURL     string
	SupabaseAnonKey string
}

// New creates a supabase-backed store when configured, then postgres,
// otherwise in-memory.
func New(ctx context.Context, cfg Config) (Store, error) {
	if strings.TrimSpace(cfg.SupabaseURL) != "" {
		return NewSupabaseStore(cfg.SupabaseURL, cfg.SupabaseAnonKey)
	}
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		return NewPostgresStore(ctx, cfg.DatabaseURL)
	}
	return NewMemoryStore(), nil
}

func (f Filter) matches(rec Record) bool {
	if f.ChatID != "" && rec.ChatID != f.ChatID {
		return false
	}
	for k, want := range f.Equals {
		got, ok := rec.Fields[k]
		if !ok || got != want {
			return false
		}
	}
	return true
}
