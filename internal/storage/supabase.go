package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/supabase-community/supabase-go"
)

// SupabaseStore talks to a Supabase project over PostgREST. Each
// logical table maps to a physical table whose columns are the record
// fields plus id, chat_id and created_at.
type SupabaseStore struct {
	client *supabase.Client
}

func NewSupabaseStore(url, anonKey string) (*SupabaseStore, error) {
	client, err := supabase.NewClient(url, anonKey, nil)
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}
	return &SupabaseStore{client: client}, nil
}

func (s *SupabaseStore) Insert(_ context.Context, table string, rec Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	row := make(map[string]any, len(rec.Fields)+3)
	for k, v := range rec.Fields {
		row[k] = v
	}
	row["id"] = rec.ID
	row["chat_id"] = rec.ChatID
	row["created_at"] = rec.CreatedAt.Format(time.RFC3339)

	_, _, err := s.client.From(table).Insert(row, false, "", "", "").Execute()
	if err != nil {
		return fmt.Errorf("insert into %s: %w", table, err)
	}
	return nil
}

func (s *SupabaseStore) Query(_ context.Context, table string, f Filter) ([]Record, error) {
	q := s.client.From(table).Select("*", "", false)
	if f.ChatID != "" {
		q = q.Eq("chat_id", f.ChatID)
	}
	for k, v := range f.Equals {
		q = q.Eq(k, fmt.Sprint(v))
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit, "")
	}

	var rows []map[string]any
	if _, err := q.ExecuteTo(&rows); err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}

	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		rec := Record{Fields: make(map[string]any, len(row))}
		for k, v := range row {
			switch k {
			case "id":
				rec.ID, _ = v.(string)
			case "chat_id":
				rec.ChatID, _ = v.(string)
			case "created_at":
				if ts, ok := v.(string); ok {
					rec.CreatedAt, _ = time.Parse(time.RFC3339, ts)
				}
			default:
				rec.Fields[k] = v
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *SupabaseStore) Close() error { return nil }
