package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const archiveSchema = `
CREATE TABLE IF NOT EXISTS archive_records (
	id         TEXT PRIMARY KEY,
	table_name TEXT NOT NULL,
	chat_id    TEXT NOT NULL DEFAULT '',
	fields     JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS archive_records_table_chat_idx
	ON archive_records (table_name, chat_id, created_at);
`

// PostgresStore persists records in a single jsonb-backed table so
// new logical tables need no migration.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, url string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, archiveSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Insert(ctx context.Context, table string, rec Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.Fields == nil {
		rec.Fields = make(map[string]any)
	}

	payload, err := json.Marshal(rec.Fields)
	if err != nil {
		return fmt.Errorf("encode fields: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO archive_records (id, table_name, chat_id, fields, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		rec.ID, table, rec.ChatID, payload, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

func (s *PostgresStore) Query(ctx context.Context, table string, f Filter) ([]Record, error) {
	query := `SELECT id, chat_id, fields, created_at
		FROM archive_records WHERE table_name = $1`
	args := []any{table}

	if f.ChatID != "" {
		args = append(args, f.ChatID)
		query += fmt.Sprintf(" AND chat_id = $%d", len(args))
	}
	if len(f.Equals) > 0 {
		payload, err := json.Marshal(f.Equals)
		if err != nil {
			return nil, fmt.Errorf("encode filter: %w", err)
		}
		args = append(args, payload)
		query += fmt.Sprintf(" AND fields @> $%d", len(args))
	}
	query += " ORDER BY created_at"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var payload []byte
		if err := rows.Scan(&rec.ID, &rec.ChatID, &payload, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		if err := json.Unmarshal(payload, &rec.Fields); err != nil {
			return nil, fmt.Errorf("decode fields: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
