package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists memos in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS client_memos (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			chat_id TEXT NOT NULL DEFAULT '',
			text TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_client_memos_user_created ON client_memos (user_id, created_at);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, memo Memo) error {
	if memo.ID == "" {
		memo.ID = uuid.NewString()
	}
	if memo.CreatedAt.IsZero() {
		memo.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO client_memos (id, user_id, chat_id, text, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		memo.ID, memo.UserID, memo.ChatID, memo.Text, memo.CreatedAt)
	if err != nil {
		return fmt.Errorf("save memo: %w", err)
	}
	return nil
}

func (s *PostgresStore) Recent(ctx context.Context, userID string, limit int) ([]Memo, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, chat_id, text, created_at
		 FROM client_memos WHERE user_id=$1 ORDER BY created_at DESC LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent memos: %w", err)
	}
	defer rows.Close()

	memos := make([]Memo, 0, limit)
	for rows.Next() {
		var m Memo
		if err := rows.Scan(&m.ID, &m.UserID, &m.ChatID, &m.Text, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan memo row: %w", err)
		}
		memos = append(memos, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memo rows: %w", err)
	}

	// Reverse into chronological order for prompt coherence.
	for i, j := 0, len(memos)-1; i < j; i, j = i+1, j-1 {
		memos[i], memos[j] = memos[j], memos[i]
	}

	return memos, nil
}

// Relevant loads the user's recent memos and ranks them by token
// overlap in process. Memo volumes per user stay small, so a full
// text index is not warranted.
func (s *PostgresStore) Relevant(ctx context.Context, userID, query string, limit int) ([]Memo, error) {
	memos, err := s.Recent(ctx, userID, 200)
	if err != nil {
		return nil, err
	}
	return rankByOverlap(memos, query, limit), nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
