package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rustyeddy/pulse/ledger"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS paper_accounts (
	key        TEXT PRIMARY KEY,
	value      JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Postgres keeps the record as a JSONB row.
type Postgres struct {
	pool *pgxpool.Pool
	key  string
}

// NewPostgres creates the table if needed.
func NewPostgres(ctx context.Context, pool *pgxpool.Pool, key string) (*Postgres, error) {
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		return nil, fmt.Errorf("store: create paper_accounts: %w", err)
	}
	return &Postgres{pool: pool, key: key}, nil
}

func (s *Postgres) Load(ctx context.Context) ([]byte, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT value FROM paper_accounts WHERE key = $1`, s.key).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s *Postgres) Save(ctx context.Context, data []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO paper_accounts (key, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		s.key, data,
	)
	return err
}
