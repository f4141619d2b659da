// Package postgres stores the state document in a one-row PostgreSQL table.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrSnakeDoc/staywatch/internal/state"
)

const schema = `CREATE TABLE IF NOT EXISTS staywatch_state (
	id         SMALLINT    PRIMARY KEY CHECK (id = 1),
	document   JSONB       NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

type Backend struct {
	pool *pgxpool.Pool
}

// Open connects to dsn, verifies the connection and ensures the table exists.
func Open(ctx context.Context, dsn string) (*Backend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create staywatch_state: %w", err)
	}
	return &Backend{pool: pool}, nil
}

func (b *Backend) Name() string { return "postgres" }

func (b *Backend) Read(ctx context.Context) ([]byte, error) {
	var doc string
	err := b.pool.QueryRow(ctx, `SELECT document::text FROM staywatch_state WHERE id = 1`).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, state.ErrNotExist
	}
	if err != nil {
		return nil, fmt.Errorf("query staywatch_state: %w", err)
	}
	return []byte(doc), nil
}

// Write upserts the row; a single statement is atomic on its own.
func (b *Backend) Write(ctx context.Context, data []byte) error {
	_, err := b.pool.Exec(ctx,
		`INSERT INTO staywatch_state (id, document, updated_at) VALUES (1, $1::jsonb, now())
		 ON CONFLICT (id) DO UPDATE SET document = EXCLUDED.document, updated_at = EXCLUDED.updated_at`,
		string(data))
	if err != nil {
		return fmt.Errorf("upsert staywatch_state: %w", err)
	}
	return nil
}

func (b *Backend) Close() error {
	b.pool.Close()
	return nil
}
