// Package sqlite stores the state document in a one-row SQLite table.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/MrSnakeDoc/staywatch/internal/state"

	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS staywatch_state (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	document   TEXT    NOT NULL,
	updated_at TEXT    NOT NULL
)`

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=10000",
	"PRAGMA synchronous=NORMAL",
}

type Backend struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the database at path and ensures the table exists.
func Open(ctx context.Context, path string) (*Backend, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps pragmas and writes on the same handle.
	db.SetMaxOpenConns(1)

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", p, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &Backend{db: db, path: path}, nil
}

func (b *Backend) Name() string { return "sqlite:" + b.path }

func (b *Backend) Read(ctx context.Context) ([]byte, error) {
	var doc string
	err := b.db.QueryRowContext(ctx, `SELECT document FROM staywatch_state WHERE id = 1`).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, state.ErrNotExist
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state row: %w", err)
	}
	return []byte(doc), nil
}

func (b *Backend) Write(ctx context.Context, data []byte) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO staywatch_state (id, document, updated_at) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET document = excluded.document, updated_at = excluded.updated_at`,
		string(data), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to upsert state row: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit state: %w", err)
	}
	return nil
}

func (b *Backend) Close() error {
	return b.db.Close()
}
