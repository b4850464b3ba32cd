// Package db provides PostgreSQL access for the generation audit log.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// Ping checks that the database is reachable
func (db *DB) Ping(ctx context.Context) error {
	if err := db.pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

// schemaStatements create the audit tables. Each statement is idempotent.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS generation_runs (
		id              UUID PRIMARY KEY,
		request_id      TEXT NOT NULL,
		operation       TEXT NOT NULL,
		company_name    TEXT NOT NULL DEFAULT '',
		job_role        TEXT NOT NULL DEFAULT '',
		experience_type TEXT NOT NULL DEFAULT '',
		top_k           INTEGER NOT NULL,
		status          TEXT NOT NULL,
		category        TEXT,
		word_count      INTEGER NOT NULL DEFAULT 0,
		context_count   INTEGER NOT NULL DEFAULT 0,
		warnings        JSONB NOT NULL DEFAULT '[]',
		cache_hit       BOOLEAN NOT NULL DEFAULT FALSE,
		duration_ms     BIGINT NOT NULL DEFAULT 0,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS generation_runs_created_at_idx ON generation_runs (created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS generation_runs_request_id_idx ON generation_runs (request_id)`,
}

// EnsureSchema creates the audit tables if they do not exist
func (db *DB) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
