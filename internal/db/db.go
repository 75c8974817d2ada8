package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// DB is the PostgreSQL job store.
type DB struct {
	*sql.DB
}

func New(databaseURL string) (*DB, error) {
	sqlDB, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &DB{sqlDB}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id          UUID PRIMARY KEY,
	prompt      TEXT NOT NULL,
	platform    TEXT NOT NULL DEFAULT 'TikTok',
	tone        TEXT NOT NULL DEFAULT 'Bold',
	status      TEXT NOT NULL DEFAULT 'queued'
	            CHECK (status IN ('queued', 'planning', 'generating', 'uploading', 'done', 'failed')),
	result_url  TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS jobs_status_created_at_idx ON jobs (status, created_at);
`

// EnsureSchema creates the jobs table and its polling index if absent.
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}
