package postgres

import (
	"context"
	"fmt"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS todos (
		id         BIGSERIAL PRIMARY KEY,
		text       TEXT NOT NULL CHECK (btrim(text) <> ''),
		completed  BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_todos_created_at_id ON todos (created_at DESC, id DESC)`,
}

// Migrate creates the todos table and its ordering index. It is idempotent.
func Migrate(ctx context.Context, db *DB) error {
	for i, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
