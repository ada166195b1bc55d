// Package sqlite stores todos in a local SQLite file. It is meant for single
// node deployments and development; cross-process invalidation is not
// available on this backend.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"todoapp/internal/domain/todo"
)

const schema = `
CREATE TABLE IF NOT EXISTS todos (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	text       TEXT NOT NULL CHECK (trim(text) <> ''),
	completed  BOOLEAN NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_todos_created_at_id ON todos (created_at DESC, id DESC);
`

// Open opens (creating if needed) the database at path. ":memory:" is accepted.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// SQLite serializes writers anyway; one connection also keeps an
	// in-memory database alive for the lifetime of the pool.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	return db, nil
}

// Migrate creates the todos table. It is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate sqlite schema: %w", err)
	}
	return nil
}

type TodoRepository struct {
	db  *sql.DB
	now func() time.Time
}

var _ todo.Repository = (*TodoRepository)(nil)

func NewTodoRepository(db *sql.DB) *TodoRepository {
	return &TodoRepository{db: db, now: time.Now}
}

// WithClock replaces the creation clock. Used by tests.
func (r *TodoRepository) WithClock(now func() time.Time) *TodoRepository {
	r.now = now
	return r
}

func (r *TodoRepository) List(ctx context.Context) ([]*todo.Todo, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, text, completed, created_at
		FROM todos
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list todos: %w", todo.ErrStorage, err)
	}
	defer rows.Close()

	todos := make([]*todo.Todo, 0)
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to scan todo: %w", todo.ErrStorage, err)
		}
		todos = append(todos, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating todos: %w", todo.ErrStorage, err)
	}

	return todos, nil
}

func (r *TodoRepository) Create(ctx context.Context, params todo.CreateTodoParams) (*todo.Todo, error) {
	params.Normalize()
	if err := params.Validate(); err != nil {
		return nil, err
	}

	row := r.db.QueryRowContext(ctx, `
		INSERT INTO todos (text, completed, created_at)
		VALUES (?, 0, ?)
		RETURNING id, text, completed, created_at
	`, params.Text, r.now().UTC().UnixNano())

	t, err := scanTodo(row)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create todo: %w", todo.ErrStorage, err)
	}
	return t, nil
}

func (r *TodoRepository) GetByID(ctx context.Context, id int64) (*todo.Todo, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, text, completed, created_at
		FROM todos
		WHERE id = ?
	`, id)

	t, err := scanTodo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, todo.ErrTodoNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get todo: %w", todo.ErrStorage, err)
	}
	return t, nil
}

func (r *TodoRepository) SetCompleted(ctx context.Context, id int64, completed bool) error {
	result, err := r.db.ExecContext(ctx, `UPDATE todos SET completed = ? WHERE id = ?`, completed, id)
	if err != nil {
		return fmt.Errorf("%w: failed to update todo: %w", todo.ErrStorage, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: failed to get affected rows: %w", todo.ErrStorage, err)
	}
	if rows == 0 {
		return todo.ErrTodoNotFound
	}
	return nil
}

func (r *TodoRepository) Toggle(ctx context.Context, id int64) (*todo.Todo, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE todos
		SET completed = NOT completed
		WHERE id = ?
		RETURNING id, text, completed, created_at
	`, id)

	t, err := scanTodo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, todo.ErrTodoNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to toggle todo: %w", todo.ErrStorage, err)
	}
	return t, nil
}

func (r *TodoRepository) Delete(ctx context.Context, id int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM todos WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("%w: failed to delete todo: %w", todo.ErrStorage, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: failed to get affected rows: %w", todo.ErrStorage, err)
	}
	return rows > 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTodo(s scanner) (*todo.Todo, error) {
	var t todo.Todo
	var createdAt int64
	if err := s.Scan(&t.ID, &t.Text, &t.Completed, &createdAt); err != nil {
		return nil, err
	}
	t.CreatedAt = time.Unix(0, createdAt).UTC()
	return &t, nil
}
