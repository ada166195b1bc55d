package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"todoapp/internal/domain/todo"
)

type TodoRepository struct {
	db *DB
}

var _ todo.Repository = (*TodoRepository)(nil)

func NewTodoRepository(db *DB) *TodoRepository {
	return &TodoRepository{db: db}
}

func (r *TodoRepository) List(ctx context.Context) ([]*todo.Todo, error) {
	query := `
		SELECT id, text, completed, created_at
		FROM todos
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list todos: %w", todo.ErrStorage, err)
	}
	defer rows.Close()

	todos := make([]*todo.Todo, 0)
	for rows.Next() {
		var t todo.Todo
		if err := rows.Scan(&t.ID, &t.Text, &t.Completed, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: failed to scan todo: %w", todo.ErrStorage, err)
		}
		todos = append(todos, &t)
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

	query := `
		INSERT INTO todos (text)
		VALUES ($1)
		RETURNING id, text, completed, created_at
	`

	var t todo.Todo
	err := r.db.QueryRowContext(ctx, query, params.Text).Scan(
		&t.ID, &t.Text, &t.Completed, &t.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create todo: %w", todo.ErrStorage, err)
	}

	return &t, nil
}

func (r *TodoRepository) GetByID(ctx context.Context, id int64) (*todo.Todo, error) {
	query := `
		SELECT id, text, completed, created_at
		FROM todos
		WHERE id = $1
	`

	var t todo.Todo
	err := r.db.QueryRowContext(ctx, query, id).Scan(&t.ID, &t.Text, &t.Completed, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, todo.ErrTodoNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get todo: %w", todo.ErrStorage, err)
	}

	return &t, nil
}

func (r *TodoRepository) SetCompleted(ctx context.Context, id int64, completed bool) error {
	query := `UPDATE todos SET completed = $1 WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, completed, id)
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

// Toggle flips completed in one statement so concurrent toggles cannot
// overwrite each other.
func (r *TodoRepository) Toggle(ctx context.Context, id int64) (*todo.Todo, error) {
	query := `
		UPDATE todos
		SET completed = NOT completed
		WHERE id = $1
		RETURNING id, text, completed, created_at
	`

	var t todo.Todo
	err := r.db.QueryRowContext(ctx, query, id).Scan(&t.ID, &t.Text, &t.Completed, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, todo.ErrTodoNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to toggle todo: %w", todo.ErrStorage, err)
	}

	return &t, nil
}

func (r *TodoRepository) Delete(ctx context.Context, id int64) (bool, error) {
	query := `DELETE FROM todos WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("%w: failed to delete todo: %w", todo.ErrStorage, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: failed to get affected rows: %w", todo.ErrStorage, err)
	}

	return rows > 0, nil
}
