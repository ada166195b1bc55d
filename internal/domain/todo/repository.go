package todo

import (
	"context"
)

type Repository interface {
	List(ctx context.Context) ([]*Todo, error)
	Create(ctx context.Context, params CreateTodoParams) (*Todo, error)
	GetByID(ctx context.Context, id int64) (*Todo, error)
	SetCompleted(ctx context.Context, id int64, completed bool) error
	Toggle(ctx context.Context, id int64) (*Todo, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

// Invalidator receives the "this view is stale" signal after a mutation.
type Invalidator interface {
	Invalidate(ctx context.Context, key string) error
}

// InvalidatorFunc adapts a function to Invalidator.
type InvalidatorFunc func(ctx context.Context, key string) error

func (f InvalidatorFunc) Invalidate(ctx context.Context, key string) error {
	return f(ctx, key)
}
