package invalidation

import (
	"context"
	"errors"

	"todoapp/internal/domain/todo"
)

// Fanout forwards every invalidation to all targets and joins their errors.
type Fanout []todo.Invalidator

func (f Fanout) Invalidate(ctx context.Context, key string) error {
	var errs []error
	for _, target := range f {
		if target == nil {
			continue
		}
		if err := target.Invalidate(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
