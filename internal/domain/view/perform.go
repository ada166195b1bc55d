package view

import (
	"context"
	"fmt"

	"todoapp/internal/domain/todo"
)

// Backend is the server side of the protocol as a client sees it.
type Backend interface {
	List(ctx context.Context) ([]*todo.Todo, error)
	Add(ctx context.Context, text string) error
	Toggle(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
}

// Result is the outcome of one mutation followed by a re-fetch.
type Result struct {
	Key        Key
	Err        error
	Fresh      []*todo.Todo
	RefreshErr error
}

// Perform sends the mutation for key and then re-fetches the list. It blocks
// and is meant to run off the UI goroutine; feed the Result to Tracker.Apply.
func Perform(ctx context.Context, b Backend, key Key) Result {
	var err error
	switch key.Action {
	case ActionToggle:
		err = b.Toggle(ctx, key.ID)
	case ActionDelete:
		err = b.Delete(ctx, key.ID)
	default:
		err = fmt.Errorf("unsupported action %q", key.Action)
	}
	return refresh(ctx, b, key, err)
}

// PerformAdd sends an add with already normalized text and re-fetches the list.
func PerformAdd(ctx context.Context, b Backend, text string) Result {
	err := b.Add(ctx, text)
	return refresh(ctx, b, Key{Action: ActionAdd}, err)
}

func refresh(ctx context.Context, b Backend, key Key, err error) Result {
	fresh, listErr := b.List(ctx)
	return Result{Key: key, Err: err, Fresh: fresh, RefreshErr: listErr}
}
