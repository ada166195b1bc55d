package listener

import (
	"context"
	"errors"
	"testing"

	"todoapp/internal/domain/todo"
)

func TestForward(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{name: "payload is the key", payload: "todos", want: "todos"},
		{name: "empty payload falls back to list key", payload: "", want: todo.ListKey},
		{name: "other keys pass through", payload: "archive", want: "archive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			target := todo.InvalidatorFunc(func(ctx context.Context, key string) error {
				got = append(got, key)
				return nil
			})
			l := NewInvalidationListener("", "todo_invalidated", target)

			l.forward(context.Background(), tt.payload)

			if len(got) != 1 || got[0] != tt.want {
				t.Errorf("forwarded %v, want [%s]", got, tt.want)
			}
		})
	}
}

func TestForward_TargetErrorIsSwallowed(t *testing.T) {
	calls := 0
	target := todo.InvalidatorFunc(func(ctx context.Context, key string) error {
		calls++
		return errors.New("broker closed")
	})
	l := NewInvalidationListener("", "todo_invalidated", target)

	l.forward(context.Background(), "todos")

	if calls != 1 {
		t.Errorf("target called %d times, want 1", calls)
	}
}

func TestResync_InvalidatesList(t *testing.T) {
	var got []string
	target := todo.InvalidatorFunc(func(ctx context.Context, key string) error {
		got = append(got, key)
		return nil
	})
	l := NewInvalidationListener("", "todo_invalidated", target)

	l.resync(context.Background())
	l.resync(context.Background())

	if len(got) != 2 || got[0] != todo.ListKey || got[1] != todo.ListKey {
		t.Errorf("forwarded %v, want the list key once per resync", got)
	}
}
