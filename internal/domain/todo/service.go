package todo

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	todoMeter        = otel.Meter("todoapp/todo")
	mutationTotal, _ = todoMeter.Int64Counter("todo.mutations",
		metric.WithDescription("Todo mutations by action and outcome"),
	)
)

// Service holds the mutation handlers. Every successful mutation is followed
// by an invalidation of ListKey; callers re-fetch the list to observe it.
type Service struct {
	repo        Repository
	invalidator Invalidator
}

// NewService creates a todo service. A nil invalidator disables the signal.
func NewService(repo Repository, invalidator Invalidator) *Service {
	return &Service{repo: repo, invalidator: invalidator}
}

// ListTodos returns the authoritative list, newest first.
func (s *Service) ListTodos(ctx context.Context) ([]*Todo, error) {
	return s.repo.List(ctx)
}

// AddTodo trims and validates text before touching the store.
func (s *Service) AddTodo(ctx context.Context, text string) error {
	params := CreateTodoParams{Text: text}
	params.Normalize()

	if err := params.Validate(); err != nil {
		s.record(ctx, "add", err)
		return err
	}

	t, err := s.repo.Create(ctx, params)
	s.record(ctx, "add", err)
	if err != nil {
		return err
	}

	log.Debug("todo added", "id", t.ID)
	s.invalidate(ctx)
	return nil
}

// ToggleTodo flips the completed flag of an existing item.
func (s *Service) ToggleTodo(ctx context.Context, id int64) error {
	t, err := s.repo.Toggle(ctx, id)
	s.record(ctx, "toggle", err)
	if err != nil {
		return err
	}

	log.Debug("todo toggled", "id", t.ID, "completed", t.Completed)
	s.invalidate(ctx)
	return nil
}

// SetCompleted stores an explicit completed value.
func (s *Service) SetCompleted(ctx context.Context, id int64, completed bool) error {
	err := s.repo.SetCompleted(ctx, id, completed)
	s.record(ctx, "set_completed", err)
	if err != nil {
		return err
	}

	s.invalidate(ctx)
	return nil
}

// DeleteTodo is best-effort: deleting a missing id is not an error.
func (s *Service) DeleteTodo(ctx context.Context, id int64) error {
	removed, err := s.repo.Delete(ctx, id)
	s.record(ctx, "delete", err)
	if err != nil {
		return err
	}

	if !removed {
		log.Debug("todo already gone", "id", id)
	}
	s.invalidate(ctx)
	return nil
}

// invalidate never fails the mutation: the row is already written, and a
// missed signal only delays the next refresh.
func (s *Service) invalidate(ctx context.Context) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.Invalidate(ctx, ListKey); err != nil {
		log.Warn("failed to invalidate list view", "key", ListKey, "err", err)
	}
}

func (s *Service) record(ctx context.Context, action string, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrValidation):
		outcome = "invalid"
	case errors.Is(err, ErrTodoNotFound):
		outcome = "not_found"
	default:
		outcome = "error"
	}
	mutationTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", action),
		attribute.String("outcome", outcome),
	))
}
