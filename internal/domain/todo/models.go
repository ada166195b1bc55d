package todo

import (
	"errors"
	"strings"
	"time"
)

// ListKey is the logical resource name invalidated after every mutation.
// There is a single list view, so one key covers it.
const ListKey = "todos"

var (
	ErrTodoNotFound = errors.New("todo not found")
	ErrValidation   = errors.New("validation failed")
	ErrStorage      = errors.New("storage failure")
)

// ValidationError describes a rejected input. It matches ErrValidation with errors.Is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

type Todo struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"createdAt"`
}

type CreateTodoParams struct {
	Text string
}

// Normalize trims the text in place.
func (p *CreateTodoParams) Normalize() {
	p.Text = strings.TrimSpace(p.Text)
}

func (p *CreateTodoParams) Validate() error {
	if strings.TrimSpace(p.Text) == "" {
		return &ValidationError{Field: "text", Message: "text is required"}
	}
	return nil
}

// Less reports whether a sorts before b in the list view:
// newest first, ties broken by the higher id.
func Less(a, b *Todo) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}
