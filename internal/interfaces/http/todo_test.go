package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"todoapp/internal/domain/todo"
)

// MockTodoRepo implements todo.Repository for testing
type MockTodoRepo struct {
	ListFunc         func(ctx context.Context) ([]*todo.Todo, error)
	CreateFunc       func(ctx context.Context, params todo.CreateTodoParams) (*todo.Todo, error)
	GetByIDFunc      func(ctx context.Context, id int64) (*todo.Todo, error)
	SetCompletedFunc func(ctx context.Context, id int64, completed bool) error
	ToggleFunc       func(ctx context.Context, id int64) (*todo.Todo, error)
	DeleteFunc       func(ctx context.Context, id int64) (bool, error)
}

func (m *MockTodoRepo) List(ctx context.Context) ([]*todo.Todo, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	return nil, nil
}

func (m *MockTodoRepo) Create(ctx context.Context, params todo.CreateTodoParams) (*todo.Todo, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, params)
	}
	return &todo.Todo{ID: 1, Text: params.Text}, nil
}

func (m *MockTodoRepo) GetByID(ctx context.Context, id int64) (*todo.Todo, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, todo.ErrTodoNotFound
}

func (m *MockTodoRepo) SetCompleted(ctx context.Context, id int64, completed bool) error {
	if m.SetCompletedFunc != nil {
		return m.SetCompletedFunc(ctx, id, completed)
	}
	return nil
}

func (m *MockTodoRepo) Toggle(ctx context.Context, id int64) (*todo.Todo, error) {
	if m.ToggleFunc != nil {
		return m.ToggleFunc(ctx, id)
	}
	return &todo.Todo{ID: id}, nil
}

func (m *MockTodoRepo) Delete(ctx context.Context, id int64) (bool, error) {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return true, nil
}

var errDB = fmt.Errorf("%w: connection refused", todo.ErrStorage)

func newTestHandler(repo *MockTodoRepo) *TodoHandler {
	return NewTodoHandler(todo.NewService(repo, nil))
}

func TestHandleTodos_ListTodos(t *testing.T) {
	tests := []struct {
		name           string
		mockRepo       func() *MockTodoRepo
		expectedStatus int
		expectedLen    int
	}{
		{
			name: "Success",
			mockRepo: func() *MockTodoRepo {
				return &MockTodoRepo{
					ListFunc: func(ctx context.Context) ([]*todo.Todo, error) {
						return []*todo.Todo{
							{ID: 2, Text: "walk dog", CreatedAt: time.Unix(200, 0)},
							{ID: 1, Text: "buy milk", Completed: true, CreatedAt: time.Unix(100, 0)},
						}, nil
					},
				}
			},
			expectedStatus: http.StatusOK,
			expectedLen:    2,
		},
		{
			name: "Empty List",
			mockRepo: func() *MockTodoRepo {
				return &MockTodoRepo{}
			},
			expectedStatus: http.StatusOK,
			expectedLen:    0,
		},
		{
			name: "Repository Error",
			mockRepo: func() *MockTodoRepo {
				return &MockTodoRepo{
					ListFunc: func(ctx context.Context) ([]*todo.Todo, error) {
						return nil, errDB
					},
				}
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newTestHandler(tt.mockRepo())

			req := httptest.NewRequest(http.MethodGet, "/api/todos/", nil)
			rr := httptest.NewRecorder()
			handler.HandleTodos(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.expectedStatus)
			}

			if tt.expectedStatus == http.StatusOK {
				body := rr.Body.String()
				if tt.expectedLen == 0 && strings.TrimSpace(body) != "[]" {
					t.Errorf("empty list body = %q, want []", body)
				}
				var todos []todo.Todo
				json.NewDecoder(strings.NewReader(body)).Decode(&todos)
				if len(todos) != tt.expectedLen {
					t.Errorf("response length = %d, want %d", len(todos), tt.expectedLen)
				}
				if got := rr.Header().Get("ETag"); !strings.HasPrefix(got, `W/"`) {
					t.Errorf("ETag = %q, want a weak tag", got)
				}
			}
		})
	}
}

func TestHandleTodos_ListWireFormat(t *testing.T) {
	created := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	handler := newTestHandler(&MockTodoRepo{
		ListFunc: func(ctx context.Context) ([]*todo.Todo, error) {
			return []*todo.Todo{{ID: 7, Text: "buy milk", Completed: true, CreatedAt: created}}, nil
		},
	})

	rr := httptest.NewRecorder()
	handler.HandleTodos(rr, httptest.NewRequest(http.MethodGet, "/api/todos/", nil))

	var raw []map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, field := range []string{"id", "text", "completed", "createdAt"} {
		if _, ok := raw[0][field]; !ok {
			t.Errorf("missing field %q in %v", field, raw[0])
		}
	}
	if raw[0]["createdAt"] != "2024-05-01T09:30:00Z" {
		t.Errorf("createdAt = %v", raw[0]["createdAt"])
	}
}

func TestHandleTodos_ConditionalList(t *testing.T) {
	items := []*todo.Todo{{ID: 1, Text: "buy milk", CreatedAt: time.Unix(100, 0)}}
	handler := newTestHandler(&MockTodoRepo{
		ListFunc: func(ctx context.Context) ([]*todo.Todo, error) {
			return items, nil
		},
	})

	get := func(ifNoneMatch string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/todos/", nil)
		if ifNoneMatch != "" {
			req.Header.Set("If-None-Match", ifNoneMatch)
		}
		rr := httptest.NewRecorder()
		handler.HandleTodos(rr, req)
		return rr
	}

	etag := get("").Header().Get("ETag")
	if etag == "" {
		t.Fatal("list response has no ETag")
	}
	strong := strings.TrimPrefix(etag, "W/")

	tests := []struct {
		name           string
		ifNoneMatch    string
		expectedStatus int
	}{
		{"Matching Tag", etag, http.StatusNotModified},
		{"Strong Form", strong, http.StatusNotModified},
		{"One Of Many", `W/"0000000000000000", ` + etag, http.StatusNotModified},
		{"Wildcard", "*", http.StatusNotModified},
		{"Other Tag", `W/"0000000000000000"`, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := get(tt.ifNoneMatch)

			if rr.Code != tt.expectedStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.expectedStatus)
			}
			if rr.Code == http.StatusNotModified && rr.Body.Len() != 0 {
				t.Error("304 response should have no body")
			}
			if got := rr.Header().Get("ETag"); got != etag {
				t.Errorf("ETag = %q, want %q", got, etag)
			}
		})
	}
}

func TestHandleTodos_ETagFollowsStoreContent(t *testing.T) {
	items := []*todo.Todo{{ID: 1, Text: "buy milk", CreatedAt: time.Unix(100, 0)}}
	handler := newTestHandler(&MockTodoRepo{
		ListFunc: func(ctx context.Context) ([]*todo.Todo, error) {
			return items, nil
		},
	})

	rr := httptest.NewRecorder()
	handler.HandleTodos(rr, httptest.NewRequest(http.MethodGet, "/api/todos/", nil))
	before := rr.Header().Get("ETag")

	// changed behind the handler's back, with no invalidation
	items = []*todo.Todo{{ID: 1, Text: "buy milk", Completed: true, CreatedAt: time.Unix(100, 0)}}

	req := httptest.NewRequest(http.MethodGet, "/api/todos/", nil)
	req.Header.Set("If-None-Match", before)
	rr = httptest.NewRecorder()
	handler.HandleTodos(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 after the store changed", rr.Code)
	}
	if rr.Header().Get("ETag") == before {
		t.Error("ETag did not change with the list")
	}
	if !strings.Contains(rr.Body.String(), `"completed":true`) {
		t.Errorf("body = %q, want the updated item", rr.Body.String())
	}
}

func TestHandleTodos_CreateTodo(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		mockRepo       func() *MockTodoRepo
		expectedStatus int
		expectedText   string
	}{
		{
			name: "Success",
			body: `{"text":"  buy milk  "}`,
			mockRepo: func() *MockTodoRepo {
				return &MockTodoRepo{}
			},
			expectedStatus: http.StatusNoContent,
			expectedText:   "buy milk",
		},
		{
			name:           "Blank Text",
			body:           `{"text":"   "}`,
			mockRepo:       func() *MockTodoRepo { return &MockTodoRepo{} },
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Missing Text",
			body:           `{}`,
			mockRepo:       func() *MockTodoRepo { return &MockTodoRepo{} },
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Wrong Type",
			body:           `{"text":42}`,
			mockRepo:       func() *MockTodoRepo { return &MockTodoRepo{} },
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Invalid JSON",
			body:           `{"text":`,
			mockRepo:       func() *MockTodoRepo { return &MockTodoRepo{} },
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "Repository Error",
			body: `{"text":"buy milk"}`,
			mockRepo: func() *MockTodoRepo {
				return &MockTodoRepo{
					CreateFunc: func(ctx context.Context, params todo.CreateTodoParams) (*todo.Todo, error) {
						return nil, errDB
					},
				}
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := tt.mockRepo()
			var gotText string
			created := false
			if repo.CreateFunc == nil {
				repo.CreateFunc = func(ctx context.Context, params todo.CreateTodoParams) (*todo.Todo, error) {
					created = true
					gotText = params.Text
					return &todo.Todo{ID: 1, Text: params.Text}, nil
				}
			}
			handler := newTestHandler(repo)

			req := httptest.NewRequest(http.MethodPost, "/api/todos/", bytes.NewBufferString(tt.body))
			rr := httptest.NewRecorder()
			handler.HandleTodos(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("status = %d, want %d (body %q)", rr.Code, tt.expectedStatus, rr.Body.String())
			}
			if tt.expectedStatus == http.StatusBadRequest && created {
				t.Error("store should not be touched for a rejected body")
			}
			if tt.expectedText != "" && gotText != tt.expectedText {
				t.Errorf("stored text = %q, want %q", gotText, tt.expectedText)
			}
			if tt.expectedStatus == http.StatusNoContent && rr.Body.Len() != 0 {
				t.Errorf("mutation returned a payload: %q", rr.Body.String())
			}
		})
	}
}

func TestHandleToggle(t *testing.T) {
	tests := []struct {
		name           string
		id             string
		toggleErr      error
		expectedStatus int
	}{
		{"Success", "5", nil, http.StatusNoContent},
		{"Not Found", "5", todo.ErrTodoNotFound, http.StatusNotFound},
		{"Storage Error", "5", errDB, http.StatusInternalServerError},
		{"Invalid ID", "abc", nil, http.StatusBadRequest},
		{"Zero ID", "0", nil, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotID int64
			handler := newTestHandler(&MockTodoRepo{
				ToggleFunc: func(ctx context.Context, id int64) (*todo.Todo, error) {
					gotID = id
					if tt.toggleErr != nil {
						return nil, tt.toggleErr
					}
					return &todo.Todo{ID: id, Completed: true}, nil
				},
			})

			req := httptest.NewRequest(http.MethodPost, "/api/todos/"+tt.id+"/toggle", nil)
			req.SetPathValue("id", tt.id)
			rr := httptest.NewRecorder()
			handler.HandleToggle(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.expectedStatus)
			}
			if tt.expectedStatus == http.StatusNoContent && gotID != 5 {
				t.Errorf("toggled id = %d, want 5", gotID)
			}
		})
	}
}

func TestHandleToggle_MethodNotAllowed(t *testing.T) {
	handler := newTestHandler(&MockTodoRepo{})

	req := httptest.NewRequest(http.MethodGet, "/api/todos/5/toggle", nil)
	req.SetPathValue("id", "5")
	rr := httptest.NewRecorder()
	handler.HandleToggle(rr, req)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rr.Code)
	}
}

func TestHandleTodoByID_SetCompleted(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		setErr         error
		expectedStatus int
		expectedValue  bool
	}{
		{"Complete", `{"completed":true}`, nil, http.StatusNoContent, true},
		{"Reopen", `{"completed":false}`, nil, http.StatusNoContent, false},
		{"Not Found", `{"completed":true}`, todo.ErrTodoNotFound, http.StatusNotFound, false},
		{"Missing Field", `{}`, nil, http.StatusBadRequest, false},
		{"Wrong Type", `{"completed":"yes"}`, nil, http.StatusBadRequest, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotValue bool
			handler := newTestHandler(&MockTodoRepo{
				SetCompletedFunc: func(ctx context.Context, id int64, completed bool) error {
					gotValue = completed
					return tt.setErr
				},
			})

			req := httptest.NewRequest(http.MethodPut, "/api/todos/9", bytes.NewBufferString(tt.body))
			req.SetPathValue("id", "9")
			rr := httptest.NewRecorder()
			handler.HandleTodoByID(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.expectedStatus)
			}
			if tt.expectedStatus == http.StatusNoContent && gotValue != tt.expectedValue {
				t.Errorf("completed = %v, want %v", gotValue, tt.expectedValue)
			}
		})
	}
}

func TestHandleTodoByID_Delete(t *testing.T) {
	tests := []struct {
		name           string
		deleteFunc     func(ctx context.Context, id int64) (bool, error)
		expectedStatus int
	}{
		{
			name:           "Existing",
			deleteFunc:     func(ctx context.Context, id int64) (bool, error) { return true, nil },
			expectedStatus: http.StatusNoContent,
		},
		{
			name:           "Already Gone",
			deleteFunc:     func(ctx context.Context, id int64) (bool, error) { return false, nil },
			expectedStatus: http.StatusNoContent,
		},
		{
			name:           "Storage Error",
			deleteFunc:     func(ctx context.Context, id int64) (bool, error) { return false, errDB },
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newTestHandler(&MockTodoRepo{DeleteFunc: tt.deleteFunc})

			req := httptest.NewRequest(http.MethodDelete, "/api/todos/4", nil)
			req.SetPathValue("id", "4")
			rr := httptest.NewRecorder()
			handler.HandleTodoByID(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.expectedStatus)
			}
		})
	}
}

func TestHandleTodoByID_MethodNotAllowed(t *testing.T) {
	handler := newTestHandler(&MockTodoRepo{})

	req := httptest.NewRequest(http.MethodPatch, "/api/todos/4", nil)
	req.SetPathValue("id", "4")
	rr := httptest.NewRecorder()
	handler.HandleTodoByID(rr, req)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rr.Code)
	}
}

func TestStorageErrorsAreNotLeaked(t *testing.T) {
	handler := newTestHandler(&MockTodoRepo{
		ToggleFunc: func(ctx context.Context, id int64) (*todo.Todo, error) {
			return nil, fmt.Errorf("%w: pq: password authentication failed for user \"todo\"", todo.ErrStorage)
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/todos/1/toggle", nil)
	req.SetPathValue("id", "1")
	rr := httptest.NewRecorder()
	handler.HandleToggle(rr, req)

	if strings.Contains(rr.Body.String(), "password") {
		t.Errorf("storage details leaked to client: %q", rr.Body.String())
	}
}

func TestMutationsInvalidateList(t *testing.T) {
	var keys []string
	inv := todo.InvalidatorFunc(func(ctx context.Context, key string) error {
		keys = append(keys, key)
		return nil
	})
	handler := NewTodoHandler(todo.NewService(&MockTodoRepo{}, inv))

	requests := []struct {
		method string
		path   string
		id     string
		body   string
		call   func(w http.ResponseWriter, r *http.Request)
	}{
		{http.MethodPost, "/api/todos/", "", `{"text":"a"}`, handler.HandleTodos},
		{http.MethodPost, "/api/todos/1/toggle", "1", "", handler.HandleToggle},
		{http.MethodPut, "/api/todos/1", "1", `{"completed":false}`, handler.HandleTodoByID},
		{http.MethodDelete, "/api/todos/1", "1", "", handler.HandleTodoByID},
	}

	for _, r := range requests {
		req := httptest.NewRequest(r.method, r.path, strings.NewReader(r.body))
		if r.id != "" {
			req.SetPathValue("id", r.id)
		}
		rr := httptest.NewRecorder()
		r.call(rr, req)
		if rr.Code != http.StatusNoContent {
			t.Fatalf("%s %s status = %d", r.method, r.path, rr.Code)
		}
	}

	if len(keys) != len(requests) {
		t.Fatalf("invalidations = %d, want %d", len(keys), len(requests))
	}
	for _, k := range keys {
		if k != todo.ListKey {
			t.Errorf("invalidated key %q, want %q", k, todo.ListKey)
		}
	}
}

func TestSchemaMessage(t *testing.T) {
	err := createTodoSchema.Validate(map[string]any{"text": 1.0})
	if err == nil {
		t.Fatal("expected a validation error")
	}
	msg := schemaMessage(err)
	if !strings.HasPrefix(msg, "text: ") {
		t.Errorf("schemaMessage() = %q, want prefix %q", msg, "text: ")
	}

	plain := errors.New("boom")
	if got := schemaMessage(plain); got != "boom" {
		t.Errorf("schemaMessage(plain) = %q", got)
	}
}
