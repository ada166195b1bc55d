package http

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/charmbracelet/log"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"todoapp/internal/domain/todo"
)

const maxBodyBytes = 64 << 10

//go:embed schemas/*.json
var schemaFS embed.FS

var (
	createTodoSchema   = mustSchema("schemas/create_todo.json")
	setCompletedSchema = mustSchema("schemas/set_completed.json")
)

func mustSchema(name string) *jsonschema.Schema {
	data, err := schemaFS.ReadFile(name)
	if err != nil {
		panic(fmt.Sprintf("read schema %s: %v", name, err))
	}
	return jsonschema.MustCompileString(name, string(data))
}

type TodoHandler struct {
	service *todo.Service
}

func NewTodoHandler(service *todo.Service) *TodoHandler {
	return &TodoHandler{service: service}
}

// Request DTOs

type CreateTodoRequest struct {
	Text string `json:"text"`
}

type SetCompletedRequest struct {
	Completed bool `json:"completed"`
}

// HandleTodos routes collection requests based on method
func (h *TodoHandler) HandleTodos(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleListTodos(w, r)
	case http.MethodPost:
		h.handleCreateTodo(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleTodoByID routes requests for a specific todo
func (h *TodoHandler) HandleTodoByID(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPut:
		h.handleSetCompleted(w, r)
	case http.MethodDelete:
		h.handleDeleteTodo(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleToggle flips the completed flag of a todo.
func (h *TodoHandler) HandleToggle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.service.ToggleTodo(r.Context(), id); err != nil {
		writeServiceError(w, "toggle todo", id, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *TodoHandler) handleListTodos(w http.ResponseWriter, r *http.Request) {
	todos, err := h.service.ListTodos(r.Context())
	if err != nil {
		log.Error("failed to list todos", "err", err)
		http.Error(w, "Failed to list todos", http.StatusInternalServerError)
		return
	}
	if todos == nil {
		todos = []*todo.Todo{}
	}

	body, err := json.Marshal(todos)
	if err != nil {
		log.Error("failed to encode todos", "err", err)
		http.Error(w, "Failed to list todos", http.StatusInternalServerError)
		return
	}

	// the tag is derived from the body, so any writer that changed the
	// store changes it
	etag := listETag(body)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("ETag", etag)
	if match := r.Header.Get("If-None-Match"); match != "" && etagMatches(match, etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(append(body, '\n'))
}

func (h *TodoHandler) handleCreateTodo(w http.ResponseWriter, r *http.Request) {
	var req CreateTodoRequest
	if err := decodeBody(r, createTodoSchema, &req); err != nil {
		log.Debug("rejected create todo request", "err", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.service.AddTodo(r.Context(), req.Text); err != nil {
		writeServiceError(w, "create todo", 0, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *TodoHandler) handleSetCompleted(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req SetCompletedRequest
	if err := decodeBody(r, setCompletedSchema, &req); err != nil {
		log.Debug("rejected set completed request", "id", id, "err", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.service.SetCompleted(r.Context(), id, req.Completed); err != nil {
		writeServiceError(w, "set completed", id, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *TodoHandler) handleDeleteTodo(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteTodo(r.Context(), id); err != nil {
		writeServiceError(w, "delete todo", id, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func listETag(body []byte) string {
	return fmt.Sprintf(`W/"%016x"`, xxhash.Sum64(body))
}

func etagMatches(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || candidate == etag || "W/"+candidate == etag {
			return true
		}
	}
	return false
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.PathValue("id")
	if raw == "" {
		http.Error(w, "Todo ID is required", http.StatusBadRequest)
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "Invalid todo ID", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// decodeBody checks the body against schema before decoding it into dst.
func decodeBody(r *http.Request, schema *jsonschema.Schema, dst any) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return errors.New("Invalid request body")
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return errors.New("Invalid request body")
	}
	if err := schema.Validate(doc); err != nil {
		return errors.New(schemaMessage(err))
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return errors.New("Invalid request body")
	}
	return nil
}

// schemaMessage returns the first leaf message of a schema validation error.
func schemaMessage(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	if ve.InstanceLocation == "" {
		return ve.Message
	}
	return strings.TrimPrefix(ve.InstanceLocation, "/") + ": " + ve.Message
}

func writeServiceError(w http.ResponseWriter, op string, id int64, err error) {
	switch {
	case errors.Is(err, todo.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, todo.ErrTodoNotFound):
		http.Error(w, "Todo not found", http.StatusNotFound)
	default:
		log.Error("failed to "+op, "id", id, "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
