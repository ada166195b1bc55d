// Package todoapi is the HTTP client for the todo API used by terminal and
// scripted clients.
package todoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"todoapp/internal/domain/todo"
	"todoapp/internal/domain/view"
)

const (
	defaultTimeout = 15 * time.Second
	todosPath      = "/api/todos/"
	watchPath      = "/api/todos/watch"
)

// Client talks to a running todo API server.
type Client struct {
	httpClient *http.Client
	dialer     *websocket.Dialer
	baseURL    string
}

var _ view.Backend = (*Client)(nil)

// NewClient creates a client for the server at baseURL, e.g. http://localhost:8080.
func NewClient(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		dialer:     websocket.DefaultDialer,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// WatchEvent is one invalidation pushed by the server.
type WatchEvent struct {
	Key     string `json:"key"`
	Version uint64 `json:"version"`
}

// List fetches the authoritative list.
func (c *Client) List(ctx context.Context) ([]*todo.Todo, error) {
	var todos []*todo.Todo
	if err := c.do(ctx, http.MethodGet, todosPath, nil, &todos); err != nil {
		return nil, err
	}
	return todos, nil
}

func (c *Client) Add(ctx context.Context, text string) error {
	return c.do(ctx, http.MethodPost, todosPath, map[string]string{"text": text}, nil)
}

func (c *Client) Toggle(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodPost, todoPath(id)+"/toggle", nil, nil)
}

func (c *Client) SetCompleted(ctx context.Context, id int64, completed bool) error {
	return c.do(ctx, http.MethodPut, todoPath(id), map[string]bool{"completed": completed}, nil)
}

// Delete succeeds whether or not the item existed.
func (c *Client) Delete(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, todoPath(id), nil, nil)
}

// Watch opens the invalidation stream. The returned channel is closed when
// ctx is done or the connection drops.
func (c *Client) Watch(ctx context.Context) (<-chan WatchEvent, error) {
	wsURL, err := c.watchURL()
	if err != nil {
		return nil, err
	}

	conn, resp, err := c.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to open watch stream (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to open watch stream: %w", err)
	}

	events := make(chan WatchEvent, 1)
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	go func() {
		defer close(events)
		defer conn.Close()
		for {
			var ev WatchEvent
			if err := conn.ReadJSON(&ev); err != nil {
				if ctx.Err() == nil {
					log.Debug("watch stream closed", "err", err)
				}
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, nil
}

func (c *Client) watchURL() (string, error) {
	u, err := url.Parse(c.baseURL + watchPath)
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", c.baseURL, err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return u.String(), nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: failed to execute request: %w", todo.ErrStorage, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response body: %w", todo.ErrStorage, err)
	}

	if resp.StatusCode >= 300 {
		return statusError(resp.StatusCode, respBody)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}
	return nil
}

func statusError(status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	switch status {
	case http.StatusBadRequest:
		if msg == "" {
			msg = "invalid request"
		}
		return &todo.ValidationError{Message: msg}
	case http.StatusNotFound:
		return fmt.Errorf("%w (status %d)", todo.ErrTodoNotFound, status)
	default:
		return fmt.Errorf("%w: API request failed with status %d: %s", todo.ErrStorage, status, msg)
	}
}

func todoPath(id int64) string {
	return todosPath + strconv.FormatInt(id, 10)
}
