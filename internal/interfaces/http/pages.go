package http

import (
	"context"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"todoapp/internal/web"
)

// HealthHandler reports liveness and database reachability.
type HealthHandler struct {
	ping func(ctx context.Context) error
}

// NewHealthHandler creates a health handler. ping may be nil.
func NewHealthHandler(ping func(ctx context.Context) error) *HealthHandler {
	return &HealthHandler{ping: ping}
}

// HandleHealth returns a simple health check response.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if h.ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.ping(ctx); err != nil {
			log.Warn("health check failed", "err", err)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// HandleIndex serves the single-page todo client.
func HandleIndex(w http.ResponseWriter, r *http.Request) {
	http.ServeFileFS(w, r, web.FS, "index.html")
}
