package main

import (
	"net/http"

	"github.com/charmbracelet/log"

	httphandlers "todoapp/internal/interfaces/http"
	"todoapp/internal/shared/config"
	"todoapp/internal/shared/middleware"
)

// SetupRoutes configures all HTTP routes and returns the final handler with middleware.
func SetupRoutes(deps *Dependencies, cfg *config.Config) http.Handler {
	mux := http.NewServeMux()

	// Browser client
	mux.HandleFunc("/{$}", httphandlers.HandleIndex)

	// Health check
	mux.HandleFunc("/health", deps.HealthHandler.HandleHealth)

	// Todo API
	mux.HandleFunc("/api/todos/{$}", deps.TodoHandler.HandleTodos)
	mux.HandleFunc("/api/todos/{id}", deps.TodoHandler.HandleTodoByID)
	mux.HandleFunc("/api/todos/{id}/toggle", deps.TodoHandler.HandleToggle)
	mux.HandleFunc("/api/todos/watch", deps.WatchHandler.HandleWatch)

	// Tracing sits directly on the mux so it can read the matched pattern
	handler := middleware.Tracing(mux)
	handler = middleware.CORS(cfg.Server.AllowedHosts)(handler)
	handler = middleware.Logging(handler)
	handler = middleware.RequestID(handler)

	// Apply security middleware when TLS is enabled
	if cfg.TLS.Enabled {
		handler = middleware.HSTS(handler)
		log.Info("TLS security middleware enabled (HSTS)")
	}

	if cfg.Telemetry.Enabled {
		handler = middleware.Telemetry(handler)
	}

	return handler
}
