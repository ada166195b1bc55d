package middleware

import (
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/felixge/httpsnoop"
)

// Logging writes one access log line per request. The writer is wrapped with
// httpsnoop so optional interfaces like http.Hijacker stay available.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)

		fields := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", m.Code,
			"duration", m.Duration,
			"bytes", m.Written,
		}
		if id := RequestIDFrom(r.Context()); id != "" {
			fields = append(fields, "request_id", id)
		}

		switch {
		case m.Code >= 500:
			log.Error("request", fields...)
		case m.Code >= 400:
			log.Warn("request", fields...)
		default:
			log.Info("request", fields...)
		}
	})
}
