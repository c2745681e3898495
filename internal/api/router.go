package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		r.Route("/receivers", func(r chi.Router) {
			r.Get("/", s.handleListReceivers)
			r.Get("/{name}", s.handleGetReceiver)
			r.Post("/{name}/commands", s.handleReceiverCommand)
		})
		r.Post("/commands", s.handleBroadcastCommand)

		r.Get("/audit", s.handleListAudit)
	})

	r.Get(s.wsCfg.Path, s.handleWebSocket)

	return r
}

// healthCheckTimeout bounds each component check.
const healthCheckTimeout = 2 * time.Second

// handleHealth returns "ok", or "degraded" with 503 when a component
// check fails.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	components := make(map[string]string, len(s.components))

	for name, c := range s.components {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := c.HealthCheck(ctx)
		cancel()
		if err != nil {
			components[name] = err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		components[name] = "ok"
	}

	writeJSON(w, code, map[string]any{
		"status":     status,
		"version":    s.version,
		"components": components,
	})
}

// gatewayError maps a gateway call failure to an HTTP response.
func gatewayError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		writeError(w, http.StatusGatewayTimeout, ErrCodeTimeout, "gateway did not respond")
	default:
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, err.Error())
	}
}
