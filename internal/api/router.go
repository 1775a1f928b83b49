package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nerrad567/gray-logic-agent/internal/infrastructure/metrics"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestID)
	r.Use(s.accessLog)
	r.Use(s.recoverer)
	r.Use(middleware.RequestSize(maxRequestBodySize))

	// Prometheus scrape endpoint
	metrics.Register()
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)

		r.Route("/objects", func(r chi.Router) {
			r.Get("/", s.handleListObjects)

			r.Route("/{oid}", func(r chi.Router) {
				r.Get("/", s.handleDiscover)

				r.Route("/{iid}", func(r chi.Router) {
					r.Get("/", s.handleReadInstance)
					r.Put("/", s.handleWriteInstance)

					r.Route("/{rid}", func(r chi.Router) {
						r.Get("/", s.handleReadResource)
						r.Put("/", s.handleWriteResource)
						r.Delete("/", s.handleResetResource)
						r.Post("/execute", s.handleExecute)
					})
				})
			})
		})
	})

	return r
}

// handleHealth reports the server and its dependencies. Any failing
// dependency makes the response 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	components := make(map[string]string, len(s.checks))

	for name, check := range s.checks {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := check.HealthCheck(ctx)
		cancel()
		if err != nil {
			components[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		components[name] = "ok"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	writeJSON(w, status, map[string]any{
		"status":     overall,
		"version":    s.version,
		"components": components,
		"time":       time.Now().UTC().Format(time.RFC3339),
	})
}
