// Package statusapi serves the daemon's local HTTP monitoring surface:
// aggregated health checks, the discoverable method catalog, and
// Prometheus metrics. Business RPC stays on the unix socket.
package statusapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"verceld/internal/metrics"
	"verceld/internal/service"
)

const (
	HTTPReadTimeout  = 10 * time.Second
	HTTPWriteTimeout = 10 * time.Second
	HTTPIdleTimeout  = 60 * time.Second

	// RequestTimeout covers the health probe's outbound call.
	RequestTimeout = 35 * time.Second
)

// Server is the HTTP status server.
type Server struct {
	Service *service.Service
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// NewServer creates a status server over the given service.
func NewServer(svc *service.Service, m *metrics.Metrics, logger *slog.Logger) *Server {
	return &Server{
		Service: svc,
		Metrics: m,
		Logger:  logger,
	}
}

// Router creates and configures the HTTP router
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(RequestTimeout))

	// Logging middleware
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)

			defer func() {
				s.Logger.Info("http_request",
					"method", req.Method,
					"path", req.URL.Path,
					"status", ww.Status(),
					"duration_ms", time.Since(start).Milliseconds())
			}()

			next.ServeHTTP(ww, req)
		})
	})

	r.Get("/health", s.HandleHealth)
	r.Get("/methods", s.HandleMethods)
	if s.Metrics != nil {
		r.Handle("/metrics", s.Metrics.Handler())
	}

	return r
}

// Start starts the HTTP server on addr and blocks.
func (s *Server) Start(addr string) error {
	s.Logger.Info("Starting status server", "addr", addr)

	server := &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  HTTPReadTimeout,
		WriteTimeout: HTTPWriteTimeout,
		IdleTimeout:  HTTPIdleTimeout,
	}

	return server.ListenAndServe()
}

// HandleHealth reports the aggregated subsystem health. 200 when every
// subsystem is healthy, 503 otherwise.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	checks := s.Service.HealthCheck(r.Context())

	healthy := true
	for _, check := range checks {
		if !check.Healthy {
			healthy = false
			break
		}
	}

	status := http.StatusOK
	overall := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		overall = "unhealthy"
	}

	s.respondJSON(w, status, map[string]interface{}{
		"status":  overall,
		"version": s.Service.Version(),
		"checks":  checks,
	})
}

// HandleMethods serves the method catalog for external tooling.
func (s *Server) HandleMethods(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"service": s.Service.Name(),
		"methods": s.Service.Methods(),
	})
}

// respondJSON sends a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.Logger.Error("Failed to encode JSON response", "error", err)
	}
}
