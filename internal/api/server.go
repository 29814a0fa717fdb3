// Package api provides the HTTP API of the registry mirror.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	apiregistries "github.com/stacklok/toolhive-registry-mirror/internal/api/registries"
	"github.com/stacklok/toolhive-registry-mirror/internal/api/syncs"
	"github.com/stacklok/toolhive-registry-mirror/internal/api/system"
	pkgsync "github.com/stacklok/toolhive-registry-mirror/internal/sync"
)

// ServerOption configures the mirror API server
type ServerOption func(*serverConfig)

// serverConfig holds the server configuration
type serverConfig struct {
	middlewares    []func(http.Handler) http.Handler
	ready          system.ReadinessFunc
	metricsPath    string
	metricsHandler http.Handler
}

// WithMiddlewares adds middleware to the server
func WithMiddlewares(mw ...func(http.Handler) http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// WithReadinessCheck sets the check behind /readiness
func WithReadinessCheck(ready system.ReadinessFunc) ServerOption {
	return func(cfg *serverConfig) {
		cfg.ready = ready
	}
}

// WithMetricsHandler mounts a Prometheus scrape handler at path. A nil handler is ignored.
func WithMetricsHandler(path string, handler http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.metricsPath = path
		cfg.metricsHandler = handler
	}
}

// NewServer creates the router serving sync tasks, registries and probes
func NewServer(syncManager pkgsync.Manager, registryService apiregistries.Service, opts ...ServerOption) *chi.Mux {
	cfg := &serverConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	r := chi.NewRouter()
	for _, mw := range cfg.middlewares {
		r.Use(mw)
	}

	r.Mount("/", system.Router(cfg.ready))
	if cfg.metricsHandler != nil {
		r.Method(http.MethodGet, cfg.metricsPath, cfg.metricsHandler)
	}
	r.Mount("/-/package", syncs.Router(syncManager))
	r.Mount("/-/registry", apiregistries.Router(registryService))

	return r
}

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		slog.DebugContext(r.Context(), "HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
			"remote_addr", r.RemoteAddr,
		)
	})
}
