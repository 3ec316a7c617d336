// Package api exposes the synthesis engine over HTTP: point and grid field
// queries, model metadata, and an authenticated coefficient-table refresh.
package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/mag/maggo/internal/auth"
	"github.com/mag/maggo/internal/grid"
	"github.com/mag/maggo/internal/health"
	"github.com/mag/maggo/internal/httputil"
	"github.com/mag/maggo/internal/metrics"
	"github.com/mag/maggo/internal/model"
)

// Config holds API behavior toggles.
type Config struct {
	// TrustProxy enables X-Forwarded-For/X-Real-IP handling in logs.
	TrustProxy bool
	// SuppressAdvisories disables the accuracy-degraded advisory channel.
	SuppressAdvisories bool
	// GridMinStepDeg is the smallest accepted grid step (guards against
	// requests that would enumerate millions of points).
	GridMinStepDeg float64
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	store      *model.Store
	refresher  *model.Refresher
	pool       *grid.Pool
	cfg        Config
}

// NewServer creates a configured HTTP server.
func NewServer(addr string, logger *slog.Logger, authCfg auth.Config, store *model.Store, refresher *model.Refresher, pool *grid.Pool, cfg Config) *Server {
	if cfg.GridMinStepDeg <= 0 {
		cfg.GridMinStepDeg = 1.0
	}

	s := &Server{
		logger:    logger,
		store:     store,
		refresher: refresher,
		pool:      pool,
		cfg:       cfg,
	}

	mux := http.NewServeMux()

	// Register routes.
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(func() bool { return store.Get() != nil }))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /api/v1/model", s.handleModel)
	mux.HandleFunc("GET /api/v1/field", s.handleField)
	mux.HandleFunc("GET /api/v1/field/sv", s.handleSecularVariation)
	mux.HandleFunc("GET /api/v1/grid", s.handleGrid)
	mux.HandleFunc("POST /api/v1/model/refresh", s.handleRefresh)

	// Build middleware chain: metrics -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(authCfg)(handler)
	handler = s.loggingMiddleware()(handler)
	handler = metrics.Middleware(handler)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Handler returns the full middleware-wrapped handler (used by tests).
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func (s *Server) loggingMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			s.logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", httputil.ClientIP(r, s.cfg.TrustProxy),
			)
		})
	}
}
