// Package httpadapter serves the interactive map plus the operational
// endpoints (health, readiness, metrics).
package httpadapter

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/storm-track-viewer/internal/domain"
	"github.com/couchcryptid/storm-track-viewer/internal/observability"
	"github.com/couchcryptid/storm-track-viewer/internal/render"
)

// ViewSource builds the current styled view.
type ViewSource interface {
	View() (*render.View, error)
}

// PointSearcher answers viewport bounding-box queries.
type PointSearcher interface {
	SearchBox(minLon, minLat, maxLon, maxLat float64) ([]domain.Feature, error)
}

// Server exposes the map page, the view/layer API, and ops routes.
type Server struct {
	httpServer *http.Server
	views      ViewSource
	points     PointSearcher
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewServer wires the chi router.
func NewServer(addr string, views ViewSource, points PointSearcher, ready sharedobs.ReadinessChecker, metrics *observability.Metrics, logger *slog.Logger) *Server {
	s := &Server{
		views:   views,
		points:  points,
		metrics: metrics,
		logger:  logger,
	}

	r := chi.NewRouter()
	r.Use(requestLogger(logger))

	r.Get("/", s.handleMapPage)
	r.Get("/api/view", s.handleViewSpec)
	r.Get("/api/layers/{id}", s.handleLayer)
	r.Get("/api/points", s.handlePoints)

	r.Get("/healthz", sharedobs.LivenessHandler())
	r.Get("/readyz", sharedobs.ReadinessHandler(ready))
	r.Handle("/metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}
