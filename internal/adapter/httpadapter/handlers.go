package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/couchcryptid/storm-track-viewer/internal/render"
	"github.com/couchcryptid/storm-track-viewer/internal/workflow"
)

func (s *Server) handleMapPage(w http.ResponseWriter, r *http.Request) {
	view, err := s.views.View()
	if err != nil {
		s.viewError(w, err)
		return
	}

	start := time.Now()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := render.WriteHTML(w, view, "Storm Tracks"); err != nil {
		s.logger.Error("render map page failed", "error", err)
		return
	}
	s.metrics.RenderDuration.WithLabelValues("html").Observe(time.Since(start).Seconds())
}

func (s *Server) handleViewSpec(w http.ResponseWriter, r *http.Request) {
	view, err := s.views.View()
	if err != nil {
		s.viewError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view.Spec())
}

func (s *Server) handleLayer(w http.ResponseWriter, r *http.Request) {
	view, err := s.views.View()
	if err != nil {
		s.viewError(w, err)
		return
	}

	id := chi.URLParam(r, "id")
	layer, ok := view.Layer(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": fmt.Sprintf("unknown layer %q", id)})
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(layer.Collection) //nolint:errcheck // best-effort response
}

// handlePoints answers ?bbox=minLon,minLat,maxLon,maxLat viewport queries.
func (s *Server) handlePoints(w http.ResponseWriter, r *http.Request) {
	minLon, minLat, maxLon, maxLat, err := parseBBox(r.URL.Query().Get("bbox"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	features, err := s.points.SearchBox(minLon, minLat, maxLon, maxLat)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	fc := map[string]any{"type": "FeatureCollection", "features": features}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(fc) //nolint:errcheck // best-effort response
}

func (s *Server) viewError(w http.ResponseWriter, err error) {
	if errors.Is(err, workflow.ErrNoData) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	s.logger.Error("build view failed", "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func parseBBox(raw string) (minLon, minLat, maxLon, maxLat float64, err error) {
	parts := strings.Split(raw, ",")
	if raw == "" || len(parts) != 4 {
		return 0, 0, 0, 0, fmt.Errorf("bbox must be minLon,minLat,maxLon,maxLat")
	}

	vals := make([]float64, 4)
	for i, p := range parts {
		vals[i], err = strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return 0, 0, 0, 0, fmt.Errorf("bbox component %d: %w", i, err)
		}
	}
	return vals[0], vals[1], vals[2], vals[3], nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
