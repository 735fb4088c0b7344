package workflow

import (
	"errors"

	"github.com/couchcryptid/storm-track-viewer/internal/render"
)

// Layer identifiers for the hurricane view. Tracks are painted first
// so the observation points land on top.
const (
	TrackLayerID = "storm-tracks"
	PointLayerID = "storm-points"
)

// ErrNoData is returned when a view is requested before the first
// refresh has completed.
var ErrNoData = errors.New("no data loaded yet")

// ViewBuilder assembles the styled view from the latest snapshot.
type ViewBuilder struct {
	workflow *Workflow
	lat      float64
	lon      float64
	zoom     float64
	styles   *render.StyleSheet // nil means defaults
}

// NewViewBuilder creates a builder with the given camera and optional
// style presets ("tracks" and "points").
func NewViewBuilder(w *Workflow, lat, lon, zoom float64, styles *render.StyleSheet) *ViewBuilder {
	return &ViewBuilder{workflow: w, lat: lat, lon: lon, zoom: zoom, styles: styles}
}

// View builds the two-layer hurricane view: red track lines beneath
// black observation points.
func (b *ViewBuilder) View() (*render.View, error) {
	snap, ok := b.workflow.Snapshot()
	if !ok {
		return nil, ErrNoData
	}

	trackLayer, err := render.NewLayer(TrackLayerID, &snap.Tracks, b.styles.Preset("tracks", render.DefaultTrackStyle()))
	if err != nil {
		return nil, err
	}
	pointLayer, err := render.NewLayer(PointLayerID, &snap.Points, b.styles.Preset("points", render.DefaultPointStyle()))
	if err != nil {
		return nil, err
	}

	view := render.NewView(b.lat, b.lon, b.zoom)
	view.AddLayer(trackLayer)
	view.AddLayer(pointLayer)
	return view, nil
}
