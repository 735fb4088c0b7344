package render

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-track-viewer/internal/domain"
)

func sampleCollection() *domain.FeatureCollection {
	fc := domain.NewFeatureCollection()
	fc.Add(domain.NewPointFeature(-81.5, 24.5, map[string]any{domain.PropStormID: "AL112017"}))
	return &fc
}

func TestNewLayer_Validation(t *testing.T) {
	_, err := NewLayer("", sampleCollection(), DefaultPointStyle())
	assert.Error(t, err)

	_, err = NewLayer("points", nil, DefaultPointStyle())
	assert.Error(t, err)

	layer, err := NewLayer("points", sampleCollection(), DefaultPointStyle())
	require.NoError(t, err)
	assert.Equal(t, "points", layer.ID)
}

func TestView_LayerLookupAndOrder(t *testing.T) {
	fc := sampleCollection()
	tracks, err := NewLayer("tracks", fc, DefaultTrackStyle())
	require.NoError(t, err)
	points, err := NewLayer("points", fc, DefaultPointStyle())
	require.NoError(t, err)

	v := NewView(36, -53, 3)
	v.AddLayer(tracks)
	v.AddLayer(points)

	require.Len(t, v.Layers(), 2)
	assert.Equal(t, "tracks", v.Layers()[0].ID)
	assert.Equal(t, "points", v.Layers()[1].ID)

	got, ok := v.Layer("points")
	require.True(t, ok)
	assert.Equal(t, points, got)

	_, ok = v.Layer("labels")
	assert.False(t, ok)
}

func TestView_SpecPreservesPaintOrder(t *testing.T) {
	fc := sampleCollection()
	tracks, err := NewLayer("tracks", fc, DefaultTrackStyle())
	require.NoError(t, err)
	points, err := NewLayer("points", fc, DefaultPointStyle())
	require.NoError(t, err)

	v := NewView(36, -53, 3)
	v.AddLayer(tracks)
	v.AddLayer(points)

	spec := v.Spec()
	assert.Equal(t, 36.0, spec.InitialViewState.Latitude)
	assert.Equal(t, -53.0, spec.InitialViewState.Longitude)
	assert.Equal(t, 3.0, spec.InitialViewState.Zoom)

	require.Len(t, spec.Layers, 2)
	assert.Equal(t, "tracks", spec.Layers[0].ID)
	assert.Equal(t, "points", spec.Layers[1].ID)
	assert.Equal(t, 1, spec.Layers[0].Data.Len())
}

func TestRasterFlag_ChangesOnlyMode(t *testing.T) {
	fc := sampleCollection()

	vectorStyle := DefaultPointStyle()
	rasterStyle := DefaultPointStyle()
	rasterStyle.AsRaster = true

	vectorLayer, err := NewLayer("points", fc, vectorStyle)
	require.NoError(t, err)
	rasterLayer, err := NewLayer("points", fc, rasterStyle)
	require.NoError(t, err)

	// Both layers resolve to the same collection; the flag switches
	// only the rendering mode.
	assert.Same(t, vectorLayer.Collection, rasterLayer.Collection)
	assert.Equal(t, ModeVector, vectorLayer.Style.Mode())
	assert.Equal(t, ModeRaster, rasterLayer.Style.Mode())
}

func TestViewSpec_WireFormat(t *testing.T) {
	layer, err := NewLayer("points", sampleCollection(), DefaultPointStyle())
	require.NoError(t, err)

	v := NewView(36, -53, 3)
	v.AddLayer(layer)

	data, err := json.Marshal(v.Spec())
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Contains(t, decoded, "initial_view_state")
	layers, ok := decoded["layers"].([]any)
	require.True(t, ok)
	require.Len(t, layers, 1)

	first, ok := layers[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "points", first["id"])
	assert.Equal(t, "vector", first["mode"])
	assert.Contains(t, first, "fill_color")
	assert.Contains(t, first, "point_radius_px")
	assert.Contains(t, first, "data")
}
