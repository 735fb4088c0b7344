package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeometry_PointRoundTrip(t *testing.T) {
	g := NewPoint(-75.5, 28.1)
	assert.Equal(t, GeometryPoint, g.Type)

	pos, err := g.Point()
	require.NoError(t, err)
	assert.Equal(t, -75.5, pos.Lon())
	assert.Equal(t, 28.1, pos.Lat())
}

func TestGeometry_LineStringRoundTrip(t *testing.T) {
	positions := []Position{{-75.5, 28.1}, {-76.0, 28.9}, {-76.4, 29.6}}
	g := NewLineString(positions)
	assert.Equal(t, GeometryLineString, g.Type)

	got, err := g.LineString()
	require.NoError(t, err)
	assert.Equal(t, positions, got)
}

func TestGeometry_TypeMismatch(t *testing.T) {
	_, err := NewPoint(0, 0).LineString()
	assert.Error(t, err)

	_, err = NewLineString(nil).Point()
	assert.Error(t, err)
}

func TestFeature_DecodeFromWire(t *testing.T) {
	raw := `{
		"type": "Feature",
		"geometry": {"type": "Point", "coordinates": [-79.9, 25.4]},
		"properties": {
			"storm_id": "AL112017",
			"name": "IRMA",
			"timestamp": "2017-09-10T13:00:00Z",
			"max_wind_kts": 115
		}
	}`

	var f Feature
	require.NoError(t, json.Unmarshal([]byte(raw), &f))

	pos, err := f.Geometry.Point()
	require.NoError(t, err)
	assert.Equal(t, Position{-79.9, 25.4}, pos)

	assert.Equal(t, "AL112017", f.StringProp(PropStormID))
	assert.Equal(t, "IRMA", f.StringProp(PropName))

	wind, ok := f.FloatProp(PropMaxWind)
	require.True(t, ok)
	assert.Equal(t, 115.0, wind)

	ts, err := f.Timestamp()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2017, 9, 10, 13, 0, 0, 0, time.UTC), ts)
}

func TestFeature_Timestamp_Errors(t *testing.T) {
	f := NewPointFeature(0, 0, nil)
	_, err := f.Timestamp()
	assert.Error(t, err)

	f.Properties[PropTimestamp] = "yesterday"
	_, err = f.Timestamp()
	assert.Error(t, err)
}

func TestFeature_FloatProp_Types(t *testing.T) {
	f := NewPointFeature(0, 0, map[string]any{
		"float":  982.0,
		"int":    40,
		"string": "982",
	})

	v, ok := f.FloatProp("float")
	assert.True(t, ok)
	assert.Equal(t, 982.0, v)

	v, ok = f.FloatProp("int")
	assert.True(t, ok)
	assert.Equal(t, 40.0, v)

	_, ok = f.FloatProp("string")
	assert.False(t, ok)

	_, ok = f.FloatProp("missing")
	assert.False(t, ok)
}

func TestFeatureCollection_MarshalShape(t *testing.T) {
	fc := NewFeatureCollection()
	fc.Add(NewPointFeature(-80, 25, map[string]any{PropStormID: "AL011851"}))

	data, err := json.Marshal(fc)
	require.NoError(t, err)

	assert.Contains(t, string(data), `"type":"FeatureCollection"`)
	assert.Contains(t, string(data), `"coordinates":[-80,25]`)
	assert.Equal(t, 1, fc.Len())
}

func TestNewLineFeature_NilPositions(t *testing.T) {
	f := NewLineFeature("AL012020", nil, nil)

	positions, err := f.Geometry.LineString()
	require.NoError(t, err)
	assert.Empty(t, positions)
	assert.Equal(t, "AL012020", f.ID)
}
