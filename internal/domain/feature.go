package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Property keys used by hurricane datasets.
const (
	PropStormID     = "storm_id"
	PropName        = "name"
	PropTimestamp   = "timestamp"
	PropMaxWind     = "max_wind_kts"
	PropMinPressure = "min_pressure_mb"
	PropPointCount  = "point_count"
)

// GeoJSON geometry types handled by this service.
const (
	GeometryPoint      = "Point"
	GeometryLineString = "LineString"
)

// Position is a WGS-84 [longitude, latitude] pair.
type Position [2]float64

// Lon returns the longitude component.
func (p Position) Lon() float64 { return p[0] }

// Lat returns the latitude component.
func (p Position) Lat() float64 { return p[1] }

// Geometry is a GeoJSON geometry. Coordinates are kept as raw JSON so
// a collection can round-trip through the wire format without guessing
// the geometry type up front; use Point or LineString to decode them.
type Geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// NewPoint builds a Point geometry.
func NewPoint(lon, lat float64) Geometry {
	coords, _ := json.Marshal(Position{lon, lat})
	return Geometry{Type: GeometryPoint, Coordinates: coords}
}

// NewLineString builds a LineString geometry from ordered positions.
func NewLineString(positions []Position) Geometry {
	if positions == nil {
		positions = []Position{}
	}
	coords, _ := json.Marshal(positions)
	return Geometry{Type: GeometryLineString, Coordinates: coords}
}

// Point decodes the geometry as a single position.
func (g Geometry) Point() (Position, error) {
	if g.Type != GeometryPoint {
		return Position{}, fmt.Errorf("geometry is %q, not %q", g.Type, GeometryPoint)
	}
	var p Position
	if err := json.Unmarshal(g.Coordinates, &p); err != nil {
		return Position{}, fmt.Errorf("decode point coordinates: %w", err)
	}
	return p, nil
}

// LineString decodes the geometry as an ordered list of positions.
func (g Geometry) LineString() ([]Position, error) {
	if g.Type != GeometryLineString {
		return nil, fmt.Errorf("geometry is %q, not %q", g.Type, GeometryLineString)
	}
	var ps []Position
	if err := json.Unmarshal(g.Coordinates, &ps); err != nil {
		return nil, fmt.Errorf("decode line coordinates: %w", err)
	}
	return ps, nil
}

// Feature is a GeoJSON feature.
type Feature struct {
	Type       string         `json:"type"`
	ID         string         `json:"id,omitempty"`
	Geometry   Geometry       `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

// NewPointFeature builds a Point feature with the given properties.
func NewPointFeature(lon, lat float64, props map[string]any) Feature {
	if props == nil {
		props = map[string]any{}
	}
	return Feature{Type: "Feature", Geometry: NewPoint(lon, lat), Properties: props}
}

// NewLineFeature builds a LineString feature with the given properties.
func NewLineFeature(id string, positions []Position, props map[string]any) Feature {
	if props == nil {
		props = map[string]any{}
	}
	return Feature{Type: "Feature", ID: id, Geometry: NewLineString(positions), Properties: props}
}

// StringProp returns a string property, or "" when absent or not a string.
func (f Feature) StringProp(key string) string {
	s, _ := f.Properties[key].(string)
	return s
}

// FloatProp returns a numeric property. JSON numbers decode as float64;
// int is accepted for programmatically built features.
func (f Feature) FloatProp(key string) (float64, bool) {
	switch v := f.Properties[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case json.Number:
		n, err := v.Float64()
		return n, err == nil
	default:
		return 0, false
	}
}

// Timestamp parses the feature's timestamp property as RFC 3339.
func (f Feature) Timestamp() (time.Time, error) {
	s := f.StringProp(PropTimestamp)
	if s == "" {
		return time.Time{}, fmt.Errorf("feature %q has no %s property", f.ID, PropTimestamp)
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %s: %w", PropTimestamp, err)
	}
	return t, nil
}

// FeatureCollection is a GeoJSON feature collection.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// NewFeatureCollection creates an empty collection.
func NewFeatureCollection() FeatureCollection {
	return FeatureCollection{Type: "FeatureCollection", Features: []Feature{}}
}

// Add appends a feature to the collection.
func (fc *FeatureCollection) Add(f Feature) {
	fc.Features = append(fc.Features, f)
}

// Len returns the number of features.
func (fc FeatureCollection) Len() int { return len(fc.Features) }
