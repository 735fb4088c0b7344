// Package render turns feature collections into styled display layers
// and renders a view of them as an interactive HTML map or a raster
// image.
package render

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Rendering modes for a display layer.
const (
	ModeVector = "vector"
	ModeRaster = "raster"
)

// Color is an RGBA quadruple, 0-255 per channel, serialized as a
// 4-element array the way deck.gl expects.
type Color [4]uint8

// Standard colors for the default hurricane view.
var (
	Black = Color{0, 0, 0, 255}
	Red   = Color{230, 57, 70, 255}
)

// Style enumerates the rendering options of a display layer.
type Style struct {
	FillColor   Color   `json:"fill_color" yaml:"fill_color"`
	LineColor   Color   `json:"line_color" yaml:"line_color"`
	LineWidth   float64 `json:"line_width_px" yaml:"line_width" validate:"gte=0"`
	PointRadius float64 `json:"point_radius_px" yaml:"point_radius" validate:"gte=0"`
	Stroked     bool    `json:"stroked" yaml:"stroked"`
	// AsRaster selects raster compositing instead of vector drawing.
	// It changes only how the layer is painted, never which collection
	// it references.
	AsRaster bool `json:"-" yaml:"as_raster"`
}

// Mode returns the rendering mode implied by the raster flag.
func (s Style) Mode() string {
	if s.AsRaster {
		return ModeRaster
	}
	return ModeVector
}

// DefaultPointStyle is the observation-point style: small black dots.
func DefaultPointStyle() Style {
	return Style{
		FillColor:   Black,
		LineColor:   Black,
		LineWidth:   1,
		PointRadius: 3,
	}
}

// DefaultTrackStyle is the storm-track style: red stroked lines.
func DefaultTrackStyle() Style {
	return Style{
		FillColor:   Red,
		LineColor:   Red,
		LineWidth:   2,
		PointRadius: 2,
		Stroked:     true,
	}
}

// StyleSheet holds named style presets loaded from a YAML file.
type StyleSheet struct {
	Presets map[string]Style `yaml:"presets" validate:"dive"`
}

// Preset returns a named preset, or the fallback when the sheet is nil
// or the name is absent.
func (s *StyleSheet) Preset(name string, fallback Style) Style {
	if s == nil {
		return fallback
	}
	if style, ok := s.Presets[name]; ok {
		return style
	}
	return fallback
}

// LoadStyles reads and validates a YAML style-preset file.
func LoadStyles(path string) (*StyleSheet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read style file: %w", err)
	}

	var sheet StyleSheet
	if err := yaml.Unmarshal(data, &sheet); err != nil {
		return nil, fmt.Errorf("parse style file: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(sheet); err != nil {
		return nil, fmt.Errorf("invalid style file: %w", err)
	}
	return &sheet, nil
}
