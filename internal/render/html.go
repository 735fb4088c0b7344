package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io"

	"github.com/tdewolff/minify/v2"
	minhtml "github.com/tdewolff/minify/v2/html"
)

// pageTemplate is a self-contained deck.gl page. The scene descriptor
// is embedded as JSON; raster-mode layers are composited through a
// GeoJsonLayer with screen-space units disabled by the front end, so
// both modes round-trip through the same descriptor.
const pageTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<script src="https://unpkg.com/deck.gl@9.1.0/dist.min.js"></script>
<style>
  html, body { margin: 0; padding: 0; height: 100%; background: #0b1021; }
  #map { position: absolute; inset: 0; }
</style>
</head>
<body>
<div id="map"></div>
<script>
  const spec = {{.Spec}};
  const layers = spec.layers.map(l => new deck.GeoJsonLayer({
    id: l.id,
    data: l.data,
    stroked: l.stroked,
    filled: true,
    getFillColor: l.fill_color,
    getLineColor: l.line_color,
    getLineWidth: l.line_width_px,
    lineWidthUnits: "pixels",
    getPointRadius: l.point_radius_px,
    pointRadiusUnits: "pixels",
    parameters: l.mode === "raster" ? { depthTest: false } : {},
  }));
  new deck.DeckGL({
    container: "map",
    initialViewState: spec.initial_view_state,
    controller: true,
    layers: layers,
  });
</script>
</body>
</html>
`

var page = template.Must(template.New("map").Parse(pageTemplate))

// WriteHTML renders the view as a minified, self-contained HTML map
// page.
func WriteHTML(w io.Writer, v *View, title string) error {
	specJSON, err := json.Marshal(v.Spec())
	if err != nil {
		return fmt.Errorf("serialize view spec: %w", err)
	}

	var buf bytes.Buffer
	err = page.Execute(&buf, struct {
		Title string
		Spec  template.JS
	}{Title: title, Spec: template.JS(specJSON)})
	if err != nil {
		return fmt.Errorf("render page: %w", err)
	}

	m := minify.New()
	m.AddFunc("text/html", minhtml.Minify)
	if err := m.Minify("text/html", w, &buf); err != nil {
		return fmt.Errorf("minify page: %w", err)
	}
	return nil
}
