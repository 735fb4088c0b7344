package render

import (
	"fmt"

	"github.com/couchcryptid/storm-track-viewer/internal/domain"
)

// Layer binds a feature collection to a style. The collection must be
// resolvable (non-nil); the binding itself holds no other invariants.
type Layer struct {
	ID         string
	Collection *domain.FeatureCollection
	Style      Style
}

// NewLayer creates a display layer.
func NewLayer(id string, fc *domain.FeatureCollection, style Style) (Layer, error) {
	if id == "" {
		return Layer{}, fmt.Errorf("layer requires an id")
	}
	if fc == nil {
		return Layer{}, fmt.Errorf("layer %q references no collection", id)
	}
	return Layer{ID: id, Collection: fc, Style: style}, nil
}

// View is the camera configuration plus the ordered layer list.
// Layer order determines paint order: earlier layers are drawn first,
// beneath later ones.
type View struct {
	Latitude  float64
	Longitude float64
	Zoom      float64

	layers []Layer
}

// NewView creates a view centered on (lat, lon) at the given zoom.
func NewView(lat, lon, zoom float64) *View {
	return &View{Latitude: lat, Longitude: lon, Zoom: zoom}
}

// AddLayer appends a layer to the paint list.
func (v *View) AddLayer(l Layer) {
	v.layers = append(v.layers, l)
}

// Layers returns the layers in paint order.
func (v *View) Layers() []Layer {
	return v.layers
}

// Layer returns a layer by id.
func (v *View) Layer(id string) (Layer, bool) {
	for _, l := range v.layers {
		if l.ID == id {
			return l, true
		}
	}
	return Layer{}, false
}

// ViewState is the serialized camera configuration.
type ViewState struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Zoom      float64 `json:"zoom"`
}

// LayerSpec is the serialized form of a layer handed to the front end.
type LayerSpec struct {
	ID   string `json:"id"`
	Mode string `json:"mode"`
	Style
	Data domain.FeatureCollection `json:"data"`
}

// ViewSpec is the complete scene descriptor consumed by the map page.
type ViewSpec struct {
	InitialViewState ViewState   `json:"initial_view_state"`
	Layers           []LayerSpec `json:"layers"`
}

// Spec serializes the view with layer data inlined, in paint order.
func (v *View) Spec() ViewSpec {
	spec := ViewSpec{
		InitialViewState: ViewState{Latitude: v.Latitude, Longitude: v.Longitude, Zoom: v.Zoom},
		Layers:           make([]LayerSpec, 0, len(v.layers)),
	}
	for _, l := range v.layers {
		spec.Layers = append(spec.Layers, LayerSpec{
			ID:    l.ID,
			Mode:  l.Style.Mode(),
			Style: l.Style,
			Data:  *l.Collection,
		})
	}
	return spec
}
