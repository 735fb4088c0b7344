package render

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-track-viewer/internal/domain"
)

func centerPointView(style Style) *View {
	fc := domain.NewFeatureCollection()
	fc.Add(domain.NewPointFeature(-53, 36, nil))

	layer, _ := NewLayer("points", &fc, style)
	v := NewView(36, -53, 3)
	v.AddLayer(layer)
	return v
}

func TestRenderImage_Dimensions(t *testing.T) {
	img, err := RenderImage(centerPointView(DefaultPointStyle()), 320, 200)
	require.NoError(t, err)

	bounds := img.Bounds()
	assert.Equal(t, 320, bounds.Dx())
	assert.Equal(t, 200, bounds.Dy())
}

func TestRenderImage_InvalidSize(t *testing.T) {
	_, err := RenderImage(centerPointView(DefaultPointStyle()), 0, 100)
	assert.Error(t, err)

	_, err = RenderImage(centerPointView(DefaultPointStyle()), 100, -1)
	assert.Error(t, err)
}

func TestRenderImage_PaintsCenteredPoint(t *testing.T) {
	style := Style{FillColor: Color{255, 0, 0, 255}, PointRadius: 5}

	img, err := RenderImage(centerPointView(style), 100, 100)
	require.NoError(t, err)

	// The feature sits at the camera center, so the middle pixel is
	// inside its circle.
	r, _, _, a := img.At(50, 50).RGBA()
	assert.NotZero(t, a, "center pixel should be painted")
	assert.NotZero(t, r)

	// A corner pixel is well outside the 5px radius.
	_, _, _, a = img.At(2, 2).RGBA()
	assert.Zero(t, a)
}

func TestRenderImage_PaintsTrackLine(t *testing.T) {
	fc := domain.NewFeatureCollection()
	fc.Add(domain.NewLineFeature("AL112017", []domain.Position{{-54, 36}, {-52, 36}}, nil))

	style := Style{LineColor: Color{0, 0, 255, 255}, LineWidth: 4}
	layer, err := NewLayer("tracks", &fc, style)
	require.NoError(t, err)

	v := NewView(36, -53, 5)
	v.AddLayer(layer)

	img, err := RenderImage(v, 200, 200)
	require.NoError(t, err)

	// The segment passes horizontally through the image center.
	_, _, b, a := img.At(100, 100).RGBA()
	assert.NotZero(t, a)
	assert.NotZero(t, b)
}

func TestRenderImage_SkipsDegenerateLine(t *testing.T) {
	fc := domain.NewFeatureCollection()
	fc.Add(domain.NewLineFeature("AL102017", []domain.Position{{-53, 36}}, nil))

	layer, err := NewLayer("tracks", &fc, DefaultTrackStyle())
	require.NoError(t, err)

	v := NewView(36, -53, 3)
	v.AddLayer(layer)

	// A single-vertex line has no segments to draw; rendering must not
	// fail on it.
	_, err = RenderImage(v, 100, 100)
	assert.NoError(t, err)
}

func TestWriteImage_PNG(t *testing.T) {
	img, err := RenderImage(centerPointView(DefaultPointStyle()), 64, 64)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteImage(&buf, img, "png"))

	decoded, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 64, decoded.Bounds().Dx())
}

func TestWriteImage_UnsupportedFormat(t *testing.T) {
	img, err := RenderImage(centerPointView(DefaultPointStyle()), 16, 16)
	require.NoError(t, err)

	var buf bytes.Buffer
	assert.Error(t, WriteImage(&buf, img, "bmp"))
}

func TestMercator_ClampsPolarLatitudes(t *testing.T) {
	_, yTop := mercator(0, 90, 256)
	_, yClamp := mercator(0, maxMercatorLat, 256)
	assert.Equal(t, yClamp, yTop)

	_, yBottom := mercator(0, -90, 256)
	_, yClampBottom := mercator(0, -maxMercatorLat, 256)
	assert.Equal(t, yClampBottom, yBottom)
}

func TestMercator_Equator(t *testing.T) {
	x, y := mercator(0, 0, 256)
	assert.InDelta(t, 128, x, 1e-9)
	assert.InDelta(t, 128, y, 1e-9)
}
