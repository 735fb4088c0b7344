package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"

	"github.com/chai2010/webp"
	"golang.org/x/image/vector"

	"github.com/couchcryptid/storm-track-viewer/internal/domain"
)

// maxMercatorLat bounds the Web Mercator projection; latitudes beyond
// it are clamped to the edge of the projected square.
const maxMercatorLat = 85.05112878

const tileSize = 256.0

// RenderImage composites the view's layers into an RGBA image using a
// Web Mercator projection centered on the view camera. Layers are
// painted in list order, earlier beneath later.
func RenderImage(v *View, width, height int) (*image.RGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid image size %dx%d", width, height)
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	proj := newProjection(v, width, height)

	for _, layer := range v.Layers() {
		if err := paintLayer(img, proj, layer); err != nil {
			return nil, fmt.Errorf("layer %q: %w", layer.ID, err)
		}
	}
	return img, nil
}

// WriteImage encodes an image as "png" or "webp".
func WriteImage(w io.Writer, img image.Image, format string) error {
	switch format {
	case "png":
		return png.Encode(w, img)
	case "webp":
		return webp.Encode(w, img, &webp.Options{Lossless: true})
	default:
		return fmt.Errorf("unsupported image format %q", format)
	}
}

// projection maps WGS-84 coordinates to image pixels.
type projection struct {
	worldSize float64 // pixels across the projected world at this zoom
	originX   float64 // world-pixel position of the image's top-left corner
	originY   float64
}

func newProjection(v *View, width, height int) projection {
	worldSize := tileSize * math.Exp2(v.Zoom)
	cx, cy := mercator(v.Longitude, v.Latitude, worldSize)
	return projection{
		worldSize: worldSize,
		originX:   cx - float64(width)/2,
		originY:   cy - float64(height)/2,
	}
}

func (p projection) pixel(pos domain.Position) (x, y float64) {
	wx, wy := mercator(pos.Lon(), pos.Lat(), p.worldSize)
	return wx - p.originX, wy - p.originY
}

// mercator projects lon/lat to world pixels, clamping latitude to the
// projectable range.
func mercator(lon, lat float64, worldSize float64) (x, y float64) {
	if lat > maxMercatorLat {
		lat = maxMercatorLat
	} else if lat < -maxMercatorLat {
		lat = -maxMercatorLat
	}

	x = (lon + 180) / 360 * worldSize

	latRad := lat * math.Pi / 180
	mercY := math.Log(math.Tan(latRad) + 1/math.Cos(latRad))
	y = (1 - mercY/math.Pi) / 2 * worldSize
	return x, y
}

func paintLayer(img *image.RGBA, proj projection, layer Layer) error {
	for _, f := range layer.Collection.Features {
		switch f.Geometry.Type {
		case domain.GeometryPoint:
			pos, err := f.Geometry.Point()
			if err != nil {
				return err
			}
			x, y := proj.pixel(pos)
			fillCircle(img, x, y, layer.Style.PointRadius, layer.Style.FillColor)
			if layer.Style.Stroked && layer.Style.LineWidth > 0 {
				strokeCircle(img, x, y, layer.Style.PointRadius, layer.Style.LineWidth, layer.Style.LineColor)
			}

		case domain.GeometryLineString:
			positions, err := f.Geometry.LineString()
			if err != nil {
				return err
			}
			for i := 1; i < len(positions); i++ {
				x0, y0 := proj.pixel(positions[i-1])
				x1, y1 := proj.pixel(positions[i])
				fillSegment(img, x0, y0, x1, y1, layer.Style.LineWidth, layer.Style.LineColor)
			}

		default:
			// Other geometry types are not produced by this service.
		}
	}
	return nil
}

const circleSegments = 24

func fillCircle(img *image.RGBA, cx, cy, radius float64, c Color) {
	if radius <= 0 {
		return
	}
	r := vector.NewRasterizer(img.Bounds().Dx(), img.Bounds().Dy())
	circlePath(r, cx, cy, radius)
	rasterize(r, img, c)
}

func strokeCircle(img *image.RGBA, cx, cy, radius, width float64, c Color) {
	r := vector.NewRasterizer(img.Bounds().Dx(), img.Bounds().Dy())
	// Outer ring clockwise, inner ring counter-clockwise; the non-zero
	// fill rule leaves an annulus.
	circlePath(r, cx, cy, radius+width/2)
	circlePathReverse(r, cx, cy, math.Max(radius-width/2, 0))
	rasterize(r, img, c)
}

func fillSegment(img *image.RGBA, x0, y0, x1, y1, width float64, c Color) {
	if width <= 0 {
		return
	}
	dx, dy := x1-x0, y1-y0
	length := math.Hypot(dx, dy)
	if length == 0 {
		fillCircle(img, x0, y0, width/2, c)
		return
	}
	// Unit normal scaled to half the stroke width.
	nx := -dy / length * width / 2
	ny := dx / length * width / 2

	r := vector.NewRasterizer(img.Bounds().Dx(), img.Bounds().Dy())
	r.MoveTo(float32(x0+nx), float32(y0+ny))
	r.LineTo(float32(x1+nx), float32(y1+ny))
	r.LineTo(float32(x1-nx), float32(y1-ny))
	r.LineTo(float32(x0-nx), float32(y0-ny))
	r.ClosePath()
	rasterize(r, img, c)
}

func circlePath(r *vector.Rasterizer, cx, cy, radius float64) {
	r.MoveTo(float32(cx+radius), float32(cy))
	for i := 1; i <= circleSegments; i++ {
		angle := 2 * math.Pi * float64(i) / circleSegments
		r.LineTo(float32(cx+radius*math.Cos(angle)), float32(cy+radius*math.Sin(angle)))
	}
	r.ClosePath()
}

func circlePathReverse(r *vector.Rasterizer, cx, cy, radius float64) {
	if radius <= 0 {
		return
	}
	r.MoveTo(float32(cx+radius), float32(cy))
	for i := circleSegments - 1; i >= 0; i-- {
		angle := 2 * math.Pi * float64(i) / circleSegments
		r.LineTo(float32(cx+radius*math.Cos(angle)), float32(cy+radius*math.Sin(angle)))
	}
	r.ClosePath()
}

func rasterize(r *vector.Rasterizer, img *image.RGBA, c Color) {
	src := image.NewUniform(color.RGBA{R: c[0], G: c[1], B: c[2], A: c[3]})
	r.DrawOp = draw.Over
	r.Draw(img, img.Bounds(), src, image.Point{})
}
