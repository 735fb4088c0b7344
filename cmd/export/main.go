// Command export is a one-shot renderer. It fetches (or locally
// evaluates) a year of hurricane data and writes the view as an HTML
// map page, GeoJSON files, or a raster image, then exits.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"

	"github.com/couchcryptid/storm-track-viewer/internal/adapter/geoquery"
	"github.com/couchcryptid/storm-track-viewer/internal/config"
	"github.com/couchcryptid/storm-track-viewer/internal/domain"
	"github.com/couchcryptid/storm-track-viewer/internal/observability"
	"github.com/couchcryptid/storm-track-viewer/internal/query"
	"github.com/couchcryptid/storm-track-viewer/internal/render"
	"github.com/couchcryptid/storm-track-viewer/internal/workflow"
)

type options struct {
	Input      string `short:"i" long:"input"       description:"Local GeoJSON file to evaluate instead of querying the remote service"`
	Dataset    string `short:"d" long:"dataset"     description:"Dataset identifier (overrides DATASET)"`
	Year       int    `short:"y" long:"year"        description:"Year to export (overrides TRACK_YEAR)"`
	HTMLOut    string `short:"o" long:"html"        description:"Write the interactive map page to this file"`
	GeoJSONDir string `long:"geojson-dir"           description:"Write points.geojson and tracks.geojson into this directory"`
	ImageOut   string `long:"image"                 description:"Render a raster image to this file (.png or .webp)"`
	Width      int    `long:"width"  default:"1280" description:"Raster image width in pixels"`
	Height     int    `long:"height" default:"720"  description:"Raster image height in pixels"`
}

func main() {
	if err := run(); err != nil {
		slog.Error("export failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		return err
	}
	if opts.HTMLOut == "" && opts.GeoJSONDir == "" && opts.ImageOut == "" {
		return fmt.Errorf("nothing to export: pass --html, --geojson-dir, or --image")
	}

	_ = godotenv.Load()
	if opts.Dataset != "" {
		os.Setenv("DATASET", opts.Dataset)
	}
	if opts.Year != 0 {
		os.Setenv("TRACK_YEAR", fmt.Sprint(opts.Year))
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewUnregisteredMetrics()

	var styles *render.StyleSheet
	if cfg.StyleFile != "" {
		styles, err = render.LoadStyles(cfg.StyleFile)
		if err != nil {
			return fmt.Errorf("load style presets: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	points, tracks, err := fetch(ctx, opts, cfg, metrics, logger)
	if err != nil {
		return err
	}
	logger.Info("data loaded", "dataset", cfg.Dataset, "year", cfg.TrackYear,
		"points", points.Len(), "tracks", tracks.Len())

	trackLayer, err := render.NewLayer(workflow.TrackLayerID, &tracks, styles.Preset("tracks", render.DefaultTrackStyle()))
	if err != nil {
		return err
	}
	pointLayer, err := render.NewLayer(workflow.PointLayerID, &points, styles.Preset("points", render.DefaultPointStyle()))
	if err != nil {
		return err
	}
	view := render.NewView(cfg.ViewLat, cfg.ViewLon, cfg.ViewZoom)
	view.AddLayer(trackLayer)
	view.AddLayer(pointLayer)

	if opts.HTMLOut != "" {
		if err := writeHTML(view, opts.HTMLOut, cfg.TrackYear); err != nil {
			return err
		}
		logger.Info("wrote map page", "path", opts.HTMLOut)
	}
	if opts.GeoJSONDir != "" {
		if err := writeGeoJSON(opts.GeoJSONDir, points, tracks); err != nil {
			return err
		}
		logger.Info("wrote geojson", "dir", opts.GeoJSONDir)
	}
	if opts.ImageOut != "" {
		if err := writeRaster(view, opts.ImageOut, opts.Width, opts.Height, metrics); err != nil {
			return err
		}
		logger.Info("wrote raster image", "path", opts.ImageOut)
	}
	return nil
}

// fetch resolves the points and tracks collections, either by posting
// the pipelines to the remote service or, with --input, by evaluating
// them against a local GeoJSON file.
func fetch(ctx context.Context, opts options, cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) (points, tracks domain.FeatureCollection, err error) {
	pointsPipeline := query.PointsForYear(cfg.Dataset, cfg.TrackYear)
	tracksPipeline := query.TracksForYear(cfg.Dataset, cfg.TrackYear)

	if opts.Input != "" {
		data, err := os.ReadFile(opts.Input)
		if err != nil {
			return points, tracks, fmt.Errorf("read input: %w", err)
		}
		var fc domain.FeatureCollection
		if err := json.Unmarshal(data, &fc); err != nil {
			return points, tracks, fmt.Errorf("parse input: %w", err)
		}
		if points, err = query.Evaluate(fc, pointsPipeline); err != nil {
			return points, tracks, fmt.Errorf("evaluate points: %w", err)
		}
		if tracks, err = query.Evaluate(fc, tracksPipeline); err != nil {
			return points, tracks, fmt.Errorf("evaluate tracks: %w", err)
		}
		return points, tracks, nil
	}

	client := geoquery.NewClient(geoquery.Config{
		BaseURL:         cfg.GeoQueryBaseURL,
		Token:           cfg.GeoQueryToken,
		CredentialsFile: cfg.CredentialsFile,
		Timeout:         cfg.GeoQueryTimeout,
		Metrics:         metrics,
		Logger:          logger,
	})
	if err := client.InitSession(ctx); err != nil {
		return points, tracks, fmt.Errorf("init session: %w", err)
	}

	if points, err = client.Execute(ctx, pointsPipeline); err != nil {
		return points, tracks, fmt.Errorf("fetch points: %w", err)
	}
	if tracks, err = client.Execute(ctx, tracksPipeline); err != nil {
		return points, tracks, fmt.Errorf("fetch tracks: %w", err)
	}
	return points, tracks, nil
}

func writeHTML(view *render.View, path string, year int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if err := render.WriteHTML(f, view, fmt.Sprintf("Storm Tracks %d", year)); err != nil {
		return err
	}
	return f.Close()
}

func writeGeoJSON(dir string, points, tracks domain.FeatureCollection) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	for name, fc := range map[string]domain.FeatureCollection{
		"points.geojson": points,
		"tracks.geojson": tracks,
	} {
		data, err := json.MarshalIndent(fc, "", "  ")
		if err != nil {
			return fmt.Errorf("serialize %s: %w", name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return nil
}

func writeRaster(view *render.View, path string, width, height int, metrics *observability.Metrics) error {
	format := ""
	switch filepath.Ext(path) {
	case ".png":
		format = "png"
	case ".webp":
		format = "webp"
	default:
		return fmt.Errorf("image output must end in .png or .webp, got %q", path)
	}

	start := time.Now()
	img, err := render.RenderImage(view, width, height)
	if err != nil {
		return err
	}
	metrics.RenderDuration.WithLabelValues("raster").Observe(time.Since(start).Seconds())

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if err := render.WriteImage(f, img, format); err != nil {
		return err
	}
	return f.Close()
}
