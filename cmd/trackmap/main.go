// Command trackmap serves an interactive hurricane-track map. It
// establishes a session with the remote feature-query service, fetches
// the configured dataset/year, and exposes the rendered view plus
// health, readiness, and metrics endpoints.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"

	"github.com/couchcryptid/storm-track-viewer/internal/adapter/geoquery"
	"github.com/couchcryptid/storm-track-viewer/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/storm-track-viewer/internal/adapter/kafka"
	"github.com/couchcryptid/storm-track-viewer/internal/config"
	"github.com/couchcryptid/storm-track-viewer/internal/observability"
	"github.com/couchcryptid/storm-track-viewer/internal/render"
	"github.com/couchcryptid/storm-track-viewer/internal/spatial"
	"github.com/couchcryptid/storm-track-viewer/internal/workflow"
)

type options struct {
	EnvFile string `short:"e" long:"env-file" description:"Path to a .env file to load before reading configuration"`
	Addr    string `short:"a" long:"addr"     description:"Listen address (overrides HTTP_ADDR)"`
	Dataset string `short:"d" long:"dataset"  description:"Dataset identifier (overrides DATASET)"`
	Year    int    `short:"y" long:"year"     description:"Year to visualize (overrides TRACK_YEAR)"`
}

func main() {
	var opts options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil {
			slog.Error("failed to load env file", "path", opts.EnvFile, "error", err)
			os.Exit(1)
		}
	} else {
		_ = godotenv.Load() // optional .env in the working directory
	}

	applyOverrides(opts)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	var styles *render.StyleSheet
	if cfg.StyleFile != "" {
		styles, err = render.LoadStyles(cfg.StyleFile)
		if err != nil {
			logger.Error("failed to load style presets", "path", cfg.StyleFile, "error", err)
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := geoquery.NewClient(geoquery.Config{
		BaseURL:         cfg.GeoQueryBaseURL,
		Token:           cfg.GeoQueryToken,
		CredentialsFile: cfg.CredentialsFile,
		Timeout:         cfg.GeoQueryTimeout,
		Metrics:         metrics,
		Logger:          logger,
	})
	if err := client.InitSession(ctx); err != nil {
		logger.Error("session initialization failed", "error", err)
		os.Exit(1)
	}

	executor := geoquery.NewCachedExecutor(client, cfg.GeoQueryCacheSize, metrics)

	// Optional track sink (feature-flagged via KAFKA_ENABLED).
	var publisher workflow.TrackPublisher
	var sink *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		sink = kafkaadapter.NewWriter(cfg, metrics, logger)
		publisher = sink
		logger.Info("kafka track sink enabled", "topic", cfg.KafkaTracksTopic)
	}

	index := spatial.NewIndex()
	wf := workflow.New(executor, index, workflow.Options{
		Dataset:         cfg.Dataset,
		Year:            cfg.TrackYear,
		RefreshInterval: cfg.RefreshInterval,
		Publisher:       publisher,
	}, logger, metrics)

	views := workflow.NewViewBuilder(wf, cfg.ViewLat, cfg.ViewLon, cfg.ViewZoom, styles)
	srv := httpadapter.NewServer(cfg.HTTPAddr, views, index, wf, metrics, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		if err := wf.Run(ctx); err != nil {
			logger.Error("workflow error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if sink != nil {
		if err := sink.Close(); err != nil {
			logger.Error("kafka sink close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

// applyOverrides maps command-line flags onto the environment before
// config.Load reads it, so one precedence order applies everywhere.
func applyOverrides(opts options) {
	if opts.Addr != "" {
		os.Setenv("HTTP_ADDR", opts.Addr)
	}
	if opts.Dataset != "" {
		os.Setenv("DATASET", opts.Dataset)
	}
	if opts.Year != 0 {
		os.Setenv("TRACK_YEAR", strconv.Itoa(opts.Year))
	}
}
