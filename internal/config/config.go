package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	// Remote feature-query service.
	GeoQueryBaseURL   string
	GeoQueryToken     string
	GeoQueryTimeout   time.Duration
	GeoQueryCacheSize int
	CredentialsFile   string

	// What to visualize.
	Dataset   string
	TrackYear int

	// Camera defaults for the map view.
	ViewLat  float64
	ViewLon  float64
	ViewZoom float64

	// Optional YAML style presets.
	StyleFile string

	// Periodic re-query; zero disables refresh.
	RefreshInterval time.Duration

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Optional Kafka track sink.
	KafkaEnabled     bool
	KafkaBrokers     []string
	KafkaTracksTopic string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	queryTimeout, err := parseDuration("GEOQUERY_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	refreshInterval, err := parseRefreshInterval()
	if err != nil {
		return nil, err
	}

	cacheSize, err := parsePositiveInt("GEOQUERY_CACHE_SIZE", 128)
	if err != nil {
		return nil, err
	}

	year, err := parsePositiveInt("TRACK_YEAR", 2017)
	if err != nil {
		return nil, err
	}

	viewLat, err := parseFloat("VIEW_LAT", 36)
	if err != nil {
		return nil, err
	}
	viewLon, err := parseFloat("VIEW_LON", -53)
	if err != nil {
		return nil, err
	}
	viewZoom, err := parseFloat("VIEW_ZOOM", 3)
	if err != nil {
		return nil, err
	}

	credsFile := os.Getenv("CREDENTIALS_FILE")
	if credsFile == "" {
		credsFile = defaultCredentialsFile()
	}

	kafkaEnabled := os.Getenv("KAFKA_ENABLED") == "true"

	cfg := &Config{
		GeoQueryBaseURL:   sharedcfg.EnvOrDefault("GEOQUERY_BASE_URL", "https://api.stormtracks.dev"),
		GeoQueryToken:     os.Getenv("GEOQUERY_TOKEN"),
		GeoQueryTimeout:   queryTimeout,
		GeoQueryCacheSize: cacheSize,
		CredentialsFile:   credsFile,

		Dataset:   sharedcfg.EnvOrDefault("DATASET", "noaa/hurricanes/atlantic"),
		TrackYear: year,

		ViewLat:  viewLat,
		ViewLon:  viewLon,
		ViewZoom: viewZoom,

		StyleFile:       os.Getenv("STYLE_FILE"),
		RefreshInterval: refreshInterval,

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		KafkaEnabled:     kafkaEnabled,
		KafkaBrokers:     sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTracksTopic: sharedcfg.EnvOrDefault("KAFKA_TRACKS_TOPIC", "storm-tracks"),
	}

	if cfg.GeoQueryBaseURL == "" {
		return nil, errors.New("GEOQUERY_BASE_URL is required")
	}
	if cfg.Dataset == "" {
		return nil, errors.New("DATASET is required")
	}
	if cfg.ViewLat < -90 || cfg.ViewLat > 90 {
		return nil, errors.New("VIEW_LAT must be within [-90, 90]")
	}
	if cfg.ViewLon < -180 || cfg.ViewLon > 180 {
		return nil, errors.New("VIEW_LON must be within [-180, 180]")
	}
	if cfg.ViewZoom < 0 || cfg.ViewZoom > 22 {
		return nil, errors.New("VIEW_ZOOM must be within [0, 22]")
	}
	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
		}
		if cfg.KafkaTracksTopic == "" {
			return nil, errors.New("KAFKA_ENABLED is true but KAFKA_TRACKS_TOPIC is empty")
		}
	}

	return cfg, nil
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

// parseRefreshInterval allows zero (refresh disabled) but rejects
// negative or unparsable values.
func parseRefreshInterval() (time.Duration, error) {
	s := os.Getenv("REFRESH_INTERVAL")
	if s == "" || s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, errors.New("invalid REFRESH_INTERVAL")
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parseFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return v, nil
}

func defaultCredentialsFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "credentials.json"
	}
	return filepath.Join(home, ".config", "storm-track-viewer", "credentials.json")
}
