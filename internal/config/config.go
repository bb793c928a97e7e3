package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// HistoryDays is the only history length the forecaster accepts.
const HistoryDays = 14

// Config holds all service settings, populated from environment variables.
type Config struct {
	APIBaseURL      string
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	HistoryDays    int
	SettleDelay    time.Duration
	CaptureMaxEdge int

	// Tile render surface.
	TileURL  string
	TileZoom int
	TileGrid int

	// Place search (Nominatim-compatible geocoder).
	GeocoderURL       string
	GeocoderTimeout   time.Duration
	GeocoderCacheSize int
	GeocoderCountry   string

	// Result publishing.
	KafkaEnabled     bool
	KafkaBrokers     []string
	KafkaResultTopic string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	settleDelay, err := parseDuration("SETTLE_DELAY", "300ms", true)
	if err != nil {
		return nil, err
	}
	geocoderTimeout, err := parseDuration("GEOCODER_TIMEOUT", "5s", false)
	if err != nil {
		return nil, err
	}

	historyDays, err := parseInt("HISTORY_DAYS", HistoryDays)
	if err != nil {
		return nil, err
	}
	if historyDays != HistoryDays {
		return nil, fmt.Errorf("HISTORY_DAYS must be %d, got %d", HistoryDays, historyDays)
	}

	maxEdge, err := parseInt("CAPTURE_MAX_EDGE", 1024)
	if err != nil {
		return nil, err
	}
	tileZoom, err := parseInt("TILE_ZOOM", 14)
	if err != nil {
		return nil, err
	}
	tileGrid, err := parseInt("TILE_GRID", 3)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		APIBaseURL:      sharedcfg.EnvOrDefault("API_BASE_URL", "http://localhost:5000/api"),
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		HistoryDays:    historyDays,
		SettleDelay:    settleDelay,
		CaptureMaxEdge: maxEdge,

		TileURL:  sharedcfg.EnvOrDefault("TILE_URL", "https://server.arcgisonline.com/ArcGIS/rest/services/World_Imagery/MapServer/tile/{z}/{y}/{x}"),
		TileZoom: tileZoom,
		TileGrid: tileGrid,

		GeocoderURL:       sharedcfg.EnvOrDefault("GEOCODER_URL", "https://nominatim.openstreetmap.org"),
		GeocoderTimeout:   geocoderTimeout,
		GeocoderCacheSize: parseCacheSize(),
		GeocoderCountry:   os.Getenv("GEOCODER_COUNTRY"),

		KafkaEnabled:     os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:     sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaResultTopic: sharedcfg.EnvOrDefault("KAFKA_RESULT_TOPIC", "wildfire-analysis-results"),
	}

	if u, err := url.Parse(cfg.APIBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.New("API_BASE_URL must be an absolute URL")
	}
	if cfg.CaptureMaxEdge < 0 {
		return nil, errors.New("CAPTURE_MAX_EDGE must not be negative")
	}
	if cfg.TileZoom < 0 || cfg.TileZoom > 20 {
		return nil, errors.New("TILE_ZOOM must be between 0 and 20")
	}
	if cfg.TileGrid < 1 || cfg.TileGrid%2 == 0 {
		return nil, errors.New("TILE_GRID must be a positive odd number")
	}
	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
		}
		if cfg.KafkaResultTopic == "" {
			return nil, errors.New("KAFKA_RESULT_TOPIC is required when KAFKA_ENABLED is true")
		}
	}

	return cfg, nil
}

func parseDuration(name, def string, allowZero bool) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(name, def))
	if err != nil || d < 0 || (d == 0 && !allowZero) {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return d, nil
}

func parseInt(name string, def int) (int, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return n, nil
}

func parseCacheSize() int {
	if s := os.Getenv("GEOCODER_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}
