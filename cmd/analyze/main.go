// Command analyze runs a single wildfire analysis for one point and prints the
// result as JSON.
//
// Usage:
//
//	go run ./cmd/analyze -lat -6.2 -lon 106.8 -name Jakarta
//	go run ./cmd/analyze -query "Redding, CA" -country us
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/couchcryptid/wildfire-analysis/internal/adapter/gateway"
	"github.com/couchcryptid/wildfire-analysis/internal/adapter/nominatim"
	"github.com/couchcryptid/wildfire-analysis/internal/capture"
	"github.com/couchcryptid/wildfire-analysis/internal/config"
	"github.com/couchcryptid/wildfire-analysis/internal/domain"
	"github.com/couchcryptid/wildfire-analysis/internal/observability"
	"github.com/couchcryptid/wildfire-analysis/internal/pipeline"
	"github.com/couchcryptid/wildfire-analysis/internal/store"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		var f *pipeline.Failure
		if errors.As(err, &f) {
			fmt.Fprintln(os.Stderr, f.Message())
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func run() error {
	lat := flag.Float64("lat", 0, "latitude in degrees")
	lon := flag.Float64("lon", 0, "longitude in degrees")
	name := flag.String("name", "", "display name for the point")
	query := flag.String("query", "", "place to search for instead of -lat/-lon")
	country := flag.String("country", "", "ISO 3166-1 alpha-2 code restricting -query")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall deadline for the analysis")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	point := domain.GeoPoint{Name: *name, Latitude: *lat, Longitude: *lon}
	if *query != "" {
		if *country == "" {
			*country = cfg.GeocoderCountry
		}
		searcher := nominatim.NewClient(cfg.GeocoderURL, cfg.GeocoderTimeout, metrics, logger)
		places, err := searcher.Search(ctx, *query, 1, *country)
		if err != nil {
			return fmt.Errorf("search %q: %w", *query, err)
		}
		if len(places) == 0 {
			return fmt.Errorf("no place found for %q", *query)
		}
		point = places[0]
	}

	s := store.New()
	if err := s.Select(point); err != nil {
		return err
	}

	client := gateway.NewClient(cfg.APIBaseURL, metrics, logger)
	orch := pipeline.New(s, pipeline.Stages{
		Region:     capture.NewTileRegion(cfg.TileURL, cfg.TileZoom, cfg.TileGrid, &http.Client{Timeout: 15 * time.Second}, logger),
		Acquirer:   capture.NewAcquirer(cfg.SettleDelay, cfg.CaptureMaxEdge, nil, metrics, logger),
		Classifier: client,
		Weather:    client,
		Forecaster: client,
	}, logger, metrics,
		pipeline.WithHistoryDays(cfg.HistoryDays),
		pipeline.WithProgress(func(p pipeline.Progress) {
			fmt.Fprintf(os.Stderr, "%s...\n", p.Description)
		}),
	)

	result, err := orch.Run(ctx)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
