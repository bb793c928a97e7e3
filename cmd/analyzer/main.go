package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/couchcryptid/wildfire-analysis/internal/adapter/gateway"
	httpadapter "github.com/couchcryptid/wildfire-analysis/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/wildfire-analysis/internal/adapter/kafka"
	"github.com/couchcryptid/wildfire-analysis/internal/adapter/nominatim"
	"github.com/couchcryptid/wildfire-analysis/internal/capture"
	"github.com/couchcryptid/wildfire-analysis/internal/config"
	"github.com/couchcryptid/wildfire-analysis/internal/observability"
	"github.com/couchcryptid/wildfire-analysis/internal/pipeline"
	"github.com/couchcryptid/wildfire-analysis/internal/store"
	"github.com/joho/godotenv"
)

func main() {
	// A missing .env is fine; the environment wins either way.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := gateway.NewClient(cfg.APIBaseURL, metrics, logger)

	// Startup probe: a down backend is logged, not fatal. /readyz reflects live health.
	if status, err := client.Health(ctx); err != nil {
		logger.Warn("analysis backend not healthy at startup", "base_url", cfg.APIBaseURL, "error", err)
	} else {
		logger.Info("analysis backend healthy", "service", status.Service, "version", status.Version)
	}

	s := store.New()
	region := capture.NewTileRegion(cfg.TileURL, cfg.TileZoom, cfg.TileGrid, &http.Client{Timeout: 15 * time.Second}, logger)
	acquirer := capture.NewAcquirer(cfg.SettleDelay, cfg.CaptureMaxEdge, nil, metrics, logger)

	orch := pipeline.New(s, pipeline.Stages{
		Region:     region,
		Acquirer:   acquirer,
		Classifier: client,
		Weather:    client,
		Forecaster: client,
	}, logger, metrics, pipeline.WithHistoryDays(cfg.HistoryDays))
	go orch.Watch(ctx)

	searcher := nominatim.NewCachedSearcher(
		nominatim.NewClient(cfg.GeocoderURL, cfg.GeocoderTimeout, metrics, logger),
		cfg.GeocoderCacheSize, metrics,
	)
	logger.Info("place search configured", "url", cfg.GeocoderURL, "cache_size", cfg.GeocoderCacheSize)

	// Result publishing is feature-flagged via KAFKA_ENABLED.
	var publisher *kafkaadapter.Publisher
	if cfg.KafkaEnabled {
		publisher = kafkaadapter.NewPublisher(cfg, metrics, logger)
		go func() {
			if err := publisher.Run(ctx, s); err != nil {
				logger.Error("result publisher error", "error", err)
			}
		}()
		logger.Info("kafka result publishing enabled", "topic", cfg.KafkaResultTopic, "brokers", cfg.KafkaBrokers)
	} else {
		logger.Info("kafka result publishing disabled")
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, client, httpadapter.API{
		Store:    s,
		Analyzer: orch,
		Searcher: searcher,
		Country:  cfg.GeocoderCountry,
	}, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	orch.Cancel()
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
