// Command bigday consumes a tornado event catalog from Kafka, groups events
// into space-time outbreak clusters, and publishes the aggregated Big-Day
// table to the sink topic.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/zschroder/pred-casualties/internal/adapter/covariate"
	"github.com/zschroder/pred-casualties/internal/adapter/httpadapter"
	kafkaadapter "github.com/zschroder/pred-casualties/internal/adapter/kafka"
	"github.com/zschroder/pred-casualties/internal/cluster"
	"github.com/zschroder/pred-casualties/internal/config"
	"github.com/zschroder/pred-casualties/internal/observability"
	"github.com/zschroder/pred-casualties/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	// Covariate join is feature-flagged via COVARIATE_URL / COVARIATE_ENABLED.
	var covariates pipeline.CovariateProvider
	if cfg.CovariateEnabled {
		client := covariate.NewClient(cfg.CovariateURL, cfg.CovariateTimeout, cfg.CovariateRPS, metrics, logger)
		covariates = covariate.NewCachedProvider(client, cfg.CovariateCacheSize, metrics)
		metrics.CovariateEnabled.Set(1)
		logger.Info("covariate join enabled",
			"url", cfg.CovariateURL,
			"cache_size", cfg.CovariateCacheSize,
			"rps", cfg.CovariateRPS,
		)
	} else {
		logger.Info("covariate join disabled")
	}

	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg, logger)
	engine := cluster.NewEngine(cfg.StormSpeedMS, cfg.ThresholdSeconds, cfg.MinClusterSize, cfg.MaxCatalogEvents)

	p := pipeline.New(reader, engine, writer, covariates, logger, metrics, cfg.BatchSize, cfg.MaxCatalogEvents)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start clustering pipeline.
	pipelineErr := make(chan error, 1)
	go func() {
		pipelineErr <- p.Run(ctx)
	}()

	select {
	case <-ctx.Done():
	case err := <-pipelineErr:
		if err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}

	logger.Info("shutdown complete")
}
