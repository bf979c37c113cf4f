// Command rainfall-etl runs one complete ingestion-to-artifact cycle: pull
// the rainfall window from the open-data portal, filter to the region of
// interest, aggregate, gate, build accumulation features, and write the model
// input files. The process exits when the run finishes; health and metrics
// endpoints are served while it is in flight.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/geoandina/rainfall-etl/internal/adapter/http"
	kafkaadapter "github.com/geoandina/rainfall-etl/internal/adapter/kafka"
	"github.com/geoandina/rainfall-etl/internal/adapter/socrata"
	"github.com/geoandina/rainfall-etl/internal/artifact"
	"github.com/geoandina/rainfall-etl/internal/config"
	"github.com/geoandina/rainfall-etl/internal/domain"
	"github.com/geoandina/rainfall-etl/internal/geo"
	"github.com/geoandina/rainfall-etl/internal/ingest"
	"github.com/geoandina/rainfall-etl/internal/observability"
	"github.com/geoandina/rainfall-etl/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	// Static inputs load before any network activity; a missing file or
	// property aborts here with a SchemaError.
	registry, err := geo.LoadRegistry(cfg.StationsPath)
	if err != nil {
		logger.Error("failed to load station registry", "path", cfg.StationsPath, "error", err)
		os.Exit(1)
	}
	region, err := geo.LoadRegion(cfg.RegionPath)
	if err != nil {
		logger.Error("failed to load region polygons", "path", cfg.RegionPath, "error", err)
		os.Exit(1)
	}
	logger.Info("static inputs loaded", "stations", registry.Len(), "region_empty", region.Empty())

	writer, err := artifact.NewWriter(cfg.OutputDir, logger)
	if err != nil {
		logger.Error("failed to prepare output directory", "dir", cfg.OutputDir, "error", err)
		os.Exit(1)
	}

	client := socrata.NewClient(cfg.SocrataHost, cfg.SocrataDataset, cfg.SocrataToken, cfg.RequestTimeout, logger)
	scheduler := ingest.NewScheduler(client, ingest.Options{
		PageSize:         cfg.PageSize,
		MaxPageErrors:    cfg.MaxPageErrors,
		BlockRetries:     cfg.BlockRetries,
		BlockBackoff:     cfg.BlockBackoff,
		RunRetries:       cfg.RunRetries,
		RunBackoff:       cfg.RunBackoff,
		MinCoveragePct:   cfg.MinCoveragePct,
		FloorCoveragePct: cfg.FloorCoveragePct,
	}, logger, metrics)

	// Summary publishing is feature-flagged via KAFKA_BROKERS.
	var publisher pipeline.SummaryPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kw := kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaSummaryTopic, logger)
		defer kw.Close()
		publisher = kw
		logger.Info("summary publishing enabled", "topic", cfg.KafkaSummaryTopic)
	}

	p := pipeline.New(pipeline.Params{
		Scheduler:  scheduler,
		Region:     region,
		Registry:   registry,
		Writer:     writer,
		Publisher:  publisher,
		Logger:     logger,
		Metrics:    metrics,
		ChunkSize:  cfg.ChunkSize,
		WindowDays: cfg.WindowDays,
	})

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	runErr := p.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	if runErr != nil {
		var covErr *domain.CoverageError
		if errors.As(runErr, &covErr) {
			logger.Error("run aborted: insufficient coverage",
				"coverage_pct", covErr.CoveragePct,
				"reason", covErr.Reason,
			)
		} else {
			logger.Error("run failed", "error", runErr)
		}
		os.Exit(1)
	}

	logger.Info("run complete")
}
