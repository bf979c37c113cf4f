package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/geoandina/rainfall-etl/internal/domain"
	"github.com/geoandina/rainfall-etl/internal/geo"
	"github.com/geoandina/rainfall-etl/internal/ingest"
	"github.com/geoandina/rainfall-etl/internal/observability"
)

// BlockScheduler retrieves the requested window block by block and reports
// coverage.
type BlockScheduler interface {
	Run(ctx context.Context, window domain.TimeWindow) (*ingest.IngestionRun, error)
}

// ArtifactWriter persists the run's outputs.
type ArtifactWriter interface {
	WriteRawBackup(records []domain.RawRecord, maxDate time.Time) (string, error)
	WriteFeatures(rows []domain.FeatureRow) (dated string, latest string, err error)
	WriteSummary(s domain.RunSummary) (string, error)
}

// SummaryPublisher pushes the run summary to an external sink.
type SummaryPublisher interface {
	PublishSummary(ctx context.Context, s domain.RunSummary) error
}

// Params wires a Pipeline. Publisher may be nil to disable publishing.
type Params struct {
	Scheduler  BlockScheduler
	Region     *geo.Region
	Registry   *geo.Registry
	Writer     ArtifactWriter
	Publisher  SummaryPublisher
	Logger     *slog.Logger
	Metrics    *observability.Metrics
	ChunkSize  int
	WindowDays int
}

// Pipeline runs the full ingestion-to-artifact sequence once. Stages execute
// on a single logical thread; each consumes an owned input and produces a new
// owned output, and large intermediates are dropped as soon as their consumer
// stage finishes.
type Pipeline struct {
	scheduler  BlockScheduler
	region     *geo.Region
	registry   *geo.Registry
	writer     ArtifactWriter
	publisher  SummaryPublisher
	logger     *slog.Logger
	metrics    *observability.Metrics
	chunkSize  int
	windowDays int
	ready      atomic.Bool
}

// New creates a Pipeline from Params.
func New(p Params) *Pipeline {
	return &Pipeline{
		scheduler:  p.Scheduler,
		region:     p.Region,
		registry:   p.Registry,
		writer:     p.Writer,
		publisher:  p.Publisher,
		logger:     p.Logger,
		metrics:    p.Metrics,
		chunkSize:  p.ChunkSize,
		windowDays: p.WindowDays,
	}
}

// CheckReadiness returns nil once a run has written its artifacts.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no completed run yet")
	}
	return nil
}

// Run executes one complete run. On any error before the feature builder
// completes, no feature table or summary is written; a collaborator polling
// the latest file can assume any file present is complete and valid.
func (p *Pipeline) Run(ctx context.Context) error {
	start := domain.Now()
	err := p.run(ctx)
	p.metrics.RunDuration.Observe(domain.Now().Sub(start).Seconds())
	if err != nil {
		p.metrics.LastRunSuccess.Set(0)
		return err
	}
	p.metrics.LastRunSuccess.Set(1)
	p.ready.Store(true)
	return nil
}

func (p *Pipeline) run(ctx context.Context) error {
	window := p.runWindow()
	p.logger.Info("starting run",
		"window_start", window.Start.Format(time.RFC3339),
		"window_end", window.End.Format(time.RFC3339),
		"days", window.Days(),
	)

	ingestion, err := p.scheduler.Run(ctx, window)
	if err != nil {
		return err
	}

	obs := p.parseRecords(ingestion.Records)
	if len(obs) == 0 {
		return &domain.EmptyResultError{Stage: "fetch"}
	}

	maxDate := obs[0].Date()
	for _, o := range obs[1:] {
		if d := o.Date(); d.After(maxDate) {
			maxDate = d
		}
	}

	// The raw backup documents the retrieval itself and is keyed by the max
	// observed date; losing it must not lose the run.
	if path, err := p.writer.WriteRawBackup(ingestion.Records, maxDate); err != nil {
		p.logger.Warn("raw backup not written", "error", err)
	} else {
		p.logger.Info("raw backup written", "path", path)
	}
	ingestion.Records = nil

	filtered := geo.FilterWithin(obs, p.region, p.chunkSize, p.logger)
	obs = nil
	if len(filtered) == 0 {
		return &domain.EmptyResultError{Stage: "spatial filter"}
	}

	totals := AggregateDaily(filtered)
	filtered = nil
	p.logger.Info("daily aggregation complete", "rows", len(totals))

	gate := NewQualityGate(p.registry, p.logger)
	surviving, err := gate.Apply(totals)
	if err != nil {
		return err
	}

	rows := BuildFeatures(surviving)
	if len(rows) == 0 {
		return &domain.EmptyResultError{Stage: "feature builder"}
	}
	p.metrics.SensorsSurviving.Set(float64(len(rows)))

	datedPath, latestPath, err := p.writer.WriteFeatures(rows)
	if err != nil {
		return err
	}
	p.logger.Info("feature table written", "dated", datedPath, "latest", latestPath)

	summary := BuildSummary(rows, ingestion.Report, latestPath)
	LogSummary(p.logger, summary)
	if _, err := p.writer.WriteSummary(summary); err != nil {
		return err
	}

	if p.publisher != nil {
		if err := p.publisher.PublishSummary(ctx, summary); err != nil {
			p.logger.Warn("run summary not published", "error", err)
		}
	}

	return nil
}

// runWindow is the last windowDays calendar days including today, as a
// half-open UTC interval aligned to midnight.
func (p *Pipeline) runWindow() domain.TimeWindow {
	end := domain.Now().UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
	return domain.TimeWindow{Start: end.AddDate(0, 0, -p.windowDays), End: end}
}

// parseRecords validates raw records at the fetch boundary. Records missing a
// required field are quarantined: counted and logged, never passed downstream
// as loosely-typed maps.
func (p *Pipeline) parseRecords(records []domain.RawRecord) []domain.Observation {
	obs := make([]domain.Observation, 0, len(records))
	quarantined := 0
	for _, rec := range records {
		o, err := domain.ParseRawRecord(rec)
		if err != nil {
			quarantined++
			p.metrics.RecordsQuarantined.Inc()
			p.logger.Debug("quarantined record", "error", err)
			continue
		}
		obs = append(obs, o)
	}
	if quarantined > 0 {
		p.logger.Warn("quarantined records with missing required fields", "count", quarantined)
	}
	p.logger.Info("parsed observations", "valid", len(obs), "quarantined", quarantined)
	return obs
}
