// Package ingest drives block-by-block retrieval of the requested window and
// accounts for coverage. Blocks run strictly in order; the only blocking
// operations are the fetcher's network calls and fixed backoff sleeps.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/geoandina/rainfall-etl/internal/domain"
	"github.com/geoandina/rainfall-etl/internal/observability"
)

// PageFetcher retrieves one page of raw records for a time window.
type PageFetcher interface {
	FetchPage(ctx context.Context, window domain.TimeWindow, offset, limit int) ([]domain.RawRecord, error)
}

// Options bundles the retry and coverage knobs. The defaults mirror the
// operational settings the portal's flakiness was tuned against.
type Options struct {
	PageSize         int           // records per page (2000)
	MaxPageErrors    int           // transient page errors before a block is abandoned early (5)
	BlockRetries     int           // block-level retries beyond the first attempt (3)
	BlockBackoff     time.Duration // fixed pause between block retries (5s)
	RunRetries       int           // whole-run retries beyond the first attempt (2)
	RunBackoff       time.Duration // fixed pause between whole-run retries (10s)
	MinCoveragePct   float64       // proceed cleanly at or above this (70)
	FloorCoveragePct float64       // proceed degraded at or above this (50)
}

// Scheduler partitions a window into one-day blocks and drives the fetcher
// per block with bounded retries.
type Scheduler struct {
	fetcher PageFetcher
	logger  *slog.Logger
	metrics *observability.Metrics
	opts    Options
}

// IngestionRun is the explicit run state threaded through scheduling: blocks,
// retrieved records, and the derived coverage report. Never a package-level
// singleton.
type IngestionRun struct {
	Window  domain.TimeWindow
	Blocks  []domain.Block
	Records []domain.RawRecord
	Report  domain.CoverageReport
}

// NewScheduler creates a Scheduler over the given fetcher.
func NewScheduler(fetcher PageFetcher, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Scheduler {
	return &Scheduler{
		fetcher: fetcher,
		logger:  logger,
		metrics: metrics,
		opts:    opts,
	}
}

// SplitBlocks partitions [window.Start, window.End) into contiguous one-day
// blocks. The tail block may be shorter than a nominal day.
func SplitBlocks(window domain.TimeWindow) []domain.Block {
	var blocks []domain.Block
	for start := window.Start; start.Before(window.End); {
		end := start.Add(24 * time.Hour)
		if end.After(window.End) {
			end = window.End
		}
		blocks = append(blocks, domain.Block{Start: start, End: end, Status: domain.BlockPending})
		start = end
	}
	return blocks
}

// Run retrieves the window, retrying the whole retrieval up to RunRetries
// additional times while coverage stays below MinCoveragePct. The tiered
// decision is final: >= MinCoveragePct proceeds, >= FloorCoveragePct with at
// least one record proceeds flagged degraded, anything below aborts with a
// *domain.CoverageError.
func (s *Scheduler) Run(ctx context.Context, window domain.TimeWindow) (*IngestionRun, error) {
	var run *IngestionRun
	for attempt := 0; attempt <= s.opts.RunRetries; attempt++ {
		if attempt > 0 {
			s.logger.Warn("coverage insufficient, retrying full retrieval",
				"attempt", attempt+1,
				"max_attempts", s.opts.RunRetries+1,
				"previous_coverage_pct", run.Report.CoveragePct,
			)
			if !sleepWithContext(ctx, s.opts.RunBackoff) {
				return nil, ctx.Err()
			}
		}

		run = s.fetchWindow(ctx, window)
		s.metrics.CoveragePct.Set(run.Report.CoveragePct)
		s.logRetrievalReport(run)

		if run.Report.CoveragePct >= s.opts.MinCoveragePct {
			return run, nil
		}
	}

	rep := run.Report
	if rep.CoveragePct >= s.opts.FloorCoveragePct && rep.RecordsTotal > 0 {
		run.Report.Degraded = true
		s.logger.Warn("proceeding with degraded coverage",
			"coverage_pct", rep.CoveragePct,
			"floor_pct", s.opts.FloorCoveragePct,
		)
		return run, nil
	}

	return nil, &domain.CoverageError{
		CoveragePct: rep.CoveragePct,
		Reason: fmt.Sprintf("%d of %d requested days lost after %d full attempts",
			len(rep.FailedBlocks), rep.DaysRequested, s.opts.RunRetries+1),
	}
}

// fetchWindow attempts every block once (with block-level retries inside) and
// derives the coverage report.
func (s *Scheduler) fetchWindow(ctx context.Context, window domain.TimeWindow) *IngestionRun {
	run := &IngestionRun{Window: window, Blocks: SplitBlocks(window)}

	for i := range run.Blocks {
		block := &run.Blocks[i]
		records := s.fetchBlock(ctx, block)
		if block.Status == domain.BlockFailed {
			run.Report.FailedBlocks = append(run.Report.FailedBlocks, *block)
			s.metrics.BlocksFailed.Inc()
			continue
		}
		run.Records = append(run.Records, records...)
	}

	run.Report.DaysRequested = len(run.Blocks)
	run.Report.RecordsTotal = len(run.Records)

	failedDays := 0
	for _, b := range run.Report.FailedBlocks {
		failedDays += b.Days()
	}
	if run.Report.DaysRequested > 0 {
		run.Report.CoveragePct = float64(run.Report.DaysRequested-failedDays) /
			float64(run.Report.DaysRequested) * 100
	}
	return run
}

var errEmptyBlock = errors.New("block yielded no records")

// fetchBlock drives one block through its retry budget. A block succeeds as
// soon as an attempt yields at least one record, even if pages inside it
// errored; partial-within-block data is accepted, never discarded. A fatal
// page error with nothing retrieved abandons the block without further
// retries.
func (s *Scheduler) fetchBlock(ctx context.Context, block *domain.Block) []domain.RawRecord {
	block.Status = domain.BlockInProgress

	var records []domain.RawRecord
	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(s.opts.BlockBackoff), uint64(s.opts.BlockRetries)),
		ctx,
	)
	err := backoff.Retry(func() error {
		block.Attempts++
		recs, fatal := s.fetchBlockPages(ctx, block.Window())
		if len(recs) > 0 {
			records = recs
			return nil
		}
		if fatal != nil {
			return backoff.Permanent(fatal)
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return errEmptyBlock
	}, bo)

	if err != nil {
		block.Status = domain.BlockFailed
		s.logger.Error("block lost after all attempts",
			"block_start", block.Start.Format(time.RFC3339),
			"block_end", block.End.Format(time.RFC3339),
			"attempts", block.Attempts,
			"error", err,
		)
		return nil
	}

	block.Status = domain.BlockSucceeded
	block.Records = len(records)
	s.logger.Info("block completed",
		"block_start", block.Start.Format(time.RFC3339),
		"records", len(records),
		"attempts", block.Attempts,
	)
	return records
}

// fetchBlockPages pages forward through one block until a short page signals
// exhaustion. Transient page errors are absorbed by skipping ahead one page,
// up to MaxPageErrors, after which the block is abandoned early and escalated
// to block-level retry. A fatal error terminates the scan immediately; the
// records gathered so far are still returned.
func (s *Scheduler) fetchBlockPages(ctx context.Context, window domain.TimeWindow) ([]domain.RawRecord, error) {
	var (
		records    []domain.RawRecord
		offset     int
		pageErrors int
	)
	for {
		page, err := s.fetcher.FetchPage(ctx, window, offset, s.opts.PageSize)
		if err != nil {
			s.metrics.PageErrors.Inc()
			if domain.IsTransient(err) {
				pageErrors++
				if pageErrors >= s.opts.MaxPageErrors {
					s.logger.Warn("too many page errors, abandoning block early",
						"page_errors", pageErrors,
						"records_so_far", len(records),
					)
					return records, nil
				}
				s.logger.Warn("transient page error, continuing with next page",
					"offset", offset,
					"page_errors", pageErrors,
					"error", err,
				)
				offset += s.opts.PageSize
				continue
			}
			s.logger.Error("unrecoverable page error, abandoning block",
				"offset", offset,
				"error", err,
			)
			return records, err
		}

		s.metrics.PagesFetched.Inc()
		if len(page) == 0 {
			return records, nil
		}
		records = append(records, page...)
		s.metrics.RecordsFetched.Add(float64(len(page)))
		if len(page) < s.opts.PageSize {
			return records, nil
		}
		offset += s.opts.PageSize
	}
}

func (s *Scheduler) logRetrievalReport(run *IngestionRun) {
	s.logger.Info("retrieval report",
		"records_total", run.Report.RecordsTotal,
		"days_requested", run.Report.DaysRequested,
		"blocks_failed", len(run.Report.FailedBlocks),
		"coverage_pct", run.Report.CoveragePct,
	)
	for _, b := range run.Report.FailedBlocks {
		s.logger.Warn("lost block",
			"block_start", b.Start.Format(time.RFC3339),
			"block_end", b.End.Format(time.RFC3339),
		)
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
