package ingest_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoandina/rainfall-etl/internal/domain"
	"github.com/geoandina/rainfall-etl/internal/ingest"
	"github.com/geoandina/rainfall-etl/internal/observability"
)

// blockScript controls how the fake portal behaves for one one-day block.
type blockScript struct {
	records           int          // records served when an attempt is healthy
	fatal             bool         // every attempt fails fatally
	fatalAttempts     int          // first N attempts fail fatally, later ones are healthy
	transientAttempts int          // first N attempts return only transient page errors
	errorPages        map[int]bool // offsets that always return a transient error
}

// fakeFetcher serves scripted pages per block. Blocks without a script are
// healthy with defaultRecords records.
type fakeFetcher struct {
	pageSize       int
	defaultRecords int
	scripts        map[string]*blockScript
	attempts       map[string]int // block-level attempts, counted at offset 0
	calls          int
}

func newFakeFetcher(pageSize, defaultRecords int) *fakeFetcher {
	return &fakeFetcher{
		pageSize:       pageSize,
		defaultRecords: defaultRecords,
		scripts:        make(map[string]*blockScript),
		attempts:       make(map[string]int),
	}
}

func (f *fakeFetcher) script(day time.Time, s *blockScript) {
	f.scripts[day.Format("2006-01-02")] = s
}

func (f *fakeFetcher) blockAttempts(day time.Time) int {
	return f.attempts[day.Format("2006-01-02")]
}

func (f *fakeFetcher) FetchPage(_ context.Context, window domain.TimeWindow, offset, limit int) ([]domain.RawRecord, error) {
	f.calls++
	key := window.Start.Format("2006-01-02")
	if offset == 0 {
		f.attempts[key]++
	}
	attempt := f.attempts[key]

	s := f.scripts[key]
	if s == nil {
		s = &blockScript{records: f.defaultRecords}
	}

	if s.fatal || attempt <= s.fatalAttempts {
		return nil, &domain.FatalError{Err: errors.New("status 400")}
	}
	if attempt <= s.fatalAttempts+s.transientAttempts {
		return nil, &domain.TransientError{Err: errors.New("connection reset")}
	}
	if s.errorPages[offset] {
		return nil, &domain.TransientError{Err: errors.New("status 503")}
	}

	if offset >= s.records {
		return nil, nil
	}
	end := min(offset+limit, s.records)
	page := make([]domain.RawRecord, 0, end-offset)
	for i := offset; i < end; i++ {
		page = append(page, domain.RawRecord{
			CodigoEstacion:   fmt.Sprintf("s%04d", i),
			FechaObservacion: window.Start.Format("2006-01-02T15:04:05.000"),
			ValorObservado:   "1.0",
		})
	}
	return page, nil
}

func testOptions() ingest.Options {
	return ingest.Options{
		PageSize:         10,
		MaxPageErrors:    5,
		BlockRetries:     3,
		BlockBackoff:     0, // no sleeping in tests
		RunRetries:       2,
		RunBackoff:       0,
		MinCoveragePct:   70,
		FloorCoveragePct: 50,
	}
}

func newScheduler(f *fakeFetcher, opts ingest.Options) *ingest.Scheduler {
	return ingest.NewScheduler(f, opts, slog.Default(), observability.NewMetricsForTesting())
}

func windowFrom(start time.Time, days int) domain.TimeWindow {
	return domain.TimeWindow{Start: start, End: start.AddDate(0, 0, days)}
}

var day0 = time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)

func TestSplitBlocks_OneDayEach(t *testing.T) {
	blocks := ingest.SplitBlocks(windowFrom(day0, 7))
	require.Len(t, blocks, 7)

	for i, b := range blocks {
		assert.Equal(t, day0.AddDate(0, 0, i), b.Start)
		assert.Equal(t, day0.AddDate(0, 0, i+1), b.End)
		assert.Equal(t, domain.BlockPending, b.Status)
	}
}

func TestSplitBlocks_ShortTail(t *testing.T) {
	window := domain.TimeWindow{Start: day0, End: day0.Add(2*24*time.Hour + 12*time.Hour)}
	blocks := ingest.SplitBlocks(window)
	require.Len(t, blocks, 3)
	assert.Equal(t, 12*time.Hour, blocks[2].End.Sub(blocks[2].Start))
}

func TestRun_FullCoverage(t *testing.T) {
	f := newFakeFetcher(10, 3)
	s := newScheduler(f, testOptions())

	run, err := s.Run(context.Background(), windowFrom(day0, 4))
	require.NoError(t, err)

	assert.Equal(t, 4, run.Report.DaysRequested)
	assert.Equal(t, 100.0, run.Report.CoveragePct)
	assert.False(t, run.Report.Degraded)
	assert.Len(t, run.Records, 12)
	for _, b := range run.Blocks {
		assert.Equal(t, domain.BlockSucceeded, b.Status)
		assert.Equal(t, 3, b.Records)
		assert.Equal(t, 1, b.Attempts)
	}
}

func TestRun_MultiPageBlock(t *testing.T) {
	f := newFakeFetcher(10, 0)
	f.script(day0, &blockScript{records: 25})
	s := newScheduler(f, testOptions())

	// Single-day window: 25 records over pages of 10, last page short.
	run, err := s.Run(context.Background(), windowFrom(day0, 1))
	require.NoError(t, err)
	assert.Len(t, run.Records, 25)
}

func TestRun_BlockRetryThenSuccess(t *testing.T) {
	f := newFakeFetcher(10, 3)
	f.script(day0.AddDate(0, 0, 1), &blockScript{records: 3, transientAttempts: 2})
	s := newScheduler(f, testOptions())

	run, err := s.Run(context.Background(), windowFrom(day0, 4))
	require.NoError(t, err)

	assert.Equal(t, 100.0, run.Report.CoveragePct)
	assert.Equal(t, 3, f.blockAttempts(day0.AddDate(0, 0, 1)))
}

func TestRun_PartialWithinBlockAccepted(t *testing.T) {
	f := newFakeFetcher(10, 0)
	// Page at offset 0 always errors; the scan skips ahead and keeps what the
	// remaining pages yield.
	f.script(day0, &blockScript{records: 25, errorPages: map[int]bool{0: true}})
	s := newScheduler(f, testOptions())

	run, err := s.Run(context.Background(), windowFrom(day0, 1))
	require.NoError(t, err)

	require.Equal(t, domain.BlockSucceeded, run.Blocks[0].Status)
	assert.Equal(t, 1, run.Blocks[0].Attempts)
	// Records 0-9 were lost with the failed page; 10-24 survive.
	assert.Len(t, run.Records, 15)
	assert.Equal(t, 100.0, run.Report.CoveragePct)
}

func TestRun_TooManyPageErrorsAbandonsBlockEarly(t *testing.T) {
	opts := testOptions()
	opts.MaxPageErrors = 2
	f := newFakeFetcher(10, 0)
	// Offsets 10 and 30 always error: the second error hits the budget and the
	// block is abandoned early, keeping the 20 records gathered so far.
	f.script(day0, &blockScript{records: 50, errorPages: map[int]bool{10: true, 30: true}})
	s := newScheduler(f, opts)

	run, err := s.Run(context.Background(), windowFrom(day0, 1))
	require.NoError(t, err)

	require.Equal(t, domain.BlockSucceeded, run.Blocks[0].Status)
	assert.Equal(t, 1, run.Blocks[0].Attempts)
	assert.Len(t, run.Records, 20)
}

func TestRun_AllTransientBlockFailsAfterRetryBudget(t *testing.T) {
	opts := testOptions()
	opts.BlockRetries = 1
	opts.MaxPageErrors = 2
	opts.RunRetries = 0
	f := newFakeFetcher(10, 3)
	bad := day0.AddDate(0, 0, 2)
	f.script(bad, &blockScript{records: 3, transientAttempts: 100})
	s := newScheduler(f, opts)

	run, err := s.Run(context.Background(), windowFrom(day0, 4))
	require.NoError(t, err) // 3 of 4 days = 75% >= 70

	assert.Equal(t, 2, f.blockAttempts(bad))
	assert.Equal(t, domain.BlockFailed, run.Blocks[2].Status)
	assert.Len(t, run.Report.FailedBlocks, 1)
	assert.InDelta(t, 75.0, run.Report.CoveragePct, 1e-9)
}

func TestRun_FatalErrorAbandonsBlockWithoutRetries(t *testing.T) {
	opts := testOptions()
	opts.RunRetries = 0
	f := newFakeFetcher(10, 3)
	bad := day0.AddDate(0, 0, 1)
	f.script(bad, &blockScript{fatal: true})
	s := newScheduler(f, opts)

	run, err := s.Run(context.Background(), windowFrom(day0, 4))
	require.NoError(t, err)

	// No block-level retries after a fatal error with nothing retrieved.
	assert.Equal(t, 1, f.blockAttempts(bad))
	assert.Equal(t, domain.BlockFailed, run.Blocks[1].Status)
}

func TestRun_CoverageAbort(t *testing.T) {
	f := newFakeFetcher(10, 3)
	for i := 0; i < 6; i++ {
		f.script(day0.AddDate(0, 0, i), &blockScript{fatal: true})
	}
	s := newScheduler(f, testOptions())

	run, err := s.Run(context.Background(), windowFrom(day0, 10))
	require.Error(t, err)
	assert.Nil(t, run)

	var covErr *domain.CoverageError
	require.ErrorAs(t, err, &covErr)
	assert.InDelta(t, 40.0, covErr.CoveragePct, 1e-9)
	assert.Contains(t, covErr.Reason, "6 of 10")
	assert.Contains(t, covErr.Reason, "3 full attempts")

	// Each failing block was attempted once per whole-run attempt.
	assert.Equal(t, 3, f.blockAttempts(day0))
}

func TestRun_DegradedCoverageProceeds(t *testing.T) {
	f := newFakeFetcher(10, 3)
	for i := 0; i < 4; i++ {
		f.script(day0.AddDate(0, 0, i), &blockScript{fatal: true})
	}
	s := newScheduler(f, testOptions())

	run, err := s.Run(context.Background(), windowFrom(day0, 10))
	require.NoError(t, err)

	assert.InDelta(t, 60.0, run.Report.CoveragePct, 1e-9)
	assert.True(t, run.Report.Degraded)
	assert.Len(t, run.Records, 18) // 6 healthy days x 3 records
}

func TestRun_WholeRunRetryRecovers(t *testing.T) {
	f := newFakeFetcher(10, 3)
	// Six blocks fail their first attempt fatally; the whole-run retry finds
	// them healthy and coverage recovers to 100%.
	for i := 0; i < 6; i++ {
		f.script(day0.AddDate(0, 0, i), &blockScript{records: 3, fatalAttempts: 1})
	}
	s := newScheduler(f, testOptions())

	run, err := s.Run(context.Background(), windowFrom(day0, 10))
	require.NoError(t, err)

	assert.Equal(t, 100.0, run.Report.CoveragePct)
	assert.False(t, run.Report.Degraded)
	assert.Len(t, run.Records, 30)
	assert.Equal(t, 2, f.blockAttempts(day0))
}

func TestRun_ContextCancelledDuringRunBackoff(t *testing.T) {
	opts := testOptions()
	opts.RunBackoff = time.Hour
	f := newFakeFetcher(10, 3)
	for i := 0; i < 6; i++ {
		f.script(day0.AddDate(0, 0, i), &blockScript{fatal: true})
	}
	s := newScheduler(f, opts)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := s.Run(ctx, windowFrom(day0, 10))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
