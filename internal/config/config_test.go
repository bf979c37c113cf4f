package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredPaths(t *testing.T) {
	t.Helper()
	t.Setenv("STATIONS_PATH", "testdata/estaciones.geojson")
	t.Setenv("REGION_PATH", "testdata/region.geojson")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredPaths(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://www.datos.gov.co", cfg.SocrataHost)
	assert.Equal(t, "s54a-sgyg", cfg.SocrataDataset)
	assert.Empty(t, cfg.SocrataToken)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 2000, cfg.PageSize)
	assert.Equal(t, 30, cfg.WindowDays)
	assert.Equal(t, 5, cfg.MaxPageErrors)
	assert.Equal(t, 3, cfg.BlockRetries)
	assert.Equal(t, 5*time.Second, cfg.BlockBackoff)
	assert.Equal(t, 2, cfg.RunRetries)
	assert.Equal(t, 10*time.Second, cfg.RunBackoff)
	assert.Equal(t, 70.0, cfg.MinCoveragePct)
	assert.Equal(t, 50.0, cfg.FloorCoveragePct)
	assert.Equal(t, "data/output/lluvia", cfg.OutputDir)
	assert.Equal(t, 50000, cfg.ChunkSize)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "rainfall-run-summary", cfg.KafkaSummaryTopic)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_CustomEnv(t *testing.T) {
	setRequiredPaths(t)
	t.Setenv("SOCRATA_HOST", "http://localhost:9090")
	t.Setenv("SOCRATA_DATASET", "abcd-1234")
	t.Setenv("SOCRATA_APP_TOKEN", "tok-123")
	t.Setenv("REQUEST_TIMEOUT", "5s")
	t.Setenv("PAGE_SIZE", "500")
	t.Setenv("WINDOW_DAYS", "7")
	t.Setenv("MAX_PAGE_ERRORS", "2")
	t.Setenv("BLOCK_RETRIES", "1")
	t.Setenv("BLOCK_RETRY_BACKOFF", "100ms")
	t.Setenv("RUN_RETRIES", "0")
	t.Setenv("RUN_RETRY_BACKOFF", "200ms")
	t.Setenv("MIN_COVERAGE_PCT", "90")
	t.Setenv("FLOOR_COVERAGE_PCT", "60")
	t.Setenv("OUTPUT_DIR", "/tmp/lluvia")
	t.Setenv("CHUNK_SIZE", "1000")
	t.Setenv("KAFKA_BROKERS", "broker1:9092, broker2:9092")
	t.Setenv("KAFKA_SUMMARY_TOPIC", "custom-summary")
	t.Setenv("HTTP_ADDR", ":9191")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9090", cfg.SocrataHost)
	assert.Equal(t, "abcd-1234", cfg.SocrataDataset)
	assert.Equal(t, "tok-123", cfg.SocrataToken)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 500, cfg.PageSize)
	assert.Equal(t, 7, cfg.WindowDays)
	assert.Equal(t, 2, cfg.MaxPageErrors)
	assert.Equal(t, 1, cfg.BlockRetries)
	assert.Equal(t, 100*time.Millisecond, cfg.BlockBackoff)
	assert.Equal(t, 0, cfg.RunRetries)
	assert.Equal(t, 200*time.Millisecond, cfg.RunBackoff)
	assert.Equal(t, 90.0, cfg.MinCoveragePct)
	assert.Equal(t, 60.0, cfg.FloorCoveragePct)
	assert.Equal(t, "/tmp/lluvia", cfg.OutputDir)
	assert.Equal(t, 1000, cfg.ChunkSize)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-summary", cfg.KafkaSummaryTopic)
	assert.Equal(t, ":9191", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestLoad_MissingStationsPath(t *testing.T) {
	t.Setenv("REGION_PATH", "testdata/region.geojson")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STATIONS_PATH")
}

func TestLoad_MissingRegionPath(t *testing.T) {
	t.Setenv("STATIONS_PATH", "testdata/estaciones.geojson")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REGION_PATH")
}

func TestLoad_InvalidPageSize(t *testing.T) {
	setRequiredPaths(t)
	t.Setenv("PAGE_SIZE", "not-a-number")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PAGE_SIZE")
}

func TestLoad_NonPositivePageSize(t *testing.T) {
	setRequiredPaths(t)
	t.Setenv("PAGE_SIZE", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PAGE_SIZE")
}

func TestLoad_InvalidBackoff(t *testing.T) {
	setRequiredPaths(t)
	t.Setenv("BLOCK_RETRY_BACKOFF", "soon")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BLOCK_RETRY_BACKOFF")
}

func TestLoad_CoverageOutOfRange(t *testing.T) {
	setRequiredPaths(t)
	t.Setenv("MIN_COVERAGE_PCT", "140")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MIN_COVERAGE_PCT")
}

func TestLoad_FloorAboveMin(t *testing.T) {
	setRequiredPaths(t)
	t.Setenv("MIN_COVERAGE_PCT", "60")
	t.Setenv("FLOOR_COVERAGE_PCT", "70")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FLOOR_COVERAGE_PCT")
}
