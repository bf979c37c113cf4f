package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all run settings, populated from environment variables
// (optionally a .env file).
type Config struct {
	// Remote source.
	SocrataHost    string
	SocrataDataset string
	SocrataToken   string
	RequestTimeout time.Duration
	PageSize       int

	// Retrieval window and retry budgets.
	WindowDays       int
	MaxPageErrors    int
	BlockRetries     int
	BlockBackoff     time.Duration
	RunRetries       int
	RunBackoff       time.Duration
	MinCoveragePct   float64
	FloorCoveragePct float64

	// Static inputs and outputs.
	StationsPath string
	RegionPath   string
	OutputDir    string
	ChunkSize    int

	// Optional summary publishing.
	KafkaBrokers      []string
	KafkaSummaryTopic string

	// Process plumbing.
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		SocrataHost:    envOrDefault("SOCRATA_HOST", "https://www.datos.gov.co"),
		SocrataDataset: envOrDefault("SOCRATA_DATASET", "s54a-sgyg"),
		SocrataToken:   os.Getenv("SOCRATA_APP_TOKEN"),

		StationsPath: os.Getenv("STATIONS_PATH"),
		RegionPath:   os.Getenv("REGION_PATH"),
		OutputDir:    envOrDefault("OUTPUT_DIR", "data/output/lluvia"),

		KafkaSummaryTopic: envOrDefault("KAFKA_SUMMARY_TOPIC", "rainfall-run-summary"),

		HTTPAddr:  envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:  envOrDefault("LOG_LEVEL", "info"),
		LogFormat: envOrDefault("LOG_FORMAT", "json"),
	}

	if v := strings.TrimSpace(os.Getenv("KAFKA_BROKERS")); v != "" {
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	var err error
	if cfg.RequestTimeout, err = durationEnv("REQUEST_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.BlockBackoff, err = durationEnv("BLOCK_RETRY_BACKOFF", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.RunBackoff, err = durationEnv("RUN_RETRY_BACKOFF", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = durationEnv("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}

	if cfg.PageSize, err = intEnv("PAGE_SIZE", 2000); err != nil {
		return nil, err
	}
	if cfg.WindowDays, err = intEnv("WINDOW_DAYS", 30); err != nil {
		return nil, err
	}
	if cfg.MaxPageErrors, err = intEnv("MAX_PAGE_ERRORS", 5); err != nil {
		return nil, err
	}
	if cfg.BlockRetries, err = intEnv("BLOCK_RETRIES", 3); err != nil {
		return nil, err
	}
	if cfg.RunRetries, err = intEnv("RUN_RETRIES", 2); err != nil {
		return nil, err
	}
	if cfg.ChunkSize, err = intEnv("CHUNK_SIZE", 50000); err != nil {
		return nil, err
	}

	if cfg.MinCoveragePct, err = floatEnv("MIN_COVERAGE_PCT", 70); err != nil {
		return nil, err
	}
	if cfg.FloorCoveragePct, err = floatEnv("FLOOR_COVERAGE_PCT", 50); err != nil {
		return nil, err
	}

	if cfg.StationsPath == "" {
		return nil, errors.New("STATIONS_PATH is required")
	}
	if cfg.RegionPath == "" {
		return nil, errors.New("REGION_PATH is required")
	}
	if cfg.PageSize <= 0 {
		return nil, errors.New("PAGE_SIZE must be positive")
	}
	if cfg.WindowDays <= 0 {
		return nil, errors.New("WINDOW_DAYS must be positive")
	}
	if cfg.FloorCoveragePct > cfg.MinCoveragePct {
		return nil, errors.New("FLOOR_COVERAGE_PCT must not exceed MIN_COVERAGE_PCT")
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return d, nil
}

func intEnv(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return n, nil
}

func floatEnv(key string, def float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 || f > 100 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return f, nil
}
