package pipeline

import (
	"log/slog"
	"time"

	"github.com/geoandina/rainfall-etl/internal/domain"
)

// rainColumns lists the value columns of the feature table in contract order.
var rainColumns = []string{
	"daily rain",
	"1-rain ant.rain",
	"2-rain ant.rain",
	"3-rain ant.rain",
	"15-rain ant.rain",
	"30-rain ant.rain",
}

// BuildSummary derives the machine-readable run summary from the finished
// feature table. The data date is the most recent anchor date across
// stations.
func BuildSummary(rows []domain.FeatureRow, report domain.CoverageReport, latestFile string) domain.RunSummary {
	var dataDate time.Time
	withRain := 0
	for _, r := range rows {
		if r.AnchorDate.After(dataDate) {
			dataDate = r.AnchorDate
		}
		if r.DailyRain > 0 {
			withRain++
		}
	}

	stats := make(map[string]domain.ColumnStats, len(rainColumns))
	for _, col := range rainColumns {
		stats[col] = columnStats(rows, col)
	}

	return domain.RunSummary{
		DataDate:        dataDate.Format("2006-01-02"),
		ProcessedAt:     domain.Now().UTC().Format("20060102_150405"),
		TotalSensors:    len(rows),
		SensorsWithRain: withRain,
		CoveragePct:     report.CoveragePct,
		Degraded:        report.Degraded,
		RainColumns:     rainColumns,
		Stats:           stats,
		LatestFile:      latestFile,
	}
}

func columnStats(rows []domain.FeatureRow, col string) domain.ColumnStats {
	if len(rows) == 0 {
		return domain.ColumnStats{}
	}
	s := domain.ColumnStats{Min: columnValue(rows[0], col), Max: columnValue(rows[0], col)}
	sum := 0.0
	for _, r := range rows {
		v := columnValue(r, col)
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
		sum += v
	}
	s.Mean = sum / float64(len(rows))
	return s
}

func columnValue(r domain.FeatureRow, col string) float64 {
	switch col {
	case "daily rain":
		return r.DailyRain
	case "1-rain ant.rain":
		return r.Accum1d
	case "2-rain ant.rain":
		return r.Accum2d
	case "3-rain ant.rain":
		return r.Accum3d
	case "15-rain ant.rain":
		return r.Accum15d
	case "30-rain ant.rain":
		return r.Accum30d
	default:
		return 0
	}
}

// LogSummary reports the per-column statistics the way the run log is
// eyeballed in operation: one line per rain column.
func LogSummary(logger *slog.Logger, s domain.RunSummary) {
	logger.Info("feature table summary",
		"data_date", s.DataDate,
		"stations", s.TotalSensors,
		"stations_with_rain", s.SensorsWithRain,
		"coverage_pct", s.CoveragePct,
		"degraded", s.Degraded,
	)
	for _, col := range s.RainColumns {
		st := s.Stats[col]
		logger.Info("rain column statistics",
			"column", col,
			"min", st.Min,
			"max", st.Max,
			"mean", st.Mean,
		)
	}
}
