package pipeline

import (
	"log/slog"
	"math"
	"time"

	"github.com/geoandina/rainfall-etl/internal/domain"
	"github.com/geoandina/rainfall-etl/internal/geo"
)

// recencyDays is how many trailing calendar days, ending at the global most
// recent date, every station must have reported on. The risk model needs all
// of them.
const recencyDays = 4

// QualityGate removes stations with insufficient historical coverage or
// missing recent days, and repairs inconsistent locality metadata against the
// station registry.
type QualityGate struct {
	registry *geo.Registry
	logger   *slog.Logger
}

// NewQualityGate creates a QualityGate. A nil registry disables metadata
// repair; inconsistencies are then logged and left as-is.
func NewQualityGate(registry *geo.Registry, logger *slog.Logger) *QualityGate {
	return &QualityGate{registry: registry, logger: logger}
}

// Apply runs both completeness rules in order and then reconciles metadata.
// Rule 1: a station needs daily rows on at least floor(0.8*T) distinct dates,
// T being the number of distinct dates in the whole window. Rule 2, evaluated
// on rule 1's survivors: a station needs rows on all of the last four
// calendar dates ending at the global most recent date. Returns a
// *domain.EmptyResultError when no stations survive.
func (g *QualityGate) Apply(totals []domain.DailyTotal) ([]domain.DailyTotal, error) {
	if len(totals) == 0 {
		return nil, &domain.EmptyResultError{Stage: "daily aggregation"}
	}

	surviving := g.applyHistoricalCoverage(totals)
	if len(surviving) == 0 {
		return nil, &domain.EmptyResultError{Stage: "quality gate: historical coverage"}
	}

	surviving = g.applyRecency(surviving)
	if len(surviving) == 0 {
		return nil, &domain.EmptyResultError{Stage: "quality gate: recency"}
	}

	surviving = g.reconcileMetadata(surviving)

	g.logger.Info("quality gate complete", "rows", len(surviving))
	return surviving, nil
}

func (g *QualityGate) applyHistoricalCoverage(totals []domain.DailyTotal) []domain.DailyTotal {
	allDates := make(map[time.Time]struct{})
	perSensor := make(map[string]map[time.Time]struct{})
	for _, t := range totals {
		allDates[t.Date] = struct{}{}
		if perSensor[t.SensorID] == nil {
			perSensor[t.SensorID] = make(map[time.Time]struct{})
		}
		perSensor[t.SensorID][t.Date] = struct{}{}
	}

	totalDays := len(allDates)
	threshold := int(math.Floor(0.8 * float64(totalDays)))
	g.logger.Info("historical coverage rule",
		"window_days", totalDays,
		"min_days_required", threshold,
	)

	excluded := make(map[string]bool)
	for sensor, dates := range perSensor {
		if len(dates) < threshold {
			excluded[sensor] = true
			g.logger.Info("excluding station with incomplete history",
				"station", sensor,
				"days_present", len(dates),
				"days_missing", totalDays-len(dates),
			)
		}
	}

	out := make([]domain.DailyTotal, 0, len(totals))
	for _, t := range totals {
		if !excluded[t.SensorID] {
			out = append(out, t)
		}
	}
	g.logger.Info("historical coverage rule applied", "stations_excluded", len(excluded))
	return out
}

// applyRecency excludes stations missing any of the last recencyDays calendar
// dates ending at the global most recent date. The anchor is global, not the
// station's own max date, so a station that stopped reporting yesterday is
// excluded even with an otherwise complete history.
func (g *QualityGate) applyRecency(totals []domain.DailyTotal) []domain.DailyTotal {
	var maxDate time.Time
	for _, t := range totals {
		if t.Date.After(maxDate) {
			maxDate = t.Date
		}
	}

	required := make(map[time.Time]struct{}, recencyDays)
	for i := 0; i < recencyDays; i++ {
		required[maxDate.AddDate(0, 0, -i)] = struct{}{}
	}

	perSensor := make(map[string]int)
	seen := make(map[string]map[time.Time]struct{})
	for _, t := range totals {
		if _, ok := required[t.Date]; !ok {
			continue
		}
		if seen[t.SensorID] == nil {
			seen[t.SensorID] = make(map[time.Time]struct{})
		}
		if _, dup := seen[t.SensorID][t.Date]; !dup {
			seen[t.SensorID][t.Date] = struct{}{}
			perSensor[t.SensorID]++
		}
	}

	excluded := make(map[string]bool)
	for _, t := range totals {
		if perSensor[t.SensorID] < recencyDays {
			excluded[t.SensorID] = true
		}
	}

	out := make([]domain.DailyTotal, 0, len(totals))
	for _, t := range totals {
		if !excluded[t.SensorID] {
			out = append(out, t)
		}
	}
	g.logger.Info("recency rule applied",
		"anchor_date", maxDate.Format("2006-01-02"),
		"stations_excluded", len(excluded),
	)
	return out
}

// reconcileMetadata repairs stations whose daily rows disagree on municipality
// or department across dates (data entry drift upstream). The authoritative
// value comes from the station registry; when the station is not registered
// the ambiguity is logged and the rows are left as-is. This is a local
// repair, never a row exclusion.
func (g *QualityGate) reconcileMetadata(totals []domain.DailyTotal) []domain.DailyTotal {
	mpios := make(map[string]map[string]struct{})
	deptos := make(map[string]map[string]struct{})
	for _, t := range totals {
		if mpios[t.SensorID] == nil {
			mpios[t.SensorID] = make(map[string]struct{})
			deptos[t.SensorID] = make(map[string]struct{})
		}
		mpios[t.SensorID][t.Municipality] = struct{}{}
		deptos[t.SensorID][t.Department] = struct{}{}
	}

	repairs := make(map[string]geo.Station)
	for sensor := range mpios {
		if len(mpios[sensor]) <= 1 && len(deptos[sensor]) <= 1 {
			continue
		}
		if g.registry == nil {
			g.logger.Warn("station has inconsistent locality and no registry to repair from", "station", sensor)
			continue
		}
		st, ok := g.registry.Lookup(sensor)
		if !ok {
			g.logger.Warn("station has inconsistent locality and is not in the registry", "station", sensor)
			continue
		}
		repairs[sensor] = st
		g.logger.Info("repairing inconsistent station locality from registry",
			"station", sensor,
			"municipality", st.Municipality,
			"department", st.Department,
		)
	}

	if len(repairs) == 0 {
		return totals
	}

	repaired := make([]domain.DailyTotal, len(totals))
	for i, t := range totals {
		if st, ok := repairs[t.SensorID]; ok {
			t.Municipality = st.Municipality
			t.Department = st.Department
		}
		repaired[i] = t
	}

	// Drifted rows split one (station, date) sum across localities; now that
	// the locality is unified those splits collapse back into a single row.
	return mergeDuplicateDays(repaired)
}

func mergeDuplicateDays(totals []domain.DailyTotal) []domain.DailyTotal {
	type key struct {
		sensor string
		date   int64
	}
	index := make(map[key]int, len(totals))
	out := make([]domain.DailyTotal, 0, len(totals))
	for _, t := range totals {
		k := key{t.SensorID, t.Date.Unix()}
		if i, ok := index[k]; ok {
			out[i].Value += t.Value
			continue
		}
		index[k] = len(out)
		out = append(out, t)
	}
	return out
}
