package pipeline

import (
	"sort"
	"time"

	"github.com/geoandina/rainfall-etl/internal/domain"
)

// horizons are the rolling window lengths, in days, summed over the days
// preceding day 0.
var horizons = []int{1, 2, 3, 15, 30}

// maxHistoryDays caps how far back a station's own history is considered.
const maxHistoryDays = 30

// accumulation is one horizon's long-form result before the reshape to a wide
// row. The anchor is the date at the horizon's offset in the station's
// descending sequence (its oldest date when the sequence is shorter); it is
// informational and never affects the summed value.
type accumulation struct {
	horizon int
	value   float64
	anchor  time.Time
}

// BuildFeatures computes the multi-horizon accumulations per station and
// reshapes the result into one wide row per station. Day 0, the station's own
// most recent reporting day, supplies DailyRain directly and is excluded from
// every summed window. A station with a history shorter than a horizon sums
// what exists: it already passed the 80% coverage gate, so the under-count is
// accepted rather than marked missing.
func BuildFeatures(totals []domain.DailyTotal) []domain.FeatureRow {
	bySensor := make(map[string][]domain.DailyTotal)
	for _, t := range totals {
		bySensor[t.SensorID] = append(bySensor[t.SensorID], t)
	}

	rows := make([]domain.FeatureRow, 0, len(bySensor))
	for sensor, history := range bySensor {
		sort.Slice(history, func(i, j int) bool {
			return history[i].Date.After(history[j].Date)
		})
		if len(history) > maxHistoryDays {
			history = history[:maxHistoryDays]
		}
		if len(history) == 0 {
			continue
		}

		day0 := history[0]
		row := domain.FeatureRow{
			SensorID:     sensor,
			AnchorDate:   day0.Date,
			DailyRain:    day0.Value,
			Municipality: day0.Municipality,
			Department:   day0.Department,
		}

		prior := history[1:]
		for _, acc := range accumulate(history, prior) {
			switch acc.horizon {
			case 1:
				row.Accum1d = acc.value
			case 2:
				row.Accum2d = acc.value
			case 3:
				row.Accum3d = acc.value
			case 15:
				row.Accum15d = acc.value
			case 30:
				row.Accum30d = acc.value
			}
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].SensorID < rows[j].SensorID })
	return rows
}

// accumulate sums each horizon over the rows after day 0. history is the full
// descending sequence (day 0 first); prior is the same sequence with day 0
// excluded.
func accumulate(history, prior []domain.DailyTotal) []accumulation {
	accs := make([]accumulation, 0, len(horizons))
	for _, h := range horizons {
		n := min(h, len(prior))
		sum := 0.0
		for _, t := range prior[:n] {
			sum += t.Value
		}
		accs = append(accs, accumulation{
			horizon: h,
			value:   sum,
			anchor:  horizonAnchor(history, h),
		})
	}
	return accs
}

// horizonAnchor returns the date at offset h in the descending sequence, or
// the oldest available date when the sequence is shorter.
func horizonAnchor(history []domain.DailyTotal, h int) time.Time {
	if h < len(history) {
		return history[h].Date
	}
	return history[len(history)-1].Date
}
