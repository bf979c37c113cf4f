// Package pipeline contains the processing stages between retrieval and the
// artifact writer: daily aggregation, the quality gate, the feature builder,
// and the orchestration that hands each stage's owned output to the next.
package pipeline

import (
	"sort"
	"time"

	"github.com/geoandina/rainfall-etl/internal/domain"
)

// AggregateDaily sums sub-daily readings into one row per station and
// calendar day. Locality fields are part of the group key so a station's
// attribution travels with its aggregate; drift across dates therefore
// surfaces as extra groups, which the quality gate reconciles.
func AggregateDaily(obs []domain.Observation) []domain.DailyTotal {
	type key struct {
		sensor string
		date   int64
		mpio   string
		depto  string
	}

	sums := make(map[key]float64)
	for _, o := range obs {
		k := key{o.SensorID, o.Date().Unix(), o.Municipality, o.Department}
		sums[k] += o.Value
	}

	totals := make([]domain.DailyTotal, 0, len(sums))
	for k, v := range sums {
		totals = append(totals, domain.DailyTotal{
			SensorID:     k.sensor,
			Date:         time.Unix(k.date, 0).UTC(),
			Value:        v,
			Municipality: k.mpio,
			Department:   k.depto,
		})
	}

	sort.Slice(totals, func(i, j int) bool {
		if totals[i].SensorID != totals[j].SensorID {
			return totals[i].SensorID < totals[j].SensorID
		}
		return totals[i].Date.Before(totals[j].Date)
	})
	return totals
}
