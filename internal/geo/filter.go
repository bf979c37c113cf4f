package geo

import (
	"log/slog"

	"github.com/paulmach/orb"

	"github.com/geoandina/rainfall-etl/internal/domain"
)

// FilterWithin restricts observations to those inside the region, processing
// the input in fixed-size chunks to cap peak memory. Observations with
// unparseable coordinates are dropped before the containment test, not
// treated as outside. Arrival order is preserved, and the result is
// independent of the chunk size. The result is never nil: an empty region or
// all-invalid coordinates yield an empty slice.
func FilterWithin(obs []domain.Observation, region *Region, chunkSize int, logger *slog.Logger) []domain.Observation {
	out := make([]domain.Observation, 0)
	if region.Empty() {
		logger.Warn("no region polygons loaded, spatial filter returns no observations")
		return out
	}
	if chunkSize <= 0 {
		chunkSize = len(obs)
	}

	dropped := 0
	for start := 0; start < len(obs); start += chunkSize {
		end := min(start+chunkSize, len(obs))
		chunk := obs[start:end]

		for _, o := range chunk {
			if !o.HasCoordinates() {
				dropped++
				continue
			}
			if region.Contains(orb.Point{o.Longitude, o.Latitude}) {
				out = append(out, o)
			}
		}
		logger.Debug("spatial filter chunk processed",
			"chunk_start", start,
			"chunk_rows", len(chunk),
			"kept_so_far", len(out),
		)
	}

	if dropped > 0 {
		logger.Info("dropped observations with unparseable coordinates", "dropped", dropped)
	}
	logger.Info("spatial filter complete", "input_rows", len(obs), "kept_rows", len(out))
	return out
}
