package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Socrata floating timestamps carry no zone marker; both forms appear in the
// IDEAM dataset depending on export age.
var timestampLayouts = []string{
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
}

// ParseRawRecord validates and coerces one Socrata row into an Observation.
// Rows with no usable station code, timestamp, or rainfall value are rejected
// (the caller quarantines them). Unparseable coordinates become NaN so the
// spatial filter can drop the row before the containment test.
func ParseRawRecord(rec RawRecord) (Observation, error) {
	sensorID := strings.TrimSpace(rec.CodigoEstacion)
	if sensorID == "" {
		return Observation{}, fmt.Errorf("record has no station code")
	}

	ts, err := parseTimestamp(rec.FechaObservacion)
	if err != nil {
		return Observation{}, fmt.Errorf("station %s: %w", sensorID, err)
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(rec.ValorObservado), 64)
	if err != nil {
		return Observation{}, fmt.Errorf("station %s: unparseable value %q", sensorID, rec.ValorObservado)
	}

	return Observation{
		SensorID:     sensorID,
		Timestamp:    ts,
		Value:        value,
		Latitude:     parseCoord(rec.Latitud),
		Longitude:    parseCoord(rec.Longitud),
		Municipality: strings.TrimSpace(rec.Municipio),
		Department:   strings.TrimSpace(rec.Departamento),
	}, nil
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("record has no observation timestamp")
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable observation timestamp %q", s)
}

// parseCoord parses a coordinate string, returning NaN on failure.
func parseCoord(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// HasCoordinates reports whether the observation carries a parseable
// latitude/longitude pair.
func (o Observation) HasCoordinates() bool {
	return !math.IsNaN(o.Latitude) && !math.IsNaN(o.Longitude)
}
