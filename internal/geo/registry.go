// Package geo loads the static geographic inputs (station registry and
// region-of-interest polygons) and restricts observations to the region.
package geo

import (
	"fmt"
	"os"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/geoandina/rainfall-etl/internal/domain"
)

// Station is one entry of the authoritative station registry. Its locality
// fields are the reference values used to repair metadata drift in the
// telemetry.
type Station struct {
	Code         string
	Municipality string
	Department   string
	Point        orb.Point
}

// Registry is the static point-geometry station registry, keyed by station code.
type Registry struct {
	byCode map[string]Station
}

// LoadRegistry reads the station registry from a GeoJSON file. Each feature
// needs the properties codigo, mpio_def, and depto_def; a missing file or a
// feature missing a required property is a *domain.SchemaError.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &domain.SchemaError{Input: "stations", Missing: fmt.Sprintf("file %s", path)}
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse station registry: %w", err)
	}

	r := &Registry{byCode: make(map[string]Station, len(fc.Features))}
	for _, f := range fc.Features {
		code, ok := propString(f.Properties, "codigo")
		if !ok {
			return nil, &domain.SchemaError{Input: "stations", Missing: "property codigo"}
		}
		mpio, ok := propString(f.Properties, "mpio_def")
		if !ok {
			return nil, &domain.SchemaError{Input: "stations", Missing: "property mpio_def"}
		}
		depto, ok := propString(f.Properties, "depto_def")
		if !ok {
			return nil, &domain.SchemaError{Input: "stations", Missing: "property depto_def"}
		}

		st := Station{Code: code, Municipality: mpio, Department: depto}
		if p, ok := f.Geometry.(orb.Point); ok {
			st.Point = p
		}
		r.byCode[code] = st
	}

	return r, nil
}

// Lookup returns the registry entry for a station code.
func (r *Registry) Lookup(code string) (Station, bool) {
	st, ok := r.byCode[code]
	return st, ok
}

// Len returns the number of registered stations.
func (r *Registry) Len() int {
	return len(r.byCode)
}

// propString reads a GeoJSON property as a string. Codes exported from the
// source shapefile sometimes arrive as numbers; those are formatted without
// a fractional part.
func propString(props geojson.Properties, key string) (string, bool) {
	v, ok := props[key]
	if !ok || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	default:
		return "", false
	}
}
