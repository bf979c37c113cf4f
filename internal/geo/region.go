package geo

import (
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"github.com/geoandina/rainfall-etl/internal/domain"
)

// Region is the region-of-interest polygon set. Containment is tested against
// the union of its members: a point is inside when any member polygon
// contains it.
type Region struct {
	polygons []orb.Polygon
}

// LoadRegion reads the region polygons from a GeoJSON file in WGS-84. A
// missing or unreadable file is a *domain.SchemaError; a file with zero
// polygon features loads as an empty region (the filter then returns an empty
// result rather than failing).
func LoadRegion(path string) (*Region, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &domain.SchemaError{Input: "region", Missing: fmt.Sprintf("file %s", path)}
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse region polygons: %w", err)
	}

	rg := &Region{}
	for _, f := range fc.Features {
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			rg.polygons = append(rg.polygons, g)
		case orb.MultiPolygon:
			rg.polygons = append(rg.polygons, g...)
		}
	}
	return rg, nil
}

// Contains reports whether the point lies inside the union of member polygons.
func (rg *Region) Contains(p orb.Point) bool {
	for _, poly := range rg.polygons {
		if planar.PolygonContains(poly, p) {
			return true
		}
	}
	return false
}

// Empty reports whether no polygons loaded.
func (rg *Region) Empty() bool {
	return len(rg.polygons) == 0
}
