// Command genmock serves a mock open-data portal and writes the static
// GeoJSON fixtures, so a full run can be exercised offline:
//
//	go run ./cmd/genmock -addr :9090 -out data/fixtures
//	STATIONS_PATH=data/fixtures/estaciones.geojson \
//	REGION_PATH=data/fixtures/region.geojson \
//	SOCRATA_HOST=http://localhost:9090 \
//	go run ./cmd/rainfall-etl
//
// The generated observations are deterministic for a given seed so repeated
// runs produce identical feature tables.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/geoandina/rainfall-etl/internal/domain"
)

var whereRe = regexp.MustCompile(`'(\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2})'`)

func main() {
	addr := flag.String("addr", ":9090", "listen address for the mock portal")
	out := flag.String("out", "data/fixtures", "directory for the GeoJSON fixtures")
	stations := flag.Int("stations", 25, "number of synthetic stations")
	days := flag.Int("days", 35, "days of history to generate, ending today")
	seed := flag.Int64("seed", 1, "random seed")
	flag.Parse()

	if err := writeFixtures(*out, *stations); err != nil {
		log.Fatalf("write fixtures: %v", err)
	}
	log.Printf("fixtures written to %s", *out)

	obs := generate(*stations, *days, *seed)
	log.Printf("serving %d synthetic records on %s", len(obs), *addr)

	http.HandleFunc("/resource/", func(w http.ResponseWriter, r *http.Request) {
		servePage(w, r, obs)
	})
	log.Fatal(http.ListenAndServe(*addr, nil))
}

// generate produces sub-daily readings for each station and day. Stations are
// placed on a grid inside the fixture region; a few report outside it to
// exercise the spatial filter.
func generate(stations, days int, seed int64) []domain.RawRecord {
	rng := rand.New(rand.NewSource(seed))
	end := time.Now().UTC().Truncate(24 * time.Hour)

	var out []domain.RawRecord
	for s := 0; s < stations; s++ {
		code := fmt.Sprintf("%07d", 2600000+s)
		lat := 5.0 + float64(s%5)*0.4
		lon := -75.0 + float64(s/5)*0.4
		if s%11 == 0 {
			lat, lon = 10.5, -60.0 // outside the region
		}
		for d := days - 1; d >= 0; d-- {
			day := end.AddDate(0, 0, -d)
			for h := 0; h < 24; h += 6 {
				out = append(out, domain.RawRecord{
					CodigoEstacion:   code,
					FechaObservacion: day.Add(time.Duration(h) * time.Hour).Format("2006-01-02T15:04:05.000"),
					ValorObservado:   strconv.FormatFloat(rng.Float64()*5, 'f', 1, 64),
					Latitud:          strconv.FormatFloat(lat, 'f', 4, 64),
					Longitud:         strconv.FormatFloat(lon, 'f', 4, 64),
					Municipio:        fmt.Sprintf("Municipio %d", s%7),
					Departamento:     "Antioquia",
				})
			}
		}
	}
	return out
}

// servePage answers a SODA-style query: the two timestamps in $where bound
// the window, $offset/$limit page through the matches.
func servePage(w http.ResponseWriter, r *http.Request, obs []domain.RawRecord) {
	q := r.URL.Query()
	bounds := whereRe.FindAllStringSubmatch(q.Get("$where"), -1)
	if len(bounds) != 2 {
		http.Error(w, "expected two timestamps in $where", http.StatusBadRequest)
		return
	}
	start, err1 := time.ParseInLocation("2006-01-02T15:04:05", bounds[0][1], time.UTC)
	end, err2 := time.ParseInLocation("2006-01-02T15:04:05", bounds[1][1], time.UTC)
	if err1 != nil || err2 != nil {
		http.Error(w, "bad timestamps in $where", http.StatusBadRequest)
		return
	}

	offset, _ := strconv.Atoi(q.Get("$offset"))
	limit, _ := strconv.Atoi(q.Get("$limit"))
	if limit <= 0 {
		limit = 1000
	}

	var matched []domain.RawRecord
	for _, rec := range obs {
		ts, err := time.ParseInLocation("2006-01-02T15:04:05.000", rec.FechaObservacion, time.UTC)
		if err != nil {
			continue
		}
		if !ts.Before(start) && ts.Before(end) {
			matched = append(matched, rec)
		}
	}

	page := []domain.RawRecord{}
	if offset < len(matched) {
		page = matched[offset:min(offset+limit, len(matched))]
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(page) //nolint:errcheck // best-effort mock response
}

// writeFixtures emits the station registry and a rectangular region covering
// the generated grid.
func writeFixtures(dir string, stations int) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	type feature struct {
		Type       string         `json:"type"`
		Geometry   map[string]any `json:"geometry"`
		Properties map[string]any `json:"properties"`
	}
	collection := func(features []feature) map[string]any {
		return map[string]any{"type": "FeatureCollection", "features": features}
	}

	var stationFeatures []feature
	for s := 0; s < stations; s++ {
		lat := 5.0 + float64(s%5)*0.4
		lon := -75.0 + float64(s/5)*0.4
		stationFeatures = append(stationFeatures, feature{
			Type:     "Feature",
			Geometry: map[string]any{"type": "Point", "coordinates": []float64{lon, lat}},
			Properties: map[string]any{
				"codigo":    fmt.Sprintf("%07d", 2600000+s),
				"mpio_def":  fmt.Sprintf("Municipio %d", s%7),
				"depto_def": "Antioquia",
			},
		})
	}

	region := []feature{{
		Type: "Feature",
		Geometry: map[string]any{
			"type": "Polygon",
			"coordinates": [][][]float64{{
				{-76.0, 4.0}, {-72.0, 4.0}, {-72.0, 8.0}, {-76.0, 8.0}, {-76.0, 4.0},
			}},
		},
		Properties: map[string]any{"nombre": "Region Andina"},
	}}

	if err := writeJSON(filepath.Join(dir, "estaciones.geojson"), collection(stationFeatures)); err != nil {
		return err
	}
	return writeJSON(filepath.Join(dir, "region.geojson"), collection(region))
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
