// Command validate checks a finished run's artifacts for integrity: the
// feature table's column contract, value sanity, and agreement between the
// CSV and the JSON run summary.
//
// Usage:
//
//	go run ./cmd/validate -dir data/output/lluvia
package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/geoandina/rainfall-etl/internal/artifact"
	"github.com/geoandina/rainfall-etl/internal/domain"
)

const statsEpsilon = 1e-6

// phase tracks pass/fail for one validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dir := flag.String("dir", "data/output/lluvia", "run output directory")
	flag.Parse()

	if code := run(*dir); code != 0 {
		os.Exit(code)
	}
}

func run(dir string) int {
	rows, header, err := loadCSV(filepath.Join(dir, "lluvia_procesada_latest.csv"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load feature table: %v\n", err)
		return 1
	}
	summary, err := loadSummary(filepath.Join(dir, "resumen_lluvia.json"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load run summary: %v\n", err)
		return 1
	}

	phases := []*phase{
		checkHeader(header),
		checkRows(rows),
		checkSummary(rows, summary),
	}

	failed := 0
	for _, p := range phases {
		if p.passed() {
			fmt.Printf("PASS %s\n", p.name)
			continue
		}
		failed++
		fmt.Printf("FAIL %s\n", p.name)
		for _, e := range p.errors {
			fmt.Printf("  - %s\n", e)
		}
	}
	if failed > 0 {
		return 1
	}
	return 0
}

func checkHeader(header []string) *phase {
	p := &phase{name: "column contract"}
	if len(header) != len(artifact.Header) {
		p.errorf("expected %d columns, got %d", len(artifact.Header), len(header))
		return p
	}
	for i, want := range artifact.Header {
		if header[i] != want {
			p.errorf("column %d: want %q, got %q", i, want, header[i])
		}
	}
	return p
}

func checkRows(rows [][]string) *phase {
	p := &phase{name: "row sanity"}
	if len(rows) == 0 {
		p.errorf("feature table has zero rows")
		return p
	}
	seen := make(map[string]bool, len(rows))
	for i, row := range rows {
		if row[0] == "" {
			p.errorf("row %d: empty station code", i)
		}
		if seen[row[0]] {
			p.errorf("row %d: duplicate station %s", i, row[0])
		}
		seen[row[0]] = true
		for c := 2; c < len(row); c++ {
			v, err := strconv.ParseFloat(row[c], 64)
			if err != nil {
				p.errorf("row %d col %d: non-numeric %q", i, c, row[c])
				continue
			}
			if v < 0 {
				p.errorf("row %d col %d: negative rainfall %v", i, c, v)
			}
		}
	}
	return p
}

// checkSummary recomputes the per-column statistics from the CSV and compares
// them with the published summary.
func checkSummary(rows [][]string, s domain.RunSummary) *phase {
	p := &phase{name: "summary agreement"}
	if s.TotalSensors != len(rows) {
		p.errorf("summary says %d stations, table has %d", s.TotalSensors, len(rows))
	}
	for ci, col := range s.RainColumns {
		st, ok := s.Stats[col]
		if !ok {
			p.errorf("summary missing stats for %q", col)
			continue
		}
		mn, mx, sum := math.Inf(1), math.Inf(-1), 0.0
		for _, row := range rows {
			v, err := strconv.ParseFloat(row[ci+2], 64)
			if err != nil {
				continue
			}
			mn = math.Min(mn, v)
			mx = math.Max(mx, v)
			sum += v
		}
		mean := sum / float64(len(rows))
		if math.Abs(mn-st.Min) > statsEpsilon || math.Abs(mx-st.Max) > statsEpsilon || math.Abs(mean-st.Mean) > statsEpsilon {
			p.errorf("%s: summary stats (%.3f/%.3f/%.3f) disagree with table (%.3f/%.3f/%.3f)",
				col, st.Min, st.Max, st.Mean, mn, mx, mean)
		}
	}
	return p
}

func loadCSV(path string) ([][]string, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	all, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(all) == 0 {
		return nil, nil, fmt.Errorf("empty file %s", path)
	}
	return all[1:], all[0], nil
}

func loadSummary(path string) (domain.RunSummary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.RunSummary{}, err
	}
	var s domain.RunSummary
	if err := json.Unmarshal(data, &s); err != nil {
		return domain.RunSummary{}, err
	}
	return s, nil
}
