// Package artifact persists the run outputs: the feature table CSV (dated and
// latest copies), the JSON run summary, and the compressed raw-records
// backup. All writes go through a temp file and a rename so a collaborator
// polling the output directory never observes a partial file.
package artifact

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/klauspost/pgzip"

	"github.com/geoandina/rainfall-etl/internal/domain"
)

// Header is the feature table's column contract, consumed verbatim by the
// downstream risk model. Do not reorder or rename.
var Header = []string{
	"codigoestacion",
	"data",
	"daily rain",
	"1-rain ant.rain",
	"2-rain ant.rain",
	"3-rain ant.rain",
	"15-rain ant.rain",
	"30-rain ant.rain",
}

const (
	latestName  = "lluvia_procesada_latest.csv"
	summaryName = "resumen_lluvia.json"
)

// Writer persists run artifacts under a single output directory.
type Writer struct {
	dir    string
	logger *slog.Logger
}

// NewWriter creates a Writer rooted at dir, creating it if needed.
func NewWriter(dir string, logger *slog.Logger) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &Writer{dir: dir, logger: logger}, nil
}

// WriteFeatures writes the feature table as lluvia_30d_<date>.csv and
// overwrites the fixed latest copy polled by the risk model. The date in the
// filename is the most recent anchor date across stations.
func (w *Writer) WriteFeatures(rows []domain.FeatureRow) (string, string, error) {
	var dataDate time.Time
	for _, r := range rows {
		if r.AnchorDate.After(dataDate) {
			dataDate = r.AnchorDate
		}
	}

	records := make([][]string, 0, len(rows)+1)
	records = append(records, Header)
	for _, r := range rows {
		records = append(records, []string{
			r.SensorID,
			r.AnchorDate.Format("2006-01-02"),
			formatValue(r.DailyRain),
			formatValue(r.Accum1d),
			formatValue(r.Accum2d),
			formatValue(r.Accum3d),
			formatValue(r.Accum15d),
			formatValue(r.Accum30d),
		})
	}

	dated := filepath.Join(w.dir, fmt.Sprintf("lluvia_30d_%s.csv", dataDate.Format("2006-01-02")))
	if err := w.writeCSV(dated, records); err != nil {
		return "", "", err
	}

	latest := filepath.Join(w.dir, latestName)
	if err := w.writeCSV(latest, records); err != nil {
		return "", "", err
	}
	return dated, latest, nil
}

// WriteSummary writes the JSON run summary next to the feature table.
func (w *Writer) WriteSummary(s domain.RunSummary) (string, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal run summary: %w", err)
	}
	path := filepath.Join(w.dir, summaryName)
	if err := w.writeAtomic(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// WriteRawBackup writes the retrieved records as a gzip-compressed CSV keyed
// by the max observed date, so a failed downstream stage can be replayed
// without hitting the portal again.
func (w *Writer) WriteRawBackup(records []domain.RawRecord, maxDate time.Time) (string, error) {
	path := filepath.Join(w.dir, fmt.Sprintf("RAW_lluvia_backup_%s.csv.gz", maxDate.Format("2006-01-02")))
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("create raw backup: %w", err)
	}
	defer os.Remove(tmp)

	gz := pgzip.NewWriter(f)
	cw := csv.NewWriter(gz)

	if err := cw.Write([]string{"codigoestacion", "fechaobservacion", "valorobservado", "latitud", "longitud", "municipio", "departamento"}); err != nil {
		f.Close()
		return "", fmt.Errorf("write raw backup header: %w", err)
	}
	for _, rec := range records {
		row := []string{rec.CodigoEstacion, rec.FechaObservacion, rec.ValorObservado, rec.Latitud, rec.Longitud, rec.Municipio, rec.Departamento}
		if err := cw.Write(row); err != nil {
			f.Close()
			return "", fmt.Errorf("write raw backup row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		f.Close()
		return "", fmt.Errorf("flush raw backup: %w", err)
	}
	if err := gz.Close(); err != nil {
		f.Close()
		return "", fmt.Errorf("close raw backup gzip: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close raw backup: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("finalize raw backup: %w", err)
	}
	return path, nil
}

func (w *Writer) writeCSV(path string, records [][]string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	defer os.Remove(tmp)

	cw := csv.NewWriter(f)
	if err := cw.WriteAll(records); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("finalize %s: %w", filepath.Base(path), err)
	}
	return nil
}

func (w *Writer) writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("finalize %s: %w", filepath.Base(path), err)
	}
	return nil
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
