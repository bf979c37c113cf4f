package domain

import "time"

// RawRecord is one loosely-typed row as returned by the Socrata API.
// Every field is a string regardless of its logical type.
type RawRecord struct {
	CodigoEstacion   string `json:"codigoestacion"`
	FechaObservacion string `json:"fechaobservacion"`
	ValorObservado   string `json:"valorobservado"`
	Latitud          string `json:"latitud"`
	Longitud         string `json:"longitud"`
	Municipio        string `json:"municipio"`
	Departamento     string `json:"departamento"`
}

// Observation is a validated sub-daily rainfall reading. Immutable once parsed.
type Observation struct {
	SensorID     string
	Timestamp    time.Time
	Value        float64
	Latitude     float64 // NaN when the source coordinate was unparseable
	Longitude    float64 // NaN when the source coordinate was unparseable
	Municipality string
	Department   string
}

// Date returns the observation's calendar day at midnight UTC.
func (o Observation) Date() time.Time {
	return o.Timestamp.UTC().Truncate(24 * time.Hour)
}

// DailyTotal is the rainfall sum for one station on one calendar day.
// Locality fields travel with the aggregate so the quality gate can reconcile
// station metadata without a second join.
type DailyTotal struct {
	SensorID     string
	Date         time.Time // midnight UTC
	Value        float64
	Municipality string
	Department   string
}

// FeatureRow is the terminal wide row consumed by the risk model: the day-0
// rainfall plus fixed-horizon accumulations over the days preceding day 0.
// AnchorDate is the station's own most recent reporting day.
type FeatureRow struct {
	SensorID     string
	AnchorDate   time.Time
	DailyRain    float64
	Accum1d      float64
	Accum2d      float64
	Accum3d      float64
	Accum15d     float64
	Accum30d     float64
	Municipality string
	Department   string
}

// TimeWindow is a half-open interval [Start, End) over observation timestamps.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// Days returns the window length in whole days, rounding partial days up.
func (w TimeWindow) Days() int {
	d := w.End.Sub(w.Start)
	days := int(d / (24 * time.Hour))
	if d%(24*time.Hour) != 0 {
		days++
	}
	return days
}

// ColumnStats holds the summary statistics reported for one rain column.
type ColumnStats struct {
	Min  float64 `json:"minimo"`
	Max  float64 `json:"maximo"`
	Mean float64 `json:"promedio"`
}

// RunSummary is the machine-readable diagnostics artifact written next to the
// feature table and optionally published to Kafka.
type RunSummary struct {
	DataDate        string                 `json:"fecha_datos"`
	ProcessedAt     string                 `json:"timestamp_proceso"`
	TotalSensors    int                    `json:"total_estaciones"`
	SensorsWithRain int                    `json:"estaciones_con_datos"`
	CoveragePct     float64                `json:"cobertura_pct"`
	Degraded        bool                   `json:"cobertura_degradada"`
	RainColumns     []string               `json:"columnas_lluvia"`
	Stats           map[string]ColumnStats `json:"estadisticas"`
	LatestFile      string                 `json:"archivo_datos"`
}
