// Package domain models IDEAM rainfall telemetry and the artifacts derived
// from it on the way to the landslide-risk model.
//
// # Data Source
//
// Observations come from the IDEAM precipitation dataset published on the
// Colombian open-data portal (www.datos.gov.co, dataset s54a-sgyg), queried
// through its Socrata SODA interface. Every field arrives as a string, even
// numeric ones; [ParseRawRecord] is the single place where rows are coerced
// into typed values.
//
// Record conventions:
//
//	codigoestacion    station code, may carry stray whitespace; trimmed.
//	fechaobservacion  Socrata "floating timestamp": 2006-01-02T15:04:05.000,
//	                  sometimes without the millisecond part. No zone marker;
//	                  interpreted as UTC.
//	valorobservado    rainfall in millimetres for the sub-daily interval.
//	latitud/longitud  WGS-84 decimal degrees as strings. Unparseable values
//	                  become NaN so the spatial filter can drop the row before
//	                  the containment test instead of treating it as outside.
//	municipio/departamento  locality attribution as entered upstream; known to
//	                  drift across dates for the same station, which is why the
//	                  quality gate reconciles it against the station registry.
//
// A record with no usable station code, timestamp, or value is quarantined at
// the fetch boundary: counted and logged, never propagated downstream.
//
// # Retrieval Units
//
// A [Block] is a one-day slice of the requested window and the atomic unit of
// retry during ingestion. Coverage, as reported by [CoverageReport], is the
// fraction of requested days whose block retrieved at least one record. The
// run proceeds at >= 70% coverage, proceeds flagged degraded between 50% and
// 70%, and aborts below 50%.
//
// # Derived Rows
//
// [DailyTotal] is the per-station, per-calendar-day rainfall sum. A missing
// day is an absent row, never a zero row. [FeatureRow] is the terminal wide
// form: one row per station with the day-0 rainfall and the 1/2/3/15/30-day
// accumulations summed over the days preceding day 0.
package domain
