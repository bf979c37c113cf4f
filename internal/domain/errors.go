package domain

import (
	"errors"
	"fmt"
)

// TransientError wraps a retryable fetch failure: network errors, timeouts,
// throttling, and server-side 5xx responses.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// FatalError wraps a non-retryable fetch failure: auth rejection or a
// malformed query. It abandons the current block immediately.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return "fatal: " + e.Err.Error() }
func (e *FatalError) Unwrap() error { return e.Err }

// IsTransient reports whether err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsFatal reports whether err is (or wraps) a FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// CoverageError terminates a run whose retrieval coverage stayed below the
// floor after all whole-run retries. No output files are written.
type CoverageError struct {
	CoveragePct float64
	Reason      string
}

func (e *CoverageError) Error() string {
	return fmt.Sprintf("insufficient coverage: %.1f%% (%s)", e.CoveragePct, e.Reason)
}

// SchemaError reports a static input missing a required file or property.
// It aborts the run before any network activity.
type SchemaError struct {
	Input   string // "stations" or "region"
	Missing string // file path or property name
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("static input %q missing required %s", e.Input, e.Missing)
}

// EmptyResultError reports a stage that produced zero rows where the contract
// requires at least one. Nothing downstream of that stage is written.
type EmptyResultError struct {
	Stage string
}

func (e *EmptyResultError) Error() string {
	return fmt.Sprintf("stage %q produced zero rows", e.Stage)
}
