package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTransient_SeesWrappedError(t *testing.T) {
	base := &TransientError{Err: errors.New("connection reset")}
	wrapped := fmt.Errorf("fetch page: %w", base)

	assert.True(t, IsTransient(base))
	assert.True(t, IsTransient(wrapped))
	assert.False(t, IsFatal(wrapped))
}

func TestIsFatal_SeesWrappedError(t *testing.T) {
	base := &FatalError{Err: errors.New("status 401")}
	wrapped := fmt.Errorf("fetch page: %w", base)

	assert.True(t, IsFatal(base))
	assert.True(t, IsFatal(wrapped))
	assert.False(t, IsTransient(wrapped))
}

func TestCoverageError_Message(t *testing.T) {
	err := &CoverageError{CoveragePct: 45, Reason: "6 of 10 requested days lost after 3 full attempts"}
	assert.Contains(t, err.Error(), "45.0%")
	assert.Contains(t, err.Error(), "6 of 10")
}

func TestSchemaError_Message(t *testing.T) {
	err := &SchemaError{Input: "stations", Missing: "property codigo"}
	assert.Contains(t, err.Error(), "stations")
	assert.Contains(t, err.Error(), "property codigo")
}

func TestBlockStatusString(t *testing.T) {
	assert.Equal(t, "pending", BlockPending.String())
	assert.Equal(t, "in_progress", BlockInProgress.String())
	assert.Equal(t, "succeeded", BlockSucceeded.String())
	assert.Equal(t, "failed", BlockFailed.String())
}
