package model

import (
	"errors"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestAdapterError(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	err := NewAdapterError("analyze", cause)

	assert.True(t, IsAdapterError(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "analyze")

	// Detection survives wrapping.
	assert.True(t, IsAdapterError(eris.Wrap(err, "outer")))
	assert.False(t, IsAdapterError(errors.New("plain")))
	assert.False(t, IsAdapterError(nil))
}

func TestValidationError(t *testing.T) {
	t.Parallel()

	err := NewValidationError(KindTag, "unknown field")
	assert.True(t, IsValidationError(err))
	assert.Contains(t, err.Error(), "tag")

	assert.True(t, IsValidationError(eris.Wrap(err, "outer")))
	assert.False(t, IsValidationError(NewAdapterError("op", errors.New("x"))))
	assert.False(t, IsValidationError(nil))
}

func TestErrAlreadyRunning(t *testing.T) {
	t.Parallel()

	wrapped := eris.Wrap(ErrAlreadyRunning, "start scan")
	assert.ErrorIs(t, wrapped, ErrAlreadyRunning)
}

func TestScanStatusTerminal(t *testing.T) {
	t.Parallel()

	assert.False(t, ScanStatusIdle.Terminal())
	assert.False(t, ScanStatusRunning.Terminal())
	assert.True(t, ScanStatusCompleted.Terminal())
	assert.True(t, ScanStatusCancelled.Terminal())
	assert.True(t, ScanStatusError.Terminal())
}
