package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_ErrorAndUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewServiceUnavailableError("embedding call failed", cause)

	assert.Equal(t, "SERVICE_UNAVAILABLE: embedding call failed: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "NOT_FOUND: patient p1", NewNotFoundError("patient p1").Error())
}

func TestIsType(t *testing.T) {
	inner := NewMalformedResponseError("bad json", nil)
	outer := NewServiceUnavailableError("classifier", inner)
	wrapped := fmt.Errorf("retrieve: %w", outer)

	assert.True(t, IsType(wrapped, ErrorTypeServiceUnavailable))
	assert.True(t, IsType(wrapped, ErrorTypeMalformedResponse))
	assert.False(t, IsType(wrapped, ErrorTypeNotFound))
	assert.False(t, IsType(errors.New("plain"), ErrorTypeInternal))
}

func TestIsDegradable(t *testing.T) {
	assert.True(t, IsDegradable(NewExternalError("openai", nil)))
	assert.True(t, IsDegradable(NewMalformedResponseError("parse", nil)))
	assert.False(t, IsDegradable(NewValidationError("empty transcript")))
	assert.False(t, IsDegradable(nil))
}
