package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotFound(t *testing.T) {
	err := NotFound("execution", "abc123")

	assert.Equal(t, "execution not found with id abc123", err.Error())
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrValidation))
}

func TestValidationFailed(t *testing.T) {
	err := ValidationFailed("code", "code is required")

	assert.Equal(t, "code is required", err.Error())
	assert.Equal(t, "code", err.Field)
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestUnwrapThroughWrapping(t *testing.T) {
	// Services wrap AppErrors with context; errors.Is and errors.As must
	// still find them through the chain.
	inner := ValidationFailed("code", "code too large")
	wrapped := fmt.Errorf("running submission: %w", inner)

	assert.True(t, errors.Is(wrapped, ErrValidation))

	var appErr *AppError
	assert.True(t, errors.As(wrapped, &appErr))
	assert.Equal(t, "code too large", appErr.Message)
}
