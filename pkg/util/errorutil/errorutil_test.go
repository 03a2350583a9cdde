package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToDomainError(t *testing.T) {
	t.Run("passes domain errors through wrapping", func(t *testing.T) {
		wrapped := fmt.Errorf("handler: %w", NewStateError("problem is done", nil))
		de := ToDomainError(wrapped)
		assert.Equal(t, CodeInvalidState, de.Code)
		assert.Equal(t, http.StatusConflict, de.HTTPStatus)
	})

	t.Run("unknown errors become internal", func(t *testing.T) {
		cause := errors.New("connection refused")
		de := ToDomainError(cause)
		assert.Equal(t, CodeInternal, de.Code)
		assert.Equal(t, http.StatusInternalServerError, de.HTTPStatus)
		assert.ErrorIs(t, de, cause)
	})

	t.Run("nil stays nil", func(t *testing.T) {
		assert.Nil(t, ToDomainError(nil))
		assert.NoError(t, MapError(nil))
	})
}

func TestHasCode(t *testing.T) {
	err := NewInsufficientFunds(100, 40)
	assert.True(t, HasCode(err, CodeInsufficientFunds))
	assert.False(t, HasCode(err, CodeNotFound))
	assert.False(t, HasCode(errors.New("plain"), CodeInternal))

	de := ToDomainError(err)
	assert.Equal(t, int64(100), de.Details["required"])
	assert.Equal(t, int64(40), de.Details["balance"])
}
