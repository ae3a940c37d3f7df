package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderRequestClassification(t *testing.T) {
	tests := []struct {
		status   int
		detail   string
		provider ProviderStatus
		message  string
	}{
		{http.StatusBadRequest, "", ProviderBadRequest, "Invalid request: Bad request"},
		{http.StatusBadRequest, "contents is empty", ProviderBadRequest, "Invalid request: contents is empty"},
		{http.StatusUnauthorized, "", ProviderUnauthorized, "Invalid API key or unauthorized access"},
		{http.StatusForbidden, "", ProviderForbidden, "API access forbidden or quota exceeded"},
		{http.StatusTooManyRequests, "", ProviderRateLimited, "Rate limit exceeded. Please try again later."},
		{http.StatusInternalServerError, "", ProviderServerError, "Gemini API server error. Please try again later."},
		{http.StatusServiceUnavailable, "overloaded", ProviderServerError, "Gemini API error (503): overloaded"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status, tt.detail), func(t *testing.T) {
			err := ProviderRequest(tt.status, tt.detail)
			assert.Equal(t, KindProviderRequest, err.Kind)
			assert.Equal(t, tt.provider, err.Provider)
			assert.Equal(t, tt.status, err.Status)
			assert.Equal(t, tt.message, err.Message)
		})
	}
}

func TestKindOfThroughWrapping(t *testing.T) {
	err := fmt.Errorf("handling: %w", Validation("message", "Message is required"))

	assert.Equal(t, KindValidation, KindOf(err))
	assert.True(t, Is(err, KindValidation))
	assert.False(t, Is(err, KindNotFound))

	e, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, "message", e.Field)

	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
}

func TestUnwrapKeepsCause(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := Network(cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestRetryable(t *testing.T) {
	assert.True(t, KindTimeout.Retryable())
	assert.True(t, KindNetwork.Retryable())
	assert.True(t, KindProviderRequest.Retryable())
	assert.False(t, KindValidation.Retryable())
	assert.False(t, KindConfiguration.Retryable())
	assert.False(t, KindResponseProcessing.Retryable())
}

func TestNotFoundDefaultResource(t *testing.T) {
	assert.Equal(t, "Resource not found", NotFound("").Message)
	assert.Equal(t, "Conversation not found", NotFound("Conversation").Message)
}

func TestInternalMessageOmitsCause(t *testing.T) {
	cause := errors.New("dial https://example.test/?key=secret")
	err := Internal(cause)

	assert.Equal(t, "Unexpected error", err.Message)
	assert.ErrorIs(t, err, cause)
}
