package apperr

import (
	"fmt"
	"net/http"
)

// ProviderStatus classifies a failed provider HTTP response.
type ProviderStatus string

const (
	ProviderBadRequest   ProviderStatus = "bad_request"
	ProviderUnauthorized ProviderStatus = "unauthorized"
	ProviderForbidden    ProviderStatus = "forbidden"
	ProviderRateLimited  ProviderStatus = "rate_limited"
	ProviderServerError  ProviderStatus = "server_error"
)

// ProviderRequest classifies a non-2xx provider response by status code.
// detail is the provider's own error message, if any.
func ProviderRequest(status int, detail string) *Error {
	e := &Error{Kind: KindProviderRequest, Status: status}

	switch status {
	case http.StatusBadRequest:
		e.Provider = ProviderBadRequest
		if detail == "" {
			detail = "Bad request"
		}
		e.Message = "Invalid request: " + detail
	case http.StatusUnauthorized:
		e.Provider = ProviderUnauthorized
		e.Message = "Invalid API key or unauthorized access"
	case http.StatusForbidden:
		e.Provider = ProviderForbidden
		e.Message = "API access forbidden or quota exceeded"
	case http.StatusTooManyRequests:
		e.Provider = ProviderRateLimited
		e.Message = "Rate limit exceeded. Please try again later."
	case http.StatusInternalServerError:
		e.Provider = ProviderServerError
		e.Message = "Gemini API server error. Please try again later."
	default:
		e.Provider = ProviderServerError
		if detail == "" {
			detail = "Unknown error"
		}
		e.Message = fmt.Sprintf("Gemini API error (%d): %s", status, detail)
	}

	return e
}
