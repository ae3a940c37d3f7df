// Package apperr defines the error taxonomy shared by the chat services.
//
// Every failure that reaches a caller is an *Error carrying a Kind. Code
// inspects the Kind (KindOf, Is) instead of matching on concrete types, and
// the HTTP layer maps the Kind to a status code and a user-safe message.
package apperr

import (
	"errors"
	"fmt"
)

// Kind discriminates error variants.
type Kind string

const (
	KindConfiguration      Kind = "configuration_error"
	KindValidation         Kind = "validation_error"
	KindNotFound           Kind = "not_found"
	KindProviderRequest    Kind = "provider_request_error"
	KindTimeout            Kind = "timeout_error"
	KindNetwork            Kind = "network_error"
	KindResponseProcessing Kind = "response_processing_error"
	KindInternal           Kind = "internal_error"
)

// Retryable reports whether an attempt that failed with this kind may be retried.
func (k Kind) Retryable() bool {
	switch k {
	case KindProviderRequest, KindTimeout, KindNetwork, KindInternal:
		return true
	default:
		return false
	}
}

// Error is the tagged error variant.
type Error struct {
	Kind    Kind
	Message string

	// Field names the offending input for validation errors.
	Field string

	// Status and Provider are set for provider request errors.
	Status   int
	Provider ProviderStatus

	// Err is the underlying cause. It is logged but never shown to users.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Configuration reports a missing or invalid required setting.
func Configuration(message string) *Error {
	return &Error{Kind: KindConfiguration, Message: message}
}

// Validation reports malformed caller input on the given field.
func Validation(field, message string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: message}
}

// NotFound reports a missing resource, e.g. NotFound("Conversation").
func NotFound(resource string) *Error {
	if resource == "" {
		resource = "Resource"
	}
	return &Error{Kind: KindNotFound, Message: resource + " not found"}
}

// Timeout reports an attempt that exceeded its deadline.
func Timeout(cause error) *Error {
	return &Error{Kind: KindTimeout, Message: "Request timeout. Please try again.", Err: cause}
}

// Network reports a DNS or connection failure.
func Network(cause error) *Error {
	return &Error{Kind: KindNetwork, Message: "Network error. Please check your internet connection.", Err: cause}
}

// ResponseProcessing reports a provider reply that could not be normalized.
func ResponseProcessing(cause error) *Error {
	return &Error{Kind: KindResponseProcessing, Message: "Failed to process Gemini API response", Err: cause}
}

// Internal reports an unexpected failure.
func Internal(cause error) *Error {
	return &Error{Kind: KindInternal, Message: "Unexpected error", Err: cause}
}

// KindOf returns the Kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// As extracts the *Error from err.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
