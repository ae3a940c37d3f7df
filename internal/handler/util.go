// Package handler provides HTTP handlers for the API.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"

	"go.uber.org/zap"

	"github.com/capitalize-ai/gemini-chat/internal/apperr"
	"github.com/capitalize-ai/gemini-chat/internal/middleware"
	"github.com/capitalize-ai/gemini-chat/pkg/logger"
)

const (
	internalErrorMessage   = "An internal server error occurred. Please try again later."
	unexpectedErrorMessage = "An unexpected error occurred. Please try again later."
)

// SuccessResponse is the envelope for successful responses.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// ErrorResponse is the envelope for failed responses. Stack and Type are
// only populated in development.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Details any    `json:"details,omitempty"`
	Stack   string `json:"stack,omitempty"`
	Type    string `json:"type,omitempty"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeSuccess writes a success envelope with status 200.
func writeSuccess(w http.ResponseWriter, message string, data any) {
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Message: message, Data: data})
}

// StatusCode maps an error to its HTTP status.
func StatusCode(err error) int {
	e, ok := apperr.As(err)
	if !ok {
		return http.StatusInternalServerError
	}

	switch e.Kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindProviderRequest:
		if e.Provider == apperr.ProviderRateLimited {
			return http.StatusTooManyRequests
		}
		return http.StatusBadGateway
	case apperr.KindTimeout:
		return http.StatusGatewayTimeout
	case apperr.KindNetwork:
		return http.StatusServiceUnavailable
	case apperr.KindResponseProcessing:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// responder writes error envelopes and logs the failure.
type responder struct {
	logger      *logger.Logger
	development bool
}

func (rp responder) writeError(w http.ResponseWriter, r *http.Request, err error) {
	rp.writeErrorDetails(w, r, err, nil)
}

func (rp responder) writeErrorDetails(w http.ResponseWriter, r *http.Request, err error, details any) {
	status := StatusCode(err)
	resp := ErrorResponse{Error: true, Details: details}

	if e, ok := apperr.As(err); ok {
		resp.Kind = string(e.Kind)
		resp.Message = e.Message
		resp.Field = e.Field
		if e.Kind == apperr.KindInternal && !rp.development {
			resp.Message = internalErrorMessage
		}
	} else {
		resp.Kind = string(apperr.KindInternal)
		resp.Message = internalErrorMessage
		if rp.development {
			resp.Message = err.Error()
		}
	}
	if resp.Message == "" {
		resp.Message = unexpectedErrorMessage
	}
	if rp.development {
		resp.Stack = fmt.Sprintf("%+v", err)
		resp.Type = fmt.Sprintf("%T", err)
	}

	log := rp.logger.WithCorrelationID(middleware.GetCorrelationID(r.Context()))
	fields := []zap.Field{
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.String("kind", resp.Kind),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		log.Error("request failed", fields...)
	} else {
		log.Warn("request failed", fields...)
	}

	writeJSON(w, status, resp)
}

// decodeJSON decodes the request body into v, reporting malformed bodies as
// validation errors.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperr.Validation("body", fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit))
		}
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return apperr.Validation(typeErr.Field, fmt.Sprintf("%s must be %s", typeErr.Field, jsonTypeName(typeErr.Type)))
		}
		return apperr.Validation("body", "request body must be valid JSON")
	}
	return nil
}

func jsonTypeName(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "a string"
	case reflect.Bool:
		return "a boolean"
	case reflect.Slice, reflect.Array:
		return "an array"
	case reflect.Struct, reflect.Map:
		return "an object"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return "a number"
	default:
		return "a valid value"
	}
}
