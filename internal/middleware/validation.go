package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/capitalize-ai/gemini-chat/internal/apperr"
	"github.com/capitalize-ai/gemini-chat/internal/service"
)

// ConversationIDParam rejects requests whose {param} route value is not a
// UUID, using the validation error envelope with field conversationId.
func ConversationIDParam(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := service.ValidateConversationID(chi.URLParam(r, param)); err != nil {
				e, _ := apperr.As(err)
				writeError(w, http.StatusBadRequest, errorBody{
					Error:   true,
					Kind:    string(e.Kind),
					Message: e.Message,
					Field:   e.Field,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// MaxBodySize caps request bodies at n bytes.
func MaxBodySize(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, n)
			next.ServeHTTP(w, r)
		})
	}
}
