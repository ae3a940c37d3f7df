package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/capitalize-ai/gemini-chat/internal/apperr"
	"github.com/capitalize-ai/gemini-chat/internal/middleware"
	"github.com/capitalize-ai/gemini-chat/pkg/logger"
)

// jsonBodyLimit caps JSON request bodies.
const jsonBodyLimit = 10 << 20

// RouterConfig carries everything the HTTP surface needs.
type RouterConfig struct {
	Chat   *ChatHandler
	Files  *FilesHandler
	Health *HealthHandler
	Logger *logger.Logger

	CORSOrigin        string
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// NewRouter builds the chi router with global middleware and every route.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.CORSOrigin))

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		if cfg.RateLimitRequests > 0 && cfg.RateLimitWindow > 0 {
			r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
		}

		r.Get("/health", cfg.Health.Health)
		r.Get("/ready", cfg.Health.Ready)

		r.Route("/chat", func(r chi.Router) {
			r.Use(middleware.MaxBodySize(jsonBodyLimit))

			r.Post("/message", cfg.Chat.SendMessage)
			r.Get("/conversations", cfg.Chat.ListConversations)
			r.Post("/clear", cfg.Chat.Clear)
			r.Get("/stats", cfg.Chat.Stats)
			r.Post("/validate-api", cfg.Chat.ValidateAPI)

			r.Route("/conversation/{id}", func(r chi.Router) {
				r.Use(middleware.ConversationIDParam("id"))
				r.Get("/", cfg.Chat.GetConversation)
				r.Patch("/", cfg.Chat.UpdateConversation)
				r.Delete("/", cfg.Chat.DeleteConversation)
			})
		})

		r.Route("/files", func(r chi.Router) {
			r.Post("/upload", cfg.Files.Upload)
			r.Get("/supported-types", cfg.Files.SupportedTypes)
			r.Get("/health", cfg.Files.Health)
			r.Delete("/{filename}", cfg.Files.Delete)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{
			Error:   true,
			Kind:    string(apperr.KindNotFound),
			Message: "Route not found",
		})
	})

	return r
}
