package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/capitalize-ai/gemini-chat/internal/apperr"
	"github.com/capitalize-ai/gemini-chat/internal/model"
	"github.com/capitalize-ai/gemini-chat/internal/service"
	"github.com/capitalize-ai/gemini-chat/pkg/logger"
)

const (
	defaultListLimit = 10
	maxListLimit     = 100
	maxTitleLength   = 256
)

// ChatHandler handles chat and conversation endpoints.
type ChatHandler struct {
	chat *service.ChatService
	responder
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(chat *service.ChatService, log *logger.Logger, development bool) *ChatHandler {
	return &ChatHandler{
		chat:      chat,
		responder: responder{logger: log.Named("chat_handler"), development: development},
	}
}

// SendMessage handles POST /api/chat/message
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req model.SendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	resp, err := h.chat.HandleIncomingMessage(r.Context(), &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeSuccess(w, "Message sent successfully", resp)
}

// GetConversation handles GET /api/chat/conversation/{id}
func (h *ChatHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := h.chat.Store().Get(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeSuccess(w, "Conversation retrieved successfully", map[string]any{"conversation": conv})
}

// UpdateConversation handles PATCH /api/chat/conversation/{id}
func (h *ChatHandler) UpdateConversation(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateConversationRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		h.writeError(w, r, apperr.Validation("title", "title is required and must be a non-empty string"))
		return
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		h.writeError(w, r, apperr.Validation("title", fmt.Sprintf("title must not exceed %d characters", maxTitleLength)))
		return
	}

	conv, err := h.chat.Store().UpdateTitle(chi.URLParam(r, "id"), title)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeSuccess(w, "Conversation updated successfully", map[string]any{"conversation": conv})
}

// DeleteConversation handles DELETE /api/chat/conversation/{id}
func (h *ChatHandler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	if err := h.chat.DeleteConversation(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}

	writeSuccess(w, "Conversation deleted successfully", nil)
}

// ListConversations handles GET /api/chat/conversations
func (h *ChatHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	offset := 0

	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil {
			limit = min(max(parsed, 1), maxListLimit)
		}
	}

	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	writeSuccess(w, "Conversations retrieved successfully", h.chat.Store().List(limit, offset))
}

// Clear handles POST /api/chat/clear
func (h *ChatHandler) Clear(w http.ResponseWriter, r *http.Request) {
	count := h.chat.ClearConversations(r.Context())
	writeSuccess(w, fmt.Sprintf("Cleared %d conversations", count), map[string]int{"cleared": count})
}

// Stats handles GET /api/chat/stats
func (h *ChatHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, "Statistics retrieved successfully", map[string]any{"stats": h.chat.Store().Stats()})
}

// ValidateAPI handles POST /api/chat/validate-api
func (h *ChatHandler) ValidateAPI(w http.ResponseWriter, r *http.Request) {
	valid := h.chat.ValidateAPIKey(r.Context())

	message := "API key is invalid or service unavailable"
	if valid {
		message = "API key is valid"
	}

	writeSuccess(w, "API validation completed", map[string]any{
		"valid":   valid,
		"message": message,
	})
}
