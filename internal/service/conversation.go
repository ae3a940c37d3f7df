// Package service provides business logic for the chat platform.
package service

import (
	"math"
	"sort"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capitalize-ai/gemini-chat/internal/apperr"
	"github.com/capitalize-ai/gemini-chat/internal/model"
	"github.com/capitalize-ai/gemini-chat/pkg/logger"
	"github.com/capitalize-ai/gemini-chat/pkg/metrics"
)

const (
	// MaxMessageContentLength bounds stored message content, in characters.
	MaxMessageContentLength = 50000

	// DefaultMaxHistory is used when the store is created with a non-positive bound.
	DefaultMaxHistory = 50

	previewLength = 100
)

// ConversationStore owns every conversation for the lifetime of the process.
// Returned conversations are snapshots; mutate only through store methods.
type ConversationStore struct {
	maxHistory int
	logger     *logger.Logger
	now        func() time.Time

	conversations map[string]*model.Conversation
	mu            sync.RWMutex
}

// NewConversationStore creates an empty store that keeps at most maxHistory
// messages per conversation.
func NewConversationStore(maxHistory int, log *logger.Logger) *ConversationStore {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	if log == nil {
		log = logger.Nop()
	}
	return &ConversationStore{
		maxHistory:    maxHistory,
		logger:        log.Named("conversations"),
		now:           time.Now,
		conversations: make(map[string]*model.Conversation),
	}
}

// MaxHistory returns the per-conversation message bound.
func (s *ConversationStore) MaxHistory() int {
	return s.maxHistory
}

// Create allocates a new empty conversation with a fresh ID.
func (s *ConversationStore) Create() *model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertLocked(uuid.NewString()).Clone()
}

// Get returns the conversation with the given ID.
func (s *ConversationStore) Get(id string) (*model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, apperr.NotFound("Conversation")
	}
	return conv.Clone(), nil
}

// GetOrCreate returns the conversation with the given ID, creating it under
// that same ID when it does not exist. An empty ID behaves like Create.
func (s *ConversationStore) GetOrCreate(id string) *model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == "" {
		return s.insertLocked(uuid.NewString()).Clone()
	}
	if conv, ok := s.conversations[id]; ok {
		return conv.Clone()
	}
	return s.insertLocked(id).Clone()
}

func (s *ConversationStore) insertLocked(id string) *model.Conversation {
	now := s.now()
	conv := &model.Conversation{
		ID:        id,
		Messages:  []model.Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.conversations[id] = conv

	metrics.ConversationsTotal.Inc()
	metrics.ConversationsActive.Set(float64(len(s.conversations)))
	s.logger.Debug("conversation created", zap.String("conversation_id", id))

	return conv
}

// AddMessage assigns an ID and timestamp to draft, appends it, and trims the
// oldest messages so the conversation never exceeds the history bound.
func (s *ConversationStore) AddMessage(conversationID string, draft model.Message) (*model.Conversation, *model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[conversationID]
	if !ok {
		return nil, nil, apperr.NotFound("Conversation")
	}

	now := s.now()
	msg := draft.Clone()
	msg.ID = uuid.NewString()
	msg.Timestamp = now

	conv.Messages = append(conv.Messages, msg)
	conv.UpdatedAt = now

	if excess := len(conv.Messages) - s.maxHistory; excess > 0 {
		kept := make([]model.Message, s.maxHistory)
		copy(kept, conv.Messages[excess:])
		conv.Messages = kept

		metrics.MessagesTrimmedTotal.Add(float64(excess))
		s.logger.Debug("conversation history trimmed",
			zap.String("conversation_id", conversationID),
			zap.Int("removed", excess),
		)
	}

	metrics.RecordMessage(string(msg.Role))

	out := msg.Clone()
	return conv.Clone(), &out, nil
}

// UpdateTitle sets the conversation title. Messages are never modified.
func (s *ConversationStore) UpdateTitle(id, title string) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, apperr.NotFound("Conversation")
	}
	conv.Title = title
	conv.UpdatedAt = s.now()

	return conv.Clone(), nil
}

// Delete removes a conversation and reports whether it existed.
func (s *ConversationStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[id]; !ok {
		return false
	}
	delete(s.conversations, id)
	metrics.ConversationsActive.Set(float64(len(s.conversations)))

	return true
}

// List returns conversation summaries, most recently updated first.
func (s *ConversationStore) List(limit, offset int) *model.ListConversationsResponse {
	if limit < 0 {
		limit = 0
	}
	if offset < 0 {
		offset = 0
	}

	s.mu.RLock()
	convs := make([]*model.Conversation, 0, len(s.conversations))
	for _, conv := range s.conversations {
		convs = append(convs, conv)
	}

	sort.Slice(convs, func(i, j int) bool {
		a, b := convs[i], convs[j]
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	total := len(convs)
	start := min(offset, total)
	end := min(start+limit, total)

	summaries := make([]model.ConversationSummary, 0, end-start)
	for _, conv := range convs[start:end] {
		summaries = append(summaries, summarize(conv))
	}
	s.mu.RUnlock()

	return &model.ListConversationsResponse{
		Conversations: summaries,
		Total:         total,
		Limit:         limit,
		Offset:        offset,
	}
}

func summarize(conv *model.Conversation) model.ConversationSummary {
	summary := model.ConversationSummary{
		ID:           conv.ID,
		Title:        conv.Title,
		CreatedAt:    conv.CreatedAt,
		UpdatedAt:    conv.UpdatedAt,
		MessageCount: len(conv.Messages),
	}
	if n := len(conv.Messages); n > 0 {
		preview := truncateRunes(conv.Messages[n-1].Content, previewLength) + "..."
		summary.LastMessage = &preview
	}
	return summary
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

// Clear removes every conversation and returns how many there were.
func (s *ConversationStore) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := len(s.conversations)
	s.conversations = make(map[string]*model.Conversation)
	metrics.ConversationsActive.Set(0)

	return count
}

// Stats aggregates message counts across all conversations.
func (s *ConversationStore) Stats() model.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := model.Stats{TotalConversations: len(s.conversations)}
	for _, conv := range s.conversations {
		stats.TotalMessages += len(conv.Messages)
	}
	if stats.TotalConversations > 0 {
		avg := float64(stats.TotalMessages) / float64(stats.TotalConversations)
		stats.AverageMessagesPerConversation = math.Round(avg*100) / 100
	}
	return stats
}

// ValidateMessage checks a draft before it is appended.
func (s *ConversationStore) ValidateMessage(draft model.Message) error {
	return ValidateMessage(draft)
}

// ValidateMessage checks role and content bounds of a message draft.
func ValidateMessage(draft model.Message) error {
	if !draft.Role.Valid() {
		return apperr.Validation("role", `Message role must be either "user" or "assistant"`)
	}
	if draft.Content == "" {
		return apperr.Validation("content", "Message content is required and must be a string")
	}
	if utf8.RuneCountInString(draft.Content) > MaxMessageContentLength {
		return apperr.Validation("content", "Message content exceeds maximum length of 50,000 characters")
	}
	return nil
}
