package service

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capitalize-ai/gemini-chat/internal/apperr"
	"github.com/capitalize-ai/gemini-chat/internal/llm"
	"github.com/capitalize-ai/gemini-chat/internal/model"
	"github.com/capitalize-ai/gemini-chat/pkg/logger"
)

const (
	// DefaultMaxInboundLength bounds the text of an inbound chat message.
	DefaultMaxInboundLength = 10000

	// DefaultMaxAttachments bounds attachments per inbound message.
	DefaultMaxAttachments = 5
)

var conversationIDPattern = regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-[1-5][0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

// ValidateConversationID checks that id is UUID-shaped.
func ValidateConversationID(id string) error {
	if !conversationIDPattern.MatchString(id) {
		return apperr.Validation("conversationId", "conversationId must be a valid UUID")
	}
	return nil
}

// Generator produces an assistant reply for a conversation history.
type Generator interface {
	GenerateContent(ctx context.Context, history []model.Message, current []model.Attachment) (*llm.Result, error)
	ValidateAPIKey(ctx context.Context) bool
}

// Publisher receives conversation events. Implementations must not block
// for long; failures are logged by the caller and otherwise ignored.
type Publisher interface {
	Publish(ctx context.Context, event *model.ConversationEvent) error
}

// NopPublisher discards events.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, *model.ConversationEvent) error { return nil }

// ChatLimits bounds inbound chat requests.
type ChatLimits struct {
	MaxMessageLength int
	MaxAttachments   int
}

// ChatService is the entry point for sending messages: it validates input,
// records the user message, asks the generator for a reply, and records it.
type ChatService struct {
	store     *ConversationStore
	generator Generator
	publisher Publisher
	limits    ChatLimits
	logger    *logger.Logger
}

// NewChatService creates a chat service. A nil publisher discards events.
func NewChatService(
	store *ConversationStore,
	generator Generator,
	publisher Publisher,
	limits ChatLimits,
	log *logger.Logger,
) *ChatService {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	if limits.MaxMessageLength <= 0 {
		limits.MaxMessageLength = DefaultMaxInboundLength
	}
	if limits.MaxAttachments <= 0 {
		limits.MaxAttachments = DefaultMaxAttachments
	}
	if log == nil {
		log = logger.Nop()
	}
	return &ChatService{
		store:     store,
		generator: generator,
		publisher: publisher,
		limits:    limits,
		logger:    log.Named("chat"),
	}
}

// Store returns the underlying conversation store.
func (s *ChatService) Store() *ConversationStore {
	return s.store
}

// HandleIncomingMessage runs one chat round trip. When generation fails the
// classified error is returned and the user message stays in the history.
func (s *ChatService) HandleIncomingMessage(ctx context.Context, req *model.SendMessageRequest) (*model.SendMessageResponse, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	conv := s.store.GetOrCreate(req.ConversationID)

	userDraft := model.Message{
		Role:        model.RoleUser,
		Content:     strings.TrimSpace(req.Message),
		Attachments: req.Attachments,
	}
	if err := s.store.ValidateMessage(userDraft); err != nil {
		return nil, err
	}

	conv, userMsg, err := s.store.AddMessage(conv.ID, userDraft)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, appendedEvent(conv.ID, userMsg))

	start := time.Now()
	result, err := s.generator.GenerateContent(ctx, conv.Messages, req.Attachments)
	if err != nil {
		s.logger.Error("AI service error",
			zap.String("conversation_id", conv.ID),
			zap.String("kind", string(apperr.KindOf(err))),
			zap.Error(err),
		)
		s.publish(ctx, &model.ConversationEvent{
			ID:             uuid.NewString(),
			ConversationID: conv.ID,
			Type:           model.EventProviderError,
			Reason:         string(apperr.KindOf(err)),
			CreatedAt:      time.Now(),
		})
		return nil, err
	}

	assistantDraft := model.Message{
		Role:         model.RoleAssistant,
		Content:      result.Content,
		FinishReason: result.FinishReason,
		Usage:        result.Usage,
	}
	if err := s.store.ValidateMessage(assistantDraft); err != nil {
		s.logger.Warn("assistant reply rejected",
			zap.String("conversation_id", conv.ID),
			zap.String("finish_reason", result.FinishReason),
			zap.Error(err),
		)
		return nil, apperr.ResponseProcessing(err)
	}

	conv, assistantMsg, err := s.store.AddMessage(conv.ID, assistantDraft)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, appendedEvent(conv.ID, assistantMsg))

	s.logger.Info("message exchanged",
		zap.String("conversation_id", conv.ID),
		zap.Int("history_length", len(conv.Messages)),
		zap.Int("attachments", len(req.Attachments)),
		zap.String("finish_reason", result.FinishReason),
		zap.Duration("latency", time.Since(start)),
	)

	return &model.SendMessageResponse{
		ConversationID:   conv.ID,
		UserMessage:      userMsg,
		AssistantMessage: assistantMsg,
		Usage:            nullableUsage(result.Usage),
	}, nil
}

func (s *ChatService) validateRequest(req *model.SendMessageRequest) error {
	if req == nil || strings.TrimSpace(req.Message) == "" {
		return apperr.Validation("message", "message is required and must be a non-empty string")
	}
	if utf8.RuneCountInString(req.Message) > s.limits.MaxMessageLength {
		return apperr.Validation("message", "message must not exceed "+strconv.Itoa(s.limits.MaxMessageLength)+" characters")
	}
	if len(req.Attachments) > s.limits.MaxAttachments {
		return apperr.Validation("attachments", "attachments must not contain more than "+strconv.Itoa(s.limits.MaxAttachments)+" items")
	}
	if req.ConversationID != "" {
		if err := ValidateConversationID(req.ConversationID); err != nil {
			return err
		}
	}
	return nil
}

// ValidateAPIKey reports whether the provider is reachable with the configured key.
func (s *ChatService) ValidateAPIKey(ctx context.Context) bool {
	return s.generator.ValidateAPIKey(ctx)
}

// DeleteConversation removes a conversation, failing with not-found when absent.
func (s *ChatService) DeleteConversation(ctx context.Context, id string) error {
	if !s.store.Delete(id) {
		return apperr.NotFound("Conversation")
	}
	s.publish(ctx, &model.ConversationEvent{
		ID:             uuid.NewString(),
		ConversationID: id,
		Type:           model.EventConversationDeleted,
		CreatedAt:      time.Now(),
	})
	return nil
}

// ClearConversations removes every conversation.
func (s *ChatService) ClearConversations(ctx context.Context) int {
	count := s.store.Clear()
	s.publish(ctx, &model.ConversationEvent{
		ID:        uuid.NewString(),
		Type:      model.EventConversationsClear,
		Count:     count,
		CreatedAt: time.Now(),
	})
	return count
}

func (s *ChatService) publish(ctx context.Context, event *model.ConversationEvent) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish conversation event",
			zap.String("type", string(event.Type)),
			zap.String("conversation_id", event.ConversationID),
			zap.Error(err),
		)
	}
}

func appendedEvent(conversationID string, msg *model.Message) *model.ConversationEvent {
	return &model.ConversationEvent{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Type:           model.EventMessageAppended,
		MessageID:      msg.ID,
		Role:           msg.Role,
		CreatedAt:      msg.Timestamp,
	}
}

// nullableUsage makes absent usage serialize as JSON null.
func nullableUsage(usage json.RawMessage) json.RawMessage {
	if len(usage) == 0 {
		return json.RawMessage("null")
	}
	return usage
}
