package model

import (
	"time"
)

// EventType represents the type of conversation event.
type EventType string

const (
	EventMessageAppended     EventType = "message.appended"
	EventProviderError       EventType = "provider.error"
	EventConversationDeleted EventType = "conversation.deleted"
	EventConversationsClear  EventType = "conversations.cleared"
)

// ConversationEvent is published to the event stream after store mutations.
type ConversationEvent struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId,omitempty"`
	Type           EventType `json:"type"`
	MessageID      string    `json:"messageId,omitempty"`
	Role           Role      `json:"role,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	Count          int       `json:"count,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}
