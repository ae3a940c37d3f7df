package model

import (
	"encoding/json"
	"time"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the supported roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message represents a conversation message.
type Message struct {
	ID          string       `json:"id"`
	Role        Role         `json:"role"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Timestamp   time.Time    `json:"timestamp"`

	// Provider metadata, assistant messages only.
	FinishReason string          `json:"finishReason,omitempty"`
	Usage        json.RawMessage `json:"usage,omitempty"`
}

// Clone returns a copy that does not share slices with m.
func (m Message) Clone() Message {
	if m.Attachments != nil {
		m.Attachments = append([]Attachment(nil), m.Attachments...)
	}
	if m.Usage != nil {
		m.Usage = append(json.RawMessage(nil), m.Usage...)
	}
	return m
}

// FileType is the document kind of an attachment.
type FileType string

const (
	FileTypePDF     FileType = "pdf"
	FileTypeTXT     FileType = "txt"
	FileTypeDOC     FileType = "doc"
	FileTypeDOCX    FileType = "docx"
	FileTypeUnknown FileType = "unknown"
)

// Attachment is the extracted plain-text form of an uploaded document.
// Content is empty when extraction failed upstream.
type Attachment struct {
	ID            string   `json:"id,omitempty"`
	Filename      string   `json:"filename"`
	OriginalName  string   `json:"originalName,omitempty"`
	FileType      FileType `json:"fileType"`
	Content       string   `json:"content,omitempty"`
	WordCount     int      `json:"wordCount"`
	Size          int64    `json:"size,omitempty"`
	FormattedSize string   `json:"formattedSize,omitempty"`
}

// SendMessageRequest is the inbound chat request.
type SendMessageRequest struct {
	Message        string       `json:"message"`
	ConversationID string       `json:"conversationId,omitempty"`
	Attachments    []Attachment `json:"attachments,omitempty"`
}

// SendMessageResponse is returned after a completed round trip.
type SendMessageResponse struct {
	ConversationID   string          `json:"conversationId"`
	UserMessage      *Message        `json:"userMessage"`
	AssistantMessage *Message        `json:"assistantMessage"`
	Usage            json.RawMessage `json:"usage"`
}

// UploadedFile is an attachment produced by the upload endpoint.
type UploadedFile struct {
	Attachment
	MimeType    string    `json:"mimetype"`
	ExtractedAt time.Time `json:"extractedAt"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

// FileError reports why one uploaded file could not be processed.
type FileError struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
}
