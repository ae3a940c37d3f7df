package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/capitalize-ai/gemini-chat/internal/apperr"
	"github.com/capitalize-ai/gemini-chat/internal/model"
)

const (
	roleUser  = "user"
	roleModel = "model"

	safetyThreshold = "BLOCK_MEDIUM_AND_ABOVE"
)

var harmCategories = []string{
	"HARM_CATEGORY_HARASSMENT",
	"HARM_CATEGORY_HATE_SPEECH",
	"HARM_CATEGORY_SEXUALLY_EXPLICIT",
	"HARM_CATEGORY_DANGEROUS_CONTENT",
}

// Payload is the generateContent request body.
type Payload struct {
	Contents         []Content            `json:"contents"`
	GenerationConfig *WireGenerationConfig `json:"generationConfig,omitempty"`
	SafetySettings   []SafetySetting      `json:"safetySettings,omitempty"`
}

// Content is one conversational turn.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// Part is a text block within a turn.
type Part struct {
	Text string `json:"text"`
}

// WireGenerationConfig is the generationConfig object.
type WireGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopK            int     `json:"topK"`
	TopP            float64 `json:"topP"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

// SafetySetting is one harm-category threshold.
type SafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type apiResponse struct {
	Candidates    []apiCandidate  `json:"candidates"`
	UsageMetadata json.RawMessage `json:"usageMetadata,omitempty"`
}

type apiCandidate struct {
	Content      *apiContent `json:"content"`
	FinishReason string      `json:"finishReason"`
}

type apiContent struct {
	Role  string    `json:"role"`
	Parts []apiPart `json:"parts"`
}

type apiPart struct {
	Text string `json:"text"`
}

type apiErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

var (
	errNoCandidates = errors.New("no response candidates returned from Gemini API")
	errNoParts      = errors.New("invalid response format from Gemini API")
)

// BuildPayload converts stored history plus the attachments of the message
// being sent into a generateContent request. Attachments without extracted
// content are omitted. Current attachments are only added when the last turn
// is a user turn.
func BuildPayload(history []model.Message, current []model.Attachment, gen GenerationConfig) *Payload {
	contents := make([]Content, 0, len(history))

	for _, msg := range history {
		parts := []Part{{Text: msg.Content}}
		parts = appendDocuments(parts, msg.Attachments)

		role := roleModel
		if msg.Role == model.RoleUser {
			role = roleUser
		}
		contents = append(contents, Content{Role: role, Parts: parts})
	}

	if len(current) > 0 && len(contents) > 0 {
		last := &contents[len(contents)-1]
		if last.Role == roleUser {
			last.Parts = appendDocuments(last.Parts, current)
		}
	}

	safety := make([]SafetySetting, len(harmCategories))
	for i, category := range harmCategories {
		safety[i] = SafetySetting{Category: category, Threshold: safetyThreshold}
	}

	return &Payload{
		Contents: contents,
		GenerationConfig: &WireGenerationConfig{
			Temperature:     gen.Temperature,
			TopK:            gen.TopK,
			TopP:            gen.TopP,
			MaxOutputTokens: gen.MaxOutputTokens,
		},
		SafetySettings: safety,
	}
}

func appendDocuments(parts []Part, attachments []model.Attachment) []Part {
	for _, a := range attachments {
		if a.Content == "" {
			continue
		}
		parts = append(parts, Part{Text: documentBlock(a)})
	}
	return parts
}

func documentBlock(a model.Attachment) string {
	return fmt.Sprintf("[Document: %s]\n%s", a.Filename, a.Content)
}

// probePayload is the minimal request used to check connectivity.
func probePayload() *Payload {
	return &Payload{
		Contents: []Content{{Role: roleUser, Parts: []Part{{Text: "Hello"}}}},
	}
}

// ParseResponse normalizes a successful generateContent body. Every failure
// is reported as the same response-processing error; the cause is kept in
// Unwrap for logging only.
func ParseResponse(body []byte) (*Result, error) {
	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, apperr.ResponseProcessing(fmt.Errorf("decoding response: %w", err))
	}

	if len(resp.Candidates) == 0 {
		return nil, apperr.ResponseProcessing(errNoCandidates)
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return nil, apperr.ResponseProcessing(errNoParts)
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		sb.WriteString(part.Text)
	}

	var usage json.RawMessage
	if len(resp.UsageMetadata) > 0 && string(resp.UsageMetadata) != "null" {
		usage = resp.UsageMetadata
	}

	return &Result{
		Content:      strings.TrimSpace(sb.String()),
		FinishReason: candidate.FinishReason,
		Usage:        usage,
	}, nil
}

// providerErrorMessage extracts error.message from a failed response body.
func providerErrorMessage(body []byte) string {
	var e apiErrorBody
	if err := json.Unmarshal(body, &e); err != nil {
		return ""
	}
	return e.Error.Message
}
