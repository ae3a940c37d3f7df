package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/gemini-chat/internal/apperr"
	"github.com/capitalize-ai/gemini-chat/internal/model"
)

func successBody(t *testing.T, texts ...string) []byte {
	t.Helper()
	parts := make([]apiPart, len(texts))
	for i, text := range texts {
		parts[i] = apiPart{Text: text}
	}
	body, err := json.Marshal(map[string]any{
		"candidates": []apiCandidate{{
			Content:      &apiContent{Role: "model", Parts: parts},
			FinishReason: "STOP",
		}},
		"usageMetadata": map[string]int{"promptTokenCount": 3, "candidatesTokenCount": 1, "totalTokenCount": 4},
	})
	require.NoError(t, err)
	return body
}

func TestBuildPayloadMapsRolesAndDocuments(t *testing.T) {
	history := []model.Message{
		{Role: model.RoleUser, Content: "Summarize this", Attachments: []model.Attachment{
			{Filename: "report.pdf", Content: "Quarterly numbers"},
			{Filename: "scan.pdf"},
		}},
		{Role: model.RoleAssistant, Content: "It is about numbers."},
	}

	payload := BuildPayload(history, nil, DefaultGenerationConfig())

	require.Len(t, payload.Contents, 2)
	assert.Equal(t, "user", payload.Contents[0].Role)
	assert.Equal(t, []Part{
		{Text: "Summarize this"},
		{Text: "[Document: report.pdf]\nQuarterly numbers"},
	}, payload.Contents[0].Parts)

	assert.Equal(t, "model", payload.Contents[1].Role)
	assert.Equal(t, []Part{{Text: "It is about numbers."}}, payload.Contents[1].Parts)
}

func TestBuildPayloadSkipsAttachmentsWithoutContent(t *testing.T) {
	history := []model.Message{{
		Role:        model.RoleUser,
		Content:     "hi",
		Attachments: []model.Attachment{{Filename: "empty.docx", FileType: model.FileTypeDOCX}},
	}}
	current := []model.Attachment{{Filename: "also-empty.txt"}}

	payload := BuildPayload(history, current, DefaultGenerationConfig())

	require.Len(t, payload.Contents, 1)
	assert.Equal(t, []Part{{Text: "hi"}}, payload.Contents[0].Parts)
}

func TestBuildPayloadCurrentAttachmentsOnTrailingUserTurn(t *testing.T) {
	current := []model.Attachment{{Filename: "notes.txt", Content: "todo"}}

	withUser := BuildPayload([]model.Message{
		{Role: model.RoleUser, Content: "first"},
		{Role: model.RoleAssistant, Content: "reply"},
		{Role: model.RoleUser, Content: "look at this"},
	}, current, DefaultGenerationConfig())

	last := withUser.Contents[len(withUser.Contents)-1]
	assert.Equal(t, []Part{{Text: "look at this"}, {Text: "[Document: notes.txt]\ntodo"}}, last.Parts)
	assert.Len(t, withUser.Contents[0].Parts, 1)

	withModel := BuildPayload([]model.Message{
		{Role: model.RoleUser, Content: "first"},
		{Role: model.RoleAssistant, Content: "reply"},
	}, current, DefaultGenerationConfig())

	for _, c := range withModel.Contents {
		assert.Len(t, c.Parts, 1)
	}

	empty := BuildPayload(nil, current, DefaultGenerationConfig())
	assert.Empty(t, empty.Contents)
}

func TestBuildPayloadStaticConfig(t *testing.T) {
	gen := GenerationConfig{Temperature: 0.2, TopK: 10, TopP: 0.5, MaxOutputTokens: 100}
	payload := BuildPayload([]model.Message{{Role: model.RoleUser, Content: "x"}}, nil, gen)

	require.NotNil(t, payload.GenerationConfig)
	assert.Equal(t, WireGenerationConfig{Temperature: 0.2, TopK: 10, TopP: 0.5, MaxOutputTokens: 100}, *payload.GenerationConfig)

	require.Len(t, payload.SafetySettings, 4)
	for _, s := range payload.SafetySettings {
		assert.Equal(t, "BLOCK_MEDIUM_AND_ABOVE", s.Threshold)
	}

	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"generationConfig":{"temperature":0.2,"topK":10,"topP":0.5,"maxOutputTokens":100}`)
	assert.Contains(t, string(raw), `"safetySettings"`)
}

func TestParseResponseRoundTrip(t *testing.T) {
	result, err := ParseResponse(successBody(t, "hello"))
	require.NoError(t, err)
	assert.Equal(t, "hello", result.Content)
	assert.Equal(t, "STOP", result.FinishReason)
	assert.JSONEq(t, `{"promptTokenCount":3,"candidatesTokenCount":1,"totalTokenCount":4}`, string(result.Usage))
}

func TestParseResponseConcatenatesAndTrims(t *testing.T) {
	result, err := ParseResponse(successBody(t, "  Hello, ", "world!\n"))
	require.NoError(t, err)
	assert.Equal(t, "Hello, world!", result.Content)
}

func TestParseResponseWithoutUsage(t *testing.T) {
	result, err := ParseResponse([]byte(`{"candidates":[{"content":{"parts":[{"text":"ok"}]},"finishReason":"MAX_TOKENS"}]}`))
	require.NoError(t, err)
	assert.Nil(t, result.Usage)
	assert.Equal(t, "MAX_TOKENS", result.FinishReason)
}

func TestParseResponseFailures(t *testing.T) {
	bodies := map[string]string{
		"missing candidates": `{}`,
		"empty candidates":   `{"candidates":[]}`,
		"missing content":    `{"candidates":[{"finishReason":"SAFETY"}]}`,
		"empty parts":        `{"candidates":[{"content":{"parts":[]}}]}`,
		"not json":           `<html>`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			_, err := ParseResponse([]byte(body))
			require.Error(t, err)

			e, ok := apperr.As(err)
			require.True(t, ok)
			assert.Equal(t, apperr.KindResponseProcessing, e.Kind)
			assert.Equal(t, "Failed to process Gemini API response", e.Message)
			assert.Error(t, e.Err)
		})
	}
}

func TestProviderErrorMessage(t *testing.T) {
	assert.Equal(t, "API key not valid", providerErrorMessage([]byte(`{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`)))
	assert.Equal(t, "", providerErrorMessage([]byte(`nope`)))
}
