// Package llm talks to the Gemini generateContent API: it translates
// conversation history into the provider wire format, executes the request
// with per-attempt timeouts and exponential backoff, and normalizes replies.
package llm

import (
	"encoding/json"
	"time"
)

// Result is the normalized provider reply.
type Result struct {
	Content      string
	FinishReason string
	// Usage is the provider's usageMetadata verbatim, nil when absent.
	Usage json.RawMessage
}

// GenerationConfig holds the static generation parameters sent with every request.
type GenerationConfig struct {
	Temperature     float64
	TopK            int
	TopP            float64
	MaxOutputTokens int
}

// DefaultGenerationConfig mirrors the production defaults.
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		Temperature:     0.7,
		TopK:            40,
		TopP:            0.95,
		MaxOutputTokens: 8192,
	}
}

// Config configures a GeminiClient.
type Config struct {
	APIKey            string
	APIURL            string
	MaxRetries        int
	Timeout           time.Duration
	RetryDelay        time.Duration
	ValidationTimeout time.Duration
	Generation        GenerationConfig
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.MaxRetries <= 0 {
		out.MaxRetries = 3
	}
	if out.Timeout <= 0 {
		out.Timeout = 30 * time.Second
	}
	if out.RetryDelay <= 0 {
		out.RetryDelay = time.Second
	}
	if out.ValidationTimeout <= 0 {
		out.ValidationTimeout = 10 * time.Second
	}
	if out.Generation == (GenerationConfig{}) {
		out.Generation = DefaultGenerationConfig()
	}
	return out
}
