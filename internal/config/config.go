// Package config provides environment configuration for the API server.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	Environment        string
	CORSOrigin         string

	// Gemini settings
	GeminiAPIKey            string
	GeminiAPIURL            string
	GeminiMaxRetries        int
	GeminiTimeout           time.Duration
	GeminiRetryDelay        time.Duration
	GeminiValidationTimeout time.Duration

	// Generation settings
	DefaultTemperature float64
	MaxOutputTokens    int
	TopK               int
	TopP               float64

	// Chat settings
	MaxConversationHistory int
	MaxMessageLength       int

	// Upload settings
	MaxFileSize       int64
	UploadDir         string
	AllowedFileTypes  []string
	MaxFilesPerUpload int

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool

	// NATS event stream
	NATSEnabled bool
	NATSURL     string
	NATSToken   string
}

const defaultGeminiURL = "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.0-flash-exp:generateContent"

// Load reads an optional .env file and then configuration from environment
// variables. Variables already present in the environment win over the file.
func Load(envFiles ...string) *Config {
	_ = godotenv.Load(envFiles...)

	env := getEnv("ENV", getEnv("NODE_ENV", "development"))

	corsOrigin := getEnv("CORS_ORIGIN", "")
	if corsOrigin == "" {
		if env == "production" {
			corsOrigin = getEnv("FRONTEND_URL", "")
		} else {
			corsOrigin = "http://localhost:3000"
		}
	}

	return &Config{
		// Server
		ServerPort:         getEnv("PORT", "3001"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 120*time.Second),
		Environment:        env,
		CORSOrigin:         corsOrigin,

		// Gemini
		GeminiAPIKey:            getEnv("GEMINI_API_KEY", ""),
		GeminiAPIURL:            getEnv("GEMINI_API_URL", defaultGeminiURL),
		GeminiMaxRetries:        getIntEnv("GEMINI_MAX_RETRIES", 3),
		GeminiTimeout:           getMillisEnv("GEMINI_TIMEOUT", 30*time.Second),
		GeminiRetryDelay:        getMillisEnv("GEMINI_RETRY_DELAY", time.Second),
		GeminiValidationTimeout: getMillisEnv("GEMINI_VALIDATION_TIMEOUT", 10*time.Second),

		// Generation
		DefaultTemperature: getFloatEnv("DEFAULT_TEMPERATURE", 0.7),
		MaxOutputTokens:    getIntEnv("MAX_OUTPUT_TOKENS", 8192),
		TopK:               getIntEnv("TOP_K", 40),
		TopP:               getFloatEnv("TOP_P", 0.95),

		// Chat
		MaxConversationHistory: getIntEnv("MAX_CONVERSATION_HISTORY", 50),
		MaxMessageLength:       getIntEnv("MAX_MESSAGE_LENGTH", 10000),

		// Upload
		MaxFileSize:       int64(getIntEnv("MAX_FILE_SIZE", 10*1024*1024)),
		UploadDir:         getEnv("UPLOAD_DIR", "uploads/"),
		AllowedFileTypes:  getListEnv("ALLOWED_FILE_TYPES", []string{".pdf", ".txt", ".doc", ".docx"}),
		MaxFilesPerUpload: getIntEnv("MAX_FILES_PER_UPLOAD", 5),

		// Rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_MAX_REQUESTS", 100),
		RateLimitWindow:   getMillisEnv("RATE_LIMIT_WINDOW_MS", 15*time.Minute),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),

		// NATS
		NATSEnabled: getBoolEnv("NATS_ENABLED", false),
		NATSURL:     getEnv("NATS_URL", "nats://localhost:4222"),
		NATSToken:   getEnv("NATS_TOKEN", ""),
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var problems []string

	if c.GeminiAPIKey == "" {
		problems = append(problems, "GEMINI_API_KEY is required")
	}
	if c.GeminiAPIURL == "" {
		problems = append(problems, "GEMINI_API_URL is required")
	}
	if c.GeminiMaxRetries <= 0 {
		problems = append(problems, "GEMINI_MAX_RETRIES must be greater than 0")
	}
	if c.GeminiTimeout <= 0 {
		problems = append(problems, "GEMINI_TIMEOUT must be greater than 0")
	}
	if c.MaxFileSize <= 0 {
		problems = append(problems, "MAX_FILE_SIZE must be greater than 0")
	}
	if c.MaxFilesPerUpload <= 0 {
		problems = append(problems, "MAX_FILES_PER_UPLOAD must be greater than 0")
	}
	if c.RateLimitRequests <= 0 {
		problems = append(problems, "RATE_LIMIT_MAX_REQUESTS must be greater than 0")
	}
	if c.RateLimitWindow <= 0 {
		problems = append(problems, "RATE_LIMIT_WINDOW_MS must be greater than 0")
	}
	if c.MaxConversationHistory <= 0 {
		problems = append(problems, "MAX_CONVERSATION_HISTORY must be greater than 0")
	}
	if c.MaxOutputTokens <= 0 {
		problems = append(problems, "MAX_OUTPUT_TOKENS must be greater than 0")
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(problems, "\n"))
	}
	return nil
}

// IsDevelopment reports whether internal error detail may be exposed.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getMillisEnv accepts either a plain millisecond count ("30000") or a Go
// duration string ("30s").
func getMillisEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(strings.ToLower(item)); item != "" {
			out = append(out, item)
		}
	}
	return out
}
