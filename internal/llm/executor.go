package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/capitalize-ai/gemini-chat/internal/apperr"
	"github.com/capitalize-ai/gemini-chat/internal/model"
	"github.com/capitalize-ai/gemini-chat/pkg/logger"
	"github.com/capitalize-ai/gemini-chat/pkg/metrics"
	"github.com/capitalize-ai/gemini-chat/pkg/tracing"
)

// HTTPDoer is satisfied by *http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// GeminiClient executes generateContent requests with retry.
type GeminiClient struct {
	cfg    Config
	http   HTTPDoer
	sleep  SleepFunc
	logger *logger.Logger
}

// Option configures a GeminiClient.
type Option func(*GeminiClient)

// WithHTTPClient sets the transport.
func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *GeminiClient) { c.http = doer }
}

// WithSleep replaces the backoff wait, e.g. with a recorder in tests.
func WithSleep(fn SleepFunc) Option {
	return func(c *GeminiClient) { c.sleep = fn }
}

// NewGeminiClient creates a client. A missing API key is not an error here;
// calls fail with a configuration error instead.
func NewGeminiClient(cfg Config, log *logger.Logger, opts ...Option) *GeminiClient {
	if log == nil {
		log = logger.Nop()
	}
	c := &GeminiClient{
		cfg:    cfg.withDefaults(),
		http:   &http.Client{},
		sleep:  sleepContext,
		logger: log.Named("gemini"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GenerateContent sends the conversation history to Gemini and returns the
// normalized reply. Failed attempts are retried up to MaxRetries times with
// exponential backoff; malformed replies are not retried.
func (c *GeminiClient) GenerateContent(ctx context.Context, history []model.Message, current []model.Attachment) (*Result, error) {
	if c.cfg.APIKey == "" {
		return nil, apperr.Configuration("Gemini API key not configured")
	}

	body, err := json.Marshal(BuildPayload(history, current, c.cfg.Generation))
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("marshaling request: %w", err))
	}

	ctx, span := tracing.Tracer("github.com/capitalize-ai/gemini-chat/internal/llm").Start(ctx, "gemini.generateContent")
	defer span.End()
	span.SetAttributes(
		attribute.Int("gemini.history_length", len(history)),
		attribute.Int("gemini.current_attachments", len(current)),
	)

	for attempt := 1; ; attempt++ {
		result, err := c.attempt(ctx, body, c.cfg.Timeout)
		if err == nil {
			span.SetAttributes(attribute.Int("gemini.attempts", attempt))
			metrics.RecordProviderResult("success")
			return result, nil
		}

		kind := apperr.KindOf(err)
		c.logger.Warn("gemini attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", c.cfg.MaxRetries),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)

		if !kind.Retryable() || attempt >= c.cfg.MaxRetries {
			span.SetAttributes(attribute.Int("gemini.attempts", attempt))
			span.SetStatus(codes.Error, string(kind))
			metrics.RecordProviderResult(string(kind))
			return nil, err
		}

		delay := c.backoff(attempt)
		metrics.RecordRetry(string(kind))
		if err := c.sleep(ctx, delay); err != nil {
			span.SetStatus(codes.Error, "cancelled")
			metrics.RecordProviderResult(string(apperr.KindTimeout))
			return nil, apperr.Timeout(err)
		}
	}
}

// backoff returns RetryDelay * 2^(attempt-1).
func (c *GeminiClient) backoff(attempt int) time.Duration {
	return c.cfg.RetryDelay * time.Duration(1<<uint(attempt-1))
}

// attempt performs one bounded request and classifies any failure.
func (c *GeminiClient) attempt(ctx context.Context, body []byte, timeout time.Duration) (*Result, error) {
	start := time.Now()

	status, respBody, err := c.post(ctx, body, timeout)
	if err != nil {
		metrics.RecordProviderAttempt(string(apperr.KindOf(err)), time.Since(start).Seconds())
		return nil, err
	}

	if status != http.StatusOK {
		metrics.RecordProviderAttempt(string(apperr.KindProviderRequest), time.Since(start).Seconds())
		return nil, apperr.ProviderRequest(status, providerErrorMessage(respBody))
	}

	result, err := ParseResponse(respBody)
	if err != nil {
		metrics.RecordProviderAttempt(string(apperr.KindResponseProcessing), time.Since(start).Seconds())
		c.logger.Error("error formatting gemini response", zap.Error(errors.Unwrap(err)))
		return nil, err
	}

	metrics.RecordProviderAttempt("success", time.Since(start).Seconds())
	return result, nil
}

// post sends body to the configured endpoint and returns the status and body.
func (c *GeminiClient) post(ctx context.Context, body []byte, timeout time.Duration) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	endpoint, err := c.endpoint()
	if err != nil {
		return 0, nil, apperr.Configuration("Gemini API URL is invalid")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, nil, apperr.Internal(fmt.Errorf("creating HTTP request: %w", redactURL(err)))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, classifyTransportError(redactURL(err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, classifyTransportError(err)
	}

	return resp.StatusCode, respBody, nil
}

// endpoint appends the API key as the key query parameter.
func (c *GeminiClient) endpoint() (string, error) {
	u, err := url.Parse(c.cfg.APIURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("key", c.cfg.APIKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ValidateAPIKey sends a single probe request without retries and reports
// whether the provider answered with HTTP 200. Errors are logged, not returned.
func (c *GeminiClient) ValidateAPIKey(ctx context.Context) bool {
	if c.cfg.APIKey == "" {
		c.logger.Warn("API key validation failed", zap.String("reason", "Gemini API key not configured"))
		return false
	}

	body, err := json.Marshal(probePayload())
	if err != nil {
		c.logger.Error("API key validation failed", zap.Error(err))
		return false
	}

	status, respBody, err := c.post(ctx, body, c.cfg.ValidationTimeout)
	if err != nil {
		c.logger.Warn("API key validation failed", zap.Error(err))
		return false
	}
	if status != http.StatusOK {
		c.logger.Warn("API key validation failed",
			zap.Int("status", status),
			zap.String("provider_message", providerErrorMessage(respBody)),
		)
		return false
	}

	return true
}

// redactURL drops the query string, which carries the API key, from
// transport errors.
func redactURL(err error) error {
	var urlErr *url.Error
	if !errors.As(err, &urlErr) {
		return err
	}
	redacted := urlErr.URL
	if u, perr := url.Parse(urlErr.URL); perr == nil {
		u.RawQuery = ""
		u.ForceQuery = false
		redacted = u.String()
	} else if i := strings.IndexByte(redacted, '?'); i >= 0 {
		redacted = redacted[:i]
	}
	return &url.Error{Op: urlErr.Op, URL: redacted, Err: urlErr.Err}
}

func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperr.Timeout(err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apperr.Timeout(err)
	}

	var dnsErr *net.DNSError
	var opErr *net.OpError
	if errors.As(err, &dnsErr) || errors.As(err, &opErr) {
		return apperr.Network(err)
	}

	return apperr.Internal(err)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
