package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/gemini-chat/internal/apperr"
	"github.com/capitalize-ai/gemini-chat/internal/model"
	"github.com/capitalize-ai/gemini-chat/pkg/logger"
)

// sleepRecorder returns immediately and remembers requested delays.
type sleepRecorder struct {
	delays []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return nil
}

func newTestClient(t *testing.T, baseURL string, rec *sleepRecorder, mutate ...func(*Config)) *GeminiClient {
	t.Helper()
	cfg := Config{
		APIKey:     "test-key",
		APIURL:     baseURL + "/v1beta/models/gemini-2.0-flash-exp:generateContent",
		MaxRetries: 3,
		Timeout:    2 * time.Second,
		RetryDelay: time.Second,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	return NewGeminiClient(cfg, logger.Nop(), WithSleep(rec.sleep))
}

func writeSuccess(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"candidates": []map[string]any{{
			"content":      map[string]any{"role": "model", "parts": []map[string]string{{"text": text}}},
			"finishReason": "STOP",
		}},
		"usageMetadata": map[string]int{"totalTokenCount": 7},
	})
}

var history = []model.Message{{Role: model.RoleUser, Content: "Hi"}}

func TestGenerateContentSendsKeyAndPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1beta/models/gemini-2.0-flash-exp:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var payload Payload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.Len(t, payload.Contents, 1)
		assert.Equal(t, "user", payload.Contents[0].Role)
		assert.Equal(t, "Hi", payload.Contents[0].Parts[0].Text)

		writeSuccess(w, "Hello there")
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	result, err := newTestClient(t, srv.URL, rec).GenerateContent(context.Background(), history, nil)
	require.NoError(t, err)
	assert.Equal(t, "Hello there", result.Content)
	assert.Equal(t, "STOP", result.FinishReason)
	assert.JSONEq(t, `{"totalTokenCount":7}`, string(result.Usage))
	assert.Empty(t, rec.delays)
}

func TestGenerateContentRetriesThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeSuccess(w, "third time lucky")
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	result, err := newTestClient(t, srv.URL, rec).GenerateContent(context.Background(), history, nil)
	require.NoError(t, err)
	assert.Equal(t, "third time lucky", result.Content)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, rec.delays)
}

func TestGenerateContentExhaustsOnRateLimit(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"code":429,"message":"Resource has been exhausted"}}`))
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	_, err := newTestClient(t, srv.URL, rec).GenerateContent(context.Background(), history, nil)
	require.Error(t, err)

	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindProviderRequest, e.Kind)
	assert.Equal(t, apperr.ProviderRateLimited, e.Provider)
	assert.Equal(t, "Rate limit exceeded. Please try again later.", e.Message)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, rec.delays)
}

func TestGenerateContentBackoffDoubles(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	client := newTestClient(t, srv.URL, rec, func(c *Config) {
		c.MaxRetries = 5
		c.RetryDelay = 100 * time.Millisecond
	})
	_, err := client.GenerateContent(context.Background(), history, nil)
	require.Error(t, err)

	e, _ := apperr.As(err)
	assert.Equal(t, "Gemini API error (502): Unknown error", e.Message)
	assert.Equal(t, int32(5), atomic.LoadInt32(&calls))
	assert.Equal(t, []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
	}, rec.delays)
}

func TestGenerateContentMissingKeyFailsFast(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	client := newTestClient(t, srv.URL, rec, func(c *Config) { c.APIKey = "" })

	_, err := client.GenerateContent(context.Background(), history, nil)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindConfiguration))
	assert.Zero(t, atomic.LoadInt32(&calls))
	assert.Empty(t, rec.delays)
}

func TestGenerateContentMalformedReplyIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	_, err := newTestClient(t, srv.URL, rec).GenerateContent(context.Background(), history, nil)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindResponseProcessing))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGenerateContentTimeoutIsRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
			return
		}
		writeSuccess(w, "recovered")
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	client := newTestClient(t, srv.URL, rec, func(c *Config) { c.Timeout = 50 * time.Millisecond })

	result, err := client.GenerateContent(context.Background(), history, nil)
	require.NoError(t, err)
	assert.Equal(t, "recovered", result.Content)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Len(t, rec.delays, 1)
}

func TestGenerateContentNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	rec := &sleepRecorder{}
	_, err := newTestClient(t, addr, rec).GenerateContent(context.Background(), history, nil)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindNetwork), "got %v", err)
	assert.Len(t, rec.delays, 2)
}

type failingDoer struct {
	err error
}

func (d failingDoer) Do(req *http.Request) (*http.Response, error) {
	return nil, &url.Error{Op: "Post", URL: req.URL.String(), Err: d.err}
}

func TestTransportErrorsDoNotExposeAPIKey(t *testing.T) {
	const secret = "SECRET-KEY-123"

	tests := []struct {
		name string
		url  string
		opts []Option
	}{
		{name: "unsupported scheme", url: "gopher://example.invalid/x"},
		{
			name: "tls failure",
			url:  "https://gemini.test/v1beta/models/m:generateContent",
			opts: []Option{WithHTTPClient(failingDoer{err: errors.New("tls: failed to verify certificate")})},
		},
		{
			name: "connection refused",
			url:  "https://gemini.test/v1beta/models/m:generateContent",
			opts: []Option{WithHTTPClient(failingDoer{err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}})},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &sleepRecorder{}
			opts := append([]Option{WithSleep(rec.sleep)}, tt.opts...)
			client := NewGeminiClient(Config{APIKey: secret, APIURL: tt.url}, logger.Nop(), opts...)

			_, err := client.GenerateContent(context.Background(), history, nil)
			require.Error(t, err)
			assert.NotContains(t, err.Error(), secret)
			assert.NotContains(t, fmt.Sprintf("%+v", err), secret)

			e, ok := apperr.As(err)
			require.True(t, ok)
			assert.NotContains(t, e.Message, secret)
		})
	}
}

func TestRedactURLKeepsTimeoutClassification(t *testing.T) {
	err := redactURL(&url.Error{Op: "Post", URL: "https://gemini.test/x?key=abc", Err: context.DeadlineExceeded})

	assert.Equal(t, `Post "https://gemini.test/x": context deadline exceeded`, err.Error())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, apperr.Is(classifyTransportError(err), apperr.KindTimeout))
}

func TestGenerateContentStopsWhenSleepCancelled(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewGeminiClient(Config{
		APIKey: "k",
		APIURL: srv.URL,
	}, logger.Nop(), WithSleep(func(ctx context.Context, d time.Duration) error {
		return context.Canceled
	}))

	_, err := client.GenerateContent(context.Background(), history, nil)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindTimeout))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestValidateAPIKey(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)

		var payload Payload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "Hello", payload.Contents[0].Parts[0].Text)
		assert.Nil(t, payload.GenerationConfig)

		if r.URL.Query().Get("key") != "good" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		writeSuccess(w, "hi")
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	good := newTestClient(t, srv.URL, rec, func(c *Config) { c.APIKey = "good" })
	bad := newTestClient(t, srv.URL, rec, func(c *Config) { c.APIKey = "bad" })
	missing := newTestClient(t, srv.URL, rec, func(c *Config) { c.APIKey = "" })

	assert.True(t, good.ValidateAPIKey(context.Background()))
	assert.False(t, bad.ValidateAPIKey(context.Background()))
	assert.False(t, missing.ValidateAPIKey(context.Background()))

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Empty(t, rec.delays)
}

func TestConfigDefaults(t *testing.T) {
	cfg := (&Config{}).withDefaults()
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, time.Second, cfg.RetryDelay)
	assert.Equal(t, 10*time.Second, cfg.ValidationTimeout)
	assert.Equal(t, DefaultGenerationConfig(), cfg.Generation)
}
