package ai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsight/internal/domain/analysis"
	"finsight/pkg/errors"
)

var testPrompt = analysis.Prompt{System: "You are an analyst.", User: "Analyse AAPL"}

func TestOpenAIAnalyzer_Analyze(t *testing.T) {
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1714500000,
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": "{\"summary\":\"ok\"}"}}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`))
	}))
	defer srv.Close()

	a := NewOpenAIAnalyzer(srv.URL+"/", 5*time.Second)
	assert.Equal(t, ProviderOpenAI, a.Name())

	out, err := a.Analyze(context.Background(), testPrompt, "gpt-4o-mini", "sk-test")
	require.NoError(t, err)
	assert.Equal(t, `{"summary":"ok"}`, out)

	assert.Equal(t, "gpt-4o-mini", body["model"])
	msgs, ok := body["messages"].([]interface{})
	require.True(t, ok)
	assert.Len(t, msgs, 2)
	assert.Equal(t, map[string]interface{}{"type": "json_object"}, body["response_format"])
}

func TestOpenAIAnalyzer_ClassifiesStatus(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusTooManyRequests, errors.ErrRateLimitExceeded},
		{http.StatusBadGateway, errors.ErrUnavailable},
		{http.StatusUnauthorized, errors.ErrProviderExecution},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(tt.status)
			_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"error"}}`))
		}))

		_, err := NewOpenAIAnalyzer(srv.URL+"/", 5*time.Second).Analyze(context.Background(), testPrompt, "", "sk-test")
		srv.Close()

		require.Error(t, err)
		assert.ErrorIs(t, err, tt.want, "status %d", tt.status)
		assert.NotContains(t, err.Error(), "sk-test")
	}
}

func TestAnalyzers_RequireKey(t *testing.T) {
	_, err := NewOpenAIAnalyzer("", time.Second).Analyze(context.Background(), testPrompt, "", "")
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	_, err = NewGeminiAnalyzer("", time.Second).Analyze(context.Background(), testPrompt, "", "")
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestGeminiAnalyzer_Analyze(t *testing.T) {
	var (
		path string
		body map[string]interface{}
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"candidates": [{"content": {"role": "model", "parts": [{"text": "{\"summary\":"}, {"text": "\"ok\"}"}]}}],
			"usageMetadata": {"promptTokenCount": 12, "candidatesTokenCount": 4}
		}`))
	}))
	defer srv.Close()

	a := NewGeminiAnalyzer(srv.URL, 5*time.Second)
	out, err := a.Analyze(context.Background(), testPrompt, "gemini-test", "g-key")
	require.NoError(t, err)
	assert.Equal(t, `{"summary":"ok"}`, out)
	assert.Contains(t, path, "gemini-test:generateContent")
	generation, ok := body["generationConfig"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "application/json", generation["responseMimeType"])
}

func TestGeminiAnalyzer_EmptyAndServerError(t *testing.T) {
	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates": []}`))
	}))
	defer empty.Close()

	_, err := NewGeminiAnalyzer(empty.URL, 5*time.Second).Analyze(context.Background(), testPrompt, "m", "g-key")
	assert.ErrorIs(t, err, errors.ErrMalformedResponse)

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"code":503,"message":"overloaded","status":"UNAVAILABLE"}}`))
	}))
	defer failing.Close()

	_, err = NewGeminiAnalyzer(failing.URL, 5*time.Second).Analyze(context.Background(), testPrompt, "m", "g-key")
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
}

type countingAnalyzer struct {
	calls atomic.Int32
}

func (c *countingAnalyzer) Name() string { return "counting" }

func (c *countingAnalyzer) Analyze(context.Context, analysis.Prompt, string, string) (string, error) {
	c.calls.Add(1)
	return "ok", nil
}

func TestRateLimited(t *testing.T) {
	next := &countingAnalyzer{}
	limited := NewRateLimited(next, NewLimiter(60, 1))
	assert.Equal(t, "counting", limited.Name())

	_, err := limited.Analyze(context.Background(), testPrompt, "", "")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = limited.Analyze(ctx, testPrompt, "", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrRateLimitExceeded)
	assert.True(t, errors.IsTransient(err))
	assert.Equal(t, int32(1), next.calls.Load())

	var rlErr *RateLimitError
	require.True(t, errors.As(err, &rlErr))
	assert.Equal(t, 60.0, rlErr.Limit)
}

func TestLimiter_Unlimited(t *testing.T) {
	l := NewLimiter(0, 0)
	for i := 0; i < 100; i++ {
		require.NoError(t, l.Wait(context.Background()))
	}
	assert.Zero(t, l.Limit())
}
