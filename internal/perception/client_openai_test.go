package perception

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOpenAI(t *testing.T, h http.HandlerFunc) *OpenAIClient {
	t.Helper()
	return newTestOpenAIRetrying(t, 0, h)
}

func newTestOpenAIRetrying(t *testing.T, retries int, h http.HandlerFunc) *OpenAIClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := NewOpenAIClientWithConfig(OpenAIConfig{
		APIKey:     "sk-test",
		BaseURL:    srv.URL,
		Model:      "gpt-test",
		Timeout:    2 * time.Second,
		MaxRetries: retries,
	})
	c.retryBase = time.Millisecond
	return c
}

func writeCompletion(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	})
}

func TestOpenAIClient_CompleteWithSystem(t *testing.T) {
	var got OpenAIRequest
	c := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeCompletion(w, "  {\"intent\": \"ListTasks\"}  ")
	})

	out, err := c.CompleteWithSystem(context.Background(), extractionSystemPrompt(), "Message: list tasks")
	require.NoError(t, err)
	assert.Equal(t, `{"intent": "ListTasks"}`, out)

	assert.Equal(t, "gpt-test", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
}

func TestOpenAIClient_SingleAttemptByDefault(t *testing.T) {
	var hits atomic.Int32
	c := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.Complete(context.Background(), "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 attempt")
	assert.Equal(t, int32(1), hits.Load())
}

func TestOpenAIClient_RetriesRateLimit(t *testing.T) {
	var hits atomic.Int32
	c := newTestOpenAIRetrying(t, 1, func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		writeCompletion(w, "ok")
	})

	out, err := c.Complete(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, int32(2), hits.Load())
}

func TestOpenAIClient_ClientErrorIsFinal(t *testing.T) {
	var hits atomic.Int32
	c := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, `{"error": {"message": "bad model"}}`, http.StatusBadRequest)
	})

	_, err := c.Complete(context.Background(), "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.Equal(t, int32(1), hits.Load())
}

func TestOpenAIClient_MissingKey(t *testing.T) {
	c := NewOpenAIClient("")
	_, err := c.Complete(context.Background(), "hi")
	assert.Error(t, err)
}
