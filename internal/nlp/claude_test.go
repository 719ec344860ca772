package nlp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func claudeServer(t *testing.T, status int, text string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

		var req anthropicRequest
		if assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			assert.Equal(t, "test-model", req.Model)
			assert.Len(t, req.Messages, 1)
		}

		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"type":"overloaded_error","message":"busy"}}`))
			return
		}
		resp := map[string]any{
			"content": []map[string]string{{"type": "text", "text": text}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClaudeExtractor_GroundsPhrases(t *testing.T) {
	reply := "```json\n" + `{"noun_chunks":["a trip","4 days","a beach resort"],"entities":[" 4 days ",""]}` + "\n```"
	srv := claudeServer(t, http.StatusOK, reply)

	c := NewClaudeExtractor("test-key", "test-model").WithURL(srv.URL)
	defer c.Close()

	got, err := c.ExtractPhrases(context.Background(), "Plan a trip of 4 Days.")
	require.NoError(t, err)
	assert.Equal(t, []string{"a trip", "4 days"}, got.NounChunks)
	assert.Equal(t, []string{"4 days"}, got.Entities)
	assert.Equal(t, 1, c.Stats.Snapshot().Count)
	assert.Equal(t, "test-model", c.Model())
}

func TestClaudeExtractor_RateLimitedIsRetryable(t *testing.T) {
	srv := claudeServer(t, http.StatusTooManyRequests, "")
	c := NewClaudeExtractor("test-key", "test-model").WithURL(srv.URL)

	_, err := c.ExtractPhrases(context.Background(), "Plan a trip.")
	var retryErr *RetryableError
	require.True(t, errors.As(err, &retryErr), "expected RetryableError, got %v", err)
	assert.Equal(t, http.StatusTooManyRequests, retryErr.StatusCode)
}

func TestClaudeExtractor_BadRequestIsNotRetryable(t *testing.T) {
	srv := claudeServer(t, http.StatusBadRequest, "")
	c := NewClaudeExtractor("test-key", "test-model").WithURL(srv.URL)

	_, err := c.ExtractPhrases(context.Background(), "Plan a trip.")
	require.Error(t, err)
	var retryErr *RetryableError
	assert.False(t, errors.As(err, &retryErr))
	assert.Contains(t, err.Error(), "status 400")
}

func TestClaudeExtractor_InvalidJSON(t *testing.T) {
	srv := claudeServer(t, http.StatusOK, "sure, here you go")
	c := NewClaudeExtractor("test-key", "test-model").WithURL(srv.URL)

	_, err := c.ExtractPhrases(context.Background(), "Plan a trip.")
	assert.ErrorContains(t, err, "parse phrases json")
}

func TestClaudeExtractor_EmptyTextSkipsCall(t *testing.T) {
	c := NewClaudeExtractor("test-key", "test-model").WithURL("http://127.0.0.1:0")
	got, err := c.ExtractPhrases(context.Background(), "  ")
	require.NoError(t, err)
	assert.Empty(t, got.NounChunks)
	assert.Zero(t, c.Stats.Snapshot().Count)
}

func TestStripCodeBlock(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{"  {\"a\":1}  ", `{"a":1}`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, stripCodeBlock(tt.in))
	}
}
