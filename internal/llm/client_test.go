package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/briefd/internal/config"
)

func testClient(t *testing.T, baseURL string, timeout time.Duration, retries int) *Client {
	t.Helper()

	return NewClient(config.LLMConfig{
		BaseURL:    baseURL,
		ChatModel:  "test-chat",
		EmbedModel: "test-embed",
		Timeout:    config.Duration(timeout),
		MaxRetries: retries,
	}, zap.NewNop())
}

func TestChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-chat", req.Model)
		assert.False(t, req.Stream)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "user", req.Messages[1].Role)

		json.NewEncoder(w).Encode(chatResponse{
			Message: chatMessage{Role: "assistant", Content: "hello back"},
		})
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, 5*time.Second, 0)
	out, err := c.Chat(context.Background(), "be brief", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello back", out)
}

func TestEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-embed", req.Model)
		assert.Equal(t, "some text", req.Prompt)

		json.NewEncoder(w).Encode(embedResponse{Embedding: []float32{0.1, 0.2, 0.3}})
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, 5*time.Second, 0)
	vec, err := c.Embed(context.Background(), "some text")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestEmbed_EmptyVector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{})
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, 5*time.Second, 0)
	_, err := c.Embed(context.Background(), "some text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty embedding")
}

func TestStatusErrorFailsFast(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, 5*time.Second, 3)
	_, err := c.Chat(context.Background(), "s", "u")
	require.Error(t, err)

	var se *statusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.code)
	assert.Equal(t, int32(1), attempts.Load(), "status errors must not be retried")
}

func TestTimeoutRetried(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, 20*time.Millisecond, 1)
	_, err := c.Chat(context.Background(), "s", "u")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries exceeded")
	assert.Equal(t, int32(2), attempts.Load(), "timeouts retry up to max_retries")
}

func TestConnectionRefusedFailsFast(t *testing.T) {
	// Grab a port that is guaranteed closed.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := testClient(t, url, time.Second, 3)
	start := time.Now()
	_, err := c.Chat(context.Background(), "s", "u")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "max retries exceeded")
	assert.Less(t, time.Since(start), 400*time.Millisecond, "refused connections must not back off")
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, isRetryable(nil))
	assert.False(t, isRetryable(errors.New("plain")))
	assert.False(t, isRetryable(&statusError{code: 500, body: "boom"}))
	assert.False(t, isRetryable(context.Canceled))
	assert.True(t, isRetryable(context.DeadlineExceeded))
}
