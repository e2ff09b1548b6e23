package reasoning

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gatewayStub(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		if status >= 400 {
			http.Error(w, "upstream error", status)

			return
		}

		var req chatRequest

		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.NotEmpty(t, req.Messages)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model": req.Model,
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": content}},
			},
			"usage": map[string]any{"prompt_tokens": 42, "completion_tokens": 17},
		})
	}))
}

func TestGatewayClient_Complete(t *testing.T) {
	server := gatewayStub(t, http.StatusOK, `{"summary": "looks viable"}`)
	defer server.Close()

	client, err := NewGatewayClient(server.URL, "test-key", nil)
	require.NoError(t, err)

	resp, err := client.Complete(context.Background(), Request{
		Model:  "gpt-4o-mini",
		System: "You are a product analyst.",
		Prompt: "Analyze this idea.",
	})

	require.NoError(t, err)
	assert.Equal(t, `{"summary": "looks viable"}`, resp.Content)
	assert.Equal(t, "gpt-4o-mini", resp.Model)
	assert.Equal(t, int64(42), resp.Usage.PromptTokens)
	assert.Equal(t, int64(17), resp.Usage.CompletionTokens)
}

func TestGatewayClient_Complete_MissingModel(t *testing.T) {
	client, err := NewGatewayClient("http://localhost:1", "", nil)
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), Request{Prompt: "hi"})

	assert.Error(t, err)
}

func TestGatewayClient_Complete_GatewayError(t *testing.T) {
	server := gatewayStub(t, http.StatusTooManyRequests, "")
	defer server.Close()

	client, err := NewGatewayClient(server.URL, "", nil)
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), Request{Model: "gpt-4o", Prompt: "hi"})

	gatewayErr := &GatewayError{}
	require.ErrorAs(t, err, &gatewayErr)
	assert.Equal(t, http.StatusTooManyRequests, gatewayErr.StatusCode)
}

func TestGatewayClient_Complete_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The body must be drained before blocking: the server only
		// notices the client disconnect once it is reading the connection.
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer server.Close()

	client, err := NewGatewayClient(server.URL, "", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = client.Complete(ctx, Request{Model: "gpt-4o", Prompt: "hi"})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewGatewayClient_RequiresBaseURL(t *testing.T) {
	_, err := NewGatewayClient("", "", nil)

	assert.Error(t, err)
}
