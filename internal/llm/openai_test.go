package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIClientComplete(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices": [{"message": {"content": "{\"score\": 70}"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 8, "total_tokens": 20}
		}`))
	}))
	defer server.Close()

	client, err := NewOpenAIClient("gpt-4o-mini", Config{APIKey: "test-key", BaseURL: server.URL + "/v1"})
	require.NoError(t, err)

	resp, err := client.Complete(context.Background(), CompletionRequest{
		Instructions: "score the company",
		Messages:     []Message{{Role: RoleUser, Content: "acme"}},
		Temperature:  0.3,
		MaxTokens:    256,
	})
	require.NoError(t, err)

	assert.Equal(t, `{"score": 70}`, resp.Content)
	assert.Equal(t, "stop", resp.StopReason)
	assert.Equal(t, 20, resp.Usage.TotalTokens)

	assert.Equal(t, "gpt-4o-mini", captured["model"])
	messages, ok := captured["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	first, ok := messages[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "system", first["role"])
	assert.Equal(t, "score the company", first["content"])
}

func TestOpenAIClientMapsHTTPFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "5")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "rate limit"}}`))
	}))
	defer server.Close()

	client, err := NewOpenAIClient("gpt-4o-mini", Config{APIKey: "k", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestOpenAIClientEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices": [], "usage": {}}`))
	}))
	defer server.Close()

	client, err := NewOpenAIClient("gpt-4o-mini", Config{APIKey: "k", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestNewOpenAIClientRequiresModel(t *testing.T) {
	_, err := NewOpenAIClient("", Config{})
	assert.Error(t, err)
}

func TestMockClientMatchesInstructions(t *testing.T) {
	mock := NewMockClient("mock-model").
		Respond("valuation analyst", `{"value_low": 1}`).
		Fallback(`{"note": "default"}`)

	resp, err := mock.Complete(context.Background(), CompletionRequest{
		Instructions: "You are a Valuation Analyst for the firm.",
		Messages:     []Message{{Role: RoleUser, Content: "value this"}},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"value_low": 1}`, resp.Content)

	resp, err = mock.Complete(context.Background(), CompletionRequest{
		Instructions: "something else entirely",
		Messages:     []Message{{Role: RoleUser, Content: "task"}},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"note": "default"}`, resp.Content)
	assert.Equal(t, 2, mock.Calls())
}
