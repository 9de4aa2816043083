package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stroyassist/defectbot/internal/llm"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Model:   "gpt-4.1-mini-2025-04-14",
	}, nil)
}

func TestChatJSON_DecodesContentAndUsage(t *testing.T) {
	var gotBody map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"model": "gpt-4.1-mini-2025-04-14",
			"choices": []map[string]any{
				{"message": map[string]any{"content": ` {"defects": []} `}},
			},
			"usage": map[string]any{"prompt_tokens": 120, "completion_tokens": 8, "total_tokens": 128},
		})
	})

	res, err := client.ChatJSON(context.Background(), llm.ChatRequest{
		System: "system prompt",
		User:   "user prompt",
		Schema: map[string]any{"type": "object"},
	})
	require.NoError(t, err)

	assert.Equal(t, `{"defects": []}`, res.Content)
	assert.Equal(t, llm.Usage{PromptTokens: 120, CompletionTokens: 8, TotalTokens: 128}, res.Usage)

	assert.Equal(t, "gpt-4.1-mini-2025-04-14", gotBody["model"])
	rf := gotBody["response_format"].(map[string]any)
	assert.Equal(t, "json_object", rf["type"])
	messages := gotBody["messages"].([]any)
	require.Len(t, messages, 3)
	last := messages[2].(map[string]any)
	assert.Equal(t, "system", last["role"])
	assert.Contains(t, last["content"], "JSON Schema:")
}

func TestChatVision_SendsDataURL(t *testing.T) {
	var gotBody map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "Очищенный текст."}},
			},
			"usage": map[string]any{"prompt_tokens": 900, "completion_tokens": 40, "total_tokens": 940},
		})
	})

	res, err := client.ChatVision(context.Background(), "Очисти страницу.", []byte{0x89, 0x50, 0x4e, 0x47})
	require.NoError(t, err)
	assert.Equal(t, "Очищенный текст.", res.Content)

	messages := gotBody["messages"].([]any)
	require.Len(t, messages, 1)
	parts := messages[0].(map[string]any)["content"].([]any)
	require.Len(t, parts, 2)
	assert.Equal(t, "text", parts[0].(map[string]any)["type"])
	imageURL := parts[1].(map[string]any)["image_url"].(map[string]any)["url"].(string)
	assert.Contains(t, imageURL, "data:image/png;base64,")
}

func TestEmbeddings_OrderedByIndex(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"index": 1, "embedding": []float32{0, 1}},
				{"index": 0, "embedding": []float32{1, 0}},
			},
			"usage": map[string]any{"prompt_tokens": 12, "total_tokens": 12},
		})
	})

	vectors, usage, err := client.Embeddings(context.Background(), []string{"первый", "второй"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vectors)
	assert.Equal(t, 12, usage.PromptTokens)
}

func TestEmbeddings_CountMismatch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"index": 0, "embedding": []float32{1}}},
		})
	})

	_, _, err := client.Embeddings(context.Background(), []string{"a", "b"})
	assert.ErrorContains(t, err, "count mismatch")
}

func TestPost_StatusClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		transient bool
	}{
		{"rate limited", http.StatusTooManyRequests, true},
		{"server error", http.StatusBadGateway, true},
		{"bad request", http.StatusBadRequest, false},
		{"unauthorized", http.StatusUnauthorized, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "boom", tt.status)
			})

			_, err := client.ChatJSON(context.Background(), llm.ChatRequest{User: "x"})
			require.Error(t, err)
			assert.Equal(t, tt.transient, IsTransient(err))
		})
	}
}

func TestIsTransient_NetworkError(t *testing.T) {
	client := NewClient(Config{APIKey: "k", BaseURL: "http://127.0.0.1:1"}, nil)
	_, err := client.ChatJSON(context.Background(), llm.ChatRequest{User: "x"})
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}
