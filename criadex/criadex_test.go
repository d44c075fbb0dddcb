package criadex

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(&Config{BaseURL: server.URL, APIKey: "test-key"})
}

func TestContentSearchDecodesEnvelope(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/content/helpdesk-document-index/search", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "test-key", r.Header.Get("X-Api-Key"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"status": 200,
			"code": "SUCCESS",
			"message": "ok",
			"response": {
				"nodes": [{"node": {"text": "A", "metadata": {}}, "score": 0.8}],
				"assets": [],
				"search_units": 2
			}
		}`))
	})

	response, err := client.Content.Search(context.Background(), "helpdesk-document-index", SearchGroupConfig{
		Prompt: "what is A?",
		TopK:   10,
	})
	require.NoError(t, err)
	require.Len(t, response.Nodes, 1)
	require.Equal(t, "A", response.Nodes[0].Node.Text)
	require.Equal(t, 2, response.SearchUnits)
}

func TestUpstreamErrorPreservesMessage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"status": 404, "code": "GROUP_NOT_FOUND", "message": "no such group"}`))
	})

	_, err := client.Groups.About(context.Background(), "missing-document-index")
	require.Error(t, err)

	var upstream *UpstreamError
	require.True(t, errors.As(err, &upstream))
	require.Equal(t, 404, upstream.Status)
	require.Equal(t, "GROUP_NOT_FOUND", upstream.Code)
	require.Equal(t, "no such group", upstream.Message)
}

func TestEnvelopeErrorWithHTTP200(t *testing.T) {
	// The backend sometimes signals failure inside the envelope only.
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status": 500, "code": "AGENT_ERROR", "message": "model unavailable"}`))
	})

	_, err := client.Agents.Chat(context.Background(), 1, ChatAgentConfig{})
	require.Error(t, err)

	var upstream *UpstreamError
	require.True(t, errors.As(err, &upstream))
	require.Equal(t, 500, upstream.Status)
}

func TestAgentsChatRoute(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/agents/3/chat", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"status": 200, "code": "SUCCESS", "message": "ok",
			"response": {
				"message": {"role": "assistant", "content": "reply"},
				"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
			}
		}`))
	})

	response, err := client.Agents.Chat(context.Background(), 3, ChatAgentConfig{
		History: []ChatMessage{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
	require.Equal(t, "reply", response.Message.Content)
	require.Equal(t, 15, response.Usage.TotalTokens)
}

func TestContentListUnwrapsFiles(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/content/helpdesk-document-index/list", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"status": 200, "code": "SUCCESS", "message": "ok",
			"response": {"files": ["a.md", "b.md"]}
		}`))
	})

	files, err := client.Content.List(context.Background(), "helpdesk-document-index")
	require.NoError(t, err)
	require.Equal(t, []string{"a.md", "b.md"}, files)
}

func TestCompletionUsageAdd(t *testing.T) {
	a := CompletionUsage{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3}
	b := CompletionUsage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30}

	sum := a.Add(b)
	require.Equal(t, CompletionUsage{PromptTokens: 11, CompletionTokens: 22, TotalTokens: 33}, sum)
}
