package aiparse

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestParser(t *testing.T, handler http.HandlerFunc) *OpenAIParser {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	parser, err := NewOpenAIParser(OpenAIConfig{
		APIKey:  "test-key",
		BaseURL: server.URL,
	})
	require.NoError(t, err)
	return parser
}

func chatReply(content string) string {
	body, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": content}},
		},
	})
	return string(body)
}

func TestParseDecodesDraft(t *testing.T) {
	parser := newTestParser(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "gpt-4", req.Model)
		require.Len(t, req.Messages, 2)
		require.Equal(t, "system", req.Messages[0].Role)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chatReply(`{"recipient":"Toko Jaya","items":[{"product_name":"Beras","quantity":5,"unit":"kg"}]}`)))
	})

	draft, err := parser.Parse(context.Background(), "kirim 5 kg beras ke Toko Jaya")
	require.NoError(t, err)
	require.Equal(t, "Toko Jaya", draft.Recipient)
	require.Len(t, draft.Items, 1)
	require.Equal(t, "Beras", draft.Items[0].ProductName)
	require.Equal(t, 5.0, draft.Items[0].Quantity)
	require.Equal(t, "kg", draft.Items[0].Unit)
}

func TestParseStripsMarkdownFences(t *testing.T) {
	parser := newTestParser(t, func(w http.ResponseWriter, _ *http.Request) {
		content := "```json\n{\"recipient\":\"unknown\",\"items\":[{\"product_name\":\"Gula\",\"quantity\":2}]}\n```"
		_, _ = w.Write([]byte(chatReply(content)))
	})

	draft, err := parser.Parse(context.Background(), "dua gula")
	require.NoError(t, err)
	require.Equal(t, "unknown", draft.Recipient)
	require.Len(t, draft.Items, 1)
}

func TestParseRejectsProse(t *testing.T) {
	parser := newTestParser(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(chatReply("Sure! Here is the order you asked for.")))
	})

	_, err := parser.Parse(context.Background(), "whatever")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unparsable")
}

func TestParseUpstreamFailure(t *testing.T) {
	parser := newTestParser(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":{"message":"upstream down"}}`))
	})

	_, err := parser.Parse(context.Background(), "whatever")
	require.Error(t, err)
}

func TestParseEmptyMessage(t *testing.T) {
	parser := newTestParser(t, func(w http.ResponseWriter, _ *http.Request) {
		t.Fatal("provider should not be called")
	})
	_, err := parser.Parse(context.Background(), "   ")
	require.Error(t, err)
}

func TestStripMarkdownFences(t *testing.T) {
	inputs := []string{
		"{\"a\":1}",
		"```json\n{\"a\":1}\n```",
		"```\n{\"a\":1}\n```",
		"  ```json\n{\"a\":1}\n```  ",
	}
	for _, input := range inputs {
		require.Equal(t, `{"a":1}`, stripMarkdownFences(input))
	}
}
