package claude

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/peterldowns/testy/assert"

	"llm-dealer/internal/store"
)

func TestGenerateMessagesAPI(t *testing.T) {
	var (
		header http.Header
		body   map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Clone()
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("Expected JSON request body, got %v", err)
		}
		w.Write([]byte(`{"content":[{"type":"text","text":"first"},{"type":"tool_use","id":"x"},{"type":"text","text":"second"}]}`))
	}))
	defer srv.Close()

	cfg := &store.Config{}
	cfg.LLM.Endpoint = srv.URL
	cfg.LLM.APIKey = "key"
	cfg.LLM.System = "be brief"
	cfg.LLM.MaxTokens = 128

	out, err := NewModel(cfg).Generate(context.Background(), "prompt")
	assert.NoError(t, err)
	assert.Equal(t, out, "first\nsecond")

	assert.Equal(t, header.Get("x-api-key"), "key")
	assert.Equal(t, header.Get("anthropic-version"), apiVersion)
	assert.Equal(t, body["system"], any("be brief"))
}

func TestExtractTextFallbacks(t *testing.T) {
	cases := []struct {
		body string
		want string
	}{
		{`{"choices":[{"message":{"content":"chat shape"}}]}`, "chat shape"},
		{`{"completion":" legacy "}`, "legacy"},
		{`plain text reply`, "plain text reply"},
	}
	for _, tc := range cases {
		got, err := extractText([]byte(tc.body))
		assert.NoError(t, err)
		assert.Equal(t, got, tc.want)
	}

	_, err := extractText([]byte(`{"id":"msg_1","content":[]}`))
	assert.Error(t, err)
}

func TestEndpointFromEnv(t *testing.T) {
	t.Setenv("CLAUDE_API_ENDPOINT", "https://proxy.local/v1/messages")
	m := NewModel(&store.Config{})
	assert.Equal(t, m.endpoint, "https://proxy.local/v1/messages")
}
