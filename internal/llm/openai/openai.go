package openai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"llm-dealer/internal/api"
	"llm-dealer/internal/store"
	"llm-dealer/internal/trace"
)

const defaultEndpoint = "https://api.openai.com/v1/chat/completions"

// Model sends the rendered prompt to the chat completions API and returns
// the assistant's text untouched; decision parsing happens downstream.
type Model struct {
	cfg      *store.Config
	client   *api.Client
	endpoint string
	apiKey   string
}

func NewModel(cfg *store.Config, opts ...api.ClientOption) *Model {
	endpoint := cfg.LLM.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	apiKey := cfg.LLM.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	opts = append([]api.ClientOption{api.WithTimeout(90 * time.Second), api.WithLogging(true)}, opts...)
	return &Model{cfg: cfg, client: api.NewClient(opts...), endpoint: endpoint, apiKey: apiKey}
}

func (m *Model) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, span := trace.StartSpan(ctx, "openai-api-call")
	defer span.End()

	if m.apiKey == "" {
		return "", errors.New("OPENAI_API_KEY missing")
	}

	messages := make([]map[string]string, 0, 2)
	if m.cfg.LLM.System != "" {
		messages = append(messages, map[string]string{"role": "system", "content": m.cfg.LLM.System})
	}
	messages = append(messages, map[string]string{"role": "user", "content": prompt})

	body := map[string]any{
		"model":       m.cfg.LLM.Model,
		"messages":    messages,
		"temperature": m.cfg.LLM.Temperature,
		"max_tokens":  m.cfg.LLM.MaxTokens,
	}

	req := api.NewRequest("POST", m.endpoint).
		WithContext(ctx).
		WithBody(body).
		WithHeader("Authorization", "Bearer "+m.apiKey)
	resp, err := m.client.DoWithRetry(req, &api.RetryConfig{MaxAttempts: 2, InitialWait: time.Second, MaxWait: 2 * time.Second})
	if err != nil {
		return "", fmt.Errorf("openai request: %w", err)
	}

	choices := resp.Get("choices")
	if !choices.IsArray() || len(choices.Array()) == 0 {
		return "", errors.New("no choices")
	}
	out := strings.TrimSpace(choices.Get("0.message.content").String())
	if out == "" {
		return "", errors.New("empty completion")
	}
	return out, nil
}
