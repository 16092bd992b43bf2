package claude

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"llm-dealer/internal/api"
	"llm-dealer/internal/store"
	"llm-dealer/internal/trace"
)

const (
	defaultEndpoint = "https://api.anthropic.com/v1/messages"
	apiVersion      = "2023-06-01"
)

// Model calls the Anthropic messages API.
type Model struct {
	cfg      *store.Config
	client   *api.Client
	endpoint string
	apiKey   string
}

// NewModel builds a Claude-backed model. A proxy endpoint may be set in the
// llm block or through CLAUDE_API_ENDPOINT.
func NewModel(cfg *store.Config, opts ...api.ClientOption) *Model {
	endpoint := cfg.LLM.Endpoint
	if ep := os.Getenv("CLAUDE_API_ENDPOINT"); endpoint == "" && ep != "" {
		endpoint = ep
	}
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	apiKey := cfg.LLM.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("CLAUDE_API_KEY")
	}
	opts = append([]api.ClientOption{api.WithTimeout(90 * time.Second), api.WithLogging(true)}, opts...)
	return &Model{cfg: cfg, client: api.NewClient(opts...), endpoint: endpoint, apiKey: apiKey}
}

func (m *Model) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, span := trace.StartSpan(ctx, "claude-api-call")
	defer span.End()

	if m.apiKey == "" {
		return "", errors.New("CLAUDE_API_KEY missing")
	}

	reqBody := map[string]any{
		"model": m.cfg.LLM.Model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"max_tokens":  m.cfg.LLM.MaxTokens,
		"temperature": m.cfg.LLM.Temperature,
	}
	if m.cfg.LLM.System != "" {
		reqBody["system"] = m.cfg.LLM.System
	}

	req := api.NewRequest("POST", m.endpoint).
		WithContext(ctx).
		WithBody(reqBody).
		WithHeader("x-api-key", m.apiKey).
		WithHeader("anthropic-version", apiVersion)
	resp, err := m.client.DoWithRetry(req, &api.RetryConfig{MaxAttempts: 2, InitialWait: time.Second, MaxWait: 2 * time.Second})
	if err != nil {
		return "", fmt.Errorf("claude request: %w", err)
	}

	return extractText(resp.Body)
}

// extractText pulls the assistant text out of the messages API reply, with
// fallbacks for proxies that answer in completion or chat shapes.
func extractText(body []byte) (string, error) {
	if !gjson.ValidBytes(body) {
		if s := strings.TrimSpace(string(body)); s != "" {
			return s, nil
		}
		return "", errors.New("empty response body")
	}

	var parts []string
	gjson.GetBytes(body, "content").ForEach(func(_, block gjson.Result) bool {
		if block.Get("type").String() == "text" || !block.Get("type").Exists() {
			if t := block.Get("text").String(); t != "" {
				parts = append(parts, t)
			}
		}
		return true
	})
	if len(parts) > 0 {
		return strings.TrimSpace(strings.Join(parts, "\n")), nil
	}

	for _, path := range []string{"choices.0.message.content", "completion", "output_text"} {
		if s := strings.TrimSpace(gjson.GetBytes(body, path).String()); s != "" {
			return s, nil
		}
	}
	return "", errors.New("no text content in claude response")
}
