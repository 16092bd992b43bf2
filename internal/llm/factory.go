package llm

import (
	"llm-dealer/internal/interfaces"
	"llm-dealer/internal/llm/claude"
	"llm-dealer/internal/llm/llmobs"
	"llm-dealer/internal/llm/noop"
	"llm-dealer/internal/llm/openai"
	"llm-dealer/internal/store"
)

// New returns the configured model wrapped with tracing and logging.
// A provider without an API key falls back to the noop model.
func New(cfg *store.Config) interfaces.Model {
	switch cfg.LLM.Provider {
	case "OPENAI":
		if cfg.LLM.APIKey != "" {
			return llmobs.Wrap(openai.NewModel(cfg), "openai")
		}
	case "CLAUDE":
		if cfg.LLM.APIKey != "" {
			return llmobs.Wrap(claude.NewModel(cfg), "claude")
		}
	}
	return llmobs.Wrap(noop.NewModel(), "noop")
}
