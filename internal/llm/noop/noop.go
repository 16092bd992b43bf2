package noop

import (
	"context"

	"llm-dealer/internal/logger"
)

const holdReply = "```json\n{\"trade_instruction\": \"hold\", \"next_message\": \"\"}\n```"

// Model is used when no LLM is configured. It always answers hold.
type Model struct{}

func NewModel() *Model {
	return &Model{}
}

func (m *Model) Generate(ctx context.Context, prompt string) (string, error) {
	logger.Debug(ctx, "Noop model called - always returns hold", "prompt_chars", len(prompt))
	return holdReply, nil
}
