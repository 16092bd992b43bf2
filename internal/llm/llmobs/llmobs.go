package llmobs

import (
	"context"
	"time"

	"llm-dealer/internal/interfaces"
	"llm-dealer/internal/logger"
	"llm-dealer/internal/trace"
)

// observableModel wraps a Model with observability (logging & tracing)
type observableModel struct {
	model    interfaces.Model
	provider string
}

// Compile-time interface check
var _ interfaces.Model = (*observableModel)(nil)

// Wrap wraps a model with observability middleware
func Wrap(model interfaces.Model, provider string) interfaces.Model {
	return &observableModel{
		model:    model,
		provider: provider,
	}
}

func (om *observableModel) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, span := trace.StartSpan(ctx, "llm.Generate")
	defer span.End()

	// Use DebugSkip(1) to report the actual caller, not this middleware wrapper
	logger.DebugSkip(ctx, 1, "Requesting model reply",
		"provider", om.provider,
		"prompt_chars", len(prompt),
	)

	start := time.Now()
	out, err := om.model.Generate(ctx, prompt)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Model call failed", err,
			"provider", om.provider,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return "", err
	}

	logger.InfoSkip(ctx, 1, "Model reply received",
		"provider", om.provider,
		"reply_chars", len(out),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}
