package engine

import (
	"context"

	"llm-dealer/internal/interfaces"
)

// New builds an engine for cfg.Symbol and loads its history. recorder may be nil.
func New(ctx context.Context, cfg Config, provider interfaces.DataProvider, model interfaces.Model, recorder interfaces.Recorder) interfaces.Processor {
	return newEngine(ctx, cfg, provider, model, recorder)
}
