package engineobs

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"llm-dealer/internal/interfaces"
	"llm-dealer/internal/logger"
	"llm-dealer/internal/trace"
	"llm-dealer/internal/types"
)

type observableProcessor struct {
	processor interfaces.Processor
}

var _ interfaces.Processor = (*observableProcessor)(nil)

func Wrap(p interfaces.Processor) interfaces.Processor {
	return &observableProcessor{processor: p}
}

func (op *observableProcessor) Process(ctx context.Context, bar types.Bar, news string) types.StepResult {
	ctx, span := trace.StartSpan(ctx, "engine.Process")
	defer span.End()

	start := time.Now()

	logger.DebugSkip(ctx, 1, "Starting bar cycle",
		"bar_time", bar.Time,
		"close", bar.Close,
	)

	res := op.processor.Process(ctx, bar, news)

	span.SetAttributes(
		attribute.String("symbol", res.Symbol),
		attribute.String("action", string(res.Decision.Action)),
		attribute.String("quantity", res.Decision.Quantity.String()),
		attribute.Int("position", res.Position),
		attribute.Bool("tradable", res.Tradable),
		attribute.Bool("degraded", res.Degraded),
	)

	if !res.Tradable {
		return res
	}
	logger.InfoSkip(ctx, 1, "Bar cycle completed",
		"symbol", res.Symbol,
		"action", res.Decision.Action,
		"quantity", res.Decision.Quantity.String(),
		"position", res.Position,
		"forced_flat", res.ForcedFlat,
		"degraded", res.Degraded,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res
}
