package providerobs

import (
	"context"
	"time"

	"llm-dealer/internal/interfaces"
	"llm-dealer/internal/logger"
	"llm-dealer/internal/trace"
	"llm-dealer/internal/types"
)

// observableProvider wraps a DataProvider with observability (logging & tracing)
type observableProvider struct {
	provider interfaces.DataProvider
	source   string
}

// Compile-time interface check
var _ interfaces.DataProvider = (*observableProvider)(nil)

// Wrap wraps a data provider with observability middleware
func Wrap(provider interfaces.DataProvider, source string) interfaces.DataProvider {
	return &observableProvider{provider: provider, source: source}
}

// GetBarData fetches bars with observability
func (op *observableProvider) GetBarData(ctx context.Context, symbol string, period types.Period, referenceDate time.Time) ([]types.Bar, error) {
	ctx, span := trace.StartSpan(ctx, "provider.GetBarData")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Fetching bars",
		"source", op.source,
		"symbol", symbol,
		"period", string(period),
		"reference_date", referenceDate.Format("2006-01-02"),
	)

	bars, err := op.provider.GetBarData(ctx, symbol, period, referenceDate)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch bars", err,
			"source", op.source,
			"symbol", symbol,
			"period", string(period),
		)
		return nil, err
	}

	logger.DebugSkip(ctx, 1, "Bars fetched successfully",
		"source", op.source,
		"symbol", symbol,
		"period", string(period),
		"count", len(bars),
	)
	return bars, nil
}
