package interfaces

import (
	"context"
	"time"

	"llm-dealer/internal/types"
)

// DataProvider returns an instrument's bars for one period as of referenceDate.
type DataProvider interface {
	GetBarData(ctx context.Context, symbol string, period types.Period, referenceDate time.Time) ([]types.Bar, error)
}
