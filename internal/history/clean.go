package history

import (
	"context"
	"math"

	"llm-dealer/internal/logger"
	"llm-dealer/internal/types"
)

// CleanStats counts the corrections Clean applied.
type CleanStats struct {
	ForwardFilled   int
	BackFilled      int
	ClampedNegative int
	Unfillable      int
}

func (s CleanStats) Changed() bool {
	return s.ForwardFilled+s.BackFilled+s.ClampedNegative+s.Unfillable > 0
}

func fields(b *types.Bar) [6]*float64 {
	return [6]*float64{&b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &b.OpenInterest}
}

func missing(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}

// Clean repairs a bar series column by column: missing values are carried
// forward from the previous bar, leading gaps are filled backward from the
// first valid bar, and negatives are clamped to zero. The input is not
// modified.
func Clean(ctx context.Context, bars []types.Bar) ([]types.Bar, CleanStats) {
	out := make([]types.Bar, len(bars))
	copy(out, bars)

	var stats CleanStats
	for col := 0; col < 6; col++ {
		last := math.NaN()
		for i := range out {
			p := fields(&out[i])[col]
			if missing(*p) {
				if !math.IsNaN(last) {
					*p = last
					stats.ForwardFilled++
				}
				continue
			}
			last = *p
		}

		next := math.NaN()
		for i := len(out) - 1; i >= 0; i-- {
			p := fields(&out[i])[col]
			if missing(*p) {
				if !math.IsNaN(next) {
					*p = next
					stats.BackFilled++
				} else {
					stats.Unfillable++
				}
				continue
			}
			next = *p
		}

		for i := range out {
			p := fields(&out[i])[col]
			if *p < 0 {
				*p = 0
				stats.ClampedNegative++
			}
		}
	}

	if stats.Changed() {
		logger.Warn(ctx, "Cleaned bar series",
			"rows", len(out),
			"forward_filled", stats.ForwardFilled,
			"back_filled", stats.BackFilled,
			"clamped_negative", stats.ClampedNegative,
			"unfillable", stats.Unfillable,
		)
	}
	return out, stats
}
