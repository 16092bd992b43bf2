package provider

import (
	"fmt"
	"sort"
	"time"

	"llm-dealer/internal/interfaces"
	"llm-dealer/internal/provider/providerobs"
	"llm-dealer/internal/session"
	"llm-dealer/internal/store"
	"llm-dealer/internal/types"
)

// New builds the data provider named by provider.source, wrapped with
// tracing and logging.
func New(cfg *store.Config) (interfaces.DataProvider, error) {
	loc := cfg.Location()
	var p interfaces.DataProvider
	switch cfg.Provider.Source {
	case "STATIC":
		sched, err := cfg.Schedule()
		if err != nil {
			return nil, err
		}
		p = NewStatic(sched, loc)
	case "FILE":
		p = NewFile(cfg.Provider.DataDir, loc)
	case "PARQUET":
		p = NewParquetStore(cfg.Provider.DataDir, loc)
	case "KITE":
		k, err := NewKite(KiteParams{
			APIKey:      cfg.Provider.APIKey,
			AccessToken: cfg.Provider.AccessToken,
			Tokens:      cfg.Provider.InstrumentTokens,
			Location:    loc,
		})
		if err != nil {
			return nil, err
		}
		p = k
	default:
		return nil, fmt.Errorf("unknown provider source %q", cfg.Provider.Source)
	}
	return providerobs.Wrap(p, cfg.Provider.Source), nil
}

// endOfDay is the first instant after ref's calendar date.
func endOfDay(ref time.Time, loc *time.Location) time.Time {
	r := ref.In(loc)
	return time.Date(r.Year(), r.Month(), r.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1)
}

// upTo returns the bars stamped on or before ref's calendar date, sorted by
// time. Providers never hand out bars from after the reference date.
func upTo(bars []types.Bar, ref time.Time, loc *time.Location) []types.Bar {
	limit := endOfDay(ref, loc)
	out := make([]types.Bar, 0, len(bars))
	for _, b := range bars {
		if b.Time.Before(limit) {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out
}

// stepOf is the bar width of an intraday period.
func stepOf(period types.Period) session.Clock {
	switch period {
	case types.Period5Minute:
		return 5
	case types.Period15Minute:
		return 15
	case types.Period30Minute:
		return 30
	case types.PeriodHour:
		return 60
	default:
		return 1
	}
}
