package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"llm-dealer/internal/interfaces"
	"llm-dealer/internal/logger"
	"llm-dealer/internal/types"
)

// Runner feeds provider bars to one engine per instrument. Engines for
// different instruments run in parallel; each engine sees its bars in order.
type Runner struct {
	engines  map[string]interfaces.Processor
	symbols  []string
	provider interfaces.DataProvider
	news     interfaces.NewsSource
	loc      *time.Location

	outMu sync.Mutex
	out   io.Writer

	seenMu   sync.Mutex
	lastSeen map[string]time.Time
}

// Config wires the runner. Every symbol needs an engine.
type Config struct {
	Engines  map[string]interfaces.Processor
	Symbols  []string
	Provider interfaces.DataProvider
	News     interfaces.NewsSource
	Location *time.Location
	// Out receives one JSON line per tradable step; nil disables it.
	Out io.Writer
}

// New validates cfg. Location defaults to UTC.
func New(cfg Config) (*Runner, error) {
	for _, s := range cfg.Symbols {
		if cfg.Engines[s] == nil {
			return nil, fmt.Errorf("no engine for %s", s)
		}
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Runner{
		engines:  cfg.Engines,
		symbols:  cfg.Symbols,
		provider: cfg.Provider,
		news:     cfg.News,
		loc:      cfg.Location,
		out:      cfg.Out,
		lastSeen: make(map[string]time.Time),
	}, nil
}

// Summary describes one instrument's replayed day. Err is set when the
// instrument's bars could not be fetched; the other instruments still run.
type Summary struct {
	Symbol     string
	Bars       int
	Tradable   int
	Degraded   int
	ForcedFlat int
	Final      int
	Err        error
}

// Replay processes every minute bar of day for all instruments and returns
// a summary per instrument, in configured order. Instruments are
// independent: a failed fetch only empties that instrument's summary. The
// returned error is non-nil only when ctx ends.
func (r *Runner) Replay(ctx context.Context, day time.Time) ([]Summary, error) {
	day = day.In(r.loc)
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, r.loc)
	end := start.AddDate(0, 0, 1)

	summaries := make([]Summary, len(r.symbols))
	var g errgroup.Group
	for i, symbol := range r.symbols {
		g.Go(func() error {
			op := logger.StartOperation(ctx, "runner.Replay",
				"symbol", symbol, "date", start.Format("2006-01-02"))
			sum, err := r.replaySymbol(op.Context(), symbol, start, end)
			summaries[i] = sum
			if err != nil {
				op.EndWithError(err)
				return ctx.Err()
			}
			op.End(
				"bars", sum.Bars,
				"tradable", sum.Tradable,
				"degraded", sum.Degraded,
				"forced_flat", sum.ForcedFlat,
				"final_position", sum.Final,
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summaries, nil
}

func (r *Runner) replaySymbol(ctx context.Context, symbol string, start, end time.Time) (Summary, error) {
	sum := Summary{Symbol: symbol}
	bars, err := r.provider.GetBarData(ctx, symbol, types.PeriodMinute, start)
	if err != nil {
		sum.Err = &types.DataFetchError{Symbol: symbol, Period: types.PeriodMinute, ReferenceDate: start, Cause: err}
		return sum, sum.Err
	}
	for _, b := range bars {
		if b.Time.Before(start) || !b.Time.Before(end) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		sum.add(r.step(ctx, symbol, b))
	}
	return sum, nil
}

// Poll handles one live tick: every completed minute bar newer than the last
// one seen for an instrument is processed in order. Fetch failures for one
// instrument do not stop the others.
func (r *Runner) Poll(ctx context.Context, now time.Time) {
	now = now.In(r.loc)
	current := now.Truncate(time.Minute)

	var wg sync.WaitGroup
	for _, symbol := range r.symbols {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bars, err := r.provider.GetBarData(ctx, symbol, types.PeriodMinute, now)
			if err != nil {
				logger.ErrorWithErr(ctx, "Live fetch failed", err, "symbol", symbol)
				return
			}
			last := r.seen(symbol)
			for _, b := range bars {
				// The bar stamped with the current minute is still forming.
				if !b.Time.After(last) || !b.Time.Before(current) {
					continue
				}
				if last.IsZero() && b.Time.Before(current.Add(-time.Minute)) {
					continue
				}
				r.step(ctx, symbol, b)
				last = b.Time
			}
			r.markSeen(symbol, last)
		}()
	}
	wg.Wait()
}

func (r *Runner) step(ctx context.Context, symbol string, b types.Bar) types.StepResult {
	var text string
	if r.news != nil {
		t, err := r.news.Latest(ctx, symbol)
		if err != nil {
			logger.Warn(ctx, "News unavailable", "symbol", symbol, "error", err)
		}
		text = t
	}
	res := r.engines[symbol].Process(ctx, b, text)
	if res.Tradable {
		r.emit(res)
	}
	return res
}

func (r *Runner) emit(res types.StepResult) {
	if r.out == nil {
		return
	}
	b, err := json.Marshal(res)
	if err != nil {
		return
	}
	r.outMu.Lock()
	defer r.outMu.Unlock()
	fmt.Fprintln(r.out, string(b))
}

func (r *Runner) seen(symbol string) time.Time {
	r.seenMu.Lock()
	defer r.seenMu.Unlock()
	return r.lastSeen[symbol]
}

func (r *Runner) markSeen(symbol string, t time.Time) {
	r.seenMu.Lock()
	defer r.seenMu.Unlock()
	if t.After(r.lastSeen[symbol]) {
		r.lastSeen[symbol] = t
	}
}

func (s *Summary) add(res types.StepResult) {
	s.Bars++
	if res.Tradable {
		s.Tradable++
	}
	if res.Degraded {
		s.Degraded++
	}
	if res.ForcedFlat {
		s.ForcedFlat++
	}
	s.Final = res.Position
}
