package engine

import (
	"context"
	"errors"
	"runtime/debug"
	"time"

	"llm-dealer/internal/decision"
	"llm-dealer/internal/history"
	"llm-dealer/internal/indicators"
	"llm-dealer/internal/interfaces"
	"llm-dealer/internal/logger"
	"llm-dealer/internal/position"
	"llm-dealer/internal/prompt"
	"llm-dealer/internal/session"
	"llm-dealer/internal/types"
)

// ErrModelTimeout is returned when the model does not answer in time.
var ErrModelTimeout = errors.New("model call timed out")

// Config holds the per-instrument engine settings.
type Config struct {
	Symbol        string
	Location      *time.Location
	Schedule      session.Schedule
	ReferenceDate time.Time
	MaxDaily      int
	MaxHourly     int
	MaxMinute     int
	MaxPosition   int
	Compact       bool
	NewsChars     int
	ModelTimeout  time.Duration
	Indicators    indicators.Windows
}

// DefaultConfig returns the stock dealer settings for symbol in UTC.
func DefaultConfig(symbol string) Config {
	return Config{
		Symbol:       symbol,
		Location:     time.UTC,
		Schedule:     session.DefaultSchedule(),
		MaxDaily:     30,
		MaxHourly:    12,
		MaxMinute:    60,
		MaxPosition:  5,
		NewsChars:    200,
		ModelTimeout: 30 * time.Second,
		Indicators:   indicators.DefaultWindows(),
	}
}

// Engine turns one bar at a time into a decision for a single instrument.
// All state is owned by the instance; it must not be shared between
// goroutines.
type Engine struct {
	cfg       Config
	history   *history.Store
	inds      *indicators.Engine
	builder   *prompt.Builder
	model     interfaces.Model
	positions *position.Manager
	recorder  interfaces.Recorder

	currentDate string
	lastMessage string
}

func newEngine(ctx context.Context, cfg Config, provider interfaces.DataProvider, model interfaces.Model, recorder interfaces.Recorder) *Engine {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.ModelTimeout <= 0 {
		cfg.ModelTimeout = 30 * time.Second
	}
	if cfg.ReferenceDate.IsZero() {
		cfg.ReferenceDate = time.Now().In(cfg.Location)
	}

	store := history.NewStore(provider, history.Config{
		Symbol:        cfg.Symbol,
		MaxDaily:      cfg.MaxDaily,
		MaxHourly:     cfg.MaxHourly,
		MaxMinute:     cfg.MaxMinute,
		ReferenceDate: cfg.ReferenceDate,
		Location:      cfg.Location,
		Schedule:      cfg.Schedule,
	})
	store.Load(ctx)

	return &Engine{
		cfg:     cfg,
		history: store,
		inds:    indicators.NewEngine(cfg.Indicators),
		builder: prompt.NewBuilder(prompt.Config{
			MaxDaily:    cfg.MaxDaily,
			MaxHourly:   cfg.MaxHourly,
			MaxMinute:   cfg.MaxMinute,
			MaxPosition: cfg.MaxPosition,
			Compact:     cfg.Compact,
			NewsChars:   cfg.NewsChars,
			Cutoff:      cfg.Schedule.Cutoff,
		}),
		model:     model,
		positions: position.NewManager(cfg.Symbol, cfg.MaxPosition, cfg.Schedule),
		recorder:  recorder,
	}
}

// Position is the instrument's current signed position.
func (e *Engine) Position() int { return e.positions.Position() }

// LastMessage is the next_message carried into the following prompt.
func (e *Engine) LastMessage() string { return e.lastMessage }

// Process handles one bar. It never panics and never returns an error:
// failures degrade to a hold decision.
func (e *Engine) Process(ctx context.Context, bar types.Bar, news string) (res types.StepResult) {
	res = types.StepResult{
		Symbol:   e.cfg.Symbol,
		Time:     bar.Time,
		Decision: types.SafeDecision(),
		Position: e.positions.Position(),
		Degraded: true,
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "Recovered from panic while processing bar",
				"symbol", e.cfg.Symbol, "panic", r, "stack", string(debug.Stack()))
			res.Decision = types.SafeDecision()
			res.Position = e.positions.Position()
			res.Degraded = true
		}
	}()

	if err := bar.Validate(); err != nil {
		logger.ErrorWithErr(ctx, "Rejected malformed bar", err, "symbol", e.cfg.Symbol)
		return res
	}

	bar.Time = bar.Time.In(e.cfg.Location)
	res.Time = bar.Time
	e.handleDateChange(ctx, bar.Time)

	if !e.cfg.Schedule.IsTradingTime(bar.Time) {
		logger.Debug(ctx, "Bar outside trading windows", "symbol", e.cfg.Symbol, "time", bar.Time)
		res.Decision = types.IdleDecision()
		res.Position = e.positions.Position()
		res.Degraded = false
		return res
	}
	res.Tradable = true

	e.history.Update(bar)
	series := e.inds.Compute(ctx, e.history.Today())

	text := e.builder.Render(prompt.Input{
		LastMessage: e.lastMessage,
		BarIndex:    e.history.BarIndex() - 1,
		Daily:       e.history.Daily(),
		Hourly:      e.history.Hourly(),
		Today:       e.history.Today(),
		Bar:         bar,
		Indicators:  series.Latest(),
		News:        news,
		Position:    e.positions.Position(),
	})

	d, ok := e.decide(ctx, text)
	outcome := e.positions.Apply(ctx, d.Action, d.Quantity, bar.Time, bar.Time)

	res.Decision = d
	res.Position = outcome.After
	res.ForcedFlat = outcome.ForcedFlat
	res.Degraded = !ok

	logger.Decision(ctx, e.cfg.Symbol, string(d.Action), d.Quantity.String(), d.NextMessage,
		"position", outcome.After, "forced_flat", outcome.ForcedFlat, "degraded", !ok)
	e.logBar(ctx, bar, news, d)
	e.lastMessage = d.NextMessage

	if e.recorder != nil {
		if err := e.recorder.Record(ctx, res); err != nil {
			logger.Warn(ctx, "Failed to record step", "symbol", e.cfg.Symbol, "error", err)
		}
	}
	return res
}

// handleDateChange resets intraday history and position on the first bar of
// a new trading date.
func (e *Engine) handleDateChange(ctx context.Context, t time.Time) {
	key := t.Format("2006-01-02")
	if key == e.currentDate {
		return
	}
	logger.Info(ctx, "New trading date", "symbol", e.cfg.Symbol, "date", key, "previous", e.currentDate)
	e.currentDate = key
	e.history.ResetForNewDay(ctx, t)
	e.positions.ResetForDate(ctx, t)
}

type reply struct {
	text string
	err  error
}

// decide calls the model under the configured timeout and parses its reply.
// ok is false when the safe default was substituted.
func (e *Engine) decide(ctx context.Context, text string) (types.Decision, bool) {
	mctx, cancel := context.WithTimeout(ctx, e.cfg.ModelTimeout)
	defer cancel()

	// Buffered: the sender must not block once we stop listening.
	ch := make(chan reply, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- reply{err: errors.New("model panicked")}
			}
		}()
		out, err := e.model.Generate(mctx, text)
		ch <- reply{text: out, err: err}
	}()

	var r reply
	select {
	case r = <-ch:
	case <-mctx.Done():
		r.err = ErrModelTimeout
		if ctx.Err() != nil {
			r.err = ctx.Err()
		}
	}
	if r.err != nil {
		logger.ErrorWithErr(ctx, "Model call failed, holding", r.err,
			"symbol", e.cfg.Symbol, "timeout", e.cfg.ModelTimeout.String())
		return types.SafeDecision(), false
	}
	return decision.ParseOrDefault(ctx, r.text)
}

func (e *Engine) logBar(ctx context.Context, bar types.Bar, news string, d types.Decision) {
	logger.Info(ctx, "Processed bar",
		"symbol", e.cfg.Symbol,
		"time", bar.Time.Format("2006-01-02 15:04"),
		"bar_index", e.history.BarIndex()-1,
		"open", bar.Open,
		"high", bar.High,
		"low", bar.Low,
		"close", bar.Close,
		"volume", bar.Volume,
		"open_interest", bar.OpenInterest,
		"news", prompt.Truncate(news, 100),
		"instruction", d.Instruction(),
		"position", e.positions.Position(),
	)
}
