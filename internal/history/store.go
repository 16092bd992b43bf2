package history

import (
	"context"
	"errors"
	"time"

	"llm-dealer/internal/interfaces"
	"llm-dealer/internal/logger"
	"llm-dealer/internal/session"
	"llm-dealer/internal/types"
)

// sessionBars bounds the intraday buffer: one bar per minute of a calendar day.
const sessionBars = 24 * 60

// Config sizes the histories of one instrument. MaxMinute bounds the rolling
// minute history only; the current day's bars are kept whole.
type Config struct {
	Symbol        string
	MaxDaily      int
	MaxHourly     int
	MaxMinute     int
	ReferenceDate time.Time
	Location      *time.Location
	Schedule      session.Schedule
}

// DefaultConfig keeps 30 days, 12 hours and 60 minutes on the default schedule.
func DefaultConfig(symbol string) Config {
	return Config{
		Symbol:    symbol,
		MaxDaily:  30,
		MaxHourly: 12,
		MaxMinute: 60,
		Location:  time.UTC,
		Schedule:  session.DefaultSchedule(),
	}
}

// Store owns the rolling daily, hourly and minute histories of one instrument
// plus the current trading day's intraday bars. It is not safe for
// concurrent use.
type Store struct {
	cfg      Config
	provider interfaces.DataProvider

	daily  *Buffer
	hourly *Buffer
	minute *Buffer
	today  *Buffer

	barsToday int
}

// NewStore returns an empty store; call Load to fetch history.
func NewStore(provider interfaces.DataProvider, cfg Config) *Store {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Store{
		cfg:      cfg,
		provider: provider,
		daily:    NewBuffer(cfg.MaxDaily),
		hourly:   NewBuffer(cfg.MaxHourly),
		minute:   NewBuffer(cfg.MaxMinute),
		today:    NewBuffer(sessionBars),
	}
}

// Load initializes the daily, hourly and minute histories.
func (s *Store) Load(ctx context.Context) {
	s.daily = s.Initialize(ctx, types.PeriodDay)
	s.hourly = s.Initialize(ctx, types.PeriodHour)
	s.minute = s.Initialize(ctx, types.PeriodMinute)
}

func (s *Store) capacityFor(period types.Period) int {
	switch period {
	case types.PeriodDay:
		return s.cfg.MaxDaily
	case types.PeriodHour:
		return s.cfg.MaxHourly
	default:
		return s.cfg.MaxMinute
	}
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// Initialize fetches the history for period as of the reference date. Only
// bars strictly before the reference date are kept. A failed or empty fetch
// is logged and yields an empty buffer.
func (s *Store) Initialize(ctx context.Context, period types.Period) *Buffer {
	buf := NewBuffer(s.capacityFor(period))

	op := logger.StartOperation(ctx, "history.Initialize", "symbol", s.cfg.Symbol, "period", string(period))
	ctx = op.Context()

	bars, err := s.provider.GetBarData(ctx, s.cfg.Symbol, period, s.cfg.ReferenceDate)
	if err == nil && len(bars) == 0 {
		err = types.ErrNoData
	}
	if err != nil {
		var fe *types.DataFetchError
		if !errors.As(err, &fe) {
			err = &types.DataFetchError{Symbol: s.cfg.Symbol, Period: period, ReferenceDate: s.cfg.ReferenceDate, Cause: err}
		}
		op.EndWithError(err, "fallback", "empty history")
		return buf
	}

	cutoff := startOfDay(s.cfg.ReferenceDate, s.cfg.Location)
	kept := make([]types.Bar, 0, len(bars))
	for _, b := range bars {
		if b.Time.Before(cutoff) {
			kept = append(kept, b)
		}
	}
	kept, _ = Clean(ctx, kept)
	buf.Replace(kept)

	op.End("fetched", len(bars), "kept", buf.Len())
	logger.Info(ctx, "History initialized",
		"symbol", s.cfg.Symbol, "period", string(period), "kept", buf.Len())
	return buf
}

// Update appends a tradable bar. Bars exactly on the hour also extend the
// hourly history and the end-of-day bar closes a daily candle.
func (s *Store) Update(bar types.Bar) {
	s.minute.Append(bar)
	s.today.Append(bar)
	s.barsToday++

	t := bar.Time.In(s.cfg.Location)
	if t.Minute() == 0 {
		s.hourly.Append(bar)
	}
	if s.cfg.Schedule.IsEndOfDayBar(t) {
		daily := bar
		daily.Time = startOfDay(t, s.cfg.Location)
		s.daily.Append(daily)
	}
}

// ResetForNewDay refetches the intraday minute bars of barTime's date that
// precede barTime and fall in a trading window, then replaces the intraday
// state with them.
func (s *Store) ResetForNewDay(ctx context.Context, barTime time.Time) {
	s.today.Reset()
	s.barsToday = 0

	day := startOfDay(barTime, s.cfg.Location)
	op := logger.StartOperation(ctx, "history.ResetForNewDay",
		"symbol", s.cfg.Symbol, "date", day.Format("2006-01-02"))
	ctx = op.Context()

	bars, err := s.provider.GetBarData(ctx, s.cfg.Symbol, types.PeriodMinute, day)
	if err != nil {
		op.EndWithError(err, "fallback", "empty intraday")
		return
	}

	next := day.AddDate(0, 0, 1)
	sameDay := make([]types.Bar, 0, len(bars))
	for _, b := range bars {
		if b.Time.Before(day) || !b.Time.Before(next) || !b.Time.Before(barTime) {
			continue
		}
		sameDay = append(sameDay, b)
	}
	filtered, _ := Clean(ctx, s.cfg.Schedule.Filter(sameDay))

	s.today.Replace(filtered)
	s.barsToday = len(filtered)

	op.End("raw", len(bars), "same_day", len(sameDay), "kept", s.today.Len())
}

// Snapshots of each series, oldest first.
func (s *Store) Daily() []types.Bar  { return s.daily.Bars() }
func (s *Store) Hourly() []types.Bar { return s.hourly.Bars() }
func (s *Store) Minute() []types.Bar { return s.minute.Bars() }
func (s *Store) Today() []types.Bar  { return s.today.Bars() }

// BarIndex is the number of bars seen in the current trading day,
// including the latest update.
func (s *Store) BarIndex() int { return s.barsToday }

// Lens reports buffer lengths keyed by period.
func (s *Store) Lens() map[types.Period]int {
	return map[types.Period]int{
		types.PeriodDay:    s.daily.Len(),
		types.PeriodHour:   s.hourly.Len(),
		types.PeriodMinute: s.minute.Len(),
	}
}
