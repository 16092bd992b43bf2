package history

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"

	"llm-dealer/internal/types"
)

var cst = time.FixedZone("CST", 8*3600)

type fakeProvider struct {
	bars  map[types.Period][]types.Bar
	err   error
	calls []types.Period
	dates []time.Time
}

func (f *fakeProvider) GetBarData(_ context.Context, _ string, period types.Period, ref time.Time) ([]types.Bar, error) {
	f.calls = append(f.calls, period)
	f.dates = append(f.dates, ref)
	if f.err != nil {
		return nil, f.err
	}
	return f.bars[period], nil
}

func minuteBars(start time.Time, n int) []types.Bar {
	out := make([]types.Bar, n)
	for i := range out {
		c := 100 + float64(i)
		out[i] = types.Bar{Time: start.Add(time.Duration(i) * time.Minute), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 10}
	}
	return out
}

func testConfig() Config {
	cfg := DefaultConfig("rb2410")
	cfg.Location = cst
	cfg.MaxDaily, cfg.MaxHourly, cfg.MaxMinute = 3, 2, 5
	cfg.ReferenceDate = time.Date(2024, 6, 3, 0, 0, 0, 0, cst)
	return cfg
}

func TestBufferKeepsTail(t *testing.T) {
	b := NewBuffer(3)
	for _, bar := range minuteBars(time.Date(2024, 6, 3, 9, 0, 0, 0, cst), 10) {
		b.Append(bar)
		assert.True(t, b.Len() <= 3)
	}
	bars := b.Bars()
	assert.Equal(t, len(bars), 3)
	assert.Equal(t, bars[0].Close, 107.0)
	assert.Equal(t, bars[2].Close, 109.0)

	last, ok := b.Last()
	assert.True(t, ok)
	assert.Equal(t, last.Close, 109.0)
}

func TestBufferZeroCapacity(t *testing.T) {
	b := NewBuffer(0)
	b.Append(types.Bar{Close: 1})
	assert.Equal(t, b.Len(), 0)
}

func TestInitializeDropsLookAheadAndTrims(t *testing.T) {
	cfg := testConfig()
	prev := minuteBars(time.Date(2024, 5, 31, 14, 50, 0, 0, cst), 8)
	same := minuteBars(time.Date(2024, 6, 3, 9, 0, 0, 0, cst), 4)
	p := &fakeProvider{bars: map[types.Period][]types.Bar{
		types.PeriodMinute: append(prev, same...),
	}}

	s := NewStore(p, cfg)
	buf := s.Initialize(context.Background(), types.PeriodMinute)

	assert.Equal(t, buf.Len(), 5)
	for _, b := range buf.Bars() {
		assert.True(t, b.Time.Before(cfg.ReferenceDate))
	}
}

func TestInitializeFailureYieldsEmpty(t *testing.T) {
	p := &fakeProvider{err: errors.New("boom")}
	s := NewStore(p, testConfig())
	s.Load(context.Background())

	assert.Equal(t, len(s.Daily()), 0)
	assert.Equal(t, len(s.Hourly()), 0)
	assert.Equal(t, len(s.Minute()), 0)
	assert.Equal(t, len(p.calls), 3)
}

func TestInitializeEmptyFetch(t *testing.T) {
	p := &fakeProvider{bars: map[types.Period][]types.Bar{}}
	s := NewStore(p, testConfig())
	buf := s.Initialize(context.Background(), types.PeriodDay)
	assert.Equal(t, buf.Len(), 0)
	assert.Equal(t, buf.Cap(), 3)
}

func TestUpdateRoutesBars(t *testing.T) {
	s := NewStore(&fakeProvider{}, testConfig())

	s.Update(types.Bar{Time: time.Date(2024, 6, 3, 14, 59, 0, 0, cst), Close: 1})
	s.Update(types.Bar{Time: time.Date(2024, 6, 3, 15, 0, 0, 0, cst), Close: 2})

	assert.Equal(t, len(s.Minute()), 2)
	assert.Equal(t, len(s.Today()), 2)
	assert.Equal(t, s.BarIndex(), 2)

	hourly := s.Hourly()
	assert.Equal(t, len(hourly), 1)
	assert.Equal(t, hourly[0].Close, 2.0)

	daily := s.Daily()
	assert.Equal(t, len(daily), 1)
	assert.Equal(t, daily[0].Time, time.Date(2024, 6, 3, 0, 0, 0, 0, cst))
}

func TestUpdateBurstStaysBounded(t *testing.T) {
	cfg := testConfig()
	s := NewStore(&fakeProvider{}, cfg)
	for _, b := range minuteBars(time.Date(2024, 6, 3, 9, 0, 0, 0, cst), 500) {
		s.Update(b)
		for period, n := range s.Lens() {
			assert.True(t, n <= s.capacityFor(period))
		}
	}
	assert.Equal(t, s.BarIndex(), 500)
	assert.Equal(t, len(s.Minute()), cfg.MaxMinute)
}

func TestTodayKeepsWholeSession(t *testing.T) {
	cfg := testConfig()
	s := NewStore(&fakeProvider{}, cfg)
	bars := minuteBars(time.Date(2024, 6, 3, 9, 0, 0, 0, cst), 240)
	for _, b := range bars {
		s.Update(b)
	}

	today := s.Today()
	assert.Equal(t, len(today), 240)
	assert.True(t, today[0].Time.Equal(bars[0].Time))
	assert.Equal(t, len(s.Minute()), cfg.MaxMinute)

	// A full calendar day of minutes still fits.
	s.ResetForNewDay(context.Background(), time.Date(2024, 6, 4, 0, 0, 0, 0, cst))
	for _, b := range minuteBars(time.Date(2024, 6, 4, 0, 0, 0, 0, cst), sessionBars+10) {
		s.Update(b)
	}
	assert.Equal(t, len(s.Today()), sessionBars)
}

func TestResetForNewDay(t *testing.T) {
	cfg := testConfig()
	barTime := time.Date(2024, 6, 4, 9, 5, 0, 0, cst)

	var fetched []types.Bar
	fetched = append(fetched, minuteBars(time.Date(2024, 6, 3, 14, 58, 0, 0, cst), 2)...)
	fetched = append(fetched, minuteBars(time.Date(2024, 6, 4, 8, 58, 0, 0, cst), 10)...)
	p := &fakeProvider{bars: map[types.Period][]types.Bar{types.PeriodMinute: fetched}}

	s := NewStore(p, cfg)
	s.Update(types.Bar{Time: time.Date(2024, 6, 3, 14, 0, 0, 0, cst), Close: 1})

	s.ResetForNewDay(context.Background(), barTime)

	// 09:00 through 09:04 on the new date: out-of-window and future bars dropped.
	today := s.Today()
	assert.Equal(t, len(today), 5)
	assert.Equal(t, today[0].Time, time.Date(2024, 6, 4, 9, 0, 0, 0, cst))
	assert.Equal(t, today[4].Time, time.Date(2024, 6, 4, 9, 4, 0, 0, cst))
	assert.Equal(t, s.BarIndex(), 5)
	assert.Equal(t, p.dates[len(p.dates)-1], time.Date(2024, 6, 4, 0, 0, 0, 0, cst))
}

func TestResetForNewDayFetchError(t *testing.T) {
	s := NewStore(&fakeProvider{err: errors.New("down")}, testConfig())
	s.Update(types.Bar{Time: time.Date(2024, 6, 3, 9, 0, 0, 0, cst), Close: 1})
	s.ResetForNewDay(context.Background(), time.Date(2024, 6, 4, 9, 0, 0, 0, cst))

	assert.Equal(t, len(s.Today()), 0)
	assert.Equal(t, s.BarIndex(), 0)
	// Rolling minute history survives the day boundary.
	assert.Equal(t, len(s.Minute()), 1)
}

func TestClean(t *testing.T) {
	nan := math.NaN()
	in := []types.Bar{
		{Open: nan, High: 2, Low: 1, Close: nan, Volume: -5},
		{Open: 3, High: nan, Low: 1, Close: 4, Volume: 7},
		{Open: nan, High: 5, Low: math.Inf(1), Close: nan, Volume: 8},
	}
	out, stats := Clean(context.Background(), in)

	assert.Equal(t, out[0].Open, 3.0)
	assert.Equal(t, out[0].Close, 4.0)
	assert.Equal(t, out[0].Volume, 0.0)
	assert.Equal(t, out[1].High, 2.0)
	assert.Equal(t, out[2].Open, 3.0)
	assert.Equal(t, out[2].Low, 1.0)
	assert.Equal(t, out[2].Close, 4.0)

	assert.Equal(t, stats.ForwardFilled, 4)
	assert.Equal(t, stats.BackFilled, 2)
	assert.Equal(t, stats.ClampedNegative, 1)
	assert.True(t, math.IsNaN(in[0].Open))
}
