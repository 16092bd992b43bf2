package provider

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"llm-dealer/internal/session"
	"llm-dealer/internal/types"
)

// Static generates deterministic synthetic bars: the same symbol, period and
// reference date always give the same series. Intraday bars only fall inside
// the schedule's trading windows.
type Static struct {
	schedule session.Schedule
	loc      *time.Location
}

func NewStatic(schedule session.Schedule, loc *time.Location) *Static {
	if loc == nil {
		loc = time.UTC
	}
	return &Static{schedule: schedule, loc: loc}
}

const (
	staticDailyBars   = 60
	staticMinuteDays  = 2
	staticIntradayDay = 5
)

func (s *Static) GetBarData(ctx context.Context, symbol string, period types.Period, referenceDate time.Time) ([]types.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ref := referenceDate.In(s.loc)
	day := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, s.loc)

	if period == types.PeriodDay {
		return s.daily(symbol, day), nil
	}

	lookback := staticIntradayDay
	if period == types.PeriodMinute {
		lookback = staticMinuteDays
	}
	step := stepOf(period)

	var bars []types.Bar
	for d := lookback - 1; d >= 0; d-- {
		bars = append(bars, s.intraday(symbol, period, day.AddDate(0, 0, -d), step)...)
	}
	return bars, nil
}

func (s *Static) daily(symbol string, day time.Time) []types.Bar {
	rng := seeded(symbol, types.PeriodDay, day)
	price := basePrice(symbol)
	bars := make([]types.Bar, 0, staticDailyBars)
	for i := staticDailyBars - 1; i >= 0; i-- {
		t := day.AddDate(0, 0, -i)
		bars = append(bars, walk(rng, t, &price, 0.01, 50000))
	}
	return bars
}

func (s *Static) intraday(symbol string, period types.Period, day time.Time, step session.Clock) []types.Bar {
	rng := seeded(symbol, period, day)
	price := basePrice(symbol) * (1 + (rng.Float64()-0.5)*0.02)
	var bars []types.Bar
	for _, w := range s.schedule.Windows {
		for c := w.Start; c <= w.End; c += step {
			t := day.Add(time.Duration(c) * time.Minute)
			bars = append(bars, walk(rng, t, &price, 0.001, 400))
		}
	}
	return bars
}

// walk advances price by one random step and returns the resulting bar.
func walk(rng *rand.Rand, t time.Time, price *float64, vol, volume float64) types.Bar {
	open := *price
	cl := open * (1 + (rng.Float64()-0.5)*2*vol)
	high := math.Max(open, cl) * (1 + rng.Float64()*vol)
	low := math.Min(open, cl) * (1 - rng.Float64()*vol)
	*price = cl
	return types.Bar{
		Time:         t,
		Open:         round2(open),
		High:         round2(high),
		Low:          round2(low),
		Close:        round2(cl),
		Volume:       math.Floor(volume * (0.5 + rng.Float64())),
		OpenInterest: math.Floor(100000 + rng.Float64()*5000),
	}
}

func seeded(symbol string, period types.Period, day time.Time) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(symbol))
	h.Write([]byte(period))
	h.Write([]byte(day.Format("2006-01-02")))
	return rand.New(rand.NewSource(int64(h.Sum64())))
}

func basePrice(symbol string) float64 {
	h := fnv.New32a()
	h.Write([]byte(session.ProductCode(symbol)))
	return 1000 + float64(h.Sum32()%4000)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
