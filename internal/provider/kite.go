package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	"llm-dealer/internal/types"
)

// historicalClient is the part of the Kite Connect client used here.
type historicalClient interface {
	GetHistoricalData(instrumentToken int, interval string, fromDate time.Time, toDate time.Time, continuous bool, OI bool) ([]kiteconnect.HistoricalData, error)
}

type KiteParams struct {
	APIKey      string
	AccessToken string
	Tokens      map[string]int64
	Location    *time.Location
}

// Kite fetches continuous-contract historical bars, including open
// interest, from the Kite Connect API.
type Kite struct {
	kc     historicalClient
	loc    *time.Location
	mapper *instrumentMapper
}

func NewKite(p KiteParams) (*Kite, error) {
	if p.APIKey == "" || p.AccessToken == "" {
		return nil, errors.New("missing Kite API key/access token")
	}
	kc := kiteconnect.New(p.APIKey)
	kc.SetAccessToken(p.AccessToken)
	return newKite(kc, p.Tokens, p.Location), nil
}

func newKite(kc historicalClient, tokens map[string]int64, loc *time.Location) *Kite {
	if loc == nil {
		loc = time.UTC
	}
	m := newInstrumentMapper()
	for symbol, token := range tokens {
		m.addMapping(symbol, int(token))
	}
	return &Kite{kc: kc, loc: loc, mapper: m}
}

// kiteInterval maps a period to the API interval name and how many calendar
// days to look back from the reference date.
func kiteInterval(period types.Period) (string, int, error) {
	switch period {
	case types.PeriodMinute:
		return "minute", 4, nil
	case types.Period5Minute:
		return "5minute", 10, nil
	case types.Period15Minute:
		return "15minute", 10, nil
	case types.Period30Minute:
		return "30minute", 15, nil
	case types.PeriodHour:
		return "60minute", 15, nil
	case types.PeriodDay:
		return "day", 90, nil
	}
	return "", 0, fmt.Errorf("unsupported period %q", period)
}

func (k *Kite) GetBarData(ctx context.Context, symbol string, period types.Period, referenceDate time.Time) ([]types.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	token, ok := k.mapper.getToken(symbol)
	if !ok {
		return nil, fmt.Errorf("no instrument token for %s", symbol)
	}
	interval, days, err := kiteInterval(period)
	if err != nil {
		return nil, err
	}

	to := endOfDay(referenceDate, k.loc).Add(-time.Second)
	from := to.AddDate(0, 0, -days)

	rows, err := k.kc.GetHistoricalData(token, interval, from, to, true, true)
	if err != nil {
		return nil, fmt.Errorf("kite historical %s %s: %w", symbol, interval, err)
	}
	if len(rows) == 0 {
		return nil, types.ErrNoData
	}

	bars := make([]types.Bar, 0, len(rows))
	for _, r := range rows {
		t := r.Date.Time.In(k.loc)
		if period == types.PeriodDay {
			t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, k.loc)
		}
		bars = append(bars, types.Bar{
			Time:         t,
			Open:         r.Open,
			High:         r.High,
			Low:          r.Low,
			Close:        r.Close,
			Volume:       float64(r.Volume),
			OpenInterest: float64(r.OI),
		})
	}
	return upTo(bars, referenceDate, k.loc), nil
}

// instrumentMapper resolves configured symbols to Kite instrument tokens.
// Lookups are case-insensitive.
type instrumentMapper struct {
	symbolToToken map[string]int
	mu            sync.RWMutex
}

func newInstrumentMapper() *instrumentMapper {
	return &instrumentMapper{symbolToToken: make(map[string]int)}
}

func (im *instrumentMapper) addMapping(symbol string, token int) {
	im.mu.Lock()
	defer im.mu.Unlock()
	im.symbolToToken[strings.ToUpper(symbol)] = token
}

func (im *instrumentMapper) getToken(symbol string) (int, bool) {
	im.mu.RLock()
	defer im.mu.RUnlock()
	token, exists := im.symbolToToken[strings.ToUpper(symbol)]
	return token, exists
}
