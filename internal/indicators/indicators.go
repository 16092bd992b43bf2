package indicators

import (
	"context"
	"fmt"
	"math"
	"strings"

	"llm-dealer/internal/logger"
	"llm-dealer/internal/ta"
	"llm-dealer/internal/types"
)

// MinRows is the fewest bars for which indicators are computed.
const MinRows = 5

// Windows are the nominal look-backs; each is clipped to the rows available.
type Windows struct {
	SMA        int
	EMA        int
	RSI        int
	MACDFast   int
	MACDSlow   int
	MACDSignal int
	Bollinger  int
	BollingerK float64
	ATR        int
}

func DefaultWindows() Windows {
	return Windows{
		SMA: 10, EMA: 20, RSI: 14,
		MACDFast: 12, MACDSlow: 26, MACDSignal: 9,
		Bollinger: 20, BollingerK: 2,
		ATR: 14,
	}
}

// Values are the indicator readings for one bar. NaN means unavailable.
type Values struct {
	SMA10         float64 `json:"sma_10"`
	EMA20         float64 `json:"ema_20"`
	RSI           float64 `json:"rsi"`
	MACD          float64 `json:"macd"`
	MACDSignal    float64 `json:"macd_signal"`
	BollingerHigh float64 `json:"bollinger_high"`
	BollingerMid  float64 `json:"bollinger_mid"`
	BollingerLow  float64 `json:"bollinger_low"`
	ATR           float64 `json:"atr"`
}

// Missing is a Values with every reading unavailable.
func Missing() Values {
	n := math.NaN()
	return Values{n, n, n, n, n, n, n, n, n}
}

// Series is the input bars with one Values row per bar. Computed is false
// when the bars were returned without derived columns.
type Series struct {
	Bars     []types.Bar
	Values   []Values
	Computed bool
}

// Latest returns the readings for the last bar, or Missing.
func (s Series) Latest() Values {
	if !s.Computed || len(s.Values) == 0 {
		return Missing()
	}
	return s.Values[len(s.Values)-1]
}

// ComputationError wraps a failure inside an indicator calculation.
type ComputationError struct {
	Cause error
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("indicator computation: %v", e.Cause)
}

func (e *ComputationError) Unwrap() error { return e.Cause }

// Engine computes indicator snapshots over a minute series.
type Engine struct {
	windows Windows
}

func NewEngine(w Windows) *Engine {
	return &Engine{windows: w}
}

func clip(n, rows int) int {
	if n > rows {
		return rows
	}
	return n
}

// Compute derives indicator columns for bars. Fewer than MinRows bars, or any
// failure, yields the bars unchanged with Computed=false.
func (e *Engine) Compute(ctx context.Context, bars []types.Bar) Series {
	if len(bars) < MinRows {
		return Series{Bars: bars}
	}
	values, err := e.compute(bars)
	if err != nil {
		logger.ErrorWithErr(ctx, "Indicator computation failed", err, "rows", len(bars))
		return Series{Bars: bars}
	}
	return Series{Bars: bars, Values: values, Computed: true}
}

func (e *Engine) compute(bars []types.Bar) (values []Values, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ComputationError{Cause: fmt.Errorf("panic: %v", r)}
		}
	}()

	rows := len(bars)
	closes := make([]float64, rows)
	highs := make([]float64, rows)
	lows := make([]float64, rows)
	for i, b := range bars {
		closes[i], highs[i], lows[i] = b.Close, b.High, b.Low
	}
	for i, c := range closes {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return nil, &ComputationError{Cause: fmt.Errorf("close at row %d is not finite", i)}
		}
	}

	w := e.windows
	sma := ta.SMA(closes, clip(w.SMA, rows))
	ema := ta.EMA(closes, clip(w.EMA, rows), 0)
	rsi := ta.RSI(closes, clip(w.RSI, rows))
	macd, signal := ta.MACD(closes, clip(w.MACDFast, rows), clip(w.MACDSlow, rows), clip(w.MACDSignal, rows))
	mid, up, low := ta.Bollinger(closes, clip(w.Bollinger, rows), w.BollingerK)
	atr := ta.ATR(highs, lows, closes, clip(w.ATR, rows))

	values = make([]Values, rows)
	for i := range values {
		values[i] = Values{
			SMA10:         sma[i],
			EMA20:         ema[i],
			RSI:           rsi[i],
			MACD:          macd[i],
			MACDSignal:    signal[i],
			BollingerHigh: up[i],
			BollingerMid:  mid[i],
			BollingerLow:  low[i],
			ATR:           atr[i],
		}
	}
	return values, nil
}

func formatValue(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "N/A"
	}
	return fmt.Sprintf("%.2f", v)
}

// Format renders v as labelled lines. Compact mode drops the MACD signal,
// ATR and the middle band.
func Format(v Values, compact bool) string {
	type field struct {
		label string
		value float64
	}
	var fields []field
	if compact {
		fields = []field{
			{"SMA10", v.SMA10},
			{"EMA20", v.EMA20},
			{"RSI", v.RSI},
			{"MACD", v.MACD},
			{"BB high", v.BollingerHigh},
			{"BB low", v.BollingerLow},
		}
	} else {
		fields = []field{
			{"10-period simple moving average (SMA)", v.SMA10},
			{"20-period exponential moving average (EMA)", v.EMA20},
			{"Relative strength index (RSI)", v.RSI},
			{"MACD", v.MACD},
			{"MACD signal line", v.MACDSignal},
			{"Average true range (ATR)", v.ATR},
			{"Bollinger upper band", v.BollingerHigh},
			{"Bollinger middle band", v.BollingerMid},
			{"Bollinger lower band", v.BollingerLow},
		}
	}

	var b strings.Builder
	for _, f := range fields {
		fmt.Fprintf(&b, "%s: %s\n", f.label, formatValue(f.value))
	}
	return b.String()
}
