package ta

import (
	"math"
	"testing"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func last(series []float64) float64 {
	if len(series) == 0 {
		return math.NaN()
	}
	return series[len(series)-1]
}

func TestSMA(t *testing.T) {
	got := SMA([]float64{1, 2, 3, 4, 5}, 3)
	if !math.IsNaN(got[0]) || !math.IsNaN(got[1]) {
		t.Errorf("Expected NaN warm-up rows, got %v", got[:2])
	}
	want := []float64{2, 3, 4}
	for i, w := range want {
		if !approx(got[i+2], w) {
			t.Errorf("SMA[%d]: expected %v, got %v", i+2, w, got[i+2])
		}
	}
}

func TestEMASeededWithFirstValue(t *testing.T) {
	got := EMA([]float64{10, 20, 30}, 3, 0)
	// alpha = 0.5
	want := []float64{10, 15, 22.5}
	for i, w := range want {
		if !approx(got[i], w) {
			t.Errorf("EMA[%d]: expected %v, got %v", i, w, got[i])
		}
	}
}

func TestEMASkipsLeadingNaN(t *testing.T) {
	got := EMA([]float64{math.NaN(), math.NaN(), 4, 8}, 3, 2)
	if !math.IsNaN(got[2]) {
		t.Errorf("Expected NaN before min periods, got %v", got[2])
	}
	if !approx(got[3], 6) {
		t.Errorf("Expected 6, got %v", got[3])
	}
}

func TestRSIAllGainsIs100(t *testing.T) {
	closes := []float64{1, 2, 3, 4, 5, 6}
	got := RSI(closes, 5)
	if !approx(last(got), 100) {
		t.Errorf("Expected RSI 100 with no losses, got %v", last(got))
	}
	if !math.IsNaN(got[3]) {
		t.Errorf("Expected NaN before %d rows, got %v", 5, got[3])
	}
}

func TestRSIMixed(t *testing.T) {
	closes := []float64{10, 11, 10, 11, 10, 11}
	got := last(RSI(closes, 5))
	if got <= 0 || got >= 100 {
		t.Errorf("Expected RSI strictly between 0 and 100, got %v", got)
	}
}

func TestMACDConstantSeriesIsZero(t *testing.T) {
	closes := []float64{5, 5, 5, 5, 5, 5}
	line, sig := MACD(closes, 3, 5, 2)
	if !approx(last(line), 0) || !approx(last(sig), 0) {
		t.Errorf("Expected zero MACD on a flat series, got line=%v signal=%v", last(line), last(sig))
	}
	if !math.IsNaN(line[3]) {
		t.Errorf("Expected NaN before slow window fills, got %v", line[3])
	}
}

func TestBollingerPopulationStd(t *testing.T) {
	closes := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	mid, up, low := Bollinger(closes, 8, 2)
	// mean 5, population std 2
	if !approx(last(mid), 5) || !approx(last(up), 9) || !approx(last(low), 1) {
		t.Errorf("Expected 5/9/1, got %v/%v/%v", last(mid), last(up), last(low))
	}
}

func TestATRWilder(t *testing.T) {
	highs := []float64{10, 11, 12, 13}
	lows := []float64{8, 9, 10, 11}
	closes := []float64{9, 10, 11, 12}
	got := ATR(highs, lows, closes, 2)
	// TR = 2, 2, 2, 2
	if !math.IsNaN(got[0]) {
		t.Errorf("Expected NaN first row, got %v", got[0])
	}
	for i := 1; i < 4; i++ {
		if !approx(got[i], 2) {
			t.Errorf("ATR[%d]: expected 2, got %v", i, got[i])
		}
	}
}

func TestTrueRangeUsesPreviousClose(t *testing.T) {
	tr := TrueRange([]float64{10, 15}, []float64{9, 14}, []float64{9.5, 14.5})
	if !approx(tr[0], 1) || !approx(tr[1], 5.5) {
		t.Errorf("Expected [1 5.5], got %v", tr)
	}
}
