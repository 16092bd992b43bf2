// Package ta computes technical-analysis series. Every function returns a
// slice aligned with its input; rows without enough history are NaN.
package ta

import "math"

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// SMA is the rolling mean over n rows.
func SMA(vals []float64, n int) []float64 {
	out := nanSeries(len(vals))
	if n <= 0 {
		return out
	}
	sum := 0.0
	for i, v := range vals {
		sum += v
		if i >= n {
			sum -= vals[i-n]
		}
		if i >= n-1 {
			out[i] = sum / float64(n)
		}
	}
	return out
}

// EMA is the recursive exponential mean with alpha = 2/(span+1), seeded with
// the first finite value. Leading NaNs are skipped and the first minPeriods-1
// finite observations are reported as NaN.
func EMA(vals []float64, span, minPeriods int) []float64 {
	if span <= 0 {
		return nanSeries(len(vals))
	}
	return ewm(vals, 2.0/(float64(span)+1.0), minPeriods)
}

// ewm is a non-adjusted exponentially weighted mean.
func ewm(vals []float64, alpha float64, minPeriods int) []float64 {
	out := nanSeries(len(vals))
	var (
		mean  float64
		count int
	)
	for i, v := range vals {
		if math.IsNaN(v) {
			if count >= minPeriods && count > 0 {
				out[i] = mean
			}
			continue
		}
		if count == 0 {
			mean = v
		} else {
			mean = alpha*v + (1-alpha)*mean
		}
		count++
		if count >= minPeriods {
			out[i] = mean
		}
	}
	return out
}

// RSI is Wilder's relative strength index over n rows. When the average loss
// is zero the index is 100.
func RSI(closes []float64, n int) []float64 {
	if n <= 0 {
		return nanSeries(len(closes))
	}
	up := make([]float64, len(closes))
	dn := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			up[i] = d
		} else if d < 0 {
			dn[i] = -d
		}
	}
	alpha := 1.0 / float64(n)
	avgUp := ewm(up, alpha, n)
	avgDn := ewm(dn, alpha, n)

	out := nanSeries(len(closes))
	for i := range closes {
		if math.IsNaN(avgUp[i]) || math.IsNaN(avgDn[i]) {
			continue
		}
		if avgDn[i] == 0 {
			out[i] = 100
			continue
		}
		rs := avgUp[i] / avgDn[i]
		out[i] = 100 - 100/(1+rs)
	}
	return out
}

// MACD returns the fast-minus-slow EMA line and its signal EMA.
func MACD(closes []float64, fast, slow, signal int) (line, sig []float64) {
	fastEMA := EMA(closes, fast, fast)
	slowEMA := EMA(closes, slow, slow)
	line = nanSeries(len(closes))
	for i := range closes {
		if math.IsNaN(fastEMA[i]) || math.IsNaN(slowEMA[i]) {
			continue
		}
		line[i] = fastEMA[i] - slowEMA[i]
	}
	sig = EMA(line, signal, signal)
	return line, sig
}

// StdDev is the rolling population standard deviation over n rows.
func StdDev(vals []float64, n int) []float64 {
	out := nanSeries(len(vals))
	if n <= 0 {
		return out
	}
	for i := n - 1; i < len(vals); i++ {
		window := vals[i-n+1 : i+1]
		m := 0.0
		for _, v := range window {
			m += v
		}
		m /= float64(n)
		s := 0.0
		for _, v := range window {
			d := v - m
			s += d * d
		}
		out[i] = math.Sqrt(s / float64(n))
	}
	return out
}

// Bollinger returns the mid, upper and lower bands, k deviations wide.
func Bollinger(closes []float64, n int, k float64) (mid, up, low []float64) {
	mid = SMA(closes, n)
	sd := StdDev(closes, n)
	up = nanSeries(len(closes))
	low = nanSeries(len(closes))
	for i := range closes {
		if math.IsNaN(mid[i]) || math.IsNaN(sd[i]) {
			continue
		}
		up[i] = mid[i] + k*sd[i]
		low[i] = mid[i] - k*sd[i]
	}
	return mid, up, low
}

// TrueRange uses high-low for the first row, which has no previous close.
func TrueRange(highs, lows, closes []float64) []float64 {
	out := make([]float64, len(closes))
	for i := range closes {
		tr := highs[i] - lows[i]
		if i > 0 {
			tr = math.Max(tr, math.Abs(highs[i]-closes[i-1]))
			tr = math.Max(tr, math.Abs(lows[i]-closes[i-1]))
		}
		out[i] = tr
	}
	return out
}

// ATR is Wilder's average true range: the first value is the mean of the
// first n true ranges, then atr = (prev*(n-1) + tr) / n.
func ATR(highs, lows, closes []float64, n int) []float64 {
	out := nanSeries(len(closes))
	if n <= 0 || len(highs) != len(closes) || len(lows) != len(closes) || len(closes) < n {
		return out
	}
	tr := TrueRange(highs, lows, closes)
	seed := 0.0
	for _, v := range tr[:n] {
		seed += v
	}
	out[n-1] = seed / float64(n)
	for i := n; i < len(closes); i++ {
		out[i] = (out[i-1]*float64(n-1) + tr[i]) / float64(n)
	}
	return out
}
