package types

import (
	"math"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

var barTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseBarTime parses the timestamp formats data vendors emit, in loc when
// the text carries no zone.
func ParseBarTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	var lastErr error
	for _, layout := range barTimeLayouts {
		t, err := time.ParseInLocation(layout, s, loc)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// ParseBar decodes a JSON bar. The timestamp may be keyed "datetime" or
// "date", and open interest "open_interest" or "hold". Anything that is not a
// well-formed bar is rejected with *MalformedBarError.
func ParseBar(data []byte, loc *time.Location) (Bar, error) {
	if !gjson.ValidBytes(data) {
		return Bar{}, &MalformedBarError{Field: "bar", Reason: "is not valid JSON"}
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return Bar{}, &MalformedBarError{Field: "bar", Reason: "is not a JSON object"}
	}
	return BarFromResult(root, loc)
}

// BarFromResult converts one decoded JSON object into a Bar.
func BarFromResult(r gjson.Result, loc *time.Location) (Bar, error) {
	ts := r.Get("datetime")
	if !ts.Exists() {
		ts = r.Get("date")
	}
	if !ts.Exists() {
		return Bar{}, &MalformedBarError{Field: "datetime", Reason: "is missing"}
	}

	var (
		t   time.Time
		err error
	)
	if ts.Type == gjson.Number {
		t = time.UnixMilli(ts.Int()).In(loc)
	} else {
		t, err = ParseBarTime(ts.String(), loc)
		if err != nil {
			return Bar{}, &MalformedBarError{Field: "datetime", Reason: "is not a timestamp: " + ts.String()}
		}
	}

	bar := Bar{Time: t}
	fields := []struct {
		keys []string
		dst  *float64
	}{
		{[]string{"open"}, &bar.Open},
		{[]string{"high"}, &bar.High},
		{[]string{"low"}, &bar.Low},
		{[]string{"close"}, &bar.Close},
		{[]string{"volume"}, &bar.Volume},
		{[]string{"open_interest", "hold"}, &bar.OpenInterest},
	}
	for _, f := range fields {
		*f.dst = numberField(r, f.keys...)
	}
	if math.IsNaN(bar.Close) {
		return Bar{}, &MalformedBarError{Field: "close", Reason: "is missing"}
	}
	return bar, nil
}

// numberField reads the first present key as a number. Missing or non-numeric
// values come back as NaN so the cleaning stage can fill them.
func numberField(r gjson.Result, keys ...string) float64 {
	for _, k := range keys {
		v := r.Get(k)
		if !v.Exists() {
			continue
		}
		switch v.Type {
		case gjson.Number:
			return v.Float()
		case gjson.String:
			if f := gjson.Parse(strings.TrimSpace(v.Str)); f.Type == gjson.Number {
				return f.Float()
			}
		}
		return math.NaN()
	}
	return math.NaN()
}
