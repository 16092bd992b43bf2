package types

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Bar is one OHLCV observation with open interest.
type Bar struct {
	Time         time.Time `json:"datetime"`
	Open         float64   `json:"open"`
	High         float64   `json:"high"`
	Low          float64   `json:"low"`
	Close        float64   `json:"close"`
	Volume       float64   `json:"volume"`
	OpenInterest float64   `json:"open_interest"`
}

// MalformedBarError reports a bar that cannot be processed.
type MalformedBarError struct {
	Field  string
	Reason string
}

func (e *MalformedBarError) Error() string {
	return fmt.Sprintf("malformed bar: %s %s", e.Field, e.Reason)
}

// Validate rejects bars without a timestamp or with non-finite prices.
func (b Bar) Validate() error {
	if b.Time.IsZero() {
		return &MalformedBarError{Field: "datetime", Reason: "is missing"}
	}
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"open", b.Open}, {"high", b.High}, {"low", b.Low}, {"close", b.Close},
		{"volume", b.Volume}, {"open_interest", b.OpenInterest},
	} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return &MalformedBarError{Field: f.name, Reason: "is not a finite number"}
		}
	}
	return nil
}

type Period string

const (
	PeriodMinute   Period = "1"
	Period5Minute  Period = "5"
	Period15Minute Period = "15"
	Period30Minute Period = "30"
	PeriodHour     Period = "60"
	PeriodDay      Period = "D"
)

func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToUpper(strings.TrimSpace(s))); p {
	case PeriodMinute, Period5Minute, Period15Minute, Period30Minute, PeriodHour, PeriodDay:
		return p, nil
	}
	return "", fmt.Errorf("unknown period %q", s)
}

type Action string

const (
	ActionBuy   Action = "buy"
	ActionSell  Action = "sell"
	ActionShort Action = "short"
	ActionCover Action = "cover"
	ActionHold  Action = "hold"
)

func (a Action) Valid() bool {
	switch a {
	case ActionBuy, ActionSell, ActionShort, ActionCover, ActionHold:
		return true
	}
	return false
}

// Quantity is a positive count, the "all" sentinel, or none (zero value).
type Quantity struct {
	n   int
	all bool
}

func Count(n int) Quantity { return Quantity{n: n} }

func All() Quantity { return Quantity{all: true} }

func NoQuantity() Quantity { return Quantity{} }

func (q Quantity) IsAll() bool { return q.all }

func (q Quantity) IsNone() bool { return !q.all && q.n <= 0 }

// Count returns the numeric quantity, 0 for "all" or none.
func (q Quantity) Count() int {
	if q.all {
		return 0
	}
	return q.n
}

func (q Quantity) String() string {
	switch {
	case q.all:
		return "all"
	case q.n > 0:
		return strconv.Itoa(q.n)
	default:
		return ""
	}
}

func (q Quantity) MarshalJSON() ([]byte, error) {
	if q.all {
		return []byte(`"all"`), nil
	}
	if q.n > 0 {
		return []byte(strconv.Itoa(q.n)), nil
	}
	return []byte(`""`), nil
}

func (q *Quantity) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		switch {
		case strings.EqualFold(s, "all"):
			*q = All()
		case s == "":
			*q = NoQuantity()
		default:
			n, err := strconv.Atoi(s)
			if err != nil {
				return fmt.Errorf("quantity %q: %w", s, err)
			}
			*q = Count(n)
		}
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("quantity: %w", err)
	}
	*q = Count(n)
	return nil
}

// Decision is the per-bar output: what to do, how much, and what to remember.
type Decision struct {
	Action      Action   `json:"action"`
	Quantity    Quantity `json:"quantity"`
	NextMessage string   `json:"next_message"`
}

// SafeDecision is returned whenever a tradable bar cannot be decided normally.
func SafeDecision() Decision {
	return Decision{Action: ActionHold, Quantity: Count(1)}
}

// IdleDecision is returned for bars outside every trading window.
func IdleDecision() Decision {
	return Decision{Action: ActionHold, Quantity: NoQuantity()}
}

func (d Decision) Instruction() string {
	if q := d.Quantity.String(); q != "" {
		return string(d.Action) + " " + q
	}
	return string(d.Action)
}

type StepResult struct {
	Symbol   string    `json:"symbol"`
	Time     time.Time `json:"time"`
	Decision Decision  `json:"decision"`
	Position int       `json:"position"`
	Tradable bool      `json:"tradable"`
	// ForcedFlat is set when the position was closed by the intraday cutoff.
	ForcedFlat bool `json:"forced_flat,omitempty"`
	// Degraded is set when the model or parser failed and the safe default was used.
	Degraded bool `json:"degraded,omitempty"`
}
