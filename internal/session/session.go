package session

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"llm-dealer/internal/types"
)

// Clock is a wall-clock time of day in minutes since midnight.
type Clock int

func ClockOf(t time.Time) Clock {
	return Clock(t.Hour()*60 + t.Minute())
}

func NewClock(hour, minute int) Clock {
	return Clock(hour*60 + minute)
}

// ParseClock parses "HH:MM".
func ParseClock(s string) (Clock, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("clock %q: want HH:MM", s)
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("clock %q: bad hour", s)
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("clock %q: bad minute", s)
	}
	return NewClock(hour, minute), nil
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// Window is an inclusive [Start, End] range of the trading day.
type Window struct {
	Name  string
	Start Clock
	End   Clock
}

func (w Window) Contains(c Clock) bool {
	return c >= w.Start && c <= w.End
}

type Kind int

const (
	None Kind = iota
	Day
	Night
)

func (k Kind) String() string {
	switch k {
	case Day:
		return "day"
	case Night:
		return "night"
	default:
		return "none"
	}
}

// DefaultWindows are the exchange's continuous trading windows.
func DefaultWindows() []Window {
	return []Window{
		{Name: "morning", Start: NewClock(9, 0), End: NewClock(11, 30)},
		{Name: "afternoon", Start: NewClock(13, 0), End: NewClock(15, 0)},
		{Name: "night", Start: NewClock(21, 0), End: NewClock(23, 59)},
		{Name: "overnight", Start: NewClock(0, 0), End: NewClock(2, 30)},
	}
}

// Schedule holds everything time-of-day dependent the dealer needs.
type Schedule struct {
	Windows    []Window
	DayStart   Clock
	NightStart Clock
	NightEnd   Clock
	// Cutoff is the first day-session minute at which positions are flattened.
	Cutoff Clock
	// EndOfDayBar is the bar that closes the daily candle.
	EndOfDayBar Clock
}

func DefaultSchedule() Schedule {
	return Schedule{
		Windows:     DefaultWindows(),
		DayStart:    NewClock(9, 0),
		NightStart:  NewClock(21, 0),
		NightEnd:    NewClock(2, 30),
		Cutoff:      NewClock(14, 55),
		EndOfDayBar: NewClock(15, 0),
	}
}

func (s Schedule) IsTradingTime(t time.Time) bool {
	c := ClockOf(t)
	for _, w := range s.Windows {
		if w.Contains(c) {
			return true
		}
	}
	return false
}

// Classify reports whether t falls in the day or the night session.
func (s Schedule) Classify(t time.Time) Kind {
	c := ClockOf(t)
	switch {
	case c >= s.DayStart && c < s.NightStart:
		return Day
	case c >= s.NightStart || c < s.NightEnd:
		return Night
	default:
		return None
	}
}

// ShouldForceFlat is true for day-session bars at or after the cutoff.
func (s Schedule) ShouldForceFlat(t time.Time) bool {
	return s.Classify(t) == Day && ClockOf(t) >= s.Cutoff
}

func (s Schedule) IsEndOfDayBar(t time.Time) bool {
	return ClockOf(t) == s.EndOfDayBar
}

// Filter keeps bars that fall inside a trading window.
func (s Schedule) Filter(bars []types.Bar) []types.Bar {
	out := make([]types.Bar, 0, len(bars))
	for _, b := range bars {
		if s.IsTradingTime(b.Time) {
			out = append(out, b)
		}
	}
	return out
}

func (s Schedule) Validate() error {
	if len(s.Windows) == 0 {
		return fmt.Errorf("schedule has no trading windows")
	}
	for _, w := range s.Windows {
		if w.End < w.Start {
			return fmt.Errorf("window %s ends (%s) before it starts (%s)", w.Name, w.End, w.Start)
		}
	}
	if s.NightStart <= s.DayStart {
		return fmt.Errorf("night session start %s must be after day start %s", s.NightStart, s.DayStart)
	}
	return nil
}
