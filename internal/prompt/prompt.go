// Package prompt renders the per-bar decision context sent to the model.
package prompt

import (
	"fmt"
	"strconv"
	"strings"

	"llm-dealer/internal/indicators"
	"llm-dealer/internal/session"
	"llm-dealer/internal/types"
)

const (
	minuteLayout = "2006-01-02 15:04"
	dateLayout   = "2006-01-02"
	clockLayout  = "15:04"
)

// Config bounds how much history each prompt shows.
type Config struct {
	MaxDaily    int
	MaxHourly   int
	MaxMinute   int
	MaxPosition int
	Compact     bool
	NewsChars   int
	Cutoff      session.Clock
}

// Input is everything one render needs. Builder never mutates it.
type Input struct {
	LastMessage string
	BarIndex    int // zero-based index of Bar within the trading day
	Daily       []types.Bar
	Hourly      []types.Bar
	Today       []types.Bar
	Bar         types.Bar
	Indicators  indicators.Values
	News        string
	Position    int
}

// Builder renders prompts. It is stateless and safe for concurrent use.
type Builder struct {
	cfg Config
}

func NewBuilder(cfg Config) *Builder {
	if cfg.NewsChars <= 0 {
		cfg.NewsChars = 200
	}
	return &Builder{cfg: cfg}
}

func formatVolume(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func tail(bars []types.Bar, n int) []types.Bar {
	if n >= 0 && len(bars) > n {
		return bars[len(bars)-n:]
	}
	return bars
}

// summarize renders one line per bar, newest last.
func (b *Builder) summarize(bars []types.Bar, max int, layout string) string {
	bars = tail(bars, max)
	if len(bars) == 0 {
		return "No data available"
	}
	lines := make([]string, 0, len(bars))
	for _, bar := range bars {
		ts := bar.Time.Format(layout)
		if b.cfg.Compact {
			lines = append(lines, fmt.Sprintf("%s: C:%.2f V:%s", ts, bar.Close, formatVolume(bar.Volume)))
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: O:%.2f H:%.2f L:%.2f C:%.2f V:%s",
			ts, bar.Open, bar.High, bar.Low, bar.Close, formatVolume(bar.Volume)))
	}
	return strings.Join(lines, "\n")
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// Render produces the decision context. Identical inputs give identical output.
func (b *Builder) Render(in Input) string {
	var w strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&w, format, args...)
		w.WriteByte('\n')
	}

	line("Previous message: %s", in.LastMessage)
	line("Current bar index: %d", in.BarIndex)
	line("")
	line("Daily history (last %d days):", b.cfg.MaxDaily)
	line("%s", b.summarize(in.Daily, b.cfg.MaxDaily, dateLayout))
	line("")
	line("Hourly history (last %d hours):", b.cfg.MaxHourly)
	line("%s", b.summarize(in.Hourly, b.cfg.MaxHourly, minuteLayout))
	line("")
	line("Today's minute bars (last %d minutes):", b.cfg.MaxMinute)
	line("%s", b.summarize(in.Today, b.cfg.MaxMinute, minuteLayout))
	line("")
	line("Current bar:")
	line("Time: %s", in.Bar.Time.Format(minuteLayout))
	line("Open: %.2f", in.Bar.Open)
	line("High: %.2f", in.Bar.High)
	line("Low: %.2f", in.Bar.Low)
	line("Close: %.2f", in.Bar.Close)
	line("Volume: %s", formatVolume(in.Bar.Volume))
	line("Open interest: %s", formatVolume(in.Bar.OpenInterest))
	line("")
	line("Technical indicators:")
	w.WriteString(indicators.Format(in.Indicators, b.cfg.Compact))
	line("")
	line("Latest news:")
	line("%s...", Truncate(in.News, b.cfg.NewsChars))
	line("")
	line("Current position: %d", in.Position)
	line("Maximum position: %d", b.cfg.MaxPosition)
	line("")
	line("Notes:")
	line("1. Intraday positions are closed automatically from %s; plan to be flat before then.", b.cfg.Cutoff)
	line("2. The current time is %s. Decide whether the position should be closed.", in.Bar.Time.Format(clockLayout))
	line("3. When opening you may give a number of contracts or 'all' to fill the limit; without a number 1 contract is used.")
	line("4. When closing you may give a number of contracts or 'all' to close everything; without a number 1 contract is used.")
	line("")
	line("Give one trade instruction (buy/sell/short/cover) or no trade (hold), and the message you want to receive next time.")
	line("Reply with a JSON object with these fields:")
	line(`- trade_instruction: string "<action> <quantity>", e.g. "buy 2" or "sell all"`)
	line("- next_message: string")
	line("")
	w.WriteString("Reply with exactly one ```json fenced block containing that object, and no other ```json block.\n")
	return w.String()
}
