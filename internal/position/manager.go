// Package position tracks the signed contract position of one instrument
// under a fixed ceiling, with an intraday-only carry policy.
package position

import (
	"context"
	"time"

	"llm-dealer/internal/logger"
	"llm-dealer/internal/session"
	"llm-dealer/internal/types"
)

// Outcome describes one Apply call.
type Outcome struct {
	Before     int
	After      int
	Executed   int  // resolved quantity for the requested action
	ForcedFlat bool // position was closed by the intraday cutoff
	DateReset  bool // position was reset because the trading date changed
	Rejected   bool // input was malformed and position left unchanged
}

// Manager holds the position of one instrument. The position always stays
// within [-maxPosition, maxPosition].
type Manager struct {
	symbol        string
	maxPosition   int
	schedule      session.Schedule
	position      int
	lastTradeDate string
}

// NewManager starts flat. A negative maxPosition is treated as zero.
func NewManager(symbol string, maxPosition int, schedule session.Schedule) *Manager {
	if maxPosition < 0 {
		maxPosition = 0
	}
	return &Manager{symbol: symbol, maxPosition: maxPosition, schedule: schedule}
}

// Position is the signed contract count; negative is short.
func (m *Manager) Position() int { return m.position }

// MaxPosition is the absolute ceiling.
func (m *Manager) MaxPosition() int { return m.maxPosition }

func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// ResetForDate flattens the position if date differs from the last trade
// date and records date. It reports whether a reset happened.
func (m *Manager) ResetForDate(ctx context.Context, date time.Time) bool {
	key := dateKey(date)
	if key == m.lastTradeDate {
		return false
	}
	if m.position != 0 {
		logger.Position(ctx, m.symbol, m.position, 0, "new trading date", "date", key)
	}
	m.position = 0
	m.lastTradeDate = key
	return true
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// resolve turns the requested quantity into a contract count. "all" fills
// the remaining headroom for buy/short and the whole position for
// sell/cover; a count is capped by the headroom.
func (m *Manager) resolve(action types.Action, qty types.Quantity) int {
	headroom := m.maxPosition - abs(m.position)
	if qty.IsAll() {
		switch action {
		case types.ActionBuy, types.ActionShort:
			return headroom
		default:
			return abs(m.position)
		}
	}
	return min(qty.Count(), headroom)
}

// Apply executes action for the bar at barTime on currentDate and returns
// the position change. Malformed input is logged and leaves the position
// unchanged.
func (m *Manager) Apply(ctx context.Context, action types.Action, qty types.Quantity, barTime, currentDate time.Time) Outcome {
	out := Outcome{Before: m.position}

	missingQty := qty.IsNone() && action != types.ActionHold
	if !action.Valid() || missingQty || barTime.IsZero() || currentDate.IsZero() {
		logger.Warn(ctx, "Rejected malformed position instruction",
			"symbol", m.symbol, "action", string(action), "quantity", qty.String(), "bar_time", barTime)
		out.After, out.Rejected = m.position, true
		return out
	}

	out.DateReset = m.ResetForDate(ctx, currentDate)
	out.Before = m.position

	if action != types.ActionHold {
		out.Executed = m.resolve(action, qty)
	}

	switch action {
	case types.ActionBuy, types.ActionCover:
		m.position = min(m.position+out.Executed, m.maxPosition)
	case types.ActionSell, types.ActionShort:
		m.position = max(m.position-out.Executed, -m.maxPosition)
	}

	switch m.schedule.Classify(barTime) {
	case session.Day:
		if m.schedule.ShouldForceFlat(barTime) && m.position != 0 {
			logger.Position(ctx, m.symbol, m.position, 0, "day session forced flat",
				"cutoff", m.schedule.Cutoff.String())
			m.position = 0
			out.ForcedFlat = true
		}
	case session.Night:
		logger.Debug(ctx, "Night session bar, no forced flat",
			"symbol", m.symbol, "position", m.position)
	}

	out.After = m.position
	if out.After != out.Before && !out.ForcedFlat {
		logger.Position(ctx, m.symbol, out.Before, out.After, string(action),
			"requested", qty.String(), "executed", out.Executed)
	}
	return out
}
