package eod

import (
	"context"
	"encoding/csv"
	"os"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"

	"llm-dealer/internal/session"
	"llm-dealer/internal/tradelog"
	"llm-dealer/internal/types"
)

var cst = time.FixedZone("CST", 8*3600)

func record(t *testing.T, r *tradelog.Recorder, symbol string, minute int, action types.Action, qty types.Quantity, pos int, forced bool) {
	t.Helper()
	err := r.Record(context.Background(), types.StepResult{
		Symbol:     symbol,
		Time:       time.Date(2024, 6, 3, 14, minute, 0, 0, cst),
		Decision:   types.Decision{Action: action, Quantity: qty},
		Position:   pos,
		Tradable:   true,
		ForcedFlat: forced,
	})
	assert.NoError(t, err)
}

func TestSummarizeDay(t *testing.T) {
	dir := t.TempDir()
	r := tradelog.NewRecorder(dir, cst)
	record(t, r, "RB2410", 50, types.ActionBuy, types.Count(2), 2, false)
	record(t, r, "RB2410", 51, types.ActionBuy, types.All(), 5, false)
	record(t, r, "RB2410", 52, types.ActionHold, types.Count(1), 5, false)
	record(t, r, "RB2410", 55, types.ActionHold, types.Count(1), 0, true)
	record(t, r, "CU2409", 50, types.ActionShort, types.Count(3), -3, false)

	s := newSummarizer(dir, cst, session.NewClock(15, 40), time.Now)
	path, err := s.SummarizeDay(time.Date(2024, 6, 3, 0, 0, 0, 0, cst))
	assert.NoError(t, err)
	assert.Equal(t, path, eodCSVPath(dir, time.Date(2024, 6, 3, 0, 0, 0, 0, cst)))

	f, err := os.Open(path)
	assert.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	assert.NoError(t, err)

	assert.Equal(t, len(rows), 4)
	assert.Equal(t, rows[0], []string{
		"symbol", "steps",
		"buy_count", "sell_count", "short_count", "cover_count", "hold_count",
		"buy_qty", "sell_qty", "short_qty", "cover_qty",
		"all_requests", "forced_flat", "degraded", "max_abs_position", "final_position",
	})
	assert.Equal(t, rows[1], []string{"CU2409", "1", "0", "0", "1", "0", "0", "0", "0", "3", "0", "0", "0", "0", "3", "-3"})
	assert.Equal(t, rows[2], []string{"RB2410", "4", "2", "0", "0", "0", "2", "2", "0", "0", "0", "1", "1", "0", "5", "0"})
	assert.Equal(t, rows[3][0], "TOTAL")
	assert.Equal(t, rows[3][1], "5")
}

func TestSummarizeDayEmpty(t *testing.T) {
	s := newSummarizer(t.TempDir(), cst, session.NewClock(15, 40), time.Now)
	path, err := s.SummarizeDay(time.Date(2024, 6, 3, 0, 0, 0, 0, cst))
	assert.NoError(t, err)
	assert.Equal(t, path, "")
}

func TestShouldRunNow(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 6, 3, 15, 0, 0, 0, cst)
	s := newSummarizer(dir, cst, session.NewClock(15, 40), func() time.Time { return now })

	run, _ := s.ShouldRunNow()
	assert.False(t, run)

	now = time.Date(2024, 6, 3, 15, 45, 0, 0, cst)
	run, path := s.ShouldRunNow()
	assert.True(t, run)

	assert.NoError(t, os.MkdirAll(dir+"/eod", 0o755))
	assert.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	run, _ = s.ShouldRunNow()
	assert.False(t, run)
}
