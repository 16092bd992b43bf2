package tradelog

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"

	"llm-dealer/internal/types"
)

var cst = time.FixedZone("CST", 8*3600)

func step(minute, pos int) types.StepResult {
	return types.StepResult{
		Symbol:   "RB2410",
		Time:     time.Date(2024, 6, 3, 10, minute, 0, 0, cst),
		Decision: types.Decision{Action: types.ActionBuy, Quantity: types.Count(1), NextMessage: "n"},
		Position: pos,
		Tradable: true,
	}
}

func TestRecordAndReadDay(t *testing.T) {
	dir := t.TempDir()
	r := NewRecorder(dir, cst)
	assert.True(t, r.RunID() != "")

	assert.NoError(t, r.Record(context.Background(), step(0, 1)))
	assert.NoError(t, r.Record(context.Background(), step(1, 2)))

	entries, err := ReadDay(dir, time.Date(2024, 6, 3, 0, 0, 0, 0, cst))
	assert.NoError(t, err)
	assert.Equal(t, len(entries), 2)
	assert.Equal(t, entries[0].RunID, r.RunID())
	assert.Equal(t, entries[1].BarTime, "2024-06-03 10:01:00")
	assert.Equal(t, entries[1].Action, "buy")
	assert.Equal(t, entries[1].Quantity, "1")
	assert.Equal(t, entries[1].Position, 2)

	none, err := ReadDay(dir, time.Date(2024, 6, 4, 0, 0, 0, 0, cst))
	assert.NoError(t, err)
	assert.Equal(t, len(none), 0)
}

func TestRecordConcurrent(t *testing.T) {
	dir := t.TempDir()
	r := NewRecorder(dir, cst)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = r.Record(context.Background(), step(i, i))
		}(i)
	}
	wg.Wait()

	entries, err := ReadDay(dir, time.Date(2024, 6, 3, 0, 0, 0, 0, cst))
	assert.NoError(t, err)
	assert.Equal(t, len(entries), 20)
}

func TestCompressOlder(t *testing.T) {
	dir := t.TempDir()
	r := NewRecorder(dir, cst)
	assert.NoError(t, r.Record(context.Background(), step(0, 1)))

	day := time.Date(2024, 6, 3, 0, 0, 0, 0, cst)
	p := DayFile(dir, day)
	old := time.Now().AddDate(0, 0, -10)
	assert.NoError(t, os.Chtimes(p, old, old))

	assert.NoError(t, r.CompressOlder(3))

	_, err := os.Stat(p)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(p + ".gz")
	assert.NoError(t, err)

	entries, err := ReadDay(dir, day)
	assert.NoError(t, err)
	assert.Equal(t, len(entries), 1)
}
