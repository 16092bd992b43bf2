package position

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"

	"llm-dealer/internal/session"
	"llm-dealer/internal/types"
)

var cst = time.FixedZone("CST", 8*3600)

func barAt(day, hour, minute int) time.Time {
	return time.Date(2024, 6, day, hour, minute, 0, 0, cst)
}

func newManager() *Manager {
	return NewManager("rb2410", 5, session.DefaultSchedule())
}

func apply(m *Manager, action types.Action, qty types.Quantity, t time.Time) Outcome {
	return m.Apply(context.Background(), action, qty, t, t)
}

func TestApplyBasic(t *testing.T) {
	m := newManager()
	ts := barAt(3, 10, 0)

	apply(m, types.ActionBuy, types.Count(2), ts)
	assert.Equal(t, m.Position(), 2)

	apply(m, types.ActionHold, types.Count(1), ts)
	assert.Equal(t, m.Position(), 2)

	apply(m, types.ActionShort, types.Count(3), ts)
	assert.Equal(t, m.Position(), -1)

	apply(m, types.ActionCover, types.Count(1), ts)
	assert.Equal(t, m.Position(), 0)
}

func TestNumericQuantityCappedByHeadroom(t *testing.T) {
	m := newManager()
	ts := barAt(3, 10, 0)

	out := apply(m, types.ActionBuy, types.Count(9), ts)
	assert.Equal(t, out.Executed, 5)
	assert.Equal(t, m.Position(), 5)

	// A full book has no headroom, so a numeric sell resolves to zero.
	out = apply(m, types.ActionSell, types.Count(2), ts)
	assert.Equal(t, out.Executed, 0)
	assert.Equal(t, m.Position(), 5)
}

func TestAllQuantity(t *testing.T) {
	ts := barAt(3, 10, 0)

	m := newManager()
	apply(m, types.ActionBuy, types.Count(2), ts)
	out := apply(m, types.ActionBuy, types.All(), ts)
	assert.Equal(t, out.Executed, 3)
	assert.Equal(t, m.Position(), 5)

	apply(m, types.ActionSell, types.All(), ts)
	assert.Equal(t, m.Position(), 0)

	apply(m, types.ActionShort, types.All(), ts)
	assert.Equal(t, m.Position(), -5)

	apply(m, types.ActionCover, types.All(), ts)
	assert.Equal(t, m.Position(), 0)

	m = newManager()
	apply(m, types.ActionShort, types.Count(1), ts)
	out = apply(m, types.ActionShort, types.All(), ts)
	assert.Equal(t, out.Executed, 4)
	assert.Equal(t, m.Position(), -5)
}

func TestForcedFlatInDaySession(t *testing.T) {
	m := newManager()
	apply(m, types.ActionBuy, types.Count(3), barAt(3, 14, 50))
	assert.Equal(t, m.Position(), 3)

	out := apply(m, types.ActionBuy, types.Count(1), barAt(3, 14, 55))
	assert.True(t, out.ForcedFlat)
	assert.Equal(t, m.Position(), 0)

	out = apply(m, types.ActionShort, types.All(), barAt(3, 15, 0))
	assert.True(t, out.ForcedFlat)
	assert.Equal(t, m.Position(), 0)
}

func TestNightSessionNotForcedFlat(t *testing.T) {
	m := newManager()
	apply(m, types.ActionBuy, types.Count(2), barAt(3, 22, 0))
	out := apply(m, types.ActionHold, types.Count(1), barAt(3, 23, 59))
	assert.False(t, out.ForcedFlat)
	assert.Equal(t, m.Position(), 2)
}

func TestDateChangeResets(t *testing.T) {
	m := newManager()
	apply(m, types.ActionBuy, types.Count(4), barAt(3, 22, 0))
	assert.Equal(t, m.Position(), 4)

	out := apply(m, types.ActionHold, types.Count(1), barAt(4, 0, 1))
	assert.True(t, out.DateReset)
	assert.Equal(t, out.Before, 0)
	assert.Equal(t, m.Position(), 0)
}

func TestMalformedInputLeavesPosition(t *testing.T) {
	m := newManager()
	ts := barAt(3, 10, 0)
	apply(m, types.ActionBuy, types.Count(2), ts)

	out := apply(m, types.Action("moon"), types.Count(1), ts)
	assert.True(t, out.Rejected)
	assert.Equal(t, m.Position(), 2)

	out = apply(m, types.ActionSell, types.NoQuantity(), ts)
	assert.True(t, out.Rejected)
	assert.Equal(t, m.Position(), 2)

	out = m.Apply(context.Background(), types.ActionSell, types.Count(1), time.Time{}, ts)
	assert.True(t, out.Rejected)
	assert.Equal(t, m.Position(), 2)
}

func TestPositionBoundHolds(t *testing.T) {
	actions := []types.Action{types.ActionBuy, types.ActionSell, types.ActionShort, types.ActionCover, types.ActionHold}
	rng := rand.New(rand.NewSource(42))
	m := newManager()

	for i := 0; i < 5000; i++ {
		action := actions[rng.Intn(len(actions))]
		var qty types.Quantity
		if rng.Intn(4) == 0 {
			qty = types.All()
		} else {
			qty = types.Count(1 + rng.Intn(8))
		}
		ts := barAt(1+rng.Intn(5), rng.Intn(24), rng.Intn(60))
		apply(m, action, qty, ts)

		p := m.Position()
		if p > m.MaxPosition() || p < -m.MaxPosition() {
			t.Fatalf("position %d escaped bound %d after %s %s", p, m.MaxPosition(), action, qty)
		}
		if m.schedule.ShouldForceFlat(ts) && p != 0 {
			t.Fatalf("position %d not flat after cutoff bar %s", p, ts)
		}
	}
}

func TestNegativeMaxPositionNeverTrades(t *testing.T) {
	m := NewManager("rb2410", -3, session.DefaultSchedule())
	assert.Equal(t, m.MaxPosition(), 0)

	apply(m, types.ActionBuy, types.All(), barAt(3, 10, 0))
	apply(m, types.ActionShort, types.Count(2), barAt(3, 10, 1))
	assert.Equal(t, m.Position(), 0)
}
