package trace

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/peterldowns/testy/assert"
)

func TestDisabledWithoutOutput(t *testing.T) {
	assert.NoError(t, Init(Config{}))
	assert.False(t, Enabled())

	ctx, span := StartSpan(context.Background(), "noop")
	span.End()
	_, _, ok := GetTraceFields(ctx)
	assert.False(t, ok)
}

func TestSpansCarryRunAttributes(t *testing.T) {
	var out bytes.Buffer
	assert.NoError(t, Init(Config{
		Output:     &out,
		Attributes: map[string]string{"dealer.mode": "REPLAY", "dealer.run_id": "run-42"},
	}))
	assert.True(t, Enabled())

	ctx, span := StartSpan(context.Background(), "engine.Process")
	traceID, spanID, ok := GetTraceFields(ctx)
	assert.True(t, ok)
	assert.Equal(t, len(traceID), 32)
	assert.Equal(t, len(spanID), 16)
	span.End()

	assert.NoError(t, Shutdown(context.Background()))
	assert.False(t, Enabled())

	got := out.String()
	assert.True(t, strings.Contains(got, "engine.Process"))
	assert.True(t, strings.Contains(got, "run-42"))
	assert.True(t, strings.Contains(got, "dealer.mode"))
}
