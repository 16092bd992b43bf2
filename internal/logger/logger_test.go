package logger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	oteltrace "go.opentelemetry.io/otel/trace"

	"llm-dealer/internal/trace"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := globalLogger
	globalLogger = slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	t.Cleanup(func() { globalLogger = prev })
	return &buf
}

func TestOperationFailureIsTracedAndLogged(t *testing.T) {
	logs := captureLogs(t)
	var spans bytes.Buffer
	assert.NoError(t, trace.Init(trace.Config{Output: &spans}))

	op := StartOperation(context.Background(), "history.Initialize", "symbol", "RB2410", "period", "D")
	assert.True(t, oteltrace.SpanFromContext(op.Context()).SpanContext().IsValid())
	op.EndWithError(errors.New("offline"), "fallback", "empty history")

	assert.NoError(t, trace.Shutdown(context.Background()))

	assert.True(t, strings.Contains(spans.String(), "history.Initialize"))
	assert.True(t, strings.Contains(spans.String(), "offline"))
	assert.True(t, strings.Contains(spans.String(), "RB2410"))

	out := logs.String()
	assert.True(t, strings.Contains(out, `"msg":"Operation failed"`))
	assert.True(t, strings.Contains(out, `"fallback":"empty history"`))
	assert.True(t, strings.Contains(out, `"trace_id"`))
}

func TestOperationWithoutTracing(t *testing.T) {
	logs := captureLogs(t)
	prev := detailedLogging
	detailedLogging = true
	t.Cleanup(func() { detailedLogging = prev })

	op := StartOperation(context.Background(), "runner.Replay", "symbol", "CU2409")
	op.End("bars", 42)

	out := logs.String()
	assert.True(t, strings.Contains(out, `"msg":"Operation completed"`))
	assert.True(t, strings.Contains(out, `"bars":42`))
	assert.False(t, strings.Contains(out, `"trace_id"`))
}

func TestToAttributesSkipsUnsupported(t *testing.T) {
	attrs := toAttributes([]any{"symbol", "RB2410", "bars", 3, "at", time.Now(), 7, "x", "ok", true, "dangling"})
	keys := make([]string, 0, len(attrs))
	for _, a := range attrs {
		keys = append(keys, string(a.Key))
	}
	assert.Equal(t, keys, []string{"symbol", "bars", "ok"})
}
