package eodobs

import (
	"context"
	"time"

	"llm-dealer/internal/interfaces"
	"llm-dealer/internal/logger"
	"llm-dealer/internal/trace"
)

type observableEodSummarizer struct {
	summarizer interfaces.EodSummarizer
}

var _ interfaces.EodSummarizer = (*observableEodSummarizer)(nil)

func Wrap(summarizer interfaces.EodSummarizer) interfaces.EodSummarizer {
	return &observableEodSummarizer{summarizer: summarizer}
}

func (oes *observableEodSummarizer) SummarizeDay(t time.Time) (string, error) {
	return oes.observe("eod.SummarizeDay", t.Format("2006-01-02"), func() (string, error) {
		return oes.summarizer.SummarizeDay(t)
	})
}

func (oes *observableEodSummarizer) SummarizeToday() (string, error) {
	return oes.observe("eod.SummarizeToday", "today", oes.summarizer.SummarizeToday)
}

// observe runs one summary under a span. Skip depth 2 attributes the log
// lines to the caller of the exported method.
func (oes *observableEodSummarizer) observe(op, date string, run func() (string, error)) (string, error) {
	ctx, span := trace.StartSpan(context.Background(), op)
	defer span.End()

	logger.InfoSkip(ctx, 2, "Starting decision summary", "date", date)

	csvPath, err := run()
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 2, "Decision summary failed", err, "date", date)
		return "", err
	}
	if csvPath == "" {
		logger.InfoSkip(ctx, 2, "No recorded decisions to summarize", "date", date)
		return "", nil
	}

	logger.InfoSkip(ctx, 2, "Decision summary written", "date", date, "csv_path", csvPath)
	return csvPath, nil
}

func (oes *observableEodSummarizer) ShouldRunNow() (bool, string) {
	ctx, span := trace.StartSpan(context.Background(), "eod.ShouldRunNow")
	defer span.End()

	shouldRun, csvPath := oes.summarizer.ShouldRunNow()
	logger.DebugSkip(ctx, 1, "EOD check completed", "should_run", shouldRun, "csv_path", csvPath)
	return shouldRun, csvPath
}
