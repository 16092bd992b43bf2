package eod

import (
	"time"

	"llm-dealer/internal/interfaces"
	"llm-dealer/internal/session"
)

// NewSummarizer summarizes the decision logs under dir. runAt is the local
// time after which the day's summary becomes due.
func NewSummarizer(dir string, loc *time.Location, runAt session.Clock) interfaces.EodSummarizer {
	return newSummarizer(dir, loc, runAt, time.Now)
}

func newSummarizer(dir string, loc *time.Location, runAt session.Clock, now func() time.Time) *eodSummarizer {
	if loc == nil {
		loc = time.UTC
	}
	return &eodSummarizer{dir: dir, loc: loc, runAt: runAt, now: now}
}
