package interfaces

import "time"

// EodSummarizer turns a day's recorded decisions into a per-symbol CSV report.
type EodSummarizer interface {
	// SummarizeDay writes the report for the trading day containing day.
	SummarizeDay(day time.Time) (reportPath string, err error)
	// SummarizeToday is SummarizeDay for the summarizer's current date.
	SummarizeToday() (reportPath string, err error)
	// ShouldRunNow is true once the configured run time has passed and no
	// report exists yet for today. reportPath is where it would be written.
	ShouldRunNow() (due bool, reportPath string)
}
