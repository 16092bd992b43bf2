package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"llm-dealer/internal/engine"
	"llm-dealer/internal/engine/engineobs"
	"llm-dealer/internal/eod"
	"llm-dealer/internal/eod/eodobs"
	"llm-dealer/internal/interfaces"
	"llm-dealer/internal/llm"
	"llm-dealer/internal/logger"
	"llm-dealer/internal/news"
	"llm-dealer/internal/provider"
	"llm-dealer/internal/session"
	"llm-dealer/internal/store"
	"llm-dealer/internal/trace"
	"llm-dealer/internal/tradelog"
)

// eodDelay is how long after the end-of-day bar the CSV summary is written.
const eodDelay = 40 * time.Minute

// initializeSystem loads .env and sets up logging.
func initializeSystem() error {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// initializeTracing exports spans to the target named by log.traces, tagged
// with the run. The returned func flushes spans and closes the file.
func initializeTracing(ctx context.Context, cfg *store.Config, runID string) func() {
	var (
		out  io.Writer
		file *os.File
	)
	switch cfg.Log.Traces {
	case "none":
	case "stdout":
		out = os.Stdout
	default:
		if err := os.MkdirAll(filepath.Dir(cfg.Log.Traces), 0o755); err != nil {
			logger.Warn(ctx, "Tracing disabled", "error", err)
			break
		}
		f, err := os.OpenFile(cfg.Log.Traces, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			logger.Warn(ctx, "Tracing disabled", "error", err)
			break
		}
		out, file = f, f
	}

	err := trace.Init(trace.Config{
		Output: out,
		Pretty: cfg.Log.PrettySpans,
		Attributes: map[string]string{
			"dealer.mode":     cfg.Mode,
			"dealer.run_id":   runID,
			"dealer.symbols":  strings.Join(cfg.Symbols, ","),
			"dealer.provider": cfg.Provider.Source,
		},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}

	return func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := trace.Shutdown(sctx); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to flush traces: %v\n", err)
		}
		if file != nil {
			file.Close()
		}
	}
}

func loadConfig(ctx context.Context, path, date string) (*store.Config, error) {
	cfg, err := store.LoadConfig(path)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", path)
		return nil, err
	}
	if date != "" {
		cfg.BacktestDate = date
		if _, err := cfg.BacktestDay(); err != nil {
			return nil, fmt.Errorf("invalid -date %q: %w", date, err)
		}
	}
	return cfg, nil
}

// initializeRecorder opens the decision log and gzips days past retention.
func initializeRecorder(ctx context.Context, cfg *store.Config) *tradelog.Recorder {
	rec := tradelog.NewRecorder(cfg.Log.Dir, cfg.Location())
	if cfg.Log.RetentionDays > 0 {
		if err := rec.CompressOlder(cfg.Log.RetentionDays); err != nil {
			logger.Warn(ctx, "Failed to compress old logs", "error", err)
		}
	}
	logger.Info(ctx, "Decision log ready", "dir", rec.Dir(), "run_id", rec.RunID())
	return rec
}

func initializeProvider(ctx context.Context, cfg *store.Config) (interfaces.DataProvider, error) {
	p, err := provider.New(cfg)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to build data provider", err, "source", cfg.Provider.Source)
		return nil, err
	}
	if cfg.Provider.Source == "STATIC" {
		logger.Info(ctx, "Using STATIC generated bars")
	} else {
		logger.Info(ctx, "Using bar source", "source", cfg.Provider.Source)
	}
	return p, nil
}

func initializeModel(ctx context.Context, cfg *store.Config) interfaces.Model {
	if cfg.LLM.Provider == "NOOP" || cfg.LLM.APIKey == "" {
		logger.Warn(ctx, "No LLM provider configured - using Noop model (always HOLD)", "provider", cfg.LLM.Provider)
	}
	return llm.New(cfg)
}

// initializeEngines builds one observed engine per instrument. Each engine
// loads its history as of the reference date.
func initializeEngines(ctx context.Context, cfg *store.Config, ref time.Time, p interfaces.DataProvider, model interfaces.Model, rec interfaces.Recorder) (map[string]interfaces.Processor, error) {
	engines := make(map[string]interfaces.Processor, len(cfg.Symbols))
	for _, symbol := range cfg.Symbols {
		sched, err := cfg.ScheduleFor(symbol)
		if err != nil {
			return nil, err
		}
		ec := engine.DefaultConfig(symbol)
		ec.Location = cfg.Location()
		ec.Schedule = sched
		ec.ReferenceDate = ref
		ec.MaxDaily = cfg.History.MaxDailyBars
		ec.MaxHourly = cfg.History.MaxHourlyBars
		ec.MaxMinute = cfg.History.MaxMinuteBars
		ec.MaxPosition = cfg.Dealer.MaxPosition
		ec.Compact = cfg.Dealer.CompactMode
		ec.NewsChars = cfg.Dealer.NewsChars
		ec.ModelTimeout = cfg.ModelTimeout()
		ec.Indicators = cfg.IndicatorWindows()

		engines[symbol] = engineobs.Wrap(engine.New(ctx, ec, p, model, rec))
	}
	return engines, nil
}

func initializeNews(cfg *store.Config) interfaces.NewsSource {
	return news.New(cfg)
}

func initializeEOD(cfg *store.Config) (interfaces.EodSummarizer, session.Clock, error) {
	sched, err := cfg.Schedule()
	if err != nil {
		return nil, 0, err
	}
	runAt := sched.EndOfDayBar + session.Clock(eodDelay/time.Minute)
	if last := session.NewClock(23, 59); runAt > last {
		runAt = last
	}
	return eodobs.Wrap(eod.NewSummarizer(cfg.Log.Dir, cfg.Location(), runAt)), runAt, nil
}
