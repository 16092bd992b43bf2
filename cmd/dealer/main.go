package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/go-co-op/gocron"

	"llm-dealer/internal/interfaces"
	"llm-dealer/internal/logger"
	"llm-dealer/internal/runner"
	"llm-dealer/internal/store"
)

func main() {
	configPath := flag.String("config", store.Path(), "path to config.yaml")
	date := flag.String("date", "", "replay date YYYY-MM-DD, overrides backtest_date")
	flag.Parse()

	if err := initializeSystem(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize system: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, *date); err != nil {
		logger.ErrorWithErr(ctx, "Dealer stopped with error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, date string) error {
	cfg, err := loadConfig(ctx, configPath, date)
	if err != nil {
		return err
	}
	loc := cfg.Location()

	ref := time.Now().In(loc)
	if cfg.Mode == "REPLAY" {
		if ref, err = cfg.BacktestDay(); err != nil {
			return err
		}
	}

	rec := initializeRecorder(ctx, cfg)
	stopTracing := initializeTracing(ctx, cfg, rec.RunID())
	defer stopTracing()

	p, err := initializeProvider(ctx, cfg)
	if err != nil {
		return err
	}
	model := initializeModel(ctx, cfg)
	engines, err := initializeEngines(ctx, cfg, ref, p, model, rec)
	if err != nil {
		return err
	}
	summarizer, runAt, err := initializeEOD(cfg)
	if err != nil {
		return err
	}

	r, err := runner.New(runner.Config{
		Engines:  engines,
		Symbols:  cfg.Symbols,
		Provider: p,
		News:     initializeNews(cfg),
		Location: loc,
		Out:      os.Stdout,
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "Dealer started",
		"mode", cfg.Mode,
		"symbols", cfg.Symbols,
		"provider", cfg.Provider.Source,
		"llm", cfg.LLM.Provider,
		"run_id", rec.RunID(),
	)

	if cfg.Mode == "REPLAY" {
		return replay(ctx, r, summarizer, ref)
	}
	return live(ctx, r, summarizer, loc, runAt.String())
}

func replay(ctx context.Context, r *runner.Runner, summarizer interfaces.EodSummarizer, day time.Time) error {
	sums, err := r.Replay(ctx, day)
	if err != nil {
		return err
	}
	for _, s := range sums {
		if s.Err != nil {
			logger.ErrorWithErr(ctx, "Replay skipped instrument", s.Err, "symbol", s.Symbol)
			continue
		}
		logger.Info(ctx, "Replay summary",
			"symbol", s.Symbol,
			"bars", s.Bars,
			"tradable", s.Tradable,
			"degraded", s.Degraded,
			"forced_flat", s.ForcedFlat,
			"final_position", s.Final,
		)
	}
	path, err := summarizer.SummarizeDay(day)
	if err != nil {
		return err
	}
	if path != "" {
		logger.Info(ctx, "EOD CSV written", "path", path)
	}
	return nil
}

// live polls every minute and writes the EOD summary once a day. It returns
// when ctx is cancelled.
func live(ctx context.Context, r *runner.Runner, summarizer interfaces.EodSummarizer, loc *time.Location, runAt string) error {
	s := gocron.NewScheduler(loc)
	s.SingletonModeAll()

	if _, err := s.Cron("* * * * *").Do(func() {
		r.Poll(ctx, time.Now())
	}); err != nil {
		return fmt.Errorf("schedule poll: %w", err)
	}
	if _, err := s.Every(1).Day().At(runAt).Do(func() {
		if ok, _ := summarizer.ShouldRunNow(); !ok {
			return
		}
		if path, err := summarizer.SummarizeToday(); err == nil && path != "" {
			logger.Info(ctx, "EOD CSV written", "path", path)
		}
	}); err != nil {
		return fmt.Errorf("schedule eod: %w", err)
	}

	s.StartAsync()
	<-ctx.Done()
	logger.Info(context.Background(), "Shutting down...")
	s.Stop()

	if ok, _ := summarizer.ShouldRunNow(); ok {
		if path, err := summarizer.SummarizeToday(); err == nil && path != "" {
			logger.Info(context.Background(), "EOD CSV written", "path", path)
		}
	}
	return nil
}
