// Command fetchbars copies bars from the configured provider into the
// Parquet store read by provider.source PARQUET.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"llm-dealer/internal/logger"
	"llm-dealer/internal/provider"
	"llm-dealer/internal/store"
	"llm-dealer/internal/types"
)

func main() {
	configPath := flag.String("config", store.Path(), "path to config.yaml")
	date := flag.String("date", "", "reference date YYYY-MM-DD (default: today)")
	periods := flag.String("periods", "D,60,1", "comma separated periods to fetch")
	out := flag.String("out", "", "parquet data dir (default: provider.data_dir)")
	flag.Parse()

	_ = godotenv.Load()
	if err := logger.Init(); err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}

	cfg, err := store.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.Provider.Source == "PARQUET" {
		log.Fatal("provider.source is PARQUET; set a source to copy from")
	}

	loc := cfg.Location()
	ref := time.Now().In(loc)
	if *date != "" {
		if ref, err = time.ParseInLocation("2006-01-02", *date, loc); err != nil {
			log.Fatalf("invalid -date: %v", err)
		}
	}

	var ps []types.Period
	for _, s := range strings.Split(*periods, ",") {
		p, err := types.ParsePeriod(s)
		if err != nil {
			log.Fatalf("invalid -periods: %v", err)
		}
		ps = append(ps, p)
	}

	dir := cfg.Provider.DataDir
	if *out != "" {
		dir = *out
	}

	src, err := provider.New(cfg)
	if err != nil {
		log.Fatalf("failed to build provider: %v", err)
	}
	dst := provider.NewParquetStore(dir, loc)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	failed := 0
	for _, symbol := range cfg.Symbols {
		for _, p := range ps {
			if ctx.Err() != nil {
				log.Fatal("interrupted")
			}
			bars, err := src.GetBarData(ctx, symbol, p, ref)
			if err != nil {
				logger.ErrorWithErr(ctx, "Fetch failed", err, "symbol", symbol, "period", p)
				failed++
				continue
			}
			if err := dst.WriteBars(ctx, symbol, p, bars); err != nil {
				logger.ErrorWithErr(ctx, "Write failed", err, "symbol", symbol, "period", p)
				failed++
				continue
			}
			logger.Info(ctx, "Bars stored", "symbol", symbol, "period", p, "count", len(bars))
		}
	}
	fmt.Printf("fetchbars: %d symbols, %d periods, %d failures, dir %s\n", len(cfg.Symbols), len(ps), failed, dir)
	if failed > 0 {
		log.Fatalf("%d fetches failed", failed)
	}
}
