package provider

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"llm-dealer/internal/types"
)

// ParquetStore keeps bars on disk as one Parquet file per symbol and period:
//
//	<DataDir>/<SYMBOL>/<period>.parquet
type ParquetStore struct {
	DataDir string
	loc     *time.Location
}

func NewParquetStore(dataDir string, loc *time.Location) *ParquetStore {
	if loc == nil {
		loc = time.UTC
	}
	return &ParquetStore{DataDir: dataDir, loc: loc}
}

// BarRecord is the on-disk schema.
type BarRecord struct {
	Symbol       string  `parquet:"symbol"`
	Timestamp    int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Open         float64 `parquet:"open"`
	High         float64 `parquet:"high"`
	Low          float64 `parquet:"low"`
	Close        float64 `parquet:"close"`
	Volume       float64 `parquet:"volume"`
	OpenInterest float64 `parquet:"open_interest"`
}

func (s *ParquetStore) barPath(symbol string, period types.Period) string {
	return filepath.Join(s.DataDir, strings.ToUpper(symbol), string(period)+".parquet")
}

// WriteBars merges bars into the symbol's file. Rows with the same
// timestamp are replaced by the incoming ones.
func (s *ParquetStore) WriteBars(_ context.Context, symbol string, period types.Period, bars []types.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	records := make([]BarRecord, 0, len(bars))
	for _, b := range bars {
		records = append(records, BarRecord{
			Symbol:       strings.ToUpper(symbol),
			Timestamp:    b.Time.UnixMilli(),
			Open:         b.Open,
			High:         b.High,
			Low:          b.Low,
			Close:        b.Close,
			Volume:       b.Volume,
			OpenInterest: b.OpenInterest,
		})
	}

	path := s.barPath(symbol, period)
	existing, _ := readParquetFile[BarRecord](path)
	if err := writeParquetFile(path, mergeBarRecords(existing, records)); err != nil {
		return fmt.Errorf("writing %s bars for %s: %w", period, symbol, err)
	}
	return nil
}

// ReadBars returns every stored bar for the symbol and period.
func (s *ParquetStore) ReadBars(_ context.Context, symbol string, period types.Period) ([]types.Bar, error) {
	records, err := readParquetFile[BarRecord](s.barPath(symbol, period))
	if errors.Is(err, os.ErrNotExist) {
		return nil, types.ErrNoData
	}
	if err != nil {
		return nil, err
	}
	bars := make([]types.Bar, 0, len(records))
	for _, r := range records {
		bars = append(bars, types.Bar{
			Time:         time.UnixMilli(r.Timestamp).In(s.loc),
			Open:         r.Open,
			High:         r.High,
			Low:          r.Low,
			Close:        r.Close,
			Volume:       r.Volume,
			OpenInterest: r.OpenInterest,
		})
	}
	return bars, nil
}

func (s *ParquetStore) GetBarData(ctx context.Context, symbol string, period types.Period, referenceDate time.Time) ([]types.Bar, error) {
	bars, err := s.ReadBars(ctx, symbol, period)
	if err != nil {
		return nil, err
	}
	return upTo(bars, referenceDate, s.loc), nil
}

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	return parquet.ReadFile[T](path)
}

func mergeBarRecords(existing, incoming []BarRecord) []BarRecord {
	seen := make(map[int64]BarRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[r.Timestamp] = r
	}
	for _, r := range incoming {
		seen[r.Timestamp] = r
	}
	merged := make([]BarRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}
