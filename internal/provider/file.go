package provider

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"llm-dealer/internal/types"
)

// File reads bars from JSON files named <SYMBOL>_<period>.json under a data
// directory. Each file holds an array of bar objects.
type File struct {
	dir string
	loc *time.Location
}

func NewFile(dir string, loc *time.Location) *File {
	if loc == nil {
		loc = time.UTC
	}
	return &File{dir: dir, loc: loc}
}

func (f *File) path(symbol string, period types.Period) string {
	return filepath.Join(f.dir, fmt.Sprintf("%s_%s.json", strings.ToUpper(symbol), period))
}

func (f *File) GetBarData(ctx context.Context, symbol string, period types.Period, referenceDate time.Time) ([]types.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.path(symbol, period))
	if errors.Is(err, os.ErrNotExist) {
		return nil, types.ErrNoData
	}
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%s: invalid JSON", f.path(symbol, period))
	}

	root := gjson.ParseBytes(data)
	if !root.IsArray() {
		return nil, fmt.Errorf("%s: want a JSON array of bars", f.path(symbol, period))
	}

	var (
		bars   []types.Bar
		rowErr error
	)
	root.ForEach(func(key, value gjson.Result) bool {
		b, err := types.BarFromResult(value, f.loc)
		if err != nil {
			rowErr = fmt.Errorf("row %d: %w", key.Int(), err)
			return false
		}
		bars = append(bars, b)
		return true
	})
	if rowErr != nil {
		return nil, rowErr
	}
	return upTo(bars, referenceDate, f.loc), nil
}
