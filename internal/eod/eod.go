package eod

import (
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"llm-dealer/internal/session"
	"llm-dealer/internal/tradelog"
)

// aggRow holds one symbol's decision statistics for a day.
type aggRow struct {
	Symbol        string
	Steps         int
	Counts        map[string]int
	RequestedQty  map[string]int
	AllRequests   int
	ForcedFlat    int
	Degraded      int
	MaxAbsPos     int
	FinalPosition int
	lastBar       string
}

var actionColumns = []string{"buy", "sell", "short", "cover", "hold"}

type eodSummarizer struct {
	dir   string
	loc   *time.Location
	runAt session.Clock
	now   func() time.Time
}

func eodCSVPath(dir string, t time.Time) string {
	return filepath.Join(dir, "eod", t.Format("2006-01-02")+".csv")
}

// SummarizeDay aggregates the day's recorded decisions per symbol into a CSV.
// It returns an empty path when nothing was recorded.
func (s *eodSummarizer) SummarizeDay(t time.Time) (string, error) {
	t = t.In(s.loc)
	entries, err := tradelog.ReadDay(s.dir, t)
	if err != nil {
		return "", err
	}
	aggs := aggregate(entries)
	if len(aggs) == 0 {
		return "", nil
	}

	keys := make([]string, 0, len(aggs))
	for k := range aggs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	outPath := eodCSVPath(s.dir, t)
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", err
	}
	out, err := os.Create(outPath)
	if err != nil {
		return "", err
	}
	defer out.Close()

	w := csv.NewWriter(out)
	headers := []string{"symbol", "steps"}
	for _, a := range actionColumns {
		headers = append(headers, a+"_count")
	}
	for _, a := range actionColumns[:4] {
		headers = append(headers, a+"_qty")
	}
	headers = append(headers, "all_requests", "forced_flat", "degraded", "max_abs_position", "final_position")
	if err := w.Write(headers); err != nil {
		return "", err
	}

	var totalSteps, totalForced, totalDegraded int
	for _, k := range keys {
		r := aggs[k]
		rec := []string{r.Symbol, strconv.Itoa(r.Steps)}
		for _, a := range actionColumns {
			rec = append(rec, strconv.Itoa(r.Counts[a]))
		}
		for _, a := range actionColumns[:4] {
			rec = append(rec, strconv.Itoa(r.RequestedQty[a]))
		}
		rec = append(rec,
			strconv.Itoa(r.AllRequests),
			strconv.Itoa(r.ForcedFlat),
			strconv.Itoa(r.Degraded),
			strconv.Itoa(r.MaxAbsPos),
			strconv.Itoa(r.FinalPosition),
		)
		if err := w.Write(rec); err != nil {
			return "", err
		}
		totalSteps += r.Steps
		totalForced += r.ForcedFlat
		totalDegraded += r.Degraded
	}
	total := make([]string, len(headers))
	total[0] = "TOTAL"
	total[1] = strconv.Itoa(totalSteps)
	total[len(headers)-4] = strconv.Itoa(totalForced)
	total[len(headers)-3] = strconv.Itoa(totalDegraded)
	if err := w.Write(total); err != nil {
		return "", err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return outPath, nil
}

func aggregate(entries []tradelog.Entry) map[string]*aggRow {
	aggs := map[string]*aggRow{}
	for _, e := range entries {
		row := aggs[e.Symbol]
		if row == nil {
			row = &aggRow{Symbol: e.Symbol, Counts: map[string]int{}, RequestedQty: map[string]int{}}
			aggs[e.Symbol] = row
		}
		row.Steps++
		row.Counts[e.Action]++
		switch e.Quantity {
		case "all":
			row.AllRequests++
		case "":
		default:
			if n, err := strconv.Atoi(e.Quantity); err == nil && e.Action != "hold" {
				row.RequestedQty[e.Action] += n
			}
		}
		if e.ForcedFlat {
			row.ForcedFlat++
		}
		if e.Degraded {
			row.Degraded++
		}
		if abs(e.Position) > row.MaxAbsPos {
			row.MaxAbsPos = abs(e.Position)
		}
		// Entries from parallel engines interleave; the latest bar wins.
		if e.BarTime >= row.lastBar {
			row.lastBar = e.BarTime
			row.FinalPosition = e.Position
		}
	}
	return aggs
}

func (s *eodSummarizer) SummarizeToday() (string, error) { return s.SummarizeDay(s.now()) }

// ShouldRunNow reports whether today's summary is due: the run time has
// passed and no CSV exists yet.
func (s *eodSummarizer) ShouldRunNow() (bool, string) {
	now := s.now().In(s.loc)
	outPath := eodCSVPath(s.dir, now)
	if session.ClockOf(now) >= s.runAt {
		if _, err := os.Stat(outPath); errors.Is(err, os.ErrNotExist) {
			return true, outPath
		}
	}
	return false, outPath
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
