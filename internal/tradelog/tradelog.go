package tradelog

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"llm-dealer/internal/interfaces"
	"llm-dealer/internal/types"
)

// Entry is one decided bar as written to the daily JSONL file.
type Entry struct {
	RunID       string `json:"run_id"`
	LoggedAt    string `json:"logged_at"`
	BarTime     string `json:"bar_time"`
	Symbol      string `json:"symbol"`
	Action      string `json:"action"`
	Quantity    string `json:"quantity"`
	NextMessage string `json:"next_message,omitempty"`
	Position    int    `json:"position"`
	ForcedFlat  bool   `json:"forced_flat,omitempty"`
	Degraded    bool   `json:"degraded,omitempty"`
}

// Recorder appends step results to <dir>/decisions/<bar date>.jsonl.
// It is safe for concurrent use by several engines.
type Recorder struct {
	mu    sync.Mutex
	dir   string
	runID string
	loc   *time.Location
	now   func() time.Time
}

var _ interfaces.Recorder = (*Recorder)(nil)

func NewRecorder(dir string, loc *time.Location) *Recorder {
	if loc == nil {
		loc = time.UTC
	}
	return &Recorder{dir: dir, runID: uuid.NewString(), loc: loc, now: time.Now}
}

func (r *Recorder) RunID() string { return r.runID }

func (r *Recorder) Dir() string { return r.dir }

// DayFile is the decisions file for the calendar date of t.
func DayFile(dir string, t time.Time) string {
	return filepath.Join(dir, "decisions", t.Format("2006-01-02")+".jsonl")
}

func (r *Recorder) Record(_ context.Context, res types.StepResult) error {
	barTime := res.Time.In(r.loc)
	e := Entry{
		RunID:       r.runID,
		LoggedAt:    r.now().In(r.loc).Format("2006-01-02 15:04:05"),
		BarTime:     barTime.Format("2006-01-02 15:04:05"),
		Symbol:      res.Symbol,
		Action:      string(res.Decision.Action),
		Quantity:    res.Decision.Quantity.String(),
		NextMessage: res.Decision.NextMessage,
		Position:    res.Position,
		ForcedFlat:  res.ForcedFlat,
		Degraded:    res.Degraded,
	}
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	p := DayFile(r.dir, barTime)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = fmt.Fprintln(f, string(b))
	return err
}

// ReadDay loads the entries recorded for the calendar date of t. A
// compressed file is read when the plain one is gone. A missing day yields
// no entries and no error.
func ReadDay(dir string, t time.Time) ([]Entry, error) {
	p := DayFile(dir, t)
	var rd io.Reader
	f, err := os.Open(p)
	switch {
	case err == nil:
		defer f.Close()
		rd = f
	case errors.Is(err, os.ErrNotExist):
		gf, gerr := os.Open(p + ".gz")
		if errors.Is(gerr, os.ErrNotExist) {
			return nil, nil
		}
		if gerr != nil {
			return nil, gerr
		}
		defer gf.Close()
		gz, gerr := gzip.NewReader(gf)
		if gerr != nil {
			return nil, gerr
		}
		defer gz.Close()
		rd = gz
	default:
		return nil, err
	}

	var entries []Entry
	sc := bufio.NewScanner(rd)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries, sc.Err()
}

// CompressOlder gzips decision files last modified more than retentionDays
// ago. A non-positive retention keeps everything uncompressed.
func (r *Recorder) CompressOlder(retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().AddDate(0, 0, -retentionDays)
	root := filepath.Join(r.dir, "decisions")
	return filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() || !strings.HasSuffix(p, ".jsonl") {
			return nil
		}
		info, er := d.Info()
		if er != nil || !info.ModTime().Before(cutoff) {
			return nil
		}
		gz := p + ".gz"
		if _, e2 := os.Stat(gz); e2 == nil {
			_ = os.Remove(p)
			return nil
		}
		if err := gzipFile(p, gz); err != nil {
			_ = os.Remove(gz)
			return nil
		}
		_ = os.Remove(p)
		return nil
	})
}

func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	gw := gzip.NewWriter(out)
	if _, err := io.Copy(gw, in); err != nil {
		_ = gw.Close()
		_ = out.Close()
		return err
	}
	if err := gw.Close(); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
