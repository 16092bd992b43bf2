package store

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"

	"llm-dealer/internal/indicators"
	"llm-dealer/internal/session"
)

type WindowConfig struct {
	Name  string `yaml:"name"`
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

type Config struct {
	Mode         string   `yaml:"mode"`
	Timezone     string   `yaml:"timezone"`
	Symbols      []string `yaml:"symbols"`
	BacktestDate string   `yaml:"backtest_date"`

	Provider struct {
		Source           string           `yaml:"source"`
		DataDir          string           `yaml:"data_dir"`
		InstrumentTokens map[string]int64 `yaml:"instrument_tokens"`
		APIKey           string           `yaml:"-"`
		AccessToken      string           `yaml:"-"`
	} `yaml:"provider"`
	History struct {
		MaxDailyBars  int `yaml:"max_daily_bars"`
		MaxHourlyBars int `yaml:"max_hourly_bars"`
		MaxMinuteBars int `yaml:"max_minute_bars"`
	} `yaml:"history"`
	Dealer struct {
		MaxPosition         int  `yaml:"max_position"`
		CompactMode         bool `yaml:"compact_mode"`
		NewsChars           int  `yaml:"news_chars"`
		ModelTimeoutSeconds int  `yaml:"model_timeout_seconds"`
	} `yaml:"dealer"`
	Sessions struct {
		Windows          []WindowConfig `yaml:"windows"`
		DayStart         string         `yaml:"day_start"`
		NightStart       string         `yaml:"night_start"`
		NightEnd         string         `yaml:"night_end"`
		ForcedFlatCutoff string         `yaml:"forced_flat_cutoff"`
		EndOfDayBar      string         `yaml:"end_of_day_bar"`
		PerInstrument    bool           `yaml:"per_instrument"`
	} `yaml:"sessions"`
	Indicators struct {
		SMAWindow  int     `yaml:"sma_window"`
		EMAWindow  int     `yaml:"ema_window"`
		RSIPeriod  int     `yaml:"rsi_period"`
		MACDFast   int     `yaml:"macd_fast"`
		MACDSlow   int     `yaml:"macd_slow"`
		MACDSignal int     `yaml:"macd_signal"`
		BBWindow   int     `yaml:"bb_window"`
		BBStdDev   float64 `yaml:"bb_stddev"`
		ATRPeriod  int     `yaml:"atr_period"`
	} `yaml:"indicators"`
	LLM struct {
		Provider    string  `yaml:"provider"`
		Model       string  `yaml:"model"`
		MaxTokens   int     `yaml:"max_tokens"`
		Temperature float32 `yaml:"temperature"`
		System      string  `yaml:"system"`
		Endpoint    string  `yaml:"endpoint"`
		APIKey      string  `yaml:"-"`
	} `yaml:"llm"`
	News struct {
		Source       string `yaml:"source"`
		URL          string `yaml:"url"`
		Selector     string `yaml:"selector"`
		CacheMinutes int    `yaml:"cache_minutes"`
		MaxHeadlines int    `yaml:"max_headlines"`
		StaticText   string `yaml:"static_text"`
	} `yaml:"news"`
	Log struct {
		Dir           string `yaml:"dir"`
		RetentionDays int    `yaml:"retention_days"`
		Traces        string `yaml:"traces"` // none, stdout or a file path
		PrettySpans   bool   `yaml:"pretty_spans"`
	} `yaml:"log"`
}

func (c *Config) Validate() error {
	if c.Mode != "REPLAY" && c.Mode != "LIVE" {
		return fmt.Errorf("invalid mode '%s': must be 'REPLAY' or 'LIVE'", c.Mode)
	}
	if len(c.Symbols) == 0 {
		return errors.New("symbols cannot be empty")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone '%s': %w", c.Timezone, err)
	}
	if c.Mode == "REPLAY" {
		if _, err := time.Parse("2006-01-02", c.BacktestDate); err != nil {
			return fmt.Errorf("backtest_date must be YYYY-MM-DD in REPLAY mode, got '%s'", c.BacktestDate)
		}
	}
	switch c.Provider.Source {
	case "STATIC", "FILE", "PARQUET":
	case "KITE":
		for _, s := range c.Symbols {
			if _, ok := c.Provider.InstrumentTokens[s]; !ok {
				return fmt.Errorf("provider.instrument_tokens has no token for '%s'", s)
			}
		}
	default:
		return fmt.Errorf("provider.source must be 'STATIC', 'FILE', 'PARQUET' or 'KITE', got '%s'", c.Provider.Source)
	}
	switch c.LLM.Provider {
	case "NOOP", "OPENAI", "CLAUDE":
	default:
		return fmt.Errorf("llm.provider must be 'NOOP', 'OPENAI' or 'CLAUDE', got '%s'", c.LLM.Provider)
	}
	switch c.News.Source {
	case "NONE", "STATIC":
	case "SCRAPER":
		if c.News.URL == "" || c.News.Selector == "" {
			return errors.New("news.url and news.selector are required for the SCRAPER source")
		}
	default:
		return fmt.Errorf("news.source must be 'NONE', 'STATIC' or 'SCRAPER', got '%s'", c.News.Source)
	}
	if c.Dealer.MaxPosition <= 0 {
		return fmt.Errorf("dealer.max_position must be positive, got %d", c.Dealer.MaxPosition)
	}
	if c.History.MaxDailyBars < 0 || c.History.MaxHourlyBars < 0 || c.History.MaxMinuteBars < 0 {
		return errors.New("history capacities cannot be negative")
	}
	sched, err := c.Schedule()
	if err != nil {
		return err
	}
	return sched.Validate()
}

// Location resolves the configured timezone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Schedule builds the global trading schedule from the sessions block.
func (c *Config) Schedule() (session.Schedule, error) {
	s := session.DefaultSchedule()
	if len(c.Sessions.Windows) > 0 {
		s.Windows = s.Windows[:0:0]
		for _, w := range c.Sessions.Windows {
			start, err := session.ParseClock(w.Start)
			if err != nil {
				return s, fmt.Errorf("sessions.windows[%s].start: %w", w.Name, err)
			}
			end, err := session.ParseClock(w.End)
			if err != nil {
				return s, fmt.Errorf("sessions.windows[%s].end: %w", w.Name, err)
			}
			s.Windows = append(s.Windows, session.Window{Name: w.Name, Start: start, End: end})
		}
	}

	clocks := []struct {
		field string
		raw   string
		dst   *session.Clock
	}{
		{"day_start", c.Sessions.DayStart, &s.DayStart},
		{"night_start", c.Sessions.NightStart, &s.NightStart},
		{"night_end", c.Sessions.NightEnd, &s.NightEnd},
		{"forced_flat_cutoff", c.Sessions.ForcedFlatCutoff, &s.Cutoff},
		{"end_of_day_bar", c.Sessions.EndOfDayBar, &s.EndOfDayBar},
	}
	for _, cl := range clocks {
		if cl.raw == "" {
			continue
		}
		v, err := session.ParseClock(cl.raw)
		if err != nil {
			return s, fmt.Errorf("sessions.%s: %w", cl.field, err)
		}
		*cl.dst = v
	}
	return s, nil
}

// ScheduleFor returns the schedule an instrument trades under. Without
// per_instrument, or for an unknown product, it is the global schedule.
func (c *Config) ScheduleFor(symbol string) (session.Schedule, error) {
	base, err := c.Schedule()
	if err != nil {
		return base, err
	}
	if !c.Sessions.PerInstrument {
		return base, nil
	}
	s, err := session.ScheduleFor(symbol, base)
	if err != nil {
		return base, nil
	}
	return s, nil
}

func (c *Config) IndicatorWindows() indicators.Windows {
	return indicators.Windows{
		SMA:        c.Indicators.SMAWindow,
		EMA:        c.Indicators.EMAWindow,
		RSI:        c.Indicators.RSIPeriod,
		MACDFast:   c.Indicators.MACDFast,
		MACDSlow:   c.Indicators.MACDSlow,
		MACDSignal: c.Indicators.MACDSignal,
		Bollinger:  c.Indicators.BBWindow,
		BollingerK: c.Indicators.BBStdDev,
		ATR:        c.Indicators.ATRPeriod,
	}
}

func (c *Config) ModelTimeout() time.Duration {
	return time.Duration(c.Dealer.ModelTimeoutSeconds) * time.Second
}

// BacktestDay is the replay date at midnight in the configured timezone.
func (c *Config) BacktestDay() (time.Time, error) {
	return time.ParseInLocation("2006-01-02", c.BacktestDate, c.Location())
}

func (c *Config) applyDefaults() {
	if c.Mode == "" {
		c.Mode = "REPLAY"
	}
	if c.Timezone == "" {
		c.Timezone = "Asia/Shanghai"
	}
	for i, s := range c.Symbols {
		c.Symbols[i] = strings.TrimSpace(s)
	}
	if c.Provider.Source == "" {
		c.Provider.Source = "STATIC"
	}
	if c.Provider.DataDir == "" {
		c.Provider.DataDir = "data"
	}
	if c.History.MaxDailyBars == 0 {
		c.History.MaxDailyBars = 30
	}
	if c.History.MaxHourlyBars == 0 {
		c.History.MaxHourlyBars = 12
	}
	if c.History.MaxMinuteBars == 0 {
		c.History.MaxMinuteBars = 60
	}
	if c.Dealer.MaxPosition == 0 {
		c.Dealer.MaxPosition = 5
	}
	if c.Dealer.NewsChars == 0 {
		c.Dealer.NewsChars = 200
	}
	if c.Dealer.ModelTimeoutSeconds == 0 {
		c.Dealer.ModelTimeoutSeconds = 30
	}

	d := indicators.DefaultWindows()
	ind := &c.Indicators
	setInt := func(v *int, def int) {
		if *v == 0 {
			*v = def
		}
	}
	setInt(&ind.SMAWindow, d.SMA)
	setInt(&ind.EMAWindow, d.EMA)
	setInt(&ind.RSIPeriod, d.RSI)
	setInt(&ind.MACDFast, d.MACDFast)
	setInt(&ind.MACDSlow, d.MACDSlow)
	setInt(&ind.MACDSignal, d.MACDSignal)
	setInt(&ind.BBWindow, d.Bollinger)
	setInt(&ind.ATRPeriod, d.ATR)
	if ind.BBStdDev == 0 {
		ind.BBStdDev = d.BollingerK
	}

	if c.LLM.Provider == "" {
		c.LLM.Provider = "NOOP"
	}
	c.LLM.Provider = strings.ToUpper(c.LLM.Provider)
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 512
	}
	if c.News.Source == "" {
		c.News.Source = "NONE"
	}
	if c.News.CacheMinutes == 0 {
		c.News.CacheMinutes = 10
	}
	if c.News.MaxHeadlines == 0 {
		c.News.MaxHeadlines = 5
	}
	if c.Log.Dir == "" {
		c.Log.Dir = "logs"
	}
	if c.Log.Traces == "" {
		c.Log.Traces = "stdout"
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("DEALER_DATA_DIR"); v != "" {
		c.Provider.DataDir = v
	}
	c.Provider.APIKey = os.Getenv("KITE_API_KEY")
	c.Provider.AccessToken = os.Getenv("KITE_ACCESS_TOKEN")
	switch c.LLM.Provider {
	case "OPENAI":
		c.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	case "CLAUDE":
		c.LLM.APIKey = os.Getenv("CLAUDE_API_KEY")
	}
}

// Path returns the config file location, honouring DEALER_CONFIG.
func Path() string {
	if p := os.Getenv("DEALER_CONFIG"); p != "" {
		return p
	}
	return "config.yaml"
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(b)
}

func ParseConfig(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	c.applyDefaults()
	c.applyEnv()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &c, nil
}
