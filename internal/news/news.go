package news

import (
	"context"
	"strings"
	"time"

	"llm-dealer/internal/interfaces"
	"llm-dealer/internal/store"
)

// New returns the news source named by news.source.
func New(cfg *store.Config) interfaces.NewsSource {
	switch cfg.News.Source {
	case "STATIC":
		return NewStatic(cfg.News.StaticText)
	case "SCRAPER":
		return NewScraper(ScraperConfig{
			URL:          cfg.News.URL,
			Selector:     cfg.News.Selector,
			MaxHeadlines: cfg.News.MaxHeadlines,
			CacheTTL:     time.Duration(cfg.News.CacheMinutes) * time.Minute,
			Timeout:      20 * time.Second,
		})
	default:
		return None{}
	}
}

// None never has news.
type None struct{}

func (None) Latest(context.Context, string) (string, error) { return "", nil }

// Static serves a fixed text, with {symbol} replaced by the instrument.
type Static struct {
	text string
}

func NewStatic(text string) *Static {
	return &Static{text: text}
}

func (s *Static) Latest(_ context.Context, symbol string) (string, error) {
	return strings.ReplaceAll(s.text, "{symbol}", symbol), nil
}
