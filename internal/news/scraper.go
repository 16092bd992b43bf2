package news

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"llm-dealer/internal/api"
	"llm-dealer/internal/logger"
	"llm-dealer/internal/trace"
)

// ScraperConfig configures headline scraping
type ScraperConfig struct {
	URL          string // may contain {symbol}
	Selector     string // CSS selector matching one headline each
	MaxHeadlines int
	CacheTTL     time.Duration
	Timeout      time.Duration
}

// Scraper pulls headlines from a news page and serves them as one line of
// text per instrument, cached for CacheTTL.
type Scraper struct {
	cfg   ScraperConfig
	cache *headlineCache
}

func NewScraper(cfg ScraperConfig) *Scraper {
	if cfg.MaxHeadlines <= 0 {
		cfg.MaxHeadlines = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &Scraper{cfg: cfg, cache: newHeadlineCache(cfg.CacheTTL)}
}

// Latest returns the newest headlines joined by "; ". On a failed scrape the
// last cached text is returned alongside the error.
func (s *Scraper) Latest(ctx context.Context, symbol string) (string, error) {
	pageURL := strings.ReplaceAll(s.cfg.URL, "{symbol}", url.QueryEscape(strings.ToLower(symbol)))

	if text, ok := s.cache.get(pageURL); ok {
		return text, nil
	}

	ctx, span := trace.StartSpan(ctx, "news.Scrape")
	defer span.End()

	headlines, err := s.scrape(ctx, pageURL)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to scrape news", err, "symbol", symbol, "url", pageURL)
		stale, _ := s.cache.peek(pageURL)
		return stale, err
	}

	text := strings.Join(headlines, "; ")
	s.cache.set(pageURL, text)
	logger.Info(ctx, "News scraping completed", "symbol", symbol, "headlines", len(headlines))
	return text, nil
}

func (s *Scraper) scrape(ctx context.Context, pageURL string) ([]string, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("bad news url %q: %w", pageURL, err)
	}

	c := colly.NewCollector(
		colly.AllowedDomains(u.Hostname()),
		colly.MaxDepth(1),
		colly.StdlibContext(ctx),
	)
	c.SetRequestTimeout(s.cfg.Timeout)

	c.OnRequest(func(r *colly.Request) {
		for k, v := range api.BrowserHeaders() {
			r.Headers.Set(k, v)
		}
	})

	var (
		mu        sync.Mutex
		headlines []string
		seen      = make(map[string]bool)
		visitErr  error
	)
	c.OnHTML("html", func(e *colly.HTMLElement) {
		e.DOM.Find(s.cfg.Selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			title := strings.Join(strings.Fields(sel.Text()), " ")
			mu.Lock()
			defer mu.Unlock()
			if title != "" && !seen[title] {
				seen[title] = true
				headlines = append(headlines, title)
			}
			return len(headlines) < s.cfg.MaxHeadlines
		})
	})
	c.OnError(func(r *colly.Response, err error) {
		visitErr = fmt.Errorf("status %d: %w", r.StatusCode, err)
	})

	if err := c.Visit(pageURL); err != nil {
		return nil, fmt.Errorf("failed to visit %s: %w", pageURL, err)
	}
	c.Wait()
	if visitErr != nil {
		return nil, visitErr
	}
	return headlines, nil
}

// headlineCache stores scraped text per page URL
type headlineCache struct {
	mu   sync.RWMutex
	data map[string]cacheEntry
	ttl  time.Duration
	now  func() time.Time
}

type cacheEntry struct {
	text      string
	timestamp time.Time
}

func newHeadlineCache(ttl time.Duration) *headlineCache {
	return &headlineCache{data: make(map[string]cacheEntry), ttl: ttl, now: time.Now}
}

// get returns a cached entry that has not expired
func (c *headlineCache) get(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.data[key]
	if !exists || c.now().Sub(entry.timestamp) > c.ttl {
		return "", false
	}
	return entry.text, true
}

// peek returns an entry regardless of age
func (c *headlineCache) peek(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.data[key]
	return entry.text, exists
}

func (c *headlineCache) set(key, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = cacheEntry{text: text, timestamp: c.now()}
}
