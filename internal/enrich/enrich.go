// Package enrich resolves hyperlinks found in post bodies to the titles of
// the pages they point at, using a Colly collector per lookup.
package enrich

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// urlPattern matches absolute http(s) links embedded in free text.
var urlPattern = regexp.MustCompile(`https?://[^\s)>"'\]]+`)

// Config controls collector behavior for title lookups.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	MaxLinks  int
}

// TitleFetcher implements crawl.Enricher with a shared base collector that
// is cloned per lookup.
type TitleFetcher struct {
	cfg           Config
	baseCollector *colly.Collector
	logger        *zap.Logger
}

// New builds a TitleFetcher.
func New(cfg Config, logger *zap.Logger) *TitleFetcher {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxLinks == 0 {
		cfg.MaxLinks = 5
	}
	c := colly.NewCollector(colly.Async(false))
	return &TitleFetcher{cfg: cfg, baseCollector: c, logger: logger}
}

// ExtractURLs returns the absolute links embedded in text, oldest first,
// capped at the configured maximum.
func (f *TitleFetcher) ExtractURLs(text string) []string {
	urls := urlPattern.FindAllString(text, -1)
	if len(urls) > f.cfg.MaxLinks {
		urls = urls[:f.cfg.MaxLinks]
	}
	return urls
}

// Titles fetches each link found in text and returns the page titles that
// resolved. Failed or title-less pages are logged and skipped.
func (f *TitleFetcher) Titles(ctx context.Context, text string) []string {
	var titles []string
	for _, u := range f.ExtractURLs(text) {
		if ctx.Err() != nil {
			return titles
		}
		title, err := f.fetchTitle(u)
		if err != nil {
			f.logger.Debug("title lookup failed", zap.String("url", u), zap.Error(err))
			continue
		}
		if title != "" {
			titles = append(titles, title)
		}
	}
	return titles
}

func (f *TitleFetcher) fetchTitle(url string) (string, error) {
	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.SetRequestTimeout(f.cfg.Timeout)

	var (
		title    string
		fetchErr error
	)
	collector.OnHTML("title", func(e *colly.HTMLElement) {
		if title == "" {
			title = strings.TrimSpace(e.Text)
		}
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	if err := collector.Visit(url); err != nil {
		return "", err
	}
	collector.Wait()
	if fetchErr != nil {
		return "", fetchErr
	}
	return title, nil
}
