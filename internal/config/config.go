// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Crawler CrawlerConfig `mapstructure:"crawler"`
	Feed    FeedConfig    `mapstructure:"feed"`
	Search  SearchConfig  `mapstructure:"search"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// CrawlerConfig governs the crawl coordinator and its workers. Every numeric
// knob here is a default, not a contract; operators tune them per run.
type CrawlerConfig struct {
	RequestsPerMinute int      `mapstructure:"requests_per_minute"`
	MaxWorkers        int      `mapstructure:"max_workers"`
	BatchSize         int      `mapstructure:"batch_size"`
	Streams           []string `mapstructure:"streams"`
	CourtesyEvery     int      `mapstructure:"courtesy_every"`
	CourtesyPauseSec  int      `mapstructure:"courtesy_pause_seconds"`
	StreamPauseSec    int      `mapstructure:"stream_pause_seconds"`
	ValidateAttempts  int      `mapstructure:"validate_attempts"`
	ValidateBackoffMs int      `mapstructure:"validate_backoff_ms"`
	MoreCommentPages  int      `mapstructure:"more_comment_pages"`
	EnrichTitles      bool     `mapstructure:"enrich_titles"`
}

// FeedConfig configures the remote source HTTP client.
type FeedConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	UserAgent      string `mapstructure:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// SearchConfig controls the search HTTP server.
type SearchConfig struct {
	Port int `mapstructure:"port"`
	TopK int `mapstructure:"top_k"`
}

// LoggingConfig selects the zap output mode and minimum level.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("REDSIFT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawler.requests_per_minute", 60)
	v.SetDefault("crawler.max_workers", 5)
	v.SetDefault("crawler.batch_size", 10000)
	v.SetDefault("crawler.streams", []string{"hot", "top", "new", "rising"})
	v.SetDefault("crawler.courtesy_every", 100)
	v.SetDefault("crawler.courtesy_pause_seconds", 1)
	v.SetDefault("crawler.stream_pause_seconds", 3)
	v.SetDefault("crawler.validate_attempts", 3)
	v.SetDefault("crawler.validate_backoff_ms", 500)
	v.SetDefault("crawler.more_comment_pages", 50)
	v.SetDefault("crawler.enrich_titles", false)
	v.SetDefault("feed.base_url", "https://www.reddit.com")
	v.SetDefault("feed.user_agent", "redsift/1.0 (+https://github.com/mfeller/redsift)")
	v.SetDefault("feed.timeout_seconds", 15)
	v.SetDefault("search.port", 8080)
	v.SetDefault("search.top_k", 10)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Crawler.RequestsPerMinute <= 0 {
		return fmt.Errorf("crawler.requests_per_minute must be > 0")
	}
	if c.Crawler.MaxWorkers <= 0 {
		return fmt.Errorf("crawler.max_workers must be > 0")
	}
	if c.Crawler.BatchSize <= 0 {
		return fmt.Errorf("crawler.batch_size must be > 0")
	}
	if len(c.Crawler.Streams) == 0 {
		return fmt.Errorf("crawler.streams must not be empty")
	}
	if c.Crawler.ValidateAttempts <= 0 {
		return fmt.Errorf("crawler.validate_attempts must be > 0")
	}
	if c.Feed.BaseURL == "" {
		return fmt.Errorf("feed.base_url must be set")
	}
	if c.Feed.TimeoutSeconds <= 0 {
		return fmt.Errorf("feed.timeout_seconds must be > 0")
	}
	if c.Search.Port <= 0 {
		return fmt.Errorf("search.port must be > 0")
	}
	if c.Search.TopK <= 0 {
		return fmt.Errorf("search.top_k must be > 0")
	}
	return nil
}

// CourtesyPause converts the configured pause into a duration.
func (c CrawlerConfig) CourtesyPause() time.Duration {
	return time.Duration(c.CourtesyPauseSec) * time.Second
}

// StreamPause converts the inter-stream delay into a duration.
func (c CrawlerConfig) StreamPause() time.Duration {
	return time.Duration(c.StreamPauseSec) * time.Second
}

// ValidateBackoff returns the base delay for validation retries.
func (c CrawlerConfig) ValidateBackoff() time.Duration {
	return time.Duration(c.ValidateBackoffMs) * time.Millisecond
}

// Timeout returns the HTTP client timeout for feed requests.
func (c FeedConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
