package config

import (
	"time"

	"golang-market-news/pkg/config"
)

// NewsAPI holds the configuration for the news discovery source.
type NewsAPI struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Section string        `mapstructure:"section"`
	Items   int           `mapstructure:"items"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Discovery holds the polling and filtering configuration for the dedup gate.
type Discovery struct {
	PollCron     string        `mapstructure:"poll_cron"`
	RSSFeeds     []string      `mapstructure:"rss_feeds"`
	PaywallTags  []string      `mapstructure:"paywall_tags"`
	SeenCacheTTL time.Duration `mapstructure:"seen_cache_ttl"`
}

// Digest holds the digest scheduler configuration.
type Digest struct {
	MaxArticles int           `mapstructure:"max_articles"`
	SendEmpty   bool          `mapstructure:"send_empty"`
	Tolerance   time.Duration `mapstructure:"tolerance"`
}

// Config holds the full configuration for the scheduler service.
type Config struct {
	App       config.App      `mapstructure:"app"`
	Logger    config.Logger   `mapstructure:"logger"`
	Database  config.Database `mapstructure:"database"`
	Redis     config.Redis    `mapstructure:"redis"`
	API       config.API      `mapstructure:"api"`
	Telegram  config.Telegram `mapstructure:"telegram"`
	NewsAPI   NewsAPI         `mapstructure:"news_api"`
	Discovery Discovery       `mapstructure:"discovery"`
	Digest    Digest          `mapstructure:"digest"`
}

// Load loads the scheduler configuration from the given path.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := config.Load(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
