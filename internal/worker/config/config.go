package config

import (
	"time"

	"golang-market-news/pkg/config"
)

// Worker holds queue-consumption and retry configuration.
type Worker struct {
	ProcessTimeout  time.Duration `mapstructure:"process_timeout"`
	ProviderTimeout time.Duration `mapstructure:"provider_timeout"`
	RetryInterval   time.Duration `mapstructure:"retry_interval"`
	RetryMinIdle    time.Duration `mapstructure:"retry_min_idle"`
	RetryMaxBackoff time.Duration `mapstructure:"retry_max_backoff"`
	MaxRetry        int           `mapstructure:"max_retry"`
}

// Scraper holds the configuration for the content scraping service.
type Scraper struct {
	FirecrawlBaseURL string        `mapstructure:"firecrawl_base_url"`
	FirecrawlAPIKey  string        `mapstructure:"firecrawl_api_key"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

// Gemini holds the configuration for the Gemini provider.
type Gemini struct {
	APIKey              string `mapstructure:"api_key"`
	Model               string `mapstructure:"model"`
	BaseURL             string `mapstructure:"base_url"`
	MaxRequestPerMinute int    `mapstructure:"max_request_per_minute"`
	MaxTokenPerMinute   int    `mapstructure:"max_token_per_minute"`
}

// OpenAI holds the configuration for the OpenAI provider.
type OpenAI struct {
	APIKey              string `mapstructure:"api_key"`
	Model               string `mapstructure:"model"`
	MaxRequestPerMinute int    `mapstructure:"max_request_per_minute"`
}

// Anthropic holds the configuration for the Anthropic provider.
type Anthropic struct {
	APIKey              string `mapstructure:"api_key"`
	Model               string `mapstructure:"model"`
	BaseURL             string `mapstructure:"base_url"`
	MaxRequestPerMinute int    `mapstructure:"max_request_per_minute"`
}

// Alert holds the alert-decision configuration.
type Alert struct {
	ImpactThreshold float64  `mapstructure:"impact_threshold"`
	RelevanceTopics []string `mapstructure:"relevance_topics"`
	AllowRealert    bool     `mapstructure:"allow_realert"`
}

// Config holds the full configuration for the worker service.
type Config struct {
	App       config.App      `mapstructure:"app"`
	Logger    config.Logger   `mapstructure:"logger"`
	Database  config.Database `mapstructure:"database"`
	Redis     config.Redis    `mapstructure:"redis"`
	Telegram  config.Telegram `mapstructure:"telegram"`
	Worker    Worker          `mapstructure:"worker"`
	Scraper   Scraper         `mapstructure:"scraper"`
	Gemini    Gemini          `mapstructure:"gemini"`
	OpenAI    OpenAI          `mapstructure:"openai"`
	Anthropic Anthropic       `mapstructure:"anthropic"`
	Alert     Alert           `mapstructure:"alert"`
}

// Load loads the worker configuration from the given path.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := config.Load(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
