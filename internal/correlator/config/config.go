package config

import (
	"fmt"
	"strings"
	"time"

	"golang-stock-sentiment/pkg/config"
	"golang-stock-sentiment/pkg/utils"
)

// Pipeline holds the tuning knobs of the correlation pipeline.
type Pipeline struct {
	MaxConcurrentRequests int           `mapstructure:"max_concurrent_requests"`
	RequestsPerMinute     int           `mapstructure:"requests_per_minute"`
	MaxRetries            int           `mapstructure:"max_retries"`
	RetryBaseDelay        time.Duration `mapstructure:"retry_base_delay"`
	ScoreTimeout          time.Duration `mapstructure:"score_timeout"`
	ScoreBody             bool          `mapstructure:"score_body"`
	MaxBodyChars          int           `mapstructure:"max_body_chars"`
	MarketCloseCutoff     string        `mapstructure:"market_close_cutoff"`
	MarketTimezone        string        `mapstructure:"market_timezone"`
	MaxLag                int           `mapstructure:"max_lag"`
	RunTimeout            time.Duration `mapstructure:"run_timeout"`
}

// Cache holds ResultCache configuration.
type Cache struct {
	Driver     string `mapstructure:"driver"`
	TTLSeconds int    `mapstructure:"ttl_seconds"`
	KeyPrefix  string `mapstructure:"key_prefix"`
}

// TTL returns the configured time-to-live.
func (c Cache) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// News holds configuration of the news sources.
type News struct {
	RSSBaseURL          string   `mapstructure:"rss_base_url"`
	RSSQueryParams      string   `mapstructure:"rss_query_params"`
	YahooBaseURL        string   `mapstructure:"yahoo_base_url"`
	BackupEnabled       bool     `mapstructure:"backup_enabled"`
	FetchBody           bool     `mapstructure:"fetch_body"`
	MaxArticles         int      `mapstructure:"max_articles"`
	UserAgent           string   `mapstructure:"user_agent"`
	MaxRequestPerMinute int      `mapstructure:"max_request_per_minute"`
	BlackListedDomains  []string `mapstructure:"blacklisted_domains"`
}

// YahooFinance holds the configuration for the Yahoo Finance chart API.
type YahooFinance struct {
	BaseURL             string `mapstructure:"base_url"`
	MaxRequestPerMinute int    `mapstructure:"max_request_per_minute"`
}

// Sentiment holds the configuration of the sentiment model backend.
type Sentiment struct {
	Provider     string  `mapstructure:"provider"`
	APIKey       string  `mapstructure:"api_key"`
	Model        string  `mapstructure:"model"`
	BaseURL      string  `mapstructure:"base_url"`
	ModelVersion string  `mapstructure:"model_version"`
	Temperature  float32 `mapstructure:"temperature"`
}

// Telegram holds configuration for the Telegram notifier.
type Telegram struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   int64  `mapstructure:"chat_id"`
}

// Warmup holds configuration of the scheduled cache warmup.
type Warmup struct {
	Enabled      bool     `mapstructure:"enabled"`
	Cron         string   `mapstructure:"cron"`
	Tickers      []string `mapstructure:"tickers"`
	LookbackDays int      `mapstructure:"lookback_days"`
}

// RunLog holds configuration of the run audit log.
type RunLog struct {
	Enabled bool `mapstructure:"enabled"`
}

// Config holds the full configuration for the correlation service.
type Config struct {
	App          config.App      `mapstructure:"app"`
	Logger       config.Logger   `mapstructure:"logger"`
	Database     config.Database `mapstructure:"database"`
	Redis        config.Redis    `mapstructure:"redis"`
	API          config.API      `mapstructure:"api"`
	Pipeline     Pipeline        `mapstructure:"pipeline"`
	Cache        Cache           `mapstructure:"cache"`
	News         News            `mapstructure:"news"`
	YahooFinance YahooFinance    `mapstructure:"yahoo_finance"`
	Sentiment    Sentiment       `mapstructure:"sentiment"`
	Telegram     Telegram        `mapstructure:"telegram"`
	Warmup       Warmup          `mapstructure:"warmup"`
	RunLog       RunLog          `mapstructure:"run_log"`
}

func registerDefaults() {
	config.Default("app.name", "correlation-service")
	config.Default("logger.level", "info")
	config.Default("logger.encoding", "json")
	config.Default("api.port", 8080)

	config.Default("pipeline.max_concurrent_requests", 5)
	config.Default("pipeline.requests_per_minute", 60)
	config.Default("pipeline.max_retries", 3)
	config.Default("pipeline.retry_base_delay", "1s")
	config.Default("pipeline.score_timeout", "30s")
	config.Default("pipeline.max_body_chars", 1000)
	config.Default("pipeline.market_close_cutoff", "16:00")
	config.Default("pipeline.market_timezone", utils.DefaultMarketTimezone)
	config.Default("pipeline.max_lag", 2)
	config.Default("pipeline.run_timeout", "5m")

	config.Default("cache.driver", "memory")
	config.Default("cache.ttl_seconds", 3600)
	config.Default("cache.key_prefix", "correlation")

	config.Default("news.rss_base_url", "https://news.google.com/rss")
	config.Default("news.rss_query_params", "hl=en-US&gl=US&ceid=US:en")
	config.Default("news.yahoo_base_url", "https://finance.yahoo.com")
	config.Default("news.backup_enabled", true)
	config.Default("news.max_articles", 100)
	config.Default("news.max_request_per_minute", 30)
	config.Default("news.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")

	config.Default("yahoo_finance.base_url", "https://query1.finance.yahoo.com")
	config.Default("yahoo_finance.max_request_per_minute", 60)

	config.Default("sentiment.provider", "gemini")
	config.Default("sentiment.model", "gemini-2.0-flash")
	config.Default("sentiment.api_key", "")
	config.Default("sentiment.temperature", 0.1)

	config.Default("warmup.cron", "30 16 * * MON-FRI")
	config.Default("warmup.lookback_days", 30)
	config.Default("warmup.tickers", []string{"AAPL", "MSFT", "GOOGL", "AMZN", "TSLA", "NVDA", "META"})

	config.BindEnv("sentiment.api_key", "SENTIMENT_API_KEY", "MODEL_API_KEY")
	config.BindEnv("pipeline.max_concurrent_requests", "PIPELINE_MAX_CONCURRENT_REQUESTS", "MAX_CONCURRENT_REQUESTS")
	config.BindEnv("cache.ttl_seconds", "CACHE_TTL_SECONDS")
	config.BindEnv("pipeline.market_close_cutoff", "PIPELINE_MARKET_CLOSE_CUTOFF", "MARKET_CLOSE_CUTOFF")
}

// Load loads the correlation service configuration from the given path.
func Load(path string) (*Config, error) {
	registerDefaults()

	var cfg Config
	if err := config.Load(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	if c.Pipeline.MaxConcurrentRequests <= 0 {
		return fmt.Errorf("pipeline.max_concurrent_requests must be positive, got %d", c.Pipeline.MaxConcurrentRequests)
	}
	if c.Pipeline.MaxRetries < 0 {
		return fmt.Errorf("pipeline.max_retries must not be negative, got %d", c.Pipeline.MaxRetries)
	}
	if _, err := utils.ParseClock(c.Pipeline.MarketCloseCutoff); err != nil {
		return fmt.Errorf("pipeline.market_close_cutoff: %w", err)
	}
	if _, err := utils.LoadMarketLocation(c.Pipeline.MarketTimezone); err != nil {
		return fmt.Errorf("pipeline.market_timezone: %w", err)
	}
	if c.Cache.TTLSeconds < 0 {
		return fmt.Errorf("cache.ttl_seconds must not be negative, got %d", c.Cache.TTLSeconds)
	}
	switch c.Cache.Driver {
	case "memory", "redis":
	default:
		return fmt.Errorf("cache.driver must be memory or redis, got %q", c.Cache.Driver)
	}
	c.Sentiment.Provider = strings.ToLower(c.Sentiment.Provider)
	switch c.Sentiment.Provider {
	case "gemini", "http":
	default:
		return fmt.Errorf("sentiment.provider must be gemini or http, got %q", c.Sentiment.Provider)
	}
	if c.Sentiment.ModelVersion == "" {
		c.Sentiment.ModelVersion = c.Sentiment.Provider + "/" + c.Sentiment.Model
	}
	return nil
}
