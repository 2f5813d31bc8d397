// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tnprice/crawler/internal/scraper"
)

// Config captures all engine configuration knobs loaded via Viper.
type Config struct {
	Browser  BrowserConfig            `mapstructure:"browser"`
	Redis    RedisConfig              `mapstructure:"redis"`
	Scrape   ScrapeConfig             `mapstructure:"scrape"`
	Metrics  MetricsConfig            `mapstructure:"metrics"`
	Logging  LoggingConfig            `mapstructure:"logging"`
	Websites map[string]WebsiteConfig `mapstructure:"websites"`
}

// BrowserConfig controls the headless browser pool.
type BrowserConfig struct {
	MaxSessions     int    `mapstructure:"max_sessions"`
	Headless        bool   `mapstructure:"headless"`
	UserAgent       string `mapstructure:"user_agent"`
	NavTimeoutSec   int    `mapstructure:"nav_timeout_seconds"`
	ReadyTimeoutSec int    `mapstructure:"ready_timeout_seconds"`
}

// RedisConfig locates the shared flag store used for job cancellation.
// An empty Addr selects the in-process gate.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ScrapeConfig sets engine-wide crawl limits.
type ScrapeConfig struct {
	MaxPagesList       int `mapstructure:"max_pages_list"`
	MaxPagesSitemap    int `mapstructure:"max_pages_sitemap"`
	DefaultRateLimitMs int `mapstructure:"default_rate_limit_ms"`
}

// MetricsConfig toggles the Prometheus listener.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// WebsiteConfig is one crawl target: its descriptor plus the active
// scraper configuration.
type WebsiteConfig struct {
	BaseURL     string                `mapstructure:"base_url"`
	RateLimitMs int                   `mapstructure:"rate_limit_ms"`
	ScraperType string                `mapstructure:"scraper_type"`
	Scraper     scraper.ScraperConfig `mapstructure:"scraper"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
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
	v.SetDefault("browser.max_sessions", 3)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.nav_timeout_seconds", 30)
	v.SetDefault("browser.ready_timeout_seconds", 15)
	v.SetDefault("redis.db", 0)
	v.SetDefault("scrape.max_pages_list", 50)
	v.SetDefault("scrape.max_pages_sitemap", 300)
	v.SetDefault("scrape.default_rate_limit_ms", 1000)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Browser.MaxSessions <= 0 {
		return fmt.Errorf("browser.max_sessions must be > 0")
	}
	if c.Browser.NavTimeoutSec <= 0 {
		return fmt.Errorf("browser.nav_timeout_seconds must be > 0")
	}
	if c.Browser.ReadyTimeoutSec <= 0 {
		return fmt.Errorf("browser.ready_timeout_seconds must be > 0")
	}
	if c.Scrape.DefaultRateLimitMs <= 0 {
		return fmt.Errorf("scrape.default_rate_limit_ms must be > 0")
	}
	if c.Metrics.Enabled && c.Metrics.Port <= 0 {
		return fmt.Errorf("metrics.port must be > 0 when metrics are enabled")
	}
	for name, site := range c.Websites {
		if err := scraper.ValidateBaseURL(site.BaseURL); err != nil {
			return fmt.Errorf("websites.%s: %w", name, err)
		}
	}
	return nil
}

// Website materializes the descriptor for a configured site, applying the
// engine-wide rate-limit default.
func (c Config) Website(name string) (scraper.Website, scraper.ScraperConfig, error) {
	site, ok := c.Websites[name]
	if !ok {
		return scraper.Website{}, scraper.ScraperConfig{}, fmt.Errorf("website %q not configured", name)
	}
	rateMs := site.RateLimitMs
	if rateMs <= 0 {
		rateMs = c.Scrape.DefaultRateLimitMs
	}
	w := scraper.Website{
		Name:        name,
		BaseURL:     site.BaseURL,
		RateLimit:   time.Duration(rateMs) * time.Millisecond,
		ScraperType: site.ScraperType,
	}
	sc := site.Scraper
	if sc.ConfigType == "" {
		sc.ConfigType = site.ScraperType
	}
	return w, sc, nil
}

// MaxPages returns the engine page cap for a config type.
func (c Config) MaxPages(configType string) int {
	if configType == scraper.ConfigTypeSitemap {
		return c.Scrape.MaxPagesSitemap
	}
	return c.Scrape.MaxPagesList
}
