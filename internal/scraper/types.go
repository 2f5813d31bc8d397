// Package scraper defines core types shared across the crawl engine.
package scraper

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ErrorKind classifies a ScrapeError for reporting and metrics.
type ErrorKind string

// Error kinds recorded in a Result.
const (
	ErrorKindTimeout        ErrorKind = "timeout"
	ErrorKindExtraction     ErrorKind = "extraction"
	ErrorKindNetwork        ErrorKind = "network"
	ErrorKindConfig         ErrorKind = "config"
	ErrorKindInfrastructure ErrorKind = "infrastructure"
)

// Error records a single failure observed during a crawl job.
type Error struct {
	Kind      ErrorKind `json:"kind"`
	PageOrURL string    `json:"page_or_url"`
	Message   string    `json:"message"`
}

// Item is a single product extracted from a page. Instances are built once
// and never mutated afterwards; they are owned by the Result that holds them.
type Item struct {
	ExternalID    string            `json:"external_id"`
	Name          string            `json:"name"`
	URL           string            `json:"url"`
	Price         decimal.Decimal   `json:"price"`
	OriginalPrice *decimal.Decimal  `json:"original_price,omitempty"`
	ImageURL      string            `json:"image_url,omitempty"`
	Description   string            `json:"description,omitempty"`
	Brand         string            `json:"brand,omitempty"`
	SKU           string            `json:"sku,omitempty"`
	EANCode       string            `json:"ean_code,omitempty"`
	InStock       bool              `json:"in_stock"`
	Category      string            `json:"category,omitempty"`
	Extra         map[string]string `json:"extra,omitempty"`
}

// Result aggregates everything a single crawl job produced. It is built
// incrementally while the job runs and immutable once returned.
//
// Invariants: Success implies Errors is empty; Cancelled implies the job
// stopped before exhausting its work and PagesVisited counts only pages
// that completed.
type Result struct {
	Items        []Item  `json:"items"`
	PagesVisited int     `json:"pages_visited"`
	Errors       []Error `json:"errors"`
	Cancelled    bool    `json:"cancelled"`
	Success      bool    `json:"success"`
}

// AddError appends an error to the result.
func (r *Result) AddError(kind ErrorKind, pageOrURL, message string) {
	r.Errors = append(r.Errors, Error{Kind: kind, PageOrURL: pageOrURL, Message: message})
}

// Website describes the site a job crawls, as resolved by the caller.
type Website struct {
	Name          string
	BaseURL       string
	RateLimit     time.Duration
	ScraperType   string
	LastScrapedAt *time.Time
}

// SelectorConfig maps logical product fields to selector strings. A selector
// may carry an attribute-extraction suffix ("a.title::attr(href)"); see
// ParseSelector. Empty fields are simply not extracted. Name, URL and Price
// are the mandatory triad: an item missing any of them is discarded.
type SelectorConfig struct {
	Container     string `mapstructure:"container" json:"container"`
	Item          string `mapstructure:"item" json:"item"`
	Name          string `mapstructure:"name" json:"name"`
	Price         string `mapstructure:"price" json:"price"`
	OriginalPrice string `mapstructure:"original_price" json:"original_price"`
	Image         string `mapstructure:"image" json:"image"`
	URL           string `mapstructure:"url" json:"url"`
	InStock       string `mapstructure:"in_stock" json:"in_stock"`
	Brand         string `mapstructure:"brand" json:"brand"`
	SKU           string `mapstructure:"sku" json:"sku"`
	Description   string `mapstructure:"description" json:"description"`
	WaitFor       string `mapstructure:"wait_for" json:"wait_for"`
}

// Pagination strategy names accepted in PaginationConfig.Type.
const (
	PaginationNextButton     = "next_button"
	PaginationPageNumber     = "page_number"
	PaginationInfiniteScroll = "infinite_scroll"
)

// PaginationConfig controls how the product-list strategy advances pages.
type PaginationConfig struct {
	Type         string `mapstructure:"type" json:"type"`
	NextSelector string `mapstructure:"next_selector" json:"next_selector"`
	PageParam    string `mapstructure:"page_param" json:"page_param"`
}

// SitemapConfig controls sitemap discovery for the sitemap strategy.
type SitemapConfig struct {
	SitemapURL     string `mapstructure:"sitemap_url" json:"sitemap_url"`
	ChildPattern   string `mapstructure:"child_sitemap_pattern" json:"child_sitemap_pattern"`
	IncludePattern string `mapstructure:"url_include_pattern" json:"url_include_pattern"`
	ExcludePattern string `mapstructure:"url_exclude_pattern" json:"url_exclude_pattern"`
	UseLastMod     bool   `mapstructure:"use_lastmod" json:"use_lastmod"`
}

// Config type names with built-in strategies. Any other value selects a
// custom strategy registered by name.
const (
	ConfigTypeProductList = "product_list"
	ConfigTypeSitemap     = "sitemap"
)

// ScraperConfig is the active extraction configuration for one website.
// The core treats it as an immutable input for the duration of a job.
type ScraperConfig struct {
	ConfigType string            `mapstructure:"config_type" json:"config_type"`
	Selectors  SelectorConfig    `mapstructure:"selectors" json:"selectors"`
	Pagination *PaginationConfig `mapstructure:"pagination" json:"pagination,omitempty"`
	Sitemap    *SitemapConfig    `mapstructure:"sitemap" json:"sitemap,omitempty"`
}

// NavigateOptions tune a single page navigation.
type NavigateOptions struct {
	// WaitSelector, when set, is waited for after navigation. The wait has
	// its own soft timeout: expiry is logged, not fatal.
	WaitSelector string
	// LoadTimeout overrides the driver's default navigation timeout.
	LoadTimeout time.Duration
}

// PageDriver is one exclusively-owned browser page. Strategies reuse a
// single driver across all navigations of a job so session state (cookies)
// survives between pages.
type PageDriver interface {
	Navigate(ctx context.Context, url string, opts NavigateOptions) error
	HTML(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
}

// Checkpoint is consulted by strategies between units of work. The
// orchestrator owns the implementation: it is the single authority for
// cancellation and rate limiting.
type Checkpoint interface {
	// Cancelled reports whether the job should stop. Checked before each
	// unit of work.
	Cancelled(ctx context.Context) bool
	// Wait blocks for the remainder of the per-site rate-limit interval.
	// Called after each unit of work.
	Wait(ctx context.Context) error
	// Progress reports units completed and items found so far.
	Progress(units, found int)
}

// Strategy is one pluggable algorithm for discovering and extracting items.
type Strategy interface {
	Name() string
	Extract(ctx context.Context, page PageDriver, cp Checkpoint) (Result, error)
}
