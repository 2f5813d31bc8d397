package strategy

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/tnprice/crawler/internal/normalize"
	"github.com/tnprice/crawler/internal/scraper"
	"github.com/tnprice/crawler/internal/sitemap"
)

// DefaultMaxPagesSitemap caps sitemap crawls when the job sets no limit.
// Sitemap mode visits one product per page, so the ceiling is higher than
// for listings.
const DefaultMaxPagesSitemap = 300

// Discoverer yields candidate URLs for the sitemap strategy.
type Discoverer interface {
	Discover(cfg sitemap.Config) ([]sitemap.Entry, error)
}

// Sitemap discovers product URLs from the site's sitemap and extracts one
// item per visited page. With UseLastMod set it runs incrementally: only
// URLs modified since the website's last successful scrape are visited.
type Sitemap struct {
	website    scraper.Website
	selectors  scraper.SelectorConfig
	cfg        *scraper.SitemapConfig
	discoverer Discoverer
	maxPages   int
	logger     *zap.Logger
}

// NewSitemap builds the sitemap-driven strategy from job parameters.
func NewSitemap(p Params) *Sitemap {
	maxPages := p.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPagesSitemap
	}
	return &Sitemap{
		website:    p.Website,
		selectors:  p.Config.Selectors,
		cfg:        p.Config.Sitemap,
		discoverer: p.Discoverer,
		maxPages:   maxPages,
		logger:     p.Logger.With(zap.String("strategy", scraper.ConfigTypeSitemap)),
	}
}

// Name implements scraper.Strategy.
func (s *Sitemap) Name() string { return scraper.ConfigTypeSitemap }

// Extract discovers candidate URLs, filters and caps them, then visits each
// one. Discovery failures are fatal to the job; per-URL failures are
// recorded and skipped, except on the very first page.
func (s *Sitemap) Extract(ctx context.Context, page scraper.PageDriver, cp scraper.Checkpoint) (scraper.Result, error) {
	var res scraper.Result

	if s.cfg == nil || s.cfg.SitemapURL == "" {
		res.AddError(scraper.ErrorKindConfig, s.website.BaseURL, "no sitemap_url configured")
		return res, fmt.Errorf("sitemap strategy for %s: no sitemap_url configured", s.website.Name)
	}
	if s.discoverer == nil {
		res.AddError(scraper.ErrorKindConfig, s.website.BaseURL, "no sitemap discoverer wired")
		return res, fmt.Errorf("sitemap strategy for %s: no discoverer", s.website.Name)
	}

	entries, err := s.discoverer.Discover(sitemap.Config{
		SitemapURL:     s.cfg.SitemapURL,
		ChildPattern:   s.cfg.ChildPattern,
		IncludePattern: s.cfg.IncludePattern,
		ExcludePattern: s.cfg.ExcludePattern,
	})
	if err != nil {
		res.AddError(discoveryKind(err), s.cfg.SitemapURL, err.Error())
		return res, fmt.Errorf("discover sitemap: %w", err)
	}
	if len(entries) == 0 {
		res.AddError(scraper.ErrorKindConfig, s.cfg.SitemapURL, "no URLs found in sitemap")
		return res, fmt.Errorf("sitemap %s yielded no URLs", s.cfg.SitemapURL)
	}

	entries = s.incrementalFilter(entries)
	if len(entries) > s.maxPages {
		s.logger.Info("capping sitemap candidates",
			zap.Int("candidates", len(entries)),
			zap.Int("max_pages", s.maxPages),
		)
		entries = entries[:s.maxPages]
	}

	s.logger.Info("visiting product pages", zap.Int("count", len(entries)))

	for i, entry := range entries {
		if cp.Cancelled(ctx) {
			res.Cancelled = true
			break
		}

		item, err := s.scrapeProductPage(ctx, page, entry)
		switch {
		case err != nil && i == 0:
			return res, fmt.Errorf("first page %s: %w", entry.Loc, err)
		case err != nil:
			res.AddError(classifyKind(err), entry.Loc, err.Error())
		case item != nil:
			res.Items = append(res.Items, *item)
		}

		res.PagesVisited++
		cp.Progress(res.PagesVisited, len(res.Items))

		if err := cp.Wait(ctx); err != nil {
			break
		}
	}

	return res, nil
}

// incrementalFilter keeps only entries modified since the last successful
// scrape. Entries with no usable lastmod are always kept: dropping them
// would silently skip every product on sitemaps without timestamps.
func (s *Sitemap) incrementalFilter(entries []sitemap.Entry) []sitemap.Entry {
	if !s.cfg.UseLastMod || s.website.LastScrapedAt == nil {
		return entries
	}
	kept := entries[:0]
	for _, e := range entries {
		if e.LastMod == nil || e.LastMod.After(*s.website.LastScrapedAt) {
			kept = append(kept, e)
		}
	}
	s.logger.Info("incremental filter applied",
		zap.Int("before", len(entries)),
		zap.Int("after", len(kept)),
		zap.Time("since", *s.website.LastScrapedAt),
	)
	return kept
}

// scrapeProductPage extracts a single item from one product page. A nil
// item with nil error means the page lacked the mandatory fields and is
// skipped silently.
func (s *Sitemap) scrapeProductPage(ctx context.Context, page scraper.PageDriver, entry sitemap.Entry) (*scraper.Item, error) {
	if err := page.Navigate(ctx, entry.Loc, scraper.NavigateOptions{WaitSelector: s.selectors.WaitFor}); err != nil {
		return nil, err
	}
	html, err := page.HTML(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}

	price, ok := normalize.ParsePrice(selectText(doc.Selection, s.selectors.Price))
	if !ok {
		s.logger.Debug("no price found", zap.String("url", entry.Loc))
		return nil, nil
	}

	// Sitemap-supplied metadata wins over page extraction.
	name := entry.ImageTitle
	if name == "" {
		name = selectText(doc.Selection, s.selectors.Name)
	}
	if name == "" {
		name = s.titleFallback(ctx, page)
	}
	if name == "" {
		s.logger.Debug("no name found", zap.String("url", entry.Loc))
		return nil, nil
	}

	item := scraper.Item{
		ExternalID: scraper.ExternalID(entry.Loc),
		Name:       name,
		URL:        entry.Loc,
		Price:      price,
		InStock:    true,
		Extra:      map[string]string{},
	}

	if orig, ok := normalize.ParsePrice(selectText(doc.Selection, s.selectors.OriginalPrice)); ok {
		item.OriginalPrice = &orig
	}
	item.ImageURL = entry.ImageURL
	if item.ImageURL == "" {
		if img := selectAttr(doc.Selection, s.selectors.Image, "src"); img != "" {
			item.ImageURL = scraper.ResolveURL(s.website.BaseURL, img)
		}
	}
	item.Description = selectText(doc.Selection, s.selectors.Description)
	item.Brand = selectText(doc.Selection, s.selectors.Brand)
	item.SKU = selectText(doc.Selection, s.selectors.SKU)

	if s.selectors.InStock != "" {
		item.InStock = stockFromSelection(doc.Selection, s.selectors.InStock)
	}
	return &item, nil
}

// titleFallback derives a product name from the document title, trimming
// the usual "| Site Name" suffix.
func (s *Sitemap) titleFallback(ctx context.Context, page scraper.PageDriver) string {
	title, err := page.Title(ctx)
	if err != nil {
		return ""
	}
	name, _, _ := strings.Cut(title, "|")
	return scraper.CleanText(name)
}

// discoveryKind distinguishes malformed sitemap documents (a configuration
// problem) from transport failures.
func discoveryKind(err error) scraper.ErrorKind {
	if errors.Is(err, sitemap.ErrMalformed) {
		return scraper.ErrorKindConfig
	}
	return scraper.ErrorKindNetwork
}
