package strategy

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/tnprice/crawler/internal/scraper"
)

// DefaultMaxPagesList caps listing crawls when the job sets no limit.
const DefaultMaxPagesList = 50

// ProductList is the selector-driven strategy: it walks a paginated listing
// from the website's base URL and extracts every item matching the
// configured container/item selectors on each page.
type ProductList struct {
	website    scraper.Website
	selectors  scraper.SelectorConfig
	pagination *scraper.PaginationConfig
	maxPages   int
	logger     *zap.Logger
}

// NewProductList builds the selector-driven strategy from job parameters.
func NewProductList(p Params) *ProductList {
	maxPages := p.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPagesList
	}
	return &ProductList{
		website:    p.Website,
		selectors:  p.Config.Selectors,
		pagination: p.Config.Pagination,
		maxPages:   maxPages,
		logger:     p.Logger.With(zap.String("strategy", scraper.ConfigTypeProductList)),
	}
}

// Name implements scraper.Strategy.
func (s *ProductList) Name() string { return scraper.ConfigTypeProductList }

// Extract crawls listing pages until pagination ends, maxPages is reached
// or cancellation is observed. A navigation failure on the very first page
// aborts the job; on later pages it is recorded and ends the crawl early,
// keeping what was already collected.
func (s *ProductList) Extract(ctx context.Context, page scraper.PageDriver, cp scraper.Checkpoint) (scraper.Result, error) {
	var res scraper.Result
	current := s.website.BaseURL

	s.logger.Info("starting listing crawl",
		zap.String("url", current),
		zap.Int("max_pages", s.maxPages),
	)

	for res.PagesVisited < s.maxPages {
		if cp.Cancelled(ctx) {
			res.Cancelled = true
			break
		}

		doc, err := s.loadPage(ctx, page, current)
		if err != nil {
			if res.PagesVisited == 0 {
				return res, fmt.Errorf("first page %s: %w", current, err)
			}
			res.AddError(classifyKind(err), current, err.Error())
			break
		}

		found := 0
		itemScope(doc, s.selectors).Each(func(_ int, sel *goquery.Selection) {
			if item, ok := itemFromSelection(sel, s.selectors, s.website.BaseURL); ok {
				res.Items = append(res.Items, item)
				found++
			}
		})
		if found == 0 {
			// A listing page with zero matches points at a broken
			// container/item selector, not an empty site.
			res.AddError(scraper.ErrorKindExtraction, current,
				"no items matched the configured selectors")
		}
		res.PagesVisited++
		cp.Progress(res.PagesVisited, len(res.Items))

		next, err := nextPageURL(doc, s.pagination, s.website.BaseURL)
		if err != nil {
			res.AddError(scraper.ErrorKindConfig, current, err.Error())
			break
		}
		if next == "" {
			s.logger.Debug("pagination ended", zap.Int("pages", res.PagesVisited))
			break
		}
		current = next

		if err := cp.Wait(ctx); err != nil {
			break
		}
	}

	return res, nil
}

func (s *ProductList) loadPage(ctx context.Context, page scraper.PageDriver, url string) (*goquery.Document, error) {
	if err := page.Navigate(ctx, url, scraper.NavigateOptions{WaitSelector: s.selectors.WaitFor}); err != nil {
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
	return doc, nil
}

// classifyKind maps a navigation/snapshot error onto the error taxonomy.
func classifyKind(err error) scraper.ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return scraper.ErrorKindTimeout
	}
	return scraper.ErrorKindNetwork
}
