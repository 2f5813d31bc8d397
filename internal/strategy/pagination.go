package strategy

import (
	"errors"
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"github.com/tnprice/crawler/internal/scraper"
)

// ErrPaginationUnsupported marks pagination strategies that are configured
// but not implemented yet. They must fail loudly: silently reporting "no
// next page" would be indistinguishable from a legitimate crawl end and
// corrupt completeness guarantees.
var ErrPaginationUnsupported = errors.New("pagination strategy not implemented")

// nextPageURL computes the following page of a listing crawl, or "" when
// pagination has legitimately ended.
func nextPageURL(doc *goquery.Document, cfg *scraper.PaginationConfig, baseURL string) (string, error) {
	if cfg == nil {
		return "", nil
	}
	switch cfg.Type {
	case "", scraper.PaginationNextButton:
		if cfg.NextSelector == "" {
			return "", nil
		}
		href := selectAttr(doc.Selection, cfg.NextSelector, "href")
		if href == "" {
			return "", nil
		}
		return scraper.ResolveURL(baseURL, href), nil
	case scraper.PaginationPageNumber, scraper.PaginationInfiniteScroll:
		return "", fmt.Errorf("%w: %q", ErrPaginationUnsupported, cfg.Type)
	default:
		return "", fmt.Errorf("unknown pagination strategy %q", cfg.Type)
	}
}
