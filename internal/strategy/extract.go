// Package strategy implements the built-in extraction strategies and the
// registry resolving site-specific custom ones.
package strategy

import (
	"github.com/PuerkitoBio/goquery"

	"github.com/tnprice/crawler/internal/normalize"
	"github.com/tnprice/crawler/internal/scraper"
)

// selectText resolves a configured selector inside scope and returns the
// cleaned element text, or the named attribute when the selector carries an
// ::attr() suffix. Missing elements and empty selectors return "".
func selectText(scope *goquery.Selection, raw string) string {
	sel := scraper.ParseSelector(raw)
	if sel.IsZero() {
		return ""
	}
	target := scope
	if sel.CSS != "" {
		target = scope.Find(sel.CSS)
	}
	if target.Length() == 0 {
		return ""
	}
	if sel.Attr != "" {
		v, _ := target.First().Attr(sel.Attr)
		return scraper.CleanText(v)
	}
	return scraper.CleanText(target.First().Text())
}

// selectAttr is selectText for fields that default to an attribute (href
// for links, src for images). An ::attr() suffix still takes precedence.
func selectAttr(scope *goquery.Selection, raw, defaultAttr string) string {
	sel := scraper.ParseSelector(raw)
	if sel.IsZero() {
		return ""
	}
	attr := sel.Attr
	if attr == "" {
		attr = defaultAttr
	}
	target := scope
	if sel.CSS != "" {
		target = scope.Find(sel.CSS)
	}
	if target.Length() == 0 {
		return ""
	}
	v, _ := target.First().Attr(attr)
	return scraper.CleanText(v)
}

// itemFromSelection extracts one product from scope using cfg. The second
// return is false when the mandatory triad (name, URL, price) could not be
// resolved; such items are discarded, not recorded as errors.
func itemFromSelection(scope *goquery.Selection, cfg scraper.SelectorConfig, baseURL string) (scraper.Item, bool) {
	name := selectText(scope, cfg.Name)
	if name == "" {
		return scraper.Item{}, false
	}

	itemURL := selectAttr(scope, cfg.URL, "href")
	if itemURL == "" {
		return scraper.Item{}, false
	}
	itemURL = scraper.ResolveURL(baseURL, itemURL)

	price, ok := normalize.ParsePrice(selectText(scope, cfg.Price))
	if !ok {
		return scraper.Item{}, false
	}

	item := scraper.Item{
		ExternalID: scraper.ExternalID(itemURL),
		Name:       name,
		URL:        itemURL,
		Price:      price,
		InStock:    true,
		Extra:      map[string]string{},
	}

	if orig, ok := normalize.ParsePrice(selectText(scope, cfg.OriginalPrice)); ok {
		item.OriginalPrice = &orig
	}
	if img := selectAttr(scope, cfg.Image, "src"); img != "" {
		item.ImageURL = scraper.ResolveURL(baseURL, img)
	}
	item.Brand = selectText(scope, cfg.Brand)
	item.SKU = selectText(scope, cfg.SKU)
	item.Description = selectText(scope, cfg.Description)

	if cfg.InStock != "" {
		item.InStock = stockFromSelection(scope, cfg.InStock)
	}
	return item, true
}

// stockFromSelection applies the configured stock indicator: the element's
// presence is the signal when it carries no text, its text otherwise.
func stockFromSelection(scope *goquery.Selection, raw string) bool {
	sel := scraper.ParseSelector(raw)
	target := scope
	if sel.CSS != "" {
		target = scope.Find(sel.CSS)
	}
	found := target.Length() > 0
	text := ""
	if found {
		text = target.First().Text()
	}
	return normalize.InStock(text, found)
}

// itemScope returns the per-item selections on a listing page, honoring the
// optional container selector.
func itemScope(doc *goquery.Document, cfg scraper.SelectorConfig) *goquery.Selection {
	container := cfg.Container
	if container == "" {
		container = "body"
	}
	item := cfg.Item
	if item == "" {
		item = ".product"
	}
	return doc.Find(container + " " + item)
}
