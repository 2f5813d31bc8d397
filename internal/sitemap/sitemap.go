// Package sitemap implements the sitemaps.org discovery protocol: fetching
// sitemap-index and urlset documents, recursively flattening indexes and
// filtering the resulting URLs.
package sitemap

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// dateOnlyFormat is the date-only layout for lastmod values ("2024-01-15").
const dateOnlyFormat = "2006-01-02"

// ErrMalformed marks a top-level document that is not valid sitemap XML.
// Child sitemaps failing the same way are skipped, not fatal.
var ErrMalformed = errors.New("malformed sitemap xml")

// Entry is a single URL discovered from a sitemap, with the optional
// metadata the sitemap supplied for it.
type Entry struct {
	Loc        string
	LastMod    *time.Time
	ImageURL   string
	ImageTitle string
}

// Config selects and filters what Discover returns.
type Config struct {
	// SitemapURL is the root document; it may be an index or a urlset.
	SitemapURL string
	// ChildPattern restricts which child sitemaps of an index are fetched.
	ChildPattern string
	// IncludePattern keeps only matching URLs; ExcludePattern removes
	// matching URLs and wins when both match.
	IncludePattern string
	ExcludePattern string
}

// Discoverer fetches and flattens sitemaps over HTTP.
type Discoverer struct {
	collector *colly.Collector
	logger    *zap.Logger
}

// Option configures a Discoverer.
type Option func(*Discoverer)

// WithTransport replaces the HTTP transport, which lets tests serve
// sitemap fixtures without a network.
func WithTransport(rt http.RoundTripper) Option {
	return func(d *Discoverer) {
		d.collector.WithTransport(rt)
	}
}

// WithUserAgent sets the User-Agent sent on sitemap fetches.
func WithUserAgent(ua string) Option {
	return func(d *Discoverer) {
		d.collector.UserAgent = ua
	}
}

// New builds a Discoverer with the given request timeout.
func New(timeout time.Duration, logger *zap.Logger, opts ...Option) *Discoverer {
	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
	)
	c.SetRequestTimeout(timeout)

	d := &Discoverer{collector: c, logger: logger}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Discover fetches the root sitemap, follows index entries recursively and
// returns the filtered, flattened URL list. A malformed or unreachable root
// document is an error; malformed children are skipped with a warning.
func (d *Discoverer) Discover(cfg Config) ([]Entry, error) {
	include, err := compilePattern(cfg.IncludePattern)
	if err != nil {
		return nil, fmt.Errorf("url include pattern: %w", err)
	}
	exclude, err := compilePattern(cfg.ExcludePattern)
	if err != nil {
		return nil, fmt.Errorf("url exclude pattern: %w", err)
	}
	child, err := compilePattern(cfg.ChildPattern)
	if err != nil {
		return nil, fmt.Errorf("child sitemap pattern: %w", err)
	}

	d.logger.Info("discovering sitemap", zap.String("url", cfg.SitemapURL))

	body, err := d.fetch(cfg.SitemapURL)
	if err != nil {
		return nil, fmt.Errorf("fetch sitemap %s: %w", cfg.SitemapURL, err)
	}

	root, err := rootElement(body)
	if err != nil {
		return nil, fmt.Errorf("sitemap %s: %w", cfg.SitemapURL, err)
	}

	var entries []Entry
	switch root {
	case "sitemapindex":
		entries = d.flattenIndex(body, child)
	case "urlset":
		entries, err = parseURLSet(body)
		if err != nil {
			return nil, fmt.Errorf("sitemap %s: %w", cfg.SitemapURL, err)
		}
	default:
		return nil, fmt.Errorf("sitemap %s: unexpected root element %q: %w", cfg.SitemapURL, root, ErrMalformed)
	}

	filtered := entries[:0]
	for _, e := range entries {
		if include != nil && !include.MatchString(e.Loc) {
			continue
		}
		if exclude != nil && exclude.MatchString(e.Loc) {
			continue
		}
		filtered = append(filtered, e)
	}

	d.logger.Info("sitemap discovered",
		zap.String("url", cfg.SitemapURL),
		zap.Int("urls", len(filtered)),
	)
	return filtered, nil
}

func (d *Discoverer) flattenIndex(body []byte, child *regexp.Regexp) []Entry {
	childURLs, err := parseIndex(body)
	if err != nil {
		// rootElement already confirmed a sitemapindex root, so this only
		// fires on truncated documents; treat like an empty index.
		d.logger.Warn("unreadable sitemap index", zap.Error(err))
		return nil
	}

	var entries []Entry
	for _, childURL := range childURLs {
		if child != nil && !child.MatchString(childURL) {
			continue
		}
		childBody, err := d.fetch(childURL)
		if err != nil {
			d.logger.Warn("skipping unreachable child sitemap",
				zap.String("url", childURL), zap.Error(err))
			continue
		}
		childEntries, err := parseURLSet(childBody)
		if err != nil {
			d.logger.Warn("skipping malformed child sitemap",
				zap.String("url", childURL), zap.Error(err))
			continue
		}
		entries = append(entries, childEntries...)
	}
	return entries
}

func (d *Discoverer) fetch(rawURL string) ([]byte, error) {
	var (
		body     []byte
		fetchErr error
	)
	c := d.collector.Clone()
	c.OnResponse(func(r *colly.Response) {
		body = r.Body
	})
	c.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})
	if err := c.Visit(rawURL); err != nil {
		return nil, err
	}
	c.Wait()
	if fetchErr != nil {
		return nil, fetchErr
	}
	return body, nil
}

func compilePattern(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	return regexp.Compile("(?i)" + pattern)
}

// rootElement returns the local name of the document's root element.
func rootElement(body []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if start, ok := tok.(xml.StartElement); ok {
			return start.Name.Local, nil
		}
	}
}

type xmlIndex struct {
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

type xmlURLSet struct {
	URLs []xmlURL `xml:"url"`
}

type xmlURL struct {
	Loc     string   `xml:"loc"`
	LastMod string   `xml:"lastmod"`
	Image   xmlImage `xml:"http://www.google.com/schemas/sitemap-image/1.1 image"`
}

type xmlImage struct {
	Loc   string `xml:"loc"`
	Title string `xml:"title"`
}

func parseIndex(body []byte) ([]string, error) {
	var index xmlIndex
	if err := xml.Unmarshal(body, &index); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	urls := make([]string, 0, len(index.Sitemaps))
	for _, s := range index.Sitemaps {
		if loc := strings.TrimSpace(s.Loc); loc != "" {
			urls = append(urls, loc)
		}
	}
	return urls, nil
}

func parseURLSet(body []byte) ([]Entry, error) {
	var urlset xmlURLSet
	if err := xml.Unmarshal(body, &urlset); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	entries := make([]Entry, 0, len(urlset.URLs))
	for _, u := range urlset.URLs {
		loc := strings.TrimSpace(u.Loc)
		if loc == "" {
			continue
		}
		entries = append(entries, Entry{
			Loc:        loc,
			LastMod:    parseLastMod(u.LastMod),
			ImageURL:   strings.TrimSpace(u.Image.Loc),
			ImageTitle: strings.TrimSpace(u.Image.Title),
		})
	}
	return entries, nil
}

// parseLastMod accepts RFC 3339 timestamps and date-only values. Anything
// else is treated as unknown: incremental filtering never drops entries
// whose modification time cannot be established.
func parseLastMod(raw string) *time.Time {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return &t
	}
	if t, err := time.Parse(dateOnlyFormat, trimmed); err == nil {
		return &t
	}
	return nil
}
