package sitemap

import (
	"errors"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const urlsetHeader = `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9"
        xmlns:image="http://www.google.com/schemas/sitemap-image/1.1">`

func newTestDiscoverer(t *testing.T) (*Discoverer, *httpmock.MockTransport) {
	t.Helper()
	transport := httpmock.NewMockTransport()
	d := New(5*time.Second, zap.NewNop(), WithTransport(transport))
	return d, transport
}

func TestDiscoverURLSet(t *testing.T) {
	d, transport := newTestDiscoverer(t)
	transport.RegisterResponder("GET", "https://shop.example/sitemap.xml",
		httpmock.NewStringResponder(200, urlsetHeader+`
  <url>
    <loc>https://shop.example/p/1</loc>
    <lastmod>2026-03-01T10:00:00Z</lastmod>
  </url>
  <url>
    <loc>https://shop.example/p/2</loc>
    <lastmod>2026-03-02</lastmod>
    <image:image>
      <image:loc>https://cdn.example/2.jpg</image:loc>
      <image:title>Blue Widget</image:title>
    </image:image>
  </url>
  <url>
    <loc>https://shop.example/p/3</loc>
    <lastmod>not-a-date</lastmod>
  </url>
</urlset>`))

	entries, err := d.Discover(Config{SitemapURL: "https://shop.example/sitemap.xml"})
	require.NoError(t, err)
	require.Len(t, entries, 3)

	require.NotNil(t, entries[0].LastMod)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), entries[0].LastMod.UTC())

	require.NotNil(t, entries[1].LastMod, "date-only lastmod should parse")
	assert.Equal(t, "https://cdn.example/2.jpg", entries[1].ImageURL)
	assert.Equal(t, "Blue Widget", entries[1].ImageTitle)

	assert.Nil(t, entries[2].LastMod, "unparseable lastmod becomes unknown")
}

func TestDiscoverIndex(t *testing.T) {
	d, transport := newTestDiscoverer(t)
	transport.RegisterResponder("GET", "https://shop.example/sitemap.xml",
		httpmock.NewStringResponder(200, `<?xml version="1.0"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap><loc>https://shop.example/sitemap-products-1.xml</loc></sitemap>
  <sitemap><loc>https://shop.example/sitemap-products-2.xml</loc></sitemap>
  <sitemap><loc>https://shop.example/sitemap-pages.xml</loc></sitemap>
</sitemapindex>`))
	transport.RegisterResponder("GET", "https://shop.example/sitemap-products-1.xml",
		httpmock.NewStringResponder(200, urlsetHeader+`
  <url><loc>https://shop.example/p/1</loc></url>
  <url><loc>https://shop.example/p/2</loc></url>
  <url><loc>https://shop.example/p/3</loc></url>
</urlset>`))
	transport.RegisterResponder("GET", "https://shop.example/sitemap-products-2.xml",
		httpmock.NewStringResponder(200, urlsetHeader+`
  <url><loc>https://shop.example/p/4</loc></url>
  <url><loc>https://shop.example/p/5</loc></url>
</urlset>`))
	transport.RegisterResponder("GET", "https://shop.example/sitemap-pages.xml",
		httpmock.NewStringResponder(200, urlsetHeader+`
  <url><loc>https://shop.example/about</loc></url>
</urlset>`))

	entries, err := d.Discover(Config{
		SitemapURL:   "https://shop.example/sitemap.xml",
		ChildPattern: `sitemap-products-`,
	})
	require.NoError(t, err)
	assert.Len(t, entries, 5, "only product child sitemaps should be fetched")
}

func TestDiscoverFilters(t *testing.T) {
	d, transport := newTestDiscoverer(t)
	transport.RegisterResponder("GET", "https://shop.example/sitemap.xml",
		httpmock.NewStringResponder(200, urlsetHeader+`
  <url><loc>https://shop.example/p/1</loc></url>
  <url><loc>https://shop.example/p/2-clearance</loc></url>
  <url><loc>https://shop.example/blog/news</loc></url>
</urlset>`))

	entries, err := d.Discover(Config{
		SitemapURL:     "https://shop.example/sitemap.xml",
		IncludePattern: `/p/`,
		ExcludePattern: `clearance`,
	})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "https://shop.example/p/1", entries[0].Loc)

	// Exclusion wins when both patterns match everything.
	entries, err = d.Discover(Config{
		SitemapURL:     "https://shop.example/sitemap.xml",
		IncludePattern: `shop`,
		ExcludePattern: `shop`,
	})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDiscoverMalformedRoot(t *testing.T) {
	d, transport := newTestDiscoverer(t)
	transport.RegisterResponder("GET", "https://shop.example/sitemap.xml",
		httpmock.NewStringResponder(200, `<html><body>503</body></html>`))

	_, err := d.Discover(Config{SitemapURL: "https://shop.example/sitemap.xml"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformed))
}

func TestDiscoverMalformedChildSkipped(t *testing.T) {
	d, transport := newTestDiscoverer(t)
	transport.RegisterResponder("GET", "https://shop.example/sitemap.xml",
		httpmock.NewStringResponder(200, `<?xml version="1.0"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap><loc>https://shop.example/good.xml</loc></sitemap>
  <sitemap><loc>https://shop.example/broken.xml</loc></sitemap>
  <sitemap><loc>https://shop.example/missing.xml</loc></sitemap>
</sitemapindex>`))
	transport.RegisterResponder("GET", "https://shop.example/good.xml",
		httpmock.NewStringResponder(200, urlsetHeader+`
  <url><loc>https://shop.example/p/1</loc></url>
</urlset>`))
	transport.RegisterResponder("GET", "https://shop.example/broken.xml",
		httpmock.NewStringResponder(200, `not xml at all`))

	entries, err := d.Discover(Config{SitemapURL: "https://shop.example/sitemap.xml"})
	require.NoError(t, err, "broken children must not fail the discovery")
	require.Len(t, entries, 1)
	assert.Equal(t, "https://shop.example/p/1", entries[0].Loc)
}

func TestDiscoverBadPattern(t *testing.T) {
	d, _ := newTestDiscoverer(t)
	_, err := d.Discover(Config{
		SitemapURL:     "https://shop.example/sitemap.xml",
		IncludePattern: `[`,
	})
	require.Error(t, err)
}
