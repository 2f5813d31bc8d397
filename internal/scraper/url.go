package scraper

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
)

// externalIDLen is the fixed hex length of generated external IDs.
const externalIDLen = 16

// CanonicalURL strips the query string and any trailing slash so re-scrapes
// of the same item converge on one identity.
func CanonicalURL(rawURL string) string {
	clean := rawURL
	if i := strings.IndexByte(clean, '?'); i >= 0 {
		clean = clean[:i]
	}
	return strings.TrimRight(clean, "/")
}

// ExternalID derives a deterministic item identity from a product URL.
// The result is always externalIDLen hex characters.
func ExternalID(rawURL string) string {
	sum := sha256.Sum256([]byte(CanonicalURL(rawURL)))
	return hex.EncodeToString(sum[:])[:externalIDLen]
}

// ResolveURL makes href absolute against base. Absolute inputs pass through.
func ResolveURL(base, href string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}

// ValidateBaseURL rejects base URLs the pool cannot navigate to.
func ValidateBaseURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base url %q: scheme must be http or https", rawURL)
	}
	if u.Host == "" {
		return fmt.Errorf("base url %q: missing host", rawURL)
	}
	return nil
}
