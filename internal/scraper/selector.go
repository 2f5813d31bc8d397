package scraper

import "strings"

const attrMarker = "::attr("

// Selector is one parsed selector string: a CSS path plus an optional
// attribute to read instead of the element text. When both are present the
// attribute form wins.
type Selector struct {
	CSS  string
	Attr string
}

// IsZero reports whether the selector was configured at all.
func (s Selector) IsZero() bool {
	return s.CSS == "" && s.Attr == ""
}

// ParseSelector splits the "div.card a::attr(href)" suffix syntax into its
// CSS and attribute parts. Strings without the suffix are plain CSS paths.
func ParseSelector(raw string) Selector {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Selector{}
	}
	i := strings.LastIndex(raw, attrMarker)
	if i < 0 {
		return Selector{CSS: raw}
	}
	attr := strings.TrimSuffix(raw[i+len(attrMarker):], ")")
	return Selector{
		CSS:  strings.TrimSpace(raw[:i]),
		Attr: strings.TrimSpace(attr),
	}
}

// CleanText collapses runs of whitespace into single spaces and trims the
// ends. Empty and whitespace-only input collapses to "".
func CleanText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
