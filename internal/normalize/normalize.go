// Package normalize derives canonical ids, normalizes company URLs and
// resolves coordinates for staged records.
package normalize

import (
	"net/url"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Slug lower-cases text and folds accents. Punctuation is dropped without a
// separator; runs of whitespace, hyphens and underscores become a single
// hyphen, so "St. John's" slugs to "st-johns".
func Slug(text string) string {
	folded, _, err := transform.String(foldAccents(), text)
	if err != nil {
		folded = text
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	b.Grow(len(folded))
	pendingHyphen := false
	for _, r := range folded {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
		case r == '-' || r == '_' || unicode.IsSpace(r):
			pendingHyphen = true
		}
	}
	return b.String()
}

// foldAccents returns a fresh transformer; transform.Chain is stateful and
// cannot be shared.
func foldAccents() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

// ID is the canonical identifier of a company: slug(name)-slug(city).
func ID(name, city string) string {
	return Slug(name) + "-" + Slug(city)
}

// URL trims raw, prepends https:// when it has no scheme and strips any
// trailing slashes. Paths and query strings are left alone.
func URL(raw string) string {
	u := strings.TrimSpace(raw)
	if u == "" {
		return ""
	}
	lower := strings.ToLower(u)
	switch {
	case strings.HasPrefix(lower, "https://"):
		u = "https://" + u[len("https://"):]
	case strings.HasPrefix(lower, "http://"):
		u = "http://" + u[len("http://"):]
	case strings.Contains(u, "://"):
		// Some other scheme; ValidURL rejects it.
	default:
		u = "https://" + strings.TrimLeft(u, "/")
	}
	return strings.TrimRight(u, "/")
}

// ValidURL reports whether u, already normalized, is an absolute http(s) URL
// whose host looks like a domain.
func ValidURL(u string) bool {
	if u == "" || strings.IndexFunc(u, unicode.IsSpace) >= 0 {
		return false
	}
	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}
	host := parsed.Hostname()
	if host == "" || !strings.Contains(host, ".") {
		return false
	}
	return !strings.HasPrefix(host, ".") && !strings.HasSuffix(host, ".")
}
