// Package filter holds the pure URL predicates shared by discovery and
// search: detail-page shape matching and exact-order-preserving dedup.
package filter

import "regexp"

// Detail pages live under two path prefixes, /short-video/<id> and /f/<id>.
// Host and prefix match case-insensitively, any kuaishou.com subdomain counts.
var (
	detailURLRegex  = regexp.MustCompile(`(?i)^https?://(?:[a-z0-9-]+\.)*kuaishou\.com/(?:short-video|f)/[^/?#\s]+`)
	detailScanRegex = regexp.MustCompile(`(?i)https?://(?:[a-z0-9-]+\.)*kuaishou\.com/(?:short-video|f)/[^/?#\s"'<>\\]+`)
)

func IsDetailURL(url string) bool {
	return detailURLRegex.MatchString(url)
}

// Dedupe removes exact-string duplicates preserving first-seen order.
func Dedupe(urls []string) []string {
	seen := make(map[string]bool, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}

// FindDetailURLs scans raw text (markup, inline script data) for absolute
// detail-page URLs, deduplicated in match order.
func FindDetailURLs(text string) []string {
	return Dedupe(detailScanRegex.FindAllString(text, -1))
}

// DetailURLs keeps only detail-page URLs, deduplicated in input order.
func DetailURLs(urls []string) []string {
	matched := make([]string, 0, len(urls))
	for _, u := range urls {
		if IsDetailURL(u) {
			matched = append(matched, u)
		}
	}
	return Dedupe(matched)
}
