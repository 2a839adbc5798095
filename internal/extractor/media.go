// Package extractor pulls media URLs and page metadata out of rendered
// detail pages, from media tags, raw markup and sniffed traffic.
package extractor

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	mp4Regex  = regexp.MustCompile(`(?i)\.mp4(?:\?[^\s"'<>]*)?$`)
	m3u8Regex = regexp.MustCompile(`(?i)\.m3u8(?:\?[^\s"'<>]*)?$`)

	// Absolute media URLs embedded anywhere in markup, including inline
	// script data. Last-resort source when tags and traffic yield nothing.
	htmlMediaRegex = regexp.MustCompile(`(?i)https?://[^\s"'<>\\]+\.(?:mp4|m3u8)(?:\?[^\s"'<>\\]*)?`)
)

var streamKeywords = []string{"play", "video", "stream"}

// IsMediaURL reports whether a URL plausibly references playable media:
// a direct file/manifest suffix, or an absolute http(s) URL carrying a
// streaming keyword.
func IsMediaURL(url string) bool {
	if mp4Regex.MatchString(url) || m3u8Regex.MatchString(url) {
		return true
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return false
	}
	lower := strings.ToLower(url)
	for _, kw := range streamKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// MediaSources reads media-tag source attributes from rendered markup.
func MediaSources(html string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var urls []string
	seen := make(map[string]bool)

	add := func(src string) {
		src = strings.TrimSpace(src)
		if src == "" || src == "about:blank" || seen[src] {
			return
		}
		seen[src] = true
		urls = append(urls, src)
	}

	doc.Find("video[src], video > source[src], audio[src], source[src]").Each(func(i int, s *goquery.Selection) {
		if src, exists := s.Attr("src"); exists {
			add(src)
		}
		if src, exists := s.Attr("data-src"); exists {
			add(src)
		}
	})

	return urls
}

// ScanHTMLMedia regex-scans raw markup for absolute media URLs.
func ScanHTMLMedia(html string) []string {
	matches := htmlMediaRegex.FindAllString(html, -1)

	var urls []string
	seen := make(map[string]bool)
	for _, m := range matches {
		if !seen[m] {
			seen[m] = true
			urls = append(urls, m)
		}
	}
	return urls
}

// Pick selects one playable URL from a candidate pool. A direct .mp4 file
// always wins over a manifest stream: it re-downloads reliably. Streams are
// considered only when the caller opted in. Empty result means no media,
// which is a valid outcome.
func Pick(candidates []string, acceptStream bool) string {
	for _, c := range candidates {
		if mp4Regex.MatchString(c) {
			return c
		}
	}
	if acceptStream {
		for _, c := range candidates {
			if m3u8Regex.MatchString(c) {
				return c
			}
		}
	}
	return ""
}
