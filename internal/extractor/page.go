package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const maxTitleLen = 300

// Title extracts the page title, preferring og:title over <title>.
func Title(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	if og, exists := doc.Find(`meta[property="og:title"]`).First().Attr("content"); exists {
		if t := strings.TrimSpace(og); t != "" {
			return truncate(t)
		}
	}

	return truncate(strings.TrimSpace(doc.Find("title").First().Text()))
}

// LikesText returns the text of the first like/counter element on the page,
// for popularity scoring of direct-URL work items.
func LikesText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	var text string
	doc.Find(`[class*="like"], [class*="count"]`).EachWithBreak(func(i int, s *goquery.Selection) bool {
		if t := strings.TrimSpace(s.Text()); t != "" {
			text = t
			return false
		}
		return true
	})
	return text
}

func truncate(s string) string {
	if len(s) > maxTitleLen {
		return s[:maxTitleLen]
	}
	return s
}
