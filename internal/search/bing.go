package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const bingUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/140.0.0.0 Safari/537.36"

// BingBackend scrapes the Bing HTML results page. Keyless, so it stays
// usable when no SERP API is configured.
type BingBackend struct {
	client *http.Client
}

func NewBingBackend() *BingBackend {
	return &BingBackend{
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (b *BingBackend) Name() string { return "bing" }

func (b *BingBackend) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	endpoint := "https://www.bing.com/search?q=" + url.QueryEscape(query) + fmt.Sprintf("&count=%d", limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", bingUserAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9,zh-CN;q=0.8")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bing returned %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("bing parse: %w", err)
	}

	var results []Result
	doc.Find("li.b_algo h2 a[href]").EachWithBreak(func(i int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if strings.HasPrefix(href, "http") {
			results = append(results, Result{URL: href})
		}
		return len(results) < limit
	})
	return results, nil
}
