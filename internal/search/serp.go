package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// SerpBackend queries a SERP scraping API (serpapi-compatible JSON shape).
// This is the spiritual successor of the original google-search-scraper
// fallback channel.
type SerpBackend struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewSerpBackend(baseURL, apiKey string) *SerpBackend {
	return &SerpBackend{
		baseURL: baseURL,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

func (b *SerpBackend) Name() string { return "serp" }

type serpResponse struct {
	OrganicResults []struct {
		Link string `json:"link"`
	} `json:"organic_results"`
}

func (b *SerpBackend) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("num", fmt.Sprintf("%d", limit))
	if b.apiKey != "" {
		q.Set("api_key", b.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("serp request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("serp API returned %d: %s", resp.StatusCode, string(body))
	}

	var parsed serpResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("serp decode: %w", err)
	}

	// No result set in the payload is zero results, not an error.
	if parsed.OrganicResults == nil {
		return nil, nil
	}

	results := make([]Result, 0, len(parsed.OrganicResults))
	for _, r := range parsed.OrganicResults {
		if r.Link != "" {
			results = append(results, Result{URL: r.Link})
		}
		if len(results) >= limit {
			break
		}
	}
	return results, nil
}
