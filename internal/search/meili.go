package search

import (
	"context"
	"encoding/json"

	"github.com/meilisearch/meilisearch-go"
)

const pagesIndex = "pages"

// MeiliBackend consults a local Meilisearch index of previously discovered
// detail pages. Cheap first stop before hitting external search services.
type MeiliBackend struct {
	client meilisearch.ServiceManager
}

func NewMeiliBackend(url, apiKey string) (*MeiliBackend, error) {
	client := meilisearch.New(url, meilisearch.WithAPIKey(apiKey))
	if _, err := client.Health(); err != nil {
		return nil, err
	}
	return &MeiliBackend{client: client}, nil
}

func (b *MeiliBackend) Name() string { return "meili" }

type pageHit struct {
	URL string `json:"url"`
}

func (b *MeiliBackend) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	resp, err := b.client.Index(pagesIndex).Search(query, &meilisearch.SearchRequest{
		Limit: int64(limit),
	})
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		var doc pageHit
		raw, err := json.Marshal(hit)
		if err != nil {
			continue
		}
		if err := json.Unmarshal(raw, &doc); err != nil || doc.URL == "" {
			continue
		}
		results = append(results, Result{URL: doc.URL})
	}
	return results, nil
}
