package search

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/kumma49/kuaishou-topn-downloader/internal/filter"
)

const (
	defaultMaxResults      = 200
	defaultPerBackendLimit = 50
)

// Aggregator fans a keyword out to all configured backends in parallel and
// merges their detail-page URLs deterministically: backend declaration order
// first, then each backend's own result order.
type Aggregator struct {
	backends   []Backend
	siteScope  string
	perBackend int
	maxResults int
	log        zerolog.Logger
}

func NewAggregator(backends []Backend, siteScope string, log zerolog.Logger) *Aggregator {
	return &Aggregator{
		backends:   backends,
		siteScope:  siteScope,
		perBackend: defaultPerBackendLimit,
		maxResults: defaultMaxResults,
		log:        log,
	}
}

// Query runs the site-scoped query for a keyword. Backend failures are
// swallowed and logged as zero results; the aggregate never fails.
func (a *Aggregator) Query(ctx context.Context, keyword string) []string {
	if keyword == "" || len(a.backends) == 0 {
		return nil
	}

	query := fmt.Sprintf("site:%s %s", a.siteScope, keyword)

	// Slot per backend keeps merge order independent of completion order.
	slots := make([][]Result, len(a.backends))

	var wg sync.WaitGroup
	for i, b := range a.backends {
		wg.Add(1)
		go func(i int, b Backend) {
			defer wg.Done()

			results, err := b.Search(ctx, query, a.perBackend)
			if err != nil {
				a.log.Warn().Err(fmt.Errorf("%w: %v", ErrBackendQuery, err)).Str("backend", b.Name()).Str("query", query).Msg("backend degraded to zero results")
				return
			}
			slots[i] = results
			a.log.Debug().Str("backend", b.Name()).Int("results", len(results)).Msg("backend results")
		}(i, b)
	}
	wg.Wait()

	var urls []string
	for _, results := range slots {
		for _, r := range results {
			if filter.IsDetailURL(r.URL) {
				urls = append(urls, r.URL)
			}
		}
	}

	urls = filter.Dedupe(urls)
	if len(urls) > a.maxResults {
		urls = urls[:a.maxResults]
	}
	return urls
}
