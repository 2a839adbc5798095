// Package discovery finds candidate detail pages for a keyword through a
// strict-priority waterfall of strategies, short-circuiting on the first one
// that yields anything.
package discovery

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/rs/zerolog"

	"github.com/kumma49/kuaishou-topn-downloader/internal/filter"
	"github.com/kumma49/kuaishou-topn-downloader/internal/model"
	"github.com/kumma49/kuaishou-topn-downloader/internal/output"
	"github.com/kumma49/kuaishou-topn-downloader/internal/search"
)

// Strategy identifies which discovery channel produced an outcome. Recorded
// for diagnostics; correctness does not depend on it.
type Strategy string

const (
	StrategyPrimaryHost Strategy = "primary_host_search"
	StrategyMirrorHost  Strategy = "mirror_host_search"
	StrategySerp        Strategy = "external_serp"
	StrategyExhausted   Strategy = "exhausted"
)

// Session is the slice of a page-render session discovery needs.
type Session interface {
	Navigate(ctx context.Context, url string, relaxed bool) error
	WaitAny(ctx context.Context, selectors []string, timeout time.Duration) error
	ScrollStep(ctx context.Context) error
	Links(ctx context.Context) ([]model.CandidateLink, error)
	HTML(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
	Close()
}

// OpenSession acquires a fresh session; each strategy gets its own.
type OpenSession func(ctx context.Context) (Session, error)

type Outcome struct {
	Strategy Strategy
	Links    []model.CandidateLink
}

// Selectors the search result grid is known to render under. Waiting on
// them is bounded and non-fatal: on timeout we scrape whatever rendered.
var contentSelectors = []string{
	".video-card",
	".search-video",
	".card-link",
	"a[href*='short-video']",
}

const (
	selectorWaitTimeout = 10 * time.Second
	// Below this many harvested links the page likely rendered a degraded
	// shell; a raw-markup scan is unioned in before judging yield.
	minPlausibleHarvest = 3
	expectedHarvestURLs = 100_000
	harvestFPRate       = 0.001
)

// Waterfall runs the discovery strategies for one keyword.
type Waterfall struct {
	open        OpenSession
	agg         *search.Aggregator
	primaryHost string
	mirrorHost  string
	scrollSteps int
	artifacts   output.BlobStore
	log         zerolog.Logger
}

func NewWaterfall(open OpenSession, agg *search.Aggregator, primaryHost, mirrorHost string, scrollSteps int, artifacts output.BlobStore, log zerolog.Logger) *Waterfall {
	if scrollSteps < 1 {
		scrollSteps = 6
	}
	return &Waterfall{
		open:        open,
		agg:         agg,
		primaryHost: primaryHost,
		mirrorHost:  mirrorHost,
		scrollSteps: scrollSteps,
		artifacts:   artifacts,
		log:         log,
	}
}

// Discover walks the strategy chain for keyword. Empty outcome with
// StrategyExhausted is a valid "no results", not an error; a diagnostic
// snapshot of the last rendered page is captured in that case.
func (w *Waterfall) Discover(ctx context.Context, keyword string) Outcome {
	var lastHTML string
	var lastShot []byte

	hosts := []struct {
		strategy Strategy
		host     string
	}{
		{StrategyPrimaryHost, w.primaryHost},
		{StrategyMirrorHost, w.mirrorHost},
	}

	for _, h := range hosts {
		if h.host == "" {
			continue
		}
		links, html, shot := w.searchHost(ctx, h.host, keyword)
		if html != "" {
			lastHTML, lastShot = html, shot
		}
		if len(links) > 0 {
			w.log.Info().Str("keyword", keyword).Str("strategy", string(h.strategy)).Int("candidates", len(links)).Msg("discovery yielded")
			return Outcome{Strategy: h.strategy, Links: links}
		}
	}

	if w.agg != nil {
		urls := w.agg.Query(ctx, keyword)
		if len(urls) > 0 {
			// SERP results carry no context text; they score 0 downstream
			// and keep their result order.
			links := make([]model.CandidateLink, len(urls))
			for i, u := range urls {
				links[i] = model.CandidateLink{URL: u}
			}
			w.log.Info().Str("keyword", keyword).Str("strategy", string(StrategySerp)).Int("candidates", len(links)).Msg("discovery yielded")
			return Outcome{Strategy: StrategySerp, Links: links}
		}
	}

	w.captureExhausted(ctx, keyword, lastHTML, lastShot)
	w.log.Warn().Err(ErrExhausted).Str("keyword", keyword).Msg("no candidates from any strategy")
	return Outcome{Strategy: StrategyExhausted}
}

// searchHost renders the host's search page and scroll-harvests detail
// links. All failures degrade to zero yield; the waterfall moves on.
func (w *Waterfall) searchHost(ctx context.Context, host, keyword string) (links []model.CandidateLink, html string, shot []byte) {
	s, err := w.open(ctx)
	if err != nil {
		w.log.Warn().Err(err).Str("host", host).Msg("session open failed")
		return nil, "", nil
	}
	defer s.Close()

	searchURL := fmt.Sprintf("https://%s/search/video?searchKey=%s", host, url.QueryEscape(keyword))

	if err := s.Navigate(ctx, searchURL, false); err != nil {
		w.log.Debug().Err(err).Str("url", searchURL).Msg("strict navigation failed, retrying relaxed")
		if err := s.Navigate(ctx, searchURL, true); err != nil {
			w.log.Warn().Err(err).Str("url", searchURL).Msg("search page navigation failed")
			return nil, "", nil
		}
	}

	if err := s.WaitAny(ctx, contentSelectors, selectorWaitTimeout); err != nil {
		w.log.Debug().Str("url", searchURL).Msg("no content selector appeared, scraping as-is")
	}

	// Cumulative harvest: each scroll step unions newly visible links into
	// the running set, never replacing the prior harvest.
	seen := bloom.NewWithEstimates(expectedHarvestURLs, harvestFPRate)
	for step := 0; step < w.scrollSteps; step++ {
		pageLinks, err := s.Links(ctx)
		if err != nil {
			w.log.Debug().Err(err).Int("step", step).Msg("link harvest failed")
		}
		for _, l := range pageLinks {
			if !filter.IsDetailURL(l.URL) || seen.TestString(l.URL) {
				continue
			}
			seen.AddString(l.URL)
			links = append(links, l)
		}

		if step < w.scrollSteps-1 {
			if err := s.ScrollStep(ctx); err != nil {
				w.log.Debug().Err(err).Int("step", step).Msg("scroll step failed")
				break
			}
		}
	}

	html, err = s.HTML(ctx)
	if err != nil {
		w.log.Debug().Err(err).Msg("html capture failed")
	}

	// Implausibly small harvest: the grid may be rendered client-side in a
	// shape the anchor scan misses. Union in a raw-markup scan.
	if len(links) < minPlausibleHarvest && html != "" {
		for _, u := range filter.FindDetailURLs(html) {
			if seen.TestString(u) {
				continue
			}
			seen.AddString(u)
			links = append(links, model.CandidateLink{URL: u})
		}
	}

	if shot, err = s.Screenshot(ctx); err != nil {
		w.log.Debug().Err(err).Msg("screenshot capture failed")
	}

	return links, html, shot
}

func (w *Waterfall) captureExhausted(ctx context.Context, keyword, html string, shot []byte) {
	if w.artifacts == nil {
		return
	}
	if html != "" {
		key := output.SnapshotKey("discovery-exhausted-html")
		if err := w.artifacts.Save(ctx, key, []byte(html), "text/html"); err != nil {
			w.log.Warn().Err(err).Str("keyword", keyword).Msg("html snapshot save failed")
		}
	}
	if len(shot) > 0 {
		key := output.SnapshotKey("discovery-exhausted-shot")
		if err := w.artifacts.Save(ctx, key, shot, "image/png"); err != nil {
			w.log.Warn().Err(err).Str("keyword", keyword).Msg("screenshot save failed")
		}
	}
}
