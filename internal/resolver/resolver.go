// Package resolver drives the full resolution pipeline for one work item:
// discovery, ranking, per-page sniffing and selection, record emission.
package resolver

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/kumma49/kuaishou-topn-downloader/internal/discovery"
	"github.com/kumma49/kuaishou-topn-downloader/internal/extractor"
	"github.com/kumma49/kuaishou-topn-downloader/internal/filter"
	"github.com/kumma49/kuaishou-topn-downloader/internal/model"
	"github.com/kumma49/kuaishou-topn-downloader/internal/output"
	"github.com/kumma49/kuaishou-topn-downloader/internal/ranking"
	"github.com/kumma49/kuaishou-topn-downloader/internal/sniffer"
)

// Session is the slice of a page-render session a detail resolution needs.
// *browser.Tab satisfies it.
type Session interface {
	Navigate(ctx context.Context, url string, relaxed bool) error
	WaitAny(ctx context.Context, selectors []string, timeout time.Duration) error
	HTML(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
	OnResponse(fn func(url string)) (stop func())
	Close()
}

type OpenSession func(ctx context.Context) (Session, error)

var detailSelectors = []string{
	"video",
	".video-player",
	".player-container",
}

const detailWaitTimeout = 8 * time.Second

type Options struct {
	Limit         int
	AcceptStream  bool
	DownloadMedia bool
}

// Resolver owns the per-item pipeline. All collaborators are injected; no
// entity outlives the work item it was created for.
type Resolver struct {
	open      OpenSession
	waterfall *discovery.Waterfall
	sink      output.Sink
	artifacts output.BlobStore
	dl        *output.Downloader
	media     output.BlobStore
	opts      Options
	log       zerolog.Logger
}

func New(open OpenSession, waterfall *discovery.Waterfall, sink output.Sink, artifacts output.BlobStore, media output.BlobStore, opts Options, log zerolog.Logger) *Resolver {
	if opts.Limit < 1 {
		opts.Limit = 1
	}
	if opts.Limit > 50 {
		opts.Limit = 50
	}

	r := &Resolver{
		open:      open,
		waterfall: waterfall,
		sink:      sink,
		artifacts: artifacts,
		media:     media,
		opts:      opts,
		log:       log,
	}
	if opts.DownloadMedia {
		r.dl = output.NewDownloader()
	}
	return r
}

// ResolveKeyword discovers and ranks detail pages for a keyword and returns
// the detail requests to schedule. Empty return means discovery found
// nothing to schedule; zero records is the correct outcome then.
func (r *Resolver) ResolveKeyword(ctx context.Context, keyword string) []model.DetailRequest {
	out := r.waterfall.Discover(ctx, keyword)
	if len(out.Links) == 0 {
		return nil
	}

	ranked := ranking.Rank(out.Links, r.opts.Limit)

	requests := make([]model.DetailRequest, len(ranked))
	for i, c := range ranked {
		rank := i + 1
		pop := c.Popularity
		requests[i] = model.DetailRequest{URL: c.URL, Rank: &rank, Popularity: &pop}
	}

	r.log.Info().Str("keyword", keyword).Str("strategy", string(out.Strategy)).Int("scheduled", len(requests)).Msg("keyword resolved to detail work")
	return requests
}

// ResolveDetail renders one detail page and produces exactly one record.
// Every failure path still yields a record; VideoURL stays nil when the
// page failed or carried no media.
func (r *Resolver) ResolveDetail(ctx context.Context, req model.DetailRequest) model.ResultRecord {
	rec := model.ResultRecord{
		PageURL:    req.URL,
		Rank:       req.Rank,
		Likes:      req.Popularity,
		ResolvedAt: time.Now(),
	}

	s, err := r.open(ctx)
	if err != nil {
		r.log.Warn().Err(err).Str("url", req.URL).Msg("session open failed")
		return rec
	}
	defer s.Close()

	// Attach before navigation: responses fired during page load are the
	// richest media source and cannot be replayed.
	col := sniffer.Attach(s)
	defer col.Detach()

	if err := r.navigate(ctx, s, req.URL); err != nil {
		r.log.Warn().Err(err).Str("url", req.URL).Msg("detail page degraded to null-media record")
		return rec
	}

	if err := s.WaitAny(ctx, detailSelectors, detailWaitTimeout); err != nil {
		r.log.Debug().Str("url", req.URL).Msg("no player selector appeared, scraping as-is")
	}

	html, err := s.HTML(ctx)
	if err != nil {
		r.log.Warn().Err(err).Str("url", req.URL).Msg("html capture failed")
	}

	rec.Title = extractor.Title(html)
	if rec.Likes == nil {
		if likesText := extractor.LikesText(html); likesText != "" {
			likes := ranking.Score(likesText)
			rec.Likes = &likes
		}
	}

	// Merge precedence: DOM tags, then sniffed traffic, then raw-markup scan.
	merged := extractor.MediaSources(html)
	merged = append(merged, col.URLs()...)
	merged = append(merged, extractor.ScanHTMLMedia(html)...)
	merged = filter.Dedupe(merged)

	chosen := extractor.Pick(merged, r.opts.AcceptStream)
	if chosen == "" {
		r.log.Info().Err(ErrMediaNotFound).Str("url", req.URL).Int("candidates", len(merged)).Msg("emitting null-media record")
		r.captureSnapshot(ctx, s, html, "media-not-found")
		return rec
	}

	rec.VideoURL = &chosen
	r.downloadMedia(ctx, chosen)
	return rec
}

// navigate is a two-state retry policy, not a loop: one strict attempt,
// one relaxed attempt, then give up. Bounds worst-case latency per page.
func (r *Resolver) navigate(ctx context.Context, s Session, url string) error {
	if err := s.Navigate(ctx, url, false); err == nil {
		return nil
	} else {
		r.log.Debug().Err(err).Str("url", url).Msg("strict navigation failed, retrying relaxed")
	}

	if err := s.Navigate(ctx, url, true); err != nil {
		return fmt.Errorf("%w: %v", ErrNavigationFailure, err)
	}
	return nil
}

func (r *Resolver) captureSnapshot(ctx context.Context, s Session, html, label string) {
	if r.artifacts == nil {
		return
	}
	if html != "" {
		key := output.SnapshotKey(label + "-html")
		if err := r.artifacts.Save(ctx, key, []byte(html), "text/html"); err != nil {
			r.log.Warn().Err(err).Msg("html snapshot save failed")
		}
	}
	if shot, err := s.Screenshot(ctx); err == nil && len(shot) > 0 {
		key := output.SnapshotKey(label + "-shot")
		if err := r.artifacts.Save(ctx, key, shot, "image/png"); err != nil {
			r.log.Warn().Err(err).Msg("screenshot save failed")
		}
	}
}

// downloadMedia archives the resolved media bytes. Failure is a warning
// only; the record keeps the URL either way.
func (r *Resolver) downloadMedia(ctx context.Context, url string) {
	if r.dl == nil || r.media == nil {
		return
	}

	data, contentType, err := r.dl.Fetch(ctx, url)
	if err != nil {
		r.log.Warn().Err(err).Str("url", url).Msg("media download failed, record kept")
		return
	}

	key := output.SnapshotKey("media")
	if err := r.media.Save(ctx, key, data, contentType); err != nil {
		r.log.Warn().Err(err).Str("url", url).Msg("media persist failed, record kept")
		return
	}
	r.log.Info().Str("url", url).Int("bytes", len(data)).Msg("media archived")
}

// Emit hands one finished record to the sink.
func (r *Resolver) Emit(ctx context.Context, rec model.ResultRecord) {
	if err := r.sink.Append(ctx, rec); err != nil {
		r.log.Error().Err(err).Str("page_url", rec.PageURL).Msg("record emit failed")
	}
}
