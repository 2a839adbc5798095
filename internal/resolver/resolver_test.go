package resolver

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kumma49/kuaishou-topn-downloader/internal/discovery"
	"github.com/kumma49/kuaishou-topn-downloader/internal/model"
	"github.com/kumma49/kuaishou-topn-downloader/internal/output"
	"github.com/kumma49/kuaishou-topn-downloader/internal/search"
)

// fakeSession satisfies both the resolver and discovery session interfaces.
type fakeSession struct {
	html       string
	strictErr  error
	relaxedErr error
	responses  []string // delivered on successful navigation, like real traffic
	links      []model.CandidateLink

	mu        sync.Mutex
	navCalls  []bool // relaxed flag per attempt
	onResp    func(url string)
	stopCount int
	closed    bool
}

func (f *fakeSession) Navigate(_ context.Context, url string, relaxed bool) error {
	f.mu.Lock()
	f.navCalls = append(f.navCalls, relaxed)
	fn := f.onResp
	f.mu.Unlock()

	if !relaxed && f.strictErr != nil {
		return f.strictErr
	}
	if relaxed && f.relaxedErr != nil {
		return f.relaxedErr
	}
	if fn != nil {
		for _, u := range f.responses {
			fn(u)
		}
	}
	return nil
}

func (f *fakeSession) WaitAny(context.Context, []string, time.Duration) error { return nil }
func (f *fakeSession) ScrollStep(context.Context) error                       { return nil }

func (f *fakeSession) Links(context.Context) ([]model.CandidateLink, error) {
	return f.links, nil
}

func (f *fakeSession) HTML(context.Context) (string, error)       { return f.html, nil }
func (f *fakeSession) Screenshot(context.Context) ([]byte, error) { return []byte{1}, nil }

func (f *fakeSession) OnResponse(fn func(url string)) func() {
	f.mu.Lock()
	f.onResp = fn
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		f.stopCount++
		f.mu.Unlock()
	}
}

func (f *fakeSession) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

type recordingSink struct {
	mu      sync.Mutex
	records []model.ResultRecord
}

func (s *recordingSink) Append(_ context.Context, rec model.ResultRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *recordingSink) all() []model.ResultRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.ResultRecord, len(s.records))
	copy(out, s.records)
	return out
}

type fakeStore struct {
	mu    sync.Mutex
	saved map[string]string
}

func (f *fakeStore) Save(_ context.Context, key string, _ []byte, contentType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saved == nil {
		f.saved = make(map[string]string)
	}
	f.saved[key] = contentType
	return nil
}

func detailOpen(sessions ...*fakeSession) OpenSession {
	var mu sync.Mutex
	i := 0
	return func(context.Context) (Session, error) {
		mu.Lock()
		defer mu.Unlock()
		if i >= len(sessions) {
			return nil, errors.New("no more sessions")
		}
		s := sessions[i]
		i++
		return s, nil
	}
}

func newResolver(open OpenSession, sink *recordingSink, artifacts output.BlobStore, opts Options) *Resolver {
	return New(open, nil, sink, artifacts, nil, opts, zerolog.Nop())
}

func TestResolveDetailPicksSniffedMP4(t *testing.T) {
	s := &fakeSession{
		html: `<html><head><title>clip</title></head><body></body></html>`,
		responses: []string{
			"https://www.kuaishou.com/short-video/abc", // page itself, keyword match only
			"https://v2.kwaicdn.com/upic/clip.mp4?tag=1",
		},
	}
	sink := &recordingSink{}
	r := newResolver(detailOpen(s), sink, nil, Options{Limit: 3})

	rec := r.ResolveDetail(context.Background(), model.DetailRequest{URL: "https://www.kuaishou.com/short-video/abc"})

	require.NotNil(t, rec.VideoURL)
	assert.Equal(t, "https://v2.kwaicdn.com/upic/clip.mp4?tag=1", *rec.VideoURL)
	assert.Equal(t, "clip", rec.Title)
	assert.True(t, s.closed)
	assert.Equal(t, 1, s.stopCount, "sniffer must detach on exit")
}

func TestResolveDetailDOMBeatsSniffedTraffic(t *testing.T) {
	s := &fakeSession{
		html:      `<html><body><video src="https://v1.kwaicdn.com/dom.mp4"></video></body></html>`,
		responses: []string{"https://v2.kwaicdn.com/net.mp4"},
	}
	sink := &recordingSink{}
	r := newResolver(detailOpen(s), sink, nil, Options{Limit: 3})

	rec := r.ResolveDetail(context.Background(), model.DetailRequest{URL: "https://www.kuaishou.com/short-video/abc"})

	require.NotNil(t, rec.VideoURL)
	assert.Equal(t, "https://v1.kwaicdn.com/dom.mp4", *rec.VideoURL)
}

func TestResolveDetailRetriesRelaxedOnce(t *testing.T) {
	s := &fakeSession{
		strictErr: errors.New("timeout waiting for body"),
		html:      `<html><body><video src="https://v1.kwaicdn.com/a.mp4"></video></body></html>`,
	}
	sink := &recordingSink{}
	r := newResolver(detailOpen(s), sink, nil, Options{Limit: 3})

	rec := r.ResolveDetail(context.Background(), model.DetailRequest{URL: "https://www.kuaishou.com/short-video/abc"})

	require.NotNil(t, rec.VideoURL)
	assert.Equal(t, []bool{false, true}, s.navCalls, "exactly one strict and one relaxed attempt")
}

func TestResolveDetailNavigationFailureYieldsNullRecord(t *testing.T) {
	s := &fakeSession{
		strictErr:  errors.New("net::ERR_CONNECTION_RESET"),
		relaxedErr: errors.New("net::ERR_CONNECTION_RESET"),
	}
	sink := &recordingSink{}
	r := newResolver(detailOpen(s), sink, nil, Options{Limit: 3})

	rec := r.ResolveDetail(context.Background(), model.DetailRequest{URL: "https://www.kuaishou.com/short-video/abc"})

	assert.Nil(t, rec.VideoURL)
	assert.Equal(t, "https://www.kuaishou.com/short-video/abc", rec.PageURL)
	assert.Equal(t, []bool{false, true}, s.navCalls, "no further retries after the relaxed attempt")
	assert.Equal(t, 1, s.stopCount, "sniffer must detach even on failure")
}

func TestResolveDetailMediaNotFoundCapturesSnapshot(t *testing.T) {
	s := &fakeSession{html: `<html><body><p>no player here</p></body></html>`}
	sink := &recordingSink{}
	store := &fakeStore{}
	r := newResolver(detailOpen(s), sink, store, Options{Limit: 3})

	rec := r.ResolveDetail(context.Background(), model.DetailRequest{URL: "https://www.kuaishou.com/short-video/abc"})

	assert.Nil(t, rec.VideoURL)
	assert.NotEmpty(t, store.saved, "media-not-found must capture diagnostics")
}

func TestResolveDetailStreamOnlyRespectsOptIn(t *testing.T) {
	page := `<html><body></body></html>`

	noStream := &fakeSession{html: page, responses: []string{"https://v2.kwaicdn.com/hls/master.m3u8"}}
	sink := &recordingSink{}
	r := newResolver(detailOpen(noStream), sink, nil, Options{Limit: 3, AcceptStream: false})
	rec := r.ResolveDetail(context.Background(), model.DetailRequest{URL: "https://www.kuaishou.com/short-video/abc"})
	assert.Nil(t, rec.VideoURL)

	withStream := &fakeSession{html: page, responses: []string{"https://v2.kwaicdn.com/hls/master.m3u8"}}
	r = newResolver(detailOpen(withStream), sink, nil, Options{Limit: 3, AcceptStream: true})
	rec = r.ResolveDetail(context.Background(), model.DetailRequest{URL: "https://www.kuaishou.com/short-video/abc"})
	require.NotNil(t, rec.VideoURL)
	assert.Equal(t, "https://v2.kwaicdn.com/hls/master.m3u8", *rec.VideoURL)
}

func TestResolveDetailLikesFromPage(t *testing.T) {
	s := &fakeSession{
		html: `<html><body><span class="like-count">12.3w</span><video src="https://v1.kwaicdn.com/a.mp4"></video></body></html>`,
	}
	sink := &recordingSink{}
	r := newResolver(detailOpen(s), sink, nil, Options{Limit: 3})

	rec := r.ResolveDetail(context.Background(), model.DetailRequest{URL: "https://www.kuaishou.com/short-video/abc"})

	require.NotNil(t, rec.Likes)
	assert.Equal(t, 123000, *rec.Likes)
	assert.Nil(t, rec.Rank, "direct-URL work carries no rank")
}

// End-to-end: primary and mirror searches render nothing, the SERP fallback
// returns two detail URLs, limit 2. Exactly two records, ranks assigned by
// aggregator result order since SERP candidates carry no context text.
func TestKeywordEndToEndSerpFallback(t *testing.T) {
	primary := &fakeSession{}
	mirror := &fakeSession{}

	discSessions := []*fakeSession{primary, mirror}
	var discMu sync.Mutex
	discIdx := 0
	discOpen := func(context.Context) (discovery.Session, error) {
		discMu.Lock()
		defer discMu.Unlock()
		if discIdx >= len(discSessions) {
			return nil, errors.New("no more discovery sessions")
		}
		s := discSessions[discIdx]
		discIdx++
		return s, nil
	}

	serp := &fakeSerpBackend{urls: []string{
		"https://www.kuaishou.com/short-video/cat1",
		"https://www.kuaishou.com/short-video/cat2",
	}}
	agg := search.NewAggregator([]search.Backend{serp}, "kuaishou.com/short-video", zerolog.Nop())
	waterfall := discovery.NewWaterfall(discOpen, agg, "www.kuaishou.com", "m.kuaishou.com", 2, nil, zerolog.Nop())

	d1 := &fakeSession{html: `<html><head><title>cat one</title></head><body><video src="https://v1.kwaicdn.com/cat1.mp4"></video></body></html>`}
	d2 := &fakeSession{html: `<html><head><title>cat two</title></head><body><video src="https://v1.kwaicdn.com/cat2.mp4"></video></body></html>`}

	sink := &recordingSink{}
	r := New(detailOpen(d1, d2), waterfall, sink, nil, nil, Options{Limit: 2}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := NewPool(r, 2, time.Minute, zerolog.Nop())
	go pool.Run(ctx)

	pool.Submit(model.WorkItem{Search: &model.SearchRequest{Keyword: "cat"}})
	pool.Drain()

	records := sink.all()
	require.Len(t, records, 2)

	byRank := make(map[int]model.ResultRecord)
	for _, rec := range records {
		require.NotNil(t, rec.Rank)
		require.NotNil(t, rec.Likes)
		assert.Equal(t, 0, *rec.Likes, "serp candidates carry no context, so score is 0")
		byRank[*rec.Rank] = rec
	}

	require.Contains(t, byRank, 1)
	require.Contains(t, byRank, 2)
	assert.Equal(t, "https://www.kuaishou.com/short-video/cat1", byRank[1].PageURL)
	assert.Equal(t, "https://www.kuaishou.com/short-video/cat2", byRank[2].PageURL)
	require.NotNil(t, byRank[1].VideoURL)
	require.NotNil(t, byRank[2].VideoURL)
}

type fakeSerpBackend struct {
	urls []string
}

func (f *fakeSerpBackend) Name() string { return "fake-serp" }

func (f *fakeSerpBackend) Search(context.Context, string, int) ([]search.Result, error) {
	results := make([]search.Result, len(f.urls))
	for i, u := range f.urls {
		results[i] = search.Result{URL: u}
	}
	return results, nil
}
